package chunkstore

import (
	"encoding/binary"
	"math"
	"strconv"
	"strings"

	"github.com/contexta-cloud/contexta/internal/domain"
)

// Flat hash field names shared by the chunk and document records.
const (
	fieldDocumentID  = "document_id"
	fieldContainerID = "container_id"
	fieldChunkIndex  = "chunk_index"
	fieldContent     = "content"
	fieldPage        = "page"
	fieldKeywords    = "keywords"
	fieldEntities    = "entities"
	fieldEmbedding   = "embedding"
	fieldTitle       = "title"
	fieldLanguage    = "language"
)

const listSeparator = ","

// Document is the document-level record backing the full-text index.
type Document struct {
	ID          string
	ContainerID string
	Title       string
	Language    string
	Content     string
}

// IngestChunk pairs a chunk with the data only ingestion knows about.
type IngestChunk struct {
	Chunk       domain.Chunk
	ContainerID string
	Embedding   []float32
}

// buildChunkFields converts an ingest chunk into a flat map for HSET.
func buildChunkFields(ic *IngestChunk) map[string]string {
	m := map[string]string{
		fieldDocumentID:  ic.Chunk.DocumentID,
		fieldContainerID: ic.ContainerID,
		fieldChunkIndex:  strconv.Itoa(ic.Chunk.Index),
		fieldContent:     ic.Chunk.Content,
	}
	if ic.Chunk.Page != "" {
		m[fieldPage] = ic.Chunk.Page
	}
	if len(ic.Chunk.Keywords) > 0 {
		m[fieldKeywords] = strings.Join(ic.Chunk.Keywords, listSeparator)
	}
	if len(ic.Chunk.Entities) > 0 {
		m[fieldEntities] = strings.Join(ic.Chunk.Entities, listSeparator)
	}
	if len(ic.Embedding) > 0 {
		m[fieldEmbedding] = vectorToBytes(ic.Embedding)
	}
	return m
}

// buildDocumentFields converts a document record into a flat map for HSET.
func buildDocumentFields(doc *Document) map[string]string {
	m := map[string]string{
		fieldDocumentID:  doc.ID,
		fieldContainerID: doc.ContainerID,
		fieldContent:     doc.Content,
	}
	if doc.Title != "" {
		m[fieldTitle] = doc.Title
	}
	if doc.Language != "" {
		m[fieldLanguage] = doc.Language
	}
	return m
}

// parseChunkFields converts a flat hash map back into a domain Chunk. The key
// is the fallback identity when the hash fields are incomplete.
func parseChunkFields(key string, m map[string]string) domain.Chunk {
	c := domain.Chunk{
		DocumentID: m[fieldDocumentID],
		Content:    m[fieldContent],
		Page:       m[fieldPage],
	}
	if idx, err := strconv.Atoi(m[fieldChunkIndex]); err == nil {
		c.Index = idx
	}
	if v := m[fieldKeywords]; v != "" {
		c.Keywords = strings.Split(v, listSeparator)
	}
	if v := m[fieldEntities]; v != "" {
		c.Entities = strings.Split(v, listSeparator)
	}
	if c.DocumentID == "" {
		c.DocumentID, c.Index = parseChunkKey(key)
	}
	return c
}

// parseChunkKey extracts (documentID, index) from a chunk hash key of the form
// contexta:chunk:<documentID>:<index>.
func parseChunkKey(key string) (string, int) {
	rest := strings.TrimPrefix(key, chunkKeyPrefix)
	sep := strings.LastIndex(rest, ":")
	if sep < 0 {
		return rest, 0
	}
	idx, err := strconv.Atoi(rest[sep+1:])
	if err != nil {
		return rest, 0
	}
	return rest[:sep], idx
}

// docIDFromKey extracts the document id from a document hash key.
func docIDFromKey(key string) string {
	return strings.TrimPrefix(key, docKeyPrefix)
}

// vectorToBytes serializes []float32 to a binary string (4 bytes per float, little-endian).
func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}
