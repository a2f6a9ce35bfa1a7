package chunkstore

import (
	"context"
	"fmt"
	"strconv"

	"github.com/contexta-cloud/contexta/internal/db"
	"github.com/contexta-cloud/contexta/internal/domain"
)

// Key layout and index names.
const (
	chunkKeyPrefix = domain.KeyPrefix + "chunk:"
	docKeyPrefix   = domain.KeyPrefix + "doc:"

	chunkIndexName = domain.KeyPrefix + "chunks:idx"
	docIndexName   = domain.KeyPrefix + "documents:idx"
)

// chunkReturnFields excludes the embedding blob from search replies.
var chunkReturnFields = []string{
	fieldDocumentID, fieldChunkIndex, fieldContent,
	fieldPage, fieldKeywords, fieldEntities,
}

// knnReturnFields additionally requests the aliased distance field.
var knnReturnFields = append([]string{"__vector_score"}, chunkReturnFields...)

// store is the consumer interface for chunk retrieval and ingestion (ISP).
type store interface {
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	SearchTerms(ctx context.Context, q *db.TermQuery) (*db.SearchResult, error)
	SearchText(ctx context.Context, q *db.TextQuery) (*db.SearchResult, error)
	HSet(ctx context.Context, key string, fields map[string]string) error
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	IndexExists(ctx context.Context, name string) (bool, error)
}

// Options sizes the indexes EnsureIndexes creates.
type Options struct {
	VectorDim       int
	Language        string // default stemmer of the document index
	HNSWM           int
	HNSWEFConstruct int
}

// Repo implements the retriever and ingestion repositories over a search store.
type Repo struct {
	store store
	opts  Options
}

// New creates a chunk store repository.
func New(s store, opts Options) *Repo {
	return &Repo{store: s, opts: opts}
}

// EnsureIndexes creates the chunk and document FT indexes if missing.
func (r *Repo) EnsureIndexes(ctx context.Context) error {
	chunkIdx, err := db.NewIndex(chunkIndexName).
		Prefix(chunkKeyPrefix).
		Tag(fieldDocumentID).
		Tag(fieldContainerID).
		Numeric(fieldChunkIndex).
		Text(fieldContent).
		VectorHNSW(fieldEmbedding, r.opts.VectorDim, db.DistanceCosine, r.opts.HNSWM, r.opts.HNSWEFConstruct).
		Build()
	if err != nil {
		return fmt.Errorf("build chunk index: %w", err)
	}

	docIdx, err := db.NewIndex(docIndexName).
		Prefix(docKeyPrefix).
		Language(r.opts.Language).
		Tag(fieldDocumentID).
		Tag(fieldContainerID).
		Text(fieldTitle).
		Text(fieldContent).
		Build()
	if err != nil {
		return fmt.Errorf("build document index: %w", err)
	}

	for _, def := range []*db.IndexDefinition{chunkIdx, docIdx} {
		exists, err := r.store.IndexExists(ctx, def.Name)
		if err != nil {
			return fmt.Errorf("check index %s: %w", def.Name, err)
		}
		if exists {
			continue
		}
		if err := r.store.CreateIndex(ctx, def); err != nil {
			return fmt.Errorf("create index %s: %w", def.Name, err)
		}
	}
	return nil
}

// UpsertChunks writes chunk records in one pipelined round trip.
func (r *Repo) UpsertChunks(ctx context.Context, chunks []IngestChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	items := make([]db.HashSetItem, 0, len(chunks))
	for i := range chunks {
		ic := &chunks[i]
		items = append(items, db.HashSetItem{
			Key:    chunkKey(ic.Chunk.DocumentID, ic.Chunk.Index),
			Fields: buildChunkFields(ic),
		})
	}
	if err := r.store.HSetMulti(ctx, items); err != nil {
		return fmt.Errorf("upsert %d chunks: %w", len(chunks), err)
	}
	return nil
}

// UpsertDocument writes the document-level record backing full-text search.
func (r *Repo) UpsertDocument(ctx context.Context, doc *Document) error {
	if doc.ID == "" {
		return fmt.Errorf("document id is required")
	}
	if err := r.store.HSet(ctx, docKeyPrefix+doc.ID, buildDocumentFields(doc)); err != nil {
		return fmt.Errorf("upsert document %s: %w", doc.ID, err)
	}
	return nil
}

// SemanticSearch returns the k nearest chunks by cosine similarity, with
// SemanticScore set to the similarity in [0,1].
func (r *Repo) SemanticSearch(
	ctx context.Context, vector []float32,
	containerIDs, documentIDs []string, k int,
) ([]domain.Chunk, error) {
	q := &db.KNNQuery{
		IndexName:    chunkIndexName,
		Scope:        db.Scope{ContainerIDs: containerIDs, DocumentIDs: documentIDs},
		Vector:       vector,
		K:            k,
		ReturnFields: knnReturnFields,
	}

	sr, err := r.store.SearchKNN(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("semantic search: %w", err)
	}

	chunks := make([]domain.Chunk, 0, len(sr.Entries))
	for _, entry := range sr.Entries {
		c := parseChunkFields(entry.Key, entry.Fields)
		c.SearchType = domain.SearchSemantic
		c.SemanticScore = entry.Score
		chunks = append(chunks, c)
	}
	return chunks, nil
}

// KeywordSearch ranks chunks by substring keyword matches with core terms
// weighted double. Without scope filters a hit must match both the keyword
// group and the core group; under scope either group is enough, trading
// precision for recall in an already narrow pool. KeywordScore is the rank
// score normalized to (0,1] against the best hit.
func (r *Repo) KeywordSearch(
	ctx context.Context, keywords, coreTerms []string,
	containerIDs, documentIDs []string, topK int,
) ([]domain.Chunk, error) {
	scope := db.Scope{ContainerIDs: containerIDs, DocumentIDs: documentIDs}
	q := &db.TermQuery{
		IndexName:    chunkIndexName,
		Scope:        scope,
		Keywords:     keywords,
		CoreTerms:    coreTerms,
		RequireCore:  scope.Empty() && len(coreTerms) > 0,
		TopK:         topK,
		ReturnFields: chunkReturnFields,
	}

	sr, err := r.store.SearchTerms(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}

	maxScore := maxEntryScore(sr.Entries)
	chunks := make([]domain.Chunk, 0, len(sr.Entries))
	for _, entry := range sr.Entries {
		c := parseChunkFields(entry.Key, entry.Fields)
		c.SearchType = domain.SearchKeyword
		c.KeywordScore = normalize(entry.Score, maxScore)
		chunks = append(chunks, c)
	}
	return chunks, nil
}

// FulltextSearch ranks whole documents on the stemmed text index, one pass per
// configured language, then fans out to the chunks of the ranked documents
// that also match at least one keyword. Each chunk inherits its document's
// normalized rank as FulltextScore.
func (r *Repo) FulltextSearch(
	ctx context.Context, terms, keywords, languages []string,
	containerIDs, documentIDs []string, topK int,
) ([]domain.Chunk, error) {
	scope := db.Scope{ContainerIDs: containerIDs, DocumentIDs: documentIDs}

	docScores := make(map[string]float64)
	var maxScore float64
	for _, lang := range languages {
		q := &db.TextQuery{
			IndexName: docIndexName,
			Scope:     scope,
			Terms:     terms,
			Language:  lang,
			TopK:      topK,
		}
		sr, err := r.store.SearchText(ctx, q)
		if err != nil {
			return nil, fmt.Errorf("fulltext search (%s): %w", lang, err)
		}
		for _, entry := range sr.Entries {
			id := entry.Fields[fieldDocumentID]
			if id == "" {
				id = docIDFromKey(entry.Key)
			}
			if entry.Score > docScores[id] {
				docScores[id] = entry.Score
			}
			if entry.Score > maxScore {
				maxScore = entry.Score
			}
		}
	}
	if len(docScores) == 0 || len(keywords) == 0 {
		return nil, nil
	}

	rankedDocs := make([]string, 0, len(docScores))
	for id := range docScores {
		rankedDocs = append(rankedDocs, id)
	}

	// Chunk fan-out stays inside the ranked documents.
	cq := &db.TermQuery{
		IndexName:    chunkIndexName,
		Scope:        db.Scope{ContainerIDs: containerIDs, DocumentIDs: rankedDocs},
		Keywords:     keywords,
		TopK:         topK,
		ReturnFields: chunkReturnFields,
	}
	sr, err := r.store.SearchTerms(ctx, cq)
	if err != nil {
		return nil, fmt.Errorf("fulltext chunk fan-out: %w", err)
	}

	chunks := make([]domain.Chunk, 0, len(sr.Entries))
	for _, entry := range sr.Entries {
		c := parseChunkFields(entry.Key, entry.Fields)
		c.SearchType = domain.SearchFulltext
		c.FulltextScore = normalize(docScores[c.DocumentID], maxScore)
		chunks = append(chunks, c)
	}
	return chunks, nil
}

func chunkKey(documentID string, index int) string {
	return chunkKeyPrefix + documentID + ":" + strconv.Itoa(index)
}

func maxEntryScore(entries []db.SearchEntry) float64 {
	var m float64
	for _, e := range entries {
		if e.Score > m {
			m = e.Score
		}
	}
	return m
}

// normalize maps a rank score onto (0,1] relative to the best hit.
func normalize(score, maxScore float64) float64 {
	if maxScore <= 0 {
		return 0
	}
	return score / maxScore
}
