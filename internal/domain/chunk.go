package domain

// SearchType tags which strategy produced (or confirmed) a chunk.
type SearchType string

const (
	// SearchSemantic marks a chunk found by vector similarity.
	SearchSemantic SearchType = "semantic"
	// SearchKeyword marks a chunk found by keyword matching.
	SearchKeyword SearchType = "keyword"
	// SearchFulltext marks a chunk found by the full-text index.
	SearchFulltext SearchType = "fulltext"
	// SearchHybrid marks a chunk confirmed by more than one strategy.
	SearchHybrid SearchType = "hybrid"
)

// ChunkKey identifies a chunk by its owning document and ordinal position.
type ChunkKey struct {
	DocumentID string
	Index      int
}

// Chunk is a retrievable slice of a source document with per-strategy scores.
// Retrievers create chunks, fusion merges their scores, the quality gate may
// boost or penalize CombinedScore. After the context packer consumes a chunk
// it is never mutated again; truncation works on a copy.
type Chunk struct {
	DocumentID string     `json:"document_id"`
	Index      int        `json:"chunk_index"`
	Content    string     `json:"content"`
	Page       string     `json:"page,omitempty"`
	Keywords   []string   `json:"keywords,omitempty"`
	Entities   []string   `json:"entities,omitempty"`
	SearchType SearchType `json:"search_type"`

	SemanticScore  float64 `json:"semantic_score"`
	KeywordScore   float64 `json:"keyword_score"`
	FulltextScore  float64 `json:"fulltext_score"`
	CombinedScore  float64 `json:"combined_score"`
}

// Key returns the (documentID, chunkIndex) identity used for fusion and dedup.
func (c *Chunk) Key() ChunkKey {
	return ChunkKey{DocumentID: c.DocumentID, Index: c.Index}
}

// Clone returns a deep copy so packing can truncate without touching the ranked list.
func (c *Chunk) Clone() Chunk {
	out := *c
	if c.Keywords != nil {
		out.Keywords = append([]string(nil), c.Keywords...)
	}
	if c.Entities != nil {
		out.Entities = append([]string(nil), c.Entities...)
	}
	return out
}
