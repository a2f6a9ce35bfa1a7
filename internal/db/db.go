// Package db defines the store facade and search query types backed by a
// RediSearch-capable Redis, plus the FT index definitions the engine needs.
package db

import (
	"context"
	"time"
)

// Store is the main database facade combining all sub-interfaces.
//
//nolint:interfacebloat // facade by design -- consumers use narrow sub-interfaces (ISP)
type Store interface {
	Pinger
	HashStore
	KVStore
	IndexManager
	Searcher
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HashSetItem holds a single key+fields pair for pipelined HSET.
type HashSetItem struct {
	Key    string
	Fields map[string]string
}

// HashStore provides hash-based key-value operations.
type HashStore interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HSetMulti(ctx context.Context, items []HashSetItem) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	Del(ctx context.Context, key string) error
}

// KVStore provides simple key-value operations (embedding cache).
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// IndexManager provides FT index lifecycle operations.
type IndexManager interface {
	CreateIndex(ctx context.Context, def *IndexDefinition) error
	DropIndex(ctx context.Context, name string) error
	IndexExists(ctx context.Context, name string) (bool, error)
}

// Searcher provides search operations over FT indexes.
type Searcher interface {
	SearchKNN(ctx context.Context, q *KNNQuery) (*SearchResult, error)
	SearchTerms(ctx context.Context, q *TermQuery) (*SearchResult, error)
	SearchText(ctx context.Context, q *TextQuery) (*SearchResult, error)
}

// Scope restricts a search to specific containers and/or documents via TAG
// pre-filters. Empty slices mean no restriction.
type Scope struct {
	ContainerIDs []string
	DocumentIDs  []string
}

// Empty reports whether the scope imposes no restriction.
func (s Scope) Empty() bool {
	return len(s.ContainerIDs) == 0 && len(s.DocumentIDs) == 0
}

// KNNQuery is the input for vector similarity search over chunk embeddings.
type KNNQuery struct {
	IndexName    string
	Scope        Scope
	Vector       []float32
	K            int
	ReturnFields []string
}

// TermQuery is the input for ranked keyword search over chunk content.
// Keywords match as substrings; CoreTerms score at double weight. When
// RequireCore is set both groups must match, otherwise either group suffices
// (the loosened OR used under narrow scope to avoid zero-result collapse).
type TermQuery struct {
	IndexName    string
	Scope        Scope
	Keywords     []string
	CoreTerms    []string
	RequireCore  bool
	TopK         int
	ReturnFields []string
}

// TextQuery is the input for stemmed full-text search with a language-specific
// analyzer configuration.
type TextQuery struct {
	IndexName    string
	Scope        Scope
	Terms        []string
	Language     string
	TopK         int
	ReturnFields []string
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single document hit from a search.
type SearchEntry struct {
	Key    string
	Score  float64
	Fields map[string]string
}
