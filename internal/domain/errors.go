package domain

import "errors"

// Sentinel errors forming the engine's failure taxonomy. Everything except
// ErrInvalidQuery and total store unavailability is absorbed below the
// Retrieve boundary and surfaces only in RetrievalStats.
var (
	// ErrInvalidQuery signals an empty or malformed query.
	ErrInvalidQuery = errors.New("invalid query")
	// ErrStoreUnavailable signals that every strategy retriever failed.
	ErrStoreUnavailable = errors.New("chunk store unavailable")
	// ErrEmbeddingFailed signals an embedding provider failure.
	ErrEmbeddingFailed = errors.New("embedding failed")
	// ErrRerankFailed signals a reranking model failure.
	ErrRerankFailed = errors.New("rerank failed")
	// ErrTimeout signals an exceeded deadline on an external call.
	ErrTimeout = errors.New("timeout")
)
