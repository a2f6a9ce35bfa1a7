package domain

import "time"

// RetrievalStats records what happened during a single retrieval call,
// including every absorbed dependency failure, for observability.
type RetrievalStats struct {
	RetrievalID string   `json:"retrieval_id"`
	Strategy    Strategy `json:"strategy"`
	Intent      Intent   `json:"intent"`

	Threshold        float64 `json:"threshold"`
	SemanticAttempts int     `json:"semantic_attempts"`

	CandidatesFused    int `json:"candidates_fused"`
	CandidatesFiltered int `json:"candidates_filtered"`

	DomainFilterApplied bool `json:"domain_filter_applied"`
	CutlineApplied      bool `json:"cutline_applied"`
	RerankApplied       bool `json:"rerank_applied"`
	EmbeddingSkipped    bool `json:"embedding_skipped"`

	// SourcesFailed lists strategy retrievers that degraded to empty results.
	SourcesFailed []string `json:"sources_failed,omitempty"`
	// AbsorbedErrors lists non-fatal dependency failures in human-readable form.
	AbsorbedErrors []string `json:"absorbed_errors,omitempty"`

	Elapsed time.Duration `json:"elapsed_ns"`
}

// ConversationContextMeta describes how conversation history influenced the query.
type ConversationContextMeta struct {
	ContextUsed     bool     `json:"context_used"`
	EnhancedQuery   string   `json:"enhanced_query,omitempty"`
	TopicContinuity float64  `json:"topic_continuity"`
	Keywords        []string `json:"keywords,omitempty"`
}

// RetrievalResult is the complete outcome of one Retrieve call. It is
// constructed once per call and not persisted by the engine.
type RetrievalResult struct {
	// Chunks holds all candidates that survived filtering, in rank order.
	Chunks []Chunk `json:"chunks"`
	// UsedChunks is the prefix-consistent subset packed into ContextText.
	UsedChunks []Chunk `json:"used_chunks"`

	ContextText string `json:"context_text"`
	TotalTokens int    `json:"total_tokens"`

	Stats   RetrievalStats          `json:"stats"`
	Context ConversationContextMeta `json:"conversation_context"`
}
