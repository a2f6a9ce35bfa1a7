package domain

import (
	"fmt"
	"strings"
)

// Strategy selects which retrievers run for a query.
type Strategy string

const (
	// StrategySemantic runs vector similarity search only.
	StrategySemantic Strategy = "semantic"
	// StrategyKeyword runs keyword matching only.
	StrategyKeyword Strategy = "keyword"
	// StrategyFulltext runs the stemmed full-text index only.
	StrategyFulltext Strategy = "fulltext"
	// StrategyHybrid runs all three strategies and fuses their scores.
	StrategyHybrid Strategy = "hybrid"
)

// ParseStrategy validates a strategy string, defaulting empty to hybrid.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case "":
		return StrategyHybrid, nil
	case StrategySemantic, StrategyKeyword, StrategyFulltext, StrategyHybrid:
		return Strategy(s), nil
	default:
		return "", fmt.Errorf("%w: unknown strategy %q", ErrInvalidQuery, s)
	}
}

// Query is a single retrieval request. It is immutable per call; the engine
// may spawn a second attempt with an enhanced Text, keeping OriginalText.
type Query struct {
	Text         string   `json:"text"`
	OriginalText string   `json:"original_text,omitempty"`
	ContainerIDs []string `json:"container_ids,omitempty"`
	DocumentIDs  []string `json:"document_ids,omitempty"`
	Strategy     Strategy `json:"strategy,omitempty"`

	// Zero values mean "use the configured default".
	MaxChunks           int     `json:"max_chunks,omitempty"`
	SimilarityThreshold float64 `json:"similarity_threshold,omitempty"`
	ContextTokenBudget  int     `json:"context_token_budget,omitempty"`
}

// Validate rejects empty or whitespace-only query text.
func (q *Query) Validate() error {
	if strings.TrimSpace(q.Text) == "" {
		return fmt.Errorf("%w: empty query text", ErrInvalidQuery)
	}
	if _, err := ParseStrategy(string(q.Strategy)); err != nil {
		return err
	}
	return nil
}

// Scoped reports whether the query restricts the candidate pool to specific
// containers or documents.
func (q *Query) Scoped() bool {
	return len(q.ContainerIDs) > 0 || len(q.DocumentIDs) > 0
}

// WithText returns a copy of the query carrying new text and recording the
// original, used by the conversation-context enhancement pass.
func (q *Query) WithText(text string) Query {
	out := *q
	out.OriginalText = q.Text
	out.Text = text
	return out
}
