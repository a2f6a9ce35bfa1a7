package rerank

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/contexta-cloud/contexta/internal/domain"
	"github.com/contexta-cloud/contexta/internal/metrics"
)

// Completer produces one completion for one prompt.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Reranker reorders a candidate shortlist by asking a generative model for a
// relevance ordering. It is strictly best-effort: the caller keeps the
// original order on any failure.
type Reranker struct {
	completer    Completer
	previewRunes int
	logger       *zap.Logger
}

// New creates a reranker. previewRunes caps how much of each candidate's
// content goes into the prompt.
func New(completer Completer, previewRunes int, logger *zap.Logger) *Reranker {
	return &Reranker{completer: completer, previewRunes: previewRunes, logger: logger}
}

// Rerank returns the candidates reordered by model-judged relevance to the
// query. The model response is parsed permissively, so a malformed answer
// yields the original order rather than an error; only the completion call
// itself can fail.
func (r *Reranker) Rerank(ctx context.Context, queryText string, candidates []domain.Chunk, targetCount int) ([]domain.Chunk, error) {
	if len(candidates) < 2 {
		return candidates, nil
	}

	response, err := r.completer.Complete(ctx, r.buildPrompt(queryText, candidates, targetCount))
	if err != nil {
		metrics.RerankRequestsTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.RerankRequestsTotal.WithLabelValues("success").Inc()

	order := parseOrder(response, len(candidates))
	reordered := make([]domain.Chunk, 0, len(candidates))
	for _, idx := range order {
		reordered = append(reordered, candidates[idx])
	}

	r.logger.Debug("rerank applied",
		zap.Int("candidates", len(candidates)),
		zap.Ints("order", order))
	return reordered, nil
}

func (r *Reranker) buildPrompt(queryText string, candidates []domain.Chunk, targetCount int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Query: %s\n\n", queryText)
	b.WriteString("Rank the following passages by relevance to the query.\n\n")
	for i, c := range candidates {
		fmt.Fprintf(&b, "[%d] %s\n", i, preview(c.Content, r.previewRunes))
	}
	fmt.Fprintf(&b,
		"\nAnswer with the %d most relevant passage numbers in order, comma-separated, nothing else.\n",
		targetCount)
	return b.String()
}

func preview(content string, maxRunes int) string {
	if maxRunes <= 0 {
		return content
	}
	runes := []rune(content)
	if len(runes) <= maxRunes {
		return content
	}
	return string(runes[:maxRunes]) + "..."
}
