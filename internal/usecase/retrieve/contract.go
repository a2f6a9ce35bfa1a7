package retrieve

import (
	"context"

	"github.com/contexta-cloud/contexta/internal/domain"
	"github.com/contexta-cloud/contexta/internal/usecase/analyze"
	"github.com/contexta-cloud/contexta/internal/usecase/contextpack"
)

// Repository is the chunk store contract consumed by the strategy retrievers.
type Repository interface {
	SemanticSearch(ctx context.Context, vector []float32,
		containerIDs, documentIDs []string, k int) ([]domain.Chunk, error)
	KeywordSearch(ctx context.Context, keywords, coreTerms []string,
		containerIDs, documentIDs []string, topK int) ([]domain.Chunk, error)
	FulltextSearch(ctx context.Context, terms, keywords, languages []string,
		containerIDs, documentIDs []string, topK int) ([]domain.Chunk, error)
}

// Analyzer turns query text into keywords, intent and an optional embedding.
type Analyzer interface {
	Analyze(ctx context.Context, text string) analyze.Analysis
	Terms(text string) []string
}

// Reranker reorders candidates by relevance to the query. A failure keeps the
// original order, it never fails the retrieval.
type Reranker interface {
	Rerank(ctx context.Context, queryText string, candidates []domain.Chunk, targetCount int) ([]domain.Chunk, error)
}

// Packer assembles ranked chunks into budgeted context text.
type Packer interface {
	Pack(ranked []domain.Chunk, tokenBudget int) contextpack.Packed
}
