package retrieve

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/contexta-cloud/contexta/internal/domain"
	"github.com/contexta-cloud/contexta/internal/usecase/analyze"
)

func TestRetrieve_SemanticThresholdScenario(t *testing.T) {
	repo := &mockRepo{
		semanticFn: func(_ context.Context, _ []float32, _, _ []string, _ int) ([]domain.Chunk, error) {
			return []domain.Chunk{
				semChunk("doc-1", 0, 0.61),
				semChunk("doc-1", 1, 0.55),
				semChunk("doc-2", 0, 0.30),
				semChunk("doc-2", 1, 0.12),
				semChunk("doc-3", 0, 0.05),
			}, nil
		},
	}
	an := &mockAnalyzer{fallback: analyze.Analysis{
		Keywords:  []string{"ai"},
		Embedding: testEmbedding(),
		Intent:    domain.IntentGeneral,
	}}
	e := newTestEngine(t, nil, repo, an)

	res, err := e.Retrieve(context.Background(), domain.Query{
		Text:                "AI",
		Strategy:            domain.StrategySemantic,
		MaxChunks:           3,
		SimilarityThreshold: 0.5,
	}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(res.Chunks) != 2 {
		t.Fatalf("expected exactly 2 chunks above threshold, got %d", len(res.Chunks))
	}
	for _, c := range res.Chunks {
		if c.SearchType != domain.SearchSemantic {
			t.Errorf("expected semantic search type, got %s", c.SearchType)
		}
	}
	if res.Chunks[0].SemanticScore != 0.61 || res.Chunks[1].SemanticScore != 0.55 {
		t.Errorf("unexpected rank order: %+v", res.Chunks)
	}
	if res.Stats.SemanticAttempts != 1 {
		t.Errorf("expected one semantic attempt, got %d", res.Stats.SemanticAttempts)
	}
}

func TestRetrieve_ScopedZeroMatchIsNotAnError(t *testing.T) {
	repo := &mockRepo{} // every source returns empty
	an := &mockAnalyzer{fallback: analyze.Analysis{
		Keywords:  []string{"무관"},
		Embedding: testEmbedding(),
		Intent:    domain.IntentGeneral,
	}}
	e := newTestEngine(t, nil, repo, an)

	res, err := e.Retrieve(context.Background(), domain.Query{
		Text:        "무관",
		DocumentIDs: []string{"doc-without-matches"},
	}, nil)
	if err != nil {
		t.Fatalf("zero matches must not be an error, got %v", err)
	}

	if len(res.Chunks) != 0 || res.ContextText != "" {
		t.Errorf("expected empty result, got %+v", res)
	}
	if len(res.Stats.SourcesFailed) != 0 {
		t.Errorf("no source failed, got %v", res.Stats.SourcesFailed)
	}
}

func TestRetrieve_EnhancedQueryAdoptedOnSecondPass(t *testing.T) {
	originalVec := []float32{1, 0, 0, 0}
	enhancedVec := []float32{0, 1, 0, 0}
	repo := &mockRepo{
		semanticFn: func(_ context.Context, vector []float32, _, _ []string, _ int) ([]domain.Chunk, error) {
			if vector[1] == 1 {
				return []domain.Chunk{
					semChunk("doc-1", 0, 0.8),
					semChunk("doc-1", 1, 0.7),
					semChunk("doc-2", 0, 0.6),
				}, nil
			}
			return nil, nil
		},
	}
	an := &mockAnalyzer{analyses: map[string]analyze.Analysis{
		"vpn setup": {
			Keywords: []string{"vpn", "setup"}, Embedding: originalVec, Intent: domain.IntentGeneral,
		},
		"vpn guide": {
			Keywords: []string{"vpn", "guide"},
		},
		"vpn setup guide": {
			Keywords: []string{"vpn", "setup", "guide"}, Embedding: enhancedVec, Intent: domain.IntentGeneral,
		},
	}}
	e := newTestEngine(t, nil, repo, an)

	history := []domain.Turn{{Role: domain.RoleUser, Content: "vpn guide"}}
	res, err := e.Retrieve(context.Background(), domain.Query{Text: "vpn setup", Strategy: domain.StrategySemantic}, history)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !res.Context.ContextUsed {
		t.Error("expected ContextUsed=true after the enhanced pass won")
	}
	if res.Context.EnhancedQuery != "vpn setup guide" {
		t.Errorf("unexpected enhanced query: %q", res.Context.EnhancedQuery)
	}
	if len(res.Chunks) != 3 {
		t.Fatalf("expected the enhanced pass candidates, got %d", len(res.Chunks))
	}
}

func TestRetrieve_EnhancedQueryRejectedWithoutSemanticHits(t *testing.T) {
	repo := &mockRepo{
		keywordFn: func(_ context.Context, _, _, _, _ []string, _ int) ([]domain.Chunk, error) {
			return []domain.Chunk{kwChunk("doc-1", 0, 1.0)}, nil
		},
	}
	an := &mockAnalyzer{analyses: map[string]analyze.Analysis{
		"vpn setup":       {Keywords: []string{"vpn", "setup"}, Embedding: testEmbedding(), Intent: domain.IntentGeneral},
		"vpn guide":       {Keywords: []string{"vpn", "guide"}},
		"vpn setup guide": {Keywords: []string{"vpn", "setup", "guide"}, Embedding: testEmbedding(), Intent: domain.IntentGeneral},
	}}
	e := newTestEngine(t, nil, repo, an)

	history := []domain.Turn{{Role: domain.RoleUser, Content: "vpn guide"}}
	res, err := e.Retrieve(context.Background(), domain.Query{Text: "vpn setup"}, history)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Neither pass produced semantic hits; the original pass stands.
	if res.Context.ContextUsed {
		t.Error("enhanced pass without semantic hits must not be adopted")
	}
	if len(res.Chunks) != 1 || res.Chunks[0].SearchType != domain.SearchKeyword {
		t.Errorf("expected the original keyword result, got %+v", res.Chunks)
	}
}

func TestRetrieve_AllSourcesFailed(t *testing.T) {
	storeErr := errors.New("connection refused")
	repo := &mockRepo{
		semanticFn: func(_ context.Context, _ []float32, _, _ []string, _ int) ([]domain.Chunk, error) {
			return nil, storeErr
		},
		keywordFn: func(_ context.Context, _, _, _, _ []string, _ int) ([]domain.Chunk, error) {
			return nil, storeErr
		},
		fulltextFn: func(_ context.Context, _, _, _, _, _ []string, _ int) ([]domain.Chunk, error) {
			return nil, storeErr
		},
	}
	an := &mockAnalyzer{fallback: analyze.Analysis{
		Keywords:  []string{"vpn"},
		Embedding: testEmbedding(),
		Intent:    domain.IntentGeneral,
	}}
	e := newTestEngine(t, nil, repo, an)

	_, err := e.Retrieve(context.Background(), domain.Query{Text: "vpn setup"}, nil)
	if !errors.Is(err, domain.ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
}

func TestRetrieve_PartialSourceFailureDegrades(t *testing.T) {
	storeErr := errors.New("index missing")
	repo := &mockRepo{
		semanticFn: func(_ context.Context, _ []float32, _, _ []string, _ int) ([]domain.Chunk, error) {
			return []domain.Chunk{semChunk("doc-1", 0, 0.9)}, nil
		},
		fulltextFn: func(_ context.Context, _, _, _, _, _ []string, _ int) ([]domain.Chunk, error) {
			return nil, storeErr
		},
	}
	an := &mockAnalyzer{fallback: analyze.Analysis{
		Keywords:  []string{"vpn"},
		Embedding: testEmbedding(),
		Intent:    domain.IntentGeneral,
	}}
	e := newTestEngine(t, nil, repo, an)

	res, err := e.Retrieve(context.Background(), domain.Query{Text: "vpn setup"}, nil)
	if err != nil {
		t.Fatalf("partial failure must degrade, got %v", err)
	}

	if len(res.Chunks) != 1 {
		t.Fatalf("expected surviving semantic chunk, got %d", len(res.Chunks))
	}
	if len(res.Stats.SourcesFailed) != 1 || res.Stats.SourcesFailed[0] != sourceFulltext {
		t.Errorf("expected fulltext in SourcesFailed, got %v", res.Stats.SourcesFailed)
	}
	if len(res.Stats.AbsorbedErrors) == 0 {
		t.Error("absorbed error not recorded in stats")
	}
}

func TestRetrieve_InvalidQuery(t *testing.T) {
	e := newTestEngine(t, nil, &mockRepo{}, &mockAnalyzer{})

	_, err := e.Retrieve(context.Background(), domain.Query{Text: "   "}, nil)
	if !errors.Is(err, domain.ErrInvalidQuery) {
		t.Fatalf("expected ErrInvalidQuery, got %v", err)
	}

	_, err = e.Retrieve(context.Background(), domain.Query{Text: "ok", Strategy: "vector"}, nil)
	if !errors.Is(err, domain.ErrInvalidQuery) {
		t.Fatalf("expected ErrInvalidQuery for unknown strategy, got %v", err)
	}
}

func TestRetrieve_EmbeddingFailureSkipsSemanticOnly(t *testing.T) {
	semanticCalled := false
	repo := &mockRepo{
		semanticFn: func(_ context.Context, _ []float32, _, _ []string, _ int) ([]domain.Chunk, error) {
			semanticCalled = true
			return nil, nil
		},
		keywordFn: func(_ context.Context, _, _, _, _ []string, _ int) ([]domain.Chunk, error) {
			return []domain.Chunk{kwChunk("doc-1", 0, 1.0)}, nil
		},
	}
	an := &mockAnalyzer{fallback: analyze.Analysis{
		Keywords: []string{"vpn"}, // no embedding
		Intent:   domain.IntentGeneral,
	}}
	e := newTestEngine(t, nil, repo, an)

	res, err := e.Retrieve(context.Background(), domain.Query{Text: "vpn setup"}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if semanticCalled {
		t.Error("semantic search must be skipped without an embedding")
	}
	if !res.Stats.EmbeddingSkipped {
		t.Error("EmbeddingSkipped not recorded")
	}
	if len(res.Chunks) != 1 {
		t.Errorf("keyword leg should still deliver, got %d chunks", len(res.Chunks))
	}
}

func TestRetrieve_RerankReorders(t *testing.T) {
	repo := &mockRepo{
		semanticFn: func(_ context.Context, _ []float32, _, _ []string, _ int) ([]domain.Chunk, error) {
			return []domain.Chunk{
				semChunk("doc-1", 0, 0.9),
				semChunk("doc-1", 1, 0.8),
				semChunk("doc-2", 0, 0.7),
				semChunk("doc-2", 1, 0.6),
			}, nil
		},
	}
	an := &mockAnalyzer{fallback: analyze.Analysis{
		Keywords:  []string{"vpn"},
		Embedding: testEmbedding(),
		Intent:    domain.IntentGeneral,
	}}
	cfg := testConfig()
	cfg.RerankEnabled = true
	reranker := &mockReranker{fn: func(_ context.Context, _ string, candidates []domain.Chunk, _ int) ([]domain.Chunk, error) {
		out := make([]domain.Chunk, len(candidates))
		for i, c := range candidates {
			out[len(candidates)-1-i] = c
		}
		return out, nil
	}}
	e := New(cfg, repo, an, reranker, passthroughPacker{}, zap.NewNop())

	res, err := e.Retrieve(context.Background(), domain.Query{
		Text: "vpn setup", Strategy: domain.StrategySemantic, MaxChunks: 2, SimilarityThreshold: 0.5,
	}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !res.Stats.RerankApplied {
		t.Error("RerankApplied not recorded")
	}
	if len(res.Chunks) != 2 {
		t.Fatalf("expected MaxChunks cap, got %d", len(res.Chunks))
	}
	// Reversed order puts the lowest-scored candidates first.
	if res.Chunks[0].SemanticScore != 0.6 {
		t.Errorf("rerank order not applied: %+v", res.Chunks[0])
	}
}

func TestRetrieve_RerankFailureKeepsOrder(t *testing.T) {
	repo := &mockRepo{
		semanticFn: func(_ context.Context, _ []float32, _, _ []string, _ int) ([]domain.Chunk, error) {
			return []domain.Chunk{
				semChunk("doc-1", 0, 0.9),
				semChunk("doc-1", 1, 0.8),
				semChunk("doc-2", 0, 0.7),
			}, nil
		},
	}
	an := &mockAnalyzer{fallback: analyze.Analysis{
		Keywords:  []string{"vpn"},
		Embedding: testEmbedding(),
		Intent:    domain.IntentGeneral,
	}}
	cfg := testConfig()
	cfg.RerankEnabled = true
	reranker := &mockReranker{fn: func(_ context.Context, _ string, _ []domain.Chunk, _ int) ([]domain.Chunk, error) {
		return nil, domain.ErrRerankFailed
	}}
	e := New(cfg, repo, an, reranker, passthroughPacker{}, zap.NewNop())

	res, err := e.Retrieve(context.Background(), domain.Query{
		Text: "vpn setup", Strategy: domain.StrategySemantic, MaxChunks: 2, SimilarityThreshold: 0.5,
	}, nil)
	if err != nil {
		t.Fatalf("rerank failure must be absorbed, got %v", err)
	}

	if res.Stats.RerankApplied {
		t.Error("failed rerank must not be marked applied")
	}
	if res.Chunks[0].SemanticScore != 0.9 {
		t.Errorf("original order lost: %+v", res.Chunks[0])
	}
	found := false
	for _, msg := range res.Stats.AbsorbedErrors {
		if strings.HasPrefix(msg, "rerank:") {
			found = true
		}
	}
	if !found {
		t.Errorf("rerank failure not recorded in stats: %v", res.Stats.AbsorbedErrors)
	}
}

func TestRetrieve_PacksResult(t *testing.T) {
	repo := &mockRepo{
		semanticFn: func(_ context.Context, _ []float32, _, _ []string, _ int) ([]domain.Chunk, error) {
			return []domain.Chunk{semChunk("doc-1", 0, 0.9)}, nil
		},
	}
	an := &mockAnalyzer{fallback: analyze.Analysis{
		Keywords:  []string{"vpn"},
		Embedding: testEmbedding(),
		Intent:    domain.IntentGeneral,
	}}
	e := newTestEngine(t, nil, repo, an)

	res, err := e.Retrieve(context.Background(), domain.Query{Text: "vpn setup"}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.ContextText != "packed" || res.TotalTokens != 1 || len(res.UsedChunks) != 1 {
		t.Errorf("packer output not wired into result: %+v", res)
	}
	if res.Stats.RetrievalID == "" {
		t.Error("missing retrieval id")
	}
	if res.Stats.Strategy != domain.StrategyHybrid {
		t.Errorf("empty strategy must default to hybrid, got %s", res.Stats.Strategy)
	}
}
