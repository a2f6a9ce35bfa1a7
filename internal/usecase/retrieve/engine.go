package retrieve

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/contexta-cloud/contexta/internal/config"
	"github.com/contexta-cloud/contexta/internal/domain"
	"github.com/contexta-cloud/contexta/internal/metrics"
)

// Engine is the retrieval pipeline: analyze, fan out to the strategy
// retrievers, fuse, quality-gate, optionally rerank, pack. It holds no
// per-call state; one Engine serves concurrent Retrieve calls.
type Engine struct {
	cfg      *config.RetrievalConfig
	analyzer Analyzer
	semantic retriever
	keyword  retriever
	fulltext retriever
	reranker Reranker
	packer   Packer
	logger   *zap.Logger
}

// New wires the engine. reranker may be nil; reranking is then skipped even
// when enabled in config.
func New(cfg *config.RetrievalConfig, repo Repository, an Analyzer, reranker Reranker, packer Packer, logger *zap.Logger) *Engine {
	return &Engine{
		cfg:      cfg,
		analyzer: an,
		semantic: &semanticRetriever{repo: repo, cfg: cfg},
		keyword:  &keywordRetriever{repo: repo},
		fulltext: &fulltextRetriever{repo: repo, languages: cfg.Languages},
		reranker: reranker,
		packer:   packer,
		logger:   logger,
	}
}

// passOutcome is the result of one full analyze-retrieve-fuse-filter pass.
type passOutcome struct {
	candidates       []domain.Chunk
	results          []sourceResult
	intent           domain.Intent
	fusedCount       int
	semanticHits     int
	attempts         int
	domainApplied    bool
	cutApplied       bool
	embeddingSkipped bool
}

// Retrieve runs the full pipeline for one query. Dependency failures below
// this call are absorbed into a degraded result and recorded in Stats; only
// an invalid query or the failure of every strategy source returns an error.
func (e *Engine) Retrieve(ctx context.Context, q domain.Query, history []domain.Turn) (*domain.RetrievalResult, error) {
	start := time.Now()

	if err := q.Validate(); err != nil {
		metrics.RetrievalRequestsTotal.WithLabelValues(string(q.Strategy), "invalid").Inc()
		return nil, err
	}
	strategy, _ := domain.ParseStrategy(string(q.Strategy))
	q.Strategy = strategy

	maxChunks := q.MaxChunks
	if maxChunks <= 0 {
		maxChunks = e.cfg.MaxChunks
	}
	budget := q.ContextTokenBudget
	if budget <= 0 {
		budget = e.cfg.ContextTokenBudget
	}
	fanout := maxChunks * e.cfg.CandidateMultiple

	enhanced, ctxMeta := enhanceQuery(e.cfg, e.analyzer, q.Text, history)

	activeQuery := q
	pass := e.runPass(ctx, &activeQuery, strategy, maxChunks, fanout)

	// The original query is ground truth. The enhanced query only replaces
	// it when the original produced zero semantic hits and the enhanced pass
	// demonstrably does better.
	if pass.semanticHits == 0 && enhanced != q.Text {
		enhancedQuery := q.WithText(enhanced)
		second := e.runPass(ctx, &enhancedQuery, strategy, maxChunks, fanout)
		if second.semanticHits > 0 {
			activeQuery = enhancedQuery
			pass = second
			ctxMeta.ContextUsed = true
			e.logger.Info("enhanced query adopted",
				zap.String("original", q.Text),
				zap.String("enhanced", enhanced),
				zap.Int("semantic_hits", second.semanticHits))
		}
	}

	stats := domain.RetrievalStats{
		RetrievalID:         uuid.NewString(),
		Strategy:            strategy,
		Intent:              pass.intent,
		Threshold:           e.thresholdFor(&activeQuery),
		SemanticAttempts:    pass.attempts,
		CandidatesFused:     pass.fusedCount,
		CandidatesFiltered:  len(pass.candidates),
		DomainFilterApplied: pass.domainApplied,
		CutlineApplied:      pass.cutApplied,
		EmbeddingSkipped:    pass.embeddingSkipped,
	}

	ran, failed := 0, 0
	for _, res := range pass.results {
		if res.skipped {
			continue
		}
		ran++
		if res.err != nil {
			failed++
			stats.SourcesFailed = append(stats.SourcesFailed, res.source)
			stats.AbsorbedErrors = append(stats.AbsorbedErrors,
				fmt.Sprintf("%s: %v", res.source, res.err))
			metrics.RetrievalSourceFailures.WithLabelValues(res.source).Inc()
			e.logger.Warn("strategy source degraded",
				zap.String("source", res.source), zap.Error(res.err))
		}
	}
	if ran > 0 && failed == ran {
		metrics.RetrievalRequestsTotal.WithLabelValues(string(strategy), "error").Inc()
		return nil, fmt.Errorf("%w: all strategy sources failed", domain.ErrStoreUnavailable)
	}

	ranked := pass.candidates
	if e.cfg.RerankEnabled && e.reranker != nil && len(ranked) > maxChunks {
		ranked = e.rerank(ctx, activeQuery.Text, ranked, maxChunks, &stats)
	}

	if len(ranked) > maxChunks {
		ranked = ranked[:maxChunks]
	}

	result := &domain.RetrievalResult{
		Chunks:  ranked,
		Context: ctxMeta,
	}
	if len(ranked) > 0 {
		packed := e.packer.Pack(ranked, budget)
		result.ContextText = packed.ContextText
		result.TotalTokens = packed.TotalTokens
		result.UsedChunks = packed.Used
	}

	stats.Elapsed = time.Since(start)
	result.Stats = stats

	metrics.RetrievalRequestsTotal.WithLabelValues(string(strategy), "success").Inc()
	metrics.RetrievalDuration.WithLabelValues("total").Observe(stats.Elapsed.Seconds())
	metrics.RetrievalCandidates.WithLabelValues("fused").Observe(float64(pass.fusedCount))
	metrics.RetrievalCandidates.WithLabelValues("final").Observe(float64(len(ranked)))
	e.logger.Info("retrieval complete",
		zap.String("retrieval_id", stats.RetrievalID),
		zap.String("strategy", string(strategy)),
		zap.Int("fused", pass.fusedCount),
		zap.Int("returned", len(ranked)),
		zap.Duration("elapsed", stats.Elapsed))

	return result, nil
}

// runPass analyzes the query, fans the selected retrievers out concurrently
// and applies fusion and the quality gate. Retriever errors stay inside the
// returned sourceResults.
func (e *Engine) runPass(ctx context.Context, q *domain.Query, strategy domain.Strategy, maxChunks, fanout int) passOutcome {
	analysis := e.analyzer.Analyze(ctx, q.Text)

	req := &passRequest{
		query:     q,
		keywords:  analysis.Keywords,
		coreTerms: analysis.CoreTerms,
		embedding: analysis.Embedding,
		threshold: e.thresholdFor(q),
		fanout:    fanout,
	}

	retrievers := e.selectRetrievers(strategy)
	results := make([]sourceResult, len(retrievers))

	g, gctx := errgroup.WithContext(ctx)
	for i, r := range retrievers {
		g.Go(func() error {
			results[i] = r.retrieve(gctx, req)
			return nil
		})
	}
	_ = g.Wait() // goroutines report through their result slot

	out := passOutcome{results: results, intent: analysis.Intent}
	for _, res := range results {
		if res.source == sourceSemantic {
			out.semanticHits = len(res.chunks)
			out.attempts = res.attempts
			out.embeddingSkipped = res.skipped
		}
	}

	fused := fuse(e.cfg, results)
	out.fusedCount = len(fused)

	candidates := fused
	if runDomainValidator(analysis.Intent) {
		candidates, out.domainApplied = validateDomain(e.cfg, analysis.Keywords, candidates)
	}
	candidates, out.cutApplied = applyCutline(e.cfg, candidates, q.Scoped(), maxChunks)
	out.candidates = candidates
	return out
}

func (e *Engine) selectRetrievers(strategy domain.Strategy) []retriever {
	switch strategy {
	case domain.StrategySemantic:
		return []retriever{e.semantic}
	case domain.StrategyKeyword:
		return []retriever{e.keyword}
	case domain.StrategyFulltext:
		return []retriever{e.fulltext}
	default:
		return []retriever{e.semantic, e.keyword, e.fulltext}
	}
}

// thresholdFor resolves the similarity threshold for a query: an explicit
// per-query override wins, otherwise the adaptive table applies.
func (e *Engine) thresholdFor(q *domain.Query) float64 {
	if q.SimilarityThreshold > 0 {
		return q.SimilarityThreshold
	}
	return thresholdFor(e.cfg, utf8.RuneCountInString(q.Text),
		len(q.ContainerIDs) > 0, len(q.DocumentIDs) > 0)
}

// rerank reorders the shortlist via the reranker, absorbing failures. Only
// the first RerankMaxCandidates entries are sent; the remainder keeps its
// fused order behind them.
func (e *Engine) rerank(ctx context.Context, queryText string, ranked []domain.Chunk, maxChunks int, stats *domain.RetrievalStats) []domain.Chunk {
	capped := ranked
	var tail []domain.Chunk
	if len(capped) > e.cfg.RerankMaxCandidates {
		capped = ranked[:e.cfg.RerankMaxCandidates]
		tail = ranked[e.cfg.RerankMaxCandidates:]
	}

	reordered, err := e.reranker.Rerank(ctx, queryText, capped, maxChunks)
	if err != nil {
		stats.AbsorbedErrors = append(stats.AbsorbedErrors, fmt.Sprintf("rerank: %v", err))
		e.logger.Warn("rerank degraded, keeping fused order", zap.Error(err))
		return ranked
	}
	stats.RerankApplied = true
	return append(reordered, tail...)
}

// runDomainValidator gates the topic-mismatch filter on intent: fact-seeking
// queries benefit from it, procedural and catch-all queries often mention
// cross-domain tools and would be over-filtered.
func runDomainValidator(intent domain.Intent) bool {
	return intent == domain.IntentQuestion || intent == domain.IntentInformation
}
