package retrieve

import (
	"context"

	"github.com/contexta-cloud/contexta/internal/config"
	"github.com/contexta-cloud/contexta/internal/domain"
)

// Source names used in stats and metrics.
const (
	sourceSemantic = "semantic"
	sourceKeyword  = "keyword"
	sourceFulltext = "fulltext"
)

// passRequest carries one pass's inputs to every strategy retriever.
type passRequest struct {
	query     *domain.Query
	keywords  []string
	coreTerms []string
	embedding []float32
	threshold float64
	fanout    int // per-source store fan-out
}

// sourceResult is one retriever's outcome. Errors are reported, never thrown
// past the pipeline boundary: the engine logs them and degrades the source to
// an empty contribution.
type sourceResult struct {
	source   string
	chunks   []domain.Chunk
	attempts int
	skipped  bool
	err      error
}

// retriever is one strategy leg of the fan-out. The set is closed: semantic,
// keyword, fulltext.
type retriever interface {
	source() string
	retrieve(ctx context.Context, req *passRequest) sourceResult
}

// semanticRetriever filters KNN hits by the adaptive threshold, relaxing it
// by a fixed step on empty results. A retrieval must not silently return
// nothing just because the strictest attempt failed.
type semanticRetriever struct {
	repo Repository
	cfg  *config.RetrievalConfig
}

func (r *semanticRetriever) source() string { return sourceSemantic }

func (r *semanticRetriever) retrieve(ctx context.Context, req *passRequest) sourceResult {
	res := sourceResult{source: sourceSemantic}

	if len(req.embedding) == 0 {
		res.skipped = true
		return res
	}

	q := req.query
	threshold := req.threshold

	for attempt := 1; attempt <= r.cfg.MaxSemanticAttempts; attempt++ {
		res.attempts = attempt

		chunks, err := r.repo.SemanticSearch(ctx, req.embedding, q.ContainerIDs, q.DocumentIDs, req.fanout)
		if err != nil {
			res.err = err
			return res
		}

		kept := chunks[:0]
		for _, c := range chunks {
			if c.SemanticScore >= threshold {
				kept = append(kept, c)
			}
		}
		if len(kept) > 0 {
			res.chunks = kept
			return res
		}

		// Step down; the last attempt goes all the way to the floor so any
		// chunk above the floor is eventually surfaced.
		threshold -= r.cfg.RelaxationStep
		if threshold < r.cfg.ThresholdFloor || attempt == r.cfg.MaxSemanticAttempts-1 {
			threshold = r.cfg.ThresholdFloor
		}
	}

	return res
}

// keywordRetriever ranks chunks by substring keyword matches.
type keywordRetriever struct {
	repo Repository
}

func (r *keywordRetriever) source() string { return sourceKeyword }

func (r *keywordRetriever) retrieve(ctx context.Context, req *passRequest) sourceResult {
	res := sourceResult{source: sourceKeyword}

	if len(req.keywords) == 0 && len(req.coreTerms) == 0 {
		res.skipped = true
		return res
	}

	q := req.query
	chunks, err := r.repo.KeywordSearch(ctx, req.keywords, req.coreTerms, q.ContainerIDs, q.DocumentIDs, req.fanout)
	if err != nil {
		res.err = err
		return res
	}
	res.chunks = chunks
	return res
}

// fulltextRetriever ranks whole documents on the stemmed index per language
// and fans out to keyword-bearing chunks of the ranked documents.
type fulltextRetriever struct {
	repo      Repository
	languages []string
}

func (r *fulltextRetriever) source() string { return sourceFulltext }

func (r *fulltextRetriever) retrieve(ctx context.Context, req *passRequest) sourceResult {
	res := sourceResult{source: sourceFulltext}

	if len(req.keywords) == 0 {
		res.skipped = true
		return res
	}

	q := req.query
	chunks, err := r.repo.FulltextSearch(ctx, req.keywords, req.keywords, r.languages,
		q.ContainerIDs, q.DocumentIDs, req.fanout)
	if err != nil {
		res.err = err
		return res
	}
	res.chunks = chunks
	return res
}
