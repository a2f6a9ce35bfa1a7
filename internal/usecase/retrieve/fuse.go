package retrieve

import (
	"sort"

	"github.com/contexta-cloud/contexta/internal/config"
	"github.com/contexta-cloud/contexta/internal/domain"
)

// fuse merges the per-strategy result lists into a single deduplicated
// candidate list. A chunk seen by several strategies keeps the best score
// from each and is promoted to the hybrid search type; its combined score
// is the weighted sum of the per-strategy scores so multi-source agreement
// always outranks a single strong source.
func fuse(cfg *config.RetrievalConfig, results []sourceResult) []domain.Chunk {
	merged := make(map[domain.ChunkKey]*domain.Chunk)
	order := make([]domain.ChunkKey, 0)
	sources := make(map[domain.ChunkKey]int)

	for _, res := range results {
		seen := make(map[domain.ChunkKey]bool, len(res.chunks))
		for i := range res.chunks {
			c := &res.chunks[i]
			key := c.Key()

			existing, ok := merged[key]
			if !ok {
				clone := c.Clone()
				merged[key] = &clone
				order = append(order, key)
				sources[key] = 1
				seen[key] = true
				continue
			}

			mergeScores(existing, c)
			if !seen[key] {
				sources[key]++
				seen[key] = true
			}
		}
	}

	out := make([]domain.Chunk, 0, len(order))
	for _, key := range order {
		c := merged[key]
		if sources[key] > 1 {
			c.SearchType = domain.SearchHybrid
		}
		c.CombinedScore = c.SemanticScore*cfg.SemanticWeight +
			c.KeywordScore*cfg.KeywordWeight +
			c.FulltextScore*cfg.FulltextWeight
		out = append(out, *c)
	}

	sortByScore(out)
	return out
}

// mergeScores folds src's per-strategy scores into dst, keeping the maximum
// of each. Duplicates inside one source list are folded the same way.
func mergeScores(dst, src *domain.Chunk) {
	if src.SemanticScore > dst.SemanticScore {
		dst.SemanticScore = src.SemanticScore
	}
	if src.KeywordScore > dst.KeywordScore {
		dst.KeywordScore = src.KeywordScore
	}
	if src.FulltextScore > dst.FulltextScore {
		dst.FulltextScore = src.FulltextScore
	}
	if dst.Content == "" && src.Content != "" {
		dst.Content = src.Content
		dst.Page = src.Page
		dst.Keywords = src.Keywords
		dst.Entities = src.Entities
	}
}

// sortByScore orders chunks by combined score descending with a stable
// (documentID, index) tie-break so equal scores rank deterministically.
func sortByScore(chunks []domain.Chunk) {
	sort.SliceStable(chunks, func(i, j int) bool {
		if chunks[i].CombinedScore != chunks[j].CombinedScore {
			return chunks[i].CombinedScore > chunks[j].CombinedScore
		}
		if chunks[i].DocumentID != chunks[j].DocumentID {
			return chunks[i].DocumentID < chunks[j].DocumentID
		}
		return chunks[i].Index < chunks[j].Index
	})
}
