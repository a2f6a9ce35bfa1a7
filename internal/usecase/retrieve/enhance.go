package retrieve

import (
	"strings"

	"github.com/contexta-cloud/contexta/internal/config"
	"github.com/contexta-cloud/contexta/internal/domain"
)

// maxEnhanceTerms caps how many history keywords are appended to the query.
// Appending more drifts the query away from its literal intent.
const maxEnhanceTerms = 3

// enhanceQuery builds an enhanced query text from recent user turns. The
// enhanced text equals the original when history is empty, topic continuity
// falls below the configured minimum, or history adds no new keywords. The
// returned meta always carries the continuity score and accumulated keywords;
// the engine flips ContextUsed only after the enhanced pass wins.
func enhanceQuery(cfg *config.RetrievalConfig, an Analyzer, queryText string, history []domain.Turn) (string, domain.ConversationContextMeta) {
	meta := domain.ConversationContextMeta{}

	historyKeywords := collectHistoryKeywords(an, history, cfg.HistoryTurns)
	if len(historyKeywords) == 0 {
		return queryText, meta
	}
	meta.Keywords = historyKeywords

	queryKeywords := an.Terms(queryText)
	meta.TopicContinuity = topicContinuity(queryKeywords, historyKeywords)
	if meta.TopicContinuity < cfg.MinTopicContinuity {
		return queryText, meta
	}

	fresh := newTerms(historyKeywords, queryKeywords, maxEnhanceTerms)
	if len(fresh) == 0 {
		return queryText, meta
	}

	enhanced := queryText + " " + strings.Join(fresh, " ")
	meta.EnhancedQuery = enhanced
	return enhanced, meta
}

// collectHistoryKeywords extracts deduplicated terms from the last maxTurns
// user turns, oldest first. Assistant turns are ignored: they echo retrieved
// content and would reinforce whatever the previous pass found.
func collectHistoryKeywords(an Analyzer, history []domain.Turn, maxTurns int) []string {
	userTurns := make([]domain.Turn, 0, len(history))
	for _, t := range history {
		if t.Role == domain.RoleUser {
			userTurns = append(userTurns, t)
		}
	}
	if maxTurns > 0 && len(userTurns) > maxTurns {
		userTurns = userTurns[len(userTurns)-maxTurns:]
	}

	seen := make(map[string]bool)
	var keywords []string
	for _, t := range userTurns {
		for _, term := range an.Terms(t.Content) {
			if seen[term] {
				continue
			}
			seen[term] = true
			keywords = append(keywords, term)
		}
	}
	return keywords
}

// topicContinuity measures how much of the query's vocabulary the history
// shares. A query with no extractable keywords but a keyword-bearing history
// is treated as a pure follow-up ("and then?", "그건요?") and scores 1.
func topicContinuity(queryKeywords, historyKeywords []string) float64 {
	if len(queryKeywords) == 0 {
		return 1.0
	}
	inHistory := make(map[string]bool, len(historyKeywords))
	for _, kw := range historyKeywords {
		inHistory[kw] = true
	}
	overlap := 0
	for _, kw := range queryKeywords {
		if inHistory[kw] {
			overlap++
		}
	}
	return float64(overlap) / float64(len(queryKeywords))
}

// newTerms returns up to limit history keywords absent from the query.
func newTerms(historyKeywords, queryKeywords []string, limit int) []string {
	inQuery := make(map[string]bool, len(queryKeywords))
	for _, kw := range queryKeywords {
		inQuery[kw] = true
	}
	var fresh []string
	for _, kw := range historyKeywords {
		if inQuery[kw] {
			continue
		}
		fresh = append(fresh, kw)
		if len(fresh) == limit {
			break
		}
	}
	return fresh
}
