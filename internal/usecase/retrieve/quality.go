package retrieve

import (
	"strings"

	"github.com/contexta-cloud/contexta/internal/config"
	"github.com/contexta-cloud/contexta/internal/domain"
)

// foreignTermPenalty is applied to a chunk's combined score when it carries
// strong terms from a topic domain other than the query's.
const foreignTermPenalty = 0.8

// topicDomains is a coarse, bilingual term table used to detect gross topic
// mismatch between a query and a candidate chunk. It is intentionally small:
// the validator only has to catch chunks from a clearly different domain, the
// score fusion handles everything subtler.
var topicDomains = map[string][]string{
	"it_support": {
		"vpn", "wifi", "network", "login", "password", "account", "server",
		"install", "error", "printer",
		"로그인", "비밀번호", "계정", "네트워크", "설치", "오류", "프린터", "서버",
	},
	"hr": {
		"vacation", "leave", "salary", "payroll", "recruit", "onboarding",
		"attendance", "benefit",
		"휴가", "연차", "급여", "채용", "인사", "근태", "복지",
	},
	"finance": {
		"payment", "invoice", "budget", "expense", "refund", "billing", "tax",
		"결제", "예산", "비용", "환불", "정산", "세금", "청구",
	},
	"facilities": {
		"meeting", "room", "seat", "parking", "building", "badge",
		"회의실", "좌석", "주차", "출입", "사옥",
	},
}

// classifyDomain picks the topic domain whose term table overlaps the query
// keywords the most. Empty string means no domain detected and the validator
// does not run.
func classifyDomain(keywords []string) string {
	best := ""
	bestHits := 0
	for name, terms := range topicDomains {
		hits := 0
		for _, kw := range keywords {
			lower := strings.ToLower(kw)
			for _, term := range terms {
				if lower == term {
					hits++
					break
				}
			}
		}
		if hits > bestHits || (hits == bestHits && hits > 0 && name < best) {
			best = name
			bestHits = hits
		}
	}
	return best
}

// validateDomain drops chunks with no term from the query's detected domain
// and penalizes chunks carrying terms from other domains. Fail-open: when no
// domain is detected, or the filter would remove more than the configured
// guard ratio of candidates, the input is returned untouched.
func validateDomain(cfg *config.RetrievalConfig, keywords []string, chunks []domain.Chunk) ([]domain.Chunk, bool) {
	if len(chunks) == 0 {
		return chunks, false
	}
	queryDomain := classifyDomain(keywords)
	if queryDomain == "" {
		return chunks, false
	}

	kept := make([]domain.Chunk, 0, len(chunks))
	for _, c := range chunks {
		content := strings.ToLower(c.Content)
		if !containsAnyTerm(content, topicDomains[queryDomain]) {
			continue
		}
		if hasForeignTerm(content, queryDomain) {
			c.CombinedScore *= foreignTermPenalty
		}
		kept = append(kept, c)
	}

	removed := float64(len(chunks)-len(kept)) / float64(len(chunks))
	if removed > cfg.OverFilterGuard {
		return chunks, false
	}

	sortByScore(kept)
	return kept, true
}

func containsAnyTerm(content string, terms []string) bool {
	for _, term := range terms {
		if strings.Contains(content, term) {
			return true
		}
	}
	return false
}

func hasForeignTerm(content, ownDomain string) bool {
	for name, terms := range topicDomains {
		if name == ownDomain {
			continue
		}
		if containsAnyTerm(content, terms) {
			return true
		}
	}
	return false
}

// applyCutline drops the low-score tail below max(floor, min(0.9·max, median)).
// The floor is lower under scope filters because the pool is already narrow.
// The cut is abandoned when it would leave fewer than MaxChunks·MinKeepMultiple
// candidates, so a tight distribution never collapses the result.
func applyCutline(cfg *config.RetrievalConfig, chunks []domain.Chunk, scoped bool, maxChunks int) ([]domain.Chunk, bool) {
	if len(chunks) == 0 {
		return chunks, false
	}

	floor := cfg.CutlineFloor
	if scoped {
		floor = cfg.ScopedCutlineFloor
	}

	top := chunks[0].CombinedScore
	cut := 0.9 * top
	if med := medianScore(chunks); med < cut {
		cut = med
	}
	if cut < floor {
		cut = floor
	}

	kept := make([]domain.Chunk, 0, len(chunks))
	for _, c := range chunks {
		if c.CombinedScore >= cut {
			kept = append(kept, c)
		}
	}

	if len(kept) < maxChunks*cfg.MinKeepMultiple && len(kept) < len(chunks) {
		return chunks, false
	}
	return kept, true
}

// medianScore assumes chunks are already sorted by combined score.
func medianScore(chunks []domain.Chunk) float64 {
	n := len(chunks)
	if n%2 == 1 {
		return chunks[n/2].CombinedScore
	}
	return (chunks[n/2-1].CombinedScore + chunks[n/2].CombinedScore) / 2
}
