package contextpack

import (
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"
	"go.uber.org/zap"

	"github.com/contexta-cloud/contexta/internal/domain"
)

// First-chunk-oversize rule: a top chunk that alone would eat more than
// firstChunkMaxShare of the budget is truncated to firstChunkKeepShare,
// leaving room for at least one more chunk below it.
const (
	firstChunkMaxShare  = 0.8
	firstChunkKeepShare = 0.6
)

// headerSeparator joins packed sections. The round-trip split in tests and
// downstream consumers depends on it.
const headerSeparator = "\n\n"

// Packed is the assembled context window.
type Packed struct {
	ContextText string
	TotalTokens int
	Used        []domain.Chunk
}

// Packer greedily fills a token budget from a ranked chunk list. Token
// counts come from a tiktoken encoding when one is configured and from a
// per-script heuristic otherwise.
type Packer struct {
	enc      *tiktoken.Tiktoken
	overhead int
	logger   *zap.Logger
}

// New creates a packer. encoding is a tiktoken encoding name ("cl100k_base",
// "o200k_base", ...); empty selects the heuristic. A failed encoding load
// degrades to the heuristic with a warning rather than failing startup.
func New(encoding string, chunkOverhead int, logger *zap.Logger) *Packer {
	p := &Packer{overhead: chunkOverhead, logger: logger}
	if encoding == "" {
		return p
	}
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		logger.Warn("tiktoken encoding unavailable, using heuristic token counts",
			zap.String("encoding", encoding), zap.Error(err))
		return p
	}
	p.enc = enc
	return p
}

// Pack accepts chunks in rank order until the budget would be exceeded.
// Accepted chunks keep their rank order in Used; each packed section carries
// an index/source/score header so downstream output can attribute statements
// to a source. Input chunks are never mutated; truncation works on a copy.
func (p *Packer) Pack(ranked []domain.Chunk, tokenBudget int) Packed {
	var (
		sections []string
		used     []domain.Chunk
		total    int
	)

	for i := range ranked {
		c := ranked[i].Clone()
		cost := p.CountTokens(c.Content) + p.overhead

		if len(used) == 0 && float64(cost) > firstChunkMaxShare*float64(tokenBudget) {
			target := int(firstChunkKeepShare * float64(tokenBudget))
			c.Content = p.truncate(c.Content, target-p.overhead)
			cost = p.CountTokens(c.Content) + p.overhead
			if p.logger != nil {
				p.logger.Debug("truncated oversized top chunk",
					zap.String("document_id", c.DocumentID),
					zap.Int("chunk_index", c.Index),
					zap.Int("tokens", cost))
			}
		}

		if total+cost > tokenBudget {
			if len(used) == 0 {
				// Even truncated it does not fit; an empty context helps nobody.
				continue
			}
			break
		}

		sections = append(sections, sectionHeader(len(used)+1, &c)+"\n"+c.Content)
		used = append(used, c)
		total += cost
	}

	return Packed{
		ContextText: strings.Join(sections, headerSeparator),
		TotalTokens: total,
		Used:        used,
	}
}

// CountTokens returns the token count for s under the configured encoding,
// or the heuristic estimate when none is loaded.
func (p *Packer) CountTokens(s string) int {
	if p.enc != nil {
		return len(p.enc.Encode(s, nil, nil))
	}
	return estimateTokens(s)
}

// truncate cuts s down to at most target tokens.
func (p *Packer) truncate(s string, target int) string {
	if target <= 0 {
		return ""
	}
	if p.enc != nil {
		ids := p.enc.Encode(s, nil, nil)
		if len(ids) <= target {
			return s
		}
		return p.enc.Decode(ids[:target])
	}

	// Proportional rune cut against the heuristic estimate.
	est := estimateTokens(s)
	if est <= target {
		return s
	}
	runes := []rune(s)
	keep := len(runes) * target / est
	if keep >= len(runes) {
		keep = len(runes) - 1
	}
	return string(runes[:keep])
}

// sectionHeader renders the attribution line above each packed chunk.
func sectionHeader(position int, c *domain.Chunk) string {
	header := fmt.Sprintf("[%d] %s#%d (score %.2f)", position, c.DocumentID, c.Index, c.CombinedScore)
	if c.Page != "" {
		header += " p." + c.Page
	}
	return header
}
