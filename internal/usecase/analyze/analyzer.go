package analyze

import (
	"context"
	"strings"
	"unicode"

	"go.uber.org/zap"

	"github.com/contexta-cloud/contexta/internal/domain"
)

// maxSynonyms bounds the synonym expansion so recall help never turns into
// query explosion.
const maxSynonyms = 3

// maxCoreTerms bounds the high-signal token set scored double downstream.
const maxCoreTerms = 5

// coreTermMaxRunes is the length cutoff for a raw token to count as "short".
const coreTermMaxRunes = 4

// Analysis is the analyzer output consumed by the retrieval engine.
type Analysis struct {
	Keywords  []string
	CoreTerms []string
	Entities  []string
	Embedding []float32 // nil when embedding was skipped or failed
	Intent    domain.Intent
}

// Analyzer turns raw query text into keywords, core terms, an intent label
// and optionally a dense embedding.
type Analyzer struct {
	embed   domain.Embedder // nil disables the semantic leg entirely
	exclude map[string]struct{}
	logger  *zap.Logger
}

// New creates an analyzer. excludeTerms extends the built-in stop-word list
// with deployment-specific boilerplate.
func New(embed domain.Embedder, excludeTerms []string, logger *zap.Logger) *Analyzer {
	exclude := make(map[string]struct{}, len(excludeTerms))
	for _, t := range excludeTerms {
		exclude[strings.ToLower(t)] = struct{}{}
	}
	return &Analyzer{embed: embed, exclude: exclude, logger: logger}
}

// Analyze extracts keywords and intent, then embeds the text. An embedding
// failure is non-fatal: semantic retrieval is skipped downstream, the rest of
// the pipeline proceeds.
func (a *Analyzer) Analyze(ctx context.Context, text string) Analysis {
	an := Analysis{
		Keywords:  a.extractKeywords(text),
		CoreTerms: a.extractCoreTerms(text),
		Entities:  extractEntities(text),
		Intent:    classifyIntent(text),
	}

	if a.embed != nil {
		result, err := a.embed.Embed(ctx, text)
		if err != nil {
			a.logger.Warn("Embedding failed, semantic retrieval will be skipped", zap.Error(err))
		} else {
			an.Embedding = result.Embedding
		}
	}

	return an
}

// Terms extracts keywords only, without embedding or intent work. Used for
// cheap passes over conversation history.
func (a *Analyzer) Terms(text string) []string {
	return a.extractKeywords(text)
}

// extractKeywords tokenizes, drops stop-words, splits known compounds and
// adds a bounded synonym expansion.
func (a *Analyzer) extractKeywords(text string) []string {
	tokens := tokenize(text)

	seen := make(map[string]struct{}, len(tokens))
	keywords := make([]string, 0, len(tokens))
	add := func(w string) {
		if w == "" || a.isStopWord(w) {
			return
		}
		if _, dup := seen[w]; dup {
			return
		}
		seen[w] = struct{}{}
		keywords = append(keywords, w)
	}

	for _, tok := range tokens {
		add(tok)
		for _, part := range compoundSplits[tok] {
			add(part)
		}
	}

	// Synonyms come last so exact query terms always rank first.
	added := 0
	for _, tok := range tokens {
		if added >= maxSynonyms {
			break
		}
		for _, syn := range synonyms[tok] {
			if added >= maxSynonyms {
				break
			}
			before := len(keywords)
			add(syn)
			if len(keywords) > before {
				added++
			}
		}
	}

	return keywords
}

// extractCoreTerms picks short, high-signal tokens straight from the raw
// query: short lowercase tokens and acronyms, stop-words excluded.
func (a *Analyzer) extractCoreTerms(text string) []string {
	seen := make(map[string]struct{})
	var core []string

	for _, raw := range strings.Fields(text) {
		trimmed := strings.TrimFunc(raw, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsNumber(r)
		})
		if trimmed == "" {
			continue
		}

		// Caseless scripts are never acronyms: require an actual case change.
		isAcronym := trimmed == strings.ToUpper(trimmed) && trimmed != strings.ToLower(trimmed)
		short := len([]rune(trimmed)) <= coreTermMaxRunes

		if !isAcronym && !short {
			continue
		}

		w := strings.ToLower(trimmed)
		if a.isStopWord(w) {
			continue
		}
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		core = append(core, w)

		if len(core) >= maxCoreTerms {
			break
		}
	}
	return core
}

func (a *Analyzer) isStopWord(w string) bool {
	if _, ok := stopWords[w]; ok {
		return true
	}
	_, ok := a.exclude[w]
	return ok
}

// tokenize lowercases and splits on anything that is not a letter or a digit.
func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if len([]rune(f)) >= 2 {
			out = append(out, f)
		}
	}
	return out
}

// extractEntities keeps capitalized non-leading words as crude named entities.
func extractEntities(text string) []string {
	words := strings.Fields(text)
	var entities []string
	for i, word := range words {
		if i == 0 {
			continue
		}
		trimmed := strings.TrimFunc(word, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsNumber(r)
		})
		if len(trimmed) > 1 && unicode.IsUpper([]rune(trimmed)[0]) {
			entities = append(entities, trimmed)
		}
	}
	return entities
}

// classifyIntent labels the query from keyword and punctuation heuristics.
// The label only tunes which validators run later; it never blocks retrieval.
func classifyIntent(text string) domain.Intent {
	lower := strings.ToLower(strings.TrimSpace(text))

	for _, marker := range procedureMarkers {
		if strings.Contains(lower, marker) {
			return domain.IntentProcedure
		}
	}

	if strings.HasSuffix(lower, "?") {
		return domain.IntentQuestion
	}
	for _, marker := range questionMarkers {
		if strings.HasPrefix(lower, marker+" ") || strings.HasSuffix(lower, marker) {
			return domain.IntentQuestion
		}
	}

	for _, marker := range informationMarkers {
		if strings.Contains(lower, marker) {
			return domain.IntentInformation
		}
	}

	return domain.IntentGeneral
}
