package contextpack

import (
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/contexta-cloud/contexta/internal/domain"
)

func newTestPacker(overhead int) *Packer {
	return New("", overhead, zap.NewNop())
}

func chunkWithContent(docID string, idx int, content string, score float64) domain.Chunk {
	return domain.Chunk{
		DocumentID:    docID,
		Index:         idx,
		Content:       content,
		SearchType:    domain.SearchSemantic,
		CombinedScore: score,
	}
}

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want int
	}{
		{"empty", "", 0},
		{"ascii 40 runes", strings.Repeat("abcd", 10), 10},
		{"korean 10 runes", strings.Repeat("가", 10), 5},
		{"mixed", strings.Repeat("가", 4) + strings.Repeat("a", 8), 4},
		{"short never zero", "ab", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := estimateTokens(tt.in); got != tt.want {
				t.Errorf("estimateTokens(%q) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestPack_AllFit(t *testing.T) {
	p := newTestPacker(2)
	ranked := []domain.Chunk{
		chunkWithContent("doc-1", 0, strings.Repeat("abcd", 10), 0.9),
		chunkWithContent("doc-2", 3, strings.Repeat("efgh", 10), 0.8),
	}

	packed := p.Pack(ranked, 100)

	if len(packed.Used) != 2 {
		t.Fatalf("expected 2 used chunks, got %d", len(packed.Used))
	}
	if packed.TotalTokens != 24 {
		t.Errorf("expected 24 total tokens, got %d", packed.TotalTokens)
	}
	if !strings.Contains(packed.ContextText, "[1] doc-1#0 (score 0.90)") {
		t.Errorf("missing first header in context: %q", packed.ContextText)
	}
	if !strings.Contains(packed.ContextText, "[2] doc-2#3 (score 0.80)") {
		t.Errorf("missing second header in context: %q", packed.ContextText)
	}
}

func TestPack_StopsAtBudget(t *testing.T) {
	p := newTestPacker(2)
	ranked := []domain.Chunk{
		chunkWithContent("doc-1", 0, strings.Repeat("abcd", 10), 0.9), // 12 tokens
		chunkWithContent("doc-2", 0, strings.Repeat("abcd", 10), 0.8), // 12 tokens
		chunkWithContent("doc-3", 0, strings.Repeat("abcd", 10), 0.7), // would exceed
	}

	packed := p.Pack(ranked, 30)

	if len(packed.Used) != 2 {
		t.Fatalf("expected 2 used chunks, got %d", len(packed.Used))
	}
	if packed.TotalTokens > 30 {
		t.Errorf("total tokens %d exceed budget", packed.TotalTokens)
	}
	if packed.Used[0].DocumentID != "doc-1" || packed.Used[1].DocumentID != "doc-2" {
		t.Errorf("used chunks are not the rank-order prefix: %+v", packed.Used)
	}
}

func TestPack_TruncatesOversizedFirstChunk(t *testing.T) {
	p := newTestPacker(2)
	big := strings.Repeat("abcd", 100) // 100 tokens, over 80% of budget 100
	ranked := []domain.Chunk{
		chunkWithContent("doc-1", 0, big, 0.9),
		chunkWithContent("doc-2", 0, strings.Repeat("abcd", 10), 0.8),
	}

	packed := p.Pack(ranked, 100)

	if len(packed.Used) != 2 {
		t.Fatalf("expected truncation to leave room for a second chunk, got %d used", len(packed.Used))
	}
	if len(packed.Used[0].Content) >= len(big) {
		t.Error("first chunk was not truncated")
	}
	if packed.TotalTokens > 100 {
		t.Errorf("total tokens %d exceed budget", packed.TotalTokens)
	}
	// The input list stays untouched.
	if ranked[0].Content != big {
		t.Error("input chunk was mutated by truncation")
	}
}

func TestPack_RoundTrip(t *testing.T) {
	p := newTestPacker(2)
	ranked := []domain.Chunk{
		chunkWithContent("doc-1", 0, "vpn setup requires the corporate profile", 0.9),
		chunkWithContent("doc-2", 4, "재택 근무시 네트워크 설정 안내", 0.8),
	}

	packed := p.Pack(ranked, 500)

	sections := strings.Split(packed.ContextText, headerSeparator)
	if len(sections) != len(packed.Used) {
		t.Fatalf("expected %d sections, got %d", len(packed.Used), len(sections))
	}
	for i, section := range sections {
		header, content, ok := strings.Cut(section, "\n")
		if !ok {
			t.Fatalf("section %d has no header line: %q", i, section)
		}
		if !strings.HasPrefix(header, "[") {
			t.Errorf("section %d header malformed: %q", i, header)
		}
		if content != packed.Used[i].Content {
			t.Errorf("section %d content mismatch: %q != %q", i, content, packed.Used[i].Content)
		}
	}
}

func TestPack_Empty(t *testing.T) {
	p := newTestPacker(2)
	packed := p.Pack(nil, 100)

	if packed.ContextText != "" || packed.TotalTokens != 0 || len(packed.Used) != 0 {
		t.Errorf("expected empty pack, got %+v", packed)
	}
}

func TestPack_PageInHeader(t *testing.T) {
	p := newTestPacker(0)
	c := chunkWithContent("doc-1", 2, "content", 0.5)
	c.Page = "14"

	packed := p.Pack([]domain.Chunk{c}, 100)

	if !strings.Contains(packed.ContextText, "p.14") {
		t.Errorf("expected page label in header, got %q", packed.ContextText)
	}
}
