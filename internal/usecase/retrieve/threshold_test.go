package retrieve

import "testing"

func TestThresholdFor(t *testing.T) {
	cfg := testConfig() // base 0.5, band 0.05, container 0.05, document 0.1, floor 0.2

	tests := []struct {
		name       string
		runes      int
		hasCont    bool
		hasDoc     bool
		want       float64
	}{
		{"mid band unscoped", 20, false, false, 0.5},
		{"short query", 3, false, false, 0.45},
		{"long query", 60, false, false, 0.45},
		{"container scope", 20, true, false, 0.45},
		{"document scope", 20, false, true, 0.4},
		{"short and fully scoped", 3, true, true, 0.3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := thresholdFor(cfg, tt.runes, tt.hasCont, tt.hasDoc)
			if !almostEqual(got, tt.want) {
				t.Errorf("thresholdFor(%d, %v, %v) = %g, want %g",
					tt.runes, tt.hasCont, tt.hasDoc, got, tt.want)
			}
		})
	}
}

func TestThresholdFor_ClampsAtFloor(t *testing.T) {
	cfg := testConfig()
	cfg.BaseThreshold = 0.25

	got := thresholdFor(cfg, 3, true, true)
	if !almostEqual(got, cfg.ThresholdFloor) {
		t.Errorf("expected floor %g, got %g", cfg.ThresholdFloor, got)
	}
}
