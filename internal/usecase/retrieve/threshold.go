package retrieve

import "github.com/contexta-cloud/contexta/internal/config"

// thresholdFor computes the adaptive similarity threshold for a query. The
// base is lowered when the query length leaves the middle band, and lowered
// further under container/document scope, because a narrower candidate pool
// needs a more permissive cutoff to avoid empty results. The result never
// drops below the configured floor.
func thresholdFor(cfg *config.RetrievalConfig, queryRunes int, hasContainerFilter, hasDocumentFilter bool) float64 {
	t := cfg.BaseThreshold

	if queryRunes <= cfg.ShortQueryRunes || queryRunes >= cfg.LongQueryRunes {
		t -= cfg.BandAdjust
	}
	if hasContainerFilter {
		t -= cfg.ContainerAdjust
	}
	if hasDocumentFilter {
		t -= cfg.DocumentAdjust
	}

	if t < cfg.ThresholdFloor {
		t = cfg.ThresholdFloor
	}
	return t
}
