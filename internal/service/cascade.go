package service

import (
	"sort"
	"strconv"

	"github.com/cloo-solutions/kbchat/internal/domain"
)

const DefaultConfidenceThreshold = 0.65

// DefaultFallbackTiers are tried, in order, when nothing clears the threshold.
var DefaultFallbackTiers = []float64{0.5, 0.3}

// ConfidenceTiers orders the cascade: the configured threshold first, then
// every fallback strictly below it from strictest to loosest.
func ConfidenceTiers(threshold float64, fallbacks []float64) []float64 {
	tiers := []float64{threshold}
	rest := make([]float64, 0, len(fallbacks))
	seen := map[float64]struct{}{threshold: {}}
	for _, f := range fallbacks {
		if f >= threshold {
			continue
		}
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		rest = append(rest, f)
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(rest)))
	return append(tiers, rest...)
}

// applyCascade keeps the candidates clearing the first tier that admits at
// least one, preserving rank order. ok is false when no tier admits anything.
func applyCascade(candidates []*domain.RetrievalCandidate, tiers []float64) (kept []*domain.RetrievalCandidate, tier float64, ok bool) {
	for _, t := range tiers {
		kept = nil
		for _, c := range candidates {
			if c.Similarity >= t {
				kept = append(kept, c)
			}
		}
		if len(kept) > 0 {
			return kept, t, true
		}
	}
	return nil, 0, false
}

func tierLabel(tier float64) string {
	return strconv.FormatFloat(tier, 'f', -1, 64)
}
