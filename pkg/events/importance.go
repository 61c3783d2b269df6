package events

import (
	"math"
	"strings"
)

// PrizePoolImportance maps a tournament prize pool in USD to importance, 1M and more is 1.0
func PrizePoolImportance(usd float64) float64 {
	switch {
	case usd <= 0:
		return DefaultImportance
	case usd >= 1_000_000:
		return 1
	}
	// log scale between 10k (0.3) and 1M (1.0)
	v := 0.3 + 0.35*(math.Log10(usd)-4)
	return clamp01(math.Max(v, 0.2))
}

// TVLChangeImportance maps an absolute TVL change in percent, 50% and more is 1.0
func TVLChangeImportance(pct float64) float64 {
	pct = math.Abs(pct)
	switch {
	case pct >= 50:
		return 1
	case pct >= 20:
		return 0.8
	case pct >= 10:
		return 0.65
	case pct >= 5:
		return 0.5
	default:
		return 0.3
	}
}

// VoteImportance maps governance vote participation to importance
func VoteImportance(votes int) float64 {
	if votes <= 0 {
		return 0.2
	}
	return clamp01(0.2 + 0.2*math.Log10(float64(votes)))
}

var tierImportance = map[string]float64{
	"s": 0.95, "a": 0.8, "b": 0.6, "c": 0.4, "d": 0.3,
	"premier": 0.95, "major": 0.9, "minor": 0.5, "qualifier": 0.4, "showmatch": 0.2,
}

// TierImportance maps a tournament tier label (S/A/B/C/D, premier, major, ...) to importance
func TierImportance(tier string) float64 {
	t := strings.ToLower(strings.TrimSpace(tier))
	t = strings.TrimSuffix(strings.TrimPrefix(t, "tier "), "-tier")
	if v, ok := tierImportance[t]; ok {
		return v
	}
	return DefaultImportance
}
