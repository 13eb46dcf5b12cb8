// Package stats provides descriptive statistics over counter samples.
package stats

import (
	"math"
	"slices"
)

// Well-known percentile thresholds.
const (
	PercentileMedian = 0.5
	PercentileP90    = 0.9
)

// Summary describes the distribution of a sample.
type Summary struct {
	Mean   float64 `json:"mean"   yaml:"mean"`
	Median float64 `json:"median" yaml:"median"`
	P90    float64 `json:"p90"    yaml:"p90"`
	Max    uint64  `json:"max"    yaml:"max"`
	Count  int     `json:"count"  yaml:"count"`
}

// Describe summarizes values. An empty sample yields the zero Summary.
func Describe(values []uint64) Summary {
	if len(values) == 0 {
		return Summary{}
	}

	sorted := slices.Clone(values)
	slices.Sort(sorted)

	var sum float64
	for _, v := range sorted {
		sum += float64(v)
	}

	return Summary{
		Mean:   sum / float64(len(sorted)),
		Median: percentileSorted(sorted, PercentileMedian),
		P90:    percentileSorted(sorted, PercentileP90),
		Max:    sorted[len(sorted)-1],
		Count:  len(sorted),
	}
}

// Percentile returns the p-th percentile of values using linear interpolation.
// p is clamped to [0, 1]. The input is not modified. Returns 0 for an empty slice.
func Percentile(values []uint64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}

	sorted := slices.Clone(values)
	slices.Sort(sorted)

	return percentileSorted(sorted, p)
}

func percentileSorted(sorted []uint64, p float64) float64 {
	p = max(0, min(p, 1))

	idx := p * float64(len(sorted)-1)
	lower := int(math.Floor(idx))
	upper := int(math.Ceil(idx))

	if lower == upper {
		return float64(sorted[lower])
	}

	frac := idx - float64(lower)

	return float64(sorted[lower])*(1-frac) + float64(sorted[upper])*frac
}
