package pattern

import (
	"math"
	"sort"
	"time"

	"github.com/Veraticus/the-paperwork-must-flow/internal/model"
)

// Bucket is an inclusive day-gap range mapped to a frequency.
type Bucket struct {
	Frequency model.Frequency `mapstructure:"frequency"`
	MinDays   int             `mapstructure:"min_days"`
	MaxDays   int             `mapstructure:"max_days"`
}

// Contains reports whether gap falls inside the bucket.
func (b Bucket) Contains(gap int) bool {
	return gap >= b.MinDays && gap <= b.MaxDays
}

// DefaultBuckets returns the standard gap ranges.
func DefaultBuckets() []Bucket {
	return []Bucket{
		{Frequency: model.FrequencyWeekly, MinDays: 5, MaxDays: 9},
		{Frequency: model.FrequencyMonthly, MinDays: 25, MaxDays: 35},
		{Frequency: model.FrequencyQuarterly, MinDays: 80, MaxDays: 100},
		{Frequency: model.FrequencyAnnual, MinDays: 350, MaxDays: 380},
	}
}

// DayGaps returns the whole-day gaps between consecutive dates after sorting.
func DayGaps(dates []time.Time) []int {
	sorted := append([]time.Time(nil), dates...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })

	gaps := make([]int, 0, len(sorted))
	for i := 1; i < len(sorted); i++ {
		gaps = append(gaps, int(math.Round(sorted[i].Sub(sorted[i-1]).Hours()/24)))
	}
	return gaps
}

// InferFrequency returns the bucket holding a strict majority of the gaps.
// Without one, including a tie between buckets, the spacing is irregular.
func InferFrequency(gaps []int, buckets []Bucket) model.Frequency {
	if len(gaps) == 0 {
		return model.FrequencyIrregular
	}

	bestIdx, bestCount := -1, 0
	for i, b := range buckets {
		count := 0
		for _, g := range gaps {
			if b.Contains(g) {
				count++
			}
		}
		if count > bestCount {
			bestIdx, bestCount = i, count
		}
	}

	if bestIdx < 0 || bestCount*2 <= len(gaps) {
		return model.FrequencyIrregular
	}
	return buckets[bestIdx].Frequency
}

// Regularity scores gap consistency in [0,1] as one minus the coefficient of
// variation. A single gap is perfectly regular.
func Regularity(gaps []int) float64 {
	if len(gaps) == 0 {
		return 0
	}
	if len(gaps) == 1 {
		return 1
	}

	var sum float64
	for _, g := range gaps {
		sum += float64(g)
	}
	mean := sum / float64(len(gaps))
	if mean <= 0 {
		return 0
	}

	var variance float64
	for _, g := range gaps {
		d := float64(g) - mean
		variance += d * d
	}
	variance /= float64(len(gaps))

	return clamp01(1 - math.Sqrt(variance)/mean)
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
