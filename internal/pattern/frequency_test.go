package pattern

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Veraticus/the-paperwork-must-flow/internal/model"
)

func TestInferFrequency(t *testing.T) {
	tests := []struct {
		name string
		want model.Frequency
		gaps []int
	}{
		{name: "monthly", gaps: []int{30, 31, 29}, want: model.FrequencyMonthly},
		{name: "weekly", gaps: []int{7, 7, 6}, want: model.FrequencyWeekly},
		{name: "quarterly", gaps: []int{91}, want: model.FrequencyQuarterly},
		{name: "annual", gaps: []int{365}, want: model.FrequencyAnnual},
		{name: "majority of gaps", gaps: []int{30, 31, 2}, want: model.FrequencyMonthly},
		{name: "half the gaps is not enough", gaps: []int{30, 2}, want: model.FrequencyIrregular},
		{name: "week then month", gaps: []int{7, 31}, want: model.FrequencyIrregular},
		{name: "month then long gap", gaps: []int{31, 200}, want: model.FrequencyIrregular},
		{name: "tie between buckets", gaps: []int{7, 7, 30, 30}, want: model.FrequencyIrregular},
		{name: "no dominant bucket", gaps: []int{30, 7, 100}, want: model.FrequencyIrregular},
		{name: "outside every bucket", gaps: []int{2, 48}, want: model.FrequencyIrregular},
		{name: "no gaps", gaps: nil, want: model.FrequencyIrregular},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, InferFrequency(tt.gaps, DefaultBuckets()))
		})
	}
}

func TestInferFrequency_CustomBuckets(t *testing.T) {
	buckets := []Bucket{{Frequency: model.FrequencyMonthly, MinDays: 20, MaxDays: 40}}
	assert.Equal(t, model.FrequencyMonthly, InferFrequency([]int{22}, buckets))
	assert.Equal(t, model.FrequencyIrregular, InferFrequency([]int{7}, buckets))
}

func TestRegularity(t *testing.T) {
	assert.InDelta(t, 0.0, Regularity(nil), 1e-9)
	assert.InDelta(t, 1.0, Regularity([]int{30}), 1e-9)
	assert.InDelta(t, 1.0, Regularity([]int{30, 30, 30}), 1e-9)
	assert.InDelta(t, 0.5, Regularity([]int{10, 30}), 1e-9)
}

func TestDayGaps(t *testing.T) {
	dates := []time.Time{day(2024, 3, 1), day(2024, 1, 1), day(2024, 1, 31)}
	assert.Equal(t, []int{30, 30}, DayGaps(dates))
	assert.Empty(t, DayGaps([]time.Time{day(2024, 1, 1)}))
}
