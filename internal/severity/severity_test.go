package severity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		peak, iou  float64
		wantLevel  Level
		wantImpact int
	}{
		{"moderate collision", 5.0, 0.30, Moderate, 56},
		{"severe collision", 10.0, 0.50, Severe, 100},
		{"minor", 2.0, 0.10, Minor, 20},
		{"exactly thirty is moderate", 7.5, 0.0, Moderate, 30},
		{"exactly sixty is severe", 0.0, 0.5, Severe, 60},
		{"just under thirty truncates", 7.49, 0.0, Minor, 29},
		{"just under sixty truncates", 14.99, 0.0, Moderate, 59},
		{"zero", 0, 0, Minor, 0},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			level, impact := Classify(tt.peak, tt.iou)
			assert.Equal(t, tt.wantLevel, level)
			assert.Equal(t, tt.wantImpact, impact)
		})
	}
}

func TestClassifyMonotonic(t *testing.T) {
	t.Parallel()

	rank := map[Level]int{Minor: 0, Moderate: 1, Severe: 2}

	for _, iou := range []float64{0, 0.25, 0.5, 1} {
		prevLevel, prevImpact := Classify(0, iou)
		for peak := 0.25; peak <= 30; peak += 0.25 {
			level, impact := Classify(peak, iou)
			assert.GreaterOrEqual(t, impact, prevImpact, "peak=%v iou=%v", peak, iou)
			assert.GreaterOrEqual(t, rank[level], rank[prevLevel], "peak=%v iou=%v", peak, iou)
			prevLevel, prevImpact = level, impact
		}
	}

	for _, peak := range []float64{0, 3, 8, 20} {
		_, prevImpact := Classify(peak, 0)
		for iou := 0.01; iou <= 1; iou += 0.01 {
			_, impact := Classify(peak, iou)
			assert.GreaterOrEqual(t, impact, prevImpact, "peak=%v iou=%v", peak, iou)
			prevImpact = impact
		}
	}
}

func TestLevelValid(t *testing.T) {
	t.Parallel()

	assert.True(t, Minor.Valid())
	assert.True(t, Moderate.Valid())
	assert.True(t, Severe.Valid())
	assert.False(t, Level("Catastrophic").Valid())
}

func TestScoreRoundsEachProduct(t *testing.T) {
	t.Parallel()

	for peak := 0.0; peak < 20; peak += 0.37 {
		for iou := 0.0; iou <= 1; iou += 0.013 {
			motion := peak * motionWeight
			overlap := iou * overlapWeight
			want := motion + overlap
			assert.Equal(t, want, Score(peak, iou), "peak=%v iou=%v", peak, iou)

			_, impact := Classify(peak, iou)
			assert.Equal(t, int(want), impact, "peak=%v iou=%v", peak, iou)
		}
	}
}
