package tempo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlan_WorkedExamples(t *testing.T) {
	tests := []struct {
		name  string
		speed float64
		want  []float64
	}{
		{name: "quarter speed lands exactly", speed: 0.25, want: []float64{0.5, 0.5}},
		{name: "triple speed", speed: 3.0, want: []float64{2.0, 1.5}},
		{name: "identity", speed: 1.0, want: []float64{1.0}},
		{name: "half speed in range", speed: 0.5, want: []float64{0.5}},
		{name: "double speed in range", speed: 2.0, want: []float64{2.0}},
		{name: "quadruple lands exactly", speed: 4.0, want: []float64{2.0, 2.0}},
		{name: "degenerate zero", speed: 0, want: []float64{1.0}},
		{name: "degenerate negative", speed: -3, want: []float64{1.0}},
		{name: "degenerate threshold", speed: 0.001, want: []float64{1.0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Plan(tt.speed)
			require.Len(t, got, len(tt.want))
			for i := range tt.want {
				assert.InDelta(t, tt.want[i], got[i], 1e-9, "stage %d", i)
			}
		})
	}
}

func TestPlan_ProductMatchesSpeedAcrossPracticalRange(t *testing.T) {
	for speed := 0.01; speed <= 100.0; speed += 0.01 {
		stages := Plan(speed)
		require.NotEmpty(t, stages)

		product := Product(stages)
		rel := math.Abs(product-speed) / speed
		require.LessOrEqualf(t, rel, 1e-3, "speed=%v stages=%v product=%v", speed, stages, product)

		for i, s := range stages {
			if i == len(stages)-1 {
				require.GreaterOrEqualf(t, s, FinalMin, "speed=%v final stage", speed)
				require.LessOrEqualf(t, s, FinalMax, "speed=%v final stage", speed)
				continue
			}
			require.GreaterOrEqualf(t, s, StageMin, "speed=%v stage %d", speed, i)
			require.LessOrEqualf(t, s, StageMax, "speed=%v stage %d", speed, i)
		}
	}
}

func TestPlan_StageCountIsBounded(t *testing.T) {
	inputs := []float64{1e-300, 1e-9, 0.0011, 0.002, 0.01, 0.3, 7, 99.99, 1e3, 1e6, 1e12, math.MaxFloat64}
	for _, speed := range inputs {
		assert.LessOrEqualf(t, len(Plan(speed)), maxIterations+1, "speed=%v", speed)
	}
}

func TestPlan_IterationCapLeavesProductShort(t *testing.T) {
	// 2^10 = 1024; a factor of one million cannot be reached in ten
	// doublings and the remainder (~976) exceeds FinalMax, so it is dropped.
	stages := Plan(1e6)
	require.Len(t, stages, maxIterations)
	for _, s := range stages {
		assert.Equal(t, StageMax, s)
	}
	assert.InDelta(t, 1024.0, Product(stages), 1e-9)
}

func TestPlan_IterationCapKeepsOutOfRangeFinalStage(t *testing.T) {
	// 5000 / 2^10 ~ 4.88: outside [0.5, 2.0] but within the absolute bounds.
	stages := Plan(5000)
	require.Len(t, stages, maxIterations+1)
	last := stages[len(stages)-1]
	assert.Greater(t, last, StageMax)
	assert.InDelta(t, 5000.0, Product(stages), 1e-6)
}

func TestPlan_SmallFactorsAreChainedHalves(t *testing.T) {
	stages := Plan(0.01)
	// 0.01 * 2^6 = 0.64
	require.Len(t, stages, 7)
	for _, s := range stages[:6] {
		assert.Equal(t, StageMin, s)
	}
	assert.InDelta(t, 0.64, stages[6], 1e-9)
}
