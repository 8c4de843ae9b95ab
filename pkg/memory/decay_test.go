package memory_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/oceanbase/sociomind-go/pkg/memory"
)

func TestForgettingCurve_Rate(t *testing.T) {
	for _, curve := range []memory.ForgettingCurve{memory.EventForgetting, memory.ThoughtForgetting} {
		assert.InDelta(t, 1.0, curve.Rate(0, 1, 5), 1e-9, "no decay within the same plot")

		prev := curve.Rate(0, 1, 5)
		for delta := 1; delta <= 20; delta++ {
			rate := curve.Rate(delta, 1, 5)
			assert.LessOrEqual(t, rate, prev, "rate must not increase with distance")
			assert.GreaterOrEqual(t, rate, curve.A)
			prev = rate
		}
	}
}

func TestForgettingCurve_Presets(t *testing.T) {
	assert.Equal(t, memory.ForgettingCurve{A: 0.1, K: 4, ImportanceBase: 3, Threshold: 0.3}, memory.EventForgetting)
	assert.Equal(t, memory.ForgettingCurve{A: 0.4, K: 2, ImportanceBase: 3, Threshold: 0.6}, memory.ThoughtForgetting)

	want := 0.1 + 0.9*math.Exp(-4.0*2/(2*8))
	assert.InDelta(t, want, memory.EventForgetting.Rate(2, 1, 5), 1e-12)
}

func TestForgettingCurve_RecallAndImportanceSlowDecay(t *testing.T) {
	c := memory.EventForgetting
	assert.Greater(t, c.Rate(3, 3, 5), c.Rate(3, 1, 5), "recalled memories decay slower")
	assert.Greater(t, c.Rate(3, 1, 9), c.Rate(3, 1, 1), "important memories decay slower")
}

func TestForgettingCurve_Forgotten(t *testing.T) {
	testCases := []struct {
		name  string
		curve memory.ForgettingCurve
		rate  float64
		want  bool
	}{
		{"event below", memory.EventForgetting, 0.29, true},
		{"event at threshold", memory.EventForgetting, 0.3, false},
		{"thought below", memory.ThoughtForgetting, 0.59, true},
		{"thought above", memory.ThoughtForgetting, 0.7, false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.curve.Forgotten(tc.rate))
		})
	}
}

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, memory.Cosine([]float64{1, 2}, []float64{2, 4}), 1e-12)
	assert.InDelta(t, 0.0, memory.Cosine([]float64{1, 0}, []float64{0, 1}), 1e-12)
	assert.InDelta(t, -1.0, memory.Cosine([]float64{1, 0}, []float64{-1, 0}), 1e-12)
	assert.Equal(t, 0.0, memory.Cosine([]float64{0, 0}, []float64{1, 0}))
	assert.Equal(t, 0.0, memory.Cosine([]float64{1}, []float64{1, 0}))
	assert.Equal(t, 0.0, memory.Cosine(nil, nil))
}
