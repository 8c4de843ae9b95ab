package memory

import "math"

// ForgettingCurve models memory decay across plots with an Ebbinghaus-style
// curve (Averell & Heathcote, 2011):
//
//	rate = A + (1-A) * exp(-K * Δplot / (2^accessTimes * (ImportanceBase + poignancy)))
//
// A is the asymptote the rate never decays below. K is the decay per plot.
// Recall (accessTimes) and importance (poignancy) both slow the decay.
// A rate under Threshold means the memory is forgotten.
type ForgettingCurve struct {
	A              float64
	K              float64
	ImportanceBase float64
	Threshold      float64
}

// Presets used by retrieval. Events fade faster but are kept down to a lower
// rate; thoughts decay slowly and are dropped earlier.
var (
	EventForgetting   = ForgettingCurve{A: 0.1, K: 4, ImportanceBase: 3, Threshold: 0.3}
	ThoughtForgetting = ForgettingCurve{A: 0.4, K: 2, ImportanceBase: 3, Threshold: 0.6}
)

// Rate returns the retention rate of a memory deltaPlot plots after it was formed.
//
// Parameters:
//   - deltaPlot: query plot id minus the plot id of the memory
//   - accessTimes: how many times the memory was recalled, starting at 1
//   - poignancy: importance of the memory on the 1-9 scale
//
// Returns a value in (A, 1] for non-negative deltaPlot.
func (c ForgettingCurve) Rate(deltaPlot, accessTimes, poignancy int) float64 {
	denom := math.Exp2(float64(accessTimes)) * (c.ImportanceBase + float64(poignancy))
	if denom == 0 {
		return c.A
	}
	return c.A + (1-c.A)*math.Exp(-c.K*float64(deltaPlot)/denom)
}

// Forgotten reports whether rate falls below the threshold.
func (c ForgettingCurve) Forgotten(rate float64) bool {
	return rate < c.Threshold
}

// Cosine returns the cosine similarity of a and b, or 0 when the lengths
// differ or either vector has zero norm.
func Cosine(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// scoreEvent applies the event curve and marks the event forgotten when it decays
// past the threshold. Forgotten events score 0.
func scoreEvent(e *Event, q []float64, plotID int, c ForgettingCurve) float64 {
	rate := c.Rate(plotID-e.PlotID, e.AccessTimes, e.Poignancy)
	if c.Forgotten(rate) {
		e.Forgot = true
		return 0
	}
	return Cosine(e.Embedding, q) * rate
}

func scoreThought(t *Thought, q []float64, plotID int, c ForgettingCurve) float64 {
	rate := c.Rate(plotID-t.PlotID, t.AccessTimes, t.Poignancy)
	if c.Forgotten(rate) {
		t.Forgot = true
		return 0
	}
	return Cosine(t.Embedding, q) * rate
}
