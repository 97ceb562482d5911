package metrics

import "time"

// Generation results.
const (
	GenerationSucceeded = "success"
	GenerationFailed    = "failure"
	GenerationSkipped   = "skipped"
)

// ObserveGeneration records one generation run.
func (m *ServerMetrics) ObserveGeneration(result string, took time.Duration) {
	m.generationTotal.WithLabelValues(result).Inc()
	if result == GenerationSkipped {
		return
	}
	m.generationDuration.Observe(took.Seconds())
	if result == GenerationSucceeded {
		m.generationLastRun.Set(float64(time.Now().Unix()))
	}
}
