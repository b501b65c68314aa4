package testsupport

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Polling bounds for require.Eventually on asynchronous effects (cache
// maintenance, background loops).
const (
	EventuallyWait = 2 * time.Second
	EventuallyTick = 10 * time.Millisecond
)

// CounterValue reads one counter or gauge without gathering the registry.
func CounterValue(t *testing.T, c prometheus.Metric) float64 {
	t.Helper()

	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return sampleValue(&m)
}

// AssertMetricDelta runs fn and asserts that the series of the default
// registry selected by name and labels moved by exactly delta. Histograms are
// compared by sample count.
func AssertMetricDelta(t *testing.T, name string, labels map[string]string, delta float64, fn func()) {
	t.Helper()

	before := gatheredValue(t, name, labels)
	fn()
	after := gatheredValue(t, name, labels)

	assert.Equal(t, delta, after-before, "metric %s%v delta mismatch", name, labels)
}

// AssertHistogramRecorded asserts that the selected histogram holds at least one sample.
func AssertHistogramRecorded(t *testing.T, name string, labels map[string]string) {
	t.Helper()

	assert.Greater(t, gatheredValue(t, name, labels), 0.0, "histogram %s%v has no samples", name, labels)
}

// gatheredValue returns the first series of name whose labels include labels,
// or zero when there is none yet.
func gatheredValue(t *testing.T, name string, labels map[string]string) float64 {
	t.Helper()

	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err, "gather default registry")

	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, m := range family.GetMetric() {
			if hasLabels(m, labels) {
				return sampleValue(m)
			}
		}
	}
	return 0
}

func sampleValue(m *dto.Metric) float64 {
	switch {
	case m.GetCounter() != nil:
		return m.GetCounter().GetValue()
	case m.GetHistogram() != nil:
		return float64(m.GetHistogram().GetSampleCount())
	default:
		return m.GetGauge().GetValue()
	}
}

func hasLabels(m *dto.Metric, want map[string]string) bool {
	found := 0
	for _, pair := range m.GetLabel() {
		if v, ok := want[pair.GetName()]; ok {
			if v != pair.GetValue() {
				return false
			}
			found++
		}
	}
	return found == len(want)
}
