package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/stakewell/stakedash/internal/metrics/metricsTypes"
	"github.com/stretchr/testify/assert"
)

type recordingClient struct {
	calls  []string
	labels [][]metricsTypes.MetricsLabel
	err    error
}

func (r *recordingClient) Incr(name string, labels []metricsTypes.MetricsLabel, value float64) error {
	r.calls = append(r.calls, fmt.Sprintf("incr:%s:%v", name, value))
	r.labels = append(r.labels, labels)
	return r.err
}

func (r *recordingClient) Gauge(name string, value float64, labels []metricsTypes.MetricsLabel) error {
	r.calls = append(r.calls, fmt.Sprintf("gauge:%s:%v", name, value))
	r.labels = append(r.labels, labels)
	return r.err
}

func (r *recordingClient) Timing(name string, value time.Duration, labels []metricsTypes.MetricsLabel) error {
	r.calls = append(r.calls, fmt.Sprintf("timing:%s:%v", name, value))
	r.labels = append(r.labels, labels)
	return r.err
}

func Test_MetricsSink(t *testing.T) {
	t.Run("Test fan out with default labels", func(t *testing.T) {
		a := &recordingClient{}
		b := &recordingClient{}
		sink, err := NewMetricsSink(&MetricsSinkConfig{
			DefaultLabels: []metricsTypes.MetricsLabel{{Name: "service", Value: "stakedash"}},
		}, []metricsTypes.IMetricsClient{a, b})
		assert.Nil(t, err)

		assert.Nil(t, sink.Incr(metricsTypes.Metric_Incr_RewardPosted, []metricsTypes.MetricsLabel{}, 1))
		assert.Nil(t, sink.Gauge(metricsTypes.Metric_Gauge_ActiveStakers, 3, nil))
		assert.Nil(t, sink.Timing(metricsTypes.Metric_Timing_MaterializeDuration, time.Second, nil))

		assert.Equal(t, a.calls, b.calls)
		assert.Equal(t, 3, len(a.calls))
		assert.Equal(t, "service", a.labels[0][0].Name)
		assert.Equal(t, 1, len(a.labels[1]))
	})

	t.Run("Test client errors are returned", func(t *testing.T) {
		failing := &recordingClient{err: fmt.Errorf("boom")}
		sink, _ := NewMetricsSink(&MetricsSinkConfig{}, []metricsTypes.IMetricsClient{failing})
		assert.NotNil(t, sink.Incr("x", nil, 1))
	})

	t.Run("Test noop sink", func(t *testing.T) {
		sink := NewNoopMetricsSink()
		assert.Nil(t, sink.Incr("x", nil, 1))
	})
}
