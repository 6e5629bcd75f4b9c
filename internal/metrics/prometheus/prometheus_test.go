package prometheus

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stakewell/stakedash/internal/logger"
	"github.com/stakewell/stakedash/internal/metrics/metricsTypes"
	"github.com/stretchr/testify/assert"
)

func Test_PrometheusMetricsClient(t *testing.T) {
	l, _ := logger.NewLogger(&logger.LoggerConfig{})
	registry := prometheus.NewRegistry()

	client, err := NewPrometheusMetricsClient(&PrometheusMetricsConfig{
		Metrics:    metricsTypes.MetricTypes,
		Registerer: registry,
	}, l)
	assert.Nil(t, err)

	t.Run("Test counter with declared and undeclared labels", func(t *testing.T) {
		err := client.Incr(metricsTypes.Metric_Incr_RewardSkipped, []metricsTypes.MetricsLabel{
			{Name: "reason", Value: "below_min_stake"},
			{Name: "service", Value: "ignored"},
		}, 2)
		assert.Nil(t, err)

		c := client.counters[metricsTypes.Metric_Incr_RewardSkipped].With(prometheus.Labels{"reason": "below_min_stake"})
		assert.Equal(t, float64(2), testutil.ToFloat64(c))
	})

	t.Run("Test gauge", func(t *testing.T) {
		assert.Nil(t, client.Gauge(metricsTypes.Metric_Gauge_ActiveStakers, 7, nil))
		g := client.gauges[metricsTypes.Metric_Gauge_ActiveStakers].With(prometheus.Labels{})
		assert.Equal(t, float64(7), testutil.ToFloat64(g))
	})

	t.Run("Test timing and unknown metric", func(t *testing.T) {
		assert.Nil(t, client.Timing(metricsTypes.Metric_Timing_MaterializeDuration, 15*time.Millisecond, nil))
		assert.Nil(t, client.Incr("unknown_metric", nil, 1))
	})
}
