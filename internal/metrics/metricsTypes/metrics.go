package metricsTypes

import "time"

type IMetricsClient interface {
	Incr(name string, labels []MetricsLabel, value float64) error
	Gauge(name string, value float64, labels []MetricsLabel) error
	Timing(name string, value time.Duration, labels []MetricsLabel) error
}

type MetricsLabel struct {
	Name  string
	Value string
}

type MetricsType string

var (
	MetricsType_Incr   MetricsType = "incr"
	MetricsType_Gauge  MetricsType = "gauge"
	MetricsType_Timing MetricsType = "timing"
)

type MetricsTypeConfig struct {
	Name   string
	Labels []string
}

var (
	Metric_Incr_RewardPosted         = "rewards_posted"
	Metric_Incr_ReferralRewardPosted = "referral_rewards_posted"
	Metric_Incr_RewardSkipped        = "rewards_skipped"
	Metric_Incr_RewardErrored        = "rewards_errored"
	Metric_Incr_HttpRequest          = "rpc_http_request"
	Metric_Incr_PriceFeedFallback    = "price_feed_fallback"

	Metric_Gauge_ActiveStakers      = "active_stakers"
	Metric_Gauge_AdminSkimCurrent   = "admin_skim_current"
	Metric_Gauge_LastTickPostedUnix = "rewards_last_tick_unix"

	Metric_Timing_MaterializeDuration = "rewards_materialize_duration"
	Metric_Timing_HttpDuration        = "rpc_http_duration"
	Metric_Timing_CreateSnapshot      = "create_snapshot_duration"
)

var MetricTypes = map[MetricsType][]MetricsTypeConfig{
	MetricsType_Incr: {
		MetricsTypeConfig{
			Name:   Metric_Incr_RewardPosted,
			Labels: []string{},
		},
		MetricsTypeConfig{
			Name:   Metric_Incr_ReferralRewardPosted,
			Labels: []string{},
		},
		MetricsTypeConfig{
			Name:   Metric_Incr_RewardSkipped,
			Labels: []string{"reason"},
		},
		MetricsTypeConfig{
			Name:   Metric_Incr_RewardErrored,
			Labels: []string{},
		},
		MetricsTypeConfig{
			Name:   Metric_Incr_HttpRequest,
			Labels: []string{"route", "status"},
		},
		MetricsTypeConfig{
			Name:   Metric_Incr_PriceFeedFallback,
			Labels: []string{"symbol", "source"},
		},
	},
	MetricsType_Gauge: {
		MetricsTypeConfig{
			Name:   Metric_Gauge_ActiveStakers,
			Labels: []string{},
		},
		MetricsTypeConfig{
			Name:   Metric_Gauge_AdminSkimCurrent,
			Labels: []string{},
		},
		MetricsTypeConfig{
			Name:   Metric_Gauge_LastTickPostedUnix,
			Labels: []string{},
		},
	},
	MetricsType_Timing: {
		MetricsTypeConfig{
			Name:   Metric_Timing_MaterializeDuration,
			Labels: []string{},
		},
		MetricsTypeConfig{
			Name:   Metric_Timing_HttpDuration,
			Labels: []string{"route"},
		},
		MetricsTypeConfig{
			Name:   Metric_Timing_CreateSnapshot,
			Labels: []string{},
		},
	},
}
