package priceFeed

import (
	"context"
	"net/http"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/shopspring/decimal"
	"github.com/stakewell/stakedash/internal/config"
	"github.com/stakewell/stakedash/internal/logger"
	"github.com/stakewell/stakedash/internal/metrics"
	"github.com/stakewell/stakedash/internal/metrics/metricsTypes"
	"github.com/stakewell/stakedash/internal/tests"
	"github.com/stakewell/stakedash/pkg/coins"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const mockBaseUrl = "https://prices.example.com/api/v3"

type recordingClient struct {
	mu    sync.Mutex
	incrs []string
}

func (r *recordingClient) Incr(name string, labels []metricsTypes.MetricsLabel, value float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range labels {
		if l.Name == "source" {
			name = name + ":" + l.Value
		}
	}
	r.incrs = append(r.incrs, name)
	return nil
}

func (r *recordingClient) Gauge(name string, value float64, labels []metricsTypes.MetricsLabel) error {
	return nil
}

func (r *recordingClient) Timing(name string, value time.Duration, labels []metricsTypes.MetricsLabel) error {
	return nil
}

func setup() (*zap.Logger, *config.Config, *coins.Catalogue, error) {
	cfg := tests.GetConfig()
	cfg.PriceFeedConfig.BaseUrl = mockBaseUrl
	cfg.PriceFeedConfig.CacheTtlSeconds = 60

	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: false})
	if err != nil {
		return nil, nil, nil, err
	}
	catalogue, err := coins.LoadDefault()
	if err != nil {
		return nil, nil, nil, err
	}
	return l, cfg, catalogue, nil
}

func Test_PriceFeedClient(t *testing.T) {
	l, cfg, catalogue, err := setup()
	require.Nil(t, err)
	ctx := context.Background()

	newClient := func() (*PriceFeedClient, *httpmock.MockTransport, *recordingClient) {
		mt := httpmock.NewMockTransport()
		rec := &recordingClient{}
		sink, _ := metrics.NewMetricsSink(&metrics.MetricsSinkConfig{}, []metricsTypes.IMetricsClient{rec})
		pc := NewPriceFeedClient(&http.Client{Transport: mt}, l, cfg, catalogue, NewMemoryCache(), sink)
		return pc, mt, rec
	}

	t.Run("Fetches a live price and caches it", func(t *testing.T) {
		pc, mt, _ := newClient()
		mt.RegisterResponder("GET", mockBaseUrl+"/simple/price",
			httpmock.NewStringResponder(200, `{"ethereum":{"usd":3456.78}}`))

		quote, err := pc.GetPrice(ctx, "eth")
		require.Nil(t, err)
		assert.Equal(t, "ETH", quote.Symbol)
		assert.Equal(t, PriceSource_Live, quote.Source)
		assert.True(t, decimal.RequireFromString("3456.78").Equal(quote.PriceUsd))

		quote, err = pc.GetPrice(ctx, "ETH")
		require.Nil(t, err)
		assert.Equal(t, PriceSource_Cache, quote.Source)
		assert.Equal(t, 1, mt.GetTotalCallCount())
	})

	t.Run("Serves the stale cached quote when the feed fails", func(t *testing.T) {
		pc, mt, rec := newClient()
		mt.RegisterResponder("GET", mockBaseUrl+"/simple/price",
			httpmock.NewStringResponder(200, `{"ethereum":{"usd":3100}}`))
		_, err := pc.GetPrice(ctx, "ETH")
		require.Nil(t, err)

		mt.Reset()
		mt.RegisterResponder("GET", mockBaseUrl+"/simple/price",
			httpmock.NewStringResponder(429, `{"status":{"error_code":429}}`))
		pc.clock = func() time.Time { return time.Now().Add(10 * time.Minute) }

		quote, err := pc.GetPrice(ctx, "ETH")
		require.Nil(t, err)
		assert.Equal(t, PriceSource_Cache, quote.Source)
		assert.True(t, decimal.NewFromInt(3100).Equal(quote.PriceUsd))
		assert.Equal(t, []string{metricsTypes.Metric_Incr_PriceFeedFallback + ":cache"}, rec.incrs)
	})

	t.Run("Uses the catalogue fallback price when nothing is cached", func(t *testing.T) {
		pc, mt, rec := newClient()
		mt.RegisterResponder("GET", mockBaseUrl+"/simple/price",
			httpmock.NewErrorResponder(assert.AnError))

		quote, err := pc.GetPrice(ctx, "ETH")
		require.Nil(t, err)
		assert.Equal(t, PriceSource_Fallback, quote.Source)
		assert.True(t, decimal.NewFromInt(3000).Equal(quote.PriceUsd))
		assert.Equal(t, []string{metricsTypes.Metric_Incr_PriceFeedFallback + ":fallback"}, rec.incrs)
	})

	t.Run("Treats malformed responses as failures", func(t *testing.T) {
		pc, mt, _ := newClient()
		mt.RegisterResponder("GET", mockBaseUrl+"/simple/price",
			httpmock.NewStringResponder(200, `{"bitcoin":{"usd":1}}`))

		quote, err := pc.GetPrice(ctx, "ETH")
		require.Nil(t, err)
		assert.Equal(t, PriceSource_Fallback, quote.Source)
	})

	t.Run("Rejects unknown symbols", func(t *testing.T) {
		pc, _, _ := newClient()
		_, err := pc.GetPrice(ctx, "DOGE")
		assert.ErrorIs(t, err, coins.ErrUnknownCoin)
	})
}

func Test_RedisCache(t *testing.T) {
	addr := os.Getenv("STAKEDASH_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("STAKEDASH_TEST_REDIS_ADDR not set")
	}
	cfg := tests.GetConfig()
	cfg.RedisConfig.Addr = addr

	client := NewRedisClientFromConfig(cfg)
	defer client.Close()
	cache := NewRedisCache(client)
	ctx := context.Background()

	symbol := "TEST" + time.Now().Format("150405")
	_, ok, err := cache.Get(ctx, symbol)
	require.Nil(t, err)
	assert.False(t, ok)

	require.Nil(t, cache.Set(ctx, &PriceQuote{
		Symbol:    symbol,
		PriceUsd:  decimal.RequireFromString("12.5"),
		Source:    PriceSource_Live,
		FetchedAt: time.Now().UTC(),
	}))
	quote, ok, err := cache.Get(ctx, symbol)
	require.Nil(t, err)
	assert.True(t, ok)
	assert.True(t, decimal.RequireFromString("12.5").Equal(quote.PriceUsd))

	client.Del(ctx, redisKey(symbol))
}
