package priceFeed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stakewell/stakedash/internal/config"
	"github.com/stakewell/stakedash/internal/metrics"
	"github.com/stakewell/stakedash/internal/metrics/metricsTypes"
	"github.com/stakewell/stakedash/pkg/coins"
	"go.uber.org/zap"
)

type PriceSource string

const (
	PriceSource_Live     PriceSource = "live"
	PriceSource_Cache    PriceSource = "cache"
	PriceSource_Fallback PriceSource = "fallback"
)

type PriceQuote struct {
	Symbol    string          `json:"symbol"`
	PriceUsd  decimal.Decimal `json:"priceUsd"`
	Source    PriceSource     `json:"source"`
	FetchedAt time.Time       `json:"fetchedAt"`
}

// PriceSourceProvider is what consumers of prices depend on.
type PriceSourceProvider interface {
	GetPrice(ctx context.Context, symbol string) (*PriceQuote, error)
}

type PriceFeedClient struct {
	httpClient  *http.Client
	Logger      *zap.Logger
	Config      *config.Config
	catalogue   *coins.Catalogue
	cache       PriceCache
	metricsSink *metrics.MetricsSink
	clock       func() time.Time
}

func NewPriceFeedClient(
	hc *http.Client,
	l *zap.Logger,
	cfg *config.Config,
	catalogue *coins.Catalogue,
	cache PriceCache,
	ms *metrics.MetricsSink,
) *PriceFeedClient {
	if hc == nil {
		timeout := time.Duration(cfg.PriceFeedConfig.TimeoutSeconds) * time.Second
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}
	if cache == nil {
		cache = NewMemoryCache()
	}
	if ms == nil {
		ms = metrics.NewNoopMetricsSink()
	}
	return &PriceFeedClient{
		httpClient:  hc,
		Logger:      l,
		Config:      cfg,
		catalogue:   catalogue,
		cache:       cache,
		metricsSink: ms,
		clock:       time.Now,
	}
}

func (pc *PriceFeedClient) cacheTtl() time.Duration {
	if pc.Config.PriceFeedConfig.CacheTtlSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(pc.Config.PriceFeedConfig.CacheTtlSeconds) * time.Second
}

// GetPrice returns the USD price of a catalogued coin. Fresh cached quotes are served without a
// request. When the feed fails the last cached quote is used, then the coin's fallback price,
// so known symbols never produce an error.
func (pc *PriceFeedClient) GetPrice(ctx context.Context, symbol string) (*PriceQuote, error) {
	coin, err := pc.catalogue.Get(symbol)
	if err != nil {
		return nil, err
	}

	cached, hasCached, err := pc.cache.Get(ctx, coin.Symbol)
	if err != nil {
		pc.Logger.Sugar().Warnw("Failed to read price cache", zap.String("symbol", coin.Symbol), zap.Error(err))
		hasCached = false
	}
	if hasCached && pc.clock().Sub(cached.FetchedAt) < pc.cacheTtl() {
		cached.Source = PriceSource_Cache
		return cached, nil
	}

	if coin.PriceFeedId != "" {
		price, err := pc.fetchPrice(ctx, coin.PriceFeedId)
		if err == nil {
			quote := &PriceQuote{
				Symbol:    coin.Symbol,
				PriceUsd:  price,
				Source:    PriceSource_Live,
				FetchedAt: pc.clock().UTC(),
			}
			if err := pc.cache.Set(ctx, quote); err != nil {
				pc.Logger.Sugar().Warnw("Failed to write price cache", zap.String("symbol", coin.Symbol), zap.Error(err))
			}
			return quote, nil
		}
		pc.Logger.Sugar().Warnw("Failed to fetch price, falling back",
			zap.String("symbol", coin.Symbol),
			zap.Error(err),
		)
	}

	if hasCached {
		pc.recordFallback(coin.Symbol, PriceSource_Cache)
		cached.Source = PriceSource_Cache
		return cached, nil
	}

	pc.recordFallback(coin.Symbol, PriceSource_Fallback)
	return &PriceQuote{
		Symbol:    coin.Symbol,
		PriceUsd:  coin.FallbackPriceUsd,
		Source:    PriceSource_Fallback,
		FetchedAt: pc.clock().UTC(),
	}, nil
}

func (pc *PriceFeedClient) recordFallback(symbol string, source PriceSource) {
	_ = pc.metricsSink.Incr(metricsTypes.Metric_Incr_PriceFeedFallback, []metricsTypes.MetricsLabel{
		{Name: "symbol", Value: symbol},
		{Name: "source", Value: string(source)},
	}, 1)
}

type simplePriceResponse map[string]map[string]json.Number

func (pc *PriceFeedClient) fetchPrice(ctx context.Context, feedId string) (decimal.Decimal, error) {
	values := url.Values{}
	values.Set("ids", feedId)
	values.Set("vs_currencies", "usd")
	fullUrl := fmt.Sprintf("%s/simple/price?%s", strings.TrimRight(pc.Config.PriceFeedConfig.BaseUrl, "/"), values.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullUrl, http.NoBody)
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "failed to create price request")
	}
	req.Header.Set("Accept", "application/json")
	if pc.Config.PriceFeedConfig.ApiKey != "" {
		req.Header.Set("x-cg-demo-api-key", pc.Config.PriceFeedConfig.ApiKey)
	}

	res, err := pc.httpClient.Do(req)
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "failed to perform price request")
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "failed to read price response")
	}
	if res.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("price feed responded with status %d: %s", res.StatusCode, string(body))
	}

	parsed := simplePriceResponse{}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return decimal.Zero, errors.Wrap(err, "failed to parse price response")
	}
	usd, ok := parsed[feedId]["usd"]
	if !ok {
		return decimal.Zero, fmt.Errorf("price feed returned no usd price for '%s'", feedId)
	}
	price, err := decimal.NewFromString(usd.String())
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "failed to parse price")
	}
	if !price.IsPositive() {
		return decimal.Zero, fmt.Errorf("price feed returned non-positive price %s for '%s'", price, feedId)
	}
	return price, nil
}
