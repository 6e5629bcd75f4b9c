// Package rewards turns active stakes into ledger postings and reports the operator skim.
//
// Users accrue simple interest at the displayed APY. The operator earns the spread between the
// actual and displayed APY; that figure is only ever reported, never posted.
package rewards

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stakewell/stakedash/internal/config"
	"github.com/stakewell/stakedash/internal/metrics"
	"github.com/stakewell/stakedash/pkg/eventBus/eventBusTypes"
	"github.com/stakewell/stakedash/pkg/interest"
	"github.com/stakewell/stakedash/pkg/storage"
	"go.uber.org/zap"
)

type RewardsCalculator struct {
	logger       *zap.Logger
	store        storage.StakingStore
	globalConfig *config.Config
	calculator   *interest.Calculator
	eventBus     eventBusTypes.IEventBus
	metricsSink  *metrics.MetricsSink
}

func NewRewardsCalculator(
	l *zap.Logger,
	store storage.StakingStore,
	cfg *config.Config,
	eb eventBusTypes.IEventBus,
	ms *metrics.MetricsSink,
) (*RewardsCalculator, error) {
	if store == nil {
		return nil, fmt.Errorf("staking store is required")
	}
	if ms == nil {
		ms = metrics.NewNoopMetricsSink()
	}
	return &RewardsCalculator{
		logger:       l,
		store:        store,
		globalConfig: cfg,
		calculator:   interest.NewCalculator(cfg.StakingConfig.MinStake),
		eventBus:     eb,
		metricsSink:  ms,
	}, nil
}

func (rc *RewardsCalculator) Calculator() *interest.Calculator {
	return rc.calculator
}

func (rc *RewardsCalculator) IntervalSeconds() int64 {
	return rc.globalConfig.GetAccrualIntervalSeconds()
}

// PostingBucket is the accrual window a tick falls in. Every tick inside the same window maps
// to the same bucket, which is what the unique index on transactions keys on.
func (rc *RewardsCalculator) PostingBucket(tickTime time.Time) int64 {
	interval := rc.IntervalSeconds()
	unix := tickTime.Unix()
	bucket := unix / interval
	if unix < 0 && unix%interval != 0 {
		bucket--
	}
	return bucket
}

func (rc *RewardsCalculator) publish(name string, data any) {
	if rc.eventBus == nil {
		return
	}
	rc.eventBus.Publish(&eventBusTypes.Event{Name: name, Data: data})
}

type Rates struct {
	DisplayedApy decimal.Decimal `json:"displayedApy"`
	ActualApy    decimal.Decimal `json:"actualApy"`
	// Spread is actual minus displayed. A negative spread is reported as is.
	Spread decimal.Decimal `json:"spread"`
}

// GetRates resolves the APYs from staking_settings, falling back to configuration.
func (rc *RewardsCalculator) GetRates(ctx context.Context) (*Rates, error) {
	displayed, err := rc.getRateSetting(ctx, storage.Setting_DisplayedApy, rc.globalConfig.StakingConfig.DisplayedApy)
	if err != nil {
		return nil, err
	}
	actual, err := rc.getRateSetting(ctx, storage.Setting_ActualApy, rc.globalConfig.StakingConfig.ActualApy)
	if err != nil {
		return nil, err
	}
	return &Rates{
		DisplayedApy: displayed,
		ActualApy:    actual,
		Spread:       actual.Sub(displayed),
	}, nil
}

func (rc *RewardsCalculator) getRateSetting(ctx context.Context, name string, defaultValue decimal.Decimal) (decimal.Decimal, error) {
	setting, err := rc.store.GetSetting(ctx, name)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return defaultValue, nil
		}
		return decimal.Zero, fmt.Errorf("failed to read setting '%s': %w", name, err)
	}
	value, err := decimal.NewFromString(setting.Value)
	if err != nil {
		rc.logger.Sugar().Warnw("Ignoring malformed rate setting",
			zap.String("name", name),
			zap.String("value", setting.Value),
		)
		return defaultValue, nil
	}
	return value, nil
}

var ErrInvalidRate = errors.New("rate must be between 0 and 100")

// InvalidRateError names the rate setting that failed validation.
type InvalidRateError struct {
	Setting string
}

func (e *InvalidRateError) Error() string {
	return fmt.Sprintf("%s: %s", e.Setting, ErrInvalidRate.Error())
}

func (e *InvalidRateError) Unwrap() error {
	return ErrInvalidRate
}

// RateUpdate carries new APYs. Nil fields are left unchanged.
type RateUpdate struct {
	DisplayedApy *decimal.Decimal
	ActualApy    *decimal.Decimal
}

// UpdateRates validates every given rate before saving any, then saves them together.
func (rc *RewardsCalculator) UpdateRates(ctx context.Context, update *RateUpdate) (*Rates, error) {
	candidates := []struct {
		name  string
		value *decimal.Decimal
	}{
		{storage.Setting_DisplayedApy, update.DisplayedApy},
		{storage.Setting_ActualApy, update.ActualApy},
	}
	settings := make([]*storage.StakingSetting, 0, len(candidates))
	for _, c := range candidates {
		if c.value == nil {
			continue
		}
		if c.value.IsNegative() || c.value.GreaterThan(decimal.NewFromInt(100)) {
			return nil, &InvalidRateError{Setting: c.name}
		}
		settings = append(settings, &storage.StakingSetting{Name: c.name, Value: c.value.String()})
	}
	if len(settings) == 0 {
		return rc.GetRates(ctx)
	}

	saved, err := rc.store.PutSettings(ctx, settings)
	if err != nil {
		return nil, fmt.Errorf("failed to save rates: %w", err)
	}
	for _, setting := range saved {
		rc.logger.Sugar().Infow("Updated staking rate", zap.String("name", setting.Name), zap.String("value", setting.Value))
		rc.publish(eventBusTypes.Event_StakingSettingsUpdate, &eventBusTypes.StakingSettingsUpdatedData{
			Name:      setting.Name,
			Value:     setting.Value,
			UpdatedAt: setting.UpdatedAt,
		})
	}
	return rc.GetRates(ctx)
}
