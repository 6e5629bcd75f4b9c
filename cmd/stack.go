package cmd

import (
	"fmt"

	"github.com/stakewell/stakedash/internal/config"
	"github.com/stakewell/stakedash/internal/logger"
	"github.com/stakewell/stakedash/internal/metrics"
	"github.com/stakewell/stakedash/pkg/coins"
	"github.com/stakewell/stakedash/pkg/database"
	"github.com/stakewell/stakedash/pkg/eventBus"
	"github.com/stakewell/stakedash/pkg/rewards"
	"github.com/stakewell/stakedash/pkg/storage"
	pgStorage "github.com/stakewell/stakedash/pkg/storage/postgres"
	"go.uber.org/zap"
)

// stack is the wiring shared by every command that works on the ledger.
type stack struct {
	cfg               *config.Config
	logger            *zap.Logger
	db                *database.Database
	store             storage.StakingStore
	catalogue         *coins.Catalogue
	eventBus          *eventBus.EventBus
	metricsSink       *metrics.MetricsSink
	rewardsCalculator *rewards.RewardsCalculator
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: cfg.Debug, FilePath: cfg.LogConfig.File})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return l, nil
}

func loadCatalogue(cfg *config.Config) (*coins.Catalogue, error) {
	if cfg.StakingConfig.CoinsFile != "" {
		return coins.Load(cfg.StakingConfig.CoinsFile)
	}
	return coins.LoadDefault()
}

func newMetricsSink(cfg *config.Config, l *zap.Logger) (*metrics.MetricsSink, error) {
	clients, err := metrics.InitMetricsSinksFromConfig(cfg, l)
	if err != nil {
		return nil, fmt.Errorf("failed to setup metrics sink: %w", err)
	}
	return metrics.NewMetricsSink(&metrics.MetricsSinkConfig{}, clients)
}

func newStack(cfg *config.Config, l *zap.Logger) (*stack, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	catalogue, err := loadCatalogue(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load coin catalogue: %w", err)
	}
	sink, err := newMetricsSink(cfg, l)
	if err != nil {
		return nil, err
	}

	db, err := database.OpenAndMigrate(cfg, l)
	if err != nil {
		return nil, err
	}

	store := pgStorage.NewPostgresStakingStore(db.Grm, l, cfg)
	eb := eventBus.NewEventBus(l)

	rc, err := rewards.NewRewardsCalculator(l, store, cfg, eb, sink)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &stack{
		cfg:               cfg,
		logger:            l,
		db:                db,
		store:             store,
		catalogue:         catalogue,
		eventBus:          eb,
		metricsSink:       sink,
		rewardsCalculator: rc,
	}, nil
}

func (s *stack) Close() {
	if err := s.db.Close(); err != nil {
		s.logger.Sugar().Errorw("Failed to close database", zap.Error(err))
	}
}
