package dashboard

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/stakewell/stakedash/internal/config"
	"github.com/stakewell/stakedash/pkg/rewardsCalculatorQueue"
	"go.uber.org/zap"
)

type DashboardConfig struct {
	AccrualInterval time.Duration
}

// Dashboard owns the background work of the service: the rewards queue consumer and the
// ticker that feeds it one materialization per accrual interval.
type Dashboard struct {
	Logger                 *zap.Logger
	Config                 *DashboardConfig
	GlobalConfig           *config.Config
	RewardsCalculatorQueue *rewardsCalculatorQueue.RewardsCalculatorQueue
	ShutdownChan           chan bool
	shouldShutdown         *atomic.Bool
	ticks                  atomic.Uint64
}

func NewDashboard(
	cfg *DashboardConfig,
	gCfg *config.Config,
	rcq *rewardsCalculatorQueue.RewardsCalculatorQueue,
	l *zap.Logger,
) *Dashboard {
	if cfg.AccrualInterval <= 0 {
		cfg.AccrualInterval = time.Duration(gCfg.GetAccrualIntervalSeconds()) * time.Second
	}
	shouldShutdown := &atomic.Bool{}
	shouldShutdown.Store(false)
	return &Dashboard{
		Logger:                 l,
		Config:                 cfg,
		GlobalConfig:           gCfg,
		RewardsCalculatorQueue: rcq,
		ShutdownChan:           make(chan bool),
		shouldShutdown:         shouldShutdown,
	}
}

// Start runs until ctx is cancelled or a shutdown signal arrives. It does not return early
// when a tick fails.
func (d *Dashboard) Start(ctx context.Context) {
	d.Logger.Sugar().Infow("Starting dashboard",
		zap.Duration("accrualInterval", d.Config.AccrualInterval),
	)

	go func() {
		for range d.ShutdownChan {
			d.Logger.Sugar().Infow("Received shutdown signal")
			d.shouldShutdown.Store(true)
		}
	}()

	go d.RewardsCalculatorQueue.Process()
	defer d.RewardsCalculatorQueue.Close()

	ticker := time.NewTicker(d.Config.AccrualInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.Logger.Sugar().Infow("Dashboard context done, stopping")
			return
		case tickTime := <-ticker.C:
			if d.shouldShutdown.Load() {
				d.Logger.Sugar().Infow("Dashboard shutting down")
				return
			}
			if err := d.tick(tickTime); err != nil {
				d.Logger.Sugar().Errorw("Rewards tick failed", zap.Error(err))
			}
		}
	}
}

func (d *Dashboard) tick(tickTime time.Time) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tick panicked: %v", r)
		}
	}()
	d.ticks.Add(1)
	queued := d.RewardsCalculatorQueue.TryEnqueue(&rewardsCalculatorQueue.RewardsCalculationMessage{
		Data: rewardsCalculatorQueue.RewardsCalculationData{
			CalculationType: rewardsCalculatorQueue.RewardsCalculationType_Materialize,
			TickTime:        tickTime.UTC(),
			Source:          "ticker",
		},
	})
	if !queued {
		return fmt.Errorf("rewards queue full, tick at %s skipped", tickTime.UTC())
	}
	return nil
}

func (d *Dashboard) Ticks() uint64 {
	return d.ticks.Load()
}

func (d *Dashboard) Shutdown() {
	close(d.ShutdownChan)
}
