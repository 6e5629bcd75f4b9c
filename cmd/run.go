package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/stakewell/stakedash/internal/config"
	"github.com/stakewell/stakedash/internal/metrics/prometheus"
	"github.com/stakewell/stakedash/internal/queue/rabbitmq"
	"github.com/stakewell/stakedash/internal/shutdown"
	"github.com/stakewell/stakedash/pkg/auth"
	"github.com/stakewell/stakedash/pkg/clients/priceFeed"
	"github.com/stakewell/stakedash/pkg/clients/stakingProvider"
	"github.com/stakewell/stakedash/pkg/dashboard"
	"github.com/stakewell/stakedash/pkg/eventPublisher"
	"github.com/stakewell/stakedash/pkg/rewardsCalculatorQueue"
	"github.com/stakewell/stakedash/pkg/rpcServer"
	"github.com/stakewell/stakedash/pkg/service/portfolioDataService"
	"github.com/stakewell/stakedash/pkg/service/stakingService"
	"github.com/stakewell/stakedash/pkg/service/userService"
	"go.uber.org/zap"
)

const shutdownGracePeriod = 5 * time.Second

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the API, the rewards materializer and the event publisher",
	RunE: func(cmd *cobra.Command, args []string) error {
		bindCommandFlags(cmd)
		cfg := config.NewConfig()

		l, err := newLogger(cfg)
		if err != nil {
			return err
		}
		return runServer(cfg, l, shutdown.CreateGracefulShutdownChannel())
	},
}

// openStack is replaced in tests.
var openStack = newStack

// runServer blocks until a signal arrives on signals. Everything opened here is closed on the way
// out, including when startup fails part way.
func runServer(cfg *config.Config, l *zap.Logger, signals chan os.Signal) error {
	s, err := openStack(cfg, l)
	if err != nil {
		l.Sugar().Errorw("Failed to initialize", zap.Error(err))
		return err
	}
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tokenIssuer, err := auth.NewTokenIssuerFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("%s: %w", config.AuthJwtSecret, err)
	}

	priceCache, redisClient := newPriceCache(ctx, cfg, l)
	if redisClient != nil {
		defer func() {
			_ = redisClient.Close()
		}()
	}
	prices := priceFeed.NewPriceFeedClient(nil, l, cfg, s.catalogue, priceCache, s.metricsSink)

	rcq := rewardsCalculatorQueue.NewRewardsCalculatorQueue(s.rewardsCalculator, l)
	dash := dashboard.NewDashboard(&dashboard.DashboardConfig{}, cfg, rcq, l)
	go dash.Start(ctx)

	var promServer *prometheus.PrometheusServer
	if cfg.PrometheusConfig.Enabled {
		promServer = prometheus.NewPrometheusServer(&prometheus.PrometheusServerConfig{Port: cfg.PrometheusConfig.Port}, l)
		if err := promServer.Start(); err != nil {
			return err
		}
	}

	if cfg.RabbitMqConfig.Enabled {
		rmqConfig := rabbitmq.NewRabbitMQConfigFromConfig(cfg)
		broker := rabbitmq.NewRabbitMQ(rmqConfig, l)
		defer func() {
			if err := broker.Close(); err != nil {
				l.Sugar().Errorw("Failed to close rabbitmq", zap.Error(err))
			}
		}()
		if _, err := broker.Connect(); err != nil {
			return fmt.Errorf("failed to connect to rabbitmq: %w", err)
		}
		eventPublisher.NewEventPublisher(s.eventBus, broker, rmqConfig.Exchange, l).Start(ctx)
	}

	rpc := rpcServer.NewRpcServer(&rpcServer.Dependencies{
		Store:                  s.store,
		UserService:            userService.NewUserService(s.store, tokenIssuer, s.eventBus, l, cfg),
		StakingService:         stakingService.NewStakingService(s.store, s.catalogue, stakingProvider.NewStubProvider(l), s.eventBus, l, cfg),
		PortfolioService:       portfolioDataService.NewPortfolioDataService(s.store, s.rewardsCalculator, prices, l, cfg),
		RewardsCalculator:      s.rewardsCalculator,
		RewardsCalculatorQueue: rcq,
		Catalogue:              s.catalogue,
		Prices:                 prices,
		TokenIssuer:            tokenIssuer,
		EventBus:               s.eventBus,
		MetricsSink:            s.metricsSink,
	}, l, cfg)
	if err := rpc.Start(); err != nil {
		return err
	}

	l.Sugar().Infow("Started stakedash",
		zap.String("databaseDriver", string(cfg.DatabaseConfig.Driver)),
		zap.Int64("accrualIntervalSeconds", cfg.GetAccrualIntervalSeconds()),
	)

	shutdown.ListenForShutdown(signals, shutdownGracePeriod, l,
		func(ctx context.Context) {
			rpc.Shutdown(ctx)
		},
		func(ctx context.Context) {
			dash.Shutdown()
			cancel()
		},
		func(ctx context.Context) {
			if promServer != nil {
				promServer.Shutdown(ctx)
			}
		},
	)
	return nil
}

// newPriceCache uses redis when enabled and reachable, memory otherwise.
func newPriceCache(ctx context.Context, cfg *config.Config, l *zap.Logger) (priceFeed.PriceCache, *redis.Client) {
	if !cfg.RedisConfig.Enabled {
		return priceFeed.NewMemoryCache(), nil
	}
	client := priceFeed.NewRedisClientFromConfig(cfg)
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		l.Sugar().Warnw("Redis unreachable, caching prices in memory", zap.String("addr", cfg.RedisConfig.Addr), zap.Error(err))
		_ = client.Close()
		return priceFeed.NewMemoryCache(), nil
	}
	return priceFeed.NewRedisCache(client), client
}
