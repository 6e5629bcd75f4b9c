package rpcServer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"github.com/stakewell/stakedash/internal/config"
	"github.com/stakewell/stakedash/internal/metrics"
	"github.com/stakewell/stakedash/pkg/auth"
	"github.com/stakewell/stakedash/pkg/clients/priceFeed"
	"github.com/stakewell/stakedash/pkg/coins"
	"github.com/stakewell/stakedash/pkg/eventBus/eventBusTypes"
	"github.com/stakewell/stakedash/pkg/rewards"
	"github.com/stakewell/stakedash/pkg/rewardsCalculatorQueue"
	"github.com/stakewell/stakedash/pkg/service/portfolioDataService"
	"github.com/stakewell/stakedash/pkg/service/stakingService"
	"github.com/stakewell/stakedash/pkg/service/userService"
	"github.com/stakewell/stakedash/pkg/storage"
	"go.uber.org/zap"
)

// Dependencies are the services the API is a thin layer over.
type Dependencies struct {
	Store                  storage.StakingStore
	UserService            *userService.UserService
	StakingService         *stakingService.StakingService
	PortfolioService       *portfolioDataService.PortfolioDataService
	RewardsCalculator      *rewards.RewardsCalculator
	RewardsCalculatorQueue *rewardsCalculatorQueue.RewardsCalculatorQueue
	Catalogue              *coins.Catalogue
	Prices                 priceFeed.PriceSourceProvider
	TokenIssuer            *auth.TokenIssuer
	EventBus               eventBusTypes.IEventBus
	MetricsSink            *metrics.MetricsSink
}

type RpcServer struct {
	Logger       *zap.Logger
	globalConfig *config.Config

	store                  storage.StakingStore
	userService            *userService.UserService
	stakingService         *stakingService.StakingService
	portfolioService       *portfolioDataService.PortfolioDataService
	rewardsCalculator      *rewards.RewardsCalculator
	rewardsCalculatorQueue *rewardsCalculatorQueue.RewardsCalculatorQueue
	catalogue              *coins.Catalogue
	prices                 priceFeed.PriceSourceProvider
	tokenIssuer            *auth.TokenIssuer
	eventBus               eventBusTypes.IEventBus
	metricsSink            *metrics.MetricsSink
	rateLimiter            *RateLimiter

	router     http.Handler
	httpServer *http.Server
}

func NewRpcServer(deps *Dependencies, l *zap.Logger, cfg *config.Config) *RpcServer {
	ms := deps.MetricsSink
	if ms == nil {
		ms = metrics.NewNoopMetricsSink()
	}
	server := &RpcServer{
		Logger:                 l,
		globalConfig:           cfg,
		store:                  deps.Store,
		userService:            deps.UserService,
		stakingService:         deps.StakingService,
		portfolioService:       deps.PortfolioService,
		rewardsCalculator:      deps.RewardsCalculator,
		rewardsCalculatorQueue: deps.RewardsCalculatorQueue,
		catalogue:              deps.Catalogue,
		prices:                 deps.Prices,
		tokenIssuer:            deps.TokenIssuer,
		eventBus:               deps.EventBus,
		metricsSink:            ms,
		rateLimiter:            NewRateLimiter(&cfg.RateLimitConfig, l),
	}
	server.router = server.buildRouter()
	return server
}

func (rpc *RpcServer) Handler() http.Handler {
	return rpc.router
}

func (rpc *RpcServer) buildRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(rpc.recoverer)
	r.Use(rpc.requestMetrics)
	r.Use(rpc.rateLimiter.Middleware)

	r.Get("/healthz", rpc.HealthCheck)
	r.Get("/readyz", rpc.ReadyCheck)

	r.Route("/v1", func(v1 chi.Router) {
		v1.Post("/users", rpc.Register)
		v1.Post("/sessions", rpc.Login)
		v1.Get("/coins", rpc.ListCoins)
		v1.Get("/prices/{symbol}", rpc.GetPrice)
		v1.Get("/calculator/compound", rpc.CompoundCalculator)

		v1.Group(func(authed chi.Router) {
			authed.Use(rpc.authenticate)

			authed.Route("/me", func(me chi.Router) {
				me.Get("/", rpc.GetMe)
				me.Put("/wallet", rpc.ConnectWallet)
				me.Post("/stakes", rpc.Stake)
				me.Post("/unstake", rpc.Unstake)
				me.Post("/withdrawals", rpc.Withdraw)
				me.Post("/withdraw-all", rpc.WithdrawAll)
				me.Post("/transfers", rpc.Transfer)
				me.Get("/portfolio", rpc.GetPortfolio)
				me.Get("/rewards/series", rpc.GetRewardsSeries)
				me.Get("/transactions", rpc.ListTransactions)
			})

			authed.Route("/admin", func(admin chi.Router) {
				admin.Use(rpc.requireAdmin)
				admin.Get("/rewards", rpc.GetAdminRewards)
				admin.Post("/rewards/materialize", rpc.MaterializeRewards)
				admin.Put("/settings", rpc.UpdateSettings)
				admin.Delete("/users/{id}", rpc.DeleteUser)
			})
		})
	})

	return rpc.corsHandler().Handler(r)
}

func (rpc *RpcServer) corsHandler() *cors.Cors {
	origins := rpc.globalConfig.RpcConfig.CorsAllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:         300,
	})
}

func (rpc *RpcServer) Start() error {
	rpc.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", rpc.globalConfig.RpcConfig.HttpPort),
		Handler:           rpc.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		rpc.Logger.Sugar().Infow("Starting HTTP server", zap.Int("port", rpc.globalConfig.RpcConfig.HttpPort))
		if err := rpc.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			rpc.Logger.Sugar().Errorw("HTTP server stopped", zap.Error(err))
		}
	}()
	return nil
}

func (rpc *RpcServer) Shutdown(ctx context.Context) {
	if rpc.httpServer == nil {
		return
	}
	rpc.Logger.Sugar().Info("Shutting down HTTP server")
	if err := rpc.httpServer.Shutdown(ctx); err != nil {
		rpc.Logger.Sugar().Errorw("Failed to shutdown HTTP server", zap.Error(err))
	}
}
