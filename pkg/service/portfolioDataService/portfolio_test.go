package portfolioDataService

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stakewell/stakedash/internal/config"
	"github.com/stakewell/stakedash/internal/logger"
	"github.com/stakewell/stakedash/internal/tests"
	"github.com/stakewell/stakedash/internal/tests/sqlite"
	"github.com/stakewell/stakedash/pkg/clients/priceFeed"
	"github.com/stakewell/stakedash/pkg/rewards"
	serviceTypes "github.com/stakewell/stakedash/pkg/service/types"
	"github.com/stakewell/stakedash/pkg/storage"
	storagePostgres "github.com/stakewell/stakedash/pkg/storage/postgres"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setup() (*gorm.DB, *zap.Logger, *config.Config, error) {
	cfg := tests.GetConfig()
	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: false})
	if err != nil {
		return nil, nil, nil, err
	}
	grm, err := sqlite.GetMigratedInMemoryDatabase(l, cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	return grm, l, cfg, nil
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type staticPrices struct {
	price decimal.Decimal
	err   error
}

func (sp *staticPrices) GetPrice(ctx context.Context, symbol string) (*priceFeed.PriceQuote, error) {
	if sp.err != nil {
		return nil, sp.err
	}
	return &priceFeed.PriceQuote{Symbol: symbol, PriceUsd: sp.price, Source: priceFeed.PriceSource_Live}, nil
}

var (
	t0   = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	year = 365 * 24 * time.Hour
)

type fixture struct {
	service *PortfolioDataService
	grm     *gorm.DB
	store   storage.StakingStore
	prices  *staticPrices
	user    *storage.User
}

func newFixture(t *testing.T) *fixture {
	grm, l, cfg, err := setup()
	require.Nil(t, err)

	store := storagePostgres.NewPostgresStakingStore(grm, l, cfg)
	rc, err := rewards.NewRewardsCalculator(l, store, cfg, nil, nil)
	require.Nil(t, err)

	user, err := store.CreateUser(context.Background(), &storage.User{
		Email:        "alice@example.com",
		PasswordHash: "hash",
		ReferralCode: "ALICE",
	})
	require.Nil(t, err)

	prices := &staticPrices{price: d("2000")}
	return &fixture{
		service: NewPortfolioDataService(store, rc, prices, l, cfg),
		grm:     grm,
		store:   store,
		prices:  prices,
		user:    user,
	}
}

func Test_CurrentRewards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	t.Run("No stakes earn nothing", func(t *testing.T) {
		v, err := f.service.CurrentRewards(ctx, f.user.Id, t0.Add(year))
		require.Nil(t, err)
		assert.True(t, v.IsZero())
	})

	_, _, err := f.store.CreateStake(ctx, f.user.Id, "ETH", d("10"), t0)
	require.Nil(t, err)

	t.Run("10 ETH for a year at 3% is 0.3", func(t *testing.T) {
		v, err := f.service.CurrentRewards(ctx, f.user.Id, t0.Add(year))
		require.Nil(t, err)
		assert.True(t, d("0.3").Equal(v), v.String())
	})

	t.Run("Later principal changes do not affect earlier values", func(t *testing.T) {
		_, _, err := f.store.CreateStake(ctx, f.user.Id, "ETH", d("10"), t0.Add(year))
		require.Nil(t, err)

		v, err := f.service.CurrentRewards(ctx, f.user.Id, t0.Add(year))
		require.Nil(t, err)
		assert.True(t, d("0.3").Equal(v), v.String())

		v, err = f.service.CurrentRewards(ctx, f.user.Id, t0.Add(2*year))
		require.Nil(t, err)
		assert.True(t, d("0.9").Equal(v), v.String())
	})

	t.Run("Unknown users are not found", func(t *testing.T) {
		_, err := f.service.CurrentRewards(ctx, 9999, t0)
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})
}

func Test_RewardsSeries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, _, err := f.store.CreateStake(ctx, f.user.Id, "ETH", d("10"), t0)
	require.Nil(t, err)

	t.Run("Evaluates evenly spaced points including both ends", func(t *testing.T) {
		points, err := f.service.RewardsSeries(ctx, f.user.Id, t0, t0.Add(year), 73*24*time.Hour)
		require.Nil(t, err)
		require.Len(t, points, 6)
		for i, p := range points {
			expected := d("0.06").Mul(decimal.NewFromInt(int64(i)))
			assert.True(t, expected.Equal(p.Value), "point %d: %s", i, p.Value)
		}
		assert.Equal(t, t0, points[0].Timestamp)
		assert.Equal(t, t0.Add(year), points[5].Timestamp)
	})

	t.Run("Values are monotone non-decreasing", func(t *testing.T) {
		points, err := f.service.RewardsSeries(ctx, f.user.Id, t0.Add(-24*time.Hour), t0.Add(30*24*time.Hour), time.Hour)
		require.Nil(t, err)
		for i := 1; i < len(points); i++ {
			assert.True(t, points[i].Value.GreaterThanOrEqual(points[i-1].Value))
		}
		assert.True(t, points[0].Value.IsZero())
	})

	t.Run("A single point when from equals to", func(t *testing.T) {
		points, err := f.service.RewardsSeries(ctx, f.user.Id, t0, t0, time.Minute)
		require.Nil(t, err)
		assert.Len(t, points, 1)
	})

	t.Run("Rejects invalid ranges", func(t *testing.T) {
		_, err := f.service.RewardsSeries(ctx, f.user.Id, t0, t0.Add(time.Hour), 0)
		assert.True(t, serviceTypes.IsValidationError(err))

		_, err = f.service.RewardsSeries(ctx, f.user.Id, t0.Add(time.Hour), t0, time.Minute)
		assert.True(t, serviceTypes.IsValidationError(err))

		_, err = f.service.RewardsSeries(ctx, f.user.Id, t0, t0.Add(24*time.Hour), time.Second)
		assert.True(t, serviceTypes.IsValidationError(err))
	})
}

func Test_GetPortfolio(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, _, err := f.store.CreateStake(ctx, f.user.Id, "ETH", d("10"), t0)
	require.Nil(t, err)
	_, err = sqlite.SeedTransaction(f.grm, &storage.Transaction{
		UserId:    f.user.Id,
		Type:      storage.TransactionType_Reward,
		Coin:      "ETH",
		Amount:    d("0.15"),
		CreatedAt: t0.Add(year / 2),
	})
	require.Nil(t, err)

	t.Run("Combines ledger and pending estimate", func(t *testing.T) {
		p, err := f.service.GetPortfolio(ctx, f.user.Id, t0.Add(year))
		require.Nil(t, err)

		assert.Equal(t, "ETH", p.Coin)
		assert.True(t, d("10").Equal(p.TotalStaked))
		assert.Len(t, p.ActiveStakes, 1)
		assert.True(t, d("3").Equal(p.DisplayedApy))
		assert.True(t, d("0.15").Equal(p.Ledger.Rewards))
		assert.True(t, d("0.15").Equal(p.Ledger.Available))
		assert.True(t, d("0.15").Equal(p.PendingEstimate), p.PendingEstimate.String())
		assert.True(t, d("0.3").Equal(p.EstimatedTotal))

		require.NotNil(t, p.ValueUsd)
		assert.True(t, d("20300").Equal(*p.ValueUsd), p.ValueUsd.String())
		assert.Equal(t, string(priceFeed.PriceSource_Live), p.PriceSource)
	})

	t.Run("A past asOf ignores rows posted after it", func(t *testing.T) {
		p, err := f.service.GetPortfolio(ctx, f.user.Id, t0.Add(year/4))
		require.Nil(t, err)

		assert.True(t, d("10").Equal(p.TotalStaked))
		assert.Len(t, p.ActiveStakes, 1)
		assert.True(t, p.Ledger.Rewards.IsZero(), p.Ledger.Rewards.String())
		assert.True(t, p.Ledger.Available.IsZero())
		assert.Nil(t, p.Ledger.LastRewardAt)
		assert.True(t, d("0.075").Equal(p.PendingEstimate), p.PendingEstimate.String())
		assert.True(t, d("0.075").Equal(p.EstimatedTotal))

		require.NotNil(t, p.ValueUsd)
		assert.True(t, d("20000").Equal(*p.ValueUsd), p.ValueUsd.String())
	})

	t.Run("Before the first stake nothing is staked", func(t *testing.T) {
		p, err := f.service.GetPortfolio(ctx, f.user.Id, t0.Add(-time.Hour))
		require.Nil(t, err)

		assert.True(t, p.TotalStaked.IsZero())
		assert.Empty(t, p.ActiveStakes)
		assert.True(t, p.PendingEstimate.IsZero())
		assert.True(t, p.EstimatedTotal.IsZero())
	})

	t.Run("Omits valuation when prices are unavailable", func(t *testing.T) {
		f.prices.err = errors.New("no prices")
		defer func() { f.prices.err = nil }()

		p, err := f.service.GetPortfolio(ctx, f.user.Id, t0.Add(year))
		require.Nil(t, err)
		assert.Nil(t, p.ValueUsd)
		assert.Nil(t, p.PriceUsd)
	})
}

func Test_ProjectCompound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p, err := f.service.ProjectCompound(ctx, d("1000"), nil, 365)
	require.Nil(t, err)
	assert.True(t, d("3").Equal(p.ApyPercent))
	assert.True(t, p.TotalInterest.GreaterThan(d("30")))

	apy := d("5")
	p, err = f.service.ProjectCompound(ctx, d("1000"), &apy, 0)
	require.Nil(t, err)
	assert.True(t, p.TotalInterest.IsZero())

	_, err = f.service.ProjectCompound(ctx, d("1000"), nil, -1)
	assert.True(t, serviceTypes.IsValidationError(err))

	negative := d("-1")
	_, err = f.service.ProjectCompound(ctx, d("1000"), &negative, 10)
	assert.True(t, serviceTypes.IsValidationError(err))
}
