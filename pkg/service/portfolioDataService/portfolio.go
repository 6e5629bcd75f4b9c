package portfolioDataService

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stakewell/stakedash/internal/config"
	"github.com/stakewell/stakedash/pkg/clients/priceFeed"
	"github.com/stakewell/stakedash/pkg/interest"
	"github.com/stakewell/stakedash/pkg/rewards"
	"github.com/stakewell/stakedash/pkg/service/baseDataService"
	serviceTypes "github.com/stakewell/stakedash/pkg/service/types"
	"github.com/stakewell/stakedash/pkg/storage"
	"go.uber.org/zap"
)

const MaxSeriesPoints = 10000

type PortfolioDataService struct {
	baseDataService.BaseDataService
	logger            *zap.Logger
	globalConfig      *config.Config
	rewardsCalculator *rewards.RewardsCalculator
	prices            priceFeed.PriceSourceProvider
}

// NewPortfolioDataService builds the read side of a user's position. prices may be nil, in
// which case portfolios carry no USD valuation.
func NewPortfolioDataService(
	store storage.StakingStore,
	rc *rewards.RewardsCalculator,
	prices priceFeed.PriceSourceProvider,
	logger *zap.Logger,
	globalConfig *config.Config,
) *PortfolioDataService {
	return &PortfolioDataService{
		BaseDataService: baseDataService.BaseDataService{
			Store: store,
		},
		logger:            logger,
		globalConfig:      globalConfig,
		rewardsCalculator: rc,
		prices:            prices,
	}
}

type SeriesPoint struct {
	Timestamp time.Time       `json:"timestamp"`
	Value     decimal.Decimal `json:"value"`
}

type Portfolio struct {
	UserId       uint64           `json:"userId"`
	AsOf         time.Time        `json:"asOf"`
	Coin         string           `json:"coin"`
	DisplayedApy decimal.Decimal  `json:"displayedApy"`
	TotalStaked  decimal.Decimal  `json:"totalStaked"`
	ActiveStakes []*storage.Stake `json:"activeStakes"`

	Ledger *storage.LedgerSummary `json:"ledger"`

	// PendingEstimate is accrual since the last posted reward that the materializer has not
	// written yet. It is informational; the ledger is the balance of record.
	PendingEstimate decimal.Decimal `json:"pendingEstimate"`
	EstimatedTotal  decimal.Decimal `json:"estimatedTotal"`

	PriceUsd    *decimal.Decimal `json:"priceUsd,omitempty"`
	PriceSource string           `json:"priceSource,omitempty"`
	ValueUsd    *decimal.Decimal `json:"valueUsd,omitempty"`
}

type userPosition struct {
	txs      []*storage.Transaction
	timeline *interest.PrincipalTimeline
	apy      decimal.Decimal
}

func (ps *PortfolioDataService) loadPosition(ctx context.Context, userId uint64) (*userPosition, error) {
	if err := ps.UserExists(ctx, userId); err != nil {
		return nil, err
	}
	txs, err := ps.GetUserLedger(ctx, userId)
	if err != nil {
		return nil, err
	}
	rates, err := ps.rewardsCalculator.GetRates(ctx)
	if err != nil {
		return nil, err
	}
	return &userPosition{
		txs:      txs,
		timeline: interest.BuildTimeline(storage.PrincipalChanges(txs)),
		apy:      rates.DisplayedApy,
	}, nil
}

func (ps *PortfolioDataService) accruedUntil(pos *userPosition, asOf time.Time) decimal.Decimal {
	start, ok := pos.timeline.Start()
	if !ok {
		return decimal.Zero
	}
	return pos.timeline.AccruedBetween(ps.rewardsCalculator.Calculator(), pos.apy, start, asOf)
}

// CurrentRewards is the formula value of everything the user's principal history has earned
// up to asOf at the displayed APY.
func (ps *PortfolioDataService) CurrentRewards(ctx context.Context, userId uint64, asOf time.Time) (decimal.Decimal, error) {
	pos, err := ps.loadPosition(ctx, userId)
	if err != nil {
		return decimal.Zero, err
	}
	return ps.accruedUntil(pos, ps.GetAsOfIfNotPresent(asOf)), nil
}

// RewardsSeries evaluates CurrentRewards at from, from+step, ... up to and including to.
func (ps *PortfolioDataService) RewardsSeries(ctx context.Context, userId uint64, from time.Time, to time.Time, step time.Duration) ([]*SeriesPoint, error) {
	if step <= 0 {
		return nil, serviceTypes.NewValidationError("step", "must be greater than zero")
	}
	if to.Before(from) {
		return nil, serviceTypes.NewValidationError("to", "must not be before from")
	}
	count := int64(to.Sub(from)/step) + 1
	if count > MaxSeriesPoints {
		return nil, serviceTypes.NewValidationError("step", "series would have %d points, the maximum is %d", count, MaxSeriesPoints)
	}

	pos, err := ps.loadPosition(ctx, userId)
	if err != nil {
		return nil, err
	}

	from = from.UTC()
	points := make([]*SeriesPoint, 0, count)
	for i := int64(0); i < count; i++ {
		ts := from.Add(time.Duration(i) * step)
		points = append(points, &SeriesPoint{
			Timestamp: ts,
			Value:     ps.accruedUntil(pos, ts),
		})
	}
	return points, nil
}

// GetPortfolio reports the user's position at asOf. Principal comes from the ledger timeline, so
// a past asOf shows what was staked then.
func (ps *PortfolioDataService) GetPortfolio(ctx context.Context, userId uint64, asOf time.Time) (*Portfolio, error) {
	asOf = ps.GetAsOfIfNotPresent(asOf)
	pos, err := ps.loadPosition(ctx, userId)
	if err != nil {
		return nil, err
	}
	stakes, err := ps.Store.ListActiveStakes(ctx, userId)
	if err != nil {
		return nil, err
	}

	// Everything is read as of asOf: rows and stakes created after it are not visible yet.
	openStakes := make([]*storage.Stake, 0, len(stakes))
	for _, s := range stakes {
		if !s.CreatedAt.After(asOf) {
			openStakes = append(openStakes, s)
		}
	}
	visible := make([]*storage.Transaction, 0, len(pos.txs))
	for _, tx := range pos.txs {
		if !tx.CreatedAt.After(asOf) {
			visible = append(visible, tx)
		}
	}
	summary := storage.SummarizeLedger(visible)

	pendingFrom, ok := pos.timeline.Start()
	if summary.LastRewardAt != nil {
		pendingFrom, ok = *summary.LastRewardAt, true
	}
	pending := decimal.Zero
	if ok {
		pending = pos.timeline.AccruedBetween(ps.rewardsCalculator.Calculator(), pos.apy, pendingFrom, asOf)
	}

	p := &Portfolio{
		UserId:          userId,
		AsOf:            asOf,
		Coin:            ps.globalConfig.GetDefaultCoin(),
		DisplayedApy:    pos.apy,
		TotalStaked:     pos.timeline.PrincipalAt(asOf),
		ActiveStakes:    openStakes,
		Ledger:          summary,
		PendingEstimate: pending,
		EstimatedTotal:  summary.Rewards.Add(pending),
	}
	ps.attachValuation(ctx, p)
	return p, nil
}

func (ps *PortfolioDataService) attachValuation(ctx context.Context, p *Portfolio) {
	if ps.prices == nil {
		return
	}
	quote, err := ps.prices.GetPrice(ctx, p.Coin)
	if err != nil {
		ps.logger.Sugar().Warnw("Failed to price portfolio", zap.String("coin", p.Coin), zap.Error(err))
		return
	}
	value := p.TotalStaked.Add(decimal.Max(decimal.Zero, p.Ledger.Available)).Mul(quote.PriceUsd).Round(2)
	p.PriceUsd = &quote.PriceUsd
	p.PriceSource = string(quote.Source)
	p.ValueUsd = &value
}

// ProjectCompound runs the illustrative daily-compounding calculator. A nil apy uses the
// displayed APY.
func (ps *PortfolioDataService) ProjectCompound(ctx context.Context, principal decimal.Decimal, apy *decimal.Decimal, days int) (*interest.CompoundProjection, error) {
	if principal.IsNegative() {
		return nil, serviceTypes.NewValidationError("principal", "must not be negative")
	}
	if days < 0 || days > interest.MaxProjectionDays {
		return nil, serviceTypes.NewValidationError("days", "must be between 0 and %d", interest.MaxProjectionDays)
	}
	var rate decimal.Decimal
	if apy != nil {
		rate = *apy
	} else {
		rates, err := ps.rewardsCalculator.GetRates(ctx)
		if err != nil {
			return nil, err
		}
		rate = rates.DisplayedApy
	}
	if rate.IsNegative() {
		return nil, serviceTypes.NewValidationError("apy", "must not be negative")
	}
	return interest.ProjectDailyCompound(principal, rate, days)
}
