package rewards

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stakewell/stakedash/internal/metrics/metricsTypes"
	"github.com/stakewell/stakedash/pkg/interest"
	"go.uber.org/zap"
)

type AdminRewardsReport struct {
	AsOf             time.Time       `json:"asOf"`
	DisplayedApy     decimal.Decimal `json:"displayedApy"`
	ActualApy        decimal.Decimal `json:"actualApy"`
	Spread           decimal.Decimal `json:"spread"`
	TotalStaked      decimal.Decimal `json:"totalStaked"`
	ActiveStakes     int             `json:"activeStakes"`
	Current          decimal.Decimal `json:"current"`
	MonthlyProjected decimal.Decimal `json:"monthlyProjected"`
	YearlyProjected  decimal.Decimal `json:"yearlyProjected"`
}

var twelve = decimal.NewFromInt(12)

// AdminRewards reports the operator's earnings from the APY spread. It reads only and
// calling it repeatedly with the same asOf yields the same report.
//
// current is the spread accrued on every active stake since it was created. Projections apply
// the spread to the current total for a full year, and a twelfth of that for a month.
func (rc *RewardsCalculator) AdminRewards(ctx context.Context, asOf time.Time) (*AdminRewardsReport, error) {
	rates, err := rc.GetRates(ctx)
	if err != nil {
		return nil, err
	}
	stakes, err := rc.store.ListAllActiveStakes(ctx)
	if err != nil {
		rc.logger.Sugar().Errorw("Failed to list active stakes", zap.Error(err))
		return nil, err
	}

	asOf = asOf.UTC()
	current := decimal.Zero
	totalStaked := decimal.Zero
	open := 0
	for _, stake := range stakes {
		// stakes created after asOf did not exist yet
		if stake.CreatedAt.After(asOf) {
			continue
		}
		open++
		totalStaked = totalStaked.Add(stake.Amount)
		elapsed := asOf.Sub(stake.CreatedAt)
		if elapsed <= 0 {
			continue
		}
		current = current.Add(interest.SimpleInterest(stake.Amount, rates.Spread, interest.ElapsedSeconds(elapsed)))
	}

	yearly := interest.SimpleInterest(totalStaked, rates.Spread, decimal.NewFromInt(interest.SecondsPerYear))
	report := &AdminRewardsReport{
		AsOf:             asOf,
		DisplayedApy:     rates.DisplayedApy,
		ActualApy:        rates.ActualApy,
		Spread:           rates.Spread,
		TotalStaked:      totalStaked,
		ActiveStakes:     open,
		Current:          current,
		MonthlyProjected: yearly.DivRound(twelve, interest.StoragePrecision),
		YearlyProjected:  yearly,
	}

	currentFloat, _ := current.Float64()
	_ = rc.metricsSink.Gauge(metricsTypes.Metric_Gauge_AdminSkimCurrent, currentFloat, nil)
	return report, nil
}
