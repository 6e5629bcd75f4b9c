package rewards

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stakewell/stakedash/internal/metrics/metricsTypes"
	"github.com/stakewell/stakedash/pkg/eventBus/eventBusTypes"
	"github.com/stakewell/stakedash/pkg/interest"
	"github.com/stakewell/stakedash/pkg/storage"
	"go.uber.org/zap"
)

type SkipReason string

const (
	SkipReason_BelowMinStake    SkipReason = "below_min_stake"
	SkipReason_BelowMinPostable SkipReason = "below_min_postable"
	SkipReason_AlreadyPosted    SkipReason = "already_posted"
)

type MaterializeResult struct {
	TickTime        time.Time          `json:"tickTime"`
	PostingBucket   int64              `json:"postingBucket"`
	IntervalSeconds int64              `json:"intervalSeconds"`
	DisplayedApy    decimal.Decimal    `json:"displayedApy"`
	Users           int                `json:"users"`
	Posted          int                `json:"posted"`
	ReferralsPosted int                `json:"referralsPosted"`
	Skipped         map[SkipReason]int `json:"skipped"`
	Errored         int                `json:"errored"`
	TotalRewarded   decimal.Decimal    `json:"totalRewarded"`
}

func (r *MaterializeResult) SkippedCount() int {
	total := 0
	for _, c := range r.Skipped {
		total += c
	}
	return total
}

// MaterializeRewards posts one reward per user with active stake for the window tickTime
// falls in. A failure for one user is logged and counted; the remaining users still post.
// An error is only returned when the job could not start or the context was cancelled.
func (rc *RewardsCalculator) MaterializeRewards(ctx context.Context, tickTime time.Time) (*MaterializeResult, error) {
	start := time.Now()
	tickTime = tickTime.UTC()
	result := &MaterializeResult{
		TickTime:        tickTime,
		PostingBucket:   rc.PostingBucket(tickTime),
		IntervalSeconds: rc.IntervalSeconds(),
		Skipped:         make(map[SkipReason]int),
		TotalRewarded:   decimal.Zero,
	}

	rates, err := rc.GetRates(ctx)
	if err != nil {
		rc.logger.Sugar().Errorw("Failed to resolve rates", zap.Error(err))
		return nil, err
	}
	result.DisplayedApy = rates.DisplayedApy

	totals, err := rc.store.ListActiveStakeTotals(ctx)
	if err != nil {
		rc.logger.Sugar().Errorw("Failed to list active stake totals", zap.Error(err))
		return nil, err
	}
	result.Users = len(totals)
	_ = rc.metricsSink.Gauge(metricsTypes.Metric_Gauge_ActiveStakers, float64(len(totals)), nil)

	for _, total := range totals {
		if err := ctx.Err(); err != nil {
			rc.logger.Sugar().Warnw("Materialization cancelled", zap.Error(err), zap.Int64("bucket", result.PostingBucket))
			return result, err
		}
		rc.materializeUser(ctx, total, rates, result)
	}

	_ = rc.metricsSink.Timing(metricsTypes.Metric_Timing_MaterializeDuration, time.Since(start), nil)
	_ = rc.metricsSink.Gauge(metricsTypes.Metric_Gauge_LastTickPostedUnix, float64(tickTime.Unix()), nil)

	rc.logger.Sugar().Infow("Materialized rewards",
		zap.Time("tickTime", tickTime),
		zap.Int64("bucket", result.PostingBucket),
		zap.Int("users", result.Users),
		zap.Int("posted", result.Posted),
		zap.Int("skipped", result.SkippedCount()),
		zap.Int("errored", result.Errored),
		zap.String("totalRewarded", result.TotalRewarded.String()),
	)
	rc.publish(eventBusTypes.Event_RewardsTickCompleted, &eventBusTypes.RewardsTickCompletedData{
		TickTime:      tickTime,
		PostingBucket: result.PostingBucket,
		Posted:        result.Posted,
		Skipped:       result.SkippedCount(),
		Errored:       result.Errored,
	})
	return result, nil
}

func (rc *RewardsCalculator) skip(result *MaterializeResult, userId uint64, reason SkipReason) {
	result.Skipped[reason]++
	_ = rc.metricsSink.Incr(metricsTypes.Metric_Incr_RewardSkipped, []metricsTypes.MetricsLabel{
		{Name: "reason", Value: string(reason)},
	}, 1)
	rc.logger.Sugar().Debugw("Skipped reward", zap.Uint64("userId", userId), zap.String("reason", string(reason)))
}

func (rc *RewardsCalculator) fail(result *MaterializeResult, userId uint64, err error) {
	result.Errored++
	_ = rc.metricsSink.Incr(metricsTypes.Metric_Incr_RewardErrored, nil, 1)
	rc.logger.Sugar().Errorw("Failed to materialize reward", zap.Uint64("userId", userId), zap.Error(err))
}

func (rc *RewardsCalculator) materializeUser(ctx context.Context, total *storage.StakeTotal, rates *Rates, result *MaterializeResult) {
	defer func() {
		if r := recover(); r != nil {
			rc.fail(result, total.UserId, fmt.Errorf("panic: %v", r))
		}
	}()

	stakingCfg := rc.globalConfig.StakingConfig
	if total.Total.LessThan(rc.calculator.MinStake()) {
		rc.skip(result, total.UserId, SkipReason_BelowMinStake)
		return
	}

	reward := rc.calculator.AccruedReward(total.Total, rates.DisplayedApy, decimal.NewFromInt(result.IntervalSeconds))
	if reward.LessThan(stakingCfg.MinPostable) || !reward.IsPositive() {
		rc.skip(result, total.UserId, SkipReason_BelowMinPostable)
		return
	}

	exists, err := rc.store.HasRewardInBucket(ctx, total.UserId, result.PostingBucket)
	if err != nil {
		rc.fail(result, total.UserId, err)
		return
	}
	if exists {
		rc.skip(result, total.UserId, SkipReason_AlreadyPosted)
		return
	}

	posting := &storage.RewardPosting{
		UserId:          total.UserId,
		Coin:            rc.globalConfig.GetDefaultCoin(),
		Amount:          reward,
		PrincipalAmount: total.Total,
		ApyPercent:      rates.DisplayedApy,
		IntervalSeconds: result.IntervalSeconds,
		PostingBucket:   result.PostingBucket,
		PostedAt:        result.TickTime,
	}
	if total.ReferrerId != nil {
		posting.ReferrerId = total.ReferrerId
		posting.ReferralAmount = reward.Mul(stakingCfg.ReferralRate).Round(interest.StoragePrecision)
	}

	posted, err := rc.store.PostReward(ctx, posting)
	if err != nil {
		if errors.Is(err, storage.ErrAlreadyPosted) {
			rc.skip(result, total.UserId, SkipReason_AlreadyPosted)
			return
		}
		rc.fail(result, total.UserId, err)
		return
	}

	result.Posted++
	result.TotalRewarded = result.TotalRewarded.Add(reward)
	_ = rc.metricsSink.Incr(metricsTypes.Metric_Incr_RewardPosted, nil, 1)
	rc.publish(eventBusTypes.Event_RewardPosted, &eventBusTypes.RewardPostedData{
		UserId:        total.UserId,
		TransactionId: posted.Transaction.Id,
		Amount:        reward,
		Principal:     total.Total,
		ApyPercent:    rates.DisplayedApy,
		PostingBucket: result.PostingBucket,
		PostedAt:      result.TickTime,
	})

	if posted.ReferralReward != nil {
		result.ReferralsPosted++
		_ = rc.metricsSink.Incr(metricsTypes.Metric_Incr_ReferralRewardPosted, nil, 1)
		rc.publish(eventBusTypes.Event_ReferralRewardPosted, &eventBusTypes.ReferralRewardPostedData{
			ReferrerId:          posted.ReferralReward.ReferrerId,
			RefereeId:           posted.ReferralReward.RefereeId,
			TransactionId:       posted.ReferralReward.TransactionId,
			SourceTransactionId: posted.ReferralReward.SourceTransactionId,
			Amount:              posted.ReferralReward.Amount,
			PostedAt:            result.TickTime,
		})
	}
}
