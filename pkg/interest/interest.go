// Package interest holds the symbol-agnostic reward arithmetic: simple (non-compounding)
// interest over elapsed wall-clock time, integrated over a piecewise-constant principal.
//
// All amounts are shopspring decimals rounded to StoragePrecision fractional digits so that
// thousands of per-interval postings do not accumulate binary floating point drift.
package interest

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	// SecondsPerYear ignores leap years.
	SecondsPerYear = 365 * 24 * 60 * 60

	// StoragePrecision matches the numeric(38,18) ledger columns.
	StoragePrecision = 18
)

var (
	hundred         = decimal.NewFromInt(100)
	thousand        = decimal.NewFromInt(1000)
	yearDenominator = hundred.Mul(decimal.NewFromInt(SecondsPerYear))

	DefaultMinStake = decimal.RequireFromString("0.01")
)

// SimpleInterest returns principal * (ratePercent/100) * (elapsedSeconds/SecondsPerYear).
// No floor is applied and negative inputs produce negative results, which the skim report relies on.
func SimpleInterest(principal decimal.Decimal, ratePercent decimal.Decimal, elapsedSeconds decimal.Decimal) decimal.Decimal {
	if principal.IsZero() || ratePercent.IsZero() || elapsedSeconds.IsZero() {
		return decimal.Zero
	}
	return principal.Mul(ratePercent).Mul(elapsedSeconds).DivRound(yearDenominator, StoragePrecision)
}

// ElapsedSeconds converts a duration to seconds with millisecond resolution.
func ElapsedSeconds(d time.Duration) decimal.Decimal {
	return decimal.NewFromInt(d.Milliseconds()).Div(thousand)
}

type Calculator struct {
	minStake decimal.Decimal
}

func NewCalculator(minStake decimal.Decimal) *Calculator {
	if minStake.IsNegative() {
		minStake = decimal.Zero
	}
	return &Calculator{minStake: minStake}
}

func (c *Calculator) MinStake() decimal.Decimal {
	return c.minStake
}

// AccruedReward is the reward owed for holding principal for elapsedSeconds at apyPercent.
// Principal below the minimum stake, non-positive APY and non-positive elapsed time accrue nothing.
func (c *Calculator) AccruedReward(principal decimal.Decimal, apyPercent decimal.Decimal, elapsedSeconds decimal.Decimal) decimal.Decimal {
	if principal.LessThan(c.minStake) || !principal.IsPositive() {
		return decimal.Zero
	}
	if !apyPercent.IsPositive() || !elapsedSeconds.IsPositive() {
		return decimal.Zero
	}
	return SimpleInterest(principal, apyPercent, elapsedSeconds)
}

func (c *Calculator) AccruedRewardForDuration(principal decimal.Decimal, apyPercent decimal.Decimal, d time.Duration) decimal.Decimal {
	return c.AccruedReward(principal, apyPercent, ElapsedSeconds(d))
}

// AccruedReward uses the reference 0.01 minimum stake.
func AccruedReward(principal decimal.Decimal, apyPercent decimal.Decimal, elapsedSeconds decimal.Decimal) decimal.Decimal {
	return NewCalculator(DefaultMinStake).AccruedReward(principal, apyPercent, elapsedSeconds)
}
