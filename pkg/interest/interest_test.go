package interest

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func Test_AccruedReward(t *testing.T) {
	t.Run("One year at 3% on 1000 is 30", func(t *testing.T) {
		res := AccruedReward(d("1000"), d("3"), decimal.NewFromInt(SecondsPerYear))
		assert.True(t, d("30").Equal(res), res.String())
	})

	t.Run("Zero elapsed time accrues nothing", func(t *testing.T) {
		for _, p := range []string{"0", "0.01", "10", "1000000"} {
			for _, apy := range []string{"0", "3", "150"} {
				assert.True(t, AccruedReward(d(p), d(apy), decimal.Zero).IsZero())
			}
		}
	})

	t.Run("Zero principal accrues nothing", func(t *testing.T) {
		for _, secs := range []int64{0, 1, 60, SecondsPerYear} {
			assert.True(t, AccruedReward(decimal.Zero, d("3"), decimal.NewFromInt(secs)).IsZero())
		}
	})

	t.Run("Principal below the minimum stake accrues nothing", func(t *testing.T) {
		assert.True(t, AccruedReward(d("0.005"), d("3"), decimal.NewFromInt(SecondsPerYear*10)).IsZero())
		assert.True(t, AccruedReward(d("0.01"), d("3"), decimal.NewFromInt(SecondsPerYear)).Equal(d("0.0003")))
	})

	t.Run("Monotonically non-decreasing in elapsed time", func(t *testing.T) {
		calc := NewCalculator(DefaultMinStake)
		previous := decimal.Zero
		for secs := int64(0); secs <= 7200; secs += 7 {
			current := calc.AccruedReward(d("10.123456789"), d("3"), decimal.NewFromInt(secs))
			assert.True(t, current.GreaterThanOrEqual(previous), "t=%d", secs)
			previous = current
		}
	})

	t.Run("One interval on 10 ETH", func(t *testing.T) {
		res := AccruedReward(d("10"), d("3"), decimal.NewFromInt(60))
		// 10 * 0.03 * 60 / 31536000
		assert.Equal(t, "0.000000570776255708", res.String())
	})

	t.Run("Ledger of per-minute postings converges to the yearly formula", func(t *testing.T) {
		perTick := AccruedReward(d("10"), d("3"), decimal.NewFromInt(60))
		ticksPerYear := int64(SecondsPerYear / 60)
		ledger := perTick.Mul(decimal.NewFromInt(ticksPerYear))
		formula := AccruedReward(d("10"), d("3"), decimal.NewFromInt(SecondsPerYear))

		assert.True(t, formula.Equal(d("0.3")))
		assert.True(t, ledger.Sub(formula).Abs().LessThan(d("0.000000001")), ledger.String())
	})

	t.Run("SimpleInterest keeps negative spreads", func(t *testing.T) {
		res := SimpleInterest(d("100"), d("-0.5"), decimal.NewFromInt(SecondsPerYear))
		assert.True(t, d("-0.5").Equal(res))
	})

	t.Run("ElapsedSeconds has millisecond resolution", func(t *testing.T) {
		assert.True(t, d("1.5").Equal(ElapsedSeconds(1500*time.Millisecond)))
	})
}

func Test_PrincipalTimeline(t *testing.T) {
	calc := NewCalculator(DefaultMinStake)
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	year := time.Duration(SecondsPerYear) * time.Second

	t.Run("Empty timeline", func(t *testing.T) {
		tl := BuildTimeline(nil)
		assert.True(t, tl.IsEmpty())
		_, ok := tl.Start()
		assert.False(t, ok)
		assert.True(t, tl.AccruedBetween(calc, d("3"), t0, t0.Add(year)).IsZero())
	})

	t.Run("Constant principal matches the flat formula", func(t *testing.T) {
		tl := BuildTimeline([]PrincipalChange{{At: t0, Delta: d("10")}})
		assert.True(t, d("0.3").Equal(tl.AccruedBetween(calc, d("3"), t0, t0.Add(year))))
	})

	t.Run("Additional deposits only accrue from their own timestamp", func(t *testing.T) {
		half := year / 2
		tl := BuildTimeline([]PrincipalChange{
			{At: t0.Add(half), Delta: d("10")},
			{At: t0, Delta: d("10")},
		})
		assert.True(t, d("10").Equal(tl.PrincipalAt(t0.Add(time.Hour))))
		assert.True(t, d("20").Equal(tl.PrincipalAt(t0.Add(half))))
		assert.True(t, decimal.Zero.Equal(tl.PrincipalAt(t0.Add(-time.Second))))

		// 10 for half a year + 20 for half a year at 3% = 0.15 + 0.3
		res := tl.AccruedBetween(calc, d("3"), t0, t0.Add(year))
		assert.True(t, d("0.45").Equal(res), res.String())
	})

	t.Run("Withdraw all closes principal", func(t *testing.T) {
		tl := BuildTimeline([]PrincipalChange{
			{At: t0, Delta: d("10")},
			{At: t0.Add(year / 2), Delta: d("-10")},
		})
		assert.True(t, tl.PrincipalAt(t0.Add(year)).IsZero())
		res := tl.AccruedBetween(calc, d("3"), t0, t0.Add(year))
		assert.True(t, d("0.15").Equal(res), res.String())
	})

	t.Run("Principal never goes negative", func(t *testing.T) {
		tl := BuildTimeline([]PrincipalChange{
			{At: t0, Delta: d("1")},
			{At: t0.Add(time.Hour), Delta: d("-5")},
		})
		assert.True(t, decimal.Zero.Equal(tl.PrincipalAt(t0.Add(2*time.Hour))))
	})

	t.Run("Window clipping", func(t *testing.T) {
		tl := BuildTimeline([]PrincipalChange{{At: t0, Delta: d("10")}})
		from := t0.Add(year / 4)
		res := tl.AccruedBetween(calc, d("3"), from, from.Add(year/2))
		assert.True(t, d("0.15").Equal(res), res.String())
		assert.True(t, tl.AccruedBetween(calc, d("3"), from, from).IsZero())
	})

	t.Run("Segments below the floor accrue nothing", func(t *testing.T) {
		tl := BuildTimeline([]PrincipalChange{
			{At: t0, Delta: d("0.005")},
			{At: t0.Add(year / 2), Delta: d("9.995")},
		})
		res := tl.AccruedBetween(calc, d("3"), t0, t0.Add(year))
		assert.True(t, d("0.15").Equal(res), res.String())
	})
}

func Test_ProjectDailyCompound(t *testing.T) {
	t.Run("Compounding beats simple interest", func(t *testing.T) {
		p, err := ProjectDailyCompound(d("1000"), d("3"), 365)
		assert.Nil(t, err)
		assert.Equal(t, 366, len(p.Points))
		assert.True(t, p.TotalInterest.GreaterThan(d("30")))
		assert.True(t, p.TotalInterest.LessThan(d("30.5")))
		assert.True(t, p.Points[0].Balance.Equal(d("1000")))
	})

	t.Run("Zero days", func(t *testing.T) {
		p, err := ProjectDailyCompound(d("5"), d("3"), 0)
		assert.Nil(t, err)
		assert.True(t, p.TotalInterest.IsZero())
	})

	t.Run("Invalid input", func(t *testing.T) {
		_, err := ProjectDailyCompound(d("-1"), d("3"), 10)
		assert.NotNil(t, err)
		_, err = ProjectDailyCompound(d("1"), d("3"), MaxProjectionDays+1)
		assert.NotNil(t, err)
	})
}
