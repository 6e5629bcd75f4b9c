package interest

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

type Breakpoint struct {
	At        time.Time
	Principal decimal.Decimal
}

// PrincipalChange is a ledger event that moves the staked principal.
type PrincipalChange struct {
	At    time.Time
	Delta decimal.Decimal
}

// PrincipalTimeline is principal as a piecewise-constant function of time. Principal is zero
// before the first breakpoint and each breakpoint holds until the next one.
type PrincipalTimeline struct {
	breakpoints []Breakpoint
}

func NewPrincipalTimeline(points []Breakpoint) *PrincipalTimeline {
	sorted := make([]Breakpoint, len(points))
	copy(sorted, points)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].At.Before(sorted[j].At)
	})

	// collapse equal timestamps, last write wins
	collapsed := make([]Breakpoint, 0, len(sorted))
	for _, bp := range sorted {
		if n := len(collapsed); n > 0 && collapsed[n-1].At.Equal(bp.At) {
			collapsed[n-1] = bp
			continue
		}
		collapsed = append(collapsed, bp)
	}
	return &PrincipalTimeline{breakpoints: collapsed}
}

// BuildTimeline folds ledger changes into breakpoints. Running principal never drops below zero.
func BuildTimeline(changes []PrincipalChange) *PrincipalTimeline {
	sorted := make([]PrincipalChange, len(changes))
	copy(sorted, changes)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].At.Before(sorted[j].At)
	})

	running := decimal.Zero
	points := make([]Breakpoint, 0, len(sorted))
	for _, c := range sorted {
		running = running.Add(c.Delta)
		if running.IsNegative() {
			running = decimal.Zero
		}
		points = append(points, Breakpoint{At: c.At, Principal: running})
	}
	return NewPrincipalTimeline(points)
}

func (pt *PrincipalTimeline) IsEmpty() bool {
	return len(pt.breakpoints) == 0
}

// Start returns the time of the first breakpoint.
func (pt *PrincipalTimeline) Start() (time.Time, bool) {
	if pt.IsEmpty() {
		return time.Time{}, false
	}
	return pt.breakpoints[0].At, true
}

func (pt *PrincipalTimeline) PrincipalAt(t time.Time) decimal.Decimal {
	idx := sort.Search(len(pt.breakpoints), func(i int) bool {
		return pt.breakpoints[i].At.After(t)
	})
	if idx == 0 {
		return decimal.Zero
	}
	return pt.breakpoints[idx-1].Principal
}

// AccruedBetween integrates the interest formula over every constant-principal segment
// intersecting [from, to). The minimum-stake floor is applied per segment.
func (pt *PrincipalTimeline) AccruedBetween(calc *Calculator, apyPercent decimal.Decimal, from time.Time, to time.Time) decimal.Decimal {
	if !to.After(from) {
		return decimal.Zero
	}
	total := decimal.Zero
	for i, bp := range pt.breakpoints {
		segStart := bp.At
		segEnd := to
		if i+1 < len(pt.breakpoints) {
			segEnd = pt.breakpoints[i+1].At
		}
		if segStart.Before(from) {
			segStart = from
		}
		if segEnd.After(to) {
			segEnd = to
		}
		if !segEnd.After(segStart) {
			continue
		}
		total = total.Add(calc.AccruedRewardForDuration(bp.Principal, apyPercent, segEnd.Sub(segStart)))
	}
	return total
}
