package rpcServer

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stakewell/stakedash/pkg/service/portfolioDataService"
)

const (
	defaultSeriesWindow = 7 * 24 * time.Hour
	defaultSeriesStep   = time.Hour
)

type RewardsSeriesResponse struct {
	From    time.Time                           `json:"from"`
	To      time.Time                           `json:"to"`
	Step    string                              `json:"step"`
	Current decimal.Decimal                     `json:"current"`
	Points  []*portfolioDataService.SeriesPoint `json:"points"`
}

// GetPortfolio returns the caller's dashboard. asOf defaults to now.
func (rpc *RpcServer) GetPortfolio(w http.ResponseWriter, r *http.Request) {
	asOf, err := queryTime(r, "asOf")
	if err != nil {
		rpc.handleError(w, err)
		return
	}
	portfolio, err := rpc.portfolioService.GetPortfolio(r.Context(), currentUserId(r), asOf)
	if err != nil {
		rpc.handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, portfolio)
}

// GetRewardsSeries returns the accrued rewards curve for charts. Without parameters it covers
// the last week in hourly steps.
func (rpc *RpcServer) GetRewardsSeries(w http.ResponseWriter, r *http.Request) {
	to, err := queryTime(r, "to")
	if err != nil {
		rpc.handleError(w, err)
		return
	}
	from, err := queryTime(r, "from")
	if err != nil {
		rpc.handleError(w, err)
		return
	}
	step, err := queryDuration(r, "step", defaultSeriesStep)
	if err != nil {
		rpc.handleError(w, err)
		return
	}

	to = rpc.portfolioService.GetAsOfIfNotPresent(to)
	if from.IsZero() {
		from = to.Add(-defaultSeriesWindow)
	}

	userId := currentUserId(r)
	points, err := rpc.portfolioService.RewardsSeries(r.Context(), userId, from, to, step)
	if err != nil {
		rpc.handleError(w, err)
		return
	}
	current, err := rpc.portfolioService.CurrentRewards(r.Context(), userId, to)
	if err != nil {
		rpc.handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, &RewardsSeriesResponse{
		From:    from.UTC(),
		To:      to,
		Step:    step.String(),
		Current: current,
		Points:  points,
	})
}
