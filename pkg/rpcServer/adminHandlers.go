package rpcServer

import (
	"errors"
	"net/http"

	"github.com/shopspring/decimal"
	"github.com/stakewell/stakedash/pkg/rewards"
	"github.com/stakewell/stakedash/pkg/rewardsCalculatorQueue"
	serviceTypes "github.com/stakewell/stakedash/pkg/service/types"
	"github.com/stakewell/stakedash/pkg/storage"
)

var rateFields = map[string]string{
	storage.Setting_DisplayedApy: "displayedApy",
	storage.Setting_ActualApy:    "actualApy",
}

type UpdateSettingsRequest struct {
	DisplayedApy *decimal.Decimal `json:"displayedApy"`
	ActualApy    *decimal.Decimal `json:"actualApy"`
}

// GetAdminRewards reports the operator's spread earnings. asOf defaults to now.
func (rpc *RpcServer) GetAdminRewards(w http.ResponseWriter, r *http.Request) {
	asOf, err := queryTime(r, "asOf")
	if err != nil {
		rpc.handleError(w, err)
		return
	}
	report, err := rpc.rewardsCalculator.AdminRewards(r.Context(), rpc.portfolioService.GetAsOfIfNotPresent(asOf))
	if err != nil {
		rpc.handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// MaterializeRewards runs a materialization tick through the calculator queue so it never
// overlaps with the scheduled ticker.
func (rpc *RpcServer) MaterializeRewards(w http.ResponseWriter, r *http.Request) {
	tickTime, err := queryTime(r, "tickTime")
	if err != nil {
		rpc.handleError(w, err)
		return
	}
	res, err := rpc.rewardsCalculatorQueue.EnqueueAndWait(r.Context(), rewardsCalculatorQueue.RewardsCalculationData{
		CalculationType: rewardsCalculatorQueue.RewardsCalculationType_Materialize,
		TickTime:        tickTime,
		Source:          "admin",
	})
	if err != nil {
		rpc.handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res.Materialized)
}

// UpdateSettings changes the displayed and/or actual APY in one write. Omitted fields are left
// as they are, and nothing is saved when any given rate is invalid.
func (rpc *RpcServer) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req UpdateSettingsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		rpc.handleError(w, err)
		return
	}
	if req.DisplayedApy == nil && req.ActualApy == nil {
		rpc.handleError(w, serviceTypes.NewValidationError("", "displayedApy or actualApy is required"))
		return
	}

	rates, err := rpc.rewardsCalculator.UpdateRates(r.Context(), &rewards.RateUpdate{
		DisplayedApy: req.DisplayedApy,
		ActualApy:    req.ActualApy,
	})
	if err != nil {
		var invalid *rewards.InvalidRateError
		if errors.As(err, &invalid) {
			err = serviceTypes.NewValidationError(rateFields[invalid.Setting], "%s", rewards.ErrInvalidRate.Error())
		}
		rpc.handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rates)
}
