package rpcServer

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/stakewell/stakedash/pkg/coins"
	serviceTypes "github.com/stakewell/stakedash/pkg/service/types"
)

const defaultProjectionDays = 365

type ListCoinsResponse struct {
	DefaultCoin string        `json:"defaultCoin"`
	Coins       []*coins.Coin `json:"coins"`
}

func (rpc *RpcServer) ListCoins(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, &ListCoinsResponse{
		DefaultCoin: rpc.globalConfig.StakingConfig.DefaultCoin,
		Coins:       rpc.catalogue.List(),
	})
}

func (rpc *RpcServer) GetPrice(w http.ResponseWriter, r *http.Request) {
	quote, err := rpc.prices.GetPrice(r.Context(), chi.URLParam(r, "symbol"))
	if err != nil {
		rpc.handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

// CompoundCalculator projects daily compounding for the UI calculator. apy defaults to the
// displayed APY.
func (rpc *RpcServer) CompoundCalculator(w http.ResponseWriter, r *http.Request) {
	principal, err := queryDecimal(r, "principal")
	if err != nil {
		rpc.handleError(w, err)
		return
	}
	if principal == nil {
		rpc.handleError(w, serviceTypes.NewValidationError("principal", "is required"))
		return
	}
	apy, err := queryDecimal(r, "apy")
	if err != nil {
		rpc.handleError(w, err)
		return
	}
	days, err := queryInt(r, "days", defaultProjectionDays)
	if err != nil {
		rpc.handleError(w, err)
		return
	}

	projection, err := rpc.portfolioService.ProjectCompound(r.Context(), *principal, apy, days)
	if err != nil {
		rpc.handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, projection)
}
