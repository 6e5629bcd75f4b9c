package rpcServer

import (
	"math"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/stakewell/stakedash/pkg/service/stakingService"
	serviceTypes "github.com/stakewell/stakedash/pkg/service/types"
	"github.com/stakewell/stakedash/pkg/storage"
)

type AmountRequest struct {
	Coin   string           `json:"coin"`
	Amount *decimal.Decimal `json:"amount"`
}

type WithdrawAllRequest struct {
	Coin string `json:"coin"`
}

type TransferRequest struct {
	RecipientReferralCode string           `json:"recipientReferralCode"`
	RecipientId           uint64           `json:"recipientId"`
	Coin                  string           `json:"coin"`
	Amount                *decimal.Decimal `json:"amount"`
}

type ListTransactionsResponse struct {
	Transactions []*storage.Transaction `json:"transactions"`
	Page         uint32                 `json:"page"`
	PageSize     uint32                 `json:"pageSize"`
}

func (rpc *RpcServer) decodeAmountRequest(w http.ResponseWriter, r *http.Request) (*AmountRequest, decimal.Decimal, error) {
	var req AmountRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return nil, decimal.Zero, err
	}
	amount, err := requireAmount(req.Amount)
	if err != nil {
		return nil, decimal.Zero, err
	}
	return &req, amount, nil
}

func (rpc *RpcServer) Stake(w http.ResponseWriter, r *http.Request) {
	req, amount, err := rpc.decodeAmountRequest(w, r)
	if err != nil {
		rpc.handleError(w, err)
		return
	}
	result, err := rpc.stakingService.Stake(r.Context(), currentUserId(r), req.Coin, amount)
	if err != nil {
		rpc.handleError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (rpc *RpcServer) Unstake(w http.ResponseWriter, r *http.Request) {
	req, amount, err := rpc.decodeAmountRequest(w, r)
	if err != nil {
		rpc.handleError(w, err)
		return
	}
	tx, err := rpc.stakingService.Unstake(r.Context(), currentUserId(r), req.Coin, amount)
	if err != nil {
		rpc.handleError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, tx)
}

func (rpc *RpcServer) Withdraw(w http.ResponseWriter, r *http.Request) {
	req, amount, err := rpc.decodeAmountRequest(w, r)
	if err != nil {
		rpc.handleError(w, err)
		return
	}
	tx, err := rpc.stakingService.Withdraw(r.Context(), currentUserId(r), req.Coin, amount)
	if err != nil {
		rpc.handleError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, tx)
}

func (rpc *RpcServer) WithdrawAll(w http.ResponseWriter, r *http.Request) {
	var req WithdrawAllRequest
	if err := decodeOptionalJSON(w, r, &req); err != nil {
		rpc.handleError(w, err)
		return
	}
	tx, err := rpc.stakingService.WithdrawAll(r.Context(), currentUserId(r), req.Coin)
	if err != nil {
		rpc.handleError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, tx)
}

func (rpc *RpcServer) Transfer(w http.ResponseWriter, r *http.Request) {
	var req TransferRequest
	if err := decodeJSON(w, r, &req); err != nil {
		rpc.handleError(w, err)
		return
	}
	amount, err := requireAmount(req.Amount)
	if err != nil {
		rpc.handleError(w, err)
		return
	}
	tx, err := rpc.stakingService.Transfer(r.Context(), currentUserId(r), &stakingService.TransferRequest{
		RecipientReferralCode: req.RecipientReferralCode,
		RecipientId:           req.RecipientId,
		Coin:                  req.Coin,
		Amount:                amount,
	})
	if err != nil {
		rpc.handleError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, tx)
}

// ListTransactions pages through the caller's ledger. type may be repeated or comma separated.
func (rpc *RpcServer) ListTransactions(w http.ResponseWriter, r *http.Request) {
	page, err := queryInt(r, "page", serviceTypes.DefaultPage)
	if err != nil {
		rpc.handleError(w, err)
		return
	}
	pageSize, err := queryInt(r, "pageSize", serviceTypes.DefaultPageSize)
	if err != nil {
		rpc.handleError(w, err)
		return
	}
	if page < 0 || int64(page) > math.MaxUint32 {
		rpc.handleError(w, serviceTypes.NewValidationError("page", "must be between 0 and %d", uint32(math.MaxUint32)))
		return
	}
	if pageSize < 1 || pageSize > serviceTypes.MaxPageSize {
		rpc.handleError(w, serviceTypes.NewValidationError("pageSize", "must be between 1 and %d", serviceTypes.MaxPageSize))
		return
	}

	var types []string
	for _, raw := range r.URL.Query()["type"] {
		for _, t := range strings.Split(raw, ",") {
			if t = strings.TrimSpace(t); t != "" {
				types = append(types, t)
			}
		}
	}

	pagination := serviceTypes.NewDefaultPagination()
	pagination.Load(uint32(page), uint32(pageSize))

	txs, err := rpc.stakingService.ListTransactions(r.Context(), currentUserId(r), types, pagination)
	if err != nil {
		rpc.handleError(w, err)
		return
	}
	if txs == nil {
		txs = []*storage.Transaction{}
	}
	writeJSON(w, http.StatusOK, &ListTransactionsResponse{
		Transactions: txs,
		Page:         pagination.Page,
		PageSize:     pagination.PageSize,
	})
}
