package rpcServer

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stakewell/stakedash/pkg/auth"
	"github.com/stakewell/stakedash/pkg/coins"
	serviceTypes "github.com/stakewell/stakedash/pkg/service/types"
	"github.com/stakewell/stakedash/pkg/storage"
	"go.uber.org/zap"
)

const maxRequestBodyBytes = 1 << 20

type ErrorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, &ErrorResponse{Error: message})
}

// handleError maps service and storage errors onto status codes. Anything unrecognised is
// logged and reported as an internal error without details.
func (rpc *RpcServer) handleError(w http.ResponseWriter, err error) {
	var ve *serviceTypes.ValidationError
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, &ErrorResponse{Error: ve.Message, Field: ve.Field})
	case errors.Is(err, serviceTypes.ErrInvalidCredentials), errors.Is(err, auth.ErrInvalidToken):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, serviceTypes.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, coins.ErrUnknownCoin):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, storage.ErrInsufficientBalance):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, storage.ErrDuplicate), errors.Is(err, storage.ErrAlreadyPosted):
		writeError(w, http.StatusConflict, err.Error())
	default:
		rpc.Logger.Sugar().Errorw("Request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return serviceTypes.NewValidationError("", "request body is required")
		}
		return serviceTypes.NewValidationError("", "malformed request body: %v", err)
	}
	return nil
}

// decodeOptionalJSON accepts an empty body.
func decodeOptionalJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	if r.ContentLength == 0 {
		return nil
	}
	err := decodeJSON(w, r, dst)
	var ve *serviceTypes.ValidationError
	if errors.As(err, &ve) && ve.Message == "request body is required" {
		return nil
	}
	return err
}

func currentUserId(r *http.Request) uint64 {
	if claims := claimsFromContext(r.Context()); claims != nil {
		return claims.UserId
	}
	return 0
}

func queryTime(r *http.Request, name string) (time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, serviceTypes.NewValidationError(name, "must be an RFC3339 timestamp")
	}
	return t.UTC(), nil
}

func queryDuration(r *http.Request, name string, defaultValue time.Duration) (time.Duration, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, serviceTypes.NewValidationError(name, "must be a duration such as 1h or 30m")
	}
	return d, nil
}

func queryDecimal(r *http.Request, name string) (*decimal.Decimal, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, serviceTypes.NewValidationError(name, "must be a decimal number")
	}
	return &d, nil
}

func queryInt(r *http.Request, name string, defaultValue int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, serviceTypes.NewValidationError(name, "must be an integer")
	}
	return v, nil
}

func parseId(raw string, field string) (uint64, error) {
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, serviceTypes.NewValidationError(field, "must be a positive integer")
	}
	return id, nil
}

func requireAmount(amount *decimal.Decimal) (decimal.Decimal, error) {
	if amount == nil {
		return decimal.Zero, serviceTypes.NewValidationError("amount", "is required")
	}
	return *amount, nil
}
