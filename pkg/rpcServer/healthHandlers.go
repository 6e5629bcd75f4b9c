package rpcServer

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"
)

type HealthResponse struct {
	Status string `json:"status"`
}

type ReadyResponse struct {
	Ready bool `json:"ready"`
}

func (rpc *RpcServer) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, &HealthResponse{Status: "SERVING"})
}

// ReadyCheck reports ready once the database answers.
func (rpc *RpcServer) ReadyCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := rpc.store.Ping(ctx); err != nil {
		rpc.Logger.Sugar().Warnw("Database is not ready", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, &ReadyResponse{Ready: false})
		return
	}
	writeJSON(w, http.StatusOK, &ReadyResponse{Ready: true})
}
