package rpcServer

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stakewell/stakedash/pkg/service/userService"
	"github.com/stakewell/stakedash/pkg/storage"
)

type RegisterRequest struct {
	Email        string `json:"email"`
	Password     string `json:"password"`
	ReferralCode string `json:"referralCode"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type ConnectWalletRequest struct {
	Address string `json:"address"`
}

type SessionResponse struct {
	User      *storage.User `json:"user"`
	Token     string        `json:"token"`
	ExpiresAt time.Time     `json:"expiresAt"`
}

func newSessionResponse(session *userService.Session) *SessionResponse {
	return &SessionResponse{
		User:      session.User,
		Token:     session.Token.Token,
		ExpiresAt: session.Token.ExpiresAt.UTC(),
	}
}

// Register creates the account and signs the user in.
func (rpc *RpcServer) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		rpc.handleError(w, err)
		return
	}
	_, err := rpc.userService.Register(r.Context(), &userService.RegisterRequest{
		Email:        req.Email,
		Password:     req.Password,
		ReferralCode: req.ReferralCode,
	})
	if err != nil {
		rpc.handleError(w, err)
		return
	}
	session, err := rpc.userService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		rpc.handleError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newSessionResponse(session))
}

func (rpc *RpcServer) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		rpc.handleError(w, err)
		return
	}
	session, err := rpc.userService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		rpc.handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newSessionResponse(session))
}

func (rpc *RpcServer) GetMe(w http.ResponseWriter, r *http.Request) {
	user, err := rpc.userService.GetUser(r.Context(), currentUserId(r))
	if err != nil {
		rpc.handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (rpc *RpcServer) ConnectWallet(w http.ResponseWriter, r *http.Request) {
	var req ConnectWalletRequest
	if err := decodeJSON(w, r, &req); err != nil {
		rpc.handleError(w, err)
		return
	}
	user, err := rpc.userService.ConnectWallet(r.Context(), currentUserId(r), req.Address)
	if err != nil {
		rpc.handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (rpc *RpcServer) DeleteUser(w http.ResponseWriter, r *http.Request) {
	userId, err := parseId(chi.URLParam(r, "id"), "id")
	if err != nil {
		rpc.handleError(w, err)
		return
	}
	if err := rpc.userService.DeleteUser(r.Context(), currentUserId(r), userId); err != nil {
		rpc.handleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
