package handlers

import (
	"encoding/json"
	"net/http"

	"boostledger/internal/middleware"
	"boostledger/internal/services"

	"go.uber.org/zap"
)

type registerRequest struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	Password     string `json:"password"`
	ReferralCode string `json:"referral_code"`
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	session, err := h.svc.Accounts.Register(r.Context(), services.RegisterRequest{
		Name:         req.Name,
		Email:        req.Email,
		Password:     req.Password,
		ReferralCode: req.ReferralCode,
	})
	if err != nil {
		h.respondServiceError(w, err, "registration failed")
		return
	}
	h.logger.Info("account registered",
		zap.String("account_id", session.Account.ID),
		zap.String("ip", r.RemoteAddr),
	)
	respondJSON(w, http.StatusCreated, session)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	session, err := h.svc.Accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.respondServiceError(w, err, "login failed")
		return
	}
	respondJSON(w, http.StatusOK, session)
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	profile, err := h.svc.Accounts.Profile(r.Context(), accountID)
	if err != nil {
		h.respondServiceError(w, err, "unable to load account")
		return
	}
	respondJSON(w, http.StatusOK, profile)
}
