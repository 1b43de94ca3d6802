package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"boostledger/internal/auth"
	"boostledger/internal/middleware"
	"boostledger/internal/models"
	"boostledger/internal/services"
	"boostledger/internal/websocket"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) AdminListEntries(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	status := models.StatusPending
	if raw := query.Get("status"); raw != "" {
		parsed, err := models.ParseEntryStatus(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid_status")
			return
		}
		status = parsed
	}
	var kind models.EntryKind
	if raw := query.Get("kind"); raw != "" {
		parsed, err := models.ParseEntryKind(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid_kind")
			return
		}
		kind = parsed
	}
	limit, offset := pagination(r)
	entries, err := h.svc.Ledger.ListByStatus(r.Context(), status, kind, limit, offset)
	if err != nil {
		h.respondServiceError(w, err, "unable to load entries")
		return
	}
	respondJSON(w, http.StatusOK, entriesJSON(entries))
}

type settleRequest struct {
	Status string  `json:"status"`
	Amount *string `json:"amount"`
}

func (h *Handler) AdminSettle(w http.ResponseWriter, r *http.Request) {
	actorID, _ := middleware.UserIDFromContext(r.Context())
	var req settleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	outcome, err := models.ParseEntryStatus(req.Status)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_outcome")
		return
	}
	entry, err := h.svc.Ledger.Settle(r.Context(), actorID, chi.URLParam(r, "entryId"), outcome)
	if err != nil {
		h.respondServiceError(w, err, "unable to settle entry")
		return
	}
	respondJSON(w, http.StatusOK, entryJSON(entry))
}

type correctRequest struct {
	Amount *string `json:"amount"`
	Note   *string `json:"note"`
}

func (h *Handler) AdminCorrect(w http.ResponseWriter, r *http.Request) {
	actorID, _ := middleware.UserIDFromContext(r.Context())
	var req correctRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	var amount *int64
	if req.Amount != nil {
		parsed, err := parseAmountMinor(*req.Amount)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid_amount")
			return
		}
		amount = &parsed
	}
	entry, err := h.svc.Ledger.CorrectEntry(r.Context(), actorID, chi.URLParam(r, "entryId"), amount, req.Note)
	if err != nil {
		h.respondServiceError(w, err, "unable to correct entry")
		return
	}
	respondJSON(w, http.StatusOK, entryJSON(entry))
}

type creditRequest struct {
	AccountID string `json:"account_id"`
	Kind      string `json:"kind"`
	Amount    string `json:"amount"`
	Note      string `json:"note"`
}

func (h *Handler) AdminCredit(w http.ResponseWriter, r *http.Request) {
	actorID, _ := middleware.UserIDFromContext(r.Context())
	var req creditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.AccountID == "" {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	kind, err := models.ParseEntryKind(req.Kind)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_kind")
		return
	}
	amount, err := parseAmountMinor(req.Amount)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_amount")
		return
	}
	entry, err := h.svc.Ledger.CreditCompleted(r.Context(), actorID, req.AccountID, kind, amount, req.Note)
	if err != nil {
		h.respondServiceError(w, err, "unable to credit account")
		return
	}
	respondJSON(w, http.StatusCreated, entryJSON(entry))
}

func (h *Handler) AdminSettleReferral(w http.ResponseWriter, r *http.Request) {
	actorID, _ := middleware.UserIDFromContext(r.Context())
	var req settleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	outcome, err := models.ParseEntryStatus(req.Status)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_outcome")
		return
	}
	var amount *int64
	if req.Amount != nil {
		parsed, err := parseAmountMinor(*req.Amount)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid_amount")
			return
		}
		amount = &parsed
	}
	record, err := h.svc.Referrals.SettleReferral(r.Context(), actorID, chi.URLParam(r, "referralId"), outcome, amount)
	if err != nil {
		h.respondServiceError(w, err, "unable to settle referral")
		return
	}
	respondJSON(w, http.StatusOK, referralJSON(record))
}

func (h *Handler) AdminListBoosts(w http.ResponseWriter, r *http.Request) {
	var status models.BoostStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		parsed, err := models.ParseBoostStatus(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid_status")
			return
		}
		status = parsed
	}
	limit, offset := pagination(r)
	boosts, err := h.svc.Boosts.ListByStatus(r.Context(), status, limit, offset)
	if err != nil {
		h.respondServiceError(w, err, "unable to load boosts")
		return
	}
	respondJSON(w, http.StatusOK, boosts)
}

func (h *Handler) AdminGetBoost(w http.ResponseWriter, r *http.Request) {
	h.boostDetail(w, r, "")
}

func (h *Handler) AdminApprove(w http.ResponseWriter, r *http.Request) {
	actorID, _ := middleware.UserIDFromContext(r.Context())
	boost, err := h.svc.Boosts.AdminApproveFirstStep(r.Context(), actorID, chi.URLParam(r, "boostId"))
	if err != nil {
		h.respondServiceError(w, err, "unable to approve boost")
		return
	}
	respondJSON(w, http.StatusOK, boost)
}

func (h *Handler) AdminReview(w http.ResponseWriter, r *http.Request) {
	actorID, _ := middleware.UserIDFromContext(r.Context())
	boost, err := h.svc.Boosts.AdminReview(r.Context(), actorID, chi.URLParam(r, "boostId"))
	if err != nil {
		h.respondServiceError(w, err, "unable to review boost")
		return
	}
	respondJSON(w, http.StatusOK, boost)
}

type rejectRequest struct {
	Note string `json:"note"`
}

// decodeNote reads an optional {"note": ...} body. An empty body is fine.
func decodeNote(r *http.Request) (string, bool) {
	var req rejectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return "", errors.Is(err, io.EOF)
	}
	return strings.TrimSpace(req.Note), true
}

func (h *Handler) AdminRejectBoost(w http.ResponseWriter, r *http.Request) {
	actorID, _ := middleware.UserIDFromContext(r.Context())
	note, ok := decodeNote(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	boost, err := h.svc.Boosts.AdminRejectBoost(r.Context(), actorID, chi.URLParam(r, "boostId"), note)
	if err != nil {
		h.respondServiceError(w, err, "unable to reject boost")
		return
	}
	respondJSON(w, http.StatusOK, boost)
}

func (h *Handler) AdminResumeBoost(w http.ResponseWriter, r *http.Request) {
	actorID, _ := middleware.UserIDFromContext(r.Context())
	boost, err := h.svc.Boosts.AdminResumeBoost(r.Context(), actorID, chi.URLParam(r, "boostId"))
	if err != nil {
		h.respondServiceError(w, err, "unable to resume boost")
		return
	}
	respondJSON(w, http.StatusOK, boost)
}

func (h *Handler) AdminDeleteBoost(w http.ResponseWriter, r *http.Request) {
	actorID, _ := middleware.UserIDFromContext(r.Context())
	if err := h.svc.Boosts.AdminDeleteBoost(r.Context(), actorID, chi.URLParam(r, "boostId")); err != nil {
		h.respondServiceError(w, err, "unable to delete boost")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) AdminRejectStat(w http.ResponseWriter, r *http.Request) {
	actorID, _ := middleware.UserIDFromContext(r.Context())
	note, ok := decodeNote(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	stat, err := h.svc.Boosts.AdminRejectStatEntry(r.Context(), actorID, chi.URLParam(r, "statId"), note)
	if err != nil {
		h.respondServiceError(w, err, "unable to reject stat entry")
		return
	}
	respondJSON(w, http.StatusOK, statJSON(stat))
}

func (h *Handler) AdminListOrders(w http.ResponseWriter, r *http.Request) {
	var status models.OrderStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		parsed, err := models.ParseOrderStatus(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid_status")
			return
		}
		status = parsed
	}
	limit, offset := pagination(r)
	orders, err := h.svc.Catalog.ListOrders(r.Context(), status, limit, offset)
	if err != nil {
		h.respondServiceError(w, err, "unable to load orders")
		return
	}
	respondJSON(w, http.StatusOK, ordersJSON(orders))
}

type createOrderRequest struct {
	Code        string   `json:"code"`
	Description string   `json:"description"`
	ProductIDs  []string `json:"product_ids"`
	Cost        string   `json:"cost"`
	Commission  string   `json:"commission"`
	Image       string   `json:"image"`
}

func (h *Handler) AdminCreateOrder(w http.ResponseWriter, r *http.Request) {
	actorID, _ := middleware.UserIDFromContext(r.Context())
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	cost, err := parseAmountMinor(req.Cost)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_amount")
		return
	}
	var commission int64
	if req.Commission != "" {
		parsed, err := parseOptionalAmount(&req.Commission)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid_amount")
			return
		}
		commission = *parsed
	}
	order, err := h.svc.Catalog.CreateOrder(r.Context(), actorID, services.CreateOrderRequest{
		Code:        req.Code,
		Description: req.Description,
		ProductIDs:  req.ProductIDs,
		Cost:        cost,
		Commission:  commission,
		Image:       req.Image,
	})
	if err != nil {
		h.respondServiceError(w, err, "unable to create order")
		return
	}
	respondJSON(w, http.StatusCreated, orderJSON(order))
}

func (h *Handler) AdminCompleteOrder(w http.ResponseWriter, r *http.Request) {
	actorID, _ := middleware.UserIDFromContext(r.Context())
	order, err := h.svc.Catalog.CompleteOrder(r.Context(), actorID, chi.URLParam(r, "orderId"))
	if err != nil {
		h.respondServiceError(w, err, "unable to complete order")
		return
	}
	respondJSON(w, http.StatusOK, orderJSON(order))
}

type replaceProductsRequest struct {
	ProductIDs []string `json:"product_ids"`
}

func (h *Handler) AdminReplaceProducts(w http.ResponseWriter, r *http.Request) {
	actorID, _ := middleware.UserIDFromContext(r.Context())
	var req replaceProductsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	order, err := h.svc.Catalog.ReplaceProducts(r.Context(), actorID, chi.URLParam(r, "orderId"), req.ProductIDs)
	if err != nil {
		h.respondServiceError(w, err, "unable to replace products")
		return
	}
	respondJSON(w, http.StatusOK, orderJSON(order))
}

func (h *Handler) AdminListUsers(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	accounts, err := h.svc.Accounts.List(r.Context(), limit, offset)
	if err != nil {
		h.respondServiceError(w, err, "unable to load users")
		return
	}
	respondJSON(w, http.StatusOK, accounts)
}

// requireSuper responds and returns false unless the caller is a super admin.
func (h *Handler) requireSuper(w http.ResponseWriter, r *http.Request) (string, bool) {
	actorID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return "", false
	}
	status, err := h.svc.Admins.Status(r.Context(), actorID)
	if err != nil {
		h.respondServiceError(w, err, "unable to verify admin")
		return "", false
	}
	if !status.IsSuper {
		respondError(w, http.StatusForbidden, "super_admin_required")
		return "", false
	}
	return actorID, true
}

type promoteRequest struct {
	AccountID string `json:"account_id"`
}

func (h *Handler) PromoteAdmin(w http.ResponseWriter, r *http.Request) {
	actorID, ok := h.requireSuper(w, r)
	if !ok {
		return
	}
	var req promoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.AccountID == "" {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if err := h.svc.Accounts.Promote(r.Context(), actorID, req.AccountID); err != nil {
		h.respondServiceError(w, err, "unable to promote admin")
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{"status": "promoted"})
}

type roleRequest struct {
	AccountID string `json:"account_id"`
	Role      string `json:"role"`
}

func (h *Handler) GrantRole(w http.ResponseWriter, r *http.Request) {
	h.changeRole(w, r, true)
}

func (h *Handler) RevokeRole(w http.ResponseWriter, r *http.Request) {
	h.changeRole(w, r, false)
}

func (h *Handler) changeRole(w http.ResponseWriter, r *http.Request, grant bool) {
	actorID, ok := h.requireSuper(w, r)
	if !ok {
		return
	}
	var req roleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.AccountID == "" || req.Role == "" {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	var err error
	status := "role_granted"
	if grant {
		err = h.svc.Accounts.GrantRole(r.Context(), actorID, req.AccountID, req.Role)
	} else {
		err = h.svc.Accounts.RevokeRole(r.Context(), actorID, req.AccountID, req.Role)
		status = "role_revoked"
	}
	if err != nil {
		h.respondServiceError(w, err, "unable to change role")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": status})
}

func (h *Handler) ListAuditLogs(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	rows, err := h.svc.Audit.List(r.Context(), r.URL.Query().Get("entity_type"), limit, offset)
	if err != nil {
		h.respondServiceError(w, err, "unable to load audit logs")
		return
	}
	respondJSON(w, http.StatusOK, rows)
}

func (h *Handler) Reconcile(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.Reconciler.Run(r.Context())
	if err != nil {
		h.respondServiceError(w, err, "unable to reconcile")
		return
	}
	respondJSON(w, http.StatusOK, report)
}

func (h *Handler) WSBalances(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token, _ = middleware.BearerToken(r)
	}
	if token == "" {
		respondError(w, http.StatusUnauthorized, "missing token")
		return
	}
	claims, err := auth.ParseToken(h.cfg.JWTSecret, token)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "invalid token")
		return
	}
	websocket.ServeWS(w, r, h.hub, claims.UserID)
}
