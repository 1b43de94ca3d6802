package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"boostledger/internal/middleware"
	"boostledger/internal/models"
	"boostledger/internal/services"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) CreateBoost(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	result, err := h.svc.Boosts.CreateBoost(r.Context(), accountID, chi.URLParam(r, "orderId"))
	if err != nil {
		h.respondServiceError(w, err, "unable to create boost")
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{
		"boostId":       result.Boost.ID,
		"transactionId": result.Entry.ID,
		"stats":         statsJSON(result.Stats),
	})
}

// AddProof accepts either a link or a screenshot upload for one stat entry.
func (h *Handler) AddProof(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := h.parseMultipart(w, r); err != nil {
		h.respondMultipartError(w, err)
		return
	}
	statID := strings.TrimSpace(r.FormValue("stat_entry_id"))
	if statID == "" {
		respondError(w, http.StatusBadRequest, "stat_entry_id is required")
		return
	}
	kind := strings.TrimSpace(r.FormValue("proof_kind"))
	value := strings.TrimSpace(r.FormValue("link"))
	if kind == string(models.ProofScreenshot) {
		if err := h.svc.Boosts.CheckProofTarget(r.Context(), statID, accountID); err != nil {
			h.respondServiceError(w, err, "unable to submit proof")
			return
		}
		ref, ok, err := h.saveUpload(r, "screenshot", "screenshots")
		if err != nil {
			h.respondServiceError(w, err, "unable to store proof")
			return
		}
		if !ok {
			respondError(w, http.StatusBadRequest, "missing_proof")
			return
		}
		value = ref
	}
	stat, err := h.svc.Boosts.SubmitProof(r.Context(), services.SubmitProofRequest{
		StatEntryID: statID,
		AccountID:   accountID,
		ProofKind:   kind,
		ProofValue:  value,
	})
	if err != nil {
		h.respondServiceError(w, err, "unable to submit proof")
		return
	}
	respondJSON(w, http.StatusOK, statJSON(stat))
}

type statUpdateRequest struct {
	ID         string  `json:"id"`
	Cost       *string `json:"cost"`
	Commission *string `json:"commission"`
}

type updateStatsRequest struct {
	Stats   []statUpdateRequest `json:"stats"`
	Approve bool                `json:"approve"`
}

// UpdateStats adjusts stat amounts and, with approve set, validates the
// boost's first step in the same unit.
func (h *Handler) UpdateStats(w http.ResponseWriter, r *http.Request) {
	actorID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req updateStatsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	updates := make([]services.StatAdjustment, 0, len(req.Stats))
	for _, item := range req.Stats {
		if strings.TrimSpace(item.ID) == "" {
			respondError(w, http.StatusBadRequest, "stat id is required")
			return
		}
		cost, err := parseOptionalAmount(item.Cost)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid_amount")
			return
		}
		commission, err := parseOptionalAmount(item.Commission)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid_amount")
			return
		}
		updates = append(updates, services.StatAdjustment{StatEntryID: item.ID, Cost: cost, Commission: commission})
	}
	stats, err := h.svc.Boosts.UpdateStats(r.Context(), actorID, chi.URLParam(r, "boostId"), updates, req.Approve)
	if err != nil {
		h.respondServiceError(w, err, "unable to update stats")
		return
	}
	respondJSON(w, http.StatusOK, statsJSON(stats))
}

func (h *Handler) ListMyBoosts(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	limit, offset := pagination(r)
	boosts, err := h.svc.Boosts.ListByAccount(r.Context(), accountID, limit, offset)
	if err != nil {
		h.respondServiceError(w, err, "unable to load boosts")
		return
	}
	respondJSON(w, http.StatusOK, boosts)
}

func (h *Handler) GetBoost(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	h.boostDetail(w, r, accountID)
}

func (h *Handler) boostDetail(w http.ResponseWriter, r *http.Request, viewerID string) {
	detail, err := h.svc.Boosts.GetDetail(r.Context(), chi.URLParam(r, "boostId"), viewerID)
	if err != nil {
		h.respondServiceError(w, err, "unable to load boost")
		return
	}
	payload := map[string]any{
		"boost": detail.Boost,
		"order": orderJSON(detail.Order),
		"account": map[string]any{
			"id":    detail.Account.ID,
			"name":  detail.Account.Name,
			"email": detail.Account.Email,
		},
		"stats": statsJSON(detail.Stats),
	}
	if detail.Entry != nil {
		payload["entry"] = entryJSON(*detail.Entry)
	}
	respondJSON(w, http.StatusOK, payload)
}

func (h *Handler) ListOpenOrders(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	orders, err := h.svc.Catalog.ListOrders(r.Context(), models.OrderOpen, limit, offset)
	if err != nil {
		h.respondServiceError(w, err, "unable to load orders")
		return
	}
	respondJSON(w, http.StatusOK, ordersJSON(orders))
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.svc.Catalog.GetOrder(r.Context(), chi.URLParam(r, "orderId"))
	if err != nil {
		h.respondServiceError(w, err, "unable to load order")
		return
	}
	respondJSON(w, http.StatusOK, orderJSON(order))
}

func ordersJSON(orders []models.Order) []map[string]any {
	normalized := make([]map[string]any, 0, len(orders))
	for _, order := range orders {
		normalized = append(normalized, orderJSON(order))
	}
	return normalized
}
