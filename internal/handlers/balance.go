package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"boostledger/internal/middleware"
	"boostledger/internal/models"
	"boostledger/internal/money"
	"boostledger/internal/services"
	"boostledger/internal/validator"

	"github.com/go-chi/chi/v5"
)

// authorizeAccount returns the caller when they own accountID or are an
// admin. It has already responded when ok is false.
func (h *Handler) authorizeAccount(w http.ResponseWriter, r *http.Request, accountID string) (string, bool) {
	callerID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return "", false
	}
	if callerID == accountID {
		return callerID, true
	}
	status, err := h.svc.Admins.Status(r.Context(), callerID)
	if err != nil {
		h.respondServiceError(w, err, "unable to verify admin")
		return "", false
	}
	if !status.IsAdmin {
		respondError(w, http.StatusForbidden, "account_access_denied")
		return "", false
	}
	return callerID, true
}

func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountId")
	if _, ok := h.authorizeAccount(w, r, accountID); !ok {
		return
	}
	balance, err := h.svc.Ledger.BalanceOf(r.Context(), accountID)
	if err != nil {
		h.respondServiceError(w, err, "unable to load balance")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"balance": amountNumber(balance)})
}

// AddBalance records a pending recharge. The proof image is stored before
// the entry so the entry can reference it.
func (h *Handler) AddBalance(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountId")
	if _, ok := h.authorizeAccount(w, r, accountID); !ok {
		return
	}
	if err := h.parseMultipart(w, r); err != nil {
		h.respondMultipartError(w, err)
		return
	}
	amount, err := parseAmountMinor(r.FormValue("amount"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_amount")
		return
	}
	proof := services.Proof{
		FromAddress:  strings.TrimSpace(r.FormValue("from_address")),
		ToAddress:    strings.TrimSpace(r.FormValue("to_address")),
		ExternalHash: strings.TrimSpace(r.FormValue("hash")),
	}
	for _, address := range []string{proof.FromAddress, proof.ToAddress} {
		if address == "" {
			continue
		}
		if err := validator.ValidateAddress(address); err != nil {
			respondError(w, http.StatusBadRequest, "invalid_address")
			return
		}
	}
	if proof.ExternalHash != "" {
		if err := validator.ValidateTxHash(proof.ExternalHash); err != nil {
			respondError(w, http.StatusBadRequest, "invalid_hash")
			return
		}
	}
	ref, ok, err := h.saveUpload(r, "proof", "recharges")
	if err != nil {
		h.respondServiceError(w, err, "unable to store proof")
		return
	}
	if !ok {
		respondError(w, http.StatusBadRequest, "missing_proof")
		return
	}
	proof.ProofRef = ref
	entry, err := h.svc.Ledger.RecordPending(r.Context(), services.RecordRequest{
		AccountID:   accountID,
		Kind:        models.KindRecharge,
		AmountMinor: amount,
		Proof:       proof,
		Note:        r.FormValue("note"),
	})
	if err != nil {
		h.respondServiceError(w, err, "unable to record recharge")
		return
	}
	respondJSON(w, http.StatusCreated, entryJSON(entry))
}

type withdrawRequest struct {
	Amount    string `json:"amount"`
	ToAddress string `json:"to_address"`
	Note      string `json:"note"`
}

func (h *Handler) Withdraw(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req withdrawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	amount, err := parseAmountMinor(req.Amount)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_amount")
		return
	}
	toAddress := strings.TrimSpace(req.ToAddress)
	if toAddress != "" {
		if err := validator.ValidateAddress(toAddress); err != nil {
			respondError(w, http.StatusBadRequest, "invalid_address")
			return
		}
	}
	entry, err := h.svc.Ledger.RecordPending(r.Context(), services.RecordRequest{
		AccountID:   accountID,
		Kind:        models.KindWithdrawal,
		AmountMinor: amount,
		Proof:       services.Proof{ToAddress: toAddress},
		Note:        req.Note,
	})
	if err != nil {
		h.respondServiceError(w, err, "unable to record withdrawal")
		return
	}
	respondJSON(w, http.StatusCreated, entryJSON(entry))
}

func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	h.history(w, r, "")
}

func (h *Handler) WithdrawalHistory(w http.ResponseWriter, r *http.Request) {
	h.history(w, r, models.KindWithdrawal)
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request, kind models.EntryKind) {
	accountID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	query := r.URL.Query()
	q := services.HistoryQuery{
		Kind:   kind,
		Cursor: query.Get("cursor"),
		Limit:  parseInt(query.Get("limit"), 0),
	}
	if raw := query.Get("kind"); raw != "" && kind == "" {
		parsed, err := models.ParseEntryKind(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid_kind")
			return
		}
		q.Kind = parsed
	}
	if raw := query.Get("status"); raw != "" {
		parsed, err := models.ParseEntryStatus(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid_status")
			return
		}
		q.Status = parsed
	}
	page, err := h.svc.Ledger.HistoryOf(r.Context(), accountID, q)
	if err != nil {
		h.respondServiceError(w, err, "unable to load history")
		return
	}
	payload := map[string]any{"entries": entriesJSON(page.Entries)}
	if page.NextCursor != "" {
		payload["next_cursor"] = page.NextCursor
	}
	respondJSON(w, http.StatusOK, payload)
}

func (h *Handler) Earnings(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	total, err := h.svc.Ledger.TotalEarnings(r.Context(), accountID)
	if err != nil {
		h.respondServiceError(w, err, "unable to load earnings")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"earnings": money.FormatMinor(total)})
}

func (h *Handler) ListReferrals(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	limit, offset := pagination(r)
	records, err := h.svc.Referrals.ListReferrals(r.Context(), accountID, limit, offset)
	if err != nil {
		h.respondServiceError(w, err, "unable to load referrals")
		return
	}
	normalized := make([]map[string]any, 0, len(records))
	for _, record := range records {
		normalized = append(normalized, referralJSON(record))
	}
	respondJSON(w, http.StatusOK, normalized)
}

func (h *Handler) GetWithdrawalConfig(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	cfg, err := h.svc.WithdrawalConfigs.Get(r.Context(), accountID)
	if err != nil {
		h.respondServiceError(w, err, "unable to load withdrawal config")
		return
	}
	respondJSON(w, http.StatusOK, cfg)
}

type withdrawalConfigRequest struct {
	DepositAddress string `json:"deposit_address"`
	Coin           string `json:"coin"`
	Network        string `json:"network"`
}

func (h *Handler) PutWithdrawalConfig(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req withdrawalConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	cfg, err := h.svc.WithdrawalConfigs.Put(r.Context(), accountID, req.DepositAddress, req.Coin, req.Network)
	if err != nil {
		h.respondServiceError(w, err, "unable to save withdrawal config")
		return
	}
	respondJSON(w, http.StatusOK, cfg)
}

func (h *Handler) DeleteWithdrawalConfig(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := h.svc.WithdrawalConfigs.Delete(r.Context(), accountID); err != nil {
		h.respondServiceError(w, err, "unable to delete withdrawal config")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
