package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"boostledger/internal/models"
	"boostledger/internal/money"
	"boostledger/internal/services"
	"boostledger/internal/storage"

	"go.uber.org/zap"
)

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

var errorCodes = []struct {
	err  error
	code string
}{
	{services.ErrBelowMinimumWithdrawal, "below_minimum_withdrawal"},
	{services.ErrInsufficientFunds, "insufficient_funds"},
	{services.ErrInvalidAmount, "invalid_amount"},
	{services.ErrInvalidKind, "invalid_kind"},
	{services.ErrInvalidOutcome, "invalid_outcome"},
	{services.ErrInvalidProofKind, "invalid_proof_kind"},
	{services.ErrMissingProof, "missing_proof"},
	{services.ErrEmptyAdjustment, "empty_adjustment"},
	{services.ErrEmptyProductList, "empty_product_list"},
	{services.ErrInvalidOrderCode, "invalid_order_code"},
	{services.ErrInvalidCursor, "invalid_cursor"},
	{services.ErrInvalidReferral, "invalid_referral_code"},
	{services.ErrInvalidRole, "invalid_role"},
	{services.ErrInvalidAddress, "invalid_address"},
	{services.ErrAccountNotFound, "account_not_found"},
	{services.ErrEntryNotFound, "entry_not_found"},
	{services.ErrOrderNotFound, "order_not_found"},
	{services.ErrBoostNotFound, "boost_not_found"},
	{services.ErrStatEntryNotFound, "stat_entry_not_found"},
	{services.ErrReferralNotFound, "referral_not_found"},
	{services.ErrWithdrawalConfigNotFound, "withdrawal_config_not_found"},
	{services.ErrAlreadySettled, "already_settled"},
	{services.ErrEntryHeldByBoost, "entry_held_by_boost"},
	{services.ErrDuplicateReferral, "duplicate_referral"},
	{services.ErrInvalidTransition, "invalid_transition"},
	{services.ErrBoostCompleted, "boost_completed"},
	{services.ErrOrderLocked, "order_locked"},
	{services.ErrOrderClosed, "order_closed"},
	{services.ErrDuplicateOrderCode, "duplicate_order_code"},
	{services.ErrEmailTaken, "email_taken"},
	{services.ErrNotEligible, "not_eligible"},
	{services.ErrForbidden, "forbidden"},
	{storage.ErrUnsupportedType, "unsupported_file_type"},
}

func errorCode(err error) string {
	for _, c := range errorCodes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return "invalid_input"
}

// respondServiceError maps a service failure onto a status and error code.
// Internal failures are logged and reported with fallback only.
func (h *Handler) respondServiceError(w http.ResponseWriter, err error, fallback string) {
	if errors.Is(err, services.ErrInvalidCredential) {
		respondError(w, http.StatusUnauthorized, "invalid_credentials")
		return
	}
	if errors.Is(err, services.ErrInsufficientFunds) || errors.Is(err, storage.ErrUnsupportedType) {
		respondError(w, http.StatusBadRequest, errorCode(err))
		return
	}
	var missing *services.MissingStatEntriesError
	if errors.As(err, &missing) {
		respondJSON(w, http.StatusNotFound, map[string]any{
			"error":       errorCode(err),
			"missing_ids": missing.IDs,
		})
		return
	}
	switch services.KindOf(err) {
	case services.KindValidation:
		body := map[string]string{"error": errorCode(err)}
		if errors.Is(err, services.ErrInvalidInput) {
			body["detail"] = err.Error()
		}
		respondJSON(w, http.StatusBadRequest, body)
	case services.KindNotFound:
		respondError(w, http.StatusNotFound, errorCode(err))
	case services.KindConflict:
		respondError(w, http.StatusConflict, errorCode(err))
	case services.KindForbidden:
		respondError(w, http.StatusForbidden, errorCode(err))
	default:
		h.logger.Error(fallback, zap.Error(err))
		respondError(w, http.StatusInternalServerError, fallback)
	}
}

func parseInt(raw string, fallback int) int {
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}

func pagination(r *http.Request) (int, int) {
	query := r.URL.Query()
	limit := parseInt(query.Get("limit"), 50)
	if limit > 200 {
		limit = 200
	}
	page := parseInt(query.Get("page"), 1)
	return limit, (page - 1) * limit
}

func entryJSON(entry models.LedgerEntry) map[string]any {
	return map[string]any{
		"id":            entry.ID,
		"account_id":    entry.AccountID,
		"kind":          entry.Kind,
		"amount":        money.FormatMinor(entry.Amount),
		"status":        entry.Status,
		"from_address":  entry.FromAddress,
		"to_address":    entry.ToAddress,
		"external_hash": entry.ExternalHash,
		"proof_ref":     entry.ProofRef,
		"note":          entry.Note,
		"created_at":    entry.CreatedAt,
		"settled_at":    entry.SettledAt,
	}
}

func entriesJSON(entries []models.LedgerEntry) []map[string]any {
	normalized := make([]map[string]any, 0, len(entries))
	for _, entry := range entries {
		normalized = append(normalized, entryJSON(entry))
	}
	return normalized
}

func statJSON(stat models.StatEntry) map[string]any {
	return map[string]any{
		"id":          stat.ID,
		"boost_id":    stat.BoostID,
		"product_id":  stat.ProductID,
		"position":    stat.Position,
		"cost":        money.FormatMinor(stat.Cost),
		"commission":  money.FormatMinor(stat.Commission),
		"status":      stat.Status,
		"proof_kind":  stat.ProofKind,
		"proof_value": stat.ProofValue,
		"updated_at":  stat.UpdatedAt,
	}
}

func statsJSON(stats []models.StatEntry) []map[string]any {
	normalized := make([]map[string]any, 0, len(stats))
	for _, stat := range stats {
		normalized = append(normalized, statJSON(stat))
	}
	return normalized
}

func orderJSON(order models.Order) map[string]any {
	products := []string(order.ProductIDs)
	if products == nil {
		products = []string{}
	}
	return map[string]any{
		"id":          order.ID,
		"code":        order.Code,
		"description": order.Description,
		"product_ids": products,
		"cost":        money.FormatMinor(order.Cost),
		"commission":  money.FormatMinor(order.Commission),
		"status":      order.Status,
		"image":       order.Image,
		"created_at":  order.CreatedAt,
	}
}

func referralJSON(record models.ReferralRecord) map[string]any {
	return map[string]any{
		"id":               record.ID,
		"entry_id":         record.EntryID,
		"trigger_entry_id": record.TriggerEntryID,
		"new_account_id":   record.NewAccountID,
		"old_account_id":   record.OldAccountID,
		"amount":           money.FormatMinor(record.Amount),
		"status":           record.Status,
		"created_at":       record.CreatedAt,
	}
}

// amountNumber renders minor units as a bare JSON number in major units.
func amountNumber(minor int64) json.Number {
	return json.Number(money.FormatMinor(minor))
}
