package services

import (
	"context"
	"encoding/base64"
	"fmt"
	"iter"
	"strconv"
	"strings"
	"time"

	"boostledger/internal/models"
	"boostledger/internal/money"
	"boostledger/internal/store"
	"boostledger/internal/websocket"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// LedgerService records money movements and derives balances from them.
// Balances are never stored; every read folds the account's entries.
type LedgerService struct {
	deps          Deps
	referrals     *ReferralService
	minWithdrawal int64
}

func NewLedgerService(deps Deps, referrals *ReferralService, minWithdrawal int64) *LedgerService {
	return &LedgerService{
		deps:          deps.withDefaults(),
		referrals:     referrals,
		minWithdrawal: minWithdrawal,
	}
}

func (s *LedgerService) MinWithdrawal() int64 {
	return s.minWithdrawal
}

type Proof struct {
	FromAddress  string
	ToAddress    string
	ExternalHash string
	ProofRef     string
}

type RecordRequest struct {
	AccountID   string
	Kind        models.EntryKind
	AmountMinor int64
	Proof       Proof
	Note        string
}

// RecordPending stores a pending entry. Withdrawals are checked against the
// minimum and the current balance under the account lock.
func (s *LedgerService) RecordPending(ctx context.Context, req RecordRequest) (models.LedgerEntry, error) {
	if _, err := models.ParseEntryKind(string(req.Kind)); err != nil {
		return models.LedgerEntry{}, ErrInvalidKind
	}
	if req.AmountMinor <= 0 {
		return models.LedgerEntry{}, ErrInvalidAmount
	}
	var entry models.LedgerEntry
	var balanceAfter int64
	err := s.deps.TxRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		if req.Kind == models.KindWithdrawal {
			entry, balanceAfter, err = s.debitInTx(ctx, tx, debitRequest{
				AccountID:     req.AccountID,
				Amount:        req.AmountMinor,
				Proof:         req.Proof,
				Note:          req.Note,
				UserInitiated: true,
			})
			return err
		}
		if _, err := s.deps.Stores.Accounts.GetForUpdate(ctx, tx, req.AccountID); err != nil {
			return notFound(err, ErrAccountNotFound)
		}
		entry, err = s.deps.insertEntry(ctx, tx, newEntry(req.AccountID, req.Kind, req.AmountMinor, models.StatusPending, req.Proof, req.Note))
		if err != nil {
			return err
		}
		balanceAfter, err = s.deps.Stores.Entries.Balance(ctx, tx, req.AccountID)
		return err
	})
	if err != nil {
		return models.LedgerEntry{}, err
	}
	s.deps.Metrics.EntryRecorded(string(entry.Kind), string(entry.Status))
	s.deps.Logger.Info("ledger entry recorded",
		zap.String("entry_id", entry.ID),
		zap.String("account_id", entry.AccountID),
		zap.String("kind", string(entry.Kind)),
		zap.Int64("amount", entry.Amount),
	)
	if entry.Kind == models.KindWithdrawal {
		s.pushBalance(entry.AccountID, balanceAfter)
	}
	return entry, nil
}

type debitRequest struct {
	AccountID     string
	Amount        int64
	Proof         Proof
	Note          string
	UserInitiated bool
}

// debitInTx locks the account, checks the balance and writes a pending
// withdrawal. It returns the balance after the debit.
func (s *LedgerService) debitInTx(ctx context.Context, tx *sqlx.Tx, req debitRequest) (models.LedgerEntry, int64, error) {
	if req.Amount <= 0 {
		return models.LedgerEntry{}, 0, ErrInvalidAmount
	}
	if _, err := s.deps.Stores.Accounts.GetForUpdate(ctx, tx, req.AccountID); err != nil {
		return models.LedgerEntry{}, 0, notFound(err, ErrAccountNotFound)
	}
	if req.UserInitiated && req.Amount < s.minWithdrawal {
		return models.LedgerEntry{}, 0, ErrBelowMinimumWithdrawal
	}
	balance, err := s.deps.Stores.Entries.Balance(ctx, tx, req.AccountID)
	if err != nil {
		return models.LedgerEntry{}, 0, fmt.Errorf("balance: %w", err)
	}
	if req.Amount > balance {
		return models.LedgerEntry{}, 0, ErrInsufficientFunds
	}
	if req.UserInitiated && req.Proof.ToAddress == "" {
		cfg, err := s.deps.Stores.WithdrawalConfigs.Get(ctx, tx, req.AccountID)
		switch {
		case err == nil:
			req.Proof.ToAddress = cfg.DepositAddress
		case !isNoRows(err):
			return models.LedgerEntry{}, 0, err
		}
	}
	entry, err := s.deps.insertEntry(ctx, tx, newEntry(req.AccountID, models.KindWithdrawal, req.Amount, models.StatusPending, req.Proof, req.Note))
	if err != nil {
		return models.LedgerEntry{}, 0, err
	}
	return entry, balance - req.Amount, nil
}

// CreditCompleted is the trusted path for admin and system credits. It skips
// the pending stage and any balance check.
func (s *LedgerService) CreditCompleted(ctx context.Context, actorID, accountID string, kind models.EntryKind, amount int64, note string) (models.LedgerEntry, error) {
	if kind != models.KindRecharge && kind != models.KindGain {
		return models.LedgerEntry{}, ErrInvalidKind
	}
	if amount <= 0 {
		return models.LedgerEntry{}, ErrInvalidAmount
	}
	var entry models.LedgerEntry
	var referral *models.ReferralRecord
	var balanceAfter int64
	err := s.deps.TxRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := s.deps.Stores.Accounts.GetForUpdate(ctx, tx, accountID); err != nil {
			return notFound(err, ErrAccountNotFound)
		}
		var err error
		entry, err = s.deps.insertEntry(ctx, tx, newEntry(accountID, kind, amount, models.StatusCompleted, Proof{}, note))
		if err != nil {
			return err
		}
		if referral, err = s.afterSettled(ctx, tx, entry); err != nil {
			return err
		}
		if balanceAfter, err = s.deps.Stores.Entries.Balance(ctx, tx, accountID); err != nil {
			return err
		}
		return s.deps.audit(ctx, tx, actorID, "credit", "ledger_entry", entry.ID, map[string]any{
			"account_id": accountID,
			"kind":       kind,
			"amount":     amount,
		})
	})
	if err != nil {
		return models.LedgerEntry{}, err
	}
	s.deps.Metrics.EntryRecorded(string(entry.Kind), string(entry.Status))
	s.logReferral(referral)
	s.deps.Logger.Info("ledger entry credited",
		zap.String("entry_id", entry.ID),
		zap.String("account_id", accountID),
		zap.String("kind", string(kind)),
		zap.Int64("amount", amount),
		zap.String("actor_id", actorID),
	)
	s.pushBalance(accountID, balanceAfter)
	return entry, nil
}

// Settle moves a pending entry to Completed or Failed. A second settlement of
// the same entry fails with ErrAlreadySettled.
func (s *LedgerService) Settle(ctx context.Context, actorID, entryID string, outcome models.EntryStatus) (models.LedgerEntry, error) {
	if !outcome.Settled() {
		return models.LedgerEntry{}, ErrInvalidOutcome
	}
	var entry models.LedgerEntry
	var referral *models.ReferralRecord
	var balanceAfter int64
	err := s.deps.TxRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.rejectBoostDebit(ctx, tx, entryID); err != nil {
			return err
		}
		var err error
		entry, referral, err = s.settleInTx(ctx, tx, entryID, outcome)
		if err != nil {
			return err
		}
		if balanceAfter, err = s.deps.Stores.Entries.Balance(ctx, tx, entry.AccountID); err != nil {
			return err
		}
		return s.deps.audit(ctx, tx, actorID, "settle", "ledger_entry", entry.ID, map[string]any{
			"outcome": outcome,
			"kind":    entry.Kind,
			"amount":  entry.Amount,
		})
	})
	if err != nil {
		return models.LedgerEntry{}, err
	}
	s.deps.Metrics.EntrySettled(string(entry.Kind), string(entry.Status))
	s.logReferral(referral)
	s.deps.Logger.Info("ledger entry settled",
		zap.String("entry_id", entry.ID),
		zap.String("account_id", entry.AccountID),
		zap.String("outcome", string(outcome)),
		zap.String("actor_id", actorID),
	)
	s.pushBalance(entry.AccountID, balanceAfter)
	return entry, nil
}

func (s *LedgerService) settleInTx(ctx context.Context, tx *sqlx.Tx, entryID string, outcome models.EntryStatus) (models.LedgerEntry, *models.ReferralRecord, error) {
	entry, err := s.deps.settleEntry(ctx, tx, entryID, outcome)
	if err != nil {
		return models.LedgerEntry{}, nil, err
	}
	referral, err := s.afterSettled(ctx, tx, entry)
	if err != nil {
		return models.LedgerEntry{}, nil, err
	}
	return entry, referral, nil
}

// rejectBoostDebit keeps a boost's debit out of the generic admin paths. It
// is settled by AdminApproveFirstStep or AdminDeleteBoost and never repriced.
func (s *LedgerService) rejectBoostDebit(ctx context.Context, tx *sqlx.Tx, entryID string) error {
	held, err := s.deps.Stores.Boosts.HoldsEntry(ctx, tx, entryID)
	if err != nil {
		return fmt.Errorf("check boost debit: %w", err)
	}
	if held {
		return ErrEntryHeldByBoost
	}
	return nil
}

// afterSettled runs the referral hook once a recharge is completed, inside
// the same unit of work as the settlement.
func (s *LedgerService) afterSettled(ctx context.Context, tx *sqlx.Tx, entry models.LedgerEntry) (*models.ReferralRecord, error) {
	if s.referrals == nil || entry.Kind != models.KindRecharge || entry.Status != models.StatusCompleted {
		return nil, nil
	}
	return s.referrals.onRechargeCompleted(ctx, tx, entry)
}

// CorrectEntry changes the amount or note of a pending entry. Raising a
// pending withdrawal is checked against the balance like a new debit.
func (s *LedgerService) CorrectEntry(ctx context.Context, actorID, entryID string, amount *int64, note *string) (models.LedgerEntry, error) {
	if amount == nil && note == nil {
		return models.LedgerEntry{}, ErrEmptyAdjustment
	}
	if amount != nil && *amount <= 0 {
		return models.LedgerEntry{}, ErrInvalidAmount
	}
	var entry models.LedgerEntry
	err := s.deps.TxRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		entry, err = s.deps.Stores.Entries.GetForUpdate(ctx, tx, entryID)
		if err != nil {
			return notFound(err, ErrEntryNotFound)
		}
		if entry.Status.Settled() {
			return ErrAlreadySettled
		}
		if err := s.rejectBoostDebit(ctx, tx, entry.ID); err != nil {
			return err
		}
		previous := entry.Amount
		if amount != nil {
			entry.Amount = *amount
		}
		if note != nil {
			entry.Note = *note
		}
		if entry.Kind == models.KindWithdrawal && entry.Amount > previous {
			if _, err := s.deps.Stores.Accounts.GetForUpdate(ctx, tx, entry.AccountID); err != nil {
				return notFound(err, ErrAccountNotFound)
			}
			balance, err := s.deps.Stores.Entries.Balance(ctx, tx, entry.AccountID)
			if err != nil {
				return err
			}
			if entry.Amount-previous > balance {
				return ErrInsufficientFunds
			}
		}
		rows, err := s.deps.Stores.Entries.Correct(ctx, tx, entry.ID, entry.Amount, entry.Note)
		if err != nil {
			return fmt.Errorf("correct entry: %w", err)
		}
		if rows == 0 {
			return ErrAlreadySettled
		}
		if entry.Kind == models.KindGain && entry.Amount != previous {
			record, err := s.deps.Stores.Referrals.GetByEntry(ctx, tx, entry.ID)
			switch {
			case err == nil:
				if err := s.deps.Stores.Referrals.UpdateAmount(ctx, tx, record.ID, entry.Amount); err != nil {
					return err
				}
			case !isNoRows(err):
				return err
			}
		}
		return s.deps.audit(ctx, tx, actorID, "correct", "ledger_entry", entry.ID, map[string]any{
			"previous_amount": previous,
			"amount":          entry.Amount,
			"note":            entry.Note,
		})
	})
	if err != nil {
		return models.LedgerEntry{}, err
	}
	s.deps.Logger.Info("ledger entry corrected",
		zap.String("entry_id", entry.ID),
		zap.Int64("amount", entry.Amount),
		zap.String("actor_id", actorID),
	)
	return entry, nil
}

// BalanceOf folds the account's entries inside a unit of work so the result
// reflects one consistent snapshot.
func (s *LedgerService) BalanceOf(ctx context.Context, accountID string) (int64, error) {
	var balance int64
	err := s.deps.TxRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		found, err := s.deps.Stores.Accounts.Exists(ctx, tx, accountID)
		if err != nil {
			return err
		}
		if !found {
			return ErrAccountNotFound
		}
		balance, err = s.deps.Stores.Entries.Balance(ctx, tx, accountID)
		return err
	})
	if err != nil {
		return 0, err
	}
	return balance, nil
}

func (s *LedgerService) GetEntry(ctx context.Context, entryID string) (models.LedgerEntry, error) {
	var entry models.LedgerEntry
	err := s.deps.TxRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		entry, err = s.deps.Stores.Entries.GetByID(ctx, tx, entryID)
		return notFound(err, ErrEntryNotFound)
	})
	return entry, err
}

type HistoryQuery struct {
	Kind   models.EntryKind
	Status models.EntryStatus
	Cursor string
	Limit  int
}

type HistoryPage struct {
	Entries    []models.LedgerEntry `json:"entries"`
	NextCursor string               `json:"next_cursor,omitempty"`
}

// HistoryOf returns one page of entries, newest first. The cursor is
// self-contained, so a listing can be resumed or restarted at any time.
func (s *LedgerService) HistoryOf(ctx context.Context, accountID string, query HistoryQuery) (HistoryPage, error) {
	limit := query.Limit
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	filter := store.HistoryFilter{Kind: query.Kind, Status: query.Status, Limit: limit + 1}
	if query.Cursor != "" {
		cursor, err := DecodeCursor(query.Cursor)
		if err != nil {
			return HistoryPage{}, err
		}
		filter.After = &cursor
	}
	if _, err := s.deps.Stores.Accounts.GetByID(ctx, accountID); err != nil {
		return HistoryPage{}, notFound(err, ErrAccountNotFound)
	}
	rows, err := s.deps.Stores.Entries.History(ctx, accountID, filter)
	if err != nil {
		return HistoryPage{}, fmt.Errorf("history: %w", err)
	}
	page := HistoryPage{Entries: rows}
	if len(rows) > limit {
		page.Entries = rows[:limit]
		last := page.Entries[limit-1]
		page.NextCursor = EncodeCursor(store.HistoryCursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	if page.Entries == nil {
		page.Entries = []models.LedgerEntry{}
	}
	return page, nil
}

// Entries walks the whole history lazily, one page at a time. Each call
// starts again from the newest entry.
func (s *LedgerService) Entries(ctx context.Context, accountID string, query HistoryQuery) iter.Seq2[models.LedgerEntry, error] {
	return func(yield func(models.LedgerEntry, error) bool) {
		query.Cursor = ""
		for {
			page, err := s.HistoryOf(ctx, accountID, query)
			if err != nil {
				yield(models.LedgerEntry{}, err)
				return
			}
			for _, entry := range page.Entries {
				if !yield(entry, nil) {
					return
				}
			}
			if page.NextCursor == "" {
				return
			}
			query.Cursor = page.NextCursor
		}
	}
}

func (s *LedgerService) TotalEarnings(ctx context.Context, accountID string) (int64, error) {
	if _, err := s.deps.Stores.Accounts.GetByID(ctx, accountID); err != nil {
		return 0, notFound(err, ErrAccountNotFound)
	}
	return s.deps.Stores.Entries.SumCompleted(ctx, accountID, models.KindGain)
}

func (s *LedgerService) ListByStatus(ctx context.Context, status models.EntryStatus, kind models.EntryKind, limit, offset int) ([]models.LedgerEntry, error) {
	rows, err := s.deps.Stores.Entries.ListByStatus(ctx, status, kind, limit, offset)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []models.LedgerEntry{}
	}
	return rows, nil
}

func (s *LedgerService) pushBalance(accountID string, balance int64) {
	s.deps.Hub.BroadcastBalance(accountID, websocket.BalanceUpdate{
		AccountID: accountID,
		Balance:   money.FormatMinor(balance),
	})
}

func (s *LedgerService) logReferral(record *models.ReferralRecord) {
	if record == nil {
		return
	}
	s.deps.Metrics.EntryRecorded(string(models.KindGain), string(models.StatusPending))
	s.deps.Logger.Info("referral commission recorded",
		zap.String("referral_id", record.ID),
		zap.String("entry_id", record.EntryID),
		zap.String("trigger_entry_id", record.TriggerEntryID),
		zap.String("referrer_id", record.OldAccountID),
		zap.Int64("amount", record.Amount),
	)
}

func newEntry(accountID string, kind models.EntryKind, amount int64, status models.EntryStatus, proof Proof, note string) models.LedgerEntry {
	return models.LedgerEntry{
		AccountID:    accountID,
		Kind:         kind,
		Amount:       amount,
		Status:       status,
		FromAddress:  optional(proof.FromAddress),
		ToAddress:    optional(proof.ToAddress),
		ExternalHash: optional(proof.ExternalHash),
		ProofRef:     optional(proof.ProofRef),
		Note:         note,
	}
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func EncodeCursor(cursor store.HistoryCursor) string {
	raw := strconv.FormatInt(cursor.CreatedAt.UnixNano(), 10) + ":" + cursor.ID
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

func DecodeCursor(token string) (store.HistoryCursor, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return store.HistoryCursor{}, ErrInvalidCursor
	}
	nanos, id, ok := strings.Cut(string(raw), ":")
	if !ok || id == "" {
		return store.HistoryCursor{}, ErrInvalidCursor
	}
	value, err := strconv.ParseInt(nanos, 10, 64)
	if err != nil {
		return store.HistoryCursor{}, ErrInvalidCursor
	}
	return store.HistoryCursor{CreatedAt: time.Unix(0, value).UTC(), ID: id}, nil
}
