package services

import (
	"context"
	"fmt"

	"boostledger/internal/db"
	"boostledger/internal/models"
	"boostledger/internal/money"
	"boostledger/internal/store"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const referralNote = "referral commission"

// ReferralService credits referrers a pending commission when an account
// they referred completes a recharge.
type ReferralService struct {
	deps Deps
	rate decimal.Decimal
}

func NewReferralService(deps Deps, rate decimal.Decimal) *ReferralService {
	return &ReferralService{deps: deps.withDefaults(), rate: rate}
}

func (s *ReferralService) Rate() decimal.Decimal {
	return s.rate
}

// OnRechargeCompleted applies the referral hook to an already completed
// recharge. Calling it twice for the same recharge fails with
// ErrDuplicateReferral and writes nothing.
func (s *ReferralService) OnRechargeCompleted(ctx context.Context, triggerEntryID string) (*models.ReferralRecord, error) {
	var record *models.ReferralRecord
	err := s.deps.TxRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		trigger, err := s.deps.Stores.Entries.GetForUpdate(ctx, tx, triggerEntryID)
		if err != nil {
			return notFound(err, ErrEntryNotFound)
		}
		if trigger.Kind != models.KindRecharge || trigger.Status != models.StatusCompleted {
			return ErrNotEligible
		}
		if _, err := s.deps.Stores.Accounts.GetForUpdate(ctx, tx, trigger.AccountID); err != nil {
			return notFound(err, ErrAccountNotFound)
		}
		record, err = s.onRechargeCompleted(ctx, tx, trigger)
		return err
	})
	if err != nil {
		return nil, err
	}
	if record != nil {
		s.deps.Metrics.EntryRecorded(string(models.KindGain), string(models.StatusPending))
		s.deps.Logger.Info("referral commission recorded",
			zap.String("referral_id", record.ID),
			zap.String("trigger_entry_id", triggerEntryID),
			zap.Int64("amount", record.Amount),
		)
	}
	return record, nil
}

// onRechargeCompleted returns nil when the depositor has no referrer or the
// commission rounds to zero.
func (s *ReferralService) onRechargeCompleted(ctx context.Context, tx *sqlx.Tx, trigger models.LedgerEntry) (*models.ReferralRecord, error) {
	account, err := s.deps.Stores.Accounts.Get(ctx, tx, trigger.AccountID)
	if err != nil {
		return nil, notFound(err, ErrAccountNotFound)
	}
	if account.ReferrerID == nil || *account.ReferrerID == account.ID {
		return nil, nil
	}
	_, err = s.deps.Stores.Referrals.GetByTrigger(ctx, tx, trigger.ID)
	switch {
	case err == nil:
		return nil, ErrDuplicateReferral
	case !isNoRows(err):
		return nil, fmt.Errorf("load referral: %w", err)
	}
	commission := money.ApplyRate(trigger.Amount, s.rate)
	if commission <= 0 {
		return nil, nil
	}
	gain, err := s.deps.insertEntry(ctx, tx, models.LedgerEntry{
		AccountID: *account.ReferrerID,
		Kind:      models.KindGain,
		Amount:    commission,
		Status:    models.StatusPending,
		Note:      referralNote,
	})
	if err != nil {
		return nil, err
	}
	id, err := s.deps.nextID(ctx, tx, s.deps.Stores.Referrals.Exists)
	if err != nil {
		return nil, fmt.Errorf("referral id: %w", err)
	}
	record := models.ReferralRecord{
		ID:             id,
		EntryID:        gain.ID,
		TriggerEntryID: trigger.ID,
		NewAccountID:   account.ID,
		OldAccountID:   *account.ReferrerID,
		Amount:         commission,
		Status:         gain.Status,
		CreatedAt:      s.deps.Now(),
	}
	if err := s.deps.Stores.Referrals.Create(ctx, tx, record); err != nil {
		if db.IsUniqueViolation(err, store.ReferralTriggerConstraint) {
			return nil, ErrDuplicateReferral
		}
		return nil, fmt.Errorf("insert referral: %w", err)
	}
	return &record, nil
}

// SettleReferral settles the commission entry behind a referral, optionally
// correcting its amount first. The record mirrors the entry afterwards.
func (s *ReferralService) SettleReferral(ctx context.Context, actorID, referralID string, outcome models.EntryStatus, amount *int64) (models.ReferralRecord, error) {
	if !outcome.Settled() {
		return models.ReferralRecord{}, ErrInvalidOutcome
	}
	if amount != nil && *amount <= 0 {
		return models.ReferralRecord{}, ErrInvalidAmount
	}
	var record models.ReferralRecord
	err := s.deps.TxRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		record, err = s.deps.Stores.Referrals.GetForUpdate(ctx, tx, referralID)
		if err != nil {
			return notFound(err, ErrReferralNotFound)
		}
		if record.Status.Settled() {
			return ErrAlreadySettled
		}
		if amount != nil && *amount != record.Amount {
			entry, err := s.deps.Stores.Entries.GetForUpdate(ctx, tx, record.EntryID)
			if err != nil {
				return notFound(err, ErrEntryNotFound)
			}
			rows, err := s.deps.Stores.Entries.Correct(ctx, tx, entry.ID, *amount, entry.Note)
			if err != nil {
				return err
			}
			if rows == 0 {
				return ErrAlreadySettled
			}
			if err := s.deps.Stores.Referrals.UpdateAmount(ctx, tx, record.ID, *amount); err != nil {
				return err
			}
			record.Amount = *amount
		}
		entry, err := s.deps.settleEntry(ctx, tx, record.EntryID, outcome)
		if err != nil {
			return err
		}
		record.Status = entry.Status
		return s.deps.audit(ctx, tx, actorID, "settle", "referral", record.ID, map[string]any{
			"outcome":  outcome,
			"amount":   record.Amount,
			"entry_id": record.EntryID,
		})
	})
	if err != nil {
		return models.ReferralRecord{}, err
	}
	s.deps.Metrics.EntrySettled(string(models.KindGain), string(outcome))
	s.deps.Logger.Info("referral settled",
		zap.String("referral_id", record.ID),
		zap.String("outcome", string(outcome)),
		zap.Int64("amount", record.Amount),
		zap.String("actor_id", actorID),
	)
	return record, nil
}

func (s *ReferralService) ListReferrals(ctx context.Context, referrerID string, limit, offset int) ([]models.ReferralRecord, error) {
	rows, err := s.deps.Stores.Referrals.ListByReferrer(ctx, referrerID, limit, offset)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []models.ReferralRecord{}
	}
	return rows, nil
}
