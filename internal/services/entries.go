package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"boostledger/internal/models"
	"boostledger/internal/store"

	"github.com/jmoiron/sqlx"
)

// Entry primitives shared by every service that writes to the ledger. All of
// them run inside the caller's unit of work.

func (d Deps) nextID(ctx context.Context, tx *sqlx.Tx, exists func(context.Context, store.Getter, string) (bool, error)) (string, error) {
	return d.IDs.Next(ctx, func(ctx context.Context, candidate string) (bool, error) {
		return exists(ctx, tx, candidate)
	})
}

func (d Deps) insertEntry(ctx context.Context, tx *sqlx.Tx, entry models.LedgerEntry) (models.LedgerEntry, error) {
	if entry.Amount <= 0 {
		return models.LedgerEntry{}, ErrInvalidAmount
	}
	id, err := d.nextID(ctx, tx, d.Stores.Entries.Exists)
	if err != nil {
		return models.LedgerEntry{}, fmt.Errorf("entry id: %w", err)
	}
	now := d.Now()
	entry.ID = id
	entry.CreatedAt = now
	if entry.Status.Settled() {
		entry.SettledAt = &now
	}
	if err := d.Stores.Entries.Insert(ctx, tx, entry); err != nil {
		return models.LedgerEntry{}, fmt.Errorf("insert entry: %w", err)
	}
	return entry, nil
}

// settleEntry moves a pending entry to outcome and mirrors the new status
// onto a referral record linked to it. The entry's account row is locked so
// the caller can read a consistent balance afterwards.
func (d Deps) settleEntry(ctx context.Context, tx *sqlx.Tx, entryID string, outcome models.EntryStatus) (models.LedgerEntry, error) {
	entry, err := d.Stores.Entries.GetForUpdate(ctx, tx, entryID)
	if err != nil {
		return models.LedgerEntry{}, notFound(err, ErrEntryNotFound)
	}
	next, err := entry.Status.Settle(outcome)
	if err != nil {
		if entry.Status.Settled() {
			return models.LedgerEntry{}, ErrAlreadySettled
		}
		return models.LedgerEntry{}, ErrInvalidOutcome
	}
	if _, err := d.Stores.Accounts.GetForUpdate(ctx, tx, entry.AccountID); err != nil {
		return models.LedgerEntry{}, notFound(err, ErrAccountNotFound)
	}
	now := d.Now()
	rows, err := d.Stores.Entries.Settle(ctx, tx, entry.ID, next, now)
	if err != nil {
		return models.LedgerEntry{}, fmt.Errorf("settle entry: %w", err)
	}
	if rows == 0 {
		return models.LedgerEntry{}, ErrAlreadySettled
	}
	entry.Status = next
	entry.SettledAt = &now
	if entry.Kind == models.KindGain {
		record, err := d.Stores.Referrals.GetByEntry(ctx, tx, entry.ID)
		switch {
		case err == nil:
			if err := d.Stores.Referrals.UpdateStatus(ctx, tx, record.ID, next); err != nil {
				return models.LedgerEntry{}, fmt.Errorf("mirror referral status: %w", err)
			}
		case !isNoRows(err):
			return models.LedgerEntry{}, fmt.Errorf("load referral: %w", err)
		}
	}
	return entry, nil
}

func (d Deps) audit(ctx context.Context, tx *sqlx.Tx, actorID, action, entityType, entityID string, data map[string]any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	if err := d.Stores.Audit.Log(ctx, tx, actorID, action, entityType, entityID, string(payload)); err != nil {
		return fmt.Errorf("audit %s: %w", action, err)
	}
	return nil
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

func notFound(err, sentinel error) error {
	if isNoRows(err) {
		return sentinel
	}
	return err
}
