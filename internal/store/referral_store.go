package store

import (
	"context"

	"boostledger/internal/models"
)

const referralColumns = `id, entry_id, trigger_entry_id, new_account_id, old_account_id, amount, status, created_at`

// ReferralTriggerConstraint guards one referral record per triggering recharge.
const ReferralTriggerConstraint = "referral_records_trigger_entry_id_key"

type ReferralStore struct {
	db DB
}

func NewReferralStore(db DB) *ReferralStore {
	return &ReferralStore{db: db}
}

func (s *ReferralStore) Create(ctx context.Context, tx Execer, record models.ReferralRecord) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO referral_records (id, entry_id, trigger_entry_id, new_account_id, old_account_id, amount, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, record.ID, record.EntryID, record.TriggerEntryID, record.NewAccountID, record.OldAccountID, record.Amount, record.Status, record.CreatedAt)
	return err
}

func (s *ReferralStore) GetByTrigger(ctx context.Context, q Getter, triggerEntryID string) (models.ReferralRecord, error) {
	var row models.ReferralRecord
	err := q.GetContext(ctx, &row, `SELECT `+referralColumns+` FROM referral_records WHERE trigger_entry_id = $1`, triggerEntryID)
	if err != nil {
		return models.ReferralRecord{}, err
	}
	return row, nil
}

func (s *ReferralStore) GetByEntry(ctx context.Context, q Getter, entryID string) (models.ReferralRecord, error) {
	var row models.ReferralRecord
	err := q.GetContext(ctx, &row, `SELECT `+referralColumns+` FROM referral_records WHERE entry_id = $1`, entryID)
	if err != nil {
		return models.ReferralRecord{}, err
	}
	return row, nil
}

func (s *ReferralStore) GetForUpdate(ctx context.Context, tx Getter, referralID string) (models.ReferralRecord, error) {
	var row models.ReferralRecord
	err := tx.GetContext(ctx, &row, `SELECT `+referralColumns+` FROM referral_records WHERE id = $1 FOR UPDATE`, referralID)
	if err != nil {
		return models.ReferralRecord{}, err
	}
	return row, nil
}

func (s *ReferralStore) UpdateStatus(ctx context.Context, tx Execer, referralID string, status models.EntryStatus) error {
	_, err := tx.ExecContext(ctx, `UPDATE referral_records SET status = $1 WHERE id = $2`, status, referralID)
	return err
}

func (s *ReferralStore) UpdateAmount(ctx context.Context, tx Execer, referralID string, amount int64) error {
	_, err := tx.ExecContext(ctx, `UPDATE referral_records SET amount = $1 WHERE id = $2`, amount, referralID)
	return err
}

func (s *ReferralStore) ListByReferrer(ctx context.Context, referrerID string, limit, offset int) ([]models.ReferralRecord, error) {
	var rows []models.ReferralRecord
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+referralColumns+`
		FROM referral_records
		WHERE old_account_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`, referrerID, limit, offset)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// CountMismatched counts records whose status drifted from their linked entry.
func (s *ReferralStore) CountMismatched(ctx context.Context) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count, `
		SELECT COUNT(1)
		FROM referral_records r
		JOIN ledger_entries l ON l.id = r.entry_id
		WHERE r.status <> l.status OR r.amount <> l.amount
	`)
	return count, err
}

func (s *ReferralStore) Exists(ctx context.Context, q Getter, referralID string) (bool, error) {
	return exists(ctx, q, "referral_records", referralID)
}
