package store

import (
	"context"
	"strings"
	"time"

	"boostledger/internal/models"
)

const entryColumns = `id, account_id, kind, amount, status, from_address, to_address, external_hash, proof_ref, note, created_at, settled_at`

// balanceExpr folds an account's entries: completed credits count, debits
// count unless they failed.
const balanceExpr = `
	COALESCE(SUM(CASE
		WHEN kind IN ('recharge', 'gain') AND status = 'completed' THEN amount
		WHEN kind = 'withdrawal' AND status <> 'failed' THEN -amount
		ELSE 0
	END), 0)`

type LedgerStore struct {
	db DB
}

func NewLedgerStore(db DB) *LedgerStore {
	return &LedgerStore{db: db}
}

// HistoryCursor is the position after which the next page starts. It is a
// plain value so a caller can resume a listing from any process.
type HistoryCursor struct {
	CreatedAt time.Time
	ID        string
}

type HistoryFilter struct {
	Kind   models.EntryKind
	Status models.EntryStatus
	After  *HistoryCursor
	Limit  int
}

func (s *LedgerStore) Insert(ctx context.Context, tx Execer, entry models.LedgerEntry) error {
	query := `
		INSERT INTO ledger_entries (id, account_id, kind, amount, status, from_address, to_address, external_hash, proof_ref, note, created_at, settled_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := tx.ExecContext(ctx, query,
		entry.ID, entry.AccountID, entry.Kind, entry.Amount, entry.Status,
		entry.FromAddress, entry.ToAddress, entry.ExternalHash, entry.ProofRef, entry.Note,
		entry.CreatedAt, entry.SettledAt,
	)
	return err
}

func (s *LedgerStore) GetByID(ctx context.Context, q Getter, entryID string) (models.LedgerEntry, error) {
	var row models.LedgerEntry
	err := q.GetContext(ctx, &row, `SELECT `+entryColumns+` FROM ledger_entries WHERE id = $1`, entryID)
	if err != nil {
		return models.LedgerEntry{}, err
	}
	return row, nil
}

func (s *LedgerStore) GetForUpdate(ctx context.Context, tx Getter, entryID string) (models.LedgerEntry, error) {
	var row models.LedgerEntry
	err := tx.GetContext(ctx, &row, `SELECT `+entryColumns+` FROM ledger_entries WHERE id = $1 FOR UPDATE`, entryID)
	if err != nil {
		return models.LedgerEntry{}, err
	}
	return row, nil
}

// Settle moves a pending entry to its outcome. It returns the number of rows
// changed, which is zero when the entry was already settled.
func (s *LedgerStore) Settle(ctx context.Context, tx Execer, entryID string, outcome models.EntryStatus, settledAt time.Time) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE ledger_entries
		SET status = $1, settled_at = $2
		WHERE id = $3 AND status = 'pending'
	`, outcome, settledAt, entryID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *LedgerStore) Correct(ctx context.Context, tx Execer, entryID string, amount int64, note string) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE ledger_entries
		SET amount = $1, note = $2
		WHERE id = $3 AND status = 'pending'
	`, amount, note, entryID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *LedgerStore) Balance(ctx context.Context, q Getter, accountID string) (int64, error) {
	var balance int64
	err := q.GetContext(ctx, &balance, `SELECT `+balanceExpr+` FROM ledger_entries WHERE account_id = $1`, accountID)
	return balance, err
}

func (s *LedgerStore) SumCompleted(ctx context.Context, accountID string, kind models.EntryKind) (int64, error) {
	var sum int64
	err := s.db.GetContext(ctx, &sum, `
		SELECT COALESCE(SUM(amount), 0)
		FROM ledger_entries
		WHERE account_id = $1 AND kind = $2 AND status = 'completed'
	`, accountID, kind)
	return sum, err
}

// History returns one page of an account's entries, newest first, ordered by
// (created_at, id) so equal timestamps still page deterministically.
func (s *LedgerStore) History(ctx context.Context, accountID string, filter HistoryFilter) ([]models.LedgerEntry, error) {
	conds := []string{"account_id = $1"}
	args := []any{accountID}
	if filter.Kind != "" {
		args = append(args, filter.Kind)
		conds = append(conds, "kind = "+placeholder(len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conds = append(conds, "status = "+placeholder(len(args)))
	}
	if filter.After != nil {
		args = append(args, filter.After.CreatedAt, filter.After.ID)
		conds = append(conds, "(created_at, id) < ("+placeholder(len(args)-1)+", "+placeholder(len(args))+")")
	}
	args = append(args, filter.Limit)
	query := `SELECT ` + entryColumns + ` FROM ledger_entries WHERE ` + strings.Join(conds, " AND ") +
		` ORDER BY created_at DESC, id DESC LIMIT ` + placeholder(len(args))
	var rows []models.LedgerEntry
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *LedgerStore) ListByStatus(ctx context.Context, status models.EntryStatus, kind models.EntryKind, limit, offset int) ([]models.LedgerEntry, error) {
	var rows []models.LedgerEntry
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+entryColumns+`
		FROM ledger_entries
		WHERE status = $1 AND ($2 = '' OR kind = $2)
		ORDER BY created_at ASC
		LIMIT $3 OFFSET $4
	`, status, string(kind), limit, offset)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *LedgerStore) CountPendingBefore(ctx context.Context, cutoff time.Time) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count, `
		SELECT COUNT(1)
		FROM ledger_entries
		WHERE status = 'pending' AND created_at < $1
	`, cutoff)
	return count, err
}

func (s *LedgerStore) Exists(ctx context.Context, q Getter, entryID string) (bool, error) {
	return exists(ctx, q, "ledger_entries", entryID)
}
