package store

import (
	"context"
	"time"

	"boostledger/internal/models"
)

const boostColumns = `id, account_id, order_id, entry_id, status, note, created_at, updated_at`

type BoostStore struct {
	db DB
}

func NewBoostStore(db DB) *BoostStore {
	return &BoostStore{db: db}
}

func (s *BoostStore) Create(ctx context.Context, tx Execer, boost models.Boost) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO boosts (id, account_id, order_id, entry_id, status, note, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, boost.ID, boost.AccountID, boost.OrderID, boost.EntryID, boost.Status, boost.Note, boost.CreatedAt, boost.UpdatedAt)
	return err
}

func (s *BoostStore) GetByID(ctx context.Context, q Getter, boostID string) (models.Boost, error) {
	var row models.Boost
	err := q.GetContext(ctx, &row, `SELECT `+boostColumns+` FROM boosts WHERE id = $1`, boostID)
	if err != nil {
		return models.Boost{}, err
	}
	return row, nil
}

func (s *BoostStore) GetForUpdate(ctx context.Context, tx Getter, boostID string) (models.Boost, error) {
	var row models.Boost
	err := tx.GetContext(ctx, &row, `SELECT `+boostColumns+` FROM boosts WHERE id = $1 FOR UPDATE`, boostID)
	if err != nil {
		return models.Boost{}, err
	}
	return row, nil
}

func (s *BoostStore) UpdateStatus(ctx context.Context, tx Execer, boostID string, status models.BoostStatus, note string, at time.Time) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE boosts
		SET status = $1, note = $2, updated_at = $3
		WHERE id = $4
	`, status, note, at, boostID)
	return err
}

func (s *BoostStore) ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]models.Boost, error) {
	var rows []models.Boost
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+boostColumns+`
		FROM boosts
		WHERE account_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`, accountID, limit, offset)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *BoostStore) ListByStatus(ctx context.Context, status models.BoostStatus, limit, offset int) ([]models.Boost, error) {
	var rows []models.Boost
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+boostColumns+`
		FROM boosts
		WHERE status = $1
		ORDER BY created_at ASC, id ASC
		LIMIT $2 OFFSET $3
	`, status, limit, offset)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *BoostStore) CountByOrder(ctx context.Context, q Getter, orderID string) (int, error) {
	var count int
	err := q.GetContext(ctx, &count, `SELECT COUNT(1) FROM boosts WHERE order_id = $1`, orderID)
	return count, err
}

func (s *BoostStore) Delete(ctx context.Context, tx Execer, boostID string) (int64, error) {
	res, err := tx.ExecContext(ctx, `DELETE FROM boosts WHERE id = $1`, boostID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// HoldsEntry reports whether a boost was purchased with the given ledger
// entry.
func (s *BoostStore) HoldsEntry(ctx context.Context, q Getter, entryID string) (bool, error) {
	var found bool
	err := q.GetContext(ctx, &found, `SELECT EXISTS(SELECT 1 FROM boosts WHERE entry_id = $1)`, entryID)
	return found, err
}

func (s *BoostStore) Exists(ctx context.Context, q Getter, boostID string) (bool, error) {
	return exists(ctx, q, "boosts", boostID)
}
