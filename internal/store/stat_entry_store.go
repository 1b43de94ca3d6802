package store

import (
	"context"
	"time"

	"boostledger/internal/models"

	"github.com/lib/pq"
)

const statColumns = `id, boost_id, product_id, position, cost, commission, status, proof_kind, proof_value, updated_at`

type StatEntryStore struct {
	db DB
}

func NewStatEntryStore(db DB) *StatEntryStore {
	return &StatEntryStore{db: db}
}

func (s *StatEntryStore) InsertBatch(ctx context.Context, tx Execer, entries []models.StatEntry) error {
	query := `
		INSERT INTO stat_entries (id, boost_id, product_id, position, cost, commission, status, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	for _, entry := range entries {
		if _, err := tx.ExecContext(ctx, query, entry.ID, entry.BoostID, entry.ProductID, entry.Position, entry.Cost, entry.Commission, entry.Status, entry.UpdatedAt); err != nil {
			return err
		}
	}
	return nil
}

func (s *StatEntryStore) GetForUpdate(ctx context.Context, tx Getter, statID string) (models.StatEntry, error) {
	var row models.StatEntry
	err := tx.GetContext(ctx, &row, `SELECT `+statColumns+` FROM stat_entries WHERE id = $1 FOR UPDATE`, statID)
	if err != nil {
		return models.StatEntry{}, err
	}
	return row, nil
}

func (s *StatEntryStore) ListByBoost(ctx context.Context, q Selecter, boostID string) ([]models.StatEntry, error) {
	var rows []models.StatEntry
	err := q.SelectContext(ctx, &rows, `
		SELECT `+statColumns+`
		FROM stat_entries
		WHERE boost_id = $1
		ORDER BY position ASC
	`, boostID)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ListByIDs locks and returns the rows among ids that belong to boostID.
func (s *StatEntryStore) ListByIDs(ctx context.Context, q Selecter, boostID string, ids []string) ([]models.StatEntry, error) {
	var rows []models.StatEntry
	err := q.SelectContext(ctx, &rows, `
		SELECT `+statColumns+`
		FROM stat_entries
		WHERE boost_id = $1 AND id = ANY($2)
		ORDER BY position ASC
		FOR UPDATE
	`, boostID, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *StatEntryStore) UpdateProof(ctx context.Context, tx Execer, statID string, status models.StatStatus, kind models.ProofKind, value string, at time.Time) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE stat_entries
		SET status = $1, proof_kind = $2, proof_value = $3, updated_at = $4
		WHERE id = $5
	`, status, kind, value, at, statID)
	return err
}

func (s *StatEntryStore) UpdateStatus(ctx context.Context, tx Execer, statID string, status models.StatStatus, at time.Time) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE stat_entries
		SET status = $1, updated_at = $2
		WHERE id = $3
	`, status, at, statID)
	return err
}

func (s *StatEntryStore) UpdateAmounts(ctx context.Context, tx Execer, statID string, cost, commission int64, at time.Time) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE stat_entries
		SET cost = $1, commission = $2, updated_at = $3
		WHERE id = $4
	`, cost, commission, at, statID)
	return err
}

func (s *StatEntryStore) DeleteByBoost(ctx context.Context, tx Execer, boostID string) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM stat_entries WHERE boost_id = $1`, boostID)
	return err
}

func (s *StatEntryStore) Exists(ctx context.Context, q Getter, statID string) (bool, error) {
	return exists(ctx, q, "stat_entries", statID)
}
