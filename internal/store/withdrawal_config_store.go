package store

import (
	"context"
	"time"

	"boostledger/internal/models"
)

type WithdrawalConfigStore struct {
	db DB
}

func NewWithdrawalConfigStore(db DB) *WithdrawalConfigStore {
	return &WithdrawalConfigStore{db: db}
}

func (s *WithdrawalConfigStore) Get(ctx context.Context, q Getter, accountID string) (models.WithdrawalConfig, error) {
	var row models.WithdrawalConfig
	err := q.GetContext(ctx, &row, `
		SELECT account_id, deposit_address, coin, network, updated_at
		FROM withdrawal_configs
		WHERE account_id = $1
	`, accountID)
	if err != nil {
		return models.WithdrawalConfig{}, err
	}
	return row, nil
}

func (s *WithdrawalConfigStore) Upsert(ctx context.Context, tx Execer, cfg models.WithdrawalConfig, at time.Time) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO withdrawal_configs (account_id, deposit_address, coin, network, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (account_id) DO UPDATE
		SET deposit_address = EXCLUDED.deposit_address,
		    coin = EXCLUDED.coin,
		    network = EXCLUDED.network,
		    updated_at = EXCLUDED.updated_at
	`, cfg.AccountID, cfg.DepositAddress, cfg.Coin, cfg.Network, at)
	return err
}

func (s *WithdrawalConfigStore) Delete(ctx context.Context, tx Execer, accountID string) (int64, error) {
	res, err := tx.ExecContext(ctx, `DELETE FROM withdrawal_configs WHERE account_id = $1`, accountID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
