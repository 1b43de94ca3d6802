package services

import (
	"context"
	"strings"

	"boostledger/internal/models"
	"boostledger/internal/validator"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// WithdrawalConfigService keeps the one withdrawal destination each account
// may register.
type WithdrawalConfigService struct {
	deps Deps
}

func NewWithdrawalConfigService(deps Deps) *WithdrawalConfigService {
	return &WithdrawalConfigService{deps: deps.withDefaults()}
}

func (s *WithdrawalConfigService) Get(ctx context.Context, accountID string) (models.WithdrawalConfig, error) {
	var cfg models.WithdrawalConfig
	err := s.deps.TxRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		cfg, err = s.deps.Stores.WithdrawalConfigs.Get(ctx, tx, accountID)
		return notFound(err, ErrWithdrawalConfigNotFound)
	})
	return cfg, err
}

func (s *WithdrawalConfigService) Put(ctx context.Context, accountID, address, coin, network string) (models.WithdrawalConfig, error) {
	cfg := models.WithdrawalConfig{
		AccountID:      accountID,
		DepositAddress: strings.TrimSpace(address),
		Coin:           strings.ToUpper(strings.TrimSpace(coin)),
		Network:        strings.TrimSpace(network),
	}
	if validator.ValidateAddress(cfg.DepositAddress) != nil {
		return models.WithdrawalConfig{}, ErrInvalidAddress
	}
	err := s.deps.TxRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := s.deps.Stores.Accounts.GetForUpdate(ctx, tx, accountID); err != nil {
			return notFound(err, ErrAccountNotFound)
		}
		cfg.UpdatedAt = s.deps.Now()
		return s.deps.Stores.WithdrawalConfigs.Upsert(ctx, tx, cfg, cfg.UpdatedAt)
	})
	if err != nil {
		return models.WithdrawalConfig{}, err
	}
	s.deps.Logger.Info("withdrawal config saved", zap.String("account_id", accountID), zap.String("coin", cfg.Coin))
	return cfg, nil
}

func (s *WithdrawalConfigService) Delete(ctx context.Context, accountID string) error {
	return s.deps.TxRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		rows, err := s.deps.Stores.WithdrawalConfigs.Delete(ctx, tx, accountID)
		if err != nil {
			return err
		}
		if rows == 0 {
			return ErrWithdrawalConfigNotFound
		}
		return nil
	})
}
