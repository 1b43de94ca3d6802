package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"boostledger/internal/auth"
	"boostledger/internal/db"
	"boostledger/internal/models"
	"boostledger/internal/validator"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

const accountEmailConstraint = "accounts_email_key"

const (
	RoleSettleTransactions = "CanSettleTransactions"
	RoleManageBoosts       = "CanManageBoosts"
	RoleManageOrders       = "CanManageOrders"
)

var adminRoles = map[string]bool{
	RoleSettleTransactions: true,
	RoleManageBoosts:       true,
	RoleManageOrders:       true,
}

// AccountService covers registration, login and admin membership. It sits at
// the edge of the ledger and only creates the principals entries belong to.
type AccountService struct {
	deps     Deps
	secret   string
	tokenTTL time.Duration
}

func NewAccountService(deps Deps, secret string, tokenTTL time.Duration) *AccountService {
	return &AccountService{deps: deps.withDefaults(), secret: secret, tokenTTL: tokenTTL}
}

type RegisterRequest struct {
	Name         string
	Email        string
	Password     string
	ReferralCode string
}

type Session struct {
	Token   string         `json:"token"`
	Account models.Account `json:"account"`
}

// Register creates an account with its own referral code. The referrer, when
// a code is given, is fixed here and never changes. The first account ever
// registered becomes super admin.
func (s *AccountService) Register(ctx context.Context, req RegisterRequest) (Session, error) {
	name := strings.TrimSpace(req.Name)
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if err := validator.ValidateName(name); err != nil {
		return Session{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	if err := validator.ValidateEmail(email); err != nil {
		return Session{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	if err := validator.ValidatePassword(req.Password); err != nil {
		return Session{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	var referrerID *string
	if code := strings.TrimSpace(req.ReferralCode); code != "" {
		referrer, err := s.deps.Stores.Accounts.GetByReferralCode(ctx, code)
		if err != nil {
			return Session{}, notFound(err, ErrInvalidReferral)
		}
		referrerID = &referrer.ID
	}
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return Session{}, fmt.Errorf("hash password: %w", err)
	}
	account := models.Account{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		ReferrerID:   referrerID,
	}
	var super bool
	err = s.deps.TxRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := s.deps.Stores.Accounts.GetByEmail(ctx, email); err == nil {
			return ErrEmailTaken
		} else if !isNoRows(err) {
			return err
		}
		id, err := s.deps.nextID(ctx, tx, s.deps.Stores.Accounts.Exists)
		if err != nil {
			return fmt.Errorf("account id: %w", err)
		}
		code, err := s.deps.nextID(ctx, tx, s.deps.Stores.Accounts.ReferralCodeTaken)
		if err != nil {
			return fmt.Errorf("referral code: %w", err)
		}
		account.ID = id
		account.ReferralCode = code
		account.CreatedAt = s.deps.Now()
		if err := s.deps.Stores.Accounts.Create(ctx, tx, account); err != nil {
			if db.IsUniqueViolation(err, accountEmailConstraint) {
				return ErrEmailTaken
			}
			return err
		}
		hasAdmin, err := s.deps.Stores.Admins.HasAnyAdmin(ctx, tx)
		if err != nil {
			return err
		}
		if !hasAdmin {
			if err := s.deps.Stores.Admins.CreateAdmin(ctx, tx, account.ID, true, nil); err != nil {
				return err
			}
			super = true
		}
		return s.deps.audit(ctx, tx, account.ID, "register", "account", account.ID, map[string]any{
			"referred": referrerID != nil,
		})
	})
	if err != nil {
		return Session{}, err
	}
	s.deps.Logger.Info("account registered",
		zap.String("account_id", account.ID),
		zap.Bool("referred", referrerID != nil),
		zap.Bool("super_admin", super),
	)
	return s.session(account)
}

func (s *AccountService) Login(ctx context.Context, email, password string) (Session, error) {
	account, err := s.deps.Stores.Accounts.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return Session{}, notFound(err, ErrInvalidCredential)
	}
	if !auth.CheckPassword(account.PasswordHash, password) {
		return Session{}, ErrInvalidCredential
	}
	return s.session(account)
}

func (s *AccountService) session(account models.Account) (Session, error) {
	token, err := auth.GenerateToken(s.secret, account.ID, s.tokenTTL)
	if err != nil {
		return Session{}, err
	}
	return Session{Token: token, Account: account}, nil
}

type Profile struct {
	Account models.Account `json:"account"`
	IsAdmin bool           `json:"is_admin"`
	IsSuper bool           `json:"is_super"`
	Roles   []string       `json:"roles"`
}

func (s *AccountService) Profile(ctx context.Context, accountID string) (Profile, error) {
	account, err := s.deps.Stores.Accounts.GetByID(ctx, accountID)
	if err != nil {
		return Profile{}, notFound(err, ErrAccountNotFound)
	}
	status, err := s.deps.Stores.Admins.Status(ctx, accountID)
	if err != nil {
		return Profile{}, err
	}
	profile := Profile{Account: account, IsAdmin: status.IsAdmin, IsSuper: status.IsSuper, Roles: []string{}}
	if status.IsAdmin {
		roles, err := s.deps.Stores.Admins.Roles(ctx, accountID)
		if err != nil {
			return Profile{}, err
		}
		if roles != nil {
			profile.Roles = roles
		}
	}
	return profile, nil
}

func (s *AccountService) List(ctx context.Context, limit, offset int) ([]models.Account, error) {
	rows, err := s.deps.Stores.Accounts.List(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []models.Account{}
	}
	return rows, nil
}

// Promote makes an account a plain admin. Promoting an existing admin is a
// no-op.
func (s *AccountService) Promote(ctx context.Context, actorID, accountID string) error {
	return s.deps.TxRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := s.deps.Stores.Accounts.Get(ctx, tx, accountID); err != nil {
			return notFound(err, ErrAccountNotFound)
		}
		if err := s.deps.Stores.Admins.CreateAdmin(ctx, tx, accountID, false, &actorID); err != nil {
			return err
		}
		return s.deps.audit(ctx, tx, actorID, "promote", "account", accountID, map[string]any{})
	})
}

func (s *AccountService) GrantRole(ctx context.Context, actorID, accountID, role string) error {
	return s.changeRole(ctx, actorID, accountID, role, true)
}

func (s *AccountService) RevokeRole(ctx context.Context, actorID, accountID, role string) error {
	return s.changeRole(ctx, actorID, accountID, role, false)
}

func (s *AccountService) changeRole(ctx context.Context, actorID, accountID, role string, grant bool) error {
	if !adminRoles[role] {
		return ErrInvalidRole
	}
	status, err := s.deps.Stores.Admins.Status(ctx, accountID)
	if err != nil {
		return err
	}
	if !status.IsAdmin {
		return fmt.Errorf("%w: account is not an admin", ErrAccountNotFound)
	}
	action := "revoke_role"
	if grant {
		action = "grant_role"
	}
	err = s.deps.TxRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		if grant {
			err = s.deps.Stores.Admins.GrantRole(ctx, tx, accountID, role)
		} else {
			err = s.deps.Stores.Admins.RevokeRole(ctx, tx, accountID, role)
		}
		if err != nil {
			return err
		}
		return s.deps.audit(ctx, tx, actorID, action, "admin", accountID, map[string]any{"role": role})
	})
	if err != nil {
		return err
	}
	s.deps.Logger.Info("admin role changed",
		zap.String("account_id", accountID),
		zap.String("role", role),
		zap.Bool("granted", grant),
		zap.String("actor_id", actorID),
	)
	return nil
}

// IsValidRole reports whether role names one of the admin permissions.
func IsValidRole(role string) bool {
	return adminRoles[role]
}
