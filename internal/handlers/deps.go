package handlers

import (
	"context"
	"io"

	"boostledger/internal/jobs"
	"boostledger/internal/models"
	"boostledger/internal/services"
	"boostledger/internal/store"
)

type AccountService interface {
	Register(ctx context.Context, req services.RegisterRequest) (services.Session, error)
	Login(ctx context.Context, email, password string) (services.Session, error)
	Profile(ctx context.Context, accountID string) (services.Profile, error)
	List(ctx context.Context, limit, offset int) ([]models.Account, error)
	Promote(ctx context.Context, actorID, accountID string) error
	GrantRole(ctx context.Context, actorID, accountID, role string) error
	RevokeRole(ctx context.Context, actorID, accountID, role string) error
}

type LedgerService interface {
	RecordPending(ctx context.Context, req services.RecordRequest) (models.LedgerEntry, error)
	CreditCompleted(ctx context.Context, actorID, accountID string, kind models.EntryKind, amount int64, note string) (models.LedgerEntry, error)
	Settle(ctx context.Context, actorID, entryID string, outcome models.EntryStatus) (models.LedgerEntry, error)
	CorrectEntry(ctx context.Context, actorID, entryID string, amount *int64, note *string) (models.LedgerEntry, error)
	BalanceOf(ctx context.Context, accountID string) (int64, error)
	GetEntry(ctx context.Context, entryID string) (models.LedgerEntry, error)
	HistoryOf(ctx context.Context, accountID string, query services.HistoryQuery) (services.HistoryPage, error)
	TotalEarnings(ctx context.Context, accountID string) (int64, error)
	ListByStatus(ctx context.Context, status models.EntryStatus, kind models.EntryKind, limit, offset int) ([]models.LedgerEntry, error)
}

type ReferralService interface {
	SettleReferral(ctx context.Context, actorID, referralID string, outcome models.EntryStatus, amount *int64) (models.ReferralRecord, error)
	ListReferrals(ctx context.Context, referrerID string, limit, offset int) ([]models.ReferralRecord, error)
}

type BoostService interface {
	CreateBoost(ctx context.Context, accountID, orderID string) (services.CreateBoostResult, error)
	SubmitProof(ctx context.Context, req services.SubmitProofRequest) (models.StatEntry, error)
	CheckProofTarget(ctx context.Context, statEntryID, accountID string) error
	AdminApproveFirstStep(ctx context.Context, actorID, boostID string) (models.Boost, error)
	UpdateStats(ctx context.Context, actorID, boostID string, updates []services.StatAdjustment, approve bool) ([]models.StatEntry, error)
	AdminReview(ctx context.Context, actorID, boostID string) (models.Boost, error)
	AdminRejectBoost(ctx context.Context, actorID, boostID, note string) (models.Boost, error)
	AdminRejectStatEntry(ctx context.Context, actorID, statEntryID, note string) (models.StatEntry, error)
	AdminResumeBoost(ctx context.Context, actorID, boostID string) (models.Boost, error)
	AdminDeleteBoost(ctx context.Context, actorID, boostID string) error
	ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]models.Boost, error)
	ListByStatus(ctx context.Context, status models.BoostStatus, limit, offset int) ([]models.Boost, error)
	GetDetail(ctx context.Context, boostID, viewerID string) (models.BoostDetail, error)
}

type CatalogService interface {
	CreateOrder(ctx context.Context, actorID string, req services.CreateOrderRequest) (models.Order, error)
	GetOrder(ctx context.Context, orderID string) (models.Order, error)
	ListOrders(ctx context.Context, status models.OrderStatus, limit, offset int) ([]models.Order, error)
	CompleteOrder(ctx context.Context, actorID, orderID string) (models.Order, error)
	ReplaceProducts(ctx context.Context, actorID, orderID string, productIDs []string) (models.Order, error)
}

type WithdrawalConfigService interface {
	Get(ctx context.Context, accountID string) (models.WithdrawalConfig, error)
	Put(ctx context.Context, accountID, address, coin, network string) (models.WithdrawalConfig, error)
	Delete(ctx context.Context, accountID string) error
}

type AdminStore interface {
	Status(ctx context.Context, accountID string) (store.AdminStatus, error)
	HasRole(ctx context.Context, accountID, role string) (bool, error)
}

type AuditStore interface {
	List(ctx context.Context, entityType string, limit, offset int) ([]store.AuditLog, error)
}

type ProofStore interface {
	Save(ctx context.Context, folder, filename string, body io.Reader) (string, error)
}

type Reconciler interface {
	Run(ctx context.Context) (jobs.Report, error)
}
