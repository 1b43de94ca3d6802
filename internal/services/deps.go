package services

import (
	"context"
	"time"

	"boostledger/internal/db"
	"boostledger/internal/ids"
	"boostledger/internal/models"
	"boostledger/internal/store"
	"boostledger/internal/websocket"

	"go.uber.org/zap"
)

type AccountStore interface {
	Create(ctx context.Context, tx store.Execer, account models.Account) error
	GetByID(ctx context.Context, accountID string) (models.Account, error)
	Get(ctx context.Context, q store.Getter, accountID string) (models.Account, error)
	GetByEmail(ctx context.Context, email string) (models.Account, error)
	GetByReferralCode(ctx context.Context, code string) (models.Account, error)
	GetForUpdate(ctx context.Context, tx store.Getter, accountID string) (models.Account, error)
	Exists(ctx context.Context, q store.Getter, accountID string) (bool, error)
	ReferralCodeTaken(ctx context.Context, q store.Getter, code string) (bool, error)
	List(ctx context.Context, limit, offset int) ([]models.Account, error)
}

type LedgerStore interface {
	Insert(ctx context.Context, tx store.Execer, entry models.LedgerEntry) error
	GetByID(ctx context.Context, q store.Getter, entryID string) (models.LedgerEntry, error)
	GetForUpdate(ctx context.Context, tx store.Getter, entryID string) (models.LedgerEntry, error)
	Settle(ctx context.Context, tx store.Execer, entryID string, outcome models.EntryStatus, settledAt time.Time) (int64, error)
	Correct(ctx context.Context, tx store.Execer, entryID string, amount int64, note string) (int64, error)
	Balance(ctx context.Context, q store.Getter, accountID string) (int64, error)
	SumCompleted(ctx context.Context, accountID string, kind models.EntryKind) (int64, error)
	History(ctx context.Context, accountID string, filter store.HistoryFilter) ([]models.LedgerEntry, error)
	ListByStatus(ctx context.Context, status models.EntryStatus, kind models.EntryKind, limit, offset int) ([]models.LedgerEntry, error)
	Exists(ctx context.Context, q store.Getter, entryID string) (bool, error)
}

type OrderStore interface {
	Create(ctx context.Context, tx store.Execer, order models.Order) error
	GetByID(ctx context.Context, q store.Getter, orderID string) (models.Order, error)
	GetForUpdate(ctx context.Context, tx store.Getter, orderID string) (models.Order, error)
	List(ctx context.Context, status models.OrderStatus, limit, offset int) ([]models.Order, error)
	UpdateStatus(ctx context.Context, tx store.Execer, orderID string, status models.OrderStatus) (int64, error)
	ReplaceProducts(ctx context.Context, tx store.Execer, orderID string, productIDs []string) error
	Exists(ctx context.Context, q store.Getter, orderID string) (bool, error)
}

type BoostStore interface {
	Create(ctx context.Context, tx store.Execer, boost models.Boost) error
	GetByID(ctx context.Context, q store.Getter, boostID string) (models.Boost, error)
	GetForUpdate(ctx context.Context, tx store.Getter, boostID string) (models.Boost, error)
	UpdateStatus(ctx context.Context, tx store.Execer, boostID string, status models.BoostStatus, note string, at time.Time) error
	ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]models.Boost, error)
	ListByStatus(ctx context.Context, status models.BoostStatus, limit, offset int) ([]models.Boost, error)
	CountByOrder(ctx context.Context, q store.Getter, orderID string) (int, error)
	Delete(ctx context.Context, tx store.Execer, boostID string) (int64, error)
	Exists(ctx context.Context, q store.Getter, boostID string) (bool, error)
	HoldsEntry(ctx context.Context, q store.Getter, entryID string) (bool, error)
}

type StatEntryStore interface {
	InsertBatch(ctx context.Context, tx store.Execer, entries []models.StatEntry) error
	GetForUpdate(ctx context.Context, tx store.Getter, statID string) (models.StatEntry, error)
	ListByBoost(ctx context.Context, q store.Selecter, boostID string) ([]models.StatEntry, error)
	ListByIDs(ctx context.Context, q store.Selecter, boostID string, ids []string) ([]models.StatEntry, error)
	UpdateProof(ctx context.Context, tx store.Execer, statID string, status models.StatStatus, kind models.ProofKind, value string, at time.Time) error
	UpdateStatus(ctx context.Context, tx store.Execer, statID string, status models.StatStatus, at time.Time) error
	UpdateAmounts(ctx context.Context, tx store.Execer, statID string, cost, commission int64, at time.Time) error
	DeleteByBoost(ctx context.Context, tx store.Execer, boostID string) error
	Exists(ctx context.Context, q store.Getter, statID string) (bool, error)
}

type ReferralStore interface {
	Create(ctx context.Context, tx store.Execer, record models.ReferralRecord) error
	GetByTrigger(ctx context.Context, q store.Getter, triggerEntryID string) (models.ReferralRecord, error)
	GetByEntry(ctx context.Context, q store.Getter, entryID string) (models.ReferralRecord, error)
	GetForUpdate(ctx context.Context, tx store.Getter, referralID string) (models.ReferralRecord, error)
	UpdateStatus(ctx context.Context, tx store.Execer, referralID string, status models.EntryStatus) error
	UpdateAmount(ctx context.Context, tx store.Execer, referralID string, amount int64) error
	ListByReferrer(ctx context.Context, referrerID string, limit, offset int) ([]models.ReferralRecord, error)
	Exists(ctx context.Context, q store.Getter, referralID string) (bool, error)
}

type WithdrawalConfigStore interface {
	Get(ctx context.Context, q store.Getter, accountID string) (models.WithdrawalConfig, error)
	Upsert(ctx context.Context, tx store.Execer, cfg models.WithdrawalConfig, at time.Time) error
	Delete(ctx context.Context, tx store.Execer, accountID string) (int64, error)
}

type AuditStore interface {
	Log(ctx context.Context, tx store.Execer, actorID, action, entityType, entityID, data string) error
}

type AdminStore interface {
	Status(ctx context.Context, accountID string) (store.AdminStatus, error)
	Roles(ctx context.Context, accountID string) ([]string, error)
	CreateAdmin(ctx context.Context, tx store.Execer, accountID string, isSuper bool, createdBy *string) error
	GrantRole(ctx context.Context, tx store.Execer, accountID, role string) error
	RevokeRole(ctx context.Context, tx store.Execer, accountID, role string) error
	HasAnyAdmin(ctx context.Context, q store.Getter) (bool, error)
}

// Stores bundles the persistence the ledger and workflow services share.
type Stores struct {
	Accounts          AccountStore
	Entries           LedgerStore
	Orders            OrderStore
	Boosts            BoostStore
	Stats             StatEntryStore
	Referrals         ReferralStore
	WithdrawalConfigs WithdrawalConfigStore
	Admins            AdminStore
	Audit             AuditStore
}

type IDGenerator interface {
	Next(ctx context.Context, exists ids.ExistsFunc) (string, error)
}

type Notifier interface {
	BroadcastBalance(accountID string, update websocket.BalanceUpdate)
	BroadcastBoost(accountID string, update websocket.BoostUpdate)
}

type Metrics interface {
	EntryRecorded(kind, status string)
	EntrySettled(kind, outcome string)
	BoostTransitioned(from, to string)
}

type Deps struct {
	TxRunner db.TxRunner
	Stores   Stores
	IDs      IDGenerator
	Hub      Notifier
	Logger   *zap.Logger
	Metrics  Metrics
	Now      func() time.Time
}

func (d Deps) withDefaults() Deps {
	if d.IDs == nil {
		d.IDs = ids.NewGenerator()
	}
	if d.Hub == nil {
		d.Hub = nopNotifier{}
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Metrics == nil {
		d.Metrics = nopMetrics{}
	}
	if d.Now == nil {
		d.Now = func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) }
	}
	return d
}

type nopNotifier struct{}

func (nopNotifier) BroadcastBalance(string, websocket.BalanceUpdate) {}
func (nopNotifier) BroadcastBoost(string, websocket.BoostUpdate)     {}

type nopMetrics struct{}

func (nopMetrics) EntryRecorded(string, string)     {}
func (nopMetrics) EntrySettled(string, string)      {}
func (nopMetrics) BoostTransitioned(string, string) {}
