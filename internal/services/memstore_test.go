package services

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"boostledger/internal/models"
	"boostledger/internal/store"
	"boostledger/internal/websocket"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// memState is an in-memory stand-in for the database. memRunner serializes
// units of work and restores a snapshot when one fails, which gives the
// services the same all-or-nothing behaviour a Postgres transaction does.
type memState struct {
	mu        sync.Mutex
	accounts  map[string]models.Account
	entries   map[string]models.LedgerEntry
	orders    map[string]models.Order
	boosts    map[string]models.Boost
	stats     map[string]models.StatEntry
	referrals map[string]models.ReferralRecord
	configs   map[string]models.WithdrawalConfig
	admins    map[string]store.AdminStatus
	roles     map[string]map[string]bool
	audit     []string
	faults    map[string]error
}

func newMemState() *memState {
	return &memState{
		accounts:  map[string]models.Account{},
		entries:   map[string]models.LedgerEntry{},
		orders:    map[string]models.Order{},
		boosts:    map[string]models.Boost{},
		stats:     map[string]models.StatEntry{},
		referrals: map[string]models.ReferralRecord{},
		configs:   map[string]models.WithdrawalConfig{},
		admins:    map[string]store.AdminStatus{},
		roles:     map[string]map[string]bool{},
		faults:    map[string]error{},
	}
}

func (m *memState) failOn(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.faults[op] = err
}

func (m *memState) fault(op string) error {
	return m.faults[op]
}

func (m *memState) snapshot() *memState {
	m.mu.Lock()
	defer m.mu.Unlock()
	roles := make(map[string]map[string]bool, len(m.roles))
	for id, set := range m.roles {
		roles[id] = cloneMap(set)
	}
	return &memState{
		accounts:  cloneMap(m.accounts),
		entries:   cloneMap(m.entries),
		orders:    cloneMap(m.orders),
		boosts:    cloneMap(m.boosts),
		stats:     cloneMap(m.stats),
		referrals: cloneMap(m.referrals),
		configs:   cloneMap(m.configs),
		admins:    cloneMap(m.admins),
		roles:     roles,
		audit:     append([]string(nil), m.audit...),
	}
}

func (m *memState) restore(from *memState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts = from.accounts
	m.entries = from.entries
	m.orders = from.orders
	m.boosts = from.boosts
	m.stats = from.stats
	m.referrals = from.referrals
	m.configs = from.configs
	m.admins = from.admins
	m.roles = from.roles
	m.audit = from.audit
}

func cloneMap[K comparable, V any](in map[K]V) map[K]V {
	out := make(map[K]V, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

type memRunner struct {
	mu    sync.Mutex
	state *memState
}

func (r *memRunner) WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	before := r.state.snapshot()
	if err := fn(nil); err != nil {
		r.state.restore(before)
		return err
	}
	return nil
}

type memAccounts struct{ *memState }

func (m memAccounts) Create(_ context.Context, _ store.Execer, account models.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.accounts {
		if strings.EqualFold(existing.Email, account.Email) {
			return &pq.Error{Code: "23505", Constraint: accountEmailConstraint}
		}
	}
	m.accounts[account.ID] = account
	return nil
}

func (m memAccounts) GetByID(_ context.Context, id string) (models.Account, error) {
	return m.Get(context.Background(), nil, id)
}

func (m memAccounts) Get(_ context.Context, _ store.Getter, id string) (models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	account, ok := m.accounts[id]
	if !ok {
		return models.Account{}, sql.ErrNoRows
	}
	return account, nil
}

func (m memAccounts) GetByEmail(_ context.Context, email string) (models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, account := range m.accounts {
		if strings.EqualFold(account.Email, email) {
			return account, nil
		}
	}
	return models.Account{}, sql.ErrNoRows
}

func (m memAccounts) GetByReferralCode(_ context.Context, code string) (models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, account := range m.accounts {
		if account.ReferralCode == code {
			return account, nil
		}
	}
	return models.Account{}, sql.ErrNoRows
}

func (m memAccounts) GetForUpdate(ctx context.Context, _ store.Getter, id string) (models.Account, error) {
	return m.Get(ctx, nil, id)
}

func (m memAccounts) Exists(_ context.Context, _ store.Getter, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.accounts[id]
	return ok, nil
}

func (m memAccounts) ReferralCodeTaken(ctx context.Context, _ store.Getter, code string) (bool, error) {
	_, err := m.GetByReferralCode(ctx, code)
	return err == nil, nil
}

func (m memAccounts) List(_ context.Context, limit, offset int) ([]models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows := make([]models.Account, 0, len(m.accounts))
	for _, account := range m.accounts {
		rows = append(rows, account)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].CreatedAt.Before(rows[j].CreatedAt) })
	return page(rows, limit, offset), nil
}

type memEntries struct{ *memState }

func (m memEntries) Insert(_ context.Context, _ store.Execer, entry models.LedgerEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fault("entries.Insert"); err != nil {
		return err
	}
	m.entries[entry.ID] = entry
	return nil
}

func (m memEntries) GetByID(_ context.Context, _ store.Getter, id string) (models.LedgerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[id]
	if !ok {
		return models.LedgerEntry{}, sql.ErrNoRows
	}
	return entry, nil
}

func (m memEntries) GetForUpdate(ctx context.Context, _ store.Getter, id string) (models.LedgerEntry, error) {
	return m.GetByID(ctx, nil, id)
}

func (m memEntries) Settle(_ context.Context, _ store.Execer, id string, outcome models.EntryStatus, at time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[id]
	if !ok || entry.Status != models.StatusPending {
		return 0, nil
	}
	entry.Status = outcome
	entry.SettledAt = &at
	m.entries[id] = entry
	return 1, nil
}

func (m memEntries) Correct(_ context.Context, _ store.Execer, id string, amount int64, note string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[id]
	if !ok || entry.Status != models.StatusPending {
		return 0, nil
	}
	entry.Amount = amount
	entry.Note = note
	m.entries[id] = entry
	return 1, nil
}

func (m memEntries) accountEntries(accountID string) []models.LedgerEntry {
	var rows []models.LedgerEntry
	for _, entry := range m.entries {
		if entry.AccountID == accountID {
			rows = append(rows, entry)
		}
	}
	return rows
}

func (m memEntries) Balance(_ context.Context, _ store.Getter, accountID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return models.FoldBalance(m.accountEntries(accountID)), nil
}

func (m memEntries) SumCompleted(_ context.Context, accountID string, kind models.EntryKind) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var sum int64
	for _, entry := range m.accountEntries(accountID) {
		if entry.Kind == kind && entry.Status == models.StatusCompleted {
			sum += entry.Amount
		}
	}
	return sum, nil
}

func (m memEntries) History(_ context.Context, accountID string, filter store.HistoryFilter) ([]models.LedgerEntry, error) {
	m.mu.Lock()
	rows := m.accountEntries(accountID)
	m.mu.Unlock()
	sort.Slice(rows, func(i, j int) bool { return newerThan(rows[i].CreatedAt, rows[i].ID, rows[j].CreatedAt, rows[j].ID) })
	out := []models.LedgerEntry{}
	for _, entry := range rows {
		if filter.Kind != "" && entry.Kind != filter.Kind {
			continue
		}
		if filter.Status != "" && entry.Status != filter.Status {
			continue
		}
		if filter.After != nil && !newerThan(filter.After.CreatedAt, filter.After.ID, entry.CreatedAt, entry.ID) {
			continue
		}
		out = append(out, entry)
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

func newerThan(at time.Time, id string, otherAt time.Time, otherID string) bool {
	if !at.Equal(otherAt) {
		return at.After(otherAt)
	}
	return id > otherID
}

func (m memEntries) ListByStatus(_ context.Context, status models.EntryStatus, kind models.EntryKind, limit, offset int) ([]models.LedgerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var rows []models.LedgerEntry
	for _, entry := range m.entries {
		if entry.Status == status && (kind == "" || entry.Kind == kind) {
			rows = append(rows, entry)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].CreatedAt.Before(rows[j].CreatedAt) })
	return page(rows, limit, offset), nil
}

func (m memEntries) Exists(_ context.Context, _ store.Getter, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.entries[id]
	return ok, nil
}

type memOrders struct{ *memState }

func (m memOrders) Create(_ context.Context, _ store.Execer, order models.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.orders {
		if existing.Code == order.Code {
			return &pq.Error{Code: "23505", Constraint: store.OrderCodeConstraint}
		}
	}
	m.orders[order.ID] = order
	return nil
}

func (m memOrders) GetByID(_ context.Context, _ store.Getter, id string) (models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[id]
	if !ok {
		return models.Order{}, sql.ErrNoRows
	}
	return order, nil
}

func (m memOrders) GetForUpdate(ctx context.Context, _ store.Getter, id string) (models.Order, error) {
	return m.GetByID(ctx, nil, id)
}

func (m memOrders) List(_ context.Context, status models.OrderStatus, limit, offset int) ([]models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var rows []models.Order
	for _, order := range m.orders {
		if status == "" || order.Status == status {
			rows = append(rows, order)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Code < rows[j].Code })
	return page(rows, limit, offset), nil
}

func (m memOrders) UpdateStatus(_ context.Context, _ store.Execer, id string, status models.OrderStatus) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[id]
	if !ok {
		return 0, nil
	}
	order.Status = status
	m.orders[id] = order
	return 1, nil
}

func (m memOrders) ReplaceProducts(_ context.Context, _ store.Execer, id string, productIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	order := m.orders[id]
	order.ProductIDs = append(pq.StringArray(nil), productIDs...)
	m.orders[id] = order
	return nil
}

func (m memOrders) Exists(_ context.Context, _ store.Getter, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.orders[id]
	return ok, nil
}

type memBoosts struct{ *memState }

func (m memBoosts) Create(_ context.Context, _ store.Execer, boost models.Boost) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fault("boosts.Create"); err != nil {
		return err
	}
	m.boosts[boost.ID] = boost
	return nil
}

func (m memBoosts) GetByID(_ context.Context, _ store.Getter, id string) (models.Boost, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	boost, ok := m.boosts[id]
	if !ok {
		return models.Boost{}, sql.ErrNoRows
	}
	return boost, nil
}

func (m memBoosts) GetForUpdate(ctx context.Context, _ store.Getter, id string) (models.Boost, error) {
	return m.GetByID(ctx, nil, id)
}

func (m memBoosts) UpdateStatus(_ context.Context, _ store.Execer, id string, status models.BoostStatus, note string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	boost := m.boosts[id]
	boost.Status = status
	boost.Note = note
	boost.UpdatedAt = at
	m.boosts[id] = boost
	return nil
}

func (m memBoosts) list(match func(models.Boost) bool, limit, offset int) []models.Boost {
	m.mu.Lock()
	defer m.mu.Unlock()
	var rows []models.Boost
	for _, boost := range m.boosts {
		if match(boost) {
			rows = append(rows, boost)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })
	return page(rows, limit, offset)
}

func (m memBoosts) ListByAccount(_ context.Context, accountID string, limit, offset int) ([]models.Boost, error) {
	return m.list(func(b models.Boost) bool { return b.AccountID == accountID }, limit, offset), nil
}

func (m memBoosts) ListByStatus(_ context.Context, status models.BoostStatus, limit, offset int) ([]models.Boost, error) {
	return m.list(func(b models.Boost) bool { return b.Status == status }, limit, offset), nil
}

func (m memBoosts) CountByOrder(_ context.Context, _ store.Getter, orderID string) (int, error) {
	return len(m.list(func(b models.Boost) bool { return b.OrderID == orderID }, 0, 0)), nil
}

func (m memBoosts) Delete(_ context.Context, _ store.Execer, id string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.boosts[id]; !ok {
		return 0, nil
	}
	delete(m.boosts, id)
	return 1, nil
}

func (m memBoosts) HoldsEntry(_ context.Context, _ store.Getter, entryID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, boost := range m.boosts {
		if boost.EntryID != nil && *boost.EntryID == entryID {
			return true, nil
		}
	}
	return false, nil
}

func (m memBoosts) Exists(_ context.Context, _ store.Getter, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.boosts[id]
	return ok, nil
}

type memStats struct{ *memState }

func (m memStats) InsertBatch(_ context.Context, _ store.Execer, entries []models.StatEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fault("stats.InsertBatch"); err != nil {
		return err
	}
	for _, entry := range entries {
		m.stats[entry.ID] = entry
	}
	return nil
}

func (m memStats) GetForUpdate(_ context.Context, _ store.Getter, id string) (models.StatEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stat, ok := m.stats[id]
	if !ok {
		return models.StatEntry{}, sql.ErrNoRows
	}
	return stat, nil
}

func (m memStats) ListByBoost(_ context.Context, _ store.Selecter, boostID string) ([]models.StatEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var rows []models.StatEntry
	for _, stat := range m.stats {
		if stat.BoostID == boostID {
			rows = append(rows, stat)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Position < rows[j].Position })
	return rows, nil
}

func (m memStats) ListByIDs(_ context.Context, _ store.Selecter, boostID string, ids []string) ([]models.StatEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var rows []models.StatEntry
	for _, id := range ids {
		if stat, ok := m.stats[id]; ok && stat.BoostID == boostID {
			rows = append(rows, stat)
		}
	}
	return rows, nil
}

func (m memStats) update(id string, fn func(*models.StatEntry)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fault("stats.Update"); err != nil {
		return err
	}
	stat := m.stats[id]
	fn(&stat)
	m.stats[id] = stat
	return nil
}

func (m memStats) UpdateProof(_ context.Context, _ store.Execer, id string, status models.StatStatus, kind models.ProofKind, value string, at time.Time) error {
	return m.update(id, func(s *models.StatEntry) {
		s.Status = status
		s.ProofKind = &kind
		s.ProofValue = &value
		s.UpdatedAt = at
	})
}

func (m memStats) UpdateStatus(_ context.Context, _ store.Execer, id string, status models.StatStatus, at time.Time) error {
	return m.update(id, func(s *models.StatEntry) {
		s.Status = status
		s.UpdatedAt = at
	})
}

func (m memStats) UpdateAmounts(_ context.Context, _ store.Execer, id string, cost, commission int64, at time.Time) error {
	return m.update(id, func(s *models.StatEntry) {
		s.Cost = cost
		s.Commission = commission
		s.UpdatedAt = at
	})
}

func (m memStats) DeleteByBoost(_ context.Context, _ store.Execer, boostID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, stat := range m.stats {
		if stat.BoostID == boostID {
			delete(m.stats, id)
		}
	}
	return nil
}

func (m memStats) Exists(_ context.Context, _ store.Getter, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.stats[id]
	return ok, nil
}

type memReferrals struct{ *memState }

func (m memReferrals) Create(_ context.Context, _ store.Execer, record models.ReferralRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.referrals {
		if existing.TriggerEntryID == record.TriggerEntryID {
			return &pq.Error{Code: "23505", Constraint: store.ReferralTriggerConstraint}
		}
	}
	m.referrals[record.ID] = record
	return nil
}

func (m memReferrals) find(match func(models.ReferralRecord) bool) (models.ReferralRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, record := range m.referrals {
		if match(record) {
			return record, nil
		}
	}
	return models.ReferralRecord{}, sql.ErrNoRows
}

func (m memReferrals) GetByTrigger(_ context.Context, _ store.Getter, triggerID string) (models.ReferralRecord, error) {
	return m.find(func(r models.ReferralRecord) bool { return r.TriggerEntryID == triggerID })
}

func (m memReferrals) GetByEntry(_ context.Context, _ store.Getter, entryID string) (models.ReferralRecord, error) {
	return m.find(func(r models.ReferralRecord) bool { return r.EntryID == entryID })
}

func (m memReferrals) GetForUpdate(_ context.Context, _ store.Getter, id string) (models.ReferralRecord, error) {
	return m.find(func(r models.ReferralRecord) bool { return r.ID == id })
}

func (m memReferrals) UpdateStatus(_ context.Context, _ store.Execer, id string, status models.EntryStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	record := m.referrals[id]
	record.Status = status
	m.referrals[id] = record
	return nil
}

func (m memReferrals) UpdateAmount(_ context.Context, _ store.Execer, id string, amount int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	record := m.referrals[id]
	record.Amount = amount
	m.referrals[id] = record
	return nil
}

func (m memReferrals) ListByReferrer(_ context.Context, referrerID string, limit, offset int) ([]models.ReferralRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var rows []models.ReferralRecord
	for _, record := range m.referrals {
		if record.OldAccountID == referrerID {
			rows = append(rows, record)
		}
	}
	return page(rows, limit, offset), nil
}

func (m memReferrals) Exists(_ context.Context, _ store.Getter, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.referrals[id]
	return ok, nil
}

type memConfigs struct{ *memState }

func (m memConfigs) Get(_ context.Context, _ store.Getter, accountID string) (models.WithdrawalConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cfg, ok := m.configs[accountID]
	if !ok {
		return models.WithdrawalConfig{}, sql.ErrNoRows
	}
	return cfg, nil
}

func (m memConfigs) Upsert(_ context.Context, _ store.Execer, cfg models.WithdrawalConfig, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cfg.UpdatedAt = at
	m.configs[cfg.AccountID] = cfg
	return nil
}

func (m memConfigs) Delete(_ context.Context, _ store.Execer, accountID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.configs[accountID]; !ok {
		return 0, nil
	}
	delete(m.configs, accountID)
	return 1, nil
}

type memAudit struct{ *memState }

func (m memAudit) Log(_ context.Context, _ store.Execer, actorID, action, entityType, entityID, data string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fault("audit.Log"); err != nil {
		return err
	}
	m.audit = append(m.audit, action+" "+entityType+" "+entityID)
	return nil
}

type memAdmins struct{ *memState }

func (m memAdmins) Status(_ context.Context, accountID string) (store.AdminStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.admins[accountID], nil
}

func (m memAdmins) Roles(_ context.Context, accountID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var roles []string
	for role := range m.roles[accountID] {
		roles = append(roles, role)
	}
	sort.Strings(roles)
	return roles, nil
}

func (m memAdmins) CreateAdmin(_ context.Context, _ store.Execer, accountID string, isSuper bool, _ *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.admins[accountID]; !ok {
		m.admins[accountID] = store.AdminStatus{IsAdmin: true, IsSuper: isSuper}
	}
	return nil
}

func (m memAdmins) GrantRole(_ context.Context, _ store.Execer, accountID, role string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.roles[accountID] == nil {
		m.roles[accountID] = map[string]bool{}
	}
	m.roles[accountID][role] = true
	return nil
}

func (m memAdmins) RevokeRole(_ context.Context, _ store.Execer, accountID, role string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.roles[accountID], role)
	return nil
}

func (m memAdmins) HasAnyAdmin(_ context.Context, _ store.Getter) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.admins) > 0, nil
}

func page[T any](rows []T, limit, offset int) []T {
	if offset >= len(rows) {
		return nil
	}
	rows = rows[offset:]
	if limit > 0 && limit < len(rows) {
		rows = rows[:limit]
	}
	return rows
}

type recordingHub struct {
	mu       sync.Mutex
	balances map[string]string
	boosts   []websocket.BoostUpdate
}

func (h *recordingHub) BroadcastBalance(accountID string, update websocket.BalanceUpdate) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.balances == nil {
		h.balances = map[string]string{}
	}
	h.balances[accountID] = update.Balance
}

func (h *recordingHub) BroadcastBoost(_ string, update websocket.BoostUpdate) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.boosts = append(h.boosts, update)
}

// fixture wires every service over one memState with a clock that advances
// a second per reading, so history order is deterministic.
type fixture struct {
	state    *memState
	hub      *recordingHub
	deps     Deps
	ledger   *LedgerService
	referral *ReferralService
	catalog  *CatalogService
	boosts   *BoostService
	accounts *AccountService
	configs  *WithdrawalConfigService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	state := newMemState()
	hub := &recordingHub{}
	var tick atomic.Int64
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	deps := Deps{
		TxRunner: &memRunner{state: state},
		Stores: Stores{
			Accounts:          memAccounts{state},
			Entries:           memEntries{state},
			Orders:            memOrders{state},
			Boosts:            memBoosts{state},
			Stats:             memStats{state},
			Referrals:         memReferrals{state},
			WithdrawalConfigs: memConfigs{state},
			Admins:            memAdmins{state},
			Audit:             memAudit{state},
		},
		Hub: hub,
		Now: func() time.Time { return base.Add(time.Duration(tick.Add(1)) * time.Second) },
	}
	referral := NewReferralService(deps, mustRate("0.10"))
	ledger := NewLedgerService(deps, referral, 1000)
	catalog := NewCatalogService(deps)
	return &fixture{
		state:    state,
		hub:      hub,
		deps:     deps,
		ledger:   ledger,
		referral: referral,
		catalog:  catalog,
		boosts:   NewBoostService(deps, ledger, catalog),
		accounts: NewAccountService(deps, "secret", time.Hour),
		configs:  NewWithdrawalConfigService(deps),
	}
}

// account inserts an account directly, bypassing registration.
func (f *fixture) account(t *testing.T, id string, referrerID *string) models.Account {
	t.Helper()
	account := models.Account{ID: id, Name: id, Email: id + "@example.com", ReferralCode: "ref-" + id, ReferrerID: referrerID}
	if err := (memAccounts{f.state}).Create(context.Background(), nil, account); err != nil {
		t.Fatalf("create account: %v", err)
	}
	return account
}

// fund gives an account a completed recharge of amount.
func (f *fixture) fund(t *testing.T, accountID string, amount int64) {
	t.Helper()
	if _, err := f.ledger.CreditCompleted(context.Background(), "admin", accountID, models.KindRecharge, amount, "seed"); err != nil {
		t.Fatalf("fund: %v", err)
	}
}

func (f *fixture) order(t *testing.T, code string, cost int64, products ...string) models.Order {
	t.Helper()
	order, err := f.catalog.CreateOrder(context.Background(), "admin", CreateOrderRequest{
		Code:       code,
		ProductIDs: products,
		Cost:       cost,
		Commission: 10,
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	return order
}

func (f *fixture) balance(t *testing.T, accountID string) int64 {
	t.Helper()
	balance, err := f.ledger.BalanceOf(context.Background(), accountID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	return balance
}

func (f *fixture) count(fn func(*memState) int) int {
	f.state.mu.Lock()
	defer f.state.mu.Unlock()
	return fn(f.state)
}

func ptr[T any](v T) *T {
	return &v
}

func mustRate(raw string) decimal.Decimal {
	return decimal.RequireFromString(raw)
}
