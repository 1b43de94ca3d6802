package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"boostledger/internal/auth"
	"boostledger/internal/config"
	"boostledger/internal/jobs"
	"boostledger/internal/models"
	"boostledger/internal/services"
	"boostledger/internal/store"
	"boostledger/internal/websocket"
)

type stubAccounts struct {
	registerFn func(ctx context.Context, req services.RegisterRequest) (services.Session, error)
	loginFn    func(ctx context.Context, email, password string) (services.Session, error)
	profileFn  func(ctx context.Context, accountID string) (services.Profile, error)
	listFn     func(ctx context.Context, limit, offset int) ([]models.Account, error)
	promoteFn  func(ctx context.Context, actorID, accountID string) error
	grantFn    func(ctx context.Context, actorID, accountID, role string) error
	revokeFn   func(ctx context.Context, actorID, accountID, role string) error
}

func (s stubAccounts) Register(ctx context.Context, req services.RegisterRequest) (services.Session, error) {
	if s.registerFn == nil {
		return services.Session{}, nil
	}
	return s.registerFn(ctx, req)
}

func (s stubAccounts) Login(ctx context.Context, email, password string) (services.Session, error) {
	if s.loginFn == nil {
		return services.Session{}, nil
	}
	return s.loginFn(ctx, email, password)
}

func (s stubAccounts) Profile(ctx context.Context, accountID string) (services.Profile, error) {
	if s.profileFn == nil {
		return services.Profile{}, nil
	}
	return s.profileFn(ctx, accountID)
}

func (s stubAccounts) List(ctx context.Context, limit, offset int) ([]models.Account, error) {
	if s.listFn == nil {
		return []models.Account{}, nil
	}
	return s.listFn(ctx, limit, offset)
}

func (s stubAccounts) Promote(ctx context.Context, actorID, accountID string) error {
	if s.promoteFn == nil {
		return nil
	}
	return s.promoteFn(ctx, actorID, accountID)
}

func (s stubAccounts) GrantRole(ctx context.Context, actorID, accountID, role string) error {
	if s.grantFn == nil {
		return nil
	}
	return s.grantFn(ctx, actorID, accountID, role)
}

func (s stubAccounts) RevokeRole(ctx context.Context, actorID, accountID, role string) error {
	if s.revokeFn == nil {
		return nil
	}
	return s.revokeFn(ctx, actorID, accountID, role)
}

type stubLedger struct {
	recordFn   func(ctx context.Context, req services.RecordRequest) (models.LedgerEntry, error)
	creditFn   func(ctx context.Context, actorID, accountID string, kind models.EntryKind, amount int64, note string) (models.LedgerEntry, error)
	settleFn   func(ctx context.Context, actorID, entryID string, outcome models.EntryStatus) (models.LedgerEntry, error)
	correctFn  func(ctx context.Context, actorID, entryID string, amount *int64, note *string) (models.LedgerEntry, error)
	balanceFn  func(ctx context.Context, accountID string) (int64, error)
	getFn      func(ctx context.Context, entryID string) (models.LedgerEntry, error)
	historyFn  func(ctx context.Context, accountID string, query services.HistoryQuery) (services.HistoryPage, error)
	earningsFn func(ctx context.Context, accountID string) (int64, error)
	listFn     func(ctx context.Context, status models.EntryStatus, kind models.EntryKind, limit, offset int) ([]models.LedgerEntry, error)
}

func (s stubLedger) RecordPending(ctx context.Context, req services.RecordRequest) (models.LedgerEntry, error) {
	if s.recordFn == nil {
		return models.LedgerEntry{}, nil
	}
	return s.recordFn(ctx, req)
}

func (s stubLedger) CreditCompleted(ctx context.Context, actorID, accountID string, kind models.EntryKind, amount int64, note string) (models.LedgerEntry, error) {
	if s.creditFn == nil {
		return models.LedgerEntry{}, nil
	}
	return s.creditFn(ctx, actorID, accountID, kind, amount, note)
}

func (s stubLedger) Settle(ctx context.Context, actorID, entryID string, outcome models.EntryStatus) (models.LedgerEntry, error) {
	if s.settleFn == nil {
		return models.LedgerEntry{}, nil
	}
	return s.settleFn(ctx, actorID, entryID, outcome)
}

func (s stubLedger) CorrectEntry(ctx context.Context, actorID, entryID string, amount *int64, note *string) (models.LedgerEntry, error) {
	if s.correctFn == nil {
		return models.LedgerEntry{}, nil
	}
	return s.correctFn(ctx, actorID, entryID, amount, note)
}

func (s stubLedger) BalanceOf(ctx context.Context, accountID string) (int64, error) {
	if s.balanceFn == nil {
		return 0, nil
	}
	return s.balanceFn(ctx, accountID)
}

func (s stubLedger) GetEntry(ctx context.Context, entryID string) (models.LedgerEntry, error) {
	if s.getFn == nil {
		return models.LedgerEntry{}, nil
	}
	return s.getFn(ctx, entryID)
}

func (s stubLedger) HistoryOf(ctx context.Context, accountID string, query services.HistoryQuery) (services.HistoryPage, error) {
	if s.historyFn == nil {
		return services.HistoryPage{}, nil
	}
	return s.historyFn(ctx, accountID, query)
}

func (s stubLedger) TotalEarnings(ctx context.Context, accountID string) (int64, error) {
	if s.earningsFn == nil {
		return 0, nil
	}
	return s.earningsFn(ctx, accountID)
}

func (s stubLedger) ListByStatus(ctx context.Context, status models.EntryStatus, kind models.EntryKind, limit, offset int) ([]models.LedgerEntry, error) {
	if s.listFn == nil {
		return nil, nil
	}
	return s.listFn(ctx, status, kind, limit, offset)
}

type stubReferrals struct {
	settleFn func(ctx context.Context, actorID, referralID string, outcome models.EntryStatus, amount *int64) (models.ReferralRecord, error)
	listFn   func(ctx context.Context, referrerID string, limit, offset int) ([]models.ReferralRecord, error)
}

func (s stubReferrals) SettleReferral(ctx context.Context, actorID, referralID string, outcome models.EntryStatus, amount *int64) (models.ReferralRecord, error) {
	if s.settleFn == nil {
		return models.ReferralRecord{}, nil
	}
	return s.settleFn(ctx, actorID, referralID, outcome, amount)
}

func (s stubReferrals) ListReferrals(ctx context.Context, referrerID string, limit, offset int) ([]models.ReferralRecord, error) {
	if s.listFn == nil {
		return nil, nil
	}
	return s.listFn(ctx, referrerID, limit, offset)
}

type stubBoosts struct {
	createFn     func(ctx context.Context, accountID, orderID string) (services.CreateBoostResult, error)
	proofFn      func(ctx context.Context, req services.SubmitProofRequest) (models.StatEntry, error)
	checkFn      func(ctx context.Context, statEntryID, accountID string) error
	approveFn    func(ctx context.Context, actorID, boostID string) (models.Boost, error)
	updateFn     func(ctx context.Context, actorID, boostID string, updates []services.StatAdjustment, approve bool) ([]models.StatEntry, error)
	reviewFn     func(ctx context.Context, actorID, boostID string) (models.Boost, error)
	rejectFn     func(ctx context.Context, actorID, boostID, note string) (models.Boost, error)
	rejectStatFn func(ctx context.Context, actorID, statEntryID, note string) (models.StatEntry, error)
	resumeFn     func(ctx context.Context, actorID, boostID string) (models.Boost, error)
	deleteFn     func(ctx context.Context, actorID, boostID string) error
	byAccountFn  func(ctx context.Context, accountID string, limit, offset int) ([]models.Boost, error)
	byStatusFn   func(ctx context.Context, status models.BoostStatus, limit, offset int) ([]models.Boost, error)
	detailFn     func(ctx context.Context, boostID, viewerID string) (models.BoostDetail, error)
}

func (s stubBoosts) CreateBoost(ctx context.Context, accountID, orderID string) (services.CreateBoostResult, error) {
	if s.createFn == nil {
		return services.CreateBoostResult{}, nil
	}
	return s.createFn(ctx, accountID, orderID)
}

func (s stubBoosts) SubmitProof(ctx context.Context, req services.SubmitProofRequest) (models.StatEntry, error) {
	if s.proofFn == nil {
		return models.StatEntry{}, nil
	}
	return s.proofFn(ctx, req)
}

func (s stubBoosts) CheckProofTarget(ctx context.Context, statEntryID, accountID string) error {
	if s.checkFn == nil {
		return nil
	}
	return s.checkFn(ctx, statEntryID, accountID)
}

func (s stubBoosts) AdminApproveFirstStep(ctx context.Context, actorID, boostID string) (models.Boost, error) {
	if s.approveFn == nil {
		return models.Boost{}, nil
	}
	return s.approveFn(ctx, actorID, boostID)
}

func (s stubBoosts) UpdateStats(ctx context.Context, actorID, boostID string, updates []services.StatAdjustment, approve bool) ([]models.StatEntry, error) {
	if s.updateFn == nil {
		return nil, nil
	}
	return s.updateFn(ctx, actorID, boostID, updates, approve)
}

func (s stubBoosts) AdminReview(ctx context.Context, actorID, boostID string) (models.Boost, error) {
	if s.reviewFn == nil {
		return models.Boost{}, nil
	}
	return s.reviewFn(ctx, actorID, boostID)
}

func (s stubBoosts) AdminRejectBoost(ctx context.Context, actorID, boostID, note string) (models.Boost, error) {
	if s.rejectFn == nil {
		return models.Boost{}, nil
	}
	return s.rejectFn(ctx, actorID, boostID, note)
}

func (s stubBoosts) AdminRejectStatEntry(ctx context.Context, actorID, statEntryID, note string) (models.StatEntry, error) {
	if s.rejectStatFn == nil {
		return models.StatEntry{}, nil
	}
	return s.rejectStatFn(ctx, actorID, statEntryID, note)
}

func (s stubBoosts) AdminResumeBoost(ctx context.Context, actorID, boostID string) (models.Boost, error) {
	if s.resumeFn == nil {
		return models.Boost{}, nil
	}
	return s.resumeFn(ctx, actorID, boostID)
}

func (s stubBoosts) AdminDeleteBoost(ctx context.Context, actorID, boostID string) error {
	if s.deleteFn == nil {
		return nil
	}
	return s.deleteFn(ctx, actorID, boostID)
}

func (s stubBoosts) ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]models.Boost, error) {
	if s.byAccountFn == nil {
		return []models.Boost{}, nil
	}
	return s.byAccountFn(ctx, accountID, limit, offset)
}

func (s stubBoosts) ListByStatus(ctx context.Context, status models.BoostStatus, limit, offset int) ([]models.Boost, error) {
	if s.byStatusFn == nil {
		return []models.Boost{}, nil
	}
	return s.byStatusFn(ctx, status, limit, offset)
}

func (s stubBoosts) GetDetail(ctx context.Context, boostID, viewerID string) (models.BoostDetail, error) {
	if s.detailFn == nil {
		return models.BoostDetail{}, nil
	}
	return s.detailFn(ctx, boostID, viewerID)
}

type stubCatalog struct {
	createFn   func(ctx context.Context, actorID string, req services.CreateOrderRequest) (models.Order, error)
	getFn      func(ctx context.Context, orderID string) (models.Order, error)
	listFn     func(ctx context.Context, status models.OrderStatus, limit, offset int) ([]models.Order, error)
	completeFn func(ctx context.Context, actorID, orderID string) (models.Order, error)
	replaceFn  func(ctx context.Context, actorID, orderID string, productIDs []string) (models.Order, error)
}

func (s stubCatalog) CreateOrder(ctx context.Context, actorID string, req services.CreateOrderRequest) (models.Order, error) {
	if s.createFn == nil {
		return models.Order{}, nil
	}
	return s.createFn(ctx, actorID, req)
}

func (s stubCatalog) GetOrder(ctx context.Context, orderID string) (models.Order, error) {
	if s.getFn == nil {
		return models.Order{}, nil
	}
	return s.getFn(ctx, orderID)
}

func (s stubCatalog) ListOrders(ctx context.Context, status models.OrderStatus, limit, offset int) ([]models.Order, error) {
	if s.listFn == nil {
		return nil, nil
	}
	return s.listFn(ctx, status, limit, offset)
}

func (s stubCatalog) CompleteOrder(ctx context.Context, actorID, orderID string) (models.Order, error) {
	if s.completeFn == nil {
		return models.Order{}, nil
	}
	return s.completeFn(ctx, actorID, orderID)
}

func (s stubCatalog) ReplaceProducts(ctx context.Context, actorID, orderID string, productIDs []string) (models.Order, error) {
	if s.replaceFn == nil {
		return models.Order{}, nil
	}
	return s.replaceFn(ctx, actorID, orderID, productIDs)
}

type stubWithdrawalConfigs struct {
	getFn    func(ctx context.Context, accountID string) (models.WithdrawalConfig, error)
	putFn    func(ctx context.Context, accountID, address, coin, network string) (models.WithdrawalConfig, error)
	deleteFn func(ctx context.Context, accountID string) error
}

func (s stubWithdrawalConfigs) Get(ctx context.Context, accountID string) (models.WithdrawalConfig, error) {
	if s.getFn == nil {
		return models.WithdrawalConfig{}, nil
	}
	return s.getFn(ctx, accountID)
}

func (s stubWithdrawalConfigs) Put(ctx context.Context, accountID, address, coin, network string) (models.WithdrawalConfig, error) {
	if s.putFn == nil {
		return models.WithdrawalConfig{}, nil
	}
	return s.putFn(ctx, accountID, address, coin, network)
}

func (s stubWithdrawalConfigs) Delete(ctx context.Context, accountID string) error {
	if s.deleteFn == nil {
		return nil
	}
	return s.deleteFn(ctx, accountID)
}

// stubAdmins treats every id in the map as an admin.
type stubAdmins struct {
	admins map[string]store.AdminStatus
	roles  map[string][]string
}

func (s stubAdmins) Status(_ context.Context, accountID string) (store.AdminStatus, error) {
	return s.admins[accountID], nil
}

func (s stubAdmins) HasRole(_ context.Context, accountID, role string) (bool, error) {
	for _, r := range s.roles[accountID] {
		if r == role {
			return true, nil
		}
	}
	return false, nil
}

type stubAudit struct {
	listFn func(ctx context.Context, entityType string, limit, offset int) ([]store.AuditLog, error)
}

func (s stubAudit) List(ctx context.Context, entityType string, limit, offset int) ([]store.AuditLog, error) {
	if s.listFn == nil {
		return []store.AuditLog{}, nil
	}
	return s.listFn(ctx, entityType, limit, offset)
}

type stubProofs struct {
	saveFn func(ctx context.Context, folder, filename string, body io.Reader) (string, error)
}

func (s stubProofs) Save(ctx context.Context, folder, filename string, body io.Reader) (string, error) {
	if s.saveFn == nil {
		return "/uploads/" + folder + "/" + filename, nil
	}
	return s.saveFn(ctx, folder, filename, body)
}

type stubReconciler struct {
	report jobs.Report
	err    error
}

func (s stubReconciler) Run(context.Context) (jobs.Report, error) {
	return s.report, s.err
}

// testServices fills every dependency with a permissive stub. superAdmin is
// a super admin and admin a plain admin without roles.
func testServices() Services {
	return Services{
		Accounts:          stubAccounts{},
		Ledger:            stubLedger{},
		Referrals:         stubReferrals{},
		Boosts:            stubBoosts{},
		Catalog:           stubCatalog{},
		WithdrawalConfigs: stubWithdrawalConfigs{},
		Admins: stubAdmins{admins: map[string]store.AdminStatus{
			"superAdmin": {IsAdmin: true, IsSuper: true},
			"admin":      {IsAdmin: true},
		}},
		Audit:      stubAudit{},
		Proofs:     stubProofs{},
		Reconciler: stubReconciler{},
	}
}

func newTestHandler(svc Services) *Handler {
	cfg := config.Config{
		AppEnv:         "test",
		JWTSecret:      "secret",
		TokenTTL:       time.Minute,
		AllowedOrigins: "*",
		MaxUploadBytes: 1 << 20,
	}
	return New(cfg, svc, websocket.NewHub(), nil, nil, nil)
}

// do sends a request through the full router, authenticated as accountID
// when it is non-empty.
func do(t *testing.T, h *Handler, method, path, accountID string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if accountID != "" {
		token, err := auth.GenerateToken("secret", accountID, time.Minute)
		if err != nil {
			t.Fatalf("failed to generate token: %v", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	h.Routes().ServeHTTP(rr, req)
	return rr
}

func doJSON(t *testing.T, h *Handler, method, path, accountID string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader = http.NoBody
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		body = bytes.NewReader(raw)
	}
	return do(t, h, method, path, accountID, body, "application/json")
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, dest any) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), dest); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
}

func expectStatus(t *testing.T, rr *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rr.Code != want {
		t.Fatalf("expected %d, got %d: %s", want, rr.Code, rr.Body.String())
	}
}

func expectError(t *testing.T, rr *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	expectStatus(t, rr, status)
	var body map[string]any
	decodeBody(t, rr, &body)
	if body["error"] != code {
		t.Fatalf("expected error %q, got %v", code, body["error"])
	}
}
