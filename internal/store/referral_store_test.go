package store

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	"boostledger/internal/models"
)

func TestReferralStoreCreate(t *testing.T) {
	ctx := context.Background()
	execer := stubExecer{
		execFn: func(_ context.Context, query string, args ...any) (sql.Result, error) {
			if !strings.Contains(query, "INSERT INTO referral_records") {
				t.Fatalf("unexpected query: %s", query)
			}
			if args[2] != "trigger-1" || args[5] != int64(1000) {
				t.Fatalf("unexpected args: %#v", args)
			}
			return stubResult{rows: 1}, nil
		},
	}
	err := NewReferralStore(stubDB{}).Create(ctx, execer, models.ReferralRecord{
		ID:             "ref000000001",
		EntryID:        "gain-1",
		TriggerEntryID: "trigger-1",
		NewAccountID:   "new",
		OldAccountID:   "old",
		Amount:         1000,
		Status:         models.StatusPending,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestReferralStoreGetByTrigger(t *testing.T) {
	ctx := context.Background()
	getter := stubGetter{
		getFn: func(_ context.Context, dest any, query string, args ...any) error {
			if !strings.Contains(query, "trigger_entry_id = $1") {
				t.Fatalf("unexpected query: %s", query)
			}
			return sql.ErrNoRows
		},
	}
	if _, err := NewReferralStore(stubDB{}).GetByTrigger(ctx, getter, "trigger-1"); err != sql.ErrNoRows {
		t.Fatalf("expected no rows, got %v", err)
	}
}

func TestReferralStoreCountMismatched(t *testing.T) {
	ctx := context.Background()
	store := NewReferralStore(stubDB{
		getFn: func(_ context.Context, dest any, query string, args ...any) error {
			if !strings.Contains(query, "JOIN ledger_entries") || !strings.Contains(query, "r.status <> l.status") {
				t.Fatalf("unexpected query: %s", query)
			}
			*dest.(*int) = 2
			return nil
		},
	})
	count, err := store.CountMismatched(ctx)
	if err != nil || count != 2 {
		t.Fatalf("unexpected result: %d %v", count, err)
	}
}

func TestReferralStoreListByReferrer(t *testing.T) {
	ctx := context.Background()
	store := NewReferralStore(stubDB{
		selectFn: func(_ context.Context, dest any, query string, args ...any) error {
			if !strings.Contains(query, "old_account_id = $1") || args[0] != "old" {
				t.Fatalf("unexpected call: %s %#v", query, args)
			}
			*dest.(*[]models.ReferralRecord) = []models.ReferralRecord{{ID: "r1"}}
			return nil
		},
	})
	rows, err := store.ListByReferrer(ctx, "old", 10, 0)
	if err != nil || len(rows) != 1 {
		t.Fatalf("unexpected result: %#v %v", rows, err)
	}
}
