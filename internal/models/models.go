package models

import (
	"time"

	"github.com/lib/pq"
)

type Account struct {
	ID           string    `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	ReferralCode string    `db:"referral_code" json:"referral_code"`
	ReferrerID   *string   `db:"referrer_id" json:"referrer_id,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// LedgerEntry is one money movement. Amount is in minor units and always
// positive; Kind decides the sign it contributes to a balance.
type LedgerEntry struct {
	ID           string      `db:"id" json:"id"`
	AccountID    string      `db:"account_id" json:"account_id"`
	Kind         EntryKind   `db:"kind" json:"kind"`
	Amount       int64       `db:"amount" json:"amount"`
	Status       EntryStatus `db:"status" json:"status"`
	FromAddress  *string     `db:"from_address" json:"from_address,omitempty"`
	ToAddress    *string     `db:"to_address" json:"to_address,omitempty"`
	ExternalHash *string     `db:"external_hash" json:"external_hash,omitempty"`
	ProofRef     *string     `db:"proof_ref" json:"proof_ref,omitempty"`
	Note         string      `db:"note" json:"note"`
	CreatedAt    time.Time   `db:"created_at" json:"created_at"`
	SettledAt    *time.Time  `db:"settled_at" json:"settled_at,omitempty"`
}

type Order struct {
	ID          string         `db:"id" json:"id"`
	Code        string         `db:"code" json:"code"`
	Description string         `db:"description" json:"description"`
	ProductIDs  pq.StringArray `db:"product_ids" json:"product_ids"`
	Cost        int64          `db:"cost" json:"cost"`
	Commission  int64          `db:"commission" json:"commission"`
	Status      OrderStatus    `db:"status" json:"status"`
	Image       *string        `db:"image" json:"image,omitempty"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
}

type Boost struct {
	ID        string      `db:"id" json:"id"`
	AccountID string      `db:"account_id" json:"account_id"`
	OrderID   string      `db:"order_id" json:"order_id"`
	EntryID   *string     `db:"entry_id" json:"entry_id,omitempty"`
	Status    BoostStatus `db:"status" json:"status"`
	Note      string      `db:"note" json:"note"`
	CreatedAt time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt time.Time   `db:"updated_at" json:"updated_at"`
}

// StatEntry is the per-product task inside a boost.
type StatEntry struct {
	ID         string     `db:"id" json:"id"`
	BoostID    string     `db:"boost_id" json:"boost_id"`
	ProductID  string     `db:"product_id" json:"product_id"`
	Position   int        `db:"position" json:"position"`
	Cost       int64      `db:"cost" json:"cost"`
	Commission int64      `db:"commission" json:"commission"`
	Status     StatStatus `db:"status" json:"status"`
	ProofKind  *ProofKind `db:"proof_kind" json:"proof_kind,omitempty"`
	ProofValue *string    `db:"proof_value" json:"proof_value,omitempty"`
	UpdatedAt  time.Time  `db:"updated_at" json:"updated_at"`
}

// ReferralRecord links a referrer's commission entry to the recharge that
// earned it. TriggerEntryID is unique.
type ReferralRecord struct {
	ID             string      `db:"id" json:"id"`
	EntryID        string      `db:"entry_id" json:"entry_id"`
	TriggerEntryID string      `db:"trigger_entry_id" json:"trigger_entry_id"`
	NewAccountID   string      `db:"new_account_id" json:"new_account_id"`
	OldAccountID   string      `db:"old_account_id" json:"old_account_id"`
	Amount         int64       `db:"amount" json:"amount"`
	Status         EntryStatus `db:"status" json:"status"`
	CreatedAt      time.Time   `db:"created_at" json:"created_at"`
}

type WithdrawalConfig struct {
	AccountID      string    `db:"account_id" json:"account_id"`
	DepositAddress string    `db:"deposit_address" json:"deposit_address"`
	Coin           string    `db:"coin" json:"coin"`
	Network        string    `db:"network" json:"network"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// BoostDetail is the read projection behind getDetail.
type BoostDetail struct {
	Boost   Boost        `json:"boost"`
	Order   Order        `json:"order"`
	Account Account      `json:"account"`
	Stats   []StatEntry  `json:"stats"`
	Entry   *LedgerEntry `json:"entry,omitempty"`
}

// FoldBalance computes completed recharges plus completed gains minus every
// withdrawal that has not failed.
func FoldBalance(entries []LedgerEntry) int64 {
	var balance int64
	for _, entry := range entries {
		switch entry.Kind {
		case KindRecharge, KindGain:
			if entry.Status == StatusCompleted {
				balance += entry.Amount
			}
		case KindWithdrawal:
			if entry.Status != StatusFailed {
				balance -= entry.Amount
			}
		}
	}
	return balance
}
