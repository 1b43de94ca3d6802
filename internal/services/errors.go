package services

import (
	"errors"
	"fmt"
	"strings"

	"boostledger/internal/models"
)

var (
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInvalidKind       = errors.New("invalid entry kind")
	ErrInvalidOutcome    = errors.New("settlement outcome must be completed or failed")
	ErrInvalidProofKind  = errors.New("invalid proof kind")
	ErrMissingProof      = errors.New("proof value is required")
	ErrEmptyAdjustment   = errors.New("no updates given")
	ErrEmptyProductList  = errors.New("order needs at least one product")
	ErrInvalidOrderCode  = errors.New("order code is required")
	ErrInvalidCursor     = errors.New("invalid history cursor")
	ErrInvalidReferral   = errors.New("unknown referral code")
	ErrInvalidCredential = errors.New("invalid email or password")
	ErrInvalidRole       = errors.New("unknown admin role")
	ErrInvalidAddress    = errors.New("invalid withdrawal destination")
	ErrInvalidInput      = errors.New("invalid input")

	ErrAccountNotFound          = errors.New("account not found")
	ErrEntryNotFound            = errors.New("ledger entry not found")
	ErrOrderNotFound            = errors.New("order not found")
	ErrBoostNotFound            = errors.New("boost not found")
	ErrStatEntryNotFound        = errors.New("stat entry not found")
	ErrReferralNotFound         = errors.New("referral record not found")
	ErrWithdrawalConfigNotFound = errors.New("withdrawal config not found")

	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrBelowMinimumWithdrawal is an insufficient-funds failure.
	ErrBelowMinimumWithdrawal = fmt.Errorf("%w: below minimum withdrawal", ErrInsufficientFunds)
	ErrAlreadySettled         = errors.New("entry already settled")
	ErrEntryHeldByBoost       = errors.New("entry is a boost debit and moves only with its boost")
	ErrDuplicateReferral      = errors.New("referral already recorded for this recharge")
	ErrInvalidTransition      = models.ErrInvalidTransition
	ErrBoostCompleted         = errors.New("boost already completed")
	ErrOrderLocked            = errors.New("order is referenced by a boost")
	ErrOrderClosed            = errors.New("order is not open")
	ErrDuplicateOrderCode     = errors.New("order code already exists")
	ErrEmailTaken             = errors.New("email already registered")
	ErrNotEligible            = errors.New("entry does not qualify for a referral commission")

	ErrForbidden = errors.New("forbidden")
)

// MissingStatEntriesError lists the ids of a batch that do not exist under
// the target boost. Nothing in the batch was written.
type MissingStatEntriesError struct {
	IDs []string
}

func (e *MissingStatEntriesError) Error() string {
	return "stat entries not found: " + strings.Join(e.IDs, ", ")
}

func (e *MissingStatEntriesError) Unwrap() error {
	return ErrStatEntryNotFound
}

type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindValidation
	KindNotFound
	KindConflict
	KindForbidden
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindForbidden:
		return "forbidden"
	default:
		return "internal"
	}
}

var errorKinds = []struct {
	kind ErrorKind
	errs []error
}{
	{KindValidation, []error{
		ErrInvalidAmount, ErrInvalidKind, ErrInvalidOutcome, ErrInvalidProofKind, ErrMissingProof,
		ErrEmptyAdjustment, ErrEmptyProductList, ErrInvalidOrderCode, ErrInvalidCursor,
		ErrInvalidReferral, ErrInvalidCredential, ErrInvalidRole, ErrInvalidAddress, ErrInvalidInput, models.ErrUnknownValue,
	}},
	{KindNotFound, []error{
		ErrAccountNotFound, ErrEntryNotFound, ErrOrderNotFound, ErrBoostNotFound,
		ErrStatEntryNotFound, ErrReferralNotFound, ErrWithdrawalConfigNotFound,
	}},
	{KindConflict, []error{
		ErrInsufficientFunds, ErrAlreadySettled, ErrEntryHeldByBoost, ErrDuplicateReferral, ErrInvalidTransition,
		ErrBoostCompleted, ErrOrderLocked, ErrOrderClosed, ErrDuplicateOrderCode, ErrEmailTaken, ErrNotEligible,
	}},
	{KindForbidden, []error{ErrForbidden}},
}

// KindOf classifies err. Anything unrecognised is internal.
func KindOf(err error) ErrorKind {
	for _, group := range errorKinds {
		for _, target := range group.errs {
			if errors.Is(err, target) {
				return group.kind
			}
		}
	}
	return KindInternal
}
