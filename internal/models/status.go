package models

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrUnknownValue      = errors.New("unknown enum value")
)

type EntryKind string

const (
	KindRecharge   EntryKind = "recharge"
	KindWithdrawal EntryKind = "withdrawal"
	KindGain       EntryKind = "gain"
)

func ParseEntryKind(raw string) (EntryKind, error) {
	switch k := EntryKind(strings.ToLower(strings.TrimSpace(raw))); k {
	case KindRecharge, KindWithdrawal, KindGain:
		return k, nil
	}
	return "", fmt.Errorf("%w: entry kind %q", ErrUnknownValue, raw)
}

type EntryStatus string

const (
	StatusPending   EntryStatus = "pending"
	StatusCompleted EntryStatus = "completed"
	StatusFailed    EntryStatus = "failed"
)

func ParseEntryStatus(raw string) (EntryStatus, error) {
	switch s := EntryStatus(strings.ToLower(strings.TrimSpace(raw))); s {
	case StatusPending, StatusCompleted, StatusFailed:
		return s, nil
	}
	return "", fmt.Errorf("%w: entry status %q", ErrUnknownValue, raw)
}

// Settled reports whether the entry has left Pending. Settled entries never
// change again.
func (s EntryStatus) Settled() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Settle validates the Pending -> Completed|Failed step.
func (s EntryStatus) Settle(outcome EntryStatus) (EntryStatus, error) {
	if s != StatusPending || !outcome.Settled() {
		return s, fmt.Errorf("%w: entry %s -> %s", ErrInvalidTransition, s, outcome)
	}
	return outcome, nil
}

type OrderStatus string

const (
	OrderOpen      OrderStatus = "open"
	OrderCompleted OrderStatus = "completed"
)

func ParseOrderStatus(raw string) (OrderStatus, error) {
	s := OrderStatus(strings.ToLower(strings.TrimSpace(raw)))
	if s != OrderOpen && s != OrderCompleted {
		return "", fmt.Errorf("%w: order status %q", ErrUnknownValue, raw)
	}
	return s, nil
}

type BoostStatus string

const (
	BoostAwaitingValidation BoostStatus = "awaiting_validation"
	BoostInProgress         BoostStatus = "in_progress"
	BoostAwaitingReview     BoostStatus = "awaiting_review"
	BoostCompleted          BoostStatus = "completed"
	BoostNeedsRedo          BoostStatus = "needs_redo"
)

var boostTransitions = map[BoostStatus][]BoostStatus{
	BoostAwaitingValidation: {BoostInProgress},
	BoostInProgress:         {BoostAwaitingReview, BoostNeedsRedo},
	BoostAwaitingReview:     {BoostCompleted, BoostNeedsRedo},
	BoostNeedsRedo:          {BoostInProgress},
	BoostCompleted:          nil,
}

func ParseBoostStatus(raw string) (BoostStatus, error) {
	s := BoostStatus(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := boostTransitions[s]; !ok {
		return "", fmt.Errorf("%w: boost status %q", ErrUnknownValue, raw)
	}
	return s, nil
}

func (s BoostStatus) Transition(next BoostStatus) (BoostStatus, error) {
	for _, allowed := range boostTransitions[s] {
		if allowed == next {
			return next, nil
		}
	}
	return s, fmt.Errorf("%w: boost %s -> %s", ErrInvalidTransition, s, next)
}

// AcceptsProof reports whether proofs may be submitted for the boost's
// product tasks in this state.
func (s BoostStatus) AcceptsProof() bool {
	return s == BoostInProgress || s == BoostNeedsRedo
}

type StatStatus string

const (
	StatTodo       StatStatus = "todo"
	StatInProgress StatStatus = "in_progress"
	StatDone       StatStatus = "done"
	StatNeedsRedo  StatStatus = "needs_redo"
)

var statTransitions = map[StatStatus][]StatStatus{
	StatTodo:       {StatInProgress, StatDone},
	StatInProgress: {StatDone},
	StatDone:       {StatNeedsRedo},
	StatNeedsRedo:  {StatDone},
}

func (s StatStatus) Transition(next StatStatus) (StatStatus, error) {
	for _, allowed := range statTransitions[s] {
		if allowed == next {
			return next, nil
		}
	}
	return s, fmt.Errorf("%w: stat %s -> %s", ErrInvalidTransition, s, next)
}

// AllDone reports whether a boost with these tasks is ready for review. A
// boost without tasks never is.
func AllDone(stats []StatEntry) bool {
	if len(stats) == 0 {
		return false
	}
	for _, stat := range stats {
		if stat.Status != StatDone {
			return false
		}
	}
	return true
}

type ProofKind string

const (
	ProofLink       ProofKind = "link"
	ProofScreenshot ProofKind = "screenshot"
)

func ParseProofKind(raw string) (ProofKind, error) {
	switch k := ProofKind(strings.ToLower(strings.TrimSpace(raw))); k {
	case ProofLink, ProofScreenshot:
		return k, nil
	}
	return "", fmt.Errorf("%w: proof kind %q", ErrUnknownValue, raw)
}
