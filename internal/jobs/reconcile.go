// Package jobs holds the periodic, read-only consistency report.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

const stalePendingAge = 24 * time.Hour

type ReferralCounter interface {
	CountMismatched(ctx context.Context) (int, error)
}

type PendingCounter interface {
	CountPendingBefore(ctx context.Context, cutoff time.Time) (int, error)
}

type Gauges interface {
	SetReconciliation(referralMismatches, stalePending int)
}

type Report struct {
	ReferralMismatches int       `json:"referral_mismatches"`
	StalePending       int       `json:"stale_pending"`
	CheckedAt          time.Time `json:"checked_at"`
}

// Reconciler counts referral records that disagree with their commission
// entry and entries left pending for more than a day. It never writes.
type Reconciler struct {
	referrals ReferralCounter
	entries   PendingCounter
	gauges    Gauges
	logger    *zap.Logger
	now       func() time.Time
}

func NewReconciler(referrals ReferralCounter, entries PendingCounter, gauges Gauges, logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{
		referrals: referrals,
		entries:   entries,
		gauges:    gauges,
		logger:    logger,
		now:       time.Now,
	}
}

func (r *Reconciler) Run(ctx context.Context) (Report, error) {
	mismatched, err := r.referrals.CountMismatched(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("count referral mismatches: %w", err)
	}
	now := r.now().UTC()
	stale, err := r.entries.CountPendingBefore(ctx, now.Add(-stalePendingAge))
	if err != nil {
		return Report{}, fmt.Errorf("count stale pending: %w", err)
	}
	if r.gauges != nil {
		r.gauges.SetReconciliation(mismatched, stale)
	}
	report := Report{ReferralMismatches: mismatched, StalePending: stale, CheckedAt: now}
	if mismatched > 0 {
		r.logger.Warn("referral records out of sync with their entries", zap.Int("count", mismatched))
	}
	r.logger.Info("reconciliation finished",
		zap.Int("referral_mismatches", mismatched),
		zap.Int("stale_pending", stale),
	)
	return report, nil
}

// Schedule registers the report on s every interval. Each run gets its own
// timeout so a stuck query cannot pile up runs.
func (r *Reconciler) Schedule(s gocron.Scheduler, interval time.Duration) (gocron.Job, error) {
	return s.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), interval/2)
			defer cancel()
			if _, err := r.Run(ctx); err != nil {
				r.logger.Error("reconciliation failed", zap.Error(err))
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithName("reconcile"),
	)
}
