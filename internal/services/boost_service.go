package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"boostledger/internal/models"
	"boostledger/internal/validator"
	"boostledger/internal/websocket"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

const boostDebitNote = "system"

// BoostService drives boosts and their per-product stat entries. Every money
// side effect of a transition is written in the same unit of work as the
// transition itself.
type BoostService struct {
	deps    Deps
	ledger  *LedgerService
	catalog *CatalogService
}

func NewBoostService(deps Deps, ledger *LedgerService, catalog *CatalogService) *BoostService {
	return &BoostService{deps: deps.withDefaults(), ledger: ledger, catalog: catalog}
}

type CreateBoostResult struct {
	Boost models.Boost       `json:"boost"`
	Entry models.LedgerEntry `json:"entry"`
	Stats []models.StatEntry `json:"stats"`
}

// CreateBoost debits the order cost and creates the boost with one stat
// entry per product. The debit, the boost and the stat entries commit
// together or not at all.
func (s *BoostService) CreateBoost(ctx context.Context, accountID, orderID string) (CreateBoostResult, error) {
	var result CreateBoostResult
	var balanceAfter int64
	err := s.deps.TxRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		order, err := s.catalog.lookupInTx(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if order.Status != models.OrderOpen {
			return ErrOrderClosed
		}
		entry, after, err := s.ledger.debitInTx(ctx, tx, debitRequest{
			AccountID: accountID,
			Amount:    order.Cost,
			Note:      boostDebitNote,
		})
		if err != nil {
			return err
		}
		balanceAfter = after
		boostID, err := s.deps.nextID(ctx, tx, s.deps.Stores.Boosts.Exists)
		if err != nil {
			return fmt.Errorf("boost id: %w", err)
		}
		now := s.deps.Now()
		boost := models.Boost{
			ID:        boostID,
			AccountID: accountID,
			OrderID:   order.ID,
			EntryID:   &entry.ID,
			Status:    models.BoostAwaitingValidation,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.deps.Stores.Boosts.Create(ctx, tx, boost); err != nil {
			return fmt.Errorf("insert boost: %w", err)
		}
		stats := make([]models.StatEntry, 0, len(order.ProductIDs))
		for position, productID := range order.ProductIDs {
			statID, err := s.deps.nextID(ctx, tx, s.deps.Stores.Stats.Exists)
			if err != nil {
				return fmt.Errorf("stat entry id: %w", err)
			}
			stats = append(stats, models.StatEntry{
				ID:        statID,
				BoostID:   boostID,
				ProductID: productID,
				Position:  position,
				Status:    models.StatTodo,
				UpdatedAt: now,
			})
		}
		if err := s.deps.Stores.Stats.InsertBatch(ctx, tx, stats); err != nil {
			return fmt.Errorf("insert stat entries: %w", err)
		}
		result = CreateBoostResult{Boost: boost, Entry: entry, Stats: stats}
		return nil
	})
	if err != nil {
		return CreateBoostResult{}, err
	}
	s.deps.Metrics.EntryRecorded(string(models.KindWithdrawal), string(models.StatusPending))
	s.deps.Logger.Info("boost created",
		zap.String("boost_id", result.Boost.ID),
		zap.String("account_id", accountID),
		zap.String("order_id", orderID),
		zap.String("entry_id", result.Entry.ID),
		zap.Int64("amount", result.Entry.Amount),
		zap.Int("stat_entries", len(result.Stats)),
	)
	s.ledger.pushBalance(accountID, balanceAfter)
	s.pushBoost(result.Boost)
	return result, nil
}

type SubmitProofRequest struct {
	StatEntryID string
	AccountID   string
	ProofKind   string
	ProofValue  string
}

// SubmitProof marks the caller's stat entry Done. When it was the last one
// outstanding the boost moves to AwaitingReview in the same unit of work.
func (s *BoostService) SubmitProof(ctx context.Context, req SubmitProofRequest) (models.StatEntry, error) {
	kind, err := models.ParseProofKind(req.ProofKind)
	if err != nil {
		return models.StatEntry{}, ErrInvalidProofKind
	}
	value := strings.TrimSpace(req.ProofValue)
	if value == "" {
		return models.StatEntry{}, ErrMissingProof
	}
	if kind == models.ProofLink && validator.ValidateLink(value) != nil {
		return models.StatEntry{}, ErrMissingProof
	}
	var stat models.StatEntry
	var boost models.Boost
	var from models.BoostStatus
	var moves boostMoves
	err = s.deps.TxRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		moves = moves[:0]
		var err error
		stat, err = s.deps.Stores.Stats.GetForUpdate(ctx, tx, req.StatEntryID)
		if err != nil {
			return notFound(err, ErrStatEntryNotFound)
		}
		boost, err = s.deps.Stores.Boosts.GetForUpdate(ctx, tx, stat.BoostID)
		if err != nil {
			return notFound(err, ErrBoostNotFound)
		}
		next, err := proofTransition(boost, stat, req.AccountID)
		if err != nil {
			return err
		}
		from = boost.Status
		now := s.deps.Now()
		if err := s.deps.Stores.Stats.UpdateProof(ctx, tx, stat.ID, next, kind, value, now); err != nil {
			return err
		}
		stat.Status = next
		stat.ProofKind = &kind
		stat.ProofValue = &value
		stat.UpdatedAt = now
		if boost.Status == models.BoostNeedsRedo {
			if err := s.moveBoost(ctx, tx, &moves, &boost, models.BoostInProgress, boost.Note); err != nil {
				return err
			}
		}
		return s.advanceIfAllDone(ctx, tx, &moves, &boost)
	})
	if err != nil {
		return models.StatEntry{}, err
	}
	s.recordMoves(moves)
	s.deps.Logger.Info("proof submitted",
		zap.String("stat_entry_id", stat.ID),
		zap.String("boost_id", boost.ID),
		zap.String("proof_kind", string(*stat.ProofKind)),
	)
	if boost.Status != from {
		s.pushBoost(boost)
	}
	return stat, nil
}

// CheckProofTarget reports whether accountID may submit a proof for the stat
// entry right now. It writes nothing, so callers can run it before storing an
// upload.
func (s *BoostService) CheckProofTarget(ctx context.Context, statEntryID, accountID string) error {
	return s.deps.TxRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		stat, err := s.deps.Stores.Stats.GetForUpdate(ctx, tx, statEntryID)
		if err != nil {
			return notFound(err, ErrStatEntryNotFound)
		}
		boost, err := s.deps.Stores.Boosts.GetByID(ctx, tx, stat.BoostID)
		if err != nil {
			return notFound(err, ErrBoostNotFound)
		}
		_, err = proofTransition(boost, stat, accountID)
		return err
	})
}

func proofTransition(boost models.Boost, stat models.StatEntry, accountID string) (models.StatStatus, error) {
	if boost.AccountID != accountID {
		return "", ErrForbidden
	}
	if !boost.Status.AcceptsProof() {
		return "", fmt.Errorf("%w: boost is %s", ErrInvalidTransition, boost.Status)
	}
	return stat.Status.Transition(models.StatDone)
}

// AdminApproveFirstStep starts an AwaitingValidation boost and settles the
// debit that paid for it. From here on the debit is final.
func (s *BoostService) AdminApproveFirstStep(ctx context.Context, actorID, boostID string) (models.Boost, error) {
	var boost models.Boost
	var balanceAfter int64
	var moves boostMoves
	err := s.deps.TxRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		moves = moves[:0]
		var err error
		boost, balanceAfter, err = s.approveInTx(ctx, tx, &moves, actorID, boostID)
		return err
	})
	if err != nil {
		return models.Boost{}, err
	}
	s.recordMoves(moves)
	s.afterApprove(actorID, boost, balanceAfter)
	return boost, nil
}

func (s *BoostService) approveInTx(ctx context.Context, tx *sqlx.Tx, moves *boostMoves, actorID, boostID string) (models.Boost, int64, error) {
	boost, err := s.deps.Stores.Boosts.GetForUpdate(ctx, tx, boostID)
	if err != nil {
		return models.Boost{}, 0, notFound(err, ErrBoostNotFound)
	}
	if boost.Status != models.BoostAwaitingValidation {
		return models.Boost{}, 0, fmt.Errorf("%w: boost is %s", ErrInvalidTransition, boost.Status)
	}
	if boost.EntryID == nil {
		return models.Boost{}, 0, ErrEntryNotFound
	}
	entry, _, err := s.ledger.settleInTx(ctx, tx, *boost.EntryID, models.StatusCompleted)
	if err != nil {
		return models.Boost{}, 0, err
	}
	if err := s.moveBoost(ctx, tx, moves, &boost, models.BoostInProgress, boost.Note); err != nil {
		return models.Boost{}, 0, err
	}
	balanceAfter, err := s.deps.Stores.Entries.Balance(ctx, tx, entry.AccountID)
	if err != nil {
		return models.Boost{}, 0, err
	}
	if err := s.deps.audit(ctx, tx, actorID, "approve", "boost", boost.ID, map[string]any{"entry_id": entry.ID}); err != nil {
		return models.Boost{}, 0, err
	}
	return boost, balanceAfter, nil
}

func (s *BoostService) afterApprove(actorID string, boost models.Boost, balanceAfter int64) {
	s.deps.Metrics.EntrySettled(string(models.KindWithdrawal), string(models.StatusCompleted))
	s.deps.Logger.Info("boost approved",
		zap.String("boost_id", boost.ID),
		zap.String("actor_id", actorID),
	)
	s.ledger.pushBalance(boost.AccountID, balanceAfter)
	s.pushBoost(boost)
}

type StatAdjustment struct {
	StatEntryID string `json:"id"`
	Cost        *int64 `json:"cost,omitempty"`
	Commission  *int64 `json:"commission,omitempty"`
}

// AdminAdjustStatEntries applies the whole batch or nothing. Ids that do not
// exist under the boost are reported in a *MissingStatEntriesError.
func (s *BoostService) AdminAdjustStatEntries(ctx context.Context, actorID, boostID string, updates []StatAdjustment) ([]models.StatEntry, error) {
	return s.UpdateStats(ctx, actorID, boostID, updates, false)
}

// UpdateStats adjusts stat entries and, when approve is set, approves the
// boost's first step, all in one unit of work.
func (s *BoostService) UpdateStats(ctx context.Context, actorID, boostID string, updates []StatAdjustment, approve bool) ([]models.StatEntry, error) {
	if len(updates) == 0 && !approve {
		return nil, ErrEmptyAdjustment
	}
	for _, update := range updates {
		if (update.Cost != nil && *update.Cost < 0) || (update.Commission != nil && *update.Commission < 0) {
			return nil, ErrInvalidAmount
		}
	}
	var stats []models.StatEntry
	var boost models.Boost
	var balanceAfter int64
	var moves boostMoves
	err := s.deps.TxRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		moves = moves[:0]
		if len(updates) > 0 {
			if err := s.adjustInTx(ctx, tx, actorID, boostID, updates); err != nil {
				return err
			}
		}
		if approve {
			var err error
			boost, balanceAfter, err = s.approveInTx(ctx, tx, &moves, actorID, boostID)
			if err != nil {
				return err
			}
		}
		var err error
		stats, err = s.deps.Stores.Stats.ListByBoost(ctx, tx, boostID)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.recordMoves(moves)
	if len(updates) > 0 {
		s.deps.Logger.Info("stat entries adjusted",
			zap.String("boost_id", boostID),
			zap.Int("updates", len(updates)),
			zap.String("actor_id", actorID),
		)
	}
	if approve {
		s.afterApprove(actorID, boost, balanceAfter)
	}
	return stats, nil
}

func (s *BoostService) adjustInTx(ctx context.Context, tx *sqlx.Tx, actorID, boostID string, updates []StatAdjustment) error {
	boost, err := s.deps.Stores.Boosts.GetForUpdate(ctx, tx, boostID)
	if err != nil {
		return notFound(err, ErrBoostNotFound)
	}
	if boost.Status == models.BoostCompleted {
		return ErrBoostCompleted
	}
	wanted := make([]string, 0, len(updates))
	seen := make(map[string]bool, len(updates))
	for _, update := range updates {
		if !seen[update.StatEntryID] {
			seen[update.StatEntryID] = true
			wanted = append(wanted, update.StatEntryID)
		}
	}
	rows, err := s.deps.Stores.Stats.ListByIDs(ctx, tx, boostID, wanted)
	if err != nil {
		return err
	}
	current := make(map[string]models.StatEntry, len(rows))
	for _, row := range rows {
		current[row.ID] = row
	}
	var missing []string
	for _, id := range wanted {
		if _, ok := current[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return &MissingStatEntriesError{IDs: missing}
	}
	now := s.deps.Now()
	for _, update := range updates {
		stat := current[update.StatEntryID]
		if update.Cost != nil {
			stat.Cost = *update.Cost
		}
		if update.Commission != nil {
			stat.Commission = *update.Commission
		}
		if err := s.deps.Stores.Stats.UpdateAmounts(ctx, tx, stat.ID, stat.Cost, stat.Commission, now); err != nil {
			return err
		}
		current[stat.ID] = stat
	}
	return s.deps.audit(ctx, tx, actorID, "adjust_stats", "boost", boostID, map[string]any{"updates": updates})
}

// AdminReview completes an AwaitingReview boost and credits the owner the
// sum of its stat entry commissions.
func (s *BoostService) AdminReview(ctx context.Context, actorID, boostID string) (models.Boost, error) {
	var boost models.Boost
	var gain *models.LedgerEntry
	var balanceAfter int64
	var moves boostMoves
	err := s.deps.TxRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		moves = moves[:0]
		gain = nil
		var err error
		boost, err = s.deps.Stores.Boosts.GetForUpdate(ctx, tx, boostID)
		if err != nil {
			return notFound(err, ErrBoostNotFound)
		}
		if boost.Status != models.BoostAwaitingReview {
			return fmt.Errorf("%w: boost is %s", ErrInvalidTransition, boost.Status)
		}
		stats, err := s.deps.Stores.Stats.ListByBoost(ctx, tx, boostID)
		if err != nil {
			return err
		}
		if !models.AllDone(stats) {
			return fmt.Errorf("%w: stat entries are not all done", ErrInvalidTransition)
		}
		var commission int64
		for _, stat := range stats {
			commission += stat.Commission
		}
		if _, err := s.deps.Stores.Accounts.GetForUpdate(ctx, tx, boost.AccountID); err != nil {
			return notFound(err, ErrAccountNotFound)
		}
		if commission > 0 {
			entry, err := s.deps.insertEntry(ctx, tx, models.LedgerEntry{
				AccountID: boost.AccountID,
				Kind:      models.KindGain,
				Amount:    commission,
				Status:    models.StatusCompleted,
				Note:      "boost " + boost.ID,
			})
			if err != nil {
				return err
			}
			gain = &entry
		}
		if err := s.moveBoost(ctx, tx, &moves, &boost, models.BoostCompleted, boost.Note); err != nil {
			return err
		}
		if balanceAfter, err = s.deps.Stores.Entries.Balance(ctx, tx, boost.AccountID); err != nil {
			return err
		}
		return s.deps.audit(ctx, tx, actorID, "review", "boost", boost.ID, map[string]any{"commission": commission})
	})
	if err != nil {
		return models.Boost{}, err
	}
	s.recordMoves(moves)
	fields := []zap.Field{zap.String("boost_id", boost.ID), zap.String("actor_id", actorID)}
	if gain != nil {
		s.deps.Metrics.EntryRecorded(string(gain.Kind), string(gain.Status))
		fields = append(fields, zap.String("gain_entry_id", gain.ID), zap.Int64("commission", gain.Amount))
	}
	s.deps.Logger.Info("boost completed", fields...)
	s.ledger.pushBalance(boost.AccountID, balanceAfter)
	s.pushBoost(boost)
	return boost, nil
}

func (s *BoostService) AdminRejectBoost(ctx context.Context, actorID, boostID, note string) (models.Boost, error) {
	var boost models.Boost
	var moves boostMoves
	err := s.deps.TxRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		moves = moves[:0]
		var err error
		boost, err = s.deps.Stores.Boosts.GetForUpdate(ctx, tx, boostID)
		if err != nil {
			return notFound(err, ErrBoostNotFound)
		}
		if err := s.moveBoost(ctx, tx, &moves, &boost, models.BoostNeedsRedo, note); err != nil {
			return err
		}
		return s.deps.audit(ctx, tx, actorID, "reject", "boost", boost.ID, map[string]any{"note": note})
	})
	if err != nil {
		return models.Boost{}, err
	}
	s.recordMoves(moves)
	s.deps.Logger.Info("boost rejected", zap.String("boost_id", boost.ID), zap.String("actor_id", actorID))
	s.pushBoost(boost)
	return boost, nil
}

// AdminRejectStatEntry sends one Done stat entry back to the user and puts
// its boost in NeedsRedo.
func (s *BoostService) AdminRejectStatEntry(ctx context.Context, actorID, statEntryID, note string) (models.StatEntry, error) {
	var stat models.StatEntry
	var boost models.Boost
	var moves boostMoves
	err := s.deps.TxRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		moves = moves[:0]
		var err error
		stat, err = s.deps.Stores.Stats.GetForUpdate(ctx, tx, statEntryID)
		if err != nil {
			return notFound(err, ErrStatEntryNotFound)
		}
		boost, err = s.deps.Stores.Boosts.GetForUpdate(ctx, tx, stat.BoostID)
		if err != nil {
			return notFound(err, ErrBoostNotFound)
		}
		next, err := stat.Status.Transition(models.StatNeedsRedo)
		if err != nil {
			return err
		}
		if boost.Status != models.BoostNeedsRedo {
			if err := s.moveBoost(ctx, tx, &moves, &boost, models.BoostNeedsRedo, note); err != nil {
				return err
			}
		}
		now := s.deps.Now()
		if err := s.deps.Stores.Stats.UpdateStatus(ctx, tx, stat.ID, next, now); err != nil {
			return err
		}
		stat.Status = next
		stat.UpdatedAt = now
		return s.deps.audit(ctx, tx, actorID, "reject", "stat_entry", stat.ID, map[string]any{"boost_id": boost.ID, "note": note})
	})
	if err != nil {
		return models.StatEntry{}, err
	}
	s.recordMoves(moves)
	s.deps.Logger.Info("stat entry rejected", zap.String("stat_entry_id", stat.ID), zap.String("boost_id", boost.ID))
	s.pushBoost(boost)
	return stat, nil
}

// AdminResumeBoost returns a NeedsRedo boost to work. If nothing is left to
// redo it goes straight to AwaitingReview.
func (s *BoostService) AdminResumeBoost(ctx context.Context, actorID, boostID string) (models.Boost, error) {
	var boost models.Boost
	var moves boostMoves
	err := s.deps.TxRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		moves = moves[:0]
		var err error
		boost, err = s.deps.Stores.Boosts.GetForUpdate(ctx, tx, boostID)
		if err != nil {
			return notFound(err, ErrBoostNotFound)
		}
		if err := s.moveBoost(ctx, tx, &moves, &boost, models.BoostInProgress, boost.Note); err != nil {
			return err
		}
		if err := s.advanceIfAllDone(ctx, tx, &moves, &boost); err != nil {
			return err
		}
		return s.deps.audit(ctx, tx, actorID, "resume", "boost", boost.ID, map[string]any{"status": boost.Status})
	})
	if err != nil {
		return models.Boost{}, err
	}
	s.recordMoves(moves)
	s.pushBoost(boost)
	return boost, nil
}

// AdminDeleteBoost removes a boost and its stat entries. A debit that is
// still pending is failed, which returns the funds to the owner.
func (s *BoostService) AdminDeleteBoost(ctx context.Context, actorID, boostID string) error {
	var boost models.Boost
	var refunded bool
	var balanceAfter int64
	err := s.deps.TxRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		boost, err = s.deps.Stores.Boosts.GetForUpdate(ctx, tx, boostID)
		if err != nil {
			return notFound(err, ErrBoostNotFound)
		}
		if boost.EntryID != nil {
			entry, err := s.deps.Stores.Entries.GetForUpdate(ctx, tx, *boost.EntryID)
			if err != nil && !isNoRows(err) {
				return err
			}
			if err == nil && entry.Status == models.StatusPending {
				if _, _, err := s.ledger.settleInTx(ctx, tx, entry.ID, models.StatusFailed); err != nil {
					return err
				}
				refunded = true
			}
		}
		if err := s.deps.Stores.Stats.DeleteByBoost(ctx, tx, boostID); err != nil {
			return err
		}
		if _, err := s.deps.Stores.Boosts.Delete(ctx, tx, boostID); err != nil {
			return err
		}
		if balanceAfter, err = s.deps.Stores.Entries.Balance(ctx, tx, boost.AccountID); err != nil {
			return err
		}
		return s.deps.audit(ctx, tx, actorID, "delete", "boost", boostID, map[string]any{"refunded": refunded, "status": boost.Status})
	})
	if err != nil {
		return err
	}
	s.deps.Logger.Info("boost deleted",
		zap.String("boost_id", boostID),
		zap.Bool("refunded", refunded),
		zap.String("actor_id", actorID),
	)
	if refunded {
		s.deps.Metrics.EntrySettled(string(models.KindWithdrawal), string(models.StatusFailed))
		s.ledger.pushBalance(boost.AccountID, balanceAfter)
	}
	return nil
}

func (s *BoostService) ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]models.Boost, error) {
	rows, err := s.deps.Stores.Boosts.ListByAccount(ctx, accountID, limit, offset)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []models.Boost{}
	}
	return rows, nil
}

func (s *BoostService) ListByStatus(ctx context.Context, status models.BoostStatus, limit, offset int) ([]models.Boost, error) {
	rows, err := s.deps.Stores.Boosts.ListByStatus(ctx, status, limit, offset)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []models.Boost{}
	}
	return rows, nil
}

// GetDetail reads a boost with its order, owner, stat entries and debit from
// one snapshot. A non-empty viewerID must own the boost.
func (s *BoostService) GetDetail(ctx context.Context, boostID, viewerID string) (models.BoostDetail, error) {
	var detail models.BoostDetail
	err := s.deps.TxRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		boost, err := s.deps.Stores.Boosts.GetByID(ctx, tx, boostID)
		if err != nil {
			return notFound(err, ErrBoostNotFound)
		}
		if viewerID != "" && boost.AccountID != viewerID {
			return ErrForbidden
		}
		order, err := s.catalog.lookupInTx(ctx, tx, boost.OrderID)
		if err != nil {
			return err
		}
		account, err := s.deps.Stores.Accounts.Get(ctx, tx, boost.AccountID)
		if err != nil {
			return notFound(err, ErrAccountNotFound)
		}
		stats, err := s.deps.Stores.Stats.ListByBoost(ctx, tx, boost.ID)
		if err != nil {
			return err
		}
		if stats == nil {
			stats = []models.StatEntry{}
		}
		detail = models.BoostDetail{Boost: boost, Order: order, Account: account, Stats: stats}
		if boost.EntryID != nil {
			entry, err := s.deps.Stores.Entries.GetByID(ctx, tx, *boost.EntryID)
			switch {
			case err == nil:
				detail.Entry = &entry
			case !isNoRows(err):
				return err
			}
		}
		return nil
	})
	if err != nil {
		return models.BoostDetail{}, err
	}
	return detail, nil
}

// boostMoves collects the transitions made inside one unit of work so they
// are counted only once it commits.
type boostMoves []boostMove

type boostMove struct {
	from, to models.BoostStatus
}

func (s *BoostService) recordMoves(moves boostMoves) {
	for _, move := range moves {
		s.deps.Metrics.BoostTransitioned(string(move.from), string(move.to))
	}
}

func (s *BoostService) moveBoost(ctx context.Context, tx *sqlx.Tx, moves *boostMoves, boost *models.Boost, to models.BoostStatus, note string) error {
	next, err := boost.Status.Transition(to)
	if err != nil {
		return err
	}
	now := s.deps.Now()
	if err := s.deps.Stores.Boosts.UpdateStatus(ctx, tx, boost.ID, next, note, now); err != nil {
		return fmt.Errorf("update boost: %w", err)
	}
	*moves = append(*moves, boostMove{from: boost.Status, to: next})
	boost.Status = next
	boost.Note = note
	boost.UpdatedAt = now
	return nil
}

// advanceIfAllDone derives AwaitingReview: an InProgress boost moves there
// exactly when every stat entry is Done.
func (s *BoostService) advanceIfAllDone(ctx context.Context, tx *sqlx.Tx, moves *boostMoves, boost *models.Boost) error {
	if boost.Status != models.BoostInProgress {
		return nil
	}
	stats, err := s.deps.Stores.Stats.ListByBoost(ctx, tx, boost.ID)
	if err != nil {
		return err
	}
	if !models.AllDone(stats) {
		return nil
	}
	return s.moveBoost(ctx, tx, moves, boost, models.BoostAwaitingReview, boost.Note)
}

func (s *BoostService) pushBoost(boost models.Boost) {
	s.deps.Hub.BroadcastBoost(boost.AccountID, websocket.BoostUpdate{
		BoostID: boost.ID,
		Status:  string(boost.Status),
	})
}
