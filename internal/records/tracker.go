// Package records decides when a portfolio valuation becomes an official
// all-time high or low. Commits are debounced: every valuation event
// re-arms a single settle timer, so a value only becomes a record after a
// quiet period with no further edits or refreshes.
package records

import (
	"context"
	"sync"
	"time"

	"github.com/Matej398/crypto-folio/internal/logging"
	"github.com/Matej398/crypto-folio/internal/models"
	"github.com/Matej398/crypto-folio/internal/valuation"
)

// StatsStore persists portfolio record stats
type StatsStore interface {
	GetStats(ctx context.Context, userID int64) (models.PortfolioStats, error)
	SaveStats(ctx context.Context, userID int64, stats models.PortfolioStats) error
}

// Tracker is a single-slot deferred commit register for one user. Arming
// replaces any pending commit; firing is a pure function of the
// last-armed value.
type Tracker struct {
	store  StatsStore
	settle time.Duration
	userID int64
	logger *logging.Logger
	now    func() time.Time

	mu      sync.Mutex
	timer   *time.Timer
	pending *float64
	// generation invalidates timer fires that raced with a cancel or
	// re-arm; only the latest armed generation may commit
	generation uint64
	closed     bool
}

// NewTracker creates a record tracker for one user
func NewTracker(store StatsStore, userID int64, settle time.Duration, logger *logging.Logger) *Tracker {
	return &Tracker{
		store:  store,
		settle: settle,
		userID: userID,
		logger: logger,
		now:    time.Now,
	}
}

// Observe feeds a fresh valuation into the tracker. A complete valuation
// with live holdings re-arms the settle timer carrying its total value.
// An empty portfolio or an incomplete valuation cancels any pending
// commit and never arms one, so partial feed data cannot corrupt records.
func (t *Tracker) Observe(v valuation.Valuation) {
	if v.Empty() || !v.Complete || v.TotalValue <= 0 {
		t.Cancel()
		return
	}

	value := v.TotalValue

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return
	}

	t.stopTimerLocked()
	t.generation++
	gen := t.generation
	t.pending = &value

	t.timer = time.AfterFunc(t.settle, func() {
		t.fire(gen, value)
	})

	t.logger.WithFields(map[string]interface{}{
		"userId": t.userID,
		"value":  value,
		"settle": t.settle.String(),
	}).Debug("Record commit armed")
}

// Cancel discards any pending commit without touching stats
func (t *Tracker) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopTimerLocked()
	t.generation++
	t.pending = nil
}

// Close tears the tracker down. A pending uncommitted record is simply
// lost; it will be re-armed on the next valuation event after restart.
func (t *Tracker) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopTimerLocked()
	t.generation++
	t.pending = nil
	t.closed = true
}

// Pending reports whether a commit is currently armed
func (t *Tracker) Pending() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pending != nil
}

func (t *Tracker) stopTimerLocked() {
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}

// fire runs when the settle timer expires uninterrupted
func (t *Tracker) fire(gen uint64, value float64) {
	t.mu.Lock()
	if t.closed || gen != t.generation {
		t.mu.Unlock()
		return
	}
	t.pending = nil
	t.timer = nil
	t.mu.Unlock()

	if err := t.commit(value); err != nil {
		t.logger.WithError(err).WithField("userId", t.userID).Error("Failed to commit portfolio record")
	}
}

// commit compares the settled value against current stats and persists
// only if an extreme changed. A new high replaces only if strictly
// greater, a new low only if strictly less; a null slot always loses to
// the first committed value.
func (t *Tracker) commit(value float64) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stats, err := t.store.GetStats(ctx, t.userID)
	if err != nil {
		return err
	}

	changed := false
	now := t.now().UTC()

	if stats.HighestValue == nil || value > *stats.HighestValue {
		stats.HighestValue = &value
		stats.HighestValueAt = &now
		changed = true
	}
	if stats.LowestValue == nil || value < *stats.LowestValue {
		stats.LowestValue = &value
		stats.LowestValueAt = &now
		changed = true
	}

	if !changed {
		return nil
	}

	if err := t.store.SaveStats(ctx, t.userID, stats); err != nil {
		return err
	}

	t.logger.WithFields(map[string]interface{}{
		"userId": t.userID,
		"value":  value,
	}).Info("Portfolio record committed")

	return nil
}
