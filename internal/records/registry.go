package records

import (
	"sync"
	"time"

	"github.com/Matej398/crypto-folio/internal/logging"
	"github.com/Matej398/crypto-folio/internal/valuation"
)

// Registry fans valuation events out to one Tracker per user, creating
// trackers lazily on first observation.
type Registry struct {
	store  StatsStore
	settle time.Duration
	logger *logging.Logger

	mu       sync.Mutex
	trackers map[int64]*Tracker
	closed   bool
}

// NewRegistry creates an empty tracker registry
func NewRegistry(store StatsStore, settle time.Duration, logger *logging.Logger) *Registry {
	return &Registry{
		store:    store,
		settle:   settle,
		logger:   logger,
		trackers: make(map[int64]*Tracker),
	}
}

// Observe routes a valuation to the user's tracker
func (r *Registry) Observe(userID int64, v valuation.Valuation) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	tracker, ok := r.trackers[userID]
	if !ok {
		tracker = NewTracker(r.store, userID, r.settle, r.logger)
		r.trackers[userID] = tracker
	}
	r.mu.Unlock()

	tracker.Observe(v)
}

// Close tears down every tracker. Pending commits are dropped.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	for _, tracker := range r.trackers {
		tracker.Close()
	}
}
