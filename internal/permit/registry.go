package permit

import (
	"sync"
	"time"

	"log/slog"

	"github.com/Gsr1989/Aguascalientes/core/logger"
)

// ExpireFunc is invoked when a scheduled deadline fires and the timer entry
// was still present, meaning neither a payment proof nor an admin override
// cancelled it first. It receives the folio and the owning user so the owner
// can still be notified after the record is gone.
type ExpireFunc func(folio string, userID int64)

type timerEntry struct {
	timer     *time.Timer
	userID    int64
	startedAt time.Time
	gen       uint64
}

// Registry tracks one cancellable deadline per folio plus a reverse index of
// open folios per user. Both maps are guarded by a single mutex; cancel and
// the expiry claim mutate them under one lock acquisition with no I/O in
// between, so for any folio at most one of the two ever wins.
type Registry struct {
	ttl      time.Duration
	onExpire ExpireFunc

	mu      sync.Mutex
	entries map[string]*timerEntry
	byUser  map[int64][]string
	nextGen uint64
}

// NewRegistry builds a Registry firing onExpire after ttl per scheduled folio.
func NewRegistry(ttl time.Duration, onExpire ExpireFunc) *Registry {
	return &Registry{
		ttl:      ttl,
		onExpire: onExpire,
		entries:  make(map[string]*timerEntry),
		byUser:   make(map[int64][]string),
	}
}

// Schedule registers a deadline for the folio. Callers schedule exactly once
// per folio at creation; if an entry somehow already exists its timer is
// stopped and replaced instead of leaving two live deadlines behind.
func (r *Registry) Schedule(folio string, userID int64) {
	r.mu.Lock()
	if prev, ok := r.entries[folio]; ok {
		prev.timer.Stop()
		logger.Timer.Warn("duplicate schedule replaced",
			slog.String("event", "timer.reschedule"),
			slog.String("folio", folio),
			slog.Int64("user_id", userID),
		)
	}
	r.nextGen++
	gen := r.nextGen
	e := &timerEntry{
		userID:    userID,
		startedAt: time.Now(),
		gen:       gen,
	}
	// The callback captures only the folio and generation; state is
	// re-resolved by key at fire time, never through a live reference.
	e.timer = time.AfterFunc(r.ttl, func() { r.fire(folio, gen) })
	r.entries[folio] = e
	if !containsFolio(r.byUser[userID], folio) {
		r.byUser[userID] = append(r.byUser[userID], folio)
	}
	r.mu.Unlock()

	logger.Timer.Info("deadline scheduled",
		slog.String("event", "timer.schedule"),
		slog.String("folio", folio),
		slog.Int64("user_id", userID),
		slog.Duration("ttl", r.ttl),
	)
}

// Cancel stops and removes the entry for the folio. It reports whether an
// entry was found; cancelling an absent folio is a no-op. Stopping the
// underlying timer is advisory only: a callback already past its claim cannot
// be recalled, and one that has not claimed yet will find the entry gone.
func (r *Registry) Cancel(folio string) bool {
	r.mu.Lock()
	e, ok := r.entries[folio]
	if ok {
		e.timer.Stop()
		r.removeLocked(folio, e.userID)
	}
	r.mu.Unlock()

	if ok {
		logger.Timer.Info("deadline cancelled",
			slog.String("event", "timer.cancel"),
			slog.String("folio", folio),
			slog.Int64("user_id", e.userID),
		)
	}
	return ok
}

// ActiveFolios returns the user's open folios in insertion (issuance) order.
func (r *Registry) ActiveFolios(userID int64) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	folios := r.byUser[userID]
	out := make([]string, len(folios))
	copy(out, folios)
	return out
}

// Count returns the number of pending deadlines.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Stop cancels every pending timer. Used on shutdown; records stay untouched.
func (r *Registry) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for folio, e := range r.entries {
		e.timer.Stop()
		delete(r.entries, folio)
	}
	r.byUser = make(map[int64][]string)
}

// fire is the deferred callback body. The claim below is the authoritative
// guard against a double delete: presence check and removal happen under the
// lock before any storage call, so a cancel racing this callback either wins
// entirely or loses entirely.
func (r *Registry) fire(folio string, gen uint64) {
	r.mu.Lock()
	e, ok := r.entries[folio]
	if !ok || e.gen != gen {
		r.mu.Unlock()
		return
	}
	userID := e.userID
	r.removeLocked(folio, userID)
	r.mu.Unlock()

	logger.Timer.Info("deadline expired",
		slog.String("event", "timer.expire"),
		slog.String("folio", folio),
		slog.Int64("user_id", userID),
	)
	if r.onExpire != nil {
		r.onExpire(folio, userID)
	}
}

// removeLocked deletes the folio from both maps and prunes empty user slots.
// Caller holds r.mu.
func (r *Registry) removeLocked(folio string, userID int64) {
	delete(r.entries, folio)
	folios := r.byUser[userID]
	for i, f := range folios {
		if f == folio {
			r.byUser[userID] = append(folios[:i], folios[i+1:]...)
			break
		}
	}
	if len(r.byUser[userID]) == 0 {
		delete(r.byUser, userID)
	}
}

func containsFolio(folios []string, folio string) bool {
	for _, f := range folios {
		if f == folio {
			return true
		}
	}
	return false
}
