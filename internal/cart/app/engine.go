package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/dwikikusuma/storefront/internal/cart/domain"
)

var (
	// ErrUnauthenticated is returned when a mutation or load runs with no
	// signed-in identity. The operation is a no-op.
	ErrUnauthenticated = errors.New("no authenticated user")

	// ErrLineNotFound is returned by line operations when the product is
	// not in the cart. The operation is a no-op.
	ErrLineNotFound = errors.New("cart line not found")

	ErrInvalidProduct = errors.New("invalid product")
)

// Engine is the single writer of cart truth. Every mutation updates the
// local state synchronously and is observable immediately; the remote
// write it schedules is fire-and-forget, full-snapshot, latest-wins.
//
// A failed remote write never rolls the local state back. It is recorded
// in the sync status and recovered by the next successful write or an
// explicit Resync.
type Engine struct {
	store CartStore
	log   *slog.Logger

	mu   sync.Mutex
	cond *sync.Cond

	userID string
	lines  domain.Snapshot

	status  domain.SyncStatus
	lastErr error

	// loadSeq orders loads: a load settling with a stale token is
	// discarded, so the last-requested identity always wins.
	loadSeq uint64

	// writeSeq / settledSeq order remote writes. At most one write is in
	// flight; a newer snapshot scheduled meanwhile replaces the pending
	// slot, superseding anything queued before it.
	writeSeq   uint64
	settledSeq uint64
	settledErr error
	inflight   bool
	pending    *remoteWrite
}

type remoteWrite struct {
	userID string
	seq    uint64
	snap   domain.Snapshot
}

func NewEngine(store CartStore, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	e := &Engine{
		store:  store,
		log:    log,
		status: domain.SyncIdle,
	}
	e.cond = sync.NewCond(&e.mu)
	return e
}

// Load replaces the local cart with the remote snapshot for userID.
// An absent document loads as an empty cart. A failed read also falls
// back to an empty cart (an empty cart is always a safe default) and is
// surfaced only through Status/LastError, never as a Load error.
//
// Loads are serialized by request token: if a later Load is requested
// before this one settles, this one's result is discarded.
func (e *Engine) Load(ctx context.Context, userID string) error {
	if userID == Anonymous {
		return ErrUnauthenticated
	}

	e.mu.Lock()
	e.loadSeq++
	token := e.loadSeq
	e.mu.Unlock()

	snap, err := e.store.Get(ctx, userID)
	if err != nil && !errors.Is(err, ErrCartNotFound) {
		e.log.Warn("cart load failed, starting empty",
			slog.String("user_id", userID), slog.Any("err", err))
		snap = nil
	} else if err == nil {
		snap = snap.Clone()
	} else {
		snap = nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if token != e.loadSeq {
		// A later load (or sign-out) superseded this one.
		e.log.Debug("discarding stale cart load", slog.String("user_id", userID))
		return nil
	}

	e.userID = userID
	e.lines = snap
	if err != nil && !errors.Is(err, ErrCartNotFound) {
		e.status = domain.SyncFailed
		e.lastErr = fmt.Errorf("load cart: %w", err)
	} else {
		e.status = domain.SyncIdle
		e.lastErr = nil
	}
	return nil
}

// AddItem appends a quantity-1 line for the product, or bumps the
// existing line's quantity if the product is already in the cart.
func (e *Engine) AddItem(p domain.Product) error {
	if p.ID == "" {
		return ErrInvalidProduct
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.userID == Anonymous {
		return ErrUnauthenticated
	}

	if i := e.lines.Find(p.ID); i >= 0 {
		e.lines[i].Quantity++
	} else {
		e.lines = append(e.lines, domain.Line{
			ProductID:   p.ID,
			Title:       p.Title,
			Image:       p.Image,
			Description: p.Description,
			UnitPrice:   p.UnitPrice,
			Quantity:    1,
		})
	}
	e.scheduleSyncLocked()
	return nil
}

func (e *Engine) IncrementLine(productID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.userID == Anonymous {
		return ErrUnauthenticated
	}

	i := e.lines.Find(productID)
	if i < 0 {
		return ErrLineNotFound
	}
	e.lines[i].Quantity++
	e.scheduleSyncLocked()
	return nil
}

// DecrementLine lowers the line's quantity, floored at 1. It never
// removes the line; removal is only ever the explicit RemoveLine.
func (e *Engine) DecrementLine(productID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.userID == Anonymous {
		return ErrUnauthenticated
	}

	i := e.lines.Find(productID)
	if i < 0 {
		return ErrLineNotFound
	}
	if e.lines[i].Quantity > 1 {
		e.lines[i].Quantity--
	}
	e.scheduleSyncLocked()
	return nil
}

func (e *Engine) RemoveLine(productID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.userID == Anonymous {
		return ErrUnauthenticated
	}

	i := e.lines.Find(productID)
	if i < 0 {
		return ErrLineNotFound
	}
	e.lines = append(e.lines[:i], e.lines[i+1:]...)
	e.scheduleSyncLocked()
	return nil
}

// Clear empties the cart, e.g. after a checkout handoff completed.
func (e *Engine) Clear() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.userID == Anonymous {
		return ErrUnauthenticated
	}
	e.lines = nil
	e.scheduleSyncLocked()
	return nil
}

// Reset drops the local cart without syncing, used on sign-out. A write
// already scheduled for the previous identity is left to finish; its
// outcome can no longer touch the new state.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.loadSeq++ // invalidate in-flight loads
	e.userID = Anonymous
	e.lines = nil
	e.status = domain.SyncIdle
	e.lastErr = nil
}

// Resync writes the current snapshot and waits for it (or a newer
// snapshot that superseded it) to settle. This is the explicit recovery
// path after a failed fire-and-forget write.
func (e *Engine) Resync(ctx context.Context) error {
	e.mu.Lock()
	if e.userID == Anonymous {
		e.mu.Unlock()
		return ErrUnauthenticated
	}
	seq := e.scheduleSyncLocked()
	e.mu.Unlock()

	done := make(chan struct{})
	go func() {
		e.mu.Lock()
		for e.settledSeq < seq {
			e.cond.Wait()
		}
		e.mu.Unlock()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.settledErr != nil {
		return fmt.Errorf("sync cart: %w", e.settledErr)
	}
	return nil
}

// Watch consumes identity emissions until ctx ends: a signed-in identity
// triggers a load, Anonymous resets the cart.
func (e *Engine) Watch(ctx context.Context, sessions SessionProvider) error {
	ch := sessions.Identities(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case id, ok := <-ch:
			if !ok {
				return nil
			}
			if id == Anonymous {
				e.Reset()
				continue
			}
			if err := e.Load(ctx, id); err != nil {
				e.log.Warn("cart reload on identity change failed",
					slog.String("user_id", id), slog.Any("err", err))
			}
		}
	}
}

// Lines is a read projection of the current cart content.
func (e *Engine) Lines() domain.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lines.Clone()
}

// ItemCount is recomputed from the lines on every read.
func (e *Engine) ItemCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lines.ItemCount()
}

func (e *Engine) Total() decimal.Decimal {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lines.Total()
}

func (e *Engine) Status() domain.SyncStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

func (e *Engine) LastError() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastErr
}

func (e *Engine) CurrentUser() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.userID
}

// scheduleSyncLocked captures the current snapshot for remote persistence.
// If a write is already in flight the capture parks in the pending slot,
// replacing whatever was parked before: superseded snapshots are dropped,
// only the latest value matters. Callers hold e.mu.
func (e *Engine) scheduleSyncLocked() uint64 {
	e.writeSeq++
	w := remoteWrite{userID: e.userID, seq: e.writeSeq, snap: e.lines.Clone()}
	e.status = domain.SyncSyncing

	if e.inflight {
		e.pending = &w
		return w.seq
	}
	e.inflight = true
	go e.flush(w)
	return w.seq
}

// flush is the single remote writer. It drains the pending slot so writes
// are serialized: the store never sees an older snapshot after a newer one.
func (e *Engine) flush(w remoteWrite) {
	for {
		err := e.store.Put(context.Background(), w.userID, w.snap)

		e.mu.Lock()
		e.settledSeq = w.seq
		e.settledErr = err

		// Only the outcome of the newest write for the current identity
		// may touch the visible status.
		if w.seq == e.writeSeq && w.userID == e.userID {
			if err != nil {
				e.status = domain.SyncFailed
				e.lastErr = fmt.Errorf("sync cart: %w", err)
			} else {
				e.status = domain.SyncIdle
				e.lastErr = nil
			}
		}
		if err != nil {
			e.log.Warn("cart sync failed, keeping local state",
				slog.String("user_id", w.userID), slog.Any("err", err))
		}

		if e.pending != nil {
			w = *e.pending
			e.pending = nil
			e.mu.Unlock()
			e.cond.Broadcast()
			continue
		}
		e.inflight = false
		e.mu.Unlock()
		e.cond.Broadcast()
		return
	}
}

// waitIdle blocks until no remote write is in flight or parked.
func (e *Engine) waitIdle() {
	e.mu.Lock()
	for e.inflight || e.pending != nil {
		e.cond.Wait()
	}
	e.mu.Unlock()
}
