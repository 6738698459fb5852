// Package gatekeeper serializes access to the sqlite connection pool
// backing the catalog engine (spec.md §4.4, C4): any number of readers run
// concurrently, but only one writer runs at a time, and every acquire is
// bounded by a timeout so a stuck task cannot wedge the whole engine.
// Grounded directly on
// original_source/crates/storage-sqlite/src/connection/pool/gatekeeper.rs,
// translating its tokio::sync::RwLock + AtomicBool + AtomicUsize pattern
// onto sync.RWMutex, atomic.Bool, and atomic.Int64.
package gatekeeper

import (
	"context"
	"database/sql"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/llehouerou/waves/internal/catalog/catalogerr"
	"github.com/llehouerou/waves/internal/catalog/progress"
)

var log = logrus.WithField("component", "gatekeeper")

// Config holds the acquire timeouts; zero values disable the
// corresponding timeout (never recommended outside of tests).
type Config struct {
	AcquireReadTimeout  time.Duration
	AcquireWriteTimeout time.Duration
}

// PendingTasks reports the number of in-flight read and write tasks.
type PendingTasks struct {
	Read  int
	Write int
}

// Gatekeeper owns the *sql.DB handle and arbitrates access to it. Readers
// hold the pool's RLock for the duration of their handler; the single
// writer holds the full Lock, so writes never interleave with reads or
// each other.
type Gatekeeper struct {
	mu     sync.RWMutex
	db     *sql.DB
	cfg    Config
	readN  atomic.Int64
	writeN atomic.Int64
	abort  *progress.AbortFlag
	down   atomic.Bool
}

// New wraps db, serializing access to it behind read/write acquire
// timeouts.
func New(db *sql.DB, cfg Config) *Gatekeeper {
	return &Gatekeeper{db: db, cfg: cfg, abort: progress.NewAbortFlag()}
}

// Decommission marks the gatekeeper permanently unavailable; every
// subsequent acquire fails immediately with catalogerr.Timeout (reason
// "decommissioned"). Used
// during shutdown to stop accepting new work while in-flight tasks drain.
func (g *Gatekeeper) Decommission() {
	g.down.Store(true)
}

func (g *Gatekeeper) checkNotDecommissioned() error {
	if g.down.Load() {
		return catalogerr.New(catalogerr.Timeout, catalogerr.OpGatekeeperRun, "decommissioned", nil)
	}
	return nil
}

// AbortCurrentTask requests cooperative cancellation of whichever task is
// currently running; the next task to start clears the flag for itself.
func (g *Gatekeeper) AbortCurrentTask() {
	g.abort.Abort()
}

// PendingTasks reports the current in-flight read/write counts.
func (g *Gatekeeper) PendingTasks() PendingTasks {
	return PendingTasks{Read: int(g.readN.Load()), Write: int(g.writeN.Load())}
}

// ReadHandler runs with shared (read) access to db and the abort flag
// scoped to this task.
type ReadHandler[R any] func(db *sql.DB, abort *progress.AbortFlag) (R, error)

// WriteHandler runs with exclusive (write) access to db.
type WriteHandler[R any] func(db *sql.DB, abort *progress.AbortFlag) (R, error)

// RunRead acquires a shared slot within ctx's deadline (or the
// configured AcquireReadTimeout, whichever is sooner) and runs handler.
// Any number of reads run concurrently with each other but never
// alongside a write.
func RunRead[R any](ctx context.Context, g *Gatekeeper, handler ReadHandler[R]) (R, error) {
	var zero R
	if err := g.checkNotDecommissioned(); err != nil {
		return zero, err
	}
	g.readN.Add(1)
	defer g.readN.Add(-1)

	if err := acquire(ctx, g.cfg.AcquireReadTimeout, g.mu.RLock, g.mu.RUnlock); err != nil {
		return zero, err
	}
	defer g.mu.RUnlock()

	if err := g.checkNotDecommissioned(); err != nil {
		return zero, err
	}
	g.abort.Reset()
	log.Debug("running read task")
	return handler(g.db, g.abort)
}

// RunWrite acquires the exclusive slot and runs handler. Only one write
// (and no concurrent read) runs at a time.
func RunWrite[R any](ctx context.Context, g *Gatekeeper, handler WriteHandler[R]) (R, error) {
	var zero R
	if err := g.checkNotDecommissioned(); err != nil {
		return zero, err
	}
	g.writeN.Add(1)
	defer g.writeN.Add(-1)

	if err := acquire(ctx, g.cfg.AcquireWriteTimeout, g.mu.Lock, g.mu.Unlock); err != nil {
		return zero, err
	}
	defer g.mu.Unlock()

	if err := g.checkNotDecommissioned(); err != nil {
		return zero, err
	}
	g.abort.Reset()
	log.Debug("running write task")
	return handler(g.db, g.abort)
}

// acquire runs lock() in the background and waits for it, the timeout, or
// ctx cancellation, whichever comes first. If the wait is abandoned after
// lock() has already succeeded in the background, acquire calls unlock()
// on the caller's behalf so the mutex is never left held by an acquire
// that no caller is waiting on.
func acquire(ctx context.Context, timeout time.Duration, lock, unlock func()) error {
	var claimed atomic.Bool
	acquired := make(chan struct{})
	go func() {
		lock()
		if !claimed.CompareAndSwap(false, true) {
			unlock()
			return
		}
		close(acquired)
	}()

	select {
	case <-acquired:
		return nil
	case <-after(timeout):
		if !claimed.CompareAndSwap(false, true) {
			<-acquired
			unlock()
		}
		return catalogerr.New(catalogerr.Timeout, catalogerr.OpGatekeeperRun, "database is locked", nil)
	case <-ctx.Done():
		if !claimed.CompareAndSwap(false, true) {
			<-acquired
			unlock()
		}
		return catalogerr.Wrap(catalogerr.Timeout, catalogerr.OpGatekeeperRun, ctx.Err())
	}
}

// after returns a channel that fires once after d, or never if d <= 0
// (no timeout configured).
func after(d time.Duration) <-chan time.Time {
	if d <= 0 {
		return nil
	}
	return time.After(d)
}
