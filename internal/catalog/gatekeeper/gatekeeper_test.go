package gatekeeper

import (
	"context"
	"database/sql"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/llehouerou/waves/internal/catalog/catalogerr"
	"github.com/llehouerou/waves/internal/catalog/progress"
)

func newTestGatekeeper(t *testing.T) *Gatekeeper {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return New(db, Config{AcquireReadTimeout: time.Second, AcquireWriteTimeout: time.Second})
}

func TestRunRead_ConcurrentReadsOverlap(t *testing.T) {
	g := newTestGatekeeper(t)
	ctx := context.Background()

	var inFlight atomic.Int32
	var maxInFlight atomic.Int32
	release := make(chan struct{})

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := RunRead(ctx, g, func(db *sql.DB, abort *progress.AbortFlag) (struct{}, error) {
				n := inFlight.Add(1)
				for {
					old := maxInFlight.Load()
					if n <= old || maxInFlight.CompareAndSwap(old, n) {
						break
					}
				}
				<-release
				inFlight.Add(-1)
				return struct{}{}, nil
			})
			if err != nil {
				t.Errorf("RunRead: %v", err)
			}
		}()
	}

	// Give all three goroutines a chance to acquire before releasing.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if max := maxInFlight.Load(); max < 2 {
		t.Errorf("expected reads to overlap, max concurrent = %d", max)
	}
}

func TestRunWrite_ExcludesReads(t *testing.T) {
	g := newTestGatekeeper(t)
	ctx := context.Background()

	writeRunning := make(chan struct{})
	releaseWrite := make(chan struct{})
	go func() {
		_, _ = RunWrite(ctx, g, func(db *sql.DB, abort *progress.AbortFlag) (struct{}, error) {
			close(writeRunning)
			<-releaseWrite
			return struct{}{}, nil
		})
	}()
	<-writeRunning

	readStarted := make(chan struct{})
	go func() {
		_, _ = RunRead(ctx, g, func(db *sql.DB, abort *progress.AbortFlag) (struct{}, error) {
			close(readStarted)
			return struct{}{}, nil
		})
	}()

	select {
	case <-readStarted:
		t.Fatal("read started while write held the lock")
	case <-time.After(100 * time.Millisecond):
	}

	close(releaseWrite)
	select {
	case <-readStarted:
	case <-time.After(time.Second):
		t.Fatal("read never ran after write released the lock")
	}
}

func TestRunRead_TimesOutWhenWriteHeldTooLong(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()
	g := New(db, Config{AcquireReadTimeout: 20 * time.Millisecond, AcquireWriteTimeout: time.Second})
	ctx := context.Background()

	writeRunning := make(chan struct{})
	releaseWrite := make(chan struct{})
	go func() {
		_, _ = RunWrite(ctx, g, func(db *sql.DB, abort *progress.AbortFlag) (struct{}, error) {
			close(writeRunning)
			<-releaseWrite
			return struct{}{}, nil
		})
	}()
	<-writeRunning
	defer close(releaseWrite)

	_, err = RunRead(ctx, g, func(db *sql.DB, abort *progress.AbortFlag) (struct{}, error) {
		return struct{}{}, nil
	})
	if catalogerr.KindOf(err) != catalogerr.Timeout {
		t.Fatalf("expected Timeout, got %v", err)
	}
}

func TestRunRead_ContextCancelled(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()
	g := New(db, Config{AcquireReadTimeout: time.Second, AcquireWriteTimeout: time.Second})

	writeRunning := make(chan struct{})
	releaseWrite := make(chan struct{})
	go func() {
		_, _ = RunWrite(context.Background(), g, func(db *sql.DB, abort *progress.AbortFlag) (struct{}, error) {
			close(writeRunning)
			<-releaseWrite
			return struct{}{}, nil
		})
	}()
	<-writeRunning
	defer close(releaseWrite)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = RunRead(ctx, g, func(db *sql.DB, abort *progress.AbortFlag) (struct{}, error) {
		return struct{}{}, nil
	})
	if catalogerr.KindOf(err) != catalogerr.Timeout {
		t.Fatalf("expected Timeout from ctx cancellation, got %v", err)
	}
}

func TestDecommission_RejectsSubsequentAcquires(t *testing.T) {
	g := newTestGatekeeper(t)
	ctx := context.Background()

	g.Decommission()
	_, err := RunRead(ctx, g, func(db *sql.DB, abort *progress.AbortFlag) (struct{}, error) {
		return struct{}{}, nil
	})
	if catalogerr.KindOf(err) != catalogerr.Timeout {
		t.Fatalf("expected Timeout after decommission, got %v", err)
	}
	_, err = RunWrite(ctx, g, func(db *sql.DB, abort *progress.AbortFlag) (struct{}, error) {
		return struct{}{}, nil
	})
	if catalogerr.KindOf(err) != catalogerr.Timeout {
		t.Fatalf("expected Timeout after decommission, got %v", err)
	}
}

func TestPendingTasks_ReflectsInFlightWork(t *testing.T) {
	g := newTestGatekeeper(t)
	ctx := context.Background()

	started := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_, _ = RunRead(ctx, g, func(db *sql.DB, abort *progress.AbortFlag) (struct{}, error) {
			close(started)
			<-release
			return struct{}{}, nil
		})
	}()
	<-started

	if p := g.PendingTasks(); p.Read != 1 || p.Write != 0 {
		t.Errorf("expected 1 pending read, got %+v", p)
	}
	close(release)

	// Wait for the deferred decrement to run.
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if p := g.PendingTasks(); p.Read == 0 {
			break
		}
		time.Sleep(time.Millisecond)
	}
	if p := g.PendingTasks(); p.Read != 0 {
		t.Errorf("expected pending read count to return to 0, got %+v", p)
	}
}

func TestAbortCurrentTask_ResetAtTaskStart(t *testing.T) {
	g := newTestGatekeeper(t)
	ctx := context.Background()

	g.AbortCurrentTask()
	var sawAborted bool
	_, err := RunWrite(ctx, g, func(db *sql.DB, abort *progress.AbortFlag) (struct{}, error) {
		sawAborted = abort.IsSet()
		return struct{}{}, nil
	})
	if err != nil {
		t.Fatalf("RunWrite: %v", err)
	}
	if sawAborted {
		t.Error("expected abort flag to be cleared at task start, even if requested before acquire")
	}
}
