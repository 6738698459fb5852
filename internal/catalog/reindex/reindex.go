// Package reindex implements the reindex task (spec.md §4.9, C11): it
// streams tracks into an external full-text index in UpdatedAt-descending
// batches, either unconditionally (All) or with a high-watermark
// short-circuit that stops as soon as it crosses into rows the index
// already has current (RecentlyUpdated). Full-text index *building* is
// out of scope for this core (spec.md §1); TextIndex is the narrow sink
// interface a real index adapter implements, grounded on the teacher's
// own FTS5 rebuild shape (internal/library/fts.go) reexpressed as a push
// sink rather than a pull-rebuild.
package reindex

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/llehouerou/waves/internal/catalog/catalogerr"
	"github.com/llehouerou/waves/internal/catalog/domain"
	"github.com/llehouerou/waves/internal/catalog/progress"
	"github.com/llehouerou/waves/internal/catalog/store"
	"github.com/llehouerou/waves/internal/catalog/store/search"
)

var log = logrus.WithField("component", "reindex")

// TextIndex is the external collaborator every run feeds. Implementations
// own their own durability/commit semantics; Commit is called exactly
// once, after the last batch, whether or not the run reached the end of
// the collection (a RecentlyUpdated short-circuit still commits what was
// written so far).
type TextIndex interface {
	// LookupRevision returns the revision currently on record for uid, and
	// false if the index has no document for it yet.
	LookupRevision(ctx context.Context, uid domain.EntityUid) (domain.EntityRevision, bool, error)
	Delete(ctx context.Context, uid domain.EntityUid) error
	Add(ctx context.Context, uid domain.EntityUid, t domain.Track, contentPath string) error
	Commit(ctx context.Context) error
}

// Mode selects how a track's presence in the index is reconciled.
type Mode int

const (
	// All always deletes then re-adds every track in the collection.
	All Mode = iota
	// RecentlyUpdated skips a track whose stored revision already matches
	// the index, and stops the whole run the first time that happens
	// (rows are visited UpdatedAt descending, so once one is found
	// current, every later row is current too).
	RecentlyUpdated
)

// Repo is the persistence port the reindex task reads from.
type Repo interface {
	SearchTracks(ctx context.Context, collectionID int64, filter search.Filter, sort []search.SortKey, page search.Pagination) ([]store.TrackResult, error)
}

// Summary counts what one Run call did.
type Summary struct {
	Added     int
	Deleted   int
	Unchanged int
}

// Progress is reported once per batch.
type Progress struct {
	Batches int
	Summary Summary
}

// Params configures one Run call.
type Params struct {
	Mode      Mode
	BatchSize int
}

// DefaultParams returns the spec's default batch size.
func DefaultParams() Params {
	return Params{Mode: RecentlyUpdated, BatchSize: 200}
}

// Run streams collectionID's tracks into index in UpdatedAt-descending
// batches of params.BatchSize, committing once at the end. It holds
// whatever write lock the caller already acquired for the whole call (not
// cancellable mid-run, spec.md §4.9) — callers wrap this in a single
// gatekeeper write, not abort-checked between batches.
func Run(ctx context.Context, repo Repo, index TextIndex, collectionID int64, params Params, sink progress.Sink[Progress]) (Summary, error) {
	if params.BatchSize <= 0 {
		params.BatchSize = DefaultParams().BatchSize
	}
	sortKeys := []search.SortKey{{Field: search.SortUpdatedAt, Direction: search.Descending}}

	var summary Summary
	offset := 0
	batches := 0
	for {
		limit := params.BatchSize
		page := search.Pagination{Offset: offset, Limit: &limit}
		results, err := repo.SearchTracks(ctx, collectionID, search.All{}, sortKeys, page)
		if err != nil {
			return summary, catalogerr.Wrap(catalogerr.Storage, catalogerr.OpReindex, err)
		}
		if len(results) == 0 {
			break
		}

		stop := false
		for _, r := range results {
			done, err := reindexOne(ctx, index, r, params.Mode, &summary)
			if err != nil {
				return summary, catalogerr.Wrap(catalogerr.Storage, catalogerr.OpReindex, err)
			}
			if done {
				stop = true
				break
			}
		}

		batches++
		if sink != nil {
			sink.Report(Progress{Batches: batches, Summary: summary})
		}
		if stop {
			log.Info("reindex crossed the high-watermark, stopping early")
			break
		}
		if len(results) < params.BatchSize {
			break
		}
		offset += len(results)
	}

	if err := index.Commit(ctx); err != nil {
		return summary, catalogerr.Wrap(catalogerr.Storage, catalogerr.OpReindex, err)
	}
	return summary, nil
}

// reindexOne applies one track to index per mode. The second return
// value reports whether RecentlyUpdated just crossed its watermark and
// the caller should stop visiting any further (older) rows.
func reindexOne(ctx context.Context, index TextIndex, r store.TrackResult, mode Mode, summary *Summary) (bool, error) {
	uid := r.Track.Header.Uid

	if mode == All {
		if err := index.Delete(ctx, uid); err != nil {
			return false, err
		}
		if err := index.Add(ctx, uid, r.Track, r.ContentPath); err != nil {
			return false, err
		}
		summary.Deleted++
		summary.Added++
		return false, nil
	}

	stored, found, err := index.LookupRevision(ctx, uid)
	if err != nil {
		return false, err
	}
	if found && stored == r.Track.Header.Rev {
		summary.Unchanged++
		return true, nil
	}
	if err := index.Delete(ctx, uid); err != nil {
		return false, err
	}
	if err := index.Add(ctx, uid, r.Track, r.ContentPath); err != nil {
		return false, err
	}
	summary.Deleted++
	summary.Added++
	return false, nil
}
