// Package tracker implements the directory tracking state machine (spec.md
// §4.6, C6): the Added/Modified/Current/Outdated/Orphaned lifecycle that
// scan_directories drives as it walks a collection's content root. Grounded
// on original_source/repo-sqlite/src/repo/media/dir_tracker/tests.rs, which
// pins down the exact transition table exercised here.
package tracker

import (
	"context"
	"time"

	"github.com/llehouerou/waves/internal/catalog/domain"
)

// UpdateOutcome reports what UpdateDirectoryDigest did to a directory row.
type UpdateOutcome int

const (
	// Skipped means the row already carried this digest and status; nothing changed.
	Skipped UpdateOutcome = iota
	// Inserted means no row existed for this path; one was created as Added.
	Inserted
	// Updated means the digest differed from the stored one; status became Modified.
	Updated
	// Current means the row existed with a different status but the same
	// digest, so it was reset to Current without bumping the digest.
	Current
)

func (o UpdateOutcome) String() string {
	switch o {
	case Skipped:
		return "skipped"
	case Inserted:
		return "inserted"
	case Updated:
		return "updated"
	case Current:
		return "current"
	default:
		return "unknown"
	}
}

// Repo is the persistence port the tracker state machine drives. A single
// implementation (internal/catalog/store) backs it with sqlite; tests may
// supply an in-memory fake.
type Repo interface {
	// LoadDirectoryStatus returns the stored status for path, or ok=false
	// if the directory is not tracked.
	LoadDirectoryStatus(ctx context.Context, collectionID int64, path string) (status domain.TrackedDirStatus, ok bool, err error)

	// UpdateDirectoryDigest applies scan_directories's per-directory
	// transition: Added on first sight, Modified when the digest changes,
	// Current when a digest resubmission matches a differently-statused
	// row (Orphaned or Outdated reverting to Current), Skipped when
	// nothing changed.
	UpdateDirectoryDigest(ctx context.Context, collectionID int64, path string, digest []byte, now time.Time) (UpdateOutcome, error)

	// ConfirmDirectoryDigestCurrent resets path to Current only if digest
	// matches the stored one; returns false (no change) otherwise.
	ConfirmDirectoryDigestCurrent(ctx context.Context, collectionID int64, path, prefix string, digest []byte, now time.Time) (bool, error)

	// MarkCurrentDirectoriesOutdated transitions every Current row under
	// rootPath to Outdated, returning the count affected. Called before a
	// fresh scan so that any directory not revisited stays outdated.
	MarkCurrentDirectoriesOutdated(ctx context.Context, collectionID int64, rootPath string, now time.Time) (int, error)

	// MarkOutdatedDirectoriesOrphaned transitions every Outdated row under
	// rootPath to Orphaned, returning the count affected. Called after a
	// scan finishes (never after an abort) to retire directories that
	// disappeared or became unreachable.
	MarkOutdatedDirectoriesOrphaned(ctx context.Context, collectionID int64, rootPath string, now time.Time) (int, error)

	// UpdateDirectoriesStatus bulk-transitions rows under rootPath
	// currently in fromStatus (or any status, if fromStatus is nil) to
	// toStatus, returning the count affected.
	UpdateDirectoriesStatus(ctx context.Context, collectionID int64, rootPath string, fromStatus *domain.TrackedDirStatus, toStatus domain.TrackedDirStatus, now time.Time) (int, error)

	// UntrackDirectories deletes rows under rootPath matching status (or
	// any status, if nil), returning the count removed.
	UntrackDirectories(ctx context.Context, collectionID int64, rootPath string, status *domain.TrackedDirStatus) (int, error)

	// LoadDirectoriesRequiringConfirmation pages through rows whose status
	// is Added or Modified, ordered for stable pagination across calls.
	LoadDirectoriesRequiringConfirmation(ctx context.Context, collectionID int64, rootPath string, offset, limit int) ([]domain.TrackedDirectory, error)
}

// IsPending reports whether status requires the importer's attention
// (newly added or modified content awaiting a sync pass).
func IsPending(status domain.TrackedDirStatus) bool {
	return status == domain.DirAdded || status == domain.DirModified
}
