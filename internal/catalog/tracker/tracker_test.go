package tracker

import (
	"bytes"
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/llehouerou/waves/internal/catalog/domain"
)

// fakeRepo is an in-memory Repo used only to exercise the transition logic
// and ScanDirectories orchestration in this package's own tests; the real
// implementation lives in internal/catalog/store and is backed by sqlite.
type fakeRepo struct {
	mu   sync.Mutex
	rows map[string]*fakeRow
}

type fakeRow struct {
	status domain.TrackedDirStatus
	digest []byte
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{rows: map[string]*fakeRow{}}
}

func (r *fakeRepo) key(collectionID int64, path string) string {
	return path
}

func (r *fakeRepo) LoadDirectoryStatus(_ context.Context, collectionID int64, path string) (domain.TrackedDirStatus, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[r.key(collectionID, path)]
	if !ok {
		return 0, false, nil
	}
	return row.status, true, nil
}

func (r *fakeRepo) UpdateDirectoryDigest(_ context.Context, collectionID int64, path string, digest []byte, _ time.Time) (UpdateOutcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := r.key(collectionID, path)
	row, ok := r.rows[k]
	if !ok {
		r.rows[k] = &fakeRow{status: domain.DirAdded, digest: append([]byte(nil), digest...)}
		return Inserted, nil
	}
	if bytes.Equal(row.digest, digest) {
		if row.status == domain.DirAdded || row.status == domain.DirModified {
			return Skipped, nil
		}
		row.status = domain.DirCurrent
		return Current, nil
	}
	row.digest = append([]byte(nil), digest...)
	row.status = domain.DirModified
	return Updated, nil
}

func (r *fakeRepo) ConfirmDirectoryDigestCurrent(_ context.Context, collectionID int64, path, _ string, digest []byte, _ time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[r.key(collectionID, path)]
	if !ok || !bytes.Equal(row.digest, digest) {
		return false, nil
	}
	row.status = domain.DirCurrent
	return true, nil
}

func (r *fakeRepo) MarkCurrentDirectoriesOutdated(_ context.Context, collectionID int64, rootPath string, _ time.Time) (int, error) {
	return r.bulkMark(rootPath, domain.DirCurrent, domain.DirOutdated), nil
}

func (r *fakeRepo) MarkOutdatedDirectoriesOrphaned(_ context.Context, collectionID int64, rootPath string, _ time.Time) (int, error) {
	return r.bulkMark(rootPath, domain.DirOutdated, domain.DirOrphaned), nil
}

func (r *fakeRepo) bulkMark(rootPath string, from, to domain.TrackedDirStatus) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for path, row := range r.rows {
		if !strings.HasPrefix(path, rootPath) {
			continue
		}
		if row.status == from {
			row.status = to
			n++
		}
	}
	return n
}

func (r *fakeRepo) UpdateDirectoriesStatus(_ context.Context, collectionID int64, rootPath string, from *domain.TrackedDirStatus, to domain.TrackedDirStatus, _ time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for path, row := range r.rows {
		if !strings.HasPrefix(path, rootPath) {
			continue
		}
		if from != nil && row.status != *from {
			continue
		}
		row.status = to
		n++
	}
	return n, nil
}

func (r *fakeRepo) UntrackDirectories(_ context.Context, collectionID int64, rootPath string, status *domain.TrackedDirStatus) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for path, row := range r.rows {
		if !strings.HasPrefix(path, rootPath) {
			continue
		}
		if status != nil && row.status != *status {
			continue
		}
		delete(r.rows, path)
		n++
	}
	return n, nil
}

func (r *fakeRepo) LoadDirectoriesRequiringConfirmation(_ context.Context, collectionID int64, rootPath string, offset, limit int) ([]domain.TrackedDirectory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var paths []string
	for path, row := range r.rows {
		if !strings.HasPrefix(path, rootPath) {
			continue
		}
		if IsPending(row.status) {
			paths = append(paths, path)
		}
	}
	sort.Strings(paths)
	if offset >= len(paths) {
		return nil, nil
	}
	end := offset + limit
	if end > len(paths) {
		end = len(paths)
	}
	out := make([]domain.TrackedDirectory, 0, end-offset)
	for _, path := range paths[offset:end] {
		row := r.rows[path]
		out = append(out, domain.TrackedDirectory{Path: path, Status: row.status, Digest: row.digest})
	}
	return out, nil
}
