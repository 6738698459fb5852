package store

import (
	"bytes"
	"context"
	"database/sql"
	"time"

	"github.com/llehouerou/waves/internal/catalog/catalogerr"
	"github.com/llehouerou/waves/internal/catalog/domain"
	"github.com/llehouerou/waves/internal/catalog/tracker"
)

// Store implements tracker.Repo directly against the tracked_directories
// table, so internal/catalog/tracker's state machine runs against sqlite
// without another adapter layer.
var _ tracker.Repo = (*Store)(nil)

func (s *Store) LoadDirectoryStatus(ctx context.Context, collectionID int64, path string) (domain.TrackedDirStatus, bool, error) {
	var status int
	err := s.db.QueryRowContext(ctx, `SELECT status FROM tracked_directories WHERE collection_id = ? AND path = ?`, collectionID, path).Scan(&status)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, catalogerr.Wrap(catalogerr.Storage, catalogerr.OpTrackerScan, err)
	}
	return domain.TrackedDirStatus(status), true, nil
}

func (s *Store) UpdateDirectoryDigest(ctx context.Context, collectionID int64, path string, digest []byte, now time.Time) (tracker.UpdateOutcome, error) {
	var result tracker.UpdateOutcome
	err := withTx(s.db, func(tx *sql.Tx) error {
		var status int
		var stored []byte
		err := tx.QueryRowContext(ctx, `SELECT status, digest FROM tracked_directories WHERE collection_id = ? AND path = ?`, collectionID, path).Scan(&status, &stored)
		switch {
		case err == sql.ErrNoRows:
			_, err := tx.ExecContext(ctx, `
				INSERT INTO tracked_directories (collection_id, path, status, digest, last_visited_at)
				VALUES (?, ?, ?, ?, ?)
			`, collectionID, path, int(domain.DirAdded), digest, unixMillis(now))
			if err != nil {
				return err
			}
			result = tracker.Inserted
			return nil
		case err != nil:
			return err
		}

		if bytes.Equal(stored, digest) {
			if domain.TrackedDirStatus(status) == domain.DirAdded || domain.TrackedDirStatus(status) == domain.DirModified {
				result = tracker.Skipped
				_, err := tx.ExecContext(ctx, `UPDATE tracked_directories SET last_visited_at = ? WHERE collection_id = ? AND path = ?`, unixMillis(now), collectionID, path)
				return err
			}
			result = tracker.Current
			_, err := tx.ExecContext(ctx, `UPDATE tracked_directories SET status = ?, last_visited_at = ? WHERE collection_id = ? AND path = ?`,
				int(domain.DirCurrent), unixMillis(now), collectionID, path)
			return err
		}
		result = tracker.Updated
		_, err = tx.ExecContext(ctx, `UPDATE tracked_directories SET status = ?, digest = ?, last_visited_at = ? WHERE collection_id = ? AND path = ?`,
			int(domain.DirModified), digest, unixMillis(now), collectionID, path)
		return err
	})
	if err != nil {
		return 0, catalogerr.Wrap(catalogerr.Storage, catalogerr.OpTrackerScan, err)
	}
	return result, nil
}

func (s *Store) ConfirmDirectoryDigestCurrent(ctx context.Context, collectionID int64, path, _ string, digest []byte, now time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE tracked_directories SET status = ?, last_visited_at = ?
		WHERE collection_id = ? AND path = ? AND digest = ?
	`, int(domain.DirCurrent), unixMillis(now), collectionID, path, digest)
	if err != nil {
		return false, catalogerr.Wrap(catalogerr.Storage, catalogerr.OpTrackerImport, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (s *Store) MarkCurrentDirectoriesOutdated(ctx context.Context, collectionID int64, rootPath string, now time.Time) (int, error) {
	return s.bulkTransition(ctx, collectionID, rootPath, domain.DirCurrent, domain.DirOutdated, now)
}

func (s *Store) MarkOutdatedDirectoriesOrphaned(ctx context.Context, collectionID int64, rootPath string, now time.Time) (int, error) {
	return s.bulkTransition(ctx, collectionID, rootPath, domain.DirOutdated, domain.DirOrphaned, now)
}

func (s *Store) bulkTransition(ctx context.Context, collectionID int64, rootPath string, from, to domain.TrackedDirStatus, now time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE tracked_directories SET status = ?, last_visited_at = ?
		WHERE collection_id = ? AND status = ? AND (path = ? OR path LIKE ?)
	`, int(to), unixMillis(now), collectionID, int(from), rootPath, likePrefix(rootPath))
	if err != nil {
		return 0, catalogerr.Wrap(catalogerr.Storage, catalogerr.OpTrackerScan, err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (s *Store) UpdateDirectoriesStatus(ctx context.Context, collectionID int64, rootPath string, from *domain.TrackedDirStatus, to domain.TrackedDirStatus, now time.Time) (int, error) {
	var res sql.Result
	var err error
	if from != nil {
		res, err = s.db.ExecContext(ctx, `
			UPDATE tracked_directories SET status = ?, last_visited_at = ?
			WHERE collection_id = ? AND status = ? AND (path = ? OR path LIKE ?)
		`, int(to), unixMillis(now), collectionID, int(*from), rootPath, likePrefix(rootPath))
	} else {
		res, err = s.db.ExecContext(ctx, `
			UPDATE tracked_directories SET status = ?, last_visited_at = ?
			WHERE collection_id = ? AND (path = ? OR path LIKE ?)
		`, int(to), unixMillis(now), collectionID, rootPath, likePrefix(rootPath))
	}
	if err != nil {
		return 0, catalogerr.Wrap(catalogerr.Storage, catalogerr.OpTrackerScan, err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (s *Store) UntrackDirectories(ctx context.Context, collectionID int64, rootPath string, status *domain.TrackedDirStatus) (int, error) {
	var res sql.Result
	var err error
	if status != nil {
		res, err = s.db.ExecContext(ctx, `
			DELETE FROM tracked_directories WHERE collection_id = ? AND status = ? AND (path = ? OR path LIKE ?)
		`, collectionID, int(*status), rootPath, likePrefix(rootPath))
	} else {
		res, err = s.db.ExecContext(ctx, `
			DELETE FROM tracked_directories WHERE collection_id = ? AND (path = ? OR path LIKE ?)
		`, collectionID, rootPath, likePrefix(rootPath))
	}
	if err != nil {
		return 0, catalogerr.Wrap(catalogerr.Storage, catalogerr.OpTrackerPurge, err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (s *Store) LoadDirectoriesRequiringConfirmation(ctx context.Context, collectionID int64, rootPath string, offset, limit int) ([]domain.TrackedDirectory, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT path, status, digest, last_visited_at FROM tracked_directories
		WHERE collection_id = ? AND (path = ? OR path LIKE ?) AND status IN (?, ?)
		ORDER BY path
		LIMIT ? OFFSET ?
	`, collectionID, rootPath, likePrefix(rootPath), int(domain.DirAdded), int(domain.DirModified), limit, offset)
	if err != nil {
		return nil, catalogerr.Wrap(catalogerr.Storage, catalogerr.OpTrackerImport, err)
	}
	defer rows.Close()
	var out []domain.TrackedDirectory
	for rows.Next() {
		var td domain.TrackedDirectory
		var status int
		var visitedAt int64
		if err := rows.Scan(&td.Path, &status, &td.Digest, &visitedAt); err != nil {
			return nil, catalogerr.Wrap(catalogerr.Storage, catalogerr.OpTrackerImport, err)
		}
		td.Status = domain.TrackedDirStatus(status)
		td.LastVisitedAt = fromUnixMillis(visitedAt)
		out = append(out, td)
	}
	return out, rows.Err()
}

func likePrefix(rootPath string) string {
	if rootPath == "" {
		return "%"
	}
	return rootPath + "/%"
}
