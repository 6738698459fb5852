package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/llehouerou/waves/internal/catalog/catalogerr"
	"github.com/llehouerou/waves/internal/catalog/domain"
)

// InsertCollection persists a brand new collection, assigning it a fresh
// uid and initial revision. Returns the store-internal row id used to
// scope media sources, tracks, and tracked directories to it.
func (s *Store) InsertCollection(ctx context.Context, now time.Time, c domain.Collection) (int64, domain.EntityHeader, error) {
	if err := c.Validate(); err != nil {
		return 0, domain.EntityHeader{}, err
	}
	header := domain.NewEntityHeader(now)
	rgb, idx := encodeColor(c.Color)
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO collections (uid, rev_version, rev_timestamp, title, kind, notes, color_rgb, color_idx, path_kind, path_root_url)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, header.Uid.String(), header.Rev.Version, unixMillis(header.Rev.Timestamp),
		c.Title, c.Kind, c.Notes, rgb, idx, int(c.PathConfig.Kind), c.PathConfig.RootUrl)
	if err != nil {
		return 0, domain.EntityHeader{}, catalogerr.Wrap(catalogerr.Storage, catalogerr.OpStoreInsert, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, domain.EntityHeader{}, catalogerr.Wrap(catalogerr.Storage, catalogerr.OpStoreInsert, err)
	}
	return id, header, nil
}

// LoadCollection loads a collection by uid, along with its store-internal
// row id.
func (s *Store) LoadCollection(ctx context.Context, uid domain.EntityUid) (int64, domain.Collection, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, rev_version, rev_timestamp, title, kind, notes, color_rgb, color_idx, path_kind, path_root_url
		FROM collections WHERE uid = ?
	`, uid.String())
	return scanCollection(row, uid)
}

// LoadCollectionByID loads a collection by its store-internal row id.
func (s *Store) LoadCollectionByID(ctx context.Context, id int64) (domain.Collection, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT uid, rev_version, rev_timestamp, title, kind, notes, color_rgb, color_idx, path_kind, path_root_url
		FROM collections WHERE id = ?
	`, id)
	var uidStr string
	var c domain.Collection
	var rgb sql.NullString
	var idx sql.NullInt64
	var revVersion uint64
	var revTimestamp int64
	if err := row.Scan(&uidStr, &revVersion, &revTimestamp, &c.Title, &c.Kind, &c.Notes, &rgb, &idx, &c.PathConfig.Kind, &c.PathConfig.RootUrl); err != nil {
		if err == sql.ErrNoRows {
			return domain.Collection{}, catalogerr.New(catalogerr.NotFound, catalogerr.OpStoreLoad, "collection not found", err)
		}
		return domain.Collection{}, catalogerr.Wrap(catalogerr.Storage, catalogerr.OpStoreLoad, err)
	}
	uid, err := domain.ParseEntityUid(uidStr)
	if err != nil {
		return domain.Collection{}, err
	}
	c.Header = domain.EntityHeader{Uid: uid, Rev: domain.EntityRevision{Version: revVersion, Timestamp: fromUnixMillis(revTimestamp)}}
	c.Color = decodeColor(rgb, idx)
	return c, nil
}

func scanCollection(row *sql.Row, uid domain.EntityUid) (int64, domain.Collection, error) {
	var id int64
	var c domain.Collection
	var rgb sql.NullString
	var idx sql.NullInt64
	var revVersion uint64
	var revTimestamp int64
	if err := row.Scan(&id, &revVersion, &revTimestamp, &c.Title, &c.Kind, &c.Notes, &rgb, &idx, &c.PathConfig.Kind, &c.PathConfig.RootUrl); err != nil {
		if err == sql.ErrNoRows {
			return 0, domain.Collection{}, catalogerr.New(catalogerr.NotFound, catalogerr.OpStoreLoad, "collection not found", err)
		}
		return 0, domain.Collection{}, catalogerr.Wrap(catalogerr.Storage, catalogerr.OpStoreLoad, err)
	}
	c.Header = domain.EntityHeader{Uid: uid, Rev: domain.EntityRevision{Version: revVersion, Timestamp: fromUnixMillis(revTimestamp)}}
	c.Color = decodeColor(rgb, idx)
	return id, c, nil
}

// FindCollectionByTitle returns the store-internal row id and uid of the
// collection with the given title, and false if none exists. Titles are
// not declared unique at the schema level, so this returns the first
// match; callers that care about uniqueness (the CLI's find-or-create on
// startup) are expected to only ever create one collection per title.
func (s *Store) FindCollectionByTitle(ctx context.Context, title string) (int64, domain.EntityUid, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, uid FROM collections WHERE title = ? LIMIT 1`, title)
	var id int64
	var uidStr string
	if err := row.Scan(&id, &uidStr); err != nil {
		if err == sql.ErrNoRows {
			return 0, domain.EntityUid{}, false, nil
		}
		return 0, domain.EntityUid{}, false, catalogerr.Wrap(catalogerr.Storage, catalogerr.OpStoreLoad, err)
	}
	uid, err := domain.ParseEntityUid(uidStr)
	if err != nil {
		return 0, domain.EntityUid{}, false, err
	}
	return id, uid, true, nil
}

// UpdateCollection applies an optimistic-revision update: c.Header.Rev
// must match the row's current revision exactly, else catalogerr.Conflict
// is returned and nothing is written (spec.md §8 property 1).
func (s *Store) UpdateCollection(ctx context.Context, now time.Time, c domain.Collection) (domain.EntityHeader, error) {
	if err := c.Validate(); err != nil {
		return domain.EntityHeader{}, err
	}
	next := c.Header.Rev.Next(now)
	rgb, idx := encodeColor(c.Color)
	res, err := s.db.ExecContext(ctx, `
		UPDATE collections SET rev_version = ?, rev_timestamp = ?, title = ?, kind = ?, notes = ?, color_rgb = ?, color_idx = ?, path_kind = ?, path_root_url = ?
		WHERE uid = ? AND rev_version = ?
	`, next.Version, unixMillis(next.Timestamp), c.Title, c.Kind, c.Notes, rgb, idx, int(c.PathConfig.Kind), c.PathConfig.RootUrl,
		c.Header.Uid.String(), c.Header.Rev.Version)
	if err != nil {
		return domain.EntityHeader{}, catalogerr.Wrap(catalogerr.Storage, catalogerr.OpStoreUpdate, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.EntityHeader{}, catalogerr.New(catalogerr.Conflict, catalogerr.OpStoreUpdate, "collection revision mismatch", nil)
	}
	return domain.EntityHeader{Uid: c.Header.Uid, Rev: next}, nil
}

// PurgeCollection deletes a collection and, via ON DELETE CASCADE, every
// tracked directory, media source, track, and playlist scoped to it.
func (s *Store) PurgeCollection(ctx context.Context, uid domain.EntityUid) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM collections WHERE uid = ?`, uid.String())
	if err != nil {
		return catalogerr.Wrap(catalogerr.Storage, catalogerr.OpStorePurge, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return catalogerr.New(catalogerr.NotFound, catalogerr.OpStorePurge, "collection not found", nil)
	}
	return nil
}
