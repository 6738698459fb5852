package store

import (
	"context"
	"database/sql"

	"github.com/llehouerou/waves/internal/catalog/catalogerr"
	"github.com/llehouerou/waves/internal/catalog/domain"
)

// InsertOrReplaceMediaSource inserts a media source row for contentPath
// under collectionID, or updates the existing one in place (media sources
// carry no independent revision; they are owned by the track replace
// transaction that imports them). Returns the row id.
func (s *Store) InsertOrReplaceMediaSource(ctx context.Context, tx *sql.Tx, collectionID int64, ms domain.MediaSource) (int64, error) {
	artworkJSON := encodeJSON(ms.Artwork)
	res, err := tx.ExecContext(ctx, `
		INSERT INTO media_sources (
			collection_id, collected_at, content_path, content_rev, content_type, content_digest,
			duration_ms, channels, sample_rate_hz, bitrate_bps, loudness_lufs, encoder,
			artwork_kind, artwork_json
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(collection_id, content_path) DO UPDATE SET
			collected_at = excluded.collected_at,
			content_rev = excluded.content_rev,
			content_type = excluded.content_type,
			content_digest = excluded.content_digest,
			duration_ms = excluded.duration_ms,
			channels = excluded.channels,
			sample_rate_hz = excluded.sample_rate_hz,
			bitrate_bps = excluded.bitrate_bps,
			loudness_lufs = excluded.loudness_lufs,
			encoder = excluded.encoder,
			artwork_kind = excluded.artwork_kind,
			artwork_json = excluded.artwork_json
	`, collectionID, unixMillis(ms.CollectedAt), ms.ContentLink.Path, ms.ContentLink.Rev, ms.ContentType, ms.ContentDigest,
		ms.Audio.DurationMs, ms.Audio.Channels, ms.Audio.SampleRateHz, ms.Audio.BitrateBps, nullFloat(ms.Audio.LoudnessLufs), ms.Audio.Encoder,
		int(ms.Artwork.Kind), artworkJSON)
	if err != nil {
		return 0, catalogerr.Wrap(catalogerr.Storage, catalogerr.OpStoreInsert, err)
	}
	id, err := res.LastInsertId()
	if err != nil || id == 0 {
		// ON CONFLICT DO UPDATE doesn't report the existing row id via
		// LastInsertId on sqlite; look it up explicitly.
		row := tx.QueryRowContext(ctx, `SELECT id FROM media_sources WHERE collection_id = ? AND content_path = ?`, collectionID, ms.ContentLink.Path)
		if serr := row.Scan(&id); serr != nil {
			return 0, catalogerr.Wrap(catalogerr.Storage, catalogerr.OpStoreInsert, serr)
		}
	}
	return id, nil
}

// LoadMediaSourceByPath loads a media source row by its content path.
func (s *Store) LoadMediaSourceByPath(ctx context.Context, collectionID int64, contentPath string) (int64, domain.MediaSource, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, collected_at, content_path, content_rev, content_type, content_digest,
			duration_ms, channels, sample_rate_hz, bitrate_bps, loudness_lufs, encoder, artwork_json
		FROM media_sources WHERE collection_id = ? AND content_path = ?
	`, collectionID, contentPath)
	return scanMediaSource(row)
}

func scanMediaSource(row *sql.Row) (int64, domain.MediaSource, error) {
	var id int64
	var ms domain.MediaSource
	var collectedAt int64
	var loudness sql.NullFloat64
	var artworkJSON string
	if err := row.Scan(&id, &collectedAt, &ms.ContentLink.Path, &ms.ContentLink.Rev, &ms.ContentType, &ms.ContentDigest,
		&ms.Audio.DurationMs, &ms.Audio.Channels, &ms.Audio.SampleRateHz, &ms.Audio.BitrateBps, &loudness, &ms.Audio.Encoder, &artworkJSON); err != nil {
		if err == sql.ErrNoRows {
			return 0, domain.MediaSource{}, catalogerr.New(catalogerr.NotFound, catalogerr.OpStoreLoad, "media source not found", err)
		}
		return 0, domain.MediaSource{}, catalogerr.Wrap(catalogerr.Storage, catalogerr.OpStoreLoad, err)
	}
	ms.CollectedAt = fromUnixMillis(collectedAt)
	if loudness.Valid {
		ms.Audio.LoudnessLufs = &loudness.Float64
	}
	decodeJSON(artworkJSON, &ms.Artwork)
	return id, ms, nil
}

// ReplaceMediaSourceContent overwrites mediaSourceID's content columns
// (path, revision, type, digest, audio, artwork) with ms's, leaving
// collected_at untouched. Used by the relinker (internal/catalog/tracker/relink)
// to move an existing media source row onto a successor file's content
// without losing the collected_at timestamp the relink invariant preserves.
func (s *Store) ReplaceMediaSourceContent(ctx context.Context, tx *sql.Tx, mediaSourceID int64, ms domain.MediaSource) error {
	artworkJSON := encodeJSON(ms.Artwork)
	_, err := tx.ExecContext(ctx, `
		UPDATE media_sources SET
			content_path = ?, content_rev = ?, content_type = ?, content_digest = ?,
			duration_ms = ?, channels = ?, sample_rate_hz = ?, bitrate_bps = ?, loudness_lufs = ?, encoder = ?,
			artwork_kind = ?, artwork_json = ?
		WHERE id = ?
	`, ms.ContentLink.Path, ms.ContentLink.Rev, ms.ContentType, ms.ContentDigest,
		ms.Audio.DurationMs, ms.Audio.Channels, ms.Audio.SampleRateHz, ms.Audio.BitrateBps, nullFloat(ms.Audio.LoudnessLufs), ms.Audio.Encoder,
		int(ms.Artwork.Kind), artworkJSON, mediaSourceID)
	if err != nil {
		return catalogerr.Wrap(catalogerr.Storage, catalogerr.OpStoreUpdate, err)
	}
	return nil
}

// PurgeMediaSourceByID deletes mediaSourceID's track (if any) and the
// media source row itself, explicitly rather than relying on the schema's
// ON DELETE CASCADE (PRAGMA foreign_keys is not enabled on this connection).
func (s *Store) PurgeMediaSourceByID(ctx context.Context, tx *sql.Tx, mediaSourceID int64) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM tracks WHERE media_source_id = ?`, mediaSourceID); err != nil {
		return catalogerr.Wrap(catalogerr.Storage, catalogerr.OpStorePurge, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM media_sources WHERE id = ?`, mediaSourceID); err != nil {
		return catalogerr.Wrap(catalogerr.Storage, catalogerr.OpStorePurge, err)
	}
	return nil
}

// ListMediaSourcePathsInDirectory returns the content paths of every media
// source directly inside dirPath (not recursively: "a/b.mp3" is a direct
// child of "a", "a/b/c.mp3" is not), used by import_files to notice a file
// that vanished from an otherwise still-tracked directory.
func (s *Store) ListMediaSourcePathsInDirectory(ctx context.Context, collectionID int64, dirPath string) ([]string, error) {
	prefix := dirPath
	if prefix != "" {
		prefix += "/"
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT content_path FROM media_sources
		WHERE collection_id = ? AND content_path LIKE ? AND content_path NOT LIKE ?
	`, collectionID, prefix+"%", prefix+"%/%")
	if err != nil {
		return nil, catalogerr.Wrap(catalogerr.Storage, catalogerr.OpStoreSearch, err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, catalogerr.Wrap(catalogerr.Storage, catalogerr.OpStoreSearch, err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, catalogerr.Wrap(catalogerr.Storage, catalogerr.OpStoreSearch, err)
	}
	return out, nil
}

// DeleteTrackByMediaSourceID deletes mediaSourceID's track row but leaves
// the media source row itself in place, dangling until a later purge-
// orphaned pass (spec.md §4.7 step 5) removes it. Used when import_files
// notices a file is gone from disk: the media source keeps its
// collected_at/content history in case the relinker finds the same audio
// reappear elsewhere before the next purge runs.
func (s *Store) DeleteTrackByMediaSourceID(ctx context.Context, tx *sql.Tx, mediaSourceID int64) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM tracks WHERE media_source_id = ?`, mediaSourceID); err != nil {
		return catalogerr.Wrap(catalogerr.Storage, catalogerr.OpStorePurge, err)
	}
	return nil
}

// PurgeUntrackedMediaSources deletes every media source under
// collectionID whose content path is not covered by any tracked
// directory still present (Added/Modified/Current/Outdated), along with
// the tracks that reference them, deleted explicitly first (PRAGMA
// foreign_keys is not enabled on this connection). Returns the count
// of tracks purged this way (spec.md §4.7 step 4).
func (s *Store) PurgeUntrackedMediaSources(ctx context.Context, collectionID int64) (int, error) {
	return s.purgeMediaSourcesNotCovered(ctx, collectionID)
}

// PurgeOrphanedMediaSources deletes every media source under collectionID
// no longer referenced by any track (spec.md §4.7 step 5). A media source
// reaches this state when import_files notices its file has disappeared
// from a still-tracked directory and deletes the track row while leaving
// the media source behind (DeleteTrackByMediaSourceID), or when a relink
// candidate search comes up empty. Distinct from PurgeUntrackedMediaSources
// (step 4), which purges by directory coverage rather than by track
// reference.
func (s *Store) PurgeOrphanedMediaSources(ctx context.Context, collectionID int64) (int, error) {
	var total int
	err := withTx(s.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			DELETE FROM media_sources WHERE collection_id = ? AND NOT EXISTS (
				SELECT 1 FROM tracks WHERE tracks.media_source_id = media_sources.id
			)
		`, collectionID)
		if err != nil {
			return err
		}
		n, _ := res.RowsAffected()
		total = int(n)
		return nil
	})
	if err != nil {
		return 0, catalogerr.Wrap(catalogerr.Storage, catalogerr.OpTrackerPurge, err)
	}
	return total, nil
}

func (s *Store) purgeMediaSourcesNotCovered(ctx context.Context, collectionID int64) (int, error) {
	var total int
	err := withTx(s.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			DELETE FROM tracks WHERE media_source_id IN (
				SELECT ms.id FROM media_sources ms
				WHERE ms.collection_id = ?
				AND NOT EXISTS (
					SELECT 1 FROM tracked_directories td
					WHERE td.collection_id = ms.collection_id
					AND (ms.content_path = td.path OR ms.content_path LIKE td.path || '/%')
					AND td.status != ?
				)
			)
		`, collectionID, int(domain.DirOrphaned))
		if err != nil {
			return err
		}
		n, _ := res.RowsAffected()
		total = int(n)
		_, err = tx.ExecContext(ctx, `
			DELETE FROM media_sources WHERE collection_id = ? AND NOT EXISTS (
				SELECT 1 FROM tracked_directories td
				WHERE td.collection_id = media_sources.collection_id
				AND (media_sources.content_path = td.path OR media_sources.content_path LIKE td.path || '/%')
				AND td.status != ?
			)
		`, collectionID, int(domain.DirOrphaned))
		return err
	})
	if err != nil {
		return 0, catalogerr.Wrap(catalogerr.Storage, catalogerr.OpTrackerPurge, err)
	}
	return total, nil
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}
