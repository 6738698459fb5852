package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/llehouerou/waves/internal/catalog/catalogerr"
	"github.com/llehouerou/waves/internal/catalog/domain"
)

type trackRow struct {
	albumTitle, albumArtist                      string
	albumKind                                    int
	trackNum, trackTotal, discNum, discTotal     int
	movementNum, movementTotal                   int
	recordedYMD, releasedYMD, releasedOrigYMD    sql.NullInt64
	recordedJSON, releasedJSON, releasedOrigJSON string
	publisher, copyright                         string
	tagsJSON                                     string
	colorRGB                                     sql.NullString
	colorIdx                                     sql.NullInt64
	tempoBpm                                     sql.NullFloat64
	keySignature                                 int
	tsTop, tsBottom                               int
	metricsFlags                                 uint32
	cuesJSON                                     string
	lastPlayedAt                                 sql.NullInt64
	timesPlayed                                  int
}

func toTrackRow(t domain.Track) trackRow {
	r := trackRow{
		albumTitle:    t.Album.Title,
		albumArtist:   t.Album.ArtistName,
		albumKind:     int(t.Album.Kind),
		trackNum:      t.Indexes.Track.Number,
		trackTotal:    t.Indexes.Track.Total,
		discNum:       t.Indexes.Disc.Number,
		discTotal:     t.Indexes.Disc.Total,
		movementNum:   t.Indexes.Movement.Number,
		movementTotal: t.Indexes.Movement.Total,
		publisher:     t.Publisher,
		copyright:     t.Copyright,
		tagsJSON:      encodeJSON(t.Tags),
		tempoBpm:      nullFloat(t.Metrics.TempoBpm),
		keySignature:  int(t.Metrics.KeySignature),
		tsTop:         t.Metrics.TimeSignature.Top,
		tsBottom:      t.Metrics.TimeSignature.Bottom,
		metricsFlags:  uint32(t.Metrics.Flags),
		cuesJSON:      encodeJSON(t.Cues),
		timesPlayed:   t.PlayCounter.TimesPlayed,
	}
	r.colorRGB, r.colorIdx = encodeColor(t.Color)
	if t.RecordedAt != nil {
		r.recordedYMD = sql.NullInt64{Int64: int64(t.RecordedAt.YYYYMMDD()), Valid: true}
		r.recordedJSON = encodeJSON(t.RecordedAt)
	}
	if t.ReleasedAt != nil {
		r.releasedYMD = sql.NullInt64{Int64: int64(t.ReleasedAt.YYYYMMDD()), Valid: true}
		r.releasedJSON = encodeJSON(t.ReleasedAt)
	}
	if t.ReleasedOrigAt != nil {
		r.releasedOrigYMD = sql.NullInt64{Int64: int64(t.ReleasedOrigAt.YYYYMMDD()), Valid: true}
		r.releasedOrigJSON = encodeJSON(t.ReleasedOrigAt)
	}
	if t.PlayCounter.LastPlayedAt != nil {
		r.lastPlayedAt = sql.NullInt64{Int64: unixMillis(*t.PlayCounter.LastPlayedAt), Valid: true}
	}
	return r
}

// InsertTrack persists a new track entity bound to mediaSourceID, assigning
// it a fresh uid and initial revision.
func (s *Store) InsertTrack(ctx context.Context, tx *sql.Tx, now time.Time, collectionID, mediaSourceID int64, t domain.Track) (domain.EntityHeader, error) {
	header := domain.NewEntityHeader(now)
	r := toTrackRow(t)
	_, err := tx.ExecContext(ctx, `
		INSERT INTO tracks (
			uid, rev_version, rev_timestamp, collection_id, media_source_id, created_at,
			titles_json, actors_json, album_title, album_artist, album_kind,
			track_index, track_total, disc_index, disc_total, movement_index, movement_total,
			recorded_at_yyyymmdd, released_at_yyyymmdd, released_orig_at_yyyymmdd,
			recorded_at_json, released_at_json, released_orig_at_json,
			publisher, copyright, tags_json, color_rgb, color_idx,
			tempo_bpm, key_signature, time_signature_top, time_signature_bottom, metrics_flags,
			cues_json, last_played_at, times_played
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, header.Uid.String(), header.Rev.Version, unixMillis(header.Rev.Timestamp), collectionID, mediaSourceID, unixMillis(now),
		encodeJSON(t.Titles), encodeJSON(t.Actors), r.albumTitle, r.albumArtist, r.albumKind,
		r.trackNum, r.trackTotal, r.discNum, r.discTotal, r.movementNum, r.movementTotal,
		r.recordedYMD, r.releasedYMD, r.releasedOrigYMD,
		r.recordedJSON, r.releasedJSON, r.releasedOrigJSON,
		r.publisher, r.copyright, r.tagsJSON, r.colorRGB, r.colorIdx,
		r.tempoBpm, r.keySignature, r.tsTop, r.tsBottom, r.metricsFlags,
		r.cuesJSON, r.lastPlayedAt, r.timesPlayed)
	if err != nil {
		return domain.EntityHeader{}, catalogerr.Wrap(catalogerr.Storage, catalogerr.OpStoreInsert, err)
	}
	return header, nil
}

// UpdateTrack applies an optimistic-revision update to an existing track row.
func (s *Store) UpdateTrack(ctx context.Context, tx *sql.Tx, now time.Time, t domain.Track) (domain.EntityHeader, error) {
	next := t.Header.Rev.Next(now)
	r := toTrackRow(t)
	res, err := tx.ExecContext(ctx, `
		UPDATE tracks SET
			rev_version = ?, rev_timestamp = ?,
			titles_json = ?, actors_json = ?, album_title = ?, album_artist = ?, album_kind = ?,
			track_index = ?, track_total = ?, disc_index = ?, disc_total = ?, movement_index = ?, movement_total = ?,
			recorded_at_yyyymmdd = ?, released_at_yyyymmdd = ?, released_orig_at_yyyymmdd = ?,
			recorded_at_json = ?, released_at_json = ?, released_orig_at_json = ?,
			publisher = ?, copyright = ?, tags_json = ?, color_rgb = ?, color_idx = ?,
			tempo_bpm = ?, key_signature = ?, time_signature_top = ?, time_signature_bottom = ?, metrics_flags = ?,
			cues_json = ?, last_played_at = ?, times_played = ?
		WHERE uid = ? AND rev_version = ?
	`, next.Version, unixMillis(next.Timestamp),
		encodeJSON(t.Titles), encodeJSON(t.Actors), r.albumTitle, r.albumArtist, r.albumKind,
		r.trackNum, r.trackTotal, r.discNum, r.discTotal, r.movementNum, r.movementTotal,
		r.recordedYMD, r.releasedYMD, r.releasedOrigYMD,
		r.recordedJSON, r.releasedJSON, r.releasedOrigJSON,
		r.publisher, r.copyright, r.tagsJSON, r.colorRGB, r.colorIdx,
		r.tempoBpm, r.keySignature, r.tsTop, r.tsBottom, r.metricsFlags,
		r.cuesJSON, r.lastPlayedAt, r.timesPlayed,
		t.Header.Uid.String(), t.Header.Rev.Version)
	if err != nil {
		return domain.EntityHeader{}, catalogerr.Wrap(catalogerr.Storage, catalogerr.OpStoreUpdate, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.EntityHeader{}, catalogerr.New(catalogerr.Conflict, catalogerr.OpStoreUpdate, "track revision mismatch", nil)
	}
	return domain.EntityHeader{Uid: t.Header.Uid, Rev: next}, nil
}

// TouchTrack bumps a track's revision and play counter without touching
// any other field, used by the play-counter increment operation.
func (s *Store) TouchTrack(ctx context.Context, now time.Time, uid domain.EntityUid, rev domain.EntityRevision, playedAt time.Time) (domain.EntityHeader, error) {
	next := rev.Next(now)
	res, err := s.db.ExecContext(ctx, `
		UPDATE tracks SET rev_version = ?, rev_timestamp = ?, last_played_at = ?, times_played = times_played + 1
		WHERE uid = ? AND rev_version = ?
	`, next.Version, unixMillis(next.Timestamp), unixMillis(playedAt), uid.String(), rev.Version)
	if err != nil {
		return domain.EntityHeader{}, catalogerr.Wrap(catalogerr.Storage, catalogerr.OpStoreTouch, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.EntityHeader{}, catalogerr.New(catalogerr.Conflict, catalogerr.OpStoreTouch, "track revision mismatch", nil)
	}
	return domain.EntityHeader{Uid: uid, Rev: next}, nil
}

// trackBodyColumns lists every track column (and the joined content path)
// scanned by scanTrackBody, in scan order. Queries that also need the uid
// (search, unlike LoadTrack which already has it) select "t.uid" first and
// scan it separately; see search.go.
const trackBodyColumns = `t.rev_version, t.rev_timestamp, t.media_source_id, t.titles_json, t.actors_json,
	t.album_title, t.album_artist, t.album_kind,
	t.track_index, t.track_total, t.disc_index, t.disc_total, t.movement_index, t.movement_total,
	t.recorded_at_json, t.released_at_json, t.released_orig_at_json,
	t.publisher, t.copyright, t.tags_json, t.color_rgb, t.color_idx,
	t.tempo_bpm, t.key_signature, t.time_signature_top, t.time_signature_bottom, t.metrics_flags,
	t.cues_json, t.last_played_at, t.times_played, ms.content_path`

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// LoadTrack loads a track by uid, joined with its media source's content path.
func (s *Store) LoadTrack(ctx context.Context, uid domain.EntityUid) (domain.Track, string, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+trackBodyColumns+`
		FROM tracks t JOIN media_sources ms ON ms.id = t.media_source_id
		WHERE t.uid = ?
	`, uid.String())
	t, contentPath, err := scanTrackBody(row)
	if err != nil {
		return domain.Track{}, "", err
	}
	t.Header.Uid = uid
	return t, contentPath, nil
}

// LoadTrackByMediaSourceID loads the track owned by mediaSourceID, used by
// the import pipeline to decide whether a file being (re-)imported already
// has a track on record.
func (s *Store) LoadTrackByMediaSourceID(ctx context.Context, mediaSourceID int64) (domain.Track, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT t.uid, `+trackBodyColumns+`
		FROM tracks t JOIN media_sources ms ON ms.id = t.media_source_id
		WHERE t.media_source_id = ?
	`, mediaSourceID)
	var uidStr string
	t, _, err := scanTrackBody(&uidPrefixedScanner{delegate: row, uid: &uidStr})
	if err != nil {
		return domain.Track{}, err
	}
	uid, err := domain.ParseEntityUid(uidStr)
	if err != nil {
		return domain.Track{}, catalogerr.Wrap(catalogerr.Storage, catalogerr.OpStoreLoad, err)
	}
	t.Header.Uid = uid
	return t, nil
}

// ListTracksUnderPath returns every track whose media source's content
// path falls under rootPath (its own path, or a path one level or more
// below it), for the informational unsynchronized-tracks scan (step 7).
func (s *Store) ListTracksUnderPath(ctx context.Context, collectionID int64, rootPath string) ([]domain.TrackAtPath, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.uid, `+trackBodyColumns+`
		FROM tracks t JOIN media_sources ms ON ms.id = t.media_source_id
		WHERE ms.collection_id = ? AND (ms.content_path = ? OR ms.content_path LIKE ?)
	`, collectionID, rootPath, likePrefix(rootPath))
	if err != nil {
		return nil, catalogerr.Wrap(catalogerr.Storage, catalogerr.OpStoreSearch, err)
	}
	defer rows.Close()

	var out []domain.TrackAtPath
	for rows.Next() {
		var uidStr string
		t, contentPath, err := scanTrackBody(&uidPrefixedScanner{delegate: rows, uid: &uidStr})
		if err != nil {
			return nil, err
		}
		uid, err := domain.ParseEntityUid(uidStr)
		if err != nil {
			return nil, catalogerr.Wrap(catalogerr.Storage, catalogerr.OpStoreSearch, err)
		}
		t.Header.Uid = uid
		out = append(out, domain.TrackAtPath{Track: t, ContentPath: contentPath})
	}
	if err := rows.Err(); err != nil {
		return nil, catalogerr.Wrap(catalogerr.Storage, catalogerr.OpStoreSearch, err)
	}
	return out, nil
}

// scanTrackBody scans trackBodyColumns (everything but uid) from s.
func scanTrackBody(s scanner) (domain.Track, string, error) {
	var t domain.Track
	var revVersion uint64
	var revTimestamp int64
	var titlesJSON, actorsJSON, tagsJSON, cuesJSON string
	var recordedJSON, releasedJSON, releasedOrigJSON string
	var keySignature int
	var metricsFlags uint32
	var colorRGB sql.NullString
	var colorIdx sql.NullInt64
	var tempoBpm sql.NullFloat64
	var lastPlayedAt sql.NullInt64
	var contentPath string
	if err := s.Scan(&revVersion, &revTimestamp, &t.MediaSourceID, &titlesJSON, &actorsJSON,
		&t.Album.Title, &t.Album.ArtistName, &t.Album.Kind,
		&t.Indexes.Track.Number, &t.Indexes.Track.Total, &t.Indexes.Disc.Number, &t.Indexes.Disc.Total, &t.Indexes.Movement.Number, &t.Indexes.Movement.Total,
		&recordedJSON, &releasedJSON, &releasedOrigJSON,
		&t.Publisher, &t.Copyright, &tagsJSON, &colorRGB, &colorIdx,
		&tempoBpm, &keySignature, &t.Metrics.TimeSignature.Top, &t.Metrics.TimeSignature.Bottom, &metricsFlags,
		&cuesJSON, &lastPlayedAt, &t.PlayCounter.TimesPlayed, &contentPath); err != nil {
		if err == sql.ErrNoRows {
			return domain.Track{}, "", catalogerr.New(catalogerr.NotFound, catalogerr.OpStoreLoad, "track not found", err)
		}
		return domain.Track{}, "", catalogerr.Wrap(catalogerr.Storage, catalogerr.OpStoreLoad, err)
	}
	t.Header.Rev = domain.EntityRevision{Version: revVersion, Timestamp: fromUnixMillis(revTimestamp)}
	t.Metrics.KeySignature = domain.MusicKey(keySignature)
	t.Metrics.Flags = domain.MetricsFlags(metricsFlags)
	decodeJSON(titlesJSON, &t.Titles)
	decodeJSON(actorsJSON, &t.Actors)
	decodeJSON(tagsJSON, &t.Tags)
	decodeJSON(cuesJSON, &t.Cues)
	if recordedJSON != "" {
		decodeJSON(recordedJSON, &t.RecordedAt)
	}
	if releasedJSON != "" {
		decodeJSON(releasedJSON, &t.ReleasedAt)
	}
	if releasedOrigJSON != "" {
		decodeJSON(releasedOrigJSON, &t.ReleasedOrigAt)
	}
	t.Color = decodeColor(colorRGB, colorIdx)
	if tempoBpm.Valid {
		t.Metrics.TempoBpm = &tempoBpm.Float64
	}
	if lastPlayedAt.Valid {
		ts := fromUnixMillis(lastPlayedAt.Int64)
		t.PlayCounter.LastPlayedAt = &ts
	}
	return t, contentPath, nil
}

// PurgeTrack deletes a track by uid.
func (s *Store) PurgeTrack(ctx context.Context, uid domain.EntityUid) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tracks WHERE uid = ?`, uid.String())
	if err != nil {
		return catalogerr.Wrap(catalogerr.Storage, catalogerr.OpStorePurge, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return catalogerr.New(catalogerr.NotFound, catalogerr.OpStorePurge, "track not found", nil)
	}
	return nil
}
