// Package store is the sqlite-backed entity store (spec.md §4.3, C3): it
// persists collections, media sources, tracks, playlists, and tracked
// directories, enforcing optimistic-revision concurrency on every mutation.
// Grounded on the teacher's internal/state/schema.go migration idiom
// (idempotent CREATE TABLE IF NOT EXISTS, with no ALTER TABLE steps) and
// original_source/repo-sqlite/src/repo/media/dir_tracker for the tracked
// directory table's transition semantics.
package store

import "database/sql"

const currentSchemaVersion = 1

func initSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY
		);

		CREATE TABLE IF NOT EXISTS collections (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			uid TEXT NOT NULL UNIQUE,
			rev_version INTEGER NOT NULL,
			rev_timestamp INTEGER NOT NULL,
			title TEXT NOT NULL,
			kind TEXT NOT NULL DEFAULT '',
			notes TEXT NOT NULL DEFAULT '',
			color_rgb TEXT,
			color_idx INTEGER,
			path_kind INTEGER NOT NULL,
			path_root_url TEXT NOT NULL DEFAULT ''
		);

		CREATE TABLE IF NOT EXISTS tracked_directories (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			collection_id INTEGER NOT NULL REFERENCES collections(id) ON DELETE CASCADE,
			path TEXT NOT NULL,
			status INTEGER NOT NULL,
			digest BLOB NOT NULL,
			last_visited_at INTEGER NOT NULL,
			UNIQUE(collection_id, path)
		);

		CREATE INDEX IF NOT EXISTS idx_tracked_directories_status
			ON tracked_directories(collection_id, status, path);

		CREATE TABLE IF NOT EXISTS media_sources (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			collection_id INTEGER NOT NULL REFERENCES collections(id) ON DELETE CASCADE,
			collected_at INTEGER NOT NULL,
			content_path TEXT NOT NULL,
			content_rev TEXT NOT NULL DEFAULT '',
			content_type TEXT NOT NULL DEFAULT '',
			content_digest BLOB,
			duration_ms INTEGER NOT NULL DEFAULT 0,
			channels INTEGER NOT NULL DEFAULT 0,
			sample_rate_hz INTEGER NOT NULL DEFAULT 0,
			bitrate_bps INTEGER NOT NULL DEFAULT 0,
			loudness_lufs REAL,
			encoder TEXT NOT NULL DEFAULT '',
			artwork_kind INTEGER NOT NULL DEFAULT 0,
			artwork_json TEXT NOT NULL DEFAULT '',
			UNIQUE(collection_id, content_path)
		);

		CREATE INDEX IF NOT EXISTS idx_media_sources_collection ON media_sources(collection_id);

		CREATE TABLE IF NOT EXISTS tracks (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			uid TEXT NOT NULL UNIQUE,
			rev_version INTEGER NOT NULL,
			rev_timestamp INTEGER NOT NULL,
			collection_id INTEGER NOT NULL REFERENCES collections(id) ON DELETE CASCADE,
			media_source_id INTEGER NOT NULL REFERENCES media_sources(id) ON DELETE CASCADE,
			created_at INTEGER NOT NULL,
			titles_json TEXT NOT NULL DEFAULT '[]',
			actors_json TEXT NOT NULL DEFAULT '[]',
			album_title TEXT NOT NULL DEFAULT '',
			album_artist TEXT NOT NULL DEFAULT '',
			album_kind INTEGER NOT NULL DEFAULT 0,
			track_index INTEGER NOT NULL DEFAULT 0,
			track_total INTEGER NOT NULL DEFAULT 0,
			disc_index INTEGER NOT NULL DEFAULT 0,
			disc_total INTEGER NOT NULL DEFAULT 0,
			movement_index INTEGER NOT NULL DEFAULT 0,
			movement_total INTEGER NOT NULL DEFAULT 0,
			recorded_at_yyyymmdd INTEGER,
			released_at_yyyymmdd INTEGER,
			released_orig_at_yyyymmdd INTEGER,
			recorded_at_json TEXT NOT NULL DEFAULT '',
			released_at_json TEXT NOT NULL DEFAULT '',
			released_orig_at_json TEXT NOT NULL DEFAULT '',
			publisher TEXT NOT NULL DEFAULT '',
			copyright TEXT NOT NULL DEFAULT '',
			tags_json TEXT NOT NULL DEFAULT '{}',
			color_rgb TEXT,
			color_idx INTEGER,
			tempo_bpm REAL,
			key_signature INTEGER NOT NULL DEFAULT 0,
			time_signature_top INTEGER NOT NULL DEFAULT 0,
			time_signature_bottom INTEGER NOT NULL DEFAULT 0,
			metrics_flags INTEGER NOT NULL DEFAULT 0,
			cues_json TEXT NOT NULL DEFAULT '[]',
			last_played_at INTEGER,
			times_played INTEGER NOT NULL DEFAULT 0
		);

		CREATE INDEX IF NOT EXISTS idx_tracks_collection ON tracks(collection_id);
		CREATE INDEX IF NOT EXISTS idx_tracks_created_at ON tracks(collection_id, created_at);
		CREATE INDEX IF NOT EXISTS idx_tracks_album ON tracks(collection_id, album_artist, album_title);
		CREATE INDEX IF NOT EXISTS idx_tracks_recorded_at ON tracks(collection_id, recorded_at_yyyymmdd);

		CREATE VIRTUAL TABLE IF NOT EXISTS tracks_fts USING fts5(
			titles, actors, album_title, content=''
		);

		CREATE TABLE IF NOT EXISTS playlists (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			uid TEXT NOT NULL UNIQUE,
			rev_version INTEGER NOT NULL,
			rev_timestamp INTEGER NOT NULL,
			collection_id INTEGER NOT NULL REFERENCES collections(id) ON DELETE CASCADE,
			collected_at INTEGER NOT NULL,
			title TEXT NOT NULL,
			kind TEXT NOT NULL DEFAULT '',
			notes TEXT NOT NULL DEFAULT '',
			color_rgb TEXT,
			color_idx INTEGER
		);

		CREATE TABLE IF NOT EXISTS playlist_entries (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			playlist_id INTEGER NOT NULL REFERENCES playlists(id) ON DELETE CASCADE,
			position INTEGER NOT NULL,
			added_at INTEGER NOT NULL,
			title TEXT NOT NULL DEFAULT '',
			notes TEXT NOT NULL DEFAULT '',
			item_kind INTEGER NOT NULL,
			track_uid TEXT NOT NULL DEFAULT '',
			UNIQUE(playlist_id, position)
		);
	`)
	if err != nil {
		return err
	}
	_, err = db.Exec(`INSERT INTO schema_version (version) SELECT ? WHERE NOT EXISTS (SELECT 1 FROM schema_version)`, currentSchemaVersion)
	return err
}
