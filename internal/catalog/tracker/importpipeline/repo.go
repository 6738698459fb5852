package importpipeline

import (
	"context"
	"database/sql"
	"time"

	"github.com/llehouerou/waves/internal/catalog/domain"
	"github.com/llehouerou/waves/internal/catalog/tracker"
)

// Repo is the persistence port step 3 drives: the tracker's directory
// confirmation queries plus the media-source/track replace operations.
// internal/catalog/store.Store satisfies it directly, the same way it
// satisfies tracker.Repo.
type Repo interface {
	tracker.Repo

	DB() *sql.DB

	LoadMediaSourceByPath(ctx context.Context, collectionID int64, contentPath string) (int64, domain.MediaSource, error)
	InsertOrReplaceMediaSource(ctx context.Context, tx *sql.Tx, collectionID int64, ms domain.MediaSource) (int64, error)
	// ListMediaSourcePathsInDirectory backs the missing-file check: the set
	// of content paths import_files already knows about directly inside a
	// directory, compared against what it just saw on disk.
	ListMediaSourcePathsInDirectory(ctx context.Context, collectionID int64, dirPath string) ([]string, error)
	DeleteTrackByMediaSourceID(ctx context.Context, tx *sql.Tx, mediaSourceID int64) error

	LoadTrackByMediaSourceID(ctx context.Context, mediaSourceID int64) (domain.Track, error)
	InsertTrack(ctx context.Context, tx *sql.Tx, now time.Time, collectionID, mediaSourceID int64, t domain.Track) (domain.EntityHeader, error)
	UpdateTrack(ctx context.Context, tx *sql.Tx, now time.Time, t domain.Track) (domain.EntityHeader, error)

	// ListTracksUnderPath is used by step 7 (find unsynchronized tracks):
	// it needs every already-imported track under the subtree, without
	// re-running the tracker's directory-confirmation bookkeeping.
	ListTracksUnderPath(ctx context.Context, collectionID int64, rootPath string) ([]domain.TrackAtPath, error)
}
