// Package relink implements the relinker (spec.md §4.8, C8): when a
// tracked file moves to a new location inside the same collection, the
// old scan leaves behind a track whose media source lost its tracked
// directory while a rescan picks up the moved file as a brand new track.
// Relink finds, for each such orphaned track, the single most likely
// successor among freshly tracked-but-unmatched candidates and merges the
// two: the orphaned track's identity (uid, revision history, play
// counter, collected_at) is kept, its content and musical metadata are
// replaced with the candidate's, and the candidate's own track row is
// discarded. Grounded on
// original_source/crates/usecases/src/media/tracker/relink.rs and its
// candidate search, original_source/crates/usecases/src/track/find_duplicates.rs.
package relink

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"

	"github.com/llehouerou/waves/internal/catalog/catalogerr"
	"github.com/llehouerou/waves/internal/catalog/domain"
	"github.com/llehouerou/waves/internal/catalog/progress"
	"github.com/llehouerou/waves/internal/catalog/store"
	"github.com/llehouerou/waves/internal/catalog/store/search"
	"github.com/llehouerou/waves/internal/catalog/tracker"
	"github.com/llehouerou/waves/internal/db"
)

var log = logrus.WithField("component", "relink")

// SearchFlags selects which of a lost track's fields narrow the candidate
// search, mirroring find_duplicates.rs's SearchFlags bitmask.
type SearchFlags uint8

const (
	FlagSourceTracked SearchFlags = 1 << iota
	FlagAlbumArtist
	FlagAlbumTitle
	FlagTrackArtist
	FlagTrackTitle
	FlagRecordedAt
	FlagReleasedAt
	FlagReleasedOrigAt

	FlagsNone SearchFlags = 0
	FlagsAll              = FlagSourceTracked | FlagAlbumArtist | FlagAlbumTitle |
		FlagTrackArtist | FlagTrackTitle | FlagRecordedAt | FlagReleasedAt | FlagReleasedOrigAt
)

// Params configures the per-lost-track candidate search.
type Params struct {
	// AudioDurationToleranceMs is the +/- window a candidate's audio
	// duration must fall within to be considered.
	AudioDurationToleranceMs float64
	// MaxResults bounds how many candidates are fetched; more than one
	// after this bound still means "ambiguous, skip" (find_duplicates.rs's
	// MIN_MAX_RESULTS = 2: a second result is only needed to tell unique
	// from ambiguous).
	MaxResults  int
	SearchFlags SearchFlags
}

// DefaultParams mirrors find_duplicates::Params::new().
func DefaultParams() Params {
	return Params{AudioDurationToleranceMs: 500, MaxResults: 2, SearchFlags: FlagsAll}
}

// Repo is the persistence port the relinker drives.
type Repo interface {
	DB() *sql.DB
	SearchTracks(ctx context.Context, collectionID int64, filter search.Filter, sort []search.SortKey, page search.Pagination) ([]store.TrackResult, error)
	LoadMediaSourceByPath(ctx context.Context, collectionID int64, contentPath string) (int64, domain.MediaSource, error)
	LoadTrackByMediaSourceID(ctx context.Context, mediaSourceID int64) (domain.Track, error)
	UpdateTrack(ctx context.Context, tx *sql.Tx, now time.Time, t domain.Track) (domain.EntityHeader, error)
	ReplaceMediaSourceContent(ctx context.Context, tx *sql.Tx, mediaSourceID int64, ms domain.MediaSource) error
	PurgeMediaSourceByID(ctx context.Context, tx *sql.Tx, mediaSourceID int64) error
}

// RelocatedMediaSource records one successful relink.
type RelocatedMediaSource struct {
	OldPath string
	NewPath string
}

// Progress is reported once per lost track considered.
type Progress struct {
	Total    int
	Relinked int
	Skipped  int
}

// RelinkTracksWithUntrackedMediaSources searches collectionID for tracks
// whose media source is currently untracked (orphaned directory) and, for
// each, looks for a single unambiguous successor among tracked media
// sources. Unique matches are relinked; zero or multiple candidates are
// skipped and logged, never guessed at (spec.md §4.8 invariant: relink
// only acts on an unambiguous single candidate).
func RelinkTracksWithUntrackedMediaSources(
	ctx context.Context,
	repo Repo,
	collectionID int64,
	params Params,
	abort *progress.AbortFlag,
	sink progress.Sink[Progress],
	now tracker.Clock,
) ([]RelocatedMediaSource, error) {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	if params.MaxResults <= 0 {
		params.MaxResults = DefaultParams().MaxResults
	}
	// The candidate search always restricts to tracked media sources: a
	// successor only exists once a rescan has picked the moved file back
	// up as a new, tracked track (find_duplicates.rs forces this the same
	// way before calling find_duplicates).
	params.SearchFlags |= FlagSourceTracked

	lost, err := repo.SearchTracks(ctx, collectionID,
		search.Condition{Cond: search.SourceUntracked},
		[]search.SortKey{{Field: search.SortCollectedAt, Direction: search.Descending}},
		search.Pagination{})
	if err != nil {
		return nil, catalogerr.Wrap(catalogerr.Storage, catalogerr.OpRelink, err)
	}

	prog := Progress{Total: len(lost)}
	var relocated []RelocatedMediaSource
	for _, lostTrack := range lost {
		if abort != nil && abort.IsSet() {
			log.Info("aborting relink")
			return relocated, nil
		}
		if sink != nil {
			sink.Report(prog)
		}

		candidates, err := findCandidates(ctx, repo, collectionID, lostTrack, params)
		if err != nil {
			return nil, err
		}
		switch len(candidates) {
		case 0:
			log.WithField("path", lostTrack.ContentPath).Warn("no successor found for relocated track")
			prog.Skipped++
			continue
		case 1:
			// unambiguous, fall through
		default:
			log.WithFields(logrus.Fields{"path": lostTrack.ContentPath, "candidates": len(candidates)}).
				Warn("found multiple potential successors, skipping")
			prog.Skipped++
			continue
		}

		newPath := candidates[0].ContentPath
		if err := relinkOne(ctx, repo, collectionID, lostTrack.ContentPath, newPath, now); err != nil {
			return nil, err
		}
		log.WithFields(logrus.Fields{"old_path": lostTrack.ContentPath, "new_path": newPath}).Info("relinked track")
		relocated = append(relocated, RelocatedMediaSource{OldPath: lostTrack.ContentPath, NewPath: newPath})
		prog.Relinked++
	}
	if sink != nil {
		sink.Report(prog)
	}
	return relocated, nil
}

// findCandidates builds the All-filter for lostTrack per params.SearchFlags
// and returns at most params.MaxResults tracked matches, excluding
// lostTrack itself (impossible here since candidates are required tracked
// while lostTrack's own source is untracked, but checked defensively).
func findCandidates(ctx context.Context, repo Repo, collectionID int64, lostTrack store.TrackResult, params Params) ([]store.TrackResult, error) {
	_, lostMS, err := repo.LoadMediaSourceByPath(ctx, collectionID, lostTrack.ContentPath)
	if err != nil {
		return nil, catalogerr.Wrap(catalogerr.Storage, catalogerr.OpRelink, err)
	}

	t := lostTrack.Track
	var all []search.Filter

	if params.SearchFlags&FlagTrackArtist != 0 {
		if artist, ok := t.Actors.MainActor(domain.ActorArtist); ok {
			if name := strings.TrimSpace(artist.Name); name != "" {
				all = append(all, search.ActorPhrase{Scope: search.ScopeTrack, Roles: []domain.ActorRole{domain.ActorArtist}, NameTerms: []string{name}})
			}
		}
	}
	if params.SearchFlags&FlagTrackTitle != 0 {
		if title, ok := t.MainTitle(); ok {
			if title = strings.TrimSpace(title); title != "" {
				all = append(all, search.TitlePhrase{Scope: search.ScopeTrack, NameTerms: []string{title}})
			}
		}
	}
	if params.SearchFlags&FlagAlbumArtist != 0 {
		if name := strings.TrimSpace(t.Album.ArtistName); name != "" {
			all = append(all, search.ActorPhrase{Scope: search.ScopeAlbum, NameTerms: []string{name}})
		}
	}
	if params.SearchFlags&FlagAlbumTitle != 0 {
		if title := strings.TrimSpace(t.Album.Title); title != "" {
			all = append(all, search.TitlePhrase{Scope: search.ScopeAlbum, NameTerms: []string{title}})
		}
	}
	if params.SearchFlags&FlagRecordedAt != 0 && t.RecordedAt != nil {
		all = append(all, dateEquals(search.FieldRecordedAt, *t.RecordedAt))
	}
	if params.SearchFlags&FlagReleasedAt != 0 && t.ReleasedAt != nil {
		all = append(all, dateEquals(search.FieldReleasedAt, *t.ReleasedAt))
	}
	if params.SearchFlags&FlagReleasedOrigAt != 0 && t.ReleasedOrigAt != nil {
		all = append(all, dateEquals(search.FieldReleasedOrigAt, *t.ReleasedOrigAt))
	}
	if params.SearchFlags&FlagSourceTracked != 0 {
		all = append(all, search.Condition{Cond: search.SourceTracked})
	}
	all = append(all, durationAround(lostMS.Audio.DurationMs, params.AudioDurationToleranceMs))

	limit := params.MaxResults
	candidates, err := repo.SearchTracks(ctx, collectionID, search.All{Filters: all},
		[]search.SortKey{{Field: search.SortCollectedAt, Direction: search.Descending}},
		search.Pagination{Limit: &limit})
	if err != nil {
		return nil, catalogerr.Wrap(catalogerr.Storage, catalogerr.OpRelink, err)
	}

	out := candidates[:0]
	for _, c := range candidates {
		if c.ContentPath == lostTrack.ContentPath {
			continue
		}
		_, candMS, err := repo.LoadMediaSourceByPath(ctx, collectionID, c.ContentPath)
		if err != nil {
			continue
		}
		if !floats.EqualWithinAbs(float64(candMS.Audio.DurationMs), float64(lostMS.Audio.DurationMs), params.AudioDurationToleranceMs) {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func dateEquals(field search.DateField, d domain.DateOrDateTime) search.Filter {
	value := search.DateValue(d)
	return search.DateTime{Field: field, Pred: search.DatePredicate{Op: search.Equal, Value: &value}}
}

func durationAround(durationMs int64, toleranceMs float64) search.Filter {
	lo := float64(durationMs) - toleranceMs
	hi := float64(durationMs) + toleranceMs
	return search.All{Filters: []search.Filter{
		search.Numeric{Field: search.FieldAudioDurationMs, Pred: search.NumericPredicate{Op: search.GreaterOrEqual, Value: &lo}},
		search.Numeric{Field: search.FieldAudioDurationMs, Pred: search.NumericPredicate{Op: search.LessOrEqual, Value: &hi}},
	}}
}

// relinkOne merges newContentPath's media source and track into
// oldContentPath's: the old row keeps its identity (uid, revision chain,
// collected_at, play counter) but its content and musical metadata become
// the candidate's, and the candidate's own row is purged. Idempotent: if
// oldContentPath or newContentPath no longer resolve to a media source
// (e.g. a previous pass already relinked them), this is a no-op rather
// than an error (spec.md §4.8 invariant 11).
func relinkOne(ctx context.Context, repo Repo, collectionID int64, oldContentPath, newContentPath string, now tracker.Clock) error {
	oldMsID, oldMS, err := repo.LoadMediaSourceByPath(ctx, collectionID, oldContentPath)
	if err != nil {
		if catalogerr.KindOf(err) == catalogerr.NotFound {
			return nil
		}
		return catalogerr.Wrap(catalogerr.Storage, catalogerr.OpRelink, err)
	}
	oldTrack, err := repo.LoadTrackByMediaSourceID(ctx, oldMsID)
	if err != nil {
		return catalogerr.Wrap(catalogerr.Storage, catalogerr.OpRelink, err)
	}
	candMsID, candMS, err := repo.LoadMediaSourceByPath(ctx, collectionID, newContentPath)
	if err != nil {
		if catalogerr.KindOf(err) == catalogerr.NotFound {
			return nil
		}
		return catalogerr.Wrap(catalogerr.Storage, catalogerr.OpRelink, err)
	}
	candTrack, err := repo.LoadTrackByMediaSourceID(ctx, candMsID)
	if err != nil {
		return catalogerr.Wrap(catalogerr.Storage, catalogerr.OpRelink, err)
	}

	txErr := db.WithTx(repo.DB(), func(tx *sql.Tx) error {
		if err := repo.PurgeMediaSourceByID(ctx, tx, candMsID); err != nil {
			return err
		}
		updatedMS := candMS
		updatedMS.CollectedAt = oldMS.CollectedAt
		if err := repo.ReplaceMediaSourceContent(ctx, tx, oldMsID, updatedMS); err != nil {
			return err
		}
		updatedTrack := candTrack
		updatedTrack.Header = oldTrack.Header
		updatedTrack.MediaSourceID = oldMsID
		updatedTrack.PlayCounter = oldTrack.PlayCounter
		_, err := repo.UpdateTrack(ctx, tx, now(), updatedTrack)
		return err
	})
	if txErr != nil {
		return catalogerr.Wrap(catalogerr.Storage, catalogerr.OpRelink, txErr)
	}
	return nil
}
