package importpipeline

import (
	"context"
	"database/sql"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/llehouerou/waves/internal/catalog/catalogerr"
	"github.com/llehouerou/waves/internal/catalog/contentpath"
	"github.com/llehouerou/waves/internal/catalog/domain"
	"github.com/llehouerou/waves/internal/catalog/progress"
	"github.com/llehouerou/waves/internal/catalog/tracker"
	"github.com/llehouerou/waves/internal/db"
)

var log = logrus.WithField("component", "importpipeline")

// RunImportFiles drives step 3 of the rescan (spec.md §4.7): it pages
// through rootPath's directories awaiting confirmation (status Added or
// Modified), offset-based one directory at a time, importing each one's
// audio files and confirming the directory's digest once done. Only
// skipped directories stay in the pending set across pages — confirmed
// and untracked directories change status and drop out of the query — so
// the offset tracks cumulative Directory.Skipped, not the page count.
func RunImportFiles(
	ctx context.Context,
	repo Repo,
	reader MetadataReader,
	resolver contentpath.Resolver,
	collectionID int64,
	rootPath string,
	syncMode SyncMode,
	cfg ImportConfig,
	abort *progress.AbortFlag,
	sink progress.Sink[Progress],
	now tracker.Clock,
) (Outcome, error) {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	var out Outcome
	for {
		if sink != nil {
			sink.Report(Progress{Tracks: out.Tracks, Directory: out.Directory})
		}
		if abort != nil && abort.IsSet() {
			out.Completion = Aborted
			return out, nil
		}
		pending, err := repo.LoadDirectoriesRequiringConfirmation(ctx, collectionID, rootPath, out.Directory.Skipped, 1)
		if err != nil {
			return Outcome{}, catalogerr.Wrap(catalogerr.Storage, catalogerr.OpTrackerImport, err)
		}
		if len(pending) == 0 {
			out.Completion = Finished
			if sink != nil {
				sink.Report(Progress{Tracks: out.Tracks, Directory: out.Directory})
			}
			return out, nil
		}

		dir := pending[0]
		kind, tracks, err := importDirectory(ctx, repo, reader, resolver, collectionID, dir, syncMode, cfg, now)
		out.Tracks.add(tracks)
		if err != nil {
			return Outcome{}, catalogerr.Wrap(catalogerr.Storage, catalogerr.OpTrackerImport, err)
		}
		switch kind {
		case dirConfirmed:
			out.Directory.Confirmed++
		case dirRejected:
			out.Directory.Rejected++
		case dirSkipped:
			out.Directory.Skipped++
			log.WithField("path", dir.Path).Debug("skipping directory for this pass")
		case dirUntracked:
			n, uerr := repo.UntrackDirectories(ctx, collectionID, dir.Path, nil)
			if uerr != nil {
				return Outcome{}, catalogerr.Wrap(catalogerr.Storage, catalogerr.OpTrackerImport, uerr)
			}
			out.Directory.Untracked += n
			log.WithField("path", dir.Path).Info("untracked missing directory")
		}
	}
}

type dirResultKind int

const (
	dirConfirmed dirResultKind = iota
	dirRejected
	dirSkipped
	dirUntracked
)

// importDirectory imports every recognized audio file directly inside
// dir, then confirms dir's digest. Grounded on
// original_source/.../import.rs's per-directory match arm: a missing
// directory is reported to the caller as dirUntracked; any other
// directory-level I/O error is dirSkipped (logged, retried next run).
func importDirectory(
	ctx context.Context,
	repo Repo,
	reader MetadataReader,
	resolver contentpath.Resolver,
	collectionID int64,
	dir domain.TrackedDirectory,
	syncMode SyncMode,
	cfg ImportConfig,
	now tracker.Clock,
) (dirResultKind, TrackSummary, error) {
	var tracks TrackSummary

	dirUrl, err := resolver.ResolveUrlFromPath(dirSlashPath(dir.Path))
	if err != nil {
		return dirSkipped, tracks, nil
	}
	fsDir, err := contentpath.FilePath(dirUrl)
	if err != nil {
		return dirSkipped, tracks, nil
	}

	entries, err := os.ReadDir(fsDir)
	if err != nil {
		if isNotExist(err) {
			return dirUntracked, tracks, nil
		}
		log.WithField("path", dir.Path).WithError(err).Warn("failed to list directory")
		return dirSkipped, tracks, nil
	}

	seen := make(map[string]bool, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !IsAudioFile(entry.Name()) {
			continue
		}
		contentPath := path.Join(dir.Path, entry.Name())
		seen[contentPath] = true
		fullPath := filepath.Join(fsDir, entry.Name())
		delta, ierr := importFile(ctx, repo, reader, collectionID, contentPath, fullPath, syncMode, cfg, now)
		if ierr != nil {
			return dirSkipped, tracks, ierr
		}
		tracks.add(delta)
	}

	missing, err := missingTracks(ctx, repo, collectionID, dir.Path, seen)
	if err != nil {
		log.WithField("path", dir.Path).WithError(err).Warn("failed to check for missing files")
		return dirSkipped, tracks, nil
	}
	tracks.Missing += missing

	confirmed, err := repo.ConfirmDirectoryDigestCurrent(ctx, collectionID, dir.Path, "", dir.Digest, now())
	if err != nil {
		log.WithField("path", dir.Path).WithError(err).Warn("failed to confirm directory")
		return dirSkipped, tracks, nil
	}
	if !confirmed {
		return dirRejected, tracks, nil
	}
	return dirConfirmed, tracks, nil
}

// missingTracks deletes the track row of every media source already on
// record directly inside dirPath but not among seen: a single file
// deleted while its directory stays tracked (as opposed to the whole
// directory disappearing, which dirUntracked handles instead). The media
// source row is left behind, dangling, for step 5 to purge.
func missingTracks(ctx context.Context, repo Repo, collectionID int64, dirPath string, seen map[string]bool) (int, error) {
	known, err := repo.ListMediaSourcePathsInDirectory(ctx, collectionID, dirPath)
	if err != nil {
		return 0, err
	}
	var count int
	for _, contentPath := range known {
		if seen[contentPath] {
			continue
		}
		msID, _, err := repo.LoadMediaSourceByPath(ctx, collectionID, contentPath)
		if err != nil {
			if catalogerr.KindOf(err) == catalogerr.NotFound {
				continue
			}
			return count, err
		}
		werr := db.WithTx(repo.DB(), func(tx *sql.Tx) error {
			return repo.DeleteTrackByMediaSourceID(ctx, tx, msID)
		})
		if werr != nil {
			return count, werr
		}
		count++
	}
	return count, nil
}

// importFile applies SyncMode to one file and, if the policy calls for a
// write, parses it and replaces its track in the store.
func importFile(
	ctx context.Context,
	repo Repo,
	reader MetadataReader,
	collectionID int64,
	contentPath, fullPath string,
	syncMode SyncMode,
	cfg ImportConfig,
	now tracker.Clock,
) (TrackSummary, error) {
	info, err := os.Stat(fullPath)
	if err != nil {
		return TrackSummary{Failed: 1}, nil
	}

	msID, existingMS, err := repo.LoadMediaSourceByPath(ctx, collectionID, contentPath)
	hasExisting := err == nil
	if err != nil && catalogerr.KindOf(err) != catalogerr.NotFound {
		return TrackSummary{Failed: 1}, nil
	}

	var existingTrack domain.Track
	if hasExisting {
		existingTrack, err = repo.LoadTrackByMediaSourceID(ctx, msID)
		if err != nil {
			if catalogerr.KindOf(err) == catalogerr.NotFound {
				hasExisting = false
			} else {
				return TrackSummary{Failed: 1}, nil
			}
		}
	}

	newRev := fileRevision(info.ModTime())
	if syncMode == SyncOnce && hasExisting {
		return TrackSummary{Unchanged: 1}, nil
	}
	if syncMode == SyncModified && hasExisting && cfg.Flags&ComputeDigest == 0 && existingMS.ContentLink.Rev == newRev {
		return TrackSummary{Unchanged: 1}, nil
	}

	draft, err := reader.Read(ctx, fullPath, cfg)
	if err != nil {
		if catalogerr.KindOf(err) == catalogerr.Io {
			return TrackSummary{Failed: 1}, nil
		}
		return TrackSummary{NotImported: 1}, nil
	}

	if syncMode == SyncModified && hasExisting && cfg.Flags&ComputeDigest != 0 {
		if bytesEqual(existingMS.ContentDigest, draft.MediaSource.ContentDigest) {
			return TrackSummary{Unchanged: 1}, nil
		}
	}

	draft.MediaSource.ContentLink = domain.ContentLink{Path: contentPath, Rev: newRev}
	if hasExisting {
		draft.MediaSource.CollectedAt = existingMS.CollectedAt
	} else {
		draft.MediaSource.CollectedAt = now()
	}

	writeErr := db.WithTx(repo.DB(), func(tx *sql.Tx) error {
		newMsID, err := repo.InsertOrReplaceMediaSource(ctx, tx, collectionID, draft.MediaSource)
		if err != nil {
			return err
		}
		if hasExisting {
			t := draft.Track
			t.Header = existingTrack.Header
			t.MediaSourceID = newMsID
			_, err = repo.UpdateTrack(ctx, tx, now(), t)
			return err
		}
		_, err = repo.InsertTrack(ctx, tx, now(), collectionID, newMsID, draft.Track)
		return err
	})
	if writeErr != nil {
		if hasExisting {
			return TrackSummary{NotUpdated: 1}, nil
		}
		return TrackSummary{NotCreated: 1}, nil
	}
	if hasExisting {
		return TrackSummary{Updated: 1}, nil
	}
	return TrackSummary{Created: 1}, nil
}

func isNotExist(err error) bool {
	var pathErr *fs.PathError
	if os.IsNotExist(err) {
		return true
	}
	if pe, ok := err.(*fs.PathError); ok {
		pathErr = pe
		return os.IsNotExist(pathErr.Err)
	}
	return false
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// dirSlashPath renders a tracked directory's stored path as a directory
// path (trailing slash) for resolver lookups, matching tracker.scan.go's
// helper of the same name (root path "" is left unchanged).
func dirSlashPath(p string) string {
	if p == "" {
		return ""
	}
	return p + "/"
}
