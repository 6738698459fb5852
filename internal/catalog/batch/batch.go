// Package batch implements the batch orchestrator (spec.md §4.7, C12): the
// single public façade external collaborators call to rescan a
// collection's content root. It sequences the seven rescan steps — scan,
// untrack orphaned directories, import files, purge untracked media
// sources, purge orphaned media sources, find untracked files, find
// unsynchronized tracks — each run through its own gatekeeper call (a
// write for steps 1-6, a read for step 7), so the lock is released
// between steps rather than held for the whole rescan. Grounded on
// original_source/crates/backend-embedded/src/batch/rescan_collection_vfs.rs.
package batch

import (
	"context"
	"database/sql"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"

	"github.com/llehouerou/waves/internal/catalog/contentpath"
	"github.com/llehouerou/waves/internal/catalog/domain"
	"github.com/llehouerou/waves/internal/catalog/gatekeeper"
	"github.com/llehouerou/waves/internal/catalog/progress"
	"github.com/llehouerou/waves/internal/catalog/tracker"
	"github.com/llehouerou/waves/internal/catalog/tracker/importpipeline"
)

var log = logrus.WithField("component", "batch")

// Repo is the persistence port the rescan drives, the union of what every
// step needs.
type Repo interface {
	importpipeline.Repo

	PurgeUntrackedMediaSources(ctx context.Context, collectionID int64) (int, error)
	PurgeOrphanedMediaSources(ctx context.Context, collectionID int64) (int, error)
}

// Params configures one Rescan call.
type Params struct {
	RootPath     string
	MaxDepth     *int
	SyncMode     importpipeline.SyncMode
	ImportConfig importpipeline.ImportConfig

	// PurgeUntrackedMediaSources, if set, runs step 4: irreversibly
	// deletes every media source (and its track) no longer covered by any
	// tracked directory.
	PurgeUntrackedMediaSources bool
	// PurgeOrphanedMediaSources, if set, runs step 5: irreversibly
	// deletes every media source that no track references any longer.
	PurgeOrphanedMediaSources bool
	// FindUntrackedFiles, if set, runs step 6: an informational re-walk
	// reporting files with no media source on record.
	FindUntrackedFiles bool
	// FindUnsynchronizedTracks, if set, runs step 7: an informational
	// comparison of stored vs on-disk file revisions.
	FindUnsynchronizedTracks bool
}

// Completion mirrors every step-level Completion at the batch level.
type Completion int

const (
	Finished Completion = iota
	Aborted
)

// Outcome collects every step's result. A step's field is nil if the step
// never ran, either because it's optional and params didn't request it,
// or because a prior step aborted first.
type Outcome struct {
	Completion Completion

	ScanDirectories            *tracker.ScanOutcome
	UntrackOrphanedDirectories *int
	ImportFiles                *importpipeline.Outcome
	PurgeUntrackedMediaSources *int
	PurgeOrphanedMediaSources  *int
	FindUntrackedFiles         *importpipeline.UntrackedFilesOutcome
	FindUnsynchronizedTracks   []importpipeline.UnsynchronizedTrack
}

// Step identifies which rescan step a Progress event belongs to.
type Step int

const (
	StepScanDirectories Step = iota
	StepUntrackOrphanedDirectories
	StepImportFiles
	StepPurgeUntrackedMediaSources
	StepPurgeOrphanedMediaSources
	StepFindUntrackedFiles
	StepFindUnsynchronizedTracks
)

// Progress wraps whichever step is currently running. Only the field
// matching Step is populated.
type Progress struct {
	Step          Step
	Scan          tracker.ScanProgress
	Import        importpipeline.Progress
	FindUntracked importpipeline.UntrackedFilesProgress
}

// Rescan runs all seven steps against collectionID, serializing each one
// through a separate gatekeeper call (RunWrite, or RunRead for step 7) so
// no single step holds the lock for the whole rescan. abort is checked between every step (and
// passed through to the three steps that can abort mid-stream themselves)
// so a long rescan can be cancelled without waiting for it to finish.
func Rescan(
	ctx context.Context,
	gk *gatekeeper.Gatekeeper,
	repo Repo,
	reader importpipeline.MetadataReader,
	resolver contentpath.Resolver,
	collectionID int64,
	params Params,
	abort *progress.AbortFlag,
	sink progress.Sink[Progress],
) (Outcome, error) {
	var out Outcome

	// Step 1 walks params.RootPath on disk; steps 2-7 address the store,
	// which keys directories and media sources by content path.
	rootPath, err := resolver.ResolvePathFromUrl((&url.URL{Scheme: "file", Path: filepath.ToSlash(params.RootPath) + "/"}).String())
	if err != nil {
		return Outcome{}, err
	}
	rootPath = strings.TrimSuffix(rootPath, "/")

	// Step 1: scan directories.
	scanOutcome, err := gatekeeper.RunWrite(ctx, gk, func(_ *sql.DB, _ *progress.AbortFlag) (tracker.ScanOutcome, error) {
		return tracker.ScanDirectories(ctx, repo, resolver, collectionID, params.RootPath, params.MaxDepth, abort,
			progress.Func[tracker.ScanProgress](func(p tracker.ScanProgress) {
				if sink != nil {
					sink.Report(Progress{Step: StepScanDirectories, Scan: p})
				}
			}), nil)
	})
	if err != nil {
		return Outcome{}, err
	}
	out.ScanDirectories = &scanOutcome
	if scanOutcome.Completion == tracker.ScanAborted {
		out.Completion = Aborted
		return out, nil
	}
	if abortedBetweenSteps(abort) {
		out.Completion = Aborted
		return out, nil
	}

	// Step 2: untrack orphaned directories.
	if sink != nil {
		sink.Report(Progress{Step: StepUntrackOrphanedDirectories})
	}
	orphanedStatus := domain.DirOrphaned
	untracked, err := gatekeeper.RunWrite(ctx, gk, func(_ *sql.DB, _ *progress.AbortFlag) (int, error) {
		return repo.UntrackDirectories(ctx, collectionID, rootPath, &orphanedStatus)
	})
	if err != nil {
		return Outcome{}, err
	}
	out.UntrackOrphanedDirectories = &untracked
	if abortedBetweenSteps(abort) {
		out.Completion = Aborted
		return out, nil
	}

	// Step 3: import files.
	importOutcome, err := gatekeeper.RunWrite(ctx, gk, func(_ *sql.DB, _ *progress.AbortFlag) (importpipeline.Outcome, error) {
		return importpipeline.RunImportFiles(ctx, repo, reader, resolver, collectionID, rootPath,
			params.SyncMode, params.ImportConfig, abort,
			progress.Func[importpipeline.Progress](func(p importpipeline.Progress) {
				if sink != nil {
					sink.Report(Progress{Step: StepImportFiles, Import: p})
				}
			}), nil)
	})
	if err != nil {
		return Outcome{}, err
	}
	out.ImportFiles = &importOutcome
	if importOutcome.Completion == importpipeline.Aborted {
		out.Completion = Aborted
		return out, nil
	}
	if abortedBetweenSteps(abort) {
		out.Completion = Aborted
		return out, nil
	}

	// Step 4: purge untracked media sources (optional).
	if sink != nil {
		sink.Report(Progress{Step: StepPurgeUntrackedMediaSources})
	}
	if params.PurgeUntrackedMediaSources {
		purged, err := gatekeeper.RunWrite(ctx, gk, func(_ *sql.DB, _ *progress.AbortFlag) (int, error) {
			return repo.PurgeUntrackedMediaSources(ctx, collectionID)
		})
		if err != nil {
			return Outcome{}, err
		}
		out.PurgeUntrackedMediaSources = &purged
	}
	if abortedBetweenSteps(abort) {
		out.Completion = Aborted
		return out, nil
	}

	// Step 5: purge orphaned media sources (optional).
	if sink != nil {
		sink.Report(Progress{Step: StepPurgeOrphanedMediaSources})
	}
	if params.PurgeOrphanedMediaSources {
		purged, err := gatekeeper.RunWrite(ctx, gk, func(_ *sql.DB, _ *progress.AbortFlag) (int, error) {
			return repo.PurgeOrphanedMediaSources(ctx, collectionID)
		})
		if err != nil {
			return Outcome{}, err
		}
		out.PurgeOrphanedMediaSources = &purged
	}
	if abortedBetweenSteps(abort) {
		out.Completion = Aborted
		return out, nil
	}

	// Step 6: find untracked files (optional/informational).
	if params.FindUntrackedFiles {
		findOutcome, err := gatekeeper.RunWrite(ctx, gk, func(_ *sql.DB, _ *progress.AbortFlag) (importpipeline.UntrackedFilesOutcome, error) {
			return importpipeline.FindUntrackedFiles(ctx, repo, resolver, collectionID, rootPath, params.MaxDepth, abort,
				progress.Func[importpipeline.UntrackedFilesProgress](func(p importpipeline.UntrackedFilesProgress) {
					if sink != nil {
						sink.Report(Progress{Step: StepFindUntrackedFiles, FindUntracked: p})
					}
				}))
		})
		if err != nil {
			return Outcome{}, err
		}
		out.FindUntrackedFiles = &findOutcome
		if findOutcome.Completion == importpipeline.Aborted {
			out.Completion = Aborted
			return out, nil
		}
	}
	if abortedBetweenSteps(abort) {
		out.Completion = Aborted
		return out, nil
	}

	// Step 7: find unsynchronized tracks (optional/informational).
	if sink != nil {
		sink.Report(Progress{Step: StepFindUnsynchronizedTracks})
	}
	if params.FindUnsynchronizedTracks {
		unsynced, err := gatekeeper.RunRead(ctx, gk, func(_ *sql.DB, _ *progress.AbortFlag) ([]importpipeline.UnsynchronizedTrack, error) {
			return importpipeline.FindUnsynchronizedTracks(ctx, repo, resolver, collectionID, rootPath)
		})
		if err != nil {
			return Outcome{}, err
		}
		out.FindUnsynchronizedTracks = unsynced
	}

	out.Completion = Finished
	logOutcome(&out)
	return out, nil
}

// logOutcome emits a one-line summary of the rescan at info level. Counts
// are formatted with humanize.Comma since a large library's import step
// can run into the tens of thousands of tracks and a bare integer is
// harder to eyeball in a log stream.
func logOutcome(out *Outcome) {
	fields := logrus.Fields{}
	if out.ImportFiles != nil {
		t := out.ImportFiles.Tracks
		fields["imported_created"] = humanize.Comma(int64(t.Created))
		fields["imported_updated"] = humanize.Comma(int64(t.Updated))
		fields["imported_failed"] = humanize.Comma(int64(t.Failed + t.NotImported))
	}
	if out.PurgeUntrackedMediaSources != nil {
		fields["purged_untracked"] = humanize.Comma(int64(*out.PurgeUntrackedMediaSources))
	}
	if out.PurgeOrphanedMediaSources != nil {
		fields["purged_orphaned"] = humanize.Comma(int64(*out.PurgeOrphanedMediaSources))
	}
	log.WithFields(fields).Info("rescan finished")
}

func abortedBetweenSteps(abort *progress.AbortFlag) bool {
	if abort == nil {
		return false
	}
	if abort.IsSet() {
		log.Info("aborting rescan between steps")
		return true
	}
	return false
}
