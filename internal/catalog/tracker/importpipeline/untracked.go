package importpipeline

import (
	"context"
	"os"
	"path"
	"path/filepath"
	"sort"

	"github.com/llehouerou/waves/internal/catalog/catalogerr"
	"github.com/llehouerou/waves/internal/catalog/contentpath"
	"github.com/llehouerou/waves/internal/catalog/domain"
	"github.com/llehouerou/waves/internal/catalog/progress"
)

// UntrackedFilesProgress is emitted at directory boundaries during
// FindUntrackedFiles, mirroring digest.Progress's shape.
type UntrackedFilesProgress struct {
	DirectoriesFinished int
}

// UntrackedFilesOutcome is the result of step 6, find untracked files: a
// re-walk of the filesystem reporting every terminal (file) entry that
// has no corresponding media source on record.
type UntrackedFilesOutcome struct {
	Completion   Completion
	ContentPaths []string
}

// FindUntrackedFiles re-walks rootPath (step 6, optional/informational):
// for every recognized audio file, it checks whether a media source is
// already on record at that content path; files with none are reported.
// Unlike import_files, this does not consult the tracker's directory
// status at all — it walks the real filesystem directly, so it also
// surfaces files inside directories the tracker has not yet visited.
func FindUntrackedFiles(
	ctx context.Context,
	repo Repo,
	resolver contentpath.Resolver,
	collectionID int64,
	rootPath string,
	maxDepth *int,
	abort *progress.AbortFlag,
	sink progress.Sink[UntrackedFilesProgress],
) (UntrackedFilesOutcome, error) {
	rootUrl, err := resolver.ResolveUrlFromPath(dirSlashPath(rootPath))
	if err != nil {
		return UntrackedFilesOutcome{}, catalogerr.Wrap(catalogerr.BadRequest, catalogerr.OpTrackerImport, err)
	}
	fsRoot, err := contentpath.FilePath(rootUrl)
	if err != nil {
		return UntrackedFilesOutcome{}, catalogerr.Wrap(catalogerr.BadRequest, catalogerr.OpTrackerImport, err)
	}

	w := &untrackedWalker{ctx: ctx, repo: repo, collectionID: collectionID, abort: abort, sink: sink}
	completion, err := w.walk(fsRoot, rootPath, 0, maxDepth)
	if err != nil {
		return UntrackedFilesOutcome{}, err
	}
	return UntrackedFilesOutcome{Completion: completion, ContentPaths: w.found}, nil
}

type untrackedWalker struct {
	ctx          context.Context
	repo         Repo
	collectionID int64
	abort        *progress.AbortFlag
	sink         progress.Sink[UntrackedFilesProgress]
	dirsFinished int
	found        []string
}

func (w *untrackedWalker) walk(absPath, relPath string, depth int, maxDepth *int) (Completion, error) {
	if w.abort != nil && w.abort.IsSet() {
		return Aborted, nil
	}

	entries, err := os.ReadDir(absPath)
	if err != nil {
		log.WithField("path", relPath).WithError(err).Warn("failed to list directory while finding untracked files")
		return Finished, nil
	}
	names := make([]string, len(entries))
	byName := make(map[string]os.DirEntry, len(entries))
	for i, e := range entries {
		names[i] = e.Name()
		byName[e.Name()] = e
	}
	sort.Strings(names)

	var subdirs []string
	for _, name := range names {
		entry := byName[name]
		if entry.Type()&os.ModeSymlink != 0 {
			continue
		}
		if entry.IsDir() {
			subdirs = append(subdirs, name)
			continue
		}
		if !IsAudioFile(name) {
			continue
		}
		contentPath := path.Join(relPath, name)
		_, _, err := w.repo.LoadMediaSourceByPath(w.ctx, w.collectionID, contentPath)
		if err == nil {
			continue
		}
		if catalogerr.KindOf(err) != catalogerr.NotFound {
			return Finished, catalogerr.Wrap(catalogerr.Storage, catalogerr.OpTrackerImport, err)
		}
		w.found = append(w.found, contentPath)
	}

	w.dirsFinished++
	if w.sink != nil {
		w.sink.Report(UntrackedFilesProgress{DirectoriesFinished: w.dirsFinished})
	}

	if maxDepth != nil && depth >= *maxDepth {
		return Finished, nil
	}
	for _, name := range subdirs {
		childRel := name
		if relPath != "" {
			childRel = relPath + "/" + name
		}
		completion, err := w.walk(filepath.Join(absPath, name), childRel, depth+1, maxDepth)
		if err != nil {
			return completion, err
		}
		if completion == Aborted {
			return Aborted, nil
		}
	}
	return Finished, nil
}

// UnsynchronizedTrack is one result of FindUnsynchronizedTracks: a track
// whose stored revision stamp no longer matches what's on disk.
type UnsynchronizedTrack struct {
	Track       domain.Track
	ContentPath string
}

// FindUnsynchronizedTracks lists every track under rootPath whose stored
// revision (MediaSource.ContentLink.Rev, an mtime stamp; see fileRevision)
// no longer matches the file currently on disk (step 7,
// optional/informational). Purely a read: it never re-imports or writes
// anything, unlike SyncModified's equivalent check in importFile.
func FindUnsynchronizedTracks(
	ctx context.Context,
	repo Repo,
	resolver contentpath.Resolver,
	collectionID int64,
	rootPath string,
) ([]UnsynchronizedTrack, error) {
	tracks, err := repo.ListTracksUnderPath(ctx, collectionID, rootPath)
	if err != nil {
		return nil, err
	}

	out := []UnsynchronizedTrack{}
	for _, at := range tracks {
		_, ms, err := repo.LoadMediaSourceByPath(ctx, collectionID, at.ContentPath)
		if err != nil {
			continue
		}
		fileUrl, err := resolver.ResolveUrlFromPath(at.ContentPath)
		if err != nil {
			continue
		}
		fsPath, err := contentpath.FilePath(fileUrl)
		if err != nil {
			continue
		}
		info, err := os.Stat(fsPath)
		if err != nil {
			continue
		}
		if fileRevision(info.ModTime()) != ms.ContentLink.Rev {
			out = append(out, UnsynchronizedTrack{Track: at.Track, ContentPath: at.ContentPath})
		}
	}
	return out, nil
}
