package tracker

import (
	"context"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/llehouerou/waves/internal/catalog/catalogerr"
	"github.com/llehouerou/waves/internal/catalog/contentpath"
	"github.com/llehouerou/waves/internal/catalog/progress"
	"github.com/llehouerou/waves/internal/catalog/tracker/digest"
)

// ScanSummary counts how scan_directories classified each visited directory.
type ScanSummary struct {
	Current  int
	Added    int
	Modified int
	Skipped  int
	Orphaned int
}

// ScanCompletion mirrors digest.Completion at the scan-directories level.
type ScanCompletion int

const (
	ScanFinished ScanCompletion = iota
	ScanAborted
)

// ScanProgress is forwarded to the caller's sink as the walk advances.
type ScanProgress struct {
	Elapsed time.Duration
	Walk    digest.Progress
}

// ScanOutcome is the result of a full ScanDirectories call.
type ScanOutcome struct {
	Completion ScanCompletion
	Summary    ScanSummary
}

// Clock abstracts time.Now for deterministic tests.
type Clock func() time.Time

// ScanDirectories re-digests rootFilePath on disk and reconciles the
// tracked directory table against it: every Current row is first marked
// Outdated, then each visited directory is classified via
// UpdateDirectoryDigest, and finally (only on a clean finish) any row left
// Outdated is marked Orphaned. resolver converts the walk's root-relative
// paths into the form stored by repo, letting a RemappingResolver walk an
// override root while persisting canonical paths. Grounded on
// original_source/crates/usecases/src/media/tracker/scan_directories.rs.
func ScanDirectories(
	ctx context.Context,
	repo Repo,
	resolver contentpath.Resolver,
	collectionID int64,
	rootFilePath string,
	maxDepth *int,
	abort *progress.AbortFlag,
	sink progress.Sink[ScanProgress],
	now Clock,
) (ScanOutcome, error) {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	started := now()
	// repo keys rows by content path, so the mark steps take rootFilePath's
	// content path ("" for the collection root), not the filesystem path.
	rootPath, err := resolver.ResolvePathFromUrl((&url.URL{Scheme: "file", Path: filepath.ToSlash(rootFilePath) + "/"}).String())
	if err != nil {
		return ScanOutcome{}, catalogerr.Wrap(catalogerr.BadRequest, catalogerr.OpTrackerScan, err)
	}
	rootPath = strings.TrimSuffix(rootPath, "/")
	if _, err := repo.MarkCurrentDirectoriesOutdated(ctx, collectionID, rootPath, started); err != nil {
		return ScanOutcome{}, catalogerr.Wrap(catalogerr.Storage, catalogerr.OpTrackerScan, err)
	}

	var summary ScanSummary
	walkOutcome, err := digest.HashDirectories(rootFilePath, maxDepth, abort, progress.Func[digest.Progress](func(p digest.Progress) {
		if sink != nil {
			sink.Report(ScanProgress{Elapsed: now().Sub(started), Walk: p})
		}
	}), func(entry digest.DirEntry) error {
		dirUrl, rerr := resolver.ResolveUrlFromPath(dirSlashPath(entry.RelPath))
		if rerr != nil {
			return rerr
		}
		path, rerr := resolver.ResolvePathFromUrl(dirUrl)
		if rerr != nil {
			return rerr
		}
		// Stored directory paths carry no trailing slash ("a", not "a/").
		path = strings.TrimSuffix(path, "/")
		outcome, uerr := repo.UpdateDirectoryDigest(ctx, collectionID, path, entry.Digest, now())
		if uerr != nil {
			return uerr
		}
		switch outcome {
		case Current:
			summary.Current++
		case Inserted:
			summary.Added++
		case Updated:
			summary.Modified++
		case Skipped:
			summary.Skipped++
		}
		return nil
	})
	if err != nil {
		return ScanOutcome{}, catalogerr.Wrap(catalogerr.Storage, catalogerr.OpTrackerScan, err)
	}

	if walkOutcome.Completion == digest.Aborted {
		return ScanOutcome{Completion: ScanAborted, Summary: summary}, nil
	}
	orphaned, oerr := repo.MarkOutdatedDirectoriesOrphaned(ctx, collectionID, rootPath, now())
	if oerr != nil {
		return ScanOutcome{}, catalogerr.Wrap(catalogerr.Storage, catalogerr.OpTrackerScan, oerr)
	}
	summary.Orphaned = orphaned
	return ScanOutcome{Completion: ScanFinished, Summary: summary}, nil
}

// dirSlashPath renders a walk-relative path as a directory path (trailing
// slash), matching resolver directory semantics; the root itself ("") is
// left unchanged so it resolves to the base URL.
func dirSlashPath(relPath string) string {
	if relPath == "" {
		return ""
	}
	return relPath + "/"
}
