package batch_test

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/llehouerou/waves/internal/catalog/batch"
	"github.com/llehouerou/waves/internal/catalog/contentpath"
	"github.com/llehouerou/waves/internal/catalog/domain"
	"github.com/llehouerou/waves/internal/catalog/gatekeeper"
	"github.com/llehouerou/waves/internal/catalog/progress"
	"github.com/llehouerou/waves/internal/catalog/store"
	"github.com/llehouerou/waves/internal/catalog/tracker/importpipeline"
)

type fixedReader struct{ reads int }

func (f *fixedReader) Read(_ context.Context, _ string, _ importpipeline.ImportConfig) (importpipeline.TrackDraft, error) {
	f.reads++
	return importpipeline.TrackDraft{
		MediaSource: domain.MediaSource{
			ContentType: "audio/mpeg",
			Audio:       domain.AudioMetadata{DurationMs: 180000},
		},
		Track: domain.Track{
			Titles: []domain.Title{{Kind: domain.TitleMain, Name: "Song"}},
			Album:  domain.Album{Title: "Album", ArtistName: "Artist"},
		},
	}, nil
}

func newTestStore(t *testing.T) (*store.Store, *sql.DB) {
	t.Helper()
	sqlDB, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { sqlDB.Close() })
	s, err := store.New(sqlDB)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s, sqlDB
}

func setupCollection(t *testing.T, s *store.Store, root string) int64 {
	t.Helper()
	ctx := context.Background()
	_, header, err := s.InsertCollection(ctx, time.Now().UTC(), domain.Collection{
		Title:      "Coll",
		PathConfig: domain.ContentPathConfig{Kind: domain.ContentPathVirtualFilePath, RootUrl: "file://" + filepath.ToSlash(root) + "/"},
	})
	if err != nil {
		t.Fatalf("InsertCollection: %v", err)
	}
	collID, _, err := s.LoadCollection(ctx, header.Uid)
	if err != nil {
		t.Fatalf("LoadCollection: %v", err)
	}
	return collID
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestRescan_FirstPassCreatesAndConfirms(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a", "ok.mp3"), "hello")

	s, sqlDB := newTestStore(t)
	gk := gatekeeper.New(sqlDB, gatekeeper.Config{})
	resolver, err := contentpath.WithRootUrl("file://" + filepath.ToSlash(root) + "/")
	if err != nil {
		t.Fatalf("WithRootUrl: %v", err)
	}
	collID := setupCollection(t, s, root)

	reader := &fixedReader{}
	outcome, err := batch.Rescan(context.Background(), gk, s, reader, resolver, collID, batch.Params{
		RootPath:                 root,
		FindUntrackedFiles:       true,
		FindUnsynchronizedTracks: true,
	}, nil, progress.NoopSink[batch.Progress]{})
	if err != nil {
		t.Fatalf("Rescan: %v", err)
	}
	if outcome.Completion != batch.Finished {
		t.Fatalf("expected Finished, got %v", outcome.Completion)
	}
	if outcome.ScanDirectories == nil || outcome.ScanDirectories.Summary.Added != 2 {
		t.Errorf("expected 2 added directories (root, a), got %+v", outcome.ScanDirectories)
	}
	if outcome.UntrackOrphanedDirectories == nil || *outcome.UntrackOrphanedDirectories != 0 {
		t.Errorf("expected 0 untracked directories on a first pass, got %v", outcome.UntrackOrphanedDirectories)
	}
	if outcome.ImportFiles == nil || outcome.ImportFiles.Tracks.Created != 1 {
		t.Errorf("expected 1 created track, got %+v", outcome.ImportFiles)
	}
	if outcome.PurgeUntrackedMediaSources != nil {
		t.Errorf("expected step 4 to be skipped, got %v", outcome.PurgeUntrackedMediaSources)
	}
	if outcome.FindUntrackedFiles == nil || len(outcome.FindUntrackedFiles.ContentPaths) != 0 {
		t.Errorf("expected no untracked files once imported, got %+v", outcome.FindUntrackedFiles)
	}
	if outcome.FindUnsynchronizedTracks == nil {
		t.Errorf("expected a non-nil (possibly empty) unsynchronized tracks result")
	}
}

// TestRescan_PurgesOrphanedMediaSourceWhenRequested covers a single file
// deleted from a directory that otherwise stays tracked: the directory's
// digest changes (Modified, not Orphaned), step 3 notices the file is gone
// and drops its track, and step 5 purges the media source it left behind.
func TestRescan_PurgesOrphanedMediaSourceWhenRequested(t *testing.T) {
	root := t.TempDir()
	keptPath := filepath.Join(root, "a", "keep.mp3")
	goneFilePath := filepath.Join(root, "a", "gone.mp3")
	writeFile(t, keptPath, "keep")
	writeFile(t, goneFilePath, "hello")

	s, sqlDB := newTestStore(t)
	gk := gatekeeper.New(sqlDB, gatekeeper.Config{})
	resolver, err := contentpath.WithRootUrl("file://" + filepath.ToSlash(root) + "/")
	if err != nil {
		t.Fatalf("WithRootUrl: %v", err)
	}
	collID := setupCollection(t, s, root)

	reader := &fixedReader{}
	first, err := batch.Rescan(context.Background(), gk, s, reader, resolver, collID, batch.Params{RootPath: root}, nil, progress.NoopSink[batch.Progress]{})
	if err != nil {
		t.Fatalf("first Rescan: %v", err)
	}
	if first.ImportFiles == nil || first.ImportFiles.Tracks.Created != 2 {
		t.Fatalf("expected 2 created tracks on the first pass, got %+v", first.ImportFiles)
	}

	if err := os.Remove(goneFilePath); err != nil {
		t.Fatalf("remove: %v", err)
	}

	outcome, err := batch.Rescan(context.Background(), gk, s, reader, resolver, collID, batch.Params{
		RootPath:                  root,
		PurgeOrphanedMediaSources: true,
	}, nil, progress.NoopSink[batch.Progress]{})
	if err != nil {
		t.Fatalf("second Rescan: %v", err)
	}
	if outcome.ImportFiles == nil || outcome.ImportFiles.Tracks.Missing != 1 {
		t.Errorf("expected 1 missing track, got %+v", outcome.ImportFiles)
	}
	if outcome.PurgeOrphanedMediaSources == nil || *outcome.PurgeOrphanedMediaSources != 1 {
		t.Errorf("expected 1 purged orphaned media source, got %v", outcome.PurgeOrphanedMediaSources)
	}
}

func TestRescan_AbortBeforeFirstStepSkipsEverything(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a", "ok.mp3"), "hello")

	s, sqlDB := newTestStore(t)
	gk := gatekeeper.New(sqlDB, gatekeeper.Config{})
	resolver, err := contentpath.WithRootUrl("file://" + filepath.ToSlash(root) + "/")
	if err != nil {
		t.Fatalf("WithRootUrl: %v", err)
	}
	collID := setupCollection(t, s, root)

	abort := progress.NewAbortFlag()
	abort.Abort()

	reader := &fixedReader{}
	outcome, err := batch.Rescan(context.Background(), gk, s, reader, resolver, collID, batch.Params{RootPath: root}, abort, progress.NoopSink[batch.Progress]{})
	if err != nil {
		t.Fatalf("Rescan: %v", err)
	}
	if outcome.Completion != batch.Aborted {
		t.Fatalf("expected Aborted, got %v", outcome.Completion)
	}
	if reader.reads != 0 {
		t.Errorf("expected no reads once aborted before scanning, got %d", reader.reads)
	}
}
