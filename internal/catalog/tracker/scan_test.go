package tracker

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/llehouerou/waves/internal/catalog/contentpath"
	"github.com/llehouerou/waves/internal/catalog/domain"
	"github.com/llehouerou/waves/internal/catalog/progress"
)

func mustResolver(t *testing.T, root string) contentpath.VirtualFilePathResolver {
	t.Helper()
	r, err := contentpath.WithRootUrl("file://" + filepath.ToSlash(root) + "/")
	if err != nil {
		t.Fatalf("WithRootUrl: %v", err)
	}
	return r
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

func fixedClock(t time.Time) Clock { return func() time.Time { return t } }

func TestScanDirectories_FirstScanAddsEverything(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a", "song.mp3"), "hello")
	writeFile(t, filepath.Join(root, "b", "song.mp3"), "world")

	repo := newFakeRepo()
	resolver := mustResolver(t, root)
	outcome, err := ScanDirectories(context.Background(), repo, resolver, 1, root, nil, nil, progress.NoopSink[ScanProgress]{}, fixedClock(time.Unix(0, 0)))
	if err != nil {
		t.Fatalf("ScanDirectories failed: %v", err)
	}
	if outcome.Completion != ScanFinished {
		t.Fatalf("expected ScanFinished, got %v", outcome.Completion)
	}
	if outcome.Summary.Added != 3 { // root, a, b
		t.Errorf("expected 3 added directories, got %d", outcome.Summary.Added)
	}
}

func TestScanDirectories_RerunWithNoChangesSkips(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a", "song.mp3"), "hello")

	repo := newFakeRepo()
	resolver := mustResolver(t, root)
	if _, err := ScanDirectories(context.Background(), repo, resolver, 1, root, nil, nil, progress.NoopSink[ScanProgress]{}, nil); err != nil {
		t.Fatalf("first scan failed: %v", err)
	}
	outcome, err := ScanDirectories(context.Background(), repo, resolver, 1, root, nil, nil, progress.NoopSink[ScanProgress]{}, nil)
	if err != nil {
		t.Fatalf("second scan failed: %v", err)
	}
	if outcome.Summary.Skipped != 2 { // root, a: unchanged, still Added
		t.Errorf("expected 2 skipped, got %+v", outcome.Summary)
	}
}

func TestScanDirectories_RemovedDirectoryBecomesOrphaned(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a", "song.mp3"), "hello")
	writeFile(t, filepath.Join(root, "b", "song.mp3"), "world")

	repo := newFakeRepo()
	resolver := mustResolver(t, root)
	if _, err := ScanDirectories(context.Background(), repo, resolver, 1, root, nil, nil, progress.NoopSink[ScanProgress]{}, nil); err != nil {
		t.Fatalf("first scan failed: %v", err)
	}
	// Confirm every row so the second scan starts from Current, not Added.
	for _, row := range repo.rows {
		row.status = domain.DirCurrent
	}

	if err := os.RemoveAll(filepath.Join(root, "b")); err != nil {
		t.Fatalf("remove: %v", err)
	}

	outcome, err := ScanDirectories(context.Background(), repo, resolver, 1, root, nil, nil, progress.NoopSink[ScanProgress]{}, nil)
	if err != nil {
		t.Fatalf("second scan failed: %v", err)
	}
	if outcome.Completion != ScanFinished {
		t.Fatalf("expected ScanFinished, got %v", outcome.Completion)
	}
	if outcome.Summary.Orphaned != 1 {
		t.Errorf("expected 1 orphaned directory, got %+v", outcome.Summary)
	}
}
