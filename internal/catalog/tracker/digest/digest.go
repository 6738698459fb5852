// Package digest implements the depth-first filesystem walk that
// produces a stable BLAKE3 digest per directory of its immediate
// audio-file entries (spec.md §4.5, C5). Grounded on
// original_source/crates/usecases/src/media/tracker/scan_directories.rs
// and the teacher's internal/library/scanner.go directory walk.
package digest

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"sort"

	"lukechampine.com/blake3"

	"github.com/llehouerou/waves/internal/catalog/catalogerr"
	"github.com/llehouerou/waves/internal/catalog/progress"
)

// DirEntry is the (relative_path, digest) pair emitted for each visited directory.
type DirEntry struct {
	RelPath string
	Digest  []byte
}

// EntriesProgress tracks entry-level counters within a single directory.
type EntriesProgress struct {
	Skipped  int
	Finished int
}

// Progress is emitted at directory boundaries during the walk.
type Progress struct {
	DirectoriesFinished int
	Entries             EntriesProgress
}

// Completion reports whether the walk ran to completion or was aborted.
type Completion int

const (
	Finished Completion = iota
	Aborted
)

// Callback receives each visited directory's digest. Returning an error
// aborts the walk with that error surfaced to the caller.
type Callback func(entry DirEntry) error

// Outcome is the result of a full directory-hashing walk.
type Outcome struct {
	Completion Completion
	Progress   Progress
}

// HashDirectories walks root depth-first (bounded by maxDepth if non-nil,
// symlinks never followed, case-sensitive lexicographic order), and
// invokes cb for every directory with a streaming BLAKE3 hash of its
// immediate non-directory children's (name, size, mtime_ms) tuples.
// Subdirectories are visited recursively but not hashed into the parent
// digest. The walk checks abort before descending into each directory
// and before each callback invocation.
func HashDirectories(root string, maxDepth *int, abort *progress.AbortFlag, sink progress.Sink[Progress], cb Callback) (Outcome, error) {
	w := &walker{
		abort: abort,
		sink:  sink,
		cb:    cb,
	}
	completion, err := w.walk(root, "", 0, maxDepth)
	return Outcome{Completion: completion, Progress: w.progress}, err
}

type walker struct {
	abort    *progress.AbortFlag
	sink     progress.Sink[Progress]
	cb       Callback
	progress Progress
}

func (w *walker) report() {
	if w.sink != nil {
		w.sink.Report(w.progress)
	}
}

// walk processes directory absPath (relPath is its path relative to the
// original root, "" at the root itself) and recurses into subdirectories.
func (w *walker) walk(absPath, relPath string, depth int, maxDepth *int) (Completion, error) {
	if w.abort != nil && w.abort.IsSet() {
		return Aborted, nil
	}

	entries, err := os.ReadDir(absPath)
	if err != nil {
		// Unreadable directories count as entries_skipped and do not abort.
		w.progress.Entries.Skipped++
		w.report()
		return Finished, nil
	}

	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name()
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	byName := make(map[string]os.DirEntry, len(entries))
	for _, e := range entries {
		byName[e.Name()] = e
	}

	hasher := blake3.New(32, nil)
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
		info, err := entry.Info()
		if err != nil {
			w.progress.Entries.Skipped++
			continue
		}
		writeLenPrefixed(hasher, []byte(name))
		writeLenPrefixed(hasher, encodeInt64(info.Size()))
		writeLenPrefixed(hasher, encodeInt64(info.ModTime().UnixMilli()))
		w.progress.Entries.Finished++
	}
	digestBytes := hasher.Sum(nil)

	if w.abort != nil && w.abort.IsSet() {
		return Aborted, nil
	}
	if err := w.cb(DirEntry{RelPath: relPath, Digest: digestBytes}); err != nil {
		return Finished, catalogerr.Wrap(catalogerr.Io, catalogerr.Op("hash directories"), err)
	}
	w.progress.DirectoriesFinished++
	w.report()

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

func writeLenPrefixed(h *blake3.Hasher, b []byte) {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(b)))
	h.Write(lenBuf[:])
	h.Write(b)
}

func encodeInt64(v int64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(v))
	return buf[:]
}
