// Package importpipeline implements step 3 of the rescan, "import files"
// (spec.md §4.7, C7): for every tracker directory awaiting confirmation,
// read each audio file's metadata and replace the corresponding track in
// the store. Grounded on
// original_source/crates/usecases/src/media/tracker/import.rs, whose
// pending-directory pagination loop (offset advances only past skipped
// directories, since confirmed/untracked rows drop out of the pending set
// entirely) is reproduced in RunImportFiles.
package importpipeline

import (
	"context"
	"path"
	"strings"
	"time"

	"github.com/llehouerou/waves/internal/catalog/domain"
)

// ImportFlags controls optional, costlier work MetadataReader may perform.
type ImportFlags uint32

const (
	// ComputeDigest requests a content digest strong enough to detect a
	// byte-for-byte unchanged file even when its mtime was touched
	// without modifying its content (e.g. a tar extraction).
	ComputeDigest ImportFlags = 1 << iota
	// ReadArtwork requests embedded artwork be decoded into the draft's
	// MediaSource.Artwork; omitted for a faster metadata-only pass.
	ReadArtwork
)

// ImportConfig is passed through to MetadataReader.Read unchanged.
type ImportConfig struct {
	Flags ImportFlags
}

// TrackDraft is what a MetadataReader produces for one file: the
// MediaSource half (technical properties, content type/digest, artwork)
// and the Track half (musical metadata). ContentLink and CollectedAt are
// filled in by the pipeline, not the reader, since the reader only sees a
// bare filesystem path.
type TrackDraft struct {
	MediaSource domain.MediaSource
	Track       domain.Track
}

// MetadataReader is the external capability the core depends on to parse
// audio files (spec.md §1): the tag-format byte parsers themselves (ID3,
// Vorbis, MP4, FLAC...) live outside the catalog engine, in
// internal/mediareader's reference implementation.
type MetadataReader interface {
	// Read parses absoluteFilePath and returns its metadata. Callers
	// distinguish failure modes via catalogerr.KindOf(err): Io for a file
	// that could not be opened/read at all, MediaFormat for a file that
	// was read but whose content this reader does not recognize or could
	// not parse.
	Read(ctx context.Context, absoluteFilePath string, cfg ImportConfig) (TrackDraft, error)
}

// SyncMode governs whether an already-tracked file triggers a re-import
// (spec.md §4.7 step 3.3).
type SyncMode int

const (
	// SyncModified re-imports only when the file's observed revision
	// (mtime, or content digest when ImportConfig.Flags has
	// ComputeDigest) differs from the one stored on its last import.
	SyncModified SyncMode = iota
	// SyncOnce creates a track the first time a file is seen and never
	// updates it again, regardless of later file changes.
	SyncOnce
	// SyncAlways re-imports and replaces the track on every pass.
	SyncAlways
)

// audioExtensions is the set of file extensions import_files recognizes
// as candidate audio content, mirroring the teacher's internal/tags
// format coverage (internal/tags.Ext*).
var audioExtensions = map[string]bool{
	".mp3":  true,
	".flac": true,
	".opus": true,
	".ogg":  true,
	".m4a":  true,
	".mp4":  true,
	".aiff": true,
	".aif":  true,
	".wav":  true,
}

// IsAudioFile reports whether name's extension is one import_files
// considers for import.
func IsAudioFile(name string) bool {
	return audioExtensions[strings.ToLower(path.Ext(name))]
}

// fileRevision encodes an observed file's mtime as the opaque revision
// stamp stored in MediaSource.ContentLink.Rev, the same field the spec
// reserves for "an HTTP ETag" on non-filesystem sources (domain.ContentLink
// doc comment). Digest-based comparisons use ContentDigest instead, when
// ImportConfig.Flags requests ComputeDigest.
func fileRevision(modTime time.Time) string {
	return modTime.UTC().Format(time.RFC3339Nano)
}
