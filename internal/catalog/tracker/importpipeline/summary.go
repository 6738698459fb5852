package importpipeline

// TrackSummary counts per-file outcomes across every directory a run
// visits, grounded on
// original_source/crates/core-ext-serde/src/media/tracker/import.rs's
// TrackSummary (created/updated/unchanged/not_imported/not_created/
// not_updated), adding the two failure counters spec.md §4.7 names
// (skipped, failed).
type TrackSummary struct {
	// Created is a track inserted for a file seen for the first time.
	Created int
	// Updated is an existing track rewritten per SyncMode.
	Updated int
	// Unchanged is an existing track SyncMode decided not to rewrite.
	Unchanged int
	// Skipped is a file import_files chose not to read (reserved for
	// future filtering; currently every recognized audio file is read).
	Skipped int
	// Failed is a file MetadataReader could not even open/read
	// (catalogerr.Io), counted separately from a recognized-but-unparseable
	// one (NotImported).
	Failed int
	// NotImported is a file MetadataReader opened but could not parse
	// (catalogerr.MediaFormat or any other reader error).
	NotImported int
	// NotCreated is a new track whose store insert failed.
	NotCreated int
	// NotUpdated is an existing track whose store update failed.
	NotUpdated int
	// Missing is a track whose file vanished from disk while its directory
	// stayed tracked (a single file deleted, as opposed to the whole
	// directory disappearing). Its track row is deleted immediately; its
	// media source row is left dangling for step 5 to purge.
	Missing int
}

func (s *TrackSummary) add(other TrackSummary) {
	s.Created += other.Created
	s.Updated += other.Updated
	s.Unchanged += other.Unchanged
	s.Skipped += other.Skipped
	s.Failed += other.Failed
	s.NotImported += other.NotImported
	s.NotCreated += other.NotCreated
	s.NotUpdated += other.NotUpdated
	s.Missing += other.Missing
}

// DirectorySummary counts per-directory outcomes, grounded on the same
// source's DirectorySummary.
type DirectorySummary struct {
	// Confirmed is a directory whose pending digest was successfully
	// reset to Current after its files were imported.
	Confirmed int
	// Rejected is a directory whose confirmation lost a race against a
	// concurrent digest change; retried on the next pending page. In
	// practice unreachable while the gatekeeper serializes writers, kept
	// for parity with the source's DirectorySummary.
	Rejected int
	// Skipped is a directory that failed non-I/O-missing (logged and
	// left pending for the next run).
	Skipped int
	// Untracked is a directory that disappeared from disk mid-import.
	Untracked int
}

// Completion mirrors tracker.ScanCompletion at the import-files level.
type Completion int

const (
	Finished Completion = iota
	Aborted
)

// Outcome is the result of one RunImportFiles call.
type Outcome struct {
	Completion Completion
	Tracks     TrackSummary
	Directory  DirectorySummary
}

// Progress is forwarded to the caller's sink between directories.
type Progress struct {
	Tracks    TrackSummary
	Directory DirectorySummary
}
