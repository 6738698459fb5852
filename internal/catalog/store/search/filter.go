// Package search defines the structured filter/sort AST for track
// queries (spec.md §4.3, C9) and compiles it to a sqlite WHERE clause.
// The AST shape follows original_source/core-serde/src/usecases/filtering.rs
// (StringPredicate, the generic ScalarPredicate<V> scalar comparator) and
// original_source/crates/repo-sqlite/src/repo/track/search/tests.rs (the
// leaf kinds and how they compose under All/Any/Not).
package search

import "github.com/llehouerou/waves/internal/catalog/domain"

// Filter is a node in the track filter AST. All leaves and combinators
// implement it; there is no behavior on the interface itself, it only
// restricts Compile's input to values built through this package.
type Filter interface {
	isFilter()
}

// All matches when every sub-filter matches (logical AND). An empty All
// matches everything.
type All struct{ Filters []Filter }

// Any matches when at least one sub-filter matches (logical OR). An
// empty Any matches nothing.
type Any struct{ Filters []Filter }

// Not inverts Inner. This also serves as the AST's Complement modifier:
// negating any leaf is just wrapping it in Not.
type Not struct{ Inner Filter }

func (All) isFilter() {}
func (Any) isFilter() {}
func (Not) isFilter() {}

// StringField names a plain text column a Phrase filter can search.
type StringField int

const (
	FieldTrackTitle StringField = iota
	FieldAlbumTitle
	FieldAlbumArtist
	FieldPublisher
	FieldCopyright
	FieldContentPath
)

// Phrase requires every term to match (case-insensitive substring) within
// at least one of the listed fields, each field tested independently
// (not concatenated across rows).
type Phrase struct {
	Fields []StringField
	Terms  []string
}

func (Phrase) isFilter() {}

// TitleScope picks which title-bearing column a TitlePhrase or
// ActorPhrase filter targets.
type TitleScope int

const (
	ScopeTrack TitleScope = iota
	ScopeAlbum
)

// TitlePhrase matches track or album titles. For ScopeTrack it searches
// the track's ordered title list (optionally restricted to Kinds); for
// ScopeAlbum it searches the single album title column and Kinds is
// ignored.
type TitlePhrase struct {
	Scope     TitleScope
	Kinds     []domain.TitleKind
	NameTerms []string
}

func (TitlePhrase) isFilter() {}

// ActorPhrase matches track or album actors by name, optionally
// restricted to Roles. For ScopeAlbum it searches the album artist
// column and Roles is ignored (album artist carries no role).
type ActorPhrase struct {
	Scope     TitleScope
	Roles     []domain.ActorRole
	NameTerms []string
}

func (ActorPhrase) isFilter() {}

// FacetMode controls whether a Tag filter requires a match in any of its
// listed facets or in none of them.
type FacetMode int

const (
	AnyOf FacetMode = iota
	NoneOf
)

// Tag matches a track's tag map. Facets lists the facet keys the mode
// applies to; an empty Facets means "any facet". Label and Score are
// optional refinements applied to the matching tag entries.
type Tag struct {
	Mode   FacetMode
	Facets []domain.FacetKey
	Label  *StringPredicate
	Score  *NumericPredicate
}

func (Tag) isFilter() {}

// NumericField names a numeric column a Numeric filter can compare.
type NumericField int

const (
	FieldAudioDurationMs NumericField = iota
	FieldMusicTempoBpm
	FieldTrackIndex
	FieldTrackTotal
	FieldDiscIndex
	FieldDiscTotal
	FieldTimesPlayed
	FieldSampleRateHz
	FieldBitrateBps
)

// Numeric compares a numeric field against Pred.
type Numeric struct {
	Field NumericField
	Pred  NumericPredicate
}

func (Numeric) isFilter() {}

// DateField names a date-precision column (stored as yyyymmdd) a
// DateTime filter can compare.
type DateField int

const (
	FieldRecordedAt DateField = iota
	FieldReleasedAt
	FieldReleasedOrigAt
)

// DateTime compares a date field against Pred.
type DateTime struct {
	Field DateField
	Pred  DatePredicate
}

func (DateTime) isFilter() {}

// TimestampField names a millisecond-precision timestamp column a
// Timestamp filter can compare.
type TimestampField int

const (
	FieldCollectedAt TimestampField = iota
	FieldLastPlayedAt
	FieldCreatedAt
	FieldUpdatedAt
)

// Timestamp compares a timestamp field against Pred.
type Timestamp struct {
	Field TimestampField
	Pred  TimestampPredicate
}

func (Timestamp) isFilter() {}

// SourceCondition distinguishes tracked from untracked media sources.
type SourceCondition int

const (
	SourceTracked SourceCondition = iota
	SourceUntracked
)

// Condition matches tracks whose media source currently falls under a
// tracked directory that is not Orphaned (SourceTracked) or does not
// (SourceUntracked).
type Condition struct {
	Cond SourceCondition
}

func (Condition) isFilter() {}
