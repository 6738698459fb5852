package search

import (
	"time"

	"github.com/llehouerou/waves/internal/catalog/domain"
)

// StringPredicateOp enumerates the string match kinds from
// original_source/core-serde/src/usecases/filtering.rs's StringPredicate.
type StringPredicateOp int

const (
	StartsWith StringPredicateOp = iota
	StartsNotWith
	EndsWith
	EndsNotWith
	Contains
	ContainsNot
	Matches
	MatchesNot
	Prefix
	Equals
	EqualsNot
)

// StringPredicate pairs a match kind with its operand. Contains/StartsWith/
// EndsWith/Equals and their negations escape Value's wildcard characters
// before matching (spec.md §4.3); Matches/MatchesNot pass Value through as
// a raw LIKE pattern, letting the caller supply their own wildcards.
// Prefix is a case-sensitive prefix match, distinct from the
// case-insensitive StartsWith.
type StringPredicate struct {
	Op    StringPredicateOp
	Value string
}

// ScalarOp enumerates the comparison kinds from filtering.rs's
// ScalarPredicate<V>.
type ScalarOp int

const (
	LessThan ScalarOp = iota
	LessOrEqual
	GreaterThan
	GreaterOrEqual
	Equal
	NotEqual
)

// ScalarPredicate is a generic comparison against V, mirroring the Rust
// source's ScalarPredicate<V>. Value is nil for Equal/NotEqual to express
// "is null" / "is not null" (the Option<V>::None case); it must be
// non-nil for every other Op.
type ScalarPredicate[V any] struct {
	Op    ScalarOp
	Value *V
}

// NumericPredicate compares a float64-valued numeric column.
type NumericPredicate = ScalarPredicate[float64]

// DatePredicate compares a date-precision column.
type DatePredicate = ScalarPredicate[ScalarDate]

// TimestampPredicate compares a millisecond-precision timestamp column.
type TimestampPredicate = ScalarPredicate[time.Time]

// ScalarDate is the comparable value a DatePredicate carries: a
// yyyymmdd-encoded day, matching the schema's recorded_at_yyyymmdd
// column family.
type ScalarDate int

// DateValue converts d to the ScalarDate a DatePredicate compares
// against.
func DateValue(d domain.DateOrDateTime) ScalarDate {
	return ScalarDate(d.YYYYMMDD())
}
