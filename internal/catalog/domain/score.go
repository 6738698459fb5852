package domain

import (
	"fmt"

	"github.com/llehouerou/waves/internal/catalog/catalogerr"
)

// Score is a confidence/weight value in [0,1].
type Score float64

// NewScore validates and returns s, rejecting out-of-range input as
// BadRequest (spec.md §8 property 12).
func NewScore(s float64) (Score, error) {
	if s < 0 || s > 1 {
		return 0, catalogerr.New(catalogerr.BadRequest, catalogerr.Op("parse score"),
			fmt.Sprintf("score %v out of range [0,1]", s), nil)
	}
	return Score(s), nil
}

// DefaultScore is the score assigned to a tag that doesn't carry one.
const DefaultScore Score = 1.0
