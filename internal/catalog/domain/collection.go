package domain

import (
	"strings"

	"github.com/llehouerou/waves/internal/catalog/catalogerr"
)

// Collection is a named logical grouping of media sources and tracks
// under a single content-path policy.
type Collection struct {
	Header     EntityHeader
	Title      string
	Kind       string
	Notes      string
	Color      Color
	PathConfig ContentPathConfig
}

// Validate enforces the non-empty, trimmed title invariant.
func (c Collection) Validate() error {
	if strings.TrimSpace(c.Title) == "" {
		return catalogerr.New(catalogerr.BadRequest, catalogerr.Op("validate collection"), "title must not be empty", nil)
	}
	if c.Title != strings.TrimSpace(c.Title) {
		return catalogerr.New(catalogerr.BadRequest, catalogerr.Op("validate collection"), "title must be trimmed", nil)
	}
	return nil
}
