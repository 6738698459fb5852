package store

import (
	"context"

	"github.com/llehouerou/waves/internal/catalog/catalogerr"
	"github.com/llehouerou/waves/internal/catalog/domain"
	"github.com/llehouerou/waves/internal/catalog/store/search"
)

// SearchTracks compiles filter/sort/page against collectionID and returns
// the matching tracks with their content paths, in the same order as the
// compiled query (spec.md §4.3, C9).
func (s *Store) SearchTracks(ctx context.Context, collectionID int64, filter search.Filter, sort []search.SortKey, page search.Pagination) ([]TrackResult, error) {
	query, args, err := search.BuildQuery(collectionID, filter, sort, page)
	if err != nil {
		return nil, catalogerr.Wrap(catalogerr.BadRequest, catalogerr.OpStoreSearch, err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, catalogerr.Wrap(catalogerr.Storage, catalogerr.OpStoreSearch, err)
	}
	defer rows.Close()

	var out []TrackResult
	for rows.Next() {
		var uidStr string
		t, contentPath, err := scanTrackBody(&uidPrefixedScanner{delegate: rows, uid: &uidStr})
		if err != nil {
			return nil, err
		}
		uid, err := domain.ParseEntityUid(uidStr)
		if err != nil {
			return nil, catalogerr.Wrap(catalogerr.Storage, catalogerr.OpStoreSearch, err)
		}
		t.Header.Uid = uid
		out = append(out, TrackResult{Track: t, ContentPath: contentPath})
	}
	if err := rows.Err(); err != nil {
		return nil, catalogerr.Wrap(catalogerr.Storage, catalogerr.OpStoreSearch, err)
	}
	return out, nil
}

// TrackResult is one row of a search result: a track plus the content
// path of the media source it owns.
type TrackResult struct {
	Track       domain.Track
	ContentPath string
}

// uidPrefixedScanner adapts a scanner (either *sql.Row or *sql.Rows)
// whose first selected column is t.uid to the scanner interface
// scanTrackBody expects (everything after uid, in trackBodyColumns
// order): it scans uid into a dedicated destination on the Scan call,
// then forwards the rest of the destinations to the delegate.
type uidPrefixedScanner struct {
	delegate scanner
	uid      *string
}

func (u *uidPrefixedScanner) Scan(dest ...any) error {
	return u.delegate.Scan(append([]any{u.uid}, dest...)...)
}
