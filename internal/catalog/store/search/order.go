package search

import (
	"fmt"
	"strings"

	"github.com/llehouerou/waves/internal/catalog/domain"
)

func sortFieldExpr(field SortField) (string, error) {
	switch field {
	case SortCollectedAt:
		return "ms.collected_at", nil
	case SortUpdatedAt:
		return "t.rev_timestamp", nil
	case SortCreatedAt:
		return "t.created_at", nil
	case SortTrackTitle:
		return fmt.Sprintf(
			"(SELECT json_extract(je.value, '$.Name') FROM json_each(t.titles_json) AS je WHERE json_extract(je.value, '$.Kind') = %d LIMIT 1)",
			int(domain.TitleMain)), nil
	case SortAlbumTitle:
		return "t.album_title", nil
	case SortArtistName:
		return fmt.Sprintf(
			"(SELECT json_extract(je.value, '$.Name') FROM json_each(t.actors_json) AS je WHERE json_extract(je.value, '$.Role') = %d "+
				"ORDER BY CASE WHEN json_extract(je.value, '$.Kind') = %d THEN 0 ELSE 1 END LIMIT 1)",
			int(domain.ActorArtist), int(domain.ActorSummary)), nil
	case SortReleasedAt:
		return "t.released_at_yyyymmdd", nil
	case SortMusicTempoBpm:
		return "t.tempo_bpm", nil
	case SortLastPlayedAt:
		return "t.last_played_at", nil
	case SortTimesPlayed:
		return "t.times_played", nil
	default:
		return "", fmt.Errorf("search: unknown sort field %d", field)
	}
}

// OrderBy compiles sort keys into an ORDER BY clause body (no leading
// "ORDER BY"), always ending in t.id ASC so pagination is stable even
// when every requested key ties (spec.md §4.3).
func OrderBy(keys []SortKey) (string, error) {
	var parts []string
	for _, k := range keys {
		expr, err := sortFieldExpr(k.Field)
		if err != nil {
			return "", err
		}
		dir := "ASC"
		if k.Direction == Descending {
			dir = "DESC"
		}
		parts = append(parts, expr+" "+dir)
	}
	parts = append(parts, "t.id ASC")
	return strings.Join(parts, ", "), nil
}
