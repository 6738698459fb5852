package search

import (
	"fmt"
	"strings"
	"time"

	"github.com/llehouerou/waves/internal/catalog/domain"
)

// trackColumns must be t.uid followed by store.trackBodyColumns in exactly
// the same order: the two packages are compiled
// independently but describe the same schema, so they are kept in sync by
// hand and exercised together by store's search tests.
const trackColumns = `t.uid, t.rev_version, t.rev_timestamp, t.media_source_id, t.titles_json, t.actors_json,
	t.album_title, t.album_artist, t.album_kind,
	t.track_index, t.track_total, t.disc_index, t.disc_total, t.movement_index, t.movement_total,
	t.recorded_at_json, t.released_at_json, t.released_orig_at_json,
	t.publisher, t.copyright, t.tags_json, t.color_rgb, t.color_idx,
	t.tempo_bpm, t.key_signature, t.time_signature_top, t.time_signature_bottom, t.metrics_flags,
	t.cues_json, t.last_played_at, t.times_played, ms.content_path`

// BuildQuery compiles filter, sort, and page into a complete SELECT
// statement (and its positional args) against tracks joined with
// media_sources, scoped to collectionID, returning trackColumns in order.
func BuildQuery(collectionID int64, filter Filter, sort []SortKey, page Pagination) (string, []any, error) {
	where, args, err := Compile(filter)
	if err != nil {
		return "", nil, err
	}
	orderBy, err := OrderBy(sort)
	if err != nil {
		return "", nil, err
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(trackColumns)
	b.WriteString(" FROM tracks t JOIN media_sources ms ON ms.id = t.media_source_id WHERE t.collection_id = ? AND (")
	b.WriteString(where)
	b.WriteString(") ORDER BY ")
	b.WriteString(orderBy)

	allArgs := append([]any{collectionID}, args...)
	if page.Limit != nil {
		b.WriteString(" LIMIT ? OFFSET ?")
		allArgs = append(allArgs, *page.Limit, page.Offset)
	} else if page.Offset > 0 {
		// sqlite requires a LIMIT to use OFFSET; -1 means unbounded.
		b.WriteString(" LIMIT -1 OFFSET ?")
		allArgs = append(allArgs, page.Offset)
	}
	return b.String(), allArgs, nil
}

// Compile translates filter into a standalone boolean SQL expression
// (no leading WHERE) and its positional args. A nil filter compiles to
// "1" (spec.md §8: an empty search filter returns every track).
func Compile(filter Filter) (string, []any, error) {
	if filter == nil {
		return "1", nil, nil
	}
	return compileNode(filter)
}

func compileNode(f Filter) (string, []any, error) {
	switch v := f.(type) {
	case All:
		return compileConjunction(v.Filters, " AND ", "1")
	case Any:
		return compileConjunction(v.Filters, " OR ", "0")
	case Not:
		inner, args, err := compileNode(v.Inner)
		if err != nil {
			return "", nil, err
		}
		return "NOT (" + inner + ")", args, nil
	case Phrase:
		return compilePhrase(v)
	case TitlePhrase:
		return compileTitlePhrase(v)
	case ActorPhrase:
		return compileActorPhrase(v)
	case Tag:
		return compileTag(v)
	case Numeric:
		return compileNumeric(v)
	case DateTime:
		return compileDateTime(v)
	case Timestamp:
		return compileTimestamp(v)
	case Condition:
		return compileCondition(v)
	default:
		return "", nil, fmt.Errorf("search: unknown filter node %T", f)
	}
}

func compileConjunction(filters []Filter, sep, identity string) (string, []any, error) {
	if len(filters) == 0 {
		return identity, nil, nil
	}
	parts := make([]string, 0, len(filters))
	var args []any
	for _, f := range filters {
		sql, a, err := compileNode(f)
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, "("+sql+")")
		args = append(args, a...)
	}
	return strings.Join(parts, sep), args, nil
}

func stringFieldColumn(field StringField) (string, error) {
	switch field {
	case FieldTrackTitle:
		return "t.titles_json", nil
	case FieldAlbumTitle:
		return "t.album_title", nil
	case FieldAlbumArtist:
		return "t.album_artist", nil
	case FieldPublisher:
		return "t.publisher", nil
	case FieldCopyright:
		return "t.copyright", nil
	case FieldContentPath:
		return "ms.content_path", nil
	default:
		return "", fmt.Errorf("search: unknown string field %d", field)
	}
}

func compilePhrase(p Phrase) (string, []any, error) {
	if len(p.Terms) == 0 || len(p.Fields) == 0 {
		return "1", nil, nil
	}
	var termParts []string
	var args []any
	for _, term := range p.Terms {
		var fieldParts []string
		for _, field := range p.Fields {
			col, err := stringFieldColumn(field)
			if err != nil {
				return "", nil, err
			}
			fieldParts = append(fieldParts, col+" LIKE ? ESCAPE '\\'")
			args = append(args, containsPattern(term))
		}
		termParts = append(termParts, "("+strings.Join(fieldParts, " OR ")+")")
	}
	return strings.Join(termParts, " AND "), args, nil
}

func compileTitlePhrase(tp TitlePhrase) (string, []any, error) {
	if tp.Scope == ScopeAlbum {
		var parts []string
		var args []any
		for _, term := range tp.NameTerms {
			parts = append(parts, "t.album_title LIKE ? ESCAPE '\\'")
			args = append(args, containsPattern(term))
		}
		if len(parts) == 0 {
			return "1", nil, nil
		}
		return strings.Join(parts, " AND "), args, nil
	}

	var conds []string
	var args []any
	if len(tp.Kinds) > 0 {
		placeholders := make([]string, len(tp.Kinds))
		for i, k := range tp.Kinds {
			placeholders[i] = "?"
			args = append(args, int(k))
		}
		conds = append(conds, "json_extract(je.value, '$.Kind') IN ("+strings.Join(placeholders, ",")+")")
	}
	for _, term := range tp.NameTerms {
		conds = append(conds, "json_extract(je.value, '$.Name') LIKE ? ESCAPE '\\'")
		args = append(args, containsPattern(term))
	}
	where := "1"
	if len(conds) > 0 {
		where = strings.Join(conds, " AND ")
	}
	return "EXISTS (SELECT 1 FROM json_each(t.titles_json) AS je WHERE " + where + ")", args, nil
}

func compileActorPhrase(ap ActorPhrase) (string, []any, error) {
	if ap.Scope == ScopeAlbum {
		var parts []string
		var args []any
		for _, term := range ap.NameTerms {
			parts = append(parts, "t.album_artist LIKE ? ESCAPE '\\'")
			args = append(args, containsPattern(term))
		}
		if len(parts) == 0 {
			return "1", nil, nil
		}
		return strings.Join(parts, " AND "), args, nil
	}

	var conds []string
	var args []any
	if len(ap.Roles) > 0 {
		placeholders := make([]string, len(ap.Roles))
		for i, r := range ap.Roles {
			placeholders[i] = "?"
			args = append(args, int(r))
		}
		conds = append(conds, "json_extract(je.value, '$.Role') IN ("+strings.Join(placeholders, ",")+")")
	}
	for _, term := range ap.NameTerms {
		conds = append(conds, "json_extract(je.value, '$.Name') LIKE ? ESCAPE '\\'")
		args = append(args, containsPattern(term))
	}
	where := "1"
	if len(conds) > 0 {
		where = strings.Join(conds, " AND ")
	}
	return "EXISTS (SELECT 1 FROM json_each(t.actors_json) AS je WHERE " + where + ")", args, nil
}

func compileTag(t Tag) (string, []any, error) {
	var conds []string
	var args []any
	if len(t.Facets) > 0 {
		placeholders := make([]string, len(t.Facets))
		for i, f := range t.Facets {
			placeholders[i] = "?"
			args = append(args, string(f))
		}
		conds = append(conds, "facet_entry.key IN ("+strings.Join(placeholders, ",")+")")
	}
	if t.Label != nil {
		sql, a, err := compileStringPredicate("json_extract(tag_entry.value, '$.Label')", *t.Label)
		if err != nil {
			return "", nil, err
		}
		conds = append(conds, sql)
		args = append(args, a...)
	}
	if t.Score != nil {
		sql, a, err := compileScalarPredicate("json_extract(tag_entry.value, '$.Score')", *t.Score, func(v float64) any { return v })
		if err != nil {
			return "", nil, err
		}
		conds = append(conds, sql)
		args = append(args, a...)
	}
	where := "1"
	if len(conds) > 0 {
		where = strings.Join(conds, " AND ")
	}
	exists := "EXISTS (SELECT 1 FROM json_each(t.tags_json) AS facet_entry, json_each(facet_entry.value) AS tag_entry WHERE " + where + ")"
	if t.Mode == NoneOf {
		return "NOT " + exists, args, nil
	}
	return exists, args, nil
}

func numericFieldColumn(field NumericField) (string, error) {
	switch field {
	case FieldAudioDurationMs:
		return "ms.duration_ms", nil
	case FieldMusicTempoBpm:
		return "t.tempo_bpm", nil
	case FieldTrackIndex:
		return "t.track_index", nil
	case FieldTrackTotal:
		return "t.track_total", nil
	case FieldDiscIndex:
		return "t.disc_index", nil
	case FieldDiscTotal:
		return "t.disc_total", nil
	case FieldTimesPlayed:
		return "t.times_played", nil
	case FieldSampleRateHz:
		return "ms.sample_rate_hz", nil
	case FieldBitrateBps:
		return "ms.bitrate_bps", nil
	default:
		return "", fmt.Errorf("search: unknown numeric field %d", field)
	}
}

func compileNumeric(n Numeric) (string, []any, error) {
	col, err := numericFieldColumn(n.Field)
	if err != nil {
		return "", nil, err
	}
	return compileScalarPredicate(col, n.Pred, func(v float64) any { return v })
}

func dateFieldColumn(field DateField) (string, error) {
	switch field {
	case FieldRecordedAt:
		return "t.recorded_at_yyyymmdd", nil
	case FieldReleasedAt:
		return "t.released_at_yyyymmdd", nil
	case FieldReleasedOrigAt:
		return "t.released_orig_at_yyyymmdd", nil
	default:
		return "", fmt.Errorf("search: unknown date field %d", field)
	}
}

func compileDateTime(d DateTime) (string, []any, error) {
	col, err := dateFieldColumn(d.Field)
	if err != nil {
		return "", nil, err
	}
	return compileScalarPredicate(col, d.Pred, func(v ScalarDate) any { return int(v) })
}

func timestampFieldColumn(field TimestampField) (string, error) {
	switch field {
	case FieldCollectedAt:
		return "ms.collected_at", nil
	case FieldLastPlayedAt:
		return "t.last_played_at", nil
	case FieldCreatedAt:
		return "t.created_at", nil
	case FieldUpdatedAt:
		return "t.rev_timestamp", nil
	default:
		return "", fmt.Errorf("search: unknown timestamp field %d", field)
	}
}

func compileTimestamp(ts Timestamp) (string, []any, error) {
	col, err := timestampFieldColumn(ts.Field)
	if err != nil {
		return "", nil, err
	}
	return compileScalarPredicate(col, ts.Pred, func(v time.Time) any { return v.UnixMilli() })
}

func compileCondition(c Condition) (string, []any, error) {
	sub := "EXISTS (SELECT 1 FROM tracked_directories td WHERE td.collection_id = t.collection_id " +
		"AND (ms.content_path = td.path OR ms.content_path LIKE td.path || '/%') AND td.status != ?)"
	args := []any{int(domain.DirOrphaned)}
	if c.Cond == SourceUntracked {
		return "NOT " + sub, args, nil
	}
	return sub, args, nil
}

// compileScalarPredicate renders a ScalarPredicate[V] against column,
// converting its value(s) to driver args via toArg.
func compileScalarPredicate[V any](column string, pred ScalarPredicate[V], toArg func(V) any) (string, []any, error) {
	switch pred.Op {
	case LessThan, LessOrEqual, GreaterThan, GreaterOrEqual:
		if pred.Value == nil {
			return "", nil, fmt.Errorf("search: %v predicate requires a value", pred.Op)
		}
		return column + " " + scalarOpSQL(pred.Op) + " ?", []any{toArg(*pred.Value)}, nil
	case Equal:
		if pred.Value == nil {
			return column + " IS NULL", nil, nil
		}
		return column + " = ?", []any{toArg(*pred.Value)}, nil
	case NotEqual:
		if pred.Value == nil {
			return column + " IS NOT NULL", nil, nil
		}
		return column + " != ?", []any{toArg(*pred.Value)}, nil
	default:
		return "", nil, fmt.Errorf("search: unknown scalar op %d", pred.Op)
	}
}

func scalarOpSQL(op ScalarOp) string {
	switch op {
	case LessThan:
		return "<"
	case LessOrEqual:
		return "<="
	case GreaterThan:
		return ">"
	case GreaterOrEqual:
		return ">="
	default:
		return "="
	}
}

// compileStringPredicate renders a StringPredicate against column.
func compileStringPredicate(column string, p StringPredicate) (string, []any, error) {
	switch p.Op {
	case StartsWith:
		return column + " LIKE ? ESCAPE '\\'", []any{escapeLike(p.Value) + "%"}, nil
	case StartsNotWith:
		return column + " NOT LIKE ? ESCAPE '\\'", []any{escapeLike(p.Value) + "%"}, nil
	case EndsWith:
		return column + " LIKE ? ESCAPE '\\'", []any{"%" + escapeLike(p.Value)}, nil
	case EndsNotWith:
		return column + " NOT LIKE ? ESCAPE '\\'", []any{"%" + escapeLike(p.Value)}, nil
	case Contains:
		return column + " LIKE ? ESCAPE '\\'", []any{containsPattern(p.Value)}, nil
	case ContainsNot:
		return column + " NOT LIKE ? ESCAPE '\\'", []any{containsPattern(p.Value)}, nil
	case Matches:
		return column + " LIKE ?", []any{p.Value}, nil
	case MatchesNot:
		return column + " NOT LIKE ?", []any{p.Value}, nil
	case Prefix:
		return column + " GLOB ?", []any{escapeGlob(p.Value) + "*"}, nil
	case Equals:
		return column + " = ? COLLATE NOCASE", []any{p.Value}, nil
	case EqualsNot:
		return column + " != ? COLLATE NOCASE", []any{p.Value}, nil
	default:
		return "", nil, fmt.Errorf("search: unknown string predicate op %d", p.Op)
	}
}

func containsPattern(term string) string {
	return "%" + escapeLike(term) + "%"
}

var likeReplacer = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike escapes the three sqlite LIKE wildcard characters so a
// caller-supplied term matches literally; callers must pair this with
// ESCAPE '\' in the generated SQL.
func escapeLike(s string) string {
	return likeReplacer.Replace(s)
}

var globReplacer = strings.NewReplacer(`[`, `[[]`, `*`, `[*]`, `?`, `[?]`)

// escapeGlob escapes sqlite GLOB's wildcard characters for Prefix matches.
func escapeGlob(s string) string {
	return globReplacer.Replace(s)
}
