package search

import (
	"strings"
	"testing"

	"github.com/llehouerou/waves/internal/catalog/domain"
)

func mustCompile(t *testing.T, f Filter) (string, []any) {
	t.Helper()
	sql, args, err := Compile(f)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	return sql, args
}

func TestCompile_NilFilterMatchesEverything(t *testing.T) {
	sql, args := mustCompile(t, nil)
	if sql != "1" || args != nil {
		t.Errorf("got sql=%q args=%v", sql, args)
	}
}

func TestCompile_AllEmptyIsTrue(t *testing.T) {
	sql, _ := mustCompile(t, All{})
	if sql != "1" {
		t.Errorf("got %q", sql)
	}
}

func TestCompile_AnyEmptyIsFalse(t *testing.T) {
	sql, _ := mustCompile(t, Any{})
	if sql != "0" {
		t.Errorf("got %q", sql)
	}
}

func TestCompile_Not(t *testing.T) {
	sql, args := mustCompile(t, Not{Inner: Phrase{Fields: []StringField{FieldAlbumTitle}, Terms: []string{"house"}}})
	if !strings.HasPrefix(sql, "NOT (") {
		t.Errorf("got %q", sql)
	}
	if len(args) != 1 || args[0] != "%house%" {
		t.Errorf("got args %v", args)
	}
}

func TestCompile_PhraseEscapesWildcards(t *testing.T) {
	sql, args := mustCompile(t, Phrase{Fields: []StringField{FieldAlbumTitle, FieldPublisher}, Terms: []string{"100%_done"}})
	if !strings.Contains(sql, "t.album_title LIKE ? ESCAPE '\\'") || !strings.Contains(sql, "t.publisher LIKE ? ESCAPE '\\'") {
		t.Errorf("got %q", sql)
	}
	if len(args) != 2 || args[0] != `%100\%\_done%` {
		t.Errorf("got args %v", args)
	}
}

func TestCompile_PhraseMultipleTermsAreAnded(t *testing.T) {
	sql, args := mustCompile(t, Phrase{Fields: []StringField{FieldAlbumTitle}, Terms: []string{"foo", "bar"}})
	if strings.Count(sql, " AND ") != 1 {
		t.Errorf("expected terms ANDed, got %q", sql)
	}
	if len(args) != 2 {
		t.Errorf("got args %v", args)
	}
}

func TestCompile_TitlePhraseTrackScopeUsesJSONEach(t *testing.T) {
	sql, args := mustCompile(t, TitlePhrase{Scope: ScopeTrack, NameTerms: []string{"song"}})
	if !strings.Contains(sql, "json_each(t.titles_json)") {
		t.Errorf("got %q", sql)
	}
	if len(args) != 1 {
		t.Errorf("got args %v", args)
	}
}

func TestCompile_TitlePhraseAlbumScopeUsesColumn(t *testing.T) {
	sql, _ := mustCompile(t, TitlePhrase{Scope: ScopeAlbum, NameTerms: []string{"song"}})
	if !strings.Contains(sql, "t.album_title") || strings.Contains(sql, "json_each") {
		t.Errorf("got %q", sql)
	}
}

func TestCompile_TagAnyOfVsNoneOf(t *testing.T) {
	anySQL, _ := mustCompile(t, Tag{Mode: AnyOf, Facets: []domain.FacetKey{"genre"}})
	if strings.HasPrefix(anySQL, "NOT") {
		t.Errorf("AnyOf should not negate, got %q", anySQL)
	}
	noneSQL, _ := mustCompile(t, Tag{Mode: NoneOf, Facets: []domain.FacetKey{"genre"}})
	if !strings.HasPrefix(noneSQL, "NOT EXISTS") {
		t.Errorf("NoneOf should negate, got %q", noneSQL)
	}
}

func TestCompile_NumericScalarOps(t *testing.T) {
	v := 120.0
	sql, args := mustCompile(t, Numeric{Field: FieldMusicTempoBpm, Pred: NumericPredicate{Op: GreaterOrEqual, Value: &v}})
	if sql != "t.tempo_bpm >= ?" || len(args) != 1 || args[0] != 120.0 {
		t.Errorf("got sql=%q args=%v", sql, args)
	}
}

func TestCompile_NumericEqualNilMeansIsNull(t *testing.T) {
	sql, args := mustCompile(t, Numeric{Field: FieldMusicTempoBpm, Pred: NumericPredicate{Op: Equal}})
	if sql != "t.tempo_bpm IS NULL" || args != nil {
		t.Errorf("got sql=%q args=%v", sql, args)
	}
}

func TestCompile_Condition(t *testing.T) {
	tracked, args := mustCompile(t, Condition{Cond: SourceTracked})
	if !strings.HasPrefix(tracked, "EXISTS") || len(args) != 1 {
		t.Errorf("got sql=%q args=%v", tracked, args)
	}
	untracked, _ := mustCompile(t, Condition{Cond: SourceUntracked})
	if !strings.HasPrefix(untracked, "NOT EXISTS") {
		t.Errorf("got %q", untracked)
	}
}

func TestOrderBy_AlwaysEndsWithStableTieBreaker(t *testing.T) {
	sql, err := OrderBy(nil)
	if err != nil {
		t.Fatalf("OrderBy: %v", err)
	}
	if sql != "t.id ASC" {
		t.Errorf("got %q", sql)
	}

	sql, err = OrderBy([]SortKey{{Field: SortAlbumTitle, Direction: Descending}})
	if err != nil {
		t.Fatalf("OrderBy: %v", err)
	}
	if !strings.HasSuffix(sql, "t.id ASC") || !strings.Contains(sql, "t.album_title DESC") {
		t.Errorf("got %q", sql)
	}
}

func TestBuildQuery_BindsCollectionIDFirst(t *testing.T) {
	sql, args, err := BuildQuery(42, Phrase{Fields: []StringField{FieldAlbumTitle}, Terms: []string{"x"}}, nil, Pagination{})
	if err != nil {
		t.Fatalf("BuildQuery: %v", err)
	}
	if args[0] != int64(42) {
		t.Errorf("expected collection id first, got %v", args)
	}
	if !strings.Contains(sql, "WHERE t.collection_id = ?") {
		t.Errorf("got %q", sql)
	}
}

func TestBuildQuery_Pagination(t *testing.T) {
	limit := 10
	sql, args, err := BuildQuery(1, nil, nil, Pagination{Offset: 20, Limit: &limit})
	if err != nil {
		t.Fatalf("BuildQuery: %v", err)
	}
	if !strings.Contains(sql, "LIMIT ? OFFSET ?") {
		t.Errorf("got %q", sql)
	}
	if args[len(args)-2] != 10 || args[len(args)-1] != 20 {
		t.Errorf("got args %v", args)
	}
}
