package domain

import (
	"sort"
	"strings"
)

// PlainTag is a single tag within a facet: an optional label and a score.
type PlainTag struct {
	Label string
	Score Score
}

// FacetKey is the lowercase, non-empty-when-present key for a tag facet.
// The empty facet key represents unfaceted tags.
type FacetKey string

// Validate checks the lowercase, non-empty-or-omitted invariant.
func (f FacetKey) Validate() bool {
	return f == "" || f == FacetKey(strings.ToLower(string(f)))
}

// Tags is a map facet_key -> []PlainTag, kept canonical: each facet's
// tags are sorted and deduplicated by (label, score).
type Tags map[FacetKey][]PlainTag

// Canonicalize sorts and dedups every facet's tag slice in place,
// matching spec.md §3's tag-map invariant and §8 property 5.
func (t Tags) Canonicalize() {
	for facet, tags := range t {
		sort.Slice(tags, func(i, j int) bool {
			if tags[i].Label != tags[j].Label {
				return tags[i].Label < tags[j].Label
			}
			return tags[i].Score < tags[j].Score
		})
		tags = dedupTags(tags)
		if len(tags) == 0 {
			delete(t, facet)
		} else {
			t[facet] = tags
		}
	}
}

func dedupTags(tags []PlainTag) []PlainTag {
	out := tags[:0:0]
	for i, tg := range tags {
		if i > 0 && tg == tags[i-1] {
			continue
		}
		out = append(out, tg)
	}
	return out
}
