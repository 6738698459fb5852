// Package memindex is a minimal in-memory reindex.TextIndex, a reference
// implementation for tests and local experimentation. Building a real
// full-text index is out of this core's scope (spec.md §1); a production
// TextIndex would sit in front of something like the teacher's own FTS5
// tables (internal/library/fts.go).
package memindex

import (
	"context"
	"strings"
	"sync"

	"github.com/llehouerou/waves/internal/catalog/domain"
)

// Document is one indexed track's searchable projection.
type Document struct {
	Revision    domain.EntityRevision
	ContentPath string
	SearchText  string
}

// Index is a TextIndex backed by a plain map, guarded by a mutex since
// reindex.Run and any concurrent reader share it.
type Index struct {
	mu        sync.RWMutex
	documents map[domain.EntityUid]Document
	committed map[domain.EntityUid]Document
}

// New returns an empty index.
func New() *Index {
	return &Index{documents: make(map[domain.EntityUid]Document)}
}

func (i *Index) LookupRevision(_ context.Context, uid domain.EntityUid) (domain.EntityRevision, bool, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	doc, ok := i.committed[uid]
	if !ok {
		return domain.EntityRevision{}, false, nil
	}
	return doc.Revision, true, nil
}

func (i *Index) Delete(_ context.Context, uid domain.EntityUid) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	delete(i.documents, uid)
	return nil
}

func (i *Index) Add(_ context.Context, uid domain.EntityUid, t domain.Track, contentPath string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.documents[uid] = Document{
		Revision:    t.Header.Rev,
		ContentPath: contentPath,
		SearchText:  searchText(t),
	}
	return nil
}

// Commit publishes the pending writes atomically, mirroring the way a
// real index would only become queryable after its commit/flush.
func (i *Index) Commit(_ context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	committed := make(map[domain.EntityUid]Document, len(i.documents))
	for uid, doc := range i.documents {
		committed[uid] = doc
	}
	i.committed = committed
	return nil
}

// Search returns every committed document whose SearchText contains query
// (case-insensitive), for test assertions.
func (i *Index) Search(query string) map[domain.EntityUid]Document {
	i.mu.RLock()
	defer i.mu.RUnlock()
	query = strings.ToLower(query)
	out := make(map[domain.EntityUid]Document)
	for uid, doc := range i.committed {
		if strings.Contains(strings.ToLower(doc.SearchText), query) {
			out[uid] = doc
		}
	}
	return out
}

// Len returns the number of committed documents.
func (i *Index) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.committed)
}

func searchText(t domain.Track) string {
	var b strings.Builder
	for _, title := range t.Titles {
		b.WriteString(title.Name)
		b.WriteByte(' ')
	}
	b.WriteString(t.Album.Title)
	b.WriteByte(' ')
	b.WriteString(t.Album.ArtistName)
	for _, actor := range t.Actors {
		b.WriteString(actor.Name)
		b.WriteByte(' ')
	}
	return b.String()
}
