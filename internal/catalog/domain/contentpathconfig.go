package domain

// ContentPathKind identifies which of the four content-path policies a
// collection uses (spec.md §3).
type ContentPathKind int

const (
	ContentPathUri ContentPathKind = iota
	ContentPathUrl
	ContentPathFileUrl
	ContentPathVirtualFilePath
)

// ContentPathConfig is the collection-level policy for interpreting
// media_source.content_link.path.
type ContentPathConfig struct {
	Kind    ContentPathKind
	RootUrl string // only meaningful when Kind == ContentPathVirtualFilePath; must be an absolute file: URL ending in "/"
}
