// Package contentpath implements the bidirectional mapping between
// stored content paths and absolute filesystem/URL forms (spec.md
// §4.1, C2). Grounded on
// original_source/crates/media/src/resolver/mod.rs.
package contentpath

import (
	"net/url"
	"path/filepath"
	"strings"

	"github.com/llehouerou/waves/internal/catalog/catalogerr"
	"github.com/llehouerou/waves/internal/catalog/domain"
)

// Resolver converts between a collection's stored content path and its
// absolute URL form.
type Resolver interface {
	Kind() domain.ContentPathKind
	ResolveUrlFromPath(path string) (string, error)
	ResolvePathFromUrl(rawUrl string) (string, error)
}

// UriResolver treats stored paths as opaque external identifiers: the
// path IS the url, verbatim.
type UriResolver struct{}

func (UriResolver) Kind() domain.ContentPathKind { return domain.ContentPathUri }

func (UriResolver) ResolveUrlFromPath(path string) (string, error) {
	return path, nil
}

func (UriResolver) ResolvePathFromUrl(rawUrl string) (string, error) {
	return rawUrl, nil
}

// UrlResolver accepts any URL as a content path.
type UrlResolver struct{}

func (UrlResolver) Kind() domain.ContentPathKind { return domain.ContentPathUrl }

func (UrlResolver) ResolveUrlFromPath(path string) (string, error) {
	u, err := url.Parse(path)
	if err != nil {
		return "", invalidPath(err)
	}
	return u.String(), nil
}

func (UrlResolver) ResolvePathFromUrl(rawUrl string) (string, error) {
	return rawUrl, nil
}

// FileUrlResolver accepts only absolute file: URLs.
type FileUrlResolver struct{}

func (FileUrlResolver) Kind() domain.ContentPathKind { return domain.ContentPathFileUrl }

func (FileUrlResolver) ResolveUrlFromPath(path string) (string, error) {
	u, err := (UrlResolver{}).ResolveUrlFromPath(path)
	if err != nil {
		return "", err
	}
	parsed, _ := url.Parse(u)
	if parsed.Scheme != "file" {
		return "", invalidPath(nil)
	}
	return u, nil
}

func (FileUrlResolver) ResolvePathFromUrl(rawUrl string) (string, error) {
	u, err := url.Parse(rawUrl)
	if err != nil || u.Scheme != "file" {
		return "", invalidUrl(err)
	}
	return (UrlResolver{}).ResolvePathFromUrl(rawUrl)
}

// VirtualFilePathResolver resolves relative POSIX-slash paths against
// an absolute file: base URL. This is the main mode used for local
// filesystem collections (spec.md §4.1).
type VirtualFilePathResolver struct {
	rootUrl      string // absolute file: URL ending in "/", empty means no base
	rootFilePath string // host-separator form of rootUrl's path
}

// NewVirtualFilePathResolver constructs a resolver with no base: every
// path must resolve to an absolute file: URL on its own.
func NewVirtualFilePathResolver() VirtualFilePathResolver {
	return VirtualFilePathResolver{}
}

// WithRootUrl constructs a resolver rooted at rootUrl, which must be an
// absolute file: URL ending in "/".
func WithRootUrl(rootUrl string) (VirtualFilePathResolver, error) {
	if !strings.HasPrefix(rootUrl, "file://") || !strings.HasSuffix(rootUrl, "/") {
		return VirtualFilePathResolver{}, invalidUrl(nil)
	}
	parsed, err := url.Parse(rootUrl)
	if err != nil || parsed.Scheme != "file" {
		return VirtualFilePathResolver{}, invalidUrl(err)
	}
	fp, err := urlToFilePath(parsed)
	if err != nil {
		return VirtualFilePathResolver{}, invalidUrl(err)
	}
	return VirtualFilePathResolver{rootUrl: rootUrl, rootFilePath: fp}, nil
}

func (r VirtualFilePathResolver) Kind() domain.ContentPathKind {
	return domain.ContentPathVirtualFilePath
}

// ResolveUrlFromPath converts a POSIX-slash relative (or absolute, if
// there is no configured base) path into a file: URL. The empty input
// yields the base URL unchanged; a trailing slash round-trips to a
// trailing slash on the result (directory semantics).
func (r VirtualFilePathResolver) ResolveUrlFromPath(slashPath string) (string, error) {
	if slashPath == "" {
		if r.rootUrl == "" {
			return "", invalidPath(nil)
		}
		return r.rootUrl, nil
	}
	hostPath := filepath.FromSlash(slashPath)
	var fullPath string
	if r.rootFilePath != "" {
		fullPath = filepath.Join(r.rootFilePath, hostPath)
	} else {
		fullPath = hostPath
		if !filepath.IsAbs(fullPath) {
			return "", invalidPath(nil)
		}
	}
	u := filePathToUrl(fullPath, strings.HasSuffix(slashPath, "/"))
	return u, nil
}

// ResolvePathFromUrl strips the configured base (if any) from rawUrl and
// returns the slash-form remainder. Fails unless rawUrl is prefixed by
// the base.
func (r VirtualFilePathResolver) ResolvePathFromUrl(rawUrl string) (string, error) {
	if r.rootUrl != "" {
		if !strings.HasPrefix(rawUrl, r.rootUrl) {
			return "", invalidUrl(nil)
		}
	} else if !strings.HasPrefix(rawUrl, "file://") {
		return "", invalidUrl(nil)
	}
	parsed, err := url.Parse(rawUrl)
	if err != nil || parsed.Scheme != "file" {
		return "", invalidUrl(err)
	}
	filePath, err := urlToFilePath(parsed)
	if err != nil {
		return "", invalidUrl(err)
	}
	if !filepath.IsAbs(filePath) {
		return "", invalidUrl(nil)
	}
	slashPath := filepath.ToSlash(filePath)
	if r.rootFilePath == "" {
		return slashPath, nil
	}
	rootSlash := filepath.ToSlash(r.rootFilePath)
	if !strings.HasPrefix(rootSlash, "/") {
		rootSlash = "/" + rootSlash
	}
	stripped := strings.TrimPrefix(slashPath, rootSlash)
	stripped = strings.TrimPrefix(stripped, "/")
	return stripped, nil
}

// urlToFilePath percent-decodes a file: URL's path component into a
// host-separator absolute path. Percent-decoding applies only at the
// URL boundary; stored paths are never percent-encoded (spec.md §4.1).
func urlToFilePath(u *url.URL) (string, error) {
	p := u.Path
	if p == "" {
		return "", invalidUrl(nil)
	}
	return filepath.FromSlash(p), nil
}

// filePathToUrl renders an absolute host-separator path as a file: URL,
// percent-encoding reserved characters; dir controls a trailing slash.
func filePathToUrl(fullPath string, dir bool) string {
	slash := filepath.ToSlash(fullPath)
	if !strings.HasPrefix(slash, "/") {
		slash = "/" + slash
	}
	if dir && !strings.HasSuffix(slash, "/") {
		slash += "/"
	}
	u := &url.URL{Scheme: "file", Path: slash}
	return u.String()
}

// FilePath converts a file: URL, as produced by a Resolver's
// ResolveUrlFromPath, into a host filesystem path. Callers that need to
// perform direct I/O against a resolved location (the import pipeline
// listing a directory's files) use this instead of re-deriving the path
// themselves.
func FilePath(rawUrl string) (string, error) {
	u, err := url.Parse(rawUrl)
	if err != nil || u.Scheme != "file" {
		return "", invalidUrl(err)
	}
	return urlToFilePath(u)
}

func invalidPath(err error) error {
	return catalogerr.New(catalogerr.BadRequest, catalogerr.Op("resolve content path"), "invalid path", err)
}

func invalidUrl(err error) error {
	return catalogerr.New(catalogerr.BadRequest, catalogerr.Op("resolve content path"), "invalid url", err)
}

// RemappingResolver composes a canonical base resolver (used for
// equality in the store) with an override base used for I/O, letting
// the same logical collection be mounted at a different physical root
// (spec.md §4.1).
type RemappingResolver struct {
	Canonical VirtualFilePathResolver
	Override  VirtualFilePathResolver
}

func (r RemappingResolver) Kind() domain.ContentPathKind {
	return domain.ContentPathVirtualFilePath
}

// ResolveUrlFromPath uses the override base, for issuing filesystem I/O.
func (r RemappingResolver) ResolveUrlFromPath(path string) (string, error) {
	return r.Override.ResolveUrlFromPath(path)
}

// ResolvePathFromUrl uses the canonical base, so stored paths stay
// independent of where the collection happens to be mounted right now.
func (r RemappingResolver) ResolvePathFromUrl(rawUrl string) (string, error) {
	return r.Canonical.ResolvePathFromUrl(rawUrl)
}
