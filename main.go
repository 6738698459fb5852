// Command waves-catalog is the entry point for the media catalog engine:
// a small subcommand CLI wiring config, store, gatekeeper, and the
// rescan/relink/reindex/search operations together. The teacher's own
// go.mod carries no CLI framework, so this follows the same stdlib-flag
// shape as its own cmd/ tools rather than reaching for one.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"time"

	_ "modernc.org/sqlite"

	"github.com/llehouerou/waves/internal/catalog/batch"
	catalogconfig "github.com/llehouerou/waves/internal/catalog/config"
	"github.com/llehouerou/waves/internal/catalog/contentpath"
	"github.com/llehouerou/waves/internal/catalog/domain"
	"github.com/llehouerou/waves/internal/catalog/gatekeeper"
	"github.com/llehouerou/waves/internal/catalog/progress"
	"github.com/llehouerou/waves/internal/catalog/reindex"
	"github.com/llehouerou/waves/internal/catalog/reindex/memindex"
	"github.com/llehouerou/waves/internal/catalog/store"
	"github.com/llehouerou/waves/internal/catalog/store/search"
	"github.com/llehouerou/waves/internal/catalog/tracker/importpipeline"
	"github.com/llehouerou/waves/internal/catalog/tracker/relink"
	"github.com/llehouerou/waves/internal/mediareader"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cfg, err := catalogconfig.Load()
	if err != nil {
		fatalf("load config: %v", err)
	}

	sqlDB, err := sql.Open("sqlite", cfg.DatabasePath)
	if err != nil {
		fatalf("open database: %v", err)
	}
	defer sqlDB.Close()

	st, err := store.New(sqlDB)
	if err != nil {
		fatalf("migrate store: %v", err)
	}

	gk := gatekeeper.New(sqlDB, gatekeeper.Config{
		AcquireReadTimeout:  cfg.Gatekeeper.AcquireReadTimeout(),
		AcquireWriteTimeout: cfg.Gatekeeper.AcquireWriteTimeout(),
	})

	ctx := context.Background()

	switch os.Args[1] {
	case "rescan":
		runRescan(ctx, cfg, st, gk, os.Args[2:])
	case "relink":
		runRelink(ctx, st, gk, os.Args[2:])
	case "reindex":
		runReindex(ctx, st, gk, os.Args[2:])
	case "search":
		runSearch(ctx, st, os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: waves-catalog <rescan|relink|reindex|search> [flags]")
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

// libraryCollection find-or-creates the collection backing a configured
// library root, keyed by its title (spec.md §4.1's CollectionId is
// assigned by the store; the CLI's stable handle is the title a user
// picked in config).
func libraryCollection(ctx context.Context, st *store.Store, lib catalogconfig.Library) (int64, error) {
	if id, _, ok, err := st.FindCollectionByTitle(ctx, lib.Title); err != nil {
		return 0, err
	} else if ok {
		return id, nil
	}

	id, _, err := st.InsertCollection(ctx, time.Now().UTC(), domain.Collection{
		Title: lib.Title,
		PathConfig: domain.ContentPathConfig{
			Kind:    domain.ContentPathVirtualFilePath,
			RootUrl: "file://" + lib.RootPath + "/",
		},
	})
	return id, err
}

func findLibrary(cfg *catalogconfig.Config, title string) (catalogconfig.Library, bool) {
	for _, lib := range cfg.Libraries {
		if lib.Title == title {
			return lib, true
		}
	}
	return catalogconfig.Library{}, false
}

func runRescan(ctx context.Context, cfg *catalogconfig.Config, st *store.Store, gk *gatekeeper.Gatekeeper, args []string) {
	fs := flag.NewFlagSet("rescan", flag.ExitOnError)
	library := fs.String("library", "", "configured library title to rescan")
	purgeUntracked := fs.Bool("purge-untracked", cfg.Rescan.PurgeUntrackedMediaSources, "purge media sources no longer covered by any tracked directory")
	purgeOrphaned := fs.Bool("purge-orphaned", cfg.Rescan.PurgeOrphanedMediaSources, "purge media sources with no referencing track")
	findUntracked := fs.Bool("find-untracked-files", cfg.Rescan.FindUntrackedFiles, "report files with no media source on record")
	findUnsynced := fs.Bool("find-unsynchronized", cfg.Rescan.FindUnsynchronizedTracks, "report tracks whose file revision has drifted")
	computeDigest := fs.Bool("compute-digest", false, "hash file contents instead of trusting mtime alone")
	readArtwork := fs.Bool("read-artwork", true, "decode embedded artwork into a stored thumbnail")
	_ = fs.Parse(args)

	lib, ok := findLibrary(cfg, *library)
	if !ok {
		fatalf("unknown library %q (configure it under [[libraries]] in config.toml)", *library)
	}

	collectionID, err := libraryCollection(ctx, st, lib)
	if err != nil {
		fatalf("resolve collection: %v", err)
	}

	resolver, err := contentpath.WithRootUrl("file://" + lib.RootPath + "/")
	if err != nil {
		fatalf("resolve content path: %v", err)
	}

	var flags importpipeline.ImportFlags
	if *computeDigest {
		flags |= importpipeline.ComputeDigest
	}
	if *readArtwork {
		flags |= importpipeline.ReadArtwork
	}

	params := batch.Params{
		RootPath:                   lib.RootPath,
		ImportConfig:               importpipeline.ImportConfig{Flags: flags},
		PurgeUntrackedMediaSources: *purgeUntracked,
		PurgeOrphanedMediaSources:  *purgeOrphaned,
		FindUntrackedFiles:         *findUntracked,
		FindUnsynchronizedTracks:   *findUnsynced,
	}

	sink := progress.Func[batch.Progress](func(p batch.Progress) {
		fmt.Printf("rescan step %d: %+v\n", p.Step, p)
	})

	outcome, err := batch.Rescan(ctx, gk, st, mediareader.New(), resolver, collectionID, params, progress.NewAbortFlag(), sink)
	if err != nil {
		fatalf("rescan: %v", err)
	}
	fmt.Printf("rescan complete: %+v\n", outcome)
}

func runRelink(ctx context.Context, st *store.Store, gk *gatekeeper.Gatekeeper, args []string) {
	fs := flag.NewFlagSet("relink", flag.ExitOnError)
	title := fs.String("library", "", "configured library title to relink")
	_ = fs.Parse(args)

	if *title == "" {
		fatalf("relink requires -library")
	}
	collectionID, _, ok, err := st.FindCollectionByTitle(ctx, *title)
	if err != nil {
		fatalf("find collection: %v", err)
	}
	if !ok {
		fatalf("unknown library %q", *title)
	}

	relocated, err := gatekeeper.RunWrite(ctx, gk, func(_ *sql.DB, abort *progress.AbortFlag) ([]relink.RelocatedMediaSource, error) {
		return relink.RelinkTracksWithUntrackedMediaSources(ctx, st, collectionID, relink.DefaultParams(), abort,
			progress.Func[relink.Progress](func(p relink.Progress) {
				fmt.Printf("relink progress: %+v\n", p)
			}), nil)
	})
	if err != nil {
		fatalf("relink: %v", err)
	}
	fmt.Printf("relinked %d media sources\n", len(relocated))
}

func runReindex(ctx context.Context, st *store.Store, gk *gatekeeper.Gatekeeper, args []string) {
	fs := flag.NewFlagSet("reindex", flag.ExitOnError)
	title := fs.String("library", "", "configured library title to reindex")
	all := fs.Bool("all", false, "reindex every track unconditionally, rather than just recently updated ones")
	_ = fs.Parse(args)

	if *title == "" {
		fatalf("reindex requires -library")
	}
	collectionID, _, ok, err := st.FindCollectionByTitle(ctx, *title)
	if err != nil {
		fatalf("find collection: %v", err)
	}
	if !ok {
		fatalf("unknown library %q", *title)
	}

	params := reindex.DefaultParams()
	if *all {
		params.Mode = reindex.All
	}

	idx := memindex.New()
	summary, err := gatekeeper.RunWrite(ctx, gk, func(_ *sql.DB, _ *progress.AbortFlag) (reindex.Summary, error) {
		return reindex.Run(ctx, st, idx, collectionID, params,
			progress.Func[reindex.Progress](func(p reindex.Progress) {
				fmt.Printf("reindex progress: %+v\n", p)
			}))
	})
	if err != nil {
		fatalf("reindex: %v", err)
	}
	fmt.Printf("reindex complete: %+v\n", summary)
}

func runSearch(ctx context.Context, st *store.Store, args []string) {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	title := fs.String("library", "", "configured library title to search")
	query := fs.String("query", "", "search term matched against track/album title and artist")
	limit := fs.Int("limit", 50, "maximum rows to return")
	_ = fs.Parse(args)

	if *title == "" || *query == "" {
		fatalf("search requires -library and -query")
	}
	collectionID, _, ok, err := st.FindCollectionByTitle(ctx, *title)
	if err != nil {
		fatalf("find collection: %v", err)
	}
	if !ok {
		fatalf("unknown library %q", *title)
	}

	filter := search.Any{Filters: []search.Filter{
		search.TitlePhrase{Scope: search.ScopeTrack, NameTerms: []string{*query}},
		search.TitlePhrase{Scope: search.ScopeAlbum, NameTerms: []string{*query}},
		search.ActorPhrase{Scope: search.ScopeTrack, NameTerms: []string{*query}},
	}}
	sortKeys := []search.SortKey{{Field: search.SortUpdatedAt, Direction: search.Descending}}
	page := search.Pagination{Limit: limit}

	results, err := st.SearchTracks(ctx, collectionID, filter, sortKeys, page)
	if err != nil {
		fatalf("search: %v", err)
	}
	for _, r := range results {
		name, _ := r.Track.MainTitle()
		fmt.Printf("%s — %s (%s)\n", name, r.Track.Album.Title, r.ContentPath)
	}
}
