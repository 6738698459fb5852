package store

import (
	"database/sql"
	"encoding/json"
	"time"

	_ "modernc.org/sqlite"

	"github.com/sirupsen/logrus"

	"github.com/llehouerou/waves/internal/catalog/catalogerr"
	"github.com/llehouerou/waves/internal/catalog/domain"
	"github.com/llehouerou/waves/internal/db"
)

var log = logrus.WithField("component", "store")

// Store is the sqlite-backed implementation of every repository port the
// catalog engine needs (entity CRUD, tracker, search). A single *sql.DB
// backs it; callers serialize writer access through the gatekeeper
// (internal/catalog/gatekeeper), not through Store itself.
type Store struct {
	db *sql.DB
}

// Open opens (creating if absent) the sqlite database at dsn and applies
// the schema migration, mirroring the teacher's state.New.
func Open(dsn string) (*Store, error) {
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, catalogerr.Wrap(catalogerr.Storage, catalogerr.Op("open store"), err)
	}
	if err := initSchema(sqlDB); err != nil {
		sqlDB.Close()
		return nil, catalogerr.Wrap(catalogerr.Storage, catalogerr.Op("migrate store"), err)
	}
	log.WithField("dsn", dsn).Debug("opened store")
	return &Store{db: sqlDB}, nil
}

// New wraps an already-open database handle (used in tests, via
// sql.Open("sqlite", ":memory:")).
func New(sqlDB *sql.DB) (*Store, error) {
	if err := initSchema(sqlDB); err != nil {
		return nil, catalogerr.Wrap(catalogerr.Storage, catalogerr.Op("migrate store"), err)
	}
	return &Store{db: sqlDB}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the raw handle for callers (e.g. the gatekeeper) that need
// to construct their own read/write connections against the same file.
func (s *Store) DB() *sql.DB { return s.db }

func unixMillis(t time.Time) int64 { return t.UnixMilli() }

func fromUnixMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

func encodeColor(c domain.Color) (rgb sql.NullString, idx sql.NullInt64) {
	switch {
	case c.IsRGB():
		rgb = sql.NullString{String: c.Hex(), Valid: true}
	case c.IsPaletteIndex():
		idx = sql.NullInt64{Int64: int64(c.PaletteIndex()), Valid: true}
	}
	return
}

func decodeColor(rgb sql.NullString, idx sql.NullInt64) domain.Color {
	switch {
	case rgb.Valid:
		c, err := domain.ColorFromRGBHex(rgb.String)
		if err != nil {
			return domain.Color{}
		}
		return c
	case idx.Valid:
		c, err := domain.ColorFromPaletteIndex(int(idx.Int64))
		if err != nil {
			return domain.Color{}
		}
		return c
	default:
		return domain.Color{}
	}
}

func encodeJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(b)
}

func decodeJSON[T any](s string, out *T) {
	if s == "" {
		return
	}
	_ = json.Unmarshal([]byte(s), out)
}

func withTx(sqlDB *sql.DB, fn func(tx *sql.Tx) error) error {
	return db.WithTx(sqlDB, fn)
}
