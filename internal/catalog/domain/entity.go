// Package domain defines the catalog's value types: identifiers,
// revisions, content paths, tags, audio metrics, and entity bodies.
// Grounded on original_source/core/src/entity/mod.rs.
package domain

import (
	"crypto/rand"
	"fmt"
	"time"

	"github.com/mr-tron/base58"

	"github.com/llehouerou/waves/internal/catalog/catalogerr"
)

// UidLen is the fixed byte length of an EntityUid payload.
const UidLen = 24

// EntityUid is a 24-byte random identifier, canonically rendered as
// Base58 (Bitcoin alphabet), 32-33 characters.
type EntityUid [UidLen]byte

// NewEntityUid generates a fresh random uid.
func NewEntityUid() EntityUid {
	var uid EntityUid
	// crypto/rand.Read never returns a short read without an error.
	if _, err := rand.Read(uid[:]); err != nil {
		panic(fmt.Sprintf("domain: failed to read random bytes: %v", err))
	}
	return uid
}

// IsNil reports whether uid is the zero value (never a valid generated uid).
func (u EntityUid) IsNil() bool {
	return u == EntityUid{}
}

// String renders u as Base58 using the Bitcoin alphabet.
func (u EntityUid) String() string {
	return base58.Encode(u[:])
}

// ParseEntityUid decodes a Base58 string into an EntityUid.
// Bit-exact roundtrip with String is a required property (spec.md §8 P7).
func ParseEntityUid(s string) (EntityUid, error) {
	if len(s) == 0 || len(s) > 33 {
		return EntityUid{}, catalogerr.New(catalogerr.BadRequest, catalogerr.Op("parse uid"),
			fmt.Sprintf("uid string must be 1-33 characters, got %d", len(s)), nil)
	}
	decoded, err := base58.Decode(s)
	if err != nil {
		return EntityUid{}, catalogerr.New(catalogerr.BadRequest, catalogerr.Op("parse uid"), "invalid base58 encoding", err)
	}
	if len(decoded) != UidLen {
		return EntityUid{}, catalogerr.New(catalogerr.BadRequest, catalogerr.Op("parse uid"),
			fmt.Sprintf("decoded uid must be %d bytes, got %d", UidLen, len(decoded)), nil)
	}
	var uid EntityUid
	copy(uid[:], decoded)
	return uid, nil
}

// EntityRevision is (version, timestamp). Version is monotone: every
// successful update produces version+1 with a fresh timestamp.
type EntityRevision struct {
	Version   uint64
	Timestamp time.Time
}

// InitialRevision returns the first revision for a freshly inserted entity.
func InitialRevision(now time.Time) EntityRevision {
	return EntityRevision{Version: 1, Timestamp: now}
}

// Next returns the revision that must follow r after a successful update.
func (r EntityRevision) Next(now time.Time) EntityRevision {
	return EntityRevision{Version: r.Version + 1, Timestamp: now}
}

// IsInitial reports whether r is the first revision of an entity.
func (r EntityRevision) IsInitial() bool {
	return r.Version == 1
}

func (r EntityRevision) String() string {
	return fmt.Sprintf("%d@%s", r.Version, r.Timestamp.Format(time.RFC3339Nano))
}

// EntityHeader identifies and versions a persisted entity.
type EntityHeader struct {
	Uid EntityUid
	Rev EntityRevision
}

// NewEntityHeader returns a header for a freshly inserted entity.
func NewEntityHeader(now time.Time) EntityHeader {
	return EntityHeader{Uid: NewEntityUid(), Rev: InitialRevision(now)}
}
