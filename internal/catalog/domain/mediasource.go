package domain

import "time"

// ContentLink identifies the file backing a MediaSource within a
// collection. Path semantics are defined by the collection's
// ContentPathConfig; Rev is an optional opaque revision stamp. For local
// filesystem sources the import pipeline stores the file's modification
// time in it (see importpipeline's fileRevision).
type ContentLink struct {
	Path string
	Rev  string
}

// AudioMetadata carries the technical properties of an audio stream.
type AudioMetadata struct {
	DurationMs   int64
	Channels     int
	SampleRateHz int
	BitrateBps   int
	LoudnessLufs *float64
	Encoder      string
}

// ArtworkKind enumerates the artwork variants of spec.md §3.
type ArtworkKind int

const (
	ArtworkMissing ArtworkKind = iota
	ArtworkUnsupported
	ArtworkIrregular
	ArtworkEmbedded
	ArtworkLinked
)

// ApicType is the ID3-standard role code for an embedded image
// (front cover, back cover, etc).
type ApicType int

const (
	ApicOther ApicType = iota
	ApicFrontCover
	ApicBackCover
	ApicLeafletPage
	ApicMedia
	ApicArtist
)

// Thumbnail is a 4x4 RGB reduced-size preview of an artwork image.
type Thumbnail [4 * 4 * 3]byte

// ArtworkImage carries the description of an image, embedded or linked.
type ArtworkImage struct {
	MediaType string
	ApicType  ApicType
	Width     int
	Height    int
	Digest    []byte
	Thumbnail Thumbnail
}

// Artwork is the sum type describing a media source's cover art.
// Exactly one of the accessors below is meaningful, selected by Kind.
type Artwork struct {
	Kind  ArtworkKind
	Image ArtworkImage // valid when Kind is ArtworkEmbedded or ArtworkLinked
	Uri   string       // valid when Kind is ArtworkLinked
}

// MediaSource is the file backing a Track.
type MediaSource struct {
	CollectedAt   time.Time
	ContentLink   ContentLink
	ContentType   string
	Audio         AudioMetadata
	ContentDigest []byte
	Artwork       Artwork
}
