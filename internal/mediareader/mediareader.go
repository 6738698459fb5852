// Package mediareader is the reference implementation of
// importpipeline.MetadataReader (spec.md §1's external MetadataReader
// capability): it adapts internal/tags's format-specific byte parsers
// (ID3/Vorbis/MP4/FLAC, via dhowden/tag with taglib/go-mp4tag fallbacks)
// into the narrow draft the import pipeline needs, and is not otherwise
// reachable from internal/catalog.
package mediareader

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"lukechampine.com/blake3"

	"github.com/llehouerou/waves/internal/catalog/catalogerr"
	"github.com/llehouerou/waves/internal/catalog/domain"
	"github.com/llehouerou/waves/internal/catalog/tracker/importpipeline"
	"github.com/llehouerou/waves/internal/tags"
	"github.com/llehouerou/waves/internal/thumbnail"
)

// Reader implements importpipeline.MetadataReader over internal/tags.
type Reader struct{}

// New returns a ready-to-use Reader. internal/tags has no state of its
// own, so there is nothing to configure.
func New() *Reader { return &Reader{} }

var _ importpipeline.MetadataReader = (*Reader)(nil)

func (Reader) Read(_ context.Context, absoluteFilePath string, cfg importpipeline.ImportConfig) (importpipeline.TrackDraft, error) {
	info, err := tags.ReadWithAudio(absoluteFilePath)
	if err != nil {
		if os.IsNotExist(err) {
			return importpipeline.TrackDraft{}, catalogerr.Wrap(catalogerr.Io, catalogerr.OpTrackerImport, err)
		}
		return importpipeline.TrackDraft{}, catalogerr.Wrap(catalogerr.MediaFormat, catalogerr.OpTrackerImport, err)
	}

	var digest []byte
	if cfg.Flags&importpipeline.ComputeDigest != 0 {
		digest, err = hashFile(absoluteFilePath)
		if err != nil {
			return importpipeline.TrackDraft{}, catalogerr.Wrap(catalogerr.Io, catalogerr.OpTrackerImport, err)
		}
	}

	artwork := domain.Artwork{Kind: domain.ArtworkMissing}
	if cfg.Flags&importpipeline.ReadArtwork != 0 {
		artwork = readArtwork(absoluteFilePath)
	}

	draft := importpipeline.TrackDraft{
		MediaSource: domain.MediaSource{
			ContentType:   contentType(info.AudioInfo.Format),
			ContentDigest: digest,
			Audio: domain.AudioMetadata{
				DurationMs:   info.AudioInfo.Duration.Milliseconds(),
				SampleRateHz: info.AudioInfo.SampleRate,
				BitrateBps:   estimateBitrate(absoluteFilePath, info.AudioInfo.Duration),
				Encoder:      info.AudioInfo.Format,
			},
			Artwork: artwork,
		},
		Track: trackFromTag(info.Tag),
	}
	return draft, nil
}

func trackFromTag(t tags.Tag) domain.Track {
	var track domain.Track
	track.Titles = []domain.Title{{Kind: domain.TitleMain, Name: t.Title}}
	track.Album = domain.Album{Title: t.Album, ArtistName: t.AlbumArtist}
	track.Indexes.Track = domain.Index{Number: t.TrackNumber, Total: t.TotalTracks}
	track.Indexes.Disc = domain.Index{Number: t.DiscNumber, Total: t.TotalDiscs}
	track.Publisher = t.Label

	if t.Date != "" {
		if d, err := domain.ParseDateOrDateTime(t.Date); err == nil {
			track.ReleasedAt = &d
		}
	}
	if t.OriginalDate != "" {
		if d, err := domain.ParseDateOrDateTime(t.OriginalDate); err == nil {
			track.ReleasedOrigAt = &d
		}
	}

	var actors domain.Actors
	if t.Artist != "" {
		actors = append(actors, domain.Actor{Role: domain.ActorArtist, Kind: domain.ActorSummary, Name: t.Artist})
	}
	track.Actors = actors
	return track
}

// contentType maps internal/tags's coarse format label to a MIME type,
// the way ImportFlags.ComputeDigest/ReadArtwork already assume MediaSource
// carries one.
func contentType(format string) string {
	switch strings.ToUpper(format) {
	case "MP3":
		return "audio/mpeg"
	case "FLAC":
		return "audio/flac"
	case "OPUS":
		return "audio/opus"
	case "AAC", "M4A":
		return "audio/mp4"
	case "ALAC":
		return "audio/mp4; codecs=alac"
	default:
		return "application/octet-stream"
	}
}

// estimateBitrate approximates a constant bitrate from file size and
// duration when the decoder didn't report one directly (internal/tags's
// AudioInfo carries no bitrate field of its own).
func estimateBitrate(path string, duration time.Duration) int {
	if duration <= 0 {
		return 0
	}
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	seconds := duration.Seconds()
	if seconds <= 0 {
		return 0
	}
	return int(float64(info.Size()) * 8 / seconds)
}

func hashFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	h := blake3.New(32, nil)
	if _, err := io.Copy(h, f); err != nil {
		return nil, err
	}
	return h.Sum(nil), nil
}

func readArtwork(path string) domain.Artwork {
	data, mimeType, err := tags.ExtractCoverArt(path)
	if err != nil || data == nil {
		return domain.Artwork{Kind: domain.ArtworkMissing}
	}
	img, err := thumbnail.Decode(data)
	if err != nil {
		return domain.Artwork{Kind: domain.ArtworkIrregular}
	}
	return domain.Artwork{
		Kind: domain.ArtworkEmbedded,
		Image: domain.ArtworkImage{
			MediaType: mimeType,
			ApicType:  domain.ApicFrontCover,
			Width:     img.Width,
			Height:    img.Height,
			Digest:    digestBytes(data),
			Thumbnail: img.Thumbnail,
		},
	}
}

func digestBytes(data []byte) []byte {
	h := blake3.New(32, nil)
	h.Write(data)
	return h.Sum(nil)
}
