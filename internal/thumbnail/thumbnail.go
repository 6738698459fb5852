// Package thumbnail decodes embedded cover art and reduces it to the
// domain.Thumbnail low-resolution preview (spec.md §1's ArtworkImage),
// grounded on the teacher's own cover-art decode path
// (internal/ui/albumart/albumart.go's image.Decode + nfnt/resize use,
// there for terminal rendering rather than a stored preview).
package thumbnail

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	"github.com/nfnt/resize"

	"github.com/llehouerou/waves/internal/catalog/domain"
)

// thumbnailSide is the fixed edge length of a domain.Thumbnail preview.
const thumbnailSide = 4

// Image is a decoded artwork's dimensions plus its reduced preview.
type Image struct {
	Width     int
	Height    int
	Thumbnail domain.Thumbnail
}

// Decode parses raw image bytes (JPEG or PNG, the formats dhowden/tag and
// the folder-image fallback both hand back) and reduces them to a
// thumbnailSide x thumbnailSide RGB preview.
func Decode(data []byte) (Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return Image{}, fmt.Errorf("decode artwork: %w", err)
	}
	bounds := img.Bounds()

	small := resize.Resize(thumbnailSide, thumbnailSide, img, resize.Lanczos3)

	var out domain.Thumbnail
	i := 0
	for y := 0; y < thumbnailSide; y++ {
		for x := 0; x < thumbnailSide; x++ {
			r, g, b, _ := small.At(x, y).RGBA()
			out[i] = byte(r >> 8)
			out[i+1] = byte(g >> 8)
			out[i+2] = byte(b >> 8)
			i += 3
		}
	}

	return Image{
		Width:     bounds.Dx(),
		Height:    bounds.Dy(),
		Thumbnail: out,
	}, nil
}
