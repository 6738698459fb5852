package domain

import (
	"fmt"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/llehouerou/waves/internal/catalog/catalogerr"
)

// Color is either an RGB triple or a palette index, never both.
// Grounded on the teacher's gradient helpers in internal/ui/styles,
// generalized from UI blending into a persisted domain value.
type Color struct {
	hasRGB bool
	rgb    colorful.Color
	hasIdx bool
	idx    int
}

// ColorFromRGBHex parses a "#rrggbb" or "rrggbb" string into an RGB color.
func ColorFromRGBHex(hex string) (Color, error) {
	if len(hex) == 6 {
		hex = "#" + hex
	}
	c, err := colorful.Hex(hex)
	if err != nil {
		return Color{}, catalogerr.New(catalogerr.BadRequest, catalogerr.Op("parse color"), "invalid rgb hex color", err)
	}
	return Color{hasRGB: true, rgb: c}, nil
}

// ColorFromPaletteIndex returns a palette-index color.
func ColorFromPaletteIndex(idx int) (Color, error) {
	if idx < 0 {
		return Color{}, catalogerr.New(catalogerr.BadRequest, catalogerr.Op("parse color"),
			fmt.Sprintf("palette index must be >= 0, got %d", idx), nil)
	}
	return Color{hasIdx: true, idx: idx}, nil
}

// IsZero reports whether no color is set.
func (c Color) IsZero() bool { return !c.hasRGB && !c.hasIdx }

// IsRGB reports whether c carries an RGB triple.
func (c Color) IsRGB() bool { return c.hasRGB }

// IsPaletteIndex reports whether c carries a palette index.
func (c Color) IsPaletteIndex() bool { return c.hasIdx }

// Hex renders an RGB color as "#rrggbb". Panics if !IsRGB(); callers
// must check IsRGB first, matching the sum-type contract of spec.md §3.
func (c Color) Hex() string {
	if !c.hasRGB {
		panic("domain: Hex called on non-RGB color")
	}
	return c.rgb.Hex()
}

// PaletteIndex returns the palette index. Panics if !IsPaletteIndex().
func (c Color) PaletteIndex() int {
	if !c.hasIdx {
		panic("domain: PaletteIndex called on non-palette color")
	}
	return c.idx
}
