package draw

import (
	"image/color"
	"unicode/utf8"

	"tinygo.org/x/drivers"
	"tinygo.org/x/tinyfont"

	"github.com/coreman2200/arcaluminis-matrix/internal/errs"
	"github.com/coreman2200/arcaluminis-matrix/internal/model"
)

// MAX_TEXT keeps a line inside tinyfont's int16 pen range.
const MAX_TEXT = 512

// frameDisplay lets tinyfont draw straight into a frame.
type frameDisplay struct {
	f *model.Frame
}

var _ drivers.Displayer = (*frameDisplay)(nil)

func (d *frameDisplay) Size() (x, y int16) {
	return model.Width, model.Height
}

func (d *frameDisplay) SetPixel(x, y int16, c color.RGBA) {
	ix, iy := int(x), int(y)
	if !model.InBounds(ix, iy) {
		return
	}
	d.f.Set(ix, iy, model.RGB{R: c.R, G: c.G, B: c.B})
}

func (d *frameDisplay) Display() error {
	return nil
}

// DrawText writes s with its top-left corner at (x,y) using Font. Runes
// without a glyph are skipped and take no space. '\n' starts a new line.
func DrawText(t Target, x, y int, s string, c model.RGB) error {
	return DrawTextWith(t, Font, x, y, s, c)
}

// DrawTextWith is DrawText with a caller supplied font. The y offset assumes
// glyphs hang from the baseline the way Font's do.
func DrawTextWith(t Target, font tinyfont.Fonter, x, y int, s string, c model.RGB) error {
	if err := checkWindow("DrawText", x, y); err != nil {
		return err
	}
	if n := utf8.RuneCountInString(s); n > MAX_TEXT {
		return errs.E(errs.InvalidArgument, "DrawText", "%d runes, max %d", n, MAX_TEXT)
	}
	baseline := int16(y + GlyphHeight - 1)
	return t.Update(func(f *model.Frame) error {
		tinyfont.WriteLine(&frameDisplay{f: f}, font, int16(x), baseline, s, c.ToRGBA())
		return nil
	})
}

// TextWidth is the pixel width of s in Font.
func TextWidth(s string) int {
	if s == "" {
		return 0
	}
	_, outbox := tinyfont.LineWidth(Font, s)
	return int(outbox)
}
