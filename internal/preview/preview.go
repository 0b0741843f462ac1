// Package preview renders frames as pictures of the physical panel: one
// lit disc per LED on a dark board.
package preview

import (
	"image"
	"image/color"
	"io"

	"github.com/fogleman/gg"

	"github.com/coreman2200/arcaluminis-matrix/internal/errs"
	"github.com/coreman2200/arcaluminis-matrix/internal/model"
)

const (
	DFLT_CELL = 16
	MAX_CELL  = 64
)

type Options struct {
	Cell  int     // pixels per LED
	Fill  float64 // disc diameter as a fraction of Cell
	Board color.Color
}

var DefaultOptions = Options{Cell: DFLT_CELL, Fill: 0.8, Board: color.RGBA{0x10, 0x10, 0x12, 0xFF}}

func (o Options) normalize() (Options, error) {
	if o.Cell == 0 {
		o.Cell = DFLT_CELL
	}
	if o.Cell < 1 || o.Cell > MAX_CELL {
		return o, errs.E(errs.InvalidArgument, "preview.Options", "cell %d out of range", o.Cell)
	}
	if o.Fill <= 0 || o.Fill > 1 {
		o.Fill = DefaultOptions.Fill
	}
	if o.Board == nil {
		o.Board = DefaultOptions.Board
	}
	return o, nil
}

// Render draws f. Pixel (x,y) sits centered in cell (x,y).
func Render(f *model.Frame, o Options) (image.Image, error) {
	o, err := o.normalize()
	if err != nil {
		return nil, err
	}
	dc := gg.NewContext(model.Width*o.Cell, model.Height*o.Cell)
	dc.SetColor(o.Board)
	dc.Clear()

	r := float64(o.Cell) * o.Fill / 2
	for y := 0; y < model.Height; y++ {
		for x := 0; x < model.Width; x++ {
			cx := float64(x*o.Cell) + float64(o.Cell)/2
			cy := float64(y*o.Cell) + float64(o.Cell)/2
			dc.DrawCircle(cx, cy, r)
			dc.SetColor(f.At(x, y).ToRGBA())
			dc.Fill()
		}
	}
	return dc.Image(), nil
}

func WritePNG(w io.Writer, f *model.Frame, o Options) error {
	o, err := o.normalize()
	if err != nil {
		return err
	}
	img, err := Render(f, o)
	if err != nil {
		return err
	}
	if err := gg.NewContextForImage(img).EncodePNG(w); err != nil {
		return errs.Wrap(errs.IOFailure, "preview.WritePNG", err)
	}
	return nil
}

func SavePNG(path string, f *model.Frame, o Options) error {
	img, err := Render(f, o)
	if err != nil {
		return err
	}
	if err := gg.SavePNG(path, img); err != nil {
		return errs.Wrap(errs.IOFailure, "preview.SavePNG", err)
	}
	return nil
}
