package driver

import (
	"context"
	"image"
	"sync"

	"periph.io/x/conn/v3/display"
	"periph.io/x/devices/v3/screen1d"

	"github.com/coreman2200/arcaluminis-matrix/internal/errs"
	"github.com/coreman2200/arcaluminis-matrix/internal/model"
)

// Console prints each frame as one line of ANSI colored cells, in strip
// order. Used when no SPI port is available.
type Console struct {
	mu     sync.Mutex
	dev    display.Drawer
	layout Layout
	img    *image.NRGBA
}

func NewConsole(serpentine bool) *Console {
	return NewConsoleOn(screen1d.New(&screen1d.Opts{X: model.PixelCount}), serpentine)
}

// NewConsoleOn renders onto any 1-pixel-high drawer.
func NewConsoleOn(dev display.Drawer, serpentine bool) *Console {
	return &Console{
		dev:    dev,
		layout: Layout{Serpentine: serpentine, Order: ORDER_RGB},
		img:    image.NewNRGBA(image.Rect(0, 0, model.PixelCount, 1)),
	}
}

func (c *Console) String() string { return "console" }

func (c *Console) Transmit(ctx context.Context, f model.Frame) error {
	if err := ctx.Err(); err != nil {
		return errs.Wrap(errs.Timeout, "Console.Transmit", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for y := 0; y < model.Height; y++ {
		for x := 0; x < model.Width; x++ {
			c.img.Set(c.layout.Index(x, y), 0, f.At(x, y).ToRGBA())
		}
	}
	if err := c.dev.Draw(c.dev.Bounds(), c.img, image.Point{}); err != nil {
		return errs.Wrap(errs.IOFailure, "Console.Transmit", err)
	}
	return nil
}

func (c *Console) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.dev.Halt(); err != nil {
		return errs.Wrap(errs.IOFailure, "Console.Close", err)
	}
	return nil
}
