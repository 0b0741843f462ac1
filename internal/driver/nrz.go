package driver

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/devices/v3/nrzled"

	"github.com/coreman2200/arcaluminis-matrix/internal/errs"
	"github.com/coreman2200/arcaluminis-matrix/internal/model"
)

const DFLT_NRZ_FREQ = 2500 * physic.KiloHertz

// NRZ sends frames through periph's nrzled encoder. nrzled takes an RGB
// stream and reorders it for the strip, so only the serpentine part of the
// layout applies.
type NRZ struct {
	mu     sync.Mutex
	dev    *nrzled.Dev
	port   spi.PortCloser
	layout Layout
	buf    []byte
	log    zerolog.Logger
}

func OpenNRZ(name string, freq physic.Frequency, serpentine bool, log zerolog.Logger) (*NRZ, error) {
	p, err := spireg.Open(name)
	if err != nil {
		return nil, errs.Wrap(errs.NotFound, "driver.OpenNRZ", err)
	}
	d, err := NewNRZ(p, freq, serpentine, log)
	if err != nil {
		_ = p.Close()
		return nil, err
	}
	d.port = p
	return d, nil
}

func NewNRZ(p spi.Port, freq physic.Frequency, serpentine bool, log zerolog.Logger) (*NRZ, error) {
	if freq <= 0 {
		freq = DFLT_NRZ_FREQ
	}
	dev, err := nrzled.NewSPI(p, &nrzled.Opts{
		NumPixels: model.PixelCount,
		Channels:  3,
		Freq:      freq,
	})
	if err != nil {
		return nil, errs.Wrap(errs.IOFailure, "driver.NewNRZ", err)
	}
	return &NRZ{
		dev:    dev,
		layout: Layout{Serpentine: serpentine, Order: ORDER_RGB},
		log:    log.With().Str("component", "driver.nrz").Logger(),
	}, nil
}

func (d *NRZ) String() string { return d.dev.String() }

func (d *NRZ) Transmit(ctx context.Context, f model.Frame) error {
	if err := ctx.Err(); err != nil {
		return errs.Wrap(errs.Timeout, "NRZ.Transmit", err)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.buf = d.layout.Encode(&f, d.buf)
	if _, err := d.dev.Write(d.buf); err != nil {
		return errs.Wrap(errs.IOFailure, "NRZ.Transmit", err)
	}
	return nil
}

// Close blanks the strip and releases the port.
func (d *NRZ) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	err := d.dev.Halt()
	if d.port != nil {
		if cerr := d.port.Close(); err == nil {
			err = cerr
		}
		d.port = nil
	}
	if err != nil {
		return errs.Wrap(errs.IOFailure, "NRZ.Close", err)
	}
	return nil
}
