package driver

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"

	"github.com/coreman2200/arcaluminis-matrix/internal/errs"
	"github.com/coreman2200/arcaluminis-matrix/internal/model"
)

const (
	DFLT_RAW_SPEED_HZ = 2400000
	DFLT_RESET_US     = 300
	RAW_BITS_PER_BIT  = 3
)

// lut expands each byte MSB first into 3 SPI bits per data bit:
// 1 -> 110, 0 -> 100. 8*3 = 24 bits packed into 3 bytes.
var lut = func() (t [256][3]byte) {
	for v := 0; v < 256; v++ {
		out := uint32(0)
		for i := 7; i >= 0; i-- {
			tri := uint32(0b100)
			if (v>>i)&1 == 1 {
				tri = 0b110
			}
			out = out<<3 | tri
		}
		t[v] = [3]byte{byte(out >> 16), byte(out >> 8), byte(out)}
	}
	return t
}()

// Raw drives WS2812-style strips by bit-expanding the stream itself and
// writing it over a plain SPI connection. The latch is a run of zero bytes.
//
// Linux spidev defaults to a 4096 byte transfer; a full frame needs
// spidev.bufsiz of at least 16384.
type Raw struct {
	mu     sync.Mutex
	name   string
	conn   spi.Conn
	port   spi.PortCloser
	layout Layout
	reset  int
	strip  []byte
	wire   []byte
	log    zerolog.Logger
}

// OpenRaw opens the named SPI port ("" for the first one).
func OpenRaw(name string, speedHz int, l Layout, log zerolog.Logger) (*Raw, error) {
	p, err := spireg.Open(name)
	if err != nil {
		return nil, errs.Wrap(errs.NotFound, "driver.OpenRaw", err)
	}
	d, err := NewRaw(p, speedHz, l, log)
	if err != nil {
		_ = p.Close()
		return nil, err
	}
	d.port = p
	return d, nil
}

// NewRaw connects to p in mode 0 with 8 bit words.
func NewRaw(p spi.Port, speedHz int, l Layout, log zerolog.Logger) (*Raw, error) {
	if speedHz <= 0 {
		speedHz = DFLT_RAW_SPEED_HZ
	}
	c, err := p.Connect(physic.Frequency(speedHz)*physic.Hertz, spi.Mode0, 8)
	if err != nil {
		return nil, errs.Wrap(errs.IOFailure, "driver.NewRaw", err)
	}
	// zero bits needed to hold the line low for the latch time
	bits := speedHz / 1000 * DFLT_RESET_US / 1000
	return &Raw{
		name:   fmt.Sprintf("raw{%s}", p),
		conn:   c,
		layout: l,
		reset:  (bits + 7) / 8,
		log:    log.With().Str("component", "driver.raw").Logger(),
	}, nil
}

func (d *Raw) String() string { return d.name }

// WireSize is the number of bytes sent per frame, latch included.
func (d *Raw) WireSize() int {
	return model.PixelCount*3*RAW_BITS_PER_BIT + d.reset
}

func (d *Raw) Transmit(ctx context.Context, f model.Frame) error {
	if err := ctx.Err(); err != nil {
		return errs.Wrap(errs.Timeout, "Raw.Transmit", err)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.strip = d.layout.Encode(&f, d.strip)
	d.wire = expand(d.strip, d.reset, d.wire)
	if err := d.conn.Tx(d.wire, nil); err != nil {
		return errs.Wrap(errs.IOFailure, "Raw.Transmit", err)
	}
	return nil
}

func (d *Raw) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.port == nil {
		return nil
	}
	err := d.port.Close()
	d.port = nil
	if err != nil {
		return errs.Wrap(errs.IOFailure, "Raw.Close", err)
	}
	return nil
}

func expand(strip []byte, reset int, dst []byte) []byte {
	n := len(strip)*RAW_BITS_PER_BIT + reset
	if cap(dst) < n {
		dst = make([]byte, n)
	}
	dst = dst[:n]
	for i, v := range strip {
		e := lut[v]
		copy(dst[i*3:], e[:])
	}
	for i := len(strip) * RAW_BITS_PER_BIT; i < n; i++ {
		dst[i] = 0
	}
	return dst
}
