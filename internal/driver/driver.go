// Package driver turns frames into light: SPI strips, the console, or a
// simulated sink.
package driver

import (
	"io"
	"time"

	"github.com/rs/zerolog"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"

	"github.com/coreman2200/arcaluminis-matrix/internal/config"
	"github.com/coreman2200/arcaluminis-matrix/internal/matrix"
)

type Driver interface {
	matrix.Transmitter
	io.Closer
	String() string
}

var (
	_ Driver = (*NRZ)(nil)
	_ Driver = (*Raw)(nil)
	_ Driver = (*Console)(nil)
	_ Driver = (*Sim)(nil)
)

// Open builds the driver named by c. A missing SPI port falls back to the
// console, the way a bench setup without a strip still shows frames.
func Open(c *config.Config, log zerolog.Logger) (Driver, error) {
	switch c.Driver {
	case "sim":
		return NewSim(log), nil
	case "console":
		return NewConsole(c.Layout.Serpentine), nil
	}

	start := time.Now()
	if _, err := host.Init(); err != nil {
		log.Warn().Err(err).Msg("host init failed, printing at the console")
		return NewConsole(c.Layout.Serpentine), nil
	}

	var (
		d   Driver
		err error
	)
	if c.Driver == "spi-raw" {
		order, perr := ParseOrder(c.Layout.ColorOrder)
		if perr != nil {
			return nil, perr
		}
		d, err = OpenRaw(c.SPI.Dev, c.SPI.SpeedHz, Layout{Serpentine: c.Layout.Serpentine, Order: order}, log)
	} else {
		d, err = OpenNRZ(c.SPI.Dev, physic.Frequency(c.SPI.SpeedHz)*physic.Hertz, c.Layout.Serpentine, log)
	}
	if err != nil {
		log.Warn().Err(err).Str("dev", c.SPI.Dev).Msg("failed to find a SPI port, printing at the console")
		return NewConsole(c.Layout.Serpentine), nil
	}
	log.Info().Str("driver", d.String()).Dur("took", time.Since(start)).Msg("driver ready")
	return d, nil
}
