package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/coreman2200/arcaluminis-matrix/internal/errs"
)

type SPI struct {
	Dev     string `yaml:"dev"`      // e.g. /dev/spidev0.0, empty for the first port
	SpeedHz int    `yaml:"speed_hz"` // e.g. 2500000
}

type Layout struct {
	Serpentine bool   `yaml:"serpentine"`
	ColorOrder string `yaml:"color_order"` // wire order for spi-raw: RGB, GRB, ...
}

type Preview struct {
	Addr string `yaml:"addr"` // e.g. :8090
	FPS  int    `yaml:"fps"`
}

type Config struct {
	Driver      string        `yaml:"driver"` // "spi" | "spi-raw" | "console" | "sim"
	Brightness  uint8         `yaml:"brightness"`
	FPS         int           `yaml:"fps"`
	LockTimeout time.Duration `yaml:"lock_timeout"`
	StorePath   string        `yaml:"store_path"`
	LogLevel    string        `yaml:"log_level"`

	Layout  Layout  `yaml:"layout"`
	SPI     SPI     `yaml:"spi,omitempty"`
	Preview Preview `yaml:"preview,omitempty"`
}

func Default() *Config {
	return &Config{
		Driver:      "sim",
		Brightness:  128,
		FPS:         30,
		LockTimeout: 100 * time.Millisecond,
		StorePath:   "matrix-kv.yaml",
		LogLevel:    "info",
		Layout:      Layout{Serpentine: true, ColorOrder: "GRB"},
		SPI:         SPI{SpeedHz: 2500000},
		Preview:     Preview{Addr: ":8090", FPS: 15},
	}
}

// Load reads path over the defaults, so a partial file only overrides what
// it names.
func Load(path string) (*Config, error) {
	c := Default()
	if err := Overlay(path, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Overlay reads path over c. c is left untouched on error.
func Overlay(path string, c *Config) error {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return errs.Wrap(errs.NotFound, "config.Load", err)
		}
		return errs.Wrap(errs.IOFailure, "config.Load", err)
	}
	next := *c
	if err := yaml.Unmarshal(b, &next); err != nil {
		return errs.Wrap(errs.InvalidArgument, "config.Load", err)
	}
	if err := next.Validate(); err != nil {
		return err
	}
	*c = next
	return nil
}

func Save(path string, c *Config) error {
	b, err := yaml.Marshal(c)
	if err != nil {
		return errs.Wrap(errs.InvalidArgument, "config.Save", err)
	}
	if err := os.WriteFile(path, b, 0644); err != nil {
		return errs.Wrap(errs.IOFailure, "config.Save", err)
	}
	return nil
}

func (c *Config) Validate() error {
	switch c.Driver {
	case "spi", "spi-raw", "console", "sim":
	default:
		return errs.E(errs.InvalidArgument, "config.Validate", "driver %q", c.Driver)
	}
	if c.FPS <= 0 || c.FPS > 1000 {
		return errs.E(errs.InvalidArgument, "config.Validate", "fps %d", c.FPS)
	}
	if c.LockTimeout < 0 {
		return errs.E(errs.InvalidArgument, "config.Validate", "lock_timeout %s", c.LockTimeout)
	}
	if len(c.Layout.ColorOrder) != 3 {
		return errs.E(errs.InvalidArgument, "config.Validate", "color_order %q", c.Layout.ColorOrder)
	}
	return nil
}

// FrameDelay is the tick interval for FPS.
func (c *Config) FrameDelay() time.Duration {
	return time.Second / time.Duration(c.FPS)
}
