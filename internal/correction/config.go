package correction

import (
	"math"

	"github.com/coreman2200/arcaluminis-matrix/internal/errs"
)

const (
	MinScale = 0.0
	MaxScale = 2.0
	MinGamma = 0.1
	MaxGamma = 4.0

	DefaultGamma = 2.2
)

type WhitePoint struct {
	Enabled bool    `json:"enabled"`
	R       float64 `json:"red_scale"`
	G       float64 `json:"green_scale"`
	B       float64 `json:"blue_scale"`
}

type Gamma struct {
	Enabled bool    `json:"enabled"`
	Value   float64 `json:"value"`
}

type Brightness struct {
	Enabled bool    `json:"enabled"`
	Factor  float64 `json:"factor"`
}

type Saturation struct {
	Enabled bool    `json:"enabled"`
	Factor  float64 `json:"factor"`
}

// Config is the full correction state. Enabled bypasses every stage when false.
type Config struct {
	Enabled    bool       `json:"enabled"`
	WhitePoint WhitePoint `json:"white_point"`
	Gamma      Gamma      `json:"gamma"`
	Brightness Brightness `json:"brightness"`
	Saturation Saturation `json:"saturation"`
}

// DefaultConfig enables the chain with only gamma active; the other stages
// sit at their identity values.
func DefaultConfig() Config {
	return Config{
		Enabled:    true,
		WhitePoint: WhitePoint{R: 1, G: 1, B: 1},
		Gamma:      Gamma{Enabled: true, Value: DefaultGamma},
		Brightness: Brightness{Factor: 1},
		Saturation: Saturation{Factor: 1},
	}
}

// Validate checks every parameter against its declared range.
func (c Config) Validate() error {
	if err := checkScale("white_point.red_scale", c.WhitePoint.R); err != nil {
		return err
	}
	if err := checkScale("white_point.green_scale", c.WhitePoint.G); err != nil {
		return err
	}
	if err := checkScale("white_point.blue_scale", c.WhitePoint.B); err != nil {
		return err
	}
	if err := checkGamma(c.Gamma.Value); err != nil {
		return err
	}
	if err := checkScale("brightness.factor", c.Brightness.Factor); err != nil {
		return err
	}
	return checkScale("saturation.factor", c.Saturation.Factor)
}

func checkScale(field string, v float64) error {
	if math.IsNaN(v) || v < MinScale || v > MaxScale {
		return errs.E(errs.InvalidArgument, "correction", "%s=%v outside [%.1f, %.1f]", field, v, MinScale, MaxScale)
	}
	return nil
}

// checkGamma accepts (MinGamma, MaxGamma]: MinGamma itself is excluded.
func checkGamma(v float64) error {
	if math.IsNaN(v) || v <= MinGamma || v > MaxGamma {
		return errs.E(errs.InvalidArgument, "correction", "gamma=%v outside (%.1f, %.1f]", v, MinGamma, MaxGamma)
	}
	return nil
}
