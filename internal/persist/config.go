package persist

import (
	"github.com/coreman2200/arcaluminis-matrix/internal/correction"
	"github.com/coreman2200/arcaluminis-matrix/internal/errs"
	"github.com/coreman2200/arcaluminis-matrix/internal/matrix"
)

const (
	NS_MATRIX = "matrix"
	NS_COLOR  = "color_corr"
)

// Record is the persisted visual configuration of a matrix.
type Record struct {
	Mode       matrix.Mode
	Brightness uint8
	Enabled    bool
	Correction correction.Config
}

func (r Record) Validate() error {
	if !r.Mode.Valid() {
		return errs.E(errs.InvalidArgument, "Record.Validate", "mode %d", uint8(r.Mode))
	}
	return r.Correction.Validate()
}

// Capture reads the live settings of m.
func Capture(m *matrix.Matrix) Record {
	st := m.Status()
	return Record{
		Mode:       st.Mode,
		Brightness: st.Brightness,
		Enabled:    st.Enabled,
		Correction: m.Correction().Config(),
	}
}

// ApplyTo installs r on m. Nothing changes unless r is valid and m is
// initialized. No animation is persisted, so Animation and Custom come
// back as Static.
func (r Record) ApplyTo(m *matrix.Matrix) error {
	if err := r.Validate(); err != nil {
		return err
	}
	if !m.Status().Initialized {
		return errs.E(errs.InvalidState, "Record.ApplyTo", "matrix not initialized")
	}
	if err := m.SetCorrection(r.Correction); err != nil {
		return err
	}
	m.SetBrightness(r.Brightness)
	toggle := m.Disable
	if r.Enabled {
		toggle = m.Enable
	}
	if err := toggle(); err != nil {
		return err
	}
	return m.SetMode(r.restoredMode())
}

func (r Record) restoredMode() matrix.Mode {
	if r.Mode == matrix.Animation || r.Mode == matrix.Custom {
		return matrix.Static
	}
	return r.Mode
}

// Entries flattens r into namespaced, typed values.
func (r Record) Entries() map[string]map[string]Value {
	c := r.Correction
	return map[string]map[string]Value{
		NS_MATRIX: {
			"mode":       U8(uint8(r.Mode)),
			"brightness": U8(r.Brightness),
			"enabled":    B(r.Enabled),
		},
		NS_COLOR: {
			"enabled":        B(c.Enabled),
			"wp_enabled":     B(c.WhitePoint.Enabled),
			"wp_red":         F64(c.WhitePoint.R),
			"wp_green":       F64(c.WhitePoint.G),
			"wp_blue":        F64(c.WhitePoint.B),
			"gamma_enabled":  B(c.Gamma.Enabled),
			"gamma":          F64(c.Gamma.Value),
			"bright_enabled": B(c.Brightness.Enabled),
			"bright":         F64(c.Brightness.Factor),
			"sat_enabled":    B(c.Saturation.Enabled),
			"sat":            F64(c.Saturation.Factor),
		},
	}
}

type getter func(ns, key string, t Type) (Value, error)

// recordFrom reads every field through get and validates the result. The
// first missing or mistyped key aborts.
func recordFrom(get getter) (Record, error) {
	var r Record
	var err error
	u8 := func(ns, key string) uint8 {
		if err != nil {
			return 0
		}
		var v Value
		if v, err = get(ns, key, Uint8); err != nil {
			return 0
		}
		return v.V.(uint8)
	}
	f := func(ns, key string) float64 {
		if err != nil {
			return 0
		}
		var v Value
		if v, err = get(ns, key, Float); err != nil {
			return 0
		}
		return v.V.(float64)
	}
	b := func(ns, key string) bool {
		if err != nil {
			return false
		}
		var v Value
		if v, err = get(ns, key, Bool); err != nil {
			return false
		}
		return v.V.(bool)
	}

	r.Mode = matrix.Mode(u8(NS_MATRIX, "mode"))
	r.Brightness = u8(NS_MATRIX, "brightness")
	r.Enabled = b(NS_MATRIX, "enabled")
	r.Correction = correction.Config{
		Enabled: b(NS_COLOR, "enabled"),
		WhitePoint: correction.WhitePoint{
			Enabled: b(NS_COLOR, "wp_enabled"),
			R:       f(NS_COLOR, "wp_red"),
			G:       f(NS_COLOR, "wp_green"),
			B:       f(NS_COLOR, "wp_blue"),
		},
		Gamma:      correction.Gamma{Enabled: b(NS_COLOR, "gamma_enabled"), Value: f(NS_COLOR, "gamma")},
		Brightness: correction.Brightness{Enabled: b(NS_COLOR, "bright_enabled"), Factor: f(NS_COLOR, "bright")},
		Saturation: correction.Saturation{Enabled: b(NS_COLOR, "sat_enabled"), Factor: f(NS_COLOR, "sat")},
	}
	if err != nil {
		return Record{}, err
	}
	if err := r.Validate(); err != nil {
		return Record{}, err
	}
	return r, nil
}

// SaveConfig writes r to s and commits.
func SaveConfig(s Store, r Record) error {
	if err := r.Validate(); err != nil {
		return err
	}
	for ns, keys := range r.Entries() {
		for key, v := range keys {
			if err := s.Set(ns, key, v); err != nil {
				return err
			}
		}
	}
	return s.Commit()
}

// LoadConfig reads a complete record from s.
func LoadConfig(s Store) (Record, error) {
	return recordFrom(s.Get)
}

// Save persists the live settings of m.
func Save(m *matrix.Matrix, s Store) error {
	return SaveConfig(s, Capture(m))
}

// Load restores settings from s onto m. A missing or bad key leaves m as it
// was.
func Load(m *matrix.Matrix, s Store) error {
	r, err := LoadConfig(s)
	if err != nil {
		return err
	}
	return r.ApplyTo(m)
}
