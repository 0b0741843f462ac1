package matrix

import (
	"strings"

	"github.com/coreman2200/arcaluminis-matrix/internal/errs"
)

// Mode is the display mode. Exactly one is active at a time.
type Mode uint8

const (
	Static Mode = iota
	Animation
	Custom
	Off
)

func (m Mode) String() string {
	switch m {
	case Static:
		return "static"
	case Animation:
		return "animation"
	case Custom:
		return "custom"
	case Off:
		return "off"
	default:
		return "unknown"
	}
}

func (m Mode) Valid() bool { return m <= Off }

func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "static":
		return Static, nil
	case "animation":
		return Animation, nil
	case "custom":
		return Custom, nil
	case "off":
		return Off, nil
	}
	return 0, errs.E(errs.InvalidArgument, "ParseMode", "unknown mode %q", s)
}

func (m Mode) MarshalText() ([]byte, error) {
	if !m.Valid() {
		return nil, errs.E(errs.InvalidArgument, "Mode.MarshalText", "mode %d", uint8(m))
	}
	return []byte(m.String()), nil
}

func (m *Mode) UnmarshalText(b []byte) error {
	v, err := ParseMode(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}
