package correction

import (
	"bytes"
	"encoding/json"

	"github.com/coreman2200/arcaluminis-matrix/internal/errs"
)

const FormatVersion = 1

type document struct {
	FormatVersion int    `json:"format_version"`
	Correction    Config `json:"color_correction"`
}

// The import side uses pointers so missing fields can be told apart from zeros.
type importDoc struct {
	FormatVersion *int `json:"format_version"`
	Correction    *struct {
		Enabled    *bool `json:"enabled"`
		WhitePoint *struct {
			Enabled *bool    `json:"enabled"`
			R       *float64 `json:"red_scale"`
			G       *float64 `json:"green_scale"`
			B       *float64 `json:"blue_scale"`
		} `json:"white_point"`
		Gamma *struct {
			Enabled *bool    `json:"enabled"`
			Value   *float64 `json:"value"`
		} `json:"gamma"`
		Brightness *factorDoc `json:"brightness"`
		Saturation *factorDoc `json:"saturation"`
	} `json:"color_correction"`
}

type factorDoc struct {
	Enabled *bool    `json:"enabled"`
	Factor  *float64 `json:"factor"`
}

// Export renders the active configuration as an indented JSON document.
func (p *Pipeline) Export() ([]byte, error) {
	b, err := json.MarshalIndent(document{FormatVersion: FormatVersion, Correction: p.Config()}, "", "  ")
	if err != nil {
		return nil, errs.Wrap(errs.Other, "correction.Export", err)
	}
	return b, nil
}

// Import parses a document produced by Export. Every field must be present and
// in range; on any failure the live configuration is left untouched.
func (p *Pipeline) Import(data []byte) error {
	cfg, err := ParseDocument(data)
	if err != nil {
		return err
	}
	return p.SetConfig(cfg)
}

// ParseDocument decodes and validates an exported document without applying it.
func ParseDocument(data []byte) (Config, error) {
	const op = "correction.Import"
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var in importDoc
	if err := dec.Decode(&in); err != nil {
		return Config{}, errs.Wrap(errs.InvalidArgument, op, err)
	}
	if in.FormatVersion == nil {
		return Config{}, errs.E(errs.InvalidArgument, op, "missing format_version")
	}
	if *in.FormatVersion != FormatVersion {
		return Config{}, errs.E(errs.Unsupported, op, "format_version %d", *in.FormatVersion)
	}
	c := in.Correction
	if c == nil || c.Enabled == nil || c.WhitePoint == nil || c.Gamma == nil || c.Brightness == nil || c.Saturation == nil {
		return Config{}, errs.E(errs.InvalidArgument, op, "incomplete color_correction record")
	}
	wp := c.WhitePoint
	if wp.Enabled == nil || wp.R == nil || wp.G == nil || wp.B == nil {
		return Config{}, errs.E(errs.InvalidArgument, op, "incomplete white_point")
	}
	if c.Gamma.Enabled == nil || c.Gamma.Value == nil {
		return Config{}, errs.E(errs.InvalidArgument, op, "incomplete gamma")
	}
	if !c.Brightness.complete() || !c.Saturation.complete() {
		return Config{}, errs.E(errs.InvalidArgument, op, "incomplete brightness or saturation")
	}

	cfg := Config{
		Enabled:    *c.Enabled,
		WhitePoint: WhitePoint{Enabled: *wp.Enabled, R: *wp.R, G: *wp.G, B: *wp.B},
		Gamma:      Gamma{Enabled: *c.Gamma.Enabled, Value: *c.Gamma.Value},
		Brightness: Brightness{Enabled: *c.Brightness.Enabled, Factor: *c.Brightness.Factor},
		Saturation: Saturation{Enabled: *c.Saturation.Enabled, Factor: *c.Saturation.Factor},
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (f *factorDoc) complete() bool {
	return f.Enabled != nil && f.Factor != nil
}
