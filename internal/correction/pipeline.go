// Package correction implements the per-pixel color correction chain applied
// to every frame before it is transmitted.
//
// Stage order is fixed: white point -> gamma -> brightness -> saturation.
// Only enabled stages run, and a disabled chain is the identity transform.
package correction

import (
	"math"
	"sync"

	"github.com/coreman2200/arcaluminis-matrix/internal/model"
)

// Stage transforms one pixel.
type Stage func(model.RGB) model.RGB

// chain is an immutable compiled form of a Config. A new chain replaces the old
// one on every change, so Apply never sees a half-updated configuration.
type chain struct {
	cfg    Config
	stages []Stage
}

// Pipeline is safe for concurrent use.
type Pipeline struct {
	mu sync.RWMutex
	ch *chain
}

// New returns a pipeline running cfg.
func New(cfg Config) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Pipeline{ch: compile(cfg)}, nil
}

// NewDefault returns a pipeline running DefaultConfig.
func NewDefault() *Pipeline {
	return &Pipeline{ch: compile(DefaultConfig())}
}

func compile(cfg Config) *chain {
	c := &chain{cfg: cfg}
	if !cfg.Enabled {
		return c
	}
	if cfg.WhitePoint.Enabled {
		c.stages = append(c.stages, WhitePointStage(cfg.WhitePoint.R, cfg.WhitePoint.G, cfg.WhitePoint.B))
	}
	if cfg.Gamma.Enabled {
		c.stages = append(c.stages, GammaStage(cfg.Gamma.Value))
	}
	if cfg.Brightness.Enabled {
		c.stages = append(c.stages, BrightnessStage(cfg.Brightness.Factor))
	}
	if cfg.Saturation.Enabled {
		c.stages = append(c.stages, SaturationStage(cfg.Saturation.Factor))
	}
	return c
}

func (p *Pipeline) current() *chain {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.ch
}

// Config returns a copy of the active configuration.
func (p *Pipeline) Config() Config {
	return p.current().cfg
}

// SetConfig validates and installs cfg as a whole.
func (p *Pipeline) SetConfig(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	p.mu.Lock()
	p.ch = compile(cfg)
	p.mu.Unlock()
	return nil
}

// update applies fn to a copy of the config and installs it if it validates.
func (p *Pipeline) update(fn func(*Config)) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	cfg := p.ch.cfg
	fn(&cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}
	p.ch = compile(cfg)
	return nil
}

func (p *Pipeline) SetEnabled(enabled bool) {
	_ = p.update(func(c *Config) { c.Enabled = enabled })
}

func (p *Pipeline) SetWhitePoint(enabled bool, r, g, b float64) error {
	return p.update(func(c *Config) { c.WhitePoint = WhitePoint{Enabled: enabled, R: r, G: g, B: b} })
}

func (p *Pipeline) SetGamma(enabled bool, gamma float64) error {
	return p.update(func(c *Config) { c.Gamma = Gamma{Enabled: enabled, Value: gamma} })
}

func (p *Pipeline) SetBrightness(enabled bool, factor float64) error {
	return p.update(func(c *Config) { c.Brightness = Brightness{Enabled: enabled, Factor: factor} })
}

func (p *Pipeline) SetSaturation(enabled bool, factor float64) error {
	return p.update(func(c *Config) { c.Saturation = Saturation{Enabled: enabled, Factor: factor} })
}

// Reset restores DefaultConfig.
func (p *Pipeline) Reset() {
	p.mu.Lock()
	p.ch = compile(DefaultConfig())
	p.mu.Unlock()
}

// Apply corrects a single pixel.
func (p *Pipeline) Apply(c model.RGB) model.RGB {
	return p.current().apply(c)
}

// ApplyArray returns a corrected copy of in; in is not modified.
func (p *Pipeline) ApplyArray(in []model.RGB) []model.RGB {
	ch := p.current()
	out := make([]model.RGB, len(in))
	for i, c := range in {
		out[i] = ch.apply(c)
	}
	return out
}

// ApplyFrame corrects f in place. All pixels see the same configuration.
func (p *Pipeline) ApplyFrame(f *model.Frame) {
	ch := p.current()
	if len(ch.stages) == 0 {
		return
	}
	for i := range f {
		f[i] = ch.apply(f[i])
	}
}

func (ch *chain) apply(c model.RGB) model.RGB {
	for _, s := range ch.stages {
		c = s(c)
	}
	return c
}

// WhitePointStage scales each channel independently.
func WhitePointStage(r, g, b float64) Stage {
	return func(c model.RGB) model.RGB {
		return model.RGB{
			R: model.ClampByte(float64(c.R) * r),
			G: model.ClampByte(float64(c.G) * g),
			B: model.ClampByte(float64(c.B) * b),
		}
	}
}

// GammaStage applies out = 255*(in/255)^gamma through a lookup table.
func GammaStage(gamma float64) Stage {
	var lut [256]uint8
	for i := range lut {
		lut[i] = model.ClampByte(255 * math.Pow(float64(i)/255.0, gamma))
	}
	return func(c model.RGB) model.RGB {
		return model.RGB{R: lut[c.R], G: lut[c.G], B: lut[c.B]}
	}
}

// BrightnessStage scales all channels uniformly.
func BrightnessStage(factor float64) Stage {
	return func(c model.RGB) model.RGB {
		return c.Scale(factor)
	}
}

// SaturationStage scales the HSV saturation channel, clamped to 100%.
func SaturationStage(factor float64) Stage {
	return func(c model.RGB) model.RGB {
		h := c.HSVf()
		h.S = math.Min(1, math.Max(0, h.S*factor))
		return h.RGB()
	}
}
