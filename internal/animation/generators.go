package animation

import (
	"math"
	"sort"
	"sync"
	"time"

	colorful "github.com/lucasb-eyer/go-colorful"

	"github.com/coreman2200/arcaluminis-matrix/internal/errs"
	"github.com/coreman2200/arcaluminis-matrix/internal/model"
)

// Factory builds a fresh generator for one run of a descriptor.
type Factory func(d Descriptor) (Generator, error)

// Registry maps kinds to generator factories.
type Registry struct {
	mu sync.RWMutex
	m  map[Kind]Factory
}

func NewRegistry() *Registry { return &Registry{m: map[Kind]Factory{}} }

// DefaultRegistry has every built-in kind, diagnostics included.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	_ = r.Register(Rainbow, func(Descriptor) (Generator, error) { return GeneratorFunc(rainbow), nil })
	_ = r.Register(Wave, func(Descriptor) (Generator, error) { return GeneratorFunc(wave), nil })
	_ = r.Register(Breathe, newBreathe)
	_ = r.Register(Rotate, func(Descriptor) (Generator, error) { return &rotator{}, nil })
	_ = r.Register(Fade, newFade)
	_ = r.Register(Sweep, func(Descriptor) (Generator, error) { return GeneratorFunc(sweep), nil })
	_ = r.Register(Channels, func(Descriptor) (Generator, error) { return GeneratorFunc(channels), nil })
	return r
}

func (r *Registry) Register(k Kind, f Factory) error {
	if k == "" || k == Custom || f == nil {
		return errs.E(errs.InvalidArgument, "Registry.Register", "cannot register kind %q", k)
	}
	r.mu.Lock()
	r.m[k] = f
	r.mu.Unlock()
	return nil
}

func (r *Registry) Get(k Kind) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.m[k]
	return f, ok
}

// List returns the registered kinds in name order.
func (r *Registry) List() []Kind {
	r.mu.RLock()
	out := make([]Kind, 0, len(r.m))
	for k := range r.m {
		out = append(out, k)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// resolve picks the generator for d.
func (r *Registry) resolve(d Descriptor) (Generator, error) {
	if d.Kind == Custom {
		return d.Custom, nil
	}
	f, ok := r.Get(d.Kind)
	if !ok {
		return nil, errs.E(errs.NotFound, "animation.Start", "no generator for kind %q", d.Kind)
	}
	return f(d)
}

func speed01(d Descriptor) float64 {
	return float64(d.Speed) / MAX_SPEED
}

// rainbow spreads the color wheel diagonally across the matrix and advances
// the hue by a speed derived step each frame.
func rainbow(t Tick, f *model.Frame) error {
	step := speed01(t.Desc) * 0.1
	phase := float64(t.Index) * step
	for y := 0; y < model.Height; y++ {
		for x := 0; x < model.Width; x++ {
			off := float64(x+y) / float64(model.Width+model.Height)
			f.Set(x, y, model.Wheel(off+phase))
		}
	}
	return nil
}

// wave modulates luminance with a sine travelling along x.
func wave(t Tick, f *model.Frame) error {
	const cycles = 2.0
	omega := 2 * math.Pi * (0.25 + 2*speed01(t.Desc))
	secs := t.Elapsed.Seconds()
	lo, hi := t.Desc.Secondary, t.Desc.Primary
	for x := 0; x < model.Width; x++ {
		k := 2 * math.Pi * cycles * float64(x) / model.Width
		lum := 0.5 + 0.5*math.Sin(k-omega*secs)
		c := lerp(lo, hi, lum)
		for y := 0; y < model.Height; y++ {
			f.Set(x, y, c)
		}
	}
	return nil
}

// breathe follows a smooth rise and fall of the primary color. The period
// is the duration when one is set, otherwise it shrinks with speed.
type breather struct {
	env Envelope
}

func newBreathe(d Descriptor) (Generator, error) {
	period := d.Duration
	if period == 0 {
		period = DFLT_BREATHE_TIME - time.Duration(float64(DFLT_BREATHE_TIME-250*time.Millisecond)*speed01(d))
	}
	return &breather{env: NewEnvelope(
		Keyframe{T: 0, V: 0, Ease: Smooth},
		Keyframe{T: period / 2, V: 1, Ease: Smooth},
		Keyframe{T: period, V: 0},
	)}, nil
}

func (b *breather) Next(t Tick, f *model.Frame) error {
	at := t.Elapsed
	if span := b.env.Span(); span > 0 {
		at %= span
	}
	f.Fill(t.Desc.Primary.Scale(b.env.Eval(at)))
	return nil
}

// rotator turns the frame captured at start about the matrix center.
// Speed 100 is one full turn per second.
type rotator struct {
	src model.Frame
}

func (r *rotator) Prime(src model.Frame) { r.src = src }

func (r *rotator) Next(t Tick, f *model.Frame) error {
	angle := 2 * math.Pi * speed01(t.Desc) * t.Elapsed.Seconds()
	sin, cos := math.Sincos(-angle)
	const cx, cy = (model.Width - 1) / 2.0, (model.Height - 1) / 2.0
	for y := 0; y < model.Height; y++ {
		for x := 0; x < model.Width; x++ {
			dx, dy := float64(x)-cx, float64(y)-cy
			sx := int(math.Round(cx + dx*cos - dy*sin))
			sy := int(math.Round(cy + dx*sin + dy*cos))
			c := model.Black
			if model.InBounds(sx, sy) {
				c = r.src.At(sx, sy)
			}
			f.Set(x, y, c)
		}
	}
	return nil
}

// fader blends primary into secondary linearly over the duration.
type fader struct {
	from, to colorful.Color
	env      Envelope
}

func newFade(d Descriptor) (Generator, error) {
	from, _ := colorful.MakeColor(d.Primary.ToRGBA())
	to, _ := colorful.MakeColor(d.Secondary.ToRGBA())
	return &fader{
		from: from,
		to:   to,
		env:  NewEnvelope(Keyframe{T: 0, V: 0, Ease: Linear}, Keyframe{T: d.Duration, V: 1}),
	}, nil
}

func (fd *fader) Next(t Tick, f *model.Frame) error {
	r, g, b := fd.from.BlendRgb(fd.to, fd.env.Eval(t.Elapsed)).Clamped().RGB255()
	f.Fill(model.RGB{R: r, G: g, B: b})
	return nil
}

// sweep lights one pixel at a time in raster order.
func sweep(t Tick, f *model.Frame) error {
	c := t.Desc.Primary
	if c == model.Black {
		c = model.White
	}
	f.Fill(model.Black)
	f[t.Index%model.PixelCount] = c
	return nil
}

// channels cycles the whole matrix through full red, green and blue.
func channels(t Tick, f *model.Frame) error {
	var c model.RGB
	switch t.Index % 3 {
	case 0:
		c.R = 255
	case 1:
		c.G = 255
	default:
		c.B = 255
	}
	f.Fill(c)
	return nil
}

func lerp(a, b model.RGB, u float64) model.RGB {
	u = clamp01(u)
	mix := func(p, q uint8) uint8 {
		return model.ClampByte(float64(p) + (float64(q)-float64(p))*u)
	}
	return model.RGB{R: mix(a.R, b.R), G: mix(a.G, b.G), B: mix(a.B, b.B)}
}
