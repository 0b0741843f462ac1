package animation

import (
	"time"

	"github.com/coreman2200/arcaluminis-matrix/internal/errs"
	"github.com/coreman2200/arcaluminis-matrix/internal/model"
)

// Kind selects the generator used for an animation.
type Kind string

const (
	Rainbow Kind = "rainbow"
	Wave    Kind = "wave"
	Breathe Kind = "breathe"
	Rotate  Kind = "rotate"
	Fade    Kind = "fade"
	Custom  Kind = "custom"

	// diagnostic patterns
	Sweep    Kind = "sweep"
	Channels Kind = "channels"
)

// State enumerates engine states.
type State string

const (
	Idle    State = "idle"
	Running State = "running"
)

const (
	MAX_SPEED         = 100
	DFLT_FRAME_DELAY  = 33 * time.Millisecond
	MIN_FRAME_DELAY   = time.Millisecond
	DFLT_SPEED        = 50
	DFLT_BREATHE_TIME = 3 * time.Second
)

// Tick is what a generator sees for one frame.
type Tick struct {
	Index   uint64        // frames since the (re)start of this cycle
	Elapsed time.Duration // time since the (re)start of this cycle
	Desc    Descriptor
}

// Generator computes one frame in place. f holds the previous frame.
type Generator interface {
	Next(t Tick, f *model.Frame) error
}

type GeneratorFunc func(t Tick, f *model.Frame) error

func (fn GeneratorFunc) Next(t Tick, f *model.Frame) error { return fn(t, f) }

// Primer is implemented by generators that work from the frame that was on
// screen when the animation started.
type Primer interface {
	Prime(src model.Frame)
}

// Descriptor is the parameter record for one animation run.
type Descriptor struct {
	Name       string        `json:"name" yaml:"name"`
	Kind       Kind          `json:"kind" yaml:"kind"`
	Duration   time.Duration `json:"duration" yaml:"duration"`
	FrameDelay time.Duration `json:"frame_delay" yaml:"frame_delay"`
	Loop       bool          `json:"loop" yaml:"loop"`
	Primary    model.RGB     `json:"primary_color" yaml:"primary_color"`
	Secondary  model.RGB     `json:"secondary_color" yaml:"secondary_color"`
	Speed      uint8         `json:"speed" yaml:"speed"`

	// Custom drives Kind Custom.
	Custom Generator `json:"-" yaml:"-"`
}

// Validate checks the fields that do not depend on a registry. A zero
// Duration is only accepted for looping animations, which then run until
// stopped.
func (d Descriptor) Validate() error {
	const op = "animation.Validate"
	if d.Kind == "" {
		return errs.E(errs.InvalidArgument, op, "kind is required")
	}
	if d.Speed > MAX_SPEED {
		return errs.E(errs.InvalidArgument, op, "speed %d outside 0..%d", d.Speed, MAX_SPEED)
	}
	if d.FrameDelay < MIN_FRAME_DELAY {
		return errs.E(errs.InvalidArgument, op, "frame_delay %s must be at least %s", d.FrameDelay, MIN_FRAME_DELAY)
	}
	if d.Duration < 0 || (d.Duration == 0 && !d.Loop) {
		return errs.E(errs.InvalidArgument, op, "duration %s must be positive", d.Duration)
	}
	if d.Kind == Fade && d.Duration == 0 {
		return errs.E(errs.InvalidArgument, op, "fade needs a duration")
	}
	if d.Kind == Custom && d.Custom == nil {
		return errs.E(errs.InvalidArgument, op, "custom animation without a generator")
	}
	return nil
}

// WithDefaults fills the name and frame delay when unset.
func (d Descriptor) WithDefaults() Descriptor {
	if d.Name == "" {
		d.Name = string(d.Kind)
	}
	if d.FrameDelay == 0 {
		d.FrameDelay = DFLT_FRAME_DELAY
	}
	return d
}
