// Package animation runs timed animations into the frame buffer.
//
// The Engine is a two state machine (Idle, Running). Start validates a
// Descriptor, resolves its generator and spawns a ticker loop that paints
// one frame per frame_delay and then asks for a refresh. Stop cancels the
// loop and waits for the in-flight tick, so no frame is written after Stop
// returns.
package animation

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/coreman2200/arcaluminis-matrix/internal/errs"
	"github.com/coreman2200/arcaluminis-matrix/internal/model"
	"github.com/coreman2200/arcaluminis-matrix/internal/notify"
)

// Buffer is the frame store the engine paints into.
type Buffer interface {
	UpdateContext(ctx context.Context, fn func(f *model.Frame) error) error
	SnapshotContext(ctx context.Context) (model.Frame, error)
}

// Hooks connect the engine to the owner of the buffer. Both are optional.
type Hooks struct {
	Refresh func(ctx context.Context) error
	Publish func(ev notify.Event)
}

// Stats are the durations of the last completed tick.
type Stats struct {
	Render  time.Duration
	Refresh time.Duration
}

type Engine struct {
	buf   Buffer
	hooks Hooks
	reg   *Registry
	log   zerolog.Logger

	// ctl serializes Start, Stop and Close. The loop never takes it.
	ctl sync.Mutex

	mu     sync.Mutex
	state  State
	desc   Descriptor
	run    uint64
	cancel context.CancelFunc
	done   chan struct{}
	closed bool
	last   Stats

	frames atomic.Uint64
}

func NewEngine(buf Buffer, h Hooks, log zerolog.Logger) *Engine {
	return &Engine{
		buf:   buf,
		hooks: h,
		reg:   DefaultRegistry(),
		log:   log.With().Str("component", "animation").Logger(),
		state: Idle,
	}
}

// Registry exposes the generator registry so callers can add kinds.
func (e *Engine) Registry() *Registry { return e.reg }

func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Current returns the running descriptor, if any.
func (e *Engine) Current() (Descriptor, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.desc, e.state == Running
}

// FrameCount is the number of frames written since the engine was built.
func (e *Engine) FrameCount() uint64 { return e.frames.Load() }

func (e *Engine) Last() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.last
}

// Start begins d, replacing any running animation. An invalid descriptor is
// rejected before anything changes.
func (e *Engine) Start(d Descriptor) error {
	d = d.WithDefaults()
	if err := d.Validate(); err != nil {
		return err
	}

	e.ctl.Lock()
	defer e.ctl.Unlock()

	e.mu.Lock()
	closed := e.closed
	e.mu.Unlock()
	if closed {
		return errs.E(errs.InvalidState, "animation.Start", "engine closed")
	}

	gen, err := e.reg.resolve(d)
	if err != nil {
		return err
	}
	if p, ok := gen.(Primer); ok {
		src, err := e.buf.SnapshotContext(context.Background())
		if err != nil {
			return err
		}
		p.Prime(src)
	}

	if prev, ok := e.halt(); ok {
		e.publish(notify.AnimationStopped, notify.Info, "animation replaced", "", prev.Name)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	e.mu.Lock()
	e.run++
	run := e.run
	e.state = Running
	e.desc = d
	e.cancel = cancel
	e.done = done
	e.mu.Unlock()

	go e.loop(ctx, run, d, gen, done)

	e.log.Info().Str("name", d.Name).Str("kind", string(d.Kind)).
		Dur("duration", d.Duration).Dur("frame_delay", d.FrameDelay).Bool("loop", d.Loop).
		Msg("animation started")
	e.publish(notify.AnimationStarted, notify.Info, "animation started", string(d.Kind), d.Name)
	return nil
}

// Stop halts the running animation and leaves its last frame in the buffer.
func (e *Engine) Stop() error {
	e.ctl.Lock()
	defer e.ctl.Unlock()
	d, ok := e.halt()
	if !ok {
		return errs.E(errs.InvalidState, "animation.Stop", "no animation running")
	}
	e.log.Info().Str("name", d.Name).Msg("animation stopped")
	e.publish(notify.AnimationStopped, notify.Info, "animation stopped", "", d.Name)
	return nil
}

// Close stops any animation; the engine cannot be started again.
func (e *Engine) Close() error {
	e.ctl.Lock()
	defer e.ctl.Unlock()
	if d, ok := e.halt(); ok {
		e.publish(notify.AnimationStopped, notify.Info, "animation stopped", "engine closed", d.Name)
	}
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
	return nil
}

// halt cancels the loop and waits for it to exit. It also reaps a loop that
// already finished on its own, so that loop's last event is published
// before anything that follows. Callers hold ctl.
func (e *Engine) halt() (Descriptor, bool) {
	e.mu.Lock()
	d, running := e.desc, e.state == Running
	if running {
		e.run++
		e.state = Idle
		e.desc = Descriptor{}
	}
	cancel, done := e.cancel, e.done
	e.cancel, e.done = nil, nil
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
	return d, running
}

func (e *Engine) loop(ctx context.Context, run uint64, d Descriptor, gen Generator, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(d.FrameDelay)
	defer ticker.Stop()

	start := time.Now()
	var idx uint64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if ctx.Err() != nil {
			return
		}

		elapsed := time.Since(start)
		final := false
		if d.Duration > 0 && elapsed >= d.Duration {
			if d.Loop {
				start = time.Now()
				idx = 0
				elapsed = 0
			} else {
				elapsed = d.Duration
				final = true
			}
		}

		if err := e.tick(Tick{Index: idx, Elapsed: elapsed, Desc: d}, gen); err != nil {
			e.finish(run, d, err)
			return
		}
		idx++
		if final {
			e.finish(run, d, nil)
			return
		}
	}
}

// tick paints one frame and refreshes. A tick that has started runs to
// completion, so it does not take the loop's context.
func (e *Engine) tick(t Tick, gen Generator) error {
	t0 := time.Now()
	err := e.buf.UpdateContext(context.Background(), func(f *model.Frame) error {
		return gen.Next(t, f)
	})
	if err != nil {
		return err
	}
	render := time.Since(t0)
	e.frames.Add(1)

	t1 := time.Now()
	if e.hooks.Refresh != nil {
		if err := e.hooks.Refresh(context.Background()); err != nil {
			return err
		}
	}

	e.mu.Lock()
	e.last = Stats{Render: render, Refresh: time.Since(t1)}
	e.mu.Unlock()
	return nil
}

// finish moves a run that ended on its own back to Idle. A run that was
// stopped or replaced in the meantime is left alone.
func (e *Engine) finish(run uint64, d Descriptor, err error) {
	e.mu.Lock()
	current := e.run == run
	if current {
		e.state = Idle
		e.desc = Descriptor{}
	}
	e.mu.Unlock()
	if !current {
		return
	}

	if err != nil {
		e.log.Error().Err(err).Str("name", d.Name).Msg("animation halted")
		e.publish(notify.AnimationFailed, notify.Err, "animation halted", err.Error(), d.Name)
		return
	}
	e.log.Info().Str("name", d.Name).Msg("animation completed")
	e.publish(notify.AnimationDone, notify.Info, "animation completed", "", d.Name)
}

func (e *Engine) publish(k notify.Kind, sev notify.Severity, summary, detail, name string) {
	if e.hooks.Publish == nil {
		return
	}
	e.hooks.Publish(notify.Event{
		Kind:      k,
		Severity:  sev,
		Summary:   summary,
		Detail:    detail,
		Animation: name,
	})
}
