// Package matrix ties the frame buffer, color correction, animation engine
// and event notifier into one explicitly owned context object.
//
// A Matrix is inert until Init. Drawing calls are accepted in Static and
// Custom mode; in Animation mode the engine owns the frame. Refresh is the
// only path to the Transmitter: it snapshots the buffer under the buffer
// lock, then corrects and transmits the copy with no lock held.
package matrix

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/coreman2200/arcaluminis-matrix/internal/animation"
	"github.com/coreman2200/arcaluminis-matrix/internal/correction"
	"github.com/coreman2200/arcaluminis-matrix/internal/draw"
	"github.com/coreman2200/arcaluminis-matrix/internal/errs"
	"github.com/coreman2200/arcaluminis-matrix/internal/framebuffer"
	"github.com/coreman2200/arcaluminis-matrix/internal/model"
	"github.com/coreman2200/arcaluminis-matrix/internal/notify"
)

const (
	MAX_BRIGHTNESS  uint8 = 255
	DFLT_BRIGHTNESS uint8 = 128
)

// Transmitter hands a finished frame to the LEDs. It receives its own copy.
type Transmitter interface {
	Transmit(ctx context.Context, f model.Frame) error
}

// Status is a read-only projection of the matrix state.
type Status struct {
	Initialized      bool            `json:"initialized"`
	Enabled          bool            `json:"enabled"`
	Mode             Mode            `json:"mode"`
	Brightness       uint8           `json:"brightness"`
	CurrentAnimation string          `json:"current_animation,omitempty"`
	AnimationState   animation.State `json:"animation_state"`
	PixelCount       int             `json:"pixel_count"`
	FrameCount       uint64          `json:"frame_count"`
	Refreshes        uint64          `json:"refreshes"`
	Last             Last            `json:"last"`
}

// Last holds timings of the most recent tick and refresh, in ms.
type Last struct {
	RenderMS   float64 `json:"render_ms"`
	TransmitMS float64 `json:"transmit_ms"`
	TotalMS    float64 `json:"total_ms"`
}

// state is guarded by Matrix.mu as a whole.
type state struct {
	initialized bool
	enabled     bool
	mode        Mode
	brightness  uint8
}

type Matrix struct {
	log    zerolog.Logger
	tx     Transmitter
	events *notify.Notifier
	corr   *correction.Pipeline

	// ctl serializes lifecycle and mode transitions, which may wait on the
	// animation engine.
	ctl sync.Mutex

	mu  sync.RWMutex
	st  state
	buf *framebuffer.Buffer
	eng *animation.Engine

	lockTimeout time.Duration

	outMu     sync.Mutex
	out       model.Frame
	last      Last
	refreshes atomic.Uint64
}

// New builds an uninitialized matrix. events may be nil.
func New(tx Transmitter, events *notify.Notifier, log zerolog.Logger) *Matrix {
	if events == nil {
		events = notify.NewWithLogger(log)
	}
	return &Matrix{
		log:    log.With().Str("component", "matrix").Logger(),
		tx:     tx,
		events: events,
		corr:   correction.NewDefault(),
		st:     state{brightness: DFLT_BRIGHTNESS},
	}
}

// SetLockTimeout sets the frame buffer lock timeout used by the next Init.
func (m *Matrix) SetLockTimeout(d time.Duration) {
	m.mu.Lock()
	m.lockTimeout = d
	m.mu.Unlock()
}

func (m *Matrix) Events() *notify.Notifier { return m.events }

// Correction exposes the live color correction pipeline.
func (m *Matrix) Correction() *correction.Pipeline { return m.corr }

// Init allocates a black frame buffer and the animation engine. The matrix
// starts enabled in Static mode.
func (m *Matrix) Init() error {
	m.ctl.Lock()
	defer m.ctl.Unlock()

	m.mu.Lock()
	if m.st.initialized {
		m.mu.Unlock()
		return errs.E(errs.InvalidState, "Init", "already initialized")
	}
	buf := framebuffer.New()
	buf.SetLockTimeout(m.lockTimeout)
	m.buf = buf
	m.eng = animation.NewEngine(buf, animation.Hooks{
		Refresh: m.Refresh,
		Publish: func(ev notify.Event) { m.events.Publish(ev) },
	}, m.log)
	m.st.initialized = true
	m.st.enabled = true
	m.st.mode = Static
	m.mu.Unlock()

	m.log.Info().Int("pixels", model.PixelCount).Uint8("brightness", m.Brightness()).Msg("matrix initialized")
	m.publish(notify.Initialized, "matrix initialized", "")
	return nil
}

// Deinit stops any animation and tears the frame buffer down.
func (m *Matrix) Deinit() error {
	m.ctl.Lock()
	defer m.ctl.Unlock()

	m.mu.RLock()
	ok, eng, buf := m.st.initialized, m.eng, m.buf
	m.mu.RUnlock()
	if !ok {
		return errs.E(errs.InvalidState, "Deinit", "not initialized")
	}
	if err := eng.Close(); err != nil {
		return err
	}
	if err := buf.Close(); err != nil {
		return err
	}

	m.mu.Lock()
	m.st.initialized = false
	m.buf, m.eng = nil, nil
	m.mu.Unlock()

	m.log.Info().Msg("matrix deinitialized")
	m.publish(notify.Deinitialized, "matrix deinitialized", "")
	return nil
}

func (m *Matrix) Enable() error  { return m.setEnabled(true) }
func (m *Matrix) Disable() error { return m.setEnabled(false) }

func (m *Matrix) setEnabled(on bool) error {
	m.mu.Lock()
	if !m.st.initialized {
		m.mu.Unlock()
		return errs.E(errs.InvalidState, "SetEnabled", "not initialized")
	}
	changed := m.st.enabled != on
	m.st.enabled = on
	m.mu.Unlock()

	if changed {
		k := notify.Disabled
		if on {
			k = notify.Enabled
		}
		m.log.Info().Bool("enabled", on).Msg("output toggled")
		m.publish(k, "output "+string(k), "")
	}
	return nil
}

func (m *Matrix) Enabled() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.enabled
}

// SetMode switches the display mode. Leaving Animation or Custom for Static
// or Off stops a running animation first and keeps its last frame.
func (m *Matrix) SetMode(mode Mode) error {
	if !mode.Valid() {
		return errs.E(errs.InvalidArgument, "SetMode", "mode %d", uint8(mode))
	}
	m.ctl.Lock()
	defer m.ctl.Unlock()
	return m.setModeLocked(mode)
}

// setModeLocked runs with ctl held.
func (m *Matrix) setModeLocked(mode Mode) error {
	m.mu.RLock()
	ok, eng := m.st.initialized, m.eng
	m.mu.RUnlock()
	if !ok {
		return errs.E(errs.InvalidState, "SetMode", "not initialized")
	}
	if (mode == Static || mode == Off) && eng.State() == animation.Running {
		if err := eng.Stop(); err != nil && !errors.Is(err, errs.ErrInvalidState) {
			return err
		}
	}
	m.modeChanged(m.swapMode(mode), mode)
	return nil
}

// swapMode waits for in-flight drawing calls, then installs mode.
func (m *Matrix) swapMode(mode Mode) Mode {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev := m.st.mode
	m.st.mode = mode
	return prev
}

func (m *Matrix) modeChanged(prev, mode Mode) {
	if prev == mode {
		return
	}
	m.log.Info().Stringer("from", prev).Stringer("to", mode).Msg("mode changed")
	m.publish(notify.ModeChanged, "mode "+mode.String(), prev.String())
}

func (m *Matrix) Mode() Mode {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.mode
}

// SetBrightness sets the global output scale, applied linearly on refresh.
func (m *Matrix) SetBrightness(b uint8) {
	m.mu.Lock()
	changed := m.st.brightness != b
	m.st.brightness = b
	m.mu.Unlock()
	if changed {
		m.publish(notify.BrightnessChanged, "brightness changed", "")
	}
}

func (m *Matrix) Brightness() uint8 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.brightness
}

// SetCorrection installs a whole correction config.
func (m *Matrix) SetCorrection(cfg correction.Config) error {
	if err := m.corr.SetConfig(cfg); err != nil {
		return err
	}
	m.publish(notify.ConfigChanged, "color correction changed", "")
	return nil
}

// StartAnimation runs d and switches to Animation mode, or Custom mode for
// custom generators. An invalid descriptor changes nothing.
func (m *Matrix) StartAnimation(d animation.Descriptor) error {
	m.ctl.Lock()
	defer m.ctl.Unlock()

	m.mu.RLock()
	ok, eng := m.st.initialized, m.eng
	m.mu.RUnlock()
	if !ok {
		return errs.E(errs.InvalidState, "StartAnimation", "not initialized")
	}
	if err := d.WithDefaults().Validate(); err != nil {
		return err
	}
	mode := Animation
	if d.Kind == animation.Custom {
		mode = Custom
	}
	prev := m.swapMode(mode)
	if err := eng.Start(d); err != nil {
		m.swapMode(prev)
		return err
	}
	m.modeChanged(prev, mode)
	return nil
}

func (m *Matrix) StopAnimation() error {
	m.ctl.Lock()
	defer m.ctl.Unlock()
	m.mu.RLock()
	ok, eng := m.st.initialized, m.eng
	m.mu.RUnlock()
	if !ok {
		return errs.E(errs.InvalidState, "StopAnimation", "not initialized")
	}
	return eng.Stop()
}

// Animations returns the engine's generator registry.
func (m *Matrix) Animations() (*animation.Registry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.st.initialized {
		return nil, errs.E(errs.InvalidState, "Animations", "not initialized")
	}
	return m.eng.Registry(), nil
}

// drawing runs fn against the buffer while holding the state read lock, so
// a mode switch waits for in-flight drawing calls and none start after it.
func (m *Matrix) drawing(op string, fn func(b *framebuffer.Buffer) error) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.st.initialized {
		return errs.E(errs.InvalidState, op, "not initialized")
	}
	if m.st.mode != Static && m.st.mode != Custom {
		return errs.E(errs.InvalidState, op, "drawing not allowed in %s mode", m.st.mode)
	}
	return fn(m.buf)
}

func (m *Matrix) buffer(op string) (*framebuffer.Buffer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.st.initialized {
		return nil, errs.E(errs.InvalidState, op, "not initialized")
	}
	return m.buf, nil
}

func (m *Matrix) SetPixel(x, y int, c model.RGB) error {
	return m.drawing("SetPixel", func(b *framebuffer.Buffer) error { return b.SetPixel(x, y, c) })
}

// GetPixel reads the raw, uncorrected buffer in any mode.
func (m *Matrix) GetPixel(x, y int) (model.RGB, error) {
	b, err := m.buffer("GetPixel")
	if err != nil {
		return model.RGB{}, err
	}
	return b.GetPixel(x, y)
}

func (m *Matrix) SetPixels(px []model.Pixel) error {
	return m.drawing("SetPixels", func(b *framebuffer.Buffer) error { return b.SetPixels(px) })
}

func (m *Matrix) Clear() error {
	return m.drawing("Clear", func(b *framebuffer.Buffer) error { return b.Clear() })
}

func (m *Matrix) Fill(c model.RGB) error {
	return m.drawing("Fill", func(b *framebuffer.Buffer) error { return b.Fill(c) })
}

func (m *Matrix) DrawLine(x0, y0, x1, y1 int, c model.RGB) error {
	return m.drawing("DrawLine", func(b *framebuffer.Buffer) error { return draw.DrawLine(b, x0, y0, x1, y1, c) })
}

func (m *Matrix) DrawRect(x, y, w, h int, c model.RGB, filled bool) error {
	return m.drawing("DrawRect", func(b *framebuffer.Buffer) error { return draw.DrawRect(b, x, y, w, h, c, filled) })
}

func (m *Matrix) DrawCircle(cx, cy, r int, c model.RGB, filled bool) error {
	return m.drawing("DrawCircle", func(b *framebuffer.Buffer) error { return draw.DrawCircle(b, cx, cy, r, c, filled) })
}

func (m *Matrix) DrawText(x, y int, s string, c model.RGB) error {
	return m.drawing("DrawText", func(b *framebuffer.Buffer) error { return draw.DrawText(b, x, y, s, c) })
}

// Snapshot returns the raw buffer contents.
func (m *Matrix) Snapshot(ctx context.Context) (model.Frame, error) {
	b, err := m.buffer("Snapshot")
	if err != nil {
		return model.Frame{}, err
	}
	return b.SnapshotContext(ctx)
}

// Output returns the last frame handed to the transmitter.
func (m *Matrix) Output() model.Frame {
	m.outMu.Lock()
	defer m.outMu.Unlock()
	return m.out
}

// Refresh corrects a snapshot of the buffer and transmits it. A disabled
// matrix or Off mode transmits black.
func (m *Matrix) Refresh(ctx context.Context) error {
	m.mu.RLock()
	st, buf := m.st, m.buf
	m.mu.RUnlock()
	if !st.initialized {
		return errs.E(errs.InvalidState, "Refresh", "not initialized")
	}

	t0 := time.Now()
	frame, err := buf.SnapshotContext(ctx)
	if err != nil {
		return err
	}
	if !st.enabled || st.mode == Off {
		frame = model.Frame{}
	} else {
		m.corr.ApplyFrame(&frame)
		if st.brightness != MAX_BRIGHTNESS {
			s := float64(st.brightness) / float64(MAX_BRIGHTNESS)
			for i := range frame {
				frame[i] = frame[i].Scale(s)
			}
		}
	}
	prep := time.Since(t0)

	t1 := time.Now()
	if m.tx != nil {
		if err := m.tx.Transmit(ctx, frame); err != nil {
			if errs.KindOf(err) == errs.Other {
				err = errs.Wrap(errs.IOFailure, "Refresh", err)
			}
			m.log.Warn().Err(err).Msg("transmit failed")
			m.publish(notify.RefreshFailed, "transmit failed", err.Error())
			return err
		}
	}
	transmit := time.Since(t1)
	m.refreshes.Add(1)

	m.outMu.Lock()
	m.out = frame
	m.last = Last{
		RenderMS:   ms(prep),
		TransmitMS: ms(transmit),
		TotalMS:    ms(prep + transmit),
	}
	m.outMu.Unlock()
	return nil
}

func (m *Matrix) Status() Status {
	m.mu.RLock()
	st, eng := m.st, m.eng
	m.mu.RUnlock()

	s := Status{
		Initialized:    st.initialized,
		Enabled:        st.enabled,
		Mode:           st.mode,
		Brightness:     st.brightness,
		AnimationState: animation.Idle,
		PixelCount:     model.PixelCount,
		Refreshes:      m.refreshes.Load(),
	}
	if eng != nil {
		if d, running := eng.Current(); running {
			s.CurrentAnimation = d.Name
			s.AnimationState = animation.Running
		}
		s.FrameCount = eng.FrameCount()
	}
	m.outMu.Lock()
	s.Last = m.last
	m.outMu.Unlock()
	if eng != nil {
		s.Last.RenderMS += ms(eng.Last().Render)
		s.Last.TotalMS += ms(eng.Last().Render)
	}
	return s
}

func (m *Matrix) publish(k notify.Kind, summary, detail string) {
	m.events.Publish(notify.Event{Kind: k, Summary: summary, Detail: detail})
}

func ms(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000.0
}
