package driver

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/coreman2200/arcaluminis-matrix/internal/errs"
	"github.com/coreman2200/arcaluminis-matrix/internal/model"
)

// Sim logs a compact summary of every frame (first pixel and average),
// useful headless and in tests.
type Sim struct {
	mu    sync.Mutex
	count uint64
	last  model.Frame
	log   zerolog.Logger
}

func NewSim(log zerolog.Logger) *Sim {
	return &Sim{log: log.With().Str("component", "driver.sim").Logger()}
}

func (s *Sim) String() string { return "sim" }

func (s *Sim) Transmit(ctx context.Context, f model.Frame) error {
	if err := ctx.Err(); err != nil {
		return errs.Wrap(errs.Timeout, "Sim.Transmit", err)
	}
	s.mu.Lock()
	s.count++
	s.last = f
	n := s.count
	s.mu.Unlock()

	if e := s.log.Debug(); e.Enabled() {
		var r, g, b int
		for _, c := range f {
			r += int(c.R)
			g += int(c.G)
			b += int(c.B)
		}
		e.Uint64("frame", n).
			Ints("avg", []int{r / model.PixelCount, g / model.PixelCount, b / model.PixelCount}).
			Hex("first", []byte{f[0].R, f[0].G, f[0].B}).
			Msg("frame")
	}
	return nil
}

// Count is the number of frames transmitted.
func (s *Sim) Count() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// Last returns the most recent frame.
func (s *Sim) Last() model.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

func (s *Sim) Close() error { return nil }
