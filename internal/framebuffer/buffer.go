// Package framebuffer owns the 32x32 pixel grid.
//
// All writers go through one lock. The lock is a one-slot channel rather than
// a sync.Mutex so acquisition can give up after a deadline and report
// errs.Timeout instead of blocking forever. Readers receive copies.
package framebuffer

import (
	"context"
	"time"

	"github.com/coreman2200/arcaluminis-matrix/internal/errs"
	"github.com/coreman2200/arcaluminis-matrix/internal/model"
)

const DFLT_LOCK_TIMEOUT = 100 * time.Millisecond

type Buffer struct {
	sem     chan struct{}
	timeout time.Duration

	// guarded by sem
	frame  model.Frame
	closed bool
}

// New allocates a zeroed (black) buffer.
func New() *Buffer {
	return &Buffer{
		sem:     make(chan struct{}, 1),
		timeout: DFLT_LOCK_TIMEOUT,
	}
}

// SetLockTimeout changes how long callers wait for the lock. d <= 0 restores
// the default. Call it before the buffer is shared.
func (b *Buffer) SetLockTimeout(d time.Duration) {
	if d <= 0 {
		d = DFLT_LOCK_TIMEOUT
	}
	b.timeout = d
}

func (b *Buffer) acquire(ctx context.Context, op string) error {
	select {
	case b.sem <- struct{}{}:
	default:
		t := time.NewTimer(b.timeout)
		defer t.Stop()
		select {
		case b.sem <- struct{}{}:
		case <-t.C:
			return errs.E(errs.Timeout, op, "frame buffer lock not acquired within %s", b.timeout)
		case <-ctx.Done():
			return errs.Wrap(errs.Timeout, op, ctx.Err())
		}
	}
	if b.closed {
		<-b.sem
		return errs.E(errs.InvalidState, op, "frame buffer closed")
	}
	return nil
}

func (b *Buffer) release() {
	<-b.sem
}

func checkBounds(op string, x, y int) error {
	if !model.InBounds(x, y) {
		return errs.E(errs.InvalidArgument, op, "pixel (%d,%d) outside %dx%d", x, y, model.Width, model.Height)
	}
	return nil
}

func (b *Buffer) SetPixel(x, y int, c model.RGB) error {
	if err := checkBounds("SetPixel", x, y); err != nil {
		return err
	}
	if err := b.acquire(context.Background(), "SetPixel"); err != nil {
		return err
	}
	b.frame.Set(x, y, c)
	b.release()
	return nil
}

func (b *Buffer) GetPixel(x, y int) (model.RGB, error) {
	if err := checkBounds("GetPixel", x, y); err != nil {
		return model.RGB{}, err
	}
	if err := b.acquire(context.Background(), "GetPixel"); err != nil {
		return model.RGB{}, err
	}
	c := b.frame.At(x, y)
	b.release()
	return c, nil
}

// SetPixels writes the whole batch or nothing: every coordinate is validated
// before the lock is taken.
func (b *Buffer) SetPixels(pixels []model.Pixel) error {
	for _, p := range pixels {
		if err := checkBounds("SetPixels", p.X, p.Y); err != nil {
			return err
		}
	}
	if err := b.acquire(context.Background(), "SetPixels"); err != nil {
		return err
	}
	for _, p := range pixels {
		b.frame.Set(p.X, p.Y, p.Color)
	}
	b.release()
	return nil
}

func (b *Buffer) Clear() error {
	return b.Fill(model.Black)
}

func (b *Buffer) Fill(c model.RGB) error {
	if err := b.acquire(context.Background(), "Fill"); err != nil {
		return err
	}
	b.frame.Fill(c)
	b.release()
	return nil
}

// Snapshot returns a consistent copy of the frame.
func (b *Buffer) Snapshot() (model.Frame, error) {
	return b.SnapshotContext(context.Background())
}

func (b *Buffer) SnapshotContext(ctx context.Context) (model.Frame, error) {
	if err := b.acquire(ctx, "Snapshot"); err != nil {
		return model.Frame{}, err
	}
	f := b.frame
	b.release()
	return f, nil
}

// Update runs fn on a scratch copy of the frame while holding the lock and
// commits the copy only if fn succeeds. fn must not block.
func (b *Buffer) Update(fn func(f *model.Frame) error) error {
	return b.UpdateContext(context.Background(), fn)
}

func (b *Buffer) UpdateContext(ctx context.Context, fn func(f *model.Frame) error) error {
	if err := b.acquire(ctx, "Update"); err != nil {
		return err
	}
	defer b.release()
	scratch := b.frame
	if err := fn(&scratch); err != nil {
		return err
	}
	b.frame = scratch
	return nil
}

// Close tears the buffer down; later calls fail with errs.InvalidState.
func (b *Buffer) Close() error {
	if err := b.acquire(context.Background(), "Close"); err != nil {
		return err
	}
	b.closed = true
	b.frame = model.Frame{}
	b.release()
	return nil
}
