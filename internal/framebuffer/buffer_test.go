package framebuffer

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreman2200/arcaluminis-matrix/internal/errs"
	"github.com/coreman2200/arcaluminis-matrix/internal/model"
)

func TestSetGetEveryPixel(t *testing.T) {
	b := New()
	for y := 0; y < model.Height; y++ {
		for x := 0; x < model.Width; x++ {
			c := model.RGB{R: uint8(x * 8), G: uint8(y * 8), B: uint8(x ^ y)}
			require.NoError(t, b.SetPixel(x, y, c))
			got, err := b.GetPixel(x, y)
			require.NoError(t, err)
			assert.Equal(t, c, got)
		}
	}
}

func TestOutOfBoundsLeavesBuffer(t *testing.T) {
	b := New()
	require.NoError(t, b.Fill(model.RGB{G: 9}))
	before, err := b.Snapshot()
	require.NoError(t, err)

	tests := []struct {
		name string
		x, y int
	}{
		{"x too big", 32, 0},
		{"y too big", 0, 32},
		{"negative x", -1, 5},
		{"negative y", 5, -1},
		{"far away", 1000, 1000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := b.SetPixel(tt.x, tt.y, model.White)
			assert.True(t, errors.Is(err, errs.ErrInvalidArgument))
			_, err = b.GetPixel(tt.x, tt.y)
			assert.True(t, errors.Is(err, errs.ErrInvalidArgument))
		})
	}

	after, err := b.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestClearIsBlack(t *testing.T) {
	b := New()
	require.NoError(t, b.Fill(model.White))
	require.NoError(t, b.Clear())
	for _, xy := range [][2]int{{0, 0}, {31, 31}, {10, 15}, {0, 31}} {
		c, err := b.GetPixel(xy[0], xy[1])
		require.NoError(t, err)
		assert.Equal(t, model.Black, c)
	}
}

func TestSetPixelsAllOrNothing(t *testing.T) {
	b := New()
	batch := []model.Pixel{
		{X: 1, Y: 1, Color: model.White},
		{X: 2, Y: 2, Color: model.White},
		{X: 40, Y: 2, Color: model.White},
	}
	err := b.SetPixels(batch)
	assert.True(t, errors.Is(err, errs.ErrInvalidArgument))

	c, err := b.GetPixel(1, 1)
	require.NoError(t, err)
	assert.Equal(t, model.Black, c, "valid entries before the bad one must not be committed")

	require.NoError(t, b.SetPixels(batch[:2]))
	c, _ = b.GetPixel(2, 2)
	assert.Equal(t, model.White, c)
}

func TestUpdateDiscardsOnError(t *testing.T) {
	b := New()
	boom := errors.New("generator failed")
	err := b.Update(func(f *model.Frame) error {
		f.Fill(model.White)
		return boom
	})
	assert.ErrorIs(t, err, boom)
	snap, _ := b.Snapshot()
	assert.Equal(t, model.Frame{}, snap)
}

func TestSnapshotIsACopy(t *testing.T) {
	b := New()
	snap, err := b.Snapshot()
	require.NoError(t, err)
	snap.Fill(model.White)
	c, _ := b.GetPixel(0, 0)
	assert.Equal(t, model.Black, c)
}

func TestLockTimeout(t *testing.T) {
	b := New()
	b.SetLockTimeout(20 * time.Millisecond)

	held := make(chan struct{})
	done := make(chan struct{})
	go func() {
		_ = b.Update(func(f *model.Frame) error {
			close(held)
			<-done
			return nil
		})
	}()
	<-held

	err := b.SetPixel(0, 0, model.White)
	assert.True(t, errors.Is(err, errs.ErrTimeout))
	close(done)
}

func TestClosedBufferIsInvalidState(t *testing.T) {
	b := New()
	require.NoError(t, b.Close())
	err := b.SetPixel(0, 0, model.White)
	assert.True(t, errors.Is(err, errs.ErrInvalidState))
	_, err = b.Snapshot()
	assert.True(t, errors.Is(err, errs.ErrInvalidState))
}

func TestSnapshotsNeverTear(t *testing.T) {
	b := New()
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			c := model.RGB{R: uint8(i), G: uint8(i), B: uint8(i)}
			_ = b.Fill(c)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			snap, err := b.Snapshot()
			if err != nil {
				continue
			}
			for _, c := range snap {
				if c != snap[0] {
					t.Errorf("torn snapshot: %v vs %v", c, snap[0])
					return
				}
			}
		}
	}()
	wg.Wait()
}
