package draw

import (
	"errors"
	"image"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreman2200/arcaluminis-matrix/internal/errs"
	"github.com/coreman2200/arcaluminis-matrix/internal/framebuffer"
	"github.com/coreman2200/arcaluminis-matrix/internal/model"
)

func lit(t *testing.T, b *framebuffer.Buffer) map[image.Point]model.RGB {
	t.Helper()
	snap, err := b.Snapshot()
	require.NoError(t, err)
	out := map[image.Point]model.RGB{}
	for y := 0; y < model.Height; y++ {
		for x := 0; x < model.Width; x++ {
			if c := snap.At(x, y); c != model.Black {
				out[image.Pt(x, y)] = c
			}
		}
	}
	return out
}

func TestLineVisitsEachPointOnce(t *testing.T) {
	tests := []struct {
		name           string
		x0, y0, x1, y1 int
	}{
		{"horizontal", 0, 0, 31, 0},
		{"vertical", 5, 31, 5, 0},
		{"diagonal", 0, 0, 31, 31},
		{"shallow", 2, 3, 29, 11},
		{"steep backwards", 20, 30, 17, 1},
		{"single point", 7, 7, 7, 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pts := Line(tt.x0, tt.y0, tt.x1, tt.y1)
			require.NotEmpty(t, pts)
			assert.Equal(t, image.Pt(tt.x0, tt.y0), pts[0])
			assert.Equal(t, image.Pt(tt.x1, tt.y1), pts[len(pts)-1])

			want := max(abs(tt.x1-tt.x0), abs(tt.y1-tt.y0)) + 1
			assert.Len(t, pts, want)

			seen := map[image.Point]bool{}
			for i, p := range pts {
				assert.False(t, seen[p], "duplicate %v", p)
				seen[p] = true
				if i > 0 {
					q := pts[i-1]
					assert.LessOrEqual(t, abs(p.X-q.X), 1, "gap at %v", p)
					assert.LessOrEqual(t, abs(p.Y-q.Y), 1, "gap at %v", p)
				}
			}
		})
	}
}

func TestRectOutlineAndFill(t *testing.T) {
	assert.Len(t, Rect(0, 0, 5, 4, false), 2*5+2*4-4)
	assert.Len(t, Rect(0, 0, 5, 4, true), 20)
	assert.Len(t, Rect(3, 3, 1, 1, false), 1)

	b := framebuffer.New()
	require.NoError(t, DrawRect(b, 2, 2, 4, 3, model.White, false))
	got := lit(t, b)
	assert.Len(t, got, 10)
	assert.NotContains(t, got, image.Pt(3, 3))
	assert.Contains(t, got, image.Pt(5, 4))

	err := DrawRect(b, 0, 0, 0, 3, model.White, true)
	assert.True(t, errors.Is(err, errs.ErrInvalidArgument))
}

func TestCircleSymmetry(t *testing.T) {
	pts := Circle(16, 16, 7, false)
	set := map[image.Point]bool{}
	for _, p := range pts {
		set[p] = true
	}
	for _, p := range pts {
		dx, dy := p.X-16, p.Y-16
		for _, q := range []image.Point{
			{16 - dx, 16 + dy}, {16 + dx, 16 - dy}, {16 + dy, 16 + dx}, {16 - dy, 16 - dx},
		} {
			assert.True(t, set[q], "missing mirror %v of %v", q, p)
		}
	}
	assert.True(t, set[image.Pt(23, 16)])
	assert.True(t, set[image.Pt(16, 9)])
	assert.Len(t, Circle(4, 4, 0, false), 1)
}

func TestFilledCircleHasNoHoles(t *testing.T) {
	pts := Circle(10, 10, 5, true)
	rows := map[int][]int{}
	for _, p := range pts {
		rows[p.Y] = append(rows[p.Y], p.X)
	}
	assert.Len(t, rows, 11)
	for y, xs := range rows {
		lo, hi := xs[0], xs[0]
		for _, x := range xs {
			lo, hi = min(lo, x), max(hi, x)
		}
		assert.Equal(t, hi-lo+1, len(xs), "row %d has a gap", y)
		assert.Equal(t, 10-lo, hi-10, "row %d not centered", y)
	}
}

func TestShapesClipAtEdges(t *testing.T) {
	b := framebuffer.New()
	require.NoError(t, DrawCircle(b, 0, 0, 4, model.White, true))
	require.NoError(t, DrawLine(b, -10, 31, 40, 31, model.White))
	got := lit(t, b)
	assert.Contains(t, got, image.Pt(0, 0))
	assert.Contains(t, got, image.Pt(31, 31))

	err := DrawCircle(b, 3, 3, -1, model.White, false)
	assert.True(t, errors.Is(err, errs.ErrInvalidArgument))
}

func TestDrawTextGlyph(t *testing.T) {
	b := framebuffer.New()
	red := model.RGB{R: 255}
	require.NoError(t, DrawText(b, 1, 2, "A", red))
	got := lit(t, b)

	// column 0 of 'A' is 0x7E: rows 1..6 lit, row 0 dark
	assert.NotContains(t, got, image.Pt(1, 2))
	for row := 1; row < GlyphHeight; row++ {
		assert.Equal(t, red, got[image.Pt(1, 2+row)])
	}
	// column 1 is 0x11: rows 0 and 4
	assert.Contains(t, got, image.Pt(2, 2))
	assert.Contains(t, got, image.Pt(2, 6))
	assert.NotContains(t, got, image.Pt(2, 3))
	for p := range got {
		assert.True(t, p.X >= 1 && p.X < 1+GlyphWidth && p.Y >= 2 && p.Y < 2+GlyphHeight, "stray pixel %v", p)
	}
}

func TestDrawTextSkipsUnsupported(t *testing.T) {
	plain := framebuffer.New()
	require.NoError(t, DrawText(plain, 0, 0, "HI", model.White))
	mixed := framebuffer.New()
	require.NoError(t, DrawText(mixed, 0, 0, "Hé☃I", model.White))

	a, _ := plain.Snapshot()
	c, _ := mixed.Snapshot()
	assert.Equal(t, a, c)
	assert.False(t, Supported('é'))
	assert.Equal(t, 2*GlyphAdvance, TextWidth("HI"))
	assert.Equal(t, 0, TextWidth(""))
}

func TestHugeInputsAreBounded(t *testing.T) {
	assert.Nil(t, Line(0, 0, math.MaxInt, 0))
	assert.Nil(t, Line(0, 0, 50_000_000, 0))
	assert.Nil(t, Circle(0, 0, math.MaxInt, true))
	assert.Empty(t, Rect(0, 0, 5000, 5000, true))

	// in-window shapes larger than the panel are clipped before plotting
	assert.Len(t, Rect(-100, -100, 200, 200, true), model.PixelCount)
	assert.Empty(t, Rect(-100, -100, 200, 200, false))
	assert.Len(t, Circle(16, 16, MAX_COORD, true), model.PixelCount)

	b := framebuffer.New()
	tests := []struct {
		name string
		draw func() error
	}{
		{"line", func() error { return DrawLine(b, 0, 0, math.MaxInt, 0, model.White) }},
		{"line negative", func() error { return DrawLine(b, math.MinInt, 0, 0, 0, model.White) }},
		{"rect", func() error { return DrawRect(b, 0, 0, 5000, 5000, model.White, true) }},
		{"rect origin", func() error { return DrawRect(b, -MAX_COORD-1, 0, 4, 4, model.White, false) }},
		{"circle", func() error { return DrawCircle(b, 0, 0, MAX_COORD+1, model.White, true) }},
		{"text x", func() error { return DrawText(b, 65538, 0, "I", model.White) }},
		{"text y", func() error { return DrawText(b, 0, -65536, "I", model.White) }},
		{"text length", func() error { return DrawText(b, 0, 0, strings.Repeat("I", MAX_TEXT+1), model.White) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.draw()
			assert.True(t, errors.Is(err, errs.ErrInvalidArgument), "got %v", err)
			assert.Empty(t, lit(t, b))
		})
	}
}

func TestLargeFilledRectCoversPanel(t *testing.T) {
	b := framebuffer.New()
	require.NoError(t, DrawRect(b, -100, -100, 200, 200, model.White, true))
	assert.Len(t, lit(t, b), model.PixelCount)
}
