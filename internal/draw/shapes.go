// Package draw rasterizes lines, rectangles, circles and text onto a frame.
//
// Shapes are computed as point sets first and then written inside a single
// frame-buffer update, so a shape is either fully visible to the next
// snapshot or not at all. Points that fall outside the matrix are clipped.
// Coordinates and sizes beyond MAX_COORD are rejected, which bounds the work
// per shape regardless of input.
package draw

import (
	"image"

	"github.com/coreman2200/arcaluminis-matrix/internal/errs"
	"github.com/coreman2200/arcaluminis-matrix/internal/model"
)

// MAX_COORD bounds every coordinate, size and radius, in either direction.
const MAX_COORD = 8 * model.Width

func inWindow(vs ...int) bool {
	for _, v := range vs {
		if v < -MAX_COORD || v > MAX_COORD {
			return false
		}
	}
	return true
}

func checkWindow(op string, vs ...int) error {
	if !inWindow(vs...) {
		return errs.E(errs.InvalidArgument, op, "coordinates %v beyond +/-%d", vs, MAX_COORD)
	}
	return nil
}

// Target is the write side of a frame buffer.
type Target interface {
	Update(fn func(f *model.Frame) error) error
}

// Line returns the Bresenham path from (x0,y0) to (x1,y1), endpoints included,
// each point exactly once. Endpoints beyond MAX_COORD yield nil.
func Line(x0, y0, x1, y1 int) []image.Point {
	if !inWindow(x0, y0, x1, y1) {
		return nil
	}
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}

	pts := make([]image.Point, 0, max(dx, -dy)+1)
	e := dx + dy
	for {
		pts = append(pts, image.Pt(x0, y0))
		if x0 == x1 && y0 == y1 {
			return pts
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x0 += sx
		}
		if e2 <= dx {
			e += dx
			y0 += sy
		}
	}
}

// Rect returns the outline (four border runs) or the full area of a w*h
// rectangle anchored at (x,y), clipped to the matrix.
func Rect(x, y, w, h int, filled bool) []image.Point {
	pts := make([]image.Point, 0)
	if w <= 0 || h <= 0 || !inWindow(x, y, w, h) {
		return pts
	}
	x1, y1 := x+w-1, y+h-1
	for py := max(y, 0); py <= min(y1, model.Height-1); py++ {
		for px := max(x, 0); px <= min(x1, model.Width-1); px++ {
			border := py == y || py == y1 || px == x || px == x1
			if filled || border {
				pts = append(pts, image.Pt(px, py))
			}
		}
	}
	return pts
}

// Circle returns the midpoint circle of radius r around (cx,cy). With filled
// set the interior is spanned by horizontal runs between symmetric points.
// Only points on the matrix are returned.
func Circle(cx, cy, r int, filled bool) []image.Point {
	if r < 0 || !inWindow(cx, cy, r) {
		return nil
	}
	seen := make(map[image.Point]struct{})
	pts := make([]image.Point, 0)
	plot := func(x, y int) {
		if !model.InBounds(x, y) {
			return
		}
		p := image.Pt(x, y)
		if _, ok := seen[p]; ok {
			return
		}
		seen[p] = struct{}{}
		pts = append(pts, p)
	}
	span := func(x0, x1, y int) {
		if y < 0 || y >= model.Height {
			return
		}
		for x := max(x0, 0); x <= min(x1, model.Width-1); x++ {
			plot(x, y)
		}
	}

	x, y := r, 0
	d := 1 - r
	for x >= y {
		if filled {
			span(cx-x, cx+x, cy+y)
			span(cx-x, cx+x, cy-y)
			span(cx-y, cx+y, cy+x)
			span(cx-y, cx+y, cy-x)
		} else {
			plot(cx+x, cy+y)
			plot(cx+y, cy+x)
			plot(cx-y, cy+x)
			plot(cx-x, cy+y)
			plot(cx-x, cy-y)
			plot(cx-y, cy-x)
			plot(cx+y, cy-x)
			plot(cx+x, cy-y)
		}
		y++
		if d < 0 {
			d += 2*y + 1
		} else {
			x--
			d += 2*(y-x) + 1
		}
	}
	return pts
}

func plotAll(f *model.Frame, pts []image.Point, c model.RGB) {
	for _, p := range pts {
		if model.InBounds(p.X, p.Y) {
			f.Set(p.X, p.Y, c)
		}
	}
}

func DrawLine(t Target, x0, y0, x1, y1 int, c model.RGB) error {
	if err := checkWindow("DrawLine", x0, y0, x1, y1); err != nil {
		return err
	}
	pts := Line(x0, y0, x1, y1)
	return t.Update(func(f *model.Frame) error {
		plotAll(f, pts, c)
		return nil
	})
}

func DrawRect(t Target, x, y, w, h int, c model.RGB, filled bool) error {
	if w <= 0 || h <= 0 {
		return errs.E(errs.InvalidArgument, "DrawRect", "size %dx%d", w, h)
	}
	if err := checkWindow("DrawRect", x, y, w, h); err != nil {
		return err
	}
	pts := Rect(x, y, w, h, filled)
	return t.Update(func(f *model.Frame) error {
		plotAll(f, pts, c)
		return nil
	})
}

func DrawCircle(t Target, cx, cy, r int, c model.RGB, filled bool) error {
	if r < 0 {
		return errs.E(errs.InvalidArgument, "DrawCircle", "radius %d", r)
	}
	if err := checkWindow("DrawCircle", cx, cy, r); err != nil {
		return err
	}
	pts := Circle(cx, cy, r, filled)
	return t.Update(func(f *model.Frame) error {
		plotAll(f, pts, c)
		return nil
	})
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
