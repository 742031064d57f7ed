package coords

import (
	"errors"
	"fmt"
	"math"
)

// Matrix is an affine transform in PDF order [a b c d e f].
type Matrix [6]float64

func Identity() Matrix { return Matrix{1, 0, 0, 1, 0, 0} }

// Multiply returns m×o: applying the result equals applying m then o.
func (m Matrix) Multiply(o Matrix) Matrix {
	return Matrix{
		m[0]*o[0] + m[1]*o[2],
		m[0]*o[1] + m[1]*o[3],
		m[2]*o[0] + m[3]*o[2],
		m[2]*o[1] + m[3]*o[3],
		m[4]*o[0] + m[5]*o[2] + o[4],
		m[4]*o[1] + m[5]*o[3] + o[5],
	}
}

type Point struct{ X, Y float64 }

func (m Matrix) Transform(p Point) Point {
	return Point{X: m[0]*p.X + m[2]*p.Y + m[4], Y: m[1]*p.X + m[3]*p.Y + m[5]}
}

// TransformRect maps the four corners of r and returns their bounding box.
func (m Matrix) TransformRect(r Rect) Rect {
	return Bound(
		m.Transform(Point{r.X0, r.Y0}),
		m.Transform(Point{r.X1, r.Y0}),
		m.Transform(Point{r.X0, r.Y1}),
		m.Transform(Point{r.X1, r.Y1}),
	)
}

func (m Matrix) Inverse() (Matrix, error) {
	det := m[0]*m[3] - m[1]*m[2]
	if math.Abs(det) < 1e-10 {
		return Matrix{}, errors.New("matrix singular")
	}
	return Matrix{
		m[3] / det, -m[1] / det, -m[2] / det, m[0] / det,
		(m[2]*m[5] - m[3]*m[4]) / det, (m[1]*m[4] - m[0]*m[5]) / det,
	}, nil
}

func Translate(tx, ty float64) Matrix { return Matrix{1, 0, 0, 1, tx, ty} }
func Scale(sx, sy float64) Matrix     { return Matrix{sx, 0, 0, sy, 0, 0} }

// Rotate returns a counter-clockwise rotation by angle radians.
func Rotate(angle float64) Matrix {
	c, s := math.Cos(angle), math.Sin(angle)
	return Matrix{c, s, -s, c, 0, 0}
}

// ErrDegenerate reports a rectangle with no area.
var ErrDegenerate = errors.New("degenerate rectangle")

// Rect is an axis-aligned rectangle in PDF user space.
type Rect struct {
	X0, Y0, X1, Y1 float64
}

func (r Rect) Width() float64  { return r.X1 - r.X0 }
func (r Rect) Height() float64 { return r.Y1 - r.Y0 }
func (r Rect) Empty() bool     { return r.X0 >= r.X1 || r.Y0 >= r.Y1 }

func (r Rect) String() string {
	return fmt.Sprintf("(%g,%g,%g,%g)", r.X0, r.Y0, r.X1, r.Y1)
}

// Normalize orders the corners so that X0<=X1 and Y0<=Y1.
func (r Rect) Normalize() Rect {
	if r.X0 > r.X1 {
		r.X0, r.X1 = r.X1, r.X0
	}
	if r.Y0 > r.Y1 {
		r.Y0, r.Y1 = r.Y1, r.Y0
	}
	return r
}

func (r Rect) Validate() error {
	if r.X0 >= r.X1 || r.Y0 >= r.Y1 {
		return fmt.Errorf("%w %s", ErrDegenerate, r)
	}
	return nil
}

// Intersects reports whether r and o share interior area.
func (r Rect) Intersects(o Rect) bool {
	return r.X0 < o.X1 && o.X0 < r.X1 && r.Y0 < o.Y1 && o.Y0 < r.Y1
}

func (r Rect) Contains(o Rect) bool {
	return o.X0 >= r.X0 && o.X1 <= r.X1 && o.Y0 >= r.Y0 && o.Y1 <= r.Y1
}

func (r Rect) Union(o Rect) Rect {
	return Rect{math.Min(r.X0, o.X0), math.Min(r.Y0, o.Y0), math.Max(r.X1, o.X1), math.Max(r.Y1, o.Y1)}
}

func (r Rect) Intersect(o Rect) Rect {
	out := Rect{math.Max(r.X0, o.X0), math.Max(r.Y0, o.Y0), math.Min(r.X1, o.X1), math.Min(r.Y1, o.Y1)}
	if out.Empty() {
		return Rect{}
	}
	return out
}

func (r Rect) Center() Point { return Point{(r.X0 + r.X1) / 2, (r.Y0 + r.Y1) / 2} }

// Bound returns the smallest rectangle containing every point.
func Bound(points ...Point) Rect {
	if len(points) == 0 {
		return Rect{}
	}
	r := Rect{points[0].X, points[0].Y, points[0].X, points[0].Y}
	for _, p := range points[1:] {
		r.X0 = math.Min(r.X0, p.X)
		r.Y0 = math.Min(r.Y0, p.Y)
		r.X1 = math.Max(r.X1, p.X)
		r.Y1 = math.Max(r.Y1, p.Y)
	}
	return r
}

// Zone is a labelled rectangle declared by configuration.
type Zone struct {
	Rect
	Label string
}

// GeometryError ties a geometry failure to the zone that caused it.
type GeometryError struct {
	Zone Zone
	Err  error
}

func (e *GeometryError) Error() string {
	return fmt.Sprintf("zone %q: %v", e.Zone.Label, e.Err)
}

func (e *GeometryError) Unwrap() error { return e.Err }

// PageBox describes the visible page size and its /Rotate value.
type PageBox struct {
	Width, Height float64
	Rotation      int
}

// NewPageBox validates the dimensions and normalizes rotation to 0, 90, 180
// or 270.
func NewPageBox(width, height float64, rotation int) (PageBox, error) {
	if width <= 0 || height <= 0 || math.IsNaN(width) || math.IsNaN(height) {
		return PageBox{}, fmt.Errorf("invalid page size %gx%g", width, height)
	}
	if rotation%90 != 0 {
		return PageBox{}, fmt.Errorf("rotation %d is not a multiple of 90", rotation)
	}
	rotation %= 360
	if rotation < 0 {
		rotation += 360
	}
	return PageBox{Width: width, Height: height, Rotation: rotation}, nil
}

func (b PageBox) Bounds() Rect { return Rect{0, 0, b.Width, b.Height} }

// ClampRect moves r inward so it lies inside bounds without changing its
// size. On an axis where r is larger than bounds it is anchored at the
// bounds origin and overflows the far edge. The flag reports whether r moved.
func ClampRect(r, bounds Rect) (Rect, bool) {
	out := r
	out.X0, out.X1 = clampAxis(r.X0, r.X1, bounds.X0, bounds.X1)
	out.Y0, out.Y1 = clampAxis(r.Y0, r.Y1, bounds.Y0, bounds.Y1)
	return out, out != r
}

func clampAxis(lo, hi, min, max float64) (float64, float64) {
	size := hi - lo
	switch {
	case size >= max-min:
		return min, min + size
	case hi > max:
		return max - size, max
	case lo < min:
		return min, min + size
	}
	return lo, hi
}
