package coords

import (
	"errors"
	"math"
	"testing"
)

func TestNewPageBox(t *testing.T) {
	tests := []struct {
		name    string
		w, h    float64
		rot     int
		wantRot int
		wantErr bool
	}{
		{"a4", 595, 842, 0, 0, false},
		{"negative rotation", 595, 842, -90, 270, false},
		{"full turn", 595, 842, 450, 90, false},
		{"zero width", 0, 842, 0, 0, true},
		{"negative height", 595, -1, 0, 0, true},
		{"odd rotation", 595, 842, 45, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			box, err := NewPageBox(tt.w, tt.h, tt.rot)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && box.Rotation != tt.wantRot {
				t.Fatalf("rotation = %d, want %d", box.Rotation, tt.wantRot)
			}
		})
	}
}

func TestRectValidate(t *testing.T) {
	if err := (Rect{0, 0, 10, 10}).Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, r := range []Rect{{10, 0, 10, 5}, {0, 5, 10, 1}} {
		if err := r.Validate(); !errors.Is(err, ErrDegenerate) {
			t.Fatalf("%v: expected ErrDegenerate, got %v", r, err)
		}
	}
}

func TestClampRectShiftsWithoutResizing(t *testing.T) {
	page := Rect{0, 0, 595, 842}
	r := Rect{500, 100, 650, 150}
	got, moved := ClampRect(r, page)
	if !moved {
		t.Fatalf("expected a shift")
	}
	if got.X0 != 445 || got.X1 != 595 {
		t.Fatalf("unexpected x range %v", got)
	}
	if got.Width() != r.Width() || got.Height() != r.Height() {
		t.Fatalf("clamp resized the rect: %v -> %v", r, got)
	}

	got, moved = ClampRect(Rect{-20, -5, 30, 10}, page)
	if !moved || got != (Rect{0, 0, 50, 15}) {
		t.Fatalf("unexpected clamp %v moved=%v", got, moved)
	}

	inside := Rect{10, 10, 20, 20}
	if got, moved := ClampRect(inside, page); moved || got != inside {
		t.Fatalf("inside rect changed: %v", got)
	}
}

func TestClampRectOversized(t *testing.T) {
	got, _ := ClampRect(Rect{-50, 0, 650, 10}, Rect{0, 0, 595, 842})
	if got.X0 != 0 || got.Width() != 700 {
		t.Fatalf("oversized rect should anchor at origin: %v", got)
	}
}

func TestMatrixRotateAndInverse(t *testing.T) {
	m := Rotate(math.Pi / 2).Multiply(Translate(10, 20))
	p := m.Transform(Point{1, 0})
	if math.Abs(p.X-10) > 1e-9 || math.Abs(p.Y-21) > 1e-9 {
		t.Fatalf("unexpected transform %v", p)
	}
	inv, err := m.Inverse()
	if err != nil {
		t.Fatalf("inverse: %v", err)
	}
	back := inv.Transform(p)
	if math.Abs(back.X-1) > 1e-9 || math.Abs(back.Y) > 1e-9 {
		t.Fatalf("inverse mismatch %v", back)
	}
	if _, err := Scale(0, 1).Inverse(); err == nil {
		t.Fatalf("expected singular matrix error")
	}
}

func TestRectIntersects(t *testing.T) {
	a := Rect{0, 0, 10, 10}
	if !a.Intersects(Rect{5, 5, 15, 15}) {
		t.Fatalf("overlapping rects should intersect")
	}
	if a.Intersects(Rect{10, 0, 20, 10}) {
		t.Fatalf("edge-touching rects share no area")
	}
	rotated := Rotate(math.Pi / 2).TransformRect(Rect{0, 0, 10, 5})
	if math.Abs(rotated.X0+5) > 1e-9 || math.Abs(rotated.Y1-10) > 1e-9 {
		t.Fatalf("unexpected rotated bounds %v", rotated)
	}
}
