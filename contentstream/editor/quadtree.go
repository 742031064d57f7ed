package editor

import "github.com/wudi/quotekit/coords"

// QuadTree implements a spatial index for rectangles.
type QuadTree struct {
	Bounds   coords.Rect
	Capacity int
	Points   []PointData
	Nodes    []*QuadTree
	depth    int
}

type PointData struct {
	Rect  coords.Rect
	Index int
}

const maxDepth = 8

func NewQuadTree(bounds coords.Rect, capacity int) *QuadTree {
	return &QuadTree{
		Bounds:   bounds,
		Capacity: capacity,
		Points:   make([]PointData, 0, capacity),
	}
}

// Insert stores rect. Rectangles outside the tree bounds are kept at the
// root so nothing painted off-page is lost.
func (qt *QuadTree) Insert(rect coords.Rect, index int) {
	if qt.Nodes != nil {
		for _, node := range qt.Nodes {
			if contains(node.Bounds, rect) {
				node.Insert(rect, index)
				return
			}
		}
		// straddles children or lies outside: belongs here
		qt.Points = append(qt.Points, PointData{Rect: rect, Index: index})
		return
	}

	if len(qt.Points) < qt.Capacity || qt.depth >= maxDepth {
		qt.Points = append(qt.Points, PointData{Rect: rect, Index: index})
		return
	}
	qt.subdivide()
	old := qt.Points
	qt.Points = make([]PointData, 0, qt.Capacity)
	for _, p := range old {
		qt.Insert(p.Rect, p.Index)
	}
	qt.Insert(rect, index)
}

func (qt *QuadTree) subdivide() {
	xMid := (qt.Bounds.X0 + qt.Bounds.X1) / 2
	yMid := (qt.Bounds.Y0 + qt.Bounds.Y1) / 2
	child := func(r coords.Rect) *QuadTree {
		n := NewQuadTree(r, qt.Capacity)
		n.depth = qt.depth + 1
		return n
	}
	qt.Nodes = []*QuadTree{
		child(coords.Rect{X0: qt.Bounds.X0, Y0: yMid, X1: xMid, Y1: qt.Bounds.Y1}), // Top-Left
		child(coords.Rect{X0: xMid, Y0: yMid, X1: qt.Bounds.X1, Y1: qt.Bounds.Y1}), // Top-Right
		child(coords.Rect{X0: qt.Bounds.X0, Y0: qt.Bounds.Y0, X1: xMid, Y1: yMid}), // Bottom-Left
		child(coords.Rect{X0: xMid, Y0: qt.Bounds.Y0, X1: qt.Bounds.X1, Y1: yMid}), // Bottom-Right
	}
}

// Query returns the indices of stored rectangles sharing area with rangeRect.
func (qt *QuadTree) Query(rangeRect coords.Rect) []int {
	var found []int
	for _, p := range qt.Points {
		if p.Rect.Intersects(rangeRect) {
			found = append(found, p.Index)
		}
	}
	for _, node := range qt.Nodes {
		if node.Bounds.Intersects(rangeRect) {
			found = append(found, node.Query(rangeRect)...)
		}
	}
	return found
}

func contains(outer, inner coords.Rect) bool {
	return outer.Contains(inner)
}
