package editor

import (
	"github.com/wudi/quotekit/contentstream"
	"github.com/wudi/quotekit/coords"
)

// OpSpatialIndex indexes traced content items by their bounding box.
type OpSpatialIndex struct {
	tree *QuadTree
}

func NewOpSpatialIndex(pageBounds coords.Rect) *OpSpatialIndex {
	return &OpSpatialIndex{
		tree: NewQuadTree(pageBounds, 10),
	}
}

// hairline is the half-extent given to zero-thickness boxes, such as an
// axis-aligned stroke with 0 w, so they still intersect the zones over them.
const hairline = 0.01

// Index inserts every item that has a location. Item positions in the
// slice are the indices Query returns.
func (idx *OpSpatialIndex) Index(items []contentstream.Item) {
	for i, item := range items {
		r := item.Rect
		if r.X0 > r.X1 || r.Y0 > r.Y1 {
			continue
		}
		if r.X0 == r.X1 {
			r.X0, r.X1 = r.X0-hairline, r.X1+hairline
		}
		if r.Y0 == r.Y1 {
			r.Y0, r.Y1 = r.Y0-hairline, r.Y1+hairline
		}
		idx.tree.Insert(r, i)
	}
}

func (idx *OpSpatialIndex) Query(rect coords.Rect) []int {
	return idx.tree.Query(rect)
}
