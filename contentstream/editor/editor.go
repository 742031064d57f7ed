package editor

import (
	"sort"

	"github.com/wudi/quotekit/contentstream"
	"github.com/wudi/quotekit/coords"
	"github.com/wudi/quotekit/ir/raw"
)

// Stats counts what a removal pass took out.
type Stats struct {
	Glyphs       int
	Paths        int
	Images       int
	InlineImages int
	Forms        int
}

func (s Stats) Total() int {
	return s.Glyphs + s.Paths + s.Images + s.InlineImages + s.Forms
}

// Editor removes content from a single content stream. It is not safe
// for concurrent use; create one per page.
type Editor struct {
	bounds coords.Rect
	tracer *contentstream.Tracer
}

func NewEditor(pageBounds coords.Rect, res contentstream.Resources) *Editor {
	return &Editor{bounds: pageBounds, tracer: contentstream.NewTracer(res)}
}

// RemoveRects deletes everything painted inside any of the rectangles:
// glyphs (replaced by an equivalent TJ displacement so the rest of the line
// keeps its position), filled or stroked paths, image XObjects and inline
// images. Form XObjects are deleted only when a rectangle fully contains
// them. Clipping paths, shadings and state operators are kept. The input
// slice is not modified.
func (e *Editor) RemoveRects(ops []contentstream.Operation, initial coords.Matrix, rects []coords.Rect) ([]contentstream.Operation, Stats) {
	var stats Stats
	if len(rects) == 0 || len(ops) == 0 {
		return ops, stats
	}
	items := e.tracer.Trace(ops, initial)
	idx := NewOpSpatialIndex(e.bounds)
	idx.Index(items)

	hit := make(map[int]bool)
	for _, r := range rects {
		for _, i := range idx.Query(r) {
			hit[i] = true
		}
	}
	if len(hit) == 0 {
		return ops, stats
	}
	order := make([]int, 0, len(hit))
	for i := range hit {
		order = append(order, i)
	}
	sort.Ints(order)

	drop := make(map[int]bool)
	replace := make(map[int][]contentstream.Operation)
	for _, i := range order {
		item := items[i]
		switch item.Kind {
		case contentstream.KindText:
			if out, removed := rewriteText(ops[item.Op], item, rects); removed > 0 {
				replace[item.Op] = out
				stats.Glyphs += removed
			}
		case contentstream.KindPath:
			for k := item.Start; k <= item.Op; k++ {
				drop[k] = true
			}
			stats.Paths++
		case contentstream.KindImage:
			drop[item.Op] = true
			stats.Images++
		case contentstream.KindInlineImage:
			drop[item.Op] = true
			stats.InlineImages++
		case contentstream.KindForm:
			for _, r := range rects {
				if r.Contains(item.Rect) {
					drop[item.Op] = true
					stats.Forms++
					break
				}
			}
		}
	}

	out := make([]contentstream.Operation, 0, len(ops))
	for i, op := range ops {
		if drop[i] {
			continue
		}
		if rep, ok := replace[i]; ok {
			out = append(out, rep...)
			continue
		}
		out = append(out, op)
	}
	return out, stats
}

// rewriteText returns the operations replacing a text-showing operation
// with the glyphs inside rects turned into displacements.
func rewriteText(op contentstream.Operation, item contentstream.Item, rects []coords.Rect) ([]contentstream.Operation, int) {
	removedAt := make(map[[2]int]bool)
	for _, g := range item.Glyphs {
		for _, r := range rects {
			if g.Rect.Intersects(r) {
				removedAt[[2]int{g.Part, g.Offset}] = true
				break
			}
		}
	}
	if len(removedAt) == 0 {
		return nil, 0
	}

	var parts []raw.Object
	var prefix []contentstream.Operation
	switch op.Operator {
	case "TJ":
		if arr, ok := op.Operands[0].(*raw.ArrayObj); ok {
			parts = arr.Items
		}
	case "Tj":
		parts = op.Operands[len(op.Operands)-1:]
	case "'":
		parts = op.Operands[len(op.Operands)-1:]
		prefix = append(prefix, contentstream.Op("T*"))
	case "\"":
		parts = op.Operands[len(op.Operands)-1:]
		if len(op.Operands) == 3 {
			prefix = append(prefix,
				contentstream.Op("Tw", op.Operands[0]),
				contentstream.Op("Tc", op.Operands[1]))
		}
		prefix = append(prefix, contentstream.Op("T*"))
	}

	fs := item.Text.FontSize
	glyphsByPart := make(map[int][]contentstream.Glyph)
	for _, g := range item.Glyphs {
		glyphsByPart[g.Part] = append(glyphsByPart[g.Part], g)
	}

	arr := &raw.ArrayObj{}
	var pending float64
	flushNum := func() {
		if pending != 0 {
			arr.Append(raw.Number(pending))
			pending = 0
		}
	}
	for p, part := range parts {
		switch v := part.(type) {
		case raw.NumberObj:
			pending += v.Float()
		case raw.StringObj:
			var run []byte
			flushRun := func() {
				if len(run) > 0 {
					flushNum()
					arr.Append(raw.StringObj{Bytes: run, Hex: v.Hex})
					run = nil
				}
			}
			for _, g := range glyphsByPart[p] {
				if !removedAt[[2]int{p, g.Offset}] {
					if pending != 0 {
						flushRun()
						flushNum()
					}
					run = append(run, v.Bytes[g.Offset:g.Offset+g.Len]...)
					continue
				}
				flushRun()
				spacing := item.Text.CharSpace
				if g.Space {
					spacing += item.Text.WordSpace
				}
				if fs != 0 {
					pending -= g.Width + spacing*1000/fs
				} else {
					pending -= g.Width
				}
			}
			flushRun()
		}
	}
	flushNum()
	out := append(prefix, contentstream.Op("TJ", arr))
	return out, len(removedAt)
}
