package contentstream

import (
	"errors"
	"math"

	"github.com/wudi/quotekit/coords"
	"github.com/wudi/quotekit/ir/raw"
)

// GraphicsState holds the parts of the PDF graphics state that affect
// where things land on the page. Text state parameters live here too since
// q/Q saves and restores them.
type GraphicsState struct {
	CTM       coords.Matrix
	LineWidth float64
	Text      TextParams
	Font      Font
	FontName  string
	stack     []GraphicsState
}

func (gs *GraphicsState) Save() {
	clone := *gs
	clone.stack = nil
	gs.stack = append(gs.stack, clone)
}

func (gs *GraphicsState) Restore() error {
	n := len(gs.stack)
	if n == 0 {
		return errors.New("state stack empty")
	}
	stack := gs.stack[:n-1]
	*gs = gs.stack[n-1]
	gs.stack = stack
	return nil
}

// Tracer calculates where the operations of a content stream paint.
type Tracer struct {
	res      Resources
	fallback Font
}

func NewTracer(res Resources) *Tracer {
	return &Tracer{res: res, fallback: defaultFont{}}
}

// Trace executes the operations virtually and returns the painted items in
// stream order. Unbalanced Q operators are ignored.
func (t *Tracer) Trace(ops []Operation, initial coords.Matrix) []Item {
	gs := &GraphicsState{CTM: initial, LineWidth: 1, Text: TextParams{Scale: 1}}
	var tm, tlm coords.Matrix
	var items []Item

	var path []coords.Point
	pathStart := -1
	clipPending := false

	for i, op := range ops {
		n := op.Operands
		switch op.Operator {
		case "q":
			gs.Save()
		case "Q":
			_ = gs.Restore()
		case "cm":
			if len(n) == 6 {
				gs.CTM = matrixOf(n).Multiply(gs.CTM)
			}
		case "w":
			if len(n) == 1 {
				gs.LineWidth = num(n[0])
			}

		case "BT":
			tm, tlm = coords.Identity(), coords.Identity()
		case "Tf":
			if len(n) == 2 {
				name, _ := n[0].(raw.NameObj)
				gs.FontName = name.Val
				gs.Font = nil
				if t.res != nil {
					gs.Font = t.res.Font(name.Val)
				}
				gs.Text.FontSize = num(n[1])
			}
		case "Tc":
			if len(n) == 1 {
				gs.Text.CharSpace = num(n[0])
			}
		case "Tw":
			if len(n) == 1 {
				gs.Text.WordSpace = num(n[0])
			}
		case "Tz":
			if len(n) == 1 {
				gs.Text.Scale = num(n[0]) / 100
			}
		case "TL":
			if len(n) == 1 {
				gs.Text.Leading = num(n[0])
			}
		case "Ts":
			if len(n) == 1 {
				gs.Text.Rise = num(n[0])
			}
		case "Tr":
			if len(n) == 1 {
				gs.Text.Mode = TextRenderMode(num(n[0]))
			}
		case "Td", "TD":
			if len(n) == 2 {
				if op.Operator == "TD" {
					gs.Text.Leading = -num(n[1])
				}
				tlm = coords.Translate(num(n[0]), num(n[1])).Multiply(tlm)
				tm = tlm
			}
		case "Tm":
			if len(n) == 6 {
				tlm = matrixOf(n)
				tm = tlm
			}
		case "T*":
			tlm = coords.Translate(0, -gs.Text.Leading).Multiply(tlm)
			tm = tlm
		case "Tj", "'", "\"", "TJ":
			if op.Operator == "'" || op.Operator == "\"" {
				if op.Operator == "\"" && len(n) == 3 {
					gs.Text.WordSpace = num(n[0])
					gs.Text.CharSpace = num(n[1])
				}
				tlm = coords.Translate(0, -gs.Text.Leading).Multiply(tlm)
				tm = tlm
			}
			item := t.showText(i, op, gs, &tm)
			items = append(items, item)

		case "m", "l":
			if pathStart < 0 {
				pathStart = i
			}
			if len(n) == 2 {
				path = append(path, gs.CTM.Transform(coords.Point{X: num(n[0]), Y: num(n[1])}))
			}
		case "c", "v", "y":
			if pathStart < 0 {
				pathStart = i
			}
			for k := 0; k+1 < len(n); k += 2 {
				path = append(path, gs.CTM.Transform(coords.Point{X: num(n[k]), Y: num(n[k+1])}))
			}
		case "re":
			if pathStart < 0 {
				pathStart = i
			}
			if len(n) == 4 {
				r := coords.Rect{X0: num(n[0]), Y0: num(n[1]), X1: num(n[0]) + num(n[2]), Y1: num(n[1]) + num(n[3])}.Normalize()
				path = append(path,
					gs.CTM.Transform(coords.Point{X: r.X0, Y: r.Y0}),
					gs.CTM.Transform(coords.Point{X: r.X1, Y: r.Y0}),
					gs.CTM.Transform(coords.Point{X: r.X0, Y: r.Y1}),
					gs.CTM.Transform(coords.Point{X: r.X1, Y: r.Y1}))
			}
		case "h":
		case "W", "W*":
			clipPending = true
		case "S", "s", "f", "F", "f*", "B", "B*", "b", "b*", "n":
			if pathStart < 0 {
				pathStart = i
			}
			kind := KindPath
			if clipPending || op.Operator == "n" {
				kind = KindClip
			}
			rect := coords.Bound(path...)
			if strokes(op.Operator) {
				pad := gs.LineWidth / 2 * scaleOf(gs.CTM)
				rect = coords.Rect{X0: rect.X0 - pad, Y0: rect.Y0 - pad, X1: rect.X1 + pad, Y1: rect.Y1 + pad}
			}
			if len(path) > 0 {
				items = append(items, Item{Kind: kind, Start: pathStart, Op: i, Rect: rect})
			}
			path, pathStart, clipPending = nil, -1, false

		case "Do":
			if len(n) != 1 {
				continue
			}
			name, _ := n[0].(raw.NameObj)
			info, ok := XObjectInfo{Subtype: "Image"}, true
			if t.res != nil {
				info, ok = t.res.XObject(name.Val)
			}
			if !ok {
				continue
			}
			switch info.Subtype {
			case "Form":
				m := info.Matrix
				if m == (coords.Matrix{}) {
					m = coords.Identity()
				}
				items = append(items, Item{Kind: KindForm, Start: i, Op: i, Name: name.Val, Rect: m.Multiply(gs.CTM).TransformRect(info.BBox)})
			default:
				items = append(items, Item{Kind: KindImage, Start: i, Op: i, Name: name.Val, Rect: gs.CTM.TransformRect(coords.Rect{X1: 1, Y1: 1})})
			}
		case "BI":
			items = append(items, Item{Kind: KindInlineImage, Start: i, Op: i, Rect: gs.CTM.TransformRect(coords.Rect{X1: 1, Y1: 1})})
		case "sh":
			items = append(items, Item{Kind: KindShading, Start: i, Op: i})
		}
	}
	return items
}

func (t *Tracer) showText(i int, op Operation, gs *GraphicsState, tm *coords.Matrix) Item {
	font := gs.Font
	if font == nil {
		font = t.fallback
	}
	params := gs.Text
	params.Matrix = t.renderMatrix(gs, *tm)
	item := Item{Kind: KindText, Start: i, Op: i, Name: gs.FontName, Text: params}
	descent, ascent := font.Bounds()

	var parts []raw.Object
	switch op.Operator {
	case "TJ":
		if len(op.Operands) == 1 {
			if arr, ok := op.Operands[0].(*raw.ArrayObj); ok {
				parts = arr.Items
			}
		}
	default:
		if len(op.Operands) > 0 {
			parts = op.Operands[len(op.Operands)-1:]
		}
	}

	var bounds coords.Rect
	first := true
	for p, part := range parts {
		switch v := part.(type) {
		case raw.NumberObj:
			tx := -v.Float() / 1000 * gs.Text.FontSize * gs.Text.Scale
			*tm = coords.Translate(tx, 0).Multiply(*tm)
		case raw.StringObj:
			offset := 0
			for _, cc := range font.Codes(v.Bytes) {
				w0 := font.Width(cc.Code)
				trm := t.renderMatrix(gs, *tm)
				box := trm.TransformRect(coords.Rect{X0: 0, Y0: descent / 1000, X1: w0 / 1000, Y1: ascent / 1000})
				space := cc.Len == 1 && cc.Code == 32
				g := Glyph{
					Part: p, Offset: offset, Len: cc.Len, Code: cc.Code,
					Width: w0, Space: space, Rect: box,
					Origin: trm.Transform(coords.Point{}),
				}
				item.Glyphs = append(item.Glyphs, g)
				if first {
					bounds, first = box, false
				} else {
					bounds = bounds.Union(box)
				}
				tx := w0/1000*gs.Text.FontSize + gs.Text.CharSpace
				if space {
					tx += gs.Text.WordSpace
				}
				*tm = coords.Translate(tx*gs.Text.Scale, 0).Multiply(*tm)
				offset += cc.Len
			}
		}
	}
	item.Rect = bounds
	return item
}

// renderMatrix is Trm = [Tfs*Th 0 0 Tfs 0 Trise] × Tm × CTM.
func (t *Tracer) renderMatrix(gs *GraphicsState, tm coords.Matrix) coords.Matrix {
	fs := gs.Text.FontSize
	m := coords.Matrix{fs * gs.Text.Scale, 0, 0, fs, 0, gs.Text.Rise}
	return m.Multiply(tm).Multiply(gs.CTM)
}

func strokes(op string) bool {
	switch op {
	case "S", "s", "B", "B*", "b", "b*":
		return true
	}
	return false
}

func scaleOf(m coords.Matrix) float64 {
	return math.Sqrt(math.Abs(m[0]*m[3] - m[1]*m[2]))
}

func matrixOf(ops []raw.Object) coords.Matrix {
	return coords.Matrix{num(ops[0]), num(ops[1]), num(ops[2]), num(ops[3]), num(ops[4]), num(ops[5])}
}

func num(o raw.Object) float64 {
	if n, ok := o.(raw.NumberObj); ok {
		return n.Float()
	}
	return 0
}

// defaultFont is used when a font resource cannot be resolved: one byte
// per code and a flat half-em advance.
type defaultFont struct{}

func (defaultFont) Codes(s []byte) []CharCode {
	out := make([]CharCode, len(s))
	for i, b := range s {
		out[i] = CharCode{Code: uint32(b), Len: 1}
	}
	return out
}
func (defaultFont) Width(uint32) float64        { return 500 }
func (defaultFont) Bounds() (float64, float64) { return -200, 800 }
