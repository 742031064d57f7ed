package contentstream

import (
	"github.com/wudi/quotekit/coords"
	"github.com/wudi/quotekit/ir/raw"
)

// Operation is one operator with its operands, in stream order.
type Operation struct {
	Operator string
	Operands []raw.Object
	// Inline holds the image of a BI ... ID ... EI sequence.
	Inline *InlineImage
}

type InlineImage struct {
	Dict *raw.DictObj
	Data []byte
}

// Op builds an operation.
func Op(operator string, operands ...raw.Object) Operation {
	return Operation{Operator: operator, Operands: operands}
}

// Nums converts floats to number operands.
func Nums(vals ...float64) []raw.Object {
	out := make([]raw.Object, len(vals))
	for i, v := range vals {
		out[i] = raw.Number(v)
	}
	return out
}

// TextRenderMode matches PDF text rendering modes set via Tr operator.
type TextRenderMode int

const (
	TextFill TextRenderMode = iota
	TextStroke
	TextFillStroke
	TextInvisible
	TextFillClip
	TextStrokeClip
	TextFillStrokeClip
	TextClip
)

// ItemKind classifies what a traced item paints.
type ItemKind int

const (
	KindText ItemKind = iota
	KindPath
	KindClip
	KindImage
	KindInlineImage
	KindForm
	KindShading
)

func (k ItemKind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindPath:
		return "path"
	case KindClip:
		return "clip"
	case KindImage:
		return "image"
	case KindInlineImage:
		return "inline-image"
	case KindForm:
		return "form"
	case KindShading:
		return "shading"
	}
	return "unknown"
}

// Item is a painted element located on the page. Start..Op is the range of
// operations that produce it; for everything but paths Start == Op.
type Item struct {
	Kind   ItemKind
	Start  int
	Op     int
	Rect   coords.Rect
	Name   string // XObject or font resource name
	Glyphs []Glyph
	Text   TextParams
}

// Glyph is one shown character code. Part indexes the TJ array element (0
// for Tj and quote operators); Offset and Len locate its bytes.
type Glyph struct {
	Part   int
	Offset int
	Len    int
	Code   uint32
	Width  float64 // glyph space, thousandths of text space
	Space  bool    // word spacing applied after this glyph
	Rect   coords.Rect
	Origin coords.Point
}

// TextParams captures the text state that governs glyph advance.
type TextParams struct {
	CharSpace float64
	WordSpace float64
	Scale     float64
	FontSize  float64
	Rise      float64
	Leading   float64
	Mode      TextRenderMode
	Matrix    coords.Matrix // text rendering matrix at the start of the operation
}

// Font is what the tracer needs from a font resource.
type Font interface {
	// Codes splits shown bytes into character codes.
	Codes(s []byte) []CharCode
	// Width returns the advance of code in glyph space (1000 units per em).
	Width(code uint32) float64
	// Bounds returns descent and ascent in glyph space.
	Bounds() (descent, ascent float64)
}

type CharCode struct {
	Code uint32
	Len  int
}

// XObjectInfo describes a named XObject for bounding-box purposes.
type XObjectInfo struct {
	Subtype string
	BBox    coords.Rect
	Matrix  coords.Matrix
}

// Resources resolves names used by a content stream.
type Resources interface {
	Font(name string) Font
	XObject(name string) (XObjectInfo, bool)
}
