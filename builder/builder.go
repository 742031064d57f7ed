// Package builder records drawing operations for a page: rectangles, lines,
// text and images, with the graphics state each one needs. Resources are
// registered on the page as they are used.
package builder

import (
	"context"
	"math"

	"github.com/wudi/quotekit/contentstream"
	"github.com/wudi/quotekit/coords"
	"github.com/wudi/quotekit/document"
	"github.com/wudi/quotekit/fonts"
	"github.com/wudi/quotekit/ir/raw"
)

// Color is an RGB color with components in [0, 1].
type Color struct {
	R, G, B float64
}

var (
	Black = Color{}
	White = Color{R: 1, G: 1, B: 1}
	Red   = Color{R: 1}
)

// HAlign positions text horizontally relative to its anchor.
type HAlign string

const (
	AlignLeft   HAlign = "left"
	AlignCenter HAlign = "center"
	AlignRight  HAlign = "right"
)

// TextOptions configures text drawing.
type TextOptions struct {
	Font        fonts.Encoder // Helvetica when nil
	FontSize    float64       // 12 when zero
	Color       Color
	Opacity     float64 // zero means opaque
	Rotation    float64 // degrees, counterclockwise around the anchor
	Align       HAlign
	CharSpacing float64
	RenderMode  contentstream.TextRenderMode
}

// PathOptions configures path drawing.
type PathOptions struct {
	StrokeColor Color
	FillColor   Color
	LineWidth   float64
	LineCap     int
	DashPattern []float64
	DashPhase   float64
	Fill        bool
	Stroke      bool
	Opacity     float64
}

// RectOptions configures rectangle drawing (defaults to stroke if neither fill nor stroke is set).
type RectOptions = PathOptions

// LineOptions configures line drawing.
type LineOptions struct {
	StrokeColor Color
	LineWidth   float64
	DashPattern []float64
	DashPhase   float64
}

const defaultFontSize = 12

// Canvas accumulates operations for one page. Each drawing call is
// self-contained: it saves and restores the graphics state around itself.
type Canvas struct {
	page *document.Page
	ops  []contentstream.Operation
}

func NewCanvas(page *document.Page) *Canvas {
	return &Canvas{page: page}
}

func (c *Canvas) Page() *document.Page { return c.page }

// Ops returns the operations recorded so far.
func (c *Canvas) Ops() []contentstream.Operation { return c.ops }

func (c *Canvas) Empty() bool { return len(c.ops) == 0 }

// Append draws the recorded operations on top of the page content.
func (c *Canvas) Append(ctx context.Context) error {
	if len(c.ops) == 0 {
		return nil
	}
	return c.page.AppendContent(ctx, c.ops)
}

// Replace makes the recorded operations the whole page content.
func (c *Canvas) Replace() {
	c.page.SetContent(c.ops)
}

func (c *Canvas) add(op string, operands ...raw.Object) {
	c.ops = append(c.ops, contentstream.Op(op, operands...))
}

func (c *Canvas) DrawRectangle(r coords.Rect, opts RectOptions) *Canvas {
	po := opts
	if !po.Stroke && !po.Fill {
		po.Stroke = true
	}
	r = r.Normalize()
	c.add("q")
	c.applyPathState(po)
	c.add("re", contentstream.Nums(r.X0, r.Y0, r.Width(), r.Height())...)
	c.add(paintOperator(po.Fill, po.Stroke))
	c.add("Q")
	return c
}

func (c *Canvas) DrawLine(x1, y1, x2, y2 float64, opts LineOptions) *Canvas {
	c.add("q")
	c.applyPathState(PathOptions{
		StrokeColor: opts.StrokeColor,
		LineWidth:   opts.LineWidth,
		DashPattern: opts.DashPattern,
		DashPhase:   opts.DashPhase,
		Stroke:      true,
	})
	c.add("m", contentstream.Nums(x1, y1)...)
	c.add("l", contentstream.Nums(x2, y2)...)
	c.add("S")
	c.add("Q")
	return c
}

// DrawText shows text with its baseline anchored at (x, y). Alignment
// shifts the string along the baseline; rotation turns it around the anchor.
func (c *Canvas) DrawText(text string, x, y float64, opts TextOptions) *Canvas {
	if text == "" {
		return c
	}
	font := opts.Font
	if font == nil {
		font = fonts.Helvetica()
	}
	size := opts.FontSize
	if size <= 0 {
		size = defaultFontSize
	}
	dx := 0.0
	switch opts.Align {
	case AlignCenter:
		dx = -TextWidth(font, text, size, opts.CharSpacing) / 2
	case AlignRight:
		dx = -TextWidth(font, text, size, opts.CharSpacing)
	}

	c.add("q")
	c.applyOpacity(opts.Opacity)
	tx, ty := x+dx, y
	if opts.Rotation != 0 {
		rad := opts.Rotation * math.Pi / 180
		m := coords.Rotate(rad).Multiply(coords.Translate(x, y))
		c.add("cm", contentstream.Nums(m[:]...)...)
		tx, ty = dx, 0
	}
	c.add("BT")
	c.add("Tf", raw.NameLiteral(c.page.UseFont(font)), raw.Number(size))
	if opts.CharSpacing != 0 {
		c.add("Tc", raw.Number(opts.CharSpacing))
	}
	if opts.RenderMode != contentstream.TextFill {
		c.add("Tr", raw.NumberInt(int64(opts.RenderMode)))
	}
	c.appendColorOp(opts.Color, false)
	if isStrokeMode(opts.RenderMode) {
		c.appendColorOp(opts.Color, true)
	}
	c.add("Tm", contentstream.Nums(1, 0, 0, 1, tx, ty)...)
	c.add("Tj", raw.Str(font.Encode(text)))
	c.add("ET")
	c.add("Q")
	return c
}

// DrawImage paints an image XObject stretched over r.
func (c *Canvas) DrawImage(ref raw.RefObj, r coords.Rect) *Canvas {
	r = r.Normalize()
	name := c.page.UseXObject(ref)
	c.add("q")
	c.add("cm", contentstream.Nums(r.Width(), 0, 0, r.Height(), r.X0, r.Y0)...)
	c.add("Do", raw.NameLiteral(name))
	c.add("Q")
	return c
}

// TextWidth measures text in user space units.
func TextWidth(font fonts.Encoder, text string, size, charSpacing float64) float64 {
	w := fonts.StringWidth(font, text, size)
	if charSpacing != 0 {
		w += charSpacing * float64(len(font.Codes(font.Encode(text))))
	}
	return w
}

func (c *Canvas) appendColorOp(col Color, stroking bool) {
	op := "rg"
	if stroking {
		op = "RG"
	}
	c.add(op, contentstream.Nums(clamp01(col.R), clamp01(col.G), clamp01(col.B))...)
}

func (c *Canvas) applyOpacity(alpha float64) {
	if alpha <= 0 || alpha >= 1 {
		return
	}
	c.add("gs", raw.NameLiteral(c.page.UseAlpha(alpha)))
}

func (c *Canvas) applyPathState(opts PathOptions) {
	c.applyOpacity(opts.Opacity)
	if opts.Fill {
		c.appendColorOp(opts.FillColor, false)
	}
	if opts.Stroke {
		c.appendColorOp(opts.StrokeColor, true)
		if opts.LineWidth > 0 {
			c.add("w", raw.Number(opts.LineWidth))
		}
		if opts.LineCap != 0 {
			c.add("J", raw.NumberInt(int64(opts.LineCap)))
		}
		if len(opts.DashPattern) > 0 {
			c.add("d", raw.Numbers(opts.DashPattern...), raw.Number(opts.DashPhase))
		}
	}
}

func paintOperator(fill, stroke bool) string {
	switch {
	case fill && stroke:
		return "B"
	case fill:
		return "f"
	default:
		return "S"
	}
}

func isStrokeMode(mode contentstream.TextRenderMode) bool {
	return mode == contentstream.TextStroke ||
		mode == contentstream.TextFillStroke ||
		mode == contentstream.TextStrokeClip ||
		mode == contentstream.TextFillStrokeClip
}

func clamp01(v float64) float64 {
	switch {
	case v < 0 || math.IsNaN(v):
		return 0
	case v > 1:
		return 1
	}
	return v
}
