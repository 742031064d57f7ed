package redact

import (
	"context"
	"fmt"
	"strings"

	"github.com/wudi/quotekit/builder"
	"github.com/wudi/quotekit/contentstream"
	"github.com/wudi/quotekit/contentstream/editor"
	"github.com/wudi/quotekit/coords"
	"github.com/wudi/quotekit/document"
)

// Strategy names accepted by New.
const (
	NameDestructive = "destructive"
	NameOverlay     = "overlay"
	NamePreview     = "preview"
)

// New returns the strategy registered under name.
func New(name string, fill builder.Color) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case NameDestructive, "":
		return &Destructive{Fill: fill}, nil
	case NameOverlay, "mask":
		return &OverlayMask{Fill: fill}, nil
	case NamePreview:
		return &Preview{}, nil
	}
	return nil, fmt.Errorf("unknown redaction strategy %q", name)
}

// Destructive deletes everything painted inside the zones from the page
// content, then paints each zone with Fill.
type Destructive struct {
	Fill builder.Color
}

func (*Destructive) Name() string                { return NameDestructive }
func (d *Destructive) fillColor() builder.Color { return d.Fill }

func (d *Destructive) Apply(ctx context.Context, page *document.Page, marks []Mark) error {
	_, err := d.remove(ctx, page, marks)
	return err
}

func (d *Destructive) remove(ctx context.Context, page *document.Page, marks []Mark) (editor.Stats, error) {
	ops, err := page.Content(ctx)
	if err != nil {
		return editor.Stats{}, err
	}
	rects := make([]coords.Rect, len(marks))
	for i, m := range marks {
		rects[i] = page.ToUser(m.Zone.Rect)
	}
	kept, stats := editor.NewEditor(page.MediaBox(), page.TraceResources(ctx)).RemoveRects(ops, coords.Identity(), rects)

	fills := builder.NewCanvas(page)
	for i, m := range marks {
		fills.DrawRectangle(rects[i], builder.RectOptions{Fill: true, FillColor: m.Fill})
	}

	out := make([]contentstream.Operation, 0, len(kept)+len(fills.Ops())+2)
	if len(kept) > 0 {
		// the fills must not inherit a transformation left by the content
		out = append(out, contentstream.Op("q"))
		out = append(out, kept...)
		for i := contentstream.Balance(kept); i >= 0; i-- {
			out = append(out, contentstream.Op("Q"))
		}
	}
	out = append(out, fills.Ops()...)
	page.SetContent(out)
	return stats, nil
}

// OverlayMask paints opaque rectangles on a page-sized surface and merges
// it over the page. The original content stays in the file underneath.
type OverlayMask struct {
	Fill builder.Color
}

func (*OverlayMask) Name() string                { return NameOverlay }
func (o *OverlayMask) fillColor() builder.Color { return o.Fill }

func (o *OverlayMask) Apply(ctx context.Context, page *document.Page, marks []Mark) error {
	m := page.MediaBox()
	surface := document.NewBlank([]coords.PageBox{{Width: m.Width(), Height: m.Height()}})
	sp := surface.Pages()[0]
	c := builder.NewCanvas(sp)
	for _, mark := range marks {
		c.DrawRectangle(mark.Zone.Rect, builder.RectOptions{Fill: true, FillColor: mark.Fill})
	}
	c.Replace()
	return document.NewMerger(page.Document(), surface).Merge(ctx, page, sp)
}

// Preview outlines each zone in red with its label and removes nothing.
type Preview struct{}

func (*Preview) Name() string { return NamePreview }

func (*Preview) Apply(ctx context.Context, page *document.Page, marks []Mark) error {
	const labelSize = 6
	height := page.Bounds().Height()
	c := builder.NewCanvas(page)
	for i, m := range marks {
		r := m.Zone.Rect
		c.DrawRectangle(page.ToUser(r), builder.RectOptions{Stroke: true, StrokeColor: builder.Red, LineWidth: 1})
		// label above the zone, or just inside its top edge near the page top
		y := r.Y1 + 3
		if y+labelSize > height {
			y = r.Y1 - labelSize - 2
		}
		at := page.ToUser(coords.Rect{X0: r.X0, Y0: y, X1: r.X0, Y1: y})
		c.DrawText(fmt.Sprintf("Zone %d: %s", i+1, m.Zone.Label), at.X0, at.Y0, builder.TextOptions{FontSize: labelSize, Color: builder.Red})
	}
	return c.Append(ctx)
}
