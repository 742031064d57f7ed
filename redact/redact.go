// Package redact blanks declared regions of a document. Zones are validated
// and clamped to each page, then handed to a Strategy that either removes
// the content underneath or masks it.
package redact

import (
	"context"
	"fmt"

	"github.com/wudi/quotekit/builder"
	"github.com/wudi/quotekit/contentstream/editor"
	"github.com/wudi/quotekit/coords"
	"github.com/wudi/quotekit/document"
	"github.com/wudi/quotekit/observability"
)

// ZoneSet declares what to blank. Zone rectangles are relative to the lower
// left corner of each page's media box.
type ZoneSet struct {
	FirstPage []coords.Zone
	AllPages  []coords.Zone
	// Optional zones apply to the first page only, when IncludeOptional is set.
	Optional        []coords.Zone
	IncludeOptional bool
}

// Len counts the declared zones, optional ones included.
func (z ZoneSet) Len() int {
	return len(z.FirstPage) + len(z.AllPages) + len(z.Optional)
}

// Mark is one zone to blank on one page, in zone coordinates.
type Mark struct {
	Zone coords.Zone
	Fill builder.Color
}

// Strategy blanks the marks of a single page. A strategy must leave the
// page untouched when it returns an error.
type Strategy interface {
	Name() string
	Apply(ctx context.Context, page *document.Page, marks []Mark) error
}

// filler is implemented by strategies that paint zones with a color.
type filler interface {
	fillColor() builder.Color
}

// Result summarizes a redaction run.
type Result struct {
	Strategy string
	Pages    int
	Marks    int
	// Clamped lists the zones moved back inside their page, one entry per
	// page and zone.
	Clamped []string
	Removed editor.Stats
}

type Engine struct {
	strategy Strategy
	logger   observability.Logger
}

func NewEngine(strategy Strategy, logger observability.Logger) *Engine {
	if strategy == nil {
		strategy = &Destructive{Fill: builder.White}
	}
	if logger == nil {
		logger = observability.NopLogger{}
	}
	return &Engine{strategy: strategy, logger: logger}
}

func (e *Engine) Strategy() Strategy { return e.strategy }

// Redact applies zones to every page of doc. Degenerate zones are rejected
// before any page is touched. Pages are processed in order; a failure on
// one page leaves earlier pages redacted and later pages untouched.
func (e *Engine) Redact(ctx context.Context, doc *document.Document, zones ZoneSet) (Result, error) {
	res := Result{Strategy: e.strategy.Name()}
	for _, group := range [][]coords.Zone{zones.FirstPage, zones.AllPages, zones.Optional} {
		for _, z := range group {
			if err := z.Validate(); err != nil {
				return res, &coords.GeometryError{Zone: z, Err: err}
			}
		}
	}

	fill := builder.White
	if f, ok := e.strategy.(filler); ok {
		fill = f.fillColor()
	}

	for _, page := range doc.Pages() {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		var declared []coords.Zone
		if page.Index() == 0 {
			declared = append(declared, zones.FirstPage...)
			if zones.IncludeOptional {
				declared = append(declared, zones.Optional...)
			}
		}
		declared = append(declared, zones.AllPages...)
		if len(declared) == 0 {
			continue
		}

		bounds := page.Bounds()
		marks := make([]Mark, 0, len(declared))
		for _, z := range declared {
			r, moved := coords.ClampRect(z.Rect, bounds)
			if moved {
				e.logger.Warn("zone clamped to page",
					observability.Int(observability.KeyPage, page.Number()),
					observability.String(observability.KeyZone, z.Label),
					observability.String("from", z.Rect.String()),
					observability.String("to", r.String()))
				res.Clamped = append(res.Clamped, fmt.Sprintf("page %d: %s", page.Number(), z.Label))
			}
			marks = append(marks, Mark{Zone: coords.Zone{Rect: r, Label: z.Label}, Fill: fill})
		}

		// Only the concrete Destructive reports removal stats; a type that
		// embeds it and overrides Apply goes through Apply like any other.
		if d, ok := e.strategy.(*Destructive); ok {
			stats, err := d.remove(ctx, page, marks)
			if err != nil {
				return res, fmt.Errorf("redact page %d: %w", page.Number(), err)
			}
			res.Removed.Glyphs += stats.Glyphs
			res.Removed.Paths += stats.Paths
			res.Removed.Images += stats.Images
			res.Removed.InlineImages += stats.InlineImages
			res.Removed.Forms += stats.Forms
			e.logger.Debug("page content removed",
				observability.Int(observability.KeyPage, page.Number()),
				observability.Int("glyphs", stats.Glyphs),
				observability.Int("paths", stats.Paths),
				observability.Int("images", stats.Images+stats.InlineImages))
		} else if err := e.strategy.Apply(ctx, page, marks); err != nil {
			return res, fmt.Errorf("redact page %d: %w", page.Number(), err)
		}
		res.Pages++
		res.Marks += len(marks)
	}

	e.logger.Info("redaction done",
		observability.String(observability.KeyStrategy, res.Strategy),
		observability.Int(observability.KeyPages, res.Pages),
		observability.Int("marks", res.Marks))
	return res, nil
}
