// Package extractor recovers rendered text lines from traced content
// streams.
package extractor

import (
	"math"
	"strings"

	"github.com/wudi/quotekit/contentstream"
	"github.com/wudi/quotekit/coords"
	"github.com/wudi/quotekit/fonts"
)

// Options tune how glyphs are grouped. Distances are relative to the glyph
// height so they scale with the font size.
type Options struct {
	// BaselineTolerance is how far a baseline may drift before a new line
	// starts.
	BaselineTolerance float64
	// SpaceGap is the horizontal gap that reads as a word space when the
	// producer positioned words without a space glyph.
	SpaceGap float64
	// ColumnGap splits a baseline into separate lines when glyphs are this
	// far apart, as happens with a label and its value in separate columns.
	// Zero keeps a baseline on one line.
	ColumnGap float64
}

func DefaultOptions() Options {
	return Options{BaselineTolerance: 0.3, SpaceGap: 0.2, ColumnGap: 4}
}

// Run is a piece of text shown by one operation.
type Run struct {
	Text   string
	Font   string
	Size   float64
	Origin coords.Point
	Rect   coords.Rect
}

// Line is text sharing a baseline, in the order it was drawn.
type Line struct {
	Text     string
	Baseline float64
	Rect     coords.Rect
	Runs     []Run
}

// PageText holds the lines of one page.
type PageText struct {
	Page  int
	Lines []Line
}

// Strings returns the line texts.
func (p PageText) Strings() []string {
	out := make([]string, len(p.Lines))
	for i, l := range p.Lines {
		out[i] = l.Text
	}
	return out
}

// Content joins the lines with newlines.
func (p PageText) Content() string { return strings.Join(p.Strings(), "\n") }

type Extractor struct {
	opts Options
}

func New(opts Options) *Extractor {
	def := DefaultOptions()
	if opts.BaselineTolerance <= 0 {
		opts.BaselineTolerance = def.BaselineTolerance
	}
	if opts.SpaceGap <= 0 {
		opts.SpaceGap = def.SpaceGap
	}
	if opts.ColumnGap < 0 {
		opts.ColumnGap = 0
	}
	return &Extractor{opts: opts}
}

// Runs decodes every text-showing operation. Fonts that cannot map codes
// back to text contribute nothing.
func (e *Extractor) Runs(ops []contentstream.Operation, res contentstream.Resources, ctm coords.Matrix) []Run {
	items := contentstream.NewTracer(res).Trace(ops, ctm)
	var runs []Run
	for _, item := range items {
		if item.Kind != contentstream.KindText || len(item.Glyphs) == 0 {
			continue
		}
		font, ok := res.Font(item.Name).(fonts.Font)
		if !ok {
			continue
		}
		var b strings.Builder
		for _, g := range item.Glyphs {
			b.WriteString(font.Decode(g.Code))
		}
		runs = append(runs, Run{
			Text:   b.String(),
			Font:   item.Name,
			Size:   item.Text.FontSize,
			Origin: item.Glyphs[0].Origin,
			Rect:   item.Rect,
		})
	}
	return runs
}

type lineBuilder struct {
	line    Line
	text    strings.Builder
	lastEnd float64
}

// Lines groups the glyphs of a content stream into rendered lines: a new
// line starts whenever the baseline changes, or on a column gap.
func (e *Extractor) Lines(ops []contentstream.Operation, res contentstream.Resources, ctm coords.Matrix) []Line {
	items := contentstream.NewTracer(res).Trace(ops, ctm)
	var (
		lines []Line
		cur   *lineBuilder
	)
	flush := func() {
		if cur == nil {
			return
		}
		cur.line.Text = cur.text.String()
		if strings.TrimSpace(cur.line.Text) != "" {
			lines = append(lines, cur.line)
		}
		cur = nil
	}

	for _, item := range items {
		if item.Kind != contentstream.KindText {
			continue
		}
		font, ok := res.Font(item.Name).(fonts.Font)
		if !ok {
			continue
		}
		run := Run{Font: item.Name, Size: item.Text.FontSize}
		runStarted := false
		for _, g := range item.Glyphs {
			text := font.Decode(g.Code)
			if text == "" {
				continue
			}
			em := g.Rect.Height()
			if em <= 0 {
				em = item.Text.FontSize
			}
			if cur != nil && e.breaks(cur, g, em) {
				if runStarted {
					cur.line.Runs = append(cur.line.Runs, run)
				}
				flush()
				run = Run{Font: item.Name, Size: item.Text.FontSize}
				runStarted = false
			}
			if cur == nil {
				cur = &lineBuilder{line: Line{Baseline: g.Origin.Y, Rect: g.Rect}}
			} else if gap := g.Origin.X - cur.lastEnd; gap > e.opts.SpaceGap*em && !endsWithSpace(cur) && !strings.HasPrefix(text, " ") {
				cur.text.WriteByte(' ')
				run.Text += " "
			}
			if !runStarted {
				run.Origin = g.Origin
				run.Rect = g.Rect
				runStarted = true
			}
			cur.text.WriteString(text)
			run.Text += text
			run.Rect = run.Rect.Union(g.Rect)
			cur.line.Rect = cur.line.Rect.Union(g.Rect)
			cur.lastEnd = g.Rect.X1
		}
		if runStarted && cur != nil {
			cur.line.Runs = append(cur.line.Runs, run)
		}
	}
	flush()
	return lines
}

func (e *Extractor) breaks(cur *lineBuilder, g contentstream.Glyph, em float64) bool {
	if math.Abs(g.Origin.Y-cur.line.Baseline) > e.opts.BaselineTolerance*em {
		return true
	}
	return e.opts.ColumnGap > 0 && g.Origin.X-cur.lastEnd > e.opts.ColumnGap*em
}

func endsWithSpace(cur *lineBuilder) bool {
	s := cur.text.String()
	return s == "" || strings.HasSuffix(s, " ")
}
