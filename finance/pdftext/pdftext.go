// Package pdftext reads page lines with github.com/ledongthuc/pdf, a reader
// independent of the toolkit's own extractor. The document is serialized
// and read back, so the lines reflect what a viewer of the output sees.
package pdftext

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/wudi/quotekit/document"
	"github.com/wudi/quotekit/writer"
)

// Source implements finance.LineSource.
type Source struct {
	// ColumnGap splits a row where the gap between two characters exceeds
	// this many times the font size. Zero uses 2.
	ColumnGap float64
}

func (s Source) Lines(ctx context.Context, page *document.Page) ([]string, error) {
	data, err := page.Document().Bytes(ctx, writer.Config{Deterministic: true})
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}
	return s.ReadLines(data, page.Number())
}

// ReadLines returns the rows of page number (1-based) of a serialized
// document, top to bottom, each row split into columns.
func (s Source) ReadLines(data []byte, number int) (lines []string, err error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	if number < 1 || number > r.NumPage() {
		return nil, fmt.Errorf("page %d of %d", number, r.NumPage())
	}
	page := r.Page(number)
	if page.V.IsNull() {
		return nil, fmt.Errorf("page %d: no page object", number)
	}
	// the reader panics on content it cannot interpret
	defer func() {
		if p := recover(); p != nil {
			lines, err = nil, fmt.Errorf("page %d: %v", number, p)
		}
	}()
	gap := s.ColumnGap
	if gap <= 0 {
		gap = 2
	}
	return rows(page.Content().Text, gap), nil
}

type row struct {
	y     float64
	texts []pdf.Text
}

func rows(texts []pdf.Text, gap float64) []string {
	var rs []*row
	for _, t := range texts {
		if t.S == "" {
			continue
		}
		var target *row
		for _, r := range rs {
			if math.Abs(r.y-t.Y) <= math.Max(t.FontSize*0.3, 0.5) {
				target = r
				break
			}
		}
		if target == nil {
			target = &row{y: t.Y}
			rs = append(rs, target)
		}
		target.texts = append(target.texts, t)
	}
	sort.SliceStable(rs, func(i, j int) bool { return rs[i].y > rs[j].y })

	var out []string
	for _, r := range rs {
		sort.SliceStable(r.texts, func(i, j int) bool { return r.texts[i].X < r.texts[j].X })
		var b strings.Builder
		end := math.Inf(-1)
		for _, t := range r.texts {
			if b.Len() > 0 && t.X-end > gap*t.FontSize {
				out = appendLine(out, b.String())
				b.Reset()
			}
			b.WriteString(t.S)
			end = math.Max(end, t.X+t.W)
		}
		out = appendLine(out, b.String())
	}
	return out
}

func appendLine(lines []string, s string) []string {
	if s = strings.TrimSpace(s); s != "" {
		lines = append(lines, s)
	}
	return lines
}
