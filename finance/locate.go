package finance

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/currency"
	"golang.org/x/text/unicode/norm"

	"github.com/wudi/quotekit/document"
	"github.com/wudi/quotekit/extractor"
)

var (
	// ErrAnchorNotFound reports a last page without the anchor line.
	ErrAnchorNotFound = errors.New("finance: anchor line not found")
	// ErrNoTotalLine reports an anchor on the first line of the page.
	ErrNoTotalLine = errors.New("finance: no line before the anchor")
)

// IsMiss reports whether err means the total could not be found in the
// document, as opposed to a failure reading it.
func IsMiss(err error) bool {
	return errors.Is(err, ErrAnchorNotFound) || errors.Is(err, ErrNoTotalLine) || errors.Is(err, ErrUnparsable)
}

// DefaultAnchor is the label printed under the total on supplier quotes.
const DefaultAnchor = "ACOMPTE 30%"

// LineSource returns the rendered lines of a page, top to bottom in the
// order they were drawn.
type LineSource interface {
	Lines(ctx context.Context, page *document.Page) ([]string, error)
}

// ContentLines reads lines with the content stream extractor.
type ContentLines struct {
	Options extractor.Options
}

func (c ContentLines) Lines(ctx context.Context, page *document.Page) ([]string, error) {
	text, err := page.Text(ctx, c.Options)
	if err != nil {
		return nil, err
	}
	return text.Strings(), nil
}

// LinesFunc adapts a function to LineSource.
type LinesFunc func(ctx context.Context, page *document.Page) ([]string, error)

func (f LinesFunc) Lines(ctx context.Context, page *document.Page) ([]string, error) {
	return f(ctx, page)
}

// Locator finds the total a payment schedule is derived from.
type Locator interface {
	Locate(ctx context.Context, doc *document.Document) (MonetaryValue, error)
}

// AnchorLocator takes the total from the line right above the anchor on the
// last page.
type AnchorLocator struct {
	Anchor   string
	Source   LineSource
	Currency currency.Unit // when the line names none
}

func NewAnchorLocator(anchor string) *AnchorLocator {
	if anchor == "" {
		anchor = DefaultAnchor
	}
	return &AnchorLocator{Anchor: anchor, Source: ContentLines{Options: extractor.DefaultOptions()}, Currency: currency.EUR}
}

func (l *AnchorLocator) Locate(ctx context.Context, doc *document.Document) (MonetaryValue, error) {
	page := doc.LastPage()
	if page == nil {
		return MonetaryValue{}, ErrAnchorNotFound
	}
	src := l.Source
	if src == nil {
		src = ContentLines{Options: extractor.DefaultOptions()}
	}
	lines, err := src.Lines(ctx, page)
	if err != nil {
		return MonetaryValue{}, fmt.Errorf("read page %d: %w", page.Number(), err)
	}
	token, err := TotalBefore(lines, l.Anchor)
	if err != nil {
		return MonetaryValue{}, err
	}
	fallback := l.Currency
	if fallback == (currency.Unit{}) {
		fallback = currency.EUR
	}
	return ParseMonetary(token, fallback)
}

// TotalBefore returns the line preceding the first line equal to anchor.
// Lines and anchor are compared trimmed and in NFC form.
func TotalBefore(lines []string, anchor string) (string, error) {
	want := canonical(anchor)
	for i, line := range lines {
		if canonical(line) != want {
			continue
		}
		if i == 0 {
			return "", fmt.Errorf("%w: %q opens the page", ErrNoTotalLine, anchor)
		}
		return lines[i-1], nil
	}
	return "", fmt.Errorf("%w: %q", ErrAnchorNotFound, anchor)
}

func canonical(s string) string { return norm.NFC.String(strings.TrimSpace(s)) }

// FixedLocator returns a total supplied by the caller, for documents whose
// amount is known from a structured source.
type FixedLocator struct {
	Value MonetaryValue
}

func (f FixedLocator) Locate(context.Context, *document.Document) (MonetaryValue, error) {
	return f.Value, nil
}
