// Package finance recomputes the payment schedule of a quote. The total is
// located on the last page, split by percentage into deposits and balance,
// and each figure is written back at a fixed position.
package finance

import (
	"context"
	"fmt"
	"strings"

	"github.com/wudi/quotekit/builder"
	"github.com/wudi/quotekit/coords"
	"github.com/wudi/quotekit/document"
	"github.com/wudi/quotekit/fonts"
	"github.com/wudi/quotekit/observability"
)

// Split is a named share of the total, in percent.
type Split struct {
	Label   string
	Percent float64
}

// DefaultSplits is the schedule printed on supplier quotes.
func DefaultSplits() []Split {
	return []Split{
		{Label: "deposit_30", Percent: 30},
		{Label: "deposit_50", Percent: 50},
		{Label: "balance_20", Percent: 20},
	}
}

// Placement writes one split on the last page. Template may use {amount}
// (two decimals, period separator) and {currency}.
type Placement struct {
	Split    string
	At       coords.Point
	Template string
	Font     string
	Size     float64
}

// DefaultPlacements line the figures up with the labels of the schedule
// printed under the total.
func DefaultPlacements() []Placement {
	return []Placement{
		{Split: "deposit_30", At: coords.Point{X: 110, Y: 379}, Template: ": {amount}  {currency}"},
		{Split: "deposit_50", At: coords.Point{X: 251, Y: 369}, Template: "{amount}  {currency}"},
		{Split: "balance_20", At: coords.Point{X: 190, Y: 358}, Template: " {amount} {currency}"},
	}
}

// Status tells whether figures were written.
type Status string

const (
	Applied Status = "applied"
	Skipped Status = "skipped"
)

// Derived is one computed figure.
type Derived struct {
	Label   string
	Percent float64
	Value   MonetaryValue
	Text    string // as written, empty when not placed
}

type Outcome struct {
	Status  Status
	Reason  string
	Total   MonetaryValue
	Derived []Derived
}

// Derive splits total. Each share is rounded to cents on its own; the shares
// are not adjusted to add up to the total.
func Derive(total MonetaryValue, splits []Split) []Derived {
	out := make([]Derived, len(splits))
	for i, s := range splits {
		out[i] = Derived{
			Label:   s.Label,
			Percent: s.Percent,
			Value:   MonetaryValue{Amount: total.Amount.Percent(s.Percent), Currency: total.Currency},
		}
	}
	return out
}

// Render fills a placement template.
func Render(template string, v MonetaryValue) string {
	return strings.NewReplacer("{amount}", v.Amount.Format(2), "{currency}", v.Currency.String()).Replace(template)
}

type Option func(*Schedule)

func WithSplits(s []Split) Option { return func(sc *Schedule) { sc.splits = s } }

func WithPlacements(p []Placement) Option { return func(sc *Schedule) { sc.placements = p } }

func WithLogger(l observability.Logger) Option { return func(sc *Schedule) { sc.logger = l } }

// Schedule writes derived payment figures onto documents.
type Schedule struct {
	locator    Locator
	splits     []Split
	placements []Placement
	logger     observability.Logger
}

// NewSchedule uses an AnchorLocator with the default anchor when locator is
// nil.
func NewSchedule(locator Locator, opts ...Option) *Schedule {
	if locator == nil {
		locator = NewAnchorLocator(DefaultAnchor)
	}
	s := &Schedule{
		locator:    locator,
		splits:     DefaultSplits(),
		placements: DefaultPlacements(),
		logger:     observability.NopLogger{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Apply locates the total and writes the figures on the last page. A total
// that cannot be found is not an error: the outcome is Skipped and doc is
// left as it was. Errors come from reading or writing page content.
func (s *Schedule) Apply(ctx context.Context, doc *document.Document) (Outcome, error) {
	total, err := s.locator.Locate(ctx, doc)
	if err != nil {
		if IsMiss(err) {
			s.logger.Warn("payment schedule skipped", observability.Error("error", err))
			return Outcome{Status: Skipped, Reason: err.Error()}, nil
		}
		return Outcome{Status: Skipped, Reason: err.Error()}, err
	}

	page := doc.LastPage()
	if page == nil {
		return Outcome{Status: Skipped, Reason: "document has no pages", Total: total}, nil
	}
	out := Outcome{Status: Applied, Total: total, Derived: Derive(total, s.splits)}
	c := builder.NewCanvas(page)
	fontCache := make(map[string]fonts.Encoder)
	for _, p := range s.placements {
		i := indexOf(out.Derived, p.Split)
		if i < 0 {
			s.logger.Warn("placement names an unknown split", observability.String("split", p.Split))
			continue
		}
		text := Render(p.Template, out.Derived[i].Value)
		out.Derived[i].Text = text
		size := p.Size
		if size <= 0 {
			size = 10
		}
		at := page.ToUser(coords.Rect{X0: p.At.X, Y0: p.At.Y, X1: p.At.X, Y1: p.At.Y})
		c.DrawText(text, at.X0, at.Y0, builder.TextOptions{Font: placementFont(fontCache, p.Font), FontSize: size})
	}
	if err := c.Append(ctx); err != nil {
		return Outcome{Status: Skipped, Reason: err.Error(), Total: total}, fmt.Errorf("write schedule: %w", err)
	}

	fields := []observability.Field{observability.Float("total", total.Amount.Float64())}
	for _, d := range out.Derived {
		fields = append(fields, observability.Float(d.Label, d.Value.Amount.Float64()))
	}
	s.logger.Info("payment schedule applied", fields...)
	return out, nil
}

func indexOf(derived []Derived, label string) int {
	for i, d := range derived {
		if d.Label == label {
			return i
		}
	}
	return -1
}

func placementFont(cache map[string]fonts.Encoder, name string) fonts.Encoder {
	if name == "" {
		name = "Helvetica"
	}
	if f, ok := cache[name]; ok {
		return f
	}
	var f fonts.Encoder = fonts.Helvetica()
	if std, err := fonts.NewStandard(name); err == nil {
		f = std
	}
	cache[name] = f
	return f
}
