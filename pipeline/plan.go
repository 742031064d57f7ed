package pipeline

import (
	"fmt"
	"os"

	"golang.org/x/text/currency"

	"github.com/wudi/quotekit/builder"
	"github.com/wudi/quotekit/config"
	"github.com/wudi/quotekit/coords"
	"github.com/wudi/quotekit/finance"
	"github.com/wudi/quotekit/finance/pdftext"
	"github.com/wudi/quotekit/overlay"
	"github.com/wudi/quotekit/redact"
)

func rect(r [4]float64) coords.Rect {
	return coords.Rect{X0: r[0], Y0: r[1], X1: r[2], Y1: r[3]}
}

func color(c config.Color, def builder.Color) builder.Color {
	if !c.IsSet() {
		return def
	}
	return builder.Color{R: c.R, G: c.G, B: c.B}
}

func zones(list []config.ZoneConfig) []coords.Zone {
	out := make([]coords.Zone, len(list))
	for i, z := range list {
		out[i] = coords.Zone{Rect: rect(z.Rect), Label: z.Label}
	}
	return out
}

func zoneSet(c config.RedactionConfig) redact.ZoneSet {
	return redact.ZoneSet{
		FirstPage:       zones(c.FirstPage),
		AllPages:        zones(c.AllPages),
		Optional:        zones(c.Optional),
		IncludeOptional: config.On(c.IncludeOptional),
	}
}

// planBuilder groups elements into one layer per scope, in the order the
// scopes first appear.
type planBuilder struct {
	plan  overlay.Plan
	index map[overlay.Scope]int
}

func (b *planBuilder) add(scope string, el overlay.Element) {
	s, err := overlay.ParseScope(scope)
	if err != nil {
		s = overlay.AllPages
	}
	if b.index == nil {
		b.index = make(map[overlay.Scope]int)
	}
	i, ok := b.index[s]
	if !ok {
		i = len(b.plan.Layers)
		b.index[s] = i
		b.plan.Layers = append(b.plan.Layers, overlay.Layer{Scope: s})
	}
	b.plan.Layers[i].Elements = append(b.plan.Layers[i].Elements, el)
}

func text(t config.TextConfig) overlay.Text {
	return overlay.Text{
		At:    coords.Point{X: t.At[0], Y: t.At[1]},
		Text:  t.Text,
		Font:  t.Font,
		Size:  t.Size,
		Color: color(t.Color, builder.Black),
		Align: builder.HAlign(t.Align),
	}
}

// overlayPlan translates the configured design.
func overlayPlan(c config.OverlayConfig) overlay.Plan {
	var b planBuilder
	blocks := []config.BlockConfig{c.Company, c.Client, c.Quote, c.Footer}
	for _, block := range blocks {
		for _, bg := range block.Backgrounds {
			scope := bg.Scope
			if scope == "" {
				scope = block.Scope
			}
			b.add(scope, overlay.FilledRect{Zone: coords.Zone{Rect: rect(bg.Rect), Label: bg.Label}, Color: color(bg.Color, builder.White)})
		}
		for _, line := range block.Lines {
			if line.Text == "" {
				continue
			}
			b.add(block.Scope, text(line))
		}
	}
	for _, sep := range c.Separators {
		b.add(sep.Scope, overlay.Separator{Zone: coords.Zone{Rect: rect(sep.Rect), Label: sep.Label}, Color: color(sep.Color, builder.Black)})
	}
	for _, bar := range c.EdgeBars {
		b.add(bar.Scope, overlay.EdgeBar{Edge: overlay.Edge(bar.Edge), Thickness: bar.Thickness, Color: color(bar.Color, builder.Black)})
	}
	if c.Logo.Path != "" {
		b.add(c.Logo.Scope, overlay.Image{Zone: coords.Zone{Rect: rect(c.Logo.Rect), Label: "logo"}, Source: c.Logo.Path})
	}
	if c.Stamp.Text != "" {
		st := overlay.Text{
			Text:     c.Stamp.Text,
			Font:     c.Stamp.Font,
			Size:     c.Stamp.Size,
			Color:    color(c.Stamp.Color, builder.Black),
			Opacity:  c.Stamp.Opacity,
			Rotation: c.Stamp.Rotation,
			Align:    builder.AlignCenter,
		}
		if c.Stamp.Pivot != nil {
			st.Pivot = &coords.Point{X: c.Stamp.Pivot[0], Y: c.Stamp.Pivot[1]}
		}
		if st.Rotation == 0 {
			// centre of an A4 page unless pivoted
			st.At = coords.Point{X: 297.5, Y: 421}
			if st.Pivot != nil {
				st.At = *st.Pivot
			}
		}
		b.add("all", st)
	}
	if pn := c.PageNumbers; config.On(pn.Enabled) && pn.Format != "" {
		b.add("all", text(config.TextConfig{Text: pn.Format, At: pn.At, Size: pn.Size, Align: pn.Align, Font: "Helvetica"}))
	}
	return b.plan
}

// fontOptions reads the configured TrueType files. Unreadable files are
// reported and the fonts fall back to Helvetica when used.
func fontOptions(fonts []config.FontConfig) ([]overlay.Option, []string) {
	var opts []overlay.Option
	var warnings []string
	for _, f := range fonts {
		data, err := os.ReadFile(f.Path)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("font %s: %v", f.Name, err))
			continue
		}
		opts = append(opts, overlay.WithTrueTypeFont(f.Name, data))
	}
	return opts, warnings
}

func splits(list []config.SplitConfig) []finance.Split {
	out := make([]finance.Split, len(list))
	for i, s := range list {
		out[i] = finance.Split{Label: s.Label, Percent: s.Percent}
	}
	return out
}

func placements(list []config.PlacementConfig) []finance.Placement {
	out := make([]finance.Placement, len(list))
	for i, p := range list {
		out[i] = finance.Placement{
			Split:    p.Split,
			At:       coords.Point{X: p.At[0], Y: p.At[1]},
			Template: p.Template,
			Font:     p.Font,
			Size:     p.Size,
		}
	}
	return out
}

// locator picks how the total is found: a configured amount, or the line
// above the anchor read by the configured source.
func locator(c config.FinanceConfig, source finance.LineSource) (finance.Locator, error) {
	unit := currency.EUR
	if c.Currency != "" {
		u, err := currency.ParseISO(c.Currency)
		if err != nil {
			return nil, fmt.Errorf("finance currency: %w", err)
		}
		unit = u
	}
	if c.Total != "" {
		v, err := finance.ParseMonetary(c.Total, unit)
		if err != nil {
			return nil, err
		}
		return finance.FixedLocator{Value: v}, nil
	}
	loc := finance.NewAnchorLocator(c.Anchor)
	loc.Currency = unit
	switch {
	case source != nil:
		loc.Source = source
	case c.Source == "pdftext":
		loc.Source = pdftext.Source{}
	}
	return loc, nil
}
