package finance

import (
	"bytes"
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/text/currency"

	"github.com/wudi/quotekit/builder"
	"github.com/wudi/quotekit/coords"
	"github.com/wudi/quotekit/document"
	"github.com/wudi/quotekit/extractor"
)

func TestParseMonetary(t *testing.T) {
	tests := []struct {
		in       string
		amount   string
		currency currency.Unit
	}{
		{"1 800,00 EUR", "1800.00", currency.EUR},
		{"1\u202f800,00\u00a0EUR", "1800.00", currency.EUR},
		{"1 800,00 €", "1800.00", currency.EUR},
		{"1.234,56 €", "1234.56", currency.EUR},
		{"$1,234.56", "1234.56", currency.USD},
		{"1,234,567", "1234567.00", currency.EUR},
		{"1.234.567", "1234567.00", currency.EUR},
		{"980,5", "980.50", currency.EUR},
		{"42 CHF", "42.00", currency.CHF},
		{"-12,30 EUR", "-12.30", currency.EUR},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMonetary(tt.in, currency.EUR)
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if got.Amount.String() != tt.amount || got.Currency != tt.currency {
				t.Fatalf("got %s %s, want %s %s", got.Amount, got.Currency, tt.amount, tt.currency)
			}
		})
	}
}

func TestParseMonetary_Rejects(t *testing.T) {
	for _, in := range []string{"", "Total TTC", "ACOMPTE 30%", "12,00 XYZW", "EUR 12 EUR", "1/3"} {
		if _, err := ParseMonetary(in, currency.EUR); !errors.Is(err, ErrUnparsable) {
			t.Fatalf("ParseMonetary(%q) err = %v", in, err)
		}
	}
}

func TestAmount_PercentRoundsHalfAwayFromZero(t *testing.T) {
	tests := []struct {
		total string
		pct   float64
		want  string
	}{
		{"1800", 30, "540.00"},
		{"1800", 50, "900.00"},
		{"1800", 20, "360.00"},
		{"0.05", 50, "0.03"},
		{"-0.05", 50, "-0.03"},
		{"1234.57", 30, "370.37"},
		{"0.15", 30, "0.05"},
		{"100", 12.5, "12.50"},
	}
	for _, tt := range tests {
		got := MustAmount(tt.total).Percent(tt.pct)
		if got.String() != tt.want {
			t.Fatalf("%s × %g%% = %s, want %s", tt.total, tt.pct, got, tt.want)
		}
	}
}

func TestTotalBefore(t *testing.T) {
	lines := []string{"Total TTC", "1 800,00 EUR", "  ACOMPTE 30%  ", "Acompte de 50% à la pose"}
	got, err := TotalBefore(lines, "ACOMPTE 30%")
	if err != nil || got != "1 800,00 EUR" {
		t.Fatalf("got %q, %v", got, err)
	}
	if _, err := TotalBefore(lines[2:], "ACOMPTE 30%"); !errors.Is(err, ErrNoTotalLine) {
		t.Fatalf("anchor first: err = %v", err)
	}
	if _, err := TotalBefore(lines[:2], "ACOMPTE 30%"); !errors.Is(err, ErrAnchorNotFound) {
		t.Fatalf("no anchor: err = %v", err)
	}
	// decomposed é matches the composed anchor
	if got, err := TotalBefore([]string{"12 EUR", "Acompte re\u0301gle\u0301"}, "Acompte r\u00e9gl\u00e9"); err != nil || got != "12 EUR" {
		t.Fatalf("nfc: %q, %v", got, err)
	}
}

func TestDerive(t *testing.T) {
	total := MonetaryValue{Amount: MustAmount("1800"), Currency: currency.EUR}
	var got []string
	for _, d := range Derive(total, DefaultSplits()) {
		got = append(got, d.Label+"="+d.Value.Amount.String())
	}
	want := []string{"deposit_30=540.00", "deposit_50=900.00", "balance_20=360.00"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("derive (-want +got):\n%s", diff)
	}
}

func lastLines(t *testing.T, doc *document.Document) []string {
	t.Helper()
	text, err := doc.LastPage().Text(context.Background(), extractor.DefaultOptions())
	if err != nil {
		t.Fatalf("text: %v", err)
	}
	return text.Strings()
}

func TestSchedule_Apply(t *testing.T) {
	q := builder.DefaultSampleQuote()
	q.Pages = 2
	doc := q.Document()
	first, _ := doc.Pages()[0].ContentBytes(context.Background())

	out, err := NewSchedule(nil).Apply(context.Background(), doc)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if out.Status != Applied || out.Total.Amount.String() != "1800.00" {
		t.Fatalf("outcome = %+v", out)
	}
	var texts []string
	for _, d := range out.Derived {
		texts = append(texts, d.Text)
	}
	want := []string{": 540.00  EUR", "900.00  EUR", " 360.00 EUR"}
	if diff := cmp.Diff(want, texts); diff != "" {
		t.Fatalf("texts (-want +got):\n%s", diff)
	}

	got := lastLines(t, doc)
	for _, s := range []string{": 540.00 EUR", "900.00 EUR", "360.00 EUR"} {
		if !containsText(got, s) {
			t.Fatalf("%q not on the last page: %q", s, got)
		}
	}
	after, _ := doc.Pages()[0].ContentBytes(context.Background())
	if !bytes.Equal(first, after) {
		t.Fatalf("first page modified")
	}
}

// figures may share a baseline with the printed labels, and runs of spaces
// are compared collapsed
func containsText(lines []string, s string) bool {
	return slices.ContainsFunc(lines, func(l string) bool {
		return bytes.Contains([]byte(collapse(l)), []byte(collapse(s)))
	})
}

func collapse(s string) string {
	var b []byte
	for i := 0; i < len(s); i++ {
		if s[i] == ' ' && len(b) > 0 && b[len(b)-1] == ' ' {
			continue
		}
		b = append(b, s[i])
	}
	return string(bytes.TrimSpace(b))
}

func TestSchedule_SkipsWithoutAnchor(t *testing.T) {
	q := builder.DefaultSampleQuote()
	q.OmitAnchor = true
	doc := q.Document()
	before, _ := doc.LastPage().ContentBytes(context.Background())

	out, err := NewSchedule(nil).Apply(context.Background(), doc)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if out.Status != Skipped || out.Reason == "" {
		t.Fatalf("outcome = %+v", out)
	}
	after, _ := doc.LastPage().ContentBytes(context.Background())
	if !bytes.Equal(before, after) {
		t.Fatalf("document changed on a miss")
	}
}

func TestSchedule_SkipsUnparsableTotal(t *testing.T) {
	q := builder.DefaultSampleQuote()
	q.Total = "à définir"
	out, err := NewSchedule(nil).Apply(context.Background(), q.Document())
	if err != nil || out.Status != Skipped {
		t.Fatalf("outcome = %+v, err = %v", out, err)
	}
}

func TestSchedule_FixedLocator(t *testing.T) {
	doc := builder.DefaultSampleQuote().Document()
	loc := FixedLocator{Value: MonetaryValue{Amount: MustAmount("99.99"), Currency: currency.USD}}
	out, err := NewSchedule(loc, WithSplits([]Split{{Label: "all", Percent: 100}}),
		WithPlacements([]Placement{{Split: "all", At: coords.Point{X: 300, Y: 200}, Template: "Due {amount} {currency}", Font: "Courier"}})).
		Apply(context.Background(), doc)
	if err != nil || out.Status != Applied {
		t.Fatalf("outcome = %+v, err = %v", out, err)
	}
	got := lastLines(t, doc)
	if got[len(got)-1] != "Due 99.99 USD" {
		t.Fatalf("last line = %q", got[len(got)-1])
	}
}

type failingSource struct{}

func (failingSource) Lines(context.Context, *document.Page) ([]string, error) {
	return nil, errors.New("unreadable")
}

func TestSchedule_SourceFailureIsAnError(t *testing.T) {
	loc := NewAnchorLocator("")
	loc.Source = failingSource{}
	out, err := NewSchedule(loc).Apply(context.Background(), builder.DefaultSampleQuote().Document())
	if err == nil || IsMiss(err) || out.Status != Skipped {
		t.Fatalf("outcome = %+v, err = %v", out, err)
	}
}
