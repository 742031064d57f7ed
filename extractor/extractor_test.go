package extractor

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/wudi/quotekit/contentstream"
	"github.com/wudi/quotekit/coords"
	"github.com/wudi/quotekit/fonts"
)

type fontResources map[string]fonts.Font

func (r fontResources) Font(name string) contentstream.Font {
	f, ok := r[name]
	if !ok {
		return nil
	}
	return f
}

func (r fontResources) XObject(string) (contentstream.XObjectInfo, bool) {
	return contentstream.XObjectInfo{}, false
}

const quoteTail = `BT /F1 10 Tf 100 700 Td (Total TTC) Tj 300 0 Td (1 800,00 EUR) Tj ET
BT /F1 10 Tf 100 680 Td (ACOMPTE 30%) Tj ET
BT /F1 10 Tf 100 660 Td [(Solde)-500(final)] TJ ET
BT /F2 10 Tf 100 640 Td (hidden) Tj ET`

func parseOps(t *testing.T, src string) []contentstream.Operation {
	t.Helper()
	ops, err := contentstream.Parse([]byte(src))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return ops
}

func TestExtractor_LinesSplitColumns(t *testing.T) {
	res := fontResources{"F1": fonts.Helvetica()}
	ext := New(DefaultOptions())
	lines := ext.Lines(parseOps(t, quoteTail), res, coords.Identity())

	var got []string
	for _, l := range lines {
		got = append(got, l.Text)
	}
	want := []string{"Total TTC", "1 800,00 EUR", "ACOMPTE 30%", "Solde final"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("lines mismatch (-want +got):\n%s", diff)
	}
	if lines[2].Baseline != 680 {
		t.Fatalf("baseline = %v", lines[2].Baseline)
	}
	if len(lines[3].Runs) != 1 || lines[3].Runs[0].Font != "F1" {
		t.Fatalf("runs = %+v", lines[3].Runs)
	}
}

func TestExtractor_LinesSingleColumn(t *testing.T) {
	res := fontResources{"F1": fonts.Helvetica()}
	lines := New(Options{}).Lines(parseOps(t, quoteTail), res, coords.Identity())
	if len(lines) != 3 || lines[0].Text != "Total TTC 1 800,00 EUR" {
		t.Fatalf("lines = %+v", lines)
	}
}

func TestExtractor_BaselineFollowsCTM(t *testing.T) {
	res := fontResources{"F1": fonts.Helvetica()}
	src := `q 1 0 0 1 0 -100 cm BT /F1 12 Tf 50 500 Td (Bonjour) Tj ET Q
BT /F1 12 Tf 120 400.5 Td (monde) Tj ET`
	lines := New(Options{}).Lines(parseOps(t, src), res, coords.Identity())
	if len(lines) != 1 || lines[0].Text != "Bonjour monde" {
		t.Fatalf("lines = %+v", lines)
	}
}

func TestExtractor_Runs(t *testing.T) {
	res := fontResources{"F1": fonts.Helvetica()}
	runs := New(DefaultOptions()).Runs(parseOps(t, quoteTail), res, coords.Identity())
	if len(runs) != 4 {
		t.Fatalf("runs = %+v", runs)
	}
	if runs[1].Text != "1 800,00 EUR" || runs[1].Origin.X != 400 || runs[1].Size != 10 {
		t.Fatalf("run = %+v", runs[1])
	}
}

func TestPageText_Content(t *testing.T) {
	p := PageText{Lines: []Line{{Text: "a"}, {Text: "b"}}}
	if p.Content() != "a\nb" {
		t.Fatalf("content = %q", p.Content())
	}
}
