package contentstream

import (
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/wudi/quotekit/coords"
	"github.com/wudi/quotekit/ir/raw"
)

func TestParseAndSerialize(t *testing.T) {
	src := "q 1 0 0 1 50 50 cm\nBT /F1 12 Tf [(Hel) -20 (lo)] TJ ET\nQ"
	ops, err := Parse([]byte(src))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	var names []string
	for _, op := range ops {
		names = append(names, op.Operator)
	}
	want := []string{"q", "cm", "BT", "Tf", "TJ", "ET", "Q"}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Fatalf("operators mismatch (-want +got):\n%s", diff)
	}

	out := string(Serialize(ops))
	if !strings.Contains(out, "[(Hel) -20 (lo)] TJ") {
		t.Fatalf("TJ not serialized faithfully:\n%s", out)
	}
	again, err := Parse([]byte(out))
	if err != nil {
		t.Fatalf("reparse: %v", err)
	}
	if len(again) != len(ops) {
		t.Fatalf("round trip changed op count: %d vs %d", len(again), len(ops))
	}
}

func TestParseInlineImage(t *testing.T) {
	src := "q 10 0 0 10 0 0 cm BI /W 2 /H 1 /BPC 8 /CS /G ID \x00\xff\nEI Q"
	ops, err := Parse([]byte(src))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(ops) != 4 || ops[2].Inline == nil {
		t.Fatalf("inline image not parsed: %+v", ops)
	}
	if got := ops[2].Inline.Data; string(got) != "\x00\xff" {
		t.Fatalf("unexpected image data %q", got)
	}
	reparsed, err := Parse(Serialize(ops))
	if err != nil || len(reparsed) != 4 || string(reparsed[2].Inline.Data) != "\x00\xff" {
		t.Fatalf("inline image did not survive serialization: %v %+v", err, reparsed)
	}
}

func TestTracerPathsAndImages(t *testing.T) {
	ops, _ := Parse([]byte("q 2 0 0 2 0 0 cm 10 10 20 5 re f Q 0 0 m 100 0 l S q 50 0 0 40 300 400 cm /Im1 Do Q 0 0 10 10 re W n"))
	items := NewTracer(nil).Trace(ops, coords.Identity())
	if len(items) != 4 {
		t.Fatalf("expected 4 items, got %d: %+v", len(items), items)
	}
	if items[0].Kind != KindPath || items[0].Rect != (coords.Rect{X0: 20, Y0: 20, X1: 60, Y1: 30}) {
		t.Fatalf("unexpected filled rect %+v", items[0])
	}
	if items[1].Kind != KindPath || items[1].Rect.Y0 != -0.5 || items[1].Rect.X1 != 100.5 {
		t.Fatalf("stroke should be padded by half the line width: %+v", items[1].Rect)
	}
	if items[2].Kind != KindImage || items[2].Rect != (coords.Rect{X0: 300, Y0: 400, X1: 350, Y1: 440}) {
		t.Fatalf("unexpected image %+v", items[2])
	}
	if items[3].Kind != KindClip {
		t.Fatalf("W n should be a clip, got %v", items[3].Kind)
	}
	if items[0].Start != 2 || items[0].Op != 3 {
		t.Fatalf("path op range wrong: %d..%d", items[0].Start, items[0].Op)
	}
}

func TestTracerGlyphBoxes(t *testing.T) {
	ops, _ := Parse([]byte("BT /F1 10 Tf 100 700 Td (AB) Tj [(C) -1000 (D)] TJ ET"))
	items := NewTracer(nil).Trace(ops, coords.Identity())
	if len(items) != 2 {
		t.Fatalf("expected 2 text items, got %d", len(items))
	}
	first := items[0]
	if len(first.Glyphs) != 2 {
		t.Fatalf("expected 2 glyphs, got %d", len(first.Glyphs))
	}
	if got := first.Rect; !near(got, coords.Rect{X0: 100, Y0: 698, X1: 110, Y1: 708}) {
		t.Fatalf("unexpected Tj bounds %v", got)
	}
	second := items[1]
	// C at 110..115, then a 10pt displacement, D at 125..130
	if got := second.Glyphs[1].Rect; !near(got, coords.Rect{X0: 125, Y0: 698, X1: 130, Y1: 708}) {
		t.Fatalf("unexpected D box %v", got)
	}
	if second.Glyphs[1].Part != 2 {
		t.Fatalf("D should belong to TJ element 2, got %d", second.Glyphs[1].Part)
	}
}

func TestTracerWordSpacingAndScale(t *testing.T) {
	ops, _ := Parse([]byte("BT /F1 10 Tf 2 Tw 50 Tz 0 0 Td (a b) Tj ET"))
	items := NewTracer(nil).Trace(ops, coords.Identity())
	g := items[0].Glyphs
	// each advance is (5 + Tw for spaces) * 0.5
	if !g[1].Space || math.Abs(g[2].Origin.X-(2.5+3.5)) > 1e-9 {
		t.Fatalf("unexpected origin %v", g[2].Origin)
	}
}

func TestBalance(t *testing.T) {
	ops := []Operation{Op("q"), Op("q"), Op("Q"), Op("re", Nums(0, 0, 1, 1)...)}
	if got := Balance(ops); got != 1 {
		t.Fatalf("balance = %d, want 1", got)
	}
	if _, ok := ops[3].Operands[2].(raw.NumberObj); !ok {
		t.Fatalf("Nums should produce numbers")
	}
}

func near(a, b coords.Rect) bool {
	const eps = 1e-6
	return math.Abs(a.X0-b.X0) < eps && math.Abs(a.Y0-b.Y0) < eps && math.Abs(a.X1-b.X1) < eps && math.Abs(a.Y1-b.Y1) < eps
}
