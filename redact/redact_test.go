package redact

import (
	"bytes"
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/wudi/quotekit/builder"
	"github.com/wudi/quotekit/contentstream"
	"github.com/wudi/quotekit/contentstream/editor"
	"github.com/wudi/quotekit/coords"
	"github.com/wudi/quotekit/document"
	"github.com/wudi/quotekit/extractor"
	"github.com/wudi/quotekit/observability"
	"github.com/wudi/quotekit/parser"
	"github.com/wudi/quotekit/writer"
)

var (
	logoZone   = coords.Zone{Rect: coords.Rect{X0: 400, Y0: 722, X1: 570, Y1: 822}, Label: "logo"}
	bannerZone = coords.Zone{Rect: coords.Rect{X0: 20, Y0: 42, X1: 570, Y1: 82}, Label: "banner"}
	nameZone   = coords.Zone{Rect: coords.Rect{X0: 50, Y0: 752, X1: 200, Y1: 792}, Label: "name"}
)

func sample(pages int) *document.Document {
	q := builder.DefaultSampleQuote()
	q.Pages = pages
	return q.Document()
}

func lines(t *testing.T, p *document.Page) []string {
	t.Helper()
	text, err := p.Text(context.Background(), extractor.DefaultOptions())
	if err != nil {
		t.Fatalf("text: %v", err)
	}
	return text.Strings()
}

func paths(t *testing.T, p *document.Page) []coords.Rect {
	t.Helper()
	ops, err := p.Content(context.Background())
	if err != nil {
		t.Fatalf("content: %v", err)
	}
	var out []coords.Rect
	for _, it := range contentstream.NewTracer(p.TraceResources(context.Background())).Trace(ops, coords.Identity()) {
		if it.Kind == contentstream.KindPath {
			out = append(out, it.Rect)
		}
	}
	return out
}

func TestDestructive_RemovesZoneContent(t *testing.T) {
	doc := sample(1)
	eng := NewEngine(&Destructive{Fill: builder.White}, observability.NopLogger{})
	res, err := eng.Redact(context.Background(), doc, ZoneSet{FirstPage: []coords.Zone{logoZone}, AllPages: []coords.Zone{bannerZone}})
	if err != nil {
		t.Fatalf("redact: %v", err)
	}
	if res.Pages != 1 || res.Marks != 2 || res.Strategy != NameDestructive {
		t.Fatalf("result = %+v", res)
	}
	if res.Removed.Glyphs == 0 || res.Removed.Paths != 2 {
		t.Fatalf("removed = %+v", res.Removed)
	}

	data, err := doc.Bytes(context.Background(), writer.Config{CompressStreams: true})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	out, err := document.Open(context.Background(), data, parser.Config{})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	got := lines(t, out.Pages()[0])
	for _, gone := range []string{"ADF", "NOUVEAU ! VOLETS BATTANTS ADF"} {
		if slices.Contains(got, gone) {
			t.Fatalf("%q survived redaction: %q", gone, got)
		}
	}
	for _, kept := range []string{"Total TTC", "1 800,00 EUR", "ACOMPTE 30%"} {
		if !slices.Contains(got, kept) {
			t.Fatalf("%q lost: %q", kept, got)
		}
	}
}

func TestDestructive_Idempotent(t *testing.T) {
	doc := sample(1)
	eng := NewEngine(&Destructive{Fill: builder.White}, nil)
	zones := ZoneSet{FirstPage: []coords.Zone{logoZone}, AllPages: []coords.Zone{bannerZone}}
	if _, err := eng.Redact(context.Background(), doc, zones); err != nil {
		t.Fatalf("first pass: %v", err)
	}
	page := doc.Pages()[0]
	firstLines, firstPaths := lines(t, page), paths(t, page)

	if _, err := eng.Redact(context.Background(), doc, zones); err != nil {
		t.Fatalf("second pass: %v", err)
	}
	if diff := cmp.Diff(firstLines, lines(t, page)); diff != "" {
		t.Fatalf("text changed (-first +second):\n%s", diff)
	}
	if diff := cmp.Diff(firstPaths, paths(t, page)); diff != "" {
		t.Fatalf("paths changed (-first +second):\n%s", diff)
	}
	var fills int
	for _, r := range paths(t, page) {
		if r == logoZone.Rect || r == bannerZone.Rect {
			fills++
		}
	}
	if fills != 2 {
		t.Fatalf("zone fills = %d, want 2", fills)
	}
}

func TestEngine_ZoneScopes(t *testing.T) {
	doc := sample(2)
	zones := ZoneSet{
		FirstPage: []coords.Zone{{Rect: coords.Rect{X0: 20, Y0: 770, X1: 300, Y1: 800}, Label: "top left"}},
		Optional:  []coords.Zone{nameZone},
	}
	res, err := NewEngine(&Destructive{Fill: builder.White}, nil).Redact(context.Background(), doc, zones)
	if err != nil {
		t.Fatalf("redact: %v", err)
	}
	if res.Pages != 1 || res.Marks != 1 {
		t.Fatalf("result = %+v", res)
	}
	if !slices.Contains(lines(t, doc.Pages()[1]), "Suite du devis Q-2026-0042") {
		t.Fatalf("first-page zone applied to page 2")
	}
	if !slices.Contains(lines(t, doc.Pages()[0]), "Viscogliosi Menuiserie") {
		t.Fatalf("unrelated text removed")
	}

	zones = ZoneSet{Optional: []coords.Zone{{Rect: coords.Rect{X0: 50, Y0: 672, X1: 300, Y1: 712}, Label: "small"}}, IncludeOptional: true}
	if _, err := NewEngine(&Destructive{Fill: builder.White}, nil).Redact(context.Background(), doc, zones); err != nil {
		t.Fatalf("redact optional: %v", err)
	}
	if slices.Contains(lines(t, doc.Pages()[0]), "Viscogliosi Menuiserie") {
		t.Fatalf("optional zone ignored")
	}
}

func TestEngine_RejectsDegenerateZone(t *testing.T) {
	doc := sample(1)
	before, _ := doc.Pages()[0].ContentBytes(context.Background())
	bad := coords.Zone{Rect: coords.Rect{X0: 10, Y0: 10, X1: 10, Y1: 50}, Label: "flat"}
	_, err := NewEngine(nil, nil).Redact(context.Background(), doc, ZoneSet{FirstPage: []coords.Zone{logoZone}, AllPages: []coords.Zone{bad}})
	var gerr *coords.GeometryError
	if !errors.As(err, &gerr) || gerr.Zone.Label != "flat" || !errors.Is(err, coords.ErrDegenerate) {
		t.Fatalf("expected geometry error, got %v", err)
	}
	after, _ := doc.Pages()[0].ContentBytes(context.Background())
	if !bytes.Equal(before, after) {
		t.Fatalf("page modified by a rejected zone set")
	}
}

func TestEngine_ClampsZones(t *testing.T) {
	doc := sample(1)
	off := coords.Zone{Rect: coords.Rect{X0: 500, Y0: 800, X1: 700, Y1: 900}, Label: "corner"}
	res, err := NewEngine(&Destructive{Fill: builder.White}, nil).Redact(context.Background(), doc, ZoneSet{AllPages: []coords.Zone{off}})
	if err != nil {
		t.Fatalf("redact: %v", err)
	}
	if diff := cmp.Diff([]string{"page 1: corner"}, res.Clamped); diff != "" {
		t.Fatalf("clamped mismatch (-want +got):\n%s", diff)
	}
	want := coords.Rect{X0: 395, Y0: 742, X1: 595, Y1: 842}
	if !slices.Contains(paths(t, doc.Pages()[0]), want) {
		t.Fatalf("clamped fill %v not drawn", want)
	}
}

type failingStrategy struct {
	Destructive
	page int
}

func (f *failingStrategy) Apply(ctx context.Context, page *document.Page, marks []Mark) error {
	if page.Number() == f.page {
		return errors.New("boom")
	}
	return f.Destructive.Apply(ctx, page, marks)
}

func TestEngine_StopsAtFailingPage(t *testing.T) {
	doc := sample(3)
	third, _ := doc.Pages()[2].ContentBytes(context.Background())
	res, err := NewEngine(&failingStrategy{Destructive: Destructive{Fill: builder.White}, page: 2}, nil).
		Redact(context.Background(), doc, ZoneSet{AllPages: []coords.Zone{bannerZone}})
	if err == nil || res.Pages != 1 {
		t.Fatalf("err = %v, pages = %d", err, res.Pages)
	}
	if slices.Contains(lines(t, doc.Pages()[0]), "NOUVEAU ! VOLETS BATTANTS ADF") {
		t.Fatalf("page 1 not redacted")
	}
	after, _ := doc.Pages()[2].ContentBytes(context.Background())
	if !bytes.Equal(third, after) {
		t.Fatalf("page 3 touched after the failure")
	}
}

type countingStrategy struct {
	Destructive
	calls int
}

func (c *countingStrategy) Apply(ctx context.Context, page *document.Page, marks []Mark) error {
	c.calls++
	return c.Destructive.Apply(ctx, page, marks)
}

func TestEngine_EmbeddedDestructiveUsesApply(t *testing.T) {
	doc := sample(2)
	s := &countingStrategy{Destructive: Destructive{Fill: builder.White}}
	res, err := NewEngine(s, nil).Redact(context.Background(), doc, ZoneSet{AllPages: []coords.Zone{bannerZone}})
	if err != nil {
		t.Fatalf("redact: %v", err)
	}
	if s.calls != 2 || res.Pages != 2 {
		t.Fatalf("calls = %d, pages = %d", s.calls, res.Pages)
	}
	if diff := cmp.Diff(editor.Stats{}, res.Removed); diff != "" {
		t.Fatalf("stats reported for a custom strategy (-want +got):\n%s", diff)
	}
	if slices.Contains(lines(t, doc.Pages()[1]), "NOUVEAU ! VOLETS BATTANTS ADF") {
		t.Fatalf("page 2 not redacted")
	}
}

func TestOverlayMask_KeepsContentUnderneath(t *testing.T) {
	doc := sample(1)
	s, err := New("overlay", builder.White)
	if err != nil {
		t.Fatalf("strategy: %v", err)
	}
	if _, err := NewEngine(s, nil).Redact(context.Background(), doc, ZoneSet{FirstPage: []coords.Zone{logoZone}}); err != nil {
		t.Fatalf("redact: %v", err)
	}
	page := doc.Pages()[0]
	if !slices.Contains(lines(t, page), "ADF") {
		t.Fatalf("mask removed content")
	}
	ops, _ := page.Content(context.Background())
	items := contentstream.NewTracer(page.TraceResources(context.Background())).Trace(ops, coords.Identity())
	last := items[len(items)-1]
	if last.Kind != contentstream.KindForm || last.Rect != page.MediaBox() {
		t.Fatalf("surface not merged on top: %+v", last)
	}
}

func TestPreview_LabelsZones(t *testing.T) {
	doc := sample(1)
	s, _ := New("preview", builder.White)
	if _, err := NewEngine(s, nil).Redact(context.Background(), doc, ZoneSet{FirstPage: []coords.Zone{logoZone}, AllPages: []coords.Zone{bannerZone}}); err != nil {
		t.Fatalf("redact: %v", err)
	}
	got := lines(t, doc.Pages()[0])
	for _, want := range []string{"ADF", "Zone 1: logo", "Zone 2: banner"} {
		if !slices.Contains(got, want) {
			t.Fatalf("missing %q in %q", want, got)
		}
	}
}

func TestNewStrategy_Unknown(t *testing.T) {
	if _, err := New("shred", builder.White); err == nil {
		t.Fatalf("expected error for unknown strategy")
	}
}
