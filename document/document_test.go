package document

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/wudi/quotekit/contentstream"
	"github.com/wudi/quotekit/coords"
	"github.com/wudi/quotekit/extractor"
	"github.com/wudi/quotekit/fonts"
	"github.com/wudi/quotekit/ir/raw"
	"github.com/wudi/quotekit/parser"
	"github.com/wudi/quotekit/writer"
)

var a4 = coords.PageBox{Width: 595, Height: 842}

func textOps(font string, size, x, y float64, s []byte) []contentstream.Operation {
	return []contentstream.Operation{
		contentstream.Op("BT"),
		contentstream.Op("Tf", raw.NameLiteral(font), raw.Number(size)),
		contentstream.Op("Td", contentstream.Nums(x, y)...),
		contentstream.Op("Tj", raw.Str(s)),
		contentstream.Op("ET"),
	}
}

func reopen(t *testing.T, d *Document) *Document {
	t.Helper()
	data, err := d.Bytes(context.Background(), writer.Config{CompressStreams: true, Deterministic: true})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	out, err := Open(context.Background(), data, parser.Config{})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	return out
}

func TestDocument_RoundTripText(t *testing.T) {
	d := NewBlank([]coords.PageBox{a4, a4})
	p := d.Pages()[1]
	helv := fonts.Helvetica()
	name := p.UseFont(helv)
	var ops []contentstream.Operation
	ops = append(ops, textOps(name, 10, 72, 700, helv.Encode("1 800,00 €"))...)
	ops = append(ops, textOps(name, 10, 72, 680, helv.Encode("ACOMPTE 30%"))...)
	p.SetContent(ops)

	got := reopen(t, d)
	if got.PageCount() != 2 {
		t.Fatalf("pages = %d", got.PageCount())
	}
	text, err := got.LastPage().Text(context.Background(), extractor.DefaultOptions())
	if err != nil {
		t.Fatalf("text: %v", err)
	}
	want := []string{"1 800,00 €", "ACOMPTE 30%"}
	if diff := cmp.Diff(want, text.Strings()); diff != "" {
		t.Fatalf("lines mismatch (-want +got):\n%s", diff)
	}
}

func TestDocument_InheritedAttributes(t *testing.T) {
	rd := raw.NewDocument("1.4")
	res := raw.Dict()
	res.Set("Font", raw.Dict())
	pages := raw.Dict()
	pages.Set("Type", raw.NameLiteral("Pages"))
	pages.Set("MediaBox", raw.Numbers(10, 20, 622, 812))
	pages.Set("Rotate", raw.NumberInt(-90))
	pages.Set("Resources", rd.Add(res))
	pagesRef := rd.Add(pages)
	page := raw.Dict()
	page.Set("Type", raw.NameLiteral("Page"))
	page.Set("Parent", pagesRef)
	pages.Set("Kids", raw.NewArray(rd.Add(page), pagesRef)) // the cycle is ignored
	pages.Set("Count", raw.NumberInt(1))
	catalog := raw.Dict()
	catalog.Set("Type", raw.NameLiteral("Catalog"))
	catalog.Set("Pages", pagesRef)
	rd.Trailer.Set("Root", rd.Add(catalog))

	d, err := FromRaw(rd)
	if err != nil {
		t.Fatalf("from raw: %v", err)
	}
	if d.PageCount() != 1 {
		t.Fatalf("pages = %d", d.PageCount())
	}
	p := d.Pages()[0]
	box, err := p.Box()
	if err != nil {
		t.Fatalf("box: %v", err)
	}
	if box != (coords.PageBox{Width: 612, Height: 792, Rotation: 270}) {
		t.Fatalf("box = %+v", box)
	}
	if got := p.ToUser(coords.Rect{X0: 0, Y0: 0, X1: 5, Y1: 5}); got != (coords.Rect{X0: 10, Y0: 20, X1: 15, Y1: 25}) {
		t.Fatalf("to user = %v", got)
	}
	if p.Resources().Len() != 1 {
		t.Fatalf("resources not inherited")
	}

	// registering a font must not touch the shared dictionary
	p.UseFont(fonts.Helvetica())
	if f, _ := rd.ResolveDict(res.KV["Font"]); f.Len() != 0 {
		t.Fatalf("shared resources modified")
	}
	if _, err := d.Page(3); !errors.Is(err, ErrPageRange) {
		t.Fatalf("expected range error, got %v", err)
	}
}

func TestDocument_AppendContentIsolatesState(t *testing.T) {
	d := NewBlank([]coords.PageBox{a4})
	p := d.Pages()[0]
	p.SetContent([]contentstream.Operation{
		contentstream.Op("q"),
		contentstream.Op("cm", contentstream.Nums(2, 0, 0, 2, 0, 0)...),
	})
	if err := p.AppendContent(context.Background(), []contentstream.Operation{
		contentstream.Op("re", contentstream.Nums(0, 0, 10, 10)...),
		contentstream.Op("f"),
	}); err != nil {
		t.Fatalf("append: %v", err)
	}
	data, err := p.ContentBytes(context.Background())
	if err != nil {
		t.Fatalf("content: %v", err)
	}
	want := "q\n\nq\n2 0 0 2 0 0 cm\n\nQ\nQ\n\nq\n0 0 10 10 re\nf\nQ\n"
	if string(data) != want {
		t.Fatalf("content = %q, want %q", data, want)
	}
	ops, _ := p.Content(context.Background())
	items := contentstream.NewTracer(p.TraceResources(context.Background())).Trace(ops, coords.Identity())
	if len(items) != 1 || items[0].Rect != (coords.Rect{X0: 0, Y0: 0, X1: 10, Y1: 10}) {
		t.Fatalf("appended drawing not in default state: %+v", items)
	}
}

func TestDocument_MergeSurface(t *testing.T) {
	dst := NewBlank([]coords.PageBox{a4})
	dst.Pages()[0].SetContent(textOps("F0", 10, 50, 50, []byte("under")))

	surface := NewBlank([]coords.PageBox{a4})
	sp := surface.Pages()[0]
	helv := fonts.Helvetica()
	sp.SetContent(textOps(sp.UseFont(helv), 12, 100, 100, helv.Encode("over")))

	if err := NewMerger(dst, surface).Merge(context.Background(), dst.Pages()[0], sp); err != nil {
		t.Fatalf("merge: %v", err)
	}
	got := reopen(t, dst)
	p := got.Pages()[0]
	data, _ := p.ContentBytes(context.Background())
	if !strings.Contains(string(data), "(under) Tj") || !strings.HasSuffix(string(data), "/QX1 Do\nQ\n") {
		t.Fatalf("content = %q", data)
	}
	xobjs, ok := got.Raw().ResolveDict(p.Resources().KV["XObject"])
	if !ok {
		t.Fatalf("no xobjects")
	}
	form, ok := got.Raw().ResolveStream(xobjs.KV["QX1"])
	if !ok {
		t.Fatalf("form missing")
	}
	body, err := got.Filters().DecodeStream(context.Background(), got.Raw(), form)
	if err != nil || !bytes.Contains(body, []byte("(over) Tj")) {
		t.Fatalf("form body = %q, %v", body, err)
	}
	formRes, _ := got.Raw().ResolveDict(form.Dict.KV["Resources"])
	fontRes, _ := got.Raw().ResolveDict(formRes.KV["Font"])
	font, _ := got.Raw().ResolveDict(fontRes.KV["QF1"])
	if name, _ := font.Name("BaseFont"); name != "Helvetica" {
		t.Fatalf("form font = %q", name)
	}
}

func TestDocument_Info(t *testing.T) {
	d := NewBlank([]coords.PageBox{a4})
	d.SetInfo(map[string]string{"Title": "Devis n°42", "Producer": "quotekit"})
	d.Touch(time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC))
	info := reopen(t, d).Info()
	if info["Title"] != "Devis n°42" || info["Producer"] != "quotekit" {
		t.Fatalf("info = %v", info)
	}
	if info["ModDate"] != "D:20260301093000Z" || info["CreationDate"] != info["ModDate"] {
		t.Fatalf("dates = %q %q", info["ModDate"], info["CreationDate"])
	}
}

func TestDocument_EmbeddedTrueType(t *testing.T) {
	tt, err := fonts.LoadTrueType("Go", goregular.TTF)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	d := NewBlank([]coords.PageBox{a4})
	p := d.Pages()[0]
	p.SetContent(textOps(p.UseFont(tt), 14, 72, 400, tt.Encode("Client")))

	got := reopen(t, d)
	text, err := got.Pages()[0].Text(context.Background(), extractor.DefaultOptions())
	if err != nil {
		t.Fatalf("text: %v", err)
	}
	if text.Content() != "Client" {
		t.Fatalf("text = %q", text.Content())
	}
}

func TestFormatDateOffset(t *testing.T) {
	loc := time.FixedZone("CEST", 2*3600)
	got := FormatDate(time.Date(2026, 10, 18, 8, 5, 0, 0, loc))
	if got != "D:20261018080500+02'00'" {
		t.Fatalf("date = %q", got)
	}
}
