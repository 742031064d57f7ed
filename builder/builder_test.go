package builder

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/wudi/quotekit/contentstream"
	"github.com/wudi/quotekit/coords"
	"github.com/wudi/quotekit/document"
	"github.com/wudi/quotekit/extractor"
	"github.com/wudi/quotekit/fonts"
	"github.com/wudi/quotekit/ir/raw"
	"github.com/wudi/quotekit/parser"
	"github.com/wudi/quotekit/writer"
)

func operators(ops []contentstream.Operation) []string {
	out := make([]string, len(ops))
	for i, op := range ops {
		out[i] = op.Operator
	}
	return out
}

func num(t *testing.T, o raw.Object) float64 {
	t.Helper()
	n, ok := o.(raw.NumberObj)
	if !ok {
		t.Fatalf("operand %v is not a number", o)
	}
	return n.Float()
}

func blankPage() *document.Page {
	return document.NewBlank([]coords.PageBox{{Width: 595, Height: 842}}).Pages()[0]
}

func TestCanvas_DrawText(t *testing.T) {
	c := NewCanvas(blankPage())
	c.DrawText("Hello", 10, 20, TextOptions{FontSize: 16, Color: Color{R: 0.1, G: 0.2, B: 0.3}})

	want := []string{"q", "BT", "Tf", "rg", "Tm", "Tj", "ET", "Q"}
	if diff := cmp.Diff(want, operators(c.Ops())); diff != "" {
		t.Fatalf("operators mismatch (-want +got):\n%s", diff)
	}
	ops := c.Ops()
	if name, _ := ops[2].Operands[0].(raw.NameObj); name.Val != "QF1" {
		t.Fatalf("font resource = %v", ops[2].Operands[0])
	}
	if tm := ops[4].Operands; num(t, tm[4]) != 10 || num(t, tm[5]) != 20 {
		t.Fatalf("Tm coordinates not set: %+v", tm)
	}
	if s, _ := ops[5].Operands[0].(raw.StringObj); string(s.Bytes) != "Hello" {
		t.Fatalf("Tj text mismatch: %q", s.Bytes)
	}
	fontsDict, ok := c.Page().Resources().KV["Font"].(*raw.DictObj)
	if !ok || fontsDict.Len() != 1 {
		t.Fatalf("font not registered on page resources")
	}
}

func TestCanvas_DrawTextRotatedCentered(t *testing.T) {
	c := NewCanvas(blankPage())
	helv := fonts.Helvetica()
	c.DrawText("DEVIS", 297.5, 421, TextOptions{Font: helv, FontSize: 40, Rotation: 45, Align: AlignCenter, Opacity: 0.3})

	want := []string{"q", "gs", "cm", "BT", "Tf", "rg", "Tm", "Tj", "ET", "Q"}
	if diff := cmp.Diff(want, operators(c.Ops())); diff != "" {
		t.Fatalf("operators mismatch (-want +got):\n%s", diff)
	}
	cm := c.Ops()[2].Operands
	s := math.Sqrt2 / 2
	for i, v := range []float64{s, s, -s, s, 297.5, 421} {
		if math.Abs(num(t, cm[i])-v) > 1e-9 {
			t.Fatalf("cm[%d] = %v, want %v", i, num(t, cm[i]), v)
		}
	}
	tm := c.Ops()[6].Operands
	if got, want := num(t, tm[4]), -fonts.StringWidth(helv, "DEVIS", 40)/2; math.Abs(got-want) > 1e-9 {
		t.Fatalf("centered offset = %v, want %v", got, want)
	}
	gsDict, ok := c.Page().Resources().KV["ExtGState"].(*raw.DictObj)
	if !ok {
		t.Fatalf("graphics state not registered")
	}
	if _, ok := gsDict.Get("QG1"); !ok {
		t.Fatalf("QG1 missing: %v", gsDict.Keys())
	}
}

func TestCanvas_DrawShapes(t *testing.T) {
	c := NewCanvas(blankPage())
	c.DrawRectangle(coords.Rect{X0: 50, Y0: 60, X1: 10, Y1: 20}, RectOptions{})
	c.DrawRectangle(coords.Rect{X0: 0, Y0: 0, X1: 5, Y1: 5}, RectOptions{Fill: true, FillColor: White})
	c.DrawLine(0, 0, 100, 0, LineOptions{LineWidth: 2, DashPattern: []float64{3, 1}})

	want := []string{
		"q", "RG", "re", "S", "Q",
		"q", "rg", "re", "f", "Q",
		"q", "RG", "w", "d", "m", "l", "S", "Q",
	}
	if diff := cmp.Diff(want, operators(c.Ops())); diff != "" {
		t.Fatalf("operators mismatch (-want +got):\n%s", diff)
	}
	re := c.Ops()[2].Operands
	if num(t, re[0]) != 10 || num(t, re[1]) != 20 || num(t, re[2]) != 40 || num(t, re[3]) != 40 {
		t.Fatalf("rectangle not normalized: %v", re)
	}
}

func TestCanvas_DrawImage(t *testing.T) {
	page := blankPage()
	img := FromImage(image.NewGray(image.Rect(0, 0, 4, 2)))
	ref := img.Add(page.Document())
	c := NewCanvas(page).DrawImage(ref, coords.Rect{X0: 30, Y0: 700, X1: 130, Y1: 780})
	if err := c.Append(context.Background()); err != nil {
		t.Fatalf("append: %v", err)
	}
	ops, err := page.Content(context.Background())
	if err != nil {
		t.Fatalf("content: %v", err)
	}
	items := contentstream.NewTracer(page.TraceResources(context.Background())).Trace(ops, coords.Identity())
	if len(items) != 1 || items[0].Kind != contentstream.KindImage || items[0].Name != "QI1" {
		t.Fatalf("items = %+v", items)
	}
	if items[0].Rect != (coords.Rect{X0: 30, Y0: 700, X1: 130, Y1: 780}) {
		t.Fatalf("image rect = %v", items[0].Rect)
	}
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png: %v", err)
	}
	return buf.Bytes()
}

func TestLoadImage(t *testing.T) {
	translucent := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	translucent.Set(0, 0, color.NRGBA{R: 255, A: 128})

	logoJPEG, err := EncodeJPEG(SampleLogo(40, 20), 90)
	if err != nil {
		t.Fatalf("jpeg: %v", err)
	}

	tests := []struct {
		name       string
		data       []byte
		target     coords.Rect
		wantFilter string
		wantMask   bool
		wantW      int
		wantH      int
	}{
		{"jpeg passthrough", logoJPEG, coords.Rect{}, "DCTDecode", false, 40, 20},
		{"png alpha", encodePNG(t, translucent), coords.Rect{}, "FlateDecode", true, 2, 2},
		{"opaque png", encodePNG(t, SampleLogo(8, 4)), coords.Rect{X1: 100, Y1: 100}, "FlateDecode", false, 8, 4},
		{"downscaled", encodePNG(t, SampleLogo(2000, 1000)), coords.Rect{X1: 72, Y1: 36}, "FlateDecode", false, 300, 150},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := LoadImage(tt.data, tt.target)
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			if img.Filter() != tt.wantFilter || img.HasMask() != tt.wantMask {
				t.Fatalf("filter %q mask %v", img.Filter(), img.HasMask())
			}
			if img.Width != tt.wantW || img.Height != tt.wantH {
				t.Fatalf("size %dx%d, want %dx%d", img.Width, img.Height, tt.wantW, tt.wantH)
			}
		})
	}

	if _, err := LoadImage([]byte("not an image"), coords.Rect{}); !errors.Is(err, ErrUnsupportedImage) {
		t.Fatalf("expected ErrUnsupportedImage, got %v", err)
	}
}

func TestSampleLogo(t *testing.T) {
	img := SampleLogo(200, 100)
	if got := color.RGBAModel.Convert(img.At(2, 2)).(color.RGBA); got != (color.RGBA{R: 90, G: 177, B: 235, A: 255}) {
		t.Fatalf("background = %v", got)
	}
	if got := color.RGBAModel.Convert(img.At(100, 35)).(color.RGBA); got != (color.RGBA{R: 255, G: 255, B: 255, A: 255}) {
		t.Fatalf("disc = %v", got)
	}
}

func TestSampleQuote_Text(t *testing.T) {
	q := DefaultSampleQuote()
	q.Pages = 2
	data, err := q.Document().Bytes(context.Background(), writer.Config{CompressStreams: true})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	doc, err := document.Open(context.Background(), data, parser.Config{})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if doc.PageCount() != 2 {
		t.Fatalf("pages = %d", doc.PageCount())
	}
	if doc.Info()["Title"] != "Devis Q-2026-0042" {
		t.Fatalf("info = %v", doc.Info())
	}
	text, err := doc.LastPage().Text(context.Background(), extractor.DefaultOptions())
	if err != nil {
		t.Fatalf("text: %v", err)
	}
	lines := text.Strings()
	anchor := -1
	for i, l := range lines {
		if l == "ACOMPTE 30%" {
			anchor = i
		}
	}
	if anchor < 1 || lines[anchor-1] != "1 800,00 EUR" {
		t.Fatalf("anchor not preceded by total: %q", lines)
	}

	first, err := doc.Pages()[0].Text(context.Background(), extractor.DefaultOptions())
	if err != nil {
		t.Fatalf("text: %v", err)
	}
	for _, l := range first.Strings() {
		if l == "ACOMPTE 30%" {
			t.Fatalf("anchor drawn on the first page")
		}
	}
	if first.Strings()[0] != "ADF" {
		t.Fatalf("first line = %q", first.Strings()[0])
	}
}
