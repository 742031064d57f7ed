package writer

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/wudi/quotekit/filters"
	"github.com/wudi/quotekit/ir/raw"
	"github.com/wudi/quotekit/parser"
)

func minimalDoc() *raw.Document {
	doc := raw.NewDocument("1.7")
	content := raw.NewStream(raw.Dict(), []byte("BT /F1 12 Tf 72 720 Td (Hello \\(world\\)) Tj ET"))
	contentRef := doc.Add(content)
	pages := raw.Dict()
	pages.Set("Type", raw.NameLiteral("Pages"))
	pagesRef := doc.Add(pages)
	page := raw.Dict()
	page.Set("Type", raw.NameLiteral("Page"))
	page.Set("Parent", pagesRef)
	page.Set("MediaBox", raw.Numbers(0, 0, 595, 842))
	page.Set("Contents", contentRef)
	pageRef := doc.Add(page)
	pages.Set("Kids", raw.NewArray(pageRef))
	pages.Set("Count", raw.NumberInt(1))
	catalog := raw.Dict()
	catalog.Set("Type", raw.NameLiteral("Catalog"))
	catalog.Set("Pages", pagesRef)
	doc.Trailer.Set("Root", doc.Add(catalog))
	return doc
}

func TestWriteRoundTrip(t *testing.T) {
	doc := minimalDoc()
	var out bytes.Buffer
	w := (&WriterBuilder{}).Build()
	if err := w.Write(context.Background(), doc, &out, Config{Deterministic: true}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if !bytes.HasPrefix(out.Bytes(), []byte("%PDF-1.7\n")) {
		t.Fatalf("missing header: %q", out.Bytes()[:16])
	}
	back, err := parser.NewDocumentParser(parser.Config{}).Parse(context.Background(), out.Bytes())
	if err != nil {
		t.Fatalf("parse back: %v", err)
	}
	if len(back.Objects) != len(doc.Objects) {
		t.Fatalf("expected %d objects, got %d", len(doc.Objects), len(back.Objects))
	}
	stream, ok := back.Objects[raw.ObjectRef{Num: 1}].(*raw.StreamObj)
	if !ok {
		t.Fatalf("content stream missing")
	}
	if !strings.Contains(string(stream.Data), `(Hello \(world\)) Tj`) {
		t.Fatalf("content not preserved: %q", stream.Data)
	}
	if _, ok := back.Trailer.Get("ID"); !ok {
		t.Fatalf("trailer ID missing")
	}
}

func TestWriteCompressesStreams(t *testing.T) {
	doc := minimalDoc()
	var out bytes.Buffer
	if err := (&WriterBuilder{}).Build().Write(context.Background(), doc, &out, Config{CompressStreams: true}); err != nil {
		t.Fatalf("write: %v", err)
	}
	back, err := parser.NewDocumentParser(parser.Config{}).Parse(context.Background(), out.Bytes())
	if err != nil {
		t.Fatalf("parse back: %v", err)
	}
	stream := back.Objects[raw.ObjectRef{Num: 1}].(*raw.StreamObj)
	if f, _ := stream.Dict.Name("Filter"); f != "FlateDecode" {
		t.Fatalf("expected FlateDecode filter, got %q", f)
	}
	data, err := filters.NewDefault().DecodeStream(context.Background(), back, stream)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("BT /F1 12 Tf")) {
		t.Fatalf("unexpected decoded content %q", data)
	}
	// the source document keeps its uncompressed stream
	if _, ok := doc.Objects[raw.ObjectRef{Num: 1}].(*raw.StreamObj).Dict.Get("Filter"); ok {
		t.Fatalf("writer mutated the input document")
	}
}

func TestWriteGarbageCollect(t *testing.T) {
	doc := minimalDoc()
	orphan := doc.Add(raw.Str([]byte("unused")))
	var out bytes.Buffer
	if err := (&WriterBuilder{}).Build().Write(context.Background(), doc, &out, Config{GarbageCollect: true}); err != nil {
		t.Fatalf("write: %v", err)
	}
	back, err := parser.NewDocumentParser(parser.Config{}).Parse(context.Background(), out.Bytes())
	if err != nil {
		t.Fatalf("parse back: %v", err)
	}
	if _, ok := back.Objects[orphan.R]; ok {
		t.Fatalf("unreachable object %v was written", orphan.R)
	}
}

type countingInterceptor struct{ before, after int }

func (c *countingInterceptor) BeforeWrite(ctx context.Context, ref raw.ObjectRef, obj raw.Object) error {
	c.before++
	return nil
}

func (c *countingInterceptor) AfterWrite(ctx context.Context, ref raw.ObjectRef, n int64) error {
	c.after++
	return nil
}

func TestWriterInterceptor(t *testing.T) {
	doc := minimalDoc()
	ic := &countingInterceptor{}
	var out bytes.Buffer
	if err := (&WriterBuilder{}).WithInterceptor(ic).Build().Write(context.Background(), doc, &out, Config{}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if ic.before != len(doc.Objects) || ic.after != len(doc.Objects) {
		t.Fatalf("interceptor saw %d/%d objects, want %d", ic.before, ic.after, len(doc.Objects))
	}
}

func TestSerializePrimitives(t *testing.T) {
	d := raw.Dict()
	d.Set("A B", raw.NameLiteral("x/y"))
	d.Set("N", raw.NumberFloat(0.1+0.2))
	d.Set("S", raw.Str([]byte("caf\xe9")))
	got := string(SerializeObject(d))
	want := `<</A#20B /x#2Fy/N 0.3/S (caf\351)>>`
	if got != want {
		t.Fatalf("got %s want %s", got, want)
	}
}

func TestFormatNumber(t *testing.T) {
	cases := map[float64]string{
		1:          "1",
		-0.0000001: "0",
		12.5:       "12.5",
		1e7:        "10000000",
		0.3333333:  "0.333333",
	}
	for in, want := range cases {
		if got := FormatNumber(in); got != want {
			t.Fatalf("FormatNumber(%v) = %q, want %q", in, got, want)
		}
	}
}
