// Package document is the page-level view of a PDF used by the transform
// stages: a page tree with inherited attributes, content streams as
// operations, resource registration and serialization.
package document

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/wudi/quotekit/coords"
	"github.com/wudi/quotekit/filters"
	"github.com/wudi/quotekit/fonts"
	"github.com/wudi/quotekit/ir/raw"
	"github.com/wudi/quotekit/parser"
	"github.com/wudi/quotekit/writer"
)

var (
	// ErrNoPages is returned for documents whose page tree yields no page.
	ErrNoPages = errors.New("document has no pages")
	// ErrPageRange is returned for a page index outside the document.
	ErrPageRange = errors.New("page index out of range")
)

// inherited page attributes (PDF 32000-1, table 30)
var inheritable = []string{"Resources", "MediaBox", "CropBox", "Rotate"}

// Document wraps a raw object graph. It is not safe for concurrent use;
// each pipeline run opens its own.
type Document struct {
	raw      *raw.Document
	pages    []*Page
	pipeline *filters.Pipeline
	fonts    *fonts.Loader

	// shared resources keyed by base font name or opacity
	shared  map[string]raw.RefObj
	ttFonts []*embeddedFont
}

type embeddedFont struct {
	font *fonts.TrueType
	ref  raw.ObjectRef
}

// Open parses data and walks the page tree.
func Open(ctx context.Context, data []byte, cfg parser.Config) (*Document, error) {
	rd, err := parser.NewDocumentParser(cfg).Parse(ctx, data)
	if err != nil {
		return nil, err
	}
	return FromRaw(rd)
}

// FromRaw wraps an already parsed document.
func FromRaw(rd *raw.Document) (*Document, error) {
	d := newDocument(rd)
	if err := d.loadPages(); err != nil {
		return nil, err
	}
	return d, nil
}

func newDocument(rd *raw.Document) *Document {
	pipeline := filters.NewDefault()
	return &Document{
		raw:      rd,
		pipeline: pipeline,
		fonts:    fonts.NewLoader(rd, pipeline),
		shared:   make(map[string]raw.RefObj),
	}
}

// New returns an empty document with a catalog and an empty page tree.
func New() *Document {
	rd := raw.NewDocument("1.7")
	pages := raw.Dict()
	pages.Set("Type", raw.NameLiteral("Pages"))
	pages.Set("Kids", raw.NewArray())
	pages.Set("Count", raw.NumberInt(0))
	pagesRef := rd.Add(pages)
	catalog := raw.Dict()
	catalog.Set("Type", raw.NameLiteral("Catalog"))
	catalog.Set("Pages", pagesRef)
	rd.Trailer.Set("Root", rd.Add(catalog))
	return newDocument(rd)
}

// NewBlank returns a document with one empty page per box.
func NewBlank(boxes []coords.PageBox) *Document {
	d := New()
	for _, box := range boxes {
		d.AddPage(box)
	}
	return d
}

func (d *Document) Raw() *raw.Document { return d.raw }

// Filters is the decode pipeline shared by every page of the document.
func (d *Document) Filters() *filters.Pipeline { return d.pipeline }

func (d *Document) Pages() []*Page { return d.pages }

func (d *Document) PageCount() int { return len(d.pages) }

func (d *Document) Page(i int) (*Page, error) {
	if i < 0 || i >= len(d.pages) {
		return nil, fmt.Errorf("%w: %d of %d", ErrPageRange, i, len(d.pages))
	}
	return d.pages[i], nil
}

// LastPage returns the final page of the document.
func (d *Document) LastPage() *Page {
	if len(d.pages) == 0 {
		return nil
	}
	return d.pages[len(d.pages)-1]
}

func (d *Document) loadPages() error {
	catalog, ok := d.raw.Catalog()
	if !ok {
		return errors.New("document catalog not found")
	}
	root, ok := catalog.Get("Pages")
	if !ok {
		return ErrNoPages
	}
	seen := make(map[raw.ObjectRef]bool)
	d.walk(root, map[string]raw.Object{}, seen, 0)
	if len(d.pages) == 0 {
		return ErrNoPages
	}
	return nil
}

// walk visits the page tree depth first. Inherited attributes are copied
// onto each leaf so pages can be edited independently afterwards.
func (d *Document) walk(node raw.Object, inherited map[string]raw.Object, seen map[raw.ObjectRef]bool, depth int) {
	if depth > 64 {
		return
	}
	ref, isRef := node.(raw.RefObj)
	if isRef {
		if seen[ref.R] {
			return
		}
		seen[ref.R] = true
	}
	dict, ok := d.raw.ResolveDict(node)
	if !ok {
		return
	}
	typ, _ := dict.Name("Type")
	kids, hasKids := d.raw.ResolveArray(get(dict, "Kids"))
	if typ == "Page" || (typ != "Pages" && !hasKids) {
		if !isRef {
			// direct page dictionaries cannot be referenced by /Parent
			ref = d.raw.Add(dict)
		}
		for _, key := range inheritable {
			if _, ok := dict.Get(key); !ok {
				if v, ok := inherited[key]; ok {
					dict.Set(key, v)
				}
			}
		}
		d.pages = append(d.pages, &Page{doc: d, ref: ref.R, dict: dict, index: len(d.pages)})
		return
	}
	next := make(map[string]raw.Object, len(inheritable))
	for k, v := range inherited {
		next[k] = v
	}
	for _, key := range inheritable {
		if v, ok := dict.Get(key); ok {
			next[key] = v
		}
	}
	if hasKids {
		for _, kid := range kids.Items {
			d.walk(kid, next, seen, depth+1)
		}
	}
}

// AddPage appends an empty page of the given size to the page tree root.
func (d *Document) AddPage(box coords.PageBox) *Page {
	catalog, _ := d.raw.Catalog()
	rootRef, _ := catalog.Get("Pages")
	root, _ := d.raw.ResolveDict(rootRef)

	page := raw.Dict()
	page.Set("Type", raw.NameLiteral("Page"))
	page.Set("Parent", rootRef)
	page.Set("MediaBox", raw.Numbers(0, 0, box.Width, box.Height))
	page.Set("Resources", raw.Dict())
	if box.Rotation != 0 {
		page.Set("Rotate", raw.NumberInt(int64(box.Rotation)))
	}
	ref := d.raw.Add(page)

	kids, ok := d.raw.ResolveArray(get(root, "Kids"))
	if !ok {
		kids = raw.NewArray()
		root.Set("Kids", kids)
	}
	kids.Append(ref)
	count, _ := d.raw.ResolveNumber(get(root, "Count"))
	root.Set("Count", raw.NumberInt(int64(count)+1))

	p := &Page{doc: d, ref: ref.R, dict: page, index: len(d.pages)}
	d.pages = append(d.pages, p)
	return p
}

// Info returns the document information dictionary as text.
func (d *Document) Info() map[string]string {
	out := make(map[string]string)
	info, ok := d.raw.ResolveDict(get(d.raw.Trailer, "Info"))
	if !ok {
		return out
	}
	for _, k := range info.Keys() {
		if s, ok := d.raw.Resolve(info.KV[k]).(raw.StringObj); ok {
			out[k] = DecodeTextString(s.Bytes)
		}
	}
	return out
}

// SetInfo stores entries in the information dictionary. Empty values
// delete the entry.
func (d *Document) SetInfo(entries map[string]string) {
	info, ok := d.raw.ResolveDict(get(d.raw.Trailer, "Info"))
	if !ok {
		info = raw.Dict()
		d.raw.Trailer.Set("Info", d.raw.Add(info))
	}
	for k, v := range entries {
		if v == "" {
			info.Delete(k)
			continue
		}
		info.Set(k, raw.Str(EncodeTextString(v)))
	}
}

// Touch sets ModDate (and CreationDate when absent) to t.
func (d *Document) Touch(t time.Time) {
	stamp := FormatDate(t)
	entries := map[string]string{"ModDate": stamp}
	if _, ok := d.Info()["CreationDate"]; !ok {
		entries["CreationDate"] = stamp
	}
	d.SetInfo(entries)
}

// finish writes the dictionaries of embedded fonts, whose glyph usage is
// only known once all text has been drawn. Each save rewrites them, leaving
// the previous font programs unreachable.
func (d *Document) finish() {
	for _, ef := range d.ttFonts {
		d.raw.Set(ef.ref, ef.font.Dict(d.raw))
	}
}

// Save serializes the document.
func (d *Document) Save(ctx context.Context, w io.Writer, wr writer.Writer, cfg writer.Config) error {
	d.finish()
	if wr == nil {
		wr = (&writer.WriterBuilder{}).Build()
	}
	return wr.Write(ctx, d.raw, w, cfg)
}

// Bytes serializes the document into memory.
func (d *Document) Bytes(ctx context.Context, cfg writer.Config) ([]byte, error) {
	var buf bytes.Buffer
	if err := d.Save(ctx, &buf, nil, cfg); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func get(d *raw.DictObj, key string) raw.Object {
	if d == nil {
		return raw.NullObj{}
	}
	v, ok := d.Get(key)
	if !ok {
		return raw.NullObj{}
	}
	return v
}
