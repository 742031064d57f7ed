package parser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/wudi/quotekit/ir/raw"
	"github.com/wudi/quotekit/xref"
)

var (
	// ErrNotPDF is returned when the input has no %PDF- header.
	ErrNotPDF = errors.New("not a PDF file")
	// ErrEncrypted is returned for encrypted documents that cannot be opened
	// with the configured password.
	ErrEncrypted = errors.New("encrypted PDF requires a password")
)

// Config controls xref resolution and object loading.
type Config struct {
	XRef xref.ResolverConfig
	// MaxObjects bounds the number of indirect objects loaded. Zero means
	// no limit.
	MaxObjects int
	// Password opens encrypted files. Permission-only files use the empty
	// user password and open without one.
	Password string
}

// DocumentParser builds a raw.Document using xref tables/streams and the object loader.
type DocumentParser struct {
	cfg Config
}

func NewDocumentParser(cfg Config) *DocumentParser {
	return &DocumentParser{cfg: cfg}
}

// Parse loads every indirect object of the file into memory. Objects that
// cannot be read are dropped, so references to them resolve to null.
func (p *DocumentParser) Parse(ctx context.Context, data []byte) (*raw.Document, error) {
	headerAt := bytes.Index(data[:min(len(data), 1024)], []byte("%PDF-"))
	if headerAt < 0 {
		return nil, ErrNotPDF
	}
	// Offsets are relative to the header when junk precedes it.
	data = data[headerAt:]

	table, err := xref.NewResolver(p.cfg.XRef).Resolve(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("resolve xref: %w", err)
	}
	trailer := table.Trailer()
	loader := newObjectLoader(data, table)
	if _, ok := trailer.Get("Encrypt"); ok {
		h, encRef, err := openSecurity(ctx, loader, trailer, p.cfg.Password)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrEncrypted, err)
		}
		loader.crypt, loader.encRef = h, encRef
	}
	objects := table.Objects()
	if p.cfg.MaxObjects > 0 && len(objects) > p.cfg.MaxObjects {
		return nil, fmt.Errorf("document has %d objects, limit is %d", len(objects), p.cfg.MaxObjects)
	}

	doc := raw.NewDocument(detectHeaderVersion(data))
	for _, num := range objects {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if num == 0 {
			continue
		}
		ref, obj, err := loader.Load(ctx, num)
		if err != nil {
			continue
		}
		doc.Objects[ref] = obj
	}
	if table.Repaired() {
		loader.addCompressed(ctx, doc)
	}

	doc.Trailer = trailer.Clone()
	// the writer emits plaintext
	doc.Trailer.Delete("Encrypt")
	if loader.encRef != nil {
		delete(doc.Objects, *loader.encRef)
	}
	doc.Trailer.Delete("Prev")
	doc.Trailer.Delete("XRefStm")
	for _, k := range []string{"Type", "W", "Index", "Filter", "DecodeParms", "Length"} {
		doc.Trailer.Delete(k)
	}
	if _, ok := doc.Catalog(); !ok {
		if ref, ok := findCatalog(doc); ok {
			doc.Trailer.Set("Root", raw.RefObj{R: ref})
		} else {
			return nil, errors.New("document catalog not found")
		}
	}
	dropXRefStreams(doc)
	return doc, nil
}

// findCatalog locates a catalog when the trailer Root is missing or broken.
func findCatalog(doc *raw.Document) (raw.ObjectRef, bool) {
	for _, ref := range doc.Refs() {
		d, ok := doc.Objects[ref].(*raw.DictObj)
		if !ok {
			continue
		}
		if t, _ := d.Name("Type"); t == "Catalog" {
			return ref, true
		}
	}
	return raw.ObjectRef{}, false
}

// dropXRefStreams removes cross-reference and object streams; the writer
// produces a classic table and stores every object directly.
func dropXRefStreams(doc *raw.Document) {
	for ref, obj := range doc.Objects {
		s, ok := obj.(*raw.StreamObj)
		if !ok {
			continue
		}
		if t, _ := s.Dict.Name("Type"); t == "XRef" || t == "ObjStm" {
			delete(doc.Objects, ref)
		}
	}
}

func detectHeaderVersion(data []byte) string {
	line := string(data[:min(len(data), 64)])
	for _, sep := range []string{"\r\n", "\n", "\r"} {
		if idx := strings.Index(line, sep); idx >= 0 {
			line = line[:idx]
			break
		}
	}
	if strings.HasPrefix(line, "%PDF-") && len(line) >= 8 {
		return strings.TrimSpace(line[5:8])
	}
	return ""
}
