package document

import (
	"bytes"
	"context"
	"fmt"

	"github.com/wudi/quotekit/contentstream"
	"github.com/wudi/quotekit/coords"
	"github.com/wudi/quotekit/extractor"
	"github.com/wudi/quotekit/ir/raw"
)

// defaultMediaBox is A4, used when a page declares no usable MediaBox.
var defaultMediaBox = coords.Rect{X0: 0, Y0: 0, X1: 595, Y1: 842}

// Page is one leaf of the page tree.
type Page struct {
	doc   *Document
	ref   raw.ObjectRef
	dict  *raw.DictObj
	index int

	ownedRes  bool
	ownedCats map[string]bool
}

func (p *Page) Document() *Document { return p.doc }

// Index is the zero-based position of the page in the document.
func (p *Page) Index() int { return p.index }

// Number is the one-based page number.
func (p *Page) Number() int { return p.index + 1 }

func (p *Page) Ref() raw.ObjectRef { return p.ref }

func (p *Page) Dict() *raw.DictObj { return p.dict }

// MediaBox returns the normalized media box in user space.
func (p *Page) MediaBox() coords.Rect {
	return p.box("MediaBox", defaultMediaBox)
}

// CropBox defaults to the media box.
func (p *Page) CropBox() coords.Rect {
	media := p.MediaBox()
	crop := p.box("CropBox", media)
	if clipped := crop.Intersect(media); !clipped.Empty() {
		return clipped
	}
	return media
}

func (p *Page) box(key string, fallback coords.Rect) coords.Rect {
	arr, ok := p.doc.raw.ResolveArray(get(p.dict, key))
	if !ok || arr.Len() < 4 {
		return fallback
	}
	var v [4]float64
	for i := 0; i < 4; i++ {
		n, ok := p.doc.raw.ResolveNumber(arr.Items[i])
		if !ok {
			return fallback
		}
		v[i] = n
	}
	r := coords.Rect{X0: v[0], Y0: v[1], X1: v[2], Y1: v[3]}.Normalize()
	if r.Empty() {
		return fallback
	}
	return r
}

// Rotation is the /Rotate value normalized to 0, 90, 180 or 270.
func (p *Page) Rotation() int {
	v, _ := p.doc.raw.ResolveNumber(get(p.dict, "Rotate"))
	r := int(v) % 360
	if r < 0 {
		r += 360
	}
	return r - r%90
}

// Box returns the page dimensions in unrotated user space.
func (p *Page) Box() (coords.PageBox, error) {
	m := p.MediaBox()
	return coords.NewPageBox(m.Width(), m.Height(), p.Rotation())
}

// Bounds is the page area in zone coordinates: origin at the lower-left
// corner of the media box.
func (p *Page) Bounds() coords.Rect {
	m := p.MediaBox()
	return coords.Rect{X0: 0, Y0: 0, X1: m.Width(), Y1: m.Height()}
}

// ToUser maps a rectangle given relative to the media box origin into user
// space.
func (p *Page) ToUser(r coords.Rect) coords.Rect {
	m := p.MediaBox()
	return coords.Rect{X0: r.X0 + m.X0, Y0: r.Y0 + m.Y0, X1: r.X1 + m.X0, Y1: r.Y1 + m.Y0}
}

// Origin is the translation from zone coordinates to user space.
func (p *Page) Origin() coords.Matrix {
	m := p.MediaBox()
	return coords.Translate(m.X0, m.Y0)
}

// ContentBytes returns the decoded page content, streams joined by a
// newline as the format prescribes.
func (p *Page) ContentBytes(ctx context.Context) ([]byte, error) {
	var streams []*raw.StreamObj
	switch v := p.doc.raw.Resolve(get(p.dict, "Contents")).(type) {
	case *raw.StreamObj:
		streams = append(streams, v)
	case *raw.ArrayObj:
		for _, item := range v.Items {
			if s, ok := p.doc.raw.ResolveStream(item); ok {
				streams = append(streams, s)
			}
		}
	}
	var buf bytes.Buffer
	for i, s := range streams {
		data, err := p.doc.pipeline.DecodeStream(ctx, p.doc.raw, s)
		if err != nil {
			return nil, fmt.Errorf("page %d content stream %d: %w", p.Number(), i, err)
		}
		if i > 0 {
			buf.WriteByte('\n')
		}
		buf.Write(data)
	}
	return buf.Bytes(), nil
}

// Content parses the page content into operations.
func (p *Page) Content(ctx context.Context) ([]contentstream.Operation, error) {
	data, err := p.ContentBytes(ctx)
	if err != nil {
		return nil, err
	}
	ops, err := contentstream.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("page %d: %w", p.Number(), err)
	}
	return ops, nil
}

// SetContent replaces the page content with a single stream.
func (p *Page) SetContent(ops []contentstream.Operation) {
	ref := p.doc.raw.Add(raw.NewStream(raw.Dict(), contentstream.Serialize(ops)))
	p.dict.Set("Contents", ref)
}

// AppendContent draws ops on top of the existing content. The existing
// streams are wrapped in q/Q, closing any state they leave open, so the
// new operations start from the default graphics state.
func (p *Page) AppendContent(ctx context.Context, ops []contentstream.Operation) error {
	existing, err := p.Content(ctx)
	if err != nil {
		return err
	}
	var refs []raw.Object
	if len(existing) > 0 {
		closing := bytes.Repeat([]byte("Q\n"), contentstream.Balance(existing)+1)
		refs = append(refs, p.doc.raw.Add(raw.NewStream(raw.Dict(), []byte("q\n"))))
		refs = append(refs, p.contentRefs()...)
		refs = append(refs, p.doc.raw.Add(raw.NewStream(raw.Dict(), closing)))
	}
	wrapped := make([]contentstream.Operation, 0, len(ops)+2)
	wrapped = append(wrapped, contentstream.Op("q"))
	wrapped = append(wrapped, ops...)
	wrapped = append(wrapped, contentstream.Op("Q"))
	refs = append(refs, p.doc.raw.Add(raw.NewStream(raw.Dict(), contentstream.Serialize(wrapped))))
	p.dict.Set("Contents", raw.NewArray(refs...))
	return nil
}

// contentRefs returns the current content streams as indirect references,
// promoting direct streams to objects.
func (p *Page) contentRefs() []raw.Object {
	var out []raw.Object
	add := func(o raw.Object) {
		switch v := o.(type) {
		case raw.RefObj:
			out = append(out, v)
		case *raw.StreamObj:
			out = append(out, p.doc.raw.Add(v))
		}
	}
	c := get(p.dict, "Contents")
	if arr, ok := p.doc.raw.ResolveArray(c); ok {
		for _, item := range arr.Items {
			add(item)
		}
		return out
	}
	add(c)
	return out
}

// Text returns the rendered lines of the page.
func (p *Page) Text(ctx context.Context, opts extractor.Options) (extractor.PageText, error) {
	ops, err := p.Content(ctx)
	if err != nil {
		return extractor.PageText{}, err
	}
	lines := extractor.New(opts).Lines(ops, p.TraceResources(ctx), coords.Identity())
	return extractor.PageText{Page: p.index, Lines: lines}, nil
}
