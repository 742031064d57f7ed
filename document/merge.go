package document

import (
	"context"

	"github.com/wudi/quotekit/contentstream"
	"github.com/wudi/quotekit/ir/raw"
)

// FormXObject packages the page content and resources as a Form XObject
// of the page's own document.
func (p *Page) FormXObject(ctx context.Context) (*raw.StreamObj, error) {
	data, err := p.ContentBytes(ctx)
	if err != nil {
		return nil, err
	}
	m := p.MediaBox()
	dict := raw.Dict()
	dict.Set("Type", raw.NameLiteral("XObject"))
	dict.Set("Subtype", raw.NameLiteral("Form"))
	dict.Set("FormType", raw.NumberInt(1))
	dict.Set("BBox", raw.Numbers(m.X0, m.Y0, m.X1, m.Y1))
	if res, ok := p.dict.Get("Resources"); ok {
		dict.Set("Resources", res)
	} else {
		dict.Set("Resources", raw.Dict())
	}
	return raw.NewStream(dict, data), nil
}

// Merger draws pages of one document over pages of another. Objects shared
// by several source pages are copied once.
type Merger struct {
	dst, src *Document
	im       *raw.Importer
}

func NewMerger(dst, src *Document) *Merger {
	src.finish()
	return &Merger{dst: dst, src: src, im: raw.NewImporter(dst.raw, src.raw)}
}

// Merge places srcPage on top of dstPage as a Form XObject, aligning the
// lower-left corners of both media boxes. dstPage content stays beneath.
func (m *Merger) Merge(ctx context.Context, dstPage, srcPage *Page) error {
	form, err := srcPage.FormXObject(ctx)
	if err != nil {
		return err
	}
	imported, _ := m.im.Import(form).(*raw.StreamObj)
	ref := m.dst.raw.Add(imported)
	name := dstPage.UseXObject(ref)

	sm, dm := srcPage.MediaBox(), dstPage.MediaBox()
	ops := []contentstream.Operation{
		contentstream.Op("cm", contentstream.Nums(1, 0, 0, 1, dm.X0-sm.X0, dm.Y0-sm.Y0)...),
		contentstream.Op("Do", raw.NameLiteral(name)),
	}
	return dstPage.AppendContent(ctx, ops)
}
