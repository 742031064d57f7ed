package document

import (
	"context"
	"fmt"

	"github.com/wudi/quotekit/contentstream"
	"github.com/wudi/quotekit/coords"
	"github.com/wudi/quotekit/fonts"
	"github.com/wudi/quotekit/ir/raw"
)

// Resources returns the page resource dictionary for reading.
func (p *Page) Resources() *raw.DictObj {
	res, ok := p.doc.raw.ResolveDict(get(p.dict, "Resources"))
	if !ok {
		return raw.Dict()
	}
	return res
}

// category returns a page-owned copy of a resource category (Font,
// XObject, ExtGState) so registering a name never leaks into pages that
// shared the dictionary.
func (p *Page) category(name string) *raw.DictObj {
	if !p.ownedRes {
		res := p.Resources().Clone()
		p.dict.Set("Resources", res)
		p.ownedRes = true
		p.ownedCats = make(map[string]bool)
	}
	res, _ := p.dict.KV["Resources"].(*raw.DictObj)
	if !p.ownedCats[name] {
		cat, ok := p.doc.raw.ResolveDict(get(res, name))
		if ok {
			cat = cat.Clone()
		} else {
			cat = raw.Dict()
		}
		res.Set(name, cat)
		p.ownedCats[name] = true
	}
	cat, _ := res.KV[name].(*raw.DictObj)
	return cat
}

// register stores obj under a fresh name starting with prefix, or returns
// the name already bound to obj.
func (p *Page) register(category, prefix string, obj raw.RefObj) string {
	cat := p.category(category)
	for _, k := range cat.Keys() {
		if ref, ok := cat.KV[k].(raw.RefObj); ok && ref.R == obj.R {
			return k
		}
	}
	for i := 1; ; i++ {
		name := fmt.Sprintf("%s%d", prefix, i)
		if _, taken := cat.Get(name); !taken {
			cat.Set(name, obj)
			return name
		}
	}
}

// UseFont makes f available to the page and returns its resource name.
// Standard fonts share one dictionary per document. TrueType fonts get a
// reserved object that is filled in when the document is saved.
func (p *Page) UseFont(f fonts.Encoder) string {
	d := p.doc
	ref, ok := d.shared[f.BaseFont()]
	if !ok {
		switch v := f.(type) {
		case *fonts.TrueType:
			ref = d.raw.Add(raw.NullObj{})
			d.ttFonts = append(d.ttFonts, &embeddedFont{font: v, ref: ref.R})
		default:
			dict := raw.Dict()
			dict.Set("Type", raw.NameLiteral("Font"))
			dict.Set("Subtype", raw.NameLiteral("Type1"))
			dict.Set("BaseFont", raw.NameLiteral(f.BaseFont()))
			if f.BaseFont() != "Symbol" && f.BaseFont() != "ZapfDingbats" {
				dict.Set("Encoding", raw.NameLiteral("WinAnsiEncoding"))
			}
			ref = d.raw.Add(dict)
		}
		d.shared[f.BaseFont()] = ref
	}
	return p.register("Font", "QF", ref)
}

// UseXObject registers an image or form XObject and returns its name.
func (p *Page) UseXObject(ref raw.RefObj) string {
	prefix := "QX"
	if s, ok := p.doc.raw.ResolveStream(ref); ok {
		if sub, _ := s.Dict.Name("Subtype"); sub == "Image" {
			prefix = "QI"
		}
	}
	return p.register("XObject", prefix, ref)
}

// UseAlpha returns a graphics state setting fill and stroke opacity.
func (p *Page) UseAlpha(alpha float64) string {
	key := fmt.Sprintf("alpha:%g", alpha)
	ref, ok := p.doc.shared[key]
	if !ok {
		gs := raw.Dict()
		gs.Set("Type", raw.NameLiteral("ExtGState"))
		gs.Set("ca", raw.Number(alpha))
		gs.Set("CA", raw.Number(alpha))
		ref = p.doc.raw.Add(gs)
		p.doc.shared[key] = ref
	}
	return p.register("ExtGState", "QG", ref)
}

// AddImage stores an image XObject in the document.
func (d *Document) AddImage(img *raw.StreamObj) raw.RefObj {
	img.Dict.Set("Type", raw.NameLiteral("XObject"))
	img.Dict.Set("Subtype", raw.NameLiteral("Image"))
	return d.raw.Add(img)
}

// TraceResources adapts the page resources to the content stream tracer.
func (p *Page) TraceResources(ctx context.Context) contentstream.Resources {
	return &resources{ctx: ctx, doc: p.doc, dict: p.Resources()}
}

type resources struct {
	ctx  context.Context
	doc  *Document
	dict *raw.DictObj
}

func (r *resources) Font(name string) contentstream.Font {
	fontsDict, ok := r.doc.raw.ResolveDict(get(r.dict, "Font"))
	if !ok {
		return nil
	}
	obj, ok := fontsDict.Get(name)
	if !ok {
		return nil
	}
	return r.doc.fonts.Load(r.ctx, obj)
}

func (r *resources) XObject(name string) (contentstream.XObjectInfo, bool) {
	xobjs, ok := r.doc.raw.ResolveDict(get(r.dict, "XObject"))
	if !ok {
		return contentstream.XObjectInfo{}, false
	}
	obj, ok := xobjs.Get(name)
	if !ok {
		return contentstream.XObjectInfo{}, false
	}
	dict, ok := r.doc.raw.ResolveDict(obj)
	if !ok {
		return contentstream.XObjectInfo{}, false
	}
	info := contentstream.XObjectInfo{Matrix: coords.Identity()}
	info.Subtype, _ = dict.Name("Subtype")
	if arr, ok := r.doc.raw.ResolveArray(get(dict, "BBox")); ok && arr.Len() == 4 {
		var v [4]float64
		for i := range v {
			v[i], _ = r.doc.raw.ResolveNumber(arr.Items[i])
		}
		info.BBox = coords.Rect{X0: v[0], Y0: v[1], X1: v[2], Y1: v[3]}.Normalize()
	}
	if arr, ok := r.doc.raw.ResolveArray(get(dict, "Matrix")); ok && arr.Len() == 6 {
		for i := range info.Matrix {
			info.Matrix[i], _ = r.doc.raw.ResolveNumber(arr.Items[i])
		}
	}
	return info, true
}
