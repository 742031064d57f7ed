package fonts

import (
	"context"

	"github.com/wudi/quotekit/contentstream"
	"github.com/wudi/quotekit/filters"
	"github.com/wudi/quotekit/ir/raw"
)

// Simple is a single-byte font loaded from a page's font dictionary
// (Type1, TrueType, Type3).
type Simple struct {
	name      string
	firstChar int
	widths    []float64
	missing   float64
	std       *Standard
	enc       *Encoding
	toUnicode *CMap
	ascent    float64
	descent   float64
}

func (f *Simple) BaseFont() string { return f.name }

func (f *Simple) Codes(s []byte) []contentstream.CharCode { return fixedCodes(s, 1) }

func (f *Simple) Width(code uint32) float64 {
	i := int(code) - f.firstChar
	if f.widths != nil && i >= 0 && i < len(f.widths) {
		return f.widths[i]
	}
	if f.std != nil {
		return f.std.Width(code)
	}
	return f.missing
}

func (f *Simple) Bounds() (float64, float64) { return f.descent, f.ascent }

func (f *Simple) Decode(code uint32) string {
	if f.toUnicode != nil {
		if s, ok := f.toUnicode.Lookup(code); ok {
			return s
		}
	}
	if code < 256 && f.enc[code] != 0 {
		return string(f.enc[code])
	}
	return ""
}

// Composite is a Type0 font with a CIDFont descendant.
type Composite struct {
	name      string
	cmap      *CMap // encoding CMap when embedded, nil for Identity-H/V
	dw        float64
	w         map[uint32]float64
	toUnicode *CMap
	ascent    float64
	descent   float64
}

func (f *Composite) BaseFont() string { return f.name }

func (f *Composite) Codes(s []byte) []contentstream.CharCode {
	if f.cmap != nil {
		return f.cmap.Codes(s)
	}
	return fixedCodes(s, 2)
}

func (f *Composite) Width(code uint32) float64 {
	if w, ok := f.w[code]; ok {
		return w
	}
	return f.dw
}

func (f *Composite) Bounds() (float64, float64) { return f.descent, f.ascent }

func (f *Composite) Decode(code uint32) string {
	if f.toUnicode != nil {
		if s, ok := f.toUnicode.Lookup(code); ok {
			return s
		}
	}
	return ""
}

// Loader builds fonts from font dictionaries. Decoded CMaps need the
// stream filters, hence the pipeline.
type Loader struct {
	doc      *raw.Document
	pipeline *filters.Pipeline
	cache    map[raw.ObjectRef]Font
}

func NewLoader(doc *raw.Document, pipeline *filters.Pipeline) *Loader {
	if pipeline == nil {
		pipeline = filters.NewDefault()
	}
	return &Loader{doc: doc, pipeline: pipeline, cache: make(map[raw.ObjectRef]Font)}
}

// Load returns the font described by obj (a dictionary or a reference to
// one). Malformed dictionaries degrade to Helvetica metrics rather than
// failing, so layout and extraction can go on.
func (l *Loader) Load(ctx context.Context, obj raw.Object) Font {
	ref, isRef := obj.(raw.RefObj)
	if isRef {
		if f, ok := l.cache[ref.R]; ok {
			return f
		}
	}
	var f Font
	dict, ok := l.doc.ResolveDict(obj)
	if !ok {
		f = Helvetica()
	} else if sub, _ := dict.Name("Subtype"); sub == "Type0" {
		f = l.composite(ctx, dict)
	} else {
		f = l.simple(ctx, dict, sub)
	}
	if isRef {
		l.cache[ref.R] = f
	}
	return f
}

func (l *Loader) simple(ctx context.Context, dict *raw.DictObj, subtype string) *Simple {
	name, _ := l.doc.ResolveName(get(dict, "BaseFont"))
	f := &Simple{name: stripSubset(name), ascent: 718, descent: -207}
	f.std, _ = NewStandard(name)
	if f.std != nil {
		f.descent, f.ascent = f.std.Bounds()
	}

	scale := 1.0
	if subtype == "Type3" {
		if m, ok := l.doc.ResolveArray(get(dict, "FontMatrix")); ok && m.Len() >= 1 {
			if v, ok := l.doc.ResolveNumber(m.Items[0]); ok && v != 0 {
				scale = v * 1000
			}
		}
	}
	if fc, ok := l.doc.ResolveNumber(get(dict, "FirstChar")); ok {
		f.firstChar = int(fc)
	}
	if arr, ok := l.doc.ResolveArray(get(dict, "Widths")); ok {
		f.widths = make([]float64, arr.Len())
		for i, item := range arr.Items {
			v, _ := l.doc.ResolveNumber(item)
			f.widths[i] = v * scale
		}
	}
	if fd, ok := l.doc.ResolveDict(get(dict, "FontDescriptor")); ok {
		f.missing, _ = l.doc.ResolveNumber(get(fd, "MissingWidth"))
		l.descriptorBounds(fd, &f.descent, &f.ascent)
	}
	if f.widths == nil && f.std == nil && f.missing == 0 {
		f.std = Helvetica()
	}

	f.enc = l.simpleEncoding(dict, subtype, f.std)
	f.toUnicode = l.toUnicode(ctx, dict)
	return f
}

func (l *Loader) simpleEncoding(dict *raw.DictObj, subtype string, std *Standard) *Encoding {
	base := winAnsiEncoding
	if subtype == "Type1" && std != nil && std.name != "Symbol" && std.name != "ZapfDingbats" {
		base = standardEncoding
	}
	switch v := l.doc.Resolve(get(dict, "Encoding")).(type) {
	case raw.NameObj:
		if e, ok := NamedEncoding(v.Val); ok {
			return e
		}
	case *raw.DictObj:
		if name, ok := l.doc.ResolveName(get(v, "BaseEncoding")); ok {
			if e, ok := NamedEncoding(name); ok {
				base = e
			}
		}
		if diffs, ok := l.doc.ResolveArray(get(v, "Differences")); ok {
			return withDifferences(base, diffs)
		}
	}
	return base
}

func (l *Loader) composite(ctx context.Context, dict *raw.DictObj) *Composite {
	name, _ := l.doc.ResolveName(get(dict, "BaseFont"))
	f := &Composite{name: stripSubset(name), dw: 1000, w: make(map[uint32]float64), ascent: 880, descent: -120}

	if s, ok := l.doc.ResolveStream(get(dict, "Encoding")); ok {
		if data, err := l.pipeline.DecodeStream(ctx, l.doc, s); err == nil {
			if cm, err := ParseCMap(data); err == nil && len(cm.spaces) > 0 {
				f.cmap = cm
			}
		}
	}
	if arr, ok := l.doc.ResolveArray(get(dict, "DescendantFonts")); ok && arr.Len() > 0 {
		if desc, ok := l.doc.ResolveDict(arr.Items[0]); ok {
			if dw, ok := l.doc.ResolveNumber(get(desc, "DW")); ok {
				f.dw = dw
			}
			if w, ok := l.doc.ResolveArray(get(desc, "W")); ok {
				l.cidWidths(w, f.w)
			}
			if fd, ok := l.doc.ResolveDict(get(desc, "FontDescriptor")); ok {
				l.descriptorBounds(fd, &f.descent, &f.ascent)
			}
		}
	}
	f.toUnicode = l.toUnicode(ctx, dict)
	return f
}

// cidWidths reads a W array: "c [w1 w2 ...]" and "cFirst cLast w" forms.
func (l *Loader) cidWidths(arr *raw.ArrayObj, out map[uint32]float64) {
	items := arr.Items
	for i := 0; i < len(items); {
		first, ok := l.doc.ResolveNumber(items[i])
		if !ok || i+1 >= len(items) {
			return
		}
		if list, ok := l.doc.ResolveArray(items[i+1]); ok {
			for k, item := range list.Items {
				if w, ok := l.doc.ResolveNumber(item); ok {
					out[uint32(first)+uint32(k)] = w
				}
			}
			i += 2
			continue
		}
		if i+2 >= len(items) {
			return
		}
		last, _ := l.doc.ResolveNumber(items[i+1])
		w, _ := l.doc.ResolveNumber(items[i+2])
		for c := uint32(first); c <= uint32(last) && c-uint32(first) < 0x10000; c++ {
			out[c] = w
		}
		i += 3
	}
}

func (l *Loader) descriptorBounds(fd *raw.DictObj, descent, ascent *float64) {
	if v, ok := l.doc.ResolveNumber(get(fd, "Ascent")); ok && v > 0 {
		*ascent = v
	}
	if v, ok := l.doc.ResolveNumber(get(fd, "Descent")); ok && v < 0 {
		*descent = v
	}
}

func (l *Loader) toUnicode(ctx context.Context, dict *raw.DictObj) *CMap {
	s, ok := l.doc.ResolveStream(get(dict, "ToUnicode"))
	if !ok {
		return nil
	}
	data, err := l.pipeline.DecodeStream(ctx, l.doc, s)
	if err != nil {
		return nil
	}
	cm, err := ParseCMap(data)
	if err != nil {
		return nil
	}
	return cm
}

func get(d *raw.DictObj, key string) raw.Object {
	v, ok := d.Get(key)
	if !ok {
		return raw.NullObj{}
	}
	return v
}
