package parser

import (
	"context"
	"fmt"

	"github.com/wudi/quotekit/ir/raw"
	"github.com/wudi/quotekit/security"
)

// openSecurity authenticates against the trailer /Encrypt dictionary. The
// returned ref is the dictionary's own object, which is never decrypted.
func openSecurity(ctx context.Context, loader *objectLoader, trailer *raw.DictObj, password string) (security.Handler, *raw.ObjectRef, error) {
	encObj, _ := trailer.Get("Encrypt")
	var encRef *raw.ObjectRef
	if r, ok := encObj.(raw.RefObj); ok {
		ref, obj, err := loader.Load(ctx, r.R.Num)
		if err != nil {
			return nil, nil, fmt.Errorf("load encrypt dictionary: %w", err)
		}
		encRef, encObj = &ref, obj
	}
	enc, ok := encObj.(*raw.DictObj)
	if !ok {
		return nil, nil, fmt.Errorf("encrypt entry is %T, not a dictionary", encObj)
	}
	h, err := security.NewHandler(enc, firstID(trailer))
	if err != nil {
		return nil, nil, err
	}
	if err := h.Authenticate(password); err != nil {
		return nil, nil, err
	}
	return h, encRef, nil
}

func firstID(trailer *raw.DictObj) []byte {
	v, _ := trailer.Get("ID")
	arr, ok := v.(*raw.ArrayObj)
	if !ok || arr.Len() == 0 {
		return nil
	}
	s, _ := arr.Items[0].(raw.StringObj)
	return s.Value()
}

// decrypt replaces every string and stream payload of obj, read from
// object ref, with its plaintext. Strings that fail to decrypt are kept as
// stored; a stream that fails makes the whole object unreadable.
func (o *objectLoader) decrypt(ref raw.ObjectRef, obj raw.Object) (raw.Object, error) {
	if o.crypt == nil || (o.encRef != nil && *o.encRef == ref) {
		return obj, nil
	}
	switch v := obj.(type) {
	case raw.StringObj:
		plain, err := o.crypt.Decrypt(ref, v.Bytes, security.ClassString, "")
		if err != nil {
			return v, nil
		}
		return raw.StringObj{Bytes: plain, Hex: v.Hex}, nil
	case *raw.ArrayObj:
		for i, item := range v.Items {
			v.Items[i], _ = o.decrypt(ref, item)
		}
	case *raw.DictObj:
		for k, item := range v.KV {
			v.KV[k], _ = o.decrypt(ref, item)
		}
	case *raw.StreamObj:
		if t, _ := v.Dict.Name("Type"); t == "XRef" {
			return v, nil
		}
		o.decrypt(ref, v.Dict)
		class := security.ClassStream
		if t, _ := v.Dict.Name("Type"); t == "Metadata" {
			class = security.ClassMetadata
		}
		plain, err := o.crypt.Decrypt(ref, v.Data, class, takeCryptFilter(v.Dict))
		if err != nil {
			return nil, fmt.Errorf("decrypt stream %v: %w", ref, err)
		}
		v.Data = plain
	}
	return obj, nil
}

// takeCryptFilter removes a leading /Crypt filter from a stream dictionary
// and returns the crypt filter it names. An empty result means the
// document default applies.
func takeCryptFilter(d *raw.DictObj) string {
	f, _ := d.Get("Filter")
	parms, _ := d.Get("DecodeParms")
	switch fv := f.(type) {
	case raw.NameObj:
		if fv.Val != "Crypt" {
			return ""
		}
		d.Delete("Filter")
		d.Delete("DecodeParms")
		return cryptName(parms)
	case *raw.ArrayObj:
		if fv.Len() == 0 {
			return ""
		}
		if n, ok := fv.Items[0].(raw.NameObj); !ok || n.Val != "Crypt" {
			return ""
		}
		d.Set("Filter", raw.NewArray(fv.Items[1:]...))
		pa, ok := parms.(*raw.ArrayObj)
		if !ok || pa.Len() == 0 {
			return "Identity"
		}
		d.Set("DecodeParms", raw.NewArray(pa.Items[1:]...))
		return cryptName(pa.Items[0])
	}
	return ""
}

func cryptName(parms raw.Object) string {
	if d, ok := parms.(*raw.DictObj); ok {
		if n, ok := d.Name("Name"); ok {
			return n
		}
	}
	return "Identity"
}
