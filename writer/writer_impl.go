package writer

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"github.com/wudi/quotekit/filters"
	"github.com/wudi/quotekit/ir/raw"
)

type impl struct{ interceptors []Interceptor }

func (w *impl) SerializeObject(ref raw.ObjectRef, obj raw.Object) ([]byte, error) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%d %d obj\n", ref.Num, ref.Gen)
	buf.Write(serializePrimitive(obj))
	buf.WriteString("\nendobj\n")
	return buf.Bytes(), nil
}

// Write serializes every object of doc followed by a classic xref table.
// The document itself is not modified.
func (w *impl) Write(ctx context.Context, doc *raw.Document, out io.Writer, cfg Config) error {
	if doc == nil || doc.Trailer == nil {
		return errors.New("document has no trailer")
	}
	root, ok := doc.Trailer.Get("Root")
	if !ok {
		return errors.New("trailer has no Root")
	}

	refs := doc.Refs()
	if cfg.GarbageCollect {
		refs = reachable(doc)
	}

	version := cfg.Version
	if version == "" {
		version = doc.Version
	}
	if version == "" {
		version = "1.7"
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-" + version + "\n%\xE2\xE3\xCF\xD3\n")
	offsets := make(map[int]int64, len(refs))
	gens := make(map[int]int, len(refs))
	hash := sha256.New()
	for _, ref := range refs {
		if err := ctx.Err(); err != nil {
			return err
		}
		obj := doc.Objects[ref]
		for _, ic := range w.interceptors {
			if err := ic.BeforeWrite(ctx, ref, obj); err != nil {
				return err
			}
		}
		if s, ok := obj.(*raw.StreamObj); ok {
			prepared, err := prepareStream(s, cfg)
			if err != nil {
				return fmt.Errorf("object %s: %w", ref, err)
			}
			obj = prepared
		}
		offset := int64(buf.Len())
		serialized, err := w.SerializeObject(ref, obj)
		if err != nil {
			return err
		}
		buf.Write(serialized)
		if cfg.Deterministic {
			hash.Write(serialized)
		}
		offsets[ref.Num] = offset
		gens[ref.Num] = ref.Gen
		for _, ic := range w.interceptors {
			if err := ic.AfterWrite(ctx, ref, int64(len(serialized))); err != nil {
				return err
			}
		}
	}

	maxObjNum := 0
	for num := range offsets {
		maxObjNum = max(maxObjNum, num)
	}
	xrefOffset := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", maxObjNum+1)
	buf.WriteString("0000000000 65535 f \n")
	for i := 1; i <= maxObjNum; i++ {
		if off, ok := offsets[i]; ok {
			fmt.Fprintf(&buf, "%010d %05d n \n", off, gens[i])
		} else {
			buf.WriteString("0000000000 00001 f \n")
		}
	}

	trailer := raw.Dict()
	trailer.Set("Size", raw.NumberInt(int64(maxObjNum+1)))
	trailer.Set("Root", root)
	if info, ok := doc.Trailer.Get("Info"); ok {
		trailer.Set("Info", info)
	}
	trailer.Set("ID", fileID(doc, cfg, hash.Sum(nil)))
	buf.WriteString("trailer\n")
	buf.Write(serializePrimitive(trailer))
	fmt.Fprintf(&buf, "\nstartxref\n%d\n%%%%EOF\n", xrefOffset)

	_, err := out.Write(buf.Bytes())
	return err
}

// prepareStream returns a copy of s with an accurate /Length, compressing
// the payload when configured to.
func prepareStream(s *raw.StreamObj, cfg Config) (*raw.StreamObj, error) {
	dict := s.Dict.Clone()
	data := s.Data
	_, filtered := dict.Get("Filter")
	typ, _ := dict.Name("Type")
	if cfg.CompressStreams && !filtered && typ != "Metadata" && len(data) > 0 {
		enc, err := filters.FlateEncode(data, cfg.Compression)
		if err != nil {
			return nil, err
		}
		data = enc
		dict.Set("Filter", raw.NameLiteral("FlateDecode"))
		dict.Delete("DecodeParms")
	}
	dict.Set("Length", raw.NumberInt(int64(len(data))))
	return raw.NewStream(dict, data), nil
}

// fileID keeps the first element of an existing ID and renews the second,
// as an updated file should.
func fileID(doc *raw.Document, cfg Config, digest []byte) *raw.ArrayObj {
	next := make([]byte, 16)
	if cfg.Deterministic {
		copy(next, digest)
	} else if _, err := rand.Read(next); err != nil {
		copy(next, digest)
	}
	first := next
	if v, ok := doc.Trailer.Get("ID"); ok {
		if arr, ok := doc.Resolve(v).(*raw.ArrayObj); ok && arr.Len() > 0 {
			if s, ok := doc.Resolve(arr.Items[0]).(raw.StringObj); ok && len(s.Bytes) > 0 {
				first = s.Bytes
			}
		}
	}
	return raw.NewArray(raw.StringObj{Bytes: first, Hex: true}, raw.StringObj{Bytes: next, Hex: true})
}

// reachable returns the objects referenced, directly or not, from the
// trailer, in ascending order.
func reachable(doc *raw.Document) []raw.ObjectRef {
	seen := make(map[raw.ObjectRef]bool)
	var walk func(obj raw.Object)
	walk = func(obj raw.Object) {
		switch v := obj.(type) {
		case raw.RefObj:
			if seen[v.R] {
				return
			}
			target, ok := doc.Objects[v.R]
			if !ok {
				return
			}
			seen[v.R] = true
			walk(target)
		case *raw.DictObj:
			if v == nil {
				return
			}
			for _, k := range v.Keys() {
				walk(v.KV[k])
			}
		case *raw.ArrayObj:
			for _, item := range v.Items {
				walk(item)
			}
		case *raw.StreamObj:
			walk(v.Dict)
		}
	}
	for _, k := range []string{"Root", "Info"} {
		if v, ok := doc.Trailer.Get(k); ok {
			walk(v)
		}
	}
	out := make([]raw.ObjectRef, 0, len(seen))
	for _, ref := range doc.Refs() {
		if seen[ref] {
			out = append(out, ref)
		}
	}
	return out
}
