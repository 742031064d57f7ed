package raw

// Importer deep-copies objects from one document into another, allocating
// fresh object numbers in the destination and remapping references. An
// object reachable through several paths is copied once.
type Importer struct {
	dst, src *Document
	seen     map[ObjectRef]RefObj
	next     int
}

// NewImporter prepares an importer copying from src into dst.
func NewImporter(dst, src *Document) *Importer {
	return &Importer{
		dst:  dst,
		src:  src,
		seen: make(map[ObjectRef]RefObj),
		next: dst.MaxObjectNumber() + 1,
	}
}

// Import returns a copy of obj whose references all point into the
// destination document. Objects added to the destination between calls
// are taken into account when numbering.
func (im *Importer) Import(obj Object) Object {
	if n := im.dst.MaxObjectNumber() + 1; n > im.next {
		im.next = n
	}
	return im.copy(obj)
}

func (im *Importer) copy(obj Object) Object {
	switch v := obj.(type) {
	case RefObj:
		if mapped, ok := im.seen[v.R]; ok {
			return mapped
		}
		target, ok := im.src.Objects[v.R]
		if !ok {
			return NullObj{}
		}
		mapped := RefObj{R: ObjectRef{Num: im.next}}
		im.next++
		im.seen[v.R] = mapped
		im.dst.Objects[mapped.R] = NullObj{}
		im.dst.Objects[mapped.R] = im.copy(target)
		return mapped
	case *DictObj:
		if v == nil {
			return Dict()
		}
		out := &DictObj{KV: make(map[string]Object, len(v.KV))}
		for k, val := range v.KV {
			out.KV[k] = im.copy(val)
		}
		return out
	case *ArrayObj:
		out := &ArrayObj{Items: make([]Object, len(v.Items))}
		for i, item := range v.Items {
			out.Items[i] = im.copy(item)
		}
		return out
	case *StreamObj:
		data := make([]byte, len(v.Data))
		copy(data, v.Data)
		return &StreamObj{Dict: im.copy(v.Dict).(*DictObj), Data: data}
	case StringObj:
		b := make([]byte, len(v.Bytes))
		copy(b, v.Bytes)
		return StringObj{Bytes: b, Hex: v.Hex}
	case nil:
		return NullObj{}
	}
	return obj
}
