package parser

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/wudi/quotekit/filters"
	"github.com/wudi/quotekit/ir/raw"
	"github.com/wudi/quotekit/scanner"
	"github.com/wudi/quotekit/security"
	"github.com/wudi/quotekit/xref"
)

type objectLoader struct {
	data     []byte
	table    *xref.Table
	pipeline *filters.Pipeline

	objStreams map[int]map[int]raw.Object

	crypt  security.Handler
	encRef *raw.ObjectRef

	repairOnce sync.Once
	repaired   *xref.Table
}

func newObjectLoader(data []byte, table *xref.Table) *objectLoader {
	return &objectLoader{
		data:       data,
		table:      table,
		pipeline:   filters.NewDefault(),
		objStreams: make(map[int]map[int]raw.Object),
	}
}

// Load reads object num wherever the table says it lives.
func (o *objectLoader) Load(ctx context.Context, num int) (raw.ObjectRef, raw.Object, error) {
	e, ok := o.table.Lookup(num)
	if !ok {
		return raw.ObjectRef{}, nil, fmt.Errorf("object %d not in xref", num)
	}
	switch e.Kind {
	case xref.InUse:
		ref, obj, err := o.loadAtOffset(num, e.Offset)
		if err == nil {
			return ref, obj, nil
		}
		// stale offsets are common in hand-edited files
		if alt, ok := o.repairedEntry(ctx, num); ok && alt.Offset != e.Offset {
			return o.loadAtOffset(num, alt.Offset)
		}
		return raw.ObjectRef{}, nil, err
	case xref.Compressed:
		obj, err := o.loadFromObjectStream(ctx, e.Stream, e.Index, num)
		return raw.ObjectRef{Num: num}, obj, err
	}
	return raw.ObjectRef{}, nil, fmt.Errorf("object %d is free", num)
}

func (o *objectLoader) repairedEntry(ctx context.Context, num int) (xref.Entry, bool) {
	o.repairOnce.Do(func() {
		if o.table.Repaired() {
			o.repaired = o.table
			return
		}
		o.repaired, _ = xref.Repair(ctx, o.data)
	})
	if o.repaired == nil {
		return xref.Entry{}, false
	}
	return o.repaired.Lookup(num)
}

func (o *objectLoader) loadAtOffset(num int, offset int64) (raw.ObjectRef, raw.Object, error) {
	if offset < 0 || offset >= int64(len(o.data)) {
		return raw.ObjectRef{}, nil, fmt.Errorf("object %d: offset %d out of range", num, offset)
	}
	s := scanner.New(o.data)
	if err := s.Seek(int(offset)); err != nil {
		return raw.ObjectRef{}, nil, err
	}
	ref, obj, err := s.ReadIndirect(o.streamLength)
	if err != nil {
		return raw.ObjectRef{}, nil, err
	}
	if ref.Num != num {
		return raw.ObjectRef{}, nil, fmt.Errorf("object %d: found object %d at offset %d", num, ref.Num, offset)
	}
	if obj, err = o.decrypt(ref, obj); err != nil {
		return raw.ObjectRef{}, nil, err
	}
	return ref, obj, nil
}

// streamLength resolves an indirect /Length. The length object is read
// directly so a stream never recurses into another stream.
func (o *objectLoader) streamLength(obj raw.Object) (int, bool) {
	ref, ok := obj.(raw.RefObj)
	if !ok {
		return 0, false
	}
	e, ok := o.table.Lookup(ref.R.Num)
	if !ok || e.Kind != xref.InUse {
		return 0, false
	}
	s := scanner.New(o.data)
	if err := s.Seek(int(e.Offset)); err != nil {
		return 0, false
	}
	_, val, err := s.ReadIndirect(nil)
	if err != nil {
		return 0, false
	}
	n, ok := val.(raw.NumberObj)
	if !ok || n.Int() < 0 {
		return 0, false
	}
	return int(n.Int()), true
}

func (o *objectLoader) loadFromObjectStream(ctx context.Context, streamNum, idx, num int) (raw.Object, error) {
	objs, err := o.objectStream(ctx, streamNum)
	if err != nil {
		return nil, err
	}
	obj, ok := objs[num]
	if !ok {
		return nil, fmt.Errorf("object %d missing from object stream %d (index %d)", num, streamNum, idx)
	}
	return obj, nil
}

// objectStream decodes and caches every object held in an ObjStm.
func (o *objectLoader) objectStream(ctx context.Context, streamNum int) (map[int]raw.Object, error) {
	if objs, ok := o.objStreams[streamNum]; ok {
		return objs, nil
	}
	e, ok := o.table.Lookup(streamNum)
	if !ok || e.Kind != xref.InUse {
		return nil, fmt.Errorf("object stream %d not found", streamNum)
	}
	_, obj, err := o.loadAtOffset(streamNum, e.Offset)
	if err != nil {
		return nil, err
	}
	stream, ok := obj.(*raw.StreamObj)
	if !ok {
		return nil, fmt.Errorf("object %d is not a stream", streamNum)
	}
	objs, err := o.parseObjectStream(ctx, stream)
	if err != nil {
		return nil, fmt.Errorf("object stream %d: %w", streamNum, err)
	}
	o.objStreams[streamNum] = objs
	return objs, nil
}

func (o *objectLoader) parseObjectStream(ctx context.Context, stream *raw.StreamObj) (map[int]raw.Object, error) {
	payload, err := o.pipeline.DecodeStream(ctx, nil, stream)
	if err != nil {
		return nil, err
	}
	n := intEntry(stream.Dict, "N")
	first := intEntry(stream.Dict, "First")
	if n <= 0 || first < 0 || first > len(payload) {
		return nil, errors.New("invalid /N or /First")
	}
	header := scanner.New(payload[:first])
	type slot struct{ num, off int }
	slots := make([]slot, 0, n)
	for i := 0; i < n; i++ {
		numTok, err1 := header.Next()
		offTok, err2 := header.Next()
		if err1 != nil || err2 != nil {
			break
		}
		slots = append(slots, slot{num: int(numTok.Int), off: int(offTok.Int)})
	}
	out := make(map[int]raw.Object, len(slots))
	body := scanner.New(payload)
	for _, sl := range slots {
		if err := body.Seek(first + sl.off); err != nil {
			continue
		}
		obj, err := body.ReadObject()
		if err != nil {
			continue
		}
		out[sl.num] = obj
	}
	return out, nil
}

// addCompressed recovers objects living in object streams when the xref
// had to be rebuilt by scanning, since the scan only sees direct objects.
func (o *objectLoader) addCompressed(ctx context.Context, doc *raw.Document) {
	for _, ref := range doc.Refs() {
		s, ok := doc.Objects[ref].(*raw.StreamObj)
		if !ok {
			continue
		}
		if t, _ := s.Dict.Name("Type"); t != "ObjStm" {
			continue
		}
		objs, err := o.parseObjectStream(ctx, s)
		if err != nil {
			continue
		}
		for num, obj := range objs {
			key := raw.ObjectRef{Num: num}
			if _, exists := doc.Objects[key]; !exists {
				doc.Objects[key] = obj
			}
		}
	}
}

func intEntry(d *raw.DictObj, key string) int {
	v, ok := d.Get(key)
	if !ok {
		return -1
	}
	n, ok := v.(raw.NumberObj)
	if !ok {
		return -1
	}
	return int(n.Int())
}
