package raw

import (
	"fmt"
	"sort"
)

// ObjectRef uniquely identifies an indirect PDF object.
type ObjectRef struct {
	Num int
	Gen int
}

func (r ObjectRef) String() string { return fmt.Sprintf("%d %d R", r.Num, r.Gen) }

// Object is the base interface for all raw PDF objects.
type Object interface {
	Type() string
	IsIndirect() bool
}

// Document is the root container for raw PDF objects.
type Document struct {
	Objects map[ObjectRef]Object
	Trailer *DictObj
	Version string // e.g., "1.7"
}

// NewDocument returns an empty document with an initialized object table.
func NewDocument(version string) *Document {
	if version == "" {
		version = "1.7"
	}
	return &Document{
		Objects: make(map[ObjectRef]Object),
		Trailer: Dict(),
		Version: version,
	}
}

// MaxObjectNumber returns the highest object number in use.
func (d *Document) MaxObjectNumber() int {
	max := 0
	for ref := range d.Objects {
		if ref.Num > max {
			max = ref.Num
		}
	}
	return max
}

// Add stores obj as a new indirect object and returns a reference to it.
func (d *Document) Add(obj Object) RefObj {
	ref := ObjectRef{Num: d.MaxObjectNumber() + 1}
	d.Objects[ref] = obj
	return RefObj{R: ref}
}

// Set replaces the indirect object identified by ref.
func (d *Document) Set(ref ObjectRef, obj Object) { d.Objects[ref] = obj }

// Refs returns all object references sorted by number then generation.
func (d *Document) Refs() []ObjectRef {
	refs := make([]ObjectRef, 0, len(d.Objects))
	for ref := range d.Objects {
		refs = append(refs, ref)
	}
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].Num != refs[j].Num {
			return refs[i].Num < refs[j].Num
		}
		return refs[i].Gen < refs[j].Gen
	})
	return refs
}

// Resolve follows indirect references until a direct object is reached.
// Dangling references resolve to null, cycles are cut after a fixed depth.
func (d *Document) Resolve(obj Object) Object {
	for depth := 0; depth < 32; depth++ {
		ref, ok := obj.(RefObj)
		if !ok {
			return obj
		}
		next, ok := d.Objects[ref.R]
		if !ok {
			return NullObj{}
		}
		obj = next
	}
	return NullObj{}
}

// ResolveDict resolves obj and returns it as a dictionary. Streams yield
// their dictionary.
func (d *Document) ResolveDict(obj Object) (*DictObj, bool) {
	switch v := d.Resolve(obj).(type) {
	case *DictObj:
		return v, true
	case *StreamObj:
		return v.Dict, true
	}
	return nil, false
}

// ResolveArray resolves obj and returns it as an array.
func (d *Document) ResolveArray(obj Object) (*ArrayObj, bool) {
	a, ok := d.Resolve(obj).(*ArrayObj)
	return a, ok
}

// ResolveStream resolves obj and returns it as a stream.
func (d *Document) ResolveStream(obj Object) (*StreamObj, bool) {
	s, ok := d.Resolve(obj).(*StreamObj)
	return s, ok
}

// ResolveNumber resolves obj and returns its numeric value.
func (d *Document) ResolveNumber(obj Object) (float64, bool) {
	n, ok := d.Resolve(obj).(NumberObj)
	if !ok {
		return 0, false
	}
	return n.Float(), true
}

// ResolveName resolves obj and returns the name value.
func (d *Document) ResolveName(obj Object) (string, bool) {
	n, ok := d.Resolve(obj).(NameObj)
	if !ok {
		return "", false
	}
	return n.Val, true
}

// Catalog returns the document catalog referenced by the trailer Root entry.
func (d *Document) Catalog() (*DictObj, bool) {
	if d.Trailer == nil {
		return nil, false
	}
	root, ok := d.Trailer.Get("Root")
	if !ok {
		return nil, false
	}
	return d.ResolveDict(root)
}
