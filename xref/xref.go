package xref

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/wudi/quotekit/filters"
	"github.com/wudi/quotekit/ir/raw"
	"github.com/wudi/quotekit/scanner"
)

// EntryKind distinguishes the three xref entry types.
type EntryKind int

const (
	Free EntryKind = iota
	InUse
	Compressed
)

// Entry locates one object. InUse entries carry a byte offset; Compressed
// entries name the object stream and the index inside it.
type Entry struct {
	Kind   EntryKind
	Offset int64
	Gen    int
	Stream int
	Index  int
}

// Table is the merged view of every xref section in a file, newest first.
type Table struct {
	entries  map[int]Entry
	trailer  *raw.DictObj
	repaired bool
	sections int
}

func (t *Table) Lookup(objNum int) (Entry, bool) {
	e, ok := t.entries[objNum]
	return e, ok
}

// Objects returns the in-use and compressed object numbers in ascending order.
func (t *Table) Objects() []int {
	out := make([]int, 0, len(t.entries))
	for k, e := range t.entries {
		if e.Kind != Free {
			out = append(out, k)
		}
	}
	sort.Ints(out)
	return out
}

func (t *Table) Trailer() *raw.DictObj { return t.trailer }

// Repaired reports whether the table was rebuilt by scanning the file.
func (t *Table) Repaired() bool { return t.repaired }

// Sections reports how many xref sections were merged.
func (t *Table) Sections() int { return t.sections }

type ResolverConfig struct {
	MaxXRefDepth int
}

// Resolver locates and parses xref information in a PDF.
type Resolver struct {
	cfg      ResolverConfig
	pipeline *filters.Pipeline
}

func NewResolver(cfg ResolverConfig) *Resolver {
	if cfg.MaxXRefDepth <= 0 {
		cfg.MaxXRefDepth = 32
	}
	return &Resolver{cfg: cfg, pipeline: filters.NewDefault()}
}

// Resolve follows startxref and the Prev chain, merging classic tables and
// cross-reference streams. Damaged files fall back to a full scan.
func (r *Resolver) Resolve(ctx context.Context, data []byte) (*Table, error) {
	t, err := r.resolveChain(ctx, data)
	if err == nil {
		return t, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	repaired, rerr := Repair(ctx, data)
	if rerr != nil {
		return nil, fmt.Errorf("%v; %w", err, rerr)
	}
	return repaired, nil
}

func (r *Resolver) resolveChain(ctx context.Context, data []byte) (*Table, error) {
	offset, err := findStartXRef(data)
	if err != nil {
		return nil, err
	}
	t := &Table{entries: make(map[int]Entry)}
	visited := make(map[int64]bool)
	for depth := 0; offset > 0; depth++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if depth >= r.cfg.MaxXRefDepth {
			return nil, errors.New("xref chain too long")
		}
		if visited[offset] {
			break
		}
		visited[offset] = true
		trailer, err := r.readSection(ctx, data, offset, t)
		if err != nil {
			return nil, err
		}
		t.sections++
		mergeTrailer(t, trailer)
		if stm, ok := trailer.Get("XRefStm"); ok {
			if n, ok := stm.(raw.NumberObj); ok && !visited[n.Int()] {
				visited[n.Int()] = true
				if _, err := r.readSection(ctx, data, n.Int(), t); err != nil {
					return nil, fmt.Errorf("hybrid xref stream: %w", err)
				}
			}
		}
		offset = 0
		if prev, ok := trailer.Get("Prev"); ok {
			if n, ok := prev.(raw.NumberObj); ok {
				offset = n.Int()
			}
		}
	}
	if t.trailer == nil {
		return nil, errors.New("no trailer found")
	}
	return t, nil
}

// mergeTrailer keeps the newest trailer and fills keys it lacks from older ones.
func mergeTrailer(t *Table, trailer *raw.DictObj) {
	if t.trailer == nil {
		t.trailer = trailer.Clone()
		return
	}
	for _, k := range []string{"Root", "Info", "ID", "Encrypt"} {
		if _, ok := t.trailer.Get(k); ok {
			continue
		}
		if v, ok := trailer.Get(k); ok {
			t.trailer.Set(k, v)
		}
	}
}

func findStartXRef(data []byte) (int64, error) {
	idx := bytes.LastIndex(data, []byte("startxref"))
	if idx < 0 {
		return 0, errors.New("startxref not found")
	}
	s := scanner.New(data[idx+len("startxref"):])
	tok, err := s.Next()
	if err != nil || tok.Type != scanner.TokenNumber || !tok.IsInt {
		return 0, errors.New("startxref offset missing")
	}
	if tok.Int <= 0 || tok.Int >= int64(len(data)) {
		return 0, fmt.Errorf("xref offset out of range: %d", tok.Int)
	}
	return tok.Int, nil
}

func (r *Resolver) readSection(ctx context.Context, data []byte, offset int64, t *Table) (*raw.DictObj, error) {
	if offset < 0 || offset >= int64(len(data)) {
		return nil, fmt.Errorf("xref offset out of range: %d", offset)
	}
	s := scanner.New(data)
	if err := s.Seek(int(offset)); err != nil {
		return nil, err
	}
	tok, err := s.Peek()
	if err != nil {
		return nil, err
	}
	if tok.Type == scanner.TokenKeyword && tok.Str == "xref" {
		s.Next()
		return readTable(s, t)
	}
	return r.readStream(ctx, s, t)
}

func readTable(s *scanner.Scanner, t *Table) (*raw.DictObj, error) {
	for {
		tok, err := s.Next()
		if err != nil {
			return nil, fmt.Errorf("xref table: %w", err)
		}
		if tok.Type == scanner.TokenKeyword && tok.Str == "trailer" {
			obj, err := s.ReadObject()
			if err != nil {
				return nil, fmt.Errorf("trailer: %w", err)
			}
			dict, ok := obj.(*raw.DictObj)
			if !ok {
				return nil, errors.New("trailer is not a dictionary")
			}
			return dict, nil
		}
		count, err := s.Next()
		if err != nil || tok.Type != scanner.TokenNumber || count.Type != scanner.TokenNumber {
			return nil, fmt.Errorf("invalid xref subsection header at offset %d", tok.Pos)
		}
		start := int(tok.Int)
		for i := 0; i < int(count.Int); i++ {
			off, err1 := s.Next()
			gen, err2 := s.Next()
			kind, err3 := s.Next()
			if err := errors.Join(err1, err2, err3); err != nil {
				return nil, fmt.Errorf("unexpected end of xref section: %w", err)
			}
			if off.Type != scanner.TokenNumber || gen.Type != scanner.TokenNumber || kind.Type != scanner.TokenKeyword {
				return nil, fmt.Errorf("invalid xref entry at offset %d", off.Pos)
			}
			num := start + i
			if _, seen := t.entries[num]; seen {
				continue
			}
			if kind.Str == "n" {
				t.entries[num] = Entry{Kind: InUse, Offset: off.Int, Gen: int(gen.Int)}
			} else {
				t.entries[num] = Entry{Kind: Free, Gen: int(gen.Int)}
			}
		}
	}
}

func (r *Resolver) readStream(ctx context.Context, s *scanner.Scanner, t *Table) (*raw.DictObj, error) {
	_, obj, err := s.ReadIndirect(nil)
	if err != nil {
		return nil, fmt.Errorf("xref stream: %w", err)
	}
	stream, ok := obj.(*raw.StreamObj)
	if !ok {
		return nil, errors.New("xref offset does not point at a table or stream")
	}
	if typ, _ := stream.Dict.Name("Type"); typ != "XRef" {
		return nil, errors.New("xref stream has wrong /Type")
	}
	payload, err := r.pipeline.DecodeStream(ctx, nil, stream)
	if err != nil {
		return nil, fmt.Errorf("decode xref stream: %w", err)
	}
	widths, err := intArray(stream.Dict, "W")
	if err != nil || len(widths) != 3 {
		return nil, errors.New("xref stream: invalid /W")
	}
	size, _ := stream.Dict.Get("Size")
	sizeN, _ := size.(raw.NumberObj)
	index, err := intArray(stream.Dict, "Index")
	if err != nil || len(index) == 0 {
		index = []int{0, int(sizeN.Int())}
	}
	rowLen := widths[0] + widths[1] + widths[2]
	if rowLen == 0 {
		return nil, errors.New("xref stream: zero row width")
	}
	pos := 0
	for i := 0; i+1 < len(index); i += 2 {
		start, count := index[i], index[i+1]
		for j := 0; j < count; j++ {
			if pos+rowLen > len(payload) {
				return stream.Dict, nil
			}
			row := payload[pos : pos+rowLen]
			pos += rowLen
			typ := 1
			if widths[0] > 0 {
				typ = int(field(row[:widths[0]]))
			}
			f2 := field(row[widths[0] : widths[0]+widths[1]])
			f3 := field(row[widths[0]+widths[1]:])
			num := start + j
			if _, seen := t.entries[num]; seen {
				continue
			}
			switch typ {
			case 0:
				t.entries[num] = Entry{Kind: Free, Gen: int(f3)}
			case 1:
				t.entries[num] = Entry{Kind: InUse, Offset: f2, Gen: int(f3)}
			case 2:
				t.entries[num] = Entry{Kind: Compressed, Stream: int(f2), Index: int(f3)}
			}
		}
	}
	return stream.Dict, nil
}

func field(b []byte) int64 {
	var v int64
	for _, c := range b {
		v = v<<8 | int64(c)
	}
	return v
}

func intArray(d *raw.DictObj, key string) ([]int, error) {
	v, ok := d.Get(key)
	if !ok {
		return nil, fmt.Errorf("missing /%s", key)
	}
	arr, ok := v.(*raw.ArrayObj)
	if !ok {
		return nil, fmt.Errorf("/%s is not an array", key)
	}
	out := make([]int, 0, arr.Len())
	for _, item := range arr.Items {
		n, ok := item.(raw.NumberObj)
		if !ok {
			return nil, fmt.Errorf("/%s holds a non-number", key)
		}
		out = append(out, int(n.Int()))
	}
	return out, nil
}
