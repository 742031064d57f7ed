package xref

import (
	"bytes"
	"context"
	"errors"
	"regexp"
	"strconv"

	"github.com/wudi/quotekit/ir/raw"
	"github.com/wudi/quotekit/scanner"
)

var objHeader = regexp.MustCompile(`(\d+)[\x00\t\n\f\r ]+(\d+)[\x00\t\n\f\r ]+obj\b`)

// Repair scans the entire file to reconstruct the xref table. Later
// definitions of an object number win, matching incremental-update order.
// The trailer is the last "trailer" dictionary in the file, or the
// dictionary of the last cross-reference stream.
func Repair(ctx context.Context, data []byte) (*Table, error) {
	t := &Table{entries: make(map[int]Entry), repaired: true}
	for _, m := range objHeader.FindAllSubmatchIndex(data, -1) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		// the header must start a token
		if m[0] > 0 && !isBoundary(data[m[0]-1]) {
			continue
		}
		num, err1 := strconv.Atoi(string(data[m[2]:m[3]]))
		gen, err2 := strconv.Atoi(string(data[m[4]:m[5]]))
		if err1 != nil || err2 != nil {
			continue
		}
		t.entries[num] = Entry{Kind: InUse, Offset: int64(m[0]), Gen: gen}
	}
	if len(t.entries) == 0 {
		return nil, errors.New("repair failed: no objects found")
	}

	if idx := bytes.LastIndex(data, []byte("trailer")); idx >= 0 {
		s := scanner.New(data)
		if err := s.Seek(idx + len("trailer")); err == nil {
			if obj, err := s.ReadObject(); err == nil {
				if dict, ok := obj.(*raw.DictObj); ok {
					t.trailer = dict
				}
			}
		}
	}
	if t.trailer == nil {
		t.trailer = trailerFromXRefStream(data, t)
	}
	if t.trailer == nil {
		t.trailer = raw.Dict()
		t.trailer.Set("Size", raw.NumberInt(int64(len(t.entries)+1)))
	}
	t.trailer.Delete("Prev")
	t.trailer.Delete("XRefStm")
	return t, nil
}

func trailerFromXRefStream(data []byte, t *Table) *raw.DictObj {
	var found *raw.DictObj
	var at int64 = -1
	for _, e := range t.entries {
		if e.Offset <= at {
			continue
		}
		s := scanner.New(data)
		if err := s.Seek(int(e.Offset)); err != nil {
			continue
		}
		_, obj, err := s.ReadIndirect(nil)
		if err != nil {
			continue
		}
		stream, ok := obj.(*raw.StreamObj)
		if !ok {
			continue
		}
		if typ, _ := stream.Dict.Name("Type"); typ == "XRef" {
			found, at = stream.Dict.Clone(), e.Offset
		}
	}
	return found
}

func isBoundary(c byte) bool {
	return c == 0 || c == '\t' || c == '\n' || c == '\f' || c == '\r' || c == ' ' || c == '>' || c == ']' || c == ')'
}
