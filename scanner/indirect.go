package scanner

import (
	"bytes"
	"fmt"

	"github.com/wudi/quotekit/ir/raw"
)

// LengthFunc resolves a stream /Length entry that is an indirect reference.
type LengthFunc func(obj raw.Object) (int, bool)

// ReadIndirect parses "N G obj ... endobj" at the current position. Stream
// data is sliced using /Length when it is trustworthy and otherwise by
// searching for the endstream keyword.
func (s *Scanner) ReadIndirect(length LengthFunc) (raw.ObjectRef, raw.Object, error) {
	num, err := s.Next()
	if err != nil {
		return raw.ObjectRef{}, nil, err
	}
	gen, err := s.Next()
	if err != nil {
		return raw.ObjectRef{}, nil, err
	}
	kw, err := s.Next()
	if err != nil {
		return raw.ObjectRef{}, nil, err
	}
	if num.Type != TokenNumber || !num.IsInt || gen.Type != TokenNumber || !gen.IsInt || kw.Type != TokenKeyword || kw.Str != "obj" {
		return raw.ObjectRef{}, nil, fmt.Errorf("no object header at offset %d", num.Pos)
	}
	ref := raw.ObjectRef{Num: int(num.Int), Gen: int(gen.Int)}

	tok, err := s.Next()
	if err != nil {
		return ref, nil, fmt.Errorf("object %s: %w", ref, err)
	}
	if tok.Type == TokenKeyword && tok.Str == "endobj" {
		return ref, raw.NullObj{}, nil
	}
	obj, err := s.ObjectFrom(tok)
	if err != nil {
		return ref, nil, fmt.Errorf("object %s: %w", ref, err)
	}

	dict, isDict := obj.(*raw.DictObj)
	if !isDict {
		return ref, obj, nil
	}
	save := s.pos
	next, err := s.Next()
	if err != nil || next.Type != TokenKeyword || next.Str != "stream" {
		s.pos = save
		return ref, obj, nil
	}
	s.SkipEOL()
	data := s.streamData(dict, length)
	return ref, raw.NewStream(dict, data), nil
}

func (s *Scanner) streamData(dict *raw.DictObj, length LengthFunc) []byte {
	start := s.pos
	n := -1
	if v, ok := dict.Get("Length"); ok {
		switch l := v.(type) {
		case raw.NumberObj:
			n = int(l.Int())
		case raw.RefObj:
			if length != nil {
				if got, ok := length(l); ok {
					n = got
				}
			}
		}
	}
	if n >= 0 && start+n <= len(s.data) {
		rest := s.data[start+n:]
		trimmed := bytes.TrimLeft(rest, "\r\n \t\f\x00")
		if bytes.HasPrefix(trimmed, []byte("endstream")) {
			s.pos = start + n + (len(rest) - len(trimmed)) + len("endstream")
			s.skipEndobj()
			return s.data[start : start+n]
		}
	}
	idx := bytes.Index(s.data[start:], []byte("endstream"))
	if idx < 0 {
		s.pos = len(s.data)
		return s.data[start:]
	}
	end := start + idx
	s.pos = end + len("endstream")
	if end > start && s.data[end-1] == '\n' {
		end--
	}
	if end > start && s.data[end-1] == '\r' {
		end--
	}
	s.skipEndobj()
	return s.data[start:end]
}

func (s *Scanner) skipEndobj() {
	save := s.pos
	tok, err := s.Next()
	if err != nil || tok.Type != TokenKeyword || tok.Str != "endobj" {
		s.pos = save
	}
}
