package scanner

import (
	"errors"
	"fmt"
	"io"

	"github.com/wudi/quotekit/ir/raw"
)

const maxNesting = 256

// ErrUnexpectedKeyword reports a keyword where an object was expected.
var ErrUnexpectedKeyword = errors.New("unexpected keyword")

// ReadObject parses the next direct object. Indirect references
// ("12 0 R") are recognised by lookahead.
func (s *Scanner) ReadObject() (raw.Object, error) {
	tok, err := s.Next()
	if err != nil {
		return nil, err
	}
	return s.ObjectFrom(tok)
}

// ObjectFrom completes the object that starts with tok.
func (s *Scanner) ObjectFrom(tok Token) (raw.Object, error) {
	return s.objectFrom(tok, 0)
}

func (s *Scanner) objectFrom(tok Token, depth int) (raw.Object, error) {
	if depth > maxNesting {
		return nil, fmt.Errorf("object nesting exceeds %d at offset %d", maxNesting, tok.Pos)
	}
	switch tok.Type {
	case TokenNumber:
		if tok.IsInt && tok.Int >= 0 {
			if ref, ok := s.tryRef(tok); ok {
				return ref, nil
			}
		}
		if tok.IsInt {
			return raw.NumberInt(tok.Int), nil
		}
		return raw.NumberFloat(tok.Float), nil
	case TokenName:
		return raw.NameObj{Val: tok.Str}, nil
	case TokenString:
		return raw.StringObj{Bytes: tok.Bytes, Hex: tok.Hex}, nil
	case TokenBoolean:
		return raw.Bool(tok.Bool), nil
	case TokenNull:
		return raw.NullObj{}, nil
	case TokenArray:
		arr := &raw.ArrayObj{}
		for {
			next, err := s.Next()
			if err != nil {
				if errors.Is(err, io.EOF) {
					return nil, fmt.Errorf("unterminated array at offset %d", tok.Pos)
				}
				return nil, err
			}
			if next.Type == TokenKeyword && next.Str == "]" {
				return arr, nil
			}
			item, err := s.objectFrom(next, depth+1)
			if err != nil {
				return nil, err
			}
			arr.Items = append(arr.Items, item)
		}
	case TokenDict:
		dict := raw.Dict()
		for {
			key, err := s.Next()
			if err != nil {
				if errors.Is(err, io.EOF) {
					return nil, fmt.Errorf("unterminated dictionary at offset %d", tok.Pos)
				}
				return nil, err
			}
			if key.Type == TokenKeyword && key.Str == ">>" {
				return dict, nil
			}
			if key.Type != TokenName {
				// tolerate junk between entries
				continue
			}
			valTok, err := s.Next()
			if err != nil {
				return nil, fmt.Errorf("dictionary key /%s: %w", key.Str, err)
			}
			if valTok.Type == TokenKeyword && valTok.Str == ">>" {
				dict.Set(key.Str, raw.NullObj{})
				return dict, nil
			}
			val, err := s.objectFrom(valTok, depth+1)
			if err != nil {
				return nil, err
			}
			dict.Set(key.Str, val)
		}
	}
	return nil, fmt.Errorf("%w %q at offset %d", ErrUnexpectedKeyword, tok.Str, tok.Pos)
}

func (s *Scanner) tryRef(num Token) (raw.Object, bool) {
	save := s.pos
	gen, err := s.Next()
	if err != nil || gen.Type != TokenNumber || !gen.IsInt || gen.Int < 0 {
		s.pos = save
		return nil, false
	}
	r, err := s.Next()
	if err != nil || r.Type != TokenKeyword || r.Str != "R" {
		s.pos = save
		return nil, false
	}
	return raw.Ref(int(num.Int), int(gen.Int)), true
}
