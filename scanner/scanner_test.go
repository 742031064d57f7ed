package scanner

import (
	"errors"
	"io"
	"testing"

	"github.com/wudi/quotekit/ir/raw"
)

func collect(t *testing.T, input string) []Token {
	t.Helper()
	s := New([]byte(input))
	var toks []Token
	for {
		tok, err := s.Next()
		if errors.Is(err, io.EOF) {
			return toks
		}
		if err != nil {
			t.Fatalf("next: %v", err)
		}
		toks = append(toks, tok)
	}
}

func TestScannerTokens(t *testing.T) {
	toks := collect(t, "<< /Type /Page /Count 3 /Scale -1.5 >> [true null] % comment\n BT")
	want := []TokenType{TokenDict, TokenName, TokenName, TokenName, TokenNumber, TokenName, TokenNumber, TokenKeyword, TokenArray, TokenBoolean, TokenNull, TokenKeyword, TokenKeyword}
	if len(toks) != len(want) {
		t.Fatalf("expected %d tokens, got %d: %+v", len(want), len(toks), toks)
	}
	for i, tok := range toks {
		if tok.Type != want[i] {
			t.Fatalf("token %d: expected type %v, got %v (%q)", i, want[i], tok.Type, tok.Str)
		}
	}
	if toks[6].IsInt || toks[6].Float != -1.5 {
		t.Fatalf("expected real -1.5, got %+v", toks[6])
	}
	if toks[12].Str != "BT" {
		t.Fatalf("expected BT keyword, got %q", toks[12].Str)
	}
}

func TestScannerLiteralStringEscapes(t *testing.T) {
	toks := collect(t, `(a\(b\)c\n\101 (nested)\
x)`)
	if len(toks) != 1 {
		t.Fatalf("expected one token, got %d", len(toks))
	}
	if got := string(toks[0].Bytes); got != "a(b)c\nA (nested)x" {
		t.Fatalf("unexpected string %q", got)
	}
}

func TestScannerHexStringAndName(t *testing.T) {
	toks := collect(t, "<48 65 6C6C 6F7> /A#20B")
	if got := string(toks[0].Bytes); got != "Hellop" {
		t.Fatalf("unexpected hex string %q", got)
	}
	if !toks[0].Hex {
		t.Fatalf("hex flag not set")
	}
	if toks[1].Str != "A B" {
		t.Fatalf("unexpected name %q", toks[1].Str)
	}
}

func TestReadObjectReferences(t *testing.T) {
	s := New([]byte("<< /Pages 2 0 R /Kids [3 0 R 4 0 R] /N 5 >>"))
	obj, err := s.ReadObject()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	dict := obj.(*raw.DictObj)
	if ref, ok := dict.KV["Pages"].(raw.RefObj); !ok || ref.R.Num != 2 {
		t.Fatalf("Pages not a reference: %#v", dict.KV["Pages"])
	}
	kids := dict.KV["Kids"].(*raw.ArrayObj)
	if kids.Len() != 2 {
		t.Fatalf("expected 2 kids, got %d", kids.Len())
	}
	if n, ok := dict.KV["N"].(raw.NumberObj); !ok || n.Int() != 5 {
		t.Fatalf("unexpected N: %#v", dict.KV["N"])
	}
}

func TestReadIndirectStream(t *testing.T) {
	src := "7 0 obj\n<< /Length 5 >>\nstream\nhello\nendstream\nendobj\n"
	s := New([]byte(src))
	ref, obj, err := s.ReadIndirect(nil)
	if err != nil {
		t.Fatalf("read indirect: %v", err)
	}
	if ref.Num != 7 {
		t.Fatalf("unexpected ref %v", ref)
	}
	stream, ok := obj.(*raw.StreamObj)
	if !ok {
		t.Fatalf("expected stream, got %T", obj)
	}
	if string(stream.Data) != "hello" {
		t.Fatalf("unexpected data %q", stream.Data)
	}
}

func TestReadIndirectWrongLength(t *testing.T) {
	src := "1 0 obj\n<< /Length 99 >>\nstream\r\nabc\r\nendstream\nendobj\n"
	_, obj, err := New([]byte(src)).ReadIndirect(nil)
	if err != nil {
		t.Fatalf("read indirect: %v", err)
	}
	if got := string(obj.(*raw.StreamObj).Data); got != "abc" {
		t.Fatalf("unexpected data %q", got)
	}
}

func TestReadInlineImage(t *testing.T) {
	s := New([]byte("ID \x01\x02EIx\x03 EI Q"))
	if tok, _ := s.Next(); tok.Str != "ID" {
		t.Fatalf("expected ID, got %q", tok.Str)
	}
	data, err := s.ReadInlineImage()
	if err != nil {
		t.Fatalf("inline image: %v", err)
	}
	if string(data) != "\x01\x02EIx\x03" {
		t.Fatalf("unexpected data %q", data)
	}
	tok, _ := s.Next()
	if tok.Str != "Q" {
		t.Fatalf("expected Q after image, got %q", tok.Str)
	}
}
