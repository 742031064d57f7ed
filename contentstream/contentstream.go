package contentstream

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/wudi/quotekit/ir/raw"
	"github.com/wudi/quotekit/scanner"
	"github.com/wudi/quotekit/writer"
)

// Parse splits a content stream into operations. Stray delimiters are
// dropped; operands left over at the end are discarded.
func Parse(data []byte) ([]Operation, error) {
	s := scanner.New(data)
	var ops []Operation
	var operands []raw.Object
	for {
		tok, err := s.Next()
		if errors.Is(err, io.EOF) {
			return ops, nil
		}
		if err != nil {
			return ops, err
		}
		if tok.Type != scanner.TokenKeyword {
			obj, err := s.ObjectFrom(tok)
			if err != nil {
				return ops, err
			}
			operands = append(operands, obj)
			continue
		}
		switch tok.Str {
		case "]", ">>", ">", ")", "{", "}":
			continue
		case "BI":
			img, err := readInlineImage(s)
			if err != nil {
				return ops, err
			}
			ops = append(ops, Operation{Operator: "BI", Inline: img})
			operands = nil
			continue
		}
		ops = append(ops, Operation{Operator: tok.Str, Operands: operands})
		operands = nil
	}
}

func readInlineImage(s *scanner.Scanner) (*InlineImage, error) {
	dict := raw.Dict()
	for {
		tok, err := s.Next()
		if err != nil {
			return nil, fmt.Errorf("inline image: %w", err)
		}
		if tok.Type == scanner.TokenKeyword && tok.Str == "ID" {
			break
		}
		if tok.Type != scanner.TokenName {
			continue
		}
		val, err := s.ReadObject()
		if err != nil {
			return nil, fmt.Errorf("inline image /%s: %w", tok.Str, err)
		}
		dict.Set(tok.Str, val)
	}
	data, err := s.ReadInlineImage()
	if err != nil {
		return nil, err
	}
	return &InlineImage{Dict: dict, Data: append([]byte(nil), data...)}, nil
}

// Serialize renders operations back to content-stream syntax, one per line.
func Serialize(ops []Operation) []byte {
	var buf bytes.Buffer
	for _, op := range ops {
		if op.Inline != nil {
			buf.WriteString("BI")
			for _, k := range op.Inline.Dict.Keys() {
				buf.WriteString(" ")
				buf.Write(writer.SerializeObject(raw.NameLiteral(k)))
				buf.WriteString(" ")
				buf.Write(writer.SerializeObject(op.Inline.Dict.KV[k]))
			}
			buf.WriteString(" ID ")
			buf.Write(op.Inline.Data)
			buf.WriteString("\nEI\n")
			continue
		}
		for _, operand := range op.Operands {
			buf.Write(writer.SerializeObject(operand))
			buf.WriteByte(' ')
		}
		buf.WriteString(op.Operator)
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

// Balance returns how many q operators are left unmatched by Q.
func Balance(ops []Operation) int {
	depth := 0
	for _, op := range ops {
		switch op.Operator {
		case "q":
			depth++
		case "Q":
			if depth > 0 {
				depth--
			}
		}
	}
	return depth
}
