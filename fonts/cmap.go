package fonts

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sort"
	"unicode/utf16"

	"github.com/wudi/quotekit/contentstream"
	"github.com/wudi/quotekit/ir/raw"
	"github.com/wudi/quotekit/scanner"
)

type codespace struct {
	n      int
	lo, hi uint32
}

type bfRange struct {
	lo, hi uint32
	dst    []uint16 // UTF-16 of lo's mapping; the last unit increments
	list   []string // explicit per-code mapping when given as an array
}

// CMap is a parsed ToUnicode (or encoding) CMap: codespace ranges decide
// how shown bytes split into codes, bfchar/bfrange map codes to text.
type CMap struct {
	spaces []codespace
	chars  map[uint32]string
	ranges []bfRange
}

// ParseCMap reads the codespace, bfchar and bfrange sections of a CMap
// program. Other operators are skipped.
func ParseCMap(data []byte) (*CMap, error) {
	c := &CMap{chars: make(map[uint32]string)}
	s := scanner.New(data)
	for {
		tok, err := s.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("cmap: %w", err)
		}
		if tok.Type != scanner.TokenKeyword {
			continue
		}
		switch tok.Str {
		case "begincodespacerange":
			if err := c.readCodespace(s); err != nil {
				return nil, err
			}
		case "beginbfchar":
			if err := c.readBFChar(s); err != nil {
				return nil, err
			}
		case "beginbfrange":
			if err := c.readBFRange(s); err != nil {
				return nil, err
			}
		}
	}
	if len(c.chars) == 0 && len(c.ranges) == 0 && len(c.spaces) == 0 {
		return nil, errors.New("cmap: no mappings")
	}
	return c, nil
}

// readSection collects operands until the end keyword.
func readSection(s *scanner.Scanner, end string) ([]raw.Object, error) {
	var out []raw.Object
	for {
		tok, err := s.Next()
		if err != nil {
			return nil, fmt.Errorf("cmap: missing %s: %w", end, err)
		}
		if tok.Type == scanner.TokenKeyword && tok.Str == end {
			return out, nil
		}
		obj, err := s.ObjectFrom(tok)
		if err != nil {
			return nil, fmt.Errorf("cmap: %w", err)
		}
		out = append(out, obj)
	}
}

func (c *CMap) readCodespace(s *scanner.Scanner) error {
	objs, err := readSection(s, "endcodespacerange")
	if err != nil {
		return err
	}
	for i := 0; i+1 < len(objs); i += 2 {
		lo, ok1 := objs[i].(raw.StringObj)
		hi, ok2 := objs[i+1].(raw.StringObj)
		if !ok1 || !ok2 || len(lo.Bytes) == 0 || len(lo.Bytes) > 4 {
			continue
		}
		c.spaces = append(c.spaces, codespace{n: len(lo.Bytes), lo: codeOf(lo.Bytes), hi: codeOf(hi.Bytes)})
	}
	return nil
}

func (c *CMap) readBFChar(s *scanner.Scanner) error {
	objs, err := readSection(s, "endbfchar")
	if err != nil {
		return err
	}
	for i := 0; i+1 < len(objs); i += 2 {
		src, ok := objs[i].(raw.StringObj)
		if !ok {
			continue
		}
		switch dst := objs[i+1].(type) {
		case raw.StringObj:
			c.chars[codeOf(src.Bytes)] = utf16String(dst.Bytes)
		case raw.NameObj:
			if r, ok := GlyphRune(dst.Val); ok {
				c.chars[codeOf(src.Bytes)] = string(r)
			}
		}
	}
	return nil
}

func (c *CMap) readBFRange(s *scanner.Scanner) error {
	objs, err := readSection(s, "endbfrange")
	if err != nil {
		return err
	}
	for i := 0; i+2 < len(objs); i += 3 {
		lo, ok1 := objs[i].(raw.StringObj)
		hi, ok2 := objs[i+1].(raw.StringObj)
		if !ok1 || !ok2 {
			continue
		}
		r := bfRange{lo: codeOf(lo.Bytes), hi: codeOf(hi.Bytes)}
		if r.hi < r.lo {
			continue
		}
		switch dst := objs[i+2].(type) {
		case raw.StringObj:
			r.dst = utf16Units(dst.Bytes)
			if len(r.dst) == 0 {
				continue
			}
		case *raw.ArrayObj:
			for _, item := range dst.Items {
				if str, ok := item.(raw.StringObj); ok {
					r.list = append(r.list, utf16String(str.Bytes))
				} else {
					r.list = append(r.list, "")
				}
			}
		default:
			continue
		}
		c.ranges = append(c.ranges, r)
	}
	return nil
}

// Lookup returns the text mapped to code.
func (c *CMap) Lookup(code uint32) (string, bool) {
	if s, ok := c.chars[code]; ok {
		return s, true
	}
	for _, r := range c.ranges {
		if code < r.lo || code > r.hi {
			continue
		}
		off := code - r.lo
		if r.list != nil {
			if int(off) < len(r.list) && r.list[off] != "" {
				return r.list[off], true
			}
			return "", false
		}
		units := append([]uint16(nil), r.dst...)
		units[len(units)-1] += uint16(off)
		return string(utf16.Decode(units)), true
	}
	return "", false
}

// Codes splits s by the codespace ranges. Bytes matching no range are
// consumed with the shortest declared length.
func (c *CMap) Codes(s []byte) []contentstream.CharCode {
	if len(c.spaces) == 0 {
		return fixedCodes(s, 1)
	}
	minLen := 4
	for _, sp := range c.spaces {
		if sp.n < minLen {
			minLen = sp.n
		}
	}
	var out []contentstream.CharCode
	for i := 0; i < len(s); {
		matched := false
		for n := 1; n <= 4 && i+n <= len(s); n++ {
			code := codeOf(s[i : i+n])
			if c.inSpace(n, code) {
				out = append(out, contentstream.CharCode{Code: code, Len: n})
				i += n
				matched = true
				break
			}
		}
		if !matched {
			n := minLen
			if i+n > len(s) {
				n = len(s) - i
			}
			out = append(out, contentstream.CharCode{Code: codeOf(s[i : i+n]), Len: n})
			i += n
		}
	}
	return out
}

func (c *CMap) inSpace(n int, code uint32) bool {
	for _, sp := range c.spaces {
		if sp.n == n && code >= sp.lo && code <= sp.hi {
			return true
		}
	}
	return false
}

func fixedCodes(s []byte, n int) []contentstream.CharCode {
	out := make([]contentstream.CharCode, 0, len(s)/n+1)
	for i := 0; i < len(s); i += n {
		end := i + n
		if end > len(s) {
			end = len(s)
		}
		out = append(out, contentstream.CharCode{Code: codeOf(s[i:end]), Len: end - i})
	}
	return out
}

func codeOf(b []byte) uint32 {
	var v uint32
	for _, c := range b {
		v = v<<8 | uint32(c)
	}
	return v
}

func utf16Units(b []byte) []uint16 {
	units := make([]uint16, 0, len(b)/2)
	for i := 0; i+1 < len(b); i += 2 {
		units = append(units, uint16(b[i])<<8|uint16(b[i+1]))
	}
	return units
}

func utf16String(b []byte) string {
	if len(b) == 1 {
		return string(rune(b[0]))
	}
	return string(utf16.Decode(utf16Units(b)))
}

// BuildToUnicode writes a ToUnicode CMap for two-byte codes.
func BuildToUnicode(mapping map[uint32]string) []byte {
	codes := make([]uint32, 0, len(mapping))
	for code := range mapping {
		codes = append(codes, code)
	}
	sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })

	var buf bytes.Buffer
	buf.WriteString("/CIDInit /ProcSet findresource begin\n12 dict begin\nbegincmap\n")
	buf.WriteString("/CIDSystemInfo << /Registry (Adobe) /Ordering (UCS) /Supplement 0 >> def\n")
	buf.WriteString("/CMapName /Adobe-Identity-UCS def\n/CMapType 2 def\n")
	buf.WriteString("1 begincodespacerange\n<0000> <FFFF>\nendcodespacerange\n")
	for start := 0; start < len(codes); start += 100 {
		end := start + 100
		if end > len(codes) {
			end = len(codes)
		}
		fmt.Fprintf(&buf, "%d beginbfchar\n", end-start)
		for _, code := range codes[start:end] {
			fmt.Fprintf(&buf, "<%04X> <", code)
			for _, u := range utf16.Encode([]rune(mapping[code])) {
				fmt.Fprintf(&buf, "%04X", u)
			}
			buf.WriteString(">\n")
		}
		buf.WriteString("endbfchar\n")
	}
	buf.WriteString("endcmap\nCMapName currentdict /CMap defineresource pop\nend\nend\n")
	return buf.Bytes()
}
