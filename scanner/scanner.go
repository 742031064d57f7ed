package scanner

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
)

type TokenType int

const (
	TokenDict    TokenType = iota // '<<'
	TokenArray                    // '['
	TokenName                     // '/Name'
	TokenString                   // literal or hex string
	TokenNumber                   // numeric value
	TokenBoolean                  // true/false
	TokenNull                     // null
	TokenKeyword                  // other keywords (obj, endobj, stream, >>, ], operators)
)

// Token is a lexical unit. Only the fields relevant to Type are populated.
type Token struct {
	Type  TokenType
	Str   string // name (without slash) or keyword
	Bytes []byte // decoded string bytes
	Hex   bool   // string written in hex notation
	Int   int64
	Float float64
	IsInt bool
	Bool  bool
	Pos   int
}

// Scanner tokenizes PDF syntax held in memory. It is used both for file
// structure and for content streams.
type Scanner struct {
	data []byte
	pos  int
}

// New returns a scanner positioned at the start of data.
func New(data []byte) *Scanner { return &Scanner{data: data} }

func (s *Scanner) Position() int { return s.pos }
func (s *Scanner) Data() []byte  { return s.data }

func (s *Scanner) Seek(offset int) error {
	if offset < 0 || offset > len(s.data) {
		return fmt.Errorf("seek %d out of range", offset)
	}
	s.pos = offset
	return nil
}

// Next returns the next token or io.EOF.
func (s *Scanner) Next() (Token, error) {
	s.skipWSAndComments()
	if s.pos >= len(s.data) {
		return Token{}, io.EOF
	}
	start := s.pos
	c := s.data[s.pos]
	switch c {
	case '<':
		if s.peek(1) == '<' {
			s.pos += 2
			return Token{Type: TokenDict, Str: "<<", Pos: start}, nil
		}
		return s.scanHexString()
	case '>':
		if s.peek(1) == '>' {
			s.pos += 2
			return Token{Type: TokenKeyword, Str: ">>", Pos: start}, nil
		}
		s.pos++
		return Token{Type: TokenKeyword, Str: ">", Pos: start}, nil
	case '[':
		s.pos++
		return Token{Type: TokenArray, Str: "[", Pos: start}, nil
	case ']', '{', '}':
		s.pos++
		return Token{Type: TokenKeyword, Str: string(c), Pos: start}, nil
	case '(':
		return s.scanLiteralString()
	case '/':
		return s.scanName(), nil
	case ')':
		s.pos++
		return Token{Type: TokenKeyword, Str: ")", Pos: start}, nil
	}
	if isDigitStart(c) {
		return s.scanNumber(), nil
	}
	return s.scanKeyword(), nil
}

// Peek returns the next token without consuming it.
func (s *Scanner) Peek() (Token, error) {
	pos := s.pos
	tok, err := s.Next()
	s.pos = pos
	return tok, err
}

// SkipEOL consumes a single end-of-line marker (CRLF, LF or CR).
func (s *Scanner) SkipEOL() {
	if s.pos < len(s.data) && s.data[s.pos] == '\r' {
		s.pos++
	}
	if s.pos < len(s.data) && s.data[s.pos] == '\n' {
		s.pos++
	}
}

// ReadInlineImage reads inline image data following the ID operator up to
// the EI operator, which is consumed. EI must be delimited by whitespace on
// both sides to count as the terminator.
func (s *Scanner) ReadInlineImage() ([]byte, error) {
	if s.pos < len(s.data) && isWhitespace(s.data[s.pos]) {
		s.pos++
	}
	start := s.pos
	for i := start; i+1 < len(s.data); i++ {
		if s.data[i] != 'E' || s.data[i+1] != 'I' {
			continue
		}
		if i > start && !isWhitespace(s.data[i-1]) {
			continue
		}
		if i+2 < len(s.data) && !isWhitespace(s.data[i+2]) && !isDelimiter(s.data[i+2]) {
			continue
		}
		end := i
		if end > start && isWhitespace(s.data[end-1]) {
			end--
		}
		s.pos = i + 2
		return s.data[start:end], nil
	}
	return nil, errors.New("inline image: missing EI")
}

func (s *Scanner) peek(n int) byte {
	if s.pos+n >= len(s.data) {
		return 0
	}
	return s.data[s.pos+n]
}

func (s *Scanner) skipWSAndComments() {
	for s.pos < len(s.data) {
		c := s.data[s.pos]
		if isWhitespace(c) {
			s.pos++
			continue
		}
		if c == '%' {
			for s.pos < len(s.data) && !isEOL(s.data[s.pos]) {
				s.pos++
			}
			continue
		}
		return
	}
}

func (s *Scanner) scanName() Token {
	start := s.pos
	s.pos++ // skip '/'
	var out bytes.Buffer
	for s.pos < len(s.data) {
		c := s.data[s.pos]
		if isWhitespace(c) || isDelimiter(c) {
			break
		}
		if c == '#' && s.pos+2 < len(s.data) && isHex(s.data[s.pos+1]) && isHex(s.data[s.pos+2]) {
			out.WriteByte(fromHex(s.data[s.pos+1])<<4 | fromHex(s.data[s.pos+2]))
			s.pos += 3
			continue
		}
		out.WriteByte(c)
		s.pos++
	}
	return Token{Type: TokenName, Str: out.String(), Pos: start}
}

func (s *Scanner) scanLiteralString() (Token, error) { /* PDF 7.3.4.2 */
	start := s.pos
	s.pos++ // skip '('
	var buf bytes.Buffer
	depth := 1
	for s.pos < len(s.data) {
		c := s.data[s.pos]
		switch c {
		case '\\':
			s.pos++
			if s.pos >= len(s.data) {
				continue
			}
			esc := s.data[s.pos]
			switch {
			case esc == '\r':
				s.pos++
				if s.pos < len(s.data) && s.data[s.pos] == '\n' {
					s.pos++
				}
			case esc == '\n':
				s.pos++
			case esc >= '0' && esc <= '7':
				val := 0
				for k := 0; k < 3 && s.pos < len(s.data); k++ {
					d := s.data[s.pos]
					if d < '0' || d > '7' {
						break
					}
					val = val<<3 + int(d-'0')
					s.pos++
				}
				buf.WriteByte(byte(val))
			default:
				buf.WriteByte(translateEscape(esc))
				s.pos++
			}
			continue
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				s.pos++
				return Token{Type: TokenString, Bytes: buf.Bytes(), Pos: start}, nil
			}
		case '\r':
			// unescaped EOL in a literal string reads as a single LF
			buf.WriteByte('\n')
			s.pos++
			if s.pos < len(s.data) && s.data[s.pos] == '\n' {
				s.pos++
			}
			continue
		}
		buf.WriteByte(c)
		s.pos++
	}
	return Token{}, fmt.Errorf("unterminated string at offset %d", start)
}

func (s *Scanner) scanHexString() (Token, error) {
	start := s.pos
	s.pos++ // skip '<'
	var digits []byte
	for s.pos < len(s.data) {
		c := s.data[s.pos]
		s.pos++
		if c == '>' {
			if len(digits)%2 == 1 {
				digits = append(digits, '0')
			}
			out := make([]byte, len(digits)/2)
			for i := range out {
				out[i] = fromHex(digits[2*i])<<4 | fromHex(digits[2*i+1])
			}
			return Token{Type: TokenString, Bytes: out, Hex: true, Pos: start}, nil
		}
		if isHex(c) {
			digits = append(digits, c)
		}
	}
	return Token{}, fmt.Errorf("unterminated hex string at offset %d", start)
}

func (s *Scanner) scanNumber() Token {
	start := s.pos
	for s.pos < len(s.data) {
		c := s.data[s.pos]
		if isWhitespace(c) || isDelimiter(c) {
			break
		}
		s.pos++
	}
	lit := string(s.data[start:s.pos])
	if i, err := strconv.ParseInt(lit, 10, 64); err == nil {
		return Token{Type: TokenNumber, Int: i, Float: float64(i), IsInt: true, Pos: start}
	}
	f, err := strconv.ParseFloat(normalizeReal(lit), 64)
	if err != nil {
		// Producers occasionally write "--5" or "1.2.3"; read those as zero.
		f = 0
	}
	return Token{Type: TokenNumber, Float: f, Pos: start}
}

func (s *Scanner) scanKeyword() Token {
	start := s.pos
	for s.pos < len(s.data) {
		c := s.data[s.pos]
		if isWhitespace(c) || isDelimiter(c) {
			break
		}
		s.pos++
	}
	if s.pos == start {
		// lone delimiter we do not otherwise handle
		s.pos++
	}
	word := string(s.data[start:s.pos])
	switch word {
	case "true":
		return Token{Type: TokenBoolean, Bool: true, Str: word, Pos: start}
	case "false":
		return Token{Type: TokenBoolean, Bool: false, Str: word, Pos: start}
	case "null":
		return Token{Type: TokenNull, Str: word, Pos: start}
	}
	return Token{Type: TokenKeyword, Str: word, Pos: start}
}

func normalizeReal(lit string) string {
	if lit == "" {
		return "0"
	}
	// strip repeated signs such as "--1"
	for len(lit) > 1 && (lit[0] == '-' || lit[0] == '+') && (lit[1] == '-' || lit[1] == '+') {
		lit = lit[1:]
	}
	return lit
}

func isDigitStart(c byte) bool { return c == '+' || c == '-' || c == '.' || (c >= '0' && c <= '9') }

func isWhitespace(c byte) bool {
	return c == 0x00 || c == 0x09 || c == 0x0A || c == 0x0C || c == 0x0D || c == 0x20
}

func isEOL(c byte) bool { return c == '\r' || c == '\n' }

func isDelimiter(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

func isHex(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func fromHex(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10
	}
	return 0
}

func translateEscape(c byte) byte {
	switch c {
	case 'n':
		return '\n'
	case 'r':
		return '\r'
	case 't':
		return '\t'
	case 'b':
		return '\b'
	case 'f':
		return '\f'
	}
	// \( \) \\ and unknown escapes map to the character itself
	return c
}
