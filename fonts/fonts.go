package fonts

import (
	"errors"
	"strings"

	"github.com/wudi/quotekit/contentstream"
)

var ErrUnknownFont = errors.New("unknown font")

// Font is a font resource as seen by text extraction and layout: the
// tracer's metrics plus a mapping from character codes back to text.
type Font interface {
	contentstream.Font
	BaseFont() string
	// Decode maps one character code to Unicode text, "" when unknown.
	Decode(code uint32) string
}

// Encoder is a Font that can show arbitrary text.
type Encoder interface {
	Font
	Encode(text string) []byte
}

// DecodeString converts shown bytes to text.
func DecodeString(f Font, s []byte) string {
	var b strings.Builder
	for _, c := range f.Codes(s) {
		b.WriteString(f.Decode(c.Code))
	}
	return b.String()
}

// StringWidth is the advance of text shown at size, in text space units.
func StringWidth(f Encoder, text string, size float64) float64 {
	total := 0.0
	for _, c := range f.Codes(f.Encode(text)) {
		total += f.Width(c.Code)
	}
	return total * size / 1000
}

// stripSubset removes a subset tag such as "ABCDEF+".
func stripSubset(name string) string {
	if len(name) > 7 && name[6] == '+' {
		for i := 0; i < 6; i++ {
			if name[i] < 'A' || name[i] > 'Z' {
				return name
			}
		}
		return name[7:]
	}
	return name
}
