package fonts

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/encoding/charmap"

	"github.com/wudi/quotekit/contentstream"
)

// Standard is one of the 14 standard Type 1 fonts, shown through
// WinAnsiEncoding. It is never embedded.
type Standard struct {
	name    string
	widths  *widthTable
	ascent  float64
	descent float64
}

type family struct {
	regular, bold   *widthTable
	ascent, descent float64
}

var (
	helveticaFamily = family{helveticaWidths, helveticaBoldWidths, 718, -207}
	timesFamily     = family{timesWidths, timesWidths, 683, -217}
	courierFamily   = family{courierWidths, courierWidths, 629, -157}
)

var standardNames = []string{
	"Helvetica", "Helvetica-Bold", "Helvetica-Oblique", "Helvetica-BoldOblique",
	"Times-Roman", "Times-Bold", "Times-Italic", "Times-BoldItalic",
	"Courier", "Courier-Bold", "Courier-Oblique", "Courier-BoldOblique",
	"Symbol", "ZapfDingbats",
}

// aliases are common names of the metric-compatible system fonts.
var aliases = map[string]string{
	"Arial":                  "Helvetica",
	"ArialMT":                "Helvetica",
	"Arial-BoldMT":           "Helvetica-Bold",
	"Arial,Bold":             "Helvetica-Bold",
	"Arial-ItalicMT":         "Helvetica-Oblique",
	"Arial,Italic":           "Helvetica-Oblique",
	"Arial-BoldItalicMT":     "Helvetica-BoldOblique",
	"TimesNewRoman":          "Times-Roman",
	"TimesNewRomanPSMT":      "Times-Roman",
	"TimesNewRoman,Bold":     "Times-Bold",
	"TimesNewRomanPS-BoldMT": "Times-Bold",
	"CourierNew":             "Courier",
	"CourierNewPSMT":         "Courier",
	"CourierNew,Bold":        "Courier-Bold",
}

// CanonicalStandard resolves name (subset tags and aliases included) to one
// of the standard 14 names.
func CanonicalStandard(name string) (string, bool) {
	name = stripSubset(name)
	if alias, ok := aliases[name]; ok {
		name = alias
	}
	for _, n := range standardNames {
		if n == name {
			return n, true
		}
	}
	return "", false
}

// NewStandard returns the standard font called name.
func NewStandard(name string) (*Standard, error) {
	canonical, ok := CanonicalStandard(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFont, name)
	}
	fam := helveticaFamily
	switch {
	case strings.HasPrefix(canonical, "Times"):
		fam = timesFamily
	case strings.HasPrefix(canonical, "Courier"):
		fam = courierFamily
	}
	widths := fam.regular
	if strings.Contains(canonical, "Bold") {
		widths = fam.bold
	}
	return &Standard{name: canonical, widths: widths, ascent: fam.ascent, descent: fam.descent}, nil
}

// Helvetica is the default font for inserted text.
func Helvetica() *Standard {
	f, _ := NewStandard("Helvetica")
	return f
}

func (f *Standard) BaseFont() string { return f.name }

func (f *Standard) Codes(s []byte) []contentstream.CharCode { return fixedCodes(s, 1) }

func (f *Standard) Width(code uint32) float64 {
	if code > 255 {
		return 0
	}
	return f.widths[code]
}

func (f *Standard) Bounds() (float64, float64) { return f.descent, f.ascent }

func (f *Standard) Decode(code uint32) string {
	if code > 255 || winAnsiEncoding[code] == 0 {
		return ""
	}
	return string(winAnsiEncoding[code])
}

// Encode converts text to WinAnsi bytes. Characters outside the code page
// fall back to their unaccented letter, spaces to 0x20, anything else to
// '?'.
func (f *Standard) Encode(text string) []byte {
	out := make([]byte, 0, len(text))
	for _, r := range text {
		if b, ok := charmap.Windows1252.EncodeRune(r); ok {
			out = append(out, b)
			continue
		}
		if unicode.IsSpace(r) {
			out = append(out, ' ')
			continue
		}
		if base := baseLetter(r); base != r {
			if b, ok := charmap.Windows1252.EncodeRune(base); ok {
				out = append(out, b)
				continue
			}
		}
		out = append(out, '?')
	}
	return out
}
