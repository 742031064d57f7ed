package fonts

import (
	"strconv"
	"strings"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/unicode/norm"

	"github.com/wudi/quotekit/ir/raw"
)

// Encoding maps the single-byte codes of a simple font to Unicode. Zero
// marks an unmapped code.
type Encoding [256]rune

func charmapEncoding(cm *charmap.Charmap) *Encoding {
	var e Encoding
	for code := 0x20; code < 256; code++ {
		r := cm.DecodeByte(byte(code))
		if r == 0xFFFD || (r >= 0x80 && r < 0xA0) {
			continue
		}
		e[code] = r
	}
	return &e
}

var (
	winAnsiEncoding  = charmapEncoding(charmap.Windows1252)
	macRomanEncoding = charmapEncoding(charmap.Macintosh)
	standardEncoding = buildStandardEncoding()
)

func buildStandardEncoding() *Encoding {
	var e Encoding
	for code := 0x20; code < 0x7F; code++ {
		e[code] = rune(code)
	}
	e[0x27] = '’'
	e[0x60] = '‘'
	high := map[int]rune{
		0xA1: '¡', 0xA2: '¢', 0xA3: '£', 0xA4: '⁄', 0xA5: '¥', 0xA6: 'ƒ', 0xA7: '§',
		0xA8: '¤', 0xA9: '\'', 0xAA: '“', 0xAB: '«', 0xAC: '‹', 0xAD: '›', 0xAE: 'ﬁ',
		0xAF: 'ﬂ', 0xB1: '–', 0xB2: '†', 0xB3: '‡', 0xB4: '·', 0xB6: '¶', 0xB7: '•',
		0xB8: '‚', 0xB9: '„', 0xBA: '”', 0xBB: '»', 0xBC: '…', 0xBD: '‰', 0xBF: '¿',
		0xC1: '`', 0xC2: '´', 0xC3: 'ˆ', 0xC4: '˜', 0xC5: '¯', 0xC8: '¨', 0xCB: '¸',
		0xD0: '—', 0xE1: 'Æ', 0xE3: 'ª', 0xE8: 'Ł', 0xE9: 'Ø', 0xEA: 'Œ', 0xEB: 'º',
		0xF1: 'æ', 0xF5: 'ı', 0xF8: 'ł', 0xF9: 'ø', 0xFA: 'œ', 0xFB: 'ß',
	}
	for code, r := range high {
		e[code] = r
	}
	return &e
}

// NamedEncoding returns the predefined simple-font encoding called name.
func NamedEncoding(name string) (*Encoding, bool) {
	switch name {
	case "WinAnsiEncoding":
		return winAnsiEncoding, true
	case "MacRomanEncoding":
		return macRomanEncoding, true
	case "StandardEncoding":
		return standardEncoding, true
	}
	return nil, false
}

// withDifferences returns a copy of base with a /Differences array applied.
func withDifferences(base *Encoding, diffs *raw.ArrayObj) *Encoding {
	e := *base
	code := 0
	for _, item := range diffs.Items {
		switch v := item.(type) {
		case raw.NumberObj:
			code = int(v.Int())
		case raw.NameObj:
			if code >= 0 && code < 256 {
				if r, ok := GlyphRune(v.Val); ok {
					e[code] = r
				} else {
					e[code] = 0
				}
			}
			code++
		}
	}
	return &e
}

var namedGlyphs = map[string]rune{
	"space": ' ', "exclam": '!', "quotedbl": '"', "numbersign": '#', "dollar": '$',
	"percent": '%', "ampersand": '&', "quotesingle": '\'', "quoteright": '’',
	"parenleft": '(', "parenright": ')', "asterisk": '*', "plus": '+', "comma": ',',
	"hyphen": '-', "minus": '−', "period": '.', "slash": '/', "colon": ':',
	"semicolon": ';', "less": '<', "equal": '=', "greater": '>', "question": '?',
	"at": '@', "bracketleft": '[', "backslash": '\\', "bracketright": ']',
	"asciicircum": '^', "underscore": '_', "grave": '`', "quoteleft": '‘',
	"braceleft": '{', "bar": '|', "braceright": '}', "asciitilde": '~',
	"zero": '0', "one": '1', "two": '2', "three": '3', "four": '4', "five": '5',
	"six": '6', "seven": '7', "eight": '8', "nine": '9',
	"Euro": '€', "quotesinglbase": '‚', "florin": 'ƒ', "quotedblbase": '„',
	"ellipsis": '…', "dagger": '†', "daggerdbl": '‡', "circumflex": 'ˆ',
	"perthousand": '‰', "guilsinglleft": '‹', "guilsinglright": '›',
	"quotedblleft": '“', "quotedblright": '”', "bullet": '•', "endash": '–',
	"emdash": '—', "tilde": '˜', "trademark": '™', "nbspace": '\u00a0',
	"exclamdown": '¡', "cent": '¢', "sterling": '£', "currency": '¤', "yen": '¥',
	"brokenbar": '¦', "section": '§', "dieresis": '¨', "copyright": '©',
	"ordfeminine": 'ª', "guillemotleft": '«', "logicalnot": '¬', "registered": '®',
	"macron": '¯', "degree": '°', "plusminus": '±', "twosuperior": '²',
	"threesuperior": '³', "acute": '´', "mu": 'µ', "paragraph": '¶',
	"periodcentered": '·', "cedilla": '¸', "onesuperior": '¹', "ordmasculine": 'º',
	"guillemotright": '»', "onequarter": '¼', "onehalf": '½', "threequarters": '¾',
	"questiondown": '¿', "multiply": '×', "divide": '÷', "germandbls": 'ß',
	"AE": 'Æ', "ae": 'æ', "OE": 'Œ', "oe": 'œ', "Oslash": 'Ø', "oslash": 'ø',
	"Eth": 'Ð', "eth": 'ð', "Thorn": 'Þ', "thorn": 'þ', "dotlessi": 'ı',
	"Lslash": 'Ł', "lslash": 'ł', "fi": 'ﬁ', "fl": 'ﬂ', "fraction": '⁄',
	"sfthyphen": '\u00ad', "uni00A0": '\u00a0', "uni202F": '\u202f',
}

// Suffixes of composed glyph names and the combining mark each denotes.
var accentSuffixes = []struct {
	suffix string
	mark   rune
}{
	{"circumflex", '\u0302'},
	{"dieresis", '\u0308'},
	{"cedilla", '\u0327'},
	{"acute", '\u0301'},
	{"grave", '\u0300'},
	{"tilde", '\u0303'},
	{"caron", '\u030c'},
	{"ring", '\u030a'},
}

// GlyphRune maps a glyph name to its Unicode value: names from the Adobe
// glyph list used by Latin text fonts, accented letters such as "eacute",
// and the uniXXXX/uXXXX forms.
func GlyphRune(name string) (rune, bool) {
	if i := strings.IndexByte(name, '.'); i > 0 {
		name = name[:i]
	}
	if r, ok := namedGlyphs[name]; ok {
		return r, true
	}
	if len(name) == 1 {
		c := name[0]
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') {
			return rune(c), true
		}
	}
	if strings.HasPrefix(name, "uni") && len(name) == 7 {
		if v, err := strconv.ParseUint(name[3:], 16, 32); err == nil {
			return rune(v), true
		}
	}
	if strings.HasPrefix(name, "u") && len(name) >= 5 && len(name) <= 7 {
		if v, err := strconv.ParseUint(name[1:], 16, 32); err == nil {
			return rune(v), true
		}
	}
	for _, a := range accentSuffixes {
		base, ok := strings.CutSuffix(name, a.suffix)
		if !ok || len(base) != 1 {
			continue
		}
		composed := []rune(norm.NFC.String(base + string(a.mark)))
		if len(composed) == 1 {
			return composed[0], true
		}
	}
	return 0, false
}
