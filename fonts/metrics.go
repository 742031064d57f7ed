package fonts

import (
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/unicode/norm"
)

// Advance widths of the printable ASCII range (0x20..0x7E) from the Adobe
// core font AFM files, in glyph space units.
var helveticaASCII = [95]int{
	278, 278, 355, 556, 556, 889, 667, 191, 333, 333, 389, 584, 278, 333, 278, 278,
	556, 556, 556, 556, 556, 556, 556, 556, 556, 556, 278, 278, 584, 584, 584, 556,
	1015, 667, 667, 722, 722, 667, 611, 778, 722, 278, 500, 667, 556, 833, 722, 778,
	667, 778, 722, 667, 611, 722, 667, 944, 667, 667, 611, 278, 278, 278, 469, 556,
	333, 556, 556, 500, 556, 556, 278, 556, 556, 222, 222, 500, 222, 833, 556, 556,
	556, 556, 333, 500, 278, 556, 500, 722, 500, 500, 500, 334, 260, 334, 584,
}

var helveticaBoldASCII = [95]int{
	278, 333, 474, 556, 556, 889, 722, 238, 333, 333, 389, 584, 278, 333, 278, 278,
	556, 556, 556, 556, 556, 556, 556, 556, 556, 556, 333, 333, 584, 584, 584, 611,
	975, 722, 722, 722, 722, 667, 611, 778, 722, 278, 556, 722, 611, 833, 722, 778,
	667, 778, 722, 667, 611, 722, 667, 944, 667, 667, 611, 333, 278, 333, 584, 556,
	333, 556, 611, 556, 611, 556, 333, 611, 611, 278, 278, 556, 278, 889, 611, 611,
	611, 611, 389, 556, 333, 611, 556, 778, 556, 556, 500, 389, 280, 389, 584,
}

var timesASCII = [95]int{
	250, 333, 408, 500, 500, 833, 778, 180, 333, 333, 500, 564, 250, 333, 250, 278,
	500, 500, 500, 500, 500, 500, 500, 500, 500, 500, 278, 278, 564, 564, 564, 444,
	921, 722, 667, 667, 722, 611, 556, 722, 722, 333, 389, 722, 611, 889, 722, 722,
	556, 722, 667, 556, 611, 722, 722, 944, 722, 722, 611, 333, 278, 333, 469, 500,
	333, 444, 500, 444, 500, 444, 333, 500, 500, 278, 278, 500, 278, 778, 500, 500,
	500, 500, 333, 389, 278, 500, 500, 722, 500, 500, 444, 480, 200, 480, 541,
}

// Non-ASCII glyphs whose width differs from their unaccented base letter.
var helveticaExtra = map[rune]int{
	'€': 556, '‚': 222, 'ƒ': 556, '„': 333, '…': 1000, '†': 556, '‡': 556,
	'ˆ': 333, '‰': 1000, '‹': 333, '‘': 222, '’': 222, '“': 333, '”': 333,
	'•': 350, '–': 556, '—': 1000, '˜': 333, '™': 1000, '›': 333,
	'\u00a0': 278, '¡': 333, '¢': 556, '£': 556, '¤': 556, '¥': 556, '¦': 260,
	'§': 556, '¨': 333, '©': 737, 'ª': 370, '«': 556, '¬': 584, '\u00ad': 333,
	'®': 737, '¯': 333, '°': 400, '±': 584, '²': 333, '³': 333, '´': 333,
	'µ': 556, '¶': 537, '·': 278, '¸': 333, '¹': 333, 'º': 365, '»': 556,
	'¼': 834, '½': 834, '¾': 834, '¿': 611, 'Æ': 1000, 'Ð': 722, '×': 584,
	'Ø': 778, 'Þ': 667, 'ß': 611, 'æ': 889, 'ð': 556, '÷': 584, 'ø': 611,
	'þ': 556, 'Œ': 1000, 'œ': 944, 'ı': 278,
}

var helveticaBoldExtra = map[rune]int{
	'€': 556, '‚': 278, 'ƒ': 556, '„': 500, '…': 1000, '†': 556, '‡': 556,
	'ˆ': 333, '‰': 1000, '‹': 333, '‘': 278, '’': 278, '“': 500, '”': 500,
	'•': 350, '–': 556, '—': 1000, '˜': 333, '™': 1000, '›': 333,
	'\u00a0': 278, '¡': 333, '¢': 556, '£': 556, '¤': 556, '¥': 556, '¦': 280,
	'§': 556, '¨': 333, '©': 737, 'ª': 370, '«': 556, '¬': 584, '\u00ad': 333,
	'®': 737, '¯': 333, '°': 400, '±': 584, '²': 333, '³': 333, '´': 333,
	'µ': 611, '¶': 556, '·': 278, '¸': 333, '¹': 333, 'º': 365, '»': 556,
	'¼': 834, '½': 834, '¾': 834, '¿': 611, 'Æ': 1000, 'Ð': 722, '×': 584,
	'Ø': 778, 'Þ': 667, 'ß': 611, 'æ': 889, 'ð': 611, '÷': 584, 'ø': 611,
	'þ': 611, 'Œ': 1000, 'œ': 944, 'ı': 278,
}

var timesExtra = map[rune]int{
	'€': 500, '‚': 333, 'ƒ': 500, '„': 444, '…': 1000, '†': 500, '‡': 500,
	'ˆ': 333, '‰': 1000, '‹': 333, '‘': 333, '’': 333, '“': 444, '”': 444,
	'•': 350, '–': 500, '—': 1000, '˜': 333, '™': 980, '›': 333,
	'\u00a0': 250, '¡': 333, '¢': 500, '£': 500, '¤': 500, '¥': 500, '¦': 200,
	'§': 500, '¨': 333, '©': 760, 'ª': 276, '«': 500, '¬': 564, '\u00ad': 333,
	'®': 760, '¯': 333, '°': 400, '±': 564, '²': 300, '³': 300, '´': 333,
	'µ': 500, '¶': 453, '·': 250, '¸': 333, '¹': 300, 'º': 310, '»': 500,
	'¼': 750, '½': 750, '¾': 750, '¿': 444, 'Æ': 889, 'Ð': 722, '×': 564,
	'Ø': 722, 'Þ': 556, 'ß': 500, 'æ': 667, 'ð': 500, '÷': 564, 'ø': 500,
	'þ': 500, 'Œ': 889, 'œ': 722, 'ı': 278,
}

type widthTable [256]float64

// winAnsiWidths lays the ASCII widths and the extra glyphs out over the
// WinAnsiEncoding code space. Accented letters take the width of their base
// letter.
func winAnsiWidths(ascii *[95]int, extra map[rune]int, fallback int) *widthTable {
	var t widthTable
	for code := 0x20; code < 256; code++ {
		r := charmap.Windows1252.DecodeByte(byte(code))
		t[code] = float64(runeWidth(r, ascii, extra, fallback))
	}
	return &t
}

func runeWidth(r rune, ascii *[95]int, extra map[rune]int, fallback int) int {
	if r >= 0x20 && r <= 0x7E {
		return ascii[r-0x20]
	}
	if w, ok := extra[r]; ok {
		return w
	}
	if base := baseLetter(r); base != r && base >= 0x20 && base <= 0x7E {
		return ascii[base-0x20]
	}
	return fallback
}

// baseLetter strips combining marks: 'é' yields 'e'.
func baseLetter(r rune) rune {
	for _, b := range norm.NFD.String(string(r)) {
		return b
	}
	return r
}

func monoWidths(w float64) *widthTable {
	var t widthTable
	for code := 0x20; code < 256; code++ {
		t[code] = w
	}
	return &t
}

var (
	helveticaWidths     = winAnsiWidths(&helveticaASCII, helveticaExtra, 556)
	helveticaBoldWidths = winAnsiWidths(&helveticaBoldASCII, helveticaBoldExtra, 556)
	timesWidths         = winAnsiWidths(&timesASCII, timesExtra, 500)
	courierWidths       = monoWidths(600)
)
