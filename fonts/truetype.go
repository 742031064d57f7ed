package fonts

import (
	"fmt"
	"math"
	"sort"
	"strings"

	xfont "golang.org/x/image/font"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"

	"github.com/wudi/quotekit/contentstream"
	"github.com/wudi/quotekit/ir/raw"
)

// TrueType is a TrueType/OpenType font embedded whole as a Type0 font with
// Identity-H encoding: shown codes are glyph IDs. Text encoded through it
// is remembered so the ToUnicode map covers every glyph that was shown.
type TrueType struct {
	name    string
	data    []byte
	font    *sfnt.Font
	widths  map[int]int
	dw      float64
	ascent  float64
	descent float64
	capH    float64
	bbox    [4]float64
	italic  float64
	used    map[uint32]string
}

// LoadTrueType parses a TrueType/OpenType font and extracts its metrics.
func LoadTrueType(name string, data []byte) (*TrueType, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("truetype font data is empty")
	}
	font, err := sfnt.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse truetype: %w", err)
	}
	unitsPerEm := font.UnitsPerEm()
	if unitsPerEm == 0 {
		return nil, fmt.Errorf("invalid unitsPerEm")
	}
	buf := &sfnt.Buffer{}
	ppem := fixed.Int26_6(unitsPerEm << 6)

	baseName := strings.TrimSpace(name)
	if ps, _ := font.Name(buf, sfnt.NameIDPostScript); len(ps) > 0 {
		baseName = ps
	}
	if baseName == "" {
		baseName = "CustomTT"
	}
	baseName = strings.ReplaceAll(baseName, " ", "")

	t := &TrueType{
		name:   baseName,
		data:   data,
		font:   font,
		widths: glyphWidths(font, buf, unitsPerEm, ppem),
		used:   make(map[uint32]string),
	}
	t.dw = float64(t.widths[0])
	if t.dw == 0 {
		t.dw = 1000
	}
	metrics, _ := font.Metrics(buf, ppem, xfont.HintingNone)
	bounds, _ := font.Bounds(buf, ppem, xfont.HintingNone)
	// sfnt reports descent as a positive distance below the baseline
	t.ascent = scaleFixed(metrics.Ascent, unitsPerEm)
	t.descent = -scaleFixed(metrics.Descent, unitsPerEm)
	t.capH = scaleFixed(metrics.CapHeight, unitsPerEm)
	if t.capH == 0 {
		t.capH = t.ascent
	}
	// font.Bounds uses a y-down coordinate system
	t.bbox = [4]float64{
		scaleFixed(bounds.Min.X, unitsPerEm),
		-scaleFixed(bounds.Max.Y, unitsPerEm),
		scaleFixed(bounds.Max.X, unitsPerEm),
		-scaleFixed(bounds.Min.Y, unitsPerEm),
	}
	if post := font.PostTable(); post != nil {
		t.italic = post.ItalicAngle
	}
	return t, nil
}

func glyphWidths(font *sfnt.Font, buf *sfnt.Buffer, unitsPerEm sfnt.Units, ppem fixed.Int26_6) map[int]int {
	glyphs := font.NumGlyphs()
	widths := make(map[int]int, glyphs)
	for i := 0; i < glyphs; i++ {
		adv, err := font.GlyphAdvance(buf, sfnt.GlyphIndex(i), ppem, xfont.HintingNone)
		if err != nil {
			continue
		}
		widths[i] = int(math.Round(scaleFixed(adv, unitsPerEm)))
	}
	return widths
}

func scaleFixed(val fixed.Int26_6, unitsPerEm sfnt.Units) float64 {
	return float64(val) * 1000.0 / (64.0 * float64(unitsPerEm))
}

func (t *TrueType) BaseFont() string { return t.name }

func (t *TrueType) Codes(s []byte) []contentstream.CharCode { return fixedCodes(s, 2) }

func (t *TrueType) Width(gid uint32) float64 {
	if w, ok := t.widths[int(gid)]; ok {
		return float64(w)
	}
	return t.dw
}

func (t *TrueType) Bounds() (float64, float64) { return t.descent, t.ascent }

func (t *TrueType) Decode(gid uint32) string { return t.used[gid] }

// Encode shapes text and returns the glyph IDs as big-endian pairs. When
// shaping is unavailable each rune maps through the cmap table.
func (t *TrueType) Encode(text string) []byte {
	runes := []rune(text)
	glyphs, err := ShapeText(text, t)
	if err != nil || len(glyphs) == 0 {
		glyphs = t.cmapGlyphs(runes)
	}
	out := make([]byte, 0, 2*len(glyphs))
	for i, g := range glyphs {
		gid := uint32(g.ID)
		if _, seen := t.used[gid]; !seen {
			t.used[gid] = clusterText(runes, glyphs, i)
		}
		out = append(out, byte(gid>>8), byte(gid))
	}
	return out
}

// clusterText is the text a glyph stands for: the runes from its cluster
// up to the next cluster.
func clusterText(runes []rune, glyphs []ShapedGlyph, i int) string {
	start := glyphs[i].Cluster
	if start < 0 || start >= len(runes) {
		return ""
	}
	if i > 0 && glyphs[i-1].Cluster == start {
		return ""
	}
	end := len(runes)
	for _, g := range glyphs {
		if g.Cluster > start && g.Cluster < end {
			end = g.Cluster
		}
	}
	return string(runes[start:end])
}

func (t *TrueType) cmapGlyphs(runes []rune) []ShapedGlyph {
	buf := &sfnt.Buffer{}
	out := make([]ShapedGlyph, 0, len(runes))
	for i, r := range runes {
		gid, err := t.font.GlyphIndex(buf, r)
		if err != nil {
			gid = 0
		}
		out = append(out, ShapedGlyph{ID: int(gid), Cluster: i, XAdvance: t.Width(uint32(gid))})
	}
	return out
}

// Dict builds the Type0 font dictionary with its descendant CIDFontType2,
// descriptor, embedded FontFile2 and ToUnicode map. Supporting objects are
// added to doc. Call it after all text has been encoded.
func (t *TrueType) Dict(doc *raw.Document) *raw.DictObj {
	fontFile := raw.NewStream(raw.Dict(), t.data)
	fontFile.Dict.Set("Length1", raw.NumberInt(int64(len(t.data))))
	fileRef := doc.Add(fontFile)

	flags := int64(32) // nonsymbolic
	if t.italic != 0 {
		flags |= 64
	}
	descriptor := raw.Dict()
	descriptor.Set("Type", raw.NameLiteral("FontDescriptor"))
	descriptor.Set("FontName", raw.NameLiteral(t.name))
	descriptor.Set("Flags", raw.NumberInt(flags))
	descriptor.Set("FontBBox", raw.Numbers(t.bbox[0], t.bbox[1], t.bbox[2], t.bbox[3]))
	descriptor.Set("ItalicAngle", raw.Number(t.italic))
	descriptor.Set("Ascent", raw.Number(math.Round(t.ascent)))
	descriptor.Set("Descent", raw.Number(math.Round(t.descent)))
	descriptor.Set("CapHeight", raw.Number(math.Round(t.capH)))
	descriptor.Set("StemV", raw.NumberInt(80))
	descriptor.Set("FontFile2", fileRef)
	descRef := doc.Add(descriptor)

	sysInfo := raw.Dict()
	sysInfo.Set("Registry", raw.Str([]byte("Adobe")))
	sysInfo.Set("Ordering", raw.Str([]byte("Identity")))
	sysInfo.Set("Supplement", raw.NumberInt(0))

	cid := raw.Dict()
	cid.Set("Type", raw.NameLiteral("Font"))
	cid.Set("Subtype", raw.NameLiteral("CIDFontType2"))
	cid.Set("BaseFont", raw.NameLiteral(t.name))
	cid.Set("CIDSystemInfo", sysInfo)
	cid.Set("FontDescriptor", descRef)
	cid.Set("DW", raw.Number(t.dw))
	cid.Set("W", t.usedWidths())
	cid.Set("CIDToGIDMap", raw.NameLiteral("Identity"))
	cidRef := doc.Add(cid)

	mapping := make(map[uint32]string, len(t.used))
	for gid, s := range t.used {
		if s != "" {
			mapping[gid] = s
		}
	}
	toUnicode := doc.Add(raw.NewStream(raw.Dict(), BuildToUnicode(mapping)))

	font := raw.Dict()
	font.Set("Type", raw.NameLiteral("Font"))
	font.Set("Subtype", raw.NameLiteral("Type0"))
	font.Set("BaseFont", raw.NameLiteral(t.name))
	font.Set("Encoding", raw.NameLiteral("Identity-H"))
	font.Set("DescendantFonts", raw.NewArray(cidRef))
	font.Set("ToUnicode", toUnicode)
	return font
}

// usedWidths writes "gid [w]" pairs for the glyphs that were shown.
func (t *TrueType) usedWidths() *raw.ArrayObj {
	gids := make([]int, 0, len(t.used))
	for gid := range t.used {
		gids = append(gids, int(gid))
	}
	sort.Ints(gids)
	w := raw.NewArray()
	for _, gid := range gids {
		w.Append(raw.NumberInt(int64(gid)))
		w.Append(raw.NewArray(raw.Number(t.Width(uint32(gid)))))
	}
	return w
}
