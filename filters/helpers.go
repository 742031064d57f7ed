package filters

import (
	"errors"

	"github.com/wudi/quotekit/ir/raw"
)

// ExtractFilters reads Filter and DecodeParms entries from a stream
// dictionary. The params slice is index-aligned with the names; filters
// without parameters get a nil entry. doc may be nil when the dictionary
// holds no indirect references.
func ExtractFilters(doc *raw.Document, dict *raw.DictObj) ([]string, []*raw.DictObj) {
	var names []string
	var params []*raw.DictObj

	filterObj, ok := dict.Get("Filter")
	if !ok {
		return names, params
	}
	filterObj = resolve(doc, filterObj)

	switch f := filterObj.(type) {
	case raw.NameObj:
		names = append(names, f.Val)
	case *raw.ArrayObj:
		for _, item := range f.Items {
			if n, ok := resolve(doc, item).(raw.NameObj); ok {
				names = append(names, n.Val)
			}
		}
	}

	if len(names) == 0 {
		return names, params
	}
	params = make([]*raw.DictObj, len(names))
	pObj, ok := dict.Get("DecodeParms")
	if !ok {
		pObj, ok = dict.Get("DP")
	}
	if !ok {
		return names, params
	}
	switch p := resolve(doc, pObj).(type) {
	case *raw.DictObj:
		params[0] = p
	case *raw.ArrayObj:
		for i, item := range p.Items {
			if i >= len(params) {
				break
			}
			if d, ok := resolve(doc, item).(*raw.DictObj); ok {
				params[i] = d
			}
		}
	}
	return names, params
}

func resolve(doc *raw.Document, obj raw.Object) raw.Object {
	if doc == nil {
		return obj
	}
	return doc.Resolve(obj)
}

func intParam(params *raw.DictObj, key string, def int) int {
	v, ok := params.Get(key)
	if !ok {
		return def
	}
	n, ok := v.(raw.NumberObj)
	if !ok {
		return def
	}
	return int(n.Int())
}

// applyPredictor undoes TIFF (2) and PNG (10..15) predictors.
func applyPredictor(data []byte, params *raw.DictObj) ([]byte, error) {
	predictor := intParam(params, "Predictor", 1)
	if predictor <= 1 {
		return data, nil
	}
	colors := intParam(params, "Colors", 1)
	bpc := intParam(params, "BitsPerComponent", 8)
	columns := intParam(params, "Columns", 1)
	if colors < 1 || bpc < 1 || columns < 1 {
		return nil, errors.New("invalid predictor parameters")
	}
	bpp := (colors*bpc + 7) / 8
	rowLen := (colors*bpc*columns + 7) / 8

	if predictor == 2 {
		if bpc != 8 {
			return data, nil
		}
		out := make([]byte, len(data))
		copy(out, data)
		for row := 0; row+rowLen <= len(out); row += rowLen {
			for i := bpp; i < rowLen; i++ {
				out[row+i] += out[row+i-bpp]
			}
		}
		return out, nil
	}

	out := make([]byte, 0, len(data))
	prev := make([]byte, rowLen)
	for pos := 0; pos < len(data); {
		ft := data[pos]
		pos++
		end := pos + rowLen
		if end > len(data) {
			end = len(data)
		}
		cur := make([]byte, rowLen)
		copy(cur, data[pos:end])
		pos = end
		for i := 0; i < rowLen; i++ {
			var left, upLeft byte
			if i >= bpp {
				left = cur[i-bpp]
				upLeft = prev[i-bpp]
			}
			up := prev[i]
			switch ft {
			case 0:
			case 1:
				cur[i] += left
			case 2:
				cur[i] += up
			case 3:
				cur[i] += byte((int(left) + int(up)) / 2)
			case 4:
				cur[i] += paeth(left, up, upLeft)
			default:
				return nil, errors.New("unknown PNG filter type")
			}
		}
		out = append(out, cur...)
		prev = cur
	}
	return out, nil
}

func paeth(a, b, c byte) byte {
	p := int(a) + int(b) - int(c)
	pa, pb, pc := abs(p-int(a)), abs(p-int(b)), abs(p-int(c))
	switch {
	case pa <= pb && pa <= pc:
		return a
	case pb <= pc:
		return b
	}
	return c
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// lzwDecode implements the PDF flavour of LZW: MSB-first codes of 9 to 12
// bits with clear (256) and end-of-data (257) codes. With early change the
// code width grows one code sooner than in TIFF.
func lzwDecode(in []byte, early bool) ([]byte, error) {
	const (
		clearCode = 256
		eodCode   = 257
	)
	var (
		out    []byte
		table  [][]byte
		width  = 9
		bitBuf uint32
		nbits  int
		prev   []byte
	)
	reset := func() {
		table = table[:0]
		for i := 0; i < 256; i++ {
			table = append(table, []byte{byte(i)})
		}
		table = append(table, nil, nil)
		width = 9
		prev = nil
	}
	reset()
	offset := 0
	if early {
		offset = 1
	}
	for i := 0; ; {
		for nbits < width && i < len(in) {
			bitBuf = bitBuf<<8 | uint32(in[i])
			nbits += 8
			i++
		}
		if nbits < width {
			return out, nil
		}
		code := int(bitBuf>>(nbits-width)) & (1<<width - 1)
		nbits -= width
		switch {
		case code == clearCode:
			reset()
			continue
		case code == eodCode:
			return out, nil
		}
		var entry []byte
		switch {
		case code < len(table) && table[code] != nil:
			entry = table[code]
		case code == len(table) && prev != nil:
			entry = append(append([]byte{}, prev...), prev[0])
		default:
			return nil, errors.New("lzw: invalid code")
		}
		out = append(out, entry...)
		if prev != nil && len(table) < 4096 {
			next := make([]byte, len(prev)+1)
			copy(next, prev)
			next[len(prev)] = entry[0]
			table = append(table, next)
		}
		prev = entry
		if len(table)+offset >= 1<<width && width < 12 {
			width++
		}
	}
}
