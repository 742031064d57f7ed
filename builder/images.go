package builder

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif" // Register decoders
	"image/jpeg"
	_ "image/png"
	"math"
	"os"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/wudi/quotekit/coords"
	"github.com/wudi/quotekit/document"
	"github.com/wudi/quotekit/filters"
	"github.com/wudi/quotekit/ir/raw"
)

// ImageDPI is the resolution an image is reduced to when it is far larger
// than its placement needs.
const ImageDPI = 300

// ErrUnsupportedImage is returned for data no registered decoder accepts.
var ErrUnsupportedImage = errors.New("unsupported image format")

// Image is an image XObject waiting to be stored in a document.
type Image struct {
	Width, Height int
	stream        *raw.StreamObj
	mask          *raw.StreamObj
}

// HasMask reports whether the image carries a soft mask for transparency.
func (img *Image) HasMask() bool { return img.mask != nil }

// Filter is the stream filter of the image data.
func (img *Image) Filter() string {
	name, _ := img.stream.Dict.Name("Filter")
	return name
}

// Add stores the image (and its soft mask) in doc.
func (img *Image) Add(doc *document.Document) raw.RefObj {
	dict := img.stream.Dict.Clone()
	if img.mask != nil {
		maskDict := img.mask.Dict.Clone()
		maskRef := doc.AddImage(raw.NewStream(maskDict, img.mask.Data))
		dict.Set("SMask", maskRef)
	}
	return doc.AddImage(raw.NewStream(dict, img.stream.Data))
}

// ImageFromFile loads an image from a file path. See LoadImage.
func ImageFromFile(path string, target coords.Rect) (*Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return LoadImage(data, target)
}

// LoadImage prepares encoded image data for placement in target. JPEG data
// is embedded unchanged. Other formats are decoded to RGB with a soft mask
// for alpha, and downscaled when they exceed twice what target needs at
// ImageDPI. A zero target disables downscaling.
func LoadImage(data []byte, target coords.Rect) (*Image, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	if format == "jpeg" {
		return jpegImage(data, cfg)
	}
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", format, err)
	}
	return FromImage(downscale(src, target)), nil
}

func jpegImage(data []byte, cfg image.Config) (*Image, error) {
	dict := raw.Dict()
	dict.Set("Width", raw.NumberInt(int64(cfg.Width)))
	dict.Set("Height", raw.NumberInt(int64(cfg.Height)))
	dict.Set("BitsPerComponent", raw.NumberInt(8))
	dict.Set("Filter", raw.NameLiteral("DCTDecode"))
	switch cfg.ColorModel {
	case color.GrayModel:
		dict.Set("ColorSpace", raw.NameLiteral("DeviceGray"))
	case color.CMYKModel:
		// Adobe CMYK JPEGs store inverted components
		dict.Set("ColorSpace", raw.NameLiteral("DeviceCMYK"))
		dict.Set("Decode", raw.Numbers(1, 0, 1, 0, 1, 0, 1, 0))
	default:
		dict.Set("ColorSpace", raw.NameLiteral("DeviceRGB"))
	}
	return &Image{Width: cfg.Width, Height: cfg.Height, stream: raw.NewStream(dict, data)}, nil
}

// downscale reduces src when it is more than twice the pixel size target
// needs at ImageDPI.
func downscale(src image.Image, target coords.Rect) image.Image {
	if target.Empty() {
		return src
	}
	b := src.Bounds()
	maxW := target.Width() / 72 * ImageDPI
	maxH := target.Height() / 72 * ImageDPI
	if float64(b.Dx()) <= 2*maxW && float64(b.Dy()) <= 2*maxH {
		return src
	}
	scale := math.Min(maxW/float64(b.Dx()), maxH/float64(b.Dy()))
	w := max(1, int(math.Round(float64(b.Dx())*scale)))
	h := max(1, int(math.Round(float64(b.Dy())*scale)))
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
	return dst
}

// FromImage converts a decoded image to a Flate-compressed RGB XObject,
// with a DeviceGray soft mask when any pixel is not fully opaque.
func FromImage(src image.Image) *Image {
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	nrgba := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.Draw(nrgba, nrgba.Bounds(), src, bounds.Min, draw.Src)

	pixels := make([]byte, 0, w*h*3)
	alpha := make([]byte, 0, w*h)
	hasAlpha := false
	for i := 0; i < w*h; i++ {
		offset := i * 4
		pixels = append(pixels, nrgba.Pix[offset], nrgba.Pix[offset+1], nrgba.Pix[offset+2])
		a := nrgba.Pix[offset+3]
		alpha = append(alpha, a)
		if a < 255 {
			hasAlpha = true
		}
	}

	img := &Image{Width: w, Height: h, stream: flateImage(w, h, "DeviceRGB", pixels)}
	if hasAlpha {
		img.mask = flateImage(w, h, "DeviceGray", alpha)
	}
	return img
}

func flateImage(w, h int, colorSpace string, data []byte) *raw.StreamObj {
	dict := raw.Dict()
	dict.Set("Width", raw.NumberInt(int64(w)))
	dict.Set("Height", raw.NumberInt(int64(h)))
	dict.Set("ColorSpace", raw.NameLiteral(colorSpace))
	dict.Set("BitsPerComponent", raw.NumberInt(8))
	if enc, err := filters.FlateEncode(data, 0); err == nil {
		dict.Set("Filter", raw.NameLiteral("FlateDecode"))
		data = enc
	}
	return raw.NewStream(dict, data)
}

// EncodeJPEG is a convenience for callers producing JPEG logos in memory.
func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
