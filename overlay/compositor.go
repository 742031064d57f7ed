package overlay

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/wudi/quotekit/builder"
	"github.com/wudi/quotekit/coords"
	"github.com/wudi/quotekit/document"
	"github.com/wudi/quotekit/fonts"
	"github.com/wudi/quotekit/ir/raw"
	"github.com/wudi/quotekit/observability"
)

// ImageLoader fetches encoded image data by source name.
type ImageLoader interface {
	Load(ctx context.Context, source string) ([]byte, error)
}

// FileLoader reads images from the file system.
type FileLoader struct{}

func (FileLoader) Load(_ context.Context, source string) ([]byte, error) {
	return os.ReadFile(source)
}

// MapLoader serves images from memory.
type MapLoader map[string][]byte

func (m MapLoader) Load(_ context.Context, source string) ([]byte, error) {
	data, ok := m[source]
	if !ok {
		return nil, fmt.Errorf("%s: %w", source, os.ErrNotExist)
	}
	return data, nil
}

type Option func(*Compositor)

func WithMode(m Mode) Option { return func(c *Compositor) { c.mode = m } }

func WithImageLoader(l ImageLoader) Option { return func(c *Compositor) { c.images = l } }

func WithLogger(l observability.Logger) Option { return func(c *Compositor) { c.logger = l } }

// WithTrueTypeFont registers font data under name. The data is parsed for
// every Compose call so glyph usage never leaks between documents.
func WithTrueTypeFont(name string, data []byte) Option {
	return func(c *Compositor) { c.trueType[name] = data }
}

// Compositor draws plans onto documents. It holds no per-document state
// and may be shared by concurrent pipeline runs.
type Compositor struct {
	mode     Mode
	images   ImageLoader
	logger   observability.Logger
	trueType map[string][]byte
}

func NewCompositor(opts ...Option) *Compositor {
	c := &Compositor{
		images:   FileLoader{},
		logger:   observability.NopLogger{},
		trueType: make(map[string][]byte),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Compositor) Mode() Mode { return c.mode }

// session holds what one Compose call loads: fonts, decoded images and the
// image objects already stored in each target document.
type session struct {
	c      *Compositor
	report *Report
	fonts  map[string]fonts.Encoder
	images map[string]*builder.Image
	refs   map[*document.Document]map[string]raw.RefObj
}

// Compose draws plan onto doc. Per page, fills (bands and edge bars) are
// drawn first, then separators, text and images, each class in plan order.
// Missing resources produce warnings, never errors.
func (c *Compositor) Compose(ctx context.Context, doc *document.Document, plan Plan) (Report, error) {
	report := Report{Mode: c.mode}
	s := &session{
		c:      c,
		report: &report,
		fonts:  make(map[string]fonts.Encoder),
		images: make(map[string]*builder.Image),
		refs:   make(map[*document.Document]map[string]raw.RefObj),
	}

	pages := doc.Pages()
	targets := pages
	var surface *document.Document
	if c.mode == Surface {
		boxes := make([]coords.PageBox, len(pages))
		for i, p := range pages {
			m := p.MediaBox()
			boxes[i] = coords.PageBox{Width: m.Width(), Height: m.Height()}
		}
		surface = document.NewBlank(boxes)
		targets = surface.Pages()
	}

	for i, page := range pages {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		elements := plan.pageElements(i, len(pages))
		if len(elements) == 0 {
			continue
		}
		target := targets[i]
		canvas := builder.NewCanvas(target)
		toUser := target.ToUser
		n := s.draw(ctx, canvas, page, toUser, elements, len(pages))
		if canvas.Empty() {
			continue
		}
		if c.mode == Surface {
			canvas.Replace()
		} else if err := canvas.Append(ctx); err != nil {
			return report, fmt.Errorf("overlay page %d: %w", page.Number(), err)
		}
		report.Pages++
		report.Elements += n
	}

	if surface != nil {
		if err := s.merge(ctx, doc, surface); err != nil {
			return report, err
		}
	}
	c.logger.Info("overlay composed",
		observability.String("mode", c.mode.String()),
		observability.Int(observability.KeyPages, report.Pages),
		observability.Int("elements", report.Elements),
		observability.Int("warnings", len(report.Warnings)))
	return report, nil
}

// merge places each drawn surface page over its source page.
func (s *session) merge(ctx context.Context, doc, surface *document.Document) error {
	if surface.PageCount() != doc.PageCount() {
		s.warn(WarnSurface, 0, fmt.Sprintf("surface has %d pages, document %d", surface.PageCount(), doc.PageCount()))
	}
	merger := document.NewMerger(doc, surface)
	for i, sp := range surface.Pages() {
		if i >= doc.PageCount() {
			s.warn(WarnSurface, i+1, "no source page for surface page")
			continue
		}
		ops, err := sp.Content(ctx)
		if err != nil {
			s.warn(WarnSurface, i+1, fmt.Sprintf("surface content unreadable: %v", err))
			continue
		}
		if len(ops) == 0 {
			continue
		}
		if err := merger.Merge(ctx, doc.Pages()[i], sp); err != nil {
			return fmt.Errorf("merge surface page %d: %w", i+1, err)
		}
	}
	return nil
}

// pageElements collects the elements drawn on page index, grouped by class
// and stable within each class.
func (p Plan) pageElements(index, count int) []Element {
	var byClass [4][]Element
	for _, layer := range p.Layers {
		if !layer.Scope.includes(index, count) {
			continue
		}
		for _, el := range layer.Elements {
			if el == nil {
				continue
			}
			byClass[el.class()] = append(byClass[el.class()], el)
		}
	}
	var out []Element
	for _, els := range byClass {
		out = append(out, els...)
	}
	return out
}

func (s *session) draw(ctx context.Context, c *builder.Canvas, page *document.Page, toUser func(coords.Rect) coords.Rect, elements []Element, pageCount int) int {
	drawn := 0
	bounds := page.Bounds()
	num := page.Number()
	for _, el := range elements {
		switch e := el.(type) {
		case EdgeBar:
			fr, err := e.Resolve(bounds)
			if err != nil {
				s.warn(WarnGeometry, num, err.Error())
				continue
			}
			if !s.valid(num, fr.Zone) {
				continue
			}
			c.DrawRectangle(toUser(fr.Zone.Rect), builder.RectOptions{Fill: true, FillColor: fr.Color})
		case FilledRect:
			if !s.valid(num, e.Zone) {
				continue
			}
			c.DrawRectangle(toUser(e.Zone.Rect), builder.RectOptions{Fill: true, FillColor: e.Color})
		case Separator:
			r := e.Zone.Rect.Normalize()
			if r.Width() <= 0 {
				s.warn(WarnGeometry, num, fmt.Sprintf("separator %q has no width", e.Zone.Label))
				continue
			}
			if r.Height() > 0 {
				c.DrawRectangle(toUser(r), builder.RectOptions{Fill: true, FillColor: e.Color})
			} else {
				u := toUser(r)
				c.DrawLine(u.X0, u.Y0, u.X1, u.Y0, builder.LineOptions{StrokeColor: e.Color, LineWidth: 1})
			}
		case Text:
			text := expand(e.Text, num, pageCount)
			if strings.TrimSpace(text) == "" {
				continue
			}
			font := s.font(num, e.Font)
			at := e.At
			if e.Rotation != 0 {
				if e.Pivot != nil {
					at = *e.Pivot
				} else {
					at = bounds.Center()
				}
			}
			u := toUser(coords.Rect{X0: at.X, Y0: at.Y, X1: at.X, Y1: at.Y})
			c.DrawText(text, u.X0, u.Y0, builder.TextOptions{
				Font:     font,
				FontSize: e.Size,
				Color:    e.Color,
				Opacity:  e.Opacity,
				Rotation: e.Rotation,
				Align:    e.Align,
			})
		case Image:
			if !s.valid(num, e.Zone) {
				continue
			}
			ref, ok := s.image(ctx, c.Page().Document(), num, e)
			if !ok {
				continue
			}
			c.DrawImage(ref, toUser(e.Zone.Rect))
		default:
			continue
		}
		drawn++
	}
	return drawn
}

func (s *session) valid(page int, z coords.Zone) bool {
	if err := z.Validate(); err != nil {
		s.warn(WarnGeometry, page, (&coords.GeometryError{Zone: z, Err: err}).Error())
		return false
	}
	return true
}

// font resolves a font name, falling back to Helvetica with a warning.
func (s *session) font(page int, name string) fonts.Encoder {
	if name == "" {
		name = "Helvetica"
	}
	if f, ok := s.fonts[name]; ok {
		return f
	}
	var f fonts.Encoder
	if data, ok := s.c.trueType[name]; ok {
		tt, err := fonts.LoadTrueType(name, data)
		if err != nil {
			s.warn(WarnFont, page, fmt.Sprintf("font %q: %v", name, err))
		} else {
			f = tt
		}
	} else if std, err := fonts.NewStandard(name); err == nil {
		f = std
	} else {
		s.warn(WarnFont, page, fmt.Sprintf("font %q not available, using Helvetica", name))
	}
	if f == nil {
		f = fonts.Helvetica()
	}
	s.fonts[name] = f
	return f
}

// image loads and stores e's source once per target document.
func (s *session) image(ctx context.Context, doc *document.Document, page int, e Image) (raw.RefObj, bool) {
	refs := s.refs[doc]
	if refs == nil {
		refs = make(map[string]raw.RefObj)
		s.refs[doc] = refs
	}
	if ref, ok := refs[e.Source]; ok {
		return ref, true
	}
	img, ok := s.images[e.Source]
	if !ok {
		data, err := s.c.images.Load(ctx, e.Source)
		if err == nil {
			img, err = builder.LoadImage(data, e.Zone.Rect)
		}
		if err != nil {
			s.warn(WarnResourceMissing, page, fmt.Sprintf("image %s: %v", e.Source, err))
			s.images[e.Source] = nil
			return raw.RefObj{}, false
		}
		s.images[e.Source] = img
	}
	if img == nil {
		return raw.RefObj{}, false
	}
	ref := img.Add(doc)
	refs[e.Source] = ref
	return ref, true
}

func (s *session) warn(kind string, page int, msg string) {
	w := Warning{Kind: kind, Page: page, Message: msg}
	s.report.Warnings = append(s.report.Warnings, w)
	s.c.logger.Warn("overlay element skipped",
		observability.String("kind", kind),
		observability.Int(observability.KeyPage, page),
		observability.String("reason", msg))
}

// expand substitutes the page number placeholders.
func expand(text string, page, pages int) string {
	if !strings.Contains(text, "{") {
		return text
	}
	return strings.NewReplacer("{page}", strconv.Itoa(page), "{pages}", strconv.Itoa(pages)).Replace(text)
}
