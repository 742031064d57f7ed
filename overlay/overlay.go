// Package overlay draws a replacement design onto document pages: background
// bands, separators, text blocks, images and edge bars, scoped to the first,
// last or every page.
package overlay

import (
	"fmt"
	"strings"

	"github.com/wudi/quotekit/builder"
	"github.com/wudi/quotekit/coords"
)

// Element is one drawable item of a layer. The set of implementations is
// closed: FilledRect, Separator, Text, Image and EdgeBar.
type Element interface {
	class() class
}

type class int

const (
	classFill class = iota
	classSeparator
	classText
	classImage
)

// FilledRect paints a background band.
type FilledRect struct {
	Zone  coords.Zone
	Color builder.Color
}

// Separator paints a thin rule. A zone without height is drawn as a one
// point line along its bottom edge.
type Separator struct {
	Zone  coords.Zone
	Color builder.Color
}

// Text draws one line of text. Unrotated text is anchored at At. Rotated
// text turns around Pivot, or around the page centre when Pivot is nil, and
// At is not used. Text may contain the {page} and {pages} placeholders.
type Text struct {
	At       coords.Point
	Text     string
	Font     string // registered or standard font name, Helvetica when empty
	Size     float64
	Color    builder.Color
	Opacity  float64
	Rotation float64 // degrees
	Pivot    *coords.Point
	Align    builder.HAlign
}

// Image places the image found at Source stretched over Zone.
type Image struct {
	Zone   coords.Zone
	Source string
}

// Edge names a side of the page.
type Edge string

const (
	EdgeTop    Edge = "top"
	EdgeBottom Edge = "bottom"
	EdgeLeft   Edge = "left"
	EdgeRight  Edge = "right"
)

// EdgeBar is a band along one side of the page, resolved against each
// page's size.
type EdgeBar struct {
	Edge      Edge
	Thickness float64
	Color     builder.Color
}

func (FilledRect) class() class { return classFill }
func (Separator) class() class  { return classSeparator }
func (Text) class() class       { return classText }
func (Image) class() class      { return classImage }
func (EdgeBar) class() class    { return classFill }

// Resolve returns the bar as a filled rectangle on a page of the given
// bounds.
func (b EdgeBar) Resolve(bounds coords.Rect) (FilledRect, error) {
	t := b.Thickness
	var r coords.Rect
	switch b.Edge {
	case EdgeTop:
		r = coords.Rect{X0: bounds.X0, Y0: bounds.Y1 - t, X1: bounds.X1, Y1: bounds.Y1}
	case EdgeBottom:
		r = coords.Rect{X0: bounds.X0, Y0: bounds.Y0, X1: bounds.X1, Y1: bounds.Y0 + t}
	case EdgeLeft:
		r = coords.Rect{X0: bounds.X0, Y0: bounds.Y0, X1: bounds.X0 + t, Y1: bounds.Y1}
	case EdgeRight:
		r = coords.Rect{X0: bounds.X1 - t, Y0: bounds.Y0, X1: bounds.X1, Y1: bounds.Y1}
	default:
		return FilledRect{}, fmt.Errorf("unknown edge %q", b.Edge)
	}
	return FilledRect{Zone: coords.Zone{Rect: r, Label: string(b.Edge) + " bar"}, Color: b.Color}, nil
}

// Scope selects the pages a layer is drawn on.
type Scope int

const (
	AllPages Scope = iota
	FirstPage
	LastPage
)

func (s Scope) String() string {
	switch s {
	case FirstPage:
		return "first"
	case LastPage:
		return "last"
	}
	return "all"
}

// ParseScope accepts "first", "last" and "all".
func ParseScope(s string) (Scope, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "first", "first_page":
		return FirstPage, nil
	case "last", "last_page":
		return LastPage, nil
	case "all", "all_pages", "":
		return AllPages, nil
	}
	return AllPages, fmt.Errorf("unknown scope %q", s)
}

func (s Scope) includes(index, count int) bool {
	switch s {
	case FirstPage:
		return index == 0
	case LastPage:
		return index == count-1
	}
	return true
}

type Layer struct {
	Scope    Scope
	Elements []Element
}

// Plan is the full design; layers are drawn in order within each element
// class.
type Plan struct {
	Layers []Layer
}

// Mode selects how drawings reach the page.
type Mode int

const (
	// Direct appends a content stream to each page.
	Direct Mode = iota
	// Surface draws on a separate document with the same page sizes and
	// merges each surface page over its source page as a form XObject.
	Surface
)

func (m Mode) String() string {
	if m == Surface {
		return "surface"
	}
	return "direct"
}

// ParseMode accepts "direct" and "surface".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "direct", "":
		return Direct, nil
	case "surface":
		return Surface, nil
	}
	return Direct, fmt.Errorf("unknown overlay mode %q", s)
}

// Warning kinds reported by Compose.
const (
	WarnResourceMissing = "resource_missing"
	WarnGeometry        = "geometry"
	WarnFont            = "font"
	WarnSurface         = "surface_mismatch"
)

// Warning is a recoverable problem: the element concerned was skipped or
// drawn with a fallback.
type Warning struct {
	Kind    string
	Page    int
	Message string
}

func (w Warning) String() string {
	if w.Page > 0 {
		return fmt.Sprintf("%s (page %d): %s", w.Kind, w.Page, w.Message)
	}
	return fmt.Sprintf("%s: %s", w.Kind, w.Message)
}

type Report struct {
	Mode     Mode
	Pages    int
	Elements int
	Warnings []Warning
}
