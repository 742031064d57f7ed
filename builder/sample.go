package builder

import (
	"fmt"
	"image"
	"image/color"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/wudi/quotekit/coords"
	"github.com/wudi/quotekit/document"
	"github.com/wudi/quotekit/fonts"
)

// SampleItem is one priced line of a sample quote.
type SampleItem struct {
	Label    string
	Quantity int
	Price    string
}

// SampleQuote describes a demo quote laid out like the supplier documents
// the pipeline is tuned for: a branded header on page 1, a promotional
// banner at the bottom of every page and the payment schedule on the last
// page.
type SampleQuote struct {
	Pages  int
	Number string
	Client string
	Items  []SampleItem
	// Total is the rendered amount line directly above the anchor.
	Total      string
	Anchor     string
	OmitAnchor bool
}

func DefaultSampleQuote() SampleQuote {
	return SampleQuote{
		Pages:  1,
		Number: "Q-2026-0042",
		Client: "M. et Mme Martin",
		Items: []SampleItem{
			{Label: "Fenêtre PVC 2 vantaux 120x135", Quantity: 2, Price: "980,00 EUR"},
			{Label: "Porte-fenêtre aluminium", Quantity: 1, Price: "820,00 EUR"},
		},
		Total:  "1 800,00 EUR",
		Anchor: "ACOMPTE 30%",
	}
}

var (
	brandRed   = Color{R: 0.78, G: 0.09, B: 0.12}
	a4         = coords.PageBox{Width: 595, Height: 842}
	itemsStart = 600.0
)

// Document renders the quote.
func (q SampleQuote) Document() *document.Document {
	pages := max(q.Pages, 1)
	boxes := make([]coords.PageBox, pages)
	for i := range boxes {
		boxes[i] = a4
	}
	doc := document.NewBlank(boxes)
	doc.SetInfo(map[string]string{
		"Title":   "Devis " + q.Number,
		"Author":  "ADF Menuiseries",
		"Creator": "quotekit sample",
	})

	regular := fonts.Helvetica()
	bold, _ := fonts.NewStandard("Helvetica-Bold")
	body := TextOptions{Font: regular, FontSize: 10}
	strong := TextOptions{Font: bold, FontSize: 10}

	for i, page := range doc.Pages() {
		c := NewCanvas(page)
		if i == 0 {
			q.header(c, regular, bold)
		} else {
			c.DrawText(fmt.Sprintf("Suite du devis %s", q.Number), 40, 780, strong)
		}

		y := itemsStart
		if i == 0 {
			c.DrawText("Désignation", 40, y, strong)
			c.DrawText("Qté", 360, y, strong)
			c.DrawText("Prix TTC", 555, y, TextOptions{Font: bold, FontSize: 10, Align: AlignRight})
			y -= 18
			for _, item := range q.Items {
				c.DrawText(item.Label, 40, y, body)
				c.DrawText(fmt.Sprint(item.Quantity), 360, y, body)
				c.DrawText(item.Price, 555, y, TextOptions{Font: regular, FontSize: 10, Align: AlignRight})
				y -= 15
			}
		} else {
			c.DrawText("Conditions de pose et de garantie selon documentation jointe.", 40, y, body)
		}

		if i == pages-1 {
			q.totals(c, regular, bold)
		}

		// promotional banner at the bottom of every page
		c.DrawRectangle(coords.Rect{X0: 20, Y0: 42, X1: 570, Y1: 82}, RectOptions{Fill: true, FillColor: brandRed})
		c.DrawText("NOUVEAU ! VOLETS BATTANTS ADF", 295, 57, TextOptions{Font: bold, FontSize: 14, Color: White, Align: AlignCenter})
		c.Replace()
	}
	return doc
}

func (q SampleQuote) header(c *Canvas, regular, bold fonts.Encoder) {
	// supplier logo, top right
	c.DrawRectangle(coords.Rect{X0: 410, Y0: 730, X1: 560, Y1: 812}, RectOptions{Fill: true, FillColor: brandRed})
	c.DrawText("ADF", 485, 760, TextOptions{Font: bold, FontSize: 28, Color: White, Align: AlignCenter})

	c.DrawText("VISCOGLIOSI", 55, 765, TextOptions{Font: bold, FontSize: 18})
	c.DrawText("Viscogliosi Menuiserie", 55, 690, TextOptions{Font: regular, FontSize: 10})

	// internal information table
	c.DrawRectangle(coords.Rect{X0: 305, Y0: 645, X1: 565, Y1: 712}, RectOptions{StrokeColor: brandRed, LineWidth: 0.8})
	c.DrawText("Code interne : 4521", 310, 700, TextOptions{Font: regular, FontSize: 9})
	c.DrawText("Date : 01/03/2026", 310, 685, TextOptions{Font: regular, FontSize: 9})
	c.DrawText("Client : "+q.Client, 310, 670, TextOptions{Font: regular, FontSize: 9})

	c.DrawText("Code Unique du Devis : "+q.Number, 30, 650, TextOptions{Font: bold, FontSize: 9})
	c.DrawLine(40, 625, 555, 625, LineOptions{LineWidth: 0.5})
}

func (q SampleQuote) totals(c *Canvas, regular, bold fonts.Encoder) {
	right := TextOptions{Font: regular, FontSize: 10, Align: AlignRight}
	c.DrawText("Total TTC", 330, 430, TextOptions{Font: bold, FontSize: 10})
	c.DrawText(q.Total, 555, 430, right)
	if !q.OmitAnchor {
		c.DrawText(q.Anchor, 40, 379, TextOptions{Font: bold, FontSize: 10})
	}
	c.DrawText("Acompte de 50% à la pose", 40, 369, TextOptions{Font: regular, FontSize: 10})
	c.DrawText("Solde de 20% à réception", 40, 358, TextOptions{Font: regular, FontSize: 10})
}

// SampleLogo draws a placeholder logo: a white disc and the word LOGO on a
// blue background.
func SampleLogo(width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.RGBA{R: 90, G: 177, B: 235, A: 255}), image.Point{}, draw.Src)

	d := min(width, height) / 3
	cx, cy := width/2, height/2
	for y := cy - d/2; y <= cy+d/2; y++ {
		for x := cx - d/2; x <= cx+d/2; x++ {
			dx, dy := x-cx, y-cy
			if 4*(dx*dx+dy*dy) <= d*d {
				img.Set(x, y, color.White)
			}
		}
	}

	face := basicfont.Face7x13
	drawer := font.Drawer{Dst: img, Src: image.Black, Face: face}
	text := "LOGO"
	w := drawer.MeasureString(text).Round()
	drawer.Dot = fixed.P((width-w)/2, (height+face.Ascent-face.Descent)/2)
	drawer.DrawString(text)
	return img
}
