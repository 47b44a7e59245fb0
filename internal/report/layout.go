// Package report lays out and renders the single-patient risk report.
//
// Coordinates follow PDF user space: origin at the bottom-left corner, y grows
// upwards, units are points.
package report

import (
	"time"

	"github.com/Skufu/heartrisk/internal/classifier"
	"github.com/Skufu/heartrisk/internal/patient"
)

const (
	Title         = "Heart Risk Assessment Report"
	SectionInput  = "Patient Information & Risk Factors"
	SectionResult = "Prediction Result"
	Disclaimer    = "This report is generated using a predictive model for educational purposes only."
	DateLayout    = "January 02, 2006"

	Filename    = "heart_risk_report.pdf"
	ContentType = "application/pdf"
)

type Font struct {
	Family string
	Style  string // "", "B" or "I"
	Size   float64
}

var (
	TitleFont   = Font{"Helvetica", "B", 18}
	BodyFont    = Font{"Helvetica", "", 12}
	HeaderFont  = Font{"Helvetica", "B", 14}
	VerdictFont = Font{"Helvetica", "B", 12}
	FooterFont  = Font{"Helvetica", "I", 9}
)

type RGB struct{ R, G, B float64 }

var (
	Black = RGB{0, 0, 0}
	Green = RGB{0, 0.6, 0}
	Red   = RGB{0.8, 0, 0}
)

type Align int

const (
	AlignLeft Align = iota
	AlignCenter
)

// Geometry is the page size and the vertical rules of the layout.
type Geometry struct {
	Width, Height float64
	TopMargin     float64 // cursor restarts at Height-TopMargin
	BreakBelow    float64 // a field line leaving the cursor below this starts a new page
}

var Letter = Geometry{Width: 612, Height: 792, TopMargin: 50, BreakBelow: 80}

// Op draws one string.
type Op struct {
	Page  int // 1-based
	X, Y  float64
	Align Align
	Font  Font
	Color RGB
	Text  string
}

type Document struct {
	Geometry Geometry
	Pages    int
	Ops      []Op
	Date     time.Time
}

// Input is everything printed on the report.
type Input struct {
	Record patient.Record
	Label  classifier.Label
	Date   time.Time
}

// cursor walks the page top to bottom. Its only transition besides moving is
// breakIfBelow, which flushes to a fresh page and restores the body font.
type cursor struct {
	g     Geometry
	y     float64
	page  int
	font  Font
	color RGB
	ops   []Op
}

func newCursor(g Geometry) *cursor {
	return &cursor{g: g, y: g.Height - g.TopMargin, page: 1, font: BodyFont, color: Black}
}

func (c *cursor) setFont(f Font)   { c.font = f }
func (c *cursor) setColor(col RGB) { c.color = col }
func (c *cursor) advance(dy float64) {
	c.y -= dy
}

func (c *cursor) draw(x float64, text string) {
	c.ops = append(c.ops, Op{Page: c.page, X: x, Y: c.y, Align: AlignLeft, Font: c.font, Color: c.color, Text: text})
}

func (c *cursor) centered(text string) {
	c.ops = append(c.ops, Op{Page: c.page, X: c.g.Width / 2, Y: c.y, Align: AlignCenter, Font: c.font, Color: c.color, Text: text})
}

func (c *cursor) breakIfBelow() bool {
	if c.y >= c.g.BreakBelow {
		return false
	}
	c.page++
	c.y = c.g.Height - c.g.TopMargin
	// only the body font comes back; the section header stays on the previous page
	c.font = BodyFont
	return true
}

// Layout positions every line of the report.
func Layout(in Input, g Geometry) *Document {
	c := newCursor(g)

	c.setFont(TitleFont)
	c.centered(Title)
	c.advance(30)

	c.setFont(BodyFont)
	c.centered("Date: " + in.Date.Format(DateLayout))
	c.advance(40)

	c.setFont(HeaderFont)
	c.draw(50, SectionInput)
	c.advance(20)
	c.setFont(BodyFont)

	for _, f := range in.Record.Fields() {
		c.draw(60, f.Label+":")
		c.draw(250, f.Value)
		c.advance(20)
		c.breakIfBelow()
	}

	c.advance(10)
	c.setFont(HeaderFont)
	c.draw(50, SectionResult)
	c.advance(25)
	c.setFont(BodyFont)

	c.setColor(VerdictColor(in.Label))
	c.setFont(VerdictFont)
	c.draw(60, in.Label.Verdict())
	c.setColor(Black)

	c.advance(60)
	c.setFont(FooterFont)
	c.centered(Disclaimer)

	return &Document{Geometry: g, Pages: c.page, Ops: c.ops, Date: in.Date}
}

// VerdictColor is green for no disease and red otherwise.
func VerdictColor(l classifier.Label) RGB {
	if l == classifier.NoDisease {
		return Green
	}
	return Red
}
