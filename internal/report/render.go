package report

import (
	"bytes"
	"fmt"
	"math"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/Skufu/heartrisk/internal/classifier"
	"github.com/Skufu/heartrisk/internal/patient"
)

// Generator produces report PDFs. The zero value uses Letter pages and the wall clock.
type Generator struct {
	Geometry Geometry
	Now      func() time.Time
	// Uncompressed leaves page content streams readable.
	Uncompressed bool
}

func (g Generator) Generate(rec patient.Record, label classifier.Label) ([]byte, error) {
	geo := g.Geometry
	if geo == (Geometry{}) {
		geo = Letter
	}
	now := time.Now
	if g.Now != nil {
		now = g.Now
	}
	doc := Layout(Input{Record: rec, Label: label, Date: now()}, geo)
	return Render(doc, !g.Uncompressed)
}

// Render draws doc into a PDF.
func Render(doc *Document, compress bool) ([]byte, error) {
	geo := doc.Geometry
	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "pt",
		Size:           fpdf.SizeType{Wd: geo.Width, Ht: geo.Height},
	})
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetCompression(compress)
	pdf.SetTitle(Title, false)
	pdf.SetCreator("heartrisk", false)
	if !doc.Date.IsZero() {
		pdf.SetCreationDate(doc.Date)
		pdf.SetModificationDate(doc.Date)
	}

	page := 0
	for _, op := range doc.Ops {
		for page < op.Page {
			pdf.AddPage()
			page++
		}
		pdf.SetFont(op.Font.Family, op.Font.Style, op.Font.Size)
		pdf.SetTextColor(channel(op.Color.R), channel(op.Color.G), channel(op.Color.B))

		x := op.X
		if op.Align == AlignCenter {
			x -= pdf.GetStringWidth(op.Text) / 2
		}
		pdf.Text(x, geo.Height-op.Y, op.Text)
	}
	for page < doc.Pages {
		pdf.AddPage()
		page++
	}

	if pdf.PageCount() != doc.Pages {
		return nil, fmt.Errorf("rendered %d pages, layout has %d", pdf.PageCount(), doc.Pages)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render report: %w", err)
	}
	return buf.Bytes(), nil
}

func channel(v float64) int {
	return int(math.Round(v * 255))
}
