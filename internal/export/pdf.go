package export

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"io"

	"github.com/go-pdf/fpdf"
	"github.com/ppiankov/clinsum/internal/logger"
	"github.com/sirupsen/logrus"
)

// Page geometry in millimetres
const (
	pageMargin = 10.0
	imageName  = "summary"
)

// Placement is where the bitmap landed on the page
type Placement struct {
	X, Y          float64
	Width, Height float64
	PageWidth     float64
	PageHeight    float64
	Overflow      bool // taller than the printable area; the image is clipped, not paginated
}

// BuildPDF writes a single A4 portrait page holding img scaled to the page
// width minus margins, aspect ratio preserved.
func BuildPDF(w io.Writer, img image.Image) (Placement, error) {
	bounds := img.Bounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		return Placement{}, fmt.Errorf("empty image %dx%d", bounds.Dx(), bounds.Dy())
	}

	var encoded bytes.Buffer
	if err := png.Encode(&encoded, img); err != nil {
		return Placement{}, fmt.Errorf("encode png: %w", err)
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Clinical Summary", true)
	pdf.SetCreator("clinsum", true)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()

	pageW, pageH := pdf.GetPageSize()
	ratio := float64(bounds.Dx()) / float64(bounds.Dy())

	p := Placement{
		X:          pageMargin,
		Y:          pageMargin,
		Width:      pageW - 2*pageMargin,
		PageWidth:  pageW,
		PageHeight: pageH,
	}
	p.Height = p.Width / ratio

	if p.Height > pageH-2*pageMargin {
		p.Overflow = true
		logger.WithFields(logrus.Fields{
			"image_height_mm": p.Height,
			"page_height_mm":  pageH,
		}).Warn("Content might be too long for a single PDF page")
	}

	opts := fpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader(imageName, opts, &encoded)
	pdf.ImageOptions(imageName, p.X, p.Y, p.Width, p.Height, false, opts, 0, "")

	if err := pdf.Error(); err != nil {
		return Placement{}, fmt.Errorf("assemble pdf: %w", err)
	}
	if err := pdf.Output(w); err != nil {
		return Placement{}, fmt.Errorf("write pdf: %w", err)
	}
	return p, nil
}
