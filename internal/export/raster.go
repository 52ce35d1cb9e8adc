package export

import (
	"errors"
	"fmt"
	"image"
	"math"
	"strings"
	"sync"
	"unicode"

	"github.com/fogleman/gg"
	"github.com/ppiankov/clinsum/internal/logger"
	"github.com/ppiankov/clinsum/internal/render"
	"github.com/sirupsen/logrus"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

// DefaultScale is the magnification used for export bitmaps
const DefaultScale = 2.0

// maxCanvasRatio is the height/width of the printable A4 area. Bitmaps are
// cut one row past it so the page still reports the overflow.
const maxCanvasRatio = (297.0 - 2*pageMargin) / (210.0 - 2*pageMargin)

// Layout in logical (1x) pixels
const (
	canvasWidth = 640.0
	outerPad    = 16.0
	blockGap    = 12.0
	cardPad     = 12.0
	cardRadius  = 6.0
	titleGap    = 8.0
	lineSpacing = 1.45
	badgePadX   = 8.0
	badgePadY   = 4.0
	badgeGap    = 6.0
	columnGap   = 12.0

	titleSize    = 13.0
	subtitleSize = 11.0
	bodySize     = 10.5
	smallSize    = 9.0
)

// Colors follow the on-screen stylesheet
const (
	colorBackground   = "#ffffff"
	colorCardBorder   = "#e2e8f0"
	colorTitle        = "#075985"
	colorTitleRule    = "#bae6fd"
	colorSubtitle     = "#475569"
	colorBody         = "#475569"
	colorMuted        = "#64748b"
	colorBannerFill   = "#fee2e2"
	colorBannerStripe = "#ef4444"
	colorBannerText   = "#b91c1c"
	colorICDFill      = "#d1fae5"
	colorICDText      = "#065f46"
	colorCPTFill      = "#dbeafe"
	colorCPTText      = "#1e40af"
)

var (
	fontsOnce sync.Once
	fontsErr  error
	regular   *opentype.Font
	bold      *opentype.Font
	italic    *opentype.Font
)

func loadFonts() error {
	fontsOnce.Do(func() {
		var errs []error
		parse := func(name string, data []byte) *opentype.Font {
			f, err := opentype.Parse(data)
			if err != nil {
				errs = append(errs, fmt.Errorf("parse %s: %w", name, err))
			}
			return f
		}
		regular = parse("goregular", goregular.TTF)
		bold = parse("gobold", gobold.TTF)
		italic = parse("goitalic", goitalic.TTF)
		fontsErr = errors.Join(errs...)
	})
	return fontsErr
}

type faceSet struct {
	title    font.Face
	subtitle font.Face
	body     font.Face
	badge    font.Face
	muted    font.Face
}

func newFaceSet(scale float64) (*faceSet, error) {
	if err := loadFonts(); err != nil {
		return nil, err
	}

	face := func(f *opentype.Font, size float64) (font.Face, error) {
		return opentype.NewFace(f, &opentype.FaceOptions{
			Size:    size * scale,
			DPI:     72,
			Hinting: font.HintingFull,
		})
	}

	var fs faceSet
	var err error
	if fs.title, err = face(bold, titleSize); err != nil {
		return nil, err
	}
	if fs.subtitle, err = face(bold, subtitleSize); err != nil {
		return nil, err
	}
	if fs.body, err = face(regular, bodySize); err != nil {
		return nil, err
	}
	if fs.badge, err = face(bold, smallSize); err != nil {
		return nil, err
	}
	if fs.muted, err = face(italic, smallSize); err != nil {
		return nil, err
	}
	return &fs, nil
}

// canvas paints in device pixels; every layout constant goes through px.
// With draw off it only measures.
type canvas struct {
	dc    *gg.Context
	scale float64
	faces *faceSet
	draw  bool
}

func (c *canvas) px(v float64) float64 {
	return v * c.scale
}

func (c *canvas) lineHeight(face font.Face) float64 {
	c.dc.SetFontFace(face)
	return c.dc.FontHeight() * lineSpacing
}

func (c *canvas) ascent(face font.Face) float64 {
	return float64(face.Metrics().Ascent.Ceil())
}

// text draws wrapped text with its top at y and returns the height used
func (c *canvas) text(face font.Face, color, s string, x, y, width float64) float64 {
	c.dc.SetFontFace(face)
	lines := c.dc.WordWrap(renderable(face, s), width)
	if len(lines) == 0 {
		lines = []string{""}
	}

	lh := c.lineHeight(face)
	if c.draw {
		c.dc.SetFontFace(face)
		c.dc.SetHexColor(color)
		asc := c.ascent(face)
		for i, line := range lines {
			c.dc.DrawString(line, x, y+asc+float64(i)*lh)
		}
	}
	return float64(len(lines)) * lh
}

// renderable drops runes the face has no glyph for (emoji, variation selectors)
func renderable(face font.Face, s string) string {
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return r
		}
		if _, ok := face.GlyphAdvance(r); !ok {
			return -1
		}
		return r
	}, s))
}

// measure runs fn with drawing off and returns its height
func (c *canvas) measure(fn func() float64) float64 {
	prev := c.draw
	c.draw = false
	h := fn()
	c.draw = prev
	return h
}

type contentFunc func(x, y, width float64) float64

func (c *canvas) cardHeight(width float64, content contentFunc) float64 {
	inner := width - 2*c.px(cardPad)
	ch := c.measure(func() float64 { return content(0, 0, inner) })
	return 2*c.px(cardPad) + c.lineHeight(c.faces.title) + c.px(titleGap) + ch
}

// card draws a bordered, titled block at least minHeight tall and returns its height
func (c *canvas) card(x, y, width, minHeight float64, title string, content contentFunc) float64 {
	h := math.Max(c.cardHeight(width, content), minHeight)
	pad := c.px(cardPad)
	titleH := c.lineHeight(c.faces.title)

	if c.draw {
		c.dc.SetHexColor(colorBackground)
		c.dc.DrawRoundedRectangle(x, y, width, h, c.px(cardRadius))
		c.dc.Fill()
		c.dc.SetHexColor(colorCardBorder)
		c.dc.SetLineWidth(c.px(1))
		c.dc.DrawRoundedRectangle(x, y, width, h, c.px(cardRadius))
		c.dc.Stroke()

		c.text(c.faces.title, colorTitle, title, x+pad, y+pad, width-2*pad)

		ruleY := y + pad + titleH + c.px(titleGap)/2
		c.dc.SetHexColor(colorTitleRule)
		c.dc.DrawLine(x+pad, ruleY, x+width-pad, ruleY)
		c.dc.Stroke()
	}

	content(x+pad, y+pad+titleH+c.px(titleGap), width-2*pad)
	return h
}

func (c *canvas) banner(b *render.Banner, x, y, width float64) float64 {
	pad := c.px(cardPad)
	stripe := c.px(4)
	inner := width - 2*pad - stripe

	body := func(y float64) float64 {
		h := c.text(c.faces.subtitle, colorBannerText, b.Title, x+stripe+pad, y, inner)
		return h + c.text(c.faces.body, colorBannerText, b.Reason, x+stripe+pad, y+h, inner)
	}

	h := c.measure(func() float64 { return body(0) }) + 2*pad
	if c.draw {
		c.dc.SetHexColor(colorBannerFill)
		c.dc.DrawRoundedRectangle(x, y, width, h, c.px(cardRadius))
		c.dc.Fill()
		c.dc.SetHexColor(colorBannerStripe)
		c.dc.DrawRectangle(x, y, stripe, h)
		c.dc.Fill()
	}
	body(y + pad)
	return h
}

func (c *canvas) insightColumn(g render.InsightGroup, x, y, width float64) float64 {
	h := c.text(c.faces.subtitle, colorSubtitle, g.Title, x, y, width)
	h += c.px(4)

	if len(g.Items) == 0 {
		return h + c.text(c.faces.muted, colorMuted, g.Placeholder, x, y+h, width)
	}

	bullet := c.px(10)
	for _, item := range g.Items {
		if c.draw {
			c.dc.SetHexColor(colorBody)
			r := c.px(1.5)
			c.dc.DrawCircle(x+r*2, y+h+c.ascent(c.faces.body)/2+r, r)
			c.dc.Fill()
		}
		h += c.text(c.faces.body, colorBody, item, x+bullet, y+h, width-bullet)
	}
	return h
}

func (c *canvas) insights(groups []render.InsightGroup, x, y, width float64) float64 {
	if len(groups) == 0 {
		return 0
	}
	gap := c.px(columnGap)
	colW := (width - gap*float64(len(groups)-1)) / float64(len(groups))

	var tallest float64
	for i, g := range groups {
		cx := x + float64(i)*(colW+gap)
		tallest = math.Max(tallest, c.insightColumn(g, cx, y, colW))
	}
	return tallest
}

func (c *canvas) badgeLabel(b render.Badge, maxWidth float64) (string, float64) {
	c.dc.SetFontFace(c.faces.badge)
	label := renderable(c.faces.badge, b.Code+": "+b.Description)
	padX := 2 * c.px(badgePadX)

	w, _ := c.dc.MeasureString(label)
	if w+padX <= maxWidth {
		return label, w + padX
	}

	runes := []rune(label)
	for len(runes) > 0 {
		runes = runes[:len(runes)-1]
		candidate := strings.TrimSpace(string(runes)) + "…"
		if w, _ = c.dc.MeasureString(candidate); w+padX <= maxWidth {
			return candidate, w + padX
		}
	}
	return "…", maxWidth
}

func (c *canvas) codeGroup(g render.CodeGroup, x, y, width float64) float64 {
	h := c.text(c.faces.subtitle, colorSubtitle, g.Title, x, y, width)
	h += c.px(4)

	if len(g.Badges) == 0 {
		return h + c.text(c.faces.muted, colorMuted, g.Placeholder, x, y+h, width)
	}

	fill, ink := colorICDFill, colorICDText
	if g.Kind == render.BadgeCPT {
		fill, ink = colorCPTFill, colorCPTText
	}

	c.dc.SetFontFace(c.faces.badge)
	pillH := c.dc.FontHeight() + 2*c.px(badgePadY)
	cx, cy := x, y+h
	for _, b := range g.Badges {
		label, w := c.badgeLabel(b, width)
		if cx > x && cx+w > x+width {
			cx = x
			cy += pillH + c.px(badgeGap)
		}
		if c.draw {
			c.dc.SetHexColor(fill)
			c.dc.DrawRoundedRectangle(cx, cy, w, pillH, pillH/2)
			c.dc.Fill()
			c.dc.SetFontFace(c.faces.badge)
			c.dc.SetHexColor(ink)
			c.dc.DrawString(label, cx+c.px(badgePadX), cy+c.px(badgePadY)+c.ascent(c.faces.badge))
		}
		cx += w + c.px(badgeGap)
	}
	return cy + pillH - y
}

// paint lays the summary out top to bottom and returns the total height
func (c *canvas) paint(sv *render.SummaryView) float64 {
	pad := c.px(outerPad)
	gap := c.px(blockGap)
	width := c.px(canvasWidth) - 2*pad
	x, y := pad, pad

	if sv.Emergency != nil {
		y += c.banner(sv.Emergency, x, y, width) + gap
	}

	colW := (width - gap) / 2
	for i := 0; i+1 < len(sv.SOAP); i += 2 {
		left, right := sv.SOAP[i], sv.SOAP[i+1]
		lc := c.sectionBody(left.Body)
		rc := c.sectionBody(right.Body)
		rowH := math.Max(c.cardHeight(colW, lc), c.cardHeight(colW, rc))
		c.card(x, y, colW, rowH, left.Title, lc)
		c.card(x+colW+gap, y, colW, rowH, right.Title, rc)
		y += rowH + gap
	}
	if len(sv.SOAP)%2 == 1 {
		last := sv.SOAP[len(sv.SOAP)-1]
		y += c.card(x, y, width, 0, last.Title, c.sectionBody(last.Body)) + gap
	}

	y += c.card(x, y, width, 0, sv.Diagnosis.Title, c.sectionBody(sv.Diagnosis.Body)) + gap

	y += c.card(x, y, width, 0, render.InsightsTitle, func(x, y, w float64) float64 {
		return c.insights(sv.Insights, x, y, w)
	}) + gap

	y += c.card(x, y, width, 0, render.CodesTitle, func(x, y, w float64) float64 {
		var h float64
		for i, g := range sv.Codes {
			if i > 0 {
				h += c.px(10)
			}
			h += c.codeGroup(g, x, y+h, w)
		}
		return h
	})

	return y + pad
}

func (c *canvas) sectionBody(body string) contentFunc {
	return func(x, y, w float64) float64 {
		return c.text(c.faces.body, colorBody, body, x, y, w)
	}
}

// Rasterize paints the summary region at the given magnification on an
// opaque white background.
func Rasterize(sv *render.SummaryView, scale float64) (image.Image, error) {
	if sv == nil {
		return nil, ErrNoSummary
	}
	if scale <= 0 {
		return nil, fmt.Errorf("invalid scale %v", scale)
	}

	faces, err := newFaceSet(scale)
	if err != nil {
		return nil, fmt.Errorf("load fonts: %w", err)
	}

	width := int(math.Ceil(canvasWidth * scale))

	measure := &canvas{dc: gg.NewContext(width, 1), scale: scale, faces: faces}
	height := int(math.Ceil(measure.paint(sv)))

	if maxHeight := MaxCanvasHeight(width); height > maxHeight {
		logger.WithFields(logrus.Fields{
			"measured_px": height,
			"max_px":      maxHeight,
		}).Warn("Summary is taller than one page, clipping the bitmap")
		height = maxHeight
	}

	c := &canvas{dc: gg.NewContext(width, height), scale: scale, faces: faces, draw: true}
	c.dc.SetHexColor(colorBackground)
	c.dc.Clear()
	c.paint(sv)

	return c.dc.Image(), nil
}

// MaxCanvasHeight is the tallest bitmap Rasterize produces for a given width
func MaxCanvasHeight(width int) int {
	return int(math.Ceil(float64(width)*maxCanvasRatio)) + 1
}
