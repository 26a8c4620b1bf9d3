// Package blank decides which pages of a scanned document are blank and, from that,
// which page a signature stamp goes on.
//
// Blankness is judged on rendered appearance, not on the PDF content stream: a page is
// blank when almost all of its pixels are near-white. Very light watermarks or faint
// scanner noise can therefore read as blank.
package blank

import (
	"context"
	"fmt"
	"image"

	"github.com/rs/zerolog"

	"docauto/internal/render"
)

const (
	// NearWhiteLevel is the gray level above which a pixel counts as paper.
	NearWhiteLevel = 250

	// DefaultThreshold is the white fraction a page must exceed to be blank.
	DefaultThreshold = 0.99
)

// VerdictKind tells how many blank pages a document has.
type VerdictKind int

const (
	None VerdictKind = iota
	Single
	Multiple
)

func (k VerdictKind) String() string {
	switch k {
	case None:
		return "none"
	case Single:
		return "single"
	default:
		return "multiple"
	}
}

// PageVerdict is the result for one page.
type PageVerdict struct {
	PageNumber    int     `json:"page"`
	WhiteFraction float64 `json:"white_fraction"`
	Blank         bool    `json:"blank"`
}

// Verdict aggregates page verdicts for a document.
type Verdict struct {
	Pages []PageVerdict `json:"pages"`

	// Blank lists the 1-based numbers of blank pages in ascending order.
	Blank []int `json:"blank"`
}

// Kind reports whether the document has no, one or several blank pages.
func (v Verdict) Kind() VerdictKind {
	switch len(v.Blank) {
	case 0:
		return None
	case 1:
		return Single
	default:
		return Multiple
	}
}

// Single returns the only blank page number. ok is false unless Kind is Single.
func (v Verdict) Single() (page int, ok bool) {
	if len(v.Blank) != 1 {
		return 0, false
	}
	return v.Blank[0], true
}

// WhiteFraction returns the share of pixels in img whose mean RGB exceeds NearWhiteLevel.
// Alpha is ignored. An empty image has fraction 0.
func WhiteFraction(img image.Image) float64 {
	b := img.Bounds()
	total := b.Dx() * b.Dy()
	if total <= 0 {
		return 0
	}

	white := 0
	switch src := img.(type) {
	case *image.RGBA:
		for y := b.Min.Y; y < b.Max.Y; y++ {
			row := src.Pix[src.PixOffset(b.Min.X, y):src.PixOffset(b.Max.X, y)]
			for i := 0; i < len(row); i += 4 {
				if nearWhite(uint32(row[i]), uint32(row[i+1]), uint32(row[i+2])) {
					white++
				}
			}
		}
	case *image.NRGBA:
		for y := b.Min.Y; y < b.Max.Y; y++ {
			row := src.Pix[src.PixOffset(b.Min.X, y):src.PixOffset(b.Max.X, y)]
			for i := 0; i < len(row); i += 4 {
				if nearWhite(uint32(row[i]), uint32(row[i+1]), uint32(row[i+2])) {
					white++
				}
			}
		}
	default:
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				r, g, bl, a := img.At(x, y).RGBA()
				r, g, bl = unpremultiply(r, g, bl, a)
				if nearWhite(r>>8, g>>8, bl>>8) {
					white++
				}
			}
		}
	}

	return float64(white) / float64(total)
}

// nearWhite compares the channel sum against three times the level, avoiding the division.
func nearWhite(r, g, b uint32) bool {
	return r+g+b > 3*NearWhiteLevel
}

func unpremultiply(r, g, b, a uint32) (uint32, uint32, uint32) {
	if a == 0 || a == 0xffff {
		return r, g, b
	}
	return r * 0xffff / a, g * 0xffff / a, b * 0xffff / a
}

// Classifier renders pages and thresholds their white fraction.
type Classifier struct {
	renderer  render.Renderer
	threshold float64
	log       zerolog.Logger
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithThreshold overrides DefaultThreshold.
func WithThreshold(threshold float64) Option {
	return func(c *Classifier) { c.threshold = threshold }
}

// NewClassifier creates a Classifier.
func NewClassifier(renderer render.Renderer, log zerolog.Logger, opts ...Option) *Classifier {
	c := &Classifier{renderer: renderer, threshold: DefaultThreshold, log: log}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Threshold returns the configured white-fraction threshold.
func (c *Classifier) Threshold() float64 { return c.threshold }

// ClassifyPage renders the page at the zero-based index at 1:1 zoom and classifies it.
func (c *Classifier) ClassifyPage(ctx context.Context, src render.Source, pageIndex int) (PageVerdict, error) {
	img, err := c.renderer.Render(ctx, src, pageIndex, render.DefaultZoom())
	if err != nil {
		return PageVerdict{}, fmt.Errorf("classify page %d: %w", pageIndex+1, err)
	}

	frac := WhiteFraction(img)
	return PageVerdict{
		PageNumber:    pageIndex + 1,
		WhiteFraction: frac,
		Blank:         frac > c.threshold,
	}, nil
}

// Classify classifies every page of src in order.
func (c *Classifier) Classify(ctx context.Context, src render.Source) (Verdict, error) {
	var v Verdict
	for i := 0; i < src.PageCount(); i++ {
		pv, err := c.ClassifyPage(ctx, src, i)
		if err != nil {
			return Verdict{}, err
		}
		v.Pages = append(v.Pages, pv)
		if pv.Blank {
			v.Blank = append(v.Blank, pv.PageNumber)
		}

		c.log.Debug().
			Int("page", pv.PageNumber).
			Float64("white_fraction", pv.WhiteFraction).
			Bool("blank", pv.Blank).
			Msg("Classified page")
	}

	c.log.Info().
		Ints("blank_pages", v.Blank).
		Str("kind", v.Kind().String()).
		Msg("Blank page detection complete")

	return v, nil
}
