// Package redact masks regions of a PDF page and exports the masked page on its own.
package redact

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"docauto/internal/pdfdoc"
	"docauto/pkg/models"
)

// Mode selects how a rectangle is painted.
type Mode int

const (
	// ModeFill paints an opaque rectangle.
	ModeFill Mode = iota

	// ModeOutline paints only the border, for checking placement by eye.
	ModeOutline
)

func (m Mode) String() string {
	if m == ModeOutline {
		return "outline"
	}
	return "fill"
}

const (
	// OutlineWidth is the stroke width of ModeOutline in points.
	OutlineWidth = 2.0

	// pixelsPerPoint is the resolution of the generated rectangle images.
	pixelsPerPoint = 4
)

// DefaultRect is the payment block on the first page of the standard policy layout.
var DefaultRect = pdfdoc.Rect{X0: 40, Y0: 464.5, X1: 400, Y1: 580}

// Validate rejects a rectangle that is inverted or reaches outside a page of the given
// size. Rectangles are never clamped.
func Validate(rect pdfdoc.Rect, pageWidth, pageHeight float64) error {
	return rect.CheckBounds(pageWidth, pageHeight)
}

// Placer paints redaction rectangles and writes redacted pages.
type Placer struct {
	// Dir receives exported pages.
	Dir string

	log zerolog.Logger
}

// NewPlacer creates a Placer exporting into dir.
func NewPlacer(dir string, log zerolog.Logger) *Placer {
	return &Placer{Dir: dir, log: log}
}

// Place paints rect on the 1-based page pageNr of doc. The rectangle is validated against
// the page before anything is recorded.
func (p *Placer) Place(doc *pdfdoc.Document, pageNr int, rect pdfdoc.Rect, mode Mode, c color.Color) error {
	const op = "Place"

	page, err := doc.PageByNumber(pageNr)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := Validate(rect, page.Width, page.Height); err != nil {
		return err
	}

	data, err := rectImage(rect, mode, c)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if mode == ModeOutline {
		err = doc.StampImage(pageNr, data, rect)
	} else {
		err = doc.FillRect(pageNr, data, rect)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	p.log.Info().
		Int("page", pageNr).
		Str("rect", rect.String()).
		Str("mode", mode.String()).
		Msg("Placed redaction")
	return nil
}

// rectImage renders rect as a PNG at pixelsPerPoint resolution.
func rectImage(rect pdfdoc.Rect, mode Mode, c color.Color) ([]byte, error) {
	w := int(math.Round(rect.Width() * pixelsPerPoint))
	h := int(math.Round(rect.Height() * pixelsPerPoint))
	if w < 1 || h < 1 {
		return nil, pdfdoc.NewGeometryError("Place", "rectangle %s is too small to paint", rect)
	}

	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	fill := image.NewUniform(c)

	if mode == ModeFill {
		draw.Draw(img, img.Bounds(), fill, image.Point{}, draw.Src)
	} else {
		s := int(OutlineWidth * pixelsPerPoint)
		for _, edge := range []image.Rectangle{
			image.Rect(0, 0, w, s),
			image.Rect(0, h-s, w, h),
			image.Rect(0, 0, s, h),
			image.Rect(w-s, 0, w, h),
		} {
			draw.Draw(img, edge.Intersect(img.Bounds()), fill, image.Point{}, draw.Src)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode rectangle: %w", err)
	}
	return buf.Bytes(), nil
}

// Export writes the 1-based page pageNr of doc, with its overlays, to
// <Dir>/<PolicyNumber>_<PayerCompany>_<PaymentAmount>.pdf and returns the path.
func (p *Placer) Export(doc *pdfdoc.Document, pageNr int, fields models.PolicyFields) (string, error) {
	return p.ExportWithKey(doc, pageNr, ArtifactName(fields))
}

// ExportWithKey writes the page to <Dir>/<key>.pdf. It is used when no fields were
// extracted and the artifact is named after the stamp asset instead.
func (p *Placer) ExportWithKey(doc *pdfdoc.Document, pageNr int, key string) (string, error) {
	key = sanitize(key)
	if key == "" {
		return "", fmt.Errorf("Export: empty artifact name")
	}

	out := filepath.Join(p.Dir, key+".pdf")
	if err := doc.SavePage(pageNr, out); err != nil {
		return "", fmt.Errorf("Export: %w", err)
	}

	p.log.Info().
		Int("page", pageNr).
		Str("file", out).
		Msg("Exported redacted page")
	return out, nil
}

// ArtifactName joins policy number, payer company and amount with underscores.
func ArtifactName(fields models.PolicyFields) string {
	return sanitize(fields.PolicyNumber + "_" + fields.PayerCompany + "_" + fields.PaymentAmount)
}

var unsafeChars = regexp.MustCompile(`[/\\:*?"<>|\x00-\x1f]+`)

func sanitize(name string) string {
	return strings.TrimSpace(unsafeChars.ReplaceAllString(name, "-"))
}
