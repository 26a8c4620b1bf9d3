// Package render rasterizes page regions for OCR and blank-page analysis.
package render

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/rs/zerolog"
	"golang.org/x/image/draw"

	"docauto/internal/pdfdoc"
)

// Zoom scales page points to pixels. 1.0 renders at 72 dpi.
type Zoom struct {
	X float64
	Y float64
}

// DefaultZoom returns the 1:1 zoom used for blank-page analysis.
func DefaultZoom() Zoom { return Zoom{X: 1, Y: 1} }

// Uniform returns a zoom with the same factor on both axes.
func Uniform(f float64) Zoom { return Zoom{X: f, Y: f} }

func (z Zoom) validate() error {
	if z.X <= 0 || z.Y <= 0 || math.IsNaN(z.X) || math.IsNaN(z.Y) {
		return fmt.Errorf("render: zoom must be positive, got %gx%g", z.X, z.Y)
	}
	return nil
}

// Source is the part of a document the renderer reads.
type Source interface {
	PageCount() int
	PageSize(index int) (pdfdoc.Size, error)
	Raster(index int) (image.Image, error)
}

// Renderer produces a raster of one page.
type Renderer interface {
	Render(ctx context.Context, src Source, pageIndex int, zoom Zoom) (image.Image, error)
}

// ScanRenderer renders scanned pages by resampling the page's scan image onto a white
// canvas the size of the page at the requested zoom.
type ScanRenderer struct {
	interp draw.Interpolator
	log    zerolog.Logger
}

// NewScanRenderer creates a renderer using bilinear resampling.
func NewScanRenderer(log zerolog.Logger) *ScanRenderer {
	return &ScanRenderer{interp: draw.ApproxBiLinear, log: log}
}

// WithInterpolator swaps the resampling kernel.
func (r *ScanRenderer) WithInterpolator(interp draw.Interpolator) *ScanRenderer {
	r.interp = interp
	return r
}

// Render implements Renderer. A page without a scan image renders as plain white. The
// result has an alpha channel only if the scan has one.
func (r *ScanRenderer) Render(ctx context.Context, src Source, pageIndex int, zoom Zoom) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := zoom.validate(); err != nil {
		return nil, err
	}

	size, err := src.PageSize(pageIndex)
	if err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	w := int(math.Round(size.Width * zoom.X))
	h := int(math.Round(size.Height * zoom.Y))
	if w <= 0 || h <= 0 {
		return nil, pdfdoc.NewGeometryError("Render", "page %d renders to %dx%d pixels", pageIndex+1, w, h)
	}

	scan, err := src.Raster(pageIndex)
	if err != nil {
		return nil, fmt.Errorf("render: page %d: %w", pageIndex+1, err)
	}

	bounds := image.Rect(0, 0, w, h)
	var canvas draw.Image
	if scan != nil && hasAlpha(scan) {
		canvas = image.NewNRGBA(bounds)
	} else {
		canvas = image.NewRGBA(bounds)
	}
	draw.Draw(canvas, bounds, image.NewUniform(color.White), image.Point{}, draw.Src)

	if scan != nil {
		r.interp.Scale(canvas, bounds, scan, scan.Bounds(), draw.Over, nil)
	}

	r.log.Debug().
		Int("page", pageIndex+1).
		Int("width", w).
		Int("height", h).
		Bool("scan", scan != nil).
		Msg("Rendered page")

	return canvas, nil
}

func hasAlpha(img image.Image) bool {
	o, ok := img.(interface{ Opaque() bool })
	return ok && !o.Opaque()
}

// Margins are pixel insets from each edge of an image.
type Margins struct {
	Left   int
	Top    int
	Right  int
	Bottom int
}

func (m Margins) String() string {
	return fmt.Sprintf("l=%d t=%d r=%d b=%d", m.Left, m.Top, m.Right, m.Bottom)
}

// Crop returns the part of img inside the margins, re-based to a zero origin. The crop
// box is (left, top, width-right, height-bottom). Margins are never clamped: a negative
// margin or a box with no area yields a *pdfdoc.GeometryError.
func Crop(img image.Image, m Margins) (image.Image, error) {
	const op = "Crop"

	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	if m.Left < 0 || m.Top < 0 || m.Right < 0 || m.Bottom < 0 {
		return nil, pdfdoc.NewGeometryError(op, "negative margin %s", m)
	}
	if m.Left >= w-m.Right {
		return nil, pdfdoc.NewGeometryError(op, "horizontal margins %s leave no width in %d px", m, w)
	}
	if m.Top >= h-m.Bottom {
		return nil, pdfdoc.NewGeometryError(op, "vertical margins %s leave no height in %d px", m, h)
	}

	src := image.Rect(b.Min.X+m.Left, b.Min.Y+m.Top, b.Max.X-m.Right, b.Max.Y-m.Bottom)
	bounds := image.Rect(0, 0, src.Dx(), src.Dy())
	var dst draw.Image
	if _, ok := img.(*image.NRGBA); ok {
		dst = image.NewNRGBA(bounds)
	} else {
		dst = image.NewRGBA(bounds)
	}
	draw.Draw(dst, bounds, img, src.Min, draw.Src)
	return dst, nil
}
