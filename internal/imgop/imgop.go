// Package imgop holds raster utilities for preparing stamp assets: white-to-transparent
// conversion, two-image merging, cropping and rectangle overlays.
package imgop

import (
	"image"
	"image/color"

	"golang.org/x/image/draw"

	"docauto/internal/render"
)

// DefaultWhiteThreshold is the channel level at or above which a pixel counts as white.
const DefaultWhiteThreshold = 240

// WhiteToTransparent returns an NRGBA copy of img in which every pixel whose R, G and B
// are all at or above threshold becomes fully transparent white. Other pixels keep their
// color and alpha. The function is pure and idempotent.
func WhiteToTransparent(img image.Image, threshold uint8) *image.NRGBA {
	out := ToNRGBA(img)
	t := threshold
	for i := 0; i < len(out.Pix); i += 4 {
		p := out.Pix[i : i+4 : i+4]
		if p[0] >= t && p[1] >= t && p[2] >= t {
			p[0], p[1], p[2], p[3] = 255, 255, 255, 0
		}
	}
	return out
}

// ToNRGBA returns a copy of img as a zero-origin *image.NRGBA.
func ToNRGBA(img image.Image) *image.NRGBA {
	b := img.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	if n, ok := img.(*image.NRGBA); ok {
		// Row copy keeps non-premultiplied values exact.
		for y := 0; y < b.Dy(); y++ {
			start := n.PixOffset(b.Min.X, b.Min.Y+y)
			copy(out.Pix[y*out.Stride:], n.Pix[start:start+b.Dx()*4])
		}
		return out
	}
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	return out
}

// MergeOptions controls Merge.
type MergeOptions struct {
	// OverlayFlip selects the stacking order. false draws the resized (smaller) image over
	// the larger one; true draws the larger image over the resized one.
	OverlayFlip bool

	// WhiteThreshold is applied to the background before compositing. Zero means
	// DefaultWhiteThreshold.
	WhiteThreshold uint8
}

// Merge whitens background to transparency, resizes whichever of the two images has the
// smaller pixel area to the exact dimensions of the other, and alpha-composites them. The
// result always has the dimensions of the larger image by area.
func Merge(transparent, background image.Image, opts MergeOptions) *image.NRGBA {
	threshold := opts.WhiteThreshold
	if threshold == 0 {
		threshold = DefaultWhiteThreshold
	}

	fg := ToNRGBA(transparent)
	bg := WhiteToTransparent(background, threshold)

	larger, smaller := fg, bg
	if area(bg) > area(fg) {
		larger, smaller = bg, fg
	}

	bounds := larger.Bounds()
	resized := image.NewNRGBA(bounds)
	draw.CatmullRom.Scale(resized, bounds, smaller, smaller.Bounds(), draw.Src, nil)

	bottom, top := larger, resized
	if opts.OverlayFlip {
		bottom, top = resized, larger
	}

	out := image.NewNRGBA(bounds)
	draw.Draw(out, bounds, bottom, image.Point{}, draw.Src)
	draw.Draw(out, bounds, top, image.Point{}, draw.Over)
	return out
}

func area(img image.Image) int {
	b := img.Bounds()
	return b.Dx() * b.Dy()
}

// OverlayRectangle paints the box left inside margins on a copy of img. In normal mode the
// box is filled white; with debug it is outlined in red so the box can be checked by eye.
func OverlayRectangle(img image.Image, m render.Margins, debug bool) (*image.NRGBA, error) {
	if _, err := render.Crop(img, m); err != nil {
		return nil, err
	}

	out := ToNRGBA(img)
	b := out.Bounds()
	box := image.Rect(m.Left, m.Top, b.Max.X-m.Right, b.Max.Y-m.Bottom)

	if !debug {
		draw.Draw(out, box, image.NewUniform(color.White), image.Point{}, draw.Src)
		return out, nil
	}

	const stroke = 2
	red := image.NewUniform(color.NRGBA{R: 255, A: 255})
	edges := []image.Rectangle{
		image.Rect(box.Min.X, box.Min.Y, box.Max.X, box.Min.Y+stroke),
		image.Rect(box.Min.X, box.Max.Y-stroke, box.Max.X, box.Max.Y),
		image.Rect(box.Min.X, box.Min.Y, box.Min.X+stroke, box.Max.Y),
		image.Rect(box.Max.X-stroke, box.Min.Y, box.Max.X, box.Max.Y),
	}
	for _, e := range edges {
		draw.Draw(out, e.Intersect(box), red, image.Point{}, draw.Src)
	}
	return out, nil
}
