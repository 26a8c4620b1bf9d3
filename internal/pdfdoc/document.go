// Package pdfdoc wraps a scanned PDF for the duration of one processing run.
//
// A Document knows its pages and their sizes, decodes the scan raster of a page on
// demand, and records overlays (stamped images, redaction rectangles) that are applied
// when the document is saved. All PDF reading and writing goes through pdfcpu.
//
// Coordinates exposed by this package use page space: points, origin at the top-left
// corner of the page, y growing downwards. Conversion to PDF user space happens here.
package pdfdoc

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg" // scan rasters extracted as DCT
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"github.com/rs/zerolog"
	_ "golang.org/x/image/tiff" // scan rasters extracted from CCITT streams
)

var configOnce sync.Once

// Configuration returns a pdfcpu configuration that does not touch the user config dir.
func Configuration() *model.Configuration {
	configOnce.Do(api.DisableConfigDir)
	return model.NewDefaultConfiguration()
}

// Page is a single page of a Document.
type Page struct {
	// Index is the zero-based position of the page in the document.
	Index int

	// Width and Height are the page dimensions in points.
	Width  float64
	Height float64

	// Text is filled by OCR once the page has been read.
	Text string

	raster       image.Image
	rasterLoaded bool
}

// Number returns the 1-based page number used in every external interface.
func (p *Page) Number() int { return p.Index + 1 }

// Size returns the page dimensions.
func (p *Page) Size() Size { return Size{Width: p.Width, Height: p.Height} }

// Overlay is an image placed on a page, in page space.
type Overlay struct {
	Page int
	Rect Rect
	Kind string // "image" or "rect"
}

// Document is an open PDF plus the overlays pending for it.
type Document struct {
	path  string
	pages []*Page
	conf  *model.Configuration
	log   zerolog.Logger

	pending  []pendingImage
	overlays []Overlay
}

// pendingImage keeps what is needed to rebuild a watermark. pdfcpu consumes the
// image reader of a watermark when it is applied, so every Save builds fresh ones.
type pendingImage struct {
	page int
	data []byte
	desc string
}

// Open reads page geometry from the PDF at path.
func Open(path string, log zerolog.Logger) (*Document, error) {
	const op = "Open"

	conf := Configuration()
	dims, err := api.PageDimsFile(path)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to read page dimensions of %s: %w", op, path, err)
	}
	if len(dims) == 0 {
		return nil, fmt.Errorf("%s: %s has no pages", op, path)
	}

	pages := make([]*Page, len(dims))
	for i, dim := range dims {
		pages[i] = &Page{Index: i, Width: dim.Width, Height: dim.Height}
	}

	log.Debug().
		Str("file", path).
		Int("pages", len(pages)).
		Msg("Opened PDF document")

	return &Document{
		path:       path,
		pages:      pages,
		conf:       conf,
		log:        log,
	}, nil
}

// Path returns the source file path.
func (d *Document) Path() string { return d.path }

// PageCount returns the number of pages.
func (d *Document) PageCount() int { return len(d.pages) }

// Page returns the page at the zero-based index.
func (d *Document) Page(index int) (*Page, error) {
	if index < 0 || index >= len(d.pages) {
		return nil, fmt.Errorf("page index %d out of range [0, %d)", index, len(d.pages))
	}
	return d.pages[index], nil
}

// PageByNumber returns the page with the 1-based page number nr.
func (d *Document) PageByNumber(nr int) (*Page, error) {
	return d.Page(nr - 1)
}

// PageSize returns the size of the page at the zero-based index.
func (d *Document) PageSize(index int) (Size, error) {
	p, err := d.Page(index)
	if err != nil {
		return Size{}, err
	}
	return p.Size(), nil
}

// Raster returns the scan image of the page at the zero-based index: the largest image
// embedded on that page. It returns nil without error when the page carries no image.
// The decoded raster is cached on the page.
func (d *Document) Raster(index int) (image.Image, error) {
	const op = "Raster"

	page, err := d.Page(index)
	if err != nil {
		return nil, err
	}
	if page.rasterLoaded {
		return page.raster, nil
	}

	f, err := os.Open(d.path)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to open %s: %w", op, d.path, err)
	}
	defer f.Close()

	var (
		best     image.Image
		bestArea int
	)
	selected := []string{strconv.Itoa(page.Number())}
	digest := func(img model.Image, _ bool, _ int) error {
		decoded, _, err := image.Decode(img)
		if err != nil {
			d.log.Warn().
				Err(err).
				Int("page", page.Number()).
				Str("image", img.Name).
				Str("type", img.FileType).
				Msg("Skipping undecodable page image")
			return nil
		}
		b := decoded.Bounds()
		if area := b.Dx() * b.Dy(); area > bestArea {
			best, bestArea = decoded, area
		}
		return nil
	}
	if err := api.ExtractImages(f, selected, digest, d.conf); err != nil {
		return nil, fmt.Errorf("%s: failed to extract images from page %d: %w", op, page.Number(), err)
	}

	page.raster = best
	page.rasterLoaded = true

	if best == nil {
		d.log.Debug().Int("page", page.Number()).Msg("Page has no scan raster")
	}
	return best, nil
}

// StampImage records an image overlay on the 1-based page pageNr. The image is scaled
// proportionally to fit inside rect and centered in it.
func (d *Document) StampImage(pageNr int, imgData []byte, rect Rect) error {
	return d.addImage(pageNr, imgData, rect, "image")
}

func (d *Document) addImage(pageNr int, imgData []byte, rect Rect, kind string) error {
	const op = "StampImage"

	page, err := d.PageByNumber(pageNr)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if rect.Inverted() || rect.Empty() {
		return NewGeometryError(op, "overlay rectangle %s has no area", rect)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(imgData))
	if err != nil {
		return fmt.Errorf("%s: failed to read image header: %w", op, err)
	}
	if cfg.Width == 0 || cfg.Height == 0 {
		return fmt.Errorf("%s: image has zero size", op)
	}

	scale := rect.Width() / float64(cfg.Width)
	if s := rect.Height() / float64(cfg.Height); s < scale {
		scale = s
	}
	w := float64(cfg.Width) * scale
	h := float64(cfg.Height) * scale

	placed := RectAt(
		Point{X: rect.X0 + (rect.Width()-w)/2, Y: rect.Y0 + (rect.Height()-h)/2},
		Size{Width: w, Height: h},
	)

	// pdfcpu offsets are relative to the lower-left page corner.
	desc := fmt.Sprintf("position:bl, offset:%.2f %.2f, scalefactor:%.6f abs, rotation:0",
		placed.X0, page.Height-placed.Y1, scale)
	if _, err := imageWatermark(imgData, desc); err != nil {
		return fmt.Errorf("%s: failed to build overlay: %w", op, err)
	}

	d.pending = append(d.pending, pendingImage{page: pageNr, data: imgData, desc: desc})
	d.overlays = append(d.overlays, Overlay{Page: pageNr, Rect: placed, Kind: kind})

	d.log.Debug().
		Int("page", pageNr).
		Str("kind", kind).
		Str("rect", placed.String()).
		Msg("Recorded page overlay")
	return nil
}

func imageWatermark(data []byte, desc string) (*model.Watermark, error) {
	return api.ImageWatermarkForReader(bytes.NewReader(data), desc, true, false, types.POINTS)
}

// watermarks builds the per-page watermark map for the pending overlays.
func (d *Document) watermarks() (map[int][]*model.Watermark, error) {
	m := make(map[int][]*model.Watermark, len(d.pending))
	for _, p := range d.pending {
		wm, err := imageWatermark(p.data, p.desc)
		if err != nil {
			return nil, err
		}
		m[p.page] = append(m[p.page], wm)
	}
	return m, nil
}

// FillRect records an opaque PNG covering rect exactly.
func (d *Document) FillRect(pageNr int, pngData []byte, rect Rect) error {
	return d.addImage(pageNr, pngData, rect, "rect")
}

// Overlays returns the overlays recorded so far, in placement order.
func (d *Document) Overlays() []Overlay {
	out := make([]Overlay, len(d.overlays))
	copy(out, d.overlays)
	return out
}

// Save writes the document with every pending overlay applied to outPath. The parent
// directory is created if needed. Writes are not atomic.
func (d *Document) Save(outPath string) error {
	const op = "Save"

	if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
		return fmt.Errorf("%s: failed to create output directory: %w", op, err)
	}

	if len(d.pending) == 0 {
		if err := copyFile(d.path, outPath); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	} else {
		wms, err := d.watermarks()
		if err != nil {
			return fmt.Errorf("%s: failed to build overlays: %w", op, err)
		}
		if err := api.AddWatermarksSliceMapFile(d.path, outPath, wms, d.conf); err != nil {
			return fmt.Errorf("%s: failed to write %s: %w", op, outPath, err)
		}
	}

	d.log.Info().
		Str("file", outPath).
		Int("overlays", len(d.overlays)).
		Msg("Saved PDF document")
	return nil
}

// SavePage writes only the 1-based page pageNr, overlays included, to outPath.
func (d *Document) SavePage(pageNr int, outPath string) error {
	const op = "SavePage"

	if _, err := d.PageByNumber(pageNr); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	tmp, err := os.CreateTemp("", "docauto-page-*.pdf")
	if err != nil {
		return fmt.Errorf("%s: failed to create temp file: %w", op, err)
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpPath)

	if err := d.Save(tmpPath); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
		return fmt.Errorf("%s: failed to create output directory: %w", op, err)
	}
	if err := api.TrimFile(tmpPath, outPath, []string{strconv.Itoa(pageNr)}, d.conf); err != nil {
		return fmt.Errorf("%s: failed to extract page %d: %w", op, pageNr, err)
	}
	return nil
}

// Close drops cached rasters.
func (d *Document) Close() error {
	for _, p := range d.pages {
		p.raster = nil
		p.rasterLoaded = false
	}
	return nil
}

// Optimize rewrites inFile to outFile through pdfcpu's optimizer, dropping duplicate and
// unused resources.
func Optimize(inFile, outFile string) error {
	if err := os.MkdirAll(filepath.Dir(outFile), 0755); err != nil {
		return fmt.Errorf("Optimize: failed to create output directory: %w", err)
	}
	if err := api.OptimizeFile(inFile, outFile, Configuration()); err != nil {
		return fmt.Errorf("Optimize: %s: %w", inFile, err)
	}
	return nil
}

// PageCount returns the number of pages of the PDF at path.
func PageCount(path string) (int, error) {
	return api.PageCountFile(path)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("failed to copy %s: %w", src, err)
	}
	return out.Close()
}
