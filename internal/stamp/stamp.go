// Package stamp places a signature image at anchor positions on PDF pages.
package stamp

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"regexp"

	"github.com/rs/zerolog"

	"docauto/internal/pdfdoc"
)

// ErrPlacementMismatch is returned by StampPaired when pages and anchor groups differ in
// length under MismatchStrict.
var ErrPlacementMismatch = errors.New("pages and anchor groups differ in length")

// DefaultBox is the square the signature is fitted into on the standard layout.
var DefaultBox = pdfdoc.Size{Width: 120, Height: 120}

// DefaultAnchors are the signature positions on the standard layout.
func DefaultAnchors() []pdfdoc.Point {
	return []pdfdoc.Point{{X: 400, Y: 170}, {X: 230, Y: 250}}
}

// Placement lists the anchors for one page.
type Placement struct {
	// Page is 1-based.
	Page    int
	Anchors []pdfdoc.Point

	// Box, when set, is the size the image is fitted into at each anchor. Without it the
	// image is placed at its pixel size, one pixel per point.
	Box *pdfdoc.Size
}

// Stamp records one placed image.
type Stamp struct {
	Page   int
	Anchor pdfdoc.Point
	Rect   pdfdoc.Rect
}

// MismatchPolicy decides what StampPaired does with unequal inputs.
type MismatchPolicy int

const (
	// MismatchStrict rejects the call.
	MismatchStrict MismatchPolicy = iota

	// MismatchTruncate uses the shorter of the two lists and logs the dropped entries.
	MismatchTruncate
)

// Stamper places signature images.
type Stamper struct {
	Mismatch MismatchPolicy

	log zerolog.Logger
}

// New creates a Stamper with MismatchStrict.
func New(log zerolog.Logger) *Stamper {
	return &Stamper{log: log}
}

// Stamp places the image at imagePath at every anchor of every group and returns the
// placed rectangles. Nothing is written until the document is saved.
func (s *Stamper) Stamp(doc *pdfdoc.Document, imagePath string, groups []Placement) ([]Stamp, error) {
	const op = "Stamp"

	data, size, err := loadImage(imagePath)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var stamps []Stamp
	for _, g := range groups {
		box := size
		if g.Box != nil {
			box = *g.Box
		}
		for _, anchor := range g.Anchors {
			rect := pdfdoc.RectAt(anchor, box)
			if err := doc.StampImage(g.Page, data, rect); err != nil {
				return stamps, fmt.Errorf("%s: page %d at (%.2f, %.2f): %w", op, g.Page, anchor.X, anchor.Y, err)
			}
			overlays := doc.Overlays()
			stamps = append(stamps, Stamp{Page: g.Page, Anchor: anchor, Rect: overlays[len(overlays)-1].Rect})
		}
	}

	s.log.Info().
		Str("image", filepath.Base(imagePath)).
		Int("stamps", len(stamps)).
		Msg("Stamped signature")
	return stamps, nil
}

// StampPaired places the image on pages[i] at every anchor of anchorGroups[i], fitted
// into box.
func (s *Stamper) StampPaired(doc *pdfdoc.Document, imagePath string, pages []int, anchorGroups [][]pdfdoc.Point, box pdfdoc.Size) ([]Stamp, error) {
	n := len(pages)
	if len(anchorGroups) != n {
		if s.Mismatch == MismatchStrict {
			return nil, fmt.Errorf("StampPaired: %w: %d pages, %d anchor groups", ErrPlacementMismatch, len(pages), len(anchorGroups))
		}
		if len(anchorGroups) < n {
			n = len(anchorGroups)
		}
		s.log.Warn().
			Int("pages", len(pages)).
			Int("anchor_groups", len(anchorGroups)).
			Int("used", n).
			Msg("Page and anchor counts differ, extra entries ignored")
	}

	groups := make([]Placement, n)
	for i := 0; i < n; i++ {
		groups[i] = Placement{Page: pages[i], Anchors: anchorGroups[i], Box: &box}
	}
	return s.Stamp(doc, imagePath, groups)
}

func loadImage(path string) ([]byte, pdfdoc.Size, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, pdfdoc.Size{}, fmt.Errorf("failed to read stamp image: %w", err)
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, pdfdoc.Size{}, fmt.Errorf("failed to decode stamp image %s: %w", path, err)
	}
	return data, pdfdoc.Size{Width: float64(cfg.Width), Height: float64(cfg.Height)}, nil
}

var assetKey = regexp.MustCompile(`\d+_(.*?)_NoBG\.png`)

// KeyFromAssetName extracts the client key from a stamp asset file name such as
// "01_acme_NoBG.png". It reports false when the name does not follow that pattern.
func KeyFromAssetName(name string) (string, bool) {
	m := assetKey.FindStringSubmatch(filepath.Base(name))
	if m == nil || m[1] == "" {
		return "", false
	}
	return m[1], true
}

// FindAsset returns the first file in dir whose asset key equals key.
func FindAsset(dir, key string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("failed to list stamp assets: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if k, ok := KeyFromAssetName(e.Name()); ok && k == key {
			return filepath.Join(dir, e.Name()), nil
		}
	}
	return "", fmt.Errorf("no stamp asset for %q in %s", key, dir)
}
