// Package testutil builds scanned-PDF and image fixtures for package tests.
package testutil

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-pdf/fpdf"
	"github.com/stretchr/testify/require"
)

// A4 page size in points.
const (
	A4Width  = 595.0
	A4Height = 842.0
)

// Solid returns a w x h RGBA image filled with c.
func Solid(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: c}, image.Point{}, draw.Src)
	return img
}

// WhiteScan returns a white page scan with an optional dark block covering the given
// fraction of its rows.
func WhiteScan(w, h int, inkFraction float64) *image.RGBA {
	img := Solid(w, h, color.White)
	rows := int(float64(h) * inkFraction)
	if rows > 0 {
		draw.Draw(img, image.Rect(0, 0, w, rows), &image.Uniform{C: color.Black}, image.Point{}, draw.Src)
	}
	return img
}

// PNG encodes img.
func PNG(t testing.TB, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// WritePNG encodes img to dir/name and returns the path.
func WritePNG(t testing.TB, dir, name string, img image.Image) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, PNG(t, img), 0644))
	return path
}

// ScanPDF writes a PDF whose pages each carry one full-page image, the way a scanner
// produces them, and returns its path. Every page is A4.
func ScanPDF(t testing.TB, dir, name string, scans ...image.Image) string {
	t.Helper()

	pdf := fpdf.New("P", "pt", "", "")
	opt := fpdf.ImageOptions{ImageType: "PNG"}
	for i, scan := range scans {
		pdf.AddPageFormat("P", fpdf.SizeType{Wd: A4Width, Ht: A4Height})
		imgName := fmt.Sprintf("scan-%d", i+1)
		pdf.RegisterImageOptionsReader(imgName, opt, bytes.NewReader(PNG(t, scan)))
		pdf.ImageOptions(imgName, 0, 0, A4Width, A4Height, false, opt, 0, "")
	}

	path := filepath.Join(dir, name)
	require.NoError(t, pdf.OutputFileAndClose(path))
	return path
}

// Scans returns n page scans. Pages at the listed 1-based positions are plain white, the
// rest carry a dark block over their top rows.
func Scans(n int, blank ...int) []image.Image {
	isBlank := make(map[int]bool, len(blank))
	for _, nr := range blank {
		isBlank[nr] = true
	}
	scans := make([]image.Image, n)
	for i := range scans {
		if isBlank[i+1] {
			scans[i] = WhiteScan(60, 85, 0)
		} else {
			scans[i] = WhiteScan(60, 85, 0.3)
		}
	}
	return scans
}
