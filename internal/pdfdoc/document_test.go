package pdfdoc_test

import (
	"errors"
	"image/color"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docauto/internal/pdfdoc"
	"docauto/internal/testutil"
)

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	path := testutil.ScanPDF(t, dir, "scan.pdf", testutil.Scans(3)...)

	doc, err := pdfdoc.Open(path, zerolog.Nop())
	require.NoError(t, err)
	defer doc.Close()

	assert.Equal(t, 3, doc.PageCount())

	for i := 0; i < doc.PageCount(); i++ {
		page, err := doc.Page(i)
		require.NoError(t, err)
		assert.Equal(t, i+1, page.Number())
		assert.InDelta(t, testutil.A4Width, page.Width, 0.5)
		assert.InDelta(t, testutil.A4Height, page.Height, 0.5)
	}

	_, err = doc.Page(3)
	assert.Error(t, err)
	_, err = doc.PageByNumber(0)
	assert.Error(t, err)
}

func TestOpenMissingFile(t *testing.T) {
	_, err := pdfdoc.Open(filepath.Join(t.TempDir(), "missing.pdf"), zerolog.Nop())
	assert.Error(t, err)
}

func TestRaster(t *testing.T) {
	dir := t.TempDir()
	path := testutil.ScanPDF(t, dir, "scan.pdf", testutil.WhiteScan(60, 85, 0.5))

	doc, err := pdfdoc.Open(path, zerolog.Nop())
	require.NoError(t, err)

	img, err := doc.Raster(0)
	require.NoError(t, err)
	require.NotNil(t, img)
	assert.Equal(t, 60, img.Bounds().Dx())
	assert.Equal(t, 85, img.Bounds().Dy())

	// Top half is ink, bottom half paper.
	r, _, _, _ := img.At(img.Bounds().Min.X+5, img.Bounds().Min.Y+5).RGBA()
	assert.Less(t, r>>8, uint32(10))
	r, _, _, _ = img.At(img.Bounds().Min.X+5, img.Bounds().Max.Y-5).RGBA()
	assert.Greater(t, r>>8, uint32(245))

	cached, err := doc.Raster(0)
	require.NoError(t, err)
	assert.Same(t, img, cached)
}

func TestStampImageAndSave(t *testing.T) {
	dir := t.TempDir()
	path := testutil.ScanPDF(t, dir, "scan.pdf", testutil.Scans(2)...)

	doc, err := pdfdoc.Open(path, zerolog.Nop())
	require.NoError(t, err)

	// 200x100 image into a 120x120 box: scaled by 0.6, centered vertically.
	stampPNG := testutil.PNG(t, testutil.Solid(200, 100, color.RGBA{0, 0, 255, 255}))
	box := pdfdoc.RectAt(pdfdoc.Point{X: 400, Y: 170}, pdfdoc.Size{Width: 120, Height: 120})
	require.NoError(t, doc.StampImage(2, stampPNG, box))

	overlays := doc.Overlays()
	require.Len(t, overlays, 1)
	assert.Equal(t, 2, overlays[0].Page)
	assert.InDelta(t, 400, overlays[0].Rect.X0, 1e-6)
	assert.InDelta(t, 200, overlays[0].Rect.Y0, 1e-6)
	assert.InDelta(t, 120, overlays[0].Rect.Width(), 1e-6)
	assert.InDelta(t, 60, overlays[0].Rect.Height(), 1e-6)

	out := filepath.Join(dir, "out", "signed.pdf")
	require.NoError(t, doc.Save(out))

	n, err := pdfdoc.PageCount(out)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestStampImageRejectsBadInput(t *testing.T) {
	dir := t.TempDir()
	path := testutil.ScanPDF(t, dir, "scan.pdf", testutil.Scans(1)...)

	doc, err := pdfdoc.Open(path, zerolog.Nop())
	require.NoError(t, err)

	stampPNG := testutil.PNG(t, testutil.Solid(10, 10, color.Black))

	err = doc.StampImage(2, stampPNG, pdfdoc.Rect{X0: 0, Y0: 0, X1: 10, Y1: 10})
	assert.Error(t, err, "page out of range")

	err = doc.StampImage(1, stampPNG, pdfdoc.Rect{X0: 10, Y0: 10, X1: 5, Y1: 20})
	assert.True(t, errors.Is(err, pdfdoc.ErrGeometry))

	err = doc.StampImage(1, []byte("not an image"), pdfdoc.Rect{X0: 0, Y0: 0, X1: 10, Y1: 10})
	assert.Error(t, err)
}

func TestSavePage(t *testing.T) {
	dir := t.TempDir()
	path := testutil.ScanPDF(t, dir, "scan.pdf", testutil.Scans(3)...)

	doc, err := pdfdoc.Open(path, zerolog.Nop())
	require.NoError(t, err)

	out := filepath.Join(dir, "pages", "first.pdf")
	require.NoError(t, doc.SavePage(1, out))

	n, err := pdfdoc.PageCount(out)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.Error(t, doc.SavePage(4, filepath.Join(dir, "nope.pdf")))
}

func TestSaveTwiceWithOverlays(t *testing.T) {
	dir := t.TempDir()
	path := testutil.ScanPDF(t, dir, "scan.pdf", testutil.Scans(3)...)

	doc, err := pdfdoc.Open(path, zerolog.Nop())
	require.NoError(t, err)

	stampPNG := testutil.PNG(t, testutil.Solid(50, 50, color.Black))
	require.NoError(t, doc.StampImage(3, stampPNG, pdfdoc.RectAt(pdfdoc.Point{X: 400, Y: 170}, pdfdoc.Size{Width: 120, Height: 120})))

	signed := filepath.Join(dir, "out", "signed.pdf")
	require.NoError(t, doc.Save(signed))

	fillPNG := testutil.PNG(t, testutil.Solid(4, 4, color.White))
	require.NoError(t, doc.FillRect(1, fillPNG, pdfdoc.Rect{X0: 40, Y0: 464.5, X1: 400, Y1: 580}))

	page := filepath.Join(dir, "redacted", "first.pdf")
	require.NoError(t, doc.SavePage(1, page))
	require.NoError(t, doc.Save(filepath.Join(dir, "out", "again.pdf")))

	counts, err := pdfdoc.PageObjectCounts(signed)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 1, 2}, counts)

	counts, err = pdfdoc.PageObjectCounts(page)
	require.NoError(t, err)
	assert.Equal(t, []int{2}, counts)
}

func TestOptimize(t *testing.T) {
	dir := t.TempDir()
	path := testutil.ScanPDF(t, dir, "scan.pdf", testutil.Scans(2)...)

	out := filepath.Join(dir, "scan_cps.pdf")
	require.NoError(t, pdfdoc.Optimize(path, out))

	n, err := pdfdoc.PageCount(out)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestTextlessPages(t *testing.T) {
	dir := t.TempDir()
	path := testutil.ScanPDF(t, dir, "scan.pdf", testutil.Scans(2)...)

	pages, err := pdfdoc.TextlessPages(path)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, pages)
}

func TestHasTextOperators(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    bool
	}{
		{"show string", "BT /F1 12 Tf 10 10 Td (Hello) Tj ET", true},
		{"show array", "BT [(A) 120 (B)] TJ ET", true},
		{"next line", "BT (line) ' ET", true},
		{"image only", "q 595 0 0 842 0 0 cm /Im1 Do Q", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, pdfdoc.HasTextOperators([]byte(tt.content)))
		})
	}
}

func TestDrawnObjects(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    int
	}{
		{"scan", "q 595 0 0 842 0 0 cm /Im1 Do Q", 1},
		{"scan and stamps", "q 595 0 0 842 0 0 cm /Im1 Do Q q 1 0 0 1 400 500 cm /Fm0 Do Q\nq 1 0 0 1 230 420 cm /Fm1 Do Q", 3},
		{"adjacent", "/A Do /B Do", 2},
		{"text", "BT (Do) Tj ET", 0},
		{"empty", "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, pdfdoc.DrawnObjects([]byte(tt.content)))
		})
	}
}
