package redact

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docauto/internal/pdfdoc"
	"docauto/internal/testutil"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		rect    pdfdoc.Rect
		wantErr bool
	}{
		{"default rect on A4", DefaultRect, false},
		{"full page", pdfdoc.Rect{X1: testutil.A4Width, Y1: testutil.A4Height}, false},
		{"negative x0", pdfdoc.Rect{X0: -1, Y0: 0, X1: 10, Y1: 10}, true},
		{"x1 beyond width", pdfdoc.Rect{X0: 0, Y0: 0, X1: 596, Y1: 10}, true},
		{"y1 beyond height", pdfdoc.Rect{X0: 0, Y0: 800, X1: 10, Y1: 843}, true},
		{"inverted", pdfdoc.Rect{X0: 100, Y0: 0, X1: 50, Y1: 10}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.rect, testutil.A4Width, testutil.A4Height)
			if tt.wantErr {
				assert.True(t, errors.Is(err, pdfdoc.ErrGeometry))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestPlaceFill(t *testing.T) {
	dir := t.TempDir()
	doc, err := pdfdoc.Open(testutil.ScanPDF(t, dir, "policy.pdf", testutil.Scans(2)...), zerolog.Nop())
	require.NoError(t, err)

	p := NewPlacer(filepath.Join(dir, "redacted"), zerolog.Nop())
	require.NoError(t, p.Place(doc, 1, DefaultRect, ModeFill, color.White))

	overlays := doc.Overlays()
	require.Len(t, overlays, 1)
	assert.Equal(t, "rect", overlays[0].Kind)
	assert.InDelta(t, DefaultRect.X0, overlays[0].Rect.X0, 1e-6)
	assert.InDelta(t, DefaultRect.Y0, overlays[0].Rect.Y0, 1e-6)
	assert.InDelta(t, DefaultRect.X1, overlays[0].Rect.X1, 1e-6)
	assert.InDelta(t, DefaultRect.Y1, overlays[0].Rect.Y1, 1e-6)
}

func TestPlaceOutOfBoundsRecordsNothing(t *testing.T) {
	dir := t.TempDir()
	doc, err := pdfdoc.Open(testutil.ScanPDF(t, dir, "policy.pdf", testutil.Scans(1)...), zerolog.Nop())
	require.NoError(t, err)

	p := NewPlacer(dir, zerolog.Nop())
	err = p.Place(doc, 1, pdfdoc.Rect{X0: 500, Y0: 10, X1: 700, Y1: 20}, ModeFill, color.White)
	assert.True(t, errors.Is(err, pdfdoc.ErrGeometry))
	assert.Empty(t, doc.Overlays())

	assert.Error(t, p.Place(doc, 2, DefaultRect, ModeFill, color.White))
}

func TestRectImage(t *testing.T) {
	rect := pdfdoc.Rect{X0: 0, Y0: 0, X1: 10, Y1: 5}

	decode := func(data []byte) image.Image {
		img, err := png.Decode(bytes.NewReader(data))
		require.NoError(t, err)
		return img
	}

	filled, err := rectImage(rect, ModeFill, color.White)
	require.NoError(t, err)
	img := decode(filled)
	assert.Equal(t, image.Rect(0, 0, 40, 20), img.Bounds())
	_, _, _, a := img.At(20, 10).RGBA()
	assert.Equal(t, uint32(0xffff), a)

	outlined, err := rectImage(rect, ModeOutline, color.RGBA{R: 255, A: 255})
	require.NoError(t, err)
	img = decode(outlined)
	r, _, _, a := img.At(0, 0).RGBA()
	assert.Equal(t, uint32(0xffff), r)
	assert.Equal(t, uint32(0xffff), a)
	_, _, _, a = img.At(20, 10).RGBA()
	assert.Equal(t, uint32(0), a, "outline interior stays transparent")

	_, err = rectImage(pdfdoc.Rect{X1: 0.1, Y1: 0.1}, ModeFill, color.White)
	assert.True(t, errors.Is(err, pdfdoc.ErrGeometry))
}

func TestExport(t *testing.T) {
	dir := t.TempDir()
	doc, err := pdfdoc.Open(testutil.ScanPDF(t, dir, "policy.pdf", testutil.Scans(3)...), zerolog.Nop())
	require.NoError(t, err)

	p := NewPlacer(filepath.Join(dir, "redacted"), zerolog.Nop())
	require.NoError(t, p.Place(doc, 1, DefaultRect, ModeFill, color.White))

	out, err := p.Export(doc, 1, testutil.PolicyTextFields)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "redacted", "123456789_ACME TRADE sp. z o.o._1500.pdf"), out)

	n, err := pdfdoc.PageCount(out)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestExportWithKey(t *testing.T) {
	dir := t.TempDir()
	doc, err := pdfdoc.Open(testutil.ScanPDF(t, dir, "policy.pdf", testutil.Scans(2)...), zerolog.Nop())
	require.NoError(t, err)

	p := NewPlacer(dir, zerolog.Nop())
	out, err := p.ExportWithKey(doc, 1, "acme/trade")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "acme-trade.pdf"), out)

	_, err = p.ExportWithKey(doc, 1, "  ")
	assert.Error(t, err)
}

func TestArtifactName(t *testing.T) {
	assert.Equal(t, "123456789_ACME TRADE sp. z o.o._1500", ArtifactName(testutil.PolicyTextFields))
}
