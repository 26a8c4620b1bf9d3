//go:build tesseract

package ocr

import (
	"context"
	"image"
	"image/color"
	"image/draw"
	"os/exec"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

func ensureTesseractAvailable(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("tesseract"); err != nil {
		t.Skip("tesseract not installed in PATH")
	}
}

func TestTesseractEngineRecognize(t *testing.T) {
	ensureTesseractAvailable(t)

	img := image.NewRGBA(image.Rect(0, 0, 240, 80))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)

	d := &font.Drawer{
		Dst:  img,
		Src:  image.Black,
		Face: basicfont.Face7x13,
		Dot:  fixed.P(10, 50),
	}
	d.DrawString("Hello PDF")

	engine, err := New(context.Background(), Config{Engine: EngineTesseract, Language: "eng"}, zerolog.Nop())
	require.NoError(t, err)
	defer engine.Close()

	res, err := engine.RecognizeWithMetadata(context.Background(), img)
	require.NoError(t, err)

	got := strings.ToLower(res.Text)
	assert.Contains(t, got, "hello")
	assert.Equal(t, EngineTesseract, res.Engine)
	assert.Equal(t, []string{"eng"}, res.LanguageCodes)
}

func TestTesseractEngineBlankImage(t *testing.T) {
	ensureTesseractAvailable(t)

	img := image.NewRGBA(image.Rect(0, 0, 100, 100))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)

	engine, err := NewTesseractEngine("eng", zerolog.Nop())
	require.NoError(t, err)

	_, err = engine.Recognize(context.Background(), img)
	assert.ErrorIs(t, err, ErrEmptyText)
}
