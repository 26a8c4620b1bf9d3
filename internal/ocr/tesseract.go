//go:build tesseract

package ocr

import (
	"context"
	"fmt"
	"image"
	"strings"
	"time"

	"github.com/otiai10/gosseract/v2"
	"github.com/rs/zerolog"
)

// TesseractEngine runs Tesseract locally through gosseract.
type TesseractEngine struct {
	languages []string
	log       zerolog.Logger
}

// NewTesseractEngine creates a Tesseract engine. lang may join several languages with
// "+", e.g. "pol+eng".
func NewTesseractEngine(lang string, log zerolog.Logger) (Engine, error) {
	return &TesseractEngine{
		languages: strings.Split(lang, "+"),
		log:       log,
	}, nil
}

func (e *TesseractEngine) Name() string { return EngineTesseract }

// Recognize returns the text found in img.
func (e *TesseractEngine) Recognize(ctx context.Context, img image.Image) (string, error) {
	result, err := e.RecognizeWithMetadata(ctx, img)
	if err != nil {
		return "", err
	}
	return result.Text, nil
}

// RecognizeWithMetadata runs a fresh Tesseract client over img.
func (e *TesseractEngine) RecognizeWithMetadata(ctx context.Context, img image.Image) (*OCRResult, error) {
	const op = "TesseractRecognize"
	start := time.Now()

	if err := contextError(op, ctx.Err()); err != nil {
		return nil, err
	}

	data, err := encodePNG(img)
	if err != nil {
		return nil, WrapOCRError(op, err, "failed to prepare image")
	}

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(e.languages...); err != nil {
		return nil, WrapOCRError(op, ErrOCRFailed, fmt.Sprintf("set languages %v: %v", e.languages, err))
	}
	if err := client.SetImageFromBytes(data); err != nil {
		return nil, WrapOCRError(op, ErrOCRFailed, fmt.Sprintf("set image: %v", err))
	}

	text, err := client.Text()
	if err != nil {
		return nil, WrapOCRError(op, ErrOCRFailed, err.Error())
	}

	result := &OCRResult{
		Text:          text,
		Engine:        e.Name(),
		Confidence:    averageWordConfidence(client),
		LanguageCodes: e.languages,
	}

	e.log.Debug().
		Int("chars", len(text)).
		Float32("confidence", result.Confidence).
		Msg("Tesseract recognition finished")

	return finish(op, result, start)
}

func averageWordConfidence(c *gosseract.Client) float32 {
	boxes, err := c.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil || len(boxes) == 0 {
		return 0
	}
	var sum float64
	for _, b := range boxes {
		sum += b.Confidence / 100.0
	}
	return float32(sum / float64(len(boxes)))
}

// Close is a no-op; every recognition uses its own client.
func (e *TesseractEngine) Close() error { return nil }
