//go:build !tesseract

package ocr

import (
	"context"
	"image"

	"github.com/rs/zerolog"
)

// TesseractEngine is the stub used when the "tesseract" build tag is not set. Rebuild
// with -tags tesseract to enable local OCR:
//
//	go build -tags tesseract
//
// This requires Tesseract and its Polish data. On Ubuntu/Debian:
//
//	apt-get install tesseract-ocr tesseract-ocr-pol libtesseract-dev
type TesseractEngine struct{}

// NewTesseractEngine returns ErrEngineUnavailable.
func NewTesseractEngine(lang string, log zerolog.Logger) (Engine, error) {
	return nil, WrapOCRError("NewTesseractEngine", ErrEngineUnavailable, "rebuild with -tags tesseract")
}

func (e *TesseractEngine) Name() string { return EngineTesseract }

// Recognize returns ErrEngineUnavailable.
func (e *TesseractEngine) Recognize(context.Context, image.Image) (string, error) {
	return "", ErrEngineUnavailable
}

// RecognizeWithMetadata returns ErrEngineUnavailable.
func (e *TesseractEngine) RecognizeWithMetadata(context.Context, image.Image) (*OCRResult, error) {
	return nil, ErrEngineUnavailable
}

// Close is a no-op. It is safe to call on a nil engine.
func (e *TesseractEngine) Close() error { return nil }
