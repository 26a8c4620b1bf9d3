// Package ocr recognizes text in rendered page images.
//
// Three engines are available behind the Engine interface:
//   - tesseract: local Tesseract via gosseract. Requires building with -tags tesseract and
//     the tesseract library with the Polish language pack installed.
//   - vision: Google Cloud Vision document text detection.
//   - documentai: a Google Document AI OCR processor.
//
// Cloud engines read credentials from the environment:
//   - GOOGLE_APPLICATION_CREDENTIALS: Path to service account JSON file, OR
//   - GOOGLE_CREDENTIALS: Inline JSON credentials string
//
// Images are sent as PNG. Cloud requests are limited to 20MB per image.
package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/api/option"
)

const (
	// MaxImageBytes is the maximum encoded image size accepted by the cloud engines.
	MaxImageBytes = 20 * 1024 * 1024

	// DefaultLanguage is the Tesseract language of the policy documents.
	DefaultLanguage = "pol"

	// DefaultTimeout bounds a single cloud request.
	DefaultTimeout = 60 * time.Second
)

// Engine names accepted by New.
const (
	EngineTesseract  = "tesseract"
	EngineVision     = "vision"
	EngineDocumentAI = "documentai"
)

// Engine recognizes text in an image.
type Engine interface {
	// Name returns the engine identifier.
	Name() string

	// Recognize returns the text found in img.
	Recognize(ctx context.Context, img image.Image) (string, error)

	// RecognizeWithMetadata returns the text together with confidence and language data.
	RecognizeWithMetadata(ctx context.Context, img image.Image) (*OCRResult, error)

	// Close releases engine resources.
	Close() error
}

// OCRResult contains the results of OCR processing with metadata.
type OCRResult struct {
	// Text is the recognized text in reading order.
	Text string `json:"text"`

	// Engine is the name of the engine that produced the result.
	Engine string `json:"engine"`

	// Confidence is the average confidence score (0.0 to 1.0), or 0 if the engine does
	// not report one.
	Confidence float32 `json:"confidence"`

	// ProcessedAt is the timestamp when the OCR processing completed.
	ProcessedAt time.Time `json:"processed_at"`

	// LanguageCodes contains the detected languages.
	LanguageCodes []string `json:"language_codes,omitempty"`

	// ProcessingDuration is how long the OCR processing took.
	ProcessingDuration time.Duration `json:"processing_duration"`
}

// Config selects and configures an engine.
type Config struct {
	// Engine is one of EngineTesseract, EngineVision, EngineDocumentAI.
	Engine string

	// Language is the Tesseract language, e.g. "pol" or "pol+eng".
	Language string

	// LanguageHints are passed to Cloud Vision, e.g. ["pl"].
	LanguageHints []string

	// ProjectID, Location, ProcessorID and ProcessorVersion address the Document AI
	// processor.
	ProjectID        string
	Location         string
	ProcessorID      string
	ProcessorVersion string

	// Timeout bounds each cloud request. Default: 60 seconds.
	Timeout time.Duration
}

// New creates the engine named in cfg.
func New(ctx context.Context, cfg Config, log zerolog.Logger) (Engine, error) {
	const op = "New"

	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	switch strings.ToLower(cfg.Engine) {
	case EngineTesseract, "":
		lang := cfg.Language
		if lang == "" {
			lang = DefaultLanguage
		}
		return NewTesseractEngine(lang, log)
	case EngineVision:
		return NewVisionEngine(ctx, cfg, log)
	case EngineDocumentAI:
		return NewDocumentAIEngine(ctx, cfg, log)
	default:
		return nil, WrapOCRError(op, ErrUnknownEngine, fmt.Sprintf("engine %q", cfg.Engine))
	}
}

// encodePNG encodes img for upload and enforces MaxImageBytes.
func encodePNG(img image.Image) ([]byte, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, fmt.Errorf("%w: empty image", ErrEmptyText)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	if buf.Len() > MaxImageBytes {
		return nil, fmt.Errorf("%w: %d bytes", ErrImageTooLarge, buf.Len())
	}
	return buf.Bytes(), nil
}

// credentialOptions reads Google credentials from the environment. Inline JSON wins over
// a credentials file; with neither, ok is false and the client falls back to application
// default credentials.
func credentialOptions() (opts []option.ClientOption, ok bool) {
	if credJSON := os.Getenv("GOOGLE_CREDENTIALS"); credJSON != "" {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(credJSON))}, true
	}
	if credFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); credFile != "" {
		return []option.ClientOption{option.WithCredentialsFile(credFile)}, true
	}
	return nil, false
}

// finish stamps timing data on a result and rejects empty text.
func finish(op string, result *OCRResult, start time.Time) (*OCRResult, error) {
	if strings.TrimSpace(result.Text) == "" {
		return nil, WrapOCRError(op, ErrEmptyText, result.Engine)
	}
	result.ProcessedAt = time.Now()
	result.ProcessingDuration = result.ProcessedAt.Sub(start)
	return result, nil
}

// contextError maps context failures to the package's canceled error, leaving deadline
// errors matchable with errors.Is.
func contextError(op string, err error) error {
	switch {
	case err == context.DeadlineExceeded:
		return WrapOCRError(op, context.DeadlineExceeded, "processing timeout")
	case err == context.Canceled:
		return WrapOCRError(op, ErrContextCanceled, "processing was canceled")
	default:
		return nil
	}
}
