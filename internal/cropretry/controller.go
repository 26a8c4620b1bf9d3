// Package cropretry runs OCR field extraction on a cropped page region and, when the OCR
// text comes out incomplete, retries with a slightly shifted crop.
package cropretry

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/rs/zerolog"

	"docauto/internal/extract"
	"docauto/internal/ocr"
	"docauto/internal/pdfdoc"
	"docauto/internal/render"
	"docauto/pkg/models"
)

const (
	// DefaultMaxAttempts bounds the number of OCR passes per page.
	DefaultMaxAttempts = 25

	// DefaultStep is the left-margin increment in pixels between attempts.
	DefaultStep = 1
)

// ErrExhausted is returned when every attempt failed with a retryable error.
var ErrExhausted = errors.New("extraction attempts exhausted")

// ExhaustedError carries the attempt count and the last retryable failure.
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("extraction exhausted after %d attempts: %v", e.Attempts, e.Last)
}

// Unwrap exposes both ErrExhausted and the last failure to errors.Is.
func (e *ExhaustedError) Unwrap() []error {
	return []error{ErrExhausted, e.Last}
}

// FieldExtractor turns OCR text into policy fields.
type FieldExtractor interface {
	Extract(text string) (models.PolicyFields, error)
}

// Result is a successful extraction.
type Result struct {
	Fields   models.PolicyFields
	Attempts int

	// Margins is the crop that produced Fields.
	Margins render.Margins

	// Text is the OCR text of the successful attempt.
	Text string
}

// Controller drives render, crop, OCR and extraction for one page.
type Controller struct {
	Renderer  render.Renderer
	Engine    ocr.Engine
	Extractor FieldExtractor

	// Zoom is the render zoom for OCR.
	Zoom render.Zoom

	// Margins is the initial crop; Left grows by Step on each retry.
	Margins render.Margins

	MaxAttempts int
	Step        int

	log zerolog.Logger
}

// New creates a Controller with the default retry bound.
func New(renderer render.Renderer, engine ocr.Engine, extractor FieldExtractor, log zerolog.Logger) *Controller {
	return &Controller{
		Renderer:    renderer,
		Engine:      engine,
		Extractor:   extractor,
		Zoom:        render.DefaultZoom(),
		MaxAttempts: DefaultMaxAttempts,
		Step:        DefaultStep,
		log:         log,
	}
}

// Retryable reports whether err may go away with a different crop: the OCR text was
// incomplete or the engine failed on this image. Content validation errors, geometry
// errors, requests the OCR service rejected and context cancellation are terminal.
func Retryable(err error) bool {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	case errors.Is(err, extract.ErrValidation), errors.Is(err, pdfdoc.ErrGeometry):
		return false
	case errors.Is(err, ocr.ErrRequestRejected):
		return false
	case errors.Is(err, extract.ErrArity), errors.Is(err, ocr.ErrEmptyText), errors.Is(err, ocr.ErrOCRFailed):
		return true
	default:
		return false
	}
}

// Run extracts fields from the page at the zero-based pageIndex. The page is rendered
// once; each attempt crops the render with the current margins.
func (c *Controller) Run(ctx context.Context, src render.Source, pageIndex int) (*Result, error) {
	if c.MaxAttempts < 1 {
		return nil, fmt.Errorf("cropretry: MaxAttempts must be at least 1, got %d", c.MaxAttempts)
	}

	page, err := c.Renderer.Render(ctx, src, pageIndex, c.Zoom)
	if err != nil {
		return nil, fmt.Errorf("cropretry: render page %d: %w", pageIndex+1, err)
	}

	margins := c.Margins
	var last error

	for attempt := 1; attempt <= c.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		res, err := c.attempt(ctx, page, margins)
		if err == nil {
			res.Attempts = attempt
			c.log.Info().
				Int("page", pageIndex+1).
				Int("attempts", attempt).
				Str("margins", margins.String()).
				Msg("Extracted policy fields")
			return res, nil
		}

		if !Retryable(err) {
			c.log.Error().
				Err(err).
				Int("page", pageIndex+1).
				Int("attempt", attempt).
				Msg("Extraction failed")
			return nil, err
		}

		last = err
		c.log.Warn().
			Err(err).
			Int("attempt", attempt).
			Str("margins", margins.String()).
			Msg("Extraction incomplete, adjusting crop")

		margins.Left += c.Step
	}

	return nil, &ExhaustedError{Attempts: c.MaxAttempts, Last: last}
}

func (c *Controller) attempt(ctx context.Context, page image.Image, m render.Margins) (*Result, error) {
	cropped, err := render.Crop(page, m)
	if err != nil {
		return nil, err
	}

	text, err := c.Engine.Recognize(ctx, cropped)
	if err != nil {
		return nil, err
	}

	fields, err := c.Extractor.Extract(text)
	if err != nil {
		return nil, err
	}

	return &Result{Fields: fields, Margins: m, Text: text}, nil
}
