package ocr

import (
	"context"
	"fmt"
	"image"
	"sort"
	"strings"
	"time"

	documentai "cloud.google.com/go/documentai/apiv1"
	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"
)

// DocumentAIEngine implements Engine with a Document AI OCR processor.
type DocumentAIEngine struct {
	client *documentai.DocumentProcessorClient
	config Config
	log    zerolog.Logger
}

// NewDocumentAIEngine creates an engine with credentials from environment.
// Requires: ProjectID and ProcessorID. Location defaults to "us".
func NewDocumentAIEngine(ctx context.Context, cfg Config, log zerolog.Logger) (Engine, error) {
	const op = "NewDocumentAIEngine"

	if cfg.ProjectID == "" {
		return nil, WrapOCRError(op, ErrInvalidConfiguration, "GOOGLE_CLOUD_PROJECT is required")
	}
	if cfg.ProcessorID == "" {
		return nil, WrapOCRError(op, ErrInvalidConfiguration, "DOCUMENT_AI_PROCESSOR_ID is required")
	}
	if cfg.Location == "" {
		cfg.Location = "us"
	}

	var clientOptions []option.ClientOption

	// Regional endpoint outside the US multi-region.
	if cfg.Location != "us" {
		endpoint := fmt.Sprintf("%s-documentai.googleapis.com:443", cfg.Location)
		clientOptions = append(clientOptions, option.WithEndpoint(endpoint))
	}

	creds, haveCreds := credentialOptions()
	clientOptions = append(clientOptions, creds...)

	client, err := documentai.NewDocumentProcessorClient(ctx, clientOptions...)
	if err != nil {
		if !haveCreds {
			return nil, WrapOCRError(op, ErrMissingCredentials, "no credentials found in environment")
		}
		return nil, WrapOCRError(op, err, fmt.Sprintf("failed to create Document AI client for location: %s", cfg.Location))
	}

	return NewDocumentAIEngineWithClient(client, cfg, log), nil
}

// NewDocumentAIEngineWithClient creates an engine with explicit config and client (for testing).
func NewDocumentAIEngineWithClient(client *documentai.DocumentProcessorClient, cfg Config, log zerolog.Logger) *DocumentAIEngine {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &DocumentAIEngine{client: client, config: cfg, log: log}
}

func (p *DocumentAIEngine) Name() string { return EngineDocumentAI }

// Recognize returns the text found in img.
func (p *DocumentAIEngine) Recognize(ctx context.Context, img image.Image) (string, error) {
	result, err := p.RecognizeWithMetadata(ctx, img)
	if err != nil {
		return "", err
	}
	return result.Text, nil
}

// RecognizeWithMetadata sends img to the configured processor.
func (p *DocumentAIEngine) RecognizeWithMetadata(ctx context.Context, img image.Image) (*OCRResult, error) {
	const op = "DocumentAIRecognize"
	start := time.Now()

	data, err := encodePNG(img)
	if err != nil {
		return nil, WrapOCRError(op, err, "failed to prepare image")
	}

	processCtx, cancel := context.WithTimeout(ctx, p.config.Timeout)
	defer cancel()

	req := &documentaipb.ProcessRequest{
		Name: p.processorName(),
		Source: &documentaipb.ProcessRequest_RawDocument{
			RawDocument: &documentaipb.RawDocument{
				Content:  data,
				MimeType: "image/png",
			},
		},
	}

	resp, err := p.client.ProcessDocument(processCtx, req)
	if err != nil {
		return nil, p.handleProcessingError(op, err)
	}
	if resp.Document == nil {
		return nil, WrapOCRError(op, ErrOCRFailed, "no document in response")
	}

	result := parseDocument(resp.Document)
	result.Engine = p.Name()

	p.log.Debug().
		Int("chars", len(result.Text)).
		Float32("confidence", result.Confidence).
		Msg("Document AI recognition finished")

	return finish(op, result, start)
}

// processorName constructs the full processor name for Document AI API.
func (p *DocumentAIEngine) processorName() string {
	if p.config.ProcessorVersion != "" {
		return fmt.Sprintf("projects/%s/locations/%s/processors/%s/processorVersions/%s",
			p.config.ProjectID, p.config.Location, p.config.ProcessorID, p.config.ProcessorVersion)
	}
	return fmt.Sprintf("projects/%s/locations/%s/processors/%s",
		p.config.ProjectID, p.config.Location, p.config.ProcessorID)
}

// handleProcessingError converts Document AI errors to OCR errors.
func (p *DocumentAIEngine) handleProcessingError(op string, err error) error {
	errStr := err.Error()

	switch {
	case strings.Contains(errStr, "PERMISSION_DENIED"), strings.Contains(errStr, "PermissionDenied"):
		return WrapOCRError(op, ErrMissingCredentials, "insufficient permissions for Document AI")
	case strings.Contains(errStr, "NOT_FOUND"), strings.Contains(errStr, "NotFound"):
		return WrapOCRError(op, ErrInvalidConfiguration, fmt.Sprintf("processor not found: %s", p.config.ProcessorID))
	case strings.Contains(errStr, "DeadlineExceeded") || strings.Contains(errStr, "context deadline exceeded"):
		return WrapOCRError(op, context.DeadlineExceeded, "processing timeout")
	case strings.Contains(errStr, "Canceled") || strings.Contains(errStr, "context canceled"):
		return WrapOCRError(op, ErrContextCanceled, "processing was canceled")
	default:
		return WrapOCRError(op, callFailure(err), fmt.Sprintf("Document AI error: %v", err))
	}
}

// parseDocument reads text, mean language confidence and detected languages.
func parseDocument(doc *documentaipb.Document) *OCRResult {
	var (
		confidenceSum float32
		count         int
		languageSet   = make(map[string]bool)
	)
	for _, page := range doc.Pages {
		for _, lang := range page.DetectedLanguages {
			if lang.LanguageCode == "" {
				continue
			}
			languageSet[lang.LanguageCode] = true
			confidenceSum += lang.Confidence
			count++
		}
	}

	result := &OCRResult{Text: doc.Text}
	if count > 0 {
		result.Confidence = confidenceSum / float32(count)
	}
	for lang := range languageSet {
		result.LanguageCodes = append(result.LanguageCodes, lang)
	}
	sort.Strings(result.LanguageCodes)
	return result
}

// Close closes the underlying client.
func (p *DocumentAIEngine) Close() error {
	if p.client != nil {
		return p.client.Close()
	}
	return nil
}
