package ocr

import (
	"context"
	"fmt"
	"image"
	"sort"
	"time"

	vision "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"github.com/rs/zerolog"
	"google.golang.org/grpc/codes"
)

// VisionEngine implements Engine using Google Cloud Vision document text detection.
type VisionEngine struct {
	client  *vision.ImageAnnotatorClient
	hints   []string
	timeout time.Duration
	log     zerolog.Logger
}

// NewVisionEngine creates a Vision engine with credentials from environment.
// It expects either GOOGLE_APPLICATION_CREDENTIALS path or GOOGLE_CREDENTIALS JSON in env.
func NewVisionEngine(ctx context.Context, cfg Config, log zerolog.Logger) (Engine, error) {
	const op = "NewVisionEngine"

	opts, haveCreds := credentialOptions()
	client, err := vision.NewImageAnnotatorClient(ctx, opts...)
	if err != nil {
		if !haveCreds {
			return nil, WrapOCRError(op, ErrMissingCredentials, "no credentials found in environment")
		}
		return nil, WrapOCRError(op, err, "failed to create Vision client")
	}

	return NewVisionEngineWithClient(client, cfg, log), nil
}

// NewVisionEngineWithClient creates a Vision engine with an explicit client (for testing).
func NewVisionEngineWithClient(client *vision.ImageAnnotatorClient, cfg Config, log zerolog.Logger) *VisionEngine {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &VisionEngine{
		client:  client,
		hints:   cfg.LanguageHints,
		timeout: timeout,
		log:     log,
	}
}

func (v *VisionEngine) Name() string { return EngineVision }

// Recognize returns the text found in img.
func (v *VisionEngine) Recognize(ctx context.Context, img image.Image) (string, error) {
	result, err := v.RecognizeWithMetadata(ctx, img)
	if err != nil {
		return "", err
	}
	return result.Text, nil
}

// RecognizeWithMetadata sends img to the Vision API.
func (v *VisionEngine) RecognizeWithMetadata(ctx context.Context, img image.Image) (*OCRResult, error) {
	const op = "VisionRecognize"
	start := time.Now()

	data, err := encodePNG(img)
	if err != nil {
		return nil, WrapOCRError(op, err, "failed to prepare image")
	}

	req := &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{
			{
				Image: &visionpb.Image{Content: data},
				Features: []*visionpb.Feature{
					{Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION},
				},
				ImageContext: &visionpb.ImageContext{LanguageHints: v.hints},
			},
		},
	}

	callCtx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	resp, err := v.client.BatchAnnotateImages(callCtx, req)
	if err != nil {
		if cerr := contextError(op, callCtx.Err()); cerr != nil {
			return nil, cerr
		}
		return nil, WrapOCRError(op, callFailure(err), fmt.Sprintf("Vision API call failed: %v", err))
	}
	if len(resp.Responses) == 0 {
		return nil, WrapOCRError(op, ErrOCRFailed, "no response from Vision API")
	}

	result, err := parseVisionResponse(resp.Responses[0])
	if err != nil {
		return nil, WrapOCRError(op, err, "failed to process Vision API response")
	}
	result.Engine = v.Name()

	v.log.Debug().
		Int("chars", len(result.Text)).
		Float32("confidence", result.Confidence).
		Strs("languages", result.LanguageCodes).
		Msg("Vision recognition finished")

	return finish(op, result, start)
}

// parseVisionResponse extracts text, page confidence and detected languages.
func parseVisionResponse(resp *visionpb.AnnotateImageResponse) (*OCRResult, error) {
	if resp.Error != nil && resp.Error.Message != "" {
		cause := ErrOCRFailed
		if rejectedCode(codes.Code(resp.Error.Code)) {
			cause = ErrRequestRejected
		}
		return nil, fmt.Errorf("%w: Vision API error: %s", cause, resp.Error.Message)
	}
	annotation := resp.FullTextAnnotation
	if annotation == nil {
		return &OCRResult{}, nil
	}

	var (
		confidenceSum float32
		pages         int
		languageSet   = make(map[string]bool)
	)
	for _, page := range annotation.Pages {
		if page.Confidence > 0 {
			confidenceSum += page.Confidence
			pages++
		}
		if page.Property == nil {
			continue
		}
		for _, lang := range page.Property.DetectedLanguages {
			if lang.LanguageCode != "" {
				languageSet[lang.LanguageCode] = true
			}
		}
	}

	result := &OCRResult{Text: annotation.Text}
	if pages > 0 {
		result.Confidence = confidenceSum / float32(pages)
	}
	for lang := range languageSet {
		result.LanguageCodes = append(result.LanguageCodes, lang)
	}
	sort.Strings(result.LanguageCodes)
	return result, nil
}

// Close closes the underlying Vision client.
func (v *VisionEngine) Close() error {
	if v.client != nil {
		return v.client.Close()
	}
	return nil
}
