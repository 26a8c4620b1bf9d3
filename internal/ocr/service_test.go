package ocr

import (
	"context"
	"errors"
	"image"
	"testing"
	"time"

	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genproto/googleapis/rpc/status"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
)

func TestNewUnknownEngine(t *testing.T) {
	_, err := New(context.Background(), Config{Engine: "abbyy"}, zerolog.Nop())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownEngine))

	var ocrErr *OCRError
	require.True(t, errors.As(err, &ocrErr))
	assert.Equal(t, "New", ocrErr.Op)
}

func TestNewDocumentAIRequiresProcessor(t *testing.T) {
	_, err := New(context.Background(), Config{Engine: EngineDocumentAI}, zerolog.Nop())
	assert.True(t, errors.Is(err, ErrInvalidConfiguration))

	_, err = New(context.Background(), Config{Engine: EngineDocumentAI, ProjectID: "p"}, zerolog.Nop())
	assert.True(t, errors.Is(err, ErrInvalidConfiguration))
}

func TestEncodePNG(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 8, 8))
	data, err := encodePNG(img)
	require.NoError(t, err)
	assert.Equal(t, "\x89PNG", string(data[:4]))

	_, err = encodePNG(image.NewGray(image.Rect(0, 0, 0, 0)))
	assert.Error(t, err)

	_, err = encodePNG(nil)
	assert.Error(t, err)
}

func TestFinishRejectsEmptyText(t *testing.T) {
	_, err := finish("Recognize", &OCRResult{Text: " \n\t", Engine: "fake"}, time.Now())
	assert.True(t, errors.Is(err, ErrEmptyText))

	start := time.Now().Add(-time.Second)
	res, err := finish("Recognize", &OCRResult{Text: "tekst"}, start)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, res.ProcessingDuration, time.Second)
	assert.False(t, res.ProcessedAt.IsZero())
}

func TestParseVisionResponse(t *testing.T) {
	resp := &visionpb.AnnotateImageResponse{
		FullTextAnnotation: &visionpb.TextAnnotation{
			Text: "Polisa nr 123\n",
			Pages: []*visionpb.Page{
				{
					Confidence: 0.9,
					Property: &visionpb.TextAnnotation_TextProperty{
						DetectedLanguages: []*visionpb.TextAnnotation_DetectedLanguage{
							{LanguageCode: "pl"},
							{LanguageCode: "en"},
						},
					},
				},
				{Confidence: 0.7},
			},
		},
	}

	res, err := parseVisionResponse(resp)
	require.NoError(t, err)
	assert.Equal(t, "Polisa nr 123\n", res.Text)
	assert.InDelta(t, 0.8, res.Confidence, 1e-6)
	assert.Equal(t, []string{"en", "pl"}, res.LanguageCodes)
}

func TestParseVisionResponseError(t *testing.T) {
	resp := &visionpb.AnnotateImageResponse{Error: &status.Status{Code: 3, Message: "bad image"}}
	_, err := parseVisionResponse(resp)
	assert.True(t, errors.Is(err, ErrOCRFailed))
	assert.True(t, errors.Is(err, ErrRequestRejected), "invalid argument is permanent")

	resp = &visionpb.AnnotateImageResponse{Error: &status.Status{Code: 14, Message: "unavailable"}}
	_, err = parseVisionResponse(resp)
	assert.True(t, errors.Is(err, ErrOCRFailed))
	assert.False(t, errors.Is(err, ErrRequestRejected))

	res, err := parseVisionResponse(&visionpb.AnnotateImageResponse{})
	require.NoError(t, err)
	assert.Empty(t, res.Text)
}

func TestParseDocument(t *testing.T) {
	doc := &documentaipb.Document{
		Text: "Płatności\n",
		Pages: []*documentaipb.Document_Page{
			{DetectedLanguages: []*documentaipb.Document_Page_DetectedLanguage{
				{LanguageCode: "pl", Confidence: 0.96},
				{LanguageCode: "", Confidence: 0.2},
			}},
		},
	}

	res := parseDocument(doc)
	assert.Equal(t, "Płatności\n", res.Text)
	assert.InDelta(t, 0.96, res.Confidence, 1e-6)
	assert.Equal(t, []string{"pl"}, res.LanguageCodes)
}

func TestDocumentAIProcessorName(t *testing.T) {
	e := NewDocumentAIEngineWithClient(nil, Config{ProjectID: "proj", Location: "eu", ProcessorID: "abc"}, zerolog.Nop())
	assert.Equal(t, "projects/proj/locations/eu/processors/abc", e.processorName())

	e = NewDocumentAIEngineWithClient(nil, Config{ProjectID: "proj", Location: "eu", ProcessorID: "abc", ProcessorVersion: "v2"}, zerolog.Nop())
	assert.Equal(t, "projects/proj/locations/eu/processors/abc/processorVersions/v2", e.processorName())
	assert.Equal(t, DefaultTimeout, e.config.Timeout)
	assert.NoError(t, e.Close())
}

func TestDocumentAIHandleProcessingError(t *testing.T) {
	e := NewDocumentAIEngineWithClient(nil, Config{ProcessorID: "abc"}, zerolog.Nop())

	tests := []struct {
		msg  string
		want error
	}{
		{"rpc error: code = PermissionDenied desc = PERMISSION_DENIED", ErrMissingCredentials},
		{"rpc error: code = NotFound desc = processor", ErrInvalidConfiguration},
		{"context deadline exceeded", context.DeadlineExceeded},
		{"context canceled", ErrContextCanceled},
		{"rpc error: code = Internal", ErrOCRFailed},
	}

	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			err := e.handleProcessingError("DocumentAIRecognize", errors.New(tt.msg))
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestCallFailure(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		rejected bool
	}{
		{"invalid argument", grpcstatus.Error(codes.InvalidArgument, "bad image"), true},
		{"unauthenticated", grpcstatus.Error(codes.Unauthenticated, "token"), true},
		{"unavailable", grpcstatus.Error(codes.Unavailable, "try later"), false},
		{"internal", grpcstatus.Error(codes.Internal, "boom"), false},
		{"plain", errors.New("connection reset"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := callFailure(tt.err)
			assert.True(t, errors.Is(err, ErrOCRFailed))
			assert.Equal(t, tt.rejected, errors.Is(err, ErrRequestRejected))
		})
	}

	e := NewDocumentAIEngineWithClient(nil, Config{ProcessorID: "abc"}, zerolog.Nop())
	err := e.handleProcessingError("DocumentAIRecognize", grpcstatus.Error(codes.InvalidArgument, "unsupported mime type"))
	assert.True(t, errors.Is(err, ErrRequestRejected))
}

func TestWrapOCRError(t *testing.T) {
	assert.Nil(t, WrapOCRError("op", nil, ""))

	err := WrapOCRError("Recognize", ErrOCRFailed, "details")
	assert.Equal(t, "ocr: Recognize failed: details: OCR processing failed", err.Error())

	again := WrapOCRError("Outer", err, "more")
	assert.Same(t, err, again)
}

func TestVisionEngineName(t *testing.T) {
	e := NewVisionEngineWithClient(nil, Config{LanguageHints: []string{"pl"}}, zerolog.Nop())
	assert.Equal(t, EngineVision, e.Name())
	assert.Equal(t, []string{"pl"}, e.hints)
	assert.NoError(t, e.Close())
}
