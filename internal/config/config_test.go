package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().validate())
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "tesseract", cfg.OCREngine)
	assert.Equal(t, 25, cfg.CropMaxAttempts)
	assert.Equal(t, 0.99, cfg.BlankThreshold)
	assert.Equal(t, "standard", cfg.DocumentLayout)
	assert.Equal(t, cfg.Log, cfg.GetLoggerConfig())
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("OCR_ENGINE", "Vision")
	t.Setenv("VISION_LANGUAGE_HINTS", "pl, en ,")
	t.Setenv("OCR_ZOOM", "1.5")
	t.Setenv("OCR_TIMEOUT", "90s")
	t.Setenv("CROP_LEFT", "12")
	t.Setenv("CROP_MAX_ATTEMPTS", "5")
	t.Setenv("BLANK_THRESHOLD", "0.95")
	t.Setenv("OUTPUT_DIR", "signed")
	t.Setenv("LOG_LEVEL", "DEBUG")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "vision", cfg.OCREngine)
	assert.Equal(t, []string{"pl", "en"}, cfg.VisionLanguageHints)
	assert.Equal(t, 1.5, cfg.OCRZoom)
	assert.Equal(t, 90*time.Second, cfg.OCRTimeout)
	assert.Equal(t, 12, cfg.CropLeft)
	assert.Equal(t, 5, cfg.CropMaxAttempts)
	assert.Equal(t, 0.95, cfg.BlankThreshold)
	assert.Equal(t, "signed", cfg.OutputDir)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"malformed int", "CROP_TOP", "ten"},
		{"malformed float", "BLANK_THRESHOLD", "high"},
		{"malformed duration", "OCR_TIMEOUT", "soon"},
		{"negative margin", "CROP_RIGHT", "-1"},
		{"zero attempts", "CROP_MAX_ATTEMPTS", "0"},
		{"threshold above one", "BLANK_THRESHOLD", "1.5"},
		{"unknown engine", "OCR_ENGINE", "abbyy"},
		{"bad log level", "LOG_LEVEL", "loud"},
		{"bad sheet url", "GOOGLE_SHEET_URL", "not a url"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestDocumentAIRequiresProcessor(t *testing.T) {
	t.Setenv("OCR_ENGINE", "documentai")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("DOCUMENT_AI_PROCESSOR_ID", "abc123")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "abc123", cfg.DocumentAIProcessorID)
}
