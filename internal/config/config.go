package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"docauto/internal/logger"
)

type Config struct {
	// OCR Configuration
	OCREngine           string        `validate:"oneof=tesseract vision documentai"`
	OCRLanguage         string        `validate:"required"`
	VisionLanguageHints []string
	OCRZoom             float64       `validate:"gt=0"`
	OCRTimeout          time.Duration `validate:"gt=0"`

	// Google Cloud Configuration
	GoogleCloudProject         string
	GoogleCloudLocation        string
	DocumentAIProcessorID      string `validate:"required_if=OCREngine documentai"`
	DocumentAIProcessorVersion string

	// Crop retry
	CropLeft        int `validate:"gte=0"`
	CropTop         int `validate:"gte=0"`
	CropRight       int `validate:"gte=0"`
	CropBottom      int `validate:"gte=0"`
	CropMaxAttempts int `validate:"gte=1"`
	CropStep        int `validate:"gte=1"`

	// Blank page detection
	BlankThreshold float64 `validate:"gt=0,lte=1"`
	DocumentLayout string  `validate:"required"`

	// Output locations
	OutputDir  string `validate:"required"`
	RedactDir  string `validate:"required"`
	ReportPath string `validate:"required"`

	// Google Sheets Configuration
	GoogleSheetURL       string `validate:"omitempty,url"`
	GoogleSheetWorksheet string

	// Logging Configuration
	Log logger.LogConfig
}

// Default returns the configuration used when no environment is set.
func Default() *Config {
	return &Config{
		OCREngine:            "tesseract",
		OCRLanguage:          "pol",
		VisionLanguageHints:  []string{"pl"},
		OCRZoom:              2,
		OCRTimeout:           60 * time.Second,
		GoogleCloudLocation:  "us",
		CropMaxAttempts:      25,
		CropStep:             1,
		BlankThreshold:       0.99,
		DocumentLayout:       "standard",
		OutputDir:            "outputs",
		RedactDir:            "outputs/redacted",
		ReportPath:           "outputs/records.txt",
		GoogleSheetWorksheet: "Polisy",
		Log:                  logger.DefaultConfig(),
	}
}

// Load reads the configuration from the environment. Unset variables keep their
// defaults; malformed or out-of-range values are errors.
func Load() (*Config, error) {
	d := Default()
	p := &parser{}

	config := &Config{
		OCREngine:                  strings.ToLower(getEnv("OCR_ENGINE", d.OCREngine)),
		OCRLanguage:                getEnv("OCR_LANGUAGE", d.OCRLanguage),
		VisionLanguageHints:        getEnvList("VISION_LANGUAGE_HINTS", d.VisionLanguageHints),
		OCRZoom:                    p.getFloat("OCR_ZOOM", d.OCRZoom),
		OCRTimeout:                 p.getDuration("OCR_TIMEOUT", d.OCRTimeout),
		GoogleCloudProject:         getEnv("GOOGLE_CLOUD_PROJECT", ""),
		GoogleCloudLocation:        getEnv("GOOGLE_CLOUD_LOCATION", d.GoogleCloudLocation),
		DocumentAIProcessorID:      getEnv("DOCUMENT_AI_PROCESSOR_ID", ""),
		DocumentAIProcessorVersion: getEnv("DOCUMENT_AI_PROCESSOR_VERSION", ""),
		CropLeft:                   p.getInt("CROP_LEFT", d.CropLeft),
		CropTop:                    p.getInt("CROP_TOP", d.CropTop),
		CropRight:                  p.getInt("CROP_RIGHT", d.CropRight),
		CropBottom:                 p.getInt("CROP_BOTTOM", d.CropBottom),
		CropMaxAttempts:            p.getInt("CROP_MAX_ATTEMPTS", d.CropMaxAttempts),
		CropStep:                   p.getInt("CROP_STEP", d.CropStep),
		BlankThreshold:             p.getFloat("BLANK_THRESHOLD", d.BlankThreshold),
		DocumentLayout:             getEnv("DOCUMENT_LAYOUT", d.DocumentLayout),
		OutputDir:                  getEnv("OUTPUT_DIR", d.OutputDir),
		RedactDir:                  getEnv("REDACT_DIR", d.RedactDir),
		ReportPath:                 getEnv("REPORT_PATH", d.ReportPath),
		GoogleSheetURL:             getEnv("GOOGLE_SHEET_URL", ""),
		GoogleSheetWorksheet:       getEnv("GOOGLE_SHEET_WORKSHEET", d.GoogleSheetWorksheet),
		Log: logger.LogConfig{
			Level:      strings.ToLower(getEnv("LOG_LEVEL", d.Log.Level)),
			Format:     getEnv("LOG_FORMAT", d.Log.Format),
			TimeFormat: getEnv("LOG_TIME_FORMAT", d.Log.TimeFormat),
			Output:     getEnv("LOG_OUTPUT", d.Log.Output),
		},
	}

	if p.err != nil {
		return nil, fmt.Errorf("config parse failed: %w", p.err)
	}
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return config, nil
}

var validate = validator.New()

func (c *Config) validate() error {
	return validate.Struct(c)
}

// GetLoggerConfig returns a logger configuration from the main config
func (c *Config) GetLoggerConfig() logger.LogConfig {
	return c.Log
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, v := range strings.Split(value, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// parser keeps the first conversion error so Load can report it once.
type parser struct {
	err error
}

func (p *parser) getInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("%s: %w", key, err)
	}
	return n
}

func (p *parser) getFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("%s: %w", key, err)
	}
	return f
}

func (p *parser) getDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("%s: %w", key, err)
	}
	return d
}
