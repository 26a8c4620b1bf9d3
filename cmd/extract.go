package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"docauto/internal/cropretry"
	"docauto/internal/extract"
	"docauto/internal/logger"
	"docauto/internal/ocr"
	"docauto/internal/pdfdoc"
	"docauto/internal/render"
	"docauto/internal/report"
	"docauto/internal/sheets"
	"docauto/pkg/models"
)

var extractCmd = &cobra.Command{
	Use:   "extract [pdf-file|directory]",
	Short: "Read the policy and payment fields from the first page with OCR",
	Long: `Render the first page of a scanned policy, crop it, run OCR and match the
payer and payment fields with the policy template. When the OCR text comes out
incomplete the crop is shifted and OCR is retried, up to a fixed number of
attempts.

Given a directory, every PDF in it is processed and the records are written
to the report file.

The OCR engine is selected with OCR_ENGINE (tesseract, vision, documentai).
The cloud engines need GOOGLE_APPLICATION_CREDENTIALS or GOOGLE_CREDENTIALS.`,
	Example: `  # Print the fields of one policy
  docauto extract Skan001.pdf

  # Print the raw OCR text of the first page instead
  docauto extract Skan001.pdf --raw

  # Extract a directory into a report and a Google Sheet
  docauto extract outputs/ --report output_ocr/results_ocr.txt --sheet`,
	Args: cobra.ExactArgs(1),
	RunE: runExtract,
}

func init() {
	rootCmd.AddCommand(extractCmd)

	extractCmd.Flags().Bool("raw", false, "Print the OCR text of the cropped page without matching fields")
	extractCmd.Flags().Bool("json", false, "Output as JSON")
	extractCmd.Flags().String("report", "", "Report file for directory runs (default: REPORT_PATH)")
	extractCmd.Flags().Bool("sheet", false, "Append records to the Google Sheet in GOOGLE_SHEET_URL")
	extractCmd.Flags().Int("timeout", 300, "Processing timeout in seconds")
	addCropFlags(extractCmd)
}

// addCropFlags registers the crop flags. Unset flags fall back to the environment.
func addCropFlags(c *cobra.Command) {
	c.Flags().Int("crop-left", 0, "Left crop margin in pixels (default: CROP_LEFT)")
	c.Flags().Int("crop-top", 0, "Top crop margin in pixels (default: CROP_TOP)")
	c.Flags().Int("crop-right", 0, "Right crop margin in pixels (default: CROP_RIGHT)")
	c.Flags().Int("crop-bottom", 0, "Bottom crop margin in pixels (default: CROP_BOTTOM)")
	c.Flags().Int("max-attempts", 0, "Maximum OCR attempts per page (default: CROP_MAX_ATTEMPTS)")
}

func intFlag(cmd *cobra.Command, name string, fallback int) int {
	if !cmd.Flags().Changed(name) {
		return fallback
	}
	v, _ := cmd.Flags().GetInt(name)
	return v
}

func runExtract(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("extract")

	raw, _ := cmd.Flags().GetBool("raw")
	jsonOutput, _ := cmd.Flags().GetBool("json")
	reportPath, _ := cmd.Flags().GetString("report")
	toSheet, _ := cmd.Flags().GetBool("sheet")
	timeoutSecs, _ := cmd.Flags().GetInt("timeout")

	target := args[0]
	info, err := os.Stat(target)
	if err != nil {
		return fmt.Errorf("cannot access %s: %w", target, err)
	}

	ctx, cancel := createContextWithTimeout(timeoutSecs, log)
	defer cancel()

	engine, err := createOCREngine(ctx, log)
	if err != nil {
		return err
	}
	defer engine.Close()

	controller, err := newCropController(cmd, engine)
	if err != nil {
		return err
	}

	if raw {
		return printRawText(ctx, target, controller, engine, log)
	}

	runner := newRunner(controller)

	if !info.IsDir() {
		rec, err := runner.ExtractFields(ctx, target)
		if err != nil {
			return handleOCRError(err, log)
		}
		return outputRecords([]models.PolicyRecord{*rec}, jsonOutput)
	}

	records, errs := runner.ExtractDir(ctx, target)
	for _, e := range errs {
		log.Warn().Err(e).Msg("Document skipped")
	}

	if reportPath == "" {
		reportPath = appConfig.ReportPath
	}
	if err := report.WriteFile(reportPath, records); err != nil {
		return err
	}
	log.Info().
		Str("report", reportPath).
		Int("records", len(records)).
		Int("failed", len(errs)).
		Msg("Report written")

	if toSheet {
		if err := appendToSheet(ctx, records); err != nil {
			return err
		}
	}
	if len(records) == 0 && len(errs) > 0 {
		return fmt.Errorf("no document could be read: %w", errs[0])
	}
	return nil
}

// newCropController builds the crop retry loop from config and flags.
func newCropController(cmd *cobra.Command, engine ocr.Engine) (*cropretry.Controller, error) {
	log := logger.WithComponent("cropretry")

	c := cropretry.New(
		render.NewScanRenderer(logger.WithComponent("render")),
		engine,
		extract.NewExtractor(extract.PolishPolicyTemplate(), logger.WithComponent("extract")),
		log,
	)
	c.Zoom = render.Uniform(appConfig.OCRZoom)
	c.Step = appConfig.CropStep

	c.Margins = render.Margins{
		Left:   intFlag(cmd, "crop-left", appConfig.CropLeft),
		Top:    intFlag(cmd, "crop-top", appConfig.CropTop),
		Right:  intFlag(cmd, "crop-right", appConfig.CropRight),
		Bottom: intFlag(cmd, "crop-bottom", appConfig.CropBottom),
	}
	c.MaxAttempts = intFlag(cmd, "max-attempts", appConfig.CropMaxAttempts)

	if c.MaxAttempts < 1 {
		return nil, fmt.Errorf("--max-attempts must be at least 1")
	}
	return c, nil
}

func printRawText(ctx context.Context, path string, c *cropretry.Controller, engine ocr.Engine, log zerolog.Logger) error {
	doc, err := pdfdoc.Open(path, log)
	if err != nil {
		return err
	}
	defer doc.Close()

	page, err := c.Renderer.Render(ctx, doc, 0, c.Zoom)
	if err != nil {
		return err
	}
	cropped, err := render.Crop(page, c.Margins)
	if err != nil {
		return err
	}
	result, err := engine.RecognizeWithMetadata(ctx, cropped)
	if err != nil {
		return handleOCRError(err, log)
	}

	log.Info().
		Str("engine", result.Engine).
		Float32("confidence", result.Confidence).
		Dur("duration", result.ProcessingDuration).
		Int("text_length", len(result.Text)).
		Msg("OCR completed")

	fmt.Println(result.Text)
	return nil
}

func outputRecords(records []models.PolicyRecord, jsonOutput bool) error {
	if jsonOutput {
		data, err := json.MarshalIndent(records, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to create JSON output: %w", err)
		}
		_, err = os.Stdout.Write(append(data, '\n'))
		return err
	}
	return report.Write(os.Stdout, records)
}

func appendToSheet(ctx context.Context, records []models.PolicyRecord) error {
	if appConfig.GoogleSheetURL == "" {
		return fmt.Errorf("GOOGLE_SHEET_URL is not set")
	}
	svc, err := sheets.NewSheetsService(ctx, appConfig.GoogleSheetURL)
	if err != nil {
		return err
	}
	return svc.AppendRecords(ctx, appConfig.GoogleSheetWorksheet, records)
}

// createContextWithTimeout creates a context with timeout and signal handling
func createContextWithTimeout(timeoutSecs int, log zerolog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeoutSecs)*time.Second)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			log.Info().
				Str("signal", sig.String()).
				Msg("Received interrupt signal, canceling processing")
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}

// createOCREngine creates the engine selected in the configuration
func createOCREngine(ctx context.Context, log zerolog.Logger) (ocr.Engine, error) {
	engine, err := ocr.New(ctx, ocr.Config{
		Engine:           appConfig.OCREngine,
		Language:         appConfig.OCRLanguage,
		LanguageHints:    appConfig.VisionLanguageHints,
		ProjectID:        appConfig.GoogleCloudProject,
		Location:         appConfig.GoogleCloudLocation,
		ProcessorID:      appConfig.DocumentAIProcessorID,
		ProcessorVersion: appConfig.DocumentAIProcessorVersion,
		Timeout:          appConfig.OCRTimeout,
	}, logger.WithComponent("ocr"))
	if err != nil {
		switch {
		case errors.Is(err, ocr.ErrMissingCredentials):
			return nil, fmt.Errorf("Google Cloud credentials not configured. Please set one of:\n\n" +
				"1. Export GOOGLE_APPLICATION_CREDENTIALS with path to service account JSON:\n" +
				"   export GOOGLE_APPLICATION_CREDENTIALS=/path/to/service-account-key.json\n\n" +
				"2. Export GOOGLE_CREDENTIALS with inline JSON\n\n" +
				"3. Check that your .env file contains the credentials variables")
		case errors.Is(err, ocr.ErrEngineUnavailable):
			return nil, fmt.Errorf("%w. Rebuild with -tags tesseract or set OCR_ENGINE=vision", err)
		}
		log.Error().Err(err).Msg("Failed to create OCR engine")
		return nil, fmt.Errorf("failed to create OCR engine: %w", err)
	}

	log.Debug().Str("engine", engine.Name()).Msg("OCR engine created")
	return engine, nil
}

// handleOCRError provides user-friendly error messages for OCR failures
func handleOCRError(err error, log zerolog.Logger) error {
	log.Error().Err(err).Msg("OCR processing failed")

	errStr := err.Error()

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("OCR processing timed out. Try increasing --timeout")
	case errors.Is(err, context.Canceled), errors.Is(err, ocr.ErrContextCanceled):
		return fmt.Errorf("OCR processing was canceled")
	case errors.Is(err, cropretry.ErrExhausted):
		return fmt.Errorf("the policy fields could not be read; adjust the crop margins or --max-attempts: %w", err)
	case errors.Is(err, extract.ErrValidation):
		return fmt.Errorf("the OCR text was read but a field is malformed: %w", err)
	case errors.Is(err, pdfdoc.ErrGeometry):
		return fmt.Errorf("the crop margins do not fit the page: %w", err)
	case errors.Is(err, ocr.ErrImageTooLarge):
		return fmt.Errorf("page image is too large (maximum 20MB). Try a lower OCR_ZOOM")
	case strings.Contains(errStr, "Unauthenticated") ||
		strings.Contains(errStr, "invalid_grant") ||
		strings.Contains(errStr, "transport: per-RPC creds failed"):
		return fmt.Errorf("Google Cloud authentication failed. Please check your credentials: %v", err)
	case strings.Contains(errStr, "PERMISSION_DENIED"):
		return fmt.Errorf("permission denied. Please ensure your service account may call the selected OCR API")
	case strings.Contains(errStr, "QUOTA_EXCEEDED") || strings.Contains(errStr, "quota"):
		return fmt.Errorf("OCR API quota exceeded. Check your project quotas in the Google Cloud Console")
	default:
		return fmt.Errorf("OCR processing failed: %w", err)
	}
}
