package cmd

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"docauto/internal/blank"
	"docauto/internal/cropretry"
	"docauto/internal/logger"
	"docauto/internal/pdfdoc"
	"docauto/internal/pipeline"
	"docauto/internal/redact"
	"docauto/internal/render"
	"docauto/internal/report"
	"docauto/internal/stamp"
	"docauto/pkg/services"
)

var signCmd = &cobra.Command{
	Use:   "sign [pdf-file]",
	Short: "Stamp a signature onto a scanned policy",
	Long: `Stamp a signature image onto a scanned policy PDF.

The signature page is chosen from the document's blank page: with the
standard layout a blank page 3 means the signature goes on page 4, a blank
page 4 means page 3, and a document without blank pages is signed on its
last page. Use --pages to choose pages explicitly.

By default the payment block on page 1 is masked and that page is exported
on its own to REDACT_DIR. With --ocr the policy fields are read first and
name the exported page; the fields are also written to the report.

With --batch every sub-directory named c<N>_<key> of the given root is
processed, using the stamp asset <N>_<key>_NoBG.png from --assets.`,
	Example: `  # Sign one document
  docauto sign c1_acme/Skan001.pdf --stamp assets_stamps/1_acme_NoBG.png

  # Sign on explicit pages with custom anchors (one group per page)
  docauto sign policy.pdf --stamp sig.png --pages 3,4 --anchors "400,170;230,250|100,700"

  # Sign all client directories and collect the OCR report
  docauto sign --batch . --assets assets_stamps --ocr`,
	Args: func(cmd *cobra.Command, args []string) error {
		batch, _ := cmd.Flags().GetString("batch")
		if batch != "" {
			return cobra.NoArgs(cmd, args)
		}
		return cobra.ExactArgs(1)(cmd, args)
	},
	RunE: runSign,
}

func init() {
	rootCmd.AddCommand(signCmd)

	signCmd.Flags().StringP("stamp", "s", "", "Signature image (PNG with transparency)")
	signCmd.Flags().String("batch", "", "Root directory holding c<N>_<key> client directories")
	signCmd.Flags().String("assets", "assets_stamps", "Directory with <N>_<key>_NoBG.png stamp assets")
	signCmd.Flags().IntSlice("pages", nil, "Explicit 1-based target pages; skips blank page detection")
	signCmd.Flags().String("anchors", "", `Anchor groups "x,y;x,y|x,y", one group per target page`)
	signCmd.Flags().Float64("size", stamp.DefaultBox.Width, "Side of the square box the signature is fitted into, in points")
	signCmd.Flags().Bool("truncate", false, "Ignore extra pages or anchor groups instead of failing")
	signCmd.Flags().Bool("ocr", false, "Read the policy fields from page 1")
	signCmd.Flags().Bool("no-redact", false, "Do not mask page 1 or export it")
	signCmd.Flags().Bool("sheet", false, "Append extracted records to the Google Sheet")
	signCmd.Flags().String("report", "", "Report file (default: REPORT_PATH)")
	signCmd.Flags().Int("timeout", 600, "Processing timeout in seconds")
	addCropFlags(signCmd)
}

func runSign(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("sign")
	flags := cmd.Flags()

	stampPath, _ := flags.GetString("stamp")
	batchRoot, _ := flags.GetString("batch")
	assetsDir, _ := flags.GetString("assets")
	pages, _ := flags.GetIntSlice("pages")
	anchorFlag, _ := flags.GetString("anchors")
	size, _ := flags.GetFloat64("size")
	truncate, _ := flags.GetBool("truncate")
	useOCR, _ := flags.GetBool("ocr")
	noRedact, _ := flags.GetBool("no-redact")
	toSheet, _ := flags.GetBool("sheet")
	reportPath, _ := flags.GetString("report")
	timeoutSecs, _ := flags.GetInt("timeout")

	if batchRoot == "" && stampPath == "" {
		return fmt.Errorf("--stamp is required when signing a single document")
	}

	anchors, err := parseAnchors(anchorFlag)
	if err != nil {
		return err
	}

	ctx, cancel := createContextWithTimeout(timeoutSecs, log)
	defer cancel()

	var retry *cropretry.Controller
	if useOCR {
		engine, err := createOCREngine(ctx, log)
		if err != nil {
			return err
		}
		defer engine.Close()

		if retry, err = newCropController(cmd, engine); err != nil {
			return err
		}
	}

	runner := newRunner(retry)
	runner.Options.OverridePages = pages
	runner.Options.AnchorGroups = anchors
	runner.Options.Box = pdfdoc.Size{Width: size, Height: size}
	runner.Options.Redact = !noRedact
	if truncate {
		runner.Stamper.Mismatch = stamp.MismatchTruncate
	}

	var results []*services.SignResult
	if batchRoot != "" {
		results, err = runner.ProcessBatch(ctx, batchRoot, assetsDir)
		if err != nil {
			return err
		}
	} else {
		results = []*services.SignResult{runner.Process(ctx, args[0], stampPath)}
	}

	failed := 0
	for _, res := range results {
		if !res.Succeeded() {
			failed++
			log.Error().Err(res.Error).Str("file", res.SourceFile).Msg("Document not signed")
			continue
		}
		fmt.Printf("%s -> %s (pages %v)\n", res.SourceFile, res.OutputFile, res.TargetPages)
		if res.RedactedFile != "" {
			fmt.Printf("  redacted page: %s\n", res.RedactedFile)
		}
	}

	if useOCR {
		records := pipeline.Records(results)
		if reportPath == "" {
			reportPath = appConfig.ReportPath
		}
		if err := report.WriteFile(reportPath, records); err != nil {
			return err
		}
		log.Info().Str("report", reportPath).Int("records", len(records)).Msg("Report written")

		if toSheet {
			if err := appendToSheet(ctx, records); err != nil {
				return err
			}
		}
	}

	if failed > 0 {
		if len(results) == 1 {
			return handleSignError(results[0].Error)
		}
		return fmt.Errorf("%d of %d documents failed", failed, len(results))
	}
	return nil
}

// newRunner wires the pipeline from the configuration. retry may be nil.
func newRunner(retry *cropretry.Controller) *pipeline.Runner {
	renderer := render.NewScanRenderer(logger.WithComponent("render"))

	runner := pipeline.New(
		blank.NewClassifier(renderer, logger.WithComponent("blank"), blank.WithThreshold(appConfig.BlankThreshold)),
		blank.NewSelector(logger.WithComponent("selector")),
		stamp.New(logger.WithComponent("stamp")),
		redact.NewPlacer(appConfig.RedactDir, logger.WithComponent("redact")),
		retry,
		appConfig.OutputDir,
		logger.WithComponent("pipeline"),
	)
	runner.Options.Layout = blank.Layout(appConfig.DocumentLayout)
	return runner
}

// parseAnchors reads "x,y;x,y|x,y": groups separated by '|', anchors by ';'.
func parseAnchors(raw string) ([][]pdfdoc.Point, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	var groups [][]pdfdoc.Point
	for _, g := range strings.Split(raw, "|") {
		var group []pdfdoc.Point
		for _, a := range strings.Split(g, ";") {
			xy := strings.Split(strings.TrimSpace(a), ",")
			if len(xy) != 2 {
				return nil, fmt.Errorf("invalid anchor %q: want x,y", a)
			}
			x, err := strconv.ParseFloat(strings.TrimSpace(xy[0]), 64)
			if err != nil {
				return nil, fmt.Errorf("invalid anchor %q: %w", a, err)
			}
			y, err := strconv.ParseFloat(strings.TrimSpace(xy[1]), 64)
			if err != nil {
				return nil, fmt.Errorf("invalid anchor %q: %w", a, err)
			}
			group = append(group, pdfdoc.Point{X: x, Y: y})
		}
		groups = append(groups, group)
	}
	return groups, nil
}

func handleSignError(err error) error {
	switch {
	case err == nil:
		return nil
	case isAny(err, blank.ErrAmbiguousBlankPages):
		return fmt.Errorf("more than one blank page found; choose the signature page with --pages: %w", err)
	case isAny(err, blank.ErrNoInsertionRule, blank.ErrUnknownLayout):
		return fmt.Errorf("the signature page cannot be derived for this layout; use --pages: %w", err)
	case isAny(err, stamp.ErrPlacementMismatch):
		return fmt.Errorf("give one anchor group per target page, or pass --truncate: %w", err)
	case isAny(err, pdfdoc.ErrGeometry):
		return fmt.Errorf("a rectangle does not fit the page: %w", err)
	case isAny(err, cropretry.ErrExhausted):
		return handleOCRError(err, logger.WithComponent("sign"))
	default:
		return err
	}
}

func isAny(err error, targets ...error) bool {
	for _, t := range targets {
		if errors.Is(err, t) {
			return true
		}
	}
	return false
}
