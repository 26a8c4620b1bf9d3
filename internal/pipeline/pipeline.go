// Package pipeline signs scanned policies: it picks the insertion page from the blank page
// layout, stamps the signature, and optionally extracts the policy fields and exports a
// redacted first page.
package pipeline

import (
	"context"
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"docauto/internal/blank"
	"docauto/internal/cropretry"
	"docauto/internal/logger"
	"docauto/internal/pdfdoc"
	"docauto/internal/redact"
	"docauto/internal/stamp"
	"docauto/pkg/models"
	"docauto/pkg/services"
)

// Options controls a signing run.
type Options struct {
	Layout blank.Layout

	// OverridePages bypasses blank-page selection.
	OverridePages []int

	// AnchorGroups pairs with the target pages. Empty means stamp.DefaultAnchors on every
	// target page.
	AnchorGroups [][]pdfdoc.Point
	Box          pdfdoc.Size

	// Redact masks RedactRect on the first page and exports that page alone.
	Redact     bool
	RedactRect pdfdoc.Rect
}

// DefaultOptions returns the standard layout settings.
func DefaultOptions() Options {
	return Options{
		Layout:     blank.LayoutStandard,
		Box:        stamp.DefaultBox,
		Redact:     true,
		RedactRect: redact.DefaultRect,
	}
}

// Runner processes documents one at a time.
type Runner struct {
	Classifier *blank.Classifier
	Selector   *blank.Selector
	Stamper    *stamp.Stamper
	Placer     *redact.Placer

	// Retry is nil when field extraction is disabled.
	Retry *cropretry.Controller

	OutputDir string
	Options   Options

	log zerolog.Logger
}

var _ services.SigningService = (*Runner)(nil)

// New creates a Runner. retry may be nil.
func New(classifier *blank.Classifier, selector *blank.Selector, stamper *stamp.Stamper, placer *redact.Placer, retry *cropretry.Controller, outputDir string, log zerolog.Logger) *Runner {
	return &Runner{
		Classifier: classifier,
		Selector:   selector,
		Stamper:    stamper,
		Placer:     placer,
		Retry:      retry,
		OutputDir:  outputDir,
		Options:    DefaultOptions(),
		log:        log,
	}
}

// OutputPath is where the signed copy of pdfPath is written.
func (r *Runner) OutputPath(pdfPath string) string {
	base := strings.TrimSuffix(filepath.Base(pdfPath), filepath.Ext(pdfPath))
	return filepath.Join(r.OutputDir, base+"_signed.pdf")
}

// SignDocument implements services.SigningService.
func (r *Runner) SignDocument(ctx context.Context, pdfPath, stampPath string) (*services.SignResult, error) {
	res := r.Process(ctx, pdfPath, stampPath)
	return res, res.Error
}

// Process signs one document. The returned result is never nil; on failure its Error is
// set and Status is StatusError.
func (r *Runner) Process(ctx context.Context, pdfPath, stampPath string) *services.SignResult {
	start := time.Now()
	res := &services.SignResult{
		SourceFile: pdfPath,
		StampFile:  stampPath,
		RunID:      uuid.New().String(),
	}
	log := logger.WithRunID(logger.WithDocument(r.log, pdfPath), res.RunID)

	err := r.process(ctx, pdfPath, stampPath, res, log)

	res.ProcessedAt = time.Now()
	res.Duration = time.Since(start)
	if err != nil {
		res.Status = services.StatusError
		res.Error = err
		log.Error().Err(err).Msg("Document processing failed")
		return res
	}
	res.Status = services.StatusSuccess
	log.Info().
		Str("output", res.OutputFile).
		Ints("pages", res.TargetPages).
		Dur("duration", res.Duration).
		Msg("Document signed")
	return res
}

func (r *Runner) process(ctx context.Context, pdfPath, stampPath string, res *services.SignResult, log zerolog.Logger) error {
	doc, err := pdfdoc.Open(pdfPath, log)
	if err != nil {
		return err
	}
	defer doc.Close()

	opts := r.Options

	var verdict blank.Verdict
	if len(opts.OverridePages) == 0 {
		verdict, err = r.Classifier.Classify(ctx, doc)
		if err != nil {
			return fmt.Errorf("classify blank pages: %w", err)
		}
		res.BlankPages = verdict.Blank
	}

	pages, err := r.Selector.Select(opts.Layout, verdict, doc.PageCount(), opts.OverridePages)
	if err != nil {
		return err
	}
	res.TargetPages = pages

	groups := opts.AnchorGroups
	if len(groups) == 0 {
		groups = make([][]pdfdoc.Point, len(pages))
		for i := range groups {
			groups[i] = stamp.DefaultAnchors()
		}
	}
	if _, err := r.Stamper.StampPaired(doc, stampPath, pages, groups, opts.Box); err != nil {
		return err
	}

	out := r.OutputPath(pdfPath)
	if err := doc.Save(out); err != nil {
		return err
	}
	res.OutputFile = out

	var fields *models.PolicyFields
	if r.Retry != nil {
		extracted, err := r.extract(ctx, doc)
		if err != nil {
			return err
		}
		fields = &extracted.Fields
		res.Fields = fields
		res.Attempts = extracted.Attempts
	}

	if opts.Redact && r.Placer != nil {
		if err := r.Placer.Place(doc, 1, opts.RedactRect, redact.ModeFill, color.White); err != nil {
			return err
		}
		var exported string
		if fields != nil {
			exported, err = r.Placer.Export(doc, 1, *fields)
		} else {
			exported, err = r.Placer.ExportWithKey(doc, 1, artifactKey(pdfPath, stampPath))
		}
		if err != nil {
			return err
		}
		res.RedactedFile = exported
	}
	return nil
}

// artifactKey names a redacted page without OCR: the stamp asset key when the asset
// follows the naming convention, the document name otherwise.
func artifactKey(pdfPath, stampPath string) string {
	base := strings.TrimSuffix(filepath.Base(pdfPath), filepath.Ext(pdfPath))
	if key, ok := stamp.KeyFromAssetName(stampPath); ok {
		return key + "_" + base
	}
	return base
}

func (r *Runner) extract(ctx context.Context, doc *pdfdoc.Document) (*cropretry.Result, error) {
	res, err := r.Retry.Run(ctx, doc, 0)
	if err != nil {
		return nil, err
	}
	if page, err := doc.Page(0); err == nil {
		page.Text = res.Text
	}
	return res, nil
}

// ExtractFields implements services.SigningService. The document is not modified.
func (r *Runner) ExtractFields(ctx context.Context, pdfPath string) (*models.PolicyRecord, error) {
	if r.Retry == nil {
		return nil, fmt.Errorf("ExtractFields: field extraction is not configured")
	}

	doc, err := pdfdoc.Open(pdfPath, logger.WithDocument(r.log, pdfPath))
	if err != nil {
		return nil, err
	}
	defer doc.Close()

	res, err := r.extract(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", pdfPath, err)
	}
	return &models.PolicyRecord{
		SourceFile:  pdfPath,
		Fields:      res.Fields,
		Attempts:    res.Attempts,
		ProcessedAt: time.Now(),
	}, nil
}

var clientDirPattern = regexp.MustCompile(`^c\d+_(\w+)$`)

// ClientKey returns the key of a client directory named c<digits>_<key>.
func ClientKey(dir string) (string, bool) {
	m := clientDirPattern.FindStringSubmatch(filepath.Base(dir))
	if m == nil {
		return "", false
	}
	return m[1], true
}

// ProcessBatch signs every PDF in the client directories under root. Each directory's
// stamp asset is looked up in assetsDir by client key. Failures are recorded per document
// and do not stop the batch; an error is returned only when root cannot be read.
func (r *Runner) ProcessBatch(ctx context.Context, root, assetsDir string) ([]*services.SignResult, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("ProcessBatch: failed to read %s: %w", root, err)
	}

	var results []*services.SignResult
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		key, ok := ClientKey(e.Name())
		if !ok {
			continue
		}
		dir := filepath.Join(root, e.Name())

		pdfs, err := listPDFs(dir)
		if err != nil {
			results = append(results, failed(dir, err))
			continue
		}

		stampPath, err := stamp.FindAsset(assetsDir, key)
		if err != nil {
			for _, p := range pdfs {
				results = append(results, failed(p, err))
			}
			continue
		}

		for _, p := range pdfs {
			if err := ctx.Err(); err != nil {
				return results, err
			}
			r.log.Info().Str("client", key).Str("file", p).Msg("Processing document")
			results = append(results, r.Process(ctx, p, stampPath))
		}
	}
	return results, nil
}

// ExtractDir runs field extraction on every PDF directly in dir.
func (r *Runner) ExtractDir(ctx context.Context, dir string) ([]models.PolicyRecord, []error) {
	pdfs, err := listPDFs(dir)
	if err != nil {
		return nil, []error{err}
	}

	var records []models.PolicyRecord
	var errs []error
	for _, p := range pdfs {
		if err := ctx.Err(); err != nil {
			return records, append(errs, err)
		}
		rec, err := r.ExtractFields(ctx, p)
		if err != nil {
			r.log.Error().Err(err).Str("file", p).Msg("Field extraction failed")
			errs = append(errs, err)
			continue
		}
		records = append(records, *rec)
	}
	return records, errs
}

// Records collects the extracted fields of successful results.
func Records(results []*services.SignResult) []models.PolicyRecord {
	var out []models.PolicyRecord
	for _, res := range results {
		if res.Succeeded() && res.Fields != nil {
			out = append(out, models.PolicyRecord{
				SourceFile:  res.SourceFile,
				Fields:      *res.Fields,
				Attempts:    res.Attempts,
				ProcessedAt: res.ProcessedAt,
			})
		}
	}
	return out
}

func listPDFs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", dir, err)
	}
	var out []string
	for _, e := range entries {
		if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ".pdf") {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(out)
	return out, nil
}

func failed(path string, err error) *services.SignResult {
	return &services.SignResult{
		SourceFile:  path,
		Status:      services.StatusError,
		Error:       err,
		RunID:       uuid.New().String(),
		ProcessedAt: time.Now(),
	}
}
