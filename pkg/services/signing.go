package services

import (
	"context"
	"time"

	"docauto/pkg/models"
)

// SigningService defines the interface for stamping and analysing a scanned policy
type SigningService interface {
	// SignDocument stamps the signature image onto the selected page(s) of the PDF and,
	// when configured, extracts policy fields and exports the redacted first page.
	SignDocument(ctx context.Context, pdfPath, stampPath string) (*SignResult, error)

	// ExtractFields runs OCR extraction on the first page without modifying the document.
	ExtractFields(ctx context.Context, pdfPath string) (*models.PolicyRecord, error)
}

// SignResult describes the outcome of processing one document
type SignResult struct {
	SourceFile   string `json:"source_file"`
	OutputFile   string `json:"output_file,omitempty"`
	RedactedFile string `json:"redacted_file,omitempty"`
	StampFile    string `json:"stamp_file,omitempty"`
	TargetPages  []int  `json:"target_pages,omitempty"`
	BlankPages   []int  `json:"blank_pages,omitempty"`

	// Fields is nil when OCR extraction was not requested
	Fields   *models.PolicyFields `json:"fields,omitempty"`
	Attempts int                  `json:"attempts,omitempty"`

	Status      string        `json:"status"` // "success" or "error"
	Error       error         `json:"-"`
	RunID       string        `json:"run_id"`
	ProcessedAt time.Time     `json:"processed_at"`
	Duration    time.Duration `json:"duration"`
}

// Succeeded reports whether the document was processed without error.
func (r *SignResult) Succeeded() bool {
	return r != nil && r.Error == nil && r.Status == StatusSuccess
}

const (
	StatusSuccess = "success"
	StatusError   = "error"
)
