// Package report writes extracted policy records as a plain-text listing.
//
// Each record is a block:
//
//	## 1 ##
//	<one field per line, in PolicyFields.Values order>
//	----------
//	<blank line>
package report

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"docauto/pkg/models"
)

const separator = "----------"

// Write writes records to w, numbered from 1.
func Write(w io.Writer, records []models.PolicyRecord) error {
	bw := bufio.NewWriter(w)
	for i, rec := range records {
		if _, err := fmt.Fprintf(bw, "## %d ##\n%s\n%s\n\n",
			i+1, strings.Join(rec.Fields.Values(), "\n"), separator); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
	}
	return bw.Flush()
}

// WriteFile writes records to path, replacing any existing file.
func WriteFile(path string, records []models.PolicyRecord) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}
	if err := Write(f, records); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
