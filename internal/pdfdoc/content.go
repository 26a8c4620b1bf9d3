package pdfdoc

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"regexp"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
)

// textShowOp matches a string or array operand followed by Tj, TJ, ' or ".
var textShowOp = regexp.MustCompile(`[)\]>]\s*(?:Tj|TJ|'|")(?:\s|$)`)

// HasTextOperators reports whether a content stream draws any text.
func HasTextOperators(content []byte) bool {
	return textShowOp.Match(content)
}

// xobjectDrawOp matches a named XObject invocation such as "/Im0 Do".
var xobjectDrawOp = regexp.MustCompile(`/[^\s/\[\]()<>{}%]+\s+Do(?:\s|$)`)

// DrawnObjects counts the XObject invocations in a content stream. A scanned page
// draws its scan once; every stamp or redaction box adds one more.
func DrawnObjects(content []byte) int {
	return len(xobjectDrawOp.FindAllIndex(content, -1))
}

// TextlessPages returns the 1-based numbers of pages whose content streams show no text.
// A scanned page consisting of one image is textless even when the scan is not blank, so
// this is a listing aid rather than a blank-page classifier.
func TextlessPages(path string) ([]int, error) {
	var pages []int
	err := eachPageContent("TextlessPages", path, func(pageNr int, content []byte) {
		if !HasTextOperators(content) {
			pages = append(pages, pageNr)
		}
	})
	return pages, err
}

// PageObjectCounts returns DrawnObjects for every page of the PDF at path, indexed
// from zero.
func PageObjectCounts(path string) ([]int, error) {
	var counts []int
	err := eachPageContent("PageObjectCounts", path, func(_ int, content []byte) {
		counts = append(counts, DrawnObjects(content))
	})
	return counts, err
}

func eachPageContent(op, path string, fn func(pageNr int, content []byte)) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%s: failed to open %s: %w", op, path, err)
	}
	defer f.Close()

	ctx, err := api.ReadValidateAndOptimize(f, Configuration())
	if err != nil {
		return fmt.Errorf("%s: pdfcpu read: %w", op, err)
	}

	for pageNr := 1; pageNr <= ctx.PageCount; pageNr++ {
		r, err := pdfcpu.ExtractPageContent(ctx, pageNr)
		if err != nil {
			return fmt.Errorf("%s: page %d content: %w", op, pageNr, err)
		}
		var data []byte
		if r != nil {
			if data, err = io.ReadAll(r); err != nil {
				return fmt.Errorf("%s: page %d content: %w", op, pageNr, err)
			}
		}
		fn(pageNr, bytes.TrimSpace(data))
	}
	return nil
}
