// Package docmine implements the document fallback miner: when guided
// retrieval fails to assemble sufficient context, it digs the most-cited
// source document out of the retrieval history and extracts a best-effort
// excerpt directly from its pages.
package docmine

import (
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// DocumentStore resolves a local document into pages of plain text.
// Page numbers are 1-indexed; out-of-range pages are silently skipped.
type DocumentStore interface {
	PageCount(path string) (int, error)
	ExtractPages(path string, pages []int) (string, error)
}

// PDFStore reads PDF files from disk.
type PDFStore struct{}

// NewPDFStore returns a DocumentStore over local PDF files.
func NewPDFStore() *PDFStore { return &PDFStore{} }

// PageCount returns the number of pages in the PDF at path.
func (s *PDFStore) PageCount(path string) (int, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	return r.NumPage(), nil
}

// ExtractPages returns the concatenated plain text of the requested pages,
// each prefixed with a page marker. Pages with no extractable text are
// dropped.
func (s *PDFStore) ExtractPages(path string, pages []int) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	total := r.NumPage()
	var parts []string
	for _, pageNum := range pages {
		if pageNum < 1 || pageNum > total {
			continue
		}
		page := r.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		parts = append(parts, fmt.Sprintf("--- Page %d ---\n%s", pageNum, text))
	}
	return strings.Join(parts, "\n\n"), nil
}
