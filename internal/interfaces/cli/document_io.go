package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/esglens/esglens/internal/domain/document"
)

// loadDocument reads a plain-text document whose pages are separated by form
// feed characters, the page-break convention of pdftotext output. A file
// without form feeds is a single-page document.
func loadDocument(kind document.Kind, path string) (*document.Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	text := strings.ReplaceAll(string(raw), "\r\n", "\n")
	pages := strings.Split(text, "\f")

	// pdftotext terminates the last page with a form feed too.
	if len(pages) > 1 && strings.TrimSpace(pages[len(pages)-1]) == "" {
		pages = pages[:len(pages)-1]
	}

	title := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return document.NewDocument(kind, title, pages)
}

// loadReports loads every path as a report document.
func loadReports(paths []string) ([]*document.Document, error) {
	reports := make([]*document.Document, len(paths))
	for i, p := range paths {
		doc, err := loadDocument(document.KindReport, p)
		if err != nil {
			return nil, err
		}
		reports[i] = doc
	}
	return reports, nil
}

// emitJSON writes v as indented JSON to the given path, or to w when path is
// empty.
func emitJSON(w io.Writer, path string, v interface{}) error {
	out := w
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create %s: %w", path, err)
		}
		defer f.Close()
		out = f
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
