// Package extract pulls plain text out of PDF tutorials.
package extract

import (
	"context"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/starford/caged/internal/apperr"
)

// TextExtractor returns the plain text of one document.
type TextExtractor interface {
	Extract(ctx context.Context, path string) (string, error)
}

// Error is a per-file extraction failure.
type Error struct {
	Path  string
	Cause error
}

func (e *Error) Error() string { return fmt.Sprintf("extract %s: %v", e.Path, e.Cause) }

func (e *Error) Unwrap() []error { return []error{apperr.ErrExtractionFailure, e.Cause} }

// PDF extracts text page by page. Each page is followed by a newline.
type PDF struct{}

// Extract never panics: malformed documents that trip the parser are
// reported as *Error.
func (PDF) Extract(ctx context.Context, path string) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text, err = "", &Error{Path: path, Cause: fmt.Errorf("malformed document: %v", r)}
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return "", &Error{Path: path, Cause: err}
	}
	defer f.Close()

	var b strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		t, err := p.GetPlainText(nil)
		if err != nil {
			return "", &Error{Path: path, Cause: fmt.Errorf("page %d: %w", i, err)}
		}
		b.WriteString(t)
		b.WriteString("\n")
	}
	return b.String(), nil
}

// List returns the .pdf file names directly under dir, sorted.
func List(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("extract: read dir: %w", err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".pdf") {
			names = append(names, e.Name())
		}
	}
	slices.Sort(names)
	return names, nil
}
