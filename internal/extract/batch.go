package extract

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"
)

// DefaultLimit bounds concurrent extractions in Batch.
const DefaultLimit = 4

// Result is the outcome for one file. Exactly one of Text and Err is set.
type Result struct {
	Name string
	Path string
	Text string
	Err  error
}

// Content is the text to print for the file: the extracted text, or an
// inline error line.
func (r Result) Content() string {
	if r.Err == nil {
		return r.Text
	}
	cause := r.Err
	var e *Error
	if errors.As(r.Err, &e) {
		cause = e.Cause
	}
	return fmt.Sprintf("Error extracting %s: %v", r.Path, cause)
}

// Batch extracts every .pdf directly under dir, at most limit at a time.
// Results are in sorted file-name order. Per-file failures are carried in
// Result.Err; only an unreadable dir or a cancelled ctx fail the batch.
func Batch(ctx context.Context, dir string, ex TextExtractor, limit int) ([]Result, error) {
	names, err := List(dir)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	results := make([]Result, len(names))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, name := range names {
		path := filepath.Join(dir, name)
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			text, err := ex.Extract(gctx, path)
			if err != nil && gctx.Err() != nil {
				return gctx.Err()
			}
			if err != nil {
				var e *Error
				if !errors.As(err, &e) {
					err = &Error{Path: path, Cause: err}
				}
			}
			results[i] = Result{Name: name, Path: path, Text: text, Err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

var banner = strings.Repeat("=", 50)

// Dump writes results in the report format of the tutorial dumper.
func Dump(w io.Writer, dir string, results []Result) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Scanning directory: %s\n", dir)
	if len(results) == 0 {
		b.WriteString("No PDF files found.\n")
	}
	for _, r := range results {
		fmt.Fprintf(&b, "\n%s\nFILE: %s\n%s\n\n", banner, r.Name, banner)
		b.WriteString(r.Content())
		b.WriteString("\n\n\n\n")
	}
	_, err := io.WriteString(w, b.String())
	return err
}
