package internal

import (
	"io"

	"github.com/starford/caged/internal/extract"
)

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config    *Config
	extractor extract.TextExtractor
	logOutput io.Writer
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithTextExtractor replaces the PDF text extractor used by the tutorial
// library.
func WithTextExtractor(ex extract.TextExtractor) Option {
	return func(a *application) {
		a.extractor = ex
	}
}

// WithLogOutput redirects the structured log. Run defaults to stdout and
// RunMCP to stderr.
func WithLogOutput(w io.Writer) Option {
	return func(a *application) {
		a.logOutput = w
	}
}
