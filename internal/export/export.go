// Package export renders session snapshots into downloadable artifacts.
package export

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/starford/caged/internal/apperr"
	"github.com/starford/caged/internal/fretboard"
)

// Format selects a renderer.
type Format string

const (
	PDF  Format = "pdf"
	MIDI Format = "midi"
)

// ParseFormat accepts "pdf", "midi" or "mid". Empty selects PDF.
func ParseFormat(v string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "pdf":
		return PDF, nil
	case "midi", "mid":
		return MIDI, nil
	}
	return "", fmt.Errorf("export: unknown format %q", v)
}

// Artifact is a rendered file. The caller owns Data.
type Artifact struct {
	SuggestedFilename string
	ContentType       string
	Data              []byte
}

// Renderer writes one snapshot in a single format.
type Renderer interface {
	Render(snap fretboard.Snapshot, buf *bytes.Buffer) error
	ContentType() string
	Extension() string
}

var renderers = map[Format]Renderer{
	PDF:  pdfRenderer{},
	MIDI: midiRenderer{},
}

// Filename returns the suggested name for snap in format f, for example
// CAGED_Session_Cs_Maj7_A.pdf. Sharps are written as "s".
func Filename(snap fretboard.Snapshot, f Format) string {
	ext := "pdf"
	if r, ok := renderers[f]; ok {
		ext = r.Extension()
	}
	root := strings.ReplaceAll(snap.Key.String(), "#", "s")
	return fmt.Sprintf("CAGED_Session_%s_%s_%s.%s", root, snap.Quality, snap.Shape, ext)
}

// Export renders snap. On failure it returns an error wrapping
// apperr.ErrExportFailure and no artifact.
func Export(ctx context.Context, snap fretboard.Snapshot, f Format) (*Artifact, error) {
	r, ok := renderers[f]
	if !ok {
		return nil, fmt.Errorf("%w: unknown format %q", apperr.ErrExportFailure, f)
	}
	return render(ctx, snap, f, r)
}

func render(ctx context.Context, snap fretboard.Snapshot, f Format, r Renderer) (art *Artifact, err error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", apperr.ErrExportFailure, err)
	}
	defer func() {
		if rec := recover(); rec != nil {
			art, err = nil, fmt.Errorf("%w: %s renderer panicked: %v", apperr.ErrExportFailure, f, rec)
		}
	}()

	var buf bytes.Buffer
	if err := r.Render(snap, &buf); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", apperr.ErrExportFailure, f, err)
	}
	return &Artifact{
		SuggestedFilename: Filename(snap, f),
		ContentType:       r.ContentType(),
		Data:              buf.Bytes(),
	}, nil
}
