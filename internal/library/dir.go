package library

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/starford/caged/internal/checksum"
)

// Meta describes one tutorial file on disk.
type Meta struct {
	Path      string
	Checksum  string
	UpdatedAt time.Time
}

// Dir is a read-only view of the tutorial directory.
type Dir struct {
	root string // absolute
}

// NewDir creates a Dir rooted at root. The directory must already exist.
func NewDir(root string) (*Dir, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("library: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("library: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("library: root is not a directory: %s", abs)
	}
	return &Dir{root: abs}, nil
}

// Root returns the absolute root path.
func (d *Dir) Root() string { return d.root }

// Abs resolves a relative path and rejects any result outside the root.
func (d *Dir) Abs(rel string) (string, error) {
	if rel == "" {
		return d.root, nil
	}
	cleaned := filepath.Clean(rel)
	if filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("library: absolute paths not allowed: %s", rel)
	}
	abs, err := filepath.Abs(filepath.Join(d.root, cleaned))
	if err != nil {
		return "", fmt.Errorf("library: resolve path: %w", err)
	}
	if !strings.HasPrefix(abs, d.root+string(os.PathSeparator)) && abs != d.root {
		return "", fmt.Errorf("library: path escapes root: %s", rel)
	}
	return abs, nil
}

// List walks the root and returns metadata for every .pdf file.
func (d *Dir) List() ([]Meta, error) {
	var out []Meta
	err := filepath.WalkDir(d.root, func(p string, e fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if e.IsDir() || !isPDF(p) {
			return nil
		}
		info, err := e.Info()
		if err != nil {
			return err
		}
		cs, err := checksum.File(p)
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(d.root, p)
		out = append(out, Meta{Path: filepath.ToSlash(rel), Checksum: cs, UpdatedAt: info.ModTime()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("library: list: %w", err)
	}
	return out, nil
}

func isPDF(p string) bool {
	return strings.EqualFold(filepath.Ext(p), ".pdf")
}

// Stat returns the metadata of one file.
func (d *Dir) Stat(rel string) (Meta, error) {
	abs, err := d.Abs(rel)
	if err != nil {
		return Meta{}, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return Meta{}, fmt.Errorf("library: stat %s: %w", rel, err)
	}
	cs, err := checksum.File(abs)
	if err != nil {
		return Meta{}, err
	}
	return Meta{Path: filepath.ToSlash(filepath.Clean(rel)), Checksum: cs, UpdatedAt: info.ModTime()}, nil
}
