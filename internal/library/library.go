// Package library keeps the text of PDF tutorials indexed in the store and
// in step with the tutorial directory.
package library

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/starford/caged/internal/extract"
	"github.com/starford/caged/internal/store"
)

// EventCallback is called after a watcher- or sync-driven index change.
// kind is one of "updated", "deleted".
type EventCallback func(kind string, path string)

// Recorder observes extraction outcomes.
type Recorder interface {
	ExtractionDone(err error)
}

// Tutorial is one indexed tutorial with its text.
type Tutorial struct {
	store.TutorialRow
	Body string `json:"body"`
}

// Library ties a tutorial directory to the store.
type Library struct {
	db       store.TutorialIndex
	dir      *Dir
	ex       extract.TextExtractor
	logger   *slog.Logger
	cb       EventCallback
	recorder Recorder
}

// Option configures a Library.
type Option func(*Library)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(lib *Library) { lib.logger = l }
}

// WithCallback registers cb for index changes.
func WithCallback(cb EventCallback) Option {
	return func(lib *Library) { lib.cb = cb }
}

// WithRecorder registers r for extraction outcomes.
func WithRecorder(r Recorder) Option {
	return func(lib *Library) { lib.recorder = r }
}

// New creates a library. ex defaults to extract.PDF.
func New(db store.TutorialIndex, dir *Dir, ex extract.TextExtractor, opts ...Option) *Library {
	if ex == nil {
		ex = extract.PDF{}
	}
	lib := &Library{db: db, dir: dir, ex: ex, logger: slog.Default()}
	for _, o := range opts {
		o(lib)
	}
	return lib
}

// Root returns the watched directory.
func (l *Library) Root() string { return l.dir.Root() }

// Get returns one tutorial by its slash-separated relative path.
func (l *Library) Get(p string) (*Tutorial, error) {
	row, body, err := l.db.GetTutorial(p)
	if err != nil {
		return nil, err
	}
	return &Tutorial{TutorialRow: *row, Body: body}, nil
}

// List returns every indexed tutorial.
func (l *Library) List() ([]store.TutorialRow, error) {
	return l.db.ListTutorials()
}

// Search delegates to the store's full-text search.
func (l *Library) Search(query string, limit int) ([]store.SearchResult, error) {
	return l.db.Search(query, limit)
}

// Sync walks the directory and brings the index up to date:
//   - new/changed files are extracted and upserted
//   - files removed from disk are deleted from the index
func (l *Library) Sync(ctx context.Context) error {
	metas, err := l.dir.List()
	if err != nil {
		return err
	}
	checksums, err := l.db.AllChecksums()
	if err != nil {
		return err
	}

	disk := make(map[string]struct{}, len(metas))
	for _, m := range metas {
		if err := ctx.Err(); err != nil {
			return err
		}
		disk[m.Path] = struct{}{}
		if checksums[m.Path] == m.Checksum {
			continue
		}
		if err := l.indexFile(ctx, m); err != nil {
			l.logger.Warn("sync: index failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		l.logger.Debug("sync: indexed", slog.String("path", m.Path))
		l.emit("updated", m.Path)
	}

	for p := range checksums {
		if _, ok := disk[p]; ok {
			continue
		}
		if err := l.db.DeleteTutorial(p); err != nil {
			l.logger.Warn("sync: delete failed", slog.String("path", p), slog.String("error", err.Error()))
			continue
		}
		l.logger.Debug("sync: removed stale", slog.String("path", p))
		l.emit("deleted", p)
	}
	return nil
}

// indexFile extracts m and upserts it. An extraction failure is stored
// inline on the row so the file is not retried until it changes.
func (l *Library) indexFile(ctx context.Context, m Meta) error {
	abs, err := l.dir.Abs(m.Path)
	if err != nil {
		return err
	}
	text, exErr := l.ex.Extract(ctx, abs)
	if exErr != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	if l.recorder != nil {
		l.recorder.ExtractionDone(exErr)
	}

	row := store.TutorialRow{
		Path:      m.Path,
		Title:     title(m.Path),
		Checksum:  m.Checksum,
		UpdatedAt: time.Now(),
	}
	if exErr != nil {
		row.Error = extract.Result{Path: m.Path, Err: exErr}.Content()
		text = ""
	}
	if err := l.db.UpsertTutorial(row, text); err != nil {
		return fmt.Errorf("library: upsert %s: %w", m.Path, err)
	}
	return nil
}

func (l *Library) emit(kind, p string) {
	if l.cb != nil {
		l.cb(kind, p)
	}
}

func title(p string) string {
	base := path.Base(p)
	return strings.TrimSuffix(base, path.Ext(base))
}
