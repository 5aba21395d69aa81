package internal

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/starford/caged/internal/clicks"
	"github.com/starford/caged/internal/library"
	"github.com/starford/caged/internal/metrics"
	"github.com/starford/caged/internal/session"
	"github.com/starford/caged/internal/store"
)

// services are the long-lived components shared by every front end.
type services struct {
	db       *store.DB
	manager  *session.Manager
	library  *library.Library
	recorder metrics.Recorder
}

type serviceHooks struct {
	onSession  func(session.Event)
	onTutorial library.EventCallback
}

// openServices opens the store, restores sessions and syncs the tutorial
// index. A failed sync is logged and does not abort startup.
func openServices(ctx context.Context, app *application, logger *slog.Logger, rec metrics.Recorder, hooks serviceHooks) (*services, error) {
	cfg := app.config
	if rec == nil {
		rec = metrics.Nop()
	}

	db, err := store.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	svc := &services{db: db, recorder: rec}

	opts := []session.ManagerOption{
		session.WithStore(db),
		session.WithDefaults(cfg.Defaults()),
		session.WithFrets(cfg.Instrument.Frets),
		session.WithDoubleClickWindow(cfg.Clicks.DoubleClickWindow),
		session.WithClickObserver(func(_ string, c clicks.Classified) {
			rec.ObserveClick(c.Kind.String())
		}),
		session.WithListener(func(ev session.Event) {
			switch ev.Type {
			case session.EventUpdated:
				rec.ObserveChange(string(ev.Reason))
			default:
				rec.SetSessions(svc.manager.Len())
			}
		}),
	}
	if hooks.onSession != nil {
		opts = append(opts, session.WithListener(hooks.onSession))
	}
	svc.manager = session.NewManager(opts...)

	n, err := svc.manager.Restore(ctx)
	if err != nil {
		db.Close()
		return nil, err
	}
	rec.SetSessions(n)
	logger.Info("sessions restored", slog.Int("count", n))

	if err := os.MkdirAll(cfg.Tutorials.Path, 0o755); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tutorials dir: %w", err)
	}
	dir, err := library.NewDir(cfg.Tutorials.Path)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init tutorials: %w", err)
	}
	libOpts := []library.Option{library.WithLogger(logger), library.WithRecorder(rec)}
	if hooks.onTutorial != nil {
		libOpts = append(libOpts, library.WithCallback(hooks.onTutorial))
	}
	svc.library = library.New(db, dir, app.extractor, libOpts...)

	if err := svc.library.Sync(ctx); err != nil {
		logger.Warn("initial tutorial sync failed", slog.String("error", err.Error()))
	}

	return svc, nil
}

func (s *services) Close() {
	s.manager.Close()
	if err := s.db.Close(); err != nil {
		slog.Error("close store", slog.String("error", err.Error()))
	}
}
