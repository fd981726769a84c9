package main

import (
	"context"
	"fmt"
	"io"

	"smartnotes/internal/ai"
	"smartnotes/internal/apperr"
	"smartnotes/internal/config"
	"smartnotes/internal/gateway"
	"smartnotes/internal/logging"
	"smartnotes/internal/notes"
	"smartnotes/internal/session"
	"smartnotes/internal/store"
)

type runtimeFactory func(cfg config.Config, logger logging.Logger) (*runtime, error)

// runtime bundles the core components one command invocation works with.
type runtime struct {
	cfg     config.Config
	logger  logging.Logger
	gateway gateway.Gateway
	session *session.Store
	notes   *notes.Store
	ai      *ai.Service
}

func openRuntime(cfg config.Config, logger logging.Logger) (*runtime, error) {
	gw, err := gateway.Open(cfg, logger)
	if err != nil {
		return nil, err
	}
	sessionPath, err := config.SessionPath()
	if err != nil {
		_ = gw.Close()
		return nil, err
	}
	rememberPath, err := config.RememberPath()
	if err != nil {
		_ = gw.Close()
		return nil, err
	}
	return newRuntime(cfg, logger, gw, store.NewFileSessionStore(sessionPath), store.NewFileRememberStore(rememberPath)), nil
}

func newRuntime(cfg config.Config, logger logging.Logger, gw gateway.Gateway, persist session.Persister, remember session.Rememberer) *runtime {
	sess := session.New(gw,
		session.WithPersister(persist),
		session.WithRememberer(remember),
		session.WithBackend(cfg.BackendMode()),
		session.WithLogger(logger.With(logging.F("component", "session"))),
	)
	guarded := gateway.Guard(gw, sess)
	return &runtime{
		cfg:     cfg,
		logger:  logger,
		gateway: gw,
		session: sess,
		notes: notes.New(guarded,
			notes.WithLogger(logger.With(logging.F("component", "notes"))),
			notes.WithDefaultFolder(cfg.DefaultFolder()),
		),
		ai: ai.NewService(guarded, logger.With(logging.F("component", "ai"))),
	}
}

func (r *runtime) Close() error {
	return r.gateway.Close()
}

// requireSession restores the persisted session or fails with NotAuthenticated.
func (r *runtime) requireSession() error {
	if r.session.Active() {
		return nil
	}
	ok, err := r.session.Restore()
	if err != nil {
		return fmt.Errorf("restore session: %w", err)
	}
	if !ok {
		return apperr.NotAuthenticated("restore session")
	}
	return nil
}

// loadNotes restores the session and loads the folder tree.
func (r *runtime) loadNotes(ctx context.Context) error {
	if err := r.requireSession(); err != nil {
		return err
	}
	return r.notes.Load(ctx)
}

func newCLILogger(out io.Writer, cfg config.Config) logging.Logger {
	level := logging.ParseLevel(cfg.LogLevel())
	// Info chatter stays out of command output; debug is still honoured.
	if level == logging.Info {
		level = logging.Warn
	}
	return logging.New(out, level)
}
