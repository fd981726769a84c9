package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"smartnotes/internal/app"
	"smartnotes/internal/autosave"
	"smartnotes/internal/config"
	"smartnotes/internal/logging"
	"smartnotes/internal/view"
)

func newUICommand(wiring commandWiring) *cobra.Command {
	return &cobra.Command{
		Use:   "ui",
		Short: "Run the terminal UI",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := wiring.loadConfig()
			if err != nil {
				return err
			}
			logger, closeLog, err := openUILogger(cfg)
			if err != nil {
				return err
			}
			defer closeLog()

			rt, err := wiring.newRuntime(cfg, logger)
			if err != nil {
				return err
			}
			defer rt.Close()
			if _, err := rt.session.Restore(); err != nil {
				logger.Warn("session_restore_failed", logging.Err(err))
			}

			controller := view.New(rt.notes)
			defer controller.Close()
			saver := autosave.New(rt.notes,
				autosave.WithQuietWindow(cfg.QuietWindow()),
				autosave.WithLogger(logger.With(logging.F("component", "autosave"))),
			)
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = saver.Close(ctx)
			}()
			exportDir, err := config.ExportDir()
			if err != nil {
				exportDir = "."
			}
			logger.Info("ui_started", logging.F("backend", cfg.BackendMode()), logging.F("version", wiring.version))
			return wiring.runUI(cmd.Context(), app.Deps{
				Session:   rt.session,
				Notes:     rt.notes,
				View:      controller,
				Autosave:  saver,
				AI:        rt.ai,
				Logger:    logger,
				ExportDir: exportDir,
			})
		},
	}
}

// openUILogger logs to ui.log while the UI owns the terminal.
func openUILogger(cfg config.Config) (logging.Logger, func(), error) {
	path, err := config.UILogPath()
	if err != nil {
		return nil, nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, nil, fmt.Errorf("create log dir: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("open ui log: %w", err)
	}
	logger := logging.New(file, logging.ParseLevel(cfg.LogLevel()))
	return logger, func() { _ = file.Close() }, nil
}
