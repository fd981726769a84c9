package main

import (
	"context"
	"io"
	"os"

	"github.com/spf13/cobra"

	"smartnotes/internal/app"
	"smartnotes/internal/config"
)

type commandWiring struct {
	stdout     io.Writer
	stderr     io.Writer
	stdin      io.Reader
	loadConfig func() (config.Config, error)
	newRuntime runtimeFactory
	runUI      func(ctx context.Context, deps app.Deps) error
	version    string
}

func defaultCommandWiring(stdout, stderr io.Writer) commandWiring {
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}
	return commandWiring{
		stdout:     stdout,
		stderr:     stderr,
		stdin:      os.Stdin,
		loadConfig: config.Load,
		newRuntime: openRuntime,
		runUI:      app.Run,
		version:    buildVersion(),
	}
}

func newRootCommand(wiring commandWiring) *cobra.Command {
	root := &cobra.Command{
		Use:   "smartnotes",
		Short: "Smart notes organizer for the terminal",
		Long: `smartnotes keeps folders of notes in sync with a Smart Notes server
or a local database, with optional AI enhancement and OCR.

Run "smartnotes ui" for the interactive interface.`,
		Version:       wiring.version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(wiring.stdout)
	root.SetErr(wiring.stderr)
	root.SetIn(wiring.stdin)

	root.AddCommand(
		newLoginCommand(wiring),
		newRegisterCommand(wiring),
		newLogoutCommand(wiring),
		newWhoAmICommand(wiring),
		newProfileCommand(wiring),
		newFoldersCommand(wiring),
		newNotesCommand(wiring),
		newAICommand(wiring),
		newConfigCommand(wiring),
		newUICommand(wiring),
	)
	return root
}

// withRuntime loads configuration, opens the backend and runs fn.
func withRuntime(wiring commandWiring, fn func(rt *runtime) error) error {
	cfg, err := wiring.loadConfig()
	if err != nil {
		return err
	}
	logger := newCLILogger(wiring.stderr, cfg)
	rt, err := wiring.newRuntime(cfg, logger)
	if err != nil {
		return err
	}
	defer rt.Close()
	return fn(rt)
}
