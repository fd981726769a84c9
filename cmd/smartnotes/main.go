package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	wiring := defaultCommandWiring(os.Stdout, os.Stderr)
	root := newRootCommand(wiring)
	err := root.ExecuteContext(ctx)
	stop()
	exitOnErr(root, err, wiring.stderr)
}
