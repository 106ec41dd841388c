// identityctl runs identity operations against the configured document database from the command line.
//
//	identityctl signup -email ana@example.com -password secret1
//	identityctl update-profile -id <uid> -phone 555-0100
//	identityctl claims -uid <uid>
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"academia-identity/backend/internal/app"
	"academia-identity/backend/internal/config"
	"academia-identity/backend/internal/logger"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	log, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Error("init", zap.Error(err))
		os.Exit(1)
	}
	err = run(ctx, a, os.Args[1:], os.Stdout)
	if cerr := a.Close(context.WithoutCancel(ctx)); cerr != nil {
		log.Warn("close", zap.Error(cerr))
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: identityctl <command> [flags]")
	fmt.Fprintln(os.Stderr, "commands:")
	for _, c := range commands {
		fmt.Fprintf(os.Stderr, "  %-16s %s\n", c.name, c.summary)
	}
}
