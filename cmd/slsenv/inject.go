package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/rurri/serverless-env-local/internal/config"
	"github.com/rurri/serverless-env-local/internal/syncer"
)

// runInject loads the persisted environment file for the target function and
// applies its entries to the process environment. With a trailing command
// (after "--"), the command is then run with the injected environment and
// its exit code is returned.
func runInject(ctx context.Context, settings *config.Settings, logger *slog.Logger, args []string) (int, error) {
	fs := flag.NewFlagSet("inject", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	var opts commonOptions
	var functionName string
	bindCommonFlags(fs, &opts)
	fs.StringVar(&functionName, "function", "", "Target function name [required]")
	fs.StringVar(&functionName, "f", "", "Shorthand for --function")
	if err := fs.Parse(args); err != nil {
		return 1, err
	}

	if functionName == "" {
		fs.Usage()
		return 2, fmt.Errorf("--function is required")
	}

	_, res, err := resolve(settings, opts)
	if err != nil {
		return 1, err
	}

	// Injection mutates the shared process environment table; it is never
	// scoped per function, so the coordinator is built once per command.
	coordinator := syncer.NewCoordinator(
		nil, // no remote fetch on the inject path
		newStore(logger),
		syncer.OSSink{},
		logger,
	)
	if err := coordinator.OnBeforeInvoke(ctx, res, functionName); err != nil {
		return 1, err
	}

	if fs.NArg() > 0 {
		rest := fs.Args()
		return execCommand(ctx, rest[0], rest[1:])
	}
	return 0, nil
}
