// Package main implements slsenv, the environment synchronization CLI for
// serverless projects.
//
// After a deploy, `slsenv capture` reads back the environment variables the
// cloud provider resolved for each deployed function (values may depend on
// provider-side substitution, secrets, or stack outputs unknown at deploy
// time) and persists them to local files keyed by function, region, and
// stage. Before a local invocation, `slsenv inject` loads the persisted file
// for the target function and applies it to the process environment, so the
// function runs with the same configuration it has in the cloud.
//
// Usage:
//
//	slsenv capture [--stage dev] [--region us-east-1] [--profile NAME] [--config serverless.yml] [--dir DIR]
//	slsenv inject --function hello [--stage dev] [--region us-east-1] [--config serverless.yml] [--dir DIR] [-- command args...]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rurri/serverless-env-local/internal/address"
	"github.com/rurri/serverless-env-local/internal/config"
	"github.com/rurri/serverless-env-local/internal/envfile"
	"github.com/rurri/serverless-env-local/internal/syncer"
)

func main() {
	os.Exit(run())
}

func run() int {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "slsenv - sync deployed environment variables to local invocations\n\n")
		fmt.Fprintf(os.Stderr, "Usage:\n")
		fmt.Fprintf(os.Stderr, "  slsenv capture [flags]\n")
		fmt.Fprintf(os.Stderr, "  slsenv inject --function NAME [flags] [-- command args...]\n\n")
		fmt.Fprintf(os.Stderr, "Run 'slsenv <command> -h' for command flags.\n")
	}
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		return 2
	}

	settings, err := config.LoadSettings()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel(settings.LogLevel),
	}))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	args := flag.Args()[1:]
	switch flag.Arg(0) {
	case "capture":
		if err := runCapture(ctx, settings, logger, args); err != nil {
			logger.Error("capture failed", "error", err)
			return 1
		}
		return 0
	case "inject":
		code, err := runInject(ctx, settings, logger, args)
		if err != nil {
			logger.Error("inject failed", "error", err)
		}
		return code
	default:
		fmt.Fprintf(os.Stderr, "error: unknown command %q\n\n", flag.Arg(0))
		flag.Usage()
		return 2
	}
}

// commonOptions are the flags shared by both subcommands, layered on top of
// the environment-sourced settings: flag > SLSENV_* environment > manifest.
type commonOptions struct {
	stage    string
	region   string
	profile  string
	manifest string
	dir      string
}

func bindCommonFlags(fs *flag.FlagSet, opts *commonOptions) {
	fs.StringVar(&opts.stage, "stage", "", "Deployment stage (default: manifest provider stage, then \"dev\")")
	fs.StringVar(&opts.region, "region", "", "AWS region (default: manifest provider region, then \"us-east-1\")")
	fs.StringVar(&opts.profile, "profile", "", "AWS CLI profile (default: default credential chain)")
	fs.StringVar(&opts.manifest, "config", "", "Path to the project manifest (default: serverless.yml)")
	fs.StringVar(&opts.dir, "dir", "", "Storage directory for environment files (default: .serverless-env-local under the project root)")
}

// resolve loads the project manifest and computes the active Resolution from
// the precedence chain: CLI flag, then tool settings, then the manifest's
// provider block, then the built-in fallbacks.
func resolve(settings *config.Settings, opts commonOptions) (*config.Project, syncer.Resolution, error) {
	manifestPath := opts.manifest
	if manifestPath == "" {
		manifestPath = settings.Manifest
	}

	project, err := config.LoadProject(manifestPath)
	if err != nil {
		return nil, syncer.Resolution{}, err
	}

	projectRoot, err := filepath.Abs(filepath.Dir(manifestPath))
	if err != nil {
		return nil, syncer.Resolution{}, fmt.Errorf("resolving project root: %w", err)
	}

	customDir := firstNonEmpty(opts.dir, settings.Directory, project.Custom.EnvLocal.Directory)

	res := syncer.Resolution{
		Service:          project.Service,
		Stage:            address.ResolveStage(opts.stage, settings.Stage, project.Provider.Stage),
		Region:           address.ResolveRegion(opts.region, settings.Region, project.Provider.Region),
		Directory:        address.ResolveDirectory(projectRoot, customDir),
		FileNameOverride: project.FileNameOverride,
	}
	return project, res, nil
}

func newStore(logger *slog.Logger) *envfile.Store {
	return envfile.NewStore(logger)
}

func logLevel(name string) slog.Level {
	switch name {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// execCommand replaces the inject no-op tail with a child process: the
// injected variables are already in this process's environment, and exec
// inherits them.
func execCommand(ctx context.Context, name string, args []string) (int, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = os.Environ()

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode(), nil
		}
		return 1, fmt.Errorf("running %s: %w", name, err)
	}
	return 0, nil
}
