// Package syncer orchestrates the two directional flows between a deployed
// stack and the local environment-file store: capture (after a deploy, fetch
// each function's resolved environment and persist it) and inject (before a
// local invocation, load the persisted file and apply it to the process
// environment). Each call is a stateless transaction against the store; the
// only durable state is the files themselves.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/rurri/serverless-env-local/internal/address"
	"github.com/rurri/serverless-env-local/internal/types"
)

// RemoteFetcher is the single capability the coordinator needs from the
// cloud control plane.
type RemoteFetcher interface {
	FetchResolvedEnvironment(ctx context.Context, remoteID string) (types.Envs, error)
}

// EnvStore is the persistence capability backing both flows.
type EnvStore interface {
	Write(addr address.Address, env types.Envs) error
	Read(addr address.Address) (types.Envs, error)
	EnsureDirectory(dir string) error
}

// captureConcurrencyLimit bounds the number of in-flight capture pipelines.
// Each pipeline is one control-plane fetch plus one local file write, so the
// limit mostly protects against control-plane throttling on large services.
const captureConcurrencyLimit = 8

// Resolution carries the currently-active addressing inputs: the resolved
// service name, stage, region, and storage directory, plus the per-function
// file-name override lookup. It is computed once per command from the CLI
// options, the tool settings, and the project manifest.
type Resolution struct {
	Service   string
	Stage     string
	Region    string
	Directory string

	// FileNameOverride returns the per-function file-name override, or ""
	// when the function declares none. A nil func means no overrides.
	FileNameOverride func(functionName string) string
}

// addressFor resolves the stable Address for one function under this
// resolution.
func (r Resolution) addressFor(functionName string) (address.Address, error) {
	var override string
	if r.FileNameOverride != nil {
		override = r.FileNameOverride(functionName)
	}
	name, err := address.ResolveFileName(r.Region, r.Stage, functionName, override)
	if err != nil {
		return address.Address{}, err
	}
	return address.Address{DirectoryPath: r.Directory, FileName: name}, nil
}

// Coordinator wires the remote fetch capability, the env-file store, and the
// environment sink into the capture and inject flows.
type Coordinator struct {
	fetcher RemoteFetcher
	store   EnvStore
	sink    EnvironmentSink
	logger  *slog.Logger
}

// NewCoordinator creates a Coordinator.
func NewCoordinator(fetcher RemoteFetcher, store EnvStore, sink EnvironmentSink, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		fetcher: fetcher,
		store:   store,
		sink:    sink,
		logger:  logger,
	}
}

// OnDeployed captures the resolved environment of every declared function.
//
// The storage directory is checked once up front: a path that collides with
// a plain file can hold no function's env file, so that misconfiguration
// aborts the whole capture. After that, one pipeline per function runs
// concurrently; a single function's failure (typically: the stack or the
// function resource was never deployed) is logged with its name and recorded,
// but never cancels or blocks the sibling pipelines. The aggregate result
// joins every per-function failure after all pipelines have finished.
func (c *Coordinator) OnDeployed(ctx context.Context, res Resolution, functionNames []string) error {
	if err := c.store.EnsureDirectory(res.Directory); err != nil {
		return err
	}

	var mu sync.Mutex
	var failures []error

	record := func(functionName string, err error) {
		c.logger.Error("capture failed",
			"function", functionName,
			"error", err,
		)
		mu.Lock()
		failures = append(failures, fmt.Errorf("function %s: %w", functionName, err))
		mu.Unlock()
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(captureConcurrencyLimit)

	for _, functionName := range functionNames {
		g.Go(func() error {
			if err := c.captureOne(gCtx, res, functionName); err != nil {
				// Error isolation: record and keep siblings running.
				record(functionName, err)
			}
			return nil
		})
	}

	// The closures never return errors, so Wait only gathers completion.
	_ = g.Wait()

	if len(failures) > 0 {
		return fmt.Errorf("capture completed with %d of %d functions failed: %w",
			len(failures), len(functionNames), errors.Join(failures...))
	}
	return nil
}

// captureOne runs a single function's pipeline: resolve the address, fetch
// the resolved environment, persist it. The write replaces the previous file
// wholly, so variables removed since the last deploy are pruned.
func (c *Coordinator) captureOne(ctx context.Context, res Resolution, functionName string) error {
	addr, err := res.addressFor(functionName)
	if err != nil {
		return err
	}

	target := address.ResolveTarget(res.Service, res.Stage, functionName)
	env, err := c.fetcher.FetchResolvedEnvironment(ctx, target.RemoteIdentifier)
	if err != nil {
		return err
	}

	return c.store.Write(addr, env)
}

// OnBeforeInvoke injects the persisted environment of functionName into the
// sink, overwriting existing variables of the same name. A function that was
// never captured injects nothing; that is a successful no-op, not an error.
func (c *Coordinator) OnBeforeInvoke(ctx context.Context, res Resolution, functionName string) error {
	addr, err := res.addressFor(functionName)
	if err != nil {
		return err
	}

	c.logger.Info("injecting local environment",
		"function", functionName,
		"file", addr.Path(),
	)

	env, err := c.store.Read(addr)
	if err != nil {
		return err
	}

	for _, key := range env.SortedKeys() {
		if err := c.sink.Set(key, env[key]); err != nil {
			return types.NewAppError(types.ErrCodeStorageIO,
				fmt.Sprintf("setting environment variable %s", key), err)
		}
	}

	c.logger.Debug("environment injected",
		"function", functionName,
		"count", len(env),
	)
	return nil
}
