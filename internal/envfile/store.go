// Package envfile persists environment variable mappings as line-oriented
// text files, one "key=value" record per line. A literal newline inside a
// value is written as the two-character sequence backslash-n and restored on
// read; no other character is escaped. Each write replaces the target file
// wholly, so entries removed since the previous capture never linger.
package envfile

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/google/uuid"

	"github.com/rurri/serverless-env-local/internal/address"
	"github.com/rurri/serverless-env-local/internal/types"
)

const (
	// dirPerm is applied to newly created storage directories. The files
	// hold resolved configuration that may include credentials, so the
	// directory is owner-only.
	dirPerm = 0o700

	// filePerm is applied to persisted environment files.
	filePerm = 0o600
)

// Store durably maps an Address to an environment mapping on the local
// filesystem. It owns all file-format and filesystem-edge-case handling; no
// lock is taken on persisted files (see the concurrency notes on Write).
type Store struct {
	logger *slog.Logger
}

// NewStore creates a Store that reports progress through logger.
func NewStore(logger *slog.Logger) *Store {
	return &Store{logger: logger}
}

// Write serializes env and replaces the file at addr with it.
//
// The containing directory is created (with any missing parents) when absent.
// If the directory path exists but is not a directory, Write fails with
// ErrCodeStorageNotADirectory: that is a fatal misconfiguration, never
// silently worked around. The content is written to a uniquely named temp
// file in the target directory and renamed into place, so a concurrent
// reader observes either the old file or the new one, never a torn write.
func (s *Store) Write(addr address.Address, env types.Envs) error {
	if err := s.EnsureDirectory(addr.DirectoryPath); err != nil {
		return err
	}

	content, err := Serialize(env)
	if err != nil {
		return err
	}

	path := addr.Path()
	tmp := filepath.Join(addr.DirectoryPath, "."+uuid.NewString()+".tmp")
	if err := os.WriteFile(tmp, content, filePerm); err != nil {
		return types.NewAppError(types.ErrCodeStorageIO,
			fmt.Sprintf("writing environment file %s", path), err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return types.NewAppError(types.ErrCodeStorageIO,
			fmt.Sprintf("replacing environment file %s", path), err)
	}

	s.logger.Info("environment file written",
		"file", path,
		"count", len(env),
	)
	return nil
}

// Read parses the file at addr back into an environment mapping.
//
// A missing file is not an error: a function that was never captured, or was
// captured under a different address, simply injects nothing, so Read returns
// an empty map. Malformed lines (no '=') are skipped with a warning rather
// than failing the whole read; one corrupt record should not block a local
// invocation that the remaining records can still configure.
func (s *Store) Read(addr address.Address) (types.Envs, error) {
	path := addr.Path()

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return types.Envs{}, nil
		}
		return nil, types.NewAppError(types.ErrCodeStorageIO,
			fmt.Sprintf("opening environment file %s", path), err)
	}
	defer f.Close()

	env := types.Envs{}
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if line == "" {
			continue
		}
		key, escaped, ok := strings.Cut(line, "=")
		if !ok || key == "" {
			s.logger.Warn("skipping malformed environment record",
				"file", path,
				"line", lineNo,
			)
			continue
		}
		env[key] = unescapeValue(escaped)
	}
	if err := scanner.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeStorageIO,
			fmt.Sprintf("reading environment file %s", path), err)
	}
	return env, nil
}

// EnsureDirectory makes sure dir exists and is a directory, creating it (and
// any missing parents) owner-only when absent.
func (s *Store) EnsureDirectory(dir string) error {
	info, err := os.Stat(dir)
	switch {
	case err == nil:
		if !info.IsDir() {
			return types.NewAppError(types.ErrCodeStorageNotADirectory,
				fmt.Sprintf("storage path %s exists and is not a directory", dir), nil)
		}
		return nil
	case errors.Is(err, fs.ErrNotExist):
		if err := os.MkdirAll(dir, dirPerm); err != nil {
			// MkdirAll reports ENOTDIR when a parent component is a
			// plain file, which is the same misconfiguration.
			if errors.Is(err, syscall.ENOTDIR) {
				return types.NewAppError(types.ErrCodeStorageNotADirectory,
					fmt.Sprintf("storage path %s collides with a non-directory", dir), err)
			}
			return types.NewAppError(types.ErrCodeStorageIO,
				fmt.Sprintf("creating storage directory %s", dir), err)
		}
		return nil
	default:
		return types.NewAppError(types.ErrCodeStorageIO,
			fmt.Sprintf("inspecting storage directory %s", dir), err)
	}
}

// Serialize renders env in the persisted format: one "key=value\n" record per
// entry, keys in lexicographic order for deterministic byte content, literal
// newlines in values escaped as backslash-n.
func Serialize(env types.Envs) ([]byte, error) {
	var b strings.Builder
	for _, key := range env.SortedKeys() {
		if err := types.ValidateKey(key); err != nil {
			return nil, err
		}
		b.WriteString(key)
		b.WriteByte('=')
		b.WriteString(escapeValue(env[key]))
		b.WriteByte('\n')
	}
	return []byte(b.String()), nil
}

func escapeValue(v string) string {
	return strings.ReplaceAll(v, "\n", `\n`)
}

func unescapeValue(v string) string {
	return strings.ReplaceAll(v, `\n`, "\n")
}
