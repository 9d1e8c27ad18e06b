package types

import (
	"sort"
	"strings"
)

// Envs is a mapping from environment variable name to value. Keys must be
// non-empty and must not contain '=' or newline characters; values are
// arbitrary strings and may contain newlines. Instances are ephemeral:
// constructed fresh per capture or per read, never shared across operations.
type Envs map[string]string

// Get returns the value for name, or the empty string when absent.
func (e Envs) Get(name string) string {
	return e[name]
}

// Set stores value under name.
func (e Envs) Set(name, value string) {
	e[name] = value
}

// SortedKeys returns the variable names in lexicographic order. Go maps are
// unordered, so serialization sorts keys to keep the persisted byte content
// deterministic.
func (e Envs) SortedKeys() []string {
	keys := make([]string, 0, len(e))
	for k := range e {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ValidateKey checks that name is usable as an environment variable name in
// the persisted line-oriented format: non-empty, no '=' (the record
// separator), no newline (the line separator).
func ValidateKey(name string) error {
	if name == "" {
		return NewAppError(ErrCodeInvalidEnvKey, "environment variable name must not be empty", nil)
	}
	if strings.ContainsAny(name, "=\n") {
		return NewAppError(ErrCodeInvalidEnvKey,
			"environment variable name must not contain '=' or newline: "+name, nil)
	}
	return nil
}

// FunctionTarget pairs a declared function name with the fully-qualified
// identifier used to query the remote control plane.
type FunctionTarget struct {
	FunctionName     string
	RemoteIdentifier string
}
