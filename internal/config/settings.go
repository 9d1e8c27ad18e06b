// Package config loads the tool's own settings and the project manifest.
//
// Settings follow the environment-first lifecycle:
//  1. Load a .env file via godotenv (non-fatal if absent; never overrides
//     variables already set in the environment).
//  2. Use envconfig to process SLSENV_-prefixed struct tags.
//
// CLI flags are applied on top by the caller, so the effective precedence is
// flag > environment > .env > struct default.
package config

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/rurri/serverless-env-local/internal/types"
)

// envPrefix namespaces the tool's own environment variables, e.g.
// SLSENV_STAGE or SLSENV_MANIFEST.
const envPrefix = "slsenv"

// Settings holds the tool-level options that are not part of the project
// manifest. Stage, Region, and Directory are overrides: when empty, the
// manifest (and then the built-in defaults) decide.
type Settings struct {
	// Stage overrides the active deployment stage.
	Stage string `envconfig:"STAGE"`

	// Region overrides the active AWS region.
	Region string `envconfig:"REGION"`

	// Profile selects the AWS CLI profile for the control-plane client.
	// Empty means the default credential chain.
	Profile string `envconfig:"PROFILE"`

	// Directory overrides the storage directory for environment files.
	Directory string `envconfig:"DIRECTORY"`

	// Manifest is the path to the project manifest.
	Manifest string `envconfig:"MANIFEST" default:"serverless.yml"`

	// LogLevel selects the slog level: debug, info, warn, or error.
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

// LoadSettings loads Settings from the environment, reading a .env file
// first when one exists in the working directory.
func LoadSettings() (*Settings, error) {
	// godotenv silently succeeds when no .env file exists and does not
	// override variables already present in the environment.
	_ = godotenv.Load()

	var s Settings
	if err := envconfig.Process(envPrefix, &s); err != nil {
		return nil, types.NewAppError(types.ErrCodeConfigInvalidSettings,
			fmt.Sprintf("processing %s_* environment variables", "SLSENV"), err)
	}
	return &s, nil
}
