package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/rurri/serverless-env-local/internal/types"
)

// Project is the subset of the serverless.yml manifest this tool consumes:
// the service name, the provider's default stage and region, the optional
// storage-directory override, and the declared functions with their optional
// per-function file-name overrides.
type Project struct {
	Service   string              `yaml:"service" validate:"required"`
	Provider  Provider            `yaml:"provider"`
	Custom    Custom              `yaml:"custom"`
	Functions map[string]Function `yaml:"functions"`
}

// Provider carries the project-declared deployment defaults.
type Provider struct {
	Stage  string `yaml:"stage"`
	Region string `yaml:"region"`
}

// Custom holds plugin-level configuration under the manifest's custom block.
type Custom struct {
	EnvLocal EnvLocalConfig `yaml:"envLocal"`
}

// EnvLocalConfig is the per-service configuration surface.
type EnvLocalConfig struct {
	// Directory overrides the storage directory for all functions.
	Directory string `yaml:"directory"`
}

// Function is one declared function. Only the fields this tool reads are
// modeled; the manifest may carry arbitrarily more.
type Function struct {
	Handler  string                 `yaml:"handler"`
	EnvLocal FunctionEnvLocalConfig `yaml:"envLocal"`
}

// FunctionEnvLocalConfig is the per-function configuration surface.
type FunctionEnvLocalConfig struct {
	// FileName overrides the storage file name for this function.
	FileName string `yaml:"fileName"`
}

// LoadProject reads and validates the manifest at path.
func LoadProject(path string) (*Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, types.NewAppError(types.ErrCodeConfigMissingManifest,
				fmt.Sprintf("project manifest %s not found", path), err)
		}
		return nil, types.NewAppError(types.ErrCodeConfigMissingManifest,
			fmt.Sprintf("reading project manifest %s", path), err)
	}

	var p Project
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, types.NewAppError(types.ErrCodeConfigInvalidManifest,
			fmt.Sprintf("parsing project manifest %s", path), err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate checks the manifest fields this tool depends on, naming the
// offending field in the error.
func (p *Project) Validate() error {
	if err := validator.New().Struct(p); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return types.NewAppError(types.ErrCodeConfigInvalidManifest,
				fmt.Sprintf("manifest field %s failed %q validation",
					verrs[0].Namespace(), verrs[0].Tag()), err)
		}
		return types.NewAppError(types.ErrCodeConfigInvalidManifest,
			"manifest validation failed", err)
	}
	for name := range p.Functions {
		if name == "" {
			return types.NewAppError(types.ErrCodeConfigInvalidManifest,
				"manifest declares a function with an empty name", nil)
		}
	}
	return nil
}

// FunctionNames returns the declared function names in lexicographic order.
func (p *Project) FunctionNames() []string {
	names := make([]string, 0, len(p.Functions))
	for name := range p.Functions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// FileNameOverride returns the per-function file-name override for name, or
// the empty string when the function declares none (or is not declared).
func (p *Project) FileNameOverride(name string) string {
	return p.Functions[name].EnvLocal.FileName
}
