// Package address maps a logical capture target — service, stage, region,
// function, plus optional overrides — to the deterministic local file path
// that holds its persisted environment. Resolution is pure: identical inputs
// always produce identical addresses, so a capture and a later inject for the
// same target land on the same file.
package address

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rurri/serverless-env-local/internal/types"
)

const (
	// DefaultDirectoryName is the storage directory created under the
	// project root when no custom directory is configured.
	DefaultDirectoryName = ".serverless-env-local"

	// webpackServiceSuffix is the build-output subdirectory appended to the
	// service path by webpack-based packaging. It is stripped so the store
	// is always addressed relative to the true project root.
	webpackServiceSuffix = "/.webpack/service"

	// DefaultStage and DefaultRegion are the literal fallbacks when neither
	// the CLI nor the project manifest declares a value.
	DefaultStage  = "dev"
	DefaultRegion = "us-east-1"

	// fieldSeparator joins the region, stage, and function components of a
	// default file name. It must not appear inside any component, otherwise
	// distinct targets could collapse to the same file.
	fieldSeparator = "_"
)

// Address fully determines one persisted environment file's location.
type Address struct {
	DirectoryPath string
	FileName      string
}

// Path returns the full file path for the address.
func (a Address) Path() string {
	return filepath.Join(a.DirectoryPath, a.FileName)
}

// ResolveDirectory returns the storage directory for a project rooted at
// basePath. A non-empty customDirectory wins outright; otherwise the default
// directory name is joined to basePath with any webpack build-output suffix
// stripped first.
func ResolveDirectory(basePath, customDirectory string) string {
	if customDirectory != "" {
		return customDirectory
	}
	base := strings.TrimSuffix(filepath.ToSlash(basePath), webpackServiceSuffix)
	return filepath.Join(filepath.FromSlash(base), DefaultDirectoryName)
}

// ResolveFileName returns the file name for one function's environment file.
// A non-empty customFileName declared on the function wins outright.
// Otherwise the name is ".<region>_<stage>_<functionName>": the leading dot
// marks it hidden, and the underscore separator keeps distinct triples from
// colliding. Components containing the separator (or a path separator) are
// rejected rather than silently concatenated.
func ResolveFileName(region, stage, functionName, customFileName string) (string, error) {
	if customFileName != "" {
		return customFileName, nil
	}
	for _, component := range []struct{ label, value string }{
		{"region", region},
		{"stage", stage},
		{"function name", functionName},
	} {
		if component.value == "" {
			return "", types.NewAppError(types.ErrCodeInvalidNameComponent,
				component.label+" must not be empty", nil)
		}
		if strings.ContainsAny(component.value, fieldSeparator+"/\\\x00") {
			return "", types.NewAppError(types.ErrCodeInvalidNameComponent,
				fmt.Sprintf("%s %q must not contain %q or path separators",
					component.label, component.value, fieldSeparator), nil)
		}
	}
	return "." + region + fieldSeparator + stage + fieldSeparator + functionName, nil
}

// ResolveStage picks the active stage: CLI option, then the project manifest
// stage, then the provider-declared default, then "dev". First non-empty wins.
func ResolveStage(cliOption, configStage, providerStage string) string {
	return firstNonEmpty(cliOption, configStage, providerStage, DefaultStage)
}

// ResolveRegion picks the active region with the same precedence as
// ResolveStage, falling back to "us-east-1".
func ResolveRegion(cliOption, configRegion, providerRegion string) string {
	return firstNonEmpty(cliOption, configRegion, providerRegion, DefaultRegion)
}

// ResolveStackName returns the deployed CloudFormation stack name for a
// service and stage.
func ResolveStackName(serviceName, stage string) string {
	return serviceName + "-" + stage
}

// ResolveTarget builds the FunctionTarget for a declared function: the remote
// identifier is "<stackName>-<functionName>".
func ResolveTarget(serviceName, stage, functionName string) types.FunctionTarget {
	return types.FunctionTarget{
		FunctionName:     functionName,
		RemoteIdentifier: ResolveStackName(serviceName, stage) + "-" + functionName,
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
