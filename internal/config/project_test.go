package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rurri/serverless-env-local/internal/types"
)

func writeManifest(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "serverless.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

const fullManifest = `
service: my-service
provider:
  name: aws
  runtime: nodejs20.x
  stage: staging
  region: eu-west-1
custom:
  envLocal:
    directory: .env-cache
functions:
  hello:
    handler: src/hello.handler
    envLocal:
      fileName: .hello-env
  goodbye:
    handler: src/goodbye.handler
`

func TestLoadProject_FullManifest(t *testing.T) {
	p, err := LoadProject(writeManifest(t, fullManifest))
	require.NoError(t, err)

	assert.Equal(t, "my-service", p.Service)
	assert.Equal(t, "staging", p.Provider.Stage)
	assert.Equal(t, "eu-west-1", p.Provider.Region)
	assert.Equal(t, ".env-cache", p.Custom.EnvLocal.Directory)
	assert.Equal(t, []string{"goodbye", "hello"}, p.FunctionNames())
	assert.Equal(t, ".hello-env", p.FileNameOverride("hello"))
	assert.Equal(t, "", p.FileNameOverride("goodbye"))
	assert.Equal(t, "", p.FileNameOverride("not-declared"))
}

func TestLoadProject_MinimalManifest(t *testing.T) {
	p, err := LoadProject(writeManifest(t, "service: tiny\n"))
	require.NoError(t, err)

	assert.Equal(t, "tiny", p.Service)
	assert.Empty(t, p.Provider.Stage)
	assert.Empty(t, p.Custom.EnvLocal.Directory)
	assert.Empty(t, p.FunctionNames())
}

func TestLoadProject_MissingFile(t *testing.T) {
	_, err := LoadProject(filepath.Join(t.TempDir(), "serverless.yml"))
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeConfigMissingManifest, appErr.Code)
}

func TestLoadProject_InvalidYAML(t *testing.T) {
	_, err := LoadProject(writeManifest(t, "service: [unclosed\n"))
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeConfigInvalidManifest, appErr.Code)
}

func TestLoadProject_MissingServiceName(t *testing.T) {
	_, err := LoadProject(writeManifest(t, "provider:\n  stage: dev\n"))
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeConfigInvalidManifest, appErr.Code)
	assert.Contains(t, appErr.Message, "Service")
}

func TestLoadProject_IgnoresUnknownFields(t *testing.T) {
	manifest := fullManifest + `
plugins:
  - serverless-webpack
resources:
  Resources: {}
`
	p, err := LoadProject(writeManifest(t, manifest))
	require.NoError(t, err)
	assert.Equal(t, "my-service", p.Service)
}
