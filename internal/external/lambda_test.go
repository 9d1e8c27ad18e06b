package external

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	lambdatypes "github.com/aws/aws-sdk-go-v2/service/lambda/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rurri/serverless-env-local/internal/types"
)

// mockLambdaAPI is a function-field mock of the control-plane API.
type mockLambdaAPI struct {
	getFn    func(ctx context.Context, input *lambda.GetFunctionConfigurationInput) (*lambda.GetFunctionConfigurationOutput, error)
	getCalls []*lambda.GetFunctionConfigurationInput
}

func (m *mockLambdaAPI) GetFunctionConfiguration(ctx context.Context, params *lambda.GetFunctionConfigurationInput, _ ...func(*lambda.Options)) (*lambda.GetFunctionConfigurationOutput, error) {
	m.getCalls = append(m.getCalls, params)
	return m.getFn(ctx, params)
}

func newTestClient(api LambdaAPI) *Client {
	return NewClientWithAPI(api, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestFetchResolvedEnvironment_Success(t *testing.T) {
	mock := &mockLambdaAPI{
		getFn: func(_ context.Context, input *lambda.GetFunctionConfigurationInput) (*lambda.GetFunctionConfigurationOutput, error) {
			return &lambda.GetFunctionConfigurationOutput{
				FunctionName: input.FunctionName,
				Environment: &lambdatypes.EnvironmentResponse{
					Variables: map[string]string{
						"FOO":   "bar",
						"MULTI": "line1\nline2",
					},
				},
			}, nil
		},
	}
	client := newTestClient(mock)

	env, err := client.FetchResolvedEnvironment(context.Background(), "my-service-dev-hello")
	require.NoError(t, err)
	assert.Equal(t, types.Envs{"FOO": "bar", "MULTI": "line1\nline2"}, env)

	require.Len(t, mock.getCalls, 1)
	assert.Equal(t, "my-service-dev-hello", aws.ToString(mock.getCalls[0].FunctionName))
}

func TestFetchResolvedEnvironment_NoEnvironmentBlock(t *testing.T) {
	mock := &mockLambdaAPI{
		getFn: func(_ context.Context, input *lambda.GetFunctionConfigurationInput) (*lambda.GetFunctionConfigurationOutput, error) {
			return &lambda.GetFunctionConfigurationOutput{FunctionName: input.FunctionName}, nil
		},
	}
	client := newTestClient(mock)

	env, err := client.FetchResolvedEnvironment(context.Background(), "my-service-dev-hello")
	require.NoError(t, err)
	assert.Empty(t, env)
	assert.NotNil(t, env)
}

func TestFetchResolvedEnvironment_NotDeployed(t *testing.T) {
	mock := &mockLambdaAPI{
		getFn: func(_ context.Context, _ *lambda.GetFunctionConfigurationInput) (*lambda.GetFunctionConfigurationOutput, error) {
			return nil, &lambdatypes.ResourceNotFoundException{Message: aws.String("Function not found")}
		},
	}
	client := newTestClient(mock)

	_, err := client.FetchResolvedEnvironment(context.Background(), "my-service-dev-hello")
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeRemoteNotDeployed, appErr.Code)
	assert.Contains(t, appErr.Message, "must be deployed before running locally")
	assert.Contains(t, appErr.Message, "my-service-dev-hello")
}

func TestFetchResolvedEnvironment_ControlPlaneError(t *testing.T) {
	mock := &mockLambdaAPI{
		getFn: func(_ context.Context, _ *lambda.GetFunctionConfigurationInput) (*lambda.GetFunctionConfigurationOutput, error) {
			return nil, fmt.Errorf("throttled")
		},
	}
	client := newTestClient(mock)

	_, err := client.FetchResolvedEnvironment(context.Background(), "my-service-dev-hello")
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeRemoteFetch, appErr.Code)
}

func TestFetchResolvedEnvironment_NotFoundDoesNotTripBreaker(t *testing.T) {
	mock := &mockLambdaAPI{
		getFn: func(_ context.Context, _ *lambda.GetFunctionConfigurationInput) (*lambda.GetFunctionConfigurationOutput, error) {
			return nil, &lambdatypes.ResourceNotFoundException{Message: aws.String("Function not found")}
		},
	}
	client := newTestClient(mock)

	// Many more not-found results than the breaker's trip threshold.
	for i := 0; i < 20; i++ {
		_, err := client.FetchResolvedEnvironment(context.Background(), "my-service-dev-ghost")
		require.Error(t, err)

		var appErr *types.AppError
		require.True(t, errors.As(err, &appErr))
		assert.Equal(t, types.ErrCodeRemoteNotDeployed, appErr.Code,
			"call %d should still reach the control plane, not the open breaker", i)
	}
	assert.Len(t, mock.getCalls, 20)
}

func TestFetchResolvedEnvironment_BreakerOpensOnRepeatedFailures(t *testing.T) {
	mock := &mockLambdaAPI{
		getFn: func(_ context.Context, _ *lambda.GetFunctionConfigurationInput) (*lambda.GetFunctionConfigurationOutput, error) {
			return nil, fmt.Errorf("internal failure")
		},
	}
	client := newTestClient(mock)

	for i := 0; i < 10; i++ {
		_, err := client.FetchResolvedEnvironment(context.Background(), "my-service-dev-hello")
		require.Error(t, err)
	}

	// The breaker trips after 6 consecutive failures; later calls never
	// reach the API.
	assert.Less(t, len(mock.getCalls), 10)
}
