// Package external is the anti-corruption layer between the sync logic and
// the AWS control plane. All outbound calls are routed through a circuit
// breaker so a flapping control plane fails fast instead of hanging every
// function's capture pipeline.
package external

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	lambdatypes "github.com/aws/aws-sdk-go-v2/service/lambda/types"
	"github.com/sony/gobreaker/v2"

	"github.com/rurri/serverless-env-local/internal/types"
)

// LambdaAPI defines the subset of the AWS Lambda control-plane API required
// by this tool. The interface enables unit testing with mocks without a live
// AWS connection.
type LambdaAPI interface {
	GetFunctionConfiguration(ctx context.Context, params *lambda.GetFunctionConfigurationInput, optFns ...func(*lambda.Options)) (*lambda.GetFunctionConfigurationOutput, error)
}

// fetchTimeout is the per-call timeout for control-plane requests. Retry and
// backoff policy beyond this belongs to the SDK's own retryer.
const fetchTimeout = 15 * time.Second

// Client fetches a deployed function's resolved environment variables from
// the Lambda control plane.
type Client struct {
	api     LambdaAPI
	breaker *gobreaker.CircuitBreaker[types.Envs]
	logger  *slog.Logger
}

// NewClient creates a Client from a resolved AWS configuration.
func NewClient(cfg aws.Config, logger *slog.Logger) *Client {
	return NewClientWithAPI(lambda.NewFromConfig(cfg), logger)
}

// NewClientWithAPI creates a Client with an injected control-plane API.
// This constructor is intended for testing.
func NewClientWithAPI(api LambdaAPI, logger *slog.Logger) *Client {
	cb := gobreaker.NewCircuitBreaker[types.Envs](gobreaker.Settings{
		Name:        "lambda-control-plane",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		IsSuccessful: func(err error) bool {
			// A missing function is the caller's deployment state, not
			// control-plane unhealthiness; it must not open the breaker.
			var appErr *types.AppError
			return err == nil ||
				(errors.As(err, &appErr) && appErr.Code == types.ErrCodeRemoteNotDeployed)
		},
	})

	return &Client{
		api:     api,
		breaker: cb,
		logger:  logger,
	}
}

// FetchResolvedEnvironment returns the environment variables the control
// plane currently resolves for the deployed function identified by remoteID
// (the fully-qualified "<stackName>-<functionName>" name).
//
// A function that does not exist remotely maps to ErrCodeRemoteNotDeployed;
// any other control-plane failure maps to ErrCodeRemoteFetch.
func (c *Client) FetchResolvedEnvironment(ctx context.Context, remoteID string) (types.Envs, error) {
	env, err := c.breaker.Execute(func() (types.Envs, error) {
		opCtx, cancel := context.WithTimeout(ctx, fetchTimeout)
		defer cancel()

		out, err := c.api.GetFunctionConfiguration(opCtx, &lambda.GetFunctionConfigurationInput{
			FunctionName: aws.String(remoteID),
		})
		if err != nil {
			var notFound *lambdatypes.ResourceNotFoundException
			if errors.As(err, &notFound) {
				return nil, types.NewAppError(types.ErrCodeRemoteNotDeployed,
					fmt.Sprintf("function %s is not deployed; the stack must be deployed before running locally", remoteID),
					err)
			}
			return nil, types.NewAppError(types.ErrCodeRemoteFetch,
				fmt.Sprintf("fetching configuration for %s", remoteID), err)
		}

		env := types.Envs{}
		if out.Environment != nil {
			for k, v := range out.Environment.Variables {
				env[k] = v
			}
		}
		return env, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, types.NewAppError(types.ErrCodeRemoteFetch,
				fmt.Sprintf("control plane circuit open while fetching %s", remoteID), err)
		}
		return nil, err
	}

	c.logger.Debug("resolved environment fetched",
		"function", remoteID,
		"count", len(env),
	)
	return env, nil
}
