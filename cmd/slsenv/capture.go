package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	"github.com/rurri/serverless-env-local/internal/config"
	"github.com/rurri/serverless-env-local/internal/external"
	"github.com/rurri/serverless-env-local/internal/syncer"
)

// identityCheckTimeout bounds the STS GetCallerIdentity probe so bad
// credentials fail fast instead of stalling the capture.
const identityCheckTimeout = 10 * time.Second

// runCapture fetches the resolved environment of every declared function
// from the control plane and persists each to its local file.
func runCapture(ctx context.Context, settings *config.Settings, logger *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("capture", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	var opts commonOptions
	bindCommonFlags(fs, &opts)
	if err := fs.Parse(args); err != nil {
		return err
	}

	project, res, err := resolve(settings, opts)
	if err != nil {
		return err
	}

	profile := firstNonEmpty(opts.profile, settings.Profile)
	cfg, err := loadAWSConfig(ctx, res.Region, profile)
	if err != nil {
		return err
	}
	if err := verifyIdentity(ctx, cfg, logger); err != nil {
		return err
	}

	functionNames := project.FunctionNames()
	logger.Info("capturing deployed environment",
		"service", res.Service,
		"stage", res.Stage,
		"region", res.Region,
		"functions", len(functionNames),
	)

	coordinator := syncer.NewCoordinator(
		external.NewClient(cfg, logger),
		newStore(logger),
		syncer.OSSink{},
		logger,
	)
	return coordinator.OnDeployed(ctx, res, functionNames)
}

// loadAWSConfig resolves the AWS SDK configuration from the default
// credential chain, honoring an explicit region and optional profile.
func loadAWSConfig(ctx context.Context, region, profile string) (aws.Config, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(region),
	}
	if profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(profile))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("loading AWS config: %w", err)
	}
	return cfg, nil
}

// verifyIdentity calls STS GetCallerIdentity to confirm credentials are
// functional before fanning out per-function control-plane calls.
func verifyIdentity(ctx context.Context, cfg aws.Config, logger *slog.Logger) error {
	identityCtx, cancel := context.WithTimeout(ctx, identityCheckTimeout)
	defer cancel()

	identity, err := sts.NewFromConfig(cfg).GetCallerIdentity(identityCtx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return fmt.Errorf("verifying AWS identity (STS GetCallerIdentity): %w\n"+
			"  Check that your AWS credentials are configured correctly.", err)
	}

	logger.Debug("AWS identity verified",
		"account_id", aws.ToString(identity.Account),
		"arn", aws.ToString(identity.Arn),
	)
	return nil
}
