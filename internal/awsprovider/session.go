// Package awsprovider implements the provider interfaces on API Gateway,
// Lambda and STS.
package awsprovider

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	"github.com/kholmgren/faas-gateway-deployer/internal/provider"
)

// LoadConfig resolves credentials and region the way the AWS CLI does.
// Empty arguments defer to the environment and shared config files.
func LoadConfig(ctx context.Context, region, profile string) (aws.Config, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	if profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(profile))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load AWS config: %w", err)
	}
	if cfg.Region == "" {
		return aws.Config{}, errors.New("no AWS region configured")
	}
	return cfg, nil
}

type STSAPI interface {
	GetCallerIdentity(ctx context.Context, in *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

// ResolveIdentity returns the caller's account and region. A non-empty
// accountID skips the STS call.
func ResolveIdentity(ctx context.Context, api STSAPI, region, accountID string) (provider.Identity, error) {
	if accountID != "" {
		return provider.Identity{AccountID: accountID, Region: region}, nil
	}

	out, err := api.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return provider.Identity{}, fmt.Errorf("get caller identity: %w", err)
	}
	return provider.Identity{AccountID: aws.ToString(out.Account), Region: region}, nil
}
