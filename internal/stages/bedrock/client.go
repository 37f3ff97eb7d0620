// Package bedrock implements the embed, rerank, and generate stages on top
// of the AWS Bedrock runtime.
//
// Authentication uses the default AWS credential chain (environment, IAM
// role, or explicit static credentials).
package bedrock

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
)

// ClientConfig holds connection settings for the Bedrock runtime.
type ClientConfig struct {
	// Region is the AWS region (default: us-east-1).
	Region string

	// AccessKeyID for explicit credentials (optional, uses the default
	// chain when empty).
	AccessKeyID string

	// SecretAccessKey for explicit credentials (optional).
	SecretAccessKey string

	// SessionToken for temporary credentials (optional).
	SessionToken string
}

// NewRuntimeClient creates a Bedrock runtime client.
func NewRuntimeClient(ctx context.Context, cfg ClientConfig) (*bedrockruntime.Client, error) {
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}

	var awsCfg aws.Config
	var err error
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		awsCfg, err = awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(cfg.Region),
			awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
				cfg.AccessKeyID,
				cfg.SecretAccessKey,
				cfg.SessionToken,
			)),
		)
	} else {
		awsCfg, err = awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(cfg.Region),
		)
	}
	if err != nil {
		return nil, fmt.Errorf("bedrock: failed to load AWS config: %w", err)
	}

	return bedrockruntime.NewFromConfig(awsCfg), nil
}
