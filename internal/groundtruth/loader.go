// Package groundtruth loads question/answer datasets from S3.
package groundtruth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/haasonsaas/ragbench/internal/experiment"
)

// objectGetter is the subset of the S3 client the loader uses.
type objectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Loader reads ground-truth JSON datasets from S3.
type Loader struct {
	client objectGetter
}

// NewLoader creates a loader using the default AWS credential chain.
func NewLoader(ctx context.Context, region string) (*Loader, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("groundtruth: load aws config: %w", err)
	}
	return &Loader{client: s3.NewFromConfig(awsCfg)}, nil
}

// NewLoaderWithClient creates a loader over an existing client.
func NewLoaderWithClient(client objectGetter) *Loader {
	return &Loader{client: client}
}

// Load fetches and decodes the dataset at the given s3://bucket/key URI.
// Question order in the file is preserved.
func (l *Loader) Load(ctx context.Context, uri string) ([]experiment.Question, error) {
	bucket, key, err := ParseURI(uri)
	if err != nil {
		return nil, err
	}

	out, err := l.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	})
	if err != nil {
		return nil, fmt.Errorf("groundtruth: get s3://%s/%s: %w", bucket, key, err)
	}
	defer out.Body.Close()

	return Decode(out.Body)
}

// Decode parses a ground-truth JSON array of {question, answer} objects.
func Decode(r io.Reader) ([]experiment.Question, error) {
	var questions []experiment.Question
	if err := json.NewDecoder(r).Decode(&questions); err != nil {
		return nil, fmt.Errorf("groundtruth: decode dataset: %w", err)
	}
	return questions, nil
}

// ParseURI splits an s3://bucket/key URI into bucket and key.
func ParseURI(uri string) (bucket, key string, err error) {
	trimmed := strings.TrimPrefix(uri, "s3://")
	if trimmed == uri {
		return "", "", fmt.Errorf("groundtruth: %q is not an s3:// URI", uri)
	}
	bucket, key, found := strings.Cut(trimmed, "/")
	if !found || bucket == "" || key == "" {
		return "", "", fmt.Errorf("groundtruth: %q is missing bucket or key", uri)
	}
	return bucket, key, nil
}
