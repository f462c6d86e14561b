package internal

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.opentelemetry.io/contrib/instrumentation/github.com/aws/aws-sdk-go-v2/otelaws"
)

const defaultCOSRegion = "ap-guangzhou"

// BucketHeader is the part of the S3 client used by CheckOutputBucket.
type BucketHeader interface {
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// NewCOSClient returns an S3 client for the S3-compatible COS endpoint,
// signing with the transcode credentials.
func NewCOSClient(cfg *Config) *s3.Client {
	var id, secret string
	if cfg.Credentials != nil {
		id, secret = cfg.Credentials.SecretID, cfg.Credentials.SecretKey
	}
	opts := s3.Options{
		Region:       COSRegion(cfg.COSEndpoint),
		BaseEndpoint: aws.String(cfg.COSEndpoint),
		Credentials:  credentials.NewStaticCredentialsProvider(id, secret, ""),
	}
	otelaws.AppendMiddlewares(&opts.APIOptions)
	return s3.New(opts)
}

// CheckOutputBucket verifies that the configured output bucket is reachable.
func CheckOutputBucket(ctx context.Context, client BucketHeader, cfg *Config) error {
	if err := cfg.CheckTranscode(); err != nil {
		return err
	}
	_, err := client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(cfg.outputBucket()),
	})
	if err != nil {
		return fmt.Errorf("failed to head output bucket %q: %w", cfg.outputBucket(), err)
	}
	return nil
}

// COSRegion extracts the region from endpoints of the form
// https://cos.<region>.myqcloud.com.
func COSRegion(endpoint string) string {
	u, err := url.Parse(endpoint)
	if err != nil {
		return defaultCOSRegion
	}
	parts := strings.Split(u.Hostname(), ".")
	if len(parts) >= 3 && parts[0] == "cos" {
		return parts[1]
	}
	return defaultCOSRegion
}
