// Package s3 implements the mirror.Client interface for AWS S3 and
// S3-compatible storage.
package s3

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// multipartUploadPartSize is the size for S3 multipart upload parts (5MB minimum)
const multipartUploadPartSize = 5 * 1024 * 1024

// Config holds configuration for the S3 mirror target.
type Config struct {
	Bucket          string
	Region          string
	Endpoint        string // Custom endpoint for MinIO or other S3-compatible services
	AccessKeyID     string
	SecretAccessKey string
	PathStyle       bool   // Use path-style addressing (required for MinIO)
	Prefix          string // Optional key prefix for mirrored objects
}

// Client implements mirror.Client for AWS S3 and S3-compatible storage.
type Client struct {
	client   *s3.Client
	uploader *manager.Uploader
	bucket   string
	prefix   string
}

// New creates a new S3 mirror client. Bucket access is verified with a HEAD
// request so invalid credentials fail at startup, before traffic is accepted.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("S3 bucket name is required")
	}

	var optFuncs []func(*config.LoadOptions) error
	if cfg.Region != "" {
		optFuncs = append(optFuncs, config.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		optFuncs = append(optFuncs, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, optFuncs...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}
	if cfg.PathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	client := s3.NewFromConfig(awsCfg, s3Opts...)

	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = multipartUploadPartSize
	})

	_, err = client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(cfg.Bucket),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to access S3 bucket %q: %w", cfg.Bucket, err)
	}

	slog.Info("S3 mirror initialized",
		"bucket", cfg.Bucket,
		"region", cfg.Region,
		"endpoint", cfg.Endpoint,
		"path_style", cfg.PathStyle,
	)

	return &Client{
		client:   client,
		uploader: uploader,
		bucket:   cfg.Bucket,
		prefix:   strings.Trim(cfg.Prefix, "/"),
	}, nil
}

// key builds the object key for a stored filename, applying the prefix.
func (c *Client) key(name string) (string, error) {
	if name == "" || strings.Contains(name, "..") || strings.ContainsRune(name, '\x00') {
		return "", fmt.Errorf("invalid mirror key: %q", name)
	}
	if c.prefix != "" {
		return path.Join(c.prefix, name), nil
	}
	return name, nil
}

// Put uploads the object and returns its key as the remote handle.
func (c *Client) Put(ctx context.Context, name string, reader io.Reader, size int64) (string, error) {
	key, err := c.key(name)
	if err != nil {
		return "", err
	}

	_, err = c.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
		Body:   reader,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %q to S3: %w", key, err)
	}

	return key, nil
}

// Delete removes the remote object. S3 DeleteObject is idempotent, so a
// missing object is not an error.
func (c *Client) Delete(ctx context.Context, handle string) error {
	if handle == "" {
		return nil
	}

	_, err := c.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(handle),
	})
	if err != nil {
		return fmt.Errorf("failed to delete %q from S3: %w", handle, err)
	}

	return nil
}
