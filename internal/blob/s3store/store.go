// Package s3store stores the encrypted payload in an S3 bucket, or in any
// S3-compatible service when an endpoint is configured.
package s3store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/dvloznov/kids-bank/internal/blob"
	"github.com/dvloznov/kids-bank/internal/domain"
)

// API is the subset of the S3 client used by Store.
type API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Store is the S3 implementation of blob.Transport.
type Store struct {
	api    API
	bucket string
}

// New builds an S3 client from static credentials. With a custom endpoint
// path-style addressing is forced, which most S3-compatible providers need.
func New(ctx context.Context, cfg domain.CloudConfig) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("New: bucket is required")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("New: unable to load SDK config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return NewWithAPI(client, cfg.Bucket), nil
}

// NewWithAPI wraps an existing client.
func NewWithAPI(api API, bucket string) *Store {
	return &Store{api: api, bucket: bucket}
}

// Upload implements blob.Transport.
func (s *Store) Upload(ctx context.Context, key string, data []byte) (string, error) {
	out, err := s.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("text/plain"),
	})
	if err != nil {
		return "", fmt.Errorf("Upload: put object %s/%s: %w", s.bucket, key, err)
	}
	return aws.ToString(out.ETag), nil
}

// Download implements blob.Transport.
func (s *Store) Download(ctx context.Context, key, etag string) (*blob.Download, error) {
	in := &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}
	if etag != "" {
		in.IfNoneMatch = aws.String(etag)
	}

	out, err := s.api.GetObject(ctx, in)
	if err != nil {
		switch {
		case isNotModified(err):
			return &blob.Download{NotModified: true, ETag: etag}, nil
		case isNotFound(err):
			return nil, nil
		}
		return nil, fmt.Errorf("Download: get object %s/%s: %w", s.bucket, key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("Download: read body: %w", err)
	}
	return &blob.Download{Data: data, ETag: aws.ToString(out.ETag)}, nil
}

// isNotModified recognizes the error the SDK returns for a 304 response.
func isNotModified(err error) bool {
	var re *awshttp.ResponseError
	if errors.As(err, &re) && re.HTTPStatusCode() == http.StatusNotModified {
		return true
	}
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == "NotModified"
}

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == "NoSuchKey"
}

// Ensure Store implements blob.Transport.
var _ blob.Transport = (*Store)(nil)
