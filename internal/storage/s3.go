// Package storage provides the write-once artifact object store on top of
// S3-compatible services (AWS S3, MinIO, RustFS). Immutability is enforced
// at write time with a conditional put; the stored object's version id is
// surfaced as its generation so later deletes can insist on the exact
// object they indexed.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"github.com/evidentry/evidentry/internal/domain"
)

// S3ClientConfig holds configuration for S3Client
type S3ClientConfig struct {
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	UsePathStyle    bool
	DownloadExpiry  time.Duration
}

// StoredObject describes an object after a successful write or stat.
type StoredObject struct {
	Location      string
	Generation    *string
	ContentLength int64
	ContentType   string
	ETag          string
}

// S3Client provides write-once operations against a single artifact bucket
type S3Client struct {
	client            *s3.Client
	presignClient     *s3.PresignClient
	bucket            string
	downloadURLExpiry time.Duration
}

// NewS3Client creates a new S3Client with the given configuration
func NewS3Client(ctx context.Context, cfg S3ClientConfig) (*S3Client, error) {
	// Create custom resolver for S3-compatible endpoints
	customResolver := aws.EndpointResolverWithOptionsFunc(
		func(service, region string, options ...interface{}) (aws.Endpoint, error) {
			if cfg.Endpoint != "" {
				return aws.Endpoint{
					URL:               cfg.Endpoint,
					HostnameImmutable: true,
				}, nil
			}
			return aws.Endpoint{}, &aws.EndpointNotFoundError{}
		},
	)

	// Load AWS config
	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		),
		config.WithEndpointResolverWithOptions(customResolver),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	// Create S3 client with path-style addressing for S3-compatible services
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
	})

	downloadExpiry := cfg.DownloadExpiry
	if downloadExpiry <= 0 {
		downloadExpiry = 1 * time.Hour
	}

	return &S3Client{
		client:            client,
		presignClient:     s3.NewPresignClient(client),
		bucket:            cfg.Bucket,
		downloadURLExpiry: downloadExpiry,
	}, nil
}

// Bucket returns the artifact bucket name.
func (c *S3Client) Bucket() string {
	return c.bucket
}

// Location returns the canonical object location for a key in this bucket.
func (c *S3Client) Location(key string) string {
	return fmt.Sprintf("s3://%s/%s", c.bucket, key)
}

// Key extracts the object key from a location produced by Location. Returns
// an error for locations pointing at a different bucket.
func (c *S3Client) Key(location string) (string, error) {
	prefix := fmt.Sprintf("s3://%s/", c.bucket)
	key, ok := strings.CutPrefix(location, prefix)
	if !ok || key == "" {
		return "", domain.ErrInvalidObjectLocation
	}
	return key, nil
}

// PutIfAbsent writes the object only when the key does not already exist.
// An existing key fails with ErrArtifactAlreadyExists and leaves the stored
// object untouched. The returned generation is the bucket's version id for
// the new object, absent when versioning is off.
func (c *S3Client) PutIfAbsent(ctx context.Context, key string, body []byte, contentType string) (*StoredObject, error) {
	out, err := c.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
		IfNoneMatch: aws.String("*"),
	})
	if err != nil {
		if isPreconditionFailed(err) {
			return nil, domain.ErrArtifactAlreadyExists
		}
		return nil, fmt.Errorf("failed to put object: %w", err)
	}

	return &StoredObject{
		Location:      c.Location(key),
		Generation:    out.VersionId,
		ContentLength: int64(len(body)),
		ContentType:   contentType,
		ETag:          aws.ToString(out.ETag),
	}, nil
}

// Get reads an object's bytes.
func (c *S3Client) Get(ctx context.Context, key string) ([]byte, error) {
	out, err := c.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, domain.ErrObjectNotFound
		}
		return nil, fmt.Errorf("failed to get object: %w", err)
	}
	defer out.Body.Close()

	body, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read object body: %w", err)
	}
	return body, nil
}

// Head checks whether an object exists and returns its metadata.
func (c *S3Client) Head(ctx context.Context, key string) (*StoredObject, error) {
	out, err := c.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, domain.ErrObjectNotFound
		}
		return nil, fmt.Errorf("failed to head object: %w", err)
	}

	return &StoredObject{
		Location:      c.Location(key),
		Generation:    out.VersionId,
		ContentLength: aws.ToInt64(out.ContentLength),
		ContentType:   aws.ToString(out.ContentType),
		ETag:          aws.ToString(out.ETag),
	}, nil
}

// DeleteIfGeneration deletes the object, insisting that the live object is
// still the generation recorded in the index. A generation mismatch fails
// with ErrGenerationConflict; a missing object is treated as already
// deleted. A nil generation deletes unconditionally, for buckets without
// versioning.
func (c *S3Client) DeleteIfGeneration(ctx context.Context, key string, generation *string) error {
	if generation != nil && *generation != "" {
		head, err := c.Head(ctx, key)
		if err != nil {
			if errors.Is(err, domain.ErrObjectNotFound) {
				return nil
			}
			return err
		}
		if head.Generation == nil || *head.Generation != *generation {
			return domain.ErrGenerationConflict
		}
	}

	_, err := c.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket:    aws.String(c.bucket),
		Key:       aws.String(key),
		VersionId: emptyToNil(generation),
	})
	if err != nil {
		if isNotFound(err) {
			return nil
		}
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

// GenerateDownloadURL creates a presigned URL for downloading an artifact
func (c *S3Client) GenerateDownloadURL(ctx context.Context, key string) (string, error) {
	presignedReq, err := c.presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = c.downloadURLExpiry
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate download URL: %w", err)
	}
	return presignedReq.URL, nil
}

// EnsureBucket creates the bucket if it doesn't exist
func (c *S3Client) EnsureBucket(ctx context.Context) error {
	_, err := c.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(c.bucket),
	})
	if err == nil {
		return nil
	}

	_, err = c.client.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(c.bucket),
	})
	if err != nil {
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}

func isPreconditionFailed(err error) bool {
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == "PreconditionFailed"
}

func isNotFound(err error) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.ErrorCode() {
	case "NotFound", "NoSuchKey":
		return true
	}
	return false
}

func emptyToNil(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}
