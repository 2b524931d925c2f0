package assets

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/meridianpress/draftsync/internal/common"
	"github.com/meridianpress/draftsync/internal/logging"
	"github.com/meridianpress/draftsync/models"
)

// s3API is the subset of the S3 client the coordinator needs. *s3.Client
// satisfies it; tests substitute a fake.
type s3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Config holds object-storage settings. BaseEndpoint supports
// S3-compatible backends (e.g. MinIO); PublicBaseURL is the prefix served
// to site visitors and defaults to <BaseEndpoint>/<Bucket>.
type S3Config struct {
	Bucket        string
	Region        string
	AccessKey     string
	SecretKey     string
	BaseEndpoint  string
	PublicBaseURL string
}

// S3Coordinator implements Coordinator on aws-sdk-go-v2.
type S3Coordinator struct {
	client  s3API
	bucket  string
	baseURL string
	logger  logging.Logger
}

func NewS3Coordinator(ctx context.Context, c S3Config, logger logging.Logger) (*S3Coordinator, error) {
	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(c.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			c.AccessKey,
			c.SecretKey,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("failed to load object storage config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if c.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(c.BaseEndpoint)
		}
	})

	baseURL := c.PublicBaseURL
	if baseURL == "" {
		baseURL = strings.TrimSuffix(c.BaseEndpoint, "/") + "/" + c.Bucket
	}

	return &S3Coordinator{
		client:  client,
		bucket:  c.Bucket,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		logger:  logger.With("module", "assets"),
	}, nil
}

// Upload stores the file under the kind-scoped key and returns its stable
// reference. Any failure comes back as a common.UploadError so callers can
// tell an aborted upload apart from a persistence error.
func (c *S3Coordinator) Upload(ctx context.Context, kind models.Kind, f File) (*models.AssetReference, error) {
	key, err := StorageKey(kind, f.Name)
	if err != nil {
		return nil, &common.UploadError{Path: f.Name, Err: err}
	}

	_, err = c.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(c.bucket),
		Key:           aws.String(key),
		Body:          f.Body,
		ContentType:   aws.String(f.ContentType),
		ContentLength: aws.Int64(f.Size),
	})
	if err != nil {
		return nil, &common.UploadError{Path: key, Err: err}
	}

	c.logger.Debug(ctx, "asset uploaded", "key", key, "size", f.Size)

	return &models.AssetReference{
		URL:         c.baseURL + "/" + key,
		StoragePath: key,
		ContentType: f.ContentType,
		Size:        f.Size,
	}, nil
}

// Remove deletes the object at storagePath. Used only for superseded-asset
// cleanup; callers must treat failures as non-fatal.
func (c *S3Coordinator) Remove(ctx context.Context, storagePath string) error {
	_, err := c.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(storagePath),
	})
	if err != nil {
		return fmt.Errorf("failed to delete asset %s: %w", storagePath, err)
	}
	return nil
}
