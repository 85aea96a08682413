package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"legaldesk/pkg/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"
)

var ErrEmptyPath = errors.New("storage path is empty")

// ObjectStorage stores documents in one bucket of an S3-compatible service.
// Paths are keys inside the bucket, e.g. "{company}/{request}/1700000000000_ab12cd34.pdf".
type ObjectStorage struct {
	client    *s3.Client
	presigner *s3.PresignClient
	bucket    string
	logger    *zap.Logger
}

func NewObjectStorage(ctx context.Context, cfg *config.StorageConfig, logger *zap.Logger) (*ObjectStorage, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS SDK config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	logger.Info("Object storage configured",
		zap.String("bucket", cfg.Bucket),
		zap.String("endpoint", cfg.Endpoint),
	)

	return &ObjectStorage{
		client:    client,
		presigner: s3.NewPresignClient(client),
		bucket:    cfg.Bucket,
		logger:    logger,
	}, nil
}

func (s *ObjectStorage) Upload(ctx context.Context, path string, data []byte, contentType string) error {
	if path == "" {
		return ErrEmptyPath
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(path),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("failed to put object %s: %w", path, err)
	}

	s.logger.Debug("Object uploaded", zap.String("path", path), zap.Int("size", len(data)))
	return nil
}

// Remove deletes the given objects. Empty paths are skipped; missing objects are not an error.
func (s *ObjectStorage) Remove(ctx context.Context, paths []string) error {
	objects := make([]types.ObjectIdentifier, 0, len(paths))
	for _, p := range paths {
		if p == "" {
			continue
		}
		objects = append(objects, types.ObjectIdentifier{Key: aws.String(p)})
	}
	if len(objects) == 0 {
		return nil
	}

	out, err := s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
		Bucket: aws.String(s.bucket),
		Delete: &types.Delete{
			Objects: objects,
			Quiet:   aws.Bool(true),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to delete objects: %w", err)
	}
	if len(out.Errors) > 0 {
		failed := make([]string, 0, len(out.Errors))
		for _, e := range out.Errors {
			if aws.ToString(e.Code) == "NoSuchKey" {
				continue
			}
			failed = append(failed, aws.ToString(e.Key)+": "+aws.ToString(e.Message))
		}
		if len(failed) > 0 {
			return fmt.Errorf("failed to delete objects: %s", strings.Join(failed, "; "))
		}
	}
	return nil
}

// SignedURL returns a time-limited GET URL for the object.
func (s *ObjectStorage) SignedURL(ctx context.Context, path string, ttl time.Duration) (string, error) {
	if path == "" {
		return "", ErrEmptyPath
	}

	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(path),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", fmt.Errorf("failed to presign %s: %w", path, err)
	}
	return req.URL, nil
}
