package storage

import (
	"bytes"
	"context"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/opentracing/opentracing-go"

	"github.com/pawpal/petmail/config"
	"github.com/pawpal/petmail/interfaces"
	"github.com/pawpal/petmail/internal/tracing"
	"github.com/pawpal/petmail/services/storage/aws_client"
)

// ObjectStorageService implements StorageService using S3Client. Objects are
// always private.
type ObjectStorageService struct {
	client aws_client.S3Client
}

func NewStorageService(client aws_client.S3Client) interfaces.StorageService {
	return &ObjectStorageService{client: client}
}

// NewStorageServiceFromConfig picks R2 or AWS S3 by provider.
func NewStorageServiceFromConfig(cfg *config.StorageConfig) interfaces.StorageService {
	if strings.EqualFold(cfg.Provider, "s3") {
		return NewStorageService(aws_client.NewAWSClient(cfg.AWSRegion, cfg.AccessKeyID, cfg.AccessKeySecret))
	}
	return NewStorageService(aws_client.NewR2Client(aws_client.R2Config{
		AccountID:       cfg.AccountID,
		AccessKeyID:     cfg.AccessKeyID,
		AccessKeySecret: cfg.AccessKeySecret,
	}))
}

func (s *ObjectStorageService) Upload(ctx context.Context, bucket, key string, data []byte, contentType string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "ObjectStorageService.Upload")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	span.LogKV("bucket", bucket, "key", key, "size", len(data))

	err := s.client.Upload(ctx, s3manager.UploadInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		tracing.TraceErr(span, err)
	}
	return err
}

func (s *ObjectStorageService) Download(ctx context.Context, bucket, key string) ([]byte, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "ObjectStorageService.Download")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	span.LogKV("bucket", bucket, "key", key)

	content, err := s.client.Download(ctx, bucket, key)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	return content, nil
}

func (s *ObjectStorageService) Exists(ctx context.Context, bucket, key string) (bool, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "ObjectStorageService.Exists")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	return s.client.Exists(ctx, bucket, key)
}

func (s *ObjectStorageService) Delete(ctx context.Context, bucket, key string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "ObjectStorageService.Delete")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	return s.client.Delete(ctx, bucket, key)
}

func (s *ObjectStorageService) SignedURL(ctx context.Context, bucket, key string, ttl time.Duration) (string, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "ObjectStorageService.SignedURL")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	url, err := s.client.PresignGet(ctx, bucket, key, ttl)
	if err != nil {
		tracing.TraceErr(span, err)
		return "", err
	}
	return url, nil
}
