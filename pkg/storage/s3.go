package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Config addresses the bucket used for attachments.
type S3Config struct {
	Bucket   string
	Region   string
	Endpoint string
	URLTTL   time.Duration
}

// S3Storage stores objects in an S3 compatible bucket and serves presigned
// GET URLs.
type S3Storage struct {
	client  *s3.Client
	presign *s3.PresignClient
	bucket  string
	ttl     time.Duration
}

// NewS3Storage loads AWS credentials from the default chain.
func NewS3Storage(ctx context.Context, cfg S3Config) (*S3Storage, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	awsConfig, err := awscfg.LoadDefaultConfig(ctx, awscfg.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	ttl := cfg.URLTTL
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &S3Storage{
		client:  client,
		presign: s3.NewPresignClient(client),
		bucket:  cfg.Bucket,
		ttl:     ttl,
	}, nil
}

// Put uploads r under key.
func (s *S3Storage) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	cleaned, err := CleanKey(key)
	if err != nil {
		return err
	}
	input := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(cleaned),
		Body:        r,
		ContentType: aws.String(contentType),
	}
	if size > 0 {
		input.ContentLength = aws.Int64(size)
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("s3 put %s: %w", cleaned, err)
	}
	return nil
}

// URL presigns a GET request for key.
func (s *S3Storage) URL(ctx context.Context, key string) (string, time.Time, error) {
	cleaned, err := CleanKey(key)
	if err != nil {
		return "", time.Time{}, err
	}
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(cleaned),
	}, s3.WithPresignExpires(s.ttl))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("s3 presign %s: %w", cleaned, err)
	}
	return req.URL, time.Now().Add(s.ttl), nil
}

// Delete removes key from the bucket.
func (s *S3Storage) Delete(ctx context.Context, key string) error {
	cleaned, err := CleanKey(key)
	if err != nil {
		return err
	}
	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(cleaned),
	}); err != nil {
		return fmt.Errorf("s3 delete %s: %w", cleaned, err)
	}
	return nil
}
