// Package storage writes capsule expiry records to S3.
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/mnhsh/time-capsule/internal/sweeper"
)

type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type S3Storage struct {
	client objectPutter
	bucket string
}

// NewS3Storage builds a client from the default AWS credential chain. A
// non-empty endpoint (LocalStack, MinIO) switches to path-style addressing.
func NewS3Storage(ctx context.Context, bucket, region, endpoint string) (*S3Storage, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, err
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Storage{client: client, bucket: bucket}, nil
}

func (s *S3Storage) Upload(ctx context.Context, key string, body io.Reader) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String("application/json"),
	})
	return err
}

// Archive stores rec as expired/<owner>/<capsule>.json.
func (s *S3Storage) Archive(ctx context.Context, rec sweeper.ExpiryRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	key := fmt.Sprintf("expired/%s/%s.json", rec.OwnerID, rec.CapsuleID)
	if err := s.Upload(ctx, key, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}
	return nil
}
