package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// s3API is the subset of *s3.Client used here.
type s3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Storage implements the Storage interface on an S3 bucket.
type S3Storage struct {
	client s3API
	bucket string
	prefix string
}

// NewS3Storage creates a new S3Storage. Objects are stored under prefix.
func NewS3Storage(cfg aws.Config, bucket, prefix string) (*S3Storage, error) {
	if bucket == "" {
		return nil, errors.New("s3 bucket is required")
	}
	return newS3Storage(s3.NewFromConfig(cfg), bucket, prefix), nil
}

func newS3Storage(client s3API, bucket, prefix string) *S3Storage {
	return &S3Storage{client: client, bucket: bucket, prefix: prefix}
}

func (s *S3Storage) key(p string) string {
	if s.prefix == "" {
		return path.Clean(p)
	}
	return path.Join(s.prefix, p)
}

// Save uploads content. Non-seekable readers are buffered so the SDK can sign the payload.
func (s *S3Storage) Save(ctx context.Context, p string, content io.Reader) error {
	body, ok := content.(io.ReadSeeker)
	if !ok {
		raw, err := io.ReadAll(content)
		if err != nil {
			return fmt.Errorf("failed to read content: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(p)),
		Body:   body,
	})
	if err != nil {
		return fmt.Errorf("put s3 object s3://%s/%s: %w", s.bucket, s.key(p), err)
	}
	return nil
}

// Get retrieves an object; the caller closes the returned body.
func (s *S3Storage) Get(ctx context.Context, p string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(p)),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get s3 object s3://%s/%s: %w", s.bucket, s.key(p), err)
	}
	return out.Body, nil
}

// Delete removes an object. S3 reports success for missing keys.
func (s *S3Storage) Delete(ctx context.Context, p string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(p)),
	})
	if err != nil {
		return fmt.Errorf("delete s3 object s3://%s/%s: %w", s.bucket, s.key(p), err)
	}
	return nil
}
