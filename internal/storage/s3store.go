package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3DocStore is the production DocStore, backed by Amazon S3 (or an
// S3-compatible store). Documents, OCR text, exports, and remittance CSVs
// are all addressed by the deterministic paths in spec.md §6; the bucket
// is flat, paths are the keys.
type S3DocStore struct {
	client   *s3.Client
	uploader *manager.Uploader
	bucket   string
}

// NewS3DocStore builds an S3DocStore against bucket using client.
func NewS3DocStore(client *s3.Client, bucket string) *S3DocStore {
	return &S3DocStore{
		client:   client,
		uploader: manager.NewUploader(client),
		bucket:   bucket,
	}
}

func (s *S3DocStore) Put(ctx context.Context, path string, data []byte) error {
	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(path),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return fmt.Errorf("storage: s3 put %s failed: %w", path, err)
	}
	return nil
}

func (s *S3DocStore) Get(ctx context.Context, path string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(path),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, fmt.Errorf("storage: object not found: %s", path)
		}
		return nil, fmt.Errorf("storage: s3 get %s failed: %w", path, err)
	}
	defer out.Body.Close()
	return ReadAll(out.Body)
}

func (s *S3DocStore) Exists(ctx context.Context, path string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(path),
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
