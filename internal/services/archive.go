package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Archiver keeps a durable off-database copy of submitted import text.
// Best-effort: archive failures never block an import.
type Archiver interface {
	Archive(ctx context.Context, ownerID int, jobID uuid.UUID, rawText string) (string, error)
	Remove(ctx context.Context, key string) error
}

// S3Archiver stores raw import text in S3-compatible object storage
type S3Archiver struct {
	client *minio.Client
	bucket string
	region string
}

// NewS3Archiver creates the archiver and verifies the bucket exists
func NewS3Archiver(ctx context.Context, endpoint, accessKey, secretKey, bucket, region string, useSSL bool) (*S3Archiver, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("create S3 client: %w", err)
	}

	a := &S3Archiver{client: client, bucket: bucket, region: region}
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: region}); err != nil {
			return nil, fmt.Errorf("create bucket: %w", err)
		}
	}
	return a, nil
}

// Archive uploads the raw text and returns the object key
func (a *S3Archiver) Archive(ctx context.Context, ownerID int, jobID uuid.UUID, rawText string) (string, error) {
	key := fmt.Sprintf("imports/%d/%s/%s.txt", ownerID, time.Now().UTC().Format("2006/01"), jobID)
	reader := strings.NewReader(rawText)
	_, err := a.client.PutObject(ctx, a.bucket, key, reader, int64(len(rawText)), minio.PutObjectOptions{
		ContentType: "text/plain; charset=utf-8",
	})
	if err != nil {
		return "", fmt.Errorf("archive import text: %w", err)
	}
	return key, nil
}

// Remove deletes an archived object
func (a *S3Archiver) Remove(ctx context.Context, key string) error {
	if err := a.client.RemoveObject(ctx, a.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove archived text: %w", err)
	}
	return nil
}
