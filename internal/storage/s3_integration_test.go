//go:build integration

package storage

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"

	"cfs-go/internal/cfs"
)

// Runs against a real bucket, e.g. a local MinIO:
//
//	CFS_TEST_S3_BUCKET=cfs-test CFS_TEST_S3_ENDPOINT=http://localhost:9000 \
//	AWS_ACCESS_KEY_ID=minio AWS_SECRET_ACCESS_KEY=minio123 \
//	go test -tags integration ./internal/storage
func TestS3Store(t *testing.T) {
	bucket := os.Getenv("CFS_TEST_S3_BUCKET")
	if bucket == "" {
		t.Skip("CFS_TEST_S3_BUCKET not set")
	}
	opts := S3Options{
		Bucket:   bucket,
		Region:   os.Getenv("CFS_TEST_S3_REGION"),
		Endpoint: os.Getenv("CFS_TEST_S3_ENDPOINT"),
	}
	if opts.Region == "" {
		opts.Region = "us-east-1"
	}

	client, err := NewS3Client(context.Background(), opts)
	if err != nil {
		t.Fatalf("NewS3Client() error = %v", err)
	}

	runStoreTests(t, func(t *testing.T) cfs.ObjectStore {
		o := opts
		o.KeyPrefix = "cfs-test-" + uuid.New().String() + "/"
		s, err := NewS3Store(client, o, 4)
		if err != nil {
			t.Fatalf("NewS3Store() error = %v", err)
		}
		t.Cleanup(func() {
			s.DeletePrefix(context.Background(), "")
		})
		return s
	})
}
