//go:build integration
// +build integration

package s3

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/pauldequant/umbraco-media-snapshot-sub000/pkg/blob"
	blobtesting "github.com/pauldequant/umbraco-media-snapshot-sub000/pkg/blob/testing"
)

// TestS3Store_Integration runs the complete blob.Store suite against a real
// S3-compatible service (Localstack).
//
// Prerequisites:
//   - Localstack running on localhost:4566
//   - Run with: go test -tags=integration ./pkg/blob/s3/...
//
// To start Localstack:
//
//	docker run --rm -p 4566:4566 localstack/localstack
func TestS3Store_Integration(t *testing.T) {
	ctx := context.Background()

	endpoint := os.Getenv("LOCALSTACK_ENDPOINT")
	if endpoint == "" {
		endpoint = "http://localhost:4566"
	}

	client, err := NewClient(ctx, ClientConfig{
		Region:          "us-east-1",
		Endpoint:        endpoint,
		AccessKeyID:     "test",
		SecretAccessKey: "test",
	})
	if err != nil {
		t.Fatalf("Failed to create S3 client: %v", err)
	}

	bucketName := "mediasnap-test-bucket"

	bootstrap, err := NewS3Store(ctx, S3StoreConfig{Client: client, Bucket: bucketName})
	if err != nil {
		t.Fatalf("Failed to create S3 store: %v", err)
	}
	if err := bootstrap.EnsureContainer(ctx); err != nil {
		t.Fatalf("Failed to create test bucket: %v", err)
	}

	defer cleanupBucket(t, client, bucketName)

	// Each test gets its own prefix so stores start empty.
	var counter atomic.Int64
	suite := &blobtesting.StoreTestSuite{
		NewStore: func() blob.Store {
			store, err := NewS3Store(ctx, S3StoreConfig{
				Client:    client,
				Bucket:    bucketName,
				KeyPrefix: fmt.Sprintf("test-%d/", counter.Add(1)),
			})
			if err != nil {
				t.Fatalf("Failed to create S3 store: %v", err)
			}
			return store
		},
	}

	suite.Run(t)
}

func cleanupBucket(t *testing.T, client *s3.Client, bucket string) {
	t.Helper()
	ctx := context.Background()

	paginator := s3.NewListObjectsV2Paginator(client, &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			t.Logf("Failed to list objects during cleanup: %v", err)
			return
		}
		for _, obj := range page.Contents {
			_, _ = client.DeleteObject(ctx, &s3.DeleteObjectInput{
				Bucket: aws.String(bucket),
				Key:    obj.Key,
			})
		}
	}

	if _, err := client.DeleteBucket(ctx, &s3.DeleteBucketInput{Bucket: aws.String(bucket)}); err != nil {
		t.Logf("Failed to delete bucket: %v", err)
	}
}
