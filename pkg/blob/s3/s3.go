// Package s3 implements blob.Store on Amazon S3 or any S3-compatible service
// (MinIO, Localstack, Cubbit DS3).
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/pauldequant/umbraco-media-snapshot-sub000/pkg/blob"
)

// S3Store implements blob.Store using one S3 bucket, optionally scoped to a
// key prefix so several containers can share a bucket.
//
// Key Design:
//   - Blob key "a1b2c3/photo.jpg" with prefix "snapshots/" is stored as
//     "snapshots/a1b2c3/photo.jpg".
//   - Listing strips the prefix again, so callers only ever see blob keys.
//
// S3 Characteristics:
//   - No creation timestamp: Properties.CreatedOn is always zero and callers
//     fall back to LastModified through Properties.CreatedOrModified.
//   - User metadata keys come back lowercased; blob.Metadata.Get is
//     case-insensitive for that reason.
//   - Metadata updates are a server-side copy onto the same key.
//
// Thread Safety:
// Safe for concurrent use. Concurrent writes to the same key are
// last-write-wins.
type S3Store struct {
	client    *s3.Client
	bucket    string
	keyPrefix string
}

// S3StoreConfig contains configuration for an S3 store.
type S3StoreConfig struct {
	// Client is the configured S3 client
	Client *s3.Client

	// Bucket is the S3 bucket name
	Bucket string

	// KeyPrefix is an optional prefix for all object keys.
	// Example: "snapshots/" results in keys like "snapshots/a1b2c3/photo.jpg"
	KeyPrefix string
}

// NewS3Store creates a new S3-backed store.
//
// Unlike a content store bound to a pre-provisioned bucket, the bucket is not
// verified here; call EnsureContainer at startup to create it when missing.
func NewS3Store(ctx context.Context, cfg S3StoreConfig) (*S3Store, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if cfg.Client == nil {
		return nil, fmt.Errorf("S3 client is required")
	}

	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}

	prefix := cfg.KeyPrefix
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	return &S3Store{
		client:    cfg.Client,
		bucket:    cfg.Bucket,
		keyPrefix: prefix,
	}, nil
}

// objectKey returns the full S3 object key for a blob key.
func (s *S3Store) objectKey(key string) string {
	return s.keyPrefix + key
}

// blobKey is the inverse of objectKey.
func (s *S3Store) blobKey(objectKey string) string {
	return strings.TrimPrefix(objectKey, s.keyPrefix)
}

// isNotFound recognizes the several shapes S3 uses for a missing object.
func isNotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}
	var notFound *types.NotFound
	return errors.As(err, &notFound)
}

// ============================================================================
// blob.Store Implementation
// ============================================================================

func (s *S3Store) Read(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("blob %s: %w", key, blob.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get object: %w", err)
	}

	return result.Body, nil
}

// Write buffers r in memory and uploads it with a single PutObject, which is
// adequate for media-library file sizes.
func (s *S3Store) Write(ctx context.Context, key string, r io.Reader, opts blob.WriteOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := blob.ValidateKey(key); err != nil {
		return err
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read source for %s: %w", key, err)
	}

	input := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(s.objectKey(key)),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		Metadata:      map[string]string(opts.Metadata.Clone()),
	}
	if opts.ContentType != "" {
		input.ContentType = aws.String(opts.ContentType)
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("failed to put object %s: %w", key, err)
	}

	return nil
}

// Delete removes the object. S3 DeleteObject already succeeds for missing keys.
func (s *S3Store) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("failed to delete object %s: %w", key, err)
	}

	return nil
}

func (s *S3Store) Exists(ctx context.Context, key string) (bool, error) {
	if _, err := s.head(ctx, key); err != nil {
		if blob.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *S3Store) Properties(ctx context.Context, key string) (*blob.Properties, error) {
	head, err := s.head(ctx, key)
	if err != nil {
		return nil, err
	}

	return &blob.Properties{
		Key:          key,
		Size:         aws.ToInt64(head.ContentLength),
		ContentType:  aws.ToString(head.ContentType),
		LastModified: aws.ToTime(head.LastModified).UTC(),
		Metadata:     blob.Metadata(head.Metadata).Clone(),
	}, nil
}

// SetMetadata copies the object onto itself with MetadataDirective REPLACE.
func (s *S3Store) SetMetadata(ctx context.Context, key string, md blob.Metadata) error {
	head, err := s.head(ctx, key)
	if err != nil {
		return err
	}

	objectKey := s.objectKey(key)
	input := &s3.CopyObjectInput{
		Bucket:            aws.String(s.bucket),
		Key:               aws.String(objectKey),
		CopySource:        aws.String(copySource(s.bucket, objectKey)),
		Metadata:          map[string]string(md.Clone()),
		MetadataDirective: types.MetadataDirectiveReplace,
		ContentType:       head.ContentType,
	}

	if _, err := s.client.CopyObject(ctx, input); err != nil {
		if isNotFound(err) {
			return fmt.Errorf("blob %s: %w", key, blob.ErrNotFound)
		}
		return fmt.Errorf("failed to update metadata for %s: %w", key, err)
	}

	return nil
}

// Walk pages through ListObjectsV2. S3 returns keys in UTF-8 binary order,
// which matches the lexical order required by blob.Store.
func (s *S3Store) Walk(ctx context.Context, prefix string, opts blob.WalkOptions, fn func(blob.Properties) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.objectKey(prefix)),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("failed to list objects under %q: %w", prefix, err)
		}

		for _, obj := range page.Contents {
			key := s.blobKey(aws.ToString(obj.Key))
			props := blob.Properties{
				Key:          key,
				Size:         aws.ToInt64(obj.Size),
				LastModified: aws.ToTime(obj.LastModified).UTC(),
			}

			if opts.IncludeMetadata {
				full, err := s.Properties(ctx, key)
				if err != nil {
					if blob.IsNotFound(err) {
						continue
					}
					return err
				}
				props.ContentType = full.ContentType
				props.Metadata = full.Metadata
			}

			if err := fn(props); err != nil {
				return err
			}
		}
	}

	return nil
}

// EnsureContainer creates the bucket when HeadBucket cannot see it.
func (s *S3Store) EnsureContainer(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err == nil {
		return nil
	}

	_, err = s.client.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err != nil {
		var owned *types.BucketAlreadyOwnedByYou
		if errors.As(err, &owned) {
			return nil
		}
		return fmt.Errorf("failed to create bucket %q: %w", s.bucket, err)
	}

	return nil
}

// ============================================================================
// Helpers
// ============================================================================

func (s *S3Store) head(ctx context.Context, key string) (*s3.HeadObjectOutput, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	head, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("blob %s: %w", key, blob.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to head object %s: %w", key, err)
	}

	return head, nil
}

// copySource builds the URL-encoded "bucket/key" CopySource value, escaping
// each key segment but keeping the separators.
func copySource(bucket, objectKey string) string {
	segments := strings.Split(objectKey, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return bucket + "/" + strings.Join(segments, "/")
}
