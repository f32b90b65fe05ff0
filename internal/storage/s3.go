package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"cfs-go/internal/cfs"
	"cfs-go/internal/model"
)

// S3 allows at most 1000 keys per DeleteObjects request.
const maxDeleteBatch = 1000

// S3Options configures an S3Store. It is decoded from the [storage.options]
// table of the config file.
type S3Options struct {
	Bucket          string `mapstructure:"bucket"`
	Region          string `mapstructure:"region"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	KeyPrefix       string `mapstructure:"key_prefix"`
	PartSize        int64  `mapstructure:"part_size"`
	ForcePathStyle  bool   `mapstructure:"force_path_style"`
}

// S3Store implements ObjectStore on Amazon S3 or an S3-compatible service
// such as MinIO. Keys are stored as-is below an optional key prefix, so the
// bucket mirrors the users' folder structure.
type S3Store struct {
	client    *s3.Client
	uploader  *manager.Uploader
	bucket    string
	keyPrefix string
	fanout    int
}

// NewS3Client builds an S3 client from options. Static credentials are used
// when both keys are set, otherwise the default credential chain.
func NewS3Client(ctx context.Context, opts S3Options) (*s3.Client, error) {
	var loadOptions []func(*awsconfig.LoadOptions) error
	if opts.Region != "" {
		loadOptions = append(loadOptions, awsconfig.WithRegion(opts.Region))
	}
	if opts.AccessKeyID != "" && opts.SecretAccessKey != "" {
		loadOptions = append(loadOptions, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			// MinIO and Localstack need path-style addressing.
			o.UsePathStyle = true
		}
		if opts.ForcePathStyle {
			o.UsePathStyle = true
		}
	}), nil
}

// NewS3Store creates a store on an existing bucket.
func NewS3Store(client *s3.Client, opts S3Options, fanout int) (*S3Store, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("s3 store: bucket is required")
	}
	if fanout <= 0 {
		fanout = DefaultFanout
	}
	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		if opts.PartSize > 0 {
			u.PartSize = opts.PartSize
		}
	})
	return &S3Store{
		client:    client,
		uploader:  uploader,
		bucket:    opts.Bucket,
		keyPrefix: opts.KeyPrefix,
		fanout:    fanout,
	}, nil
}

func (s *S3Store) objectKey(key string) string {
	return s.keyPrefix + key
}

func (s *S3Store) fromObjectKey(key string) string {
	return strings.TrimPrefix(key, s.keyPrefix)
}

// isNotFound recognizes the not-found shapes S3 returns: typed NoSuchKey
// from GetObject and a bare 404 NotFound from HeadObject.
func isNotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return true
		}
	}
	return false
}

func (s *S3Store) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to head object %s: %w", key, err)
	}
	return true, nil
}

func (s *S3Store) PrefixExists(ctx context.Context, prefix string) (bool, error) {
	out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:    aws.String(s.bucket),
		Prefix:    aws.String(s.objectKey(withSlash(prefix))),
		Delimiter: aws.String("/"),
		MaxKeys:   aws.Int32(1),
	})
	if err != nil {
		return false, fmt.Errorf("failed to list prefix %s: %w", prefix, err)
	}
	return len(out.Contents) > 0 || len(out.CommonPrefixes) > 0, nil
}

func (s *S3Store) Put(ctx context.Context, key string, r io.Reader, size int64) error {
	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(s.objectKey(key)),
		Body:          r,
		ContentLength: aws.Int64(size),
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return nil
}

func (s *S3Store) PutEmpty(ctx context.Context, key string) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(s.objectKey(key)),
		Body:          bytes.NewReader(nil),
		ContentLength: aws.Int64(0),
	})
	if err != nil {
		return fmt.Errorf("failed to put marker %s: %w", key, err)
	}
	return nil
}

func (s *S3Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// DeletePrefix lists every key under prefix and removes them with
// DeleteObjects in batches of 1000, several batches at a time. Request
// failures and per-key errors reported by S3 are all returned.
func (s *S3Store) DeletePrefix(ctx context.Context, prefix string) error {
	items, err := s.ListAll(ctx, withSlash(prefix))
	if err != nil {
		return err
	}

	var batches [][]model.ObjectInfo
	for i := 0; i < len(items); i += maxDeleteBatch {
		batches = append(batches, items[i:min(i+maxDeleteBatch, len(items))])
	}
	return fanOut(ctx, s.fanout, batches, s.deleteBatch)
}

func (s *S3Store) deleteBatch(ctx context.Context, batch []model.ObjectInfo) error {
	objects := make([]types.ObjectIdentifier, len(batch))
	for i, item := range batch {
		objects[i] = types.ObjectIdentifier{Key: aws.String(s.objectKey(item.Key))}
	}

	result, err := s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
		Bucket: aws.String(s.bucket),
		Delete: &types.Delete{
			Objects: objects,
			Quiet:   aws.Bool(true),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to delete %d objects starting at %s: %w", len(batch), batch[0].Key, err)
	}

	var errs []error
	for _, deleteErr := range result.Errors {
		key := s.fromObjectKey(aws.ToString(deleteErr.Key))
		errs = append(errs, fmt.Errorf("failed to delete %s: %s: %s",
			key, aws.ToString(deleteErr.Code), aws.ToString(deleteErr.Message)))
	}
	return errors.Join(errs...)
}

func (s *S3Store) Copy(ctx context.Context, src, dst string) error {
	_, err := s.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(s.bucket),
		CopySource: aws.String(s.bucket + "/" + url.PathEscape(s.objectKey(src))),
		Key:        aws.String(s.objectKey(dst)),
	})
	if err != nil {
		if isNotFound(err) {
			return fmt.Errorf("%s: %w", src, cfs.ErrObjectNotFound)
		}
		return fmt.Errorf("failed to copy %s to %s: %w", src, dst, err)
	}
	return nil
}

func (s *S3Store) CopyPrefix(ctx context.Context, srcPrefix, dstPrefix string) error {
	srcPrefix, dstPrefix = withSlash(srcPrefix), withSlash(dstPrefix)
	items, err := s.ListAll(ctx, srcPrefix)
	if err != nil {
		return err
	}
	return fanOut(ctx, s.fanout, items, func(ctx context.Context, item model.ObjectInfo) error {
		return s.Copy(ctx, item.Key, dstPrefix+strings.TrimPrefix(item.Key, srcPrefix))
	})
}

func (s *S3Store) ListChildren(ctx context.Context, prefix string) ([]model.ObjectInfo, error) {
	prefix = withSlash(prefix)
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(s.bucket),
		Prefix:    aws.String(s.objectKey(prefix)),
		Delimiter: aws.String("/"),
	})

	var out []model.ObjectInfo
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list %s: %w", prefix, err)
		}
		for _, cp := range page.CommonPrefixes {
			out = append(out, model.ObjectInfo{Key: s.fromObjectKey(aws.ToString(cp.Prefix)), IsDir: true})
		}
		for _, obj := range page.Contents {
			key := s.fromObjectKey(aws.ToString(obj.Key))
			if key == prefix {
				continue
			}
			out = append(out, model.ObjectInfo{Key: key, Size: aws.ToInt64(obj.Size), IsDir: strings.HasSuffix(key, "/")})
		}
	}
	return childrenOf(prefix, out), nil
}

func (s *S3Store) ListAll(ctx context.Context, prefix string) ([]model.ObjectInfo, error) {
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.objectKey(prefix)),
	})

	var out []model.ObjectInfo
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list %s: %w", prefix, err)
		}
		for _, obj := range page.Contents {
			key := s.fromObjectKey(aws.ToString(obj.Key))
			out = append(out, model.ObjectInfo{Key: key, Size: aws.ToInt64(obj.Size), IsDir: strings.HasSuffix(key, "/")})
		}
	}
	return out, nil
}

func (s *S3Store) StatSize(ctx context.Context, key string) (int64, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		if isNotFound(err) {
			return 0, fmt.Errorf("%s: %w", key, cfs.ErrObjectNotFound)
		}
		return 0, fmt.Errorf("failed to head object %s: %w", key, err)
	}
	return aws.ToInt64(out.ContentLength), nil
}

func (s *S3Store) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%s: %w", key, cfs.ErrObjectNotFound)
		}
		return nil, fmt.Errorf("failed to get object %s: %w", key, err)
	}
	return out.Body, nil
}

// ValidateSetup verifies bucket access.
func (s *S3Store) ValidateSetup(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err != nil {
		return fmt.Errorf("failed to access bucket %q: %w", s.bucket, err)
	}
	return nil
}

// Compile-time check that S3Store implements cfs.ObjectStore interface
var _ cfs.ObjectStore = (*S3Store)(nil)
