// Package s3store keeps uploaded files in an S3 compatible bucket. Objects
// live under an optional key prefix and form a flat directory.
package s3store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/example/calendar-manager/internal/application"
)

// API is the subset of the S3 client the store uses.
type API interface {
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// ClientOptions describe how to reach the bucket.
type ClientOptions struct {
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

// NewClient builds an S3 client. Static credentials are used when both keys
// are set, otherwise the default credential chain applies. A custom
// endpoint switches to path-style addressing for MinIO and friends.
func NewClient(ctx context.Context, opts ClientOptions) (*s3.Client, error) {
	loadOpts := []func(*config.LoadOptions) error{
		config.WithRegion(opts.Region),
	}
	if opts.AccessKey != "" && opts.SecretKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, ""),
		))
	}

	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS configuration: %w", err)
	}

	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// Store implements application.BlobStore on a bucket.
type Store struct {
	api    API
	bucket string
	prefix string
}

// New returns a store for bucket. prefix is normalised to end in "/".
func New(api API, bucket, prefix string) (*Store, error) {
	if strings.TrimSpace(bucket) == "" {
		return nil, errors.New("s3 bucket is required")
	}
	prefix = strings.Trim(prefix, "/")
	if prefix != "" {
		prefix += "/"
	}
	return &Store{api: api, bucket: bucket, prefix: prefix}, nil
}

var _ application.BlobStore = (*Store)(nil)

// List returns the objects directly under the prefix.
func (s *Store) List(ctx context.Context) ([]application.BlobObject, error) {
	paginator := s3.NewListObjectsV2Paginator(s.api, &s3.ListObjectsV2Input{
		Bucket:    aws.String(s.bucket),
		Prefix:    aws.String(s.prefix),
		Delimiter: aws.String("/"),
	})

	objects := make([]application.BlobObject, 0)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list s3://%s/%s: %w", s.bucket, s.prefix, err)
		}
		for _, obj := range page.Contents {
			name := strings.TrimPrefix(aws.ToString(obj.Key), s.prefix)
			if name == "" || strings.Contains(name, "/") {
				continue
			}
			modified := aws.ToTime(obj.LastModified)
			objects = append(objects, application.BlobObject{
				Name:       name,
				Size:       aws.ToInt64(obj.Size),
				CreatedAt:  modified,
				ModifiedAt: modified,
			})
		}
	}
	return objects, nil
}

// Create uploads data under name. The put is conditional so an existing
// object is never replaced.
func (s *Store) Create(ctx context.Context, name string, data []byte) (application.BlobObject, error) {
	if err := checkName(name); err != nil {
		return application.BlobObject{}, err
	}

	_, err := s.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(s.key(name)),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		IfNoneMatch:   aws.String("*"),
	})
	if err != nil {
		if statusCode(err) == http.StatusPreconditionFailed {
			return application.BlobObject{}, fmt.Errorf("%w: %s", application.ErrBlobExists, name)
		}
		return application.BlobObject{}, fmt.Errorf("put %s: %w", s.key(name), err)
	}

	now := time.Now().UTC()
	return application.BlobObject{Name: name, Size: int64(len(data)), CreatedAt: now, ModifiedAt: now}, nil
}

// Remove deletes the object. S3 deletes are idempotent, so existence is
// checked first to report absent names.
func (s *Store) Remove(ctx context.Context, name string) error {
	if err := checkName(name); err != nil {
		return err
	}

	key := s.key(name)
	if _, err := s.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}); err != nil {
		return classify(key, err)
	}

	if _, err := s.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}); err != nil {
		return classify(key, err)
	}
	return nil
}

func (s *Store) key(name string) string {
	return s.prefix + name
}

func checkName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, "/\\") || path.Clean(name) != name {
		return fmt.Errorf("%w: %s resolves outside the upload prefix", application.ErrForbidden, name)
	}
	return nil
}

func classify(key string, err error) error {
	var (
		notFound *types.NotFound
		noKey    *types.NoSuchKey
	)
	switch {
	case errors.As(err, &notFound), errors.As(err, &noKey), statusCode(err) == http.StatusNotFound:
		return fmt.Errorf("%w: %s", application.ErrNotFound, key)
	case statusCode(err) == http.StatusForbidden:
		return fmt.Errorf("%w: %s: %w", application.ErrForbidden, key, err)
	default:
		return fmt.Errorf("%s: %w", key, err)
	}
}

func statusCode(err error) int {
	var withStatus interface{ HTTPStatusCode() int }
	if errors.As(err, &withStatus) {
		return withStatus.HTTPStatusCode()
	}
	return 0
}
