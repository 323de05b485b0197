package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/odyssey-erp/odyssey-starter/internal/shared"
)

// S3Config configures the S3 backend. Endpoint points at MinIO or another
// S3-compatible service when set.
type S3Config struct {
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
	Prefix    string
}

// S3API is the subset of the S3 client the backend uses.
type S3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3 stores files as objects in a single bucket.
type S3 struct {
	client S3API
	bucket string
	prefix string
}

// NewS3 builds an S3 client from cfg.
func NewS3(ctx context.Context, cfg S3Config) (*S3, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("platform/storage: s3 bucket is required")
	}
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("platform/storage: load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return NewS3WithClient(client, cfg.Bucket, cfg.Prefix), nil
}

// NewS3WithClient wraps an existing client.
func NewS3WithClient(client S3API, bucket, prefix string) *S3 {
	return &S3{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

// Save implements Storage.
func (s *S3) Save(ctx context.Context, r io.Reader, filename, subdir string) (string, error) {
	return s.SaveAs(ctx, r, UniqueName(filename), subdir)
}

// SaveAs implements Storage.
func (s *S3) SaveAs(ctx context.Context, r io.Reader, name, subdir string) (string, error) {
	rel, err := join(subdir, name)
	if err != nil {
		return "", err
	}
	body, ok := r.(io.ReadSeeker)
	if !ok {
		// the SDK needs a seekable body to sign plain-HTTP uploads
		raw, err := io.ReadAll(r)
		if err != nil {
			return "", fmt.Errorf("platform/storage: read upload: %w", err)
		}
		body = bytes.NewReader(raw)
	}
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(rel)),
		Body:   body,
	})
	if err != nil {
		return "", fmt.Errorf("platform/storage: put %s: %w", rel, err)
	}
	return rel, nil
}

// Open implements Storage.
func (s *S3) Open(ctx context.Context, p string) (io.ReadCloser, error) {
	rel, err := cleanPath(p, false)
	if err != nil {
		return nil, err
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(s.key(rel))})
	if isMissing(err) {
		return nil, fmt.Errorf("platform/storage: %s: %w", rel, shared.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("platform/storage: get %s: %w", rel, err)
	}
	return out.Body, nil
}

// Delete implements Storage. S3 deletes are idempotent, so existence is
// checked first to report whether anything was removed.
func (s *S3) Delete(ctx context.Context, p string) (bool, error) {
	exists, err := s.Exists(ctx, p)
	if err != nil || !exists {
		return false, err
	}
	rel, _ := cleanPath(p, false)
	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(s.key(rel))}); err != nil {
		return false, fmt.Errorf("platform/storage: delete %s: %w", rel, err)
	}
	return true, nil
}

// List implements Storage. Only objects directly under subdir are returned.
func (s *S3) List(ctx context.Context, subdir string) ([]string, error) {
	rel, err := cleanPath(subdir, true)
	if err != nil {
		return nil, err
	}
	prefix := s.key(rel)
	if prefix != "" {
		prefix += "/"
	}
	names := []string{}
	pages := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(s.bucket),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
	})
	for pages.HasMorePages() {
		page, err := pages.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("platform/storage: list %s: %w", rel, err)
		}
		for _, obj := range page.Contents {
			names = append(names, path.Base(aws.ToString(obj.Key)))
		}
	}
	return names, nil
}

// Exists implements Storage.
func (s *S3) Exists(ctx context.Context, p string) (bool, error) {
	rel, err := cleanPath(p, false)
	if err != nil {
		return false, err
	}
	_, err = s.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(s.key(rel))})
	if isMissing(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("platform/storage: head %s: %w", rel, err)
	}
	return true, nil
}

func (s *S3) key(rel string) string {
	if s.prefix == "" {
		return rel
	}
	if rel == "" {
		return s.prefix
	}
	return s.prefix + "/" + rel
}

func isMissing(err error) bool {
	var notFound *types.NotFound
	var noKey *types.NoSuchKey
	return errors.As(err, &notFound) || errors.As(err, &noKey)
}
