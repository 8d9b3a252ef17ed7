package objectstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
)

var ErrNoBucket = errors.New("objectstore: bucket is required")

// Putter is the subset of the S3 API the uploader needs.
type Putter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type Options struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Prefix    string
	Logger    *zap.Logger
}

type Option func(*Options)

// WithEndpoint targets an S3-compatible server such as MinIO. Path-style
// addressing is used whenever an endpoint is set.
func WithEndpoint(endpoint string) Option {
	return func(o *Options) { o.Endpoint = endpoint }
}

func WithRegion(region string) Option {
	return func(o *Options) { o.Region = region }
}

func WithCredentials(access, secret string) Option {
	return func(o *Options) {
		o.AccessKey = access
		o.SecretKey = secret
	}
}

// WithPrefix places every uploaded key under prefix.
func WithPrefix(prefix string) Option {
	return func(o *Options) { o.Prefix = strings.Trim(prefix, "/") }
}

func WithLogger(logger *zap.Logger) Option {
	return func(o *Options) { o.Logger = logger }
}

type Uploader struct {
	client Putter
	bucket string
	prefix string
	logger *zap.Logger
}

// New builds an S3 client from the default AWS config chain, overridden by
// the given options.
func New(ctx context.Context, bucket string, opts ...Option) (*Uploader, error) {
	if bucket == "" {
		return nil, ErrNoBucket
	}
	options := &Options{Region: "us-east-1"}
	for _, opt := range opts {
		opt(options)
	}

	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(options.Region)}
	if options.AccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(options.AccessKey, options.SecretKey, "")))
	}
	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if options.Endpoint != "" {
			o.BaseEndpoint = aws.String(options.Endpoint)
			o.UsePathStyle = true
		}
	})
	return NewWithClient(client, bucket, opts...), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client Putter, bucket string, opts ...Option) *Uploader {
	if client == nil {
		panic("nil Putter provided to NewWithClient")
	}
	options := &Options{}
	for _, opt := range opts {
		opt(options)
	}
	if options.Logger == nil {
		options.Logger = zap.NewNop()
	}
	return &Uploader{
		client: client,
		bucket: bucket,
		prefix: options.Prefix,
		logger: options.Logger.Named("objectstore"),
	}
}

func (u *Uploader) key(name string) string {
	if u.prefix == "" {
		return name
	}
	return path.Join(u.prefix, name)
}

func contentType(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv":
		return "text/csv"
	case ".json":
		return "application/json"
	default:
		return "application/octet-stream"
	}
}

// UploadFile stores the file at p under the base name of p and returns its
// s3:// reference.
func (u *Uploader) UploadFile(ctx context.Context, p string) (string, error) {
	f, err := os.Open(p)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", p, err)
	}
	defer f.Close()

	name := filepath.Base(p)
	key := u.key(name)
	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String(contentType(name)),
	})
	if err != nil {
		return "", fmt.Errorf("put %s: %w", key, err)
	}

	ref := fmt.Sprintf("s3://%s/%s", u.bucket, key)
	u.logger.Debug("uploaded", zap.String("ref", ref))
	return ref, nil
}

// UploadFiles uploads every path and stops at the first failure.
func (u *Uploader) UploadFiles(ctx context.Context, paths []string) ([]string, error) {
	refs := make([]string, 0, len(paths))
	for _, p := range paths {
		ref, err := u.UploadFile(ctx, p)
		if err != nil {
			return refs, err
		}
		refs = append(refs, ref)
	}
	u.logger.Info("artifacts uploaded", zap.String("bucket", u.bucket), zap.Int("files", len(refs)))
	return refs, nil
}
