// Package s3store saves run reports to an S3 compatible bucket.
package s3store

import (
	"bytes"
	"context"
	"io"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/askiada/go-pipeline-services/pkg/report"
)

var ErrInvalidBucket = errors.New("bucket must be set")

// Client is the part of the minio client used by the store.
type Client interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64,
		opts minio.PutObjectOptions) (minio.UploadInfo, error)
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
}

// NewMinio connects to an S3 compatible endpoint with static credentials.
func NewMinio(endpoint, accessKey, secretKey string, useSSL bool) (*minio.Client, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "unable to create minio client for %s", endpoint)
	}

	return client, nil
}

type Option func(s *Store)

// WithPrefix sets the prefix of every object key.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = strings.Trim(prefix, "/")
	}
}

// WithRegion sets the region used when the bucket has to be created.
func WithRegion(region string) Option {
	return func(s *Store) {
		s.region = region
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Store writes every report as a JSON object.
type Store struct {
	client Client
	logger *zap.Logger
	bucket string
	prefix string
	region string
}

func New(client Client, bucket string, opts ...Option) (*Store, error) {
	if client == nil {
		return nil, errors.New("client must be set")
	}

	if bucket == "" {
		return nil, ErrInvalidBucket
	}

	s := &Store{client: client, bucket: bucket, prefix: "reports", logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// EnsureBucket creates the bucket when it does not exist.
func (s *Store) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return errors.Wrapf(err, "unable to check bucket %s", s.bucket)
	}

	if exists {
		return nil
	}

	err = s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region})
	if err != nil {
		return errors.Wrapf(err, "unable to create bucket %s", s.bucket)
	}

	s.logger.Info("bucket created", zap.String("bucket", s.bucket))

	return nil
}

// Key returns the object key of rep: prefix/pipeline/yyyy/mm/dd/runid.json.
func (s *Store) Key(rep report.Report) string {
	return path.Join(
		s.prefix,
		sanitize(rep.Pipeline),
		rep.CreatedAt.UTC().Format("2006/01/02"),
		rep.RunID.String()+".json",
	)
}

// Save writes rep and returns its key.
func (s *Store) Save(ctx context.Context, rep report.Report) (string, error) {
	body, err := rep.JSON()
	if err != nil {
		return "", err
	}

	key := s.Key(rep)

	_, err = s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(body), int64(len(body)),
		minio.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		return "", errors.Wrapf(err, "unable to store report %s", key)
	}

	s.logger.Debug("report stored", zap.String("bucket", s.bucket), zap.String("key", key))

	return key, nil
}

func sanitize(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.ReplaceAll(name, " ", "-")

	return strings.ReplaceAll(name, "/", "-")
}

var _ Client = (*minio.Client)(nil)
