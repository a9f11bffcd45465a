// Package s3store implements the ObjectStore capability against a real
// S3-compatible bucket: config.LoadDefaultConfig for credentials,
// BaseEndpoint/UsePathStyle overrides for non-AWS endpoints, and a pooled
// *s3.Client underneath.
package s3store

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	awsconfig "github.com/scttfrdmn/cargoship/pkg/aws/config"
	cargoships3 "github.com/scttfrdmn/cargoship/pkg/aws/s3"

	"github.com/driftlock/driftlock/internal/objectstore"
	"github.com/driftlock/driftlock/pkg/errors"
)

// Store is an ObjectStore backed by a real S3 bucket.
type Store struct {
	client *s3.Client
	bucket string
	pool   *connPool

	transporter *cargoships3.Transporter
	config      *Config
	logger      *slog.Logger
}

// New builds a Store and confirms the bucket is reachable via HeadBucket.
func New(ctx context.Context, cfg *Config, logger *slog.Logger) (*Store, error) {
	if cfg == nil || cfg.Bucket == "" {
		return nil, errors.New(errors.CodeConfigInvalid, "s3store: bucket is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "s3store", "bucket", cfg.Bucket)

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithRetryMaxAttempts(cfg.MaxRetries),
	)
	if err != nil {
		return nil, errors.New(errors.CodeObjectStorePermanent, "failed to load AWS config").WithCause(err)
	}

	newClient := func() *s3.Client {
		return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			if cfg.Endpoint != "" {
				o.BaseEndpoint = aws.String(cfg.Endpoint)
			}
			if cfg.ForcePathStyle {
				o.UsePathStyle = true
			}
		})
	}

	pool, err := newConnPool(cfg.PoolSize, func() (*s3.Client, error) {
		return newClient(), nil
	})
	if err != nil {
		return nil, errors.New(errors.CodeObjectStorePermanent, "failed to create connection pool").WithCause(err)
	}

	client := newClient()

	var transporter *cargoships3.Transporter
	if cfg.EnableCargoShipOptimization {
		cargoCfg := awsconfig.S3Config{
			Bucket:             cfg.Bucket,
			StorageClass:       awsconfig.StorageClassStandard,
			MultipartThreshold: cfg.MultipartThreshold,
			MultipartChunkSize: cfg.MultipartChunkSize,
			Concurrency:        cfg.MultipartConcurrency,
		}
		transporter = cargoships3.NewTransporter(client, cargoCfg)
		logger.Info("CargoShip S3 optimization enabled",
			"chunk_size", cfg.MultipartChunkSize, "concurrency", cfg.MultipartConcurrency)
	}

	store := &Store{
		client:      client,
		bucket:      cfg.Bucket,
		pool:        pool,
		transporter: transporter,
		config:      cfg,
		logger:      logger,
	}

	if err := store.HeadBucket(ctx); err != nil {
		return nil, err
	}

	return store, nil
}

// HeadBucket confirms the bucket exists and is reachable with the current
// credentials. It is the one check internal/health registers at startup.
func (s *Store) HeadBucket(ctx context.Context) error {
	client, err := s.pool.get()
	if err != nil {
		return s.wrapTransient("head_bucket", err)
	}
	defer s.pool.put(client)

	_, err = client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	if err != nil {
		return s.translateError(err, "head_bucket", s.bucket)
	}
	return nil
}

func (s *Store) Put(ctx context.Context, key string, r io.Reader, size int64) (objectstore.Info, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return objectstore.Info{}, errors.New(errors.CodeLocalIO, "failed to read upload body").WithOperation("put").WithCause(err)
	}

	if s.transporter != nil {
		result, err := s.transporter.Upload(ctx, cargoships3.Archive{
			Key:          key,
			Reader:       bytes.NewReader(data),
			Size:         int64(len(data)),
			StorageClass: awsconfig.StorageClassStandard,
		})
		if err == nil {
			s.logger.Debug("cargoship upload completed", "key", key, "size", len(data), "duration", result.Duration)
			return objectstore.Info{Key: key, Size: int64(len(data)), LastModified: time.Now()}, nil
		}
		s.logger.Warn("cargoship upload failed, falling back to standard put", "key", key, "error", err)
	}

	client, err := s.pool.get()
	if err != nil {
		return objectstore.Info{}, s.wrapTransient("put", err)
	}
	defer s.pool.put(client)

	out, err := client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(detectContentType(key)),
	})
	if err != nil {
		return objectstore.Info{}, s.translateError(err, "put", key)
	}

	return objectstore.Info{
		Key:          key,
		Size:         int64(len(data)),
		ETag:         aws.ToString(out.ETag),
		LastModified: time.Now(),
	}, nil
}

func (s *Store) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	client, err := s.pool.get()
	if err != nil {
		return nil, s.wrapTransient("get", err)
	}
	defer s.pool.put(client)

	out, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, s.translateError(err, "get", key)
	}
	return out.Body, nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	client, err := s.pool.get()
	if err != nil {
		return s.wrapTransient("delete", err)
	}
	defer s.pool.put(client)

	_, err = client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return s.translateError(err, "delete", key)
	}
	return nil
}

func (s *Store) Exists(ctx context.Context, key string) (bool, objectstore.Info, error) {
	client, err := s.pool.get()
	if err != nil {
		return false, objectstore.Info{}, s.wrapTransient("exists", err)
	}
	defer s.pool.put(client)

	out, err := client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isErrorType[*s3types.NotFound](err) || isErrorType[*s3types.NoSuchKey](err) {
			return false, objectstore.Info{}, nil
		}
		return false, objectstore.Info{}, s.translateError(err, "exists", key)
	}

	return true, objectstore.Info{
		Key:          key,
		Size:         aws.ToInt64(out.ContentLength),
		ETag:         aws.ToString(out.ETag),
		LastModified: aws.ToTime(out.LastModified),
	}, nil
}

func (s *Store) List(ctx context.Context, prefix string) ([]objectstore.Info, error) {
	client, err := s.pool.get()
	if err != nil {
		return nil, s.wrapTransient("list", err)
	}
	defer s.pool.put(client)

	var infos []objectstore.Info
	var continuationToken *string

	for {
		out, err := client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(s.bucket),
			Prefix:            aws.String(prefix),
			ContinuationToken: continuationToken,
		})
		if err != nil {
			return nil, s.translateError(err, "list", prefix)
		}

		for _, obj := range out.Contents {
			infos = append(infos, objectstore.Info{
				Key:          aws.ToString(obj.Key),
				Size:         aws.ToInt64(obj.Size),
				ETag:         aws.ToString(obj.ETag),
				LastModified: aws.ToTime(obj.LastModified),
			})
		}

		if !aws.ToBool(out.IsTruncated) {
			break
		}
		continuationToken = out.NextContinuationToken
	}

	return infos, nil
}

// Move copies srcKey to dstKey then deletes srcKey; S3 has no native
// rename. If the copy fails, srcKey is left in place and the error is
// returned. If the copy succeeds but the delete fails, a warning is logged,
// the residual srcKey stays behind, and Move returns nil.
func (s *Store) Move(ctx context.Context, srcKey, dstKey string) error {
	client, err := s.pool.get()
	if err != nil {
		return s.wrapTransient("move", err)
	}
	defer s.pool.put(client)

	_, err = client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(s.bucket),
		Key:        aws.String(dstKey),
		CopySource: aws.String(s.bucket + "/" + srcKey),
	})
	if err != nil {
		return s.translateError(err, "move", srcKey)
	}

	_, err = client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(srcKey),
	})
	if err != nil {
		s.logger.Warn("move: copy succeeded but delete of source failed, leaving residual source object",
			"src", srcKey, "dst", dstKey, "error", err)
		return nil
	}

	return nil
}

// Close releases pooled clients. CargoShip's transporter needs no explicit
// cleanup.
func (s *Store) Close() error {
	return s.pool.Close()
}

func (s *Store) wrapTransient(operation string, err error) error {
	return errors.New(errors.CodeObjectStoreTransient, "failed to obtain pooled s3 client").
		WithComponent("objectstore").WithOperation(operation).WithCause(err)
}

func (s *Store) translateError(err error, operation, key string) error {
	switch {
	case isErrorType[*s3types.NoSuchKey](err):
		return errors.New(errors.CodeObjectStorePermanent, fmt.Sprintf("object not found: %s", key)).
			WithComponent("objectstore").WithOperation(operation).WithCause(err)
	case isErrorType[*s3types.NoSuchBucket](err):
		return errors.New(errors.CodeObjectStorePermanent, fmt.Sprintf("bucket not found: %s", s.bucket)).
			WithComponent("objectstore").WithOperation(operation).WithCause(err)
	default:
		return errors.New(errors.CodeObjectStoreTransient, fmt.Sprintf("%s failed for %s", operation, key)).
			WithComponent("objectstore").WithOperation(operation).WithCause(err).WithRetryable(true)
	}
}

func detectContentType(key string) string {
	switch {
	case strings.HasSuffix(key, ".json"):
		return "application/json"
	case strings.HasSuffix(key, ".txt"):
		return "text/plain"
	default:
		return "application/octet-stream"
	}
}
