// Package miniostore implements the storage contract against S3-compatible
// services through the MinIO client. The client performs its own multipart
// handling for large uploads, so this backend is a single-call passthrough
// for every operation; it shares the HTTP-status keyed error taxonomy with
// the S3 backend.
package miniostore

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	storage "github.com/medianotion/storage-service"
	serrors "github.com/medianotion/storage-service/errors"
)

const sniffLen = 512

// Store implements storage.Store against a MinIO client.
type Store struct {
	client API
	bucket string
	log    *slog.Logger
}

var _ storage.Store = (*Store)(nil)

// API is the slice of *minio.Client the backend uses, split out so tests
// can substitute a fake.
type API interface {
	GetObject(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (*minio.Object, error)
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64,
		opts minio.PutObjectOptions) (minio.UploadInfo, error)
	StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
	ListObjects(ctx context.Context, bucketName string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo
	CopyObject(ctx context.Context, dst minio.CopyDestOptions, src minio.CopySrcOptions) (minio.UploadInfo, error)
	RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error
}

// Option configures a Store beyond its MinioConfig.
type Option func(*Store)

// WithLogger sets the logger used for diagnostics.
func WithLogger(log *slog.Logger) Option {
	return func(s *Store) {
		if log != nil {
			s.log = log
		}
	}
}

// New builds a Store from cfg. Credential selection follows the active
// Credentials variant; the Custom variant is not supported by this
// transport and is rejected as a configuration error.
func New(cfg storage.MinioConfig, opts ...Option) (*Store, error) {
	if cfg.Endpoint == "" {
		return nil, serrors.Newf("new", "", serrors.KindConfiguration, "endpoint is required")
	}
	if cfg.Bucket == "" {
		return nil, serrors.Newf("new", "", serrors.KindConfiguration, "bucket is required")
	}
	if err := cfg.Credentials.Validate(); err != nil {
		return nil, err
	}

	minioOpts := &minio.Options{
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	}
	switch {
	case cfg.Credentials.IsNone():
		minioOpts.Creds = credentials.NewEnvAWS()
	default:
		if access, secret, ok := cfg.Credentials.AccessKey(); ok {
			minioOpts.Creds = credentials.NewStaticV4(access, secret, "")
			break
		}
		if access, secret, token, ok := cfg.Credentials.SessionToken(); ok {
			minioOpts.Creds = credentials.NewStaticV4(access, secret, token)
			break
		}
		return nil, serrors.Newf("new", "", serrors.KindConfiguration,
			"custom credentials are not supported by the minio transport")
	}

	client, err := minio.New(cfg.Endpoint, minioOpts)
	if err != nil {
		return nil, serrors.New("new", "", serrors.KindConfiguration, err)
	}

	s := &Store{client: client, bucket: cfg.Bucket, log: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// NewWithClient builds a Store around an existing transport, for tests.
func NewWithClient(client API, bucket string, opts ...Option) *Store {
	s := &Store{client: client, bucket: bucket, log: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns a stream over the object at key. The stat probe forces a
// missing object to surface here as NotFound rather than on first read.
func (s *Store) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	if key == "" {
		return nil, serrors.Newf("get", key, serrors.KindConfiguration, "key is required")
	}

	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, translate("get", key, err)
	}
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		return nil, translate("get", key, err)
	}
	return obj, nil
}

// Put stores size bytes from r at key. Multipart splitting for large
// objects happens inside the client.
func (s *Store) Put(ctx context.Context, key string, r io.Reader, size int64, opts ...storage.PutOption) (int64, error) {
	if key == "" {
		return 0, serrors.Newf("put", key, serrors.KindConfiguration, "key is required")
	}
	if r == nil {
		return 0, serrors.Newf("put", key, serrors.KindConfiguration, "source reader is required")
	}
	po := storage.ApplyPutOptions(opts...)

	br := bufio.NewReaderSize(r, sniffLen)
	head, _ := br.Peek(sniffLen)

	putOpts := minio.PutObjectOptions{
		ContentType: storage.ResolveContentType(po.Extension, head),
	}

	var body io.Reader = br
	if po.Gzip {
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		if _, err := io.Copy(zw, br); err != nil {
			return 0, serrors.New("put", key, serrors.KindInternal,
				fmt.Errorf("compressing content: %w", err))
		}
		if err := zw.Close(); err != nil {
			return 0, serrors.New("put", key, serrors.KindInternal,
				fmt.Errorf("compressing content: %w", err))
		}
		size = int64(buf.Len())
		body = &buf
		putOpts.ContentEncoding = "gzip"
	}

	info, err := s.client.PutObject(ctx, s.bucket, key, body, size, putOpts)
	if err != nil {
		return 0, translate("put", key, err)
	}
	return info.Size, nil
}

// Exists probes key with a stat request. Every probe failure short of
// cancellation reports false rather than an error.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return false, nil
	}

	_, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return false, err
		}
		return false, nil
	}
	return true, nil
}

// List drains the client's listing channel for prefix. The client pages
// through continuation tokens internally and yields keys in ascending
// order, which List preserves.
func (s *Store) List(ctx context.Context, prefix string) ([]storage.Object, error) {
	objects := []storage.Object{}

	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, translate("list", prefix, obj.Err)
		}
		objects = append(objects, storage.Object{
			Key:         obj.Key,
			Size:        obj.Size,
			LastUpdated: obj.LastModified.UTC(),
		})
	}
	return objects, nil
}

// Copy performs a server-side copy. An empty dstContainer targets this
// store's own bucket.
func (s *Store) Copy(ctx context.Context, srcKey, dstContainer, dstKey string) error {
	if srcKey == "" || dstKey == "" {
		return serrors.Newf("copy", srcKey, serrors.KindConfiguration,
			"source and destination keys are required")
	}
	dstBucket := dstContainer
	if dstBucket == "" {
		dstBucket = s.bucket
	}

	_, err := s.client.CopyObject(ctx,
		minio.CopyDestOptions{Bucket: dstBucket, Object: dstKey},
		minio.CopySrcOptions{Bucket: s.bucket, Object: srcKey},
	)
	if err != nil {
		return translate("copy", srcKey, err)
	}
	return nil
}

// Delete removes the object at key; removing an absent key succeeds.
func (s *Store) Delete(ctx context.Context, key string) error {
	if key == "" {
		return serrors.Newf("delete", key, serrors.KindConfiguration, "key is required")
	}

	err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
	if err != nil {
		translated := translate("delete", key, err)
		if serrors.IsNotFound(translated) {
			return nil
		}
		return translated
	}
	return nil
}

// translate classifies a MinIO client failure into the shared taxonomy,
// keyed on the HTTP status the service reported.
func translate(op, key string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return serrors.New(op, key, serrors.KindTimeout, err)
	}

	resp := minio.ToErrorResponse(err)
	if resp.StatusCode != 0 {
		kind := serrors.KindFromHTTPStatus(resp.StatusCode)
		switch resp.Code {
		case "InvalidAccessKeyId", "SignatureDoesNotMatch", "ExpiredToken":
			kind = serrors.KindAuthentication
		}
		return serrors.New(op, key, kind, err)
	}
	return serrors.New(op, key, serrors.KindInternal, err)
}
