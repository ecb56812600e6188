package miniostore

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	storage "github.com/medianotion/storage-service"
	serrors "github.com/medianotion/storage-service/errors"
)

// fakeClient implements API through per-operation function fields, the
// same shape as the S3 transport mock.
type fakeClient struct {
	GetObjectFunc    func(ctx context.Context, bucket, key string, opts minio.GetObjectOptions) (*minio.Object, error)
	PutObjectFunc    func(ctx context.Context, bucket, key string, r io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	StatObjectFunc   func(ctx context.Context, bucket, key string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
	ListObjectsFunc  func(ctx context.Context, bucket string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo
	CopyObjectFunc   func(ctx context.Context, dst minio.CopyDestOptions, src minio.CopySrcOptions) (minio.UploadInfo, error)
	RemoveObjectFunc func(ctx context.Context, bucket, key string, opts minio.RemoveObjectOptions) error
}

func (f *fakeClient) GetObject(ctx context.Context, bucket, key string, opts minio.GetObjectOptions) (*minio.Object, error) {
	if f.GetObjectFunc != nil {
		return f.GetObjectFunc(ctx, bucket, key, opts)
	}
	return nil, nil
}

func (f *fakeClient) PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	if f.PutObjectFunc != nil {
		return f.PutObjectFunc(ctx, bucket, key, r, size, opts)
	}
	return minio.UploadInfo{}, nil
}

func (f *fakeClient) StatObject(ctx context.Context, bucket, key string, opts minio.StatObjectOptions) (minio.ObjectInfo, error) {
	if f.StatObjectFunc != nil {
		return f.StatObjectFunc(ctx, bucket, key, opts)
	}
	return minio.ObjectInfo{}, nil
}

func (f *fakeClient) ListObjects(ctx context.Context, bucket string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo {
	if f.ListObjectsFunc != nil {
		return f.ListObjectsFunc(ctx, bucket, opts)
	}
	ch := make(chan minio.ObjectInfo)
	close(ch)
	return ch
}

func (f *fakeClient) CopyObject(ctx context.Context, dst minio.CopyDestOptions, src minio.CopySrcOptions) (minio.UploadInfo, error) {
	if f.CopyObjectFunc != nil {
		return f.CopyObjectFunc(ctx, dst, src)
	}
	return minio.UploadInfo{}, nil
}

func (f *fakeClient) RemoveObject(ctx context.Context, bucket, key string, opts minio.RemoveObjectOptions) error {
	if f.RemoveObjectFunc != nil {
		return f.RemoveObjectFunc(ctx, bucket, key, opts)
	}
	return nil
}

var _ API = (*fakeClient)(nil)

func minioError(code string, status int) error {
	return minio.ErrorResponse{Code: code, StatusCode: status}
}

func TestNew_ConfigurationErrors(t *testing.T) {
	tests := []struct {
		name string
		cfg  storage.MinioConfig
	}{
		{
			name: "missing endpoint",
			cfg:  storage.MinioConfig{Bucket: "b"},
		},
		{
			name: "missing bucket",
			cfg:  storage.MinioConfig{Endpoint: "minio.local:9000"},
		},
		{
			name: "invalid access key credentials",
			cfg: storage.MinioConfig{
				Endpoint:    "minio.local:9000",
				Bucket:      "b",
				Credentials: storage.AccessKeyCredentials("", ""),
			},
		},
		{
			name: "custom credentials unsupported",
			cfg: storage.MinioConfig{
				Endpoint:    "minio.local:9000",
				Bucket:      "b",
				Credentials: storage.CustomCredentials(map[string]string{"profile": "dev"}),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := New(tt.cfg)
			require.Error(t, err)
			assert.True(t, serrors.IsConfiguration(err))
			assert.Nil(t, store)
		})
	}
}

func TestStore_Put(t *testing.T) {
	content := "hello minio"

	client := &fakeClient{
		PutObjectFunc: func(ctx context.Context, bucket, key string, r io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
			assert.Equal(t, "test-bucket", bucket)
			assert.Equal(t, "notes/hello.txt", key)
			assert.Equal(t, int64(len(content)), size)
			assert.Contains(t, opts.ContentType, "text/plain")
			assert.Empty(t, opts.ContentEncoding)

			body, err := io.ReadAll(r)
			require.NoError(t, err)
			assert.Equal(t, content, string(body))
			return minio.UploadInfo{Size: int64(len(body))}, nil
		},
	}
	store := NewWithClient(client, "test-bucket")

	n, err := store.Put(context.Background(), "notes/hello.txt", strings.NewReader(content),
		int64(len(content)), storage.WithExtension("txt"))
	require.NoError(t, err)
	assert.Equal(t, int64(len(content)), n)
}

func TestStore_Put_Gzip(t *testing.T) {
	content := strings.Repeat("compress me ", 100)

	client := &fakeClient{
		PutObjectFunc: func(ctx context.Context, bucket, key string, r io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
			assert.Equal(t, "gzip", opts.ContentEncoding)

			compressed, err := io.ReadAll(r)
			require.NoError(t, err)
			assert.Equal(t, int64(len(compressed)), size)

			zr, err := gzip.NewReader(bytes.NewReader(compressed))
			require.NoError(t, err)
			original, err := io.ReadAll(zr)
			require.NoError(t, err)
			assert.Equal(t, content, string(original))
			return minio.UploadInfo{Size: size}, nil
		},
	}
	store := NewWithClient(client, "test-bucket")

	n, err := store.Put(context.Background(), "logs/app.log", strings.NewReader(content),
		int64(len(content)), storage.WithGzip())
	require.NoError(t, err)
	assert.Less(t, n, int64(len(content)))
}

func TestStore_Put_Validation(t *testing.T) {
	store := NewWithClient(&fakeClient{}, "test-bucket")

	_, err := store.Put(context.Background(), "", strings.NewReader("x"), 1)
	require.Error(t, err)
	assert.True(t, serrors.IsConfiguration(err))

	_, err = store.Put(context.Background(), "k", nil, 1)
	require.Error(t, err)
	assert.True(t, serrors.IsConfiguration(err))
}

func TestStore_Get_Missing(t *testing.T) {
	client := &fakeClient{
		GetObjectFunc: func(context.Context, string, string, minio.GetObjectOptions) (*minio.Object, error) {
			return nil, minioError("NoSuchKey", http.StatusNotFound)
		},
	}
	store := NewWithClient(client, "test-bucket")

	_, err := store.Get(context.Background(), "absent")
	require.Error(t, err)
	assert.True(t, serrors.IsNotFound(err))
}

func TestStore_Exists(t *testing.T) {
	tests := []struct {
		name    string
		statErr error
		want    bool
	}{
		{name: "object exists", statErr: nil, want: true},
		{name: "missing is false", statErr: minioError("NoSuchKey", http.StatusNotFound), want: false},
		{name: "denied is false", statErr: minioError("AccessDenied", http.StatusForbidden), want: false},
		{name: "transport failure is false", statErr: minioError("SlowDown", http.StatusServiceUnavailable), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &fakeClient{
				StatObjectFunc: func(context.Context, string, string, minio.StatObjectOptions) (minio.ObjectInfo, error) {
					return minio.ObjectInfo{}, tt.statErr
				},
			}
			store := NewWithClient(client, "test-bucket")

			ok, err := store.Exists(context.Background(), "probe/key")
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}

	t.Run("cancellation still surfaces", func(t *testing.T) {
		client := &fakeClient{
			StatObjectFunc: func(context.Context, string, string, minio.StatObjectOptions) (minio.ObjectInfo, error) {
				return minio.ObjectInfo{}, context.Canceled
			},
		}
		store := NewWithClient(client, "test-bucket")

		_, err := store.Exists(context.Background(), "probe/key")
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestStore_List(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)

	t.Run("drains the listing in order", func(t *testing.T) {
		client := &fakeClient{
			ListObjectsFunc: func(ctx context.Context, bucket string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo {
				assert.Equal(t, "reports/", opts.Prefix)
				assert.True(t, opts.Recursive)

				ch := make(chan minio.ObjectInfo, 2)
				ch <- minio.ObjectInfo{Key: "reports/a.csv", Size: 10, LastModified: now}
				ch <- minio.ObjectInfo{Key: "reports/b.csv", Size: 20, LastModified: now}
				close(ch)
				return ch
			},
		}
		store := NewWithClient(client, "test-bucket")

		objects, err := store.List(context.Background(), "reports/")
		require.NoError(t, err)
		require.Len(t, objects, 2)
		assert.Equal(t, "reports/a.csv", objects[0].Key)
		assert.Equal(t, int64(20), objects[1].Size)
		assert.Equal(t, now, objects[0].LastUpdated)
	})

	t.Run("entry error fails the listing", func(t *testing.T) {
		client := &fakeClient{
			ListObjectsFunc: func(ctx context.Context, bucket string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo {
				ch := make(chan minio.ObjectInfo, 1)
				ch <- minio.ObjectInfo{Err: minioError("AccessDenied", http.StatusForbidden)}
				close(ch)
				return ch
			},
		}
		store := NewWithClient(client, "test-bucket")

		_, err := store.List(context.Background(), "reports/")
		require.Error(t, err)
		assert.True(t, serrors.IsAccessDenied(err))
	})
}

func TestStore_Copy(t *testing.T) {
	t.Run("within own bucket", func(t *testing.T) {
		client := &fakeClient{
			CopyObjectFunc: func(ctx context.Context, dst minio.CopyDestOptions, src minio.CopySrcOptions) (minio.UploadInfo, error) {
				assert.Equal(t, "test-bucket", src.Bucket)
				assert.Equal(t, "reports/a.csv", src.Object)
				assert.Equal(t, "test-bucket", dst.Bucket)
				assert.Equal(t, "archive/a.csv", dst.Object)
				return minio.UploadInfo{}, nil
			},
		}
		store := NewWithClient(client, "test-bucket")
		require.NoError(t, store.Copy(context.Background(), "reports/a.csv", "", "archive/a.csv"))
	})

	t.Run("into another bucket", func(t *testing.T) {
		client := &fakeClient{
			CopyObjectFunc: func(ctx context.Context, dst minio.CopyDestOptions, src minio.CopySrcOptions) (minio.UploadInfo, error) {
				assert.Equal(t, "backup-bucket", dst.Bucket)
				return minio.UploadInfo{}, nil
			},
		}
		store := NewWithClient(client, "test-bucket")
		require.NoError(t, store.Copy(context.Background(), "reports/a.csv", "backup-bucket", "a.csv"))
	})

	t.Run("missing source is not found", func(t *testing.T) {
		client := &fakeClient{
			CopyObjectFunc: func(context.Context, minio.CopyDestOptions, minio.CopySrcOptions) (minio.UploadInfo, error) {
				return minio.UploadInfo{}, minioError("NoSuchKey", http.StatusNotFound)
			},
		}
		store := NewWithClient(client, "test-bucket")

		err := store.Copy(context.Background(), "gone.csv", "", "dst.csv")
		require.Error(t, err)
		assert.True(t, serrors.IsNotFound(err))
	})
}

func TestStore_Delete(t *testing.T) {
	t.Run("absent object succeeds", func(t *testing.T) {
		client := &fakeClient{
			RemoveObjectFunc: func(context.Context, string, string, minio.RemoveObjectOptions) error {
				return minioError("NoSuchKey", http.StatusNotFound)
			},
		}
		store := NewWithClient(client, "test-bucket")
		require.NoError(t, store.Delete(context.Background(), "gone"))
	})

	t.Run("denied delete propagates", func(t *testing.T) {
		client := &fakeClient{
			RemoveObjectFunc: func(context.Context, string, string, minio.RemoveObjectOptions) error {
				return minioError("AccessDenied", http.StatusForbidden)
			},
		}
		store := NewWithClient(client, "test-bucket")

		err := store.Delete(context.Background(), "locked")
		require.Error(t, err)
		assert.True(t, serrors.IsAccessDenied(err))
	})
}

func TestTranslate(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want serrors.Kind
	}{
		{name: "404", err: minioError("NoSuchKey", http.StatusNotFound), want: serrors.KindNotFound},
		{name: "403", err: minioError("AccessDenied", http.StatusForbidden), want: serrors.KindAccessDenied},
		{name: "403 with rejected key is authentication", err: minioError("InvalidAccessKeyId", http.StatusForbidden), want: serrors.KindAuthentication},
		{name: "403 with bad signature is authentication", err: minioError("SignatureDoesNotMatch", http.StatusForbidden), want: serrors.KindAuthentication},
		{name: "503", err: minioError("SlowDown", http.StatusServiceUnavailable), want: serrors.KindUnavailable},
		{name: "deadline", err: context.DeadlineExceeded, want: serrors.KindTimeout},
		{name: "plain error", err: errors.New("boom"), want: serrors.KindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := translate("op", "key", tt.err)
			assert.Equal(t, tt.want, serrors.KindOf(err))
		})
	}
}

func TestTranslate_Cancellation(t *testing.T) {
	err := translate("op", "key", context.Canceled)
	require.ErrorIs(t, err, context.Canceled)

	var se *serrors.Error
	assert.False(t, errors.As(err, &se))
}
