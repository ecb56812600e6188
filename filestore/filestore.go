// Package filestore implements the storage contract against a local
// filesystem or mounted network share. Writes and copies can be staged in
// a temp file and exposed at the final path by an atomic rename, so the
// object visible at a key is always a complete one.
//
// The filesystem is abstracted behind go-billy, which lets tests run on an
// in-memory filesystem and keeps the backend usable against any mount the
// host exposes.
package filestore

import (
	"compress/gzip"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"

	storage "github.com/medianotion/storage-service"
	serrors "github.com/medianotion/storage-service/errors"
	"github.com/medianotion/storage-service/transfer"
)

// Store implements storage.Store against a filesystem transport.
type Store struct {
	fs   billy.Filesystem
	base string
	cfg  storage.FileConfig
	log  *slog.Logger
}

var _ storage.Store = (*Store)(nil)

// Option configures a Store beyond its FileConfig.
type Option func(*Store)

// WithLogger sets the logger used for swallowed cleanup failures.
func WithLogger(log *slog.Logger) Option {
	return func(s *Store) {
		if log != nil {
			s.log = log
		}
	}
}

// WithFilesystem substitutes the filesystem implementation. Tests use this
// with an in-memory filesystem.
func WithFilesystem(fs billy.Filesystem) Option {
	return func(s *Store) {
		if fs != nil {
			s.fs = fs
		}
	}
}

// New validates cfg and returns a Store. The base path must exist; when it
// does not, it is auto-created if cfg.CreateDirs is set, otherwise
// construction fails with a Configuration error. The check runs here,
// eagerly, not on first operation.
func New(cfg storage.FileConfig, opts ...Option) (*Store, error) {
	if cfg.BasePath == "" {
		return nil, serrors.Newf("new", "", serrors.KindConfiguration, "base path is required")
	}
	if cfg.TempSuffix == "" {
		cfg.TempSuffix = ".tmp"
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = transfer.DefaultBufferSize
	}

	s := &Store{
		fs:   osfs.New("/"),
		base: filepath.Clean(cfg.BasePath),
		cfg:  cfg,
		log:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	info, err := s.fs.Stat(s.base)
	switch {
	case err == nil:
		if !info.IsDir() {
			return nil, serrors.Newf("new", "", serrors.KindConfiguration,
				"base path %q is not a directory", s.base)
		}
	case errors.Is(err, os.ErrNotExist):
		if !cfg.CreateDirs {
			return nil, serrors.Newf("new", "", serrors.KindConfiguration,
				"base path %q does not exist and directory auto-create is disabled", s.base)
		}
		if err := s.fs.MkdirAll(s.base, 0o755); err != nil {
			return nil, serrors.New("new", "", serrors.KindConfiguration, err)
		}
	default:
		return nil, serrors.New("new", "", serrors.KindConfiguration, err)
	}

	return s, nil
}

// path maps a hierarchical key onto a host path under the base. Forward
// and back slashes are both treated as hierarchy markers and leading
// separators are stripped, so path(key(k)) == k for any spelling of k.
func (s *Store) path(key string) string {
	key = strings.ReplaceAll(key, "\\", "/")
	key = strings.TrimLeft(key, "/")
	return filepath.Join(s.base, filepath.FromSlash(key))
}

// key is the reverse mapping, always re-emitting '/'-separated keys.
func (s *Store) key(path string) string {
	rel := strings.TrimPrefix(path, s.base)
	rel = strings.TrimLeft(rel, string(filepath.Separator))
	rel = strings.TrimLeft(rel, "/")
	return filepath.ToSlash(rel)
}

// Get opens the object at key for shared read access; the backend holds no
// exclusive lock that would block concurrent writers. The caller owns the
// returned stream.
func (s *Store) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if key == "" {
		return nil, serrors.Newf("get", key, serrors.KindConfiguration, "key is required")
	}

	f, err := s.fs.Open(s.path(key))
	if err != nil {
		return nil, translate("get", key, err)
	}
	return f, nil
}

// Put stores the source stream at key, transactionally when configured.
// The returned size is the byte count on disk, which for gzip writes is
// the compressed count.
func (s *Store) Put(ctx context.Context, key string, r io.Reader, size int64, opts ...storage.PutOption) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if key == "" {
		return 0, serrors.Newf("put", key, serrors.KindConfiguration, "key is required")
	}
	if r == nil {
		return 0, serrors.Newf("put", key, serrors.KindConfiguration, "source reader is required")
	}
	po := storage.ApplyPutOptions(opts...)

	dst := s.path(key)
	if err := s.fs.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return 0, translate("put", key, err)
	}

	if s.cfg.Transactional {
		return s.writeTransactional(ctx, "put", key, dst, func(w io.Writer) (int64, error) {
			return s.copyStream(ctx, w, r, size, po.Gzip)
		})
	}
	return s.writeDirect(ctx, "put", key, dst, func(w io.Writer) (int64, error) {
		return s.copyStream(ctx, w, r, size, po.Gzip)
	})
}

// writeTransactional stages content in a temp sibling, then checks the
// overwrite policy and renames into place. The object visible at the
// destination is always either the prior complete content or the new
// complete content. On any failure the temp file is removed best-effort
// before the error propagates.
func (s *Store) writeTransactional(ctx context.Context, op, key, dst string, write func(io.Writer) (int64, error)) (int64, error) {
	// Deterministic temp name: two concurrent transactional writes to the
	// same key with the same suffix collide here. Known gap, kept for
	// compatibility with the destination-derived naming scheme.
	tmp := dst + s.cfg.TempSuffix

	n, err := s.writeFile(tmp, write)
	if err != nil {
		s.discard(tmp)
		if errors.Is(err, context.Canceled) {
			return 0, err
		}
		return 0, translate(op, key, err)
	}
	if err := ctx.Err(); err != nil {
		s.discard(tmp)
		return 0, err
	}

	if !s.cfg.AllowOverwrite {
		if _, err := s.fs.Stat(dst); err == nil {
			s.discard(tmp)
			return 0, serrors.Newf(op, key, serrors.KindInternal,
				"destination exists and overwrite is disabled")
		}
	}

	if err := s.fs.Rename(tmp, dst); err != nil {
		s.discard(tmp)
		return 0, translate(op, key, err)
	}
	return n, nil
}

// writeDirect writes straight to the destination path. No atomicity
// guarantee; a configured trade-off for throughput.
func (s *Store) writeDirect(ctx context.Context, op, key, dst string, write func(io.Writer) (int64, error)) (int64, error) {
	if !s.cfg.AllowOverwrite {
		if _, err := s.fs.Stat(dst); err == nil {
			return 0, serrors.Newf(op, key, serrors.KindInternal,
				"destination exists and overwrite is disabled")
		}
	}

	n, err := s.writeFile(dst, write)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return 0, err
		}
		return 0, translate(op, key, err)
	}
	return n, nil
}

// writeFile creates path, runs write against it, and closes it, returning
// the byte count reported by write.
func (s *Store) writeFile(path string, write func(io.Writer) (int64, error)) (int64, error) {
	f, err := s.fs.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, err
	}

	n, err := write(f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return n, err
}

// copyStream copies size bytes from r into w through a bounded buffer,
// optionally gzip-compressing. It returns the byte count written to w.
func (s *Store) copyStream(ctx context.Context, w io.Writer, r io.Reader, size int64, gzipped bool) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	if !gzipped {
		return transfer.ReadChunk(w, r, size, s.cfg.BufferSize)
	}

	cw := &countingWriter{w: w}
	zw := gzip.NewWriter(cw)
	if _, err := transfer.ReadChunk(zw, r, size, s.cfg.BufferSize); err != nil {
		zw.Close()
		return cw.n, err
	}
	if err := zw.Close(); err != nil {
		return cw.n, err
	}
	return cw.n, nil
}

// discard removes a temp file best-effort. Failures are logged and
// swallowed so they never mask the error that triggered cleanup.
func (s *Store) discard(path string) {
	if err := s.fs.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.log.Warn("temp file cleanup failed", "path", path, "error", err)
	}
}

// Exists probes key. Every probe failure, including permission problems,
// reports false rather than an error, for parity with the object-storage
// backend's semantics.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if key == "" {
		return false, nil
	}

	info, err := s.fs.Stat(s.path(key))
	if err != nil {
		return false, nil
	}
	return !info.IsDir(), nil
}

// List walks the directory derived from prefix and returns one Object per
// file whose key starts with the prefix, in ascending key order. A missing
// directory yields an empty result.
func (s *Store) List(ctx context.Context, prefix string) ([]storage.Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	norm := strings.TrimLeft(strings.ReplaceAll(prefix, "\\", "/"), "/")
	scanRoot := s.base
	if dir := prefixDir(norm); dir != "" {
		scanRoot = filepath.Join(s.base, filepath.FromSlash(dir))
	}

	if _, err := s.fs.Stat(scanRoot); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []storage.Object{}, nil
		}
		return nil, translate("list", prefix, err)
	}

	objects := []storage.Object{}
	err := util.Walk(s.fs, scanRoot, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil
			}
			return err
		}
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		if info.IsDir() {
			return nil
		}
		key := s.key(path)
		if !strings.HasPrefix(key, norm) {
			return nil
		}
		objects = append(objects, storage.Object{
			Key:         key,
			Size:        info.Size(),
			LastUpdated: info.ModTime().UTC(),
		})
		return nil
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, translate("list", prefix, err)
	}

	sort.Slice(objects, func(i, j int) bool { return objects[i].Key < objects[j].Key })
	return objects, nil
}

// Copy duplicates the object at srcKey to dstKey, under dstContainer when
// one is given (a directory under the base path). It honors the same
// transactional protocol, overwrite policy, and cleanup guarantee as Put.
func (s *Store) Copy(ctx context.Context, srcKey, dstContainer, dstKey string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if srcKey == "" || dstKey == "" {
		return serrors.Newf("copy", srcKey, serrors.KindConfiguration,
			"source and destination keys are required")
	}

	src, err := s.fs.Open(s.path(srcKey))
	if err != nil {
		return translate("copy", srcKey, err)
	}
	defer src.Close()

	dst := s.path(dstKey)
	if dstContainer != "" {
		dst = s.path(dstContainer + "/" + dstKey)
	}
	if err := s.fs.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return translate("copy", dstKey, err)
	}

	write := func(w io.Writer) (int64, error) {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		n, err := io.CopyBuffer(w, src, make([]byte, s.cfg.BufferSize))
		return n, err
	}

	if s.cfg.Transactional {
		_, err = s.writeTransactional(ctx, "copy", dstKey, dst, write)
	} else {
		_, err = s.writeDirect(ctx, "copy", dstKey, dst, write)
	}
	return err
}

// Delete removes the object at key. Absence is success.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if key == "" {
		return serrors.Newf("delete", key, serrors.KindConfiguration, "key is required")
	}

	if err := s.fs.Remove(s.path(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return translate("delete", key, err)
	}
	return nil
}

// translate maps an OS-level I/O failure onto the shared taxonomy: missing
// paths are NotFound, permission problems are AccessDenied, everything
// else is Internal. The native error stays attached as the cause.
func translate(op, key string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	kind := serrors.KindInternal
	switch {
	case errors.Is(err, os.ErrNotExist):
		kind = serrors.KindNotFound
	case errors.Is(err, os.ErrPermission):
		kind = serrors.KindAccessDenied
	case errors.Is(err, context.DeadlineExceeded):
		kind = serrors.KindTimeout
	}
	return serrors.New(op, key, kind, err)
}

// prefixDir returns the directory portion of a '/'-separated prefix,
// empty when the prefix has none. A trailing slash means the whole prefix
// names a directory.
func prefixDir(prefix string) string {
	if prefix == "" {
		return ""
	}
	if strings.HasSuffix(prefix, "/") {
		return strings.TrimSuffix(prefix, "/")
	}
	idx := strings.LastIndex(prefix, "/")
	if idx < 0 {
		return ""
	}
	return prefix[:idx]
}

// countingWriter tracks bytes written through it, so gzip writes can
// report the on-disk size.
type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
