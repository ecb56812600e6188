package s3

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	storage "github.com/medianotion/storage-service"
	serrors "github.com/medianotion/storage-service/errors"
	"github.com/medianotion/storage-service/transfer"
)

// sniffLen is how many leading bytes are examined for content-type
// detection when no extension hint resolves.
const sniffLen = 512

// uploadState is the transient record of one in-flight multipart upload.
// It is owned by the single Put call that created it and is discarded on
// completion or abort.
type uploadState struct {
	id     string
	parts  []types.CompletedPart
	offset int64
}

// Get fetches the object at key, fully buffered. Content is already
// chunked on the provider side, so reads need no stream splitting here.
func (s *Store) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	if key == "" {
		return nil, serrors.Newf("get", key, serrors.KindConfiguration, "key is required")
	}

	out, err := s.api.GetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, translate("get", key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, translate("get", key, err)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// Put stores size bytes from r at key. Objects at or below the minimum
// part size go up in one shot; larger objects go through the multipart
// orchestrator with a bounded per-part buffer.
func (s *Store) Put(ctx context.Context, key string, r io.Reader, size int64, opts ...storage.PutOption) (int64, error) {
	if key == "" {
		return 0, serrors.Newf("put", key, serrors.KindConfiguration, "key is required")
	}
	if r == nil {
		return 0, serrors.Newf("put", key, serrors.KindConfiguration, "source reader is required")
	}
	if size < 0 {
		return 0, serrors.Newf("put", key, serrors.KindConfiguration, "size must be non-negative, got %d", size)
	}
	po := storage.ApplyPutOptions(opts...)

	br := bufio.NewReaderSize(r, sniffLen)
	head, _ := br.Peek(sniffLen)
	contentType := storage.ResolveContentType(po.Extension, head)

	var body io.Reader = br
	var encoding string
	if po.Gzip {
		// The part math needs the final length, so the compressed stream
		// is staged in memory before upload.
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
		encoding = "gzip"
	}

	if size <= s.calc.Policy().MinPartSize {
		return s.putSingle(ctx, key, body, size, contentType, encoding)
	}
	return s.putMultipart(ctx, key, body, size, contentType, encoding)
}

// putSingle performs a single-shot PutObject.
func (s *Store) putSingle(ctx context.Context, key string, r io.Reader, size int64, contentType, encoding string) (int64, error) {
	var buf bytes.Buffer
	buf.Grow(int(size))
	n, err := transfer.ReadChunk(&buf, r, size, s.bufferSize)
	if err != nil {
		return 0, serrors.New("put", key, serrors.KindInternal,
			fmt.Errorf("reading source: %w", err))
	}

	input := &awss3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(buf.Bytes()),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(n),
	}
	if encoding != "" {
		input.ContentEncoding = aws.String(encoding)
	}

	if _, err := s.api.PutObject(ctx, input); err != nil {
		return 0, translate("put", key, err)
	}
	return n, nil
}

// putMultipart runs the multipart state machine: initiate, upload parts
// sequentially from a bounded buffer, complete. Whatever stage fails after
// initiation, exactly one abort attempt is made before the original error
// propagates.
func (s *Store) putMultipart(ctx context.Context, key string, r io.Reader, size int64, contentType, encoding string) (int64, error) {
	policy := s.calc.Policy()
	partSize := s.calc.PartSize(size)
	totalParts := (size + partSize - 1) / partSize
	if totalParts > transfer.MaxPartCount {
		return 0, serrors.Newf("put", key, serrors.KindConfiguration,
			"object of %d bytes needs %d parts of %d bytes, exceeding the provider limit of %d",
			size, totalParts, partSize, transfer.MaxPartCount)
	}

	createInput := &awss3.CreateMultipartUploadInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}
	if encoding != "" {
		createInput.ContentEncoding = aws.String(encoding)
	}
	createOut, err := s.api.CreateMultipartUpload(ctx, createInput)
	if err != nil {
		return 0, translate("put", key, err)
	}

	st := &uploadState{
		id:    aws.ToString(createOut.UploadId),
		parts: make([]types.CompletedPart, 0, totalParts),
	}

	var buf bytes.Buffer
	buf.Grow(int(partSize))
	for partNumber := int32(1); st.offset < size; partNumber++ {
		want := partSize
		if remaining := size - st.offset; remaining < want {
			want = remaining
		}
		// Only the last part may fall below the provider's size floor.
		if st.offset+want < size && want < policy.MinPartSize {
			s.abortUpload(ctx, key, st.id)
			return 0, serrors.Newf("put", key, serrors.KindInternal,
				"part %d of %d bytes is below the %d byte floor", partNumber, want, policy.MinPartSize)
		}

		buf.Reset()
		n, err := transfer.ReadChunk(&buf, r, want, s.bufferSize)
		if err != nil {
			s.abortUpload(ctx, key, st.id)
			return 0, serrors.New("put", key, serrors.KindInternal,
				fmt.Errorf("reading part %d (%d bytes): %w", partNumber, want, err))
		}
		if n == 0 {
			// Source ended before the declared size; stop uploading.
			break
		}

		partOut, err := s.api.UploadPart(ctx, &awss3.UploadPartInput{
			Bucket:        aws.String(s.bucket),
			Key:           aws.String(key),
			UploadId:      aws.String(st.id),
			PartNumber:    aws.Int32(partNumber),
			Body:          bytes.NewReader(buf.Bytes()),
			ContentLength: aws.Int64(n),
		})
		if err != nil {
			s.abortUpload(ctx, key, st.id)
			if errors.Is(err, context.Canceled) {
				return 0, err
			}
			return 0, serrors.New("put", key, kindFor(err),
				fmt.Errorf("uploading part %d (%d bytes): %w", partNumber, n, err))
		}

		st.parts = append(st.parts, types.CompletedPart{
			ETag:       partOut.ETag,
			PartNumber: aws.Int32(partNumber),
		})
		st.offset += n
	}

	_, err = s.api.CompleteMultipartUpload(ctx, &awss3.CompleteMultipartUploadInput{
		Bucket:   aws.String(s.bucket),
		Key:      aws.String(key),
		UploadId: aws.String(st.id),
		MultipartUpload: &types.CompletedMultipartUpload{
			Parts: st.parts,
		},
	})
	if err != nil {
		s.abortUpload(ctx, key, st.id)
		return 0, translate("put", key, err)
	}
	return st.offset, nil
}

// abortUpload makes the single best-effort abort attempt owed after a
// failed upload. Failures here are logged and swallowed so they never mask
// the error that triggered the abort. Cleanup still runs when the original
// context was canceled.
func (s *Store) abortUpload(ctx context.Context, key, uploadID string) {
	_, err := s.api.AbortMultipartUpload(context.WithoutCancel(ctx), &awss3.AbortMultipartUploadInput{
		Bucket:   aws.String(s.bucket),
		Key:      aws.String(key),
		UploadId: aws.String(uploadID),
	})
	if err != nil {
		s.log.Warn("abort of multipart upload failed; upload may be orphaned",
			"key", key, "upload_id", uploadID, "error", err)
	}
}

// Exists probes key with a metadata request. Every probe failure short of
// cancellation, including access-denied and transport faults, reports false
// rather than an error, matching the file backend's semantics.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return false, serrors.Newf("exists", key, serrors.KindConfiguration, "key is required")
	}

	_, err := s.api.HeadObject(ctx, &awss3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return false, err
		}
		return false, nil
	}
	return true, nil
}

// List pages through the bucket's continuation-token protocol until
// exhausted and returns every object under prefix. S3 lists keys in
// ascending order, which List preserves.
func (s *Store) List(ctx context.Context, prefix string) ([]storage.Object, error) {
	objects := []storage.Object{}

	var continuation *string
	for {
		out, err := s.api.ListObjectsV2(ctx, &awss3.ListObjectsV2Input{
			Bucket:            aws.String(s.bucket),
			Prefix:            aws.String(prefix),
			ContinuationToken: continuation,
		})
		if err != nil {
			return nil, translate("list", prefix, err)
		}

		for _, obj := range out.Contents {
			objects = append(objects, storage.Object{
				Key:         aws.ToString(obj.Key),
				Size:        aws.ToInt64(obj.Size),
				LastUpdated: aws.ToTime(obj.LastModified).UTC(),
			})
		}

		if !aws.ToBool(out.IsTruncated) {
			break
		}
		continuation = out.NextContinuationToken
	}
	return objects, nil
}

// Copy performs a server-side copy of srcKey to dstKey in dstContainer.
// An empty dstContainer targets this store's own bucket.
func (s *Store) Copy(ctx context.Context, srcKey, dstContainer, dstKey string) error {
	if srcKey == "" || dstKey == "" {
		return serrors.Newf("copy", srcKey, serrors.KindConfiguration,
			"source and destination keys are required")
	}
	dstBucket := dstContainer
	if dstBucket == "" {
		dstBucket = s.bucket
	}

	_, err := s.api.CopyObject(ctx, &awss3.CopyObjectInput{
		Bucket:     aws.String(dstBucket),
		Key:        aws.String(dstKey),
		CopySource: aws.String(s.bucket + "/" + srcKey),
	})
	if err != nil {
		return translate("copy", srcKey, err)
	}
	return nil
}

// Delete removes the object at key. S3 deletes are idempotent: removing an
// absent key succeeds, and any not-found signal is normalized to success.
func (s *Store) Delete(ctx context.Context, key string) error {
	if key == "" {
		return serrors.Newf("delete", key, serrors.KindConfiguration, "key is required")
	}

	_, err := s.api.DeleteObject(ctx, &awss3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		translated := translate("delete", key, err)
		if serrors.IsNotFound(translated) {
			return nil
		}
		return translated
	}
	return nil
}
