package transfer

import (
	"io"
)

// DefaultBufferSize is the copy buffer size used when the caller does not
// bound it.
const DefaultBufferSize = 32 * 1024

// ReadChunk copies up to n bytes from src to dst and returns the number of
// bytes transferred. It loops over underlying reads, so a source that
// returns short reads still yields a full chunk. The returned count is
// less than n only when src is exhausted; end-of-stream is not an error.
//
// The internal buffer is at most min(bufSize, n) bytes, bounding memory
// per chunk regardless of the requested size. A read or write failure
// propagates immediately; no retries happen at this layer.
func ReadChunk(dst io.Writer, src io.Reader, n int64, bufSize int) (int64, error) {
	if n <= 0 {
		return 0, nil
	}
	if bufSize <= 0 {
		bufSize = DefaultBufferSize
	}
	if int64(bufSize) > n {
		bufSize = int(n)
	}
	buf := make([]byte, bufSize)

	var copied int64
	for copied < n {
		want := n - copied
		if want > int64(len(buf)) {
			want = int64(len(buf))
		}

		nr, rerr := src.Read(buf[:want])
		if nr > 0 {
			nw, werr := dst.Write(buf[:nr])
			if werr != nil {
				return copied + int64(nw), werr
			}
			if nw < nr {
				return copied + int64(nw), io.ErrShortWrite
			}
			copied += int64(nr)
		}
		if rerr == io.EOF {
			return copied, nil
		}
		if rerr != nil {
			return copied, rerr
		}
	}
	return copied, nil
}
