package storage

import (
	"mime"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// DefaultContentType is stored when no extension hint or content sniff
// resolves a more specific MIME type.
const DefaultContentType = "binary/octet-stream"

// ResolveContentType resolves a MIME type from a file-extension hint,
// falling back to sniffing the head of the content, and finally to
// DefaultContentType. head may be nil or shorter than the sniffing window;
// callers typically pass the first 512 bytes of the stream.
func ResolveContentType(ext string, head []byte) string {
	if ext != "" {
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		if byExt := mime.TypeByExtension(strings.ToLower(ext)); byExt != "" {
			return byExt
		}
	}

	if len(head) > 0 {
		if mt := mimetype.Detect(head); mt != nil && mt.String() != "application/octet-stream" {
			return mt.String()
		}
	}

	return DefaultContentType
}
