package errors

import "net/http"

// KindFromHTTPStatus maps an HTTP-equivalent status code from an
// object-storage transport onto the taxonomy. Both HTTP-backed backends
// (aws-sdk-go-v2 and minio-go) key their translation on this table.
func KindFromHTTPStatus(status int) Kind {
	switch status {
	case http.StatusNotFound:
		return KindNotFound
	case http.StatusUnauthorized, http.StatusForbidden:
		return KindAccessDenied
	case http.StatusRequestTimeout:
		return KindTimeout
	case http.StatusTooManyRequests, http.StatusServiceUnavailable:
		return KindUnavailable
	default:
		return KindInternal
	}
}
