package s3

import (
	"context"
	"errors"

	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"

	serrors "github.com/medianotion/storage-service/errors"
)

// authErrorCodes are provider error codes that signal rejected credentials
// rather than a permission problem. They usually arrive with a 403 status,
// so they are checked before the status mapping.
var authErrorCodes = map[string]struct{}{
	"InvalidAccessKeyId":          {},
	"SignatureDoesNotMatch":       {},
	"ExpiredToken":                {},
	"InvalidToken":                {},
	"TokenRefreshRequired":        {},
	"CredentialsNotSupported":     {},
	"InvalidSecurity":             {},
	"MissingSecurityHeader":       {},
	"UnrecognizedClientException": {},
}

// translate classifies a transport failure into the shared taxonomy.
// Classification happens exactly once, here at the backend boundary; the
// native error is kept as the cause. Cancellation is not reclassified: a
// canceled context surfaces as the canonical cancellation outcome.
func translate(op, key string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return serrors.New(op, key, kindFor(err), err)
}

// kindFor keys the mapping on HTTP-equivalent status categories, with
// credential-specific provider codes taking precedence.
func kindFor(err error) serrors.Kind {
	if errors.Is(err, context.DeadlineExceeded) {
		return serrors.KindTimeout
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		if _, ok := authErrorCodes[code]; ok {
			return serrors.KindAuthentication
		}
		switch code {
		case "NoSuchKey", "NoSuchBucket", "NotFound":
			return serrors.KindNotFound
		case "AccessDenied":
			return serrors.KindAccessDenied
		case "RequestTimeout":
			return serrors.KindTimeout
		case "SlowDown", "ServiceUnavailable", "Throttling", "ThrottlingException":
			return serrors.KindUnavailable
		}
	}

	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) {
		return serrors.KindFromHTTPStatus(respErr.HTTPStatusCode())
	}

	return serrors.KindInternal
}
