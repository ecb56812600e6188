// Package transfer provides the size/stream primitives used by the
// multipart upload orchestrator: part-size calculation under provider
// bounds, and bounded-buffer chunk copying.
package transfer

import (
	serrors "github.com/medianotion/storage-service/errors"
)

const mib = 1 << 20

// Provider bounds for multipart uploads. The calculator aims for at most
// PartCountTarget parts; MaxPartCount is the provider's hard ceiling,
// validated separately before an upload is initiated.
const (
	DefaultMinPartSize     int64 = 5 * mib
	DefaultMaxPartSize     int64 = 5 * 1024 * mib
	DefaultPartCountTarget int64 = 1000

	// MaxPartCount is the absolute number of parts a provider accepts for
	// one upload (the S3 hard limit).
	MaxPartCount int64 = 10000
)

// PartSizePolicy bounds the part sizes a Calculator may produce.
type PartSizePolicy struct {
	// MinPartSize is the smallest part size the provider accepts for any
	// non-last part.
	MinPartSize int64

	// MaxPartSize is the largest part size the provider accepts.
	MaxPartSize int64

	// PartCountTarget is the part count the calculator aims not to exceed.
	PartCountTarget int64
}

// DefaultPolicy returns the S3 provider bounds.
func DefaultPolicy() PartSizePolicy {
	return PartSizePolicy{
		MinPartSize:     DefaultMinPartSize,
		MaxPartSize:     DefaultMaxPartSize,
		PartCountTarget: DefaultPartCountTarget,
	}
}

// Calculator computes upload part sizes under a PartSizePolicy. It is pure
// and performs no I/O.
type Calculator struct {
	policy PartSizePolicy
}

// NewCalculator validates the policy bounds and returns a Calculator.
// Non-positive or inverted bounds are a Configuration error.
func NewCalculator(policy PartSizePolicy) (*Calculator, error) {
	if policy.MinPartSize <= 0 || policy.MaxPartSize <= 0 || policy.PartCountTarget <= 0 {
		return nil, serrors.Newf("partsize", "", serrors.KindConfiguration,
			"part size policy bounds must be positive: min=%d max=%d target=%d",
			policy.MinPartSize, policy.MaxPartSize, policy.PartCountTarget)
	}
	if policy.MinPartSize > policy.MaxPartSize {
		return nil, serrors.Newf("partsize", "", serrors.KindConfiguration,
			"minimum part size %d exceeds maximum %d", policy.MinPartSize, policy.MaxPartSize)
	}
	return &Calculator{policy: policy}, nil
}

// Policy returns the policy the calculator was built with.
func (c *Calculator) Policy() PartSizePolicy {
	return c.policy
}

// PartSize returns a part size for an object of the given length such that
// MinPartSize <= result <= MaxPartSize and ceil(length/result) does not
// exceed PartCountTarget, rounded up to a whole megabyte. Lengths at or
// below the minimum return the minimum; whether such an object is uploaded
// in a single shot is the caller's decision.
func (c *Calculator) PartSize(length int64) int64 {
	if length <= c.policy.MinPartSize {
		return c.policy.MinPartSize
	}

	size := ceilDiv(length, c.policy.PartCountTarget)
	if size < c.policy.MinPartSize {
		size = c.policy.MinPartSize
	}
	if size > c.policy.MaxPartSize {
		return c.policy.MaxPartSize
	}

	// Round up to the next MB boundary. Rounding up only lowers the part
	// count, so the target still holds.
	if rem := size % mib; rem != 0 {
		size += mib - rem
	}
	if size > c.policy.MaxPartSize {
		size = c.policy.MaxPartSize
	}
	return size
}

func ceilDiv(n, d int64) int64 {
	return (n + d - 1) / d
}
