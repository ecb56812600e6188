package storage

import (
	serrors "github.com/medianotion/storage-service/errors"
)

// credKind tags the active Credentials variant.
type credKind int

const (
	credNone credKind = iota
	credAccessKey
	credSessionToken
	credCustom
)

// Credentials is a tagged variant selecting how a backend authenticates.
// Exactly one variant is active; selection is explicit through the
// constructor used, never inferred from which fields happen to be set.
//
// The zero value is the None variant (ambient/implicit credentials, e.g.
// the AWS default credential chain).
type Credentials struct {
	kind       credKind
	access     string
	secret     string
	token      string
	properties map[string]string
}

// NoCredentials selects ambient/implicit credentials.
func NoCredentials() Credentials {
	return Credentials{kind: credNone}
}

// AccessKeyCredentials selects static access-key authentication.
func AccessKeyCredentials(access, secret string) Credentials {
	return Credentials{kind: credAccessKey, access: access, secret: secret}
}

// SessionTokenCredentials selects temporary session-token authentication.
func SessionTokenCredentials(access, secret, token string) Credentials {
	return Credentials{kind: credSessionToken, access: access, secret: secret, token: token}
}

// CustomCredentials selects provider-specific authentication described by
// free-form properties. The recognized property keys are backend-defined.
func CustomCredentials(properties map[string]string) Credentials {
	props := make(map[string]string, len(properties))
	for k, v := range properties {
		props[k] = v
	}
	return Credentials{kind: credCustom, properties: props}
}

// IsNone reports whether the ambient-credentials variant is active.
func (c Credentials) IsNone() bool { return c.kind == credNone }

// AccessKey returns the static access-key pair. ok is false unless the
// AccessKey variant is active.
func (c Credentials) AccessKey() (access, secret string, ok bool) {
	if c.kind != credAccessKey {
		return "", "", false
	}
	return c.access, c.secret, true
}

// SessionToken returns the session-token triple. ok is false unless the
// SessionToken variant is active.
func (c Credentials) SessionToken() (access, secret, token string, ok bool) {
	if c.kind != credSessionToken {
		return "", "", "", false
	}
	return c.access, c.secret, c.token, true
}

// Properties returns a copy of the custom-credential properties. ok is
// false unless the Custom variant is active.
func (c Credentials) Properties() (map[string]string, bool) {
	if c.kind != credCustom {
		return nil, false
	}
	props := make(map[string]string, len(c.properties))
	for k, v := range c.properties {
		props[k] = v
	}
	return props, true
}

// Validate checks that the active variant is meaningful: key material must
// be non-empty and custom properties non-nil. It returns a Configuration
// error otherwise. Backends call this at construction, before any
// transport call is made.
func (c Credentials) Validate() error {
	switch c.kind {
	case credNone:
		return nil
	case credAccessKey:
		if c.access == "" || c.secret == "" {
			return serrors.Newf("credentials", "", serrors.KindConfiguration,
				"access key credentials require a non-empty access and secret")
		}
	case credSessionToken:
		if c.access == "" || c.secret == "" || c.token == "" {
			return serrors.Newf("credentials", "", serrors.KindConfiguration,
				"session token credentials require a non-empty access, secret, and token")
		}
	case credCustom:
		if len(c.properties) == 0 {
			return serrors.Newf("credentials", "", serrors.KindConfiguration,
				"custom credentials require at least one property")
		}
	}
	return nil
}
