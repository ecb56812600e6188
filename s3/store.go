// Package s3 implements the storage contract against Amazon S3 (or any
// API-compatible service) using aws-sdk-go-v2. Large objects are uploaded
// through a sequential multipart state machine with best-effort abort
// cleanup on failure.
package s3

import (
	"context"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"

	storage "github.com/medianotion/storage-service"
	serrors "github.com/medianotion/storage-service/errors"
	"github.com/medianotion/storage-service/s3/s3api"
	"github.com/medianotion/storage-service/transfer"
)

// Store implements storage.Store against an S3 transport.
type Store struct {
	api        s3api.S3API
	bucket     string
	calc       *transfer.Calculator
	bufferSize int
	log        *slog.Logger
}

var _ storage.Store = (*Store)(nil)

// Option configures a Store beyond its S3Config.
type Option func(*Store)

// WithLogger sets the logger used for swallowed cleanup failures.
func WithLogger(log *slog.Logger) Option {
	return func(s *Store) {
		if log != nil {
			s.log = log
		}
	}
}

// WithCalculator overrides the part-size calculator. Useful for
// S3-compatible services with different part bounds, and for tests.
func WithCalculator(calc *transfer.Calculator) Option {
	return func(s *Store) {
		if calc != nil {
			s.calc = calc
		}
	}
}

// WithBufferSize bounds the per-chunk copy buffer, in bytes.
func WithBufferSize(size int) Option {
	return func(s *Store) {
		if size > 0 {
			s.bufferSize = size
		}
	}
}

// New builds a Store from config, wiring credentials per the active
// Credentials variant. Configuration problems (empty bucket, invalid
// credentials, bad part-size bounds) are reported here, before any
// transport call is made.
func New(ctx context.Context, cfg storage.S3Config, opts ...Option) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, serrors.Newf("new", "", serrors.KindConfiguration, "bucket is required")
	}
	if err := cfg.Credentials.Validate(); err != nil {
		return nil, err
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{}
	if cfg.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.Retries > 0 {
		loadOpts = append(loadOpts, awsconfig.WithRetryMaxAttempts(cfg.Retries))
	}

	switch {
	case cfg.Credentials.IsNone():
		// Ambient credential chain.
	default:
		provider, err := credentialsProvider(cfg.Credentials)
		if err != nil {
			return nil, err
		}
		if provider != nil {
			loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(provider))
		}
	}
	if props, ok := cfg.Credentials.Properties(); ok {
		if profile, ok := props["profile"]; ok {
			loadOpts = append(loadOpts, awsconfig.WithSharedConfigProfile(profile))
		}
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, serrors.New("new", "", serrors.KindConfiguration, err)
	}
	if awsCfg.Region == "" {
		awsCfg.Region = "us-east-1"
	}

	var s3Opts []func(*awss3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *awss3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}
	if cfg.ForcePathStyle {
		s3Opts = append(s3Opts, func(o *awss3.Options) {
			o.UsePathStyle = true
		})
	}

	store := newStore(awss3.NewFromConfig(awsCfg, s3Opts...), cfg.Bucket)
	for _, opt := range opts {
		opt(store)
	}
	return store, nil
}

// NewWithClient builds a Store around an existing transport. This is the
// constructor tests use with a mocked s3api.S3API.
func NewWithClient(api s3api.S3API, bucket string, opts ...Option) *Store {
	store := newStore(api, bucket)
	for _, opt := range opts {
		opt(store)
	}
	return store
}

func newStore(api s3api.S3API, bucket string) *Store {
	calc, _ := transfer.NewCalculator(transfer.DefaultPolicy())
	return &Store{
		api:        api,
		bucket:     bucket,
		calc:       calc,
		bufferSize: transfer.DefaultBufferSize,
		log:        slog.Default(),
	}
}

// credentialsProvider maps the non-ambient Credentials variants onto AWS
// SDK providers. The Custom variant supports the "profile" property only;
// it is handled by the caller and yields no static provider here.
func credentialsProvider(creds storage.Credentials) (aws.CredentialsProvider, error) {
	if access, secret, ok := creds.AccessKey(); ok {
		return credentials.NewStaticCredentialsProvider(access, secret, ""), nil
	}
	if access, secret, token, ok := creds.SessionToken(); ok {
		return credentials.NewStaticCredentialsProvider(access, secret, token), nil
	}
	if props, ok := creds.Properties(); ok {
		for key := range props {
			if key != "profile" {
				return nil, serrors.Newf("new", "", serrors.KindConfiguration,
					"unsupported custom credential property %q", key)
			}
		}
		return nil, nil
	}
	return nil, nil
}
