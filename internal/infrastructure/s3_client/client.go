package s3_client

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/pkg/errors"
)

// Credentials and other bootstrap secrets are small. Anything larger is refused.
const maxObjectSize = 1 << 20

var (
	client *s3.Client
	once   sync.Once
)

type Options struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	Endpoint        string
	UsePathStyle    bool
	HTTPClient      *http.Client
	MaxAttempts     int
	MaxBackoff      time.Duration
}

type Option func(*Options)

func WithRegion(r string) Option { return func(o *Options) { o.Region = r } }

// WithStaticCredentials skips the default AWS credential chain.
func WithStaticCredentials(id, secret, token string) Option {
	return func(o *Options) { o.AccessKeyID, o.SecretAccessKey, o.SessionToken = id, secret, token }
}

// WithEndpoint targets an S3-compatible store such as MinIO.
func WithEndpoint(endpoint string, pathStyle bool) Option {
	return func(o *Options) { o.Endpoint, o.UsePathStyle = endpoint, pathStyle }
}

func WithHTTPClient(h *http.Client) Option { return func(o *Options) { o.HTTPClient = h } }

func WithRetry(maxAttempts int, maxBackoff time.Duration) Option {
	return func(o *Options) { o.MaxAttempts, o.MaxBackoff = maxAttempts, maxBackoff }
}

func Client() *s3.Client {
	if client == nil {
		panic("s3 client not initialized; call NewS3Client first")
	}
	return client
}

// NewS3Client builds the process-wide client. Only the first call takes effect.
func NewS3Client(ctx context.Context, opts ...Option) error {
	conf := Options{}
	for _, fn := range opts {
		fn(&conf)
	}

	awsCfg, err := awscfg.LoadDefaultConfig(ctx, loadOptions(conf)...)
	if err != nil {
		return errors.Wrap(err, "failed to load aws config")
	}

	once.Do(func() {
		client = s3.NewFromConfig(awsCfg, clientOptions(conf)...)
	})
	return nil
}

func loadOptions(o Options) []func(*awscfg.LoadOptions) error {
	var lo []func(*awscfg.LoadOptions) error
	if o.Region != "" {
		lo = append(lo, awscfg.WithRegion(o.Region))
	}
	if o.HTTPClient != nil {
		lo = append(lo, awscfg.WithHTTPClient(o.HTTPClient))
	}
	if o.AccessKeyID != "" {
		creds := aws.NewCredentialsCache(credentials.NewStaticCredentialsProvider(o.AccessKeyID, o.SecretAccessKey, o.SessionToken))
		lo = append(lo, awscfg.WithCredentialsProvider(creds))
	}
	if o.MaxAttempts > 0 || o.MaxBackoff > 0 {
		lo = append(lo, awscfg.WithRetryer(func() aws.Retryer {
			var r aws.Retryer = retry.NewStandard()
			if o.MaxAttempts > 0 {
				r = retry.AddWithMaxAttempts(r, o.MaxAttempts)
			}
			if o.MaxBackoff > 0 {
				r = retry.AddWithMaxBackoffDelay(r, o.MaxBackoff)
			}
			return r
		}))
	}
	return lo
}

func clientOptions(o Options) []func(*s3.Options) {
	var opts []func(*s3.Options)
	if o.UsePathStyle {
		opts = append(opts, func(so *s3.Options) { so.UsePathStyle = true })
	}
	if o.Endpoint != "" {
		opts = append(opts, func(so *s3.Options) { so.BaseEndpoint = aws.String(o.Endpoint) })
	}
	return opts
}

// IsS3URI reports whether src looks like s3://bucket/key.
func IsS3URI(src string) bool {
	return strings.HasPrefix(strings.ToLower(src), "s3://")
}

// ParseURI splits s3://bucket/key into its bucket and key.
func ParseURI(src string) (bucket, key string, err error) {
	u, err := url.Parse(src)
	if err != nil {
		return "", "", errors.Wrapf(err, "invalid s3 uri %q", src)
	}
	if !strings.EqualFold(u.Scheme, "s3") || u.Host == "" {
		return "", "", errors.Errorf("invalid s3 uri %q: expected s3://bucket/key", src)
	}
	key = strings.TrimPrefix(u.Path, "/")
	if key == "" {
		return "", "", errors.Errorf("invalid s3 uri %q: missing object key", src)
	}
	return u.Host, key, nil
}

// GetObjectAPI is the slice of the S3 client ReadObject needs.
type GetObjectAPI interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// ReadObject downloads a small object, such as a service account key, into memory.
func ReadObject(ctx context.Context, src string) ([]byte, error) {
	return readObject(ctx, Client(), src)
}

func readObject(ctx context.Context, api GetObjectAPI, src string) ([]byte, error) {
	bucket, key, err := ParseURI(src)
	if err != nil {
		return nil, err
	}
	out, err := api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get object %s", src)
	}
	defer func() { _ = out.Body.Close() }()

	b, err := io.ReadAll(io.LimitReader(out.Body, maxObjectSize+1))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read object %s", src)
	}
	if len(b) > maxObjectSize {
		return nil, errors.Errorf("object %s exceeds %d bytes", src, maxObjectSize)
	}
	return b, nil
}
