package s3_client

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGetter struct {
	body   []byte
	err    error
	bucket string
	key    string
}

func (f *fakeGetter) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.bucket, f.key = aws.ToString(in.Bucket), aws.ToString(in.Key)
	if f.err != nil {
		return nil, f.err
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(f.body))}, nil
}

func TestParseURI(t *testing.T) {
	bucket, key, err := ParseURI("s3://relay-secrets/fcm/service-account-key.json")
	require.NoError(t, err)
	assert.Equal(t, "relay-secrets", bucket)
	assert.Equal(t, "fcm/service-account-key.json", key)

	for _, bad := range []string{"s3://bucket-only", "s3:///key", "https://bucket/key", "::"} {
		_, _, err = ParseURI(bad)
		assert.Error(t, err, bad)
	}
}

func TestIsS3URI(t *testing.T) {
	assert.True(t, IsS3URI("s3://a/b"))
	assert.True(t, IsS3URI("S3://a/b"))
	assert.False(t, IsS3URI("./service-account-key.json"))
}

func TestReadObject(t *testing.T) {
	api := &fakeGetter{body: []byte(`{"type":"service_account"}`)}
	b, err := readObject(context.Background(), api, "s3://relay-secrets/fcm/key.json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"service_account"}`, string(b))
	assert.Equal(t, "relay-secrets", api.bucket)
	assert.Equal(t, "fcm/key.json", api.key)
}

func TestReadObject_Errors(t *testing.T) {
	_, err := readObject(context.Background(), &fakeGetter{}, "s3://bucket-only")
	assert.Error(t, err)

	_, err = readObject(context.Background(), &fakeGetter{err: errors.New("access denied")}, "s3://b/k")
	assert.ErrorContains(t, err, "access denied")

	_, err = readObject(context.Background(), &fakeGetter{body: make([]byte, maxObjectSize+1)}, "s3://b/k")
	assert.ErrorContains(t, err, "exceeds")
}

func TestOptionBuilders(t *testing.T) {
	assert.Empty(t, loadOptions(Options{}))
	assert.Empty(t, clientOptions(Options{}))

	conf := Options{}
	for _, fn := range []Option{
		WithRegion("ap-southeast-1"),
		WithStaticCredentials("id", "secret", ""),
		WithEndpoint("https://minio.local:9000", true),
		WithRetry(3, 0),
	} {
		fn(&conf)
	}
	assert.Len(t, loadOptions(conf), 3)

	so := s3.Options{}
	for _, fn := range clientOptions(conf) {
		fn(&so)
	}
	assert.True(t, so.UsePathStyle)
	assert.Equal(t, "https://minio.local:9000", aws.ToString(so.BaseEndpoint))
}
