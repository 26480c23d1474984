package s3store

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockAPI is a mock implementation of API for testing.
type mockAPI struct {
	PutObjectFunc func(ctx context.Context, params *s3.PutObjectInput) (*s3.PutObjectOutput, error)
	GetObjectFunc func(ctx context.Context, params *s3.GetObjectInput) (*s3.GetObjectOutput, error)
}

func (m *mockAPI) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	return m.PutObjectFunc(ctx, params)
}

func (m *mockAPI) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	return m.GetObjectFunc(ctx, params)
}

func TestUpload(t *testing.T) {
	var gotKey, gotBody string
	api := &mockAPI{
		PutObjectFunc: func(ctx context.Context, params *s3.PutObjectInput) (*s3.PutObjectOutput, error) {
			gotKey = aws.ToString(params.Key)
			b, _ := io.ReadAll(params.Body)
			gotBody = string(b)
			return &s3.PutObjectOutput{ETag: aws.String(`"e1"`)}, nil
		},
	}

	etag, err := NewWithAPI(api, "bucket").Upload(context.Background(), "guid", []byte("cipher"))
	require.NoError(t, err)
	assert.Equal(t, `"e1"`, etag)
	assert.Equal(t, "guid", gotKey)
	assert.Equal(t, "cipher", gotBody)
}

func TestDownload(t *testing.T) {
	tests := []struct {
		name    string
		etag    string
		out     *s3.GetObjectOutput
		err     error
		wantNil bool
		wantNM  bool
		wantErr bool
	}{
		{
			name: "data",
			out:  &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader("abc")), ETag: aws.String(`"e2"`)},
		},
		{
			name:    "missing key",
			err:     &types.NoSuchKey{},
			wantNil: true,
		},
		{
			name:   "not modified",
			etag:   `"e2"`,
			err:    &smithy.GenericAPIError{Code: "NotModified"},
			wantNM: true,
		},
		{
			name:    "other failure",
			err:     errors.New("boom"),
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var sawIfNoneMatch string
			api := &mockAPI{
				GetObjectFunc: func(ctx context.Context, params *s3.GetObjectInput) (*s3.GetObjectOutput, error) {
					sawIfNoneMatch = aws.ToString(params.IfNoneMatch)
					return tt.out, tt.err
				},
			}

			got, err := NewWithAPI(api, "bucket").Download(context.Background(), "guid", tt.etag)
			assert.Equal(t, tt.etag, sawIfNoneMatch)

			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tt.wantNil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			if tt.wantNM {
				assert.True(t, got.NotModified)
				assert.Equal(t, tt.etag, got.ETag)
				return
			}
			assert.Equal(t, "abc", string(got.Data))
			assert.Equal(t, `"e2"`, got.ETag)
		})
	}
}
