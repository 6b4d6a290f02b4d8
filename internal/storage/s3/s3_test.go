package s3

import (
	"bytes"
	"context"
	"io"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prn-tf/luma-identity/internal/config"
	"github.com/prn-tf/luma-identity/internal/pkg/crypto"
	"github.com/prn-tf/luma-identity/internal/storage"
)

type fakeObjects struct {
	mu      sync.Mutex
	objects map[string][]byte
	puts    int
}

func newFakeObjects() *fakeObjects {
	return &fakeObjects{objects: make(map[string][]byte)}
}

func (f *fakeObjects) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)] = data
	f.puts++
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeObjects) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeObjects) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]; !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{}, nil
}

func (f *fakeObjects) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func newTestBackend(t *testing.T) (*Backend, *fakeObjects) {
	t.Helper()
	fake := newFakeObjects()
	cfg := config.S3StorageConfig{Bucket: "luma", Prefix: "avatars/"}
	return New(fake, cfg, 1024, zerolog.Nop()), fake
}

func TestBackend_StoreRetrieveDelete(t *testing.T) {
	ctx := context.Background()
	b, fake := newTestBackend(t)
	content := []byte("\x89PNG\r\n\x1a\nfake image")

	hash, err := b.Store(ctx, bytes.NewReader(content), int64(len(content)))
	require.NoError(t, err)
	assert.Equal(t, crypto.ComputeSHA256(content), hash)
	assert.Equal(t, "avatars/"+hash[0:2]+"/"+hash[2:4]+"/"+hash, b.GetPath(hash))

	again, err := b.Store(ctx, bytes.NewReader(content), -1)
	require.NoError(t, err)
	assert.Equal(t, hash, again)
	assert.Equal(t, 1, fake.puts)

	rc, err := b.Retrieve(ctx, hash)
	require.NoError(t, err)
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, content, got)

	require.NoError(t, b.Delete(ctx, hash))
	exists, err := b.Exists(ctx, hash)
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = b.Retrieve(ctx, hash)
	require.ErrorIs(t, err, storage.ErrBlobNotFound)
	require.ErrorIs(t, b.Delete(ctx, hash), storage.ErrBlobNotFound)
}

func TestBackend_Limits(t *testing.T) {
	ctx := context.Background()
	b, _ := newTestBackend(t)

	_, err := b.Store(ctx, bytes.NewReader(make([]byte, 2048)), -1)
	require.ErrorIs(t, err, storage.ErrSizeMismatch)

	_, err = b.Store(ctx, bytes.NewReader([]byte("abc")), 10)
	require.ErrorIs(t, err, storage.ErrSizeMismatch)

	_, err = b.Retrieve(ctx, "not-a-hash")
	require.ErrorIs(t, err, storage.ErrInvalidHash)
}
