package objectstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeS3 keeps objects in memory keyed by bucket/key.
type fakeS3 struct {
	objects map[string][]byte
	getErr  error
	putErr  error
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string][]byte{}}
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	body, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(body))}, nil
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)] = body
	return &s3.PutObjectOutput{}, nil
}

func TestNewMirror_RequiresBucket(t *testing.T) {
	_, err := NewMirror(newFakeS3(), "", nil)
	assert.Error(t, err)
}

func TestMirror_RoundTrip(t *testing.T) {
	fake := newFakeS3()
	m, err := NewMirror(fake, "crawl", nil)
	require.NoError(t, err)

	dir := t.TempDir()
	src := filepath.Join(dir, "repos")
	require.NoError(t, os.WriteFile(src, []byte("alice/x\nbob/y\n"), 0o644))

	require.NoError(t, m.Upload(context.Background(), src, "repos"))
	assert.Equal(t, "alice/x\nbob/y\n", string(fake.objects["crawl/repos"]))

	dst := filepath.Join(dir, "restored")
	found, err := m.Download(context.Background(), "repos", dst)
	require.NoError(t, err)
	assert.True(t, found)

	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "alice/x\nbob/y\n", string(got))
}

func TestMirror_DownloadMissingObject(t *testing.T) {
	m, err := NewMirror(newFakeS3(), "crawl", nil)
	require.NoError(t, err)

	dst := filepath.Join(t.TempDir(), "repos")
	require.NoError(t, os.WriteFile(dst, []byte("local/only\n"), 0o644))

	found, err := m.Download(context.Background(), "repos", dst)
	require.NoError(t, err)
	assert.False(t, found)

	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "local/only\n", string(got), "local file must be left alone")
}

func TestMirror_Errors(t *testing.T) {
	fake := newFakeS3()
	fake.getErr = errors.New("access denied")
	fake.putErr = errors.New("access denied")
	m, err := NewMirror(fake, "crawl", nil)
	require.NoError(t, err)

	dir := t.TempDir()
	_, err = m.Download(context.Background(), "repos", filepath.Join(dir, "repos"))
	assert.ErrorContains(t, err, "access denied")

	src := filepath.Join(dir, "src")
	require.NoError(t, os.WriteFile(src, nil, 0o644))
	assert.ErrorContains(t, m.Upload(context.Background(), src, "repos"), "access denied")

	assert.Error(t, m.Upload(context.Background(), filepath.Join(dir, "missing"), "repos"))
}

func TestExpandKey(t *testing.T) {
	now := time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "export-2024-Mar-05.txt", ExpandKey("export-%s.txt", now))
	assert.Equal(t, "repos", ExpandKey("repos", now))
}
