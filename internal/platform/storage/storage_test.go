package storage

import (
	"context"
	"io"
	"path"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-starter/internal/shared"
)

type memS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemS3() *memS3 { return &memS3{objects: map[string][]byte{}} }

func (m *memS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	raw, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[aws.ToString(in.Key)] = raw
	return &s3.PutObjectOutput{}, nil
}

func (m *memS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(string(raw)))}, nil
}

func (m *memS3) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[aws.ToString(in.Key)]; !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{}, nil
}

func (m *memS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (m *memS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	prefix := aws.ToString(in.Prefix)
	var keys []string
	for k := range m.objects {
		rest, ok := strings.CutPrefix(k, prefix)
		if ok && !strings.Contains(rest, "/") {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}
	for _, k := range keys {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(k)})
	}
	return out, nil
}

func backends(t *testing.T) map[string]Storage {
	t.Helper()
	local, err := NewLocal(t.TempDir())
	require.NoError(t, err)
	return map[string]Storage{
		"local": local,
		"s3":    NewS3WithClient(newMemS3(), "uploads", "starter"),
	}
}

func readAll(t *testing.T, s Storage, p string) string {
	t.Helper()
	rc, err := s.Open(context.Background(), p)
	require.NoError(t, err)
	defer rc.Close()
	raw, err := io.ReadAll(rc)
	require.NoError(t, err)
	return string(raw)
}

func TestStorageRoundTrip(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			p, err := s.Save(ctx, strings.NewReader("hello"), "Report.PDF", "docs")
			require.NoError(t, err)
			assert.Equal(t, "docs", path.Dir(p))
			assert.Equal(t, ".pdf", path.Ext(p))
			assert.Equal(t, "hello", readAll(t, s, p))

			ok, err := s.Exists(ctx, p)
			require.NoError(t, err)
			assert.True(t, ok)

			named, err := s.SaveAs(ctx, strings.NewReader("x"), "avatar.png", "")
			require.NoError(t, err)
			assert.Equal(t, "avatar.png", named)

			list, err := s.List(ctx, "docs")
			require.NoError(t, err)
			assert.Equal(t, []string{path.Base(p)}, list)

			deleted, err := s.Delete(ctx, p)
			require.NoError(t, err)
			assert.True(t, deleted)
			deleted, err = s.Delete(ctx, p)
			require.NoError(t, err)
			assert.False(t, deleted)

			_, err = s.Open(ctx, p)
			assert.ErrorIs(t, err, shared.ErrNotFound)
		})
	}
}

func TestStorageListMissingDirIsEmpty(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			list, err := s.List(context.Background(), "nothing-here")
			require.NoError(t, err)
			assert.Empty(t, list)
		})
	}
}

func TestStorageRejectsTraversal(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			_, err := s.Open(ctx, "../etc/passwd")
			assert.ErrorIs(t, err, shared.ErrValidation)
			_, err = s.SaveAs(ctx, strings.NewReader("x"), "../escape.txt", "")
			assert.ErrorIs(t, err, shared.ErrValidation)
			_, err = s.SaveAs(ctx, strings.NewReader("x"), "a.txt", "../../up")
			assert.ErrorIs(t, err, shared.ErrValidation)
			_, err = s.List(ctx, "a/../../b")
			assert.ErrorIs(t, err, shared.ErrValidation)
			_, err = s.Exists(ctx, "")
			assert.ErrorIs(t, err, shared.ErrValidation)
		})
	}
}

func TestUniqueName(t *testing.T) {
	a, b := UniqueName("photo.JPG"), UniqueName("photo.JPG")
	assert.NotEqual(t, a, b)
	assert.True(t, strings.HasSuffix(a, ".jpg"))
	assert.Len(t, UniqueName(""), 36)
}
