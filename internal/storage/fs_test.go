package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFSStore_PutGet(t *testing.T) {
	ctx := context.Background()
	s, err := NewFSStore(t.TempDir())
	require.NoError(t, err)

	key, err := s.Put(ctx, "reports/t1/s1.html", "text/html", strings.NewReader("<p>hi</p>"))
	require.NoError(t, err)
	assert.Equal(t, "reports/t1/s1.html", key)

	rc, err := s.Get(ctx, key)
	require.NoError(t, err)
	defer rc.Close()
	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "<p>hi</p>", string(b))

	u, err := s.SignedURL(ctx, key)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(u, "file://"))
}

func TestFSStore_RejectsBadKeys(t *testing.T) {
	ctx := context.Background()
	s, err := NewFSStore(t.TempDir())
	require.NoError(t, err)

	_, err = s.Put(ctx, "", "", strings.NewReader("x"))
	assert.Error(t, err)
	_, err = s.Put(ctx, "../escape", "", strings.NewReader("x"))
	assert.Error(t, err)
	_, err = s.Get(ctx, "missing/file")
	assert.Error(t, err)
}

type failingReader struct{ sent bool }

func (r *failingReader) Read(p []byte) (int, error) {
	if !r.sent {
		r.sent = true
		return copy(p, "partial"), nil
	}
	return 0, errors.New("connection reset")
}

func TestFSStore_FailedPutKeepsPrevious(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := NewFSStore(dir)
	require.NoError(t, err)

	_, err = s.Put(ctx, "reports/a.html", "", &failingReader{})
	require.Error(t, err)
	_, err = s.Get(ctx, "reports/a.html")
	assert.True(t, os.IsNotExist(err))

	_, err = s.Put(ctx, "reports/a.html", "", strings.NewReader("v1"))
	require.NoError(t, err)
	_, err = s.Put(ctx, "reports/a.html", "", &failingReader{})
	require.Error(t, err)

	rc, err := s.Get(ctx, "reports/a.html")
	require.NoError(t, err)
	defer rc.Close()
	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "v1", string(b))

	entries, err := os.ReadDir(dir + "/reports")
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files are cleaned up")
}
