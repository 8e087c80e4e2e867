package filestore

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUniqueName(t *testing.T) {
	now := time.UnixMilli(1717243200123)
	a := UniqueName(now, ".pdf")
	b := UniqueName(now, ".pdf")
	assert.NotEqual(t, a, b)
	assert.Regexp(t, regexp.MustCompile(`^1717243200123-[0-9a-f-]{36}\.pdf$`), a)
}

func TestLocalSaveOpenDelete(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocal(filepath.Join(t.TempDir(), "uploads"))
	require.NoError(t, err)

	body := "%PDF-1.4 hello"
	handle, err := store.Save(ctx, "a.pdf", strings.NewReader(body), int64(len(body)), "application/pdf")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(store.Dir(), "a.pdf"), handle)

	_, err = store.Save(ctx, "a.pdf", strings.NewReader(body), int64(len(body)), "application/pdf")
	assert.Error(t, err, "overwrite must fail")

	rc, err := store.Open(ctx, handle)
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, body, string(data))

	require.NoError(t, store.Delete(ctx, handle))
	require.NoError(t, store.Delete(ctx, handle))
	_, err = store.Open(ctx, handle)
	assert.ErrorIs(t, err, ErrNotExist)
}

func TestLocalRejectsEscapes(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocal(t.TempDir())
	require.NoError(t, err)

	_, err = store.Save(ctx, "../evil.pdf", strings.NewReader("x"), 1, "")
	assert.Error(t, err)

	outside := filepath.Join(t.TempDir(), "other.pdf")
	require.NoError(t, os.WriteFile(outside, []byte("x"), 0o600))
	_, err = store.Open(ctx, outside)
	assert.ErrorIs(t, err, ErrNotExist)
}

func TestLocalShortWriteCleansUp(t *testing.T) {
	store, err := NewLocal(t.TempDir())
	require.NoError(t, err)
	_, err = store.Save(context.Background(), "short.pdf", strings.NewReader("abc"), 10, "")
	assert.Error(t, err)
	_, statErr := os.Stat(filepath.Join(store.Dir(), "short.pdf"))
	assert.True(t, os.IsNotExist(statErr))
}
