package storage

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStoragePutAndOpenSigned(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)
	store, err := NewLocalStorage(t.TempDir(), "/api/v1/files/", signer)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, store.Put(ctx, "progress/p-1/photo.png", strings.NewReader("png-bytes"), 9, "image/png"))

	url, _, err := store.URL(ctx, "progress/p-1/photo.png")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(url, "/api/v1/files/"))

	token := strings.TrimPrefix(url, "/api/v1/files/")
	file, key, err := store.OpenSigned(token)
	require.NoError(t, err)
	defer file.Close()
	body, err := io.ReadAll(file)
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(body))
	assert.Equal(t, "progress/p-1/photo.png", key)

	require.NoError(t, store.Delete(ctx, "progress/p-1/photo.png"))
	_, _, err = store.OpenSigned(token)
	require.Error(t, err)
}

func TestCleanKeyClampsTraversal(t *testing.T) {
	cleaned, err := CleanKey("../../etc/passwd")
	require.NoError(t, err)
	assert.Equal(t, "etc/passwd", cleaned)

	_, err = CleanKey("  ")
	require.ErrorIs(t, err, ErrInvalidKey)
	_, err = CleanKey("/")
	require.ErrorIs(t, err, ErrInvalidKey)
}
