package storage

import (
	"errors"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorageRoundTrip(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	n, err := store.SaveStream("materials/a.pdf", strings.NewReader("hello"))
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)

	f, err := store.Open("materials/a.pdf")
	require.NoError(t, err)
	body, _ := io.ReadAll(f)
	_ = f.Close()
	assert.Equal(t, "hello", string(body))

	_, err = store.SaveStream("materials/a.pdf", strings.NewReader("again"))
	assert.Error(t, err, "existing files are never overwritten")

	require.NoError(t, store.Delete("materials/a.pdf"))
	err = store.Delete("materials/a.pdf")
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestLocalStorageRejectsEscapes(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	for _, name := range []string{"../secret", "/etc/passwd", "", "a/../../b"} {
		_, err := store.Open(name)
		assert.ErrorIs(t, err, ErrInvalidPath, name)
	}
}
