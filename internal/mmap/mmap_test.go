package mmap

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeObject(t *testing.T, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "0", "0", "0")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, content, 0o644))
	return path
}

func TestMapping_OpenClose(t *testing.T) {
	content := []byte("zstd payload")
	m, err := Open(writeObject(t, content))
	require.NoError(t, err)

	assert.Equal(t, len(content), m.Len())
	assert.Equal(t, content, m.Bytes())

	require.NoError(t, m.Close())
	require.NoError(t, m.Close())
	assert.Nil(t, m.Bytes())
}

func TestMapping_Empty(t *testing.T) {
	m, err := Open(writeObject(t, nil))
	require.NoError(t, err)
	assert.Zero(t, m.Len())
	require.NoError(t, m.Close())
}

func TestView(t *testing.T) {
	t.Run("Small", func(t *testing.T) {
		var got []byte
		err := View(writeObject(t, []byte{1, 2, 3, 4}), func(b []byte) error {
			got = bytes.Clone(b)
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, []byte{1, 2, 3, 4}, got)
	})

	t.Run("Mapped", func(t *testing.T) {
		content := bytes.Repeat([]byte{0xab, 0xcd}, MinMapSize)
		var sum int
		err := View(writeObject(t, content), func(b []byte) error {
			assert.Len(t, b, len(content))
			for _, v := range b {
				sum += int(v)
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, MinMapSize*(0xab+0xcd), sum)
	})

	t.Run("CallbackError", func(t *testing.T) {
		boom := errors.New("decode failed")
		err := View(writeObject(t, bytes.Repeat([]byte{1}, MinMapSize)), func([]byte) error { return boom })
		assert.ErrorIs(t, err, boom)
	})

	t.Run("Missing", func(t *testing.T) {
		called := false
		err := View(filepath.Join(t.TempDir(), "missing"), func([]byte) error {
			called = true
			return nil
		})
		assert.ErrorIs(t, err, os.ErrNotExist)
		assert.False(t, called)
	})
}
