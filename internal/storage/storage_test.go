package storage

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAferoStore_Unit(t *testing.T) {
	memFs := afero.NewMemMapFs()
	store := NewAferoStore(memFs)
	ctx := context.Background()

	filePath := "test/dir/my-file.txt"
	fileContent := "hello world, this is a test"

	t.Run("Save", func(t *testing.T) {
		bytesWritten, err := store.Save(ctx, filePath, bytes.NewReader([]byte(fileContent)))

		require.NoError(t, err)
		assert.Equal(t, int64(len(fileContent)), bytesWritten)

		exists, err := afero.Exists(memFs, filePath)
		require.NoError(t, err)
		assert.True(t, exists, "file should exist after saving")

		readBytes, err := afero.ReadFile(memFs, filePath)
		require.NoError(t, err)
		assert.Equal(t, fileContent, string(readBytes))
	})

	t.Run("Save overwrites", func(t *testing.T) {
		_, err := store.Save(ctx, filePath, bytes.NewReader([]byte("short")))
		require.NoError(t, err)

		readBytes, err := afero.ReadFile(memFs, filePath)
		require.NoError(t, err)
		assert.Equal(t, "short", string(readBytes))
	})

	t.Run("Open", func(t *testing.T) {
		file, err := store.Open(ctx, filePath)
		require.NoError(t, err)
		defer file.Close()

		readBytes, err := io.ReadAll(file)
		require.NoError(t, err)
		assert.Equal(t, "short", string(readBytes))
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, filePath))

		exists, err := afero.Exists(memFs, filePath)
		require.NoError(t, err)
		assert.False(t, exists, "file should not exist after deleting")
	})

	t.Run("Delete missing file", func(t *testing.T) {
		assert.Error(t, store.Delete(ctx, "does/not/exist.txt"))
	})
}

func TestNewDiskStore(t *testing.T) {
	root := t.TempDir()
	store, err := NewDiskStore(root + "/avatars")
	require.NoError(t, err)

	_, err = store.Save(context.Background(), "a.png", bytes.NewReader([]byte("png")))
	require.NoError(t, err)

	exists, err := afero.Exists(afero.NewOsFs(), root+"/avatars/a.png")
	require.NoError(t, err)
	assert.True(t, exists)
}
