package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/nfrund/accounts/internal/domain"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingStore struct {
	*AferoStore
	deleted []string
}

func (s *failingStore) Save(ctx context.Context, path string, reader io.Reader) (int64, error) {
	return 0, errors.New("disk full")
}

func (s *failingStore) Delete(ctx context.Context, path string) error {
	s.deleted = append(s.deleted, path)
	return nil
}

func newTestUploader(maxBytes int64) (*AvatarUploader, afero.Fs) {
	fs := afero.NewMemMapFs()
	return NewAvatarUploader(NewAferoStore(fs), []string{"jpg", ".PNG"}, maxBytes), fs
}

func upload(name, content string) domain.AvatarUpload {
	return domain.AvatarUpload{Filename: name, Size: int64(len(content)), Content: strings.NewReader(content)}
}

func TestAvatarUploader_Store(t *testing.T) {
	ctx := context.Background()

	t.Run("stores under the account key", func(t *testing.T) {
		u, fs := newTestUploader(1024)

		name, err := u.Store(ctx, "abc", upload("Me.PNG", "png-bytes"))
		require.NoError(t, err)
		assert.Equal(t, "abc.png", name)

		data, err := afero.ReadFile(fs, "abc.png")
		require.NoError(t, err)
		assert.Equal(t, "png-bytes", string(data))
	})

	t.Run("rejects unknown extension", func(t *testing.T) {
		u, fs := newTestUploader(1024)

		_, err := u.Store(ctx, "abc", upload("script.exe", "MZ"))
		assert.ErrorIs(t, err, ErrUnsupportedExtension)

		_, err = u.Store(ctx, "abc", upload("noext", "x"))
		assert.ErrorIs(t, err, ErrUnsupportedExtension)

		exists, _ := afero.Exists(fs, "abc.exe")
		assert.False(t, exists)
	})

	t.Run("rejects declared size over limit", func(t *testing.T) {
		u, _ := newTestUploader(4)
		_, err := u.Store(ctx, "abc", upload("a.jpg", "too-big"))
		assert.ErrorIs(t, err, ErrTooLarge)
	})

	t.Run("rejects actual size over limit", func(t *testing.T) {
		u, fs := newTestUploader(4)
		up := domain.AvatarUpload{Filename: "a.jpg", Size: 1, Content: bytes.NewReader([]byte("much more than four"))}

		_, err := u.Store(ctx, "abc", up)
		assert.ErrorIs(t, err, ErrTooLarge)

		exists, _ := afero.Exists(fs, "abc.jpg")
		assert.False(t, exists, "oversized file must be removed")
	})

	t.Run("rejects path-like keys", func(t *testing.T) {
		u, _ := newTestUploader(1024)
		for _, key := range []string{"", "../etc", "a/b"} {
			_, err := u.Store(ctx, key, upload("a.jpg", "x"))
			assert.ErrorIs(t, err, ErrInvalidKey, key)
		}
	})

	t.Run("save failure cleans up", func(t *testing.T) {
		fs := &failingStore{AferoStore: NewAferoStore(afero.NewMemMapFs())}
		u := NewAvatarUploader(fs, []string{"jpg"}, 0)

		_, err := u.Store(ctx, "abc", upload("a.jpg", "x"))
		require.Error(t, err)
		assert.Equal(t, []string{"abc.jpg"}, fs.deleted)
	})
}

func TestAvatarUploader_Remove(t *testing.T) {
	u, fs := newTestUploader(1024)
	ctx := context.Background()

	name, err := u.Store(ctx, "abc", upload("a.jpg", "x"))
	require.NoError(t, err)
	require.NoError(t, u.Remove(ctx, name))

	exists, _ := afero.Exists(fs, name)
	assert.False(t, exists)
}

func TestAvatarErrorsAreInvalidAvatar(t *testing.T) {
	for _, err := range []error{ErrUnsupportedExtension, ErrTooLarge, ErrInvalidKey} {
		assert.ErrorIs(t, err, domain.ErrInvalidAvatar)
	}
}
