package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"

	"github.com/nfrund/accounts/internal/domain"
)

var (
	// ErrUnsupportedExtension is returned for uploads whose file extension is
	// not on the allow-list.
	ErrUnsupportedExtension = fmt.Errorf("%w: unsupported file type", domain.ErrInvalidAvatar)
	// ErrTooLarge is returned for uploads above the configured size limit.
	ErrTooLarge = fmt.Errorf("%w: file too large", domain.ErrInvalidAvatar)
	// ErrInvalidKey is returned when the account key cannot be used as a file name.
	ErrInvalidKey = fmt.Errorf("%w: account key cannot be used as a file name", domain.ErrInvalidAvatar)
)

// AvatarUploader stores one avatar image per account, named after the
// account key. A new upload replaces the previous file with the same
// extension.
type AvatarUploader struct {
	store      Store
	extensions []string
	maxBytes   int64
}

var _ domain.AvatarStorage = (*AvatarUploader)(nil)

// NewAvatarUploader creates an uploader accepting the given extensions
// (without dot, case-insensitive). A maxBytes of zero or less disables the
// size check.
func NewAvatarUploader(store Store, extensions []string, maxBytes int64) *AvatarUploader {
	exts := make([]string, 0, len(extensions))
	for _, e := range extensions {
		exts = append(exts, strings.ToLower(strings.TrimPrefix(strings.TrimSpace(e), ".")))
	}
	return &AvatarUploader{store: store, extensions: exts, maxBytes: maxBytes}
}

// Store writes the upload as "<accountKey>.<ext>" and returns that name.
func (u *AvatarUploader) Store(ctx context.Context, accountKey string, upload domain.AvatarUpload) (string, error) {
	if accountKey == "" || strings.ContainsAny(accountKey, `/\`) || strings.Contains(accountKey, "..") {
		return "", ErrInvalidKey
	}

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(upload.Filename), "."))
	if ext == "" || !slices.Contains(u.extensions, ext) {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedExtension, filepath.Ext(upload.Filename))
	}
	if u.maxBytes > 0 && upload.Size > u.maxBytes {
		return "", ErrTooLarge
	}
	if upload.Content == nil {
		return "", errors.New("avatar upload has no content")
	}

	name := accountKey + "." + ext
	reader := upload.Content
	if u.maxBytes > 0 {
		// The declared size is client-supplied.
		reader = io.LimitReader(upload.Content, u.maxBytes+1)
	}

	written, err := u.store.Save(ctx, name, reader)
	if err != nil {
		_ = u.store.Delete(ctx, name)
		return "", fmt.Errorf("save avatar %s: %w", name, err)
	}
	if u.maxBytes > 0 && written > u.maxBytes {
		_ = u.store.Delete(ctx, name)
		return "", ErrTooLarge
	}

	slog.DebugContext(ctx, "Avatar stored", "file", name, "bytes", written)
	return name, nil
}

// Remove deletes a stored avatar file.
func (u *AvatarUploader) Remove(ctx context.Context, filename string) error {
	return u.store.Delete(ctx, filepath.Base(filename))
}
