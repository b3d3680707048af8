package testutils

import (
	"testing"

	"github.com/nfrund/accounts/internal/domain"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// NewTestAccount builds an unsaved account whose password hash matches password.
func NewTestAccount(t *testing.T, email, password string) *domain.Account {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return &domain.Account{
		Email:        email,
		PasswordHash: string(hash),
	}
}
