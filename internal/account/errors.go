package account

import (
	"net/http"

	"github.com/nfrund/accounts/internal/domain"
)

// Failures reported by Service. Callers match them by kind with errors.Is
// against the domain sentinels and read Status and Message with errors.As.
var (
	errNotFound         = domain.NewError(domain.KindNotFound, http.StatusNotFound, "account not found")
	errLoginNotFound    = domain.NewError(domain.KindNotFound, http.StatusUnprocessableEntity, "no account with this email")
	errBadCredentials   = domain.NewError(domain.KindUnauthorized, http.StatusUnauthorized, "invalid email or password")
	errInvalidSession   = domain.NewError(domain.KindUnauthorized, http.StatusUnauthorized, "invalid session token")
	errExpiredSession   = domain.NewError(domain.KindUnauthorized, http.StatusUnauthorized, "session token has expired")
	errEmailTaken       = domain.NewError(domain.KindConflict, http.StatusUnprocessableEntity, "an account with this email already exists")
	errInvalidEmail     = domain.NewError(domain.KindConflict, http.StatusUnprocessableEntity, "invalid email address")
	errEmptyPassword    = domain.NewError(domain.KindConflict, http.StatusUnprocessableEntity, "password is required")
	errLongPassword     = domain.NewError(domain.KindConflict, http.StatusUnprocessableEntity, "password must be at most 72 bytes long")
	errUpdateMissing    = domain.NewError(domain.KindConflict, http.StatusUnprocessableEntity, "account to update does not exist")
	errInvalidUpdate    = domain.NewError(domain.KindConflict, http.StatusUnprocessableEntity, "invalid account update")
	errWrongPassword    = domain.NewError(domain.KindConflict, http.StatusUnprocessableEntity, "current password is incorrect")
	errResetNoAccount   = domain.NewError(domain.KindConflict, http.StatusUnprocessableEntity, "no account with this email")
	errInvalidReset     = domain.NewError(domain.KindConflict, http.StatusUnprocessableEntity, "reset token is invalid or has expired")
	errInvalidAvatar    = domain.NewError(domain.KindUpload, http.StatusUnprocessableEntity, "avatar file was rejected")
	errAvatarStoreError = domain.NewError(domain.KindUpload, http.StatusInternalServerError, "avatar upload failed")
)
