package pubsub

import "github.com/nfrund/accounts/internal/domain"

// Account lifecycle events.
var (
	AccountCreated = NewEvent[domain.AccountEvent](
		"accounts.created", "An account was registered")
	AccountLoggedIn = NewEvent[domain.AccountEvent](
		"accounts.logged_in", "A session token was issued")
	AccountLoggedOut = NewEvent[domain.AccountEvent](
		"accounts.logged_out", "A session token was revoked")
	PasswordChanged = NewEvent[domain.AccountEvent](
		"accounts.password_changed", "A password was changed or reset")
	PasswordResetRequested = NewEvent[domain.PasswordResetRequestedEvent](
		"accounts.password_reset_requested", "A password reset link must be delivered")
	AvatarUpdated = NewEvent[domain.AvatarUpdatedEvent](
		"accounts.avatar_updated", "A new avatar image was stored")
)
