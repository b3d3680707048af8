package domain

import "time"

// AccountEvent is the payload published for account lifecycle changes.
type AccountEvent struct {
	AccountID  string    `json:"accountId"`
	Email      string    `json:"email"`
	OccurredAt time.Time `json:"occurredAt"`
}

// AvatarUpdatedEvent is published after a new avatar has been stored.
type AvatarUpdatedEvent struct {
	AccountID  string    `json:"accountId"`
	AvatarURL  string    `json:"avatarUrl"`
	OccurredAt time.Time `json:"occurredAt"`
}

// PasswordResetRequestedEvent carries what is needed to deliver a reset
// link. It is the only place the reset token leaves the service.
type PasswordResetRequestedEvent struct {
	AccountID  string    `json:"accountId"`
	Email      string    `json:"email"`
	ResetToken string    `json:"resetToken"`
	ResetURL   string    `json:"resetUrl"`
	ExpiresAt  time.Time `json:"expiresAt"`
	OccurredAt time.Time `json:"occurredAt"`
}
