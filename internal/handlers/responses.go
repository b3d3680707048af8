package handlers

import (
	"time"

	"github.com/nfrund/accounts/internal/domain"
)

// ErrorResponse is the standard format for API error responses.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// AccountResponse is the public view of an account. Credentials and
// tokens are never part of it.
type AccountResponse struct {
	ID        string     `json:"id"`
	Email     string     `json:"email"`
	Name      *string    `json:"name,omitempty"`
	AvatarURL *string    `json:"avatarUrl,omitempty"`
	LoggedIn  bool       `json:"loggedIn"`
	CreatedAt *time.Time `json:"createdAt,omitempty"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

// SessionResponse is returned by the endpoints that issue a session token.
type SessionResponse struct {
	Account   *AccountResponse `json:"account"`
	Token     string           `json:"token"`
	ExpiresAt time.Time        `json:"expiresAt"`
}

// NewAccountResponse creates an AccountResponse from a domain.Account.
func NewAccountResponse(a *domain.Account) *AccountResponse {
	resp := &AccountResponse{
		ID:        a.IDString(),
		Email:     a.Email,
		Name:      a.Name,
		AvatarURL: a.AvatarURL,
		LoggedIn:  a.IsLoggedIn(),
	}
	if a.CreatedAt != nil {
		t := a.CreatedAt.Time
		resp.CreatedAt = &t
	}
	if a.UpdatedAt != nil {
		t := a.UpdatedAt.Time
		resp.UpdatedAt = &t
	}
	return resp
}

// NewSessionResponse creates a SessionResponse for an account holding a
// session token.
func NewSessionResponse(a *domain.Account) *SessionResponse {
	resp := &SessionResponse{Account: NewAccountResponse(a)}
	if a.SessionToken != nil {
		resp.Token = *a.SessionToken
	}
	if a.TokenExpiry != nil {
		resp.ExpiresAt = a.TokenExpiry.Time
	}
	return resp
}
