package domain

import (
	"context"
	"crypto/subtle"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
	"golang.org/x/crypto/bcrypt"
)

// AccountTable is the document collection accounts are stored in.
const AccountTable = "account"

// validatorInstance is a package-level validator instance.
// Using a single instance is more efficient as it caches struct information.
var validatorInstance = validator.New()

// Account is a persisted user identity record.
//
// Optional state is modelled with pointers: a nil SessionToken means the
// account is logged out, a nil AvatarURL means no avatar has been uploaded
// and a nil ResetToken means no password reset is pending.
type Account struct {
	ID               *surrealmodels.RecordID       `json:"id,omitempty"`
	Email            string                        `json:"email" validate:"required,email"`
	PasswordHash     string                        `json:"password,omitempty"`
	Name             *string                       `json:"name,omitempty" validate:"omitempty,max=100"`
	SessionToken     *string                       `json:"sessionToken,omitempty"`
	TokenExpiry      *surrealmodels.CustomDateTime `json:"tokenExpiry,omitempty"`
	ResetToken       *string                       `json:"resetToken,omitempty"`
	ResetTokenExpiry *surrealmodels.CustomDateTime `json:"resetTokenExpiry,omitempty"`
	AvatarURL        *string                       `json:"avatarUrl,omitempty"`
	CreatedAt        *surrealmodels.CustomDateTime `json:"createdAt,omitempty"`
	UpdatedAt        *surrealmodels.CustomDateTime `json:"updatedAt,omitempty"`
}

// Validate runs validation checks on the Account using the defined tags.
func (a *Account) Validate() error {
	return validatorInstance.Struct(a)
}

// IDString returns the full record ID ("account:abc"), or "" for an unsaved account.
func (a *Account) IDString() string {
	if a == nil || a.ID == nil {
		return ""
	}
	return a.ID.String()
}

// Key returns the record key without the table prefix ("abc" for "account:abc").
func (a *Account) Key() string {
	if a == nil || a.ID == nil {
		return ""
	}
	return fmt.Sprint(a.ID.ID)
}

// IsLoggedIn reports whether the account currently holds a session token.
func (a *Account) IsLoggedIn() bool {
	return a.SessionToken != nil && *a.SessionToken != ""
}

// SessionExpired reports whether the session token is unusable at now.
// A token is expired from the instant now reaches TokenExpiry.
func (a *Account) SessionExpired(now time.Time) bool {
	if !a.IsLoggedIn() || a.TokenExpiry == nil {
		return true
	}
	return !now.Before(a.TokenExpiry.Time)
}

// SetSessionToken starts (or rotates) a session.
func (a *Account) SetSessionToken(token string, expiry time.Time) {
	a.SessionToken = &token
	a.TokenExpiry = &surrealmodels.CustomDateTime{Time: expiry.UTC()}
}

// ClearSession logs the account out.
func (a *Account) ClearSession() {
	a.SessionToken = nil
	a.TokenExpiry = nil
}

// SetResetToken records a pending password reset.
func (a *Account) SetResetToken(token string, expiry time.Time) {
	a.ResetToken = &token
	a.ResetTokenExpiry = &surrealmodels.CustomDateTime{Time: expiry.UTC()}
}

// ClearResetToken consumes the pending password reset.
func (a *Account) ClearResetToken() {
	a.ResetToken = nil
	a.ResetTokenExpiry = nil
}

// ValidResetToken reports whether token matches the pending reset and has
// not expired at now.
func (a *Account) ValidResetToken(token string, now time.Time) bool {
	if token == "" || a.ResetToken == nil || a.ResetTokenExpiry == nil {
		return false
	}
	if subtle.ConstantTimeCompare([]byte(*a.ResetToken), []byte(token)) != 1 {
		return false
	}
	return now.Before(a.ResetTokenExpiry.Time)
}

// ComparePassword reports whether plain matches the stored bcrypt hash.
func (a *Account) ComparePassword(plain string) bool {
	if a.PasswordHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(plain)) == nil
}

// HasAvatar reports whether an avatar URL is set.
func (a *Account) HasAvatar() bool {
	return a.AvatarURL != nil && *a.AvatarURL != ""
}

// Public returns a copy that is safe to hand to callers: the password hash
// and any pending reset token are removed.
func (a *Account) Public() *Account {
	if a == nil {
		return nil
	}
	cp := *a
	cp.PasswordHash = ""
	cp.ResetToken = nil
	cp.ResetTokenExpiry = nil
	return &cp
}

// AccountUpdate is a sparse update: only non-nil fields are applied.
// Credentials and tokens are deliberately absent.
type AccountUpdate struct {
	Email     *string `json:"email,omitempty" validate:"omitempty,email"`
	Name      *string `json:"name,omitempty" validate:"omitempty,max=100"`
	AvatarURL *string `json:"avatarUrl,omitempty" validate:"omitempty,url"`
}

// Validate runs validation checks on the update.
func (u AccountUpdate) Validate() error {
	return validatorInstance.Struct(u)
}

// IsEmpty reports whether the update would change nothing.
func (u AccountUpdate) IsEmpty() bool {
	return u.Email == nil && u.Name == nil && u.AvatarURL == nil
}

// Fields returns the document fields set by the update, keyed by their stored names.
func (u AccountUpdate) Fields() map[string]any {
	fields := make(map[string]any, 3)
	if u.Email != nil {
		fields["email"] = strings.TrimSpace(*u.Email)
	}
	if u.Name != nil {
		fields["name"] = *u.Name
	}
	if u.AvatarURL != nil {
		fields["avatarUrl"] = *u.AvatarURL
	}
	return fields
}

// Message is a plain acknowledgement returned by operations that have no
// account to return.
type Message struct {
	Message string `json:"message"`
}

// AccountRepository defines the contract for account document storage.
// Finders return (nil, nil) when nothing matches.
type AccountRepository interface {
	FindByID(ctx context.Context, id string) (*Account, error)
	FindByEmail(ctx context.Context, email string) (*Account, error)
	FindBySessionToken(ctx context.Context, token string) (*Account, error)

	// Create inserts a new account and assigns its ID. It returns
	// ErrEmailTaken when the email is already in use.
	Create(ctx context.Context, account *Account) (*Account, error)

	// Save replaces the stored document with account.
	Save(ctx context.Context, account *Account) (*Account, error)

	// UpdateFields merges fields into the stored document and returns the
	// document after the update, or (nil, nil) if id does not exist.
	UpdateFields(ctx context.Context, id string, fields map[string]any) (*Account, error)
}

// AvatarUpload is an incoming avatar image.
type AvatarUpload struct {
	Filename string
	Size     int64
	Content  io.Reader
}

// AvatarStorage persists avatar images.
type AvatarStorage interface {
	// Store writes the upload for the given account key and returns the
	// stored file name.
	Store(ctx context.Context, accountKey string, upload AvatarUpload) (string, error)
	// Remove deletes a previously stored file.
	Remove(ctx context.Context, filename string) error
}
