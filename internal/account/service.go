// Package account implements the account lifecycle: registration, session
// login and logout, password change and reset, profile updates and avatar
// uploads.
package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/nfrund/accounts/internal/config"
	"github.com/nfrund/accounts/internal/database"
	"github.com/nfrund/accounts/internal/domain"
	"github.com/nfrund/accounts/internal/pubsub"
)

// Options configures a Service.
type Options struct {
	Repo    domain.AccountRepository
	Avatars domain.AvatarStorage
	// Events receives lifecycle events. Nil disables publishing.
	Events pubsub.Publisher
	Config config.Provider
	// Clock returns the current time. Nil means time.Now.
	Clock func() time.Time
	// HashCost is the bcrypt cost. Zero means bcrypt.DefaultCost.
	HashCost int
}

// Service exposes account lifecycle operations. It holds no per-account
// state and is safe for concurrent use.
type Service struct {
	repo     domain.AccountRepository
	avatars  domain.AvatarStorage
	events   pubsub.Publisher
	cfg      config.Provider
	now      func() time.Time
	hashCost int
}

// NewService creates a Service. Repo and Config are required.
func NewService(opts Options) (*Service, error) {
	if opts.Repo == nil {
		return nil, errors.New("account service requires a repository")
	}
	if opts.Config == nil {
		return nil, errors.New("account service requires a config provider")
	}
	now := opts.Clock
	if now == nil {
		now = time.Now
	}
	return &Service{
		repo:     opts.Repo,
		avatars:  opts.Avatars,
		events:   opts.Events,
		cfg:      opts.Config,
		now:      now,
		hashCost: opts.HashCost,
	}, nil
}

// GetByToken returns the account holding the session token. Expiry is not
// checked.
func (s *Service) GetByToken(ctx context.Context, token string) (*domain.Account, error) {
	if token == "" {
		return nil, errNotFound
	}
	acct, err := s.repo.FindBySessionToken(ctx, token)
	if err != nil {
		return nil, domain.Internal(fmt.Errorf("find account by token: %w", err))
	}
	if acct == nil {
		return nil, errNotFound
	}
	return acct.Public(), nil
}

// Logout clears the session token of the account.
func (s *Service) Logout(ctx context.Context, accountID string) (*domain.Account, error) {
	acct, err := s.findByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if acct == nil {
		return nil, errNotFound
	}

	acct.ClearSession()
	saved, err := s.save(ctx, acct)
	if err != nil {
		return nil, err
	}

	s.publishAccountEvent(ctx, pubsub.AccountLoggedOut, saved)
	slog.InfoContext(ctx, "Account logged out", "account_id", saved.IDString())
	return saved.Public(), nil
}

// Login verifies the credentials and starts a new session.
func (s *Service) Login(ctx context.Context, email, password string) (*domain.Account, error) {
	acct, err := s.findByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if acct == nil {
		return nil, errLoginNotFound
	}
	if !acct.ComparePassword(password) {
		slog.WarnContext(ctx, "Failed login attempt", "account_id", acct.IDString())
		return nil, errBadCredentials
	}

	saved, err := s.startSession(ctx, acct)
	if err != nil {
		return nil, err
	}

	s.publishAccountEvent(ctx, pubsub.AccountLoggedIn, saved)
	slog.InfoContext(ctx, "Account logged in", "account_id", saved.IDString())
	return saved.Public(), nil
}

// TokenLogin exchanges a valid session token for a fresh one with a new
// expiry (sliding session). The old token stops working.
func (s *Service) TokenLogin(ctx context.Context, token string) (*domain.Account, error) {
	if token == "" {
		return nil, errInvalidSession
	}
	acct, err := s.repo.FindBySessionToken(ctx, token)
	if err != nil {
		return nil, domain.Internal(fmt.Errorf("find account by token: %w", err))
	}
	if acct == nil {
		return nil, errInvalidSession
	}
	if acct.SessionExpired(s.now()) {
		return nil, errExpiredSession
	}

	saved, err := s.startSession(ctx, acct)
	if err != nil {
		return nil, err
	}

	s.publishAccountEvent(ctx, pubsub.AccountLoggedIn, saved)
	slog.DebugContext(ctx, "Session token rotated", "account_id", saved.IDString())
	return saved.Public(), nil
}

// Create registers a new account and logs it in. The returned account
// carries the initial session token but never the password hash.
func (s *Service) Create(ctx context.Context, email, password string) (*domain.Account, error) {
	email = normalizeEmail(email)
	acct := &domain.Account{Email: email}
	if err := acct.Validate(); err != nil {
		return nil, errInvalidEmail.Wrap(err)
	}
	if err := checkPassword(password); err != nil {
		return nil, err
	}

	existing, err := s.findByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, errEmailTaken
	}

	hash, err := HashPassword(password, s.hashCost)
	if err != nil {
		return nil, domain.Internal(err)
	}
	acct.PasswordHash = hash

	token, err := generateSecureToken(tokenBytes)
	if err != nil {
		return nil, domain.Internal(err)
	}
	acct.SetSessionToken(token, s.now().Add(s.cfg.GetSessionTTL()))

	// The pre-check above is advisory; the store's unique constraint decides
	// concurrent registrations.
	created, err := s.repo.Create(ctx, acct)
	if err != nil {
		if errors.Is(err, domain.ErrEmailTaken) {
			return nil, errEmailTaken
		}
		return nil, domain.Internal(fmt.Errorf("create account: %w", err))
	}

	s.publishAccountEvent(ctx, pubsub.AccountCreated, created)
	slog.InfoContext(ctx, "Account created", "account_id", created.IDString())
	return created.Public(), nil
}

// Update applies the non-nil fields of upd to the account and returns the
// account after the update.
func (s *Service) Update(ctx context.Context, accountID string, upd domain.AccountUpdate) (*domain.Account, error) {
	if upd.Email != nil {
		normalized := normalizeEmail(*upd.Email)
		upd.Email = &normalized
	}
	if err := upd.Validate(); err != nil {
		return nil, errInvalidUpdate.Wrap(err)
	}

	current, err := s.findByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, errUpdateMissing
	}
	if upd.IsEmpty() {
		return current.Public(), nil
	}

	if upd.Email != nil && *upd.Email != current.Email {
		other, err := s.findByEmail(ctx, *upd.Email)
		if err != nil {
			return nil, err
		}
		if other != nil {
			return nil, errEmailTaken
		}
	}

	updated, err := s.repo.UpdateFields(ctx, current.IDString(), upd.Fields())
	if err != nil {
		if errors.Is(err, domain.ErrEmailTaken) {
			return nil, errEmailTaken
		}
		return nil, domain.Internal(fmt.Errorf("update account: %w", err))
	}
	if updated == nil {
		return nil, errUpdateMissing
	}

	slog.InfoContext(ctx, "Account updated", "account_id", updated.IDString(), "fields", len(upd.Fields()))
	return updated.Public(), nil
}

// UpdatePassword replaces the password after verifying the current one.
// On any failure the stored hash is left unchanged.
func (s *Service) UpdatePassword(ctx context.Context, accountID, currentPassword, newPassword string) (*domain.Account, error) {
	acct, err := s.findByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if acct == nil {
		return nil, errNotFound
	}
	if !acct.ComparePassword(currentPassword) {
		return nil, errWrongPassword
	}
	if err := checkPassword(newPassword); err != nil {
		return nil, err
	}

	hash, err := HashPassword(newPassword, s.hashCost)
	if err != nil {
		return nil, domain.Internal(err)
	}
	acct.PasswordHash = hash

	saved, err := s.save(ctx, acct)
	if err != nil {
		return nil, err
	}

	s.publishAccountEvent(ctx, pubsub.PasswordChanged, saved)
	slog.InfoContext(ctx, "Password changed", "account_id", saved.IDString())
	return saved.Public(), nil
}

// ResetPassword sets a new password using a reset token issued by
// ForgotPassword. The token is consumed on success.
func (s *Service) ResetPassword(ctx context.Context, resetToken, email, newPassword string) (*domain.Message, error) {
	acct, err := s.findByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if acct == nil {
		return nil, errResetNoAccount
	}
	if !acct.ValidResetToken(resetToken, s.now()) {
		return nil, errInvalidReset
	}
	if err := checkPassword(newPassword); err != nil {
		return nil, err
	}

	hash, err := HashPassword(newPassword, s.hashCost)
	if err != nil {
		return nil, domain.Internal(err)
	}
	acct.PasswordHash = hash
	acct.ClearResetToken()

	saved, err := s.save(ctx, acct)
	if err != nil {
		return nil, err
	}

	s.publishAccountEvent(ctx, pubsub.PasswordChanged, saved)
	slog.InfoContext(ctx, "Password reset", "account_id", saved.IDString())
	return &domain.Message{Message: "Your password has been reset."}, nil
}

// ForgotPassword issues a reset token and publishes the reset link for
// delivery. The token is never part of the returned message.
func (s *Service) ForgotPassword(ctx context.Context, email string) (*domain.Message, error) {
	acct, err := s.findByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if acct == nil {
		return nil, errResetNoAccount
	}

	token, err := generateSecureToken(tokenBytes)
	if err != nil {
		return nil, domain.Internal(err)
	}
	expiresAt := s.now().Add(s.cfg.GetResetTokenTTL())
	acct.SetResetToken(token, expiresAt)

	saved, err := s.save(ctx, acct)
	if err != nil {
		return nil, err
	}

	if s.events != nil {
		evt := domain.PasswordResetRequestedEvent{
			AccountID:  saved.IDString(),
			Email:      saved.Email,
			ResetToken: token,
			ResetURL:   s.resetURL(token, saved.Email),
			ExpiresAt:  expiresAt.UTC(),
			OccurredAt: s.now().UTC(),
		}
		if err := pubsub.Publish(ctx, s.events, pubsub.PasswordResetRequested, saved.IDString(), evt); err != nil {
			return nil, domain.Internal(fmt.Errorf("publish reset request: %w", err))
		}
	}

	slog.InfoContext(ctx, "Password reset requested", "account_id", saved.IDString())
	return &domain.Message{Message: "A password reset link has been sent to " + saved.Email + "."}, nil
}

// UpdateAvatar stores a new avatar image for the account and points its
// AvatarURL at it.
func (s *Service) UpdateAvatar(ctx context.Context, accountID string, upload domain.AvatarUpload) (*domain.Account, error) {
	if s.avatars == nil {
		return nil, errAvatarStoreError.Wrap(errors.New("no avatar storage configured"))
	}

	acct, err := s.findByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if acct == nil {
		return nil, errNotFound
	}

	filename, err := s.avatars.Store(ctx, acct.Key(), upload)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidAvatar) {
			return nil, errInvalidAvatar.Wrap(err)
		}
		return nil, errAvatarStoreError.Wrap(err)
	}

	previous := s.ownedAvatar(acct)
	avatarURL := s.avatarURL(filename)
	acct.AvatarURL = &avatarURL

	saved, err := s.save(ctx, acct)
	if err != nil {
		// Same name as the stored avatar: the URL still points at it.
		if filename == previous {
			return nil, err
		}
		if rmErr := s.avatars.Remove(ctx, filename); rmErr != nil {
			slog.ErrorContext(ctx, "Failed to remove avatar after save failure",
				"account_id", acct.IDString(), "file", filename, "error", rmErr)
		}
		return nil, err
	}

	if previous != "" && previous != filename {
		if err := s.avatars.Remove(ctx, previous); err != nil {
			slog.WarnContext(ctx, "Failed to remove previous avatar", "account_id", saved.IDString(), "file", previous, "error", err)
		}
	}

	if s.events != nil {
		evt := domain.AvatarUpdatedEvent{AccountID: saved.IDString(), AvatarURL: avatarURL, OccurredAt: s.now().UTC()}
		if err := pubsub.Publish(ctx, s.events, pubsub.AvatarUpdated, saved.IDString(), evt); err != nil {
			slog.WarnContext(ctx, "Failed to publish event", "topic", pubsub.AvatarUpdated.Name(), "error", err)
		}
	}
	slog.InfoContext(ctx, "Avatar updated", "account_id", saved.IDString(), "file", filename)
	return saved.Public(), nil
}

func (s *Service) startSession(ctx context.Context, acct *domain.Account) (*domain.Account, error) {
	token, err := generateSecureToken(tokenBytes)
	if err != nil {
		return nil, domain.Internal(err)
	}
	acct.SetSessionToken(token, s.now().Add(s.cfg.GetSessionTTL()))
	return s.save(ctx, acct)
}

func (s *Service) findByID(ctx context.Context, accountID string) (*domain.Account, error) {
	if strings.TrimSpace(accountID) == "" {
		return nil, nil
	}
	acct, err := s.repo.FindByID(ctx, accountID)
	if errors.Is(err, database.ErrInvalidID) {
		return nil, nil
	}
	if err != nil {
		return nil, domain.Internal(fmt.Errorf("find account %s: %w", accountID, err))
	}
	return acct, nil
}

func (s *Service) findByEmail(ctx context.Context, email string) (*domain.Account, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, nil
	}
	acct, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, domain.Internal(fmt.Errorf("find account by email: %w", err))
	}
	return acct, nil
}

func (s *Service) save(ctx context.Context, acct *domain.Account) (*domain.Account, error) {
	saved, err := s.repo.Save(ctx, acct)
	if err != nil {
		if errors.Is(err, domain.ErrEmailTaken) {
			return nil, errEmailTaken
		}
		return nil, domain.Internal(fmt.Errorf("save account %s: %w", acct.IDString(), err))
	}
	return saved, nil
}

func (s *Service) publishAccountEvent(ctx context.Context, event pubsub.Event[domain.AccountEvent], acct *domain.Account) {
	if s.events == nil {
		return
	}
	evt := domain.AccountEvent{AccountID: acct.IDString(), Email: acct.Email, OccurredAt: s.now().UTC()}
	if err := pubsub.Publish(ctx, s.events, event, acct.IDString(), evt); err != nil {
		slog.WarnContext(ctx, "Failed to publish event", "topic", event.Name(), "error", err)
	}
}

// avatarURL is host:port + web path + file name, e.g.
// "http://localhost:8080/images/abc.png".
func (s *Service) avatarURL(filename string) string {
	return s.cfg.GetAppHost() + ":" + s.cfg.GetAppPort() + s.cfg.GetImageWebPath() + filename
}

// ownedAvatar returns the file name behind acct's AvatarURL when it is
// one this service wrote for the account, and "" otherwise. AvatarURL can
// be set through Update, so anything else must never be removed.
func (s *Service) ownedAvatar(acct *domain.Account) string {
	if !acct.HasAvatar() {
		return ""
	}
	name, ok := strings.CutPrefix(*acct.AvatarURL, s.avatarURL(""))
	if !ok || strings.Contains(name, "/") {
		return ""
	}
	ext := path.Ext(name)
	if ext == "" || name != acct.Key()+ext {
		return ""
	}
	return name
}

func (s *Service) resetURL(token, email string) string {
	q := url.Values{}
	q.Set("token", token)
	q.Set("email", email)
	return strings.TrimRight(s.cfg.GetAppBaseURL(), "/") + "/auth/reset-password?" + q.Encode()
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
