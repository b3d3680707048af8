package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/nfrund/accounts/internal/domain"
	"github.com/nfrund/accounts/internal/middleware"
)

// AccountService is the account behaviour the HTTP layer depends on.
type AccountService interface {
	GetByToken(ctx context.Context, token string) (*domain.Account, error)
	Logout(ctx context.Context, accountID string) (*domain.Account, error)
	Login(ctx context.Context, email, password string) (*domain.Account, error)
	TokenLogin(ctx context.Context, token string) (*domain.Account, error)
	Create(ctx context.Context, email, password string) (*domain.Account, error)
	Update(ctx context.Context, accountID string, upd domain.AccountUpdate) (*domain.Account, error)
	UpdatePassword(ctx context.Context, accountID, currentPassword, newPassword string) (*domain.Account, error)
	ResetPassword(ctx context.Context, resetToken, email, newPassword string) (*domain.Message, error)
	ForgotPassword(ctx context.Context, email string) (*domain.Message, error)
	UpdateAvatar(ctx context.Context, accountID string, upload domain.AvatarUpload) (*domain.Account, error)
}

// AvatarFormField is the multipart field carrying the avatar image.
const AvatarFormField = "avatar"

// AccountHandler serves the account JSON API.
type AccountHandler struct {
	accounts AccountService
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(accounts AccountService) *AccountHandler {
	return &AccountHandler{accounts: accounts}
}

// Create handles POST /accounts.
func (h *AccountHandler) Create(c echo.Context) error {
	var req CredentialsRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	acct, err := h.accounts.Create(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return err
	}

	setAuthCookie(c, acct)
	return c.JSON(http.StatusCreated, NewSessionResponse(acct))
}

// Login handles POST /auth/login.
func (h *AccountHandler) Login(c echo.Context) error {
	var req CredentialsRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	acct, err := h.accounts.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return err
	}

	setAuthCookie(c, acct)
	return c.JSON(http.StatusOK, NewSessionResponse(acct))
}

// TokenLogin handles POST /auth/token. The current token is taken from the
// body, the bearer header or the auth cookie, in that order.
func (h *AccountHandler) TokenLogin(c echo.Context) error {
	var req TokenLoginRequest
	if c.Request().ContentLength != 0 {
		if err := c.Bind(&req); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
		}
	}
	token := req.Token
	if token == "" {
		token, _ = middleware.SessionToken(c)
	}

	acct, err := h.accounts.TokenLogin(c.Request().Context(), token)
	if err != nil {
		return err
	}

	setAuthCookie(c, acct)
	return c.JSON(http.StatusOK, NewSessionResponse(acct))
}

// Logout handles POST /auth/logout.
func (h *AccountHandler) Logout(c echo.Context) error {
	current, err := currentAccount(c)
	if err != nil {
		return err
	}

	acct, err := h.accounts.Logout(c.Request().Context(), current.IDString())
	if err != nil {
		return err
	}

	clearAuthCookie(c)
	return c.JSON(http.StatusOK, NewAccountResponse(acct))
}

// Me handles GET /accounts/me.
func (h *AccountHandler) Me(c echo.Context) error {
	current, err := currentAccount(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, NewAccountResponse(current))
}

// Update handles PATCH /accounts/me.
func (h *AccountHandler) Update(c echo.Context) error {
	current, err := currentAccount(c)
	if err != nil {
		return err
	}

	var req UpdateAccountRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	acct, err := h.accounts.Update(c.Request().Context(), current.IDString(), domain.AccountUpdate{
		Email:     req.Email,
		Name:      req.Name,
		AvatarURL: req.AvatarURL,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, NewAccountResponse(acct))
}

// UpdatePassword handles PUT /accounts/me/password.
func (h *AccountHandler) UpdatePassword(c echo.Context) error {
	current, err := currentAccount(c)
	if err != nil {
		return err
	}

	var req UpdatePasswordRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	acct, err := h.accounts.UpdatePassword(c.Request().Context(), current.IDString(), req.CurrentPassword, req.NewPassword)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, NewAccountResponse(acct))
}

// UpdateAvatar handles POST /accounts/me/avatar with a multipart upload.
func (h *AccountHandler) UpdateAvatar(c echo.Context) error {
	ctx := c.Request().Context()
	logger := middleware.FromContext(ctx)

	current, err := currentAccount(c)
	if err != nil {
		return err
	}

	fileHeader, err := c.FormFile(AvatarFormField)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "multipart field \""+AvatarFormField+"\" is required")
	}

	src, err := fileHeader.Open()
	if err != nil {
		logger.Error("Failed to open uploaded file", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "failed to read uploaded file")
	}
	defer src.Close()

	acct, err := h.accounts.UpdateAvatar(ctx, current.IDString(), domain.AvatarUpload{
		Filename: fileHeader.Filename,
		Size:     fileHeader.Size,
		Content:  src,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, NewAccountResponse(acct))
}

// ForgotPassword handles POST /auth/forgot-password.
func (h *AccountHandler) ForgotPassword(c echo.Context) error {
	var req ForgotPasswordRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	msg, err := h.accounts.ForgotPassword(c.Request().Context(), req.Email)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, msg)
}

// ResetPassword handles POST /auth/reset-password.
func (h *AccountHandler) ResetPassword(c echo.Context) error {
	var req ResetPasswordRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	msg, err := h.accounts.ResetPassword(c.Request().Context(), req.Token, req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, msg)
}

// currentAccount returns the account the Auth middleware authenticated.
func currentAccount(c echo.Context) (*domain.Account, error) {
	acct, ok := middleware.AccountFromContext(c)
	if !ok || acct.ID == nil {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
	}
	return acct, nil
}

// setAuthCookie stores the account's session token in the auth cookie for
// browser clients. The cookie expires with the session.
func setAuthCookie(c echo.Context, acct *domain.Account) {
	if acct.SessionToken == nil {
		return
	}
	cookie := new(http.Cookie)
	cookie.Name = middleware.AuthCookieName
	cookie.Value = *acct.SessionToken
	cookie.Path = "/"
	if acct.TokenExpiry != nil {
		cookie.Expires = acct.TokenExpiry.Time
	} else {
		cookie.Expires = time.Now().UTC().Add(24 * time.Hour)
	}
	cookie.HttpOnly = true
	// Secure only over TLS so local development over plain HTTP keeps working.
	cookie.Secure = c.Request().TLS != nil
	cookie.SameSite = http.SameSiteLaxMode
	c.SetCookie(cookie)
}

func clearAuthCookie(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     middleware.AuthCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.Request().TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}
