package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/nfrund/accounts/internal/config"
	"github.com/nfrund/accounts/internal/domain"
	"github.com/nfrund/accounts/internal/handlers"
	"github.com/nfrund/accounts/internal/server"
	"github.com/nfrund/accounts/internal/testutils"
	"github.com/samber/do/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type outbox struct {
	mu   sync.Mutex
	sent []string
}

func (o *outbox) Send(to, subject, htmlBody string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sent = append(o.sent, htmlBody)
	return nil
}

func (o *outbox) count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.sent)
}

func newTestConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := testutils.NewTestConfig()
	cfg.ImagePath = t.TempDir()
	return cfg
}

func setupServer(t *testing.T) (*server.Server, *outbox) {
	t.Helper()

	injector := server.NewInjector(newTestConfig(t))
	mail := &outbox{}
	do.OverrideValue[domain.EmailSender](injector, mail)

	s, err := server.New(injector)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.Shutdown(ctx)
	})
	return s, mail
}

func send(t *testing.T, s *server.Server, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.E.ServeHTTP(rec, req)
	return rec
}

func jsonRequest(t *testing.T, method, target string, body any) *http.Request {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(method, target, bytes.NewReader(b))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}

func TestHealth(t *testing.T) {
	s, _ := setupServer(t)

	rec := send(t, s, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","database":"memory"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))
}

func TestUnknownRouteIsJSON(t *testing.T) {
	s, _ := setupServer(t)

	rec := send(t, s, httptest.NewRequest(http.MethodGet, "/nope", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Header().Get(echo.HeaderContentType), echo.MIMEApplicationJSON)
}

func TestProtectedRoutesRequireSession(t *testing.T) {
	s, _ := setupServer(t)

	for _, r := range []struct{ method, path string }{
		{http.MethodGet, "/accounts/me"},
		{http.MethodPatch, "/accounts/me"},
		{http.MethodPut, "/accounts/me/password"},
		{http.MethodPost, "/accounts/me/avatar"},
		{http.MethodPost, "/auth/logout"},
	} {
		t.Run(r.method+" "+r.path, func(t *testing.T) {
			rec := send(t, s, httptest.NewRequest(r.method, r.path, nil))
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestAccountLifecycle(t *testing.T) {
	s, mail := setupServer(t)

	rec := send(t, s, jsonRequest(t, http.MethodPost, "/accounts", handlers.CredentialsRequest{
		Email: "flow@example.com", Password: "a-secure-password-123",
	}))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var session handlers.SessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &session))
	authCookie := rec.Result().Cookies()[0]

	t.Run("cookie authenticates", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/accounts/me", nil)
		req.AddCookie(authCookie)
		rec := send(t, s, req)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "flow@example.com")
	})

	t.Run("avatar is served from the image path", func(t *testing.T) {
		var body bytes.Buffer
		w := multipart.NewWriter(&body)
		part, err := w.CreateFormFile(handlers.AvatarFormField, "me.png")
		require.NoError(t, err)
		_, err = part.Write([]byte("fake png bytes"))
		require.NoError(t, err)
		require.NoError(t, w.Close())

		req := httptest.NewRequest(http.MethodPost, "/accounts/me/avatar", &body)
		req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+session.Token)
		rec := send(t, s, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var acct handlers.AccountResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &acct))
		require.NotNil(t, acct.AvatarURL)

		u, err := url.Parse(*acct.AvatarURL)
		require.NoError(t, err)
		rec = send(t, s, httptest.NewRequest(http.MethodGet, u.Path, nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "fake png bytes", rec.Body.String())
	})

	t.Run("forgot password sends the reset email", func(t *testing.T) {
		rec := send(t, s, jsonRequest(t, http.MethodPost, "/auth/forgot-password", handlers.ForgotPasswordRequest{
			Email: "flow@example.com",
		}))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		assert.Eventually(t, func() bool { return mail.count() == 1 }, 2*time.Second, 10*time.Millisecond)
	})
}

func TestStartStopsOnCancel(t *testing.T) {
	s, _ := setupServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx, "127.0.0.1:0") }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop after cancel")
	}
}

func TestUnknownStoreDriver(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.StoreDriver = "sqlite"

	_, err := server.New(server.NewInjector(cfg))
	assert.ErrorContains(t, err, "unknown store driver")
}
