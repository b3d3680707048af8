package email

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nfrund/accounts/internal/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogSender(t *testing.T) {
	var buf bytes.Buffer
	sender := NewLogSender("noreply@example.com", slog.New(slog.NewJSONHandler(&buf, nil)))

	require.NoError(t, sender.Send("a@example.com", "Hello", "<p>hi</p>"))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "a@example.com", entry["to"])
	assert.Equal(t, "Hello", entry["subject"])
	assert.Equal(t, "noreply@example.com", entry["from"])
}

func TestResendSender(t *testing.T) {
	t.Run("posts the payload", func(t *testing.T) {
		var got resendPayload
		var auth string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth = r.Header.Get("Authorization")
			_ = json.NewDecoder(r.Body).Decode(&got)
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		sender := NewResendSender("key-123", "Accounts <noreply@example.com>")
		sender.endpoint = srv.URL

		require.NoError(t, sender.Send("a@example.com", "Reset", "<a>link</a>"))
		assert.Equal(t, "Bearer key-123", auth)
		assert.Equal(t, "a@example.com", got.To)
		assert.Equal(t, "Accounts <noreply@example.com>", got.From)
		assert.Equal(t, "<a>link</a>", got.HTML)
	})

	t.Run("reports API errors", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`{"name":"validation_error","message":"invalid to"}`))
		}))
		defer srv.Close()

		sender := NewResendSender("key", "")
		sender.endpoint = srv.URL

		err := sender.Send("bad", "s", "b")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid to")
	})
}

func TestNewEmailService(t *testing.T) {
	cfg := testutils.NewTestConfig()

	cfg.EmailProvider = "log"
	sender, err := NewEmailService(cfg)
	require.NoError(t, err)
	assert.IsType(t, &LogSender{}, sender)

	cfg.EmailProvider = "resend"
	cfg.EmailAPIKey = ""
	_, err = NewEmailService(cfg)
	assert.Error(t, err)

	cfg.EmailAPIKey = "key"
	sender, err = NewEmailService(cfg)
	require.NoError(t, err)
	assert.IsType(t, &ResendSender{}, sender)

	cfg.EmailProvider = "carrier-pigeon"
	_, err = NewEmailService(cfg)
	assert.Error(t, err)
}
