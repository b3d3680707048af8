package notify

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nfrund/accounts/internal/domain"
	"github.com/nfrund/accounts/internal/pubsub"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sentEmail struct {
	to, subject, body string
}

type fakeSender struct {
	mu   sync.Mutex
	sent []sentEmail
	err  error
}

func (f *fakeSender) Send(to, subject, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentEmail{to, subject, body})
	return nil
}

func (f *fakeSender) Sent() []sentEmail {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentEmail(nil), f.sent...)
}

func resetMessage(t *testing.T, evt domain.PasswordResetRequestedEvent) pubsub.Message {
	t.Helper()
	payload, err := json.Marshal(evt)
	require.NoError(t, err)
	return pubsub.Message{Topic: pubsub.PasswordResetRequested.Name(), Payload: payload}
}

func TestMailer_HandleResetRequested(t *testing.T) {
	evt := domain.PasswordResetRequestedEvent{
		AccountID: "account:abc",
		Email:     "a@example.com",
		ResetURL:  "http://localhost:8080/reset-password?token=tok",
		ExpiresAt: time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC),
	}

	t.Run("sends the link", func(t *testing.T) {
		sender := &fakeSender{}
		m := NewMailer(sender)

		require.NoError(t, m.HandleResetRequested(context.Background(), resetMessage(t, evt)))

		sent := sender.Sent()
		require.Len(t, sent, 1)
		assert.Equal(t, "a@example.com", sent[0].to)
		assert.Equal(t, resetSubject, sent[0].subject)
		assert.Contains(t, sent[0].body, "reset-password?token=tok")
		assert.Contains(t, sent[0].body, "2030-01-01 12:00 UTC")
	})

	t.Run("sender failure is returned", func(t *testing.T) {
		m := NewMailer(&fakeSender{err: errors.New("smtp down")})
		assert.Error(t, m.HandleResetRequested(context.Background(), resetMessage(t, evt)))
	})

	t.Run("incomplete event", func(t *testing.T) {
		m := NewMailer(&fakeSender{})
		assert.Error(t, m.HandleResetRequested(context.Background(), resetMessage(t, domain.PasswordResetRequestedEvent{AccountID: "account:x"})))
	})

	t.Run("bad payload", func(t *testing.T) {
		m := NewMailer(&fakeSender{})
		msg := pubsub.Message{Topic: pubsub.PasswordResetRequested.Name(), Payload: []byte("not json")}
		assert.Error(t, m.HandleResetRequested(context.Background(), msg))
	})
}

func TestMailer_StartOnBus(t *testing.T) {
	bus := pubsub.NewWatermillBridge()
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sender := &fakeSender{}
	require.NoError(t, NewMailer(sender).Start(ctx, bus))

	err := pubsub.Publish(ctx, bus, pubsub.PasswordResetRequested, "account:abc", domain.PasswordResetRequestedEvent{
		AccountID: "account:abc",
		Email:     "a@example.com",
		ResetURL:  "http://localhost/reset?token=t",
		ExpiresAt: time.Now().Add(time.Hour),
	})
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return len(sender.Sent()) == 1 }, 2*time.Second, 10*time.Millisecond)
}
