package pubsub

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nfrund/accounts/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatermillBridge_PublishSubscribe(t *testing.T) {
	bridge := NewWatermillBridge()
	defer bridge.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan Message, 1)
	err := bridge.Subscribe(ctx, "accounts.test", func(ctx context.Context, msg Message) error {
		received <- msg
		return nil
	})
	require.NoError(t, err)

	err = bridge.Publish(ctx, Message{
		Topic:     "accounts.test",
		AccountID: "account:abc",
		Payload:   []byte(`{"ok":true}`),
		Metadata:  map[string]string{"source": "test"},
	})
	require.NoError(t, err)

	select {
	case msg := <-received:
		assert.Equal(t, "accounts.test", msg.Topic)
		assert.Equal(t, "account:abc", msg.AccountID)
		assert.JSONEq(t, `{"ok":true}`, string(msg.Payload))
		assert.Equal(t, "test", msg.Metadata["source"])
		assert.NotContains(t, msg.Metadata, metaKeyTopic)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
	}
}

func TestWatermillBridge_HandlerErrorDoesNotRedeliver(t *testing.T) {
	bridge := NewWatermillBridge()
	defer bridge.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	calls := make(chan struct{}, 10)
	require.NoError(t, bridge.Subscribe(ctx, "accounts.failing", func(ctx context.Context, msg Message) error {
		calls <- struct{}{}
		return errors.New("boom")
	}))
	require.NoError(t, bridge.Publish(ctx, Message{Topic: "accounts.failing", Payload: []byte("{}")}))

	select {
	case <-calls:
	case <-time.After(2 * time.Second):
		t.Fatal("handler was not called")
	}
	time.Sleep(50 * time.Millisecond)
	assert.Len(t, calls, 0, "failed message must not be redelivered")
}

func TestTypedPublishAndDecode(t *testing.T) {
	rec := &recordingPublisher{}
	occurred := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	err := Publish(context.Background(), rec, AccountCreated, "account:abc", domain.AccountEvent{
		AccountID:  "account:abc",
		Email:      "a@example.com",
		OccurredAt: occurred,
	})
	require.NoError(t, err)
	require.Len(t, rec.msgs, 1)
	assert.Equal(t, "accounts.created", rec.msgs[0].Topic)
	assert.Equal(t, "account:abc", rec.msgs[0].AccountID)

	evt, err := AccountCreated.Decode(rec.msgs[0])
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", evt.Email)
	assert.True(t, occurred.Equal(evt.OccurredAt))

	_, err = AccountLoggedIn.Decode(rec.msgs[0])
	assert.Error(t, err, "decoding with the wrong event must fail")
}

func TestEventsCatalog(t *testing.T) {
	events := Events()

	names := make([]string, 0, len(events))
	for _, e := range events {
		names = append(names, e.Name)
	}
	assert.IsIncreasing(t, names)
	assert.Contains(t, names, "accounts.password_reset_requested")

	for _, e := range events {
		if e.Name == PasswordResetRequested.Name() {
			assert.Equal(t, "PasswordResetRequestedEvent", e.TypeName)
			assert.Contains(t, e.PayloadFields, "resetUrl")
		}
	}

	assert.Panics(t, func() { NewEvent[domain.AccountEvent]("accounts.created", "dup") })
}

type recordingPublisher struct {
	msgs []Message
}

func (r *recordingPublisher) Publish(ctx context.Context, msg Message) error {
	r.msgs = append(r.msgs, msg)
	return nil
}

func (r *recordingPublisher) Close() error { return nil }
