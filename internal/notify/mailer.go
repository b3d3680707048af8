// Package notify delivers account notifications that are triggered by
// events on the pub/sub bus.
package notify

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log/slog"

	"github.com/nfrund/accounts/internal/domain"
	"github.com/nfrund/accounts/internal/pubsub"
)

var resetEmail = template.Must(template.New("reset").Parse(
	`<p>A password reset was requested for {{.Email}}.</p>
<p><a href="{{.ResetURL}}">Choose a new password</a></p>
<p>The link expires at {{.ExpiresAt.Format "2006-01-02 15:04 MST"}}. If you did not request a reset you can ignore this email.</p>`))

const resetSubject = "Reset your password"

// Mailer sends password reset links.
type Mailer struct {
	sender domain.EmailSender
}

// NewMailer creates a Mailer sending through sender.
func NewMailer(sender domain.EmailSender) *Mailer {
	return &Mailer{sender: sender}
}

// Start subscribes the mailer to reset requests. Delivery stops when ctx
// is canceled or the subscriber is closed.
func (m *Mailer) Start(ctx context.Context, sub pubsub.Subscriber) error {
	return sub.Subscribe(ctx, pubsub.PasswordResetRequested.Name(), m.HandleResetRequested)
}

// HandleResetRequested renders and sends the reset email for one event.
func (m *Mailer) HandleResetRequested(ctx context.Context, msg pubsub.Message) error {
	evt, err := pubsub.PasswordResetRequested.Decode(msg)
	if err != nil {
		return err
	}
	if evt.Email == "" || evt.ResetURL == "" {
		return fmt.Errorf("reset event for %s is missing email or link", evt.AccountID)
	}

	var body bytes.Buffer
	if err := resetEmail.Execute(&body, evt); err != nil {
		return fmt.Errorf("render reset email: %w", err)
	}
	if err := m.sender.Send(evt.Email, resetSubject, body.String()); err != nil {
		return fmt.Errorf("send reset email to %s: %w", evt.AccountID, err)
	}

	slog.InfoContext(ctx, "Password reset email sent", "account_id", evt.AccountID)
	return nil
}
