package mail

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/MrEthical07/pomoAuth/internal/logging"
)

// Message is the broker payload consumed by the mail worker.
type Message struct {
	Subject    string   `json:"subject"`
	Body       string   `json:"body"`
	Recipients []string `json:"recipients"`
}

// Sender delivers one message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Kind enumerates the account notifications.
type Kind string

const (
	KindWelcome         Kind = "welcome"
	KindPasswordChanged Kind = "password_changed"
	KindGoodbye         Kind = "goodbye"
)

// Compose renders the notification of kind for username.
func Compose(kind Kind, username, email string) (Message, error) {
	var subject, body string
	switch kind {
	case KindWelcome:
		subject = "Welcome!"
		body = fmt.Sprintf("Hello, %s!\n"+
			"Welcome to Pomodoro Time!\n"+
			"Your account has been created. You can now sign in with your credentials.\n"+
			"If you did not register with our service, please ignore this email.\n"+
			"Best regards,\n"+
			"The Pomodoro team", username)
	case KindPasswordChanged:
		subject = "Your password was changed"
		body = fmt.Sprintf("Hello, %s!\n"+
			"This is an automatic notice that the password of your Pomodoro Time account was changed.\n"+
			"All active sessions have been signed out.\n"+
			"If this was not you, contact support immediately.\n"+
			"Regards,\n"+
			"The Pomodoro team", username)
	case KindGoodbye:
		subject = "Your account was deleted"
		body = fmt.Sprintf("Hello, %s.\n"+
			"This is an automatic notice confirming that your Pomodoro Time account and all related data were deleted as requested.\n"+
			"If you want to come back, you will need to create a new account.\n"+
			"Thank you for being with us.\n"+
			"Regards,\n"+
			"The Pomodoro team\n", username)
	default:
		return Message{}, fmt.Errorf("mail: unknown notification kind %q", kind)
	}
	return Message{Subject: subject, Body: body, Recipients: []string{email}}, nil
}

// Notifier sends account notifications through a Sender.
type Notifier struct {
	sender Sender
	logger *slog.Logger
}

// NewNotifier returns a Notifier. A nil sender logs messages instead of
// delivering them.
func NewNotifier(sender Sender, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = logging.Discard()
	}
	if sender == nil {
		sender = LogSender{Logger: logger}
	}
	return &Notifier{sender: sender, logger: logger}
}

// Notify composes and sends a notification. Errors are logged and returned
// so callers may count them.
func (n *Notifier) Notify(ctx context.Context, kind Kind, username, email string) error {
	if n == nil {
		return nil
	}
	msg, err := Compose(kind, username, email)
	if err != nil {
		return err
	}
	if err := n.sender.Send(ctx, msg); err != nil {
		logging.FromContext(ctx, n.logger).WarnContext(ctx, "notification mail not sent", "kind", string(kind), "error", err)
		return err
	}
	return nil
}

// LogSender writes messages to a logger. It backs development setups
// without a broker.
type LogSender struct {
	Logger *slog.Logger
}

func (s LogSender) Send(ctx context.Context, msg Message) error {
	l := s.Logger
	if l == nil {
		l = logging.Discard()
	}
	l.InfoContext(ctx, "mail", "subject", msg.Subject, "recipients", msg.Recipients)
	return nil
}
