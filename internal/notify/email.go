package notify

import (
	"context"
	"errors"
	"fmt"
	"net/textproto"
	"strings"
	"time"

	"github.com/wneessen/go-mail"

	"applicant-interview/internal/shared/telemetry"
)

// EmailOptions configures SMTP submission over implicit TLS.
type EmailOptions struct {
	Host     string
	Port     int
	Username string
	Password string
	Timeout  time.Duration
}

// Email sends plain-text mail through an authenticated SMTP server.
type Email struct {
	opts EmailOptions
	// transport selects connection security and dialing.
	transport []mail.Option
	now       func() time.Time
}

// NewEmail constructs an Email notifier that dials host:port with TLS.
func NewEmail(opts EmailOptions) *Email {
	if opts.Port == 0 {
		opts.Port = 465
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	return &Email{
		opts:      opts,
		transport: []mail.Option{mail.WithSSL()},
		now:       time.Now,
	}
}

func (e *Email) Name() string { return "email" }

// Send delivers body to recipient. Authentication, protocol and network failures are
// logged and reported as false.
func (e *Email) Send(ctx context.Context, subject, body, recipient string) bool {
	stage, err := e.send(ctx, subject, body, recipient)
	if err != nil {
		msg := "notify.email_failed"
		if stage == "auth" {
			msg = "notify.email_auth_failed"
		}
		telemetry.Error(msg, map[string]any{
			"stage": stage,
			"host":  e.opts.Host,
			"error": err,
		})
		return false
	}
	telemetry.Info("notify.email_sent", map[string]any{"host": e.opts.Host, "bytes": len(body)})
	return true
}

func (e *Email) send(ctx context.Context, subject, body, recipient string) (string, error) {
	if strings.TrimSpace(recipient) == "" {
		return "config", fmt.Errorf("recipient is required")
	}
	if strings.TrimSpace(e.opts.Username) == "" {
		return "config", fmt.Errorf("sender address is required")
	}

	msg, err := e.message(subject, body, recipient)
	if err != nil {
		return "message", err
	}

	opts := append([]mail.Option{
		mail.WithPort(e.opts.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(e.opts.Username),
		mail.WithPassword(e.opts.Password),
		mail.WithTimeout(e.opts.Timeout),
	}, e.transport...)
	client, err := mail.NewClient(e.opts.Host, opts...)
	if err != nil {
		return "config", err
	}

	ctx, cancel := context.WithTimeout(ctx, e.opts.Timeout)
	defer cancel()
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return sendStage(err), err
	}
	return "", nil
}

func (e *Email) message(subject, body, recipient string) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(e.opts.Username); err != nil {
		return nil, fmt.Errorf("sender address: %w", err)
	}
	if err := msg.To(recipient); err != nil {
		return nil, fmt.Errorf("recipient address: %w", err)
	}
	msg.Subject(subject)
	msg.SetDateWithValue(e.now())
	msg.SetBodyString(mail.TypeTextPlain, body)
	return msg, nil
}

// sendStage names the step a DialAndSend error came from.
func sendStage(err error) string {
	var sendErr *mail.SendError
	if errors.As(err, &sendErr) {
		return "send"
	}
	var reply *textproto.Error
	if errors.As(err, &reply) && (reply.Code == 534 || reply.Code == 535) {
		return "auth"
	}
	return "dial"
}
