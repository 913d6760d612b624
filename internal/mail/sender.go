// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Labyrinth Contributors

package mail

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"log/slog"
	"net"
	"net/smtp"
	"net/textproto"
	"strconv"
	"text/template"

	"github.com/samber/oops"

	"github.com/labyrinth-game/labyrinth/internal/auth"
	"github.com/labyrinth-game/labyrinth/pkg/errutil"
)

// Error codes returned by this package.
const (
	CodeQueueFull   = "MAIL_QUEUE_FULL"
	CodeClosed      = "MAIL_CLOSED"
	CodeUnavailable = "MAIL_UNAVAILABLE"
	CodeRejected    = "MAIL_REJECTED"
)

// Sender delivers one message synchronously.
type Sender interface {
	Send(ctx context.Context, msg auth.ActivationMessage) error
}

// LogSender writes messages to the log instead of sending them. The PIN is
// logged, so it is meant for development only.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender creates a LogSender.
func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

// Send logs the message.
func (s *LogSender) Send(ctx context.Context, msg auth.ActivationMessage) error {
	s.logger.InfoContext(ctx, "activation mail",
		"username", msg.Username,
		"email", msg.Email,
		"pin", msg.PIN,
	)
	return nil
}

// SMTPConfig addresses the outgoing mail server.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPSender delivers over SMTP, upgrading with STARTTLS and authenticating
// when the server offers them.
type SMTPSender struct {
	cfg    SMTPConfig
	dialer net.Dialer
}

// NewSMTPSender creates an SMTPSender.
func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	return &SMTPSender{cfg: cfg}
}

var activationTemplate = template.Must(template.New("activation").Parse(
	"From: {{.From}}\r\n" +
		"To: {{.To}}\r\n" +
		"Subject: Your Labyrinth activation PIN\r\n" +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: text/plain; charset=UTF-8\r\n" +
		"\r\n" +
		"Hello {{.Username}},\r\n" +
		"\r\n" +
		"your activation PIN is {{.PIN}}.\r\n",
))

// Send delivers msg. Connection failures are transient; rejections by the
// server are not.
func (s *SMTPSender) Send(ctx context.Context, msg auth.ActivationMessage) error {
	var body bytes.Buffer
	err := activationTemplate.Execute(&body, map[string]string{
		"From":     s.cfg.From,
		"To":       msg.Email,
		"Username": msg.Username,
		"PIN":      msg.PIN,
	})
	if err != nil {
		return oops.Code(CodeRejected).Wrap(err)
	}

	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	conn, err := s.dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return errutil.Transient(CodeUnavailable).With("addr", addr).Wrap(err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline) //nolint:errcheck // failures surface on the next read
	}

	client, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		_ = conn.Close() //nolint:errcheck // handshake error takes precedence
		return errutil.Transient(CodeUnavailable).With("addr", addr).Wrap(err)
	}
	defer client.Close() //nolint:errcheck // Quit already reported the outcome

	if err := s.deliver(client, msg.Email, body.Bytes()); err != nil {
		return classify(err).With("addr", addr).Wrap(err)
	}
	return nil
}

func (s *SMTPSender) deliver(c *smtp.Client, to string, body []byte) error {
	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: s.cfg.Host, MinVersion: tls.VersionTLS12}); err != nil {
			return err
		}
	}
	if s.cfg.Username != "" {
		if ok, _ := c.Extension("AUTH"); ok {
			if err := c.Auth(smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)); err != nil {
				return err
			}
		}
	}
	if err := c.Mail(s.cfg.From); err != nil {
		return err
	}
	if err := c.Rcpt(to); err != nil {
		return err
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(body); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return c.Quit()
}

// classify treats network errors and 4xx replies as transient.
func classify(err error) oops.OopsErrorBuilder {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return errutil.Transient(CodeUnavailable)
	}
	var protoErr *textproto.Error
	if errors.As(err, &protoErr) && protoErr.Code >= 400 && protoErr.Code < 500 {
		return errutil.Transient(CodeUnavailable)
	}
	return oops.Code(CodeRejected)
}
