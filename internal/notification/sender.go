// Package notification delivers verification codes by email or phone.
package notification

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"users-service/internal/config"
	"users-service/internal/port"
	"users-service/internal/util"
)

const verificationSubject = "Email verification code"

var verificationTemplate = template.Must(template.New("email_verification").Parse(`<html>
<body>
<p>Your verification code:</p>
<h2>{{.Code}}</h2>
<p>If you did not request it, ignore this email.</p>
</body>
</html>`))

// Dialer sends composed messages. *gomail.Dialer satisfies it.
type Dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

type EmailSender struct {
	dialer Dialer
	from   string
}

func NewEmailSender(dialer Dialer, from string) *EmailSender {
	return &EmailSender{dialer: dialer, from: from}
}

// NewSMTPEmailSender dials the configured SMTP server for every message.
func NewSMTPEmailSender(cfg config.SMTPConfig) *EmailSender {
	return NewEmailSender(gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password), cfg.From)
}

func (s *EmailSender) SendCode(ctx context.Context, identifier, code string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var body bytes.Buffer
	if err := verificationTemplate.Execute(&body, struct{ Code string }{code}); err != nil {
		return fmt.Errorf("failed to render verification email: %w", err)
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", identifier)
	m.SetHeader("Subject", verificationSubject)
	m.SetBody("text/html", body.String())

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send verification email: %w", err)
	}
	return nil
}

// PhoneSender has no SMS gateway behind it. Outside production the code is
// written to the debug log so that phone flows can be exercised locally.
type PhoneSender struct {
	logger     *zap.Logger
	production bool
}

func NewPhoneSender(logger *zap.Logger, production bool) *PhoneSender {
	return &PhoneSender{logger: logger, production: production}
}

func (s *PhoneSender) SendCode(_ context.Context, identifier, code string) error {
	if s.production {
		return fmt.Errorf("sms delivery: %w", port.ErrDeliveryUnsupported)
	}
	s.logger.Info("Verification code issued without a gateway", util.Identifier(identifier))
	if ce := s.logger.Check(zap.DebugLevel, "Verification code for phone"); ce != nil {
		ce.Write(util.Identifier(identifier), zap.String("code", code))
	}
	return nil
}

// Dispatcher routes a code to the email or the phone sender by the shape of
// the identifier.
type Dispatcher struct {
	email port.NotificationSender
	phone port.NotificationSender
}

func NewDispatcher(email, phone port.NotificationSender) *Dispatcher {
	return &Dispatcher{email: email, phone: phone}
}

func (d *Dispatcher) SendCode(ctx context.Context, identifier, code string) error {
	switch {
	case util.IsEmail(identifier):
		return d.email.SendCode(ctx, identifier, code)
	case util.IsPhone(identifier):
		return d.phone.SendCode(ctx, identifier, code)
	default:
		return errors.New("identifier is neither an email nor a phone")
	}
}
