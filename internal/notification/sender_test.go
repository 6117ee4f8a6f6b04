package notification

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gopkg.in/gomail.v2"

	"users-service/internal/port"
)

type fakeDialer struct {
	sent []*gomail.Message
	err  error
}

func (d *fakeDialer) DialAndSend(m ...*gomail.Message) error {
	if d.err != nil {
		return d.err
	}
	d.sent = append(d.sent, m...)
	return nil
}

func TestEmailSenderComposesMessage(t *testing.T) {
	dialer := &fakeDialer{}
	sender := NewEmailSender(dialer, "noreply@example.com")

	if err := sender.SendCode(context.Background(), "ivan@example.com", "012345"); err != nil {
		t.Fatalf("SendCode: %v", err)
	}
	if len(dialer.sent) != 1 {
		t.Fatalf("sent %d messages", len(dialer.sent))
	}

	msg := dialer.sent[0]
	if got := msg.GetHeader("To"); len(got) != 1 || got[0] != "ivan@example.com" {
		t.Errorf("To = %v", got)
	}
	if got := msg.GetHeader("Subject"); len(got) != 1 || got[0] != verificationSubject {
		t.Errorf("Subject = %v", got)
	}

	var raw bytes.Buffer
	if _, err := msg.WriteTo(&raw); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}
	if !strings.Contains(raw.String(), "012345") {
		t.Error("code missing from body")
	}
}

func TestEmailSenderWrapsDialError(t *testing.T) {
	boom := errors.New("smtp down")
	sender := NewEmailSender(&fakeDialer{err: boom}, "noreply@example.com")

	if err := sender.SendCode(context.Background(), "ivan@example.com", "1"); !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
}

func TestPhoneSender(t *testing.T) {
	tests := []struct {
		name     string
		level    zapcore.Level
		wantCode bool
	}{
		{name: "info keeps the code out", level: zap.InfoLevel},
		{name: "debug shows the code", level: zap.DebugLevel, wantCode: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(tt.level)
			if err := NewPhoneSender(zap.New(core), false).SendCode(context.Background(), "+15551230001", "123456"); err != nil {
				t.Fatalf("development send: %v", err)
			}

			var sawCode bool
			for _, entry := range logs.All() {
				if entry.ContextMap()["code"] == "123456" {
					sawCode = true
					if entry.Level != zap.DebugLevel {
						t.Errorf("code logged at %s", entry.Level)
					}
				}
				if entry.ContextMap()["identifier"] == "+15551230001" {
					t.Error("identifier logged unmasked")
				}
			}
			if sawCode != tt.wantCode {
				t.Errorf("code in log = %v, want %v", sawCode, tt.wantCode)
			}
			if logs.FilterMessage("Verification code issued without a gateway").Len() != 1 {
				t.Error("missing delivery notice")
			}
		})
	}

	err := NewPhoneSender(zap.NewNop(), true).SendCode(context.Background(), "+15551230001", "123456")
	if !errors.Is(err, port.ErrDeliveryUnsupported) {
		t.Fatalf("production send: err = %v", err)
	}
}

type countingSender struct{ calls []string }

func (s *countingSender) SendCode(_ context.Context, identifier, _ string) error {
	s.calls = append(s.calls, identifier)
	return nil
}

func TestDispatcherRoutesByShape(t *testing.T) {
	email, phone := &countingSender{}, &countingSender{}
	d := NewDispatcher(email, phone)
	ctx := context.Background()

	_ = d.SendCode(ctx, "ivan@example.com", "1")
	_ = d.SendCode(ctx, "+15551230001", "1")
	if err := d.SendCode(ctx, "ivan", "1"); err == nil {
		t.Error("username accepted as a delivery target")
	}

	if len(email.calls) != 1 || email.calls[0] != "ivan@example.com" {
		t.Errorf("email calls = %v", email.calls)
	}
	if len(phone.calls) != 1 || phone.calls[0] != "+15551230001" {
		t.Errorf("phone calls = %v", phone.calls)
	}
}
