package service

import (
	"context"
	"errors"
	"testing"

	"users-service/internal/models"
)

func TestSendVerificationCodeChecksUserExists(t *testing.T) {
	h := newHarness(t, 0)
	ctx := context.Background()

	if err := h.verification.SendVerificationCode(ctx, "+15551230001", true); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("unknown user: err = %v", err)
	}
	if h.notifier.last("+15551230001") != "" {
		t.Fatal("code delivered to unknown user")
	}

	h.register(t, "ivan", "+15551230001")
	if err := h.verification.SendVerificationCode(ctx, "+1 (555) 123-0001", true); err != nil {
		t.Fatalf("known user: %v", err)
	}
	if h.notifier.last("+15551230001") == "" {
		t.Fatal("code not delivered under the normalized identifier")
	}
}

func TestSendVerificationCodeRejectsMalformedIdentifier(t *testing.T) {
	h := newHarness(t, 0)

	for _, id := range []string{"", "ivan", "not-an@", "12"} {
		err := h.verification.SendVerificationCode(context.Background(), id, false)
		if !errors.Is(err, ErrInvalidInput) || FieldOf(err) != "identifier" {
			t.Errorf("SendVerificationCode(%q): err = %v", id, err)
		}
	}
}

func TestSendVerificationCodeRateLimit(t *testing.T) {
	h := newHarness(t, 2)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := h.verification.SendVerificationCode(ctx, "ivan@example.com", false); err != nil {
			t.Fatalf("send %d: %v", i, err)
		}
	}
	if err := h.verification.SendVerificationCode(ctx, "ivan@example.com", false); !errors.Is(err, ErrTooManyRequests) {
		t.Fatalf("third send: err = %v", err)
	}
	// Limits are per identifier.
	if err := h.verification.SendVerificationCode(ctx, "petr@example.com", false); err != nil {
		t.Fatalf("other identifier: %v", err)
	}
}

func TestVerifyCodeAttemptCeiling(t *testing.T) {
	h := newHarness(t, 0)
	ctx := context.Background()
	const id = "ivan@example.com"

	if err := h.verification.SendVerificationCode(ctx, id, false); err != nil {
		t.Fatalf("SendVerificationCode: %v", err)
	}
	code := h.notifier.last(id)
	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}

	for i := 0; i < 7; i++ {
		err := h.verification.VerifyCode(ctx, id, wrong)
		if !errors.Is(err, ErrIncorrectCode) || FieldOf(err) != "code" {
			t.Fatalf("attempt %d: err = %v", i+1, err)
		}
	}
	if err := h.verification.VerifyCode(ctx, id, code); !errors.Is(err, ErrAttemptsExceeded) {
		t.Fatalf("right code after the ceiling: err = %v", err)
	}

	// A fresh code resets the counter.
	if err := h.verification.SendVerificationCode(ctx, id, false); err != nil {
		t.Fatalf("resend: %v", err)
	}
	if err := h.verification.VerifyCode(ctx, id, h.notifier.last(id)); err != nil {
		t.Fatalf("fresh code: %v", err)
	}
}

func TestVerifyCodeWithoutIssuedCode(t *testing.T) {
	h := newHarness(t, 0)
	ctx := context.Background()

	if err := h.verification.VerifyCode(ctx, "ivan@example.com", "123456"); !errors.Is(err, ErrIncorrectCode) {
		t.Fatalf("err = %v", err)
	}
	if err := h.verification.VerifyCode(ctx, "ivan@example.com", ""); !errors.Is(err, ErrIncorrectCode) {
		t.Fatalf("empty code: err = %v", err)
	}
}

func TestVerifyCodeAndIssueSessionIsSingleUse(t *testing.T) {
	h := newHarness(t, 0)
	ctx := context.Background()
	const id = "+15551230001"

	if err := h.verification.SendVerificationCode(ctx, id, false); err != nil {
		t.Fatalf("SendVerificationCode: %v", err)
	}
	code := h.notifier.last(id)

	session, err := h.verification.VerifyCodeAndIssueSession(ctx, id, code, models.OperationUpdatePhone)
	if err != nil {
		t.Fatalf("VerifyCodeAndIssueSession: %v", err)
	}
	if len(session.Session) != 32 || session.Operation != models.OperationUpdatePhone {
		t.Errorf("session = %+v", session)
	}
	if err := h.authSessions.VerifySession(ctx, id, models.OperationUpdatePhone, session.Session); err != nil {
		t.Errorf("stored session: %v", err)
	}
	// Sessions are scoped to the operation they were issued for.
	if err := h.authSessions.VerifySession(ctx, id, models.OperationAuthentication, session.Session); err == nil {
		t.Error("session accepted for another operation")
	}

	if _, err := h.verification.VerifyCodeAndIssueSession(ctx, id, code, models.OperationUpdatePhone); !errors.Is(err, ErrIncorrectCode) {
		t.Fatalf("code reused: err = %v", err)
	}
}

func TestVerifyCodeAndIssueSessionRejectsUnknownOperation(t *testing.T) {
	h := newHarness(t, 0)
	ctx := context.Background()

	if err := h.verification.SendVerificationCode(ctx, "ivan@example.com", false); err != nil {
		t.Fatalf("SendVerificationCode: %v", err)
	}
	_, err := h.verification.VerifyCodeAndIssueSession(ctx, "ivan@example.com", h.notifier.last("ivan@example.com"), "delete_account")
	if !errors.Is(err, ErrInvalidInput) || FieldOf(err) != "operation" {
		t.Fatalf("err = %v", err)
	}
	// The code was not spent on the rejected request.
	if err := h.verification.VerifyCode(ctx, "ivan@example.com", h.notifier.last("ivan@example.com")); err != nil {
		t.Fatalf("code after rejected op: %v", err)
	}
}

func TestGenerateAuthSessionReplacesPrevious(t *testing.T) {
	h := newHarness(t, 0)
	ctx := context.Background()
	const id = "ivan@example.com"

	first, err := h.verification.GenerateAuthSession(ctx, id, models.OperationUpdateEmail)
	if err != nil {
		t.Fatalf("GenerateAuthSession: %v", err)
	}
	second, err := h.verification.GenerateAuthSession(ctx, id, models.OperationUpdateEmail)
	if err != nil {
		t.Fatalf("GenerateAuthSession: %v", err)
	}
	if first.Session == second.Session {
		t.Fatal("sessions repeat")
	}
	if err := h.authSessions.VerifySession(ctx, id, models.OperationUpdateEmail, first.Session); err == nil {
		t.Error("previous session still valid")
	}
	if ttl := h.mr.TTL("authsession:" + id + ":update_email"); ttl != testTTL {
		t.Errorf("session ttl = %v", ttl)
	}
}
