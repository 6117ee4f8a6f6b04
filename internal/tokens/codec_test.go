package tokens

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"users-service/internal/models"
)

func newTestCodec(now time.Time) *Codec {
	return NewCodec("test-secret", 24*time.Hour, 30*24*time.Hour).WithClock(func() time.Time { return now })
}

func TestRoundTrip(t *testing.T) {
	now := time.Now()
	codec := newTestCodec(now)
	user := models.User{ID: 42, Username: "alice"}

	for _, kind := range []models.TokenKind{models.TokenAccess, models.TokenRefresh} {
		token, err := codec.CreateToken(user, kind)
		if err != nil {
			t.Fatalf("CreateToken(%s): %v", kind, err)
		}
		id, err := codec.DecodeToken(token)
		if err != nil {
			t.Fatalf("DecodeToken(%s): %v", kind, err)
		}
		if id != 42 {
			t.Errorf("user id = %d, want 42", id)
		}
	}
}

func TestExpiry(t *testing.T) {
	issued := time.Now()
	codec := newTestCodec(issued)
	user := models.User{ID: 7, Username: "bob"}

	access, err := codec.CreateToken(user, models.TokenAccess)
	if err != nil {
		t.Fatalf("CreateToken: %v", err)
	}
	refresh, err := codec.CreateToken(user, models.TokenRefresh)
	if err != nil {
		t.Fatalf("CreateToken: %v", err)
	}

	later := codec.WithClock(func() time.Time { return issued.Add(25 * time.Hour) })
	if _, err := later.DecodeToken(access); !IsInvalid(err) {
		t.Errorf("expired access token: err = %v, want invalid", err)
	}
	if _, err := later.DecodeToken(refresh); err != nil {
		t.Errorf("refresh token should still be valid after a day: %v", err)
	}

	muchLater := codec.WithClock(func() time.Time { return issued.Add(31 * 24 * time.Hour) })
	if _, err := muchLater.DecodeToken(refresh); !IsInvalid(err) {
		t.Errorf("expired refresh token: err = %v, want invalid", err)
	}
}

func TestRejectsTampering(t *testing.T) {
	codec := newTestCodec(time.Now())
	token, err := codec.CreateToken(models.User{ID: 1, Username: "a"}, models.TokenAccess)
	if err != nil {
		t.Fatalf("CreateToken: %v", err)
	}

	other := NewCodec("other-secret", time.Hour, time.Hour)
	if _, err := other.DecodeToken(token); !IsInvalid(err) {
		t.Errorf("foreign secret: err = %v, want invalid", err)
	}

	parts := strings.Split(token, ".")
	parts[1] = parts[1] + "x"
	if _, err := codec.DecodeToken(strings.Join(parts, ".")); !IsInvalid(err) {
		t.Errorf("tampered payload: err = %v, want invalid", err)
	}

	for _, bad := range []string{"", "garbage", "a.b.c"} {
		if _, err := codec.DecodeToken(bad); !IsInvalid(err) {
			t.Errorf("DecodeToken(%q): err = %v, want invalid", bad, err)
		}
	}
}

func TestRejectsOtherAlgorithms(t *testing.T) {
	claims := Claims{
		UserID: 3,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := newTestCodec(time.Now()).DecodeToken(token); !IsInvalid(err) {
		t.Errorf("HS512 token accepted: %v", err)
	}
}

func TestRejectsMissingClaims(t *testing.T) {
	secret := []byte("test-secret")
	codec := newTestCodec(time.Now())

	noUser, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	}).SignedString(secret)
	if _, err := codec.DecodeToken(noUser); !IsInvalid(err) {
		t.Errorf("token without user_id accepted: %v", err)
	}

	noExpiry, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{UserID: 5}).SignedString(secret)
	if _, err := codec.DecodeToken(noExpiry); !IsInvalid(err) {
		t.Errorf("token without exp accepted: %v", err)
	}
}

func TestTokensAreDistinct(t *testing.T) {
	codec := newTestCodec(time.Now())
	user := models.User{ID: 9, Username: "c"}
	a, _ := codec.CreateToken(user, models.TokenRefresh)
	b, _ := codec.CreateToken(user, models.TokenRefresh)
	if a == b {
		t.Fatal("two refresh tokens issued at the same instant are identical")
	}
}
