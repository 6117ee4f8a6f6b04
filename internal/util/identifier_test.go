package util

import "testing"

func TestIdentifierShapes(t *testing.T) {
	tests := []struct {
		in       string
		email    bool
		phone    bool
		username bool
	}{
		{"user@example.com", true, false, false},
		{"Bob <bob@example.com>", false, false, false},
		{"+15551230001", false, true, false},
		{"79991234567", false, true, false},
		{"john_doe", false, false, true},
		{"1234567", false, true, false},
		{"ab", false, false, false},
		{"", false, false, false},
	}

	for _, tt := range tests {
		if got := IsEmail(tt.in); got != tt.email {
			t.Errorf("IsEmail(%q) = %v, want %v", tt.in, got, tt.email)
		}
		if got := IsPhone(tt.in); got != tt.phone {
			t.Errorf("IsPhone(%q) = %v, want %v", tt.in, got, tt.phone)
		}
		if got := IsUsername(tt.in); got != tt.username {
			t.Errorf("IsUsername(%q) = %v, want %v", tt.in, got, tt.username)
		}
	}
}

func TestNormalizeIdentifier(t *testing.T) {
	tests := map[string]string{
		"  User@Example.COM ": "user@example.com",
		"+1 (555) 123-0001":   "+15551230001",
		"+15551230001":        "+15551230001",
		" john ":              "john",
	}
	for in, want := range tests {
		if got := NormalizeIdentifier(in); got != want {
			t.Errorf("NormalizeIdentifier(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestMaskIdentifier(t *testing.T) {
	if got := MaskIdentifier("alice@example.com"); got != "a***@example.com" {
		t.Errorf("email mask = %q", got)
	}
	if got := MaskIdentifier("+15551230001"); got != "********0001" {
		t.Errorf("phone mask = %q", got)
	}
	if got := MaskIdentifier("123"); got != "****" {
		t.Errorf("short mask = %q", got)
	}
}
