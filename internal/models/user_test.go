package models

import (
	"testing"
	"time"
)

func TestConfirmLeavesOriginalUntouched(t *testing.T) {
	u := User{ID: 1, Username: "alice"}

	confirmed := u.ConfirmEmail()
	if !confirmed.EmailConfirmed {
		t.Fatal("expected email confirmed")
	}
	if u.EmailConfirmed {
		t.Fatal("original user was mutated")
	}

	again := confirmed.Confirm(FieldEmail)
	if !again.EmailConfirmed || again.PhoneConfirmed {
		t.Fatalf("second confirm changed flags: %+v", again)
	}
}

func TestWithAvatarCopies(t *testing.T) {
	avatar := &SavedFile{OriginalURL: "https://cdn/a.png"}
	u := User{}.WithAvatar(avatar)
	avatar.OriginalURL = "changed"

	if u.Avatar.OriginalURL != "https://cdn/a.png" {
		t.Fatalf("avatar aliased caller value: %q", u.Avatar.OriginalURL)
	}
}

func TestPermissionsAreCopied(t *testing.T) {
	base := User{Permissions: []Permission{{Code: "read"}}}
	next := base.ConfirmPhone()
	next.Permissions[0].Code = "write"

	if base.Permissions[0].Code != "read" {
		t.Fatalf("transition aliased permissions: %v", base.Permissions)
	}
}

func TestContact(t *testing.T) {
	u := User{Email: "ann@example.com", Phone: "+15551230001"}
	if got := u.Contact(FieldEmail); got != "ann@example.com" {
		t.Errorf("email contact = %q", got)
	}
	if got := u.Contact(FieldPhone); got != "+15551230001" {
		t.Errorf("phone contact = %q", got)
	}
}

func TestWithProfileSkipsEmpty(t *testing.T) {
	u := User{FirstName: "Ann", LastName: "Lee", Status: "away"}
	got := u.WithProfile(ProfileUpdate{LastName: "Kim"})

	if got.FirstName != "Ann" || got.LastName != "Kim" || got.Status != "away" {
		t.Fatalf("unexpected profile: %+v", got)
	}
}

func TestTouchTruncates(t *testing.T) {
	at := time.Date(2024, 5, 1, 10, 0, 0, 999, time.FixedZone("x", 3600))
	got := User{}.Touch(at)
	if got.LastSeen.Nanosecond() != 0 || got.LastSeen.Location() != time.UTC {
		t.Fatalf("last seen not normalised: %v", got.LastSeen)
	}
}

func TestParseOperation(t *testing.T) {
	for _, op := range Operations {
		if _, err := ParseOperation(string(op)); err != nil {
			t.Errorf("ParseOperation(%q): %v", op, err)
		}
	}
	if _, err := ParseOperation("delete_account"); err == nil {
		t.Error("expected error for unknown operation")
	}
}

func TestNewPage(t *testing.T) {
	p := NewPage[int](2, 10, 21, nil)
	if p.PagesCount != 3 {
		t.Errorf("pages = %d, want 3", p.PagesCount)
	}
	if p.Data == nil {
		t.Error("data should be an empty slice")
	}
}
