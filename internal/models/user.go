package models

import (
	"fmt"
	"time"
)

// User is an immutable account record. Changes go through the With*/Confirm*
// methods, which return an updated copy and leave the receiver untouched.
type User struct {
	ID             int64        `json:"id"`
	Username       string       `json:"username"`
	PasswordHash   string       `json:"-"`
	FirstName      string       `json:"first_name"`
	LastName       string       `json:"last_name"`
	MiddleName     string       `json:"middle_name,omitempty"`
	Email          string       `json:"email,omitempty"`
	Phone          string       `json:"phone,omitempty"`
	EmailConfirmed bool         `json:"email_confirmed"`
	PhoneConfirmed bool         `json:"phone_confirmed"`
	LastSeen       time.Time    `json:"last_seen"`
	Status         string       `json:"status,omitempty"`
	Avatar         *SavedFile   `json:"avatar,omitempty"`
	Permissions    []Permission `json:"permissions"`
}

// VerificationField names the user field that a verification proved.
type VerificationField string

const (
	FieldEmail VerificationField = "email"
	FieldPhone VerificationField = "phone"
)

func ParseVerificationField(s string) (VerificationField, error) {
	switch f := VerificationField(s); f {
	case FieldEmail, FieldPhone:
		return f, nil
	default:
		return "", fmt.Errorf("unknown verification field %q", s)
	}
}

func (u User) clone() User {
	if u.Avatar != nil {
		avatar := *u.Avatar
		u.Avatar = &avatar
	}
	if u.Permissions != nil {
		u.Permissions = append([]Permission(nil), u.Permissions...)
	}
	return u
}

func (u User) ConfirmEmail() User {
	next := u.clone()
	next.EmailConfirmed = true
	return next
}

func (u User) ConfirmPhone() User {
	next := u.clone()
	next.PhoneConfirmed = true
	return next
}

// Confirm flips the confirmation flag of field. Confirming an already
// confirmed field returns an identical copy.
func (u User) Confirm(field VerificationField) User {
	if field == FieldEmail {
		return u.ConfirmEmail()
	}
	return u.ConfirmPhone()
}

// Contact returns the email or phone named by field.
func (u User) Contact(field VerificationField) string {
	if field == FieldEmail {
		return u.Email
	}
	return u.Phone
}

// IsConfirmed reports the confirmation flag of field.
func (u User) IsConfirmed(field VerificationField) bool {
	if field == FieldEmail {
		return u.EmailConfirmed
	}
	return u.PhoneConfirmed
}

// WithEmail replaces the email. The new address is treated as verified
// because it can only be set through an email-scoped authentication session.
func (u User) WithEmail(email string) User {
	next := u.clone()
	next.Email = email
	next.EmailConfirmed = true
	return next
}

// WithPhone replaces the phone, marking it verified like WithEmail.
func (u User) WithPhone(phone string) User {
	next := u.clone()
	next.Phone = phone
	next.PhoneConfirmed = true
	return next
}

func (u User) WithPasswordHash(hash string) User {
	next := u.clone()
	next.PasswordHash = hash
	return next
}

func (u User) WithAvatar(avatar *SavedFile) User {
	next := u.clone()
	if avatar == nil {
		next.Avatar = nil
	} else {
		copied := *avatar
		next.Avatar = &copied
	}
	return next
}

func (u User) WithID(id int64) User {
	next := u.clone()
	next.ID = id
	return next
}

// ProfileUpdate carries optional profile changes. Empty fields are left as is.
type ProfileUpdate struct {
	FirstName  string `json:"first_name,omitempty"`
	LastName   string `json:"last_name,omitempty"`
	MiddleName string `json:"middle_name,omitempty"`
	Status     string `json:"status,omitempty"`
}

func (p ProfileUpdate) IsEmpty() bool {
	return p == ProfileUpdate{}
}

func (u User) WithProfile(p ProfileUpdate) User {
	next := u.clone()
	if p.FirstName != "" {
		next.FirstName = p.FirstName
	}
	if p.LastName != "" {
		next.LastName = p.LastName
	}
	if p.MiddleName != "" {
		next.MiddleName = p.MiddleName
	}
	if p.Status != "" {
		next.Status = p.Status
	}
	return next
}

func (u User) Touch(at time.Time) User {
	next := u.clone()
	next.LastSeen = at.UTC().Truncate(time.Second)
	return next
}

type PermissionCategory struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

type Permission struct {
	Code     string              `json:"code"`
	Name     string              `json:"name"`
	Category *PermissionCategory `json:"category,omitempty"`
}

// Page is one page of a paginated listing.
type Page[T any] struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	PagesCount int `json:"pages_count"`
	Total      int `json:"total"`
	Data       []T `json:"data"`
}

// NewPage computes the page count for total items split by perPage.
func NewPage[T any](page, perPage, total int, data []T) Page[T] {
	pages := 0
	if perPage > 0 {
		pages = (total + perPage - 1) / perPage
	}
	if data == nil {
		data = []T{}
	}
	return Page[T]{Page: page, PerPage: perPage, PagesCount: pages, Total: total, Data: data}
}
