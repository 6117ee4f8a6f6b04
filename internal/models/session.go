package models

import (
	"fmt"
	"time"
)

// Operation scopes an authentication session to one downstream action.
type Operation string

const (
	OperationAuthentication Operation = "authentication"
	OperationUpdateEmail    Operation = "update_email"
	OperationUpdatePhone    Operation = "update_phone"
	OperationResetPassword  Operation = "reset_password"
)

// Operations lists every operation scope.
var Operations = []Operation{
	OperationAuthentication,
	OperationUpdateEmail,
	OperationUpdatePhone,
	OperationResetPassword,
}

func (o Operation) Valid() bool {
	for _, known := range Operations {
		if o == known {
			return true
		}
	}
	return false
}

func ParseOperation(s string) (Operation, error) {
	op := Operation(s)
	if !op.Valid() {
		return "", fmt.Errorf("unknown operation %q", s)
	}
	return op, nil
}

// TokenKind selects the lifetime of an issued token.
type TokenKind string

const (
	TokenAccess  TokenKind = "access"
	TokenRefresh TokenKind = "refresh"
)

// AuthenticationSession is the capability token returned after a code was
// verified for one (identifier, operation) pair.
type AuthenticationSession struct {
	Session   string    `json:"session"`
	Operation Operation `json:"operation"`
	ExpiresAt time.Time `json:"expires_at"`
}

// TokenPair is the result of a successful login, registration or refresh.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	User         User   `json:"user"`
}

// Credentials are the login inputs. Login is a phone number or a username.
type Credentials struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

// Registration carries the data for creating an account.
type Registration struct {
	Username           string            `json:"username"`
	Password           string            `json:"password"`
	FirstName          string            `json:"first_name"`
	LastName           string            `json:"last_name"`
	MiddleName         string            `json:"middle_name,omitempty"`
	Email              string            `json:"email,omitempty"`
	Phone              string            `json:"phone,omitempty"`
	VerificationSource VerificationField `json:"verification_source"`
	Avatar             *UploadingFile    `json:"avatar,omitempty"`
}

// SourceValue returns the email or phone named by VerificationSource.
func (r Registration) SourceValue() string {
	if r.VerificationSource == FieldEmail {
		return r.Email
	}
	return r.Phone
}
