package hashing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

var ErrPasswordTooLong = errors.New("password exceeds 72 bytes")

// Hasher stores passwords as bcrypt hashes. When a pepper is configured the
// password is first run through HMAC-SHA256 keyed with it, which also keeps
// the bcrypt input under its 72 byte limit.
type Hasher struct {
	cost   int
	pepper []byte
}

func NewHasher(cost int, pepper string) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	h := &Hasher{cost: cost}
	if pepper != "" {
		h.pepper = []byte(pepper)
	}
	return h
}

func (h *Hasher) prepare(password string) ([]byte, error) {
	if h.pepper == nil {
		if len(password) > 72 {
			return nil, ErrPasswordTooLong
		}
		return []byte(password), nil
	}
	mac := hmac.New(sha256.New, h.pepper)
	mac.Write([]byte(password))
	encoded := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return []byte(encoded), nil
}

func (h *Hasher) Hash(password string) (string, error) {
	input, err := h.prepare(password)
	if err != nil {
		return "", err
	}
	hash, err := bcrypt.GenerateFromPassword(input, h.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// Compare reports whether password matches hash. Malformed hashes never match.
func (h *Hasher) Compare(hash, password string) bool {
	input, err := h.prepare(password)
	if err != nil {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), input) == nil
}
