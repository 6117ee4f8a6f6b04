package hashing

import (
	"errors"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestHashAndCompare(t *testing.T) {
	for _, pepper := range []string{"", "pepper"} {
		h := NewHasher(bcrypt.MinCost, pepper)

		hash, err := h.Hash("correct horse")
		if err != nil {
			t.Fatalf("Hash (pepper %q): %v", pepper, err)
		}
		if !h.Compare(hash, "correct horse") {
			t.Errorf("pepper %q: matching password rejected", pepper)
		}
		if h.Compare(hash, "wrong horse") {
			t.Errorf("pepper %q: wrong password accepted", pepper)
		}
	}
}

func TestPepperIsPartOfHash(t *testing.T) {
	hash, err := NewHasher(bcrypt.MinCost, "one").Hash("secret")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if NewHasher(bcrypt.MinCost, "two").Compare(hash, "secret") {
		t.Fatal("hash verified under a different pepper")
	}
}

func TestLongPasswords(t *testing.T) {
	long := strings.Repeat("a", 100)

	if _, err := NewHasher(bcrypt.MinCost, "").Hash(long); !errors.Is(err, ErrPasswordTooLong) {
		t.Fatalf("unpeppered long password: err = %v", err)
	}

	peppered := NewHasher(bcrypt.MinCost, "pepper")
	hash, err := peppered.Hash(long)
	if err != nil {
		t.Fatalf("peppered long password: %v", err)
	}
	if !peppered.Compare(hash, long) {
		t.Fatal("peppered long password does not verify")
	}
}

func TestCompareMalformedHash(t *testing.T) {
	if NewHasher(bcrypt.MinCost, "").Compare("not-a-hash", "x") {
		t.Fatal("malformed hash matched")
	}
}
