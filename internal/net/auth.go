package net

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// ErrBadDisplayKey is returned when a display presents a wrong key.
var ErrBadDisplayKey = errors.New("invalid display key")

// DisplayKey guards the display endpoint with a bcrypt hash. A zero
// DisplayKey admits everyone.
type DisplayKey struct {
	hash []byte
}

func NewDisplayKey(hash string) DisplayKey {
	if hash == "" {
		return DisplayKey{}
	}
	return DisplayKey{hash: []byte(hash)}
}

// HashDisplayKey produces a hash suitable for display.key_hash.
func HashDisplayKey(key string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

func (k DisplayKey) Enabled() bool { return len(k.hash) > 0 }

// Check compares key against the stored hash.
func (k DisplayKey) Check(key string) error {
	if !k.Enabled() {
		return nil
	}
	if err := bcrypt.CompareHashAndPassword(k.hash, []byte(key)); err != nil {
		return ErrBadDisplayKey
	}
	return nil
}
