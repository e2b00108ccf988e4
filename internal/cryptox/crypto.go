// Package cryptox holds the password hashing primitive used by the auth
// service.
package cryptox

import (
	"golang.org/x/crypto/bcrypt"
)

// bcrypt only consumes the first 72 bytes of its input.
const maxPasswordBytes = 72

// Hasher hashes and verifies plaintext passwords.
type Hasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, digest string) bool
}

// BcryptHasher is a salted bcrypt Hasher with a configurable work factor.
type BcryptHasher struct {
	cost int
}

type Option func(*BcryptHasher)

// WithCost overrides the bcrypt work factor. Values outside
// [bcrypt.MinCost, bcrypt.MaxCost] are ignored.
func WithCost(cost int) Option {
	return func(h *BcryptHasher) {
		if cost >= bcrypt.MinCost && cost <= bcrypt.MaxCost {
			h.cost = cost
		}
	}
}

func NewBcryptHasher(opts ...Option) *BcryptHasher {
	h := &BcryptHasher{cost: bcrypt.DefaultCost}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Hash returns a bcrypt digest with a fresh random salt.
func (h *BcryptHasher) Hash(plaintext string) (string, error) {
	digest, err := bcrypt.GenerateFromPassword(truncate(plaintext), h.cost)
	if err != nil {
		return "", err
	}
	return string(digest), nil
}

// Verify reports whether plaintext matches digest. A malformed digest is
// a mismatch.
func (h *BcryptHasher) Verify(plaintext, digest string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), truncate(plaintext)) == nil
}

func truncate(plaintext string) []byte {
	b := []byte(plaintext)
	if len(b) > maxPasswordBytes {
		b = b[:maxPasswordBytes]
	}
	return b
}
