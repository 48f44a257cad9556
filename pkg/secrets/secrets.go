// Package secrets hashes and verifies account passwords.
package secrets

import (
	"errors"

	"golang.org/x/crypto/bcrypt"

	dErrors "clinictrack/pkg/domain-errors"
)

// DefaultCost is the bcrypt work factor used when none is configured.
const DefaultCost = 10

// Hasher produces salted, slow password digests.
type Hasher struct {
	cost int
}

// NewHasher creates a Hasher. Costs outside bcrypt's accepted range are clamped.
func NewHasher(cost int) *Hasher {
	switch {
	case cost == 0:
		cost = DefaultCost
	case cost < bcrypt.MinCost:
		cost = bcrypt.MinCost
	case cost > bcrypt.MaxCost:
		cost = bcrypt.MaxCost
	}
	return &Hasher{cost: cost}
}

// Cost reports the configured work factor.
func (h *Hasher) Cost() int {
	return h.cost
}

// Hash creates a bcrypt digest of plaintext.
func (h *Hasher) Hash(plaintext string) (string, error) {
	if plaintext == "" {
		return "", dErrors.New(dErrors.CodeValidation, "password cannot be empty")
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", dErrors.New(dErrors.CodeValidation, "password is too long")
		}
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "could not hash password")
	}
	return string(hashed), nil
}

// Verify reports whether plaintext matches digest. Malformed digests never match.
func (h *Hasher) Verify(plaintext, digest string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(plaintext)) == nil
}
