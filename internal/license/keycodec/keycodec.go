// Package keycodec mints license keys and derives their stored digests.
//
// Plaintext keys are shown to an operator exactly once; only the keyed
// digest is persisted, so a leaked database does not leak redeemable keys.
package keycodec

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

const (
	keyBytes  = 10
	groupSize = 4
)

// Codec generates keys and digests them with a server-side secret.
type Codec struct {
	secret []byte
}

// New creates a Codec. The secret must not be empty.
func New(secret string) (*Codec, error) {
	if secret == "" {
		return nil, errors.New("license secret is required")
	}
	return &Codec{secret: []byte(secret)}, nil
}

// Generate returns a fresh plaintext key such as "9F2A-01BC-77DE-4C10-A3B5".
func (c *Codec) Generate() (string, error) {
	buf := make([]byte, keyBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	raw := strings.ToUpper(hex.EncodeToString(buf))
	groups := make([]string, 0, len(raw)/groupSize)
	for i := 0; i < len(raw); i += groupSize {
		groups = append(groups, raw[i:i+groupSize])
	}
	return strings.Join(groups, "-"), nil
}

// Digest returns the hex HMAC-SHA256 of the normalised key.
func (c *Codec) Digest(plaintext string) string {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(Normalize(plaintext)))
	return hex.EncodeToString(mac.Sum(nil))
}

// Normalize trims surrounding whitespace and upper-cases the key.
func Normalize(key string) string {
	return strings.ToUpper(strings.TrimSpace(key))
}

// Mask hides everything after the first group, for logs.
func Mask(key string) string {
	key = Normalize(key)
	first, rest, found := strings.Cut(key, "-")
	if !found {
		if len(key) <= groupSize {
			return "****"
		}
		return key[:groupSize] + "-****"
	}
	return first + strings.Repeat("-****", strings.Count(rest, "-")+1)
}
