package credentials

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// DefaultCost is the bcrypt work factor used for new hashes.
const DefaultCost = 12

// ErrPasswordTooLong is returned by Hash for inputs bcrypt would truncate.
var ErrPasswordTooLong = errors.New("password exceeds 72 bytes")

// Hasher produces and verifies credential hashes. It holds no mutable state
// and is safe for concurrent use. Hashing is CPU-bound; callers must not hold
// locks across Hash or Verify.
type Hasher struct {
	cost int
}

// NewHasher returns a Hasher using the given bcrypt cost. Out-of-range costs
// fall back to DefaultCost.
func NewHasher(cost int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultCost
	}
	return &Hasher{cost: cost}
}

// Cost returns the configured bcrypt work factor.
func (h *Hasher) Cost() int { return h.cost }

// Hash returns a bcrypt hash of plaintext. bcrypt generates a 16-byte random
// salt for every call.
func (h *Hasher) Hash(plaintext string) (string, error) {
	if len(plaintext) > 72 {
		return "", ErrPasswordTooLong
	}
	b, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return "", fmt.Errorf("bcrypt: %w", err)
	}
	return string(b), nil
}

// Verify reports whether plaintext matches stored. It never panics and
// treats every parse or crypto error as a mismatch.
func (h *Hasher) Verify(plaintext, stored string) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()

	switch DetectScheme(stored) {
	case SchemeLegacyPBKDF2:
		return verifyLegacy(plaintext, stored)
	case SchemeBcrypt:
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(plaintext)) == nil
	default:
		return false
	}
}

// NeedsUpgrade reports whether stored uses a scheme that is no longer issued.
func (h *Hasher) NeedsUpgrade(stored string) bool {
	return DetectScheme(stored) != SchemeBcrypt
}
