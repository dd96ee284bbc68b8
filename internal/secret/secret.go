// Package secret mints, hashes and verifies capsule unlock codes.
package secret

import (
	"crypto/rand"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// DefaultLength is the number of characters in a freshly minted unlock code.
const DefaultLength = 10

// DefaultCost is the bcrypt cost used when none is configured.
const DefaultCost = bcrypt.DefaultCost

const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// Bytes at or above this value are discarded so every character of the
// alphabet is equally likely.
const maxUnbiased = 256 - 256%len(alphabet)

var ErrInvalidLength = errors.New("secret: length must be positive")

// Mint returns a random alphanumeric code of the given length.
func Mint(length int) (string, error) {
	if length <= 0 {
		return "", ErrInvalidLength
	}

	out := make([]byte, 0, length)
	buf := make([]byte, length+length/2)
	for len(out) < length {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("read random bytes: %w", err)
		}
		for _, b := range buf {
			if int(b) >= maxUnbiased {
				continue
			}
			out = append(out, alphabet[int(b)%len(alphabet)])
			if len(out) == length {
				break
			}
		}
	}
	return string(out), nil
}

// Hasher produces salted one-way hashes of unlock codes.
type Hasher struct {
	cost int
}

// NewHasher returns a Hasher using the given bcrypt cost. Out of range
// costs fall back to DefaultCost.
func NewHasher(cost int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultCost
	}
	return &Hasher{cost: cost}
}

func (h *Hasher) Hash(code string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(code), h.cost)
	if err != nil {
		return "", fmt.Errorf("hash secret: %w", err)
	}
	return string(hash), nil
}

// Verify reports whether code matches hash. Empty codes, malformed hashes
// and mismatches all report false.
func (h *Hasher) Verify(code, hash string) bool {
	return Verify(code, hash)
}

func Verify(code, hash string) bool {
	if code == "" || hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(code)) == nil
}
