package auth

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// LoginCodeTTL is how long an emailed 6-digit code can be used.
const LoginCodeTTL = 10 * time.Minute

// MaxCodeAttempts is how many wrong guesses burn a code.
const MaxCodeAttempts = 5

// defaultCost is the bcrypt work factor.
//
// A 6-digit code has only a million values, so the hash alone would not stop
// an offline attacker with the database. The short expiry and attempt limit do
// that; bcrypt just keeps the codes out of plain sight.
const defaultCost = 10

// ErrCodeMismatch is returned when a code does not match its stored hash.
var ErrCodeMismatch = errors.New("auth: invalid login code")

// CodeHasher creates and checks one-time login codes.
//
// It's a struct so that the cost can be injected in tests. Cost 4 (the
// bcrypt minimum) keeps tests fast.
type CodeHasher struct {
	cost int
}

// NewCodeHasher creates a CodeHasher with the production cost.
func NewCodeHasher() *CodeHasher {
	return &CodeHasher{cost: defaultCost}
}

// NewCodeHasherForTest creates a CodeHasher with bcrypt cost 4.
// Do NOT use in production.
func NewCodeHasherForTest() *CodeHasher {
	return &CodeHasher{cost: bcrypt.MinCost}
}

// Generate returns a uniformly random 6-digit code, zero-padded.
// crypto/rand, not math/rand: the code is a credential.
func (h *CodeHasher) Generate() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", fmt.Errorf("auth: generating login code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// Hash hashes a code for storage.
func (h *CodeHasher) Hash(code string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(code), h.cost)
	if err != nil {
		return "", fmt.Errorf("auth: hashing login code: %w", err)
	}
	return string(hashed), nil
}

// Verify checks a submitted code against the stored hash.
// bcrypt compares in constant time.
func (h *CodeHasher) Verify(hash, code string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(code))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrCodeMismatch
		}
		return fmt.Errorf("auth: comparing login code hash: %w", err)
	}
	return nil
}
