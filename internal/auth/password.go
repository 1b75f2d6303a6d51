package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// MaxPasswordBytes is the longest input bcrypt reads; anything past it would
// be ignored.
const MaxPasswordBytes = 72

// Hasher wraps bcrypt. Cost is configurable so it can be raised later; stored
// hashes carry their own cost and keep verifying.
type Hasher struct {
	cost  int
	dummy []byte
}

func NewHasher(cost int) (*Hasher, error) {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost %d out of range [%d, %d]", cost, bcrypt.MinCost, bcrypt.MaxCost)
	}

	// Used to spend the same time on unknown usernames as on real ones.
	dummy, err := bcrypt.GenerateFromPassword([]byte("rubric-eval-timing-equaliser"), cost)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare dummy hash: %w", err)
	}

	return &Hasher{cost: cost, dummy: dummy}, nil
}

func (h *Hasher) Hash(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(bytes), nil
}

// Verify reports whether password matches hash. Passwords longer than
// MaxPasswordBytes never match, even when their prefix does.
func (h *Hasher) Verify(password, hash string) bool {
	if len(password) > MaxPasswordBytes {
		h.DummyVerify(password[:MaxPasswordBytes])
		return false
	}
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// DummyVerify runs a comparison whose result is discarded.
func (h *Hasher) DummyVerify(password string) {
	_ = bcrypt.CompareHashAndPassword(h.dummy, []byte(password))
}

func (h *Hasher) Cost() int {
	return h.cost
}
