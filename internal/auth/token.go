package auth

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const maskedPrefixLen = 8

// TokenGenerator draws session tokens uniformly from an alphabet using
// crypto/rand.
type TokenGenerator struct {
	length   int
	alphabet string
}

func NewTokenGenerator(length int, alphabet string) (*TokenGenerator, error) {
	if length < 32 {
		return nil, fmt.Errorf("token length must be at least 32, got %d", length)
	}
	if len(alphabet) < 2 {
		return nil, fmt.Errorf("token alphabet must hold at least 2 characters")
	}
	return &TokenGenerator{length: length, alphabet: alphabet}, nil
}

func (g *TokenGenerator) Generate() (string, error) {
	max := big.NewInt(int64(len(g.alphabet)))
	buf := make([]byte, g.length)
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to read random source: %w", err)
		}
		buf[i] = g.alphabet[n.Int64()]
	}
	return string(buf), nil
}

// MaskToken keeps a short prefix for correlation in listings and logs.
func MaskToken(token string) string {
	if len(token) <= maskedPrefixLen {
		return "..."
	}
	return token[:maskedPrefixLen] + "..."
}
