package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestNewHasher(t *testing.T) {
	tests := []struct {
		name     string
		cost     int
		wantCost int
		wantErr  bool
	}{
		{name: "minimum cost", cost: bcrypt.MinCost, wantCost: bcrypt.MinCost},
		{name: "zero falls back to default", cost: 0, wantCost: bcrypt.DefaultCost},
		{name: "below minimum", cost: bcrypt.MinCost - 1, wantErr: true},
		{name: "above maximum", cost: bcrypt.MaxCost + 1, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := NewHasher(tt.cost)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantCost, h.Cost())
		})
	}
}

func TestHasher_HashAndVerify(t *testing.T) {
	h, err := NewHasher(bcrypt.MinCost)
	require.NoError(t, err)

	const password = "Passw0rd!"

	first, err := h.Hash(password)
	require.NoError(t, err)
	second, err := h.Hash(password)
	require.NoError(t, err)

	assert.NotEqual(t, password, first)
	assert.NotContains(t, first, password)
	assert.NotEqual(t, first, second)

	assert.True(t, h.Verify(password, first))
	assert.True(t, h.Verify(password, second))
	assert.False(t, h.Verify("wrong", first))
	assert.False(t, h.Verify(password, "not-a-hash"))

	h.DummyVerify(password)
}

func TestHasher_VerifiesOlderCost(t *testing.T) {
	old, err := NewHasher(bcrypt.MinCost)
	require.NoError(t, err)
	hash, err := old.Hash("Passw0rd!")
	require.NoError(t, err)

	current, err := NewHasher(bcrypt.MinCost + 1)
	require.NoError(t, err)
	assert.True(t, current.Verify("Passw0rd!", hash))
}

func TestHasher_RejectsOverlongPassword(t *testing.T) {
	h, err := NewHasher(bcrypt.MinCost)
	require.NoError(t, err)

	_, err = h.Hash(strings.Repeat("a", 73))
	assert.Error(t, err)
}

func TestHasher_VerifyRejectsBytesPastLimit(t *testing.T) {
	h, err := NewHasher(bcrypt.MinCost)
	require.NoError(t, err)

	password := strings.Repeat("b", MaxPasswordBytes)
	hash, err := h.Hash(password)
	require.NoError(t, err)

	assert.True(t, h.Verify(password, hash))
	assert.False(t, h.Verify(password+"ANYTHING", hash))
}
