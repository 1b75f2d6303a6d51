package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

func TestNewTokenGenerator(t *testing.T) {
	tests := []struct {
		name     string
		length   int
		alphabet string
		wantErr  bool
	}{
		{name: "default settings", length: 32, alphabet: testAlphabet},
		{name: "longer token", length: 64, alphabet: "01"},
		{name: "too short", length: 31, alphabet: testAlphabet, wantErr: true},
		{name: "single character alphabet", length: 32, alphabet: "a", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := NewTokenGenerator(tt.length, tt.alphabet)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)

			token, err := g.Generate()
			require.NoError(t, err)
			assert.Len(t, token, tt.length)
			for _, r := range token {
				assert.True(t, strings.ContainsRune(tt.alphabet, r), "unexpected rune %q", r)
			}
		})
	}
}

func TestTokenGenerator_Unique(t *testing.T) {
	g, err := NewTokenGenerator(32, testAlphabet)
	require.NoError(t, err)

	seen := make(map[string]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		token, err := g.Generate()
		require.NoError(t, err)
		_, dup := seen[token]
		require.False(t, dup)
		seen[token] = struct{}{}
	}
}

func TestMaskToken(t *testing.T) {
	tests := []struct {
		token string
		want  string
	}{
		{token: "abcdefghijklmnopqrstuvwxyz012345", want: "abcdefgh..."},
		{token: "abcdefghi", want: "abcdefgh..."},
		{token: "abcdefgh", want: "..."},
		{token: "", want: "..."},
	}

	for _, tt := range tests {
		t.Run(tt.want+"/"+tt.token, func(t *testing.T) {
			assert.Equal(t, tt.want, MaskToken(tt.token))
		})
	}
}
