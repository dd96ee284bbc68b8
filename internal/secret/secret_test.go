package secret

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestMint(t *testing.T) {
	for _, n := range []int{1, 8, DefaultLength, 64} {
		code, err := Mint(n)
		require.NoError(t, err)
		assert.Len(t, code, n)
		for _, r := range code {
			assert.True(t, strings.ContainsRune(alphabet, r), "unexpected rune %q", r)
		}
	}
}

func TestMint_InvalidLength(t *testing.T) {
	_, err := Mint(0)
	assert.ErrorIs(t, err, ErrInvalidLength)
	_, err = Mint(-3)
	assert.ErrorIs(t, err, ErrInvalidLength)
}

func TestMint_Distinct(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 200; i++ {
		code, err := Mint(DefaultLength)
		require.NoError(t, err)
		_, dup := seen[code]
		require.False(t, dup, "duplicate code %s", code)
		seen[code] = struct{}{}
	}
}

func TestMint_CoversAlphabet(t *testing.T) {
	code, err := Mint(20000)
	require.NoError(t, err)
	counts := make(map[rune]int)
	for _, r := range code {
		counts[r]++
	}
	assert.Len(t, counts, len(alphabet))
}

func TestHashVerify(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)

	hash, err := h.Hash("Abc123xyz0")
	require.NoError(t, err)
	assert.NotEqual(t, "Abc123xyz0", hash)

	assert.True(t, h.Verify("Abc123xyz0", hash))
	assert.False(t, h.Verify("Abc123xyz1", hash))
	assert.False(t, h.Verify("", hash))
	assert.False(t, h.Verify("Abc123xyz0", ""))
	assert.False(t, h.Verify("Abc123xyz0", "not-a-bcrypt-hash"))
}

func TestHash_UniqueSalt(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)
	a, err := h.Hash("same")
	require.NoError(t, err)
	b, err := h.Hash("same")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestNewHasher_CostFallback(t *testing.T) {
	assert.Equal(t, DefaultCost, NewHasher(0).cost)
	assert.Equal(t, DefaultCost, NewHasher(bcrypt.MaxCost+1).cost)
	assert.Equal(t, 12, NewHasher(12).cost)
}
