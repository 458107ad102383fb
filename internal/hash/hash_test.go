package hash

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestNewHasher_ClampsCost(t *testing.T) {
	tests := []struct {
		name string
		in   int
		want int
	}{
		{name: "zero uses default", in: 0, want: DefaultCost},
		{name: "below min", in: 1, want: bcrypt.MinCost},
		{name: "above max", in: 99, want: bcrypt.MaxCost},
		{name: "in range", in: 6, want: 6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NewHasher(tt.in).Cost)
		})
	}
}

func TestHasher_HashAndVerify(t *testing.T) {
	t.Parallel()

	h := NewHasher(bcrypt.MinCost)

	first, err := h.Hash("Passw0rd!")
	require.NoError(t, err)
	second, err := h.Hash("Passw0rd!")
	require.NoError(t, err)

	assert.NotEqual(t, first, second, "salt must differ per call")
	assert.NotContains(t, first, "Passw0rd!")
	assert.True(t, h.Verify("Passw0rd!", first))
	assert.True(t, h.Verify("Passw0rd!", second))
	assert.False(t, h.Verify("passw0rd!", first))
	assert.False(t, h.Verify("Passw0rd!", "not-a-bcrypt-hash"))
}

func TestHasher_EmbedsCost(t *testing.T) {
	t.Parallel()

	hashed, err := NewHasher(5).Hash("Secret123")
	require.NoError(t, err)

	cost, err := bcrypt.Cost([]byte(hashed))
	require.NoError(t, err)
	assert.Equal(t, 5, cost)
}

func TestHasher_TooLongPassword(t *testing.T) {
	t.Parallel()

	_, err := NewHasher(bcrypt.MinCost).Hash(strings.Repeat("a", 80))
	require.Error(t, err)
}
