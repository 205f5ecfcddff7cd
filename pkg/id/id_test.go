package id

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSnowflakeRejectsBadNode(t *testing.T) {
	_, err := NewSnowflake(-1)
	assert.ErrorIs(t, err, ErrInvalidNode)

	_, err = NewSnowflake(int64(nodeMax) + 1)
	assert.ErrorIs(t, err, ErrInvalidNode)

	_, err = NewSnowflake(int64(nodeMax))
	assert.NoError(t, err)
}

func TestSnowflakeGeneratesUniqueIDs(t *testing.T) {
	sf, err := NewSnowflake(1)
	require.NoError(t, err)

	seen := make(map[string]struct{})
	for i := 0; i < 10000; i++ {
		id := sf.Generate()
		_, dup := seen[id]
		require.False(t, dup, "duplicate id %s", id)
		seen[id] = struct{}{}
	}
}

func TestULIDsAreUniqueAndSortable(t *testing.T) {
	a := NewULID()
	b := NewULID()

	assert.Len(t, a, 26)
	assert.NotEqual(t, a, b)
	// Same-or-later timestamp sorts same-or-later lexicographically.
	assert.LessOrEqual(t, a[:10], b[:10])
}
