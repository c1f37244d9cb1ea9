package hash

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHash(t *testing.T) {
	require := require.New(t)

	a := NewFromBytes([]byte("collateral"))
	b := NewFromBytes([]byte("collat"), []byte("eral"))
	require.True(a.Equal(&b), "split input must hash the same")
	require.False(a.IsZero())
	require.True((&Hash{}).IsZero())

	text, err := a.MarshalText()
	require.NoError(err)
	require.Len(text, 2*Size)

	var c Hash
	require.NoError(c.UnmarshalText(text))
	require.Equal(a, c)
	require.Equal(a.String(), string(text))

	require.ErrorIs(c.UnmarshalText([]byte("zz")), ErrMalformed)
	require.ErrorIs(c.UnmarshalBinary([]byte{1, 2, 3}), ErrMalformed)

	x, y := NewFrom(uint64(1)), NewFrom(uint64(2))
	require.NotEqual(x, y)
	require.True(x.Less(&y) != y.Less(&x))
}
