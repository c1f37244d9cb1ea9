package node

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKind(t *testing.T) {
	require := require.New(t)

	for _, k := range []Kind{KindRegular, KindEvo} {
		text, err := k.MarshalText()
		require.NoError(err)

		var dec Kind
		require.NoError(dec.UnmarshalText(text))
		require.Equal(k, dec)
	}

	var k Kind
	require.NoError(k.UnmarshalText([]byte("EVO")))
	require.Equal(KindEvo, k)
	require.ErrorIs(k.UnmarshalText([]byte("hpmn")), ErrInvalidKind)

	_, err := Kind(3).MarshalText()
	require.ErrorIs(err, ErrInvalidKind)
}

func TestPlatformNodeID(t *testing.T) {
	require := require.New(t)

	var id PlatformNodeID
	require.True(id.IsZero())
	require.NoError(id.UnmarshalText([]byte("0102030405060708090a0b0c0d0e0f1011121314")))
	require.False(id.IsZero())
	require.Equal("0102030405060708090a0b0c0d0e0f1011121314", id.String())

	require.ErrorIs(id.UnmarshalText([]byte("0102")), ErrMalformedPlatformNodeID)
	require.ErrorIs(id.UnmarshalText([]byte("zz")), ErrMalformedPlatformNodeID)
}
