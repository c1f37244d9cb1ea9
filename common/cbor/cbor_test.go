package cbor

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOutOfMem1(t *testing.T) {
	require := require.New(t)

	var f []byte
	err := Unmarshal([]byte("\x9b\x00\x00000000"), f)
	require.Error(err, "Invalid CBOR input should fail")
}

func TestOutOfMem2(t *testing.T) {
	require := require.New(t)

	var f []byte
	err := Unmarshal([]byte("\x9b\x00\x00\x81112233"), f)
	require.Error(err, "Invalid CBOR input should fail")
}

func TestEncoderDecoder(t *testing.T) {
	require := require.New(t)

	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	err := enc.Encode(42)
	require.NoError(err, "Encode")

	var x int
	dec := NewDecoder(&buf)
	err = dec.Decode(&x)
	require.NoError(err, "Decode")
	require.EqualValues(42, x, "decoded value should be correct")
}

func TestDeterministicMaps(t *testing.T) {
	require := require.New(t)

	a := map[string]uint64{"core_p2p": 1, "platform_http": 2, "platform_p2p": 3}
	b := map[string]uint64{"platform_p2p": 3, "core_p2p": 1, "platform_http": 2}
	require.Equal(Marshal(a), Marshal(b), "map encoding must not depend on insertion order")

	var out map[string]uint64
	require.NoError(Unmarshal(Marshal(a), &out))
	require.Equal(a, out)
}
