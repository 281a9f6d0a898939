package obj

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestObjIdStringRoundTrip(t *testing.T) {
	id := NewByRaw("mtree", []byte{1, 2, 3, 4})
	parsed, err := Parse(id.String())
	require.NoError(t, err)
	require.Equal(t, id, parsed)
}

func TestObjIdHostnameRoundTrip(t *testing.T) {
	id := NewByRaw("sha256", []byte{0xde, 0xad, 0xbe, 0xef})
	parsed, err := FromHostname(id.Hostname())
	require.NoError(t, err)
	require.Equal(t, id, parsed)
}

func TestObjIdDidStringHasPrefix(t *testing.T) {
	id := NewByRaw("objmap", []byte{1})
	require.Equal(t, "did:objmap:01", id.DidString())
}

func TestObjIdBase32RoundTrip(t *testing.T) {
	id := NewByRaw("mix-sha256", []byte{1, 2, 3, 4, 0xff})
	parsed, err := Parse(id.Base32())
	require.NoError(t, err)
	require.Equal(t, id, parsed)
}

func TestChunkIdMixRoundTrip(t *testing.T) {
	hash := make([]byte, 32)
	for i := range hash {
		hash[i] = byte(i)
	}
	cid, err := MixFromHashResult(HashMethodMixSha256, hash, 123456)
	require.NoError(t, err)

	objId := cid.ToObjId()
	back, err := FromObjId(objId)
	require.NoError(t, err)
	require.True(t, cid.Equal(back))

	length, ok := back.GetLength()
	require.True(t, ok)
	require.Equal(t, int64(123456), length)
}

func TestChunkIdPlainHasNoLength(t *testing.T) {
	cid, err := FromHashResult(HashMethodSha256, []byte{1, 2, 3})
	require.NoError(t, err)
	_, ok := cid.GetLength()
	require.False(t, ok)
}
