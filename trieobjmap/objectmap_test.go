package trieobjmap

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/buckyos/ndn-core/obj"
)

func sampleId(n byte) obj.ObjId {
	return obj.NewByRaw("sha256", []byte{n, n, n})
}

func TestPutGetRemove(t *testing.T) {
	m := New(obj.HashMethodSha256)
	require.NoError(t, m.PutObject("alpha", sampleId(1), []byte("meta-a")))
	require.NoError(t, m.PutObject("beta", sampleId(2), nil))

	item, ok, err := m.GetObject("alpha")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, sampleId(1), item.ObjId)
	require.Equal(t, []byte("meta-a"), item.Meta)

	removed, ok, err := m.RemoveObject("beta")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, sampleId(2), removed.ObjId)
	require.False(t, m.IsObjectExist("beta"))
}

func TestProofVerifiesPresence(t *testing.T) {
	m := New(obj.HashMethodSha256)
	keys := []string{"apple", "banana", "cherry", "date", "elderberry"}
	for i, k := range keys {
		require.NoError(t, m.PutObject(k, sampleId(byte(i)), nil))
	}

	verifier := NewProofVerifier(obj.HashMethodSha256)
	for i, k := range keys {
		proof, err := m.GetObjectProofPath(k)
		require.NoError(t, err)
		item := Item{ObjId: sampleId(byte(i))}
		value, err := item.Encode()
		require.NoError(t, err)
		require.Equal(t, Valid, verifier.Verify(k, value, proof))
	}
}

func TestProofVerifiesAbsence(t *testing.T) {
	m := New(obj.HashMethodSha256)
	require.NoError(t, m.PutObject("present", sampleId(1), nil))

	proof, err := m.GetObjectProofPath("absent")
	require.NoError(t, err)

	verifier := NewProofVerifier(obj.HashMethodSha256)
	result := verifier.Verify("absent", nil, proof)
	require.Equal(t, ValidAbsent, result)
}

func TestProofNodesCodecRoundTrip(t *testing.T) {
	m := New(obj.HashMethodSha256)
	for i, k := range []string{"one", "two", "three"} {
		require.NoError(t, m.PutObject(k, sampleId(byte(i)), nil))
	}
	proof, err := m.GetObjectProofPath("two")
	require.NoError(t, err)

	encoded, err := proof.EncodeNodes()
	require.NoError(t, err)

	decoded, err := DecodeProofNodes(encoded)
	require.NoError(t, err)
	require.Equal(t, proof.ProofNodes, decoded)
}

func TestRootHashChangesOnMutation(t *testing.T) {
	m := New(obj.HashMethodSha256)
	before := m.GetRootHash()
	require.NoError(t, m.PutObject("k", sampleId(1), nil))
	after := m.GetRootHash()
	require.NotEqual(t, before, after)
}
