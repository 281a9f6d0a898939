package objarray

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/buckyos/ndn-core/obj"
)

func sampleId(n byte) obj.ObjId {
	return obj.NewByRaw("sha256", []byte{n, n, n})
}

func TestAppendGetRemove(t *testing.T) {
	a := New(obj.HashMethodSha256)
	a.Append(sampleId(1))
	a.Append(sampleId(2))
	a.Append(sampleId(3))
	require.Equal(t, 3, a.Len())

	got, err := a.Get(1)
	require.NoError(t, err)
	require.Equal(t, sampleId(2), got)

	removed, err := a.Remove(0)
	require.NoError(t, err)
	require.Equal(t, sampleId(1), removed)
	require.Equal(t, 2, a.Len())
}

func TestFlushAndProofRoundTrip(t *testing.T) {
	a := New(obj.HashMethodSha256)
	for i := byte(0); i < 6; i++ {
		a.Append(sampleId(i))
	}
	require.NoError(t, a.Flush())

	root, err := a.CalcObjId()
	require.NoError(t, err)

	for i := 0; i < a.Len(); i++ {
		p, err := a.GetWithProof(i)
		require.NoError(t, err)
		require.True(t, VerifyProof(p, root))
	}
}

func TestDirtyAfterMutationRequiresFlush(t *testing.T) {
	a := New(obj.HashMethodSha256)
	a.Append(sampleId(1))
	require.NoError(t, a.Flush())
	a.Append(sampleId(2))

	_, err := a.GetWithProof(0)
	require.Error(t, err, "proofs over a dirty array must be rejected until Flush")
}

func TestRangeGetWithProof(t *testing.T) {
	a := New(obj.HashMethodSha256)
	for i := byte(0); i < 10; i++ {
		a.Append(sampleId(i))
	}
	require.NoError(t, a.Flush())
	root, err := a.CalcObjId()
	require.NoError(t, err)

	proofs, err := a.RangeGetWithProof(2, 5)
	require.NoError(t, err)
	require.Len(t, proofs, 3)
	for _, p := range proofs {
		require.True(t, VerifyProof(p, root))
	}
}

func TestCalcObjIdRejectsEmptyArray(t *testing.T) {
	a := New(obj.HashMethodSha256)
	_, err := a.CalcObjId()
	require.Error(t, err)
}
