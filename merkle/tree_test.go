package merkle

import (
	"bytes"
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/buckyos/ndn-core/obj"
)

const testLeafSize = 32

func leafHash(s string) []byte {
	h := sha256.Sum256([]byte(s))
	return h[:]
}

func newTestBuilder(leafCount int) *Builder {
	return NewBuilder(uint64(leafCount)*testLeafSize, testLeafSize, obj.HashMethodSha256)
}

func TestBuildLoadRoundTrip(t *testing.T) {
	leaves := []string{"a", "b", "c", "d", "e"}
	b := newTestBuilder(len(leaves))
	for _, s := range leaves {
		require.NoError(t, b.AppendLeafHashes(leafHash(s)))
	}

	var out bytes.Buffer
	tree, err := b.Finalize(&out)
	require.NoError(t, err)
	require.Equal(t, 5, tree.LeafCount())
	require.Equal(t, int64(out.Len()), b.EstimateOutputBytes())

	loaded, err := Load(bytes.NewReader(out.Bytes()), true)
	require.NoError(t, err)
	require.Equal(t, tree.Root(), loaded.Root())
	require.Equal(t, tree.LeafCount(), loaded.LeafCount())

	rootOnly, err := Load(bytes.NewReader(out.Bytes()), false)
	require.NoError(t, err)
	require.Equal(t, tree.Root(), rootOnly.Root())
	_, err = rootOnly.ProofPath(0)
	require.Error(t, err)
}

func TestProofPathVerifiesForEveryLeaf(t *testing.T) {
	leaves := []string{"a", "b", "c", "d", "e", "f", "g"}
	b := newTestBuilder(len(leaves))
	for _, s := range leaves {
		require.NoError(t, b.AppendLeafHashes(leafHash(s)))
	}
	tree, err := b.Finalize(bytes.NewBuffer(nil))
	require.NoError(t, err)

	for i := range leaves {
		proof, err := tree.ProofPath(i)
		require.NoError(t, err)
		require.True(t, Verify(proof, tree.Root()), "leaf %d should verify", i)
	}
}

func TestProofPathRejectsTamperedHash(t *testing.T) {
	leaves := []string{"a", "b", "c", "d"}
	b := newTestBuilder(len(leaves))
	for _, s := range leaves {
		require.NoError(t, b.AppendLeafHashes(leafHash(s)))
	}
	tree, err := b.Finalize(bytes.NewBuffer(nil))
	require.NoError(t, err)

	proof, err := tree.ProofPath(1)
	require.NoError(t, err)
	proof[0].Hash = leafHash("tampered")
	require.False(t, Verify(proof, tree.Root()))
}

func TestSingleLeafTree(t *testing.T) {
	b := newTestBuilder(1)
	require.NoError(t, b.AppendLeafHashes(leafHash("only")))
	tree, err := b.Finalize(bytes.NewBuffer(nil))
	require.NoError(t, err)

	proof, err := tree.ProofPath(0)
	require.NoError(t, err)
	require.True(t, Verify(proof, tree.Root()))
}

func TestEmptyBuilderRejected(t *testing.T) {
	b := newTestBuilder(0)
	_, err := b.Finalize(bytes.NewBuffer(nil))
	require.Error(t, err)
}
