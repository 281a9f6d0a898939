package ndnhash

import (
	"bytes"
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStreamHashMatchesSha256(t *testing.T) {
	data := bytes.Repeat([]byte("abc"), 1000)
	got, err := StreamHash(bytes.NewReader(data))
	require.NoError(t, err)
	want := sha256.Sum256(data)
	require.Equal(t, want[:], got)
}

func TestStreamHashHandlesExactPieceMultiple(t *testing.T) {
	// Regression guard: the original calc_from_reader stopped as soon as
	// any read returned fewer bytes than its piece size, which would
	// mishandle an input that is an exact multiple of that size. This
	// implementation must hash to EOF regardless.
	data := make([]byte, 1024*1024*2)
	got, err := StreamHash(bytes.NewReader(data))
	require.NoError(t, err)
	want := sha256.Sum256(data)
	require.Equal(t, want[:], got)
}

func TestQuickHashRejectsShortInput(t *testing.T) {
	data := make([]byte, QuickHashWindowSize*2)
	_, err := QuickHash(bytes.NewReader(data), int64(len(data)))
	require.Error(t, err)
}

func TestQuickHashDeterministic(t *testing.T) {
	data := make([]byte, QuickHashWindowSize*10)
	for i := range data {
		data[i] = byte(i)
	}
	h1, err := QuickHash(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	h2, err := QuickHash(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	require.Equal(t, h1, h2)
}

func TestQuickHashFromWindowsRejectsWrongSize(t *testing.T) {
	_, err := QuickHashFromWindows(make([]byte, 10), make([]byte, QuickHashWindowSize), make([]byte, QuickHashWindowSize))
	require.Error(t, err)
}

func TestIncrementalHasherSnapshotRestore(t *testing.T) {
	part1 := []byte("hello, ")
	part2 := []byte("world")

	h := NewIncrementalHasher()
	h.Update(part1)
	snap, err := h.Snapshot()
	require.NoError(t, err)

	restored, err := RestoreIncrementalHasher(snap)
	require.NoError(t, err)
	restored.Update(part2)
	got := restored.Finalize()

	full := NewIncrementalHasher()
	full.Update(part1)
	full.Update(part2)
	want := full.Finalize()

	require.Equal(t, want, got)
}

func TestCombineParentOrderSensitive(t *testing.T) {
	a := []byte{1, 2, 3}
	b := []byte{4, 5, 6}
	require.NotEqual(t, CombineParent(a, b), CombineParent(b, a))
}
