package objmap

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/buckyos/ndn-core/obj"
)

func sampleId(n byte) obj.ObjId {
	return obj.NewByRaw("sha256", []byte{n, n, n})
}

func TestPutGetRemove(t *testing.T) {
	m := New(obj.HashMethodSha256)
	require.NoError(t, m.Put("a", sampleId(1)))
	require.NoError(t, m.Put("b", sampleId(2)))

	id, ok := m.Get("a")
	require.True(t, ok)
	require.Equal(t, sampleId(1), id)

	removed, ok, err := m.Remove("a")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, sampleId(1), removed)
	require.False(t, m.Exists("a"))
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "map.json")

	m := New(obj.HashMethodSha256)
	require.NoError(t, m.Put("x", sampleId(9)))
	require.NoError(t, m.Put("y", sampleId(8)))
	require.NoError(t, m.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 2, loaded.Len())
	id, ok := loaded.Get("x")
	require.True(t, ok)
	require.Equal(t, sampleId(9), id)
}

func TestCloneForModifyIsIndependent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "map.json")

	m := New(obj.HashMethodSha256)
	require.NoError(t, m.Put("k", sampleId(1)))
	require.NoError(t, m.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	clone, err := loaded.CloneForModify()
	require.NoError(t, err)

	require.NoError(t, clone.Put("k", sampleId(2)))
	id, _ := loaded.Get("k")
	require.Equal(t, sampleId(1), id, "original map must be unaffected by clone mutation")
}

func TestProofRoundTrip(t *testing.T) {
	m := New(obj.HashMethodSha256)
	for i := byte(0); i < 5; i++ {
		require.NoError(t, m.Put(string(rune('a'+i)), sampleId(i)))
	}
	require.NoError(t, m.Flush())
	root, err := m.CalcObjId()
	require.NoError(t, err)

	for i := byte(0); i < 5; i++ {
		p, err := m.GetWithProof(string(rune('a' + i)))
		require.NoError(t, err)
		require.True(t, VerifyProof(p, root))
	}
}

func TestReadOnlyMapRejectsMutation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "map.json")
	m := New(obj.HashMethodSha256)
	require.NoError(t, m.Put("a", sampleId(1)))
	require.NoError(t, m.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	err = loaded.Put("b", sampleId(2))
	require.Error(t, err)
}
