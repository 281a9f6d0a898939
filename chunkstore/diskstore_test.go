package chunkstore

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/buckyos/ndn-core/obj"
)

func TestDiskStoreWriteReadRoundTrip(t *testing.T) {
	s, err := OpenDiskStore(t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	w, err := s.OpenWriter(obj.HashMethodSha256, nil)
	require.NoError(t, err)
	_, err = w.Write([]byte("on disk content"))
	require.NoError(t, err)

	id, err := w.Complete(nil)
	require.NoError(t, err)

	r, err := s.OpenReader(id)
	require.NoError(t, err)
	defer r.Close()
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	require.Equal(t, "on disk content", string(data))
}

func TestDiskStoreAbortLeavesNoTrace(t *testing.T) {
	root := t.TempDir()
	s, err := OpenDiskStore(root)
	require.NoError(t, err)
	defer s.Close()

	w, err := s.OpenWriter(obj.HashMethodSha256, nil)
	require.NoError(t, err)
	w.Write([]byte("will be aborted"))
	require.NoError(t, w.Abort())

	leftovers, err := os.ReadDir(filepath.Join(root, "tmp"))
	require.NoError(t, err)
	require.Empty(t, leftovers, "aborted writer must not leave a temp file")

	iter := s.meta.NewIterator(util.BytesPrefix([]byte{metaPrefixResume}), nil)
	hasResumeState := iter.Next()
	iter.Release()
	require.False(t, hasResumeState, "aborted writer must not leave resume state")
}

func TestDiskStoreDeleteRemovesEntry(t *testing.T) {
	s, err := OpenDiskStore(t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	w, _ := s.OpenWriter(obj.HashMethodSha256, nil)
	w.Write([]byte("to delete"))
	id, err := w.Complete(nil)
	require.NoError(t, err)

	require.NoError(t, s.Delete(id))
	exists, err := s.Exists(id)
	require.NoError(t, err)
	require.False(t, exists)
}

func TestCachedStoreServesFromMmap(t *testing.T) {
	disk, err := OpenDiskStore(t.TempDir())
	require.NoError(t, err)
	defer disk.Close()

	cached, err := NewCachedStore(disk, 8)
	require.NoError(t, err)

	w, _ := cached.OpenWriter(obj.HashMethodSha256, nil)
	w.Write([]byte("cached content"))
	id, err := w.Complete(nil)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		r, err := cached.OpenReader(id)
		require.NoError(t, err)
		require.IsType(t, &mmapReader{}, r)
		data, err := io.ReadAll(r)
		require.NoError(t, err)
		r.Close()
		require.Equal(t, "cached content", string(data))
	}
}
