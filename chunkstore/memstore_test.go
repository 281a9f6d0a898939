package chunkstore

import (
	"crypto/sha256"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/buckyos/ndn-core/obj"
)

func sha256Sum(s string) []byte {
	h := sha256.Sum256([]byte(s))
	return h[:]
}

func TestMemStoreWriteReadRoundTrip(t *testing.T) {
	s := NewMemStore()
	defer s.Close()

	w, err := s.OpenWriter(obj.HashMethodSha256, nil)
	require.NoError(t, err)
	_, err = w.Write([]byte("hello world"))
	require.NoError(t, err)
	require.Equal(t, int64(len("hello world")), w.Offset())

	id, err := w.Complete(nil)
	require.NoError(t, err)

	exists, err := s.Exists(id)
	require.NoError(t, err)
	require.True(t, exists)

	r, err := s.OpenReader(id)
	require.NoError(t, err)
	defer r.Close()
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	require.Equal(t, "hello world", string(data))
}

func TestMemStoreRejectsHashMismatch(t *testing.T) {
	s := NewMemStore()
	defer s.Close()

	w, err := s.OpenWriter(obj.HashMethodSha256, nil)
	require.NoError(t, err)
	_, err = w.Write([]byte("some bytes"))
	require.NoError(t, err)

	wrong, err := obj.FromHashResult(obj.HashMethodSha256, make([]byte, 32))
	require.NoError(t, err)
	_, err = w.Complete(&wrong)
	require.Error(t, err)
}

func TestMemStoreDedup(t *testing.T) {
	s := NewMemStore()
	defer s.Close()

	w1, _ := s.OpenWriter(obj.HashMethodSha256, nil)
	w1.Write([]byte("dup content"))
	id1, err := w1.Complete(nil)
	require.NoError(t, err)

	w2, _ := s.OpenWriter(obj.HashMethodSha256, nil)
	w2.Write([]byte("dup content"))
	id2, err := w2.Complete(nil)
	require.NoError(t, err)

	require.True(t, id1.Equal(id2))
}

func TestMemStoreDeleteAndIter(t *testing.T) {
	s := NewMemStore()
	defer s.Close()

	var ids []obj.ChunkId
	for _, content := range []string{"a", "bb", "ccc"} {
		w, _ := s.OpenWriter(obj.HashMethodSha256, nil)
		w.Write([]byte(content))
		id, err := w.Complete(nil)
		require.NoError(t, err)
		ids = append(ids, id)
	}

	seen := map[string]bool{}
	err := s.IterChunks(func(id obj.ChunkId) (bool, error) {
		seen[id.String()] = true
		return true, nil
	})
	require.NoError(t, err)
	require.Len(t, seen, 3)

	require.NoError(t, s.Delete(ids[0]))
	exists, err := s.Exists(ids[0])
	require.NoError(t, err)
	require.False(t, exists)
}

func TestMemStoreResumeWriter(t *testing.T) {
	s := NewMemStore()
	defer s.Close()

	want, err := obj.FromHashResult(obj.HashMethodSha256, sha256Sum("partial-rest"))
	require.NoError(t, err)

	w, err := s.OpenWriter(obj.HashMethodSha256, &want)
	require.NoError(t, err)
	w.Write([]byte("partial-"))

	resumed, err := s.ResumeWriter(want)
	require.NoError(t, err)
	resumed.Write([]byte("rest"))
	id, err := resumed.Complete(&want)
	require.NoError(t, err)

	r, err := s.OpenReader(id)
	require.NoError(t, err)
	defer r.Close()
	data, _ := io.ReadAll(r)
	require.Equal(t, "partial-rest", string(data))
}

func TestMemStoreOpenWriterRejectsKnownIdAlreadyInProgress(t *testing.T) {
	s := NewMemStore()
	defer s.Close()

	want, err := obj.FromHashResult(obj.HashMethodSha256, sha256Sum("racing content"))
	require.NoError(t, err)

	_, err = s.OpenWriter(obj.HashMethodSha256, &want)
	require.NoError(t, err)

	_, err = s.OpenWriter(obj.HashMethodSha256, &want)
	require.ErrorIs(t, err, ErrAlreadyInProgress)
}

func TestMemStoreOpenWriterRejectsKnownIdAlreadyExists(t *testing.T) {
	s := NewMemStore()
	defer s.Close()

	w, err := s.OpenWriter(obj.HashMethodSha256, nil)
	require.NoError(t, err)
	w.Write([]byte("already stored"))
	id, err := w.Complete(nil)
	require.NoError(t, err)

	_, err = s.OpenWriter(obj.HashMethodSha256, &id)
	require.ErrorIs(t, err, ErrAlreadyExists)
}
