package ndnclient

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/buckyos/ndn-core/chunkstore"
	"github.com/buckyos/ndn-core/obj"
)

func TestPullChunkVerifiesAndStores(t *testing.T) {
	content := []byte("remote chunk bytes")
	var id obj.ChunkId
	{
		tmp := chunkstore.NewMemStore()
		w, _ := tmp.OpenWriter(obj.HashMethodSha256, nil)
		w.Write(content)
		var err error
		id, err = w.Complete(nil)
		require.NoError(t, err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(content)
	}))
	defer srv.Close()

	store := chunkstore.NewMemStore()
	client := New(store)

	n, err := client.PullChunk(context.Background(), srv.URL, id)
	require.NoError(t, err)
	require.Equal(t, int64(len(content)), n)

	exists, err := store.Exists(id)
	require.NoError(t, err)
	require.True(t, exists)
}

func TestPullChunkHashMismatchIsNotStored(t *testing.T) {
	wrongId, err := obj.FromHashResult(obj.HashMethodSha256, make([]byte, 32))
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not matching the id"))
	}))
	defer srv.Close()

	store := chunkstore.NewMemStore()
	client := New(store)

	_, err = client.PullChunk(context.Background(), srv.URL, wrongId)
	require.Error(t, err)

	exists, err := store.Exists(wrongId)
	require.NoError(t, err)
	require.False(t, exists, "a hash-mismatched pull must never become visible in the store")
}

func TestGetChunkRejectsAutoStoreFalseWhenMissing(t *testing.T) {
	store := chunkstore.NewMemStore()
	client := New(store)

	id, _ := obj.FromHashResult(obj.HashMethodSha256, make([]byte, 32))
	_, err := client.GetChunk(context.Background(), "http://unused", id, false)
	require.Error(t, err)
}

func TestPullChunkResumesAfterTruncatedTransfer(t *testing.T) {
	content := []byte(strings.Repeat("ndn resumed chunk content ", 200))
	half := len(content) / 2

	var id obj.ChunkId
	{
		tmp := chunkstore.NewMemStore()
		w, _ := tmp.OpenWriter(obj.HashMethodSha256, nil)
		w.Write(content)
		var err error
		id, err = w.Complete(nil)
		require.NoError(t, err)
	}

	var gotRange string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rng := r.Header.Get("Range"); rng != "" {
			gotRange = rng
			w.Header().Set("Content-Length", strconv.Itoa(len(content)-half))
			w.WriteHeader(http.StatusPartialContent)
			w.Write(content[half:])
			return
		}
		// Declare the full length but only ever write half of it, forcing
		// the client's io.Copy to fail with an unexpected-EOF-style error.
		w.Header().Set("Content-Length", strconv.Itoa(len(content)))
		w.Write(content[:half])
	}))
	defer srv.Close()

	store := chunkstore.NewMemStore()
	client := New(store)

	_, err := client.PullChunk(context.Background(), srv.URL, id)
	require.Error(t, err)

	exists, err := store.Exists(id)
	require.NoError(t, err)
	require.False(t, exists)

	// Simulate a crash: a brand-new Client, sharing only the underlying
	// store (as a restarted process would, reopening the same on-disk
	// store), resumes the download knowing nothing but the ChunkId — no
	// state carries over from the first Client's in-memory fields.
	restarted := New(store)

	n, err := restarted.PullChunk(context.Background(), srv.URL, id)
	require.NoError(t, err)
	require.Equal(t, int64(len(content)-half), n)
	require.Equal(t, "bytes="+strconv.Itoa(half)+"-", gotRange)

	exists, err = store.Exists(id)
	require.NoError(t, err)
	require.True(t, exists)
}

func TestPushChunkTreats409AsSuccess(t *testing.T) {
	store := chunkstore.NewMemStore()
	w, _ := store.OpenWriter(obj.HashMethodSha256, nil)
	w.Write([]byte("already there"))
	id, err := w.Complete(nil)
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusConflict)
	}))
	defer srv.Close()

	client := New(store)
	require.NoError(t, client.PushChunk(context.Background(), srv.URL, id))
}
