package chunkstore

import (
	"bytes"
	"sync"

	"github.com/google/uuid"

	"github.com/buckyos/ndn-core/ndnerr"
	"github.com/buckyos/ndn-core/ndnhash"
	"github.com/buckyos/ndn-core/obj"
)

// MemStore is an in-process, map-backed chunk store, grounded on the
// in-memory fixture stores storage/fcds/test.RunAll exercises its backends
// against. Intended for tests, not production use.
type MemStore struct {
	mu      sync.Mutex
	chunks  map[string][]byte
	pending map[string]*memWriterState
}

func NewMemStore() *MemStore {
	return &MemStore{chunks: make(map[string][]byte), pending: make(map[string]*memWriterState)}
}

func (s *MemStore) Close() error { return nil }

type memWriterState struct {
	method obj.HashMethod
	buf    bytes.Buffer
	hasher *ndnhash.IncrementalHasher
}

type memWriter struct {
	store *MemStore
	token string
	state *memWriterState
}

// OpenWriter keys pending state by the target ChunkId's base32 form when
// want is known, so a later ResumeWriter call made from the same live
// process (no crash) can find it by id alone; a nil want falls back to a
// random token since no stable key exists yet.
func (s *MemStore) OpenWriter(method obj.HashMethod, want *obj.ChunkId) (Writer, error) {
	if want != nil {
		if exists, _ := s.Exists(*want); exists {
			return nil, ErrAlreadyExists
		}
	}
	key := uuid.NewString()
	if want != nil {
		key = want.Base32()
	}
	st := &memWriterState{method: method, hasher: ndnhash.NewIncrementalHasher()}
	s.mu.Lock()
	if _, busy := s.pending[key]; busy {
		s.mu.Unlock()
		return nil, ErrAlreadyInProgress
	}
	s.pending[key] = st
	s.mu.Unlock()
	return &memWriter{store: s, token: key, state: st}, nil
}

func (s *MemStore) ResumeWriter(id obj.ChunkId) (Writer, error) {
	key := id.Base32()
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.pending[key]
	if !ok {
		return nil, ndnerr.New(ndnerr.NotFound, "no in-progress writer for chunk "+id.String())
	}
	return &memWriter{store: s, token: key, state: st}, nil
}

func (w *memWriter) Write(p []byte) (int, error) {
	n, _ := w.state.buf.Write(p)
	w.state.hasher.Update(p[:n])
	return n, nil
}

func (w *memWriter) Offset() int64 { return int64(w.state.buf.Len()) }

func (w *memWriter) Abort() error {
	w.store.mu.Lock()
	delete(w.store.pending, w.token)
	w.store.mu.Unlock()
	return nil
}

func (w *memWriter) Complete(want *obj.ChunkId) (obj.ChunkId, error) {
	digest := w.state.hasher.Finalize()
	var id obj.ChunkId
	var err error
	if w.state.method.IsMix() {
		id, err = obj.MixFromHashResult(w.state.method, digest, int64(w.state.buf.Len()))
	} else {
		id, err = obj.FromHashResult(w.state.method, digest)
	}
	if err != nil {
		return obj.ChunkId{}, err
	}
	if want != nil && !want.Equal(id) {
		w.Abort()
		return obj.ChunkId{}, ndnerr.New(ndnerr.HashMismatch, "completed chunk hash does not match expected id")
	}

	w.store.mu.Lock()
	defer w.store.mu.Unlock()
	if _, exists := w.store.chunks[id.String()]; !exists {
		w.store.chunks[id.String()] = append([]byte(nil), w.state.buf.Bytes()...)
	}
	delete(w.store.pending, w.token)
	return id, nil
}

func (s *MemStore) Exists(id obj.ChunkId) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.chunks[id.String()]
	return ok, nil
}

func (s *MemStore) Delete(id obj.ChunkId) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.chunks, id.String())
	return nil
}

type memReader struct {
	*bytes.Reader
}

func (r *memReader) Close() error { return nil }

func (s *MemStore) OpenReader(id obj.ChunkId) (Reader, error) {
	s.mu.Lock()
	data, ok := s.chunks[id.String()]
	s.mu.Unlock()
	if !ok {
		return nil, ErrNotFound
	}
	return &memReader{bytes.NewReader(data)}, nil
}

func (s *MemStore) IterChunks(fn func(obj.ChunkId) (bool, error)) error {
	s.mu.Lock()
	ids := make([]string, 0, len(s.chunks))
	for k := range s.chunks {
		ids = append(ids, k)
	}
	s.mu.Unlock()
	for _, k := range ids {
		id, err := obj.Parse(k)
		if err != nil {
			continue
		}
		cont, err := fn(id)
		if err != nil {
			return err
		}
		if !cont {
			break
		}
	}
	return nil
}
