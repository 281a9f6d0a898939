package chunkstore

import (
	"bytes"
	"io"
	"sync"

	badger "github.com/dgraph-io/badger/v2"
	"github.com/google/uuid"

	"github.com/buckyos/ndn-core/ndnerr"
	"github.com/buckyos/ndn-core/ndnhash"
	"github.com/buckyos/ndn-core/obj"
)

// BadgerStore keeps every chunk body as one value in a single Badger
// database instead of one file per chunk, grounded on storage/fcds's
// NewBadgerStore — a denser alternative backend for large chunk counts
// where per-file inode overhead dominates.
type BadgerStore struct {
	db *badger.DB

	mu      sync.Mutex
	pending map[string]*memWriterState
}

func OpenBadgerStore(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, ndnerr.Wrap(ndnerr.DbError, "open badger chunk store failed", err)
	}
	return &BadgerStore{db: db, pending: make(map[string]*memWriterState)}, nil
}

func (s *BadgerStore) Close() error {
	if err := s.db.Close(); err != nil {
		return ndnerr.Wrap(ndnerr.DbError, "close badger chunk store failed", err)
	}
	return nil
}

// OpenWriter keys pending state by the target ChunkId's base32 form when
// want is known, mirroring MemStore — it lets a later ResumeWriter call
// within the same process find the writer by id alone. A nil want falls
// back to a random token since no stable key exists yet.
func (s *BadgerStore) OpenWriter(method obj.HashMethod, want *obj.ChunkId) (Writer, error) {
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
	return &badgerWriter{store: s, token: key, state: st}, nil
}

func (s *BadgerStore) ResumeWriter(id obj.ChunkId) (Writer, error) {
	key := id.Base32()
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.pending[key]
	if !ok {
		return nil, ndnerr.New(ndnerr.NotFound, "no in-progress writer for chunk "+id.String())
	}
	return &badgerWriter{store: s, token: key, state: st}, nil
}

type badgerWriter struct {
	store *BadgerStore
	token string
	state *memWriterState
}

func (w *badgerWriter) Write(p []byte) (int, error) {
	n, _ := w.state.buf.Write(p)
	w.state.hasher.Update(p[:n])
	return n, nil
}

func (w *badgerWriter) Offset() int64 { return int64(w.state.buf.Len()) }

func (w *badgerWriter) Abort() error {
	w.store.mu.Lock()
	delete(w.store.pending, w.token)
	w.store.mu.Unlock()
	return nil
}

func (w *badgerWriter) Complete(want *obj.ChunkId) (obj.ChunkId, error) {
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

	err = w.store.db.Update(func(txn *badger.Txn) error {
		key := []byte(id.String())
		if _, err := txn.Get(key); err == nil {
			return nil // already present, dedup
		}
		return txn.Set(key, append([]byte(nil), w.state.buf.Bytes()...))
	})
	if err != nil {
		return obj.ChunkId{}, ndnerr.Wrap(ndnerr.DbError, "publish chunk to badger failed", err)
	}

	w.store.mu.Lock()
	delete(w.store.pending, w.token)
	w.store.mu.Unlock()
	return id, nil
}

func (s *BadgerStore) Exists(id obj.ChunkId) (bool, error) {
	var found bool
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(id.String()))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return nil
	})
	if err != nil {
		return false, ndnerr.Wrap(ndnerr.DbError, "badger existence check failed", err)
	}
	return found, nil
}

func (s *BadgerStore) Delete(id obj.ChunkId) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(id.String()))
	})
	if err != nil {
		return ndnerr.Wrap(ndnerr.DbError, "badger delete failed", err)
	}
	return nil
}

type badgerReader struct {
	*bytes.Reader
}

func (r *badgerReader) Close() error { return nil }

func (s *BadgerStore) OpenReader(id obj.ChunkId) (Reader, error) {
	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(id.String()))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if err == badger.ErrKeyNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, ndnerr.Wrap(ndnerr.DbError, "badger read failed", err)
	}
	return &badgerReader{bytes.NewReader(data)}, nil
}

func (s *BadgerStore) IterChunks(fn func(obj.ChunkId) (bool, error)) error {
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			id, err := obj.Parse(string(it.Item().Key()))
			if err != nil {
				continue
			}
			cont, err := fn(id)
			if err != nil {
				return err
			}
			if !cont {
				return nil
			}
		}
		return nil
	})
}

var _ io.ReadCloser = (*badgerReader)(nil)
