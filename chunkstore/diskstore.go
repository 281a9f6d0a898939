package chunkstore

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"sync"

	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/metrics"
	"github.com/google/uuid"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/buckyos/ndn-core/ndnerr"
	"github.com/buckyos/ndn-core/ndnhash"
	"github.com/buckyos/ndn-core/obj"
)

// DiskStore is a content-addressed on-disk chunk store: chunk bodies live
// one-file-per-chunk under data/<first two base32 characters of the id>/,
// and a
// LevelDB index (grounded on shed's schema-prefixed field pattern) tracks
// the known chunk set plus in-flight resumable-writer metadata.
type DiskStore struct {
	root string
	meta *leveldb.DB

	mu         sync.Mutex
	writeLocks map[string]struct{} // chunk id string -> held, guards Complete races
	openLocks  map[string]struct{} // resume key -> held, guards OpenWriter/ResumeWriter races
}

const (
	metaPrefixChunk  = 'c' // chunk id string -> length (uint64 BE), existence index
	metaPrefixResume = 'r' // resume token -> method byte + length-prefixed hasher snapshot (see persistState)
)

func OpenDiskStore(root string) (*DiskStore, error) {
	if err := os.MkdirAll(filepath.Join(root, "tmp"), 0o755); err != nil {
		return nil, ndnerr.Wrap(ndnerr.IoError, "create tmp dir failed", err)
	}
	if err := os.MkdirAll(filepath.Join(root, "data"), 0o755); err != nil {
		return nil, ndnerr.Wrap(ndnerr.IoError, "create data dir failed", err)
	}
	db, err := leveldb.OpenFile(filepath.Join(root, "meta"), nil)
	if err != nil {
		return nil, ndnerr.Wrap(ndnerr.DbError, "open chunk metadata index failed", err)
	}
	return &DiskStore{root: root, meta: db, writeLocks: make(map[string]struct{}), openLocks: make(map[string]struct{})}, nil
}

func (s *DiskStore) Close() error {
	if err := s.meta.Close(); err != nil {
		return ndnerr.Wrap(ndnerr.DbError, "close chunk metadata index failed", err)
	}
	return nil
}

func (s *DiskStore) dataPath(id obj.ChunkId) string {
	b32 := id.Base32()
	prefix := b32
	if len(prefix) > 2 {
		prefix = prefix[:2]
	}
	return filepath.Join(s.root, "data", prefix, b32)
}

type writerState struct {
	Token  string
	Method obj.HashMethod
	Offset int64
}

// diskWriter is a resumable writer: bytes go straight to a temp file while
// an IncrementalHasher tracks the rolling digest; LevelDB persists the hash
// method and hasher snapshot after every write, and on resume the offset is
// taken from the temp file's size, per the hasher-snapshot contract in
// package ndnhash.
type diskWriter struct {
	store  *DiskStore
	token  string
	method obj.HashMethod
	f      *os.File
	hasher *ndnhash.IncrementalHasher
	offset int64
}

// OpenWriter begins a resumable write. When want is non-nil the target
// ChunkId is already known (e.g. resuming a named download), so the resume
// key is derived from the id itself — stable across process restarts,
// unlike a random per-call token — and the store rejects the call
// immediately if that id is already published (ErrAlreadyExists) or
// already has another writer open for it (ErrAlreadyInProgress). A nil
// want falls back to a random token, since nothing durable can be keyed
// on an id that isn't known yet.
func (s *DiskStore) OpenWriter(method obj.HashMethod, want *obj.ChunkId) (Writer, error) {
	if want != nil {
		exists, err := s.Exists(*want)
		if err != nil {
			return nil, err
		}
		if exists {
			metrics.GetOrRegisterCounter("chunkstore.disk.open.already_exists", nil).Inc(1)
			return nil, ErrAlreadyExists
		}
		return s.openOrResumeKeyed(method, want.Base32(), true)
	}
	return s.openOrResumeKeyed(method, uuid.NewString(), true)
}

// ResumeWriter looks up an in-progress writer purely from id's resume key,
// so a fresh process that only knows the ChunkId — no in-memory state
// surviving a crash — can resume a partial write. It never creates a new
// writer: if no resume state exists for id, it returns ErrNotFound.
func (s *DiskStore) ResumeWriter(id obj.ChunkId) (Writer, error) {
	return s.openOrResumeKeyed(obj.HashMethod(0), id.Base32(), false)
}

// openOrResumeKeyed is the shared path for both OpenWriter(want != nil) and
// ResumeWriter: it takes the open-time lock for key, then restores existing
// on-disk resume state for key if present. When allowCreate is true and no
// resume state exists, it starts a fresh temp file; when false (a plain
// ResumeWriter call), a missing resume state is reported as ErrNotFound
// rather than silently starting a new write. The method argument is only
// used on a fresh start; a resumed writer always uses the method recorded
// in its persisted state.
func (s *DiskStore) openOrResumeKeyed(method obj.HashMethod, key string, allowCreate bool) (Writer, error) {
	s.mu.Lock()
	if _, busy := s.openLocks[key]; busy {
		s.mu.Unlock()
		metrics.GetOrRegisterCounter("chunkstore.disk.open.already_in_progress", nil).Inc(1)
		return nil, ErrAlreadyInProgress
	}
	s.openLocks[key] = struct{}{}
	s.mu.Unlock()

	raw, err := s.meta.Get(resumeKey(key), nil)
	switch {
	case err == nil:
		metrics.GetOrRegisterCounter("chunkstore.disk.resume.hit", nil).Inc(1)
		w, rerr := s.restoreWriter(key, raw)
		if rerr != nil {
			s.releaseOpenLock(key)
			return nil, rerr
		}
		s.reportWritersOpen()
		return w, nil
	case err != leveldb.ErrNotFound:
		s.releaseOpenLock(key)
		return nil, ndnerr.Wrap(ndnerr.DbError, "read resume state failed", err)
	case !allowCreate:
		s.releaseOpenLock(key)
		return nil, ErrNotFound
	}

	f, err := os.Create(filepath.Join(s.root, "tmp", key))
	if err != nil {
		s.releaseOpenLock(key)
		return nil, ndnerr.Wrap(ndnerr.IoError, "create temp chunk file failed", err)
	}
	w := &diskWriter{store: s, token: key, method: method, f: f, hasher: ndnhash.NewIncrementalHasher()}
	if err := w.persistState(); err != nil {
		f.Close()
		s.releaseOpenLock(key)
		return nil, err
	}
	s.reportWritersOpen()
	return w, nil
}

// reportWritersOpen publishes the current open-writer count, grounded on
// pss/outbox's Update(int64(len(...))) gauge-reporting idiom.
func (s *DiskStore) reportWritersOpen() {
	s.mu.Lock()
	n := len(s.openLocks)
	s.mu.Unlock()
	metrics.GetOrRegisterGauge("chunkstore.disk.writers_open", nil).Update(int64(n))
}

func (s *DiskStore) restoreWriter(key string, raw []byte) (*diskWriter, error) {
	method := obj.HashMethod(raw[0])
	snapshotLen := binary.BigEndian.Uint32(raw[1:5])
	snapshot := raw[5 : 5+snapshotLen]
	hasher, err := ndnhash.RestoreIncrementalHasher(snapshot)
	if err != nil {
		return nil, err
	}
	f, err := os.OpenFile(filepath.Join(s.root, "tmp", key), os.O_RDWR, 0o644)
	if err != nil {
		return nil, ndnerr.Wrap(ndnerr.IoError, "reopen temp chunk file failed", err)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, ndnerr.Wrap(ndnerr.IoError, "stat temp chunk file failed", err)
	}
	return &diskWriter{store: s, token: key, method: method, f: f, hasher: hasher, offset: fi.Size()}, nil
}

func (s *DiskStore) releaseOpenLock(key string) {
	s.mu.Lock()
	delete(s.openLocks, key)
	s.mu.Unlock()
}

func resumeKey(token string) []byte {
	return append([]byte{metaPrefixResume}, []byte(token)...)
}

func chunkKey(id obj.ChunkId) []byte {
	return append([]byte{metaPrefixChunk}, []byte(id.String())...)
}

func (w *diskWriter) persistState() error {
	snap, err := w.hasher.Snapshot()
	if err != nil {
		return err
	}
	buf := make([]byte, 1+4+len(snap))
	buf[0] = byte(w.method)
	binary.BigEndian.PutUint32(buf[1:5], uint32(len(snap)))
	copy(buf[5:], snap)
	if err := w.store.meta.Put(resumeKey(w.token), buf, nil); err != nil {
		return ndnerr.Wrap(ndnerr.DbError, "persist writer resume state failed", err)
	}
	return nil
}

func (w *diskWriter) Write(p []byte) (int, error) {
	n, err := w.f.Write(p)
	if err != nil {
		return n, ndnerr.Wrap(ndnerr.IoError, "write chunk bytes failed", err)
	}
	w.hasher.Update(p[:n])
	w.offset += int64(n)
	if err := w.persistState(); err != nil {
		return n, err
	}
	return n, nil
}

func (w *diskWriter) Offset() int64 { return w.offset }

func (w *diskWriter) Abort() error {
	w.f.Close()
	os.Remove(w.f.Name())
	w.store.meta.Delete(resumeKey(w.token), nil)
	w.store.releaseOpenLock(w.token)
	w.store.reportWritersOpen()
	return nil
}

// Complete hashes the accumulated bytes, verifies against want (if given),
// and only then renames the temp file into its content-addressed final
// path — the chunk is never visible to readers under a partial or
// unverified name.
func (w *diskWriter) Complete(want *obj.ChunkId) (obj.ChunkId, error) {
	digest := w.hasher.Finalize()

	var id obj.ChunkId
	var err error
	if w.method.IsMix() {
		id, err = obj.MixFromHashResult(w.method, digest, w.offset)
	} else {
		id, err = obj.FromHashResult(w.method, digest)
	}
	if err != nil {
		return obj.ChunkId{}, err
	}

	if want != nil && !want.Equal(id) {
		w.f.Close()
		os.Remove(w.f.Name())
		w.store.meta.Delete(resumeKey(w.token), nil)
		w.store.releaseOpenLock(w.token)
		w.store.reportWritersOpen()
		metrics.GetOrRegisterCounter("chunkstore.disk.complete.hash_mismatch", nil).Inc(1)
		return obj.ChunkId{}, ndnerr.New(ndnerr.HashMismatch, "completed chunk hash does not match expected id")
	}

	idStr := id.String()
	w.store.mu.Lock()
	if _, busy := w.store.writeLocks[idStr]; busy {
		w.store.mu.Unlock()
		return obj.ChunkId{}, ErrAlreadyInProgress
	}
	w.store.writeLocks[idStr] = struct{}{}
	w.store.mu.Unlock()
	defer func() {
		w.store.mu.Lock()
		delete(w.store.writeLocks, idStr)
		w.store.mu.Unlock()
		w.store.releaseOpenLock(w.token)
		w.store.reportWritersOpen()
	}()

	w.f.Close()

	if exists, _ := w.store.Exists(id); exists {
		// Deduplicated: identical content already stored, discard ours.
		os.Remove(filepath.Join(w.store.root, "tmp", w.token))
		w.store.meta.Delete(resumeKey(w.token), nil)
		metrics.GetOrRegisterCounter("chunkstore.disk.complete.deduped", nil).Inc(1)
		log.Debug("chunk already present, discarding duplicate write", "id", idStr)
		return id, nil
	}

	finalPath := w.store.dataPath(id)
	if err := os.MkdirAll(filepath.Dir(finalPath), 0o755); err != nil {
		return obj.ChunkId{}, ndnerr.Wrap(ndnerr.IoError, "create chunk directory failed", err)
	}
	if err := os.Rename(filepath.Join(w.store.root, "tmp", w.token), finalPath); err != nil {
		return obj.ChunkId{}, ndnerr.Wrap(ndnerr.IoError, "publish chunk failed", err)
	}

	lenBuf := make([]byte, 8)
	binary.BigEndian.PutUint64(lenBuf, uint64(w.offset))
	if err := w.store.meta.Put(chunkKey(id), lenBuf, nil); err != nil {
		return obj.ChunkId{}, ndnerr.Wrap(ndnerr.DbError, "index published chunk failed", err)
	}
	w.store.meta.Delete(resumeKey(w.token), nil)

	metrics.GetOrRegisterCounter("chunkstore.disk.complete.published", nil).Inc(1)
	log.Info("chunk published", "id", idStr, "size", w.offset)
	return id, nil
}

func (s *DiskStore) Exists(id obj.ChunkId) (bool, error) {
	ok, err := s.meta.Has(chunkKey(id), nil)
	if err != nil {
		return false, ndnerr.Wrap(ndnerr.DbError, "existence check failed", err)
	}
	return ok, nil
}

func (s *DiskStore) Delete(id obj.ChunkId) error {
	if err := os.Remove(s.dataPath(id)); err != nil && !os.IsNotExist(err) {
		return ndnerr.Wrap(ndnerr.IoError, "delete chunk file failed", err)
	}
	if err := s.meta.Delete(chunkKey(id), nil); err != nil {
		return ndnerr.Wrap(ndnerr.DbError, "delete chunk index entry failed", err)
	}
	return nil
}

type diskReader struct {
	*os.File
}

func (s *DiskStore) OpenReader(id obj.ChunkId) (Reader, error) {
	f, err := os.Open(s.dataPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, ndnerr.Wrap(ndnerr.IoError, "open chunk file failed", err)
	}
	return &diskReader{f}, nil
}

func (s *DiskStore) IterChunks(fn func(obj.ChunkId) (bool, error)) error {
	iter := s.meta.NewIterator(util.BytesPrefix([]byte{metaPrefixChunk}), nil)
	defer iter.Release()
	for iter.Next() {
		idStr := string(iter.Key()[1:])
		id, err := obj.Parse(idStr)
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
	if err := iter.Error(); err != nil {
		return ndnerr.Wrap(ndnerr.DbError, "iterate chunk index failed", err)
	}
	return nil
}
