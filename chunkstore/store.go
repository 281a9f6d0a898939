// Package chunkstore implements resumable, content-verified chunk storage
// with multiple interchangeable backends.
//
// Grounded on storage/localstore (LevelDB-indexed on-disk store),
// storage/fcds (fixed chunk data store / badger-backed alternate backend),
// and shed (generic LevelDB field/index wrapper).
package chunkstore

import (
	"io"

	"github.com/buckyos/ndn-core/ndnerr"
	"github.com/buckyos/ndn-core/obj"
)

// Writer is a resumable chunk writer. Bytes written are not visible to
// readers until Complete succeeds; Complete hashes everything written so
// far, verifies it, and only then publishes the chunk atomically.
type Writer interface {
	io.Writer
	// Offset reports how many bytes have been written so far, for resuming
	// after a crash.
	Offset() int64
	// Complete verifies the accumulated hash (against want, if non-nil)
	// and atomically publishes the chunk, returning its final ChunkId.
	Complete(want *obj.ChunkId) (obj.ChunkId, error)
	// Abort discards all bytes written so far; no partial chunk is ever
	// visible to readers.
	Abort() error
}

// Reader is a seekable chunk reader.
type Reader interface {
	io.ReadCloser
	io.Seeker
}

// Store is the capability set every chunk backend implements. DiskStore,
// BadgerStore, MemStore, and the LRU-fronted CachedStore all satisfy it.
type Store interface {
	// OpenWriter begins a resumable write. When want is non-nil the caller
	// already knows the target ChunkId (e.g. resuming a named download),
	// so the store rejects the call immediately with ErrAlreadyExists if
	// the chunk is already published, or ErrAlreadyInProgress if another
	// writer targeting the same id is already open — avoiding the wasted
	// I/O of two writers racing to stream a full body before one loses at
	// Complete. When want is nil (the target isn't known until the body
	// has been hashed) no such early check is possible.
	OpenWriter(method obj.HashMethod, want *obj.ChunkId) (Writer, error)
	// ResumeWriter looks up an in-progress writer purely by its target
	// ChunkId. DiskStore keeps that resume state in its on-disk index, so a
	// freshly started process that only knows the id can resume a partial
	// write. MemStore and BadgerStore keep pending writers in memory only:
	// their ResumeWriter finds writers opened by the same live process, and
	// nothing survives a restart.
	ResumeWriter(id obj.ChunkId) (Writer, error)
	OpenReader(id obj.ChunkId) (Reader, error)
	Exists(id obj.ChunkId) (bool, error)
	Delete(id obj.ChunkId) error
	// IterChunks calls fn for every stored chunk id until fn returns false
	// or an error.
	IterChunks(fn func(obj.ChunkId) (bool, error)) error
	Close() error
}

var (
	ErrAlreadyInProgress = ndnerr.New(ndnerr.AlreadyInProgress, "another writer is already open for this chunk")
	ErrNotFound          = ndnerr.New(ndnerr.NotFound, "chunk not found")
	ErrAlreadyExists     = ndnerr.New(ndnerr.AlreadyExists, "chunk already exists")
)
