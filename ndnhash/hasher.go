// Package ndnhash implements the streaming, quick, and incremental hashing
// primitives chunks are identified by.
//
// Grounded on original_source/.../chunk.rs (ChunkHasher, calc_quick_hash,
// calc_quick_hash_by_buffer).
package ndnhash

import (
	"crypto/sha256"
	"encoding"
	"io"

	"github.com/buckyos/ndn-core/ndnerr"
)

// QuickHashWindowSize is the size of each of the three sampled windows a
// quick hash reads from a chunk's head, middle, and tail.
const QuickHashWindowSize = 4096

// StreamHash computes the full sha256 digest of r, reading to EOF. Unlike
// the original calc_from_reader (which stops early on any short read),
// this always drains the reader fully so exact-multiple-of-piece-size
// inputs and trailing short reads are both hashed correctly.
func StreamHash(r io.Reader) ([]byte, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return nil, ndnerr.Wrap(ndnerr.IoError, "stream hash read failed", err)
	}
	return h.Sum(nil), nil
}

// QuickHash samples three 4 KiB windows (head, middle, tail) of a
// seekable, length-known source and hashes their concatenation. length
// must be at least three window-widths, matching calc_quick_hash's
// "Internal" rejection of short inputs in the original source.
func QuickHash(r io.ReadSeeker, length int64) ([]byte, error) {
	if length < QuickHashWindowSize*3 {
		return nil, ndnerr.New(ndnerr.InvalidParam, "chunk too small for quick hash")
	}
	head := make([]byte, QuickHashWindowSize)
	mid := make([]byte, QuickHashWindowSize)
	tail := make([]byte, QuickHashWindowSize)

	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, ndnerr.Wrap(ndnerr.IoError, "seek to head failed", err)
	}
	if _, err := io.ReadFull(r, head); err != nil {
		return nil, ndnerr.Wrap(ndnerr.IoError, "read head window failed", err)
	}

	midOff := (length - QuickHashWindowSize) / 2
	if _, err := r.Seek(midOff, io.SeekStart); err != nil {
		return nil, ndnerr.Wrap(ndnerr.IoError, "seek to middle failed", err)
	}
	if _, err := io.ReadFull(r, mid); err != nil {
		return nil, ndnerr.Wrap(ndnerr.IoError, "read middle window failed", err)
	}

	tailOff := length - QuickHashWindowSize
	if _, err := r.Seek(tailOff, io.SeekStart); err != nil {
		return nil, ndnerr.Wrap(ndnerr.IoError, "seek to tail failed", err)
	}
	if _, err := io.ReadFull(r, tail); err != nil {
		return nil, ndnerr.Wrap(ndnerr.IoError, "read tail window failed", err)
	}

	return QuickHashFromWindows(head, mid, tail)
}

// QuickHashFromWindows hashes three pre-read windows directly, for callers
// that already buffered head/mid/tail themselves (matching
// calc_quick_hash_by_buffer in the original source).
func QuickHashFromWindows(head, mid, tail []byte) ([]byte, error) {
	if len(head) != QuickHashWindowSize || len(mid) != QuickHashWindowSize || len(tail) != QuickHashWindowSize {
		return nil, ndnerr.New(ndnerr.InvalidParam, "quick hash windows must each be 4096 bytes")
	}
	h := sha256.New()
	h.Write(head)
	h.Write(mid)
	h.Write(tail)
	return h.Sum(nil), nil
}

// CombineParent hashes the concatenation of a list of child hashes, used to
// fold chunk-list hashes (and Merkle-adjacent combinations) into one digest.
func CombineParent(children ...[]byte) []byte {
	h := sha256.New()
	for _, c := range children {
		h.Write(c)
	}
	return h.Sum(nil)
}

// IncrementalHasher wraps sha256's hash.Hash, adding Snapshot/Restore so a
// resumable chunk writer can persist its rolling hash state across process
// restarts. sha256's digest type has implemented encoding.BinaryMarshaler
// since Go 1.11; that stable format is what backs the snapshot here,
// rather than a hand-rolled piece-level hash tree.
type IncrementalHasher struct {
	h hashState
}

type hashState interface {
	io.Writer
	encoding.BinaryMarshaler
	encoding.BinaryUnmarshaler
	Sum(b []byte) []byte
	Reset()
}

func NewIncrementalHasher() *IncrementalHasher {
	return &IncrementalHasher{h: sha256.New().(hashState)}
}

func (ih *IncrementalHasher) Update(p []byte) (int, error) {
	return ih.h.Write(p)
}

func (ih *IncrementalHasher) Finalize() []byte {
	return ih.h.Sum(nil)
}

// Snapshot serializes the current rolling-hash state for later Restore.
func (ih *IncrementalHasher) Snapshot() ([]byte, error) {
	b, err := ih.h.MarshalBinary()
	if err != nil {
		return nil, ndnerr.Wrap(ndnerr.Internal, "failed to snapshot hasher state", err)
	}
	return b, nil
}

// RestoreIncrementalHasher rebuilds a hasher from a Snapshot blob.
func RestoreIncrementalHasher(snapshot []byte) (*IncrementalHasher, error) {
	ih := NewIncrementalHasher()
	if err := ih.h.UnmarshalBinary(snapshot); err != nil {
		return nil, ndnerr.Wrap(ndnerr.InvalidData, "failed to restore hasher state", err)
	}
	return ih, nil
}
