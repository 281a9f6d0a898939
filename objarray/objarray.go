// Package objarray implements ObjectArray: an ordered list of object ids
// with a lazily rebuilt Merkle tree for membership proofs.
//
// Grounded on original_source/.../object_array/object_array.rs.
package objarray

import (
	"bytes"
	"crypto/sha256"

	"github.com/buckyos/ndn-core/merkle"
	"github.com/buckyos/ndn-core/ndnerr"
	"github.com/buckyos/ndn-core/obj"
)

// ObjectArray is an ordered, append-friendly list of ObjIds. Its object id
// is the root of a Merkle tree over the list's entries, rebuilt on demand
// rather than on every mutation.
type ObjectArray struct {
	hashMethod obj.HashMethod
	items      []obj.ObjId
	isDirty    bool
	mtree      *merkle.Tree
}

func New(hashMethod obj.HashMethod) *ObjectArray {
	return &ObjectArray{hashMethod: hashMethod}
}

func (a *ObjectArray) Len() int { return len(a.items) }

func (a *ObjectArray) Append(id obj.ObjId) {
	a.items = append(a.items, id)
	a.isDirty = true
}

func (a *ObjectArray) Insert(index int, id obj.ObjId) error {
	if index < 0 || index > len(a.items) {
		return ndnerr.New(ndnerr.InvalidParam, "insert index out of range")
	}
	a.items = append(a.items, obj.ObjId{})
	copy(a.items[index+1:], a.items[index:])
	a.items[index] = id
	a.isDirty = true
	return nil
}

func (a *ObjectArray) Get(index int) (obj.ObjId, error) {
	if index < 0 || index >= len(a.items) {
		return obj.ObjId{}, ndnerr.New(ndnerr.InvalidParam, "index out of range")
	}
	return a.items[index], nil
}

func (a *ObjectArray) Remove(index int) (obj.ObjId, error) {
	id, err := a.Get(index)
	if err != nil {
		return obj.ObjId{}, err
	}
	a.items = append(a.items[:index], a.items[index+1:]...)
	a.isDirty = true
	return id, nil
}

func (a *ObjectArray) Pop() (obj.ObjId, error) {
	if len(a.items) == 0 {
		return obj.ObjId{}, ndnerr.New(ndnerr.InvalidParam, "array is empty")
	}
	return a.Remove(len(a.items) - 1)
}

// Flush rebuilds the Merkle tree if the array is dirty or has none yet; a
// clean array with a tree already built is a no-op.
func (a *ObjectArray) Flush() error {
	if !a.isDirty && a.mtree != nil {
		return nil
	}
	return a.regenerateMerkleTree()
}

func (a *ObjectArray) regenerateMerkleTree() error {
	if len(a.items) == 0 {
		return ndnerr.New(ndnerr.InvalidParam, "cannot build merkle tree over an empty array")
	}
	const leafSize = 32
	b := merkle.NewBuilder(uint64(len(a.items))*leafSize, leafSize, a.hashMethod)
	for _, id := range a.items {
		leafHash := hashOfObjId(id)
		if err := b.AppendLeafHashes(leafHash); err != nil {
			return err
		}
	}
	t, err := b.Finalize(bytes.NewBuffer(nil))
	if err != nil {
		return err
	}
	a.mtree = t
	a.isDirty = false
	return nil
}

// hashOfObjId hashes an entry's canonical encoding down to the 32-byte leaf
// digest the merkle package's builder expects.
func hashOfObjId(id obj.ObjId) []byte {
	h := sha256.New()
	h.Write([]byte(id.String()))
	return h.Sum(nil)
}

// CalcObjId returns the array's content id, rebuilding the tree first if
// dirty. Unlike GetObjId (see below), this always reflects current content.
func (a *ObjectArray) CalcObjId() (obj.ObjId, error) {
	if err := a.Flush(); err != nil {
		return obj.ObjId{}, err
	}
	return obj.NewByRaw(obj.ObjTypeList, a.mtree.Root()), nil
}

// GetObjId returns the array's content id from the cached tree without
// checking the dirty bit first — callers that mutated the array since the
// last Flush will get a stale id. Matches the Rust source's get_obj_id,
// which carries the same caveat.
func (a *ObjectArray) GetObjId() (obj.ObjId, error) {
	if a.mtree == nil {
		return obj.ObjId{}, ndnerr.New(ndnerr.InvalidParam, "merkle tree not built yet; call Flush or CalcObjId first")
	}
	return obj.NewByRaw(obj.ObjTypeList, a.mtree.Root()), nil
}

// Proof is a membership proof for one entry of the array.
type Proof struct {
	Index int
	Item  obj.ObjId
	Path  []merkle.ProofEntry
}

// GetWithProof returns the entry at index along with its Merkle proof path.
// It does not rebuild the tree: if the array is dirty or no tree has been
// built yet it returns an error, so the caller must Flush first.
func (a *ObjectArray) GetWithProof(index int) (Proof, error) {
	if a.mtree == nil || a.isDirty {
		return Proof{}, ndnerr.New(ndnerr.InvalidParam, "merkle tree not up to date; call Flush first")
	}
	id, err := a.Get(index)
	if err != nil {
		return Proof{}, err
	}
	path, err := a.mtree.ProofPath(index)
	if err != nil {
		return Proof{}, err
	}
	return Proof{Index: index, Item: id, Path: path}, nil
}

func (a *ObjectArray) BatchGetWithProof(indices []int) ([]Proof, error) {
	out := make([]Proof, 0, len(indices))
	for _, i := range indices {
		p, err := a.GetWithProof(i)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (a *ObjectArray) RangeGetWithProof(start, end int) ([]Proof, error) {
	if start < 0 || end > len(a.items) || start > end {
		return nil, ndnerr.New(ndnerr.InvalidParam, "invalid range")
	}
	out := make([]Proof, 0, end-start)
	for i := start; i < end; i++ {
		p, err := a.GetWithProof(i)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// VerifyProof checks a proof against a known array root id.
func VerifyProof(p Proof, root obj.ObjId) bool {
	leafHash := hashOfObjId(p.Item)
	if len(p.Path) == 0 || !bytes.Equal(p.Path[0].Hash, leafHash) {
		return false
	}
	return merkle.Verify(p.Path, root.ObjHash)
}
