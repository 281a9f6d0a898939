// Package objmap implements ObjectMap: an ordered string-to-ObjId map with
// JSON file persistence, copy-on-write clone-for-modify semantics, and a
// lazily rebuilt Merkle index for membership proofs.
//
// Grounded on original_source/.../object_map/file/json_storage.rs, with one
// deliberate correction: that source's save() writes the file directly
// (not atomically), while the specification this module implements
// requires an atomic temp-file-then-rename save. The rename-for-move /
// copy-on-write clone semantics otherwise carry over unchanged.
package objmap

import (
	"bytes"
	"crypto/sha256"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/buckyos/ndn-core/merkle"
	"github.com/buckyos/ndn-core/ndnerr"
	"github.com/buckyos/ndn-core/obj"
)

type entry struct {
	Key string `json:"key"`
	Id  string `json:"id"`
}

type fileFormat struct {
	HashMethod string  `json:"hash_method"`
	Entries    []entry `json:"entries"`
}

// ObjectMap is an ordered map from string keys to ObjIds.
type ObjectMap struct {
	readOnly   bool
	path       string
	hashMethod obj.HashMethod
	order      []string
	data       map[string]obj.ObjId
	isDirty    bool
	mtree      *merkle.Tree
}

func New(hashMethod obj.HashMethod) *ObjectMap {
	return &ObjectMap{hashMethod: hashMethod, data: make(map[string]obj.ObjId)}
}

// Load reads a previously Save'd JSON file, opened read-only.
func Load(path string) (*ObjectMap, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, ndnerr.Wrap(ndnerr.IoError, "read object map file failed", err)
	}
	var ff fileFormat
	if err := json.Unmarshal(raw, &ff); err != nil {
		return nil, ndnerr.Wrap(ndnerr.InvalidData, "parse object map file failed", err)
	}
	method, err := obj.ParseHashMethod(ff.HashMethod)
	if err != nil {
		return nil, err
	}
	m := &ObjectMap{readOnly: true, path: path, hashMethod: method, data: make(map[string]obj.ObjId)}
	for _, e := range ff.Entries {
		id, err := obj.Parse(e.Id)
		if err != nil {
			return nil, ndnerr.Wrap(ndnerr.InvalidData, "parse object map entry failed", err)
		}
		m.order = append(m.order, e.Key)
		m.data[e.Key] = id
	}
	m.isDirty = true // force a rebuild on first proof request
	return m, nil
}

// CloneForModify returns a writable copy. If this map is clean and already
// has a file backing it, the clone is made by copying that file (cheap,
// avoids re-serializing); otherwise the in-memory state is deep-copied,
// matching clone_for_modify's rebuild-if-dirty-else-copy-file logic.
func (m *ObjectMap) CloneForModify() (*ObjectMap, error) {
	clone := &ObjectMap{hashMethod: m.hashMethod, data: make(map[string]obj.ObjId, len(m.data))}
	if !m.isDirty && m.path != "" {
		raw, err := os.ReadFile(m.path)
		if err != nil {
			return nil, ndnerr.Wrap(ndnerr.IoError, "copy object map file for clone failed", err)
		}
		var ff fileFormat
		if err := json.Unmarshal(raw, &ff); err != nil {
			return nil, ndnerr.Wrap(ndnerr.InvalidData, "parse object map file failed", err)
		}
		for _, e := range ff.Entries {
			id, err := obj.Parse(e.Id)
			if err != nil {
				return nil, err
			}
			clone.order = append(clone.order, e.Key)
			clone.data[e.Key] = id
		}
		clone.mtree = m.mtree
		clone.isDirty = false
		return clone, nil
	}
	clone.order = append(clone.order, m.order...)
	for k, v := range m.data {
		clone.data[k] = v
	}
	clone.isDirty = true
	return clone, nil
}

func (m *ObjectMap) Len() int { return len(m.order) }

func (m *ObjectMap) Put(key string, id obj.ObjId) error {
	if m.readOnly {
		return ndnerr.New(ndnerr.InvalidParam, "object map is read-only")
	}
	if _, exists := m.data[key]; !exists {
		m.order = append(m.order, key)
	}
	m.data[key] = id
	m.isDirty = true
	return nil
}

func (m *ObjectMap) Get(key string) (obj.ObjId, bool) {
	id, ok := m.data[key]
	return id, ok
}

func (m *ObjectMap) Exists(key string) bool {
	_, ok := m.data[key]
	return ok
}

func (m *ObjectMap) Remove(key string) (obj.ObjId, bool, error) {
	if m.readOnly {
		return obj.ObjId{}, false, ndnerr.New(ndnerr.InvalidParam, "object map is read-only")
	}
	id, ok := m.data[key]
	if !ok {
		return obj.ObjId{}, false, nil
	}
	delete(m.data, key)
	for i, k := range m.order {
		if k == key {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	m.isDirty = true
	return id, true, nil
}

func (m *ObjectMap) List() []string {
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}

// Flush rebuilds the Merkle index over the current key ordering if dirty.
func (m *ObjectMap) Flush() error {
	if !m.isDirty && m.mtree != nil {
		return nil
	}
	if len(m.order) == 0 {
		m.mtree = nil
		m.isDirty = false
		return nil
	}
	const leafSize = 32
	b := merkle.NewBuilder(uint64(len(m.order))*leafSize, leafSize, m.hashMethod)
	for _, k := range m.order {
		if err := b.AppendLeafHashes(leafHash(k, m.data[k])); err != nil {
			return err
		}
	}
	t, err := b.Finalize(bytes.NewBuffer(nil))
	if err != nil {
		return err
	}
	m.mtree = t
	m.isDirty = false
	return nil
}

func leafHash(key string, id obj.ObjId) []byte {
	h := sha256.New()
	h.Write([]byte(key))
	h.Write([]byte{0})
	h.Write([]byte(id.String()))
	return h.Sum(nil)
}

func (m *ObjectMap) CalcObjId() (obj.ObjId, error) {
	if err := m.Flush(); err != nil {
		return obj.ObjId{}, err
	}
	if m.mtree == nil {
		return obj.ObjId{}, ndnerr.New(ndnerr.InvalidParam, "cannot compute id of an empty object map")
	}
	return obj.NewByRaw(obj.ObjTypeObjMap, m.mtree.Root()), nil
}

// Proof is a membership proof for one key/value pair of the map.
type Proof struct {
	Key  string
	Item obj.ObjId
	Path []merkle.ProofEntry
}

func (m *ObjectMap) GetWithProof(key string) (Proof, error) {
	if m.mtree == nil || m.isDirty {
		return Proof{}, ndnerr.New(ndnerr.InvalidParam, "merkle index not up to date; call Flush first")
	}
	id, ok := m.data[key]
	if !ok {
		return Proof{}, ndnerr.New(ndnerr.NotFound, "key not found: "+key)
	}
	index := -1
	for i, k := range m.order {
		if k == key {
			index = i
			break
		}
	}
	path, err := m.mtree.ProofPath(index)
	if err != nil {
		return Proof{}, err
	}
	return Proof{Key: key, Item: id, Path: path}, nil
}

func VerifyProof(p Proof, root obj.ObjId) bool {
	want := leafHash(p.Key, p.Item)
	if len(p.Path) == 0 || !bytes.Equal(p.Path[0].Hash, want) {
		return false
	}
	return merkle.Verify(p.Path, root.ObjHash)
}

// Save serializes the map atomically: write to a temp file in the same
// directory, then rename into place, so readers never observe a partially
// written file. This is the specification's explicit requirement, and a
// deliberate strengthening of the non-atomic direct write in the original
// json_storage.rs source.
func (m *ObjectMap) Save(path string) error {
	ff := fileFormat{HashMethod: m.hashMethod.String()}
	for _, k := range m.order {
		ff.Entries = append(ff.Entries, entry{Key: k, Id: m.data[k].String()})
	}
	raw, err := json.MarshalIndent(ff, "", "  ")
	if err != nil {
		return ndnerr.Wrap(ndnerr.InvalidData, "serialize object map failed", err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".objmap-*.tmp")
	if err != nil {
		return ndnerr.Wrap(ndnerr.IoError, "create temp object map file failed", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return ndnerr.Wrap(ndnerr.IoError, "write temp object map file failed", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return ndnerr.Wrap(ndnerr.IoError, "sync temp object map file failed", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return ndnerr.Wrap(ndnerr.IoError, "close temp object map file failed", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return ndnerr.Wrap(ndnerr.IoError, "rename object map file into place failed", err)
	}
	m.path = path
	return nil
}
