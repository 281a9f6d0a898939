// Package obj implements the content-addressed identity scheme: ObjId and
// its ChunkId specialization, string/base32/DID encodings, and the
// mix-hash varint-length encoding used by resumable chunk identities.
//
// Grounded on original_source/.../chunk.rs and chunk/chunk.rs.
package obj

import (
	"bytes"
	"encoding/base32"
	"encoding/binary"
	"encoding/hex"
	"strings"

	"github.com/buckyos/ndn-core/ndnerr"
)

// Object type tags, matching the OBJ_TYPE_* constants in the Rust source.
const (
	ObjTypeChunk  = "chunk"
	ObjTypeMtree  = "mtree"
	ObjTypeList   = "list"
	ObjTypeObjMap = "objmap"
	ObjTypeObjMapT = "objmapt"
)

var b32Encoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// ObjId is a content identity: an object type tag plus the hash bytes that
// identify it under that type's hashing scheme.
type ObjId struct {
	ObjType string
	ObjHash []byte
}

func NewByRaw(objType string, hash []byte) ObjId {
	h := make([]byte, len(hash))
	copy(h, hash)
	return ObjId{ObjType: objType, ObjHash: h}
}

// String renders the canonical "obj_type:hex(hash)" form.
func (id ObjId) String() string {
	return id.ObjType + ":" + hex.EncodeToString(id.ObjHash)
}

// Base32 renders "lower(rfc4648-no-pad(obj_type || ':' || obj_hash))" — the
// type is embedded in the encoded payload itself so it round-trips through
// Parse, not just the hash bytes.
func (id ObjId) Base32() string {
	payload := make([]byte, 0, len(id.ObjType)+1+len(id.ObjHash))
	payload = append(payload, id.ObjType...)
	payload = append(payload, ':')
	payload = append(payload, id.ObjHash...)
	return strings.ToLower(b32Encoding.EncodeToString(payload))
}

// DidString renders the bit-exact "did:<type>:<hex>" form named in section 6
// of the specification this module implements.
func (id ObjId) DidString() string {
	return "did:" + id.ObjType + ":" + hex.EncodeToString(id.ObjHash)
}

// Hostname renders a DNS-label-safe "<hex>-<obj_type>" form, matching
// ChunkId::to_hostname in the original source.
func (id ObjId) Hostname() string {
	return hex.EncodeToString(id.ObjHash) + "-" + id.ObjType
}

func (id ObjId) IsChunk() bool {
	return isChunkType(id.ObjType)
}

func isChunkType(objType string) bool {
	_, err := ParseHashMethod(objType)
	return err == nil
}

// Parse accepts both the canonical "obj_type:hex(hash)" string form and the
// base32 form produced by Base32 ("lower(rfc4648-no-pad(type || ':' ||
// hash))"), matching parse's documented dual-form contract.
func Parse(s string) (ObjId, error) {
	if idx := strings.IndexByte(s, ':'); idx >= 0 {
		objType := s[:idx]
		hash, err := hex.DecodeString(s[idx+1:])
		if err != nil {
			return ObjId{}, ndnerr.Wrap(ndnerr.InvalidHash, "invalid hex in object id "+s, err)
		}
		return ObjId{ObjType: objType, ObjHash: hash}, nil
	}

	payload, err := b32Encoding.DecodeString(strings.ToUpper(s))
	if err != nil {
		return ObjId{}, ndnerr.Wrap(ndnerr.InvalidId, "not a valid base32 object id "+s, err)
	}
	j := bytes.IndexByte(payload, ':')
	if j < 0 {
		return ObjId{}, ndnerr.New(ndnerr.InvalidId, "malformed base32 object id payload")
	}
	return ObjId{ObjType: string(payload[:j]), ObjHash: append([]byte(nil), payload[j+1:]...)}, nil
}

// FromHostname parses the "<hex>-<obj_type>" form produced by Hostname.
func FromHostname(s string) (ObjId, error) {
	idx := strings.LastIndexByte(s, '-')
	if idx < 0 {
		return ObjId{}, ndnerr.New(ndnerr.InvalidId, "missing '-' in hostname "+s)
	}
	hash, err := hex.DecodeString(s[:idx])
	if err != nil {
		return ObjId{}, ndnerr.Wrap(ndnerr.InvalidId, "invalid hex in hostname "+s, err)
	}
	return ObjId{ObjType: s[idx+1:], ObjHash: hash}, nil
}

// putUvarint prefixes hash with the varint encoding of length (the chunk's
// declared length), matching the mix-hash layout: length_encoded ||
// hash_bytes.
func putUvarint(length int, hash []byte) []byte {
	buf := make([]byte, binary.MaxVarintLen64)
	n := binary.PutUvarint(buf, uint64(length))
	out := make([]byte, 0, n+len(hash))
	out = append(out, buf[:n]...)
	out = append(out, hash...)
	return out
}

// splitMixHash decodes a mix-encoded hash blob back into its declared
// length and the trailing hash bytes.
func splitMixHash(mixed []byte) (length uint64, hash []byte, err error) {
	length, n := binary.Uvarint(mixed)
	if n <= 0 {
		return 0, nil, ndnerr.New(ndnerr.InvalidHash, "malformed mix-hash varint")
	}
	return length, mixed[n:], nil
}
