package trieobjmap

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"io"

	"github.com/buckyos/ndn-core/ndnerr"
)

// node is the Merkle-Patricia Trie node interface: shortNode (a single
// key-extension or leaf), fullNode (a 16-way branch plus an optional
// value), or valueNode (a raw leaf value). Grounded on the classic
// go-ethereum trie node shapes.
type node interface {
	cachedHash() []byte
}

type shortNode struct {
	key  []byte // nibbles, possibly terminated
	val  node
	hash []byte
}

type fullNode struct {
	children [17]node // 16 nibbles + value slot
	hash     []byte
}

type valueNode []byte

func (n *shortNode) cachedHash() []byte { return n.hash }
func (n *fullNode) cachedHash() []byte  { return n.hash }
func (n valueNode) cachedHash() []byte  { return nil }

// Node tags for canonical encoding.
const (
	tagShort   byte = 1
	tagFull    byte = 2
	tagValue   byte = 3
	tagNil     byte = 0
	tagHashRef byte = 4
)

// encodeNode renders a node (one level deep; short/full child nodes are
// referenced by their hash, value children are inlined) into its canonical
// transport/hash-input form.
func encodeNode(n node) []byte {
	var buf bytes.Buffer
	writeNode(&buf, n)
	return buf.Bytes()
}

func writeNode(buf *bytes.Buffer, n node) {
	switch t := n.(type) {
	case nil:
		buf.WriteByte(tagNil)
	case *shortNode:
		buf.WriteByte(tagShort)
		writeBytes(buf, t.key)
		writeRef(buf, t.val)
	case *fullNode:
		buf.WriteByte(tagFull)
		for i := 0; i < 17; i++ {
			writeRef(buf, t.children[i])
		}
	case valueNode:
		buf.WriteByte(tagValue)
		writeBytes(buf, t)
	}
}

// writeRef writes a nil marker, a value child's bytes inline, or the 32-byte
// hash of a short/full child node (never that node's full content), so a
// proof step can be verified against one hash at a time.
func writeRef(buf *bytes.Buffer, n node) {
	if n == nil {
		buf.WriteByte(tagNil)
		return
	}
	if vn, ok := n.(valueNode); ok {
		buf.WriteByte(tagValue)
		writeBytes(buf, vn)
		return
	}
	h := hashOf(n)
	buf.WriteByte(tagHashRef)
	buf.Write(h)
}

func writeBytes(buf *bytes.Buffer, b []byte) {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(b)))
	buf.Write(lenBuf[:])
	buf.Write(b)
}

// hashOf returns (and caches) a node's content hash.
func hashOf(n node) []byte {
	switch t := n.(type) {
	case *shortNode:
		if t.hash == nil {
			t.hash = sha256sum(encodeNode(t))
		}
		return t.hash
	case *fullNode:
		if t.hash == nil {
			t.hash = sha256sum(encodeNode(t))
		}
		return t.hash
	case valueNode:
		return sha256sum(t)
	case hashNode:
		return []byte(t)
	default:
		return nil
	}
}

func sha256sum(b []byte) []byte {
	h := sha256.Sum256(b)
	return h[:]
}

// decodeNode parses one canonically encoded node, for proof verification.
// Child references decode to a placeholder hashNode carrying just the
// hash (full/embedded value content for value children).
func decodeNode(data []byte) (node, error) {
	if len(data) == 0 {
		return nil, ndnerr.New(ndnerr.InvalidProof, "empty proof node")
	}
	r := bytes.NewReader(data)
	tagByte, _ := r.ReadByte()
	switch tagByte {
	case tagNil:
		return nil, nil
	case tagValue:
		v, err := readBytes(r)
		if err != nil {
			return nil, err
		}
		return valueNode(v), nil
	case tagShort:
		key, err := readBytes(r)
		if err != nil {
			return nil, err
		}
		val, err := readRef(r)
		if err != nil {
			return nil, err
		}
		return &shortNode{key: key, val: val}, nil
	case tagFull:
		var fn fullNode
		for i := 0; i < 17; i++ {
			c, err := readRef(r)
			if err != nil {
				return nil, err
			}
			fn.children[i] = c
		}
		return &fn, nil
	default:
		return nil, ndnerr.New(ndnerr.InvalidProof, "unknown node tag")
	}
}

// hashNode is a placeholder for a child referenced only by hash, produced
// while decoding a proof node (the verifier never has the child's full
// content, only its hash, until the next proof node is consumed).
type hashNode []byte

func (hashNode) cachedHash() []byte { return nil }

func readRef(r *bytes.Reader) (node, error) {
	tagByte, err := r.ReadByte()
	if err != nil {
		return nil, ndnerr.Wrap(ndnerr.InvalidProof, "truncated proof node", err)
	}
	switch tagByte {
	case tagNil:
		return nil, nil
	case tagValue:
		v, err := readBytes(r)
		if err != nil {
			return nil, err
		}
		return valueNode(v), nil
	case tagHashRef:
		h := make([]byte, 32)
		if _, err := io.ReadFull(r, h); err != nil {
			return nil, ndnerr.Wrap(ndnerr.InvalidProof, "truncated hash ref", err)
		}
		return hashNode(h), nil
	default:
		return nil, ndnerr.New(ndnerr.InvalidProof, "unknown ref tag")
	}
}

func readBytes(r *bytes.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, ndnerr.Wrap(ndnerr.InvalidProof, "truncated length prefix", err)
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	b := make([]byte, n)
	if n > 0 {
		if _, err := io.ReadFull(r, b); err != nil {
			return nil, ndnerr.Wrap(ndnerr.InvalidProof, "truncated bytes field", err)
		}
	}
	return b, nil
}
