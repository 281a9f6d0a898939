package trieobjmap

import "bytes"

// GenerateProof walks from the root to key, returning the canonical
// encoding of every node visited. found reports whether key resolved to a
// value; when false, the returned nodes still let a verifier confirm the
// key's absence.
func (t *Trie) GenerateProof(key []byte) (nodes [][]byte, found bool) {
	cur := keyToNibbles(key)
	n := t.root
	for {
		switch x := n.(type) {
		case nil:
			return nodes, false
		case *shortNode:
			nodes = append(nodes, encodeNode(x))
			matched := prefixLen(cur, x.key)
			if matched < len(x.key) {
				return nodes, false
			}
			cur = cur[matched:]
			n = x.val
		case *fullNode:
			nodes = append(nodes, encodeNode(x))
			idx := terminatorNibble
			rest := []byte(nil)
			if len(cur) > 0 {
				idx = int(cur[0])
				rest = cur[1:]
			}
			n = x.children[idx]
			cur = rest
		case valueNode:
			return nodes, true
		default:
			return nodes, false
		}
	}
}

// VerifyResult is the tri-state outcome of checking a proof: the claimed
// key/value pair is Valid, the proof instead demonstrates the key is
// ValidAbsent, or the proof is internally inconsistent (Invalid).
type VerifyResult int

const (
	Invalid VerifyResult = iota
	Valid
	ValidAbsent
)

// Verify checks proof (as produced by GenerateProof) against rootHash for
// key, optionally checking the claimed value. Passing a nil value checks
// only that the proof is internally consistent with some value at key (a
// presence check without pinning the value); the tri-state result matches
// the contract of TrieObjectMapProofVerifier::verify in the original
// source, which never embeds the queried value in the proof itself — the
// caller always supplies it independently.
func Verify(nodes [][]byte, rootHash []byte, key []byte, value []byte) VerifyResult {
	if len(nodes) == 0 {
		return Invalid
	}
	cur := keyToNibbles(key)
	currentHash := rootHash

	for _, raw := range nodes {
		if !bytes.Equal(sha256sum(raw), currentHash) {
			return Invalid
		}
		decoded, err := decodeNode(raw)
		if err != nil {
			return Invalid
		}

		switch x := decoded.(type) {
		case *shortNode:
			matched := prefixLen(cur, x.key)
			if matched < len(x.key) {
				// Divergence: the trie provably does not contain key.
				return ValidAbsent
			}
			cur = cur[matched:]
			child := x.val
			if child == nil {
				return ValidAbsent
			}
			if vn, ok := child.(valueNode); ok {
				return terminal(vn, cur, value)
			}
			currentHash = hashOf(child)
			continue

		case *fullNode:
			idx := terminatorNibble
			var rest []byte
			if len(cur) > 0 {
				idx = int(cur[0])
				rest = cur[1:]
			}
			child := x.children[idx]
			cur = rest
			if child == nil {
				return ValidAbsent
			}
			if vn, ok := child.(valueNode); ok {
				return terminal(vn, cur, value)
			}
			currentHash = hashOf(child)
			continue

		case valueNode:
			return terminal(x, cur, value)

		default:
			return Invalid
		}
	}
	// Ran out of proof nodes before resolving to a value or a divergence.
	return Invalid
}

func terminal(got valueNode, remaining []byte, want []byte) VerifyResult {
	consumed := len(remaining) == 0 || (len(remaining) == 1 && remaining[0] == terminatorNibble)
	if !consumed {
		return Invalid
	}
	if want == nil {
		return Valid
	}
	if bytes.Equal([]byte(got), want) {
		return Valid
	}
	return Invalid
}
