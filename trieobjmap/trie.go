package trieobjmap

import "github.com/buckyos/ndn-core/ndnerr"

// Trie is an in-memory Merkle-Patricia Trie keyed by raw byte strings,
// grounded on the classic go-ethereum-style MPT (other_examples' vechain
// trie.go fork) rather than the teacher (which carries no MPT of its own).
type Trie struct {
	root node
}

func NewTrie() *Trie {
	return &Trie{}
}

func (t *Trie) Root() []byte {
	if t.root == nil {
		return sha256sum(nil)
	}
	return hashOf(t.root)
}

func (t *Trie) Put(key, value []byte) error {
	nibbles := keyToNibbles(key)
	newRoot, err := insert(t.root, nibbles, valueNode(value))
	if err != nil {
		return err
	}
	t.root = newRoot
	return nil
}

func (t *Trie) Get(key []byte) ([]byte, bool) {
	nibbles := keyToNibbles(key)
	v, found := get(t.root, nibbles)
	if !found {
		return nil, false
	}
	return []byte(v.(valueNode)), true
}

func (t *Trie) Delete(key []byte) (bool, error) {
	nibbles := keyToNibbles(key)
	newRoot, removed, err := remove(t.root, nibbles)
	if err != nil {
		return false, err
	}
	t.root = newRoot
	return removed, nil
}

func get(n node, key []byte) (node, bool) {
	switch t := n.(type) {
	case nil:
		return nil, false
	case valueNode:
		if len(key) == 0 || (len(key) == 1 && key[0] == terminatorNibble) {
			return t, true
		}
		return nil, false
	case *shortNode:
		matched := prefixLen(key, t.key)
		if matched < len(t.key) {
			return nil, false
		}
		return get(t.val, key[matched:])
	case *fullNode:
		if len(key) == 0 {
			return get(t.children[terminatorNibble], nil)
		}
		return get(t.children[key[0]], key[1:])
	default:
		return nil, false
	}
}

func insert(n node, key []byte, value node) (node, error) {
	if len(key) == 0 {
		return value, nil
	}
	switch t := n.(type) {
	case nil:
		return &shortNode{key: append([]byte(nil), key...), val: value}, nil

	case valueNode:
		// A value node only ever sits at the terminator slot of a
		// fullNode or as the val of a shortNode whose key is fully
		// consumed; reaching here with leftover key means a branch.
		fn := &fullNode{}
		fn.children[terminatorNibble] = t
		return insert(fn, key, value)

	case *shortNode:
		matched := prefixLen(key, t.key)
		if matched == len(t.key) {
			newVal, err := insert(t.val, key[matched:], value)
			if err != nil {
				return nil, err
			}
			return &shortNode{key: t.key, val: newVal}, nil
		}
		// Split the short node at the common prefix.
		branch := &fullNode{}
		if matched < len(t.key) {
			next := t.key[matched+1:]
			var branchChild node
			if len(next) == 0 {
				branchChild = t.val
			} else {
				branchChild = &shortNode{key: next, val: t.val}
			}
			branch.children[t.key[matched]] = branchChild
		}
		rest := key[matched:]
		if len(rest) > 0 {
			var branchChild node
			tail := rest[1:]
			if len(tail) == 0 {
				branchChild = value
			} else {
				branchChild = &shortNode{key: tail, val: value}
			}
			branch.children[rest[0]] = branchChild
		} else {
			branch.children[terminatorNibble] = value
		}
		if matched == 0 {
			return branch, nil
		}
		return &shortNode{key: key[:matched], val: branch}, nil

	case *fullNode:
		cp := *t
		cp.hash = nil
		if len(key) == 0 {
			cp.children[terminatorNibble] = value
			return &cp, nil
		}
		child, err := insert(t.children[key[0]], key[1:], value)
		if err != nil {
			return nil, err
		}
		cp.children[key[0]] = child
		return &cp, nil

	default:
		return nil, ndnerr.New(ndnerr.Internal, "unknown trie node type")
	}
}

// remove deletes key from the subtree rooted at n, returning the possibly
// restructured subtree and whether anything was actually removed.
func remove(n node, key []byte) (node, bool, error) {
	switch t := n.(type) {
	case nil:
		return nil, false, nil

	case valueNode:
		if len(key) == 0 {
			return nil, true, nil
		}
		return n, false, nil

	case *shortNode:
		matched := prefixLen(key, t.key)
		if matched < len(t.key) {
			return n, false, nil
		}
		newVal, removed, err := remove(t.val, key[matched:])
		if err != nil || !removed {
			return n, removed, err
		}
		if newVal == nil {
			return nil, true, nil
		}
		if child, ok := newVal.(*shortNode); ok {
			// Merge consecutive short nodes.
			return &shortNode{key: append(append([]byte(nil), t.key...), child.key...), val: child.val}, true, nil
		}
		return &shortNode{key: t.key, val: newVal}, true, nil

	case *fullNode:
		var idx int
		if len(key) == 0 {
			idx = terminatorNibble
		} else {
			idx = int(key[0])
		}
		var rest []byte
		if len(key) > 0 {
			rest = key[1:]
		}
		newChild, removed, err := remove(t.children[idx], rest)
		if err != nil || !removed {
			return n, removed, err
		}
		cp := *t
		cp.hash = nil
		cp.children[idx] = newChild
		return collapseFullNode(&cp), true, nil

	default:
		return nil, false, ndnerr.New(ndnerr.Internal, "unknown trie node type")
	}
}

// collapseFullNode shrinks a branch with only one remaining child back
// into a shortNode, keeping the tree compact after deletions.
func collapseFullNode(fn *fullNode) node {
	count := 0
	last := -1
	for i, c := range fn.children {
		if c != nil {
			count++
			last = i
		}
	}
	if count == 0 {
		return nil
	}
	if count == 1 {
		if last == terminatorNibble {
			return fn.children[last]
		}
		child := fn.children[last]
		prefix := []byte{byte(last)}
		if sn, ok := child.(*shortNode); ok {
			return &shortNode{key: append(prefix, sn.key...), val: sn.val}
		}
		return &shortNode{key: prefix, val: child}
	}
	return fn
}
