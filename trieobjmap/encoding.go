package trieobjmap

// nibble-path helpers, grounded on go-ethereum's classic trie encoding
// (see other_examples' vechain-thor trie.go fork): keys are walked as
// hex nibbles with a trailing terminator nibble marking a value node.

const terminatorNibble = 16

func keyToNibbles(key []byte) []byte {
	n := make([]byte, len(key)*2+1)
	for i, b := range key {
		n[i*2] = b / 16
		n[i*2+1] = b % 16
	}
	n[len(n)-1] = terminatorNibble
	return n
}

func hasTerm(nibbles []byte) bool {
	return len(nibbles) > 0 && nibbles[len(nibbles)-1] == terminatorNibble
}

func prefixLen(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	i := 0
	for i < n && a[i] == b[i] {
		i++
	}
	return i
}
