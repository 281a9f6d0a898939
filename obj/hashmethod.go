package obj

import (
	"github.com/buckyos/ndn-core/ndnerr"
)

// HashMethod names the hash construction used to derive an ObjId's hash
// bytes. "mix" methods prefix the hash with a varint length so a ChunkId's
// declared size can be recovered without touching the chunk body, matching
// chunk/chunk.rs's mix_from_hash_result.
type HashMethod int

const (
	HashMethodSha256 HashMethod = iota
	HashMethodQcid256
	HashMethodMixSha256
	HashMethodMixQcid256
)

func (m HashMethod) String() string {
	switch m {
	case HashMethodSha256:
		return "sha256"
	case HashMethodQcid256:
		return "qcid"
	case HashMethodMixSha256:
		return "mix-sha256"
	case HashMethodMixQcid256:
		return "mix-qcid"
	default:
		return "unknown"
	}
}

// IsMix reports whether this method encodes a varint length before the hash.
func (m HashMethod) IsMix() bool {
	return m == HashMethodMixSha256 || m == HashMethodMixQcid256
}

// IsQuick reports whether this method is a quick (sampled) hash rather than
// a full stream hash.
func (m HashMethod) IsQuick() bool {
	return m == HashMethodQcid256 || m == HashMethodMixQcid256
}

func ParseHashMethod(s string) (HashMethod, error) {
	switch s {
	case "sha256":
		return HashMethodSha256, nil
	case "qcid":
		return HashMethodQcid256, nil
	case "mix-sha256":
		return HashMethodMixSha256, nil
	case "mix-qcid":
		return HashMethodMixQcid256, nil
	default:
		return 0, ndnerr.New(ndnerr.InvalidParam, "unknown hash method "+s)
	}
}
