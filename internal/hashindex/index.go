// Package hashindex maps caption token hashes back to candidate names and
// synthesizes placeholder names for hashes that have no candidate.
package hashindex

import (
	"hash/crc32"
	"strings"

	"github.com/mgpai22/vccdec/internal/logging"
)

// Hash computes the engine's caption token hash: CRC-32 (IEEE) over the
// upper-cased name.
func Hash(name string) uint32 {
	return crc32.ChecksumIEEE([]byte(strings.ToUpper(name)))
}

// Collision records a candidate that lost to an earlier name with the same
// hash.
type Collision struct {
	Hash    uint32
	Kept    string
	Dropped string
}

// Index is a reverse mapping from hash to candidate names. The first name
// added for a hash is canonical; insertion order therefore decides every
// collision and must be deterministic.
type Index struct {
	names      map[uint32][]string
	seen       map[string]struct{}
	collisions []Collision
	log        *logging.Logger
}

func New(log *logging.Logger) *Index {
	return &Index{
		names: make(map[uint32][]string),
		seen:  make(map[string]struct{}),
		log:   logging.OrNop(log),
	}
}

// Build indexes names in order.
func Build(names []string, log *logging.Logger) *Index {
	idx := New(log)
	for _, n := range names {
		idx.Add(n)
	}
	return idx
}

// Add indexes name and reports whether it became the canonical name for its
// hash. Names that differ only in case are the same token to the engine and
// are not reported as collisions.
func (x *Index) Add(name string) bool {
	if _, ok := x.seen[name]; ok {
		return false
	}
	x.seen[name] = struct{}{}

	h := Hash(name)
	existing := x.names[h]
	x.names[h] = append(existing, name)
	if len(existing) == 0 {
		return true
	}

	kept := existing[0]
	if !strings.EqualFold(kept, name) {
		x.collisions = append(x.collisions, Collision{Hash: h, Kept: kept, Dropped: name})
		if x.log.V(2) {
			x.log.Debugw("Hash collision, keeping first candidate",
				"hash", formatHash(h),
				"kept", kept,
				"dropped", name,
			)
		}
	}
	return false
}

// Lookup returns the canonical name for hash.
func (x *Index) Lookup(hash uint32) (string, bool) {
	names := x.names[hash]
	if len(names) == 0 {
		return "", false
	}
	return names[0], true
}

// All returns every indexed name with the given hash, canonical first.
func (x *Index) All(hash uint32) []string {
	return append([]string(nil), x.names[hash]...)
}

// Len is the number of distinct hashes indexed.
func (x *Index) Len() int {
	return len(x.names)
}

func (x *Index) Collisions() []Collision {
	return append([]Collision(nil), x.collisions...)
}
