package caption

import (
	"fmt"
	"sort"
)

// Builder assembles a container the way the engine's caption compiler lays
// it out: directory sorted by hash, strings packed into blocks without
// straddling a block boundary, data section aligned to DirectoryAlign.
type Builder struct {
	blockSize int
	entries   []pendingEntry
	seen      map[uint32]int
}

type pendingEntry struct {
	hash uint32
	text []byte // UTF-16LE with terminator
}

// NewBuilder returns an empty Builder. Non-positive block sizes select
// DefaultBlockSize and sizes above MaxBlockSize are clamped to it.
func NewBuilder(blockSize int) *Builder {
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}
	blockSize = min(blockSize, MaxBlockSize)
	return &Builder{
		blockSize: blockSize,
		seen:      make(map[uint32]int),
	}
}

// Add queues a caption string under hash. Adding the same hash twice is an
// error since the engine could only ever address one of them.
func (b *Builder) Add(hash uint32, text string) error {
	if i, ok := b.seen[hash]; ok {
		return fmt.Errorf("caption: duplicate hash 0x%08X (entries %d and %d)", hash, i, len(b.entries))
	}

	encoded, err := utf16le.NewEncoder().Bytes([]byte(text))
	if err != nil {
		return fmt.Errorf("caption: encode text for hash 0x%08X: %w", hash, err)
	}
	encoded = append(encoded, 0, 0)

	if len(encoded) > b.blockSize || len(encoded) > 0xFFFF {
		return fmt.Errorf("caption: text for hash 0x%08X is %d bytes, exceeds block size %d",
			hash, len(encoded), b.blockSize)
	}

	b.seen[hash] = len(b.entries)
	b.entries = append(b.entries, pendingEntry{hash: hash, text: encoded})
	return nil
}

func (b *Builder) Len() int {
	return len(b.entries)
}

// Build lays out and serializes the container.
func (b *Builder) Build() []byte {
	sorted := make([]pendingEntry, len(b.entries))
	copy(sorted, b.entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].hash < sorted[j].hash
	})

	dir := make([]DirEntry, len(sorted))
	var blocks [][]byte
	var cur []byte
	for i, e := range sorted {
		if cur == nil || len(cur)+len(e.text) > b.blockSize {
			if cur != nil {
				blocks = append(blocks, cur)
			}
			cur = make([]byte, 0, b.blockSize)
		}
		dir[i] = DirEntry{
			Hash:   e.hash,
			Block:  int32(len(blocks)),
			Offset: uint16(len(cur)),
			Length: uint16(len(e.text)),
		}
		cur = append(cur, e.text...)
	}
	if cur != nil {
		blocks = append(blocks, cur)
	}

	dirEnd := HeaderSize + len(dir)*EntrySize
	dataOffset := alignUp(dirEnd, DirectoryAlign)

	h := Header{
		Magic:      Magic,
		Version:    Version,
		Blocks:     int32(len(blocks)),
		BlockSize:  int32(b.blockSize),
		Entries:    int32(len(dir)),
		DataOffset: int32(dataOffset),
	}

	out := make([]byte, 0, dataOffset+len(blocks)*b.blockSize)
	out = appendDirectory(out, h, dir)
	out = append(out, make([]byte, dataOffset-dirEnd)...)
	for _, blk := range blocks {
		out = append(out, blk...)
		out = append(out, make([]byte, b.blockSize-len(blk))...)
	}
	return out
}

func alignUp(n, align int) int {
	if rem := n % align; rem != 0 {
		return n + align - rem
	}
	return n
}
