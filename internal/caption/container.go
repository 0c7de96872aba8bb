package caption

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/text/encoding/unicode"
)

const (
	Magic            = "VCCD"
	Version          = 1
	HeaderSize       = 24
	EntrySize        = 12 // hash + block + offset + length
	DefaultBlockSize = 8192
	DirectoryAlign   = 512

	// MaxBlockSize keeps every in-block offset representable in a directory
	// entry's uint16 offset field.
	MaxBlockSize = 1 << 16
)

// caption strings are stored without a BOM; a leading U+FEFF is kept as text
var utf16le = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// Header is the fixed size container preamble.
type Header struct {
	Magic      string
	Version    int32
	Blocks     int32
	BlockSize  int32
	Entries    int32
	DataOffset int32
}

// DirEntry locates one caption string inside the data section.
type DirEntry struct {
	Hash   uint32
	Block  int32
	Offset uint16 // byte offset inside the block
	Length uint16 // byte length including the UTF-16 NUL terminator
}

// Entry is a directory entry together with its decoded text.
type Entry struct {
	DirEntry
	Text string
}

// Container is a parsed caption container. Directory order is the on-disk
// order, which is ascending by hash for engine built files.
type Container struct {
	Header    Header
	Directory []DirEntry
	data      []byte
}

// Parse validates the header and directory of a compiled container. The
// returned Container retains data; callers must not modify it afterwards.
// Every directory entry is bounds checked against the buffer here, so text
// access can only fail on encoding.
func Parse(data []byte) (*Container, error) {
	size := int64(len(data))
	if size < HeaderSize {
		return nil, malformed("header", 0,
			fmt.Sprintf("%d bytes", HeaderSize),
			fmt.Sprintf("%d bytes", size))
	}

	magic := string(data[0:4])
	if magic != Magic {
		return nil, malformed("magic", 0,
			fmt.Sprintf("%q", Magic), fmt.Sprintf("%q", magic))
	}

	h := Header{
		Magic:      magic,
		Version:    readInt32(data[4:]),
		Blocks:     readInt32(data[8:]),
		BlockSize:  readInt32(data[12:]),
		Entries:    readInt32(data[16:]),
		DataOffset: readInt32(data[20:]),
	}

	if h.Version != Version {
		return nil, malformed("version", 4,
			fmt.Sprint(Version), fmt.Sprint(h.Version))
	}
	if h.Blocks < 0 {
		return nil, malformed("block count", 8, "non-negative", fmt.Sprint(h.Blocks))
	}
	if h.BlockSize < 0 || (h.Blocks > 0 && h.BlockSize == 0) {
		return nil, malformed("block size", 12, "positive", fmt.Sprint(h.BlockSize))
	}
	if h.Entries < 0 {
		return nil, malformed("directory size", 16, "non-negative", fmt.Sprint(h.Entries))
	}

	dirEnd := int64(HeaderSize) + int64(h.Entries)*EntrySize
	if dirEnd > size {
		return nil, malformed("directory", HeaderSize,
			fmt.Sprintf("%d entries ending at 0x%X", h.Entries, dirEnd),
			fmt.Sprintf("file of %d bytes", size))
	}
	if int64(h.DataOffset) < dirEnd || int64(h.DataOffset) > size {
		return nil, malformed("data offset", 20,
			fmt.Sprintf("value in [0x%X, 0x%X]", dirEnd, size),
			fmt.Sprintf("0x%X", h.DataOffset))
	}

	dir := make([]DirEntry, h.Entries)
	for i := range dir {
		pos := HeaderSize + i*EntrySize
		e := DirEntry{
			Hash:   binary.LittleEndian.Uint32(data[pos:]),
			Block:  readInt32(data[pos+4:]),
			Offset: binary.LittleEndian.Uint16(data[pos+8:]),
			Length: binary.LittleEndian.Uint16(data[pos+10:]),
		}
		if e.Block < 0 || e.Block >= h.Blocks {
			return nil, malformed(fmt.Sprintf("entry[%d] block index", i), int64(pos+4),
				fmt.Sprintf("value in [0, %d)", h.Blocks), fmt.Sprint(e.Block))
		}
		start := textStart(h, e)
		if end := start + int64(e.Length); end > size {
			return nil, malformed(fmt.Sprintf("entry[%d] text range", i), start,
				fmt.Sprintf("end within %d bytes", size),
				fmt.Sprintf("end at %d (length %d)", end, e.Length))
		}
		dir[i] = e
	}

	return &Container{Header: h, Directory: dir, data: data}, nil
}

// Text decodes the caption string of directory entry i. The trailing NUL
// terminator is dropped; everything else, including markup tags, is kept.
func (c *Container) Text(i int) (string, error) {
	if i < 0 || i >= len(c.Directory) {
		return "", fmt.Errorf("caption: entry index %d out of range (0-%d)", i, len(c.Directory)-1)
	}
	e := c.Directory[i]
	start := textStart(c.Header, e)
	raw := c.data[start : start+int64(e.Length)]
	field := fmt.Sprintf("entry[%d] (hash 0x%08X)", i, e.Hash)

	if len(raw)%2 != 0 {
		return "", badEncoding(field, start, fmt.Sprintf("odd byte length %d", len(raw)))
	}
	if n := len(raw); n >= 2 && raw[n-2] == 0 && raw[n-1] == 0 {
		raw = raw[:n-2]
	}
	if pos, ok := validUTF16(raw); !ok {
		return "", badEncoding(field, start+int64(pos), "unpaired surrogate")
	}

	text, err := utf16le.NewDecoder().Bytes(raw)
	if err != nil {
		return "", badEncoding(field, start, err.Error())
	}
	return string(text), nil
}

// Entries decodes every directory entry in directory order.
func (c *Container) Entries() ([]Entry, error) {
	entries := make([]Entry, len(c.Directory))
	for i, d := range c.Directory {
		text, err := c.Text(i)
		if err != nil {
			return nil, err
		}
		entries[i] = Entry{DirEntry: d, Text: text}
	}
	return entries, nil
}

// MarshalDirectory encodes the header and directory exactly as they are laid
// out on disk. For a parsed container this reproduces the leading
// HeaderSize+Entries*EntrySize bytes of the input.
func (c *Container) MarshalDirectory() []byte {
	return appendDirectory(make([]byte, 0, HeaderSize+len(c.Directory)*EntrySize), c.Header, c.Directory)
}

func appendDirectory(buf []byte, h Header, dir []DirEntry) []byte {
	buf = append(buf, Magic...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(h.Version))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(h.Blocks))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(h.BlockSize))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(h.Entries))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(h.DataOffset))
	for _, e := range dir {
		buf = binary.LittleEndian.AppendUint32(buf, e.Hash)
		buf = binary.LittleEndian.AppendUint32(buf, uint32(e.Block))
		buf = binary.LittleEndian.AppendUint16(buf, e.Offset)
		buf = binary.LittleEndian.AppendUint16(buf, e.Length)
	}
	return buf
}

func textStart(h Header, e DirEntry) int64 {
	return int64(h.DataOffset) + int64(e.Block)*int64(h.BlockSize) + int64(e.Offset)
}

func readInt32(b []byte) int32 {
	return int32(binary.LittleEndian.Uint32(b))
}

// validUTF16 reports whether b holds well formed UTF-16LE code units. On
// failure it returns the byte position of the offending unit.
func validUTF16(b []byte) (int, bool) {
	for i := 0; i+1 < len(b); i += 2 {
		u := binary.LittleEndian.Uint16(b[i:])
		switch {
		case u >= 0xD800 && u < 0xDC00:
			if i+3 >= len(b) {
				return i, false
			}
			next := binary.LittleEndian.Uint16(b[i+2:])
			if next < 0xDC00 || next > 0xDFFF {
				return i, false
			}
			i += 2
		case u >= 0xDC00 && u <= 0xDFFF:
			return i, false
		}
	}
	return 0, true
}
