package script

import (
	"fmt"
	"strings"
)

// single caption token line
type Entry struct {
	Key  string
	Text string
}

// represents a complete caption script
type Script struct {
	Language string
	Entries  []Entry
}

// represents supported output encodings
type Encoding string

const (
	EncodingUTF16 Encoding = "utf-16" // little endian with BOM, what the engine tools expect
	EncodingUTF8  Encoding = "utf-8"
)

// rendering options
type Options struct {
	Align    bool
	Padding  int  // tab size when using tabs, space count otherwise
	Spaces   bool // pad with spaces instead of tabs
	Encoding Encoding
}

func DefaultOptions() Options {
	return Options{
		Align:    true,
		Padding:  4,
		Encoding: EncodingUTF16,
	}
}

func (o Options) Validate() error {
	if o.Padding < 0 {
		return fmt.Errorf("padding must not be negative, got %d", o.Padding)
	}
	if _, err := ParseEncoding(string(o.Encoding)); err != nil {
		return err
	}
	return nil
}

// encoding from a user supplied name
func ParseEncoding(name string) (Encoding, error) {
	switch strings.ToLower(strings.ReplaceAll(name, "_", "-")) {
	case "utf-16", "utf16", "utf-16le", "":
		return EncodingUTF16, nil
	case "utf-8", "utf8":
		return EncodingUTF8, nil
	default:
		return "", fmt.Errorf("unsupported encoding %q: use utf-16 or utf-8", name)
	}
}
