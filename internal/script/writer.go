package script

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
)

// Render formats s as a caption script:
//
//	"lang"
//	{
//		"Language" "english"
//		"Tokens"
//		{
//			"NPC.Hello"	"Hello there"
//		}
//	}
//
// Key and text are written verbatim between quotes; markup tags in the text
// are not touched.
func Render(s *Script, opts Options) string {
	unit := "\t"
	if opts.Spaces {
		unit = strings.Repeat(" ", max(opts.Padding, 1))
	}

	align := opts.Align && opts.Padding > 0
	column := 0
	if align {
		column = valueColumn(s.Entries, opts.Padding)
	}

	var sb strings.Builder
	sb.WriteString("\"lang\"\n{\n")
	fmt.Fprintf(&sb, "%s\"Language\" \"%s\"\n", unit, s.Language)
	fmt.Fprintf(&sb, "%s\"Tokens\"\n%s{\n", unit, unit)

	for _, e := range s.Entries {
		sep := unit
		if align {
			sep = alignment(utf8.RuneCountInString(e.Key)+2, column, opts)
		}
		fmt.Fprintf(&sb, "%s%s\"%s\"%s\"%s\"\n", unit, unit, e.Key, sep, e.Text)
	}

	fmt.Fprintf(&sb, "%s}\n}\n", unit)
	return sb.String()
}

// width of the widest quoted key, bumped so it never lands on a tab stop;
// that keeps at least one padding unit between every key and its value
func valueColumn(entries []Entry, padding int) int {
	widest := 0
	for _, e := range entries {
		widest = max(widest, utf8.RuneCountInString(e.Key))
	}
	widest += 2 // quotes
	if widest%padding == 0 {
		widest++
	}
	return widest
}

// padding that moves a quoted key of the given width to the next tab stop
// after column
func alignment(width, column int, opts Options) string {
	p := opts.Padding
	if opts.Spaces {
		target := column + (p - column%p)
		return strings.Repeat(" ", target-width)
	}
	tabs := (column+p-1)/p - width/p
	return strings.Repeat("\t", tabs)
}

// Encode renders s and converts it to the configured encoding.
func Encode(s *Script, opts Options) ([]byte, error) {
	text := Render(s, opts)
	if opts.Encoding == EncodingUTF8 {
		return []byte(text), nil
	}
	data, err := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder().Bytes([]byte(text))
	if err != nil {
		return nil, fmt.Errorf("failed to encode script: %w", err)
	}
	return data, nil
}

// writes the script to path, creating parent directories
func Write(s *Script, path string, opts Options) error {
	data, err := Encode(s, opts)
	if err != nil {
		return err
	}
	if err := ensureDir(path); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	return os.MkdirAll(dir, 0755)
}
