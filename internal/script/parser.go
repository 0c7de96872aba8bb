package script

import (
	"fmt"
	"io"
	"strings"

	"github.com/mgpai22/vccdec/internal/keyvalues"
)

// Parse reads a caption script. Input may be UTF-8 or UTF-16 with a BOM.
func Parse(r io.Reader) (*Script, error) {
	nodes, err := keyvalues.Parse(keyvalues.NewDecodingReader(r))
	if err != nil {
		return nil, err
	}
	return fromNodes(nodes)
}

func ParseFile(path string) (*Script, error) {
	nodes, err := keyvalues.ParseFile(path)
	if err != nil {
		return nil, err
	}
	s, err := fromNodes(nodes)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

func fromNodes(nodes []*keyvalues.Node) (*Script, error) {
	var root *keyvalues.Node
	for _, n := range nodes {
		if n.IsBlock() && strings.EqualFold(n.Key, "lang") {
			root = n
			break
		}
	}
	if root == nil {
		return nil, fmt.Errorf("missing \"lang\" block")
	}

	s := &Script{}
	if lang := root.Child("Language"); lang != nil {
		s.Language = lang.Value
	}

	tokens := root.Child("Tokens")
	if tokens == nil || !tokens.IsBlock() {
		return nil, fmt.Errorf("missing \"Tokens\" block")
	}
	for _, t := range tokens.Children {
		if t.IsBlock() {
			return nil, fmt.Errorf("line %d: token %q must have a string value", t.Line, t.Key)
		}
		s.Entries = append(s.Entries, Entry{Key: t.Key, Text: t.Value})
	}
	return s, nil
}
