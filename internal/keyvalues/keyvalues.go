// Package keyvalues parses the engine's KeyValues text format used by
// soundscripts, sound manifests and caption scripts.
//
// Key order and duplicate keys are preserved. Quoted strings are taken
// verbatim (no escape sequences), "//" starts a comment, and platform
// conditionals such as [$X360] are accepted and discarded.
package keyvalues

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Node is a key with either a string value or a block of children.
type Node struct {
	Key      string
	Value    string
	Children []*Node
	Line     int

	block bool
}

func (n *Node) IsBlock() bool {
	return n.block
}

// Child returns the first child whose key matches case-insensitively.
func (n *Node) Child(key string) *Node {
	for _, c := range n.Children {
		if strings.EqualFold(c.Key, key) {
			return c
		}
	}
	return nil
}

// All returns every child whose key matches case-insensitively, in order.
func (n *Node) All(key string) []*Node {
	var out []*Node
	for _, c := range n.Children {
		if strings.EqualFold(c.Key, key) {
			out = append(out, c)
		}
	}
	return out
}

// SyntaxError reports a parse failure with its 1-based line.
type SyntaxError struct {
	Line int
	Msg  string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("keyvalues: line %d: %s", e.Line, e.Msg)
}

// ParseFile reads and parses a KeyValues file. UTF-8 and UTF-16 files with
// a byte order mark are both accepted.
func ParseFile(path string) ([]*Node, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	nodes, err := Parse(NewDecodingReader(bytes.NewReader(data)))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return nodes, nil
}

// NewDecodingReader converts r to UTF-8, honoring a UTF-8 or UTF-16 BOM and
// assuming UTF-8 when there is none.
func NewDecodingReader(r io.Reader) io.Reader {
	return transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
}

// Parse parses UTF-8 KeyValues text and returns the top level nodes.
func Parse(r io.Reader) ([]*Node, error) {
	p := &parser{lex: newLexer(r)}
	return p.parseBlock(false)
}

type parser struct {
	lex *lexer
}

func (p *parser) parseBlock(nested bool) ([]*Node, error) {
	var nodes []*Node
	for {
		tok, err := p.lex.next()
		if err != nil {
			return nil, err
		}

		switch tok.kind {
		case tokEOF:
			if nested {
				return nil, &SyntaxError{Line: tok.line, Msg: "unexpected end of input, missing '}'"}
			}
			return nodes, nil
		case tokClose:
			if !nested {
				return nil, &SyntaxError{Line: tok.line, Msg: "unexpected '}'"}
			}
			return nodes, nil
		case tokOpen:
			return nil, &SyntaxError{Line: tok.line, Msg: "unexpected '{', expected a key"}
		case tokConditional:
			continue
		}

		node, err := p.parseValue(tok)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, node)
	}
}

func (p *parser) parseValue(key token) (*Node, error) {
	node := &Node{Key: key.text, Line: key.line}
	for {
		tok, err := p.lex.next()
		if err != nil {
			return nil, err
		}

		switch tok.kind {
		case tokConditional:
			continue
		case tokString:
			node.Value = tok.text
			return node, p.skipConditional()
		case tokOpen:
			children, err := p.parseBlock(true)
			if err != nil {
				return nil, err
			}
			node.Children = children
			node.block = true
			return node, nil
		default:
			return nil, &SyntaxError{Line: tok.line, Msg: fmt.Sprintf("key %q has no value", key.text)}
		}
	}
}

// a conditional may trail a value on the same pair
func (p *parser) skipConditional() error {
	tok, err := p.lex.peek()
	if err != nil {
		return err
	}
	if tok.kind == tokConditional {
		_, err = p.lex.next()
	}
	return err
}

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokString
	tokOpen
	tokClose
	tokConditional
)

type token struct {
	kind tokenKind
	text string
	line int
}

type lexer struct {
	r      *bufio.Reader
	line   int
	last   rune
	peeked *token
}

func newLexer(r io.Reader) *lexer {
	return &lexer{r: bufio.NewReader(r), line: 1}
}

func (l *lexer) peek() (token, error) {
	if l.peeked == nil {
		tok, err := l.scan()
		if err != nil {
			return token{}, err
		}
		l.peeked = &tok
	}
	return *l.peeked, nil
}

func (l *lexer) next() (token, error) {
	if l.peeked != nil {
		tok := *l.peeked
		l.peeked = nil
		return tok, nil
	}
	return l.scan()
}

func (l *lexer) scan() (token, error) {
	for {
		r, err := l.read()
		if err == io.EOF {
			return token{kind: tokEOF, line: l.line}, nil
		}
		if err != nil {
			return token{}, err
		}

		switch {
		case r == '\uFEFF' || isSpace(r):
			continue
		case r == '/':
			nxt, err := l.read()
			if err == nil && nxt == '/' {
				if err := l.skipLine(); err != nil {
					return token{}, err
				}
				continue
			}
			if err == nil {
				l.unread()
			}
			return l.bare(r)
		case r == '{':
			return token{kind: tokOpen, line: l.line}, nil
		case r == '}':
			return token{kind: tokClose, line: l.line}, nil
		case r == '"':
			return l.quoted()
		case r == '[':
			return l.conditional()
		default:
			return l.bare(r)
		}
	}
}

func (l *lexer) quoted() (token, error) {
	start := l.line
	var sb strings.Builder
	for {
		r, err := l.read()
		if err == io.EOF {
			return token{}, &SyntaxError{Line: start, Msg: "unterminated quoted string"}
		}
		if err != nil {
			return token{}, err
		}
		if r == '"' {
			return token{kind: tokString, text: sb.String(), line: start}, nil
		}
		sb.WriteRune(r)
	}
}

func (l *lexer) conditional() (token, error) {
	start := l.line
	var sb strings.Builder
	for {
		r, err := l.read()
		if err == io.EOF {
			return token{}, &SyntaxError{Line: start, Msg: "unterminated conditional"}
		}
		if err != nil {
			return token{}, err
		}
		if r == ']' {
			return token{kind: tokConditional, text: sb.String(), line: start}, nil
		}
		sb.WriteRune(r)
	}
}

func (l *lexer) bare(first rune) (token, error) {
	start := l.line
	var sb strings.Builder
	sb.WriteRune(first)
	for {
		r, err := l.read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return token{}, err
		}
		if isSpace(r) || r == '"' || r == '{' || r == '}' {
			l.unread()
			break
		}
		sb.WriteRune(r)
	}
	return token{kind: tokString, text: sb.String(), line: start}, nil
}

func (l *lexer) skipLine() error {
	for {
		r, err := l.read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if r == '\n' {
			return nil
		}
	}
}

func (l *lexer) read() (rune, error) {
	r, _, err := l.r.ReadRune()
	if err != nil {
		return 0, err
	}
	if r == '\n' {
		l.line++
	}
	l.last = r
	return r, nil
}

// unread steps back over the rune returned by the last successful read.
func (l *lexer) unread() {
	if l.r.UnreadRune() == nil && l.last == '\n' {
		l.line--
	}
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}
