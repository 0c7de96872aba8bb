package resolve

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mgpai22/vccdec/internal/caption"
	"github.com/mgpai22/vccdec/internal/hashindex"
)

func entry(hash uint32, text string) caption.Entry {
	return caption.Entry{DirEntry: caption.DirEntry{Hash: hash}, Text: text}
}

func TestResolveMatchedName(t *testing.T) {
	h := hashindex.Hash("NPC_GREETING")
	idx := hashindex.Build([]string{"NPC_GREETING"}, nil)

	got, stats, err := New(idx, DefaultOptions(), nil).
		Resolve(context.Background(), []caption.Entry{entry(h, "Hello")})
	require.NoError(t, err)

	assert.Equal(t, []Entry{{Key: "NPC_GREETING", Text: "Hello", Hash: h, Kind: KindMatched}}, got)
	assert.Equal(t, Stats{Total: 1, Matched: 1}, stats)
}

func TestResolveLiteralWithoutCandidates(t *testing.T) {
	got, stats, err := New(nil, DefaultOptions(), nil).
		Resolve(context.Background(), []caption.Entry{entry(0xABCD1234, "Hello")})
	require.NoError(t, err)

	require.Len(t, got, 1)
	assert.Equal(t, "0xABCD1234", got[0].Key)
	assert.Equal(t, "Hello", got[0].Text)
	assert.Equal(t, KindLiteral, got[0].Kind)
	assert.Equal(t, 1, stats.Unresolved())
}

func TestResolvePlaceholders(t *testing.T) {
	idx := hashindex.Build([]string{"Known.Name"}, nil)
	entries := []caption.Entry{
		entry(0x00000001, "a"),
		entry(hashindex.Hash("Known.Name"), "b"),
		entry(0xABCD1234, "c"),
		entry(0xFFFFFFFF, "d"),
	}

	opts := DefaultOptions()
	opts.Placeholders = true
	opts.Workers = 2

	got, stats, err := New(idx, opts, nil).Resolve(context.Background(), entries)
	require.NoError(t, err)
	require.Len(t, got, len(entries))
	assert.Equal(t, Stats{Total: 4, Matched: 1, Placeholders: 3}, stats)

	for i, e := range got {
		assert.Equal(t, entries[i].Hash, e.Hash, "order preserved")
		assert.Equal(t, entries[i].Text, e.Text)
		assert.Equal(t, e.Hash, hashindex.Hash(e.Key), "key %q", e.Key)
	}
	assert.Equal(t, KindMatched, got[1].Kind)
	assert.Equal(t, KindPlaceholder, got[0].Kind)

	// deterministic across runs
	again, _, err := New(idx, opts, nil).Resolve(context.Background(), entries)
	require.NoError(t, err)
	assert.Equal(t, got, again)
}

func TestResolvePlaceholderFailure(t *testing.T) {
	opts := DefaultOptions()
	opts.Placeholders = true
	opts.Placeholder = hashindex.PlaceholderOptions{Alphabet: "Q", MinFiller: 0, MaxFiller: 0}

	_, _, err := New(nil, opts, nil).Resolve(context.Background(), []caption.Entry{entry(0x12345678, "x")})
	assert.ErrorIs(t, err, hashindex.ErrPlaceholderNotFound)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "matched", KindMatched.String())
	assert.Equal(t, "literal", KindLiteral.String())
	assert.Equal(t, "placeholder", KindPlaceholder.String())
	assert.Equal(t, "Kind(9)", Kind(9).String())
}
