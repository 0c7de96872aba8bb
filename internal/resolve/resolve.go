// Package resolve assigns a script key to every decoded caption entry.
package resolve

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/mgpai22/vccdec/internal/caption"
	"github.com/mgpai22/vccdec/internal/hashindex"
	"github.com/mgpai22/vccdec/internal/logging"
)

// Kind says how an entry's key was obtained.
type Kind int

const (
	KindMatched     Kind = iota // recovered candidate name
	KindLiteral                 // hash rendered as 0xXXXXXXXX
	KindPlaceholder             // synthesized name with the same hash
)

func (k Kind) String() string {
	switch k {
	case KindMatched:
		return "matched"
	case KindLiteral:
		return "literal"
	case KindPlaceholder:
		return "placeholder"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Entry is a caption entry with its rendered key.
type Entry struct {
	Key  string
	Text string
	Hash uint32
	Kind Kind
}

// Options controls handling of unmatched hashes.
type Options struct {
	Placeholders bool
	Workers      int // placeholder search parallelism, <= 0 uses GOMAXPROCS
	Placeholder  hashindex.PlaceholderOptions
}

func DefaultOptions() Options {
	return Options{
		Placeholder: hashindex.DefaultPlaceholderOptions(),
	}
}

// Stats summarizes a resolution run.
type Stats struct {
	Total        int
	Matched      int
	Placeholders int
}

func (s Stats) Unresolved() int {
	return s.Total - s.Matched
}

type Resolver struct {
	index *hashindex.Index
	opts  Options
	log   *logging.Logger
}

// New creates a resolver over index. A nil index resolves nothing.
func New(index *hashindex.Index, opts Options, log *logging.Logger) *Resolver {
	if index == nil {
		index = hashindex.New(log)
	}
	return &Resolver{index: index, opts: opts, log: logging.OrNop(log)}
}

// Resolve returns one Entry per input entry, in input order.
func (r *Resolver) Resolve(ctx context.Context, entries []caption.Entry) ([]Entry, Stats, error) {
	out := make([]Entry, len(entries))
	stats := Stats{Total: len(entries)}
	var pending []int

	for i, e := range entries {
		out[i] = Entry{Text: e.Text, Hash: e.Hash}
		if name, ok := r.index.Lookup(e.Hash); ok {
			out[i].Key = name
			out[i].Kind = KindMatched
			stats.Matched++
			continue
		}

		out[i].Key = hashindex.FormatHash(e.Hash)
		out[i].Kind = KindLiteral
		if r.log.V(1) {
			// +6 mirrors the line the entry lands on in the rendered script
			r.log.Debugw("No candidate for hash", "hash", out[i].Key, "line", i+6)
		}
		if r.opts.Placeholders {
			pending = append(pending, i)
		}
	}

	if len(pending) > 0 {
		if err := r.placeholders(ctx, out, pending); err != nil {
			return nil, stats, err
		}
		stats.Placeholders = len(pending)
	}

	return out, stats, nil
}

// placeholders searches keys for the pending entries in parallel. Each
// search is independent and writes only its own slot.
func (r *Resolver) placeholders(ctx context.Context, out []Entry, pending []int) error {
	workers := r.opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	r.log.Infow("Generating placeholder names",
		"entries", len(pending),
		"workers", workers,
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, i := range pending {
		g.Go(func() error {
			name, err := hashindex.Placeholder(ctx, out[i].Hash, r.opts.Placeholder)
			if err != nil {
				return fmt.Errorf("entry %d: %w", i, err)
			}
			out[i].Key = name
			out[i].Kind = KindPlaceholder
			if r.log.V(2) {
				r.log.Debugw("Generated placeholder", "hash", hashindex.FormatHash(out[i].Hash), "name", name)
			}
			return nil
		})
	}
	return g.Wait()
}
