package hashindex

import (
	"context"
	"errors"
	"fmt"
	"hash/crc32"
	"strings"
)

// ErrPlaceholderNotFound is returned when no placeholder in the configured
// key space hashes to the target.
var ErrPlaceholderNotFound = errors.New("hashindex: no placeholder found")

const (
	// DefaultAlphabet only holds characters that upper-casing leaves alone.
	DefaultAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

	patchLen = 4
)

// PlaceholderOptions bound the placeholder key space.
type PlaceholderOptions struct {
	Alphabet  string
	MinFiller int
	MaxFiller int
}

func DefaultPlaceholderOptions() PlaceholderOptions {
	return PlaceholderOptions{
		Alphabet:  DefaultAlphabet,
		MinFiller: 4,
		MaxFiller: 6,
	}
}

func (o PlaceholderOptions) Validate() error {
	if o.Alphabet == "" {
		return fmt.Errorf("placeholder alphabet is empty")
	}
	for i := 0; i < len(o.Alphabet); i++ {
		c := o.Alphabet[i]
		if c >= 0x80 || strings.ToUpper(string(c)) != string(c) || c == '"' || c <= ' ' {
			return fmt.Errorf("placeholder alphabet character %q is not an upper-case invariant printable ASCII character", c)
		}
	}
	if o.MinFiller < 0 || o.MaxFiller < o.MinFiller {
		return fmt.Errorf("invalid placeholder filler range [%d, %d]", o.MinFiller, o.MaxFiller)
	}
	return nil
}

// reverse lookup from the top byte of a table entry to (entry<<8 ^ index),
// which steps the reflected CRC register back by one byte
var reverseTable = func() [256]uint32 {
	var rev [256]uint32
	for i, v := range crc32.IEEETable {
		rev[v>>24] = v<<8 ^ uint32(i)
	}
	return rev
}()

// Placeholder synthesizes a name that hashes to target. The name is the hex
// hash, an underscore, a filler searched in a fixed order and four patch
// bytes solved from the CRC register, all drawn from the alphabet:
//
//	ABCD1234_00K7QZ3M
//
// The result is a pure function of target and opts and is verified before it
// is returned.
func Placeholder(ctx context.Context, target uint32, opts PlaceholderOptions) (string, error) {
	if err := opts.Validate(); err != nil {
		return "", err
	}

	var allowed [256]bool
	for i := 0; i < len(opts.Alphabet); i++ {
		allowed[opts.Alphabet[i]] = true
	}

	prefix := []byte(formatHash(target)[2:] + "_")
	base := crc32.ChecksumIEEE(prefix)

	// register value the four patch bytes must map onto
	want := ^target
	for range patchLen {
		want = want<<8 ^ reverseTable[want>>24]
	}

	for n := opts.MinFiller; n <= opts.MaxFiller; n++ {
		filler := make([]byte, n)
		digits := make([]int, n)
		for i := range filler {
			filler[i] = opts.Alphabet[0]
		}

		for iter := 0; ; iter++ {
			if iter&0xFFF == 0 {
				if err := ctx.Err(); err != nil {
					return "", err
				}
			}

			reg := ^crc32.Update(base, crc32.IEEETable, filler)
			patch := reg ^ want
			p := [patchLen]byte{byte(patch), byte(patch >> 8), byte(patch >> 16), byte(patch >> 24)}
			if allowed[p[0]] && allowed[p[1]] && allowed[p[2]] && allowed[p[3]] {
				name := string(prefix) + string(filler) + string(p[:])
				if Hash(name) != target {
					return "", fmt.Errorf("hashindex: placeholder %q verification failed for %s", name, formatHash(target))
				}
				return name, nil
			}

			if !increment(digits, filler, opts.Alphabet) {
				break
			}
		}
	}

	return "", fmt.Errorf("%w for %s (filler %d-%d)", ErrPlaceholderNotFound,
		formatHash(target), opts.MinFiller, opts.MaxFiller)
}

// increment advances filler like an odometer over alphabet, last position
// fastest. It returns false once every combination has been produced.
func increment(digits []int, filler []byte, alphabet string) bool {
	for i := len(digits) - 1; i >= 0; i-- {
		digits[i]++
		if digits[i] < len(alphabet) {
			filler[i] = alphabet[digits[i]]
			return true
		}
		digits[i] = 0
		filler[i] = alphabet[0]
	}
	return false
}

// FormatHash renders a hash as the literal token used for unresolved
// entries.
func FormatHash(h uint32) string {
	return formatHash(h)
}

func formatHash(h uint32) string {
	return fmt.Sprintf("0x%08X", h)
}
