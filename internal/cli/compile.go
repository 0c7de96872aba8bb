package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/mgpai22/vccdec/internal/caption"
	"github.com/mgpai22/vccdec/internal/hashindex"
	"github.com/mgpai22/vccdec/internal/logging"
	"github.com/mgpai22/vccdec/internal/script"
	"github.com/spf13/cobra"
)

var compileCmd = &cobra.Command{
	Use:   "compile [script_file]",
	Short: "Compile a caption script into a caption file",
	Long: `Compile a caption script (UTF-16 with BOM or UTF-8) into a VCCD caption file.

Token names are hashed the same way the engine does. Keys written as a
literal hash (0xXXXXXXXX), as produced by decompile for unmatched tokens,
compile to that hash, so a decompiled file compiles back to the same
directory.

Examples:
  vccdec compile closecaption_english_d.txt
  vccdec compile captions.txt -o resource/closecaption_english.dat --block-size 8192`,
	Args: cobra.ExactArgs(1),
	RunE: runCompile,
}

func init() {
	rootCmd.AddCommand(compileCmd)

	compileCmd.Flags().
		Int("block-size", caption.DefaultBlockSize, "Size of each caption data block in bytes")
}

type compileOptions struct {
	Input     string
	Output    string
	BlockSize int

	Accept bool
	In     io.Reader
	Out    io.Writer
}

func runCompile(cmd *cobra.Command, args []string) error {
	opts := compileOptions{
		Input: args[0],
		In:    promptInput(cmd),
		Out:   cmd.OutOrStdout(),
	}
	opts.Output, _ = cmd.Flags().GetString("output")
	opts.Accept, _ = cmd.Flags().GetBool("accept")
	opts.BlockSize, _ = cmd.Flags().GetInt("block-size")

	outputPath, err := compile(opts, logger)
	if err != nil {
		return err
	}
	if outputPath == "" {
		return nil
	}

	absOutput, _ := filepath.Abs(outputPath)
	fmt.Fprintf(opts.Out, "Caption file written: %s\n", absOutput)
	return nil
}

func compile(opts compileOptions, log *logging.Logger) (string, error) {
	log = logging.OrNop(log)
	if opts.Out == nil {
		opts.Out = io.Discard
	}
	if opts.BlockSize <= 0 || opts.BlockSize > caption.MaxBlockSize {
		return "", fmt.Errorf("block-size must be within [1, %d], got %d", caption.MaxBlockSize, opts.BlockSize)
	}

	doc, err := script.ParseFile(opts.Input)
	if err != nil {
		return "", fmt.Errorf("failed to parse caption script: %w", err)
	}
	if len(doc.Entries) == 0 {
		log.Warnw("Caption script has no tokens", "input", opts.Input)
	}

	builder := caption.NewBuilder(opts.BlockSize)
	literal := 0
	for _, e := range doc.Entries {
		hash, isLiteral := tokenHash(e.Key)
		if isLiteral {
			literal++
		} else if want, ok := placeholderHash(e.Key); ok && want != hash {
			log.Warnw("Placeholder name does not reproduce the hash it was generated for",
				"token", e.Key,
				"expected", hashindex.FormatHash(want),
				"got", hashindex.FormatHash(hash),
			)
		}
		if err := builder.Add(hash, e.Text); err != nil {
			return "", fmt.Errorf("token %q: %w", e.Key, err)
		}
	}

	outputPath := opts.Output
	if outputPath == "" {
		outputPath = compiledOutputPath(opts.Input)
	}

	proceed, err := confirmOverwrite(outputPath, opts.Accept, opts.In, opts.Out, log)
	if err != nil {
		return "", err
	}
	if !proceed {
		fmt.Fprintln(opts.Out, "Process canceled")
		return "", nil
	}

	log.Infow("Compiling caption script",
		"input", opts.Input,
		"output", outputPath,
		"language", doc.Language,
		"tokens", builder.Len(),
		"literal_hashes", literal,
	)

	if err := ensureDir(outputPath); err != nil {
		return "", err
	}
	if err := os.WriteFile(outputPath, builder.Build(), 0644); err != nil {
		return "", fmt.Errorf("failed to write caption file: %w", err)
	}
	return outputPath, nil
}

var literalHashPattern = regexp.MustCompile(`^0x[0-9A-Fa-f]{8}$`)

// hash for a script key; literal hash keys stand for themselves
func tokenHash(key string) (uint32, bool) {
	if literalHashPattern.MatchString(key) {
		v, err := strconv.ParseUint(key[2:], 16, 32)
		if err == nil {
			return uint32(v), true
		}
	}
	return hashindex.Hash(key), false
}

var placeholderPattern = regexp.MustCompile(`^([0-9A-F]{8})_[0-9A-Z]+$`)

// hash a generated placeholder name was made for, taken from its prefix
func placeholderHash(key string) (uint32, bool) {
	m := placeholderPattern.FindStringSubmatch(key)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseUint(m[1], 16, 32)
	if err != nil {
		return 0, false
	}
	return uint32(v), true
}

// closecaption_english_d.txt -> closecaption_english.dat
func compiledOutputPath(input string) string {
	base := strings.TrimSuffix(input, filepath.Ext(input))
	return strings.TrimSuffix(base, "_d") + ".dat"
}

func ensureDir(path string) error {
	return os.MkdirAll(filepath.Dir(path), 0755)
}
