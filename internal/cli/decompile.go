package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/mgpai22/vccdec/internal/caption"
	"github.com/mgpai22/vccdec/internal/candidate"
	"github.com/mgpai22/vccdec/internal/hashindex"
	"github.com/mgpai22/vccdec/internal/logging"
	"github.com/mgpai22/vccdec/internal/resolve"
	"github.com/mgpai22/vccdec/internal/script"
	"github.com/spf13/cobra"
)

var decompileCmd = &cobra.Command{
	Use:   "decompile [caption_file]",
	Short: "Decompile a compiled caption file into a caption script",
	Long: `Decompile a compiled closed caption file (.dat) back into a caption script.

Token names are recovered by hashing candidate names and matching them
against the hashes stored in the file. Candidates come from:
  - soundscripts listed in game_sounds_manifest.txt (found in ../scripts
    relative to the caption file unless --sound-dir or --no-discover is given)
  - soundscript files (--sound-script)
  - literal names (--sound-name)
  - newline separated name lists (--sound-list)

Unmatched tokens are written as their hash (0xXXXXXXXX). With --same-hashes
they get a generated name that compiles back to the original hash instead.

Examples:
  vccdec decompile resource/closecaption_english.dat
  vccdec decompile closecaption_french.dat --sound-dir game/scripts -o french.txt
  vccdec decompile captions.dat -l english --no-discover -n NPC.Hello -L names.txt
  vccdec decompile closecaption_english.dat --same-hashes --spaces -p 2 -vv`,
	Args: cobra.ExactArgs(1),
	RunE: runDecompile,
}

func init() {
	rootCmd.AddCommand(decompileCmd)

	decompileCmd.Flags().
		StringP("language", "l", "", "Output language (default: guessed from the file name, e.g. closecaption_english.dat)")
	decompileCmd.Flags().
		StringP("sound-dir", "d", "", "Directory containing game_sounds_manifest.txt (default: ../scripts next to the input)")
	decompileCmd.Flags().
		Bool("no-discover", false, "Do not look for game_sounds_manifest.txt")
	decompileCmd.Flags().
		StringArrayP("sound-script", "s", nil, "Soundscript file to take names from (repeatable)")
	decompileCmd.Flags().
		StringArrayP("sound-name", "n", nil, "Literal token name to match against (repeatable)")
	decompileCmd.Flags().
		StringArrayP("sound-list", "L", nil, "File with newline separated token names (repeatable)")
	decompileCmd.Flags().
		BoolP("same-hashes", "H", false, "Give unmatched tokens generated names that compile to the same hash (slower)")
	decompileCmd.Flags().
		Int("workers", 0, "Parallel workers for --same-hashes (default: number of CPUs)")
	decompileCmd.Flags().
		Bool("no-suffix", false, "Do not add the '_d' suffix to the default output name")
	decompileCmd.Flags().
		IntP("padding", "p", 4, "Tab size / space count used for alignment; your editor must match it when using tabs")
	decompileCmd.Flags().
		Bool("no-align", false, "Disable caption value alignment")
	decompileCmd.Flags().
		BoolP("spaces", "t", false, "Pad with spaces instead of tabs")
	decompileCmd.Flags().
		String("encoding", string(script.EncodingUTF16), "Output encoding (utf-16, utf-8)")
}

type decompileOptions struct {
	Input    string
	Output   string
	NoSuffix bool
	Language string

	SoundDir   string
	NoDiscover bool
	Sources    candidate.Sources

	Resolve resolve.Options
	Script  script.Options

	Accept bool
	In     io.Reader
	Out    io.Writer
}

func runDecompile(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()

	opts := decompileOptions{
		Input:   args[0],
		Resolve: resolve.DefaultOptions(),
		Script:  script.DefaultOptions(),
		In:      promptInput(cmd),
		Out:     cmd.OutOrStdout(),
	}
	opts.Output, _ = flags.GetString("output")
	opts.Accept, _ = flags.GetBool("accept")
	opts.NoSuffix, _ = flags.GetBool("no-suffix")
	opts.Language, _ = flags.GetString("language")
	opts.SoundDir, _ = flags.GetString("sound-dir")
	opts.NoDiscover, _ = flags.GetBool("no-discover")
	opts.Sources.Soundscripts, _ = flags.GetStringArray("sound-script")
	opts.Sources.Names, _ = flags.GetStringArray("sound-name")
	opts.Sources.ListFiles, _ = flags.GetStringArray("sound-list")
	opts.Resolve.Placeholders, _ = flags.GetBool("same-hashes")
	opts.Resolve.Workers, _ = flags.GetInt("workers")
	opts.Script.Padding, _ = flags.GetInt("padding")
	opts.Script.Spaces, _ = flags.GetBool("spaces")

	noAlign, _ := flags.GetBool("no-align")
	opts.Script.Align = !noAlign

	encoding, _ := flags.GetString("encoding")
	enc, err := script.ParseEncoding(encoding)
	if err != nil {
		return err
	}
	opts.Script.Encoding = enc

	outputPath, err := decompile(cmd.Context(), opts, logger)
	if err != nil {
		return err
	}
	if outputPath == "" {
		return nil
	}

	absOutput, _ := filepath.Abs(outputPath)
	fmt.Fprintf(opts.Out, "Caption script written: %s\n", absOutput)
	return nil
}

// decompile runs the whole pipeline and returns the written path, or an
// empty path when the user declined to overwrite an existing file.
func decompile(ctx context.Context, opts decompileOptions, log *logging.Logger) (string, error) {
	log = logging.OrNop(log)
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.Out == nil {
		opts.Out = io.Discard
	}

	if err := opts.Script.Validate(); err != nil {
		return "", err
	}
	if err := opts.Resolve.Placeholder.Validate(); err != nil {
		return "", err
	}

	opts.Sources.DiscoverRoot = discoveryRoot(opts, log)

	language := opts.Language
	if language == "" {
		language = inferLanguage(opts.Input)
		if language == "" {
			log.Warnw("Input file name does not follow closecaption_<language>.dat and no language was given; language will be empty",
				"input", opts.Input,
			)
		}
	}

	outputPath := opts.Output
	if outputPath == "" {
		outputPath = defaultOutputPath(opts.Input, opts.NoSuffix)
	}

	proceed, err := confirmOverwrite(outputPath, opts.Accept, opts.In, opts.Out, log)
	if err != nil {
		return "", err
	}
	if !proceed {
		fmt.Fprintln(opts.Out, "Process canceled")
		return "", nil
	}

	log.Infow("Starting caption decompilation",
		"input", opts.Input,
		"output", outputPath,
		"language", language,
		"same_hashes", opts.Resolve.Placeholders,
	)

	data, err := os.ReadFile(opts.Input)
	if err != nil {
		return "", fmt.Errorf("failed to read caption file: %w", err)
	}

	container, err := caption.Parse(data)
	if err != nil {
		return "", fmt.Errorf("%s: %w", opts.Input, err)
	}
	logContainer(log, container)

	entries, err := container.Entries()
	if err != nil {
		return "", fmt.Errorf("%s: %w", opts.Input, err)
	}

	var index *hashindex.Index
	if opts.Sources.Empty() {
		log.Infow("No soundscript sources provided, skipping name hash matching")
	} else {
		found := candidate.NewCollector(log).Collect(opts.Sources)
		index = hashindex.Build(found.Names, log)
		log.Infow("Hashed candidate names", "hashes", index.Len())
		if log.V(2) {
			log.Debugw("Candidate hash collisions", "count", len(index.Collisions()))
		}
	}

	resolved, stats, err := resolve.New(index, opts.Resolve, log).Resolve(ctx, entries)
	if err != nil {
		return "", fmt.Errorf("failed to resolve caption names: %w", err)
	}

	fmt.Fprintf(opts.Out, "Hashes found: %d, expected: %d\n", stats.Matched, stats.Total)
	if stats.Unresolved() > 0 {
		log.Warnw("Some captions have no recovered name (not found or unused)",
			"missing", stats.Unresolved(),
			"placeholders", stats.Placeholders,
		)
	} else {
		log.Infow("All caption names found")
	}

	doc := &script.Script{
		Language: language,
		Entries:  make([]script.Entry, len(resolved)),
	}
	for i, e := range resolved {
		doc.Entries[i] = script.Entry{Key: e.Key, Text: e.Text}
	}

	if err := script.Write(doc, outputPath, opts.Script); err != nil {
		return "", fmt.Errorf("failed to write caption script: %w", err)
	}
	return outputPath, nil
}

// discoveryRoot decides where to look for the sound manifest. A missing
// directory, given or guessed, only skips discovery.
func discoveryRoot(opts decompileOptions, log *logging.Logger) string {
	if opts.NoDiscover {
		return ""
	}

	dir := opts.SoundDir
	if dir == "" {
		dir = filepath.Join(filepath.Dir(opts.Input), "..", "scripts")
	}
	if err := checkSoundDir(dir); err != nil {
		log.Warnw("Skipping "+candidate.ManifestName+" discovery", "error", err)
		return ""
	}
	return dir
}

func checkSoundDir(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("%w: sound directory: %w", candidate.ErrSourceUnavailable, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: sound directory %s is not a directory", candidate.ErrSourceUnavailable, dir)
	}
	return nil
}

var languagePattern = regexp.MustCompile(`^[a-zA-Z0-9]+_([a-zA-Z0-9]+)`)

// language from the closecaption_<language>.dat naming convention
func inferLanguage(path string) string {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	m := languagePattern.FindStringSubmatch(stem)
	if m == nil {
		return ""
	}
	return m[1]
}

func defaultOutputPath(input string, noSuffix bool) string {
	base := strings.TrimSuffix(input, filepath.Ext(input))
	if noSuffix {
		return base + ".txt"
	}
	return base + "_d.txt"
}

// asks before replacing an existing file; anything but "n" proceeds
func confirmOverwrite(path string, accept bool, in io.Reader, out io.Writer, log *logging.Logger) (bool, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return true, nil
	}

	logging.OrNop(log).Warnw("Output will overwrite an existing file", "path", path)
	if accept {
		return true, nil
	}
	if in == nil {
		return false, fmt.Errorf("output %s exists; use --accept to overwrite", path)
	}

	fmt.Fprint(out, "Do you want to overwrite the file? [Y/n]: ")
	answer, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, fmt.Errorf("failed to read answer: %w", err)
	}
	return !strings.EqualFold(strings.TrimSpace(answer), "n"), nil
}

func logContainer(log *logging.Logger, c *caption.Container) {
	h := c.Header
	log.Infow("Parsed caption file",
		"entries", h.Entries,
		"blocks", h.Blocks,
	)
	if !log.V(2) {
		return
	}
	log.Debugw("Container header",
		"magic", h.Magic,
		"version", h.Version,
		"blocks", h.Blocks,
		"block_size", fmt.Sprintf("0x%X", h.BlockSize),
		"directory_size", h.Entries,
		"data_offset", fmt.Sprintf("0x%X", h.DataOffset),
	)
	for i, e := range c.Directory {
		log.Debugw("Directory entry",
			"index", i,
			"hash", hashindex.FormatHash(e.Hash),
			"block", e.Block,
			"offset", fmt.Sprintf("0x%X", e.Offset),
			"length", e.Length,
		)
	}
}
