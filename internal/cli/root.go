package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/mgpai22/vccdec/internal/logging"
	"github.com/spf13/cobra"
)

var (
	verbosity int
	logger    *logging.Logger
)

var rootCmd = &cobra.Command{
	Use:   "vccdec",
	Short: "Closed caption decompiler for VCCD caption files",
	Long: `vccdec turns compiled closed caption files (closecaption_*.dat) back
into editable caption scripts.

Compiled captions only store a CRC-32 of each token name. vccdec recovers
the names by hashing candidates from soundscripts, sound manifests and name
lists; tokens without a match keep their hash or get a placeholder name
that compiles to the same hash.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbosity < 0 || verbosity > logging.MaxVerbosity {
			return fmt.Errorf("verbosity must be within [0, %d], got %d", logging.MaxVerbosity, verbosity)
		}
		logger = logging.NewLogger(verbosity)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().
		CountVarP(&verbosity, "verbose", "v", "Increase output verbosity (-v, -vv, or --verbose=N up to 2)")
	rootCmd.PersistentFlags().StringP("output", "o", "", "Output file path")
	rootCmd.PersistentFlags().
		BoolP("accept", "a", false, "Automatically accept prompts (output overwrite confirmation)")
}

// promptInput is where overwrite answers are read from. Piped or redirected
// stdin cannot answer a prompt, so it is reported as absent and prompts fail
// asking for --accept.
func promptInput(cmd *cobra.Command) io.Reader {
	in := cmd.InOrStdin()
	if f, ok := in.(*os.File); ok && !isTerminal(f) {
		return nil
	}
	return in
}

func isTerminal(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}
