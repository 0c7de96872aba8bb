package cli

import (
	"fmt"

	"github.com/mgpai22/vccdec/internal/hashindex"
	"github.com/spf13/cobra"
)

var hashCmd = &cobra.Command{
	Use:   "hash [name...]",
	Short: "Print the caption hash of token names",
	Long: `Print the CRC-32 the caption compiler stores for each token name.

Names are upper-cased before hashing, so the result is case-insensitive.

Examples:
  vccdec hash NPC_Citizen.Hello
  vccdec hash --decimal HL2_Barney_Intro01 HL2_Barney_Intro02`,
	Args: cobra.MinimumNArgs(1),
	RunE: runHash,
}

func init() {
	rootCmd.AddCommand(hashCmd)

	hashCmd.Flags().Bool("decimal", false, "Print hashes as zero padded decimal numbers")
}

func runHash(cmd *cobra.Command, args []string) error {
	decimal, _ := cmd.Flags().GetBool("decimal")

	for _, name := range args {
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", formatTokenHash(hashindex.Hash(name), decimal), name)
	}
	return nil
}

func formatTokenHash(h uint32, decimal bool) string {
	if decimal {
		return fmt.Sprintf("%010d", h)
	}
	return hashindex.FormatHash(h)
}
