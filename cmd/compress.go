package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"docauto/internal/imgop"
	"docauto/internal/logger"
	"docauto/internal/pdfdoc"
)

var compressCmd = &cobra.Command{
	Use:   "compress [pdf-file]",
	Short: "Rewrite a PDF without duplicate or unused resources",
	Example: `  # Writes outputs/Skan001_signed_cps.pdf
  docauto compress outputs/Skan001_signed.pdf`,
	Args: cobra.ExactArgs(1),
	RunE: runCompress,
}

func init() {
	rootCmd.AddCommand(compressCmd)
	compressCmd.Flags().StringP("output", "o", "", "Output path (default: <name>_cps.pdf next to the input)")
}

func runCompress(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("compress")

	in := args[0]
	out, _ := cmd.Flags().GetString("output")
	if out == "" {
		out = imgop.SuffixPath(in, "_cps")
	}

	if err := pdfdoc.Optimize(in, out); err != nil {
		return err
	}

	before, errIn := os.Stat(in)
	after, errOut := os.Stat(out)
	if errIn == nil && errOut == nil {
		log.Info().
			Int64("size_before", before.Size()).
			Int64("size_after", after.Size()).
			Str("file", out).
			Msg("Compressed PDF")
	}
	fmt.Println(out)
	return nil
}
