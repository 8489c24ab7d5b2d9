package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var statCmd = &cobra.Command{
	Use:   "stat <locator>",
	Short: "Show entry metadata",
	Args:  cobra.ExactArgs(1),
	RunE:  runStat,
}

func init() {
	rootCmd.AddCommand(statCmd)
}

func runStat(cmd *cobra.Command, args []string) (err error) {
	r, err := newResolver(cmd)
	if err != nil {
		return err
	}
	defer closeResolver(r, &err)

	e, err := r.Stat(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "name:       %s\n", e.Name)
	fmt.Fprintf(out, "size:       %s\n", sizeString(e.Size))
	fmt.Fprintf(out, "compressed: %s\n", sizeString(e.CompressedSize))
	fmt.Fprintf(out, "method:     %d\n", e.Method)
	if !e.Modified.IsZero() {
		fmt.Fprintf(out, "modified:   %s\n", e.Modified.UTC().Format(time.RFC3339))
	}
	return nil
}

func sizeString(n int64) string {
	if n < 0 {
		return "unknown"
	}
	return fmt.Sprintf("%d", n)
}
