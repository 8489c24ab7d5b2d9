package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/meigma/nest/archive"
	"github.com/meigma/nest/internal/pathutil"
)

var lsCmd = &cobra.Command{
	Use:   "ls <archive>",
	Short: "List the entries of an archive",
	Long:  "List the entries of a base archive or of a nested archive such as zip:outer.zip!/inner.zip.",
	Args:  cobra.ExactArgs(1),
	RunE:  runLs,
}

func init() {
	lsCmd.Flags().BoolP("long", "l", false, "show sizes")
	lsCmd.Flags().StringP("dir", "d", "", "list only the immediate children of this directory")
	rootCmd.AddCommand(lsCmd)
}

func runLs(cmd *cobra.Command, args []string) (err error) {
	long, _ := cmd.Flags().GetBool("long") //nolint:errcheck // flag exists
	dir, _ := cmd.Flags().GetString("dir") //nolint:errcheck // flag exists

	r, err := newResolver(cmd)
	if err != nil {
		return err
	}
	defer closeResolver(r, &err)

	h, err := r.OpenArchive(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	defer h.Close()

	out := cmd.OutOrStdout()
	if cmd.Flags().Changed("dir") {
		return listDir(out, h, pathutil.DirPrefix(dir), long)
	}
	return archive.Walk(h, func(e *archive.Entry) bool {
		if long {
			fmt.Fprintf(out, "%10s  %s\n", sizeString(e.Size), e.Name)
		} else {
			fmt.Fprintln(out, e.Name)
		}
		return true
	})
}

// listDir prints the immediate children of prefix once each, directories
// with a trailing slash.
func listDir(out io.Writer, h *archive.Handle, prefix string, long bool) error {
	seen := make(map[string]bool)
	return archive.Walk(h, func(e *archive.Entry) bool {
		child, isDir, ok := pathutil.Child(e.Name, prefix)
		if !ok {
			return true
		}
		if isDir {
			child += "/"
		}
		if seen[child] {
			return true
		}
		seen[child] = true
		switch {
		case isDir && long:
			fmt.Fprintf(out, "%10s  %s\n", "-", child)
		case long:
			fmt.Fprintf(out, "%10s  %s\n", sizeString(e.Size), child)
		default:
			fmt.Fprintln(out, child)
		}
		return true
	})
}
