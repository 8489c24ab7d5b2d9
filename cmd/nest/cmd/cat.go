package cmd

import (
	"io"

	"github.com/spf13/cobra"
)

var catCmd = &cobra.Command{
	Use:   "cat <locator>...",
	Short: "Write entry contents to stdout",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runCat,
}

func init() {
	rootCmd.AddCommand(catCmd)
}

func runCat(cmd *cobra.Command, args []string) (err error) {
	r, err := newResolver(cmd)
	if err != nil {
		return err
	}
	defer closeResolver(r, &err)

	for _, loc := range args {
		_, rc, err := r.Resolve(cmd.Context(), loc)
		if err != nil {
			return err
		}
		_, err = io.Copy(cmd.OutOrStdout(), rc)
		if cerr := rc.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return err
		}
	}
	return nil
}
