package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/meigma/nest/locator"
)

var buildCmd = &cobra.Command{
	Use:   "build <base> <entry>...",
	Short: "Build a nested locator",
	Long:  "Build a nested locator from a base location and one entry name per level. Local paths are turned into file: URLs with --file-url.",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runBuild,
}

func init() {
	buildCmd.Flags().Bool("file-url", false, "convert a local base path to a file: URL")
	buildCmd.Flags().String("scheme", locator.SchemeZip, "wrapper scheme (zip or jar)")
	rootCmd.AddCommand(buildCmd)
}

func runBuild(cmd *cobra.Command, args []string) error {
	fileURL, _ := cmd.Flags().GetBool("file-url") //nolint:errcheck // flag exists
	scheme, _ := cmd.Flags().GetString("scheme")  //nolint:errcheck // flag exists

	base := args[0]
	if fileURL {
		u, err := locator.FileURL(base)
		if err != nil {
			return err
		}
		base = u
	}
	b := locator.NewBuilder(base, locator.WithScheme(scheme))
	for _, e := range args[1:] {
		b.Add(e)
	}
	s, err := b.Build()
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), s)
	return nil
}
