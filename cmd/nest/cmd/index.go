package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/meigma/nest/index"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Build and query archive indexes (META-INF/INDEX.LIST)",
}

var indexBuildCmd = &cobra.Command{
	Use:   "build <archive>...",
	Short: "Build an index over the entries of the given archives",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runIndexBuild,
}

var indexShowCmd = &cobra.Command{
	Use:   "show <archive>",
	Short: "Print the index stored in an archive",
	Args:  cobra.ExactArgs(1),
	RunE:  runIndexShow,
}

var indexGetCmd = &cobra.Command{
	Use:   "get <archive> <name>",
	Short: "List the archives an index maps a name to",
	Args:  cobra.ExactArgs(2),
	RunE:  runIndexGet,
}

var indexMergeCmd = &cobra.Command{
	Use:   "merge <archive> <other>",
	Short: "Merge the index of other into the index of archive",
	Args:  cobra.ExactArgs(2),
	RunE:  runIndexMerge,
}

func init() {
	indexBuildCmd.Flags().StringP("output", "o", "", "write the index to a file instead of stdout")
	indexGetCmd.Flags().Bool("exact", false, "look up the key without falling back to parent directories")
	indexMergeCmd.Flags().String("prefix", "", "prefix for the archive names of other")
	indexMergeCmd.Flags().StringP("output", "o", "", "write the index to a file instead of stdout")

	indexCmd.AddCommand(indexBuildCmd, indexShowCmd, indexGetCmd, indexMergeCmd)
	rootCmd.AddCommand(indexCmd)
}

func runIndexBuild(cmd *cobra.Command, args []string) (err error) {
	r, err := newResolver(cmd)
	if err != nil {
		return err
	}
	defer closeResolver(r, &err)

	idx, err := r.BuildIndex(cmd.Context(), args)
	if err != nil {
		return err
	}
	return writeIndex(cmd, idx)
}

func runIndexShow(cmd *cobra.Command, args []string) (err error) {
	r, err := newResolver(cmd)
	if err != nil {
		return err
	}
	defer closeResolver(r, &err)

	idx, err := r.LoadIndex(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	_, err = idx.WriteTo(cmd.OutOrStdout())
	return err
}

func runIndexGet(cmd *cobra.Command, args []string) (err error) {
	exact, _ := cmd.Flags().GetBool("exact") //nolint:errcheck // flag exists

	r, err := newResolver(cmd)
	if err != nil {
		return err
	}
	defer closeResolver(r, &err)

	idx, err := r.LoadIndex(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	var (
		archives []string
		ok       bool
	)
	if exact {
		archives, ok = idx.GetExact(args[1])
	} else {
		archives, ok = idx.Get(args[1])
	}
	if !ok {
		return fmt.Errorf("%s: not in index", args[1])
	}
	for _, a := range archives {
		fmt.Fprintln(cmd.OutOrStdout(), a)
	}
	return nil
}

func runIndexMerge(cmd *cobra.Command, args []string) (err error) {
	prefix, _ := cmd.Flags().GetString("prefix") //nolint:errcheck // flag exists

	r, err := newResolver(cmd)
	if err != nil {
		return err
	}
	defer closeResolver(r, &err)

	dst, err := r.LoadIndex(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	src, err := r.LoadIndex(cmd.Context(), args[1])
	if err != nil {
		return err
	}
	src.Merge(dst, prefix)
	return writeIndex(cmd, dst)
}

func writeIndex(cmd *cobra.Command, idx *index.Index) (err error) {
	path, _ := cmd.Flags().GetString("output") //nolint:errcheck // flag exists
	var w io.Writer = cmd.OutOrStdout()
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer func() {
			err = errors.Join(err, f.Close())
		}()
		w = f
	}
	_, err = idx.WriteTo(w)
	return err
}
