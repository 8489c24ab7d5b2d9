package cmd

import (
	"fmt"
	"os"
	"runtime"
	"runtime/pprof"
	"runtime/trace"

	"github.com/spf13/cobra"
)

var profiles struct {
	cpu   *os.File
	trace *os.File
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("cpu-profile", "", "write a CPU profile to file")
	flags.String("mem-profile", "", "write a heap profile to file on exit")
	flags.String("trace", "", "write an execution trace to file")
}

func startProfiling(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()
	if path, _ := flags.GetString("cpu-profile"); path != "" { //nolint:errcheck // flag exists
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create cpu profile: %w", err)
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			f.Close()
			return fmt.Errorf("start cpu profile: %w", err)
		}
		profiles.cpu = f
	}
	if path, _ := flags.GetString("trace"); path != "" { //nolint:errcheck // flag exists
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create trace: %w", err)
		}
		if err := trace.Start(f); err != nil {
			f.Close()
			return fmt.Errorf("start trace: %w", err)
		}
		profiles.trace = f
	}
	return nil
}

func stopProfiling(cmd *cobra.Command, _ []string) {
	if profiles.cpu != nil {
		pprof.StopCPUProfile()
		profiles.cpu.Close()
		profiles.cpu = nil
	}
	if profiles.trace != nil {
		trace.Stop()
		profiles.trace.Close()
		profiles.trace = nil
	}
	path, _ := cmd.Flags().GetString("mem-profile") //nolint:errcheck // flag exists
	if path == "" {
		return
	}
	f, err := os.Create(path)
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "create mem profile: %v\n", err)
		return
	}
	defer f.Close()
	runtime.GC()
	if err := pprof.WriteHeapProfile(f); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "write mem profile: %v\n", err)
	}
}
