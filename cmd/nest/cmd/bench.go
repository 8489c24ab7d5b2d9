package cmd

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/sourcegraph/conc/pool"
	"github.com/spf13/cobra"
)

var benchCmd = &cobra.Command{
	Use:   "bench <locator>...",
	Short: "Resolve locators repeatedly and report throughput",
	Long: `Resolve and read each locator repeatedly, reporting operations and bytes
per second. Combine with --cpu-profile, --mem-profile or --trace to profile
the resolver.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runBench,
}

func init() {
	flags := benchCmd.Flags()
	flags.IntP("iterations", "n", 100, "resolutions per locator")
	flags.IntP("concurrency", "c", 4, "concurrent readers")
	flags.Duration("duration", 0, "stop after this long (0 = run all iterations)")
	rootCmd.AddCommand(benchCmd)
}

func runBench(cmd *cobra.Command, args []string) (err error) {
	flags := cmd.Flags()
	iterations, _ := flags.GetInt("iterations")   //nolint:errcheck // flag exists
	concurrency, _ := flags.GetInt("concurrency") //nolint:errcheck // flag exists
	duration, _ := flags.GetDuration("duration")  //nolint:errcheck // flag exists

	r, err := newResolver(cmd)
	if err != nil {
		return err
	}
	defer closeResolver(r, &err)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, duration)
		defer cancel()
	}

	var ops, bytes atomic.Int64
	p := pool.New().WithErrors().WithContext(ctx).WithCancelOnError().WithMaxGoroutines(max(concurrency, 1))
	start := time.Now()
	for range iterations {
		for _, loc := range args {
			p.Go(func(ctx context.Context) error {
				if ctx.Err() != nil {
					return nil
				}
				_, rc, err := r.Resolve(ctx, loc)
				if err != nil {
					return err
				}
				defer rc.Close()
				n, err := io.Copy(io.Discard, rc)
				if err != nil {
					return err
				}
				ops.Add(1)
				bytes.Add(n)
				return nil
			})
		}
	}
	if err := p.Wait(); err != nil {
		return err
	}
	elapsed := time.Since(start)

	out := cmd.OutOrStdout()
	secs := elapsed.Seconds()
	fmt.Fprintf(out, "ops:      %d in %s\n", ops.Load(), elapsed.Round(time.Millisecond))
	if secs > 0 {
		fmt.Fprintf(out, "ops/s:    %.1f\n", float64(ops.Load())/secs)
		fmt.Fprintf(out, "MiB/s:    %.2f\n", float64(bytes.Load())/secs/(1<<20))
	}
	fmt.Fprintf(out, "cached:   %d archives\n", r.Cache().Len())
	return nil
}
