// Package cmd implements the nest command line.
package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/meigma/nest"
)

var rootCmd = &cobra.Command{
	Use:   "nest",
	Short: "Read entries out of nested archives",
	Long: `Read entries addressed by nested archive locators such as

  zip:zip:file:/srv/outer.zip!/lib/inner.zip!/config/app.yaml

Base archives may be local paths, file: URLs or http(s) URLs.`,
	SilenceUsage:      true,
	PersistentPreRunE: startProfiling,
	PersistentPostRun: stopProfiling,
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "config file (default: ~/.config/nest/config.yaml)")
	flags.String("log-level", "warn", "log level (debug, info, warn, error)")
	flags.Bool("no-cache", false, "open every archive afresh instead of sharing handles")
	flags.Bool("decompress", false, "decompress .gz and .zst entries")
	flags.Bool("first-entry", false, "match the first entry of each archive level")
	flags.String("spill-dir", "", "directory for caching inner archives on disk")
	flags.Int64("spill-max-bytes", 0, "size limit for the spill directory (0 = unlimited)")
	flags.StringArray("header", nil, `HTTP header for remote archives ("Key: Value"), repeatable`)

	viper.BindPFlag("log_level", flags.Lookup("log-level"))             //nolint:errcheck // flag exists
	viper.BindPFlag("no_cache", flags.Lookup("no-cache"))               //nolint:errcheck // flag exists
	viper.BindPFlag("decompress", flags.Lookup("decompress"))           //nolint:errcheck // flag exists
	viper.BindPFlag("first_entry", flags.Lookup("first-entry"))         //nolint:errcheck // flag exists
	viper.BindPFlag("spill_dir", flags.Lookup("spill-dir"))             //nolint:errcheck // flag exists
	viper.BindPFlag("spill_max_bytes", flags.Lookup("spill-max-bytes")) //nolint:errcheck // flag exists
	viper.BindPFlag("http_header", flags.Lookup("header"))              //nolint:errcheck // flag exists
}

func initConfig() {
	if cfg := rootCmd.PersistentFlags().Lookup("config").Value.String(); cfg != "" {
		viper.SetConfigFile(cfg)
	} else {
		viper.AddConfigPath(configDir())
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("NEST")
	viper.AutomaticEnv()

	viper.ReadInConfig() //nolint:errcheck // the config file is optional
}

func configDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "nest")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".config", "nest")
	}
	return ".nest"
}

func newLogger(cmd *cobra.Command) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(viper.GetString("log_level"))); err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})), nil
}

// newResolver builds a resolver from flags, environment and config file.
func newResolver(cmd *cobra.Command) (*nest.Resolver, error) {
	logger, err := newLogger(cmd)
	if err != nil {
		return nil, err
	}
	opts := []nest.Option{
		nest.WithLogger(logger),
		nest.WithCache(!viper.GetBool("no_cache")),
		nest.WithDecompression(viper.GetBool("decompress")),
		nest.WithFirstEntry(viper.GetBool("first_entry")),
	}
	if dir := viper.GetString("spill_dir"); dir != "" {
		opts = append(opts, nest.WithSpillDir(dir, viper.GetInt64("spill_max_bytes")))
	}
	for _, h := range viper.GetStringSlice("http_header") {
		key, value, ok := strings.Cut(h, ":")
		if !ok {
			return nil, fmt.Errorf("header %q: want \"Key: Value\"", h)
		}
		opts = append(opts, nest.WithHTTPHeader(strings.TrimSpace(key), strings.TrimSpace(value)))
	}
	return nest.New(opts...)
}

// closeResolver folds the resolver's close error into err.
func closeResolver(r *nest.Resolver, err *error) {
	if cerr := r.Close(); cerr != nil && *err == nil {
		*err = cerr
	}
}
