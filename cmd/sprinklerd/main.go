// Command sprinklerd runs an irrigation controller on this machine: the
// scheduling engine ticking against the system clock, a blob file for
// persistence and an in-memory hardware gateway that logs GPIO transitions.
// The config subcommands edit the same blob offline.
//
// Logging:
//   - Base logger is created here with output format and level
//   - Logger is passed to all components via dependency injection
//   - No global slog configuration (no slog.SetDefault)
package main

import (
	"fmt"
	"log/slog"
	"os"

	petname "github.com/dustinkirkland/golang-petname"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	var (
		blobPath string
		name     string
		logLevel string
	)

	rootCmd := &cobra.Command{
		Use:     "sprinklerd",
		Short:   "Irrigation controller daemon",
		Version: version,
	}
	rootCmd.PersistentFlags().StringVar(&blobPath, "blob", "sprinkler.dat", "configuration blob file")
	rootCmd.PersistentFlags().StringVar(&name, "name", "", "controller instance name (default: generated)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")

	logger := func() *slog.Logger {
		var level slog.Level
		if err := level.UnmarshalText([]byte(logLevel)); err != nil {
			level = slog.LevelInfo
		}
		instance := name
		if instance == "" {
			instance = petname.Generate(2, "-")
		}
		h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
		return slog.New(h).With("instance", instance, "run", uuid.NewString())
	}

	rootCmd.AddCommand(newServerCmd(logger, &blobPath))
	rootCmd.AddCommand(newConfigCmd(logger, &blobPath))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
