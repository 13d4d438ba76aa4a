// Command orchestrator is the analysis pipeline's cobra-based CLI,
// replacing the teacher's separate flag.FlagSet binaries with one
// entrypoint carrying worker, project, and report subcommands.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/iasik/orchestrator/internal/config"
)

var (
	configPath string
	debug      bool
)

func main() {
	root := &cobra.Command{
		Use:   "orchestrator",
		Short: "Batch code-analysis orchestrator",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "configs/config.yaml", "path to config.yaml")
	root.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	root.AddCommand(newWorkerCmd())
	root.AddCommand(newProjectCmd())
	root.AddCommand(newReportCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if debug || os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}

func loadConfig(logger *slog.Logger) (*config.Manager, *config.Config) {
	mgr := config.NewManager(configPath)
	if err := mgr.Load(); err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	return mgr, mgr.Get()
}
