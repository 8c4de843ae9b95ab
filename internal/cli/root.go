// Package cli implements the sociomind commands.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/oceanbase/sociomind-go/pkg/core"
)

var (
	configPath string
	envFile    string
	formatFlag string
	verbose    bool
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "sociomind",
	Short: "Two-character AI societies",
	Long: "Runs two LLM-driven characters through a sequence of plots. " +
		"Providers and the snapshot store are configured from the environment (.env); " +
		"the characters and the world come from a YAML simulation profile.",
	SilenceUsage: true,
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Simulation profile (default: $SOCIOMIND_CONFIG)")
	RootCmd.PersistentFlags().StringVar(&envFile, "env", "", "Environment file (default: nearest .env)")
	RootCmd.PersistentFlags().StringVarP(&formatFlag, "format", "f", "text", "Output format: json or text")
	RootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log oracle prompts and responses")
}

// loadConfig reads the provider settings and the simulation profile.
func loadConfig() (*core.Config, error) {
	var (
		cfg *core.Config
		err error
	)
	if envFile != "" {
		cfg, err = core.LoadConfigFromEnvFile(envFile)
	} else {
		cfg, err = core.LoadConfigFromEnv()
	}
	if err != nil {
		return nil, err
	}

	if configPath != "" {
		sim, err := core.LoadSimulationConfig(configPath)
		if err != nil {
			return nil, err
		}
		cfg.Simulation = sim
	}
	if cfg.Simulation == nil {
		return nil, fmt.Errorf("%w: no simulation profile, pass --config or set SOCIOMIND_CONFIG", core.ErrInvalidConfig)
	}
	if verbose {
		cfg.Simulation.Verbose = true
	}
	return cfg, nil
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
