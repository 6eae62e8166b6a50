package main

import (
	"os"

	"github.com/spf13/cobra"

	"leadboard-engine/internal/config"
)

// Version is set via ldflags at build time.
var Version = "dev"

var dataDirFlag string

var rootCmd = &cobra.Command{
	Use:   "leadboard-engine",
	Short: "Local lead dashboard engine backed by a Google Sheet",
	Long: `leadboard-engine caches the leads sheet, derives scores and follow-up
metrics, and serves them to the dashboard over a local HTTP API.

Run "leadboard-engine serve" to start the API.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dataDirFlag, "data-dir", "",
		"directory holding config.yml and the database (default $"+config.EnvDataDir+" or .)")
}

func main() {
	rootCmd.Version = Version
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func resolveDataDir() string {
	if dataDirFlag != "" {
		return dataDirFlag
	}
	if v := os.Getenv(config.EnvDataDir); v != "" {
		return v
	}
	return "."
}
