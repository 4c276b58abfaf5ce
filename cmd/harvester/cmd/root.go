package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	logLevel   string
	logFormat  string
	sourcesDir string

	rootCmd = &cobra.Command{
		Use:   "harvester",
		Short: "City event harvester - scrapes venue listings into a shared event store",
		Long: `harvester extracts event listings (concerts, festivals, museum shows,
nightlife) from configured venue websites, normalizes them into canonical
event records, and upserts them into Postgres.

Per-venue behaviour lives in declarative YAML selector profiles under
configs/sources; onboarding a venue means adding a profile, not writing
code.`,
	}
)

// Execute runs the root command. Called once from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error) (default: info)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format (json, console) (default: json)")
	rootCmd.PersistentFlags().StringVar(&sourcesDir, "sources", "", "source profile directory (default: configs/sources)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(versionCmd)
}
