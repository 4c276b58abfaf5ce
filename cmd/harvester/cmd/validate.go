package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/discovr-events/harvester/internal/scraper"
)

var validateCmd = &cobra.Command{
	Use:   "validate [dir]",
	Short: "Validate source profiles without running anything",
	Long: `Load every YAML profile in the directory and report validation
problems: missing fields, malformed URLs, venue/city disagreements. A
profile whose venue city does not match its declared city would reject
every event it scrapes, so it is rejected here instead.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := sourcesDir
		if len(args) == 1 {
			dir = args[0]
		}
		if dir == "" {
			dir = "configs/sources"
		}

		configs, err := scraper.LoadSourceConfigs(dir)
		if err != nil {
			return err
		}
		fmt.Printf("%d source profiles valid\n", len(configs))
		return nil
	},
}
