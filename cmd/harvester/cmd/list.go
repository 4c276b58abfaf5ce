package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/discovr-events/harvester/internal/scraper"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured source profiles",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := sourcesDir
		if dir == "" {
			dir = "configs/sources"
		}

		configs, err := scraper.LoadSourceConfigs(dir)
		if err != nil {
			return err
		}
		if len(configs) == 0 {
			fmt.Printf("No source profiles found in %s\n", dir)
			return nil
		}

		fmt.Printf("%-28s %-12s %-4s %-7s %s\n", "NAME", "CITY", "TIER", "ENABLED", "URL")
		for _, cfg := range configs {
			u := cfg.URL
			if len(u) > 48 {
				u = u[:45] + "..."
			}
			fmt.Printf("%-28s %-12s %-4d %-7t %s\n", cfg.Name, cfg.City, cfg.Tier, cfg.Enabled, u)
		}
		return nil
	},
}
