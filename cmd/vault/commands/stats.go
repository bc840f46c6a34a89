package commands

import (
	"context"
	"encoding/json"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/bhiv/vault/internal/printer"
)

var statsJSON bool

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize the instance",
	Long: `Print artifact counts by type, status and authority, the number of
pending escalations, and the constitutional policy in force.

Examples:
  vault stats
  vault stats --json | jq .by_type`,
	RunE: runStats,
}

func init() {
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "Output as JSON")
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	stats, err := a.engine.Stats(ctx)
	if err != nil {
		return err
	}

	if statsJSON {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(stats)
	}

	printer.Printf("Instance '%s'\n\n", a.client.InstanceName())
	printer.Printf("Artifacts: %d total, %d archived\n", stats.Total, stats.Archived)

	printSection := func(title string, counts map[string]int) {
		if len(counts) == 0 {
			return
		}
		printer.Printf("\n%s:\n", title)
		keys := make([]string, 0, len(counts))
		for k := range counts {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			printer.Printf("  %-20s %d\n", k, counts[k])
		}
	}

	printSection("By type", stats.ByType)
	printSection("By status", stats.ByStatus)
	printSection("By authority", stats.ByAuthority)
	printSection("By firewall verdict", stats.ByVerdict)

	printer.Printf("\nPending escalations: %d\n", stats.Pending)
	printer.Printf("Policy: %s (hash %s)\n", stats.PolicyVersion, stats.PolicyHash[:12])
	return nil
}
