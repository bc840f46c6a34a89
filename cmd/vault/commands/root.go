package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	version string
	commit  string
	date    string

	// Global flags
	configPath   string
	instanceName string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "vault",
	Short: "Vault - Immutable, provenance-tracked artifact store",
	Long: `Vault is an immutable artifact store with authority-gated admission.

Every payload passes a content firewall and a constitutional authority check
before it is committed. Committed artifacts never change: corrections are new
versions, deletions are tombstones, and governance decisions are themselves
stored as artifacts, so the full history of what was written, by whom, and
under which policy is always reconstructible.`,
	Version: version,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "vault.yml", "Path to the vault configuration file")
	rootCmd.PersistentFlags().StringVarP(&instanceName, "name", "n", "", "Instance name (overrides the configured one)")
}
