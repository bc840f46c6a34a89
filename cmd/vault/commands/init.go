package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bhiv/vault/internal/policy"
	"github.com/bhiv/vault/internal/printer"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate a starter vault.yml and constitutional policy",
	Long: `Write a starter configuration to the current directory:

  vault.yml  - instance configuration, with the policy hash pre-pinned
  policy.yml - the default constitutional authority table

The generated vault.yml pins the sha256 of the generated policy file, so the
pair boots as-is. Editing policy.yml afterwards requires updating the pinned
hash, which is the point: the policy cannot drift silently.`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "Overwrite existing files")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	for _, path := range []string{"vault.yml", "policy.yml"} {
		if _, err := os.Stat(path); err == nil && !initForce {
			return printer.Error(
				fmt.Sprintf("%s already exists", path),
				"Refusing to overwrite existing configuration.",
				[]string{"Use --force to overwrite"},
			)
		}
	}

	policyYAML := []byte(policy.DefaultYAML)
	if err := os.WriteFile("policy.yml", policyYAML, 0644); err != nil {
		return fmt.Errorf("failed to write policy.yml: %w", err)
	}

	configYAML := fmt.Sprintf(`version: "1.0"
instance: default

redis:
  addr: localhost:6379

policy:
  path: policy.yml
  hash: %s

escalation:
  timeout: 15m
  sweep_interval: 30s

retention:
  default_floor: 720h
`, policy.HashBytes(policyYAML))

	if err := os.WriteFile("vault.yml", []byte(configYAML), 0644); err != nil {
		return fmt.Errorf("failed to write vault.yml: %w", err)
	}

	printer.Success("Wrote vault.yml and policy.yml\n")
	printer.Printf("  Policy hash: %s\n", policy.HashBytes(policyYAML))
	printer.Printf("\nNext steps:\n")
	printer.Printf("  1. Point redis.addr at your Redis instance\n")
	printer.Printf("  2. Start the daemon:  vaultd\n")
	printer.Printf("  3. Submit something:  vault submit --type user_input --payload 'hello' --principal you --authority executor\n")
	return nil
}
