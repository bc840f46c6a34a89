package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bhiv/vault/internal/governance"
	"github.com/bhiv/vault/internal/inspect"
	"github.com/bhiv/vault/internal/printer"
)

var (
	getQuarantined bool
	getPrincipal   string
	getAuthority   string
)

var getCmd = &cobra.Command{
	Use:   "get ARTIFACT_ID",
	Short: "Retrieve a single artifact",
	Long: `Retrieve an artifact by ID or unique hex prefix and print it as
pretty-printed JSON.

Quarantined artifacts are hidden from default reads. Reading one requires
--quarantined together with a principal the policy grants read_quarantined;
the access itself is recorded as a governance decision.

Examples:
  vault get 3fa9c0
  vault get 3fa9c0 --quarantined --principal dana --authority data_sovereign`,
	Args: cobra.ExactArgs(1),
	RunE: runGet,
}

func init() {
	getCmd.Flags().BoolVar(&getQuarantined, "quarantined", false, "Allow reading a quarantined artifact (policy-gated)")
	getCmd.Flags().StringVar(&getPrincipal, "principal", "", "Acting principal ID (required with --quarantined)")
	getCmd.Flags().StringVar(&getAuthority, "authority", "", "Acting principal authority (required with --quarantined)")
	rootCmd.AddCommand(getCmd)
}

func runGet(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	artifactID, err := resolveID(ctx, a, args[0])
	if err != nil {
		return err
	}

	if getQuarantined {
		principal, err := parsePrincipal(getPrincipal, getAuthority)
		if err != nil {
			return err
		}

		artifact, err := a.engine.GetQuarantined(ctx, artifactID, principal)
		if err != nil {
			if decision, ok := governance.DecisionFor(err); ok {
				return printer.ErrorWithContext(
					"quarantined read denied",
					decision.Rationale,
					map[string]string{"decision": decision.ID},
					nil,
				)
			}
			return err
		}
		return inspect.FormatSingleJSON(os.Stdout, artifact)
	}

	if err := inspect.GetArtifact(ctx, a.engine, artifactID, os.Stdout); err != nil {
		if inspect.IsNotFound(err) {
			return printer.Error(
				fmt.Sprintf("artifact '%s' not found", args[0]),
				"The artifact does not exist, or it is quarantined.",
				[]string{
					"List artifacts:\n  vault ls",
					"Quarantined content needs --quarantined and a data_sovereign principal",
				},
			)
		}
		return err
	}
	return nil
}
