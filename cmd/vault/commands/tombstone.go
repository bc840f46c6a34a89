package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/bhiv/vault/internal/governance"
	"github.com/bhiv/vault/internal/printer"
	"github.com/bhiv/vault/internal/tombstone"
)

var (
	tombstonePrincipal string
	tombstoneAuthority string
	tombstoneReason    string
)

var tombstoneCmd = &cobra.Command{
	Use:   "tombstone ARTIFACT_ID",
	Short: "Mark an artifact deleted without erasing it",
	Long: `Mark an artifact deleted. Nothing is erased: a TOMBSTONE child is
appended to the artifact and its status flips to inactive. The payload stays
readable for provenance.

Deletion is authority-gated. AI agents cannot delete directly; their request
becomes a pending escalation an Executor (or higher) must approve.

Examples:
  vault tombstone 3fa9c0 --principal alice --authority executor --reason "superseded"`,
	Args: cobra.ExactArgs(1),
	RunE: runTombstone,
}

func init() {
	tombstoneCmd.Flags().StringVar(&tombstonePrincipal, "principal", "", "Acting principal ID (required)")
	tombstoneCmd.Flags().StringVar(&tombstoneAuthority, "authority", "", "Acting principal authority (required)")
	tombstoneCmd.Flags().StringVar(&tombstoneReason, "reason", "", "Reason recorded on the tombstone")
	rootCmd.AddCommand(tombstoneCmd)
}

func runTombstone(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	principal, err := parsePrincipal(tombstonePrincipal, tombstoneAuthority)
	if err != nil {
		return err
	}

	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	artifactID, err := resolveID(ctx, a, args[0])
	if err != nil {
		return err
	}

	marker, err := a.tombstones.Tombstone(ctx, artifactID, principal, tombstoneReason)
	if err != nil {
		if tombstone.IsAlreadyTombstoned(err) {
			printer.Info("Artifact %s is already tombstoned; nothing to do\n", shortID(artifactID))
			return nil
		}
		if decision, ok := governance.DecisionFor(err); ok {
			if governance.IsEscalationRequired(err) {
				printer.Warning("Deletion requires approval\n")
				printer.Printf("  Decision:     %s\n", decision.ID)
				printer.Printf("  Addressed to: %s\n", decision.AddressedTo)
				return nil
			}
			return printer.ErrorWithContext(
				"deletion denied",
				decision.Rationale,
				map[string]string{"decision": decision.ID},
				nil,
			)
		}
		return err
	}

	printer.Success("Artifact tombstoned\n")
	printer.Printf("  Target:    %s\n", artifactID)
	printer.Printf("  Tombstone: %s\n", marker.ID)
	return nil
}
