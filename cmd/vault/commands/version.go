package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/bhiv/vault/internal/printer"
)

var (
	versionPayload         string
	versionExpectedVersion int
	versionPrincipal       string
	versionAuthority       string
)

var versionCmd = &cobra.Command{
	Use:   "version PARENT_ID",
	Short: "Commit a new version of an existing artifact",
	Long: `Commit a corrected or updated version of an existing artifact.

The original is never modified: the new payload becomes a child artifact of
the same type at version N+1. --expected-version is the version you last
observed on the chain; if a concurrent writer advanced it, the command fails
with a version conflict and you must re-read and retry.

Examples:
  vault version 3fa9c0 --payload "corrected text" --expected-version 1 \
    --principal alice --authority executor`,
	Args: cobra.ExactArgs(1),
	RunE: runVersion,
}

func init() {
	versionCmd.Flags().StringVarP(&versionPayload, "payload", "p", "", "New payload content (required)")
	versionCmd.Flags().IntVar(&versionExpectedVersion, "expected-version", 0, "Version the chain was last observed at (required)")
	versionCmd.Flags().StringVar(&versionPrincipal, "principal", "", "Acting principal ID (required)")
	versionCmd.Flags().StringVar(&versionAuthority, "authority", "", "Acting principal authority (required)")
	rootCmd.AddCommand(versionCmd)
}

func runVersion(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	principal, err := parsePrincipal(versionPrincipal, versionAuthority)
	if err != nil {
		return err
	}

	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	parentID, err := resolveID(ctx, a, args[0])
	if err != nil {
		return err
	}

	artifact, err := a.engine.CreateVersion(ctx, parentID, versionPayload, versionExpectedVersion, principal)
	if err != nil {
		return reportSubmitError(artifact, err)
	}

	printer.Success("Version committed\n")
	printer.Printf("  ID:      %s\n", artifact.ID)
	printer.Printf("  Parent:  %s\n", artifact.ParentID)
	printer.Printf("  Version: %d\n", artifact.Version)
	return nil
}
