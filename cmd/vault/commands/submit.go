package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bhiv/vault/internal/governance"
	"github.com/bhiv/vault/internal/printer"
	"github.com/bhiv/vault/internal/resolver"
	"github.com/bhiv/vault/internal/truth"
	"github.com/bhiv/vault/pkg/vault"
)

var (
	submitType            string
	submitPayload         string
	submitParent          string
	submitExpectedVersion int
	submitPrincipal       string
	submitAuthority       string
	submitMetadata        []string
)

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit a payload for admission into the vault",
	Long: `Submit a candidate payload through the admission pipeline.

The payload passes the content firewall and the constitutional authority
check before it is committed. A committed artifact is immutable; its ID is
derived from its content and position in the lineage.

With --parent the submission becomes a child of an existing artifact and
--expected-version must name the version the parent chain was last seen at.
If another writer advanced the chain in the meantime, the submit fails with
a version conflict: re-read the parent and resubmit.

Examples:
  # Submit a new root artifact
  vault submit --type user_input --payload "release notes v2" \
    --principal alice --authority executor

  # Submit a child under an existing artifact
  vault submit --type ai_output --payload "summary..." \
    --parent 3fa9c0 --expected-version 1 \
    --principal summarizer-1 --authority ai_agent`,
	RunE: runSubmit,
}

func init() {
	submitCmd.Flags().StringVarP(&submitType, "type", "t", "", "Artifact type (required)")
	submitCmd.Flags().StringVarP(&submitPayload, "payload", "p", "", "Payload content (required)")
	submitCmd.Flags().StringVar(&submitParent, "parent", "", "Parent artifact ID or prefix")
	submitCmd.Flags().IntVar(&submitExpectedVersion, "expected-version", 0, "Version the parent chain was last observed at")
	submitCmd.Flags().StringVar(&submitPrincipal, "principal", "", "Acting principal ID (required)")
	submitCmd.Flags().StringVar(&submitAuthority, "authority", "", "Acting principal authority (required)")
	submitCmd.Flags().StringArrayVar(&submitMetadata, "meta", nil, "Metadata entry as key=value (repeatable)")
	rootCmd.AddCommand(submitCmd)
}

func runSubmit(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	principal, err := parsePrincipal(submitPrincipal, submitAuthority)
	if err != nil {
		return err
	}

	metadata, err := parseMetadata(submitMetadata)
	if err != nil {
		return err
	}

	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	parentID := submitParent
	if parentID != "" {
		parentID, err = resolveID(ctx, a, parentID)
		if err != nil {
			return err
		}
	}

	artifact, err := a.engine.Submit(ctx, truth.SubmitRequest{
		Type:                  vault.ArtifactType(submitType),
		Payload:               submitPayload,
		Metadata:              metadata,
		ParentID:              parentID,
		ExpectedParentVersion: submitExpectedVersion,
		Principal:             principal,
	})
	if err != nil {
		return reportSubmitError(artifact, err)
	}

	printer.Success("Artifact committed\n")
	printer.Printf("  ID:      %s\n", artifact.ID)
	printer.Printf("  Type:    %s\n", artifact.Type)
	printer.Printf("  Version: %d\n", artifact.Version)
	if artifact.FirewallVerdict == vault.VerdictSanitized {
		printer.Warning("Payload was sanitized; redactions recorded in metadata\n")
	}
	return nil
}

// reportSubmitError translates the engine's error taxonomy into operator
// output. Shared with the version command.
func reportSubmitError(artifact *vault.Artifact, err error) error {
	if decision, ok := governance.DecisionFor(err); ok {
		if governance.IsEscalationRequired(err) {
			printer.Warning("Escalation required\n")
			printer.Printf("  Decision:     %s\n", decision.ID)
			printer.Printf("  Addressed to: %s\n", decision.AddressedTo)
			printer.Printf("\nA %s must rule on it:\n  vault escalations resolve %s --approve ...\n",
				decision.AddressedTo, decision.ID)
			return nil
		}
		return printer.ErrorWithContext(
			"authority denied",
			decision.Rationale,
			map[string]string{"decision": decision.ID},
			nil,
		)
	}

	if truth.IsFirewallRejected(err) {
		return printer.Error(
			"submission rejected by firewall",
			err.Error(),
			[]string{"The rejection has been recorded; the payload was not stored."},
		)
	}

	if truth.IsFirewallQuarantined(err) {
		printer.Warning("Submission quarantined\n")
		if artifact != nil {
			printer.Printf("  ID: %s\n", artifact.ID)
		}
		printer.Printf("\nThe artifact is stored but hidden from default reads.\n")
		return nil
	}

	if vault.IsVersionConflict(err) {
		return printer.Error(
			"version conflict",
			err.Error(),
			[]string{"Re-read the parent with `vault get` and resubmit with the current --expected-version."},
		)
	}

	return err
}

func parseMetadata(entries []string) (map[string]string, error) {
	if len(entries) == 0 {
		return nil, nil
	}
	metadata := make(map[string]string, len(entries))
	for _, entry := range entries {
		key, value, found := strings.Cut(entry, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("invalid --meta entry %q (expected key=value)", entry)
		}
		metadata[key] = value
	}
	return metadata, nil
}

// resolveID expands a short hex prefix into a full artifact ID.
func resolveID(ctx context.Context, a *app, shortID string) (string, error) {
	id, err := resolver.ResolveArtifactID(ctx, a.client, shortID)
	if err != nil {
		if ambiguous, ok := err.(*resolver.AmbiguousError); ok {
			return "", fmt.Errorf("%s", resolver.FormatAmbiguousError(ambiguous))
		}
		return "", err
	}
	return id, nil
}
