package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/bhiv/vault/internal/governance"
	"github.com/bhiv/vault/internal/printer"
	"github.com/bhiv/vault/pkg/vault"
)

var (
	validateAction    string
	validatePrincipal string
	validateAuthority string
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check an authority against the policy, recording the decision",
	Long: `Run an authority check without performing the underlying operation.
The check itself goes through governance like any other: the outcome is
recorded as a decision, and an escalate outcome opens a real pending
escalation addressed to the next-higher authority.

Examples:
  vault validate --action delete --principal bot-7 --authority ai_agent
  vault validate --action purge --principal alice --authority strategic_advisor`,
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().StringVar(&validateAction, "action", "", "Action to check (required)")
	validateCmd.Flags().StringVar(&validatePrincipal, "principal", "", "Acting principal ID (required)")
	validateCmd.Flags().StringVar(&validateAuthority, "authority", "", "Acting principal authority (required)")
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	principal, err := parsePrincipal(validatePrincipal, validateAuthority)
	if err != nil {
		return err
	}

	action := vault.Action(validateAction)
	if err := action.Validate(); err != nil {
		return printer.Error(
			"invalid action",
			err.Error(),
			[]string{"Valid actions: create, version, delete, purge, read_quarantined, resolve_escalation, amend_policy"},
		)
	}

	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	if _, err := checkAuthority(ctx, a, principal, action); err != nil {
		return err
	}

	printer.Printf("\nPolicy %s (hash %s)\n", a.policy.Version(), a.policy.Hash()[:12])
	return nil
}

// checkAuthority runs the governance check and reports the recorded decision.
// Denied and escalated outcomes are valid answers here, not command failures.
func checkAuthority(ctx context.Context, a *app, principal vault.Principal, action vault.Action) (*vault.Decision, error) {
	decision, err := a.gov.Authorize(ctx, principal, action, "")
	switch {
	case err == nil:
		printer.Success("%s may perform %s (decision %s)\n", principal.Authority, action, decision.ID)

	case governance.IsEscalationRequired(err):
		printer.Warning("%s performing %s escalates to %s\n", principal.Authority, action, decision.AddressedTo)
		printer.Printf("  Decision %s is pending; resolve with:\n", decision.ID)
		printer.Printf("    vault escalations resolve %s --approve --principal <id> --authority %s\n",
			decision.ID, decision.AddressedTo)

	case governance.IsAuthorityDenied(err):
		printer.Printf("✗ %s is denied %s (decision %s)\n", principal.Authority, action, decision.ID)

	default:
		return nil, err
	}
	return decision, nil
}
