package commands

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/bhiv/vault/internal/governance"
	"github.com/bhiv/vault/internal/printer"
)

var (
	escalationsApprove   bool
	escalationsDeny      bool
	escalationsRationale string
	escalationsPrincipal string
	escalationsAuthority string
)

var escalationsCmd = &cobra.Command{
	Use:   "escalations",
	Short: "Inspect and resolve pending escalations",
	Long: `Work with escalated governance decisions: actions the policy deferred
to a higher authority. Pending escalations that receive no ruling before
their deadline time out and count as denied.`,
}

var escalationsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List pending escalations ordered by deadline",
	RunE:  runEscalationsList,
}

var escalationsResolveCmd = &cobra.Command{
	Use:   "resolve DECISION_ID",
	Short: "Approve or deny a pending escalation",
	Long: `Rule on a pending escalation. Only the addressed authority (or a
higher one) may resolve it, and never the principal that raised it.

Examples:
  vault escalations resolve 6f1c... --approve \
    --principal alice --authority executor --rationale "verified manually"
  vault escalations resolve 6f1c... --deny \
    --principal dana --authority data_sovereign`,
	Args: cobra.ExactArgs(1),
	RunE: runEscalationsResolve,
}

var escalationsCancelCmd = &cobra.Command{
	Use:   "cancel DECISION_ID",
	Short: "Withdraw a pending escalation",
	Args:  cobra.ExactArgs(1),
	RunE:  runEscalationsCancel,
}

func init() {
	escalationsResolveCmd.Flags().BoolVar(&escalationsApprove, "approve", false, "Approve the escalated action")
	escalationsResolveCmd.Flags().BoolVar(&escalationsDeny, "deny", false, "Deny the escalated action")
	escalationsResolveCmd.Flags().StringVar(&escalationsRationale, "rationale", "", "Reason recorded on the decision")
	escalationsResolveCmd.Flags().StringVar(&escalationsPrincipal, "principal", "", "Resolving principal ID (required)")
	escalationsResolveCmd.Flags().StringVar(&escalationsAuthority, "authority", "", "Resolving principal authority (required)")

	escalationsCancelCmd.Flags().StringVar(&escalationsRationale, "rationale", "", "Reason recorded on the decision")
	escalationsCancelCmd.Flags().StringVar(&escalationsPrincipal, "principal", "", "Cancelling principal ID (required)")
	escalationsCancelCmd.Flags().StringVar(&escalationsAuthority, "authority", "", "Cancelling principal authority (required)")

	escalationsCmd.AddCommand(escalationsListCmd)
	escalationsCmd.AddCommand(escalationsResolveCmd)
	escalationsCmd.AddCommand(escalationsCancelCmd)
	rootCmd.AddCommand(escalationsCmd)
}

func runEscalationsList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	pending, err := a.gov.Pending(ctx)
	if err != nil {
		return err
	}

	if len(pending) == 0 {
		printer.Info("No pending escalations\n")
		return nil
	}

	printer.Printf("Pending escalations:\n\n")
	for _, d := range pending {
		deadline := time.UnixMilli(d.DeadlineAtMs)
		printer.Printf("  %s\n", d.ID)
		printer.Printf("    action:       %s on %s\n", d.Action, shortID(d.TargetID))
		printer.Printf("    raised by:    %s (%s)\n", d.Principal.ID, d.Principal.Authority)
		printer.Printf("    addressed to: %s\n", d.AddressedTo)
		printer.Printf("    deadline:     %s\n\n", deadline.Format(time.RFC3339))
	}
	printer.Printf("%d pending\n", len(pending))
	return nil
}

func runEscalationsResolve(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	if escalationsApprove == escalationsDeny {
		return printer.Error(
			"ambiguous ruling",
			"Exactly one of --approve or --deny must be set.",
			nil,
		)
	}

	principal, err := parsePrincipal(escalationsPrincipal, escalationsAuthority)
	if err != nil {
		return err
	}

	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	decision, err := a.gov.Resolve(ctx, args[0], principal, escalationsApprove, escalationsRationale)
	if err != nil {
		if governance.IsAuthorityDenied(err) {
			return printer.Error("resolution denied", err.Error(), nil)
		}
		return err
	}

	printer.Success("Escalation resolved: %s\n", decision.Outcome)
	printer.Printf("  Decision: %s\n", decision.ID)
	return nil
}

func runEscalationsCancel(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	principal, err := parsePrincipal(escalationsPrincipal, escalationsAuthority)
	if err != nil {
		return err
	}

	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	decision, err := a.gov.Cancel(ctx, args[0], principal, escalationsRationale)
	if err != nil {
		return err
	}

	printer.Success("Escalation cancelled\n")
	printer.Printf("  Decision: %s (%s)\n", decision.ID, decision.Outcome)
	return nil
}
