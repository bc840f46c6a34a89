package commands

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/bhiv/vault/internal/governance"
	"github.com/bhiv/vault/internal/inspect"
	"github.com/bhiv/vault/internal/printer"
	"github.com/bhiv/vault/internal/timespec"
	"github.com/bhiv/vault/pkg/vault"
)

var (
	lsOutputFormat string
	lsTypeGlob     string
	lsSince        string
	lsUntil        string
	lsStatus       string
	lsPrincipal    string
	lsAuthority    string
	lsQuarantined  bool
	lsIncludeCold  bool
)

var lsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List artifacts",
	Long: `List artifacts in the instance, filtered and formatted.

Quarantined artifacts are hidden by default. Revealing them requires
--quarantined plus a principal the policy grants read_quarantined; the
access is recorded as a governance decision.

Output Formats:
  default - Human-readable table
  jsonl   - Line-delimited JSON, one artifact per line

Examples:
  # Everything, newest last
  vault ls

  # AI output from the last hour, as JSONL for jq
  vault ls --type 'ai_output' --since 1h --output jsonl

  # Tombstoned history including the cold archive
  vault ls --status inactive --include-cold

  # Reveal quarantined content (data sovereign only)
  vault ls --quarantined --principal dana --authority data_sovereign`,
	RunE: runLs,
}

func init() {
	lsCmd.Flags().StringVarP(&lsOutputFormat, "output", "o", "default", "Output format: default or jsonl")
	lsCmd.Flags().StringVarP(&lsTypeGlob, "type", "t", "", "Filter by artifact type (glob pattern)")
	lsCmd.Flags().StringVar(&lsSince, "since", "", "Only artifacts newer than this (duration like '1h30m' or RFC3339)")
	lsCmd.Flags().StringVar(&lsUntil, "until", "", "Only artifacts older than this (duration like '1h30m' or RFC3339)")
	lsCmd.Flags().StringVar(&lsStatus, "status", "", "Filter by status: active or inactive")
	lsCmd.Flags().StringVar(&lsPrincipal, "principal", "", "Filter by creating principal / acting principal for --quarantined")
	lsCmd.Flags().StringVar(&lsAuthority, "authority", "", "Acting principal authority (required with --quarantined)")
	lsCmd.Flags().BoolVar(&lsQuarantined, "quarantined", false, "Reveal quarantined artifacts (policy-gated)")
	lsCmd.Flags().BoolVar(&lsIncludeCold, "include-cold", false, "Include cold-archived artifacts")
	rootCmd.AddCommand(lsCmd)
}

func runLs(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	var outputFormat inspect.OutputFormat
	switch lsOutputFormat {
	case "default":
		outputFormat = inspect.OutputFormatDefault
	case "jsonl":
		outputFormat = inspect.OutputFormatJSONL
	default:
		return printer.Error(
			"invalid output format",
			"Unknown format: "+lsOutputFormat,
			[]string{"Valid formats: default, jsonl"},
		)
	}

	sinceMs, untilMs, err := timespec.ParseRange(lsSince, lsUntil)
	if err != nil {
		return err
	}

	if lsStatus != "" {
		if err := vault.Status(lsStatus).Validate(); err != nil {
			return printer.Error("invalid status filter", err.Error(), []string{"Valid statuses: active, inactive"})
		}
	}

	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	filters := &inspect.FilterCriteria{
		SinceTimestampMs: sinceMs,
		UntilTimestampMs: untilMs,
		TypeGlob:         lsTypeGlob,
		Status:           lsStatus,
		IncludeCold:      lsIncludeCold,
	}

	if lsQuarantined {
		// Revealing quarantined content is an authority check like any
		// other; the decision is recorded.
		principal, err := parsePrincipal(lsPrincipal, lsAuthority)
		if err != nil {
			return err
		}
		if _, err := a.gov.Authorize(ctx, principal, vault.ActionReadQuarantined, ""); err != nil {
			if decision, ok := governance.DecisionFor(err); ok {
				return printer.ErrorWithContext(
					"quarantined listing denied",
					decision.Rationale,
					map[string]string{"decision": decision.ID},
					nil,
				)
			}
			return err
		}
		filters.IncludeQuarantined = true
	} else if lsPrincipal != "" {
		filters.Principal = lsPrincipal
	}

	return inspect.ListArtifacts(ctx, a.client, outputFormat, filters, os.Stdout)
}
