package vault

import "fmt"

// DecisionOutcome is the lifecycle state of a governance decision.
// Escalated decisions are pending and move to exactly one of approved,
// denied or timed_out. Timed-out decisions are treated as denials by the
// requesting operation (fail-closed).
type DecisionOutcome string

const (
	OutcomeApproved  DecisionOutcome = "approved"
	OutcomeDenied    DecisionOutcome = "denied"
	OutcomeEscalated DecisionOutcome = "escalated"
	OutcomeTimedOut  DecisionOutcome = "timed_out"
)

// Decision is the audit record of an authority check. Every authority
// check, including denials and timeouts, produces one; the record is also
// committed back into the vault as a SYSTEM_LOG artifact so governance
// history is self-auditing.
type Decision struct {
	ID           string          `json:"id"` // UUID
	Action       Action          `json:"action"`
	Principal    Principal       `json:"principal"`
	TargetID     string          `json:"target_id,omitempty"` // Artifact or lineage the action addresses
	Outcome      DecisionOutcome `json:"outcome"`
	Rationale    string          `json:"rationale,omitempty"`
	PolicyHash   string          `json:"policy_hash"`            // Constitutional hash the decision was evaluated under
	AddressedTo  Authority       `json:"addressed_to,omitempty"` // Authority an escalation awaits
	CreatedAtMs  int64           `json:"created_at_ms"`
	DeadlineAtMs int64           `json:"deadline_at_ms,omitempty"` // Escalation timeout deadline
	ResolvedBy   string          `json:"resolved_by,omitempty"`    // Principal ID that resolved an escalation
	ResolvedAtMs int64           `json:"resolved_at_ms,omitempty"`
}

// Validate checks if the DecisionOutcome is a valid enum value.
func (o DecisionOutcome) Validate() error {
	switch o {
	case OutcomeApproved, OutcomeDenied, OutcomeEscalated, OutcomeTimedOut:
		return nil
	default:
		return fmt.Errorf("unknown decision outcome: %q", o)
	}
}

// Validate checks if the Decision has valid field values.
func (d *Decision) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("decision ID cannot be empty")
	}

	if err := d.Action.Validate(); err != nil {
		return fmt.Errorf("invalid action: %w", err)
	}

	if d.Principal.ID == "" {
		return fmt.Errorf("decision principal cannot be empty")
	}

	if err := d.Principal.Authority.Validate(); err != nil {
		return fmt.Errorf("invalid principal authority: %w", err)
	}

	if err := d.Outcome.Validate(); err != nil {
		return fmt.Errorf("invalid outcome: %w", err)
	}

	if d.PolicyHash == "" {
		return fmt.Errorf("decision must record the policy hash it was evaluated under")
	}

	if d.Outcome == OutcomeEscalated {
		if err := d.AddressedTo.Validate(); err != nil {
			return fmt.Errorf("escalated decision must be addressed to an authority: %w", err)
		}
		if d.DeadlineAtMs == 0 {
			return fmt.Errorf("escalated decision must carry a timeout deadline")
		}
	}

	return nil
}

// Pending reports whether the decision still awaits resolution.
func (d *Decision) Pending() bool {
	return d.Outcome == OutcomeEscalated
}
