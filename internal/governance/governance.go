// Package governance enforces the constitutional authority table over every
// mutating operation. Each check produces a durable decision record, and
// every decision is additionally committed back into the vault as a
// SYSTEM_LOG artifact, so governance history is subject to the same
// immutability guarantees as the data it governs.
package governance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/bhiv/vault/internal/policy"
	"github.com/bhiv/vault/pkg/vault"
)

// DefaultEscalationTimeout is how long a pending escalation waits for a
// ruling before the sweeper fails it closed.
const DefaultEscalationTimeout = 15 * time.Minute

// auditPrincipal signs the SYSTEM_LOG records the validator commits about
// its own decisions.
var auditPrincipal = vault.Principal{ID: "governance", Authority: vault.AuthorityDataSovereign}

// Validator evaluates actions against the constitutional policy and drives
// the escalation lifecycle. It is safe for concurrent use.
type Validator struct {
	client  *vault.Client
	policy  *policy.Policy
	timeout time.Duration
	now     func() time.Time
}

// Option configures a Validator.
type Option func(*Validator)

// WithEscalationTimeout overrides the pending-escalation deadline.
func WithEscalationTimeout(d time.Duration) Option {
	return func(v *Validator) { v.timeout = d }
}

// WithClock overrides the time source. Tests use this to trigger timeouts
// without sleeping.
func WithClock(now func() time.Time) Option {
	return func(v *Validator) { v.now = now }
}

// NewValidator creates a validator bound to a vault client and a loaded,
// hash-verified policy.
func NewValidator(client *vault.Client, pol *policy.Policy, opts ...Option) *Validator {
	v := &Validator{
		client:  client,
		policy:  pol,
		timeout: DefaultEscalationTimeout,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Timeout returns the configured escalation deadline.
func (v *Validator) Timeout() time.Duration {
	return v.timeout
}

// Authorize checks whether principal may perform action on targetID and
// records the decision. The policy hash is re-verified first: a tampered
// policy fails every request rather than silently serving a modified table.
//
// The returned decision is always non-nil on a policy hit:
//   - allow: (decision, nil)
//   - deny: (decision, *AuthorityDeniedError)
//   - escalate: (decision, *EscalationRequiredError), decision pending and
//     addressed to the next-higher authority with a timeout deadline.
func (v *Validator) Authorize(ctx context.Context, principal vault.Principal, action vault.Action, targetID string) (*vault.Decision, error) {
	if err := v.policy.Verify(); err != nil {
		return nil, fmt.Errorf("refusing to evaluate %s: %w", action, err)
	}

	nowMs := v.now().UnixMilli()
	decision := &vault.Decision{
		ID:          uuid.New().String(),
		Action:      action,
		Principal:   principal,
		TargetID:    targetID,
		PolicyHash:  v.policy.Hash(),
		CreatedAtMs: nowMs,
	}

	switch v.policy.Lookup(principal.Authority, action) {
	case policy.OutcomeAllow:
		decision.Outcome = vault.OutcomeApproved
		decision.Rationale = fmt.Sprintf("policy %s permits %s for %s", v.policy.Version(), action, principal.Authority)
		if err := v.record(ctx, decision); err != nil {
			return nil, err
		}
		return decision, nil

	case policy.OutcomeEscalate:
		higher, ok := principal.Authority.NextHigher()
		if !ok {
			// Lookup already maps this to deny; kept as a guard.
			break
		}
		decision.Outcome = vault.OutcomeEscalated
		decision.AddressedTo = higher
		decision.DeadlineAtMs = nowMs + v.timeout.Milliseconds()
		decision.Rationale = fmt.Sprintf("%s requires a ruling by %s", action, higher)
		if err := v.record(ctx, decision); err != nil {
			return nil, err
		}
		return decision, &EscalationRequiredError{Decision: decision}
	}

	decision.Outcome = vault.OutcomeDenied
	decision.Rationale = fmt.Sprintf("policy %s denies %s for %s", v.policy.Version(), action, principal.Authority)
	if err := v.record(ctx, decision); err != nil {
		return nil, err
	}
	return decision, &AuthorityDeniedError{Decision: decision}
}

// Resolve rules on a pending escalation. Only a principal holding the
// addressed authority (or higher) may resolve it, and never the principal
// that raised it: an authority cannot grant itself rights the table
// withholds. A failed resolution attempt is itself recorded as a denied
// decision.
func (v *Validator) Resolve(ctx context.Context, decisionID string, resolver vault.Principal, approve bool, rationale string) (*vault.Decision, error) {
	if err := v.policy.Verify(); err != nil {
		return nil, fmt.Errorf("refusing to resolve escalation: %w", err)
	}

	decision, err := v.client.GetDecision(ctx, decisionID)
	if errors.Is(err, redis.Nil) {
		return nil, &vault.NotFoundError{ID: decisionID}
	}
	if err != nil {
		return nil, err
	}

	if !decision.Pending() {
		return decision, fmt.Errorf("decision %s is already %s", decision.ID, decision.Outcome)
	}

	allowed := v.policy.Lookup(resolver.Authority, vault.ActionResolveEscalation) == policy.OutcomeAllow &&
		resolver.Authority.AtLeast(decision.AddressedTo) &&
		resolver.ID != decision.Principal.ID

	if !allowed {
		nowMs := v.now().UnixMilli()
		denial := &vault.Decision{
			ID:          uuid.New().String(),
			Action:      vault.ActionResolveEscalation,
			Principal:   resolver,
			TargetID:    decision.ID,
			Outcome:     vault.OutcomeDenied,
			Rationale:   fmt.Sprintf("%s may not resolve an escalation addressed to %s", resolver.Authority, decision.AddressedTo),
			PolicyHash:  v.policy.Hash(),
			CreatedAtMs: nowMs,
		}
		if resolver.ID == decision.Principal.ID {
			denial.Rationale = "a principal cannot resolve its own escalation"
		}
		if err := v.record(ctx, denial); err != nil {
			return nil, err
		}
		return denial, &AuthorityDeniedError{Decision: denial}
	}

	nowMs := v.now().UnixMilli()
	if approve {
		decision.Outcome = vault.OutcomeApproved
	} else {
		decision.Outcome = vault.OutcomeDenied
	}
	if rationale != "" {
		decision.Rationale = rationale
	}
	decision.ResolvedBy = resolver.ID
	decision.ResolvedAtMs = nowMs

	if err := v.record(ctx, decision); err != nil {
		return nil, err
	}
	return decision, nil
}

// Cancel withdraws a pending escalation, recording it as denied. Permitted
// for the principal that raised it and for anyone who could have resolved it.
func (v *Validator) Cancel(ctx context.Context, decisionID string, principal vault.Principal, rationale string) (*vault.Decision, error) {
	decision, err := v.client.GetDecision(ctx, decisionID)
	if errors.Is(err, redis.Nil) {
		return nil, &vault.NotFoundError{ID: decisionID}
	}
	if err != nil {
		return nil, err
	}

	if !decision.Pending() {
		return decision, fmt.Errorf("decision %s is already %s", decision.ID, decision.Outcome)
	}

	if principal.ID != decision.Principal.ID && !principal.Authority.AtLeast(decision.AddressedTo) {
		return decision, fmt.Errorf("%s may not cancel decision %s", principal.ID, decision.ID)
	}

	decision.Outcome = vault.OutcomeDenied
	decision.Rationale = rationale
	if rationale == "" {
		decision.Rationale = fmt.Sprintf("escalation cancelled by %s", principal.ID)
	}
	decision.ResolvedBy = principal.ID
	decision.ResolvedAtMs = v.now().UnixMilli()

	if err := v.record(ctx, decision); err != nil {
		return nil, err
	}
	return decision, nil
}

// SweepTimeouts fails every pending escalation whose deadline has passed.
// Timed-out decisions are terminal and treated as denials by the operation
// that raised them. Returns the number of decisions timed out.
func (v *Validator) SweepTimeouts(ctx context.Context) (int, error) {
	nowMs := v.now().UnixMilli()
	due, err := v.client.DuePendingDecisionIDs(ctx, nowMs)
	if err != nil {
		return 0, err
	}

	swept := 0
	for _, id := range due {
		decision, err := v.client.GetDecision(ctx, id)
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return swept, err
		}
		if !decision.Pending() {
			continue
		}

		decision.Outcome = vault.OutcomeTimedOut
		decision.Rationale = fmt.Sprintf("no ruling from %s within %s", decision.AddressedTo, v.timeout)
		decision.ResolvedAtMs = nowMs

		if err := v.record(ctx, decision); err != nil {
			return swept, err
		}
		swept++
	}
	return swept, nil
}

// Pending returns all unresolved escalations ordered by deadline.
func (v *Validator) Pending(ctx context.Context) ([]*vault.Decision, error) {
	ids, err := v.client.PendingDecisionIDs(ctx)
	if err != nil {
		return nil, err
	}

	decisions := make([]*vault.Decision, 0, len(ids))
	for _, id := range ids {
		decision, err := v.client.GetDecision(ctx, id)
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, err
		}
		decisions = append(decisions, decision)
	}
	return decisions, nil
}

// record persists the decision and commits its audit artifact. The decision
// write comes first so a crash between the two steps loses only the audit
// copy, never the authoritative record.
func (v *Validator) record(ctx context.Context, d *vault.Decision) error {
	if err := v.client.PutDecision(ctx, d); err != nil {
		return err
	}
	return v.commitAudit(ctx, d)
}

// commitAudit writes the decision into the vault as a SYSTEM_LOG root
// artifact. Each lifecycle state of a decision serializes differently, so
// each transition lands as its own artifact; replays of the same state are
// idempotent through the content-derived ID.
func (v *Validator) commitAudit(ctx context.Context, d *vault.Decision) error {
	payload, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("failed to serialize decision audit: %w", err)
	}

	artifact := &vault.Artifact{
		ID:      vault.ComputeID(vault.TypeSystemLog, "", 1, auditPrincipal.ID, string(payload)),
		Type:    vault.TypeSystemLog,
		Payload: string(payload),
		Metadata: map[string]string{
			"record":      "governance_decision",
			"decision_id": d.ID,
			"outcome":     string(d.Outcome),
		},
		Version:         1,
		CreatedBy:       auditPrincipal,
		CreatedAtMs:     v.now().UnixMilli(),
		Status:          vault.StatusActive,
		FirewallVerdict: vault.VerdictAllow,
	}

	if err := v.client.CommitArtifact(ctx, artifact, vault.CommitOptions{}); err != nil {
		return fmt.Errorf("failed to commit decision audit artifact: %w", err)
	}
	return nil
}
