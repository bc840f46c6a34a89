// Package truth implements the admission pipeline: every candidate payload
// passes validation, the content firewall, and constitutional governance
// before it can become a committed artifact. The pipeline order is fixed —
// a payload that fails admission never reaches a policy check, and a
// principal that fails governance never reaches the ledger.
package truth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bhiv/vault/internal/firewall"
	"github.com/bhiv/vault/internal/governance"
	"github.com/bhiv/vault/internal/lineage"
	"github.com/bhiv/vault/internal/policy"
	"github.com/bhiv/vault/pkg/vault"
)

// firewallPrincipal signs the audit artifacts the engine commits about
// rejected submissions.
var firewallPrincipal = vault.Principal{ID: "firewall", Authority: vault.AuthorityDataSovereign}

// bootstrapPrincipal signs the constitutional root record.
var bootstrapPrincipal = vault.Principal{ID: "system", Authority: vault.AuthorityDataSovereign}

// Engine wires the firewall, governance and lineage layers around the
// ledger client. It is safe for concurrent use.
type Engine struct {
	client   *vault.Client
	firewall *firewall.Firewall
	gov      *governance.Validator
	index    *lineage.Index
	policy   *policy.Policy
	now      func() time.Time
}

// NewEngine assembles an engine from its collaborators.
func NewEngine(client *vault.Client, fw *firewall.Firewall, gov *governance.Validator, index *lineage.Index, pol *policy.Policy) *Engine {
	return &Engine{
		client:   client,
		firewall: fw,
		gov:      gov,
		index:    index,
		policy:   pol,
		now:      time.Now,
	}
}

// SetClock overrides the engine's time source for tests.
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

// Governance exposes the validator for the escalation CLI surface.
func (e *Engine) Governance() *governance.Validator {
	return e.gov
}

// Lineage exposes the index for lineage queries.
func (e *Engine) Lineage() *lineage.Index {
	return e.index
}

// Client exposes the underlying ledger client.
func (e *Engine) Client() *vault.Client {
	return e.client
}

// SubmitRequest is a candidate for admission. ParentID empty means a new
// root; otherwise the submission becomes a child and ExpectedParentVersion
// is the version the caller last observed on the parent's chain.
type SubmitRequest struct {
	Type                  vault.ArtifactType
	Payload               string
	Metadata              map[string]string
	ParentID              string
	ExpectedParentVersion int
	Principal             vault.Principal
}

// Submit runs the full admission pipeline and commits the artifact.
//
// Outcomes:
//   - (artifact, nil): committed, possibly with sanitization redactions
//     recorded in its metadata.
//   - (nil, *FirewallRejectedError): refused; rejection logged as an audit
//     artifact, candidate payload discarded.
//   - (artifact, *FirewallQuarantinedError): stored but flagged and hidden
//     from default reads.
//   - (nil, *governance.AuthorityDeniedError / *EscalationRequiredError):
//     policy outcome; the decision handle rides on the error.
//   - (nil, *vault.VersionConflictError): the parent chain advanced since the
//     caller read it; re-read and resubmit.
func (e *Engine) Submit(ctx context.Context, req SubmitRequest) (*vault.Artifact, error) {
	if err := e.validate(&req); err != nil {
		return nil, err
	}

	verdict := e.firewall.Classify(firewall.Candidate{Type: req.Type, Payload: req.Payload})

	payload := req.Payload
	metadata := cloneMetadata(req.Metadata)
	firewallVerdict := vault.VerdictAllow

	switch verdict.Action {
	case firewall.ActionReject:
		if err := e.commitRejectionAudit(ctx, req, verdict); err != nil {
			return nil, err
		}
		return nil, &FirewallRejectedError{Result: verdict}

	case firewall.ActionSanitize:
		payload = verdict.Sanitized
		firewallVerdict = vault.VerdictSanitized
		redactions, err := json.Marshal(verdict.Redactions)
		if err != nil {
			return nil, fmt.Errorf("failed to serialize redactions: %w", err)
		}
		metadata["firewall_redactions"] = string(redactions)
		metadata["firewall_rules"] = strings.Join(verdict.Matched, ",")

	case firewall.ActionQuarantine:
		firewallVerdict = vault.VerdictQuarantined
		metadata["firewall_rules"] = strings.Join(verdict.Matched, ",")
		metadata["firewall_reason"] = verdict.Reason
	}

	action := vault.ActionCreate
	if req.ParentID != "" {
		action = vault.ActionVersion
	}
	if _, err := e.gov.Authorize(ctx, req.Principal, action, req.ParentID); err != nil {
		return nil, err
	}

	version := 1
	opts := vault.CommitOptions{}
	if req.ParentID != "" {
		if _, err := e.client.GetArtifact(ctx, req.ParentID); err != nil {
			if errors.Is(err, redis.Nil) {
				return nil, &vault.NotFoundError{ID: req.ParentID}
			}
			return nil, err
		}
		version = req.ExpectedParentVersion + 1
		opts.ExpectedParentVersion = req.ExpectedParentVersion
	}

	artifact := &vault.Artifact{
		ID:              vault.ComputeID(req.Type, req.ParentID, version, req.Principal.ID, payload),
		Type:            req.Type,
		Payload:         payload,
		Metadata:        metadata,
		ParentID:        req.ParentID,
		Version:         version,
		CreatedBy:       req.Principal,
		CreatedAtMs:     e.now().UnixMilli(),
		Status:          vault.StatusActive,
		FirewallVerdict: firewallVerdict,
	}

	if err := e.client.CommitArtifact(ctx, artifact, opts); err != nil {
		return nil, err
	}

	// Index only after the commit is durable; a crash here is healed by
	// Rebuild, never by trusting the index.
	if err := e.index.Upsert(ctx, artifact); err != nil {
		return nil, err
	}

	if firewallVerdict == vault.VerdictQuarantined {
		return artifact, &FirewallQuarantinedError{Artifact: artifact, Result: verdict}
	}
	return artifact, nil
}

// CreateVersion commits a new version of an existing artifact. The new
// version keeps the parent's type; expectedVersion is the version the caller
// last observed on the chain, enforced by the commit CAS.
func (e *Engine) CreateVersion(ctx context.Context, parentID, payload string, expectedVersion int, principal vault.Principal) (*vault.Artifact, error) {
	parent, err := e.client.GetArtifact(ctx, parentID)
	if errors.Is(err, redis.Nil) {
		return nil, &vault.NotFoundError{ID: parentID}
	}
	if err != nil {
		return nil, err
	}

	return e.Submit(ctx, SubmitRequest{
		Type:                  parent.Type,
		Payload:               payload,
		ParentID:              parentID,
		ExpectedParentVersion: expectedVersion,
		Principal:             principal,
	})
}

// Get retrieves an artifact by ID. Quarantined artifacts are hidden: default
// reads report them as not found, exactly as if admission had refused them.
func (e *Engine) Get(ctx context.Context, artifactID string) (*vault.Artifact, error) {
	a, err := e.client.GetArtifact(ctx, artifactID)
	if errors.Is(err, redis.Nil) {
		return nil, &vault.NotFoundError{ID: artifactID}
	}
	if err != nil {
		return nil, err
	}
	if a.FirewallVerdict == vault.VerdictQuarantined {
		return nil, &vault.NotFoundError{ID: artifactID}
	}
	return a, nil
}

// GetQuarantined retrieves an artifact regardless of its firewall verdict.
// Gated by the read_quarantined policy action; the access itself is recorded
// as a governance decision.
func (e *Engine) GetQuarantined(ctx context.Context, artifactID string, principal vault.Principal) (*vault.Artifact, error) {
	if _, err := e.gov.Authorize(ctx, principal, vault.ActionReadQuarantined, artifactID); err != nil {
		return nil, err
	}

	a, err := e.client.GetArtifact(ctx, artifactID)
	if errors.Is(err, redis.Nil) {
		return nil, &vault.NotFoundError{ID: artifactID}
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// Bootstrap commits the constitutional root record: a CONFIGURATION artifact
// holding the policy hash and version this instance enforces. The payload is
// deterministic, so the content-derived ID makes re-runs no-ops.
func (e *Engine) Bootstrap(ctx context.Context) (*vault.Artifact, error) {
	payload, err := json.Marshal(map[string]string{
		"record":         "constitution",
		"policy_hash":    e.policy.Hash(),
		"policy_version": e.policy.Version(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to serialize constitutional record: %w", err)
	}

	artifact := &vault.Artifact{
		ID:              vault.ComputeID(vault.TypeConfiguration, "", 1, bootstrapPrincipal.ID, string(payload)),
		Type:            vault.TypeConfiguration,
		Payload:         string(payload),
		Metadata:        map[string]string{"record": "constitution"},
		Version:         1,
		CreatedBy:       bootstrapPrincipal,
		CreatedAtMs:     e.now().UnixMilli(),
		Status:          vault.StatusActive,
		FirewallVerdict: vault.VerdictAllow,
	}

	if err := e.client.CommitArtifact(ctx, artifact, vault.CommitOptions{}); err != nil {
		return nil, err
	}
	return artifact, nil
}

// Stats summarizes the instance: artifact counts broken down by type, status
// and authority, pending escalations, and the constitutional hash in force.
type Stats struct {
	Total         int            `json:"total"`
	ByType        map[string]int `json:"by_type"`
	ByStatus      map[string]int `json:"by_status"`
	ByAuthority   map[string]int `json:"by_authority"`
	ByVerdict     map[string]int `json:"by_verdict"`
	Archived      int            `json:"archived"`
	Pending       int            `json:"pending_escalations"`
	PolicyHash    string         `json:"policy_hash"`
	PolicyVersion string         `json:"policy_version"`
}

// Stats walks the full store (hot and cold) and aggregates counts. Intended
// for the operator CLI, not hot paths.
func (e *Engine) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{
		ByType:        make(map[string]int),
		ByStatus:      make(map[string]int),
		ByAuthority:   make(map[string]int),
		ByVerdict:     make(map[string]int),
		PolicyHash:    e.policy.Hash(),
		PolicyVersion: e.policy.Version(),
	}

	hotIDs, err := e.client.ScanArtifactIDs(ctx, "", false)
	if err != nil {
		return nil, err
	}
	hot := make(map[string]struct{}, len(hotIDs))
	for _, id := range hotIDs {
		hot[id] = struct{}{}
	}

	allIDs, err := e.client.ScanArtifactIDs(ctx, "", true)
	if err != nil {
		return nil, err
	}

	for _, id := range allIDs {
		a, err := e.client.GetArtifact(ctx, id)
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, err
		}

		stats.Total++
		stats.ByType[string(a.Type)]++
		stats.ByStatus[string(a.Status)]++
		stats.ByAuthority[string(a.CreatedBy.Authority)]++
		stats.ByVerdict[string(a.FirewallVerdict)]++
		if _, isHot := hot[id]; !isHot {
			stats.Archived++
		}
	}

	pending, err := e.client.PendingDecisionIDs(ctx)
	if err != nil {
		return nil, err
	}
	stats.Pending = len(pending)

	return stats, nil
}

func (e *Engine) validate(req *SubmitRequest) error {
	if err := req.Type.Validate(); err != nil {
		return &ValidationError{Field: "type", Reason: err.Error()}
	}
	if req.Type == vault.TypeTombstone {
		return &ValidationError{Field: "type", Reason: "tombstones are created through the delete path, not submission"}
	}
	if req.Payload == "" {
		return &ValidationError{Field: "payload", Reason: "cannot be empty"}
	}
	if req.Principal.ID == "" {
		return &ValidationError{Field: "principal", Reason: "cannot be empty"}
	}
	if err := req.Principal.Authority.Validate(); err != nil {
		return &ValidationError{Field: "authority", Reason: err.Error()}
	}
	if req.ParentID == "" && req.ExpectedParentVersion != 0 {
		return &ValidationError{Field: "expected-version", Reason: "only valid with a parent"}
	}
	if req.ParentID != "" && req.ExpectedParentVersion < 1 {
		return &ValidationError{Field: "expected-version", Reason: "must be at least 1 for a child submission"}
	}
	return nil
}

// commitRejectionAudit stores a SYSTEM_LOG record of a refused submission.
// The candidate payload itself is deliberately not stored; only the rule
// names, score and submitter survive.
func (e *Engine) commitRejectionAudit(ctx context.Context, req SubmitRequest, verdict firewall.Result) error {
	record, err := json.Marshal(map[string]interface{}{
		"record":    "firewall_rejection",
		"type":      req.Type,
		"principal": req.Principal.ID,
		"authority": req.Principal.Authority,
		"rules":     verdict.Matched,
		"score":     verdict.Score,
	})
	if err != nil {
		return fmt.Errorf("failed to serialize rejection audit: %w", err)
	}

	artifact := &vault.Artifact{
		ID:              vault.ComputeID(vault.TypeSystemLog, "", 1, firewallPrincipal.ID, string(record)),
		Type:            vault.TypeSystemLog,
		Payload:         string(record),
		Metadata:        map[string]string{"record": "firewall_rejection"},
		Version:         1,
		CreatedBy:       firewallPrincipal,
		CreatedAtMs:     e.now().UnixMilli(),
		Status:          vault.StatusActive,
		FirewallVerdict: vault.VerdictAllow,
	}

	if err := e.client.CommitArtifact(ctx, artifact, vault.CommitOptions{}); err != nil {
		return fmt.Errorf("failed to commit rejection audit: %w", err)
	}
	return nil
}

func cloneMetadata(m map[string]string) map[string]string {
	out := make(map[string]string, len(m)+2)
	for k, v := range m {
		out[k] = v
	}
	return out
}
