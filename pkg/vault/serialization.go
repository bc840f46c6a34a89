package vault

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Serialization helpers for converting between Go structs and Redis hashes
//
// Redis stores data as string-to-string maps (hashes). The metadata map is
// JSON-encoded into a single hash field. This keeps individual fields
// queryable while allowing structured metadata.

// ArtifactToHash converts an Artifact struct to a Redis hash format.
func ArtifactToHash(a *Artifact) (map[string]interface{}, error) {
	metadataJSON, err := json.Marshal(a.Metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal metadata: %w", err)
	}

	hash := map[string]interface{}{
		"id":               a.ID,
		"type":             string(a.Type),
		"payload":          a.Payload,
		"metadata":         string(metadataJSON),
		"parent_id":        a.ParentID,
		"version":          a.Version,
		"created_by":       a.CreatedBy.ID,
		"created_by_auth":  string(a.CreatedBy.Authority),
		"created_at_ms":    a.CreatedAtMs,
		"status":           string(a.Status),
		"firewall_verdict": string(a.FirewallVerdict),
	}

	return hash, nil
}

// HashToArtifact converts a Redis hash to an Artifact struct.
func HashToArtifact(hash map[string]string) (*Artifact, error) {
	version, err := strconv.Atoi(hash["version"])
	if err != nil {
		return nil, fmt.Errorf("invalid version field: %w", err)
	}

	var metadata map[string]string
	if metadataJSON := hash["metadata"]; metadataJSON != "" && metadataJSON != "null" {
		if err := json.Unmarshal([]byte(metadataJSON), &metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}

	createdAtMs, _ := strconv.ParseInt(hash["created_at_ms"], 10, 64)

	artifact := &Artifact{
		ID:       hash["id"],
		Type:     ArtifactType(hash["type"]),
		Payload:  hash["payload"],
		Metadata: metadata,
		ParentID: hash["parent_id"],
		Version:  version,
		CreatedBy: Principal{
			ID:        hash["created_by"],
			Authority: Authority(hash["created_by_auth"]),
		},
		CreatedAtMs:     createdAtMs,
		Status:          Status(hash["status"]),
		FirewallVerdict: Verdict(hash["firewall_verdict"]),
	}

	return artifact, nil
}

// DecisionToHash converts a Decision struct to a Redis hash format.
func DecisionToHash(d *Decision) map[string]interface{} {
	return map[string]interface{}{
		"id":             d.ID,
		"action":         string(d.Action),
		"principal":      d.Principal.ID,
		"principal_auth": string(d.Principal.Authority),
		"target_id":      d.TargetID,
		"outcome":        string(d.Outcome),
		"rationale":      d.Rationale,
		"policy_hash":    d.PolicyHash,
		"addressed_to":   string(d.AddressedTo),
		"created_at_ms":  d.CreatedAtMs,
		"deadline_at_ms": d.DeadlineAtMs,
		"resolved_by":    d.ResolvedBy,
		"resolved_at_ms": d.ResolvedAtMs,
	}
}

// HashToDecision converts a Redis hash to a Decision struct.
func HashToDecision(hash map[string]string) (*Decision, error) {
	if hash["id"] == "" {
		return nil, fmt.Errorf("decision hash missing id field")
	}

	createdAtMs, _ := strconv.ParseInt(hash["created_at_ms"], 10, 64)
	deadlineAtMs, _ := strconv.ParseInt(hash["deadline_at_ms"], 10, 64)
	resolvedAtMs, _ := strconv.ParseInt(hash["resolved_at_ms"], 10, 64)

	decision := &Decision{
		ID:     hash["id"],
		Action: Action(hash["action"]),
		Principal: Principal{
			ID:        hash["principal"],
			Authority: Authority(hash["principal_auth"]),
		},
		TargetID:     hash["target_id"],
		Outcome:      DecisionOutcome(hash["outcome"]),
		Rationale:    hash["rationale"],
		PolicyHash:   hash["policy_hash"],
		AddressedTo:  Authority(hash["addressed_to"]),
		CreatedAtMs:  createdAtMs,
		DeadlineAtMs: deadlineAtMs,
		ResolvedBy:   hash["resolved_by"],
		ResolvedAtMs: resolvedAtMs,
	}

	return decision, nil
}
