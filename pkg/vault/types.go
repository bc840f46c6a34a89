package vault

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Artifact is an immutable, provenance-tracked record in the vault.
// Every piece of content any caller produces becomes an artifact with a
// content-derived identity, a lineage link to its parent, and a version
// number. Once committed, ID, Type, Payload, ParentID and Version never
// change; the only field ever written after commit is Status, flipped to
// inactive by a tombstone referencing the artifact.
type Artifact struct {
	ID              string            `json:"id"`                 // Hex sha256 over type|parent|version|principal|payload
	Type            ArtifactType      `json:"type"`               // Closed set, see ArtifactType
	Payload         string            `json:"payload"`            // Opaque content blob (possibly sanitized by the firewall)
	Metadata        map[string]string `json:"metadata,omitempty"` // Structured metadata, including redaction audit entries
	ParentID        string            `json:"parent_id,omitempty"`
	Version         int               `json:"version"` // 1 for roots, parent.Version+1 for descendants
	CreatedBy       Principal         `json:"created_by"`
	CreatedAtMs     int64             `json:"created_at_ms"`
	Status          Status            `json:"status"`
	FirewallVerdict Verdict           `json:"firewall_verdict"`
}

// Principal identifies who requested an operation: a caller identifier plus
// the authority level it was declared under.
type Principal struct {
	ID        string    `json:"id"`
	Authority Authority `json:"authority"`
}

// ArtifactType is the closed set of artifact kinds the vault stores.
type ArtifactType string

const (
	TypeAIOutput          ArtifactType = "ai_output"
	TypeUserInput         ArtifactType = "user_input"
	TypeSystemLog         ArtifactType = "system_log"
	TypeAgentState        ArtifactType = "agent_state"
	TypeWorkflowExecution ArtifactType = "workflow_execution"
	TypeMediaFile         ArtifactType = "media_file"
	TypeConfiguration     ArtifactType = "configuration"
	TypePersonaData       ArtifactType = "persona_data"
	TypeTombstone         ArtifactType = "tombstone"
)

// Status marks default-read visibility. Inactive artifacts are retained in
// full; they are only hidden from default reads.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// Verdict is the admission firewall outcome recorded on a stored artifact.
// Rejected candidates are never stored, so "rejected" does not appear here.
type Verdict string

const (
	VerdictAllow       Verdict = "allow"
	VerdictSanitized   Verdict = "sanitized"
	VerdictQuarantined Verdict = "quarantined"
)

// Authority is the ranked role a principal operates under.
// DataSovereign > StrategicAdvisor > Executor > AIAgent.
type Authority string

const (
	AuthorityDataSovereign    Authority = "data_sovereign"
	AuthorityStrategicAdvisor Authority = "strategic_advisor"
	AuthorityExecutor         Authority = "executor"
	AuthorityAIAgent          Authority = "ai_agent"
)

// Action is an operation class subject to the constitutional policy.
type Action string

const (
	ActionCreate            Action = "create"
	ActionVersion           Action = "version"
	ActionDelete            Action = "delete"
	ActionPurge             Action = "purge"
	ActionReadQuarantined   Action = "read_quarantined"
	ActionAmendPolicy       Action = "amend_policy"
	ActionResolveEscalation Action = "resolve_escalation"
)

// Rank returns the numeric position of an authority in the hierarchy.
// Higher is more powerful. Unknown authorities rank 0 (below everything).
func (a Authority) Rank() int {
	switch a {
	case AuthorityDataSovereign:
		return 4
	case AuthorityStrategicAdvisor:
		return 3
	case AuthorityExecutor:
		return 2
	case AuthorityAIAgent:
		return 1
	default:
		return 0
	}
}

// AtLeast reports whether a ranks at or above other.
func (a Authority) AtLeast(other Authority) bool {
	return a.Rank() >= other.Rank()
}

// NextHigher returns the authority one step above a. The second return is
// false for DataSovereign (and unknown authorities), which have no superior.
func (a Authority) NextHigher() (Authority, bool) {
	switch a {
	case AuthorityAIAgent:
		return AuthorityExecutor, true
	case AuthorityExecutor:
		return AuthorityStrategicAdvisor, true
	case AuthorityStrategicAdvisor:
		return AuthorityDataSovereign, true
	default:
		return "", false
	}
}

// Validate checks if the ArtifactType is a valid enum value.
func (t ArtifactType) Validate() error {
	switch t {
	case TypeAIOutput, TypeUserInput, TypeSystemLog, TypeAgentState,
		TypeWorkflowExecution, TypeMediaFile, TypeConfiguration,
		TypePersonaData, TypeTombstone:
		return nil
	default:
		return fmt.Errorf("unknown artifact type: %q", t)
	}
}

// Validate checks if the Status is a valid enum value.
func (s Status) Validate() error {
	switch s {
	case StatusActive, StatusInactive:
		return nil
	default:
		return fmt.Errorf("unknown status: %q", s)
	}
}

// Validate checks if the Verdict is a valid enum value.
func (v Verdict) Validate() error {
	switch v {
	case VerdictAllow, VerdictSanitized, VerdictQuarantined:
		return nil
	default:
		return fmt.Errorf("unknown firewall verdict: %q", v)
	}
}

// Validate checks if the Authority is a valid enum value.
func (a Authority) Validate() error {
	switch a {
	case AuthorityDataSovereign, AuthorityStrategicAdvisor, AuthorityExecutor, AuthorityAIAgent:
		return nil
	default:
		return fmt.Errorf("unknown authority: %q", a)
	}
}

// Validate checks if the Action is a valid enum value.
func (ac Action) Validate() error {
	switch ac {
	case ActionCreate, ActionVersion, ActionDelete, ActionPurge,
		ActionReadQuarantined, ActionAmendPolicy, ActionResolveEscalation:
		return nil
	default:
		return fmt.Errorf("unknown action: %q", ac)
	}
}

// Validate checks if the Artifact has valid field values.
// Returns an error if any validation fails.
func (a *Artifact) Validate() error {
	if len(a.ID) != IDLength {
		return fmt.Errorf("invalid artifact ID: expected %d hex characters, got %d", IDLength, len(a.ID))
	}

	if err := a.Type.Validate(); err != nil {
		return fmt.Errorf("invalid artifact type: %w", err)
	}

	if a.Version < 1 {
		return fmt.Errorf("invalid version: must be >= 1, got %d", a.Version)
	}

	if a.ParentID == "" && a.Version != 1 {
		return fmt.Errorf("root artifact must have version 1, got %d", a.Version)
	}

	if a.CreatedBy.ID == "" {
		return fmt.Errorf("created_by principal cannot be empty")
	}

	if err := a.CreatedBy.Authority.Validate(); err != nil {
		return fmt.Errorf("invalid creator authority: %w", err)
	}

	if err := a.Status.Validate(); err != nil {
		return fmt.Errorf("invalid status: %w", err)
	}

	if err := a.FirewallVerdict.Validate(); err != nil {
		return fmt.Errorf("invalid firewall verdict: %w", err)
	}

	return nil
}

// IDLength is the length of an artifact ID: a hex-encoded sha256 digest.
const IDLength = 64

// ComputeID derives the content-derived identity of an artifact from its
// immutable fields. Identical content under the same lineage position always
// yields the same ID, so a replayed commit is a natural no-op.
func ComputeID(artifactType ArtifactType, parentID string, version int, principalID, payload string) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%d|%s|%s", artifactType, parentID, version, principalID, payload)
	return hex.EncodeToString(h.Sum(nil))
}

// IsRoot reports whether the artifact starts a lineage.
func (a *Artifact) IsRoot() bool {
	return a.ParentID == ""
}
