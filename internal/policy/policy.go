// Package policy loads and guards the constitutional authority table: the
// fixed, hash-verified mapping of (authority, action) to an outcome. The
// table is loaded once at process start and never mutated afterwards; any
// runtime attempt to amend it is denied unconditionally.
package policy

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/bhiv/vault/pkg/vault"
)

// Outcome is what the policy table says about an (authority, action) pair.
type Outcome string

const (
	// OutcomeAllow lets the action proceed.
	OutcomeAllow Outcome = "allow"

	// OutcomeDeny fails the action immediately with AuthorityDenied.
	OutcomeDeny Outcome = "deny"

	// OutcomeEscalate defers the action to the next-higher authority.
	OutcomeEscalate Outcome = "escalate"
)

// Validate checks if the Outcome is a valid enum value.
func (o Outcome) Validate() error {
	switch o {
	case OutcomeAllow, OutcomeDeny, OutcomeEscalate:
		return nil
	default:
		return fmt.Errorf("unknown policy outcome: %q", o)
	}
}

// Policy is the immutable, hash-verified constitutional authority table.
// Construct one with Load (or Default for tests) and pass the value around
// explicitly; there is no mutation API.
type Policy struct {
	version      string
	table        map[vault.Action]map[vault.Authority]Outcome
	raw          []byte
	hash         string
	expectedHash string
}

// policyFile is the YAML shape of the policy document.
type policyFile struct {
	Version string                       `yaml:"version"`
	Actions map[string]map[string]string `yaml:"actions"`
}

// Load reads the policy YAML from path and verifies its sha256 against the
// expected constitutional hash. A mismatch is fatal by contract: the caller
// must refuse to serve any request (fail-closed).
func Load(path, expectedHash string) (*Policy, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy: %w", err)
	}
	return Parse(raw, expectedHash)
}

// Parse builds a Policy from raw YAML bytes, verifying the constitutional
// hash. Exposed separately from Load so tests can build policies without
// touching the filesystem.
func Parse(raw []byte, expectedHash string) (*Policy, error) {
	actual := HashBytes(raw)
	if expectedHash == "" {
		return nil, fmt.Errorf("no constitutional hash configured: refusing to load an unverifiable policy")
	}
	if actual != expectedHash {
		return nil, &HashMismatchError{Expected: expectedHash, Actual: actual}
	}

	var file policyFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("failed to parse policy YAML: %w", err)
	}

	if file.Version == "" {
		return nil, fmt.Errorf("policy is missing a version")
	}
	if len(file.Actions) == 0 {
		return nil, fmt.Errorf("policy defines no actions")
	}

	table := make(map[vault.Action]map[vault.Authority]Outcome, len(file.Actions))
	for actionName, row := range file.Actions {
		action := vault.Action(actionName)
		if err := action.Validate(); err != nil {
			return nil, fmt.Errorf("invalid policy entry: %w", err)
		}

		outcomes := make(map[vault.Authority]Outcome, len(row))
		for authorityName, outcomeName := range row {
			authority := vault.Authority(authorityName)
			if err := authority.Validate(); err != nil {
				return nil, fmt.Errorf("invalid policy entry for action %q: %w", actionName, err)
			}

			outcome := Outcome(outcomeName)
			if err := outcome.Validate(); err != nil {
				return nil, fmt.Errorf("invalid policy entry for action %q, authority %q: %w", actionName, authorityName, err)
			}
			outcomes[authority] = outcome
		}
		table[action] = outcomes
	}

	return &Policy{
		version:      file.Version,
		table:        table,
		raw:          raw,
		hash:         actual,
		expectedHash: expectedHash,
	}, nil
}

// Lookup returns the policy outcome for an (authority, action) pair.
//
// Two rules hold regardless of what the table says:
//   - amend_policy is denied for every authority, always. The constitution
//     cannot be changed by a runtime request.
//   - an unknown action or an action with no entry for the authority is
//     denied (fail-closed).
func (p *Policy) Lookup(authority vault.Authority, action vault.Action) Outcome {
	if action == vault.ActionAmendPolicy {
		return OutcomeDeny
	}

	row, ok := p.table[action]
	if !ok {
		return OutcomeDeny
	}

	outcome, ok := row[authority]
	if !ok {
		return OutcomeDeny
	}

	// An authority with no superior cannot escalate; the attempt resolves to
	// denial rather than an unresolvable pending decision.
	if outcome == OutcomeEscalate {
		if _, hasHigher := authority.NextHigher(); !hasHigher {
			return OutcomeDeny
		}
	}

	return outcome
}

// Verify recomputes the hash of the loaded policy bytes and checks it
// against the constitutional hash. Called before every governance decision
// to detect tampering; returns a HashMismatchError on failure.
func (p *Policy) Verify() error {
	actual := HashBytes(p.raw)
	if actual != p.expectedHash {
		return &HashMismatchError{Expected: p.expectedHash, Actual: actual}
	}
	return nil
}

// Hash returns the verified constitutional hash of the policy.
func (p *Policy) Hash() string {
	return p.hash
}

// Version returns the policy document version.
func (p *Policy) Version() string {
	return p.version
}

// HashBytes computes the hex sha256 digest of a policy document.
func HashBytes(raw []byte) string {
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// HashMismatchError indicates the policy bytes do not match the expected
// constitutional hash. At boot this must abort startup; at decision time it
// must fail the decision.
type HashMismatchError struct {
	Expected string
	Actual   string
}

func (e *HashMismatchError) Error() string {
	return fmt.Sprintf("constitutional hash mismatch: expected %s, got %s", e.Expected, e.Actual)
}
