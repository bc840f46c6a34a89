package policy

// DefaultYAML is the reference constitutional policy shipped with the vault.
// Operators pin its sha256 in vault.yml; editing the file without updating
// the pinned hash makes every instance refuse to boot.
//
// The table reads: creation is open to every authority, delete-class actions
// start at Executor (AI agents must escalate), purge belongs to the
// DataSovereign (advisors may escalate into it), quarantined content is
// DataSovereign-only, and the policy itself can never be amended at runtime.
const DefaultYAML = `version: "1.0"
actions:
  create:
    ai_agent: allow
    executor: allow
    strategic_advisor: allow
    data_sovereign: allow
  version:
    ai_agent: allow
    executor: allow
    strategic_advisor: allow
    data_sovereign: allow
  delete:
    ai_agent: escalate
    executor: allow
    strategic_advisor: allow
    data_sovereign: allow
  purge:
    ai_agent: deny
    executor: deny
    strategic_advisor: escalate
    data_sovereign: allow
  read_quarantined:
    ai_agent: deny
    executor: deny
    strategic_advisor: deny
    data_sovereign: allow
  resolve_escalation:
    ai_agent: deny
    executor: allow
    strategic_advisor: allow
    data_sovereign: allow
  amend_policy:
    ai_agent: deny
    executor: deny
    strategic_advisor: deny
    data_sovereign: deny
`

// Default returns the built-in policy, verified against its own hash.
// Intended for tests and for bootstrapping new instances.
func Default() *Policy {
	raw := []byte(DefaultYAML)
	p, err := Parse(raw, HashBytes(raw))
	if err != nil {
		// The embedded document is constant; failing to parse it is a
		// programming error.
		panic(err)
	}
	return p
}
