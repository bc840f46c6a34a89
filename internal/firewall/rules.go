package firewall

import (
	"regexp"

	"github.com/bhiv/vault/pkg/vault"
)

// Category groups rules by the class of contamination they detect.
type Category string

const (
	// CategoryHallucination matches hedging language: content the producer
	// itself was not sure about has no place in permanent storage.
	CategoryHallucination Category = "hallucination"

	// CategoryTemporal matches temporal self-reference: a payload claiming
	// authority over its own prior output.
	CategoryTemporal Category = "temporal"

	// CategorySelfReference matches a producer citing its own memory or
	// prior generations as fact.
	CategorySelfReference Category = "self_reference"

	// CategoryFeedbackLoop matches a payload citing its own prospective
	// record as a source of truth, or attempting self-modification.
	CategoryFeedbackLoop Category = "feedback_loop"

	// CategoryStructural matches payloads claiming capabilities the declared
	// artifact type does not permit.
	CategoryStructural Category = "structural"
)

// Rule is one entry in the ordered, data-driven rule list. A rule
// contributes Weight to the candidate's score once per matched span.
type Rule struct {
	Name     string
	Category Category
	Pattern  *regexp.Regexp

	// AppliesTo restricts the rule to specific artifact types. Empty means
	// the rule applies to every type. ExemptTypes wins over AppliesTo.
	AppliesTo   []vault.ArtifactType
	ExemptTypes []vault.ArtifactType

	Weight int
}

// appliesTo reports whether the rule should be evaluated for a candidate of
// the given type.
func (r *Rule) appliesTo(t vault.ArtifactType) bool {
	for _, exempt := range r.ExemptTypes {
		if t == exempt {
			return false
		}
	}
	if len(r.AppliesTo) == 0 {
		return true
	}
	for _, allowed := range r.AppliesTo {
		if t == allowed {
			return true
		}
	}
	return false
}

// DefaultRules returns the built-in ordered rule list. The pattern tables
// mirror the contamination classes the original custodianship rules named:
// hedging, temporal confusion, self-reference, feedback loops, and
// structural capability claims.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name:     "hedging-language",
			Category: CategoryHallucination,
			Pattern:  regexp.MustCompile(`(?i)\b(i think|i believe|probably|might be|seems like|appears to|most likely|uncertain|my guess|i assume)\b`),
			Weight:   2,
		},
		{
			Name:     "temporal-self-reference",
			Category: CategoryTemporal,
			Pattern:  regexp.MustCompile(`(?i)\b(as i said (before|previously)|previously said|earlier i (said|mentioned)|last time i|history shows i)\b`),
			Weight:   3,
		},
		{
			Name:     "memory-claim",
			Category: CategorySelfReference,
			Pattern:  regexp.MustCompile(`(?i)\b(my previous output|my memory|i (generated|created|stored|learned))\b`),
			Weight:   4,
		},
		{
			Name:     "self-citation",
			Category: CategoryFeedbackLoop,
			Pattern:  regexp.MustCompile(`(?i)(self://[a-z0-9]*|source of truth:\s*self)`),
			Weight:   4,
		},
		{
			Name:     "self-modification",
			Category: CategoryFeedbackLoop,
			Pattern:  regexp.MustCompile(`(?i)\b(update_self|modify_behavior|optimize_self|adapt_based_on_output)\b`),
			Weight:   4,
		},
		{
			// Capability claims are only legitimate in agent state and
			// configuration records; anywhere else they are a payload trying
			// to smuggle behavior into storage.
			Name:        "capability-claim",
			Category:    CategoryStructural,
			Pattern:     regexp.MustCompile(`(?i)\bcapability:[a-z_]+`),
			ExemptTypes: []vault.ArtifactType{vault.TypeAgentState, vault.TypeConfiguration},
			Weight:      6,
		},
	}
}

// Thresholds map a summed rule score to a verdict. A score of zero is
// always Allow; otherwise the highest threshold at or below the score wins.
type Thresholds struct {
	Sanitize   int // score >= Sanitize: redact matched spans
	Quarantine int // score >= Quarantine: store flagged, hidden from default reads
	Reject     int // score >= Reject: refuse storage entirely
}

// DefaultThresholds returns the shipped threshold set. A single hedging
// match (weight 2) already sanitizes: contaminated content is never stored
// verbatim.
func DefaultThresholds() Thresholds {
	return Thresholds{Sanitize: 2, Quarantine: 4, Reject: 6}
}
