// Package firewall implements the admission classifier that gates candidate
// content before it can reach the vault. Classification is pure: it never
// touches the store, holds no state between calls, and is safe to run in
// parallel across candidates.
//
// Rules are ordered data (pattern + weight), not code. Each matched span
// contributes its rule's weight; the summed score maps through fixed
// thresholds to one of four verdicts. Sanitization never silently "fixes"
// content: it redacts exactly the matched spans and reports every redaction
// for the artifact's audit metadata, and the unredacted original is
// discarded, never stored.
package firewall

import (
	"fmt"
	"sort"
	"strings"

	"github.com/bhiv/vault/pkg/vault"
)

// RedactedMarker replaces each sanitized span in the stored payload.
const RedactedMarker = "[REDACTED]"

// Action is the firewall's verdict class for a candidate.
type Action string

const (
	ActionAllow      Action = "allow"
	ActionSanitize   Action = "sanitize"
	ActionQuarantine Action = "quarantine"
	ActionReject     Action = "reject"
)

// Candidate is the unit of classification: a payload under a declared
// artifact type. Classification needs nothing else.
type Candidate struct {
	Type    vault.ArtifactType
	Payload string
}

// Redaction records one span removed during sanitization, for the audit
// trail kept in the artifact's metadata.
type Redaction struct {
	Rule  string `json:"rule"`
	Match string `json:"match"`
	Start int    `json:"start"`
	End   int    `json:"end"`
}

// Result is the complete classification outcome.
type Result struct {
	Action     Action
	Score      int
	Matched    []string    // Names of rules that matched, in rule order
	Redactions []Redaction // Populated only for ActionSanitize
	Sanitized  string      // Cleaned payload, only for ActionSanitize
	Reason     string      // Human-readable summary for reject/quarantine
}

// Firewall evaluates an ordered rule list against candidates.
type Firewall struct {
	rules      []Rule
	thresholds Thresholds
}

// New creates a firewall with the built-in rules and thresholds.
func New() *Firewall {
	return NewWithRules(DefaultRules(), DefaultThresholds())
}

// NewWithRules creates a firewall with an explicit rule list and thresholds.
// Extra rules from configuration are appended after the built-in list by the
// caller; evaluation order is the slice order and is deterministic.
func NewWithRules(rules []Rule, thresholds Thresholds) *Firewall {
	return &Firewall{rules: rules, thresholds: thresholds}
}

// Classify evaluates the candidate against every applicable rule and maps
// the summed weights through the thresholds. It is deterministic: the same
// candidate always produces the same result.
func (f *Firewall) Classify(candidate Candidate) Result {
	result := Result{Action: ActionAllow}

	var spans []matchSpan

	for i := range f.rules {
		rule := &f.rules[i]
		if !rule.appliesTo(candidate.Type) {
			continue
		}

		matches := rule.Pattern.FindAllStringIndex(candidate.Payload, -1)
		if len(matches) == 0 {
			continue
		}

		result.Matched = append(result.Matched, rule.Name)
		result.Score += rule.Weight * len(matches)

		for _, m := range matches {
			spans = append(spans, matchSpan{rule: rule.Name, start: m[0], end: m[1]})
		}
	}

	switch {
	case result.Score >= f.thresholds.Reject:
		result.Action = ActionReject
		result.Reason = fmt.Sprintf("content rules matched: %s (score %d)",
			strings.Join(result.Matched, ", "), result.Score)

	case result.Score >= f.thresholds.Quarantine:
		result.Action = ActionQuarantine
		result.Reason = fmt.Sprintf("content rules matched: %s (score %d)",
			strings.Join(result.Matched, ", "), result.Score)

	case result.Score >= f.thresholds.Sanitize:
		result.Action = ActionSanitize
		result.Sanitized, result.Redactions = redact(candidate.Payload, spans)

	default:
		result.Action = ActionAllow
	}

	return result
}

// matchSpan is a matched byte range attributed to the rule that found it.
type matchSpan struct {
	rule       string
	start, end int
}

// redact replaces each matched span with RedactedMarker and returns the
// cleaned payload plus the audit record of what was removed. Overlapping
// spans are merged under the first rule that claimed them.
func redact(payload string, spans []matchSpan) (string, []Redaction) {
	if len(spans) == 0 {
		return payload, nil
	}

	ordered := make([]matchSpan, len(spans))
	copy(ordered, spans)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].start < ordered[j].start
	})

	// Merge overlaps before writing: a partially-overlapping span must not
	// leave its tail in the sanitized payload.
	merged := ordered[:1]
	for _, s := range ordered[1:] {
		last := &merged[len(merged)-1]
		if s.start <= last.end {
			if s.end > last.end {
				last.end = s.end
			}
			continue
		}
		merged = append(merged, s)
	}

	var (
		builder    strings.Builder
		redactions []Redaction
		cursor     int
	)
	for _, s := range merged {
		builder.WriteString(payload[cursor:s.start])
		builder.WriteString(RedactedMarker)
		redactions = append(redactions, Redaction{
			Rule:  s.rule,
			Match: payload[s.start:s.end],
			Start: s.start,
			End:   s.end,
		})
		cursor = s.end
	}
	builder.WriteString(payload[cursor:])

	return builder.String(), redactions
}
