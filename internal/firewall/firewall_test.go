package firewall

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bhiv/vault/pkg/vault"
)

func TestClassify(t *testing.T) {
	fw := New()

	t.Run("clean content is allowed unchanged", func(t *testing.T) {
		result := fw.Classify(Candidate{
			Type:    vault.TypeUserInput,
			Payload: "The deployment finished at 14:02 and all checks passed.",
		})
		assert.Equal(t, ActionAllow, result.Action)
		assert.Zero(t, result.Score)
		assert.Empty(t, result.Matched)
	})

	t.Run("hedging language is sanitized, never allowed verbatim", func(t *testing.T) {
		result := fw.Classify(Candidate{
			Type:    vault.TypeAIOutput,
			Payload: "The value is probably 42.",
		})
		require.Equal(t, ActionSanitize, result.Action)
		assert.Equal(t, 2, result.Score)
		assert.Contains(t, result.Matched, "hedging-language")

		assert.Equal(t, "The value is "+RedactedMarker+" 42.", result.Sanitized)
		require.Len(t, result.Redactions, 1)
		assert.Equal(t, "hedging-language", result.Redactions[0].Rule)
		assert.Equal(t, "probably", result.Redactions[0].Match)
	})

	t.Run("memory claims quarantine", func(t *testing.T) {
		result := fw.Classify(Candidate{
			Type:    vault.TypeAIOutput,
			Payload: "According to my memory the user agreed.",
		})
		assert.Equal(t, ActionQuarantine, result.Action)
		assert.Equal(t, 4, result.Score)
		assert.NotEmpty(t, result.Reason)
		assert.Empty(t, result.Sanitized)
	})

	t.Run("capability claims outside state types reject", func(t *testing.T) {
		result := fw.Classify(Candidate{
			Type:    vault.TypeAIOutput,
			Payload: "granting capability:write_all to this session",
		})
		assert.Equal(t, ActionReject, result.Action)
		assert.GreaterOrEqual(t, result.Score, 6)
	})

	t.Run("capability claims are legitimate in agent state", func(t *testing.T) {
		result := fw.Classify(Candidate{
			Type:    vault.TypeAgentState,
			Payload: "capability:search enabled for session 9",
		})
		assert.Equal(t, ActionAllow, result.Action)
	})

	t.Run("stacked categories reject", func(t *testing.T) {
		result := fw.Classify(Candidate{
			Type:    vault.TypeAIOutput,
			Payload: "As I said before, source of truth: self. I think that settles it.",
		})
		assert.Equal(t, ActionReject, result.Action)
		// temporal (3) + self-citation (4) + hedging (2)
		assert.Equal(t, 9, result.Score)
	})

	t.Run("classification is deterministic", func(t *testing.T) {
		candidate := Candidate{Type: vault.TypeAIOutput, Payload: "I believe this might be wrong."}
		first := fw.Classify(candidate)
		second := fw.Classify(candidate)
		assert.Equal(t, first, second)
	})
}

func TestRedact(t *testing.T) {
	// Quarantine pushed out of the way so multiple hedges still sanitize.
	fw := NewWithRules(DefaultRules(), Thresholds{Sanitize: 2, Quarantine: 8, Reject: 10})

	t.Run("every matched span is redacted and audited", func(t *testing.T) {
		result := fw.Classify(Candidate{
			Type:    vault.TypeAIOutput,
			Payload: "I think it works. I assume you agree.",
		})
		require.Equal(t, ActionSanitize, result.Action)

		assert.NotContains(t, result.Sanitized, "I think")
		assert.NotContains(t, result.Sanitized, "I assume")
		assert.Equal(t, 2, strings.Count(result.Sanitized, RedactedMarker))
		require.Len(t, result.Redactions, 2)

		// Audit records carry the original spans.
		assert.Equal(t, "I think", result.Redactions[0].Match)
		assert.Equal(t, "I assume", result.Redactions[1].Match)
	})

	t.Run("spans keep surrounding text intact", func(t *testing.T) {
		sanitized, redactions := redact("aaa BAD bbb", []matchSpan{{rule: "r", start: 4, end: 7}})
		assert.Equal(t, "aaa "+RedactedMarker+" bbb", sanitized)
		require.Len(t, redactions, 1)
		assert.Equal(t, "BAD", redactions[0].Match)
		assert.Equal(t, 4, redactions[0].Start)
		assert.Equal(t, 7, redactions[0].End)
	})

	t.Run("overlapping spans are merged under the first rule", func(t *testing.T) {
		sanitized, redactions := redact("overlap here", []matchSpan{
			{rule: "first", start: 0, end: 7},
			{rule: "second", start: 3, end: 10},
		})
		assert.Equal(t, RedactedMarker+"re", sanitized)
		require.Len(t, redactions, 1)
		assert.Equal(t, "first", redactions[0].Rule)
		assert.Equal(t, "overlap he", redactions[0].Match)
		assert.Equal(t, 10, redactions[0].End)
	})

	t.Run("a partial overlap leaves no matched tail behind", func(t *testing.T) {
		sanitized, redactions := redact("AAABBBCCC tail", []matchSpan{
			{rule: "first", start: 0, end: 6},
			{rule: "second", start: 3, end: 9},
		})
		assert.Equal(t, RedactedMarker+" tail", sanitized)
		assert.NotContains(t, sanitized, "CCC")
		require.Len(t, redactions, 1)
		assert.Equal(t, "AAABBBCCC", redactions[0].Match)
	})
}

func TestThresholdOverrides(t *testing.T) {
	// Raising the sanitize threshold lets single hedges through.
	fw := NewWithRules(DefaultRules(), Thresholds{Sanitize: 3, Quarantine: 4, Reject: 6})

	result := fw.Classify(Candidate{
		Type:    vault.TypeAIOutput,
		Payload: "The value is probably 42.",
	})
	assert.Equal(t, ActionAllow, result.Action)
	assert.Equal(t, 2, result.Score)
}
