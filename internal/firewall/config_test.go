package firewall

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bhiv/vault/internal/config"
	"github.com/bhiv/vault/pkg/vault"
)

func TestFromConfig(t *testing.T) {
	t.Run("nil section yields the built-in firewall", func(t *testing.T) {
		fw, err := FromConfig(nil)
		require.NoError(t, err)

		result := fw.Classify(Candidate{Type: vault.TypeAIOutput, Payload: "The value is probably 42."})
		assert.Equal(t, ActionSanitize, result.Action)
	})

	t.Run("threshold overrides apply", func(t *testing.T) {
		sanitize := 3
		fw, err := FromConfig(&config.FirewallConfig{Sanitize: &sanitize})
		require.NoError(t, err)

		// A single hedge (weight 2) stays under the raised threshold.
		result := fw.Classify(Candidate{Type: vault.TypeAIOutput, Payload: "The value is probably 42."})
		assert.Equal(t, ActionAllow, result.Action)
	})

	t.Run("extra rules run after the built-in list", func(t *testing.T) {
		fw, err := FromConfig(&config.FirewallConfig{
			ExtraRules: []config.ConfigRule{
				{Name: "internal-hostnames", Category: "leak", Pattern: `\bcorp\.internal\b`, Weight: 6},
			},
		})
		require.NoError(t, err)

		result := fw.Classify(Candidate{Type: vault.TypeUserInput, Payload: "see corp.internal for details"})
		assert.Equal(t, ActionReject, result.Action)
		assert.Contains(t, result.Matched, "internal-hostnames")
	})

	t.Run("a bad pattern is refused", func(t *testing.T) {
		_, err := FromConfig(&config.FirewallConfig{
			ExtraRules: []config.ConfigRule{{Name: "broken", Pattern: "([", Weight: 2}},
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid pattern")
	})
}
