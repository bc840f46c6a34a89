package firewall

import (
	"fmt"
	"regexp"

	"github.com/bhiv/vault/internal/config"
)

// FromConfig builds a firewall from the vault.yml firewall section: threshold
// overrides applied over the defaults, extra rules compiled and appended
// after the built-in list. A nil section yields the built-in firewall.
func FromConfig(fc *config.FirewallConfig) (*Firewall, error) {
	rules := DefaultRules()
	thresholds := DefaultThresholds()

	if fc == nil {
		return NewWithRules(rules, thresholds), nil
	}

	if fc.Sanitize != nil {
		thresholds.Sanitize = *fc.Sanitize
	}
	if fc.Quarantine != nil {
		thresholds.Quarantine = *fc.Quarantine
	}
	if fc.Reject != nil {
		thresholds.Reject = *fc.Reject
	}

	for _, r := range fc.ExtraRules {
		pattern, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("firewall rule '%s': invalid pattern: %w", r.Name, err)
		}
		rules = append(rules, Rule{
			Name:     r.Name,
			Category: Category(r.Category),
			Pattern:  pattern,
			Weight:   r.Weight,
		})
	}

	return NewWithRules(rules, thresholds), nil
}
