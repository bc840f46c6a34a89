// Package config loads and validates vault.yml, the per-instance
// configuration file.
package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bhiv/vault/pkg/vault"
)

// VaultConfig represents the top-level vault.yml configuration
type VaultConfig struct {
	Version    string            `yaml:"version"`
	Instance   string            `yaml:"instance"`
	Redis      RedisConfig       `yaml:"redis"`
	Policy     PolicyConfig      `yaml:"policy"`
	Firewall   *FirewallConfig   `yaml:"firewall,omitempty"`
	Escalation *EscalationConfig `yaml:"escalation,omitempty"`
	Retention  *RetentionConfig  `yaml:"retention,omitempty"`
}

// RedisConfig specifies the Redis connection
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db,omitempty"`
}

// PolicyConfig pins the constitutional policy: the YAML path and the sha256
// the file must hash to. A mismatch aborts startup.
type PolicyConfig struct {
	Path string `yaml:"path"`
	Hash string `yaml:"hash"`
}

// FirewallConfig overrides the built-in thresholds and appends extra rules
type FirewallConfig struct {
	Sanitize   *int         `yaml:"sanitize,omitempty"`
	Quarantine *int         `yaml:"quarantine,omitempty"`
	Reject     *int         `yaml:"reject,omitempty"`
	ExtraRules []ConfigRule `yaml:"extra_rules,omitempty"`
}

// ConfigRule is one operator-supplied firewall rule. It is appended after
// the built-in list.
type ConfigRule struct {
	Name     string `yaml:"name"`
	Category string `yaml:"category"`
	Pattern  string `yaml:"pattern"`
	Weight   int    `yaml:"weight"`
}

// EscalationConfig tunes the pending-decision lifecycle
type EscalationConfig struct {
	Timeout       time.Duration `yaml:"timeout,omitempty"`        // Default: 15m
	SweepInterval time.Duration `yaml:"sweep_interval,omitempty"` // Default: 30s
}

// RetentionConfig tunes the cold-archival sweep
type RetentionConfig struct {
	DefaultFloor  time.Duration            `yaml:"default_floor,omitempty"`  // Default: 720h (30 days)
	Floors        map[string]time.Duration `yaml:"floors,omitempty"`         // Per artifact type
	SweepInterval time.Duration            `yaml:"sweep_interval,omitempty"` // Default: 1h
}

const (
	DefaultEscalationTimeout       = 15 * time.Minute
	DefaultEscalationSweepInterval = 30 * time.Second
	DefaultRetentionFloor          = 720 * time.Hour
	DefaultRetentionSweepInterval  = time.Hour
)

var sha256Hex = regexp.MustCompile(`^[0-9a-f]{64}$`)

// Validate performs strict validation on the configuration and fills in
// defaults for optional sections.
func (c *VaultConfig) Validate() error {
	// Required: version
	if c.Version != "1.0" {
		return fmt.Errorf("unsupported version: %s (expected: 1.0)", c.Version)
	}

	// Required: instance name
	if c.Instance == "" {
		return fmt.Errorf("instance name is required")
	}

	// Required: redis address
	if c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required")
	}
	if c.Redis.DB < 0 {
		return fmt.Errorf("redis.db must be >= 0, got %d", c.Redis.DB)
	}

	// Required: policy path and pinned hash
	if c.Policy.Path == "" {
		return fmt.Errorf("policy.path is required")
	}
	if !sha256Hex.MatchString(c.Policy.Hash) {
		return fmt.Errorf("policy.hash must be a hex sha256 digest")
	}

	if c.Firewall != nil {
		if err := c.Firewall.validate(); err != nil {
			return err
		}
	}

	if c.Escalation == nil {
		c.Escalation = &EscalationConfig{}
	}
	if c.Escalation.Timeout == 0 {
		c.Escalation.Timeout = DefaultEscalationTimeout
	}
	if c.Escalation.Timeout < 0 {
		return fmt.Errorf("escalation.timeout must be positive, got %s", c.Escalation.Timeout)
	}
	if c.Escalation.SweepInterval == 0 {
		c.Escalation.SweepInterval = DefaultEscalationSweepInterval
	}
	if c.Escalation.SweepInterval < 0 {
		return fmt.Errorf("escalation.sweep_interval must be positive, got %s", c.Escalation.SweepInterval)
	}

	if c.Retention == nil {
		c.Retention = &RetentionConfig{}
	}
	if c.Retention.DefaultFloor == 0 {
		c.Retention.DefaultFloor = DefaultRetentionFloor
	}
	if c.Retention.DefaultFloor < 0 {
		return fmt.Errorf("retention.default_floor must be positive, got %s", c.Retention.DefaultFloor)
	}
	if c.Retention.SweepInterval == 0 {
		c.Retention.SweepInterval = DefaultRetentionSweepInterval
	}
	for typeName, floor := range c.Retention.Floors {
		if err := vault.ArtifactType(typeName).Validate(); err != nil {
			return fmt.Errorf("retention.floors: %w", err)
		}
		if floor < 0 {
			return fmt.Errorf("retention.floors.%s must be positive, got %s", typeName, floor)
		}
	}

	return nil
}

func (f *FirewallConfig) validate() error {
	for _, t := range []struct {
		name  string
		value *int
	}{
		{"sanitize", f.Sanitize},
		{"quarantine", f.Quarantine},
		{"reject", f.Reject},
	} {
		if t.value != nil && *t.value < 1 {
			return fmt.Errorf("firewall.%s must be >= 1, got %d", t.name, *t.value)
		}
	}

	for _, rule := range f.ExtraRules {
		if rule.Name == "" {
			return fmt.Errorf("firewall extra rule is missing a name")
		}
		if rule.Pattern == "" {
			return fmt.Errorf("firewall rule '%s': pattern is required", rule.Name)
		}
		if _, err := regexp.Compile(rule.Pattern); err != nil {
			return fmt.Errorf("firewall rule '%s': invalid pattern: %w", rule.Name, err)
		}
		if rule.Weight < 1 {
			return fmt.Errorf("firewall rule '%s': weight must be >= 1, got %d", rule.Name, rule.Weight)
		}
	}

	return nil
}

// RetentionFloors converts the per-type floors into the typed map the
// tombstone sweep consumes.
func (c *VaultConfig) RetentionFloors() map[vault.ArtifactType]time.Duration {
	floors := make(map[vault.ArtifactType]time.Duration, len(c.Retention.Floors))
	for typeName, floor := range c.Retention.Floors {
		floors[vault.ArtifactType(typeName)] = floor
	}
	return floors
}

// Load reads and validates vault.yml from the specified path
func Load(path string) (*VaultConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config VaultConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}
