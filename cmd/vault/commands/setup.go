package commands

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/bhiv/vault/internal/config"
	"github.com/bhiv/vault/internal/firewall"
	"github.com/bhiv/vault/internal/governance"
	"github.com/bhiv/vault/internal/lineage"
	"github.com/bhiv/vault/internal/policy"
	"github.com/bhiv/vault/internal/printer"
	"github.com/bhiv/vault/internal/tombstone"
	"github.com/bhiv/vault/internal/truth"
	"github.com/bhiv/vault/pkg/vault"
)

// app bundles everything a command needs after boot. Every command goes
// through setup(), so no command can run against an unverified policy.
type app struct {
	cfg        *config.VaultConfig
	client     *vault.Client
	policy     *policy.Policy
	engine     *truth.Engine
	gov        *governance.Validator
	index      *lineage.Index
	tombstones *tombstone.Manager
}

func (a *app) close() {
	if a.client != nil {
		a.client.Close()
	}
}

// setup loads vault.yml, verifies the constitutional policy hash, connects
// to Redis and assembles the engine. A policy hash mismatch refuses to serve
// anything.
func setup(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, printer.Error(
			"configuration error",
			fmt.Sprintf("Failed to load %s: %v", configPath, err),
			[]string{"Generate a starter configuration:\n  vault init"},
		)
	}

	pol, err := policy.Load(cfg.Policy.Path, cfg.Policy.Hash)
	if err != nil {
		return nil, printer.ErrorWithContext(
			"constitutional policy rejected",
			"The policy file does not match the pinned hash. Refusing to serve.",
			map[string]string{"path": cfg.Policy.Path},
			[]string{
				"If the policy change is intentional, update policy.hash in vault.yml",
				"Otherwise restore the policy file from a trusted copy",
			},
		)
	}

	name := cfg.Instance
	if instanceName != "" {
		name = instanceName
	}

	client, err := vault.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}, name)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}

	if err := client.Ping(ctx); err != nil {
		client.Close()
		return nil, printer.ErrorWithContext(
			"Redis connection failed",
			fmt.Sprintf("Could not connect to Redis at %s", cfg.Redis.Addr),
			nil,
			[]string{"Check that Redis is running and redis.addr in vault.yml is correct"},
		)
	}

	fw, err := firewall.FromConfig(cfg.Firewall)
	if err != nil {
		client.Close()
		return nil, err
	}

	gov := governance.NewValidator(client, pol,
		governance.WithEscalationTimeout(cfg.Escalation.Timeout))
	index := lineage.NewIndex(client)
	engine := truth.NewEngine(client, fw, gov, index, pol)
	tombstones := tombstone.NewManager(client, gov, index)

	return &app{
		cfg:        cfg,
		client:     client,
		policy:     pol,
		engine:     engine,
		gov:        gov,
		index:      index,
		tombstones: tombstones,
	}, nil
}

// parsePrincipal builds the acting principal from the shared flags.
func parsePrincipal(principalID, authorityName string) (vault.Principal, error) {
	if principalID == "" {
		return vault.Principal{}, printer.Error(
			"missing principal",
			"Every mutating command must name the acting principal.",
			[]string{"Pass --principal <id> --authority <level>"},
		)
	}

	authority := vault.Authority(authorityName)
	if err := authority.Validate(); err != nil {
		return vault.Principal{}, printer.Error(
			"invalid authority",
			err.Error(),
			[]string{"Valid authorities: data_sovereign, strategic_advisor, executor, ai_agent"},
		)
	}

	return vault.Principal{ID: principalID, Authority: authority}, nil
}
