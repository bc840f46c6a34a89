package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/bhiv/vault/internal/config"
	"github.com/bhiv/vault/internal/daemon"
	"github.com/bhiv/vault/internal/firewall"
	"github.com/bhiv/vault/internal/governance"
	"github.com/bhiv/vault/internal/lineage"
	"github.com/bhiv/vault/internal/policy"
	"github.com/bhiv/vault/internal/tombstone"
	"github.com/bhiv/vault/internal/truth"
	"github.com/bhiv/vault/pkg/vault"
)

func main() {
	configPath := flag.String("config", "vault.yml", "Path to the vault configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Fail closed: a policy that does not hash to the pinned constitutional
	// value must never serve.
	pol, err := policy.Load(cfg.Policy.Path, cfg.Policy.Hash)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Constitutional policy rejected: %v\n", err)
		os.Exit(1)
	}

	client, err := vault.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}, cfg.Instance)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to create vault client: %v\n", err)
		os.Exit(1)
	}
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := client.Ping(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: Redis not accessible: %v\n", err)
		os.Exit(1)
	}

	fw, err := firewall.FromConfig(cfg.Firewall)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Invalid firewall configuration: %v\n", err)
		os.Exit(1)
	}

	gov := governance.NewValidator(client, pol,
		governance.WithEscalationTimeout(cfg.Escalation.Timeout))
	index := lineage.NewIndex(client)
	tombstones := tombstone.NewManager(client, gov, index)
	engine := truth.NewEngine(client, fw, gov, index, pol)

	// Commit the constitutional root record. Idempotent across restarts.
	if _, err := engine.Bootstrap(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to bootstrap constitutional record: %v\n", err)
		os.Exit(1)
	}

	retention := tombstone.RetentionPolicy{
		DefaultFloor: cfg.Retention.DefaultFloor,
		Floors:       cfg.RetentionFloors(),
	}

	d := daemon.New(client, gov, tombstones, retention,
		cfg.Escalation.SweepInterval, cfg.Retention.SweepInterval)

	// Graceful shutdown on SIGINT/SIGTERM.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	if err := d.Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: Daemon failed: %v\n", err)
		os.Exit(1)
	}
}
