//go:build integration

package main

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/bhiv/vault/internal/daemon"
	"github.com/bhiv/vault/internal/firewall"
	"github.com/bhiv/vault/internal/governance"
	"github.com/bhiv/vault/internal/lineage"
	"github.com/bhiv/vault/internal/policy"
	"github.com/bhiv/vault/internal/tombstone"
	"github.com/bhiv/vault/internal/truth"
	"github.com/bhiv/vault/pkg/vault"
)

// setupRedis starts a Redis container for testing.
func setupRedis(t *testing.T) (string, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	redisC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	host, err := redisC.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := redisC.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	addr := fmt.Sprintf("%s:%s", host, port.Port())

	cleanup := func() {
		if err := redisC.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate Redis container: %v", err)
		}
	}

	return addr, cleanup
}

type stack struct {
	client     *vault.Client
	engine     *truth.Engine
	gov        *governance.Validator
	tombstones *tombstone.Manager
}

func newStack(t *testing.T, addr string, escalationTimeout time.Duration) *stack {
	client, err := vault.NewClient(&redis.Options{Addr: addr}, "integration")
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	pol := policy.Default()
	gov := governance.NewValidator(client, pol, governance.WithEscalationTimeout(escalationTimeout))
	index := lineage.NewIndex(client)
	return &stack{
		client:     client,
		engine:     truth.NewEngine(client, firewall.New(), gov, index, pol),
		gov:        gov,
		tombstones: tombstone.NewManager(client, gov, index),
	}
}

// TestDaemon_SweepsAndArchives drives the full background lifecycle against a
// real Redis: a timed-out escalation fails closed, and a tombstoned artifact
// past its retention floor moves to the cold archive without losing
// readability.
func TestDaemon_SweepsAndArchives(t *testing.T) {
	addr, cleanup := setupRedis(t)
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s := newStack(t, addr, 2*time.Second)

	if _, err := s.engine.Bootstrap(ctx); err != nil {
		t.Fatalf("Bootstrap failed: %v", err)
	}

	retention := tombstone.RetentionPolicy{DefaultFloor: time.Second}
	d := daemon.New(s.client, s.gov, s.tombstones, retention, 500*time.Millisecond, 500*time.Millisecond)

	errCh := make(chan error, 1)
	go func() {
		errCh <- d.Run(ctx)
	}()

	// Give the daemon time to subscribe and bind the health endpoint.
	time.Sleep(500 * time.Millisecond)

	resp, err := http.Get("http://localhost:8080/healthz")
	if err != nil {
		t.Fatalf("Health check failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Health check returned %d, want 200", resp.StatusCode)
	}

	executor := vault.Principal{ID: "alice", Authority: vault.AuthorityExecutor}
	agent := vault.Principal{ID: "bot-1", Authority: vault.AuthorityAIAgent}

	// An AI agent's delete escalates; nobody resolves it, so the sweep must
	// time it out.
	artifact, err := s.engine.Submit(ctx, truth.SubmitRequest{
		Type:      vault.TypeUserInput,
		Payload:   "record slated for deletion",
		Principal: executor,
	})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	_, err = s.tombstones.Tombstone(ctx, artifact.ID, agent, "cleanup")
	if !governance.IsEscalationRequired(err) {
		t.Fatalf("Expected escalation, got: %v", err)
	}
	escalation, ok := governance.DecisionFor(err)
	if !ok {
		t.Fatal("Escalation error carries no decision")
	}

	deadline := time.Now().Add(10 * time.Second)
	for {
		stored, err := s.client.GetDecision(ctx, escalation.ID)
		if err != nil {
			t.Fatalf("GetDecision failed: %v", err)
		}
		if stored.Outcome == vault.OutcomeTimedOut {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("Escalation never timed out, outcome still %s", stored.Outcome)
		}
		time.Sleep(200 * time.Millisecond)
	}

	// An executor's delete completes, and the archival sweep moves the target
	// to cold storage once the retention floor passes.
	if _, err := s.tombstones.Tombstone(ctx, artifact.ID, executor, "approved cleanup"); err != nil {
		t.Fatalf("Tombstone failed: %v", err)
	}

	deadline = time.Now().Add(10 * time.Second)
	for {
		hot, err := s.client.ScanArtifactIDs(ctx, artifact.ID[:12], false)
		if err != nil {
			t.Fatalf("Scan failed: %v", err)
		}
		if len(hot) == 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("Tombstoned artifact was never archived")
		}
		time.Sleep(200 * time.Millisecond)
	}

	// Archived, not erased.
	got, err := s.client.GetArtifact(ctx, artifact.ID)
	if err != nil {
		t.Fatalf("Archived artifact unreadable: %v", err)
	}
	if got.Payload != "record slated for deletion" {
		t.Fatalf("Archived payload corrupted: %q", got.Payload)
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Daemon exited with error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Daemon did not shut down")
	}
}
