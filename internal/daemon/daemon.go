// Package daemon runs the vault's background maintenance loop: the
// escalation timeout sweeper, the cold-archival sweep, and a health
// endpoint. The daemon never admits content itself; everything it does is
// driven by state the CLI and library clients already committed.
package daemon

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/bhiv/vault/internal/governance"
	"github.com/bhiv/vault/internal/tombstone"
	"github.com/bhiv/vault/pkg/vault"
)

// Daemon owns the background loop for one vault instance.
type Daemon struct {
	client       *vault.Client
	gov          *governance.Validator
	tombstones   *tombstone.Manager
	retention    tombstone.RetentionPolicy
	sweepEvery   time.Duration
	archiveEvery time.Duration
	healthServer *HealthServer
}

// New creates a daemon.
func New(client *vault.Client, gov *governance.Validator, tombstones *tombstone.Manager, retention tombstone.RetentionPolicy, sweepEvery, archiveEvery time.Duration) *Daemon {
	return &Daemon{
		client:       client,
		gov:          gov,
		tombstones:   tombstones,
		retention:    retention,
		sweepEvery:   sweepEvery,
		archiveEvery: archiveEvery,
		healthServer: NewHealthServer(client),
	}
}

// Run starts the daemon and blocks until the context is cancelled.
func (d *Daemon) Run(ctx context.Context) error {
	if err := d.healthServer.Start(); err != nil {
		return fmt.Errorf("failed to start health server: %w", err)
	}
	defer d.healthServer.Shutdown(context.Background())

	log.Printf("[Daemon] Starting for instance '%s'", d.client.InstanceName())

	// Subscribe to decision events so escalation activity is visible in the
	// daemon log as it happens.
	subscription, err := d.client.SubscribeDecisionEvents(ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe to decision events: %w", err)
	}
	defer subscription.Close()

	log.Printf("[Daemon] Subscribed to decision_events")

	sweepTicker := time.NewTicker(d.sweepEvery)
	defer sweepTicker.Stop()

	archiveTicker := time.NewTicker(d.archiveEvery)
	defer archiveTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("[Daemon] Shutting down...")
			return nil

		case decision, ok := <-subscription.Events():
			if !ok {
				log.Printf("[Daemon] Subscription closed")
				return nil
			}
			log.Printf("[Daemon] Decision %s: action=%s principal=%s outcome=%s",
				decision.ID, decision.Action, decision.Principal.ID, decision.Outcome)

		case err, ok := <-subscription.Errors():
			if !ok {
				log.Printf("[Daemon] Error channel closed")
				return nil
			}
			// Non-fatal: keep the loop running through transient Redis noise.
			log.Printf("[Daemon] Subscription error: %v", err)

		case <-sweepTicker.C:
			swept, err := d.gov.SweepTimeouts(ctx)
			if err != nil {
				log.Printf("[Daemon] Escalation sweep failed: %v", err)
				continue
			}
			if swept > 0 {
				log.Printf("[Daemon] Timed out %d pending escalation(s)", swept)
			}

		case <-archiveTicker.C:
			moved, err := d.tombstones.PurgeToCold(ctx, d.retention)
			if err != nil {
				log.Printf("[Daemon] Cold-archival sweep failed: %v", err)
				continue
			}
			if moved > 0 {
				log.Printf("[Daemon] Archived %d tombstoned artifact(s) to cold storage", moved)
			}
		}
	}
}
