// Package tombstone implements deletion without erasure. Deleting an
// artifact appends a TOMBSTONE child and flips the target's status to
// inactive; the payload is never touched. Long-dead artifacts are later
// relocated to the cold archive by a background sweep, still resolvable by
// ID.
package tombstone

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bhiv/vault/internal/governance"
	"github.com/bhiv/vault/internal/lineage"
	"github.com/bhiv/vault/pkg/vault"
)

// AlreadyTombstonedError reports a delete against an already-inactive
// artifact. Deletion is idempotent; callers usually treat this as success.
type AlreadyTombstonedError struct {
	ID string
}

func (e *AlreadyTombstonedError) Error() string {
	return fmt.Sprintf("artifact %s is already tombstoned", e.ID)
}

// IsAlreadyTombstoned returns true if the error is an AlreadyTombstonedError.
func IsAlreadyTombstoned(err error) bool {
	var a *AlreadyTombstonedError
	return errors.As(err, &a)
}

// RetentionPolicy controls the cold-archival sweep: an artifact moves to the
// cold archive only after its tombstone is older than the floor for its
// type.
type RetentionPolicy struct {
	DefaultFloor time.Duration
	Floors       map[vault.ArtifactType]time.Duration
}

// floorFor returns the retention floor for an artifact type.
func (p RetentionPolicy) floorFor(t vault.ArtifactType) time.Duration {
	if d, ok := p.Floors[t]; ok {
		return d
	}
	return p.DefaultFloor
}

// Manager drives the tombstone lifecycle.
type Manager struct {
	client *vault.Client
	gov    *governance.Validator
	index  *lineage.Index
	now    func() time.Time
}

// NewManager creates a tombstone manager.
func NewManager(client *vault.Client, gov *governance.Validator, index *lineage.Index) *Manager {
	return &Manager{client: client, gov: gov, index: index, now: time.Now}
}

// SetClock overrides the time source for tests.
func (m *Manager) SetClock(now func() time.Time) {
	m.now = now
}

// Tombstone marks an artifact deleted on behalf of a principal. The
// governance delete check runs first; AI agents escalate by policy, so their
// deletes surface as EscalationRequired rather than completing.
//
// The tombstone child bypasses the version compare-and-swap: a delete must
// be able to land even when a concurrent writer just advanced the version
// chain. Idempotency is guarded by the target's status instead.
func (m *Manager) Tombstone(ctx context.Context, artifactID string, principal vault.Principal, reason string) (*vault.Artifact, error) {
	target, err := m.client.GetArtifact(ctx, artifactID)
	if errors.Is(err, redis.Nil) {
		return nil, &vault.NotFoundError{ID: artifactID}
	}
	if err != nil {
		return nil, err
	}

	if _, err := m.gov.Authorize(ctx, principal, vault.ActionDelete, artifactID); err != nil {
		return nil, err
	}

	if target.Status == vault.StatusInactive {
		return nil, &AlreadyTombstonedError{ID: artifactID}
	}

	payload, err := json.Marshal(map[string]string{
		"tombstoned": artifactID,
		"by":         principal.ID,
		"authority":  string(principal.Authority),
		"reason":     reason,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to serialize tombstone: %w", err)
	}

	nowMs := m.now().UnixMilli()
	version := target.Version + 1
	marker := &vault.Artifact{
		ID:              vault.ComputeID(vault.TypeTombstone, artifactID, version, principal.ID, string(payload)),
		Type:            vault.TypeTombstone,
		Payload:         string(payload),
		Metadata:        map[string]string{"record": "tombstone"},
		ParentID:        artifactID,
		Version:         version,
		CreatedBy:       principal,
		CreatedAtMs:     nowMs,
		Status:          vault.StatusActive,
		FirewallVerdict: vault.VerdictAllow,
	}

	if err := m.client.CommitArtifact(ctx, marker, vault.CommitOptions{BypassVersionCAS: true}); err != nil {
		return nil, err
	}
	if err := m.index.Upsert(ctx, marker); err != nil {
		return nil, err
	}

	// Last step: the status flip. A crash before this leaves the tombstone
	// committed and the flip is recovered by re-running the delete.
	if err := m.client.MarkInactive(ctx, artifactID, nowMs); err != nil {
		return nil, err
	}

	return marker, nil
}

// PurgeToCold relocates tombstoned artifacts past their retention floor into
// the cold archive. Relocation, never erasure: archived artifacts stay
// resolvable through default reads. Idempotent on re-run. Returns the number
// of artifacts moved.
func (m *Manager) PurgeToCold(ctx context.Context, retention RetentionPolicy) (int, error) {
	ids, err := m.client.ScanArtifactIDs(ctx, "", false)
	if err != nil {
		return 0, err
	}

	nowMs := m.now().UnixMilli()
	moved := 0
	for _, id := range ids {
		a, err := m.client.GetArtifact(ctx, id)
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return moved, err
		}
		if a.Status != vault.StatusInactive {
			continue
		}

		tombstonedAtMs, err := m.tombstonedAt(ctx, id)
		if err != nil {
			return moved, err
		}
		if tombstonedAtMs == 0 {
			continue
		}

		floor := retention.floorFor(a.Type)
		if nowMs-tombstonedAtMs < floor.Milliseconds() {
			continue
		}

		didMove, err := m.client.MoveToCold(ctx, id)
		if err != nil {
			return moved, err
		}
		if didMove {
			moved++
		}
	}
	return moved, nil
}

// tombstonedAt reads the deletion timestamp MarkInactive recorded on the
// artifact hash. Zero means the field is absent.
func (m *Manager) tombstonedAt(ctx context.Context, artifactID string) (int64, error) {
	key := vault.ArtifactKey(m.client.InstanceName(), artifactID)
	ts, err := m.client.RedisClient().HGet(ctx, key, "tombstoned_at_ms").Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read tombstone timestamp: %w", err)
	}
	return ts, nil
}
