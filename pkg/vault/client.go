package vault

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

// Client provides instance-scoped Redis operations for the vault ledger.
// All keys and channels are automatically namespaced with the instance name.
// The client is thread-safe and can be used concurrently from multiple
// goroutines.
//
// The client enforces the storage-level half of the constitutional rules:
// commits are append-only, version-creating commits are a compare-and-swap
// against the parent's version head, and no primitive exists to rewrite a
// committed artifact's content.
type Client struct {
	rdb          *redis.Client
	instanceName string
}

// CommitOptions controls how CommitArtifact applies concurrency checks.
type CommitOptions struct {
	// ExpectedParentVersion is the parent version the caller read before
	// building the child. The commit fails with VersionConflictError if the
	// parent's version head no longer matches. Ignored for roots.
	ExpectedParentVersion int

	// BypassVersionCAS skips the version-head compare-and-swap. Used only by
	// the tombstone path, which must be able to land next to a concurrent
	// version child; tombstone idempotency is guarded separately.
	BypassVersionCAS bool
}

// NewClient creates a new vault client for the specified instance.
//
// Parameters:
//   - redisOpts: Redis connection options (address, password, DB, etc.)
//   - instanceName: vault instance identifier (must not be empty)
//
// Returns an error if instanceName is empty.
func NewClient(redisOpts *redis.Options, instanceName string) (*Client, error) {
	if instanceName == "" {
		return nil, fmt.Errorf("instance name cannot be empty")
	}

	return &Client{
		rdb:          redis.NewClient(redisOpts),
		instanceName: instanceName,
	}, nil
}

// Close closes the Redis connection. Implements io.Closer.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping verifies Redis connectivity. Useful for health checks.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// RedisClient exposes the underlying Redis client for SCAN-based iteration.
func (c *Client) RedisClient() *redis.Client {
	return c.rdb
}

// InstanceName returns the namespace this client operates in.
func (c *Client) InstanceName() string {
	return c.instanceName
}

// CommitArtifact appends an artifact to the ledger and publishes a commit
// event. The artifact is validated first. Re-committing an existing ID is a
// no-op: IDs are content-derived, so an identical replay cannot change
// anything.
//
// For non-root artifacts the commit runs under WATCH on the parent's version
// head. The parent must exist, the child's version must be exactly
// parent.Version+1, and (unless BypassVersionCAS is set) the head must still
// equal ExpectedParentVersion at commit time. Exactly one of two racing
// commits against the same parent succeeds; the loser receives a
// VersionConflictError.
func (c *Client) CommitArtifact(ctx context.Context, a *Artifact, opts CommitOptions) error {
	if err := a.Validate(); err != nil {
		return fmt.Errorf("invalid artifact: %w", err)
	}

	key := ArtifactKey(c.instanceName, a.ID)

	// Idempotent replay: same ID means same content at the same lineage
	// position, so there is nothing to do.
	exists, err := c.rdb.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("failed to check artifact existence: %w", err)
	}
	if exists > 0 {
		return nil
	}

	hash, err := ArtifactToHash(a)
	if err != nil {
		return fmt.Errorf("failed to serialize artifact: %w", err)
	}

	if a.IsRoot() {
		if err := c.commitRoot(ctx, key, a, hash); err != nil {
			return err
		}
	} else {
		if err := c.commitChild(ctx, key, a, hash, opts); err != nil {
			return err
		}
	}

	// Publish event only after the commit is durable so no subscriber ever
	// observes an artifact that does not exist.
	artifactJSON, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("failed to marshal artifact for event: %w", err)
	}

	channel := ArtifactEventsChannel(c.instanceName)
	if err := c.rdb.Publish(ctx, channel, artifactJSON).Err(); err != nil {
		return fmt.Errorf("failed to publish artifact event: %w", err)
	}

	return nil
}

func (c *Client) commitRoot(ctx context.Context, key string, a *Artifact, hash map[string]interface{}) error {
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, hash)
		pipe.Set(ctx, HeadKey(c.instanceName, a.ID), a.Version, 0)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to commit root artifact: %w", err)
	}
	return nil
}

func (c *Client) commitChild(ctx context.Context, key string, a *Artifact, hash map[string]interface{}, opts CommitOptions) error {
	parentKey := ArtifactKey(c.instanceName, a.ParentID)
	coldParentKey := ColdArtifactKey(c.instanceName, a.ParentID)
	headKey := HeadKey(c.instanceName, a.ParentID)

	txf := func(tx *redis.Tx) error {
		parentVersionField, err := tx.HGet(ctx, parentKey, "version").Result()
		if errors.Is(err, redis.Nil) {
			// Parent may have been archived; cold artifacts still anchor
			// lineage.
			parentVersionField, err = tx.HGet(ctx, coldParentKey, "version").Result()
			if errors.Is(err, redis.Nil) {
				return &NotFoundError{ID: a.ParentID}
			}
		}
		if err != nil {
			return fmt.Errorf("failed to read parent artifact: %w", err)
		}

		parentVersion, err := tx.Get(ctx, headKey).Int()
		if errors.Is(err, redis.Nil) {
			// Head key missing (e.g. restored backup): fall back to the
			// parent's own committed version.
			if _, convErr := fmt.Sscanf(parentVersionField, "%d", &parentVersion); convErr != nil {
				return fmt.Errorf("corrupt parent version field %q: %w", parentVersionField, convErr)
			}
		} else if err != nil {
			return fmt.Errorf("failed to read version head: %w", err)
		}

		if !opts.BypassVersionCAS && parentVersion != opts.ExpectedParentVersion {
			return &VersionConflictError{
				ParentID: a.ParentID,
				Expected: opts.ExpectedParentVersion,
				Observed: parentVersion,
			}
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, hash)
			pipe.Set(ctx, HeadKey(c.instanceName, a.ID), a.Version, 0)
			if !opts.BypassVersionCAS {
				pipe.Set(ctx, headKey, a.Version, 0)
			}
			return nil
		})
		return err
	}

	err := c.rdb.Watch(ctx, txf, headKey)
	if errors.Is(err, redis.TxFailedErr) {
		// Another writer touched the version head between our read and the
		// EXEC. The caller must re-read the parent and decide whether to
		// resubmit.
		return &VersionConflictError{
			ParentID: a.ParentID,
			Expected: opts.ExpectedParentVersion,
		}
	}
	return err
}

// GetArtifact retrieves an artifact by ID, reading hot storage first and
// falling back to the cold archive. Returns (nil, redis.Nil) if the artifact
// exists in neither. Use IsNotFound() to check for not-found errors.
func (c *Client) GetArtifact(ctx context.Context, artifactID string) (*Artifact, error) {
	hashData, err := c.rdb.HGetAll(ctx, ArtifactKey(c.instanceName, artifactID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact from Redis: %w", err)
	}

	if len(hashData) == 0 {
		hashData, err = c.rdb.HGetAll(ctx, ColdArtifactKey(c.instanceName, artifactID)).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to read archived artifact from Redis: %w", err)
		}
	}

	// HGetAll returns an empty map for non-existent keys.
	if len(hashData) == 0 {
		return nil, redis.Nil
	}

	artifact, err := HashToArtifact(hashData)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize artifact: %w", err)
	}

	return artifact, nil
}

// ArtifactExists checks hot and cold storage without fetching the payload.
func (c *Client) ArtifactExists(ctx context.Context, artifactID string) (bool, error) {
	exists, err := c.rdb.Exists(ctx,
		ArtifactKey(c.instanceName, artifactID),
		ColdArtifactKey(c.instanceName, artifactID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check artifact existence: %w", err)
	}
	return exists > 0, nil
}

// MarkInactive flips an artifact's status to inactive. This is the single
// permitted post-commit field write, performed only by the tombstone path.
// Payload, ID, parent and version are never touched.
func (c *Client) MarkInactive(ctx context.Context, artifactID string, tombstonedAtMs int64) error {
	key := ArtifactKey(c.instanceName, artifactID)
	exists, err := c.rdb.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("failed to check artifact existence: %w", err)
	}
	if exists == 0 {
		key = ColdArtifactKey(c.instanceName, artifactID)
	}

	err = c.rdb.HSet(ctx, key, map[string]interface{}{
		"status":           string(StatusInactive),
		"tombstoned_at_ms": tombstonedAtMs,
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to mark artifact inactive: %w", err)
	}
	return nil
}

// AddChild records a parent->child lineage edge. SADD is idempotent, so
// replaying the upsert after a crash never corrupts the index.
func (c *Client) AddChild(ctx context.Context, parentID, childID string) error {
	if err := c.rdb.SAdd(ctx, ChildrenKey(c.instanceName, parentID), childID).Err(); err != nil {
		return fmt.Errorf("failed to record lineage edge: %w", err)
	}
	return nil
}

// ChildrenIDs returns the recorded immediate children of an artifact.
// Returns an empty slice if none exist (not an error).
func (c *Client) ChildrenIDs(ctx context.Context, parentID string) ([]string, error) {
	ids, err := c.rdb.SMembers(ctx, ChildrenKey(c.instanceName, parentID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read children set: %w", err)
	}
	return ids, nil
}

// ScanArtifactIDs iterates artifact keys matching an ID prefix using SCAN
// and returns the matching IDs. Cold storage is included when includeCold is
// set, so archived artifacts stay resolvable.
func (c *Client) ScanArtifactIDs(ctx context.Context, idPrefix string, includeCold bool) ([]string, error) {
	patterns := []string{ArtifactScanPattern(c.instanceName, idPrefix)}
	prefixes := []string{fmt.Sprintf("vault:%s:artifact:", c.instanceName)}
	if includeCold {
		patterns = append(patterns, ColdArtifactScanPattern(c.instanceName, idPrefix))
		prefixes = append(prefixes, fmt.Sprintf("vault:%s:cold:artifact:", c.instanceName))
	}

	var ids []string
	seen := make(map[string]struct{})
	for i, pattern := range patterns {
		iter := c.rdb.Scan(ctx, 0, pattern, 0).Iterator()
		for iter.Next(ctx) {
			id := strings.TrimPrefix(iter.Val(), prefixes[i])
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
		if err := iter.Err(); err != nil {
			return nil, fmt.Errorf("failed to scan artifacts: %w", err)
		}
	}

	return ids, nil
}

// MoveToCold relocates a hot artifact into the cold archive. The content is
// copied first and the hot key deleted after, so a crash between the two
// steps leaves the artifact readable. Re-running on an already-archived
// artifact is a no-op. Returns true if the artifact was moved by this call.
func (c *Client) MoveToCold(ctx context.Context, artifactID string) (bool, error) {
	hotKey := ArtifactKey(c.instanceName, artifactID)
	coldKey := ColdArtifactKey(c.instanceName, artifactID)

	hashData, err := c.rdb.HGetAll(ctx, hotKey).Result()
	if err != nil {
		return false, fmt.Errorf("failed to read artifact for archival: %w", err)
	}
	if len(hashData) == 0 {
		// Already archived (or never existed): nothing to relocate.
		return false, nil
	}

	fields := make(map[string]interface{}, len(hashData))
	for k, v := range hashData {
		fields[k] = v
	}

	_, err = c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, coldKey, fields)
		pipe.Del(ctx, hotKey)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to archive artifact: %w", err)
	}

	return true, nil
}

// PutDecision writes a governance decision and publishes a decision event.
// Pending escalations are tracked in a deadline-scored ZSET so the timeout
// sweeper can find them without scanning.
func (c *Client) PutDecision(ctx context.Context, d *Decision) error {
	if err := d.Validate(); err != nil {
		return fmt.Errorf("invalid decision: %w", err)
	}

	key := DecisionKey(c.instanceName, d.ID)
	pendingKey := PendingDecisionsKey(c.instanceName)

	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, DecisionToHash(d))
		if d.Pending() {
			pipe.ZAdd(ctx, pendingKey, redis.Z{Score: float64(d.DeadlineAtMs), Member: d.ID})
		} else {
			pipe.ZRem(ctx, pendingKey, d.ID)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to write decision: %w", err)
	}

	decisionJSON, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("failed to marshal decision for event: %w", err)
	}

	if err := c.rdb.Publish(ctx, DecisionEventsChannel(c.instanceName), decisionJSON).Err(); err != nil {
		return fmt.Errorf("failed to publish decision event: %w", err)
	}

	return nil
}

// GetDecision retrieves a governance decision by ID.
// Returns (nil, redis.Nil) if the decision doesn't exist.
func (c *Client) GetDecision(ctx context.Context, decisionID string) (*Decision, error) {
	hashData, err := c.rdb.HGetAll(ctx, DecisionKey(c.instanceName, decisionID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read decision from Redis: %w", err)
	}

	if len(hashData) == 0 {
		return nil, redis.Nil
	}

	decision, err := HashToDecision(hashData)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize decision: %w", err)
	}

	return decision, nil
}

// PendingDecisionIDs returns all currently pending escalations, ordered by
// deadline.
func (c *Client) PendingDecisionIDs(ctx context.Context) ([]string, error) {
	ids, err := c.rdb.ZRangeByScore(ctx, PendingDecisionsKey(c.instanceName), &redis.ZRangeBy{
		Min: "-inf",
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list pending decisions: %w", err)
	}
	return ids, nil
}

// DuePendingDecisionIDs returns pending escalations whose deadline has
// passed as of nowMs.
func (c *Client) DuePendingDecisionIDs(ctx context.Context, nowMs int64) ([]string, error) {
	ids, err := c.rdb.ZRangeByScore(ctx, PendingDecisionsKey(c.instanceName), &redis.ZRangeBy{
		Min: "-inf",
		Max: fmt.Sprintf("%d", nowMs),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list due decisions: %w", err)
	}
	return ids, nil
}
