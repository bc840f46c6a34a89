package governance

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bhiv/vault/internal/policy"
	"github.com/bhiv/vault/pkg/vault"
)

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestValidator(t *testing.T) (*vault.Client, *Validator, *testClock) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := vault.NewClient(&redis.Options{Addr: mr.Addr()}, "test")
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	clock := &testClock{now: time.Now()}
	v := NewValidator(client, policy.Default(), WithClock(clock.Now))
	return client, v, clock
}

func TestAuthorize(t *testing.T) {
	ctx := context.Background()

	t.Run("allowed action yields an approved decision", func(t *testing.T) {
		client, v, _ := newTestValidator(t)

		principal := vault.Principal{ID: "alice", Authority: vault.AuthorityExecutor}
		decision, err := v.Authorize(ctx, principal, vault.ActionCreate, "")
		require.NoError(t, err)
		assert.Equal(t, vault.OutcomeApproved, decision.Outcome)
		assert.Equal(t, v.policy.Hash(), decision.PolicyHash)

		stored, err := client.GetDecision(ctx, decision.ID)
		require.NoError(t, err)
		assert.Equal(t, vault.OutcomeApproved, stored.Outcome)
	})

	t.Run("denied action yields AuthorityDenied with a recorded decision", func(t *testing.T) {
		client, v, _ := newTestValidator(t)

		principal := vault.Principal{ID: "bot-1", Authority: vault.AuthorityAIAgent}
		decision, err := v.Authorize(ctx, principal, vault.ActionPurge, "target")
		require.Error(t, err)
		assert.True(t, IsAuthorityDenied(err))
		assert.Equal(t, vault.OutcomeDenied, decision.Outcome)

		stored, err := client.GetDecision(ctx, decision.ID)
		require.NoError(t, err)
		assert.Equal(t, vault.OutcomeDenied, stored.Outcome)
	})

	t.Run("escalation is addressed to the next-higher authority", func(t *testing.T) {
		client, v, clock := newTestValidator(t)

		principal := vault.Principal{ID: "bot-1", Authority: vault.AuthorityAIAgent}
		decision, err := v.Authorize(ctx, principal, vault.ActionDelete, "target")
		require.Error(t, err)
		require.True(t, IsEscalationRequired(err))

		assert.Equal(t, vault.OutcomeEscalated, decision.Outcome)
		assert.Equal(t, vault.AuthorityExecutor, decision.AddressedTo)
		assert.Equal(t, clock.now.UnixMilli()+DefaultEscalationTimeout.Milliseconds(), decision.DeadlineAtMs)

		pending, err := client.PendingDecisionIDs(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{decision.ID}, pending)
	})

	t.Run("every decision is committed as an audit artifact", func(t *testing.T) {
		client, v, _ := newTestValidator(t)

		principal := vault.Principal{ID: "alice", Authority: vault.AuthorityExecutor}
		decision, err := v.Authorize(ctx, principal, vault.ActionCreate, "")
		require.NoError(t, err)

		ids, err := client.ScanArtifactIDs(ctx, "", false)
		require.NoError(t, err)
		require.Len(t, ids, 1)

		audit, err := client.GetArtifact(ctx, ids[0])
		require.NoError(t, err)
		assert.Equal(t, vault.TypeSystemLog, audit.Type)
		assert.Equal(t, decision.ID, audit.Metadata["decision_id"])
		assert.Contains(t, audit.Payload, decision.ID)
	})
}

func TestResolve(t *testing.T) {
	ctx := context.Background()

	escalate := func(t *testing.T, v *Validator) *vault.Decision {
		t.Helper()
		principal := vault.Principal{ID: "bot-1", Authority: vault.AuthorityAIAgent}
		decision, err := v.Authorize(ctx, principal, vault.ActionDelete, "target")
		require.True(t, IsEscalationRequired(err))
		return decision
	}

	t.Run("the addressed authority approves", func(t *testing.T) {
		client, v, _ := newTestValidator(t)
		decision := escalate(t, v)

		resolver := vault.Principal{ID: "alice", Authority: vault.AuthorityExecutor}
		resolved, err := v.Resolve(ctx, decision.ID, resolver, true, "verified manually")
		require.NoError(t, err)
		assert.Equal(t, vault.OutcomeApproved, resolved.Outcome)
		assert.Equal(t, "alice", resolved.ResolvedBy)
		assert.Equal(t, "verified manually", resolved.Rationale)

		pending, err := client.PendingDecisionIDs(ctx)
		require.NoError(t, err)
		assert.Empty(t, pending)
	})

	t.Run("a higher authority may also deny", func(t *testing.T) {
		_, v, _ := newTestValidator(t)
		decision := escalate(t, v)

		resolver := vault.Principal{ID: "dana", Authority: vault.AuthorityDataSovereign}
		resolved, err := v.Resolve(ctx, decision.ID, resolver, false, "not warranted")
		require.NoError(t, err)
		assert.Equal(t, vault.OutcomeDenied, resolved.Outcome)
	})

	t.Run("a lower authority may not resolve", func(t *testing.T) {
		_, v, _ := newTestValidator(t)
		decision := escalate(t, v)

		resolver := vault.Principal{ID: "bot-2", Authority: vault.AuthorityAIAgent}
		_, err := v.Resolve(ctx, decision.ID, resolver, true, "")
		require.Error(t, err)
		assert.True(t, IsAuthorityDenied(err))

		// The escalation is still pending.
		stored, err := v.client.GetDecision(ctx, decision.ID)
		require.NoError(t, err)
		assert.True(t, stored.Pending())
	})

	t.Run("no principal resolves its own escalation", func(t *testing.T) {
		_, v, _ := newTestValidator(t)
		decision := escalate(t, v)

		// Same principal ID presenting a sufficient authority.
		resolver := vault.Principal{ID: "bot-1", Authority: vault.AuthorityExecutor}
		_, err := v.Resolve(ctx, decision.ID, resolver, true, "")
		require.Error(t, err)
		assert.True(t, IsAuthorityDenied(err))
	})

	t.Run("resolving a settled decision fails", func(t *testing.T) {
		_, v, _ := newTestValidator(t)
		decision := escalate(t, v)

		resolver := vault.Principal{ID: "alice", Authority: vault.AuthorityExecutor}
		_, err := v.Resolve(ctx, decision.ID, resolver, true, "")
		require.NoError(t, err)

		_, err = v.Resolve(ctx, decision.ID, resolver, false, "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "already approved")
	})

	t.Run("unknown decision", func(t *testing.T) {
		_, v, _ := newTestValidator(t)

		resolver := vault.Principal{ID: "alice", Authority: vault.AuthorityExecutor}
		_, err := v.Resolve(ctx, "missing", resolver, true, "")
		require.Error(t, err)
		assert.True(t, vault.IsNotFound(err))
	})
}

func TestSweepTimeouts(t *testing.T) {
	ctx := context.Background()
	client, v, clock := newTestValidator(t)

	principal := vault.Principal{ID: "bot-1", Authority: vault.AuthorityAIAgent}
	decision, err := v.Authorize(ctx, principal, vault.ActionDelete, "target")
	require.True(t, IsEscalationRequired(err))

	t.Run("nothing due before the deadline", func(t *testing.T) {
		swept, err := v.SweepTimeouts(ctx)
		require.NoError(t, err)
		assert.Zero(t, swept)
	})

	t.Run("past the deadline the escalation fails closed", func(t *testing.T) {
		clock.Advance(DefaultEscalationTimeout + time.Second)

		swept, err := v.SweepTimeouts(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, swept)

		stored, err := client.GetDecision(ctx, decision.ID)
		require.NoError(t, err)
		assert.Equal(t, vault.OutcomeTimedOut, stored.Outcome)

		pending, err := client.PendingDecisionIDs(ctx)
		require.NoError(t, err)
		assert.Empty(t, pending)
	})

	t.Run("sweep is idempotent", func(t *testing.T) {
		swept, err := v.SweepTimeouts(ctx)
		require.NoError(t, err)
		assert.Zero(t, swept)
	})
}

func TestCancel(t *testing.T) {
	ctx := context.Background()
	_, v, _ := newTestValidator(t)

	principal := vault.Principal{ID: "bot-1", Authority: vault.AuthorityAIAgent}
	decision, err := v.Authorize(ctx, principal, vault.ActionDelete, "target")
	require.True(t, IsEscalationRequired(err))

	t.Run("an unrelated low authority may not cancel", func(t *testing.T) {
		outsider := vault.Principal{ID: "bot-9", Authority: vault.AuthorityAIAgent}
		_, err := v.Cancel(ctx, decision.ID, outsider, "")
		require.Error(t, err)
	})

	t.Run("the requester withdraws its own escalation", func(t *testing.T) {
		cancelled, err := v.Cancel(ctx, decision.ID, principal, "changed my mind")
		require.NoError(t, err)
		assert.Equal(t, vault.OutcomeDenied, cancelled.Outcome)
		assert.Equal(t, "changed my mind", cancelled.Rationale)
	})
}
