package commands

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bhiv/vault/internal/governance"
	"github.com/bhiv/vault/internal/policy"
	"github.com/bhiv/vault/pkg/vault"
)

func newTestApp(t *testing.T) *app {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := vault.NewClient(&redis.Options{Addr: mr.Addr()}, "test")
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	pol := policy.Default()
	return &app{
		client: client,
		policy: pol,
		gov:    governance.NewValidator(client, pol),
	}
}

func TestCheckAuthority(t *testing.T) {
	ctx := context.Background()

	t.Run("an allowed check records an approved decision", func(t *testing.T) {
		a := newTestApp(t)
		principal := vault.Principal{ID: "alice", Authority: vault.AuthorityExecutor}

		decision, err := checkAuthority(ctx, a, principal, vault.ActionCreate)
		require.NoError(t, err)
		require.NotNil(t, decision)

		stored, err := a.client.GetDecision(ctx, decision.ID)
		require.NoError(t, err)
		assert.Equal(t, vault.OutcomeApproved, stored.Outcome)
	})

	t.Run("a denial is still recorded, not just reported", func(t *testing.T) {
		a := newTestApp(t)
		principal := vault.Principal{ID: "bot-1", Authority: vault.AuthorityAIAgent}

		decision, err := checkAuthority(ctx, a, principal, vault.ActionPurge)
		require.NoError(t, err)
		require.NotNil(t, decision)

		stored, err := a.client.GetDecision(ctx, decision.ID)
		require.NoError(t, err)
		assert.Equal(t, vault.OutcomeDenied, stored.Outcome)
	})

	t.Run("an escalate outcome opens a real pending escalation", func(t *testing.T) {
		a := newTestApp(t)
		principal := vault.Principal{ID: "bot-1", Authority: vault.AuthorityAIAgent}

		decision, err := checkAuthority(ctx, a, principal, vault.ActionDelete)
		require.NoError(t, err)
		require.NotNil(t, decision)
		assert.Equal(t, vault.OutcomeEscalated, decision.Outcome)
		assert.Equal(t, vault.AuthorityExecutor, decision.AddressedTo)

		pending, err := a.client.PendingDecisionIDs(ctx)
		require.NoError(t, err)
		assert.Contains(t, pending, decision.ID)
	})
}
