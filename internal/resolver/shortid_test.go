package resolver

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bhiv/vault/pkg/vault"
)

func newTestClient(t *testing.T) *vault.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := vault.NewClient(&redis.Options{Addr: mr.Addr()}, "test")
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

// commitWithID stores an artifact under a crafted ID so tests can control
// the prefix landscape.
func commitWithID(t *testing.T, client *vault.Client, id string) {
	t.Helper()
	require.Len(t, id, vault.IDLength)
	a := &vault.Artifact{
		ID:              id,
		Type:            vault.TypeUserInput,
		Payload:         "payload for " + id[:8],
		Version:         1,
		CreatedBy:       vault.Principal{ID: "tester", Authority: vault.AuthorityExecutor},
		CreatedAtMs:     time.Now().UnixMilli(),
		Status:          vault.StatusActive,
		FirewallVerdict: vault.VerdictAllow,
	}
	require.NoError(t, client.CommitArtifact(context.Background(), a, vault.CommitOptions{}))
}

func paddedID(prefix string) string {
	return prefix + strings.Repeat("0", vault.IDLength-len(prefix))
}

func TestResolveArtifactID(t *testing.T) {
	ctx := context.Background()

	t.Run("full ID resolves to itself", func(t *testing.T) {
		client := newTestClient(t)
		id := paddedID("deadbeef")
		commitWithID(t, client, id)

		resolved, err := ResolveArtifactID(ctx, client, id)
		require.NoError(t, err)
		assert.Equal(t, id, resolved)
	})

	t.Run("full ID that does not exist", func(t *testing.T) {
		client := newTestClient(t)

		_, err := ResolveArtifactID(ctx, client, paddedID("deadbeef"))
		require.Error(t, err)
		assert.True(t, IsNotFoundError(err))
	})

	t.Run("unique prefix resolves", func(t *testing.T) {
		client := newTestClient(t)
		id := paddedID("deadbeef")
		commitWithID(t, client, id)
		commitWithID(t, client, paddedID("cafe1234"))

		resolved, err := ResolveArtifactID(ctx, client, "deadbe")
		require.NoError(t, err)
		assert.Equal(t, id, resolved)
	})

	t.Run("uppercase input is accepted", func(t *testing.T) {
		client := newTestClient(t)
		id := paddedID("deadbeef")
		commitWithID(t, client, id)

		resolved, err := ResolveArtifactID(ctx, client, "DEADBE")
		require.NoError(t, err)
		assert.Equal(t, id, resolved)
	})

	t.Run("ambiguous prefix lists all matches", func(t *testing.T) {
		client := newTestClient(t)
		first := paddedID("deadbeef11")
		second := paddedID("deadbeef22")
		commitWithID(t, client, first)
		commitWithID(t, client, second)

		_, err := ResolveArtifactID(ctx, client, "deadbe")
		require.Error(t, err)
		require.True(t, IsAmbiguousError(err))

		ambiguous := err.(*AmbiguousError)
		assert.ElementsMatch(t, []string{first, second}, ambiguous.Matches)

		// A longer prefix disambiguates.
		resolved, err := ResolveArtifactID(ctx, client, "deadbeef1")
		require.NoError(t, err)
		assert.Equal(t, first, resolved)
	})

	t.Run("too short a prefix is refused", func(t *testing.T) {
		client := newTestClient(t)

		_, err := ResolveArtifactID(ctx, client, "dead")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "at least 6 characters")
	})

	t.Run("cold-archived artifacts stay resolvable", func(t *testing.T) {
		client := newTestClient(t)
		id := paddedID("deadbeef")
		commitWithID(t, client, id)

		moved, err := client.MoveToCold(ctx, id)
		require.NoError(t, err)
		require.True(t, moved)

		resolved, err := ResolveArtifactID(ctx, client, "deadbe")
		require.NoError(t, err)
		assert.Equal(t, id, resolved)
	})
}

func TestFormatAmbiguousError(t *testing.T) {
	matches := make([]string, 12)
	for i := range matches {
		matches[i] = paddedID("deadbeef")
	}
	msg := FormatAmbiguousError(&AmbiguousError{ShortID: "deadbe", Matches: matches})

	assert.Contains(t, msg, "matches 12 artifacts")
	assert.Contains(t, msg, "...and 2 more")
	assert.Contains(t, msg, "longer prefix")
}
