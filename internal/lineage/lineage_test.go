package lineage

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bhiv/vault/pkg/vault"
)

func newTestIndex(t *testing.T) (*vault.Client, *Index) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := vault.NewClient(&redis.Options{Addr: mr.Addr()}, "test")
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client, NewIndex(client)
}

// commitChain commits a root and n-1 chained descendants, upserting the
// index after each commit, and returns the artifacts in chain order.
func commitChain(t *testing.T, client *vault.Client, index *Index, n int) []*vault.Artifact {
	t.Helper()
	ctx := context.Background()
	principal := vault.Principal{ID: "tester", Authority: vault.AuthorityExecutor}

	chain := make([]*vault.Artifact, 0, n)
	parentID := ""
	for i := 1; i <= n; i++ {
		payload := fmt.Sprintf("step %d", i)
		a := &vault.Artifact{
			ID:              vault.ComputeID(vault.TypeUserInput, parentID, i, principal.ID, payload),
			Type:            vault.TypeUserInput,
			Payload:         payload,
			ParentID:        parentID,
			Version:         i,
			CreatedBy:       principal,
			CreatedAtMs:     time.Now().UnixMilli(),
			Status:          vault.StatusActive,
			FirewallVerdict: vault.VerdictAllow,
		}
		opts := vault.CommitOptions{}
		if parentID != "" {
			opts.ExpectedParentVersion = i - 1
		}
		require.NoError(t, client.CommitArtifact(ctx, a, opts))
		require.NoError(t, index.Upsert(ctx, a))
		chain = append(chain, a)
		parentID = a.ID
	}
	return chain
}

func TestAncestors(t *testing.T) {
	ctx := context.Background()

	t.Run("chain walks root-first with length depth+1", func(t *testing.T) {
		client, index := newTestIndex(t)
		chain := commitChain(t, client, index, 4)

		ancestors, err := index.Ancestors(ctx, chain[3].ID)
		require.NoError(t, err)
		require.Len(t, ancestors, 4)

		for i, a := range ancestors {
			assert.Equal(t, chain[i].ID, a.ID)
		}
	})

	t.Run("a root is its own whole lineage", func(t *testing.T) {
		client, index := newTestIndex(t)
		chain := commitChain(t, client, index, 1)

		ancestors, err := index.Ancestors(ctx, chain[0].ID)
		require.NoError(t, err)
		require.Len(t, ancestors, 1)
		assert.Equal(t, chain[0].ID, ancestors[0].ID)
	})

	t.Run("no repeated ids", func(t *testing.T) {
		client, index := newTestIndex(t)
		chain := commitChain(t, client, index, 5)

		ancestors, err := index.Ancestors(ctx, chain[4].ID)
		require.NoError(t, err)

		seen := make(map[string]bool)
		for _, a := range ancestors {
			assert.False(t, seen[a.ID], "ancestor %s repeated", a.ID)
			seen[a.ID] = true
		}
	})

	t.Run("unknown artifact", func(t *testing.T) {
		_, index := newTestIndex(t)
		_, err := index.Ancestors(ctx, "doesnotexist")
		require.Error(t, err)
		assert.True(t, vault.IsNotFound(err))
	})
}

func TestChildren(t *testing.T) {
	ctx := context.Background()
	client, index := newTestIndex(t)
	principal := vault.Principal{ID: "tester", Authority: vault.AuthorityExecutor}

	chain := commitChain(t, client, index, 1)
	root := chain[0]

	// Two children under the same root: a version and a tombstone.
	version := &vault.Artifact{
		ID:              vault.ComputeID(vault.TypeUserInput, root.ID, 2, principal.ID, "v2"),
		Type:            vault.TypeUserInput,
		Payload:         "v2",
		ParentID:        root.ID,
		Version:         2,
		CreatedBy:       principal,
		CreatedAtMs:     time.Now().UnixMilli(),
		Status:          vault.StatusActive,
		FirewallVerdict: vault.VerdictAllow,
	}
	require.NoError(t, client.CommitArtifact(ctx, version, vault.CommitOptions{ExpectedParentVersion: 1}))
	require.NoError(t, index.Upsert(ctx, version))

	marker := &vault.Artifact{
		ID:              vault.ComputeID(vault.TypeTombstone, root.ID, 2, principal.ID, "bye"),
		Type:            vault.TypeTombstone,
		Payload:         "bye",
		ParentID:        root.ID,
		Version:         2,
		CreatedBy:       principal,
		CreatedAtMs:     time.Now().UnixMilli(),
		Status:          vault.StatusActive,
		FirewallVerdict: vault.VerdictAllow,
	}
	require.NoError(t, client.CommitArtifact(ctx, marker, vault.CommitOptions{BypassVersionCAS: true}))
	require.NoError(t, index.Upsert(ctx, marker))

	children, err := index.Children(ctx, root.ID)
	require.NoError(t, err)
	require.Len(t, children, 2)

	ids := []string{children[0].ID, children[1].ID}
	assert.ElementsMatch(t, []string{version.ID, marker.ID}, ids)
}

func TestDescendants(t *testing.T) {
	ctx := context.Background()
	client, index := newTestIndex(t)
	chain := commitChain(t, client, index, 4)

	t.Run("walker yields the full subtree lazily", func(t *testing.T) {
		walker, err := index.Descendants(ctx, chain[0].ID)
		require.NoError(t, err)

		var got []string
		for {
			a, err := walker.Next(ctx)
			require.NoError(t, err)
			if a == nil {
				break
			}
			got = append(got, a.ID)
		}

		assert.ElementsMatch(t, []string{chain[1].ID, chain[2].ID, chain[3].ID}, got)
	})

	t.Run("the subject itself is excluded", func(t *testing.T) {
		walker, err := index.Descendants(ctx, chain[0].ID)
		require.NoError(t, err)

		all, err := walker.Collect(ctx)
		require.NoError(t, err)
		for _, a := range all {
			assert.NotEqual(t, chain[0].ID, a.ID)
		}
	})

	t.Run("a leaf has no descendants", func(t *testing.T) {
		walker, err := index.Descendants(ctx, chain[3].ID)
		require.NoError(t, err)

		a, err := walker.Next(ctx)
		require.NoError(t, err)
		assert.Nil(t, a)
	})
}

func TestRebuild(t *testing.T) {
	ctx := context.Background()
	client, index := newTestIndex(t)
	chain := commitChain(t, client, index, 3)

	// Simulate a lost index: drop every children set.
	for _, a := range chain {
		require.NoError(t, client.RedisClient().Del(ctx, vault.ChildrenKey("test", a.ID)).Err())
	}

	children, err := index.Children(ctx, chain[0].ID)
	require.NoError(t, err)
	require.Empty(t, children)

	edges, err := index.Rebuild(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, edges)

	children, err = index.Children(ctx, chain[0].ID)
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, chain[1].ID, children[0].ID)
}
