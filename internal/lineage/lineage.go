// Package lineage maintains and queries the provenance graph: the
// parent/child edges between committed artifacts. Parent pointers inside the
// artifacts are the source of truth; the child index kept here is a derived
// acceleration structure that can always be rebuilt by scanning the store.
package lineage

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/bhiv/vault/pkg/vault"
)

// Index answers lineage queries against a vault instance.
type Index struct {
	client *vault.Client
}

// NewIndex creates a lineage index over the given client.
func NewIndex(client *vault.Client) *Index {
	return &Index{client: client}
}

// Upsert records the parent edge of a committed artifact. Roots are a no-op.
// The write is idempotent, so callers replay it freely after a crash between
// commit and index update.
func (x *Index) Upsert(ctx context.Context, a *vault.Artifact) error {
	if a.IsRoot() {
		return nil
	}
	return x.client.AddChild(ctx, a.ParentID, a.ID)
}

// Ancestors returns the chain from the root down to the given artifact,
// inclusive. The result always has length depth+1: an artifact at depth 0
// yields just itself. A cycle in parent pointers (only possible through
// storage corruption) is reported as an error rather than looping.
func (x *Index) Ancestors(ctx context.Context, artifactID string) ([]*vault.Artifact, error) {
	var chain []*vault.Artifact
	seen := make(map[string]struct{})

	id := artifactID
	for id != "" {
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("lineage cycle detected at artifact %s", id)
		}
		seen[id] = struct{}{}

		a, err := x.client.GetArtifact(ctx, id)
		if errors.Is(err, redis.Nil) {
			if id == artifactID {
				return nil, &vault.NotFoundError{ID: id}
			}
			return nil, fmt.Errorf("lineage broken: ancestor %s of %s does not exist", id, artifactID)
		}
		if err != nil {
			return nil, err
		}

		chain = append(chain, a)
		id = a.ParentID
	}

	// Walked child-to-root; callers expect root-first order.
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain, nil
}

// Children returns the immediate children of an artifact, loaded in full.
// An artifact with no recorded children yields an empty slice.
func (x *Index) Children(ctx context.Context, artifactID string) ([]*vault.Artifact, error) {
	exists, err := x.client.ArtifactExists(ctx, artifactID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, &vault.NotFoundError{ID: artifactID}
	}

	ids, err := x.client.ChildrenIDs(ctx, artifactID)
	if err != nil {
		return nil, err
	}

	children := make([]*vault.Artifact, 0, len(ids))
	for _, id := range ids {
		a, err := x.client.GetArtifact(ctx, id)
		if errors.Is(err, redis.Nil) {
			// Index entry ahead of a crashed commit; skip until rebuilt.
			continue
		}
		if err != nil {
			return nil, err
		}
		children = append(children, a)
	}
	return children, nil
}

// Descendants returns a lazy breadth-first iterator over the full subtree
// below an artifact, excluding the artifact itself. Nothing is fetched until
// Next is called, so walking a large subtree costs only as much as the
// caller consumes.
func (x *Index) Descendants(ctx context.Context, artifactID string) (*Walker, error) {
	exists, err := x.client.ArtifactExists(ctx, artifactID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, &vault.NotFoundError{ID: artifactID}
	}

	return &Walker{index: x, frontier: []string{artifactID}}, nil
}

// Walker iterates a subtree breadth-first, one artifact per Next call. It is
// restartable in the sense that each call does a bounded amount of work and
// holds no Redis resources between calls; it is not safe for concurrent use.
type Walker struct {
	index    *Index
	frontier []string // Artifacts whose children have not been expanded yet
	queue    []string // Fetched-but-undelivered descendant IDs
	seen     map[string]struct{}
}

// Next returns the next descendant, or (nil, nil) when the walk is done.
func (w *Walker) Next(ctx context.Context) (*vault.Artifact, error) {
	if w.seen == nil {
		w.seen = make(map[string]struct{})
	}

	for {
		if len(w.queue) > 0 {
			id := w.queue[0]
			w.queue = w.queue[1:]

			a, err := w.index.client.GetArtifact(ctx, id)
			if errors.Is(err, redis.Nil) {
				continue
			}
			if err != nil {
				return nil, err
			}
			return a, nil
		}

		if len(w.frontier) == 0 {
			return nil, nil
		}

		parent := w.frontier[0]
		w.frontier = w.frontier[1:]

		ids, err := w.index.client.ChildrenIDs(ctx, parent)
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			if _, dup := w.seen[id]; dup {
				continue
			}
			w.seen[id] = struct{}{}
			w.queue = append(w.queue, id)
			w.frontier = append(w.frontier, id)
		}
	}
}

// Collect drains the walker into a slice. Convenience for callers that want
// the whole subtree anyway.
func (w *Walker) Collect(ctx context.Context) ([]*vault.Artifact, error) {
	var out []*vault.Artifact
	for {
		a, err := w.Next(ctx)
		if err != nil {
			return nil, err
		}
		if a == nil {
			return out, nil
		}
		out = append(out, a)
	}
}

// Rebuild reconstructs the child index from scratch by scanning every
// artifact (hot and cold) and re-upserting its parent edge. Safe to run
// against a live instance: upserts are idempotent and never remove edges.
// Returns the number of edges written.
func (x *Index) Rebuild(ctx context.Context) (int, error) {
	ids, err := x.client.ScanArtifactIDs(ctx, "", true)
	if err != nil {
		return 0, err
	}

	edges := 0
	for _, id := range ids {
		a, err := x.client.GetArtifact(ctx, id)
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return edges, err
		}
		if a.IsRoot() {
			continue
		}
		if err := x.client.AddChild(ctx, a.ParentID, a.ID); err != nil {
			return edges, err
		}
		edges++
	}
	return edges, nil
}
