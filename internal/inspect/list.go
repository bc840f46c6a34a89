// Package inspect implements the read-side operator tooling behind
// `vault ls` and `vault get`: scanning, filtering and formatting artifacts.
package inspect

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/redis/go-redis/v9"

	"github.com/bhiv/vault/pkg/vault"
)

// OutputFormat specifies how to format the artifact list output.
type OutputFormat string

const (
	// OutputFormatDefault uses a table format with truncated payloads
	OutputFormatDefault OutputFormat = "default"

	// OutputFormatJSONL outputs complete artifacts as line-delimited JSON
	OutputFormatJSONL OutputFormat = "jsonl"
)

// FilterCriteria defines filtering options for the ls command.
// All filters are ANDed together.
type FilterCriteria struct {
	SinceTimestampMs int64  // Unix timestamp in milliseconds, 0 = no filter
	UntilTimestampMs int64  // Unix timestamp in milliseconds, 0 = no filter
	TypeGlob         string // Glob pattern for artifact type, empty = no filter
	Status           string // Exact match on status, empty = no filter
	Principal        string // Exact match on creating principal ID, empty = no filter

	// IncludeQuarantined reveals quarantined artifacts. Off by default:
	// quarantined content is hidden from every unprivileged read path, and
	// the caller is responsible for the read_quarantined governance check
	// before setting this.
	IncludeQuarantined bool

	// IncludeCold extends the scan into the cold archive.
	IncludeCold bool
}

// matchesFilter returns true if the artifact matches all filter criteria.
func (fc *FilterCriteria) matchesFilter(a *vault.Artifact) bool {
	if a.FirewallVerdict == vault.VerdictQuarantined && !fc.IncludeQuarantined {
		return false
	}

	if fc.SinceTimestampMs > 0 && a.CreatedAtMs < fc.SinceTimestampMs {
		return false
	}
	if fc.UntilTimestampMs > 0 && a.CreatedAtMs > fc.UntilTimestampMs {
		return false
	}

	if fc.TypeGlob != "" {
		matched, err := filepath.Match(fc.TypeGlob, string(a.Type))
		if err != nil || !matched {
			return false
		}
	}

	if fc.Status != "" && string(a.Status) != fc.Status {
		return false
	}

	if fc.Principal != "" && a.CreatedBy.ID != fc.Principal {
		return false
	}

	return true
}

// ListArtifacts scans the instance, applies the filters and writes the
// result in the requested format. Artifacts are sorted by creation time for
// stable chronological output. Malformed entries are skipped with a warning
// to stderr rather than aborting the listing.
func ListArtifacts(ctx context.Context, client *vault.Client, format OutputFormat, filters *FilterCriteria, w io.Writer) error {
	includeCold := filters != nil && filters.IncludeCold

	ids, err := client.ScanArtifactIDs(ctx, "", includeCold)
	if err != nil {
		return err
	}

	var artifacts []*vault.Artifact
	for _, id := range ids {
		artifact, err := client.GetArtifact(ctx, id)
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "⚠️  Skipping malformed artifact: id=%s (error: %v)\n", id, err)
			continue
		}

		if filters != nil && !filters.matchesFilter(artifact) {
			continue
		}

		artifacts = append(artifacts, artifact)
	}

	sort.Slice(artifacts, func(i, j int) bool {
		return artifacts[i].CreatedAtMs < artifacts[j].CreatedAtMs
	})

	switch format {
	case OutputFormatDefault:
		return FormatTable(w, artifacts, client.InstanceName())
	case OutputFormatJSONL:
		if err := FormatJSONL(w, artifacts); err != nil {
			return fmt.Errorf("failed to format JSONL output: %w", err)
		}
	default:
		return fmt.Errorf("unknown output format: %s", format)
	}

	return nil
}
