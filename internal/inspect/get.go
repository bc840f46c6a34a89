package inspect

import (
	"context"
	"fmt"
	"io"

	"github.com/bhiv/vault/internal/truth"
	"github.com/bhiv/vault/pkg/vault"
)

// GetArtifact retrieves a single artifact by full ID and writes it as
// pretty-printed JSON to the writer. Goes through the engine, so quarantined
// artifacts stay hidden.
func GetArtifact(ctx context.Context, engine *truth.Engine, artifactID string, w io.Writer) error {
	if len(artifactID) != vault.IDLength {
		return fmt.Errorf("invalid artifact ID format: expected %d hex characters", vault.IDLength)
	}

	artifact, err := engine.Get(ctx, artifactID)
	if err != nil {
		if vault.IsNotFound(err) {
			return &ArtifactNotFoundError{ArtifactID: artifactID}
		}
		return fmt.Errorf("failed to fetch artifact: %w", err)
	}

	if err := FormatSingleJSON(w, artifact); err != nil {
		return fmt.Errorf("failed to format artifact: %w", err)
	}

	return nil
}

// ArtifactNotFoundError represents a specific "artifact not found" error.
// This allows callers to distinguish not-found errors from other failures.
type ArtifactNotFoundError struct {
	ArtifactID string
}

func (e *ArtifactNotFoundError) Error() string {
	return fmt.Sprintf("artifact with ID '%s' not found", e.ArtifactID)
}

// IsNotFound returns true if the error is an ArtifactNotFoundError.
func IsNotFound(err error) bool {
	_, ok := err.(*ArtifactNotFoundError)
	return ok
}
