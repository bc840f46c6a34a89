// Package resolver maps short hex prefixes to full artifact IDs. Artifact
// IDs are 64-character sha256 digests; nobody types those, so every CLI
// command accepts a unique prefix instead.
package resolver

import (
	"context"
	"fmt"
	"strings"

	"github.com/bhiv/vault/pkg/vault"
)

// MinPrefixLength is the minimum accepted prefix length. Six hex characters
// keeps collisions unlikely without being painful to type.
const MinPrefixLength = 6

// ResolveArtifactID resolves a short hex prefix to a full artifact ID.
// Cold-archived artifacts are included in the search, so tombstoned history
// stays addressable.
//
// Three cases:
//  1. Input is already a full ID (64 hex chars): existence is verified.
//  2. Input is shorter than MinPrefixLength: validation error.
//  3. Input is a prefix: scanned, and exactly one match must exist.
func ResolveArtifactID(ctx context.Context, client *vault.Client, shortID string) (string, error) {
	shortID = strings.ToLower(shortID)

	if len(shortID) == vault.IDLength {
		exists, err := client.ArtifactExists(ctx, shortID)
		if err != nil {
			return "", fmt.Errorf("failed to verify artifact existence: %w", err)
		}
		if !exists {
			return "", &NotFoundError{ShortID: shortID}
		}
		return shortID, nil
	}

	if len(shortID) < MinPrefixLength {
		return "", fmt.Errorf("short ID must be at least %d characters (got %d)", MinPrefixLength, len(shortID))
	}

	matches, err := client.ScanArtifactIDs(ctx, shortID, true)
	if err != nil {
		return "", fmt.Errorf("failed to search for artifact: %w", err)
	}

	switch len(matches) {
	case 0:
		return "", &NotFoundError{ShortID: shortID}
	case 1:
		return matches[0], nil
	default:
		return "", &AmbiguousError{ShortID: shortID, Matches: matches}
	}
}

// NotFoundError indicates no artifacts matched the short ID.
type NotFoundError struct {
	ShortID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no artifacts found matching '%s'", e.ShortID)
}

// AmbiguousError indicates multiple artifacts matched the short ID.
type AmbiguousError struct {
	ShortID string
	Matches []string
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("ambiguous short ID '%s' matches %d artifacts", e.ShortID, len(e.Matches))
}

// FormatAmbiguousError creates a user-friendly message listing the matches
// (up to 10, then "...and N more").
func FormatAmbiguousError(err *AmbiguousError) string {
	msg := fmt.Sprintf("Error: ambiguous short ID '%s' matches %d artifacts:\n", err.ShortID, len(err.Matches))

	displayCount := len(err.Matches)
	if displayCount > 10 {
		displayCount = 10
	}

	for i := 0; i < displayCount; i++ {
		msg += fmt.Sprintf("  %s\n", err.Matches[i])
	}

	if len(err.Matches) > 10 {
		msg += fmt.Sprintf("  ...and %d more\n", len(err.Matches)-10)
	}

	msg += "\nUse a longer prefix to uniquely identify the artifact."
	return msg
}

// IsNotFoundError checks if an error is a NotFoundError.
func IsNotFoundError(err error) bool {
	_, ok := err.(*NotFoundError)
	return ok
}

// IsAmbiguousError checks if an error is an AmbiguousError.
func IsAmbiguousError(err error) bool {
	_, ok := err.(*AmbiguousError)
	return ok
}
