package inspect

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/bhiv/vault/pkg/vault"
)

// FormatTable writes artifacts as a formatted table to the provided writer.
// Columns: ID (short), VER, TYPE, BY, AUTH, STATUS, AGE and PAYLOAD
// (truncated to one line).
func FormatTable(w io.Writer, artifacts []*vault.Artifact, instanceName string) error {
	if len(artifacts) == 0 {
		fmt.Fprintf(w, "No artifacts found for instance '%s'\n", instanceName)
		return nil
	}

	fmt.Fprintf(w, "Artifacts for instance '%s':\n\n", instanceName)

	table := tablewriter.NewWriter(w)
	table.Header("ID", "VER", "TYPE", "BY", "AUTH", "STATUS", "AGE", "PAYLOAD")

	for _, a := range artifacts {
		if err := table.Append([]string{
			formatID(a.ID),
			fmt.Sprintf("v%d", a.Version),
			string(a.Type),
			a.CreatedBy.ID,
			formatAuthority(a.CreatedBy.Authority),
			string(a.Status),
			formatTimestamp(a.CreatedAtMs),
			formatPayload(a.Payload),
		}); err != nil {
			return fmt.Errorf("failed to build table: %w", err)
		}
	}

	if err := table.Render(); err != nil {
		return fmt.Errorf("failed to render table: %w", err)
	}

	countMsg := "artifact"
	if len(artifacts) != 1 {
		countMsg = "artifacts"
	}
	fmt.Fprintf(w, "\n%d %s found\n", len(artifacts), countMsg)

	return nil
}

// FormatJSONL writes artifacts as line-delimited JSON (JSONL) to the
// provided writer. Each artifact is one JSON object on its own line, ready
// for jq.
func FormatJSONL(w io.Writer, artifacts []*vault.Artifact) error {
	for _, artifact := range artifacts {
		data, err := json.Marshal(artifact)
		if err != nil {
			return fmt.Errorf("failed to marshal artifact to JSON: %w", err)
		}

		if _, err := fmt.Fprintf(w, "%s\n", string(data)); err != nil {
			return fmt.Errorf("failed to write JSONL output: %w", err)
		}
	}

	return nil
}

// FormatSingleJSON writes a single artifact as pretty-printed JSON.
// Used in get mode to display complete artifact details.
func FormatSingleJSON(w io.Writer, artifact *vault.Artifact) error {
	data, err := json.MarshalIndent(artifact, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal artifact to JSON: %w", err)
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write JSON output: %w", err)
	}

	fmt.Fprintln(w)
	return nil
}

// formatID truncates an artifact ID to its first 10 hex characters, which is
// always enough for the short-ID resolver.
func formatID(id string) string {
	if len(id) > 10 {
		return id[:10]
	}
	return id
}

// formatAuthority compacts authority names for table display.
func formatAuthority(a vault.Authority) string {
	switch a {
	case vault.AuthorityDataSovereign:
		return "sovereign"
	case vault.AuthorityStrategicAdvisor:
		return "advisor"
	case vault.AuthorityExecutor:
		return "executor"
	case vault.AuthorityAIAgent:
		return "agent"
	}
	return string(a)
}

// formatPayload truncates payload to first non-empty line with max 40
// characters for table display. Empty payloads return "-".
func formatPayload(payload string) string {
	if payload == "" {
		return "-"
	}

	var firstLine string
	for _, line := range strings.Split(payload, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed != "" {
			firstLine = trimmed
			break
		}
	}

	if firstLine == "" {
		return "-"
	}

	if len(firstLine) > 40 {
		return firstLine[:37] + "..."
	}

	return firstLine
}

// formatTimestamp formats Unix milliseconds as relative time like "2m ago".
func formatTimestamp(timestampMs int64) string {
	if timestampMs == 0 {
		return "-"
	}

	t := time.Unix(timestampMs/1000, (timestampMs%1000)*1000000)
	diff := time.Since(t)

	switch {
	case diff < time.Minute:
		return fmt.Sprintf("%ds ago", int(diff.Seconds()))
	case diff < time.Hour:
		return fmt.Sprintf("%dm ago", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(diff.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(diff.Hours()/24))
	}
}
