package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/bhiv/vault/internal/printer"
	"github.com/bhiv/vault/pkg/vault"
)

var childrenRecursive bool

var lineageCmd = &cobra.Command{
	Use:   "lineage ARTIFACT_ID",
	Short: "Show the ancestor chain of an artifact",
	Long: `Walk from the root of the provenance tree down to the given artifact
and print every step: who created what, when, at which version.

Example:
  vault lineage 3fa9c0`,
	Args: cobra.ExactArgs(1),
	RunE: runLineage,
}

var childrenCmd = &cobra.Command{
	Use:   "children ARTIFACT_ID",
	Short: "List the children of an artifact",
	Long: `List the immediate children of an artifact: its versions, tombstone,
and any derived artifacts. With --recursive the whole subtree is walked
breadth-first.

Examples:
  vault children 3fa9c0
  vault children 3fa9c0 --recursive`,
	Args: cobra.ExactArgs(1),
	RunE: runChildren,
}

func init() {
	childrenCmd.Flags().BoolVarP(&childrenRecursive, "recursive", "r", false, "Walk the full subtree")
	rootCmd.AddCommand(lineageCmd)
	rootCmd.AddCommand(childrenCmd)
}

func runLineage(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	artifactID, err := resolveID(ctx, a, args[0])
	if err != nil {
		return err
	}

	chain, err := a.index.Ancestors(ctx, artifactID)
	if err != nil {
		return err
	}

	printer.Printf("Lineage of %s (depth %d):\n\n", shortID(artifactID), len(chain)-1)
	for depth, artifact := range chain {
		printLineageEntry(depth, artifact)
	}
	return nil
}

func runChildren(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	artifactID, err := resolveID(ctx, a, args[0])
	if err != nil {
		return err
	}

	if childrenRecursive {
		walker, err := a.index.Descendants(ctx, artifactID)
		if err != nil {
			return err
		}
		count := 0
		for {
			artifact, err := walker.Next(ctx)
			if err != nil {
				return err
			}
			if artifact == nil {
				break
			}
			printLineageEntry(0, artifact)
			count++
		}
		printer.Printf("\n%d descendant(s)\n", count)
		return nil
	}

	children, err := a.index.Children(ctx, artifactID)
	if err != nil {
		return err
	}
	if len(children) == 0 {
		printer.Printf("No children recorded for %s\n", shortID(artifactID))
		return nil
	}
	for _, artifact := range children {
		printLineageEntry(0, artifact)
	}
	printer.Printf("\n%d child(ren)\n", len(children))
	return nil
}

func printLineageEntry(depth int, artifact *vault.Artifact) {
	indent := ""
	for i := 0; i < depth; i++ {
		indent += "  "
	}
	status := ""
	if artifact.Status == vault.StatusInactive {
		status = " [inactive]"
	}
	printer.Printf("%s%s v%d %s by %s (%s)%s\n",
		indent,
		shortID(artifact.ID),
		artifact.Version,
		artifact.Type,
		artifact.CreatedBy.ID,
		artifact.CreatedBy.Authority,
		status,
	)
}

func shortID(id string) string {
	if len(id) > 10 {
		return id[:10]
	}
	return id
}
