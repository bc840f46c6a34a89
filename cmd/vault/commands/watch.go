package commands

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/bhiv/vault/internal/printer"
)

var watchOutputFormat string

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream commit events as they happen",
	Long: `Subscribe to the instance's commit events and print each newly
committed artifact until interrupted.

Events are published only after a commit is durable, so everything printed
here is already readable with 'vault get'.

Examples:
  vault watch
  vault watch --output jsonl | jq .id`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVarP(&watchOutputFormat, "output", "o", "default", "Output format: default or jsonl")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	subscription, err := a.client.SubscribeArtifactEvents(ctx)
	if err != nil {
		return err
	}
	defer subscription.Close()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	if watchOutputFormat == "default" {
		printer.Info("Watching instance '%s' (Ctrl-C to stop)...\n\n", a.client.InstanceName())
	}

	for {
		select {
		case <-sigCh:
			return nil

		case artifact, ok := <-subscription.Events():
			if !ok {
				return nil
			}
			if watchOutputFormat == "jsonl" {
				data, err := json.Marshal(artifact)
				if err != nil {
					continue
				}
				printer.Println(string(data))
				continue
			}
			printer.Printf("[%s] %s v%d %s by %s (%s)\n",
				time.UnixMilli(artifact.CreatedAtMs).Format("15:04:05"),
				shortID(artifact.ID),
				artifact.Version,
				artifact.Type,
				artifact.CreatedBy.ID,
				artifact.FirewallVerdict,
			)

		case err, ok := <-subscription.Errors():
			if !ok {
				return nil
			}
			printer.Warning("subscription error: %v\n", err)
		}
	}
}
