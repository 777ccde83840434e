package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pipe-works/pipeworks-mud-server-sub001/internal/config"
	"github.com/pipe-works/pipeworks-mud-server-sub001/internal/store"
)

func eventsCmd() *cobra.Command {
	var worldID string
	var limit int
	cmd := &cobra.Command{
		Use:   "events <character>",
		Short: "List the axis events a character took part in",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEvents(args[0], worldID, limit)
		},
	}
	cmd.Flags().StringVar(&worldID, "world", "", "World id")
	cmd.Flags().IntVar(&limit, "limit", store.DefaultEventLimit, "Maximum events to show")
	return cmd
}

func runEvents(name, worldFlag string, limit int) error {
	ctx := context.Background()

	cfg, err := config.LoadProjectConfig(configPath)
	if err != nil {
		return err
	}
	worldID, err := resolveWorld(cfg, worldFlag)
	if err != nil {
		return err
	}

	db, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close(ctx)

	character, err := db.GetCharacterByName(ctx, worldID, name)
	if err != nil {
		return err
	}
	if character == nil {
		fmt.Fprintf(os.Stdout, "No character found for %q in %s.\n", name, worldID)
		return nil
	}

	events, err := db.GetCharacterAxisEvents(ctx, character.ID, limit)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		fmt.Fprintln(os.Stdout, "No events.")
		return nil
	}

	for _, event := range events {
		fmt.Fprintf(os.Stdout, "#%d %s %s", event.ID, event.OccurredAt.Format(time.RFC3339), event.EventType)
		if channel := event.Metadata["channel"]; channel != "" {
			fmt.Fprintf(os.Stdout, " [%s]", channel)
		}
		fmt.Fprintln(os.Stdout)
		for _, delta := range event.Deltas {
			fmt.Fprintf(os.Stdout, "  character %d %s: %.4f -> %.4f (%+.4f)\n",
				delta.CharacterID, delta.Axis, delta.OldScore, delta.NewScore, delta.Delta)
		}
		if len(event.Metadata) > 0 {
			fmt.Fprintf(os.Stdout, "  meta: %s\n", formatMetadata(event.Metadata))
		}
	}
	return nil
}

func formatMetadata(metadata map[string]string) string {
	keys := make([]string, 0, len(metadata))
	for key := range metadata {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, fmt.Sprintf("%s=%q", key, metadata[key]))
	}
	return strings.Join(parts, " ")
}
