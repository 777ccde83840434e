package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pipe-works/pipeworks-mud-server-sub001/internal/config"
	"github.com/pipe-works/pipeworks-mud-server-sub001/internal/engine"
	"github.com/pipe-works/pipeworks-mud-server-sub001/internal/ledger"
	"github.com/pipe-works/pipeworks-mud-server-sub001/internal/world"
)

func resolveCmd() *cobra.Command {
	var worldID string
	var channel string
	cmd := &cobra.Command{
		Use:   "resolve <speaker> <listener> [message...]",
		Short: "Resolve one chat interaction and print the result",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResolve(worldID, channel, args[0], args[1], strings.Join(args[2:], " "))
		},
	}
	cmd.Flags().StringVar(&worldID, "world", "", "World id")
	cmd.Flags().StringVar(&channel, "channel", "say", "Chat channel: say, yell or whisper")
	return cmd
}

func runResolve(worldFlag, channel, speakerName, listenerName, message string) error {
	ctx := context.Background()

	cfg, err := config.LoadProjectConfig(configPath)
	if err != nil {
		return err
	}
	worldID, err := resolveWorld(cfg, worldFlag)
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Log, os.Stderr)

	db, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close(ctx)

	speaker, err := db.GetCharacterByName(ctx, worldID, speakerName)
	if err != nil {
		return err
	}
	if speaker == nil {
		return fmt.Errorf("%w: %s in world %s", engine.ErrCharacterNotFound, speakerName, worldID)
	}
	listener, err := db.GetCharacterByName(ctx, worldID, listenerName)
	if err != nil {
		return err
	}
	if listener == nil {
		return fmt.Errorf("%w: %s in world %s", engine.ErrCharacterNotFound, listenerName, worldID)
	}

	opts := []engine.Option{engine.WithLogger(logger)}
	if cfg.Ledger.Enabled {
		opts = append(opts, engine.WithLedger(ledger.New(cfg.Ledger.Dir, ledger.WithLockTimeout(cfg.Ledger.LockTimeout))))
	}
	eng := engine.New(world.NewRegistry(cfg.Worlds, logger), db, opts...)

	result, err := eng.ResolveChatInteraction(ctx, worldID, speaker.ID, listener.ID, channel, message)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
