package main

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/pipe-works/pipeworks-mud-server-sub001/internal/config"
)

func characterCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "character",
		Short: "Create and inspect characters",
	}
	cmd.AddCommand(characterCreateCmd())
	cmd.AddCommand(characterShowCmd())
	return cmd
}

func characterCreateCmd() *cobra.Command {
	var worldID string
	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a character in a world",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCharacterCreate(args[0], worldID)
		},
	}
	cmd.Flags().StringVar(&worldID, "world", "", "World id")
	return cmd
}

func runCharacterCreate(name, worldFlag string) error {
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

	character, err := db.CreateCharacter(ctx, worldID, name)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "Created %s (id %d) in %s.\n", character.Name, character.ID, character.WorldID)
	return nil
}

func characterShowCmd() *cobra.Command {
	var worldID string
	cmd := &cobra.Command{
		Use:   "show <name>",
		Short: "Display a character's axis scores",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCharacterShow(args[0], worldID)
		},
	}
	cmd.Flags().StringVar(&worldID, "world", "", "World id")
	return cmd
}

func runCharacterShow(name, worldFlag string) error {
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

	fmt.Fprintf(os.Stdout, "Name: %s\n", character.Name)
	fmt.Fprintf(os.Stdout, "ID: %d\n", character.ID)
	fmt.Fprintf(os.Stdout, "World: %s\n", character.WorldID)

	w, _ := cfg.World(worldID)
	axes := append([]string(nil), w.Axes...)
	for axis := range character.AxisSnapshot {
		if !containsString(axes, axis) {
			axes = append(axes, axis)
		}
	}
	sort.Strings(axes)

	fmt.Fprintln(os.Stdout, "Axes:")
	for _, axis := range axes {
		score, err := db.GetAxisScore(ctx, character.ID, axis)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "  %s: %.4f\n", axis, score)
	}
	return nil
}

func containsString(values []string, target string) bool {
	for _, value := range values {
		if value == target {
			return true
		}
	}
	return false
}
