package main

import (
	"fmt"

	"github.com/pipe-works/pipeworks-mud-server-sub001/internal/config"
)

// resolveWorld returns the --world value, or the only configured world when
// the flag is empty.
func resolveWorld(cfg *config.ProjectConfig, flag string) (string, error) {
	if flag != "" {
		if _, ok := cfg.World(flag); !ok {
			return "", fmt.Errorf("unknown world: %s", flag)
		}
		return flag, nil
	}
	if len(cfg.Worlds) == 1 {
		return cfg.Worlds[0].ID, nil
	}
	return "", fmt.Errorf("--world is required when more than one world is configured")
}
