package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

const defaultPolicy = `version: "1.0"
interactions:
  chat:
    channel_multipliers:
      say: 1.0
      yell: 1.5
      whisper: 0.5
    min_gap_threshold: 0.05
    axes:
      demeanor:
        resolver: dominance_shift
        base_magnitude: 0.03
      health:
        resolver: shared_drain
        base_magnitude: 0.01
      wealth:
        resolver: no_effect
`

func initCmd() *cobra.Command {
	var projectName string
	var worldID string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Scaffold a new pipeworks project",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(projectName) == "" {
				return fmt.Errorf("--name is required")
			}
			return runInit(".", projectName, worldID)
		},
	}
	cmd.Flags().StringVar(&projectName, "name", "", "Project name")
	cmd.Flags().StringVar(&worldID, "world", "pipeworks_web", "Id of the first world")
	return cmd
}

func runInit(dir, projectName, worldID string) error {
	configFile := filepath.Join(dir, "pipeworks.yaml")
	policyFile := filepath.Join(dir, "worlds", worldID, "policies", "resolution.yaml")
	for _, path := range []string{configFile, policyFile} {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists", path)
		}
	}

	configContents := fmt.Sprintf(`project: %s
version: 1

database:
  dsn: sqlite://data/pipeworks.db

ledger:
  enabled: true
  dir: ./data/ledger
  lock_timeout: 2s

metrics:
  addr: ""

log:
  level: info
  format: text

worlds:
  - id: %s
    root: ./worlds/%s
    axes: [demeanor, health, wealth]
`, projectName, worldID, worldID)

	if err := os.MkdirAll(filepath.Join(dir, "data"), 0o755); err != nil {
		return fmt.Errorf("creating data dir: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(policyFile), 0o755); err != nil {
		return fmt.Errorf("creating policies dir: %w", err)
	}
	if err := os.WriteFile(configFile, []byte(configContents), 0o600); err != nil {
		return fmt.Errorf("writing %s: %w", configFile, err)
	}
	if err := os.WriteFile(policyFile, []byte(defaultPolicy), 0o600); err != nil {
		return fmt.Errorf("writing %s: %w", policyFile, err)
	}

	return nil
}
