package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/pipe-works/pipeworks-mud-server-sub001/internal/config"
	"github.com/pipe-works/pipeworks-mud-server-sub001/internal/ledger"
)

func ledgerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Inspect the JSONL audit ledger",
	}
	cmd.AddCommand(ledgerVerifyCmd())
	cmd.AddCommand(ledgerReplayCmd())
	return cmd
}

func openLedger() (*config.ProjectConfig, *ledger.Ledger, error) {
	cfg, err := config.LoadProjectConfig(configPath)
	if err != nil {
		return nil, nil, err
	}
	if !cfg.Ledger.Enabled {
		return nil, nil, fmt.Errorf("the audit ledger is disabled in %s", configPath)
	}
	return cfg, ledger.New(cfg.Ledger.Dir, ledger.WithLockTimeout(cfg.Ledger.LockTimeout)), nil
}

func ledgerVerifyCmd() *cobra.Command {
	var worldID string
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check the last line checksum of each world's ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLedgerVerify(worldID)
		},
	}
	cmd.Flags().StringVar(&worldID, "world", "", "Only verify this world")
	return cmd
}

func runLedgerVerify(worldFlag string) error {
	cfg, audit, err := openLedger()
	if err != nil {
		return err
	}

	worlds := make([]string, 0, len(cfg.Worlds))
	if worldFlag != "" {
		worlds = append(worlds, worldFlag)
	} else {
		for _, w := range cfg.Worlds {
			worlds = append(worlds, w.ID)
		}
	}

	failed := 0
	for _, id := range worlds {
		if err := audit.Verify(id); err != nil {
			failed++
			fmt.Fprintf(os.Stdout, "%s: FAILED %v\n", id, err)
			continue
		}
		fmt.Fprintf(os.Stdout, "%s: ok\n", id)
	}
	if failed > 0 {
		return fmt.Errorf("%d ledger(s) failed verification", failed)
	}
	return nil
}

func ledgerReplayCmd() *cobra.Command {
	var worldID string
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Print every verified entry of a world's ledger in order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLedgerReplay(worldID)
		},
	}
	cmd.Flags().StringVar(&worldID, "world", "", "World id")
	return cmd
}

func runLedgerReplay(worldFlag string) error {
	cfg, audit, err := openLedger()
	if err != nil {
		return err
	}
	worldID, err := resolveWorld(cfg, worldFlag)
	if err != nil {
		return err
	}

	entries, err := audit.Read(worldID)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		fmt.Fprintf(os.Stdout, "%s %s %s fingerprint=%s %s\n",
			entry.Timestamp.Format(time.RFC3339Nano), entry.EventID, entry.EventType, entry.FingerprintHash, string(entry.Data))
	}
	fmt.Fprintf(os.Stdout, "%d entries.\n", len(entries))
	return nil
}
