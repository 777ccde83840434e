package main

import (
	"os"

	"github.com/spf13/cobra"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:          "pipeworks",
		Short:        "Axis resolution engine for the pipeworks text-game server",
		SilenceUsage: true,
	}
	root.Version = version
	root.SetVersionTemplate("{{.Version}}\n")
	root.PersistentFlags().StringVar(&configPath, "config", "pipeworks.yaml", "Project config file")
	root.AddCommand(initCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(validateCmd())
	root.AddCommand(characterCmd())
	root.AddCommand(resolveCmd())
	root.AddCommand(eventsCmd())
	root.AddCommand(ledgerCmd())
	root.AddCommand(versionCmd())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
