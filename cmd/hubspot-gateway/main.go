// ABOUTME: Entry point for hubspot-gateway, the HubSpot CRM bridge server
// ABOUTME: Cobra root command wiring serve, stdio, health, sandbox, audit and version

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/2389/hubspot-gateway/internal/config"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
 _           _                     _
| |__  _   _| |__  ___ _ __   ___ | |_
| '_ \| | | | '_ \/ __| '_ \ / _ \| __|
| | | | |_| | |_) \__ \ |_) | (_) | |_
|_| |_|\__,_|_.__/|___/ .__/ \___/ \__|  gateway
                      |_|
`

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "hubspot-gateway",
		Short:         "HubSpot CRM bridge over HTTP and MCP",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"config file (default $"+config.EnvConfigPath+" or $XDG_CONFIG_HOME/hubspot-gateway/gateway.yaml)")

	loadConfig := func() (*config.Config, string, error) {
		cfg, path, err := config.Resolve(configPath)
		if err != nil {
			return nil, path, fmt.Errorf("loading config: %w", err)
		}
		return cfg, path, nil
	}

	rootCmd.AddCommand(
		newServeCommand(loadConfig),
		newStdioCommand(loadConfig),
		newHealthCommand(loadConfig),
		newSandboxCommand(loadConfig),
		newAuditCommand(loadConfig),
		&cobra.Command{
			Use:   "version",
			Short: "Print the version",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintln(cmd.OutOrStdout(), version)
			},
		},
	)

	return rootCmd
}

// configLoader resolves the config selected by --config.
type configLoader func() (*config.Config, string, error)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
