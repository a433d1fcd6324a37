// Package main provides the CLI entry point for the Crossroad Discord bot.
//
// Crossroad routes slash commands, context menu actions, prefix commands and
// autocomplete requests through a single command tree with cooldowns and an
// admission check pipeline.
//
// # Basic Usage
//
// Start the bot:
//
//	crossroad run --config crossroad.yaml
//
// Register the command tree with Discord:
//
//	crossroad sync --config crossroad.yaml
//
// # Environment Variables
//
//   - DISCORD_TOKEN: Bot token
//   - DISCORD_APP_ID: Application ID for command registration
//   - DISCORD_GUILD_ID: Guild to scope registration to (optional)
//   - BOT_OWNERS: Comma-separated owner user IDs
//   - BOT_PREFIXES: Comma-separated text-command prefixes
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/crossroadbot/crossroad/internal/config"
)

// Build information - populated by ldflags during build.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := buildRootCmd().Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

// buildRootCmd creates the root command with all subcommands attached.
func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "crossroad",
		Short:        "Crossroad - Discord command dispatch bot",
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}
	rootCmd.AddCommand(
		buildRunCmd(),
		buildSyncCmd(),
		buildVersionCmd(),
	)
	return rootCmd
}

func buildVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("crossroad %s (commit: %s, built: %s)\n", version, commit, date)
		},
	}
}

func buildRunCmd() *cobra.Command {
	var (
		configPath string
		debug      bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Connect to the gateway and dispatch commands",
		Long: `Connect to the Discord gateway and dispatch inbound interactions and
prefix messages through the command tree.

Graceful shutdown is handled on SIGINT/SIGTERM signals.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath, debug)
			if err != nil {
				return err
			}
			return runBot(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "crossroad.yaml", "Path to YAML configuration file")
	cmd.Flags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")
	return cmd
}

func buildSyncCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Overwrite the registered application commands",
		Long: `Push the current command tree to Discord, replacing all previously
registered application commands for this application.

Registration scoped to a guild (discord.guild_id) applies immediately;
global registration can take up to an hour to propagate.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath, false)
			if err != nil {
				return err
			}
			return runSync(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "crossroad.yaml", "Path to YAML configuration file")
	return cmd
}

// loadConfig loads and validates the configuration, then reconfigures the
// default logger to match it.
func loadConfig(path string, debug bool) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if debug {
		cfg.Logging.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	opts := &slog.HandlerOptions{Level: cfg.LogLevel()}
	var handler slog.Handler
	if cfg.Logging.Format == "text" {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
	return cfg, nil
}
