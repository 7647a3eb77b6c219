package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/loomhq/loom/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective configuration",
	Long: `Display the effective configuration after merging defaults, the
user config file, any project .loom.yaml, and environment variables.

Configuration is read from ~/.config/loom/config.yaml with
project-specific overrides in .loom.yaml.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		keyDisplay := "(not set)"
		if key, err := config.GetAPIKey(cfg); err == nil {
			keyDisplay = fmt.Sprintf("%s (from %s)", config.MaskAPIKey(key), config.GetAPIKeySource(cfg))
		}

		fmt.Printf("anthropic.api_key: %s\n", keyDisplay)
		fmt.Printf("anthropic.model: %s\n", cfg.Anthropic.Model)
		fmt.Printf("pool.max_agents: %d\n", cfg.Pool.MaxAgents)
		fmt.Printf("pool.max_iterations: %d\n", cfg.Pool.MaxIterations)
		fmt.Printf("monitor.intervention_threshold: %d\n", cfg.Monitor.InterventionThreshold)
		fmt.Printf("monitor.abort_threshold: %d\n", cfg.Monitor.AbortThreshold)
		fmt.Printf("budget.output_reserve: %d\n", cfg.Budget.OutputReserve)
		fmt.Printf("budget.trigger_ratio: %.2f\n", cfg.Budget.TriggerRatio)
		fmt.Printf("budget.target_ratio: %.2f\n", cfg.Budget.TargetRatio)
		fmt.Printf("budget.min_recent_messages: %d\n", cfg.Budget.MinRecentMessages)
		fmt.Printf("endpoints.file: %s\n", cfg.Endpoints.File)
		fmt.Printf("endpoints.watch: %t\n", cfg.Endpoints.Watch)
		fmt.Printf("profiles.file: %s\n", cfg.Profiles.File)
		fmt.Printf("storage.path: %s\n", cfg.Storage.Path)
		fmt.Printf("tui.refresh_rate: %s\n", cfg.TUI.RefreshRate)
		return nil
	},
}
