package main

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/loomhq/loom/internal/remotetool"
)

var endpointsCmd = &cobra.Command{
	Use:   "endpoints",
	Short: "Probe configured tool endpoints",
	Long: `Connect to every enabled endpoint in the endpoints file, list its
tools, and print per-connection statistics. Useful for checking endpoint
health before starting a run.`,
	RunE: runEndpoints,
}

func runEndpoints(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Endpoints.File == "" {
		fmt.Println("No endpoints file configured. Set endpoints.file in the config.")
		return nil
	}

	endpoints, err := remotetool.LoadEndpoints(cfg.Endpoints.File)
	if err != nil {
		return fmt.Errorf("load endpoints: %w", err)
	}
	if len(endpoints) == 0 {
		fmt.Println("No enabled endpoints.")
		return nil
	}

	mgr := remotetool.NewManager(endpoints, remotetool.DefaultTransportFactory)
	defer mgr.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	remote := mgr.AggregateTools(ctx)
	toolCounts := make(map[string]int)
	for _, t := range remote {
		toolCounts[t.Endpoint]++
	}

	for _, st := range mgr.Stats() {
		state := string(st.State)
		switch st.State {
		case remotetool.StateConnected:
			state = color.GreenString(state)
		case remotetool.StateFailed:
			state = color.RedString(state)
		default:
			state = color.YellowString(state)
		}

		fmt.Printf("%-20s %s", st.Endpoint, state)
		if st.ServerInfo.Name != "" {
			fmt.Printf("  %s %s", st.ServerInfo.Name, st.ServerInfo.Version)
		}
		fmt.Printf("  %d tools", toolCounts[st.Endpoint])
		if st.Requests > 0 {
			fmt.Printf("  %d requests, %d failures, avg %s", st.Requests, st.Failures, st.AvgLatency.Round(time.Millisecond))
		}
		fmt.Println()
	}
	return nil
}
