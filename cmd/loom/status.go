package main

import (
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/loomhq/loom/internal/state"
	"github.com/loomhq/loom/pkg/models"
)

var statusRunID string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show recent runs and their task plans",
	Long: `Display recent runs from the state database.

Without flags, lists the most recent runs with status, token usage,
and cost. With --run, shows one run in detail: its plan, every task
node with dependencies and retries, and the active worker set.`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusRunID, "run", "", "Show a single run in detail")
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if cfg.Storage.Path != ":memory:" {
		if _, err := os.Stat(cfg.Storage.Path); os.IsNotExist(err) {
			fmt.Println("No runs yet. Start one with 'loom run <request>'.")
			return nil
		}
	}

	db, err := state.Open(cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("open state database: %w", err)
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	if statusRunID != "" {
		return showRunDetail(db, statusRunID)
	}
	return listRuns(db)
}

func listRuns(db *state.DB) error {
	runs, err := db.ListRuns(20)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No runs yet. Start one with 'loom run <request>'.")
		return nil
	}

	fmt.Printf("%-38s %-10s %-12s %-10s %s\n", "RUN", "STATUS", "TOKENS", "COST", "STARTED")
	for _, r := range runs {
		tokens := r.Usage.InputTokens + r.Usage.OutputTokens
		fmt.Printf("%-38s %-10s %-12d $%-9.4f %s\n",
			r.RunID,
			colorStatus(string(r.Status)),
			tokens,
			r.Usage.Cost,
			r.StartedAt.Local().Format("2006-01-02 15:04:05"))
	}
	return nil
}

func showRunDetail(db *state.DB, runID string) error {
	run, err := db.GetRun(runID)
	if err != nil {
		return err
	}

	bold := color.New(color.Bold)
	bold.Printf("Run %s\n", run.RunID)
	fmt.Printf("  Status:        %s\n", colorStatus(string(run.Status)))
	fmt.Printf("  Started:       %s\n", run.StartedAt.Local().Format(time.RFC822))
	if run.CompletedAt != nil {
		fmt.Printf("  Duration:      %s\n", run.CompletedAt.Sub(run.StartedAt).Round(time.Second))
	}
	fmt.Printf("  Tokens:        %d in / %d out\n", run.Usage.InputTokens, run.Usage.OutputTokens)
	fmt.Printf("  Cost:          $%.4f\n", run.Usage.Cost)
	fmt.Printf("  Interventions: %d\n", run.Interventions)
	if run.Error != "" {
		fmt.Printf("  Error:         %s\n", color.RedString(run.Error))
	}
	if len(run.ActiveAgents) > 0 {
		fmt.Printf("  Active agents: %v\n", run.ActiveAgents)
	}

	if run.PlanID == "" {
		fmt.Println("\nDirect answer, no plan.")
		return nil
	}

	plan, err := db.GetPlanByRun(runID)
	if err != nil {
		return err
	}
	fmt.Println()
	bold.Printf("Plan %s (%s)\n", plan.ID, plan.Status)
	if plan.Rationale != "" {
		fmt.Printf("  %s\n", plan.Rationale)
	}
	for _, n := range plan.Nodes {
		fmt.Printf("  %-38s %-12s %-10s", n.ID, colorStatus(string(n.Status)), n.AgentType)
		if len(n.DependsOn) > 0 {
			fmt.Printf(" after %v", n.DependsOn)
		}
		if attempts := run.LoopCounters[n.ID]; attempts > 1 {
			fmt.Printf(" (%d attempts)", attempts)
		}
		if n.Error != "" {
			fmt.Printf(" %s", color.RedString(n.Error))
		}
		fmt.Println()
	}
	return nil
}

// colorStatus colorizes a status word for terminal output.
func colorStatus(status string) string {
	switch status {
	case string(models.RunStatusCompleted):
		return color.GreenString(status)
	case string(models.RunStatusFailed), "cancelled":
		return color.RedString(status)
	case string(models.RunStatusRunning), "in_progress", "pending":
		return color.YellowString(status)
	default:
		return status
	}
}
