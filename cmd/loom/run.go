package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/loomhq/loom/internal/agent"
	"github.com/loomhq/loom/internal/budget"
	"github.com/loomhq/loom/internal/config"
	"github.com/loomhq/loom/internal/events"
	"github.com/loomhq/loom/internal/orchestrator"
	"github.com/loomhq/loom/internal/provider"
	"github.com/loomhq/loom/internal/remotetool"
	"github.com/loomhq/loom/internal/state"
	"github.com/loomhq/loom/internal/tools"
)

var (
	runHeadless  bool
	runMaxAgents int
)

var runCmd = &cobra.Command{
	Use:   "run <request>",
	Short: "Run a request with sub-agent orchestration",
	Long: `Run a request through the orchestration engine.

The request is either answered directly or decomposed into a plan of
dependent tasks. Each task runs on its own sub-agent with an isolated
conversation, built-in tools, and any tools aggregated from configured
remote endpoints. Sub-agents run concurrently up to the pool limit,
respecting task dependencies.

A TUI shows live agent activity by default. Use --headless to print
plain event lines instead, for logs and CI.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRequest,
}

func init() {
	runCmd.Flags().BoolVar(&runHeadless, "headless", false, "Run without TUI, printing events to stdout")
	runCmd.Flags().IntVar(&runMaxAgents, "max-agents", 0, "Override the configured concurrent agent limit")
}

func loadConfig() (*config.Config, error) {
	if rootConfigPath != "" {
		return config.LoadFromPath(rootConfigPath)
	}
	return config.Load()
}

func runRequest(cmd *cobra.Command, args []string) error {
	request := strings.Join(args, " ")

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	apiKey, err := config.GetAPIKey(cfg)
	if err != nil {
		return fmt.Errorf("no API key: set ANTHROPIC_API_KEY or anthropic.api_key in the config file")
	}
	if err := config.ValidateAPIKey(apiKey); err != nil {
		color.Yellow("Warning: API key looks malformed: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := state.Open(cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("open state database: %w", err)
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	prov, err := provider.NewAnthropicProvider(provider.AnthropicConfig{
		Model:  cfg.Anthropic.Model,
		APIKey: apiKey,
	})
	if err != nil {
		return fmt.Errorf("create provider: %w", err)
	}

	catalog := agent.DefaultCatalog()
	if cfg.Profiles.File != "" {
		catalog, err = agent.LoadCatalog(cfg.Profiles.File)
		if err != nil {
			return fmt.Errorf("load profiles: %w", err)
		}
	}

	local := tools.NewBuiltinRegistry()
	var remote tools.RemoteSource
	if cfg.Endpoints.File != "" {
		endpoints, err := remotetool.LoadEndpoints(cfg.Endpoints.File)
		if err != nil {
			return fmt.Errorf("load endpoints: %w", err)
		}
		mgr := remotetool.NewManager(endpoints, remotetool.DefaultTransportFactory)
		defer mgr.Close()
		if cfg.Endpoints.Watch {
			stopWatch, err := remotetool.WatchEndpoints(cfg.Endpoints.File, mgr)
			if err != nil {
				color.Yellow("Warning: endpoint file watching unavailable: %v", err)
			} else {
				defer stopWatch()
			}
		}
		remote = mgr
	}
	router := tools.NewRouter(local, remote)

	budgeter := budget.NewBudgeter(prov.Model(), budget.Config{
		OutputReserve:     cfg.Budget.OutputReserve,
		TriggerRatio:      cfg.Budget.TriggerRatio,
		TargetRatio:       cfg.Budget.TargetRatio,
		MinRecentMessages: cfg.Budget.MinRecentMessages,
	})
	summarizer := budget.NewSummarizer(prov, budgeter)

	sink := events.NewChannelSink(0)

	maxAgents := cfg.Pool.MaxAgents
	if runMaxAgents > 0 {
		maxAgents = runMaxAgents
	}
	pool := orchestrator.NewPool(orchestrator.PoolConfig{
		MaxAgents:  maxAgents,
		Agent:      agent.Config{MaxIterations: cfg.Pool.MaxIterations, Catalog: catalog},
		Provider:   prov,
		Store:      db,
		Invoker:    router,
		Summarizer: summarizer,
		Sink:       sink,
	})
	monitor := orchestrator.NewMonitor(db, orchestrator.MonitorConfig{
		InterventionThreshold: cfg.Monitor.InterventionThreshold,
		AbortThreshold:        cfg.Monitor.AbortThreshold,
	})
	coord := orchestrator.NewCoordinator(db, prov, pool, monitor, sink)

	if runHeadless {
		return runHeadlessMode(ctx, coord, sink, request)
	}
	return runTUIMode(ctx, coord, sink, request)
}

// runHeadlessMode prints events as plain lines and the final answer when
// the run completes.
func runHeadlessMode(ctx context.Context, coord *orchestrator.Coordinator, sink *events.ChannelSink, request string) error {
	var printer sync.WaitGroup
	printer.Add(1)
	go func() {
		defer printer.Done()
		consumeEventsHeadless(sink.Events())
	}()

	fmt.Printf("Running: %s\n\n", request)
	result, err := coord.Run(ctx, request)
	sink.Close()
	printer.Wait()

	if err != nil {
		return fmt.Errorf("run failed: %w", err)
	}
	fmt.Println()
	color.New(color.Bold).Println(result.Answer)
	return nil
}

// consumeEventsHeadless drains the sink, printing one line per event.
func consumeEventsHeadless(ch <-chan events.Event) {
	for ev := range ch {
		switch ev.Type {
		case events.TypeToken, events.TypeReasoning:
			// Streamed text is too noisy for line output.
		case events.TypeToolCall:
			fmt.Printf("[%s] agent %s -> %s\n", ev.Timestamp.Format("15:04:05"), shortID(ev.AgentID), ev.Tool)
		case events.TypeStatus, events.TypeDone:
			fmt.Printf("[%s] agent %s %s\n", ev.Timestamp.Format("15:04:05"), shortID(ev.AgentID), ev.Status)
		case events.TypeSummarized:
			fmt.Printf("[%s] agent %s context compacted\n", ev.Timestamp.Format("15:04:05"), shortID(ev.AgentID))
		case events.TypeIntervention:
			color.Yellow("[%s] guidance for agent %s: %s", ev.Timestamp.Format("15:04:05"), shortID(ev.AgentID), ev.Text)
		case events.TypeError:
			color.Red("[%s] error: %s", ev.Timestamp.Format("15:04:05"), ev.Err)
		}
	}
}

// shortID trims UUIDs for log lines.
func shortID(id string) string {
	if i := strings.IndexByte(id, '-'); i > 0 {
		return id[:i]
	}
	return id
}
