package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/maestrohq/maestro/internal/config"
	"github.com/maestrohq/maestro/internal/engine"
	"github.com/maestrohq/maestro/internal/lifecycle"
	"github.com/maestrohq/maestro/internal/maestro"
	"github.com/maestrohq/maestro/internal/processor"
	"github.com/maestrohq/maestro/internal/queue"
	"github.com/maestrohq/maestro/internal/state"
)

var dbPathFlag string

var rootCmd = &cobra.Command{
	Use:   "maestro",
	Short: "Task scheduling and agent orchestration",
	Long: `Maestro manages a task backlog worked by role-based agents.

Tasks move through a status lifecycle, queue entries assign them to
agents, and the execution engine runs them step by step with pause,
resume, and cancel support. The auto-processor drains agent queues on
a tick cadence, and the orchestrator decomposes large tasks into
phased subtask plans.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	// .env is optional; real env always wins.
	_ = godotenv.Load()

	rootCmd.PersistentFlags().StringVar(&dbPathFlag, "db", "", "Path to the SQLite database (default: XDG data dir)")

	rootCmd.AddCommand(taskCmd)
	rootCmd.AddCommand(agentCmd)
	rootCmd.AddCommand(queueCmd)
	rootCmd.AddCommand(execCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(orchestrateCmd)
	rootCmd.AddCommand(monitorCmd)
	rootCmd.AddCommand(processorCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

// app bundles the wired services for a single command invocation.
type app struct {
	cfg       *config.Config
	loader    *config.Loader
	store     *state.DB
	lifecycle *lifecycle.Service
	queue     *queue.Service
	engine    *engine.Engine
	processor *processor.AutoProcessor
	maestro   *maestro.Maestro
}

// openApp loads configuration, opens and migrates the database, and wires
// the service graph. Callers must Close it.
func openApp() (*app, error) {
	cfg, loader, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	dbPath := dbPathFlag
	if dbPath == "" {
		dbPath = cfg.Database.Path
	}
	if dbPath == "" {
		dbPath = state.DefaultDBPath()
	}

	store, err := state.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := store.Migrate(); err != nil {
		store.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	lc := lifecycle.NewService(store)
	q := queue.NewService(store)
	q.OnMutate(lc.InvalidateListings)
	eng := engine.New(store, lc, engine.DefaultRegistry())
	proc := processor.New(store, q, eng, lc)
	if cfg.Processor.Interval > 0 {
		proc.SetInterval(cfg.Processor.Interval)
	}

	planner, err := buildPlanner(cfg)
	if err != nil {
		store.Close()
		return nil, err
	}
	m := maestro.New(store, lc, q, planner)
	if cfg.Processor.MaxAttempts > 0 {
		m.SetMaxAttempts(cfg.Processor.MaxAttempts)
	}

	return &app{
		cfg:       cfg,
		loader:    loader,
		store:     store,
		lifecycle: lc,
		queue:     q,
		engine:    eng,
		processor: proc,
		maestro:   m,
	}, nil
}

// buildPlanner selects the planning backend from configuration, falling
// back to the keyword rule planner.
func buildPlanner(cfg *config.Config) (maestro.Planner, error) {
	if cfg.Planner.Backend == "llm" {
		return maestro.NewLLMPlanner(maestro.LLMPlannerConfig{
			Model:         cfg.Anthropic.Model,
			APIKey:        cfg.APIKey(),
			UseAWSBedrock: cfg.Anthropic.UseAWSBedrock,
			AWSRegion:     cfg.Anthropic.AWSRegion,
			AWSProfile:    cfg.Anthropic.AWSProfile,
		})
	}

	rules, err := loadPlannerRules(cfg)
	if err != nil {
		return nil, err
	}
	return maestro.NewRulePlanner(rules)
}

func loadPlannerRules(cfg *config.Config) (*maestro.Rules, error) {
	if cfg.Planner.RulesPath != "" {
		return maestro.LoadRules(cfg.Planner.RulesPath)
	}
	return maestro.DefaultRules()
}

func (a *app) Close() {
	a.store.Close()
}
