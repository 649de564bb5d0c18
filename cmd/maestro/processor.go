package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/maestrohq/maestro/internal/config"
	"github.com/maestrohq/maestro/internal/processor"
)

var processorCmd = &cobra.Command{
	Use:   "processor",
	Short: "Drive the queue auto-processor",
}

var processorTickCmd = &cobra.Command{
	Use:   "tick",
	Short: "Run a single processing pass over all agent queues",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		a.processor.Start()
		result, err := a.processor.Tick(cmd.Context())
		if err != nil {
			return err
		}
		printTick(result)
		return nil
	},
}

var processorRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the processor loop for a bounded number of iterations",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		// Live-reload cadence edits while the loop runs.
		a.loader.Watch(func(cfg *config.Config) {
			if cfg.Processor.Interval > 0 {
				a.processor.SetInterval(cfg.Processor.Interval)
			}
		})

		logger := processorLogger(a)
		defer logger.Close()

		runner := newProcessorRunner(a, logger, nil)
		if !runner.Launch(cmd.Context()) {
			return fmt.Errorf("processor loop already running")
		}
		runner.Wait()

		status := a.processor.GetStatus()
		if status.LastTickResult != nil {
			printTick(status.LastTickResult)
		}
		return nil
	},
}

var processorStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show processor status",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		status := a.processor.GetStatus()
		enabled := color.RedString("disabled")
		if status.Enabled {
			enabled = color.GreenString("enabled")
		}
		fmt.Printf("Processor: %s, interval %ds\n", enabled, status.IntervalSeconds)
		if status.LastTickAt != nil {
			fmt.Printf("Last tick: %s\n", status.LastTickAt.Format("2006-01-02 15:04:05"))
		}
		if status.LastTickResult != nil {
			printTick(status.LastTickResult)
		}
		return nil
	},
}

func printTick(r *processor.TickResult) {
	fmt.Printf("Processed %d (%s %d, %s %d)\n",
		r.Processed,
		color.GreenString("succeeded"), r.Succeeded,
		color.RedString("failed"), r.Failed)
	for _, e := range r.Errors {
		fmt.Printf("  %s %s\n", color.RedString("!"), e)
	}
}

// processorLogger builds the debug log sink from configuration; pathless
// config yields a no-op logger.
func processorLogger(a *app) *processor.DebugLogger {
	if a.cfg.Processor.DebugLog == "" {
		return processor.NopLogger()
	}
	logger, err := processor.NewDebugLogger(a.cfg.Processor.DebugLog)
	if err != nil {
		return processor.NopLogger()
	}
	return logger
}

func newProcessorRunner(a *app, logger *processor.DebugLogger, monitor processor.MonitorFunc) *processor.Runner {
	a.processor.Start()
	return processor.NewRunner(a.processor, processor.RunnerConfig{
		MaxIterations: a.cfg.Processor.LoopIterations,
		Delay:         a.cfg.Processor.LoopDelay,
		Monitor:       monitor,
		Logger:        logger,
	})
}

func init() {
	processorCmd.AddCommand(processorTickCmd)
	processorCmd.AddCommand(processorRunCmd)
	processorCmd.AddCommand(processorStatusCmd)
}
