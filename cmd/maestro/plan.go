package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/maestrohq/maestro/pkg/models"
)

var orchestrateWatch bool

var planCmd = &cobra.Command{
	Use:   "plan <task-id>",
	Short: "Preview a task's decomposition without committing it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		plan, err := a.maestro.PlanTask(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		printPlan(plan)
		return nil
	},
}

var orchestrateCmd = &cobra.Command{
	Use:   "orchestrate <task-id>",
	Short: "Decompose a task into subtasks and queue them for agents",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		orchID, err := a.maestro.Orchestrate(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("%s Orchestration %s started\n", color.GreenString("✓"), orchID)

		if orchestrateWatch {
			return watchOrchestration(cmd.Context(), a, orchID)
		}
		fmt.Printf("Run 'maestro monitor %s' to follow progress.\n", orchID)
		return nil
	},
}

var monitorCmd = &cobra.Command{
	Use:   "monitor <orchestration-id>",
	Short: "Check an orchestration's progress",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		orch, err := a.maestro.MonitorExecution(args[0])
		if err != nil {
			return err
		}
		printOrchestration(orch)
		return nil
	},
}

// watchOrchestration drives the processor loop until the orchestration
// settles, then prints the final state.
func watchOrchestration(ctx context.Context, a *app, orchID string) error {
	logger := processorLogger(a)
	defer logger.Close()

	runner := newProcessorRunner(a, logger, a.maestro.MonitorFunc(orchID))
	runner.Launch(ctx)
	runner.Wait()

	orch, err := a.maestro.MonitorExecution(orchID)
	if err != nil {
		return err
	}
	printOrchestration(orch)
	return nil
}

func printPlan(plan *models.Plan) {
	for _, phase := range plan.Phases {
		fmt.Printf("%s\n", color.New(color.Bold).Sprint(phase.Name))
		for _, st := range phase.Subtasks {
			fmt.Printf("  [%s] %s (%.1fh)\n", st.Role, st.Title, st.EstimatedHours)
		}
	}
	fmt.Printf("\n%d subtasks, %.1f hours estimated\n", plan.SubtaskCount(), plan.EstimatedTotalHours)
}

func printOrchestration(orch *models.Orchestration) {
	status := string(orch.Status)
	switch orch.Status {
	case models.OrchCompleted:
		status = color.GreenString(status)
	case models.OrchFailed:
		status = color.RedString(status)
	case models.OrchExecuting:
		status = color.CyanString(status)
	}
	fmt.Printf("Orchestration %s: %s (task %s, %d subtasks)\n",
		orch.ID, status, orch.TaskID, orch.Plan.SubtaskCount())
}

func init() {
	orchestrateCmd.Flags().BoolVarP(&orchestrateWatch, "watch", "w", false, "Drive the processor until the orchestration settles")
}
