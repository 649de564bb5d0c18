package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var execCmd = &cobra.Command{
	Use:   "exec",
	Short: "Run and control task executions",
}

var execRunCmd = &cobra.Command{
	Use:   "run <task-id> <agent-id>",
	Short: "Execute a task with an agent",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		result, err := a.engine.ExecuteTask(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		printResult(result.ExecutionID, result.Success, result.Paused, result.Cancelled, result.Error)
		return nil
	},
}

var execResumeCmd = &cobra.Command{
	Use:   "resume <execution-id>",
	Short: "Resume a paused execution",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		result, err := a.engine.ResumeExecution(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		printResult(result.ExecutionID, result.Success, result.Paused, result.Cancelled, result.Error)
		return nil
	},
}

var execPauseCmd = &cobra.Command{
	Use:   "pause <execution-id>",
	Short: "Pause a running execution",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.engine.PauseExecution(args[0]); err != nil {
			return err
		}
		fmt.Printf("%s Execution %s pausing\n", color.YellowString("⏸"), args[0])
		return nil
	},
}

var execCancelCmd = &cobra.Command{
	Use:   "cancel <execution-id>",
	Short: "Cancel an execution",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.engine.CancelExecution(args[0]); err != nil {
			return err
		}
		fmt.Printf("%s Execution %s cancelled\n", color.RedString("✗"), args[0])
		return nil
	},
}

var execStatusCmd = &cobra.Command{
	Use:   "status <execution-id>",
	Short: "Show execution status",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		exec, err := a.engine.GetExecution(args[0])
		if err != nil {
			return err
		}

		fmt.Printf("ID:       %s\n", exec.ID)
		fmt.Printf("Task:     %s\n", exec.TaskID)
		fmt.Printf("Agent:    %s\n", exec.AgentID)
		fmt.Printf("Status:   %s\n", exec.Status)
		fmt.Printf("Progress: %d%%\n", exec.Progress)
		if exec.Result != "" {
			fmt.Printf("Result:   %s\n", exec.Result)
		}
		if exec.Error != "" {
			fmt.Printf("Error:    %s\n", color.RedString(exec.Error))
		}
		return nil
	},
}

var execLogsCmd = &cobra.Command{
	Use:   "logs <execution-id>",
	Short: "Show execution logs",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		logs, err := a.engine.Logs(args[0])
		if err != nil {
			return err
		}
		for _, l := range logs {
			fmt.Printf("%s [%s] %s\n", l.CreatedAt.Format("15:04:05.000"), l.Level, l.Message)
		}
		return nil
	},
}

func printResult(executionID string, success, paused, cancelled bool, errMsg string) {
	switch {
	case success:
		fmt.Printf("%s Execution %s completed\n", color.GreenString("✓"), executionID)
	case paused:
		fmt.Printf("%s Execution %s paused\n", color.YellowString("⏸"), executionID)
	case cancelled:
		fmt.Printf("%s Execution %s cancelled\n", color.RedString("✗"), executionID)
	default:
		fmt.Printf("%s Execution %s failed: %s\n", color.RedString("✗"), executionID, errMsg)
	}
}

func init() {
	execCmd.AddCommand(execRunCmd)
	execCmd.AddCommand(execResumeCmd)
	execCmd.AddCommand(execPauseCmd)
	execCmd.AddCommand(execCancelCmd)
	execCmd.AddCommand(execStatusCmd)
	execCmd.AddCommand(execLogsCmd)
}
