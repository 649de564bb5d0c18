package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/maestrohq/maestro/pkg/models"
)

var (
	taskDescription string
	taskPriority    string
	taskParent      string
	taskNotes       string
	taskListStatus  string
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Manage tasks",
}

var taskCreateCmd = &cobra.Command{
	Use:   "create <title>",
	Short: "Create a new task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		task := &models.Task{
			Title:       args[0],
			Description: taskDescription,
			Priority:    models.TaskPriority(taskPriority),
			ParentID:    taskParent,
		}
		if err := a.lifecycle.Create(task); err != nil {
			return err
		}
		fmt.Printf("%s Created task %s\n", color.GreenString("✓"), task.ID)
		return nil
	},
}

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		var filter *models.TaskStatus
		if taskListStatus != "" {
			s := models.TaskStatus(taskListStatus)
			if !s.Valid() {
				return fmt.Errorf("unknown status %q", taskListStatus)
			}
			filter = &s
		}

		tasks, err := a.lifecycle.List(filter)
		if err != nil {
			return err
		}
		if len(tasks) == 0 {
			fmt.Println("No tasks.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTITLE\tSTATUS\tPRIORITY\tAGENT")
		for _, t := range tasks {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", t.ID, t.Title, colorStatus(t.Status), t.Priority, t.AgentName)
		}
		return w.Flush()
	},
}

var taskShowCmd = &cobra.Command{
	Use:   "show <task-id>",
	Short: "Show task details",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		task, err := a.store.GetTask(args[0])
		if err != nil {
			return err
		}
		if task == nil {
			return fmt.Errorf("task %s not found", args[0])
		}

		fmt.Printf("ID:          %s\n", task.ID)
		fmt.Printf("Title:       %s\n", task.Title)
		fmt.Printf("Status:      %s\n", colorStatus(task.Status))
		fmt.Printf("Priority:    %s\n", task.Priority)
		if task.Description != "" {
			fmt.Printf("Description: %s\n", task.Description)
		}
		if task.ParentID != "" {
			fmt.Printf("Parent:      %s\n", task.ParentID)
		}
		if task.AgentName != "" {
			fmt.Printf("Agent:       %s\n", task.AgentName)
		}
		if task.OrchestrationID != "" {
			fmt.Printf("Orchestration: %s (phase %d)\n", task.OrchestrationID, task.ExecutionOrder)
		}
		fmt.Printf("Created:     %s\n", task.CreatedAt.Format("2006-01-02 15:04:05"))
		if task.CompletedAt != nil {
			fmt.Printf("Completed:   %s\n", task.CompletedAt.Format("2006-01-02 15:04:05"))
		}

		subtasks, err := a.store.ListSubtasks(task.ID)
		if err != nil {
			return err
		}
		if len(subtasks) > 0 {
			fmt.Printf("\nSubtasks (%d):\n", len(subtasks))
			for _, st := range subtasks {
				fmt.Printf("  [%s] %s (%s)\n", colorStatus(st.Status), st.Title, st.ID)
			}
		}
		return nil
	},
}

var taskStatusCmd = &cobra.Command{
	Use:   "status <task-id> <status>",
	Short: "Transition a task to a new status",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		task, err := a.lifecycle.Transition(args[0], models.TaskStatus(args[1]), taskNotes)
		if err != nil {
			return err
		}
		fmt.Printf("%s Task %s is now %s\n", color.GreenString("✓"), task.ID, colorStatus(task.Status))
		return nil
	},
}

var taskHistoryCmd = &cobra.Command{
	Use:   "history <task-id>",
	Short: "Show a task's status history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		changes, err := a.lifecycle.History(args[0])
		if err != nil {
			return err
		}
		for _, c := range changes {
			from := string(c.FromStatus)
			if from == "" {
				from = "-"
			}
			line := fmt.Sprintf("%s  %s → %s", c.CreatedAt.Format("2006-01-02 15:04:05"), from, c.ToStatus)
			if c.Notes != "" {
				line += "  (" + c.Notes + ")"
			}
			fmt.Println(line)
		}
		return nil
	},
}

var taskDeleteCmd = &cobra.Command{
	Use:   "delete <task-id>",
	Short: "Delete a task and its subtasks",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.lifecycle.Delete(args[0]); err != nil {
			return err
		}
		fmt.Printf("%s Deleted task %s\n", color.GreenString("✓"), args[0])
		return nil
	},
}

func colorStatus(s models.TaskStatus) string {
	switch s {
	case models.TaskStatusDone:
		return color.GreenString(string(s))
	case models.TaskStatusInProgress:
		return color.CyanString(string(s))
	case models.TaskStatusReview:
		return color.YellowString(string(s))
	case models.TaskStatusBlocked:
		return color.RedString(string(s))
	default:
		return string(s)
	}
}

func init() {
	taskCreateCmd.Flags().StringVarP(&taskDescription, "description", "d", "", "Task description")
	taskCreateCmd.Flags().StringVarP(&taskPriority, "priority", "p", "medium", "Priority (low, medium, high, urgent)")
	taskCreateCmd.Flags().StringVar(&taskParent, "parent", "", "Parent task ID")
	taskStatusCmd.Flags().StringVarP(&taskNotes, "notes", "n", "", "Notes recorded with the transition")
	taskListCmd.Flags().StringVarP(&taskListStatus, "status", "s", "", "Filter by status")

	taskCmd.AddCommand(taskCreateCmd)
	taskCmd.AddCommand(taskListCmd)
	taskCmd.AddCommand(taskShowCmd)
	taskCmd.AddCommand(taskStatusCmd)
	taskCmd.AddCommand(taskHistoryCmd)
	taskCmd.AddCommand(taskDeleteCmd)
}
