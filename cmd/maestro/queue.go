package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/maestrohq/maestro/internal/queue"
)

var (
	queueMaxAttempts int
	queueListAgent   string
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Manage agent work queues",
}

var queueAddCmd = &cobra.Command{
	Use:   "add <task-id> <agent-id>",
	Short: "Queue a task for an agent",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		entry, err := a.queue.Enqueue(args[0], args[1], queueMaxAttempts)
		if err != nil {
			return err
		}
		fmt.Printf("%s Queued task %s for agent %s (entry %s)\n",
			color.GreenString("✓"), entry.TaskID, entry.AgentID, entry.ID)
		return nil
	},
}

var queueListCmd = &cobra.Command{
	Use:   "list",
	Short: "List queue entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		entries, err := a.queue.List(queueListAgent)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("Queue is empty.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTASK\tAGENT\tSTATUS\tATTEMPTS")
		for _, e := range entries {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d/%d\n",
				e.ID, e.TaskID, e.AgentID, e.Status, e.Attempts, e.MaxAttempts)
		}
		return w.Flush()
	},
}

var queueNextCmd = &cobra.Command{
	Use:   "next <agent-id>",
	Short: "Show the next pending entry for an agent",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		entry, err := a.queue.NextInQueue(args[0])
		if err != nil {
			return err
		}
		if entry == nil {
			fmt.Println("Queue is empty.")
			return nil
		}
		fmt.Printf("Entry %s: task %s (attempt %d of %d)\n",
			entry.ID, entry.TaskID, entry.Attempts+1, entry.MaxAttempts)
		return nil
	},
}

var queueRemoveCmd = &cobra.Command{
	Use:   "remove <task-id>",
	Short: "Remove a task's queue entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.queue.Remove(args[0]); err != nil {
			return err
		}
		fmt.Printf("%s Removed queue entry for task %s\n", color.GreenString("✓"), args[0])
		return nil
	},
}

func init() {
	queueAddCmd.Flags().IntVar(&queueMaxAttempts, "max-attempts", queue.DefaultMaxAttempts, "Retry bound for the entry")
	queueListCmd.Flags().StringVar(&queueListAgent, "agent", "", "Filter by agent ID")

	queueCmd.AddCommand(queueAddCmd)
	queueCmd.AddCommand(queueListCmd)
	queueCmd.AddCommand(queueNextCmd)
	queueCmd.AddCommand(queueRemoveCmd)
}
