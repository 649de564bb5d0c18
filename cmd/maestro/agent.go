package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/maestrohq/maestro/pkg/faults"
	"github.com/maestrohq/maestro/pkg/models"
)

var (
	agentSkills     string
	agentActiveOnly bool
)

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Manage agents",
}

var agentCreateCmd = &cobra.Command{
	Use:   "create <name> <role>",
	Short: "Register a new agent",
	Long: `Register a new agent with a unique name and one of the roles:
maestro, sentinel, architecton, pixel.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		role := models.AgentRole(args[1])
		if !role.Valid() {
			return faults.NewValidation("role", fmt.Sprintf("unknown role %q", args[1]))
		}

		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		agent := &models.Agent{
			ID:        uuid.New().String(),
			Name:      args[0],
			Role:      role,
			IsActive:  true,
			CreatedAt: time.Now(),
		}
		if agentSkills != "" {
			agent.Skills = strings.Split(agentSkills, ",")
		}
		if err := a.store.CreateAgent(agent); err != nil {
			return err
		}
		fmt.Printf("%s Registered agent %s (%s)\n", color.GreenString("✓"), agent.Name, agent.ID)
		return nil
	},
}

var agentListCmd = &cobra.Command{
	Use:   "list",
	Short: "List agents",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		agents, err := a.store.ListAgents(agentActiveOnly)
		if err != nil {
			return err
		}
		if len(agents) == 0 {
			fmt.Println("No agents.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tROLE\tACTIVE\tCOMPLETED\tSUCCESS")
		for _, ag := range agents {
			active := color.RedString("no")
			if ag.IsActive {
				active = color.GreenString("yes")
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%.0f%%\n",
				ag.ID, ag.Name, ag.Role, active, ag.TasksCompleted, ag.SuccessRate*100)
		}
		return w.Flush()
	},
}

var agentActivateCmd = &cobra.Command{
	Use:   "activate <agent-id>",
	Short: "Mark an agent active",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setAgentActive(args[0], true)
	},
}

var agentDeactivateCmd = &cobra.Command{
	Use:   "deactivate <agent-id>",
	Short: "Mark an agent inactive",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setAgentActive(args[0], false)
	},
}

func setAgentActive(id string, active bool) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	agent, err := a.store.GetAgent(id)
	if err != nil {
		return err
	}
	if agent == nil {
		return faults.NewNotFound("agent", id)
	}
	agent.IsActive = active
	if err := a.store.UpdateAgent(agent); err != nil {
		return err
	}

	state := "inactive"
	if active {
		state = "active"
	}
	fmt.Printf("%s Agent %s is now %s\n", color.GreenString("✓"), agent.Name, state)
	return nil
}

func init() {
	agentCreateCmd.Flags().StringVar(&agentSkills, "skills", "", "Comma-separated skill list")
	agentListCmd.Flags().BoolVar(&agentActiveOnly, "active", false, "Show only active agents")

	agentCmd.AddCommand(agentCreateCmd)
	agentCmd.AddCommand(agentListCmd)
	agentCmd.AddCommand(agentActivateCmd)
	agentCmd.AddCommand(agentDeactivateCmd)
}
