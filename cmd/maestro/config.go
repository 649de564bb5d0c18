package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/maestrohq/maestro/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "Manage configuration",
	Long: `View or modify Maestro configuration.

Without arguments, displays current configuration.
With one argument (key), displays the value for that key.
With two arguments (key value), sets the configuration value.

Configuration is stored at ~/.config/maestro/config.yaml
Project-specific overrides can be placed in .maestro.yaml`,
	Args: cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		switch len(args) {
		case 0:
			displayConfig(cfg)
			return nil
		case 1:
			return displayConfigKey(cfg, args[0])
		default:
			return setConfigKey(cfg, args[0], args[1])
		}
	},
}

func displayConfig(cfg *config.Config) {
	fmt.Printf("database.path:             %s\n", orDefault(cfg.Database.Path, "(default)"))
	fmt.Printf("anthropic.api_key:         %s\n", config.MaskKey(cfg.APIKey()))
	fmt.Printf("anthropic.model:           %s\n", orDefault(cfg.Anthropic.Model, "(default)"))
	fmt.Printf("processor.interval:        %s\n", cfg.Processor.Interval)
	fmt.Printf("processor.max_attempts:    %d\n", cfg.Processor.MaxAttempts)
	fmt.Printf("processor.loop_iterations: %d\n", cfg.Processor.LoopIterations)
	fmt.Printf("processor.loop_delay:      %s\n", cfg.Processor.LoopDelay)
	fmt.Printf("planner.backend:           %s\n", cfg.Planner.Backend)
	fmt.Printf("\nConfig file: %s\n", config.UserConfigPath())
}

func displayConfigKey(cfg *config.Config, key string) error {
	switch key {
	case "database.path":
		fmt.Println(orDefault(cfg.Database.Path, "(default)"))
	case "anthropic.api_key":
		fmt.Println(config.MaskKey(cfg.APIKey()))
	case "anthropic.model":
		fmt.Println(orDefault(cfg.Anthropic.Model, "(default)"))
	case "processor.interval":
		fmt.Println(cfg.Processor.Interval)
	case "processor.max_attempts":
		fmt.Println(cfg.Processor.MaxAttempts)
	case "processor.loop_iterations":
		fmt.Println(cfg.Processor.LoopIterations)
	case "processor.loop_delay":
		fmt.Println(cfg.Processor.LoopDelay)
	case "planner.backend":
		fmt.Println(cfg.Planner.Backend)
	default:
		return fmt.Errorf("unknown config key %q", key)
	}
	return nil
}

func setConfigKey(cfg *config.Config, key, value string) error {
	switch key {
	case "database.path":
		cfg.Database.Path = value
	case "anthropic.api_key":
		cfg.Anthropic.APIKey = value
	case "anthropic.model":
		cfg.Anthropic.Model = value
	case "processor.interval":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", value, err)
		}
		cfg.Processor.Interval = d
	case "processor.max_attempts":
		n, err := strconv.Atoi(value)
		if err != nil || n < 1 {
			return fmt.Errorf("invalid attempt count %q", value)
		}
		cfg.Processor.MaxAttempts = n
	case "processor.loop_iterations":
		n, err := strconv.Atoi(value)
		if err != nil || n < 1 {
			return fmt.Errorf("invalid iteration count %q", value)
		}
		cfg.Processor.LoopIterations = n
	case "processor.loop_delay":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", value, err)
		}
		cfg.Processor.LoopDelay = d
	case "planner.backend":
		if value != "rules" && value != "llm" {
			return fmt.Errorf("planner backend must be \"rules\" or \"llm\"")
		}
		cfg.Planner.Backend = value
	default:
		return fmt.Errorf("unknown config key %q", key)
	}

	if err := config.Save(cfg); err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	fmt.Printf("%s Set %s\n", color.GreenString("✓"), key)
	return nil
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
