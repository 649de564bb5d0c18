package maestro

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/bedrock"
	"github.com/anthropics/anthropic-sdk-go/option"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"

	"github.com/maestrohq/maestro/pkg/faults"
	"github.com/maestrohq/maestro/pkg/models"
)

// planPrompt asks the model for a decomposition in the exact Plan JSON shape.
const planPrompt = `Decompose this software task into ordered phases of subtasks.

Task title: %s
Task description: %s

Agent roles available:
- maestro: planning and coordination
- sentinel: review and verification
- architecton: backend design and implementation
- pixel: user interface work

Return ONLY a JSON object with this exact structure (no other text):
{
  "phases": [
    {
      "name": "Phase name",
      "subtasks": [
        {"title": "Short title", "description": "What to do", "role": "architecton", "estimated_hours": 2}
      ]
    }
  ]
}

Guidelines:
- Phase order must encode dependency order (design before build before review)
- Every subtask role must be one of: maestro, sentinel, architecton, pixel
- Estimated hours must be positive numbers`

// LLMPlannerConfig configures the Anthropic-backed planner.
type LLMPlannerConfig struct {
	// Model is the Claude model name. Empty selects a default.
	Model string
	// APIKey is the Anthropic API key. If empty, uses ANTHROPIC_API_KEY.
	APIKey string
	// UseAWSBedrock routes requests through AWS Bedrock instead of the
	// direct API.
	UseAWSBedrock bool
	// AWSRegion is the AWS region for Bedrock.
	AWSRegion string
	// AWSProfile is the optional AWS profile name to use.
	AWSProfile string
}

// LLMPlanner produces plans through the Anthropic messages API. It
// implements Planner and, like the rule planner, has no side effects on
// Maestro state.
type LLMPlanner struct {
	client anthropic.Client
	model  anthropic.Model
}

// NewLLMPlanner creates an Anthropic-backed planner.
func NewLLMPlanner(cfg LLMPlannerConfig) (*LLMPlanner, error) {
	var opts []option.RequestOption

	if cfg.UseAWSBedrock {
		ctx := context.Background()

		var loadOpts []func(*awsconfig.LoadOptions) error
		if cfg.AWSRegion != "" {
			loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.AWSRegion))
		}
		if cfg.AWSProfile != "" {
			loadOpts = append(loadOpts, awsconfig.WithSharedConfigProfile(cfg.AWSProfile))
		}

		opts = append(opts, bedrock.WithLoadDefaultConfig(ctx, loadOpts...))
	} else {
		apiKey := cfg.APIKey
		if apiKey == "" {
			apiKey = os.Getenv("ANTHROPIC_API_KEY")
		}
		if apiKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY environment variable is not set")
		}
		opts = append(opts, option.WithAPIKey(apiKey))
	}

	model := anthropic.Model(cfg.Model)
	if model == "" {
		model = anthropic.ModelClaudeSonnet4_20250514
	}

	return &LLMPlanner{
		client: anthropic.NewClient(opts...),
		model:  model,
	}, nil
}

// PlanTask prompts the model for a decomposition and parses the structured
// JSON response.
func (p *LLMPlanner) PlanTask(ctx context.Context, task *models.Task) (*models.Plan, error) {
	if task == nil || task.Title == "" {
		return nil, faults.NewValidation("title", "required for planning")
	}

	prompt := fmt.Sprintf(planPrompt, task.Title, task.Description)

	resp, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     p.model,
		MaxTokens: 4096,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("plan request: %w", err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if variant, ok := block.AsAny().(anthropic.TextBlock); ok {
			text.WriteString(variant.Text)
		}
	}

	plan, err := parsePlanResponse(text.String())
	if err != nil {
		return nil, fmt.Errorf("parse plan response: %w", err)
	}
	return plan, nil
}

// parsePlanResponse extracts and validates the Plan JSON from a model
// response that may include extra text around it.
func parsePlanResponse(response string) (*models.Plan, error) {
	jsonStart := strings.Index(response, "{")
	jsonEnd := strings.LastIndex(response, "}")
	if jsonStart == -1 || jsonEnd == -1 || jsonEnd <= jsonStart {
		return nil, fmt.Errorf("no valid JSON object found in response")
	}

	var plan models.Plan
	if err := json.Unmarshal([]byte(response[jsonStart:jsonEnd+1]), &plan); err != nil {
		return nil, fmt.Errorf("unmarshal JSON: %w", err)
	}

	if len(plan.Phases) == 0 {
		return nil, fmt.Errorf("empty phase list returned")
	}
	for _, ph := range plan.Phases {
		if len(ph.Subtasks) == 0 {
			return nil, fmt.Errorf("phase %q has no subtasks", ph.Name)
		}
		for _, st := range ph.Subtasks {
			if st.Title == "" {
				return nil, fmt.Errorf("phase %q has a subtask without a title", ph.Name)
			}
			if !st.Role.Valid() {
				return nil, fmt.Errorf("unknown role %q for subtask %q", st.Role, st.Title)
			}
			if st.EstimatedHours <= 0 {
				return nil, fmt.Errorf("subtask %q has non-positive hours", st.Title)
			}
		}
	}

	plan.EstimatedTotalHours = plan.SumHours()
	return &plan, nil
}
