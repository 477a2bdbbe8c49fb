// Package agents implements the external collaborators the pipeline
// controller talks to: plan and code generation backed by hosted models,
// plus the deterministic analyst and the heuristic static pruner.
package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	genai "google.golang.org/genai"

	"scalebench/internal/pricing"
	"scalebench/internal/schema"
)

const plannerSystemPrompt = `You are a competitive programming strategist.
Respond with EXACTLY this JSON shape and nothing else:
{
  "algorithm": "brief algorithm description",
  "input_bounds": {"n": 100000},
  "constraints": {"runtime_limit": 2000, "memory_limit": 512}
}
Values in input_bounds and constraints must be plain integers.`

// GeminiPlanner produces algorithm plans via the Gemini API in JSON mode.
type GeminiPlanner struct {
	cli   *genai.Client
	model string
	meter *pricing.Meter
	log   *zap.Logger
}

func NewGeminiPlanner(ctx context.Context, model string, meter *pricing.Meter, logger *zap.Logger) (*GeminiPlanner, error) {
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}
	return &GeminiPlanner{
		cli:   cli,
		model: model,
		meter: meter,
		log:   logger.Named("planner"),
	}, nil
}

// planPayload is the wire shape the model is asked to emit.
type planPayload struct {
	Algorithm   string         `json:"algorithm"`
	InputBounds map[string]int `json:"input_bounds"`
	Constraints map[string]int `json:"constraints"`
}

func (p *GeminiPlanner) Plan(ctx context.Context, problem schema.ProblemInput, feedback string) (schema.PlanMessage, error) {
	var sb strings.Builder
	sb.WriteString(plannerSystemPrompt)
	sb.WriteString("\n\nPROBLEM:\n")
	sb.WriteString(problem.Prompt)
	if feedback != "" {
		sb.WriteString("\n\nThe previous plan proved inefficient. Feedback:\n")
		sb.WriteString(feedback)
		sb.WriteString("\nChoose a different algorithmic approach.")
	}
	prompt := sb.String()

	resp, err := p.cli.Models.GenerateContent(ctx, p.model,
		[]*genai.Content{{Parts: []*genai.Part{{Text: prompt}}}},
		&genai.GenerateContentConfig{ResponseMIMEType: "application/json"},
	)
	if err != nil {
		return schema.PlanMessage{}, fmt.Errorf("gemini request: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return schema.PlanMessage{}, fmt.Errorf("gemini returned no candidates")
	}
	text := resp.Candidates[0].Content.Parts[0].Text
	p.record(prompt, text)

	var payload planPayload
	if err := json.Unmarshal([]byte(stripFences(text)), &payload); err != nil {
		return schema.PlanMessage{}, fmt.Errorf("parsing plan JSON: %w", err)
	}

	plan := schema.PlanMessage{
		TaskID:        problem.TaskID,
		Algorithm:     payload.Algorithm,
		InputBounds:   payload.InputBounds,
		Constraints:   payload.Constraints,
		Timestamp:     time.Now().UTC(),
		SchemaVersion: schema.SchemaVersion,
	}
	if len(plan.Constraints) == 0 {
		plan.Constraints = problem.Constraints
	}
	p.log.Debug("plan received", zap.String("algorithm", plan.Algorithm))
	return plan, nil
}

// record approximates token usage at 4 chars per token; the Gemini SDK does
// not expose exact counts on every response shape.
func (p *GeminiPlanner) record(prompt, completion string) {
	if p.meter == nil {
		return
	}
	p.meter.Record("google", p.model, len(prompt)/4, len(completion)/4)
}

// stripFences removes a wrapping markdown code fence, if any.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```cpp")
	s = strings.TrimPrefix(s, "```c++")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
