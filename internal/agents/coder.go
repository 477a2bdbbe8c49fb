package agents

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"scalebench/internal/pricing"
	"scalebench/internal/sandbox"
	"scalebench/internal/schema"
)

const coderSystemPrompt = `You are an expert competitive programmer.
Write a complete ISO C++17 program that reads from standard input and
writes to standard output. Respond with the program source only, no
commentary. The program must compile without warnings under -std=c++17.`

// OpenAICoder turns plans into C++ candidates via the chat-completions API.
type OpenAICoder struct {
	cli   *openai.Client
	model string
	meter *pricing.Meter
	log   *zap.Logger
}

func NewOpenAICoder(model string, meter *pricing.Meter, logger *zap.Logger) (*OpenAICoder, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY not set")
	}
	return &OpenAICoder{
		cli:   openai.NewClient(apiKey),
		model: model,
		meter: meter,
		log:   logger.Named("coder"),
	}, nil
}

func (c *OpenAICoder) Code(ctx context.Context, plan schema.PlanMessage, patch string) (schema.CodeMessage, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Algorithm: %s\nInput bounds: %v\nConstraints: %v\n",
		plan.Algorithm, plan.InputBounds, plan.Constraints)
	if patch != "" {
		fmt.Fprintf(&sb, "\nApply this optimization to the previous attempt:\n%s\n", patch)
	}

	resp, err := c.cli.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: coderSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: sb.String()},
		},
	})
	if err != nil {
		return schema.CodeMessage{}, fmt.Errorf("openai request: %w", err)
	}
	if len(resp.Choices) == 0 {
		return schema.CodeMessage{}, fmt.Errorf("openai returned no choices")
	}
	if c.meter != nil {
		c.meter.Record("openai", c.model, resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
	}

	source := stripFences(resp.Choices[0].Message.Content)
	c.log.Debug("code received", zap.Int("bytes", len(source)), zap.Bool("patched", patch != ""))

	return schema.CodeMessage{
		TaskID:        plan.TaskID,
		Iteration:     plan.Iteration,
		Source:        source,
		CompileFlags:  sandbox.CompileFlags,
		Timestamp:     time.Now().UTC(),
		SchemaVersion: schema.SchemaVersion,
	}, nil
}
