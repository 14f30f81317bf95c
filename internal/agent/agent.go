// Package agent runs role-scoped LLM agents: a bounded loop of tool calls
// that ends in a schema-validated JSON answer.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Keyring-Network/keyring-keywords/control-plane/internal/llm"
	"github.com/Keyring-Network/keyring-keywords/control-plane/internal/metrics"
	"github.com/Keyring-Network/keyring-keywords/control-plane/internal/schema"
)

type Spec struct {
	Name         string
	Instructions string
	Tools        []string
	Output       schema.Schema
	MaxTurns     int
}

func (s Spec) allows(tool string) bool {
	for _, name := range s.Tools {
		if name == tool {
			return true
		}
	}
	return false
}

type ToolExecutor interface {
	Definitions(names ...string) []llm.ToolDefinition
	Execute(ctx context.Context, name string, args json.RawMessage) (string, error)
}

// Runner runs one agent to completion and returns its validated final answer.
type Runner interface {
	Run(ctx context.Context, spec Spec, prompt string, tools ToolExecutor) (json.RawMessage, error)
}

type LLMRunner struct {
	provider llm.Provider
	logger   *slog.Logger
}

func NewLLMRunner(provider llm.Provider, logger *slog.Logger) *LLMRunner {
	if logger == nil {
		logger = slog.Default()
	}
	return &LLMRunner{provider: provider, logger: logger}
}

// Run drives the turn loop. A turn is one model invocation; every tool call
// requested in that turn is executed before the next one. Tool failures are
// reported back to the model as text and never end the run.
func (r *LLMRunner) Run(ctx context.Context, spec Spec, prompt string, tools ToolExecutor) (json.RawMessage, error) {
	validator, err := spec.Output.Compile()
	if err != nil {
		return nil, fmt.Errorf("agent %s: %w", spec.Name, err)
	}
	logger := r.logger.With("agent", spec.Name)

	req := llm.Request{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: systemPrompt(spec)},
			{Role: llm.RoleUser, Content: prompt},
		},
		ResponseFormat: &llm.ResponseFormat{Name: spec.Name, Schema: spec.Output},
	}
	if tools != nil && len(spec.Tools) > 0 {
		req.Tools = tools.Definitions(spec.Tools...)
	}

	for turn := 1; turn <= spec.MaxTurns; turn++ {
		metrics.AgentTurnsTotal.WithLabelValues(spec.Name).Inc()
		resp, err := r.provider.Complete(ctx, req)
		if err != nil {
			metrics.AgentOutcomesTotal.WithLabelValues(spec.Name, "error").Inc()
			return nil, err
		}

		if len(resp.ToolCalls) == 0 {
			output := extractJSON(resp.Content)
			if err := validator.ValidateJSON([]byte(output)); err != nil {
				metrics.AgentOutcomesTotal.WithLabelValues(spec.Name, "invalid_output").Inc()
				logger.Warn("agent final output rejected", "turn", turn, "error", err)
				return nil, SchemaValidationError{Agent: spec.Name, Detail: err.Error()}
			}
			metrics.AgentOutcomesTotal.WithLabelValues(spec.Name, "completed").Inc()
			logger.Info("agent completed", "turns", turn)
			return json.RawMessage(output), nil
		}

		req.Messages = append(req.Messages, llm.Message{
			Role:      llm.RoleAssistant,
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})
		for _, call := range resp.ToolCalls {
			req.Messages = append(req.Messages, llm.Message{
				Role:       llm.RoleTool,
				ToolCallID: call.ID,
				Content:    r.executeTool(ctx, logger, spec, tools, call, turn),
			})
		}
	}

	metrics.AgentOutcomesTotal.WithLabelValues(spec.Name, "turn_budget").Inc()
	logger.Warn("agent exhausted turn budget", "max_turns", spec.MaxTurns)
	return nil, TurnBudgetError{Agent: spec.Name, MaxTurns: spec.MaxTurns}
}

func (r *LLMRunner) executeTool(ctx context.Context, logger *slog.Logger, spec Spec, tools ToolExecutor, call llm.ToolCall, turn int) string {
	if !spec.allows(call.Name) || tools == nil {
		logger.Warn("agent requested unavailable tool", "tool", call.Name, "turn", turn)
		return fmt.Sprintf("error: tool %q is not available to this agent", call.Name)
	}
	out, err := tools.Execute(ctx, call.Name, call.Arguments)
	if err != nil {
		logger.Info("tool call failed", "tool", call.Name, "turn", turn, "error", err)
		return "error: " + err.Error()
	}
	logger.Debug("tool call completed", "tool", call.Name, "turn", turn, "bytes", len(out))
	return out
}

func systemPrompt(spec Spec) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(spec.Instructions))
	b.WriteString("\n\nWhen you are done calling tools, reply with a single JSON document and nothing else. It must match this JSON schema:\n")
	b.WriteString(spec.Output.String())
	return b.String()
}

// extractJSON strips a surrounding markdown code fence if the model added one.
func extractJSON(content string) string {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, "```") {
		return content
	}
	content = strings.TrimPrefix(content, "```")
	if newline := strings.Index(content, "\n"); newline >= 0 {
		content = content[newline+1:]
	}
	content = strings.TrimSuffix(strings.TrimSpace(content), "```")
	return strings.TrimSpace(content)
}
