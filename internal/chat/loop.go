// Package chat runs the conversation loop: it injects the system prompt,
// alternates model turns with tool execution and stops at the first answer
// or at the turn limit.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/tabletalk/tabletalk/internal/llm"
	"github.com/tabletalk/tabletalk/internal/model"
	"github.com/tabletalk/tabletalk/internal/observability"
	"github.com/tabletalk/tabletalk/internal/tools"
)

// DefaultMaxTurns bounds the model round trips of a single run.
const DefaultMaxTurns = 10

// Run outcomes reported to metrics.
const (
	outcomeAnswered = "answered"
	outcomeFailed   = "failed"
	outcomeOverflow = "overflow"
)

// ErrInvalidConversation is wrapped by Run when the history is malformed.
var ErrInvalidConversation = errors.New("invalid conversation")

// LoopExceededError is returned when the model keeps requesting tools after
// MaxTurns round trips.
type LoopExceededError struct {
	MaxTurns int
}

func (e *LoopExceededError) Error() string {
	return fmt.Sprintf("conversation exceeded %d model turns without a final answer", e.MaxTurns)
}

// SchemaSource yields the catalog the prompt and tool descriptor describe.
type SchemaSource interface {
	GetSchema(ctx context.Context) (*model.Catalog, error)
}

// ToolDispatcher executes one tool call.
type ToolDispatcher interface {
	Dispatch(ctx context.Context, call llm.ToolCall) tools.Outcome
}

// Recorder receives every dispatched tool call, e.g. for auditing.
type Recorder interface {
	RecordToolCall(ctx context.Context, runID string, out tools.Outcome) error
}

// Config tunes the loop.
type Config struct {
	Model       string
	MaxTurns    int
	Temperature float64
}

// Result is the outcome of a run.
type Result struct {
	RunID     string
	Answer    string
	Turns     int
	ToolCalls int
	// Messages is the full conversation including the system prompt, the
	// intermediate tool turns and the final answer.
	Messages []llm.Message
}

// Loop drives conversations. It holds no per-run state and is safe for
// concurrent use.
type Loop struct {
	provider   llm.Provider
	schema     SchemaSource
	dispatcher ToolDispatcher
	cfg        Config
	recorder   Recorder
	runID      func(ctx context.Context) string
	logger     *slog.Logger
}

// Option configures a Loop.
type Option func(*Loop)

// WithRecorder reports tool calls to r.
func WithRecorder(r Recorder) Option {
	return func(l *Loop) { l.recorder = r }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loop) { l.logger = logger }
}

// WithRunID derives the run id from the context, typically the request id
// of the HTTP call. Runs without one get a fresh UUID.
func WithRunID(f func(ctx context.Context) string) Option {
	return func(l *Loop) { l.runID = f }
}

// NewLoop returns a loop using provider for model turns and dispatcher for
// tool calls.
func NewLoop(provider llm.Provider, schema SchemaSource, dispatcher ToolDispatcher, cfg Config, opts ...Option) *Loop {
	if cfg.MaxTurns <= 0 {
		cfg.MaxTurns = DefaultMaxTurns
	}
	l := &Loop{
		provider:   provider,
		schema:     schema,
		dispatcher: dispatcher,
		cfg:        cfg,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Run answers the last user message of history. A system prompt built from
// the current catalog is prepended unless history already starts with one.
func (l *Loop) Run(ctx context.Context, history []llm.Message) (*Result, error) {
	if err := llm.ValidateHistory(history); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConversation, err)
	}

	cat, err := l.schema.GetSchema(ctx)
	if err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}

	messages := make([]llm.Message, 0, len(history)+4)
	if len(history) == 0 || history[0].Role != llm.RoleSystem {
		messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: SystemPrompt(cat)})
	}
	messages = append(messages, history...)

	res := &Result{RunID: l.newRunID(ctx)}
	logger := l.logger.With("run_id", res.RunID)
	toolset := []llm.Tool{tools.SelectSQLTool(cat)}

	for res.Turns < l.cfg.MaxTurns {
		res.Turns++
		resp, err := l.provider.Chat(ctx, llm.ChatRequest{
			Model:       l.cfg.Model,
			Messages:    messages,
			Tools:       toolset,
			Temperature: l.cfg.Temperature,
		})
		if err != nil {
			var perr *llm.ProviderError
			if errors.As(err, &perr) {
				observability.IncrementProviderError(string(perr.Kind))
			}
			observability.ObserveChatRun(outcomeFailed, res.Turns)
			logger.Warn("model turn failed", "turn", res.Turns, "error", err)
			return nil, err
		}

		if !resp.WantsTools() {
			messages = append(messages, llm.Message{Role: llm.RoleAssistant, Content: resp.Content})
			res.Answer = resp.Content
			res.Messages = messages
			observability.ObserveChatRun(outcomeAnswered, res.Turns)
			logger.Debug("conversation answered", "turns", res.Turns, "tool_calls", res.ToolCalls)
			return res, nil
		}

		messages = append(messages, llm.Message{
			Role:      llm.RoleAssistant,
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})
		for _, call := range resp.ToolCalls {
			out := l.dispatcher.Dispatch(ctx, call)
			res.ToolCalls++
			l.observe(ctx, logger, res.RunID, res.Turns, out)
			messages = append(messages, llm.Message{
				Role:       llm.RoleTool,
				ToolCallID: call.ID,
				Name:       call.Function.Name,
				Content:    out.Payload,
			})
		}
	}

	observability.IncrementLoopOverflow()
	observability.ObserveChatRun(outcomeOverflow, res.Turns)
	logger.Error("conversation loop exceeded turn limit", "max_turns", l.cfg.MaxTurns, "tool_calls", res.ToolCalls)
	return nil, &LoopExceededError{MaxTurns: l.cfg.MaxTurns}
}

func (l *Loop) observe(ctx context.Context, logger *slog.Logger, runID string, turn int, out tools.Outcome) {
	name := out.Call.Function.Name
	if name != tools.SelectSQL {
		name = "unknown"
	}
	observability.ObserveToolCall(name, out.Status, out.Duration)

	logger.Debug("tool call",
		"turn", turn,
		"tool", out.Call.Function.Name,
		"call_id", out.Call.ID,
		"status", out.Status,
		"rows", out.Rows,
		"duration", out.Duration,
	)

	if l.recorder == nil {
		return
	}
	if err := l.recorder.RecordToolCall(ctx, runID, out); err != nil {
		logger.Warn("record tool call", "call_id", out.Call.ID, "error", err)
	}
}

func (l *Loop) newRunID(ctx context.Context) string {
	if l.runID != nil {
		if id := l.runID(ctx); id != "" {
			return id
		}
	}
	return uuid.Must(uuid.NewV7()).String()
}
