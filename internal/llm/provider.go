// Package llm defines the role-tagged message model exchanged with a chat
// completion backend and the providers that speak to one.
package llm

import (
	"context"
	"fmt"
)

// Role represents the role of a message sender.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant, RoleTool:
		return true
	}
	return false
}

// ToolType represents the type of tool.
type ToolType string

const (
	ToolTypeFunction ToolType = "function"
)

// FinishReasonToolCalls is the finish reason of a turn that requests tools.
const FinishReasonToolCalls = "tool_calls"

// FunctionDef defines a function tool.
type FunctionDef struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters"` // JSON Schema
}

// Tool represents a tool available to the model.
type Tool struct {
	Type     ToolType    `json:"type"`
	Function FunctionDef `json:"function"`
}

// FunctionCall represents a call to a function tool.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"` // JSON object text
}

// ToolCall represents a request from the model to call a tool.
type ToolCall struct {
	ID       string       `json:"id"`
	Type     ToolType     `json:"type"`
	Function FunctionCall `json:"function"`
}

// Message is a single entry of a conversation.
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	Name       string     `json:"name,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// ChatRequest is the input of one provider round trip.
type ChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Tools       []Tool    `json:"tools,omitempty"`
	Temperature float64   `json:"temperature,omitempty"`
}

// ChatResponse is the assistant turn returned by a provider.
type ChatResponse struct {
	Content      string     `json:"content"`
	ToolCalls    []ToolCall `json:"tool_calls,omitempty"`
	FinishReason string     `json:"finish_reason"`
	Usage        Usage      `json:"usage"`
}

// WantsTools reports whether the turn asks for tool execution.
func (r *ChatResponse) WantsTools() bool {
	return r.FinishReason == FinishReasonToolCalls && len(r.ToolCalls) > 0
}

// Usage tracks token consumption.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Provider is a chat completion backend.
type Provider interface {
	// Chat sends the conversation and returns the next assistant turn.
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

// ValidateHistory checks a conversation received from a client. Every
// message needs a known role, tool messages need the id of the call they
// answer, and only the first message may be a system message.
func ValidateHistory(history []Message) error {
	for i, m := range history {
		if !m.Role.Valid() {
			return fmt.Errorf("message %d: unknown role %q", i, m.Role)
		}
		if m.Role == RoleSystem && i > 0 {
			return fmt.Errorf("message %d: system message must come first", i)
		}
		if m.Role == RoleTool && m.ToolCallID == "" {
			return fmt.Errorf("message %d: tool message without tool_call_id", i)
		}
	}
	return nil
}
