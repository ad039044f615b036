package llm

import (
	"context"
	"errors"
	"sync"
)

// ScriptedProvider replays a fixed sequence of assistant turns and records
// every request it receives. It backs tests and offline demos.
type ScriptedProvider struct {
	mu        sync.Mutex
	Responses []*ChatResponse
	Err       error
	Requests  []ChatRequest
}

// NewScriptedProvider returns a provider that answers with responses in order.
func NewScriptedProvider(responses ...*ChatResponse) *ScriptedProvider {
	return &ScriptedProvider{Responses: responses}
}

// Chat pops the next scripted turn or returns the configured error.
func (s *ScriptedProvider) Chat(_ context.Context, req ChatRequest) (*ChatResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := make([]Message, len(req.Messages))
	copy(msgs, req.Messages)
	req.Messages = msgs
	s.Requests = append(s.Requests, req)

	if s.Err != nil {
		return nil, s.Err
	}
	if len(s.Responses) == 0 {
		return nil, errors.New("scripted provider: no more responses available")
	}
	resp := s.Responses[0]
	s.Responses = s.Responses[1:]
	return resp, nil
}

// Calls returns the number of requests served.
func (s *ScriptedProvider) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Requests)
}

// Answer builds a final assistant turn.
func Answer(content string) *ChatResponse {
	return &ChatResponse{Content: content, FinishReason: "stop"}
}

// CallTool builds an assistant turn requesting a single tool call.
func CallTool(id, name, arguments string) *ChatResponse {
	return &ChatResponse{
		FinishReason: FinishReasonToolCalls,
		ToolCalls: []ToolCall{{
			ID:       id,
			Type:     ToolTypeFunction,
			Function: FunctionCall{Name: name, Arguments: arguments},
		}},
	}
}
