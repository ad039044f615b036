package model

// ErrorResponse is the standard envelope for error responses.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains the structured error information returned by the API.
type ErrorDetail struct {
	Code    int                    `json:"code"`
	Message string                 `json:"message"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// ChatMessage is one entry of the conversation history a client keeps.
type ChatMessage struct {
	Role       string `json:"role"`
	Content    string `json:"content"`
	Name       string `json:"name,omitempty"`
	ToolCallID string `json:"tool_call_id,omitempty"`
}

// ChatRequest is the body of POST /chat.
type ChatRequest struct {
	ConversationHistory []ChatMessage `json:"conversationHistory"`
}

// ChatResponse carries the final answer of a conversation turn.
type ChatResponse struct {
	Answer    string `json:"answer"`
	Turns     int    `json:"turns"`
	ToolCalls int    `json:"tool_calls"`
	RequestID string `json:"request_id,omitempty"`
}

// QueryResponse wraps the rows returned by a direct query.
type QueryResponse struct {
	Resource []any   `json:"resource"`
	Count    int     `json:"count"`
	TookMs   float64 `json:"took_ms"`
}
