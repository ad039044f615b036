package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/tabletalk/tabletalk/internal/chat"
	"github.com/tabletalk/tabletalk/internal/llm"
	"github.com/tabletalk/tabletalk/internal/model"
	"github.com/tabletalk/tabletalk/internal/server/middleware"
)

// ChatRunner answers a conversation.
type ChatRunner interface {
	Run(ctx context.Context, history []llm.Message) (*chat.Result, error)
}

// ChatHandler serves the conversation endpoint.
type ChatHandler struct {
	runner ChatRunner
	logger *slog.Logger
}

// NewChatHandler creates a new ChatHandler.
func NewChatHandler(runner ChatRunner, logger *slog.Logger) *ChatHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChatHandler{runner: runner, logger: logger}
}

// Chat answers the last message of the posted conversation.
// POST /chat
//
// The client keeps the history and sends all of it on every call. Tool
// failures never surface here; they are replayed to the model. Only provider
// failures, an exhausted turn budget or a malformed body produce an error.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req model.ChatRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if len(req.ConversationHistory) == 0 {
		writeError(w, http.StatusBadRequest, "conversationHistory must contain at least one message")
		return
	}

	history := make([]llm.Message, len(req.ConversationHistory))
	for i, m := range req.ConversationHistory {
		history[i] = llm.Message{
			Role:       llm.Role(m.Role),
			Content:    m.Content,
			Name:       m.Name,
			ToolCallID: m.ToolCallID,
		}
	}

	res, err := h.runner.Run(r.Context(), history)
	if err != nil {
		status, msg := classifyError(err)
		h.logger.Warn("chat failed", "status", status, "error", err,
			"request_id", middleware.GetRequestID(r.Context()))
		writeError(w, status, msg)
		return
	}

	if wantsText(r) {
		writeText(w, http.StatusOK, res.Answer)
		return
	}
	writeJSON(w, http.StatusOK, model.ChatResponse{
		Answer:    res.Answer,
		Turns:     res.Turns,
		ToolCalls: res.ToolCalls,
		RequestID: res.RunID,
	})
}

// Root is the greeting endpoint kept for clients probing the server.
// GET /
func (h *ChatHandler) Root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"Hello": "World"})
}
