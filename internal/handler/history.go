package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tabletalk/tabletalk/internal/audit"
	"github.com/tabletalk/tabletalk/internal/model"
	"github.com/tabletalk/tabletalk/internal/tools"
)

// ToolCallLog reads recorded tool calls.
type ToolCallLog interface {
	List(ctx context.Context, opts audit.ListOptions) ([]model.ToolCallRecord, error)
	Get(ctx context.Context, id string) (*model.ToolCallRecord, error)
}

// HistoryHandler serves the tool call audit log.
type HistoryHandler struct {
	log ToolCallLog
}

// NewHistoryHandler creates a new HistoryHandler.
func NewHistoryHandler(log ToolCallLog) *HistoryHandler {
	return &HistoryHandler{log: log}
}

// ListToolCalls returns recorded tool calls, newest first.
// GET /api/v1/tool-calls?limit=&run_id=&status=
func (h *HistoryHandler) ListToolCalls(w http.ResponseWriter, r *http.Request) {
	status := queryString(r, "status")
	if status != "" && status != tools.StatusOK && status != tools.StatusError {
		writeError(w, http.StatusBadRequest, "status must be ok or error")
		return
	}

	records, err := h.log.List(r.Context(), audit.ListOptions{
		Limit:  clampInt(queryInt(r, "limit", audit.DefaultListLimit), 1, audit.MaxListLimit),
		RunID:  queryString(r, "run_id"),
		Status: status,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list tool calls: "+err.Error())
		return
	}
	if records == nil {
		records = []model.ToolCallRecord{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"resource": records,
		"meta":     map[string]interface{}{"count": len(records)},
	})
}

// GetToolCall returns one recorded tool call.
// GET /api/v1/tool-calls/{id}
func (h *HistoryHandler) GetToolCall(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rec, err := h.log.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, audit.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Tool call not found: "+id)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get tool call: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rec)
}
