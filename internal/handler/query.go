package handler

import (
	"net/http"
	"strings"

	"github.com/tabletalk/tabletalk/internal/catalog"
	"github.com/tabletalk/tabletalk/internal/model"
	"github.com/tabletalk/tabletalk/internal/query"
	"github.com/tabletalk/tabletalk/internal/tools"
)

// SmokeWhere is the filter of the store smoke test endpoint.
const SmokeWhere = "Transaction Value > 1000"

// QueryHandler exposes the bounded select the model uses to API clients.
type QueryHandler struct {
	runner tools.Runner
}

// NewQueryHandler creates a new QueryHandler.
func NewQueryHandler(runner tools.Runner) *QueryHandler {
	return &QueryHandler{runner: runner}
}

// Query runs a structured select under the same validation as the tool.
// POST /api/v1/query
func (h *QueryHandler) Query(w http.ResponseWriter, r *http.Request) {
	var req query.Request
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Table) == "" {
		writeError(w, http.StatusBadRequest, "TableName is required")
		return
	}
	h.run(w, r, req, false)
}

// TestDBQuery runs a fixed query against the default table and returns the
// bare rows. It is a smoke test of the store wiring.
// GET /test_db_query
func (h *QueryHandler) TestDBQuery(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, query.Request{Table: catalog.DefaultTable, Where: SmokeWhere}, true)
}

func (h *QueryHandler) run(w http.ResponseWriter, r *http.Request, req query.Request, bare bool) {
	res, err := h.runner.Run(r.Context(), req)
	if err != nil {
		status, msg := classifyError(err)
		writeError(w, status, msg, map[string]interface{}{"table": req.Table})
		return
	}

	resource := make([]any, len(res.Rows))
	for i, row := range res.Rows {
		resource[i] = row
	}
	if bare {
		writeJSON(w, http.StatusOK, resource)
		return
	}
	writeJSON(w, http.StatusOK, model.QueryResponse{
		Resource: resource,
		Count:    len(resource),
		TookMs:   float64(res.Took.Microseconds()) / 1000,
	})
}
