package handler

import (
	"context"
	"net/http"

	"github.com/tabletalk/tabletalk/internal/catalog"
	"github.com/tabletalk/tabletalk/internal/model"
	"github.com/tabletalk/tabletalk/internal/tools"
)

// SchemaService serves and regenerates the schema catalog.
type SchemaService interface {
	GetSchema(ctx context.Context) (*model.Catalog, error)
	Refresh(ctx context.Context) (*model.Catalog, error)
}

// SchemaHandler handles catalog introspection.
type SchemaHandler struct {
	schema SchemaService
}

// NewSchemaHandler creates a new SchemaHandler.
func NewSchemaHandler(schema SchemaService) *SchemaHandler {
	return &SchemaHandler{schema: schema}
}

// GetSchema returns the persisted catalog in its side file shape, or the
// prompt rendering with ?format=text.
// GET /api/v1/schema
func (h *SchemaHandler) GetSchema(w http.ResponseWriter, r *http.Request) {
	cat, err := h.schema.GetSchema(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load schema: "+err.Error())
		return
	}
	if queryString(r, "format") == "text" {
		writeText(w, http.StatusOK, catalog.Describe(cat))
		return
	}
	writeJSON(w, http.StatusOK, cat)
}

// Refresh re-introspects the live store and rewrites the side file.
// POST /api/v1/schema/refresh
func (h *SchemaHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	cat, err := h.schema.Refresh(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to refresh schema: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, cat)
}

// ToolSchema returns the function tool descriptor the model receives.
// GET /api/v1/tool-schema
func (h *SchemaHandler) ToolSchema(w http.ResponseWriter, r *http.Request) {
	cat, err := h.schema.GetSchema(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load schema: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, tools.SelectSQLTool(cat))
}
