package handler

import (
	"fmt"
	"net/http"

	"github.com/tabletalk/tabletalk/internal/openapi"
)

// OpenAPIHandler serves the OpenAPI document of the chat API.
type OpenAPIHandler struct {
	schema      SchemaService
	version     string
	authEnabled bool
}

// NewOpenAPIHandler creates a new OpenAPIHandler.
func NewOpenAPIHandler(schema SchemaService, version string, authEnabled bool) *OpenAPIHandler {
	return &OpenAPIHandler{schema: schema, version: version, authEnabled: authEnabled}
}

// ServeSpec renders the document for the current catalog.
// GET /openapi.json
func (h *OpenAPIHandler) ServeSpec(w http.ResponseWriter, r *http.Request) {
	cat, err := h.schema.GetSchema(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load schema: "+err.Error())
		return
	}

	doc := openapi.Generate(cat, openapi.Options{
		BaseURL:     baseURL(r),
		Version:     h.version,
		AuthEnabled: h.authEnabled,
	})
	writeJSON(w, http.StatusOK, doc)
}

// baseURL constructs the base URL from the incoming request.
func baseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if fwd := r.Header.Get("X-Forwarded-Proto"); fwd != "" {
		scheme = fwd
	}
	return fmt.Sprintf("%s://%s", scheme, r.Host)
}
