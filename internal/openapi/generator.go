package openapi

import (
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/tabletalk/tabletalk/internal/model"
)

// Options controls the generated document.
type Options struct {
	BaseURL     string
	Version     string
	AuthEnabled bool
}

// Generate builds the OpenAPI 3.1 document of the chat API. The row schemas
// of the direct query endpoint are derived from cat.
func Generate(cat *model.Catalog, opts Options) *openapi3.T {
	version := opts.Version
	if version == "" {
		version = "1.0.0"
	}
	doc := &openapi3.T{
		OpenAPI: "3.1.0",
		Info: &openapi3.Info{
			Title:       "tabletalk API",
			Description: "Ask questions about your data in natural language. Answers are produced by a model that may only read through the bounded selectSQL tool.",
			Version:     version,
		},
	}
	if opts.BaseURL != "" {
		doc.Servers = openapi3.Servers{{URL: opts.BaseURL}}
	}

	components := openapi3.NewComponents()
	components.Schemas = openapi3.Schemas{}
	components.SecuritySchemes = openapi3.SecuritySchemes{}
	doc.Components = &components

	if opts.AuthEnabled {
		doc.Components.SecuritySchemes["bearerAuth"] = &openapi3.SecuritySchemeRef{
			Value: &openapi3.SecurityScheme{
				Type:         "http",
				Scheme:       "bearer",
				BearerFormat: "JWT",
			},
		}
		doc.Security = openapi3.SecurityRequirements{{"bearerAuth": {}}}
	}

	doc.Components.Schemas["ErrorResponse"] = errorSchema()
	doc.Components.Schemas["ChatRequest"] = chatRequestSchema()
	doc.Components.Schemas["ChatResponse"] = chatResponseSchema()
	doc.Components.Schemas["QueryRequest"] = queryRequestSchema(cat)
	doc.Components.Schemas["QueryResponse"] = queryResponseSchema(cat)

	for _, name := range cat.TableNames() {
		table, _ := cat.Table(name)
		doc.Components.Schemas[rowSchemaName(name)] = columnsToSchema(table)
	}

	doc.Paths = openapi3.NewPaths()
	doc.Paths.Set("/chat", &openapi3.PathItem{Post: chatOperation("chat")})
	doc.Paths.Set("/api/v1/chat", &openapi3.PathItem{Post: chatOperation("chat_v1")})
	doc.Paths.Set("/api/v1/query", &openapi3.PathItem{Post: queryOperation()})
	doc.Paths.Set("/api/v1/schema", &openapi3.PathItem{Get: schemaOperation()})
	doc.Paths.Set("/api/v1/schema/refresh", &openapi3.PathItem{Post: refreshOperation()})
	doc.Paths.Set("/api/v1/tool-schema", &openapi3.PathItem{Get: toolSchemaOperation()})
	doc.Paths.Set("/api/v1/tool-calls", &openapi3.PathItem{Get: toolCallsOperation()})

	return doc
}

// ─── Component Schemas ──────────────────────────────────────────────────────

func errorSchema() *openapi3.SchemaRef {
	return &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type: &openapi3.Types{"object"},
			Properties: openapi3.Schemas{
				"error": &openapi3.SchemaRef{
					Value: &openapi3.Schema{
						Type: &openapi3.Types{"object"},
						Properties: openapi3.Schemas{
							"code":    &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"integer"}, Format: "int32"}},
							"message": &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}}},
							"context": &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"object"}}},
						},
					},
				},
			},
		},
	}
}

func chatRequestSchema() *openapi3.SchemaRef {
	message := &openapi3.Schema{
		Type:     &openapi3.Types{"object"},
		Required: []string{"role", "content"},
		Properties: openapi3.Schemas{
			"role": &openapi3.SchemaRef{Value: &openapi3.Schema{
				Type: &openapi3.Types{"string"},
				Enum: []any{"system", "user", "assistant", "tool"},
			}},
			"content":      stringProp("Message text."),
			"name":         stringProp("Tool name, on tool messages."),
			"tool_call_id": stringProp("Id of the call a tool message answers."),
		},
	}
	return &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type:     &openapi3.Types{"object"},
			Required: []string{"conversationHistory"},
			Properties: openapi3.Schemas{
				"conversationHistory": &openapi3.SchemaRef{Value: &openapi3.Schema{
					Type:        &openapi3.Types{"array"},
					Description: "The full conversation so far, oldest first. The last entry is the question to answer.",
					Items:       &openapi3.SchemaRef{Value: message},
				}},
			},
		},
	}
}

func chatResponseSchema() *openapi3.SchemaRef {
	return &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type: &openapi3.Types{"object"},
			Properties: openapi3.Schemas{
				"answer":     stringProp("Plaintext answer of the assistant."),
				"turns":      intProp("Model round trips used."),
				"tool_calls": intProp("selectSQL calls executed."),
				"request_id": stringProp("Id of the request, also used as run id in the tool call log."),
			},
		},
	}
}

func queryRequestSchema(cat *model.Catalog) *openapi3.SchemaRef {
	table := &openapi3.Schema{Type: &openapi3.Types{"string"}, Description: "Table to read."}
	for _, name := range cat.TableNames() {
		table.Enum = append(table.Enum, name)
	}
	return &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type:     &openapi3.Types{"object"},
			Required: []string{"TableName"},
			Properties: openapi3.Schemas{
				"TableName": &openapi3.SchemaRef{Value: table},
				"Columns": &openapi3.SchemaRef{Value: &openapi3.Schema{
					Type:    &openapi3.Types{"array"},
					Items:   &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}}},
					Default: []any{"*"},
				}},
				"WhereClause": stringProp("Filter expression using column names of the table."),
				"OrderBy":     stringProp("Sort expression using column names of the table."),
			},
		},
	}
}

func queryResponseSchema(cat *model.Catalog) *openapi3.SchemaRef {
	items := &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"object"}}}
	names := cat.TableNames()
	if len(names) > 0 {
		oneOf := make(openapi3.SchemaRefs, len(names))
		for i, name := range names {
			oneOf[i] = openapi3.NewSchemaRef("#/components/schemas/"+rowSchemaName(name), nil)
		}
		items = &openapi3.SchemaRef{Value: &openapi3.Schema{OneOf: oneOf}}
	}
	maxItems := uint64(5)
	return &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type: &openapi3.Types{"object"},
			Properties: openapi3.Schemas{
				"resource": &openapi3.SchemaRef{Value: &openapi3.Schema{
					Type:     &openapi3.Types{"array"},
					Items:    items,
					MaxItems: &maxItems,
				}},
				"count": intProp("Rows returned."),
				"took_ms": &openapi3.SchemaRef{Value: &openapi3.Schema{
					Type:   &openapi3.Types{"number"},
					Format: "double",
				}},
			},
		},
	}
}

// columnsToSchema generates the row schema of a table.
func columnsToSchema(table model.TableSchema) *openapi3.SchemaRef {
	props := openapi3.Schemas{}
	for _, col := range table.Columns {
		s := columnTypeSchema(MapDBType(col.Type))
		if col.Nullable {
			s.Nullable = true
		}
		props[col.Name] = &openapi3.SchemaRef{Value: s}
	}
	return &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type:        &openapi3.Types{"object"},
			Description: table.Description,
			Properties:  props,
		},
	}
}

func columnTypeSchema(m TypeMapping) *openapi3.Schema {
	s := &openapi3.Schema{
		Type: &openapi3.Types{m.Type},
	}
	if m.Format != "" {
		s.Format = m.Format
	}
	if m.Type == "array" {
		s.Items = &openapi3.SchemaRef{Value: &openapi3.Schema{}}
	}
	return s
}

func stringProp(desc string) *openapi3.SchemaRef {
	return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}, Description: desc}}
}

func intProp(desc string) *openapi3.SchemaRef {
	return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"integer"}, Format: "int32", Description: desc}}
}

// ─── Operation Builders ─────────────────────────────────────────────────────

func chatOperation(id string) *openapi3.Operation {
	responses := newResponses("200", "Final answer of the assistant",
		openapi3.NewSchemaRef("#/components/schemas/ChatResponse", nil))
	addErrorResponse(responses, "429", "Rate limited by the server or the model provider")
	addErrorResponse(responses, "502", "Model provider unavailable")
	addErrorResponse(responses, "504", "Model provider timed out")
	addErrorResponse(responses, "508", "The model kept requesting tools past the turn limit")

	return &openapi3.Operation{
		Tags:        []string{"chat"},
		Summary:     "Answer the last message of a conversation",
		Description: "Runs the tool loop against the model. Send Accept: text/plain to receive only the answer text.",
		OperationID: id,
		RequestBody: jsonBody("#/components/schemas/ChatRequest"),
		Responses:   responses,
	}
}

func queryOperation() *openapi3.Operation {
	return &openapi3.Operation{
		Tags:        []string{"query"},
		Summary:     "Run a bounded select",
		Description: "Executes the same validated, five row select the model can request.",
		OperationID: "query",
		RequestBody: jsonBody("#/components/schemas/QueryRequest"),
		Responses: newResponses("200", "Matching rows",
			openapi3.NewSchemaRef("#/components/schemas/QueryResponse", nil)),
	}
}

func schemaOperation() *openapi3.Operation {
	return &openapi3.Operation{
		Tags:        []string{"schema"},
		Summary:     "Get the schema catalog",
		OperationID: "get_schema",
		Responses: newResponses("200", "Catalog keyed by table name",
			&openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"object"}}}),
	}
}

func refreshOperation() *openapi3.Operation {
	return &openapi3.Operation{
		Tags:        []string{"schema"},
		Summary:     "Re-introspect the store and rewrite the schema file",
		OperationID: "refresh_schema",
		Responses: newResponses("200", "The regenerated catalog",
			&openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"object"}}}),
	}
}

func toolSchemaOperation() *openapi3.Operation {
	return &openapi3.Operation{
		Tags:        []string{"schema"},
		Summary:     "Get the tool descriptor sent to the model",
		OperationID: "get_tool_schema",
		Responses: newResponses("200", "Function tool descriptor",
			&openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"object"}}}),
	}
}

func toolCallsOperation() *openapi3.Operation {
	limit := openapi3.NewQueryParameter("limit").
		WithDescription("Maximum records to return.").
		WithSchema(&openapi3.Schema{Type: &openapi3.Types{"integer"}, Format: "int32"})
	runID := openapi3.NewQueryParameter("run_id").
		WithDescription("Only calls of this run.").
		WithSchema(openapi3.NewStringSchema())
	status := openapi3.NewQueryParameter("status").
		WithDescription("ok or error.").
		WithSchema(openapi3.NewStringSchema().WithEnum("ok", "error"))

	return &openapi3.Operation{
		Tags:        []string{"audit"},
		Summary:     "List recorded tool calls, newest first",
		OperationID: "list_tool_calls",
		Parameters: openapi3.Parameters{
			{Value: limit},
			{Value: runID},
			{Value: status},
		},
		Responses: newResponses("200", "Tool call records",
			&openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"object"}}}),
	}
}

func jsonBody(ref string) *openapi3.RequestBodyRef {
	return &openapi3.RequestBodyRef{
		Value: &openapi3.RequestBody{
			Required: true,
			Content:  openapi3.NewContentWithJSONSchemaRef(openapi3.NewSchemaRef(ref, nil)),
		},
	}
}

// newResponses builds the success response plus the error responses every
// endpoint can return.
func newResponses(statusCode, description string, schema *openapi3.SchemaRef) *openapi3.Responses {
	responses := openapi3.NewResponses()

	successDesc := description
	responses.Set(statusCode, &openapi3.ResponseRef{
		Value: &openapi3.Response{
			Description: &successDesc,
			Content:     openapi3.NewContentWithJSONSchemaRef(schema),
		},
	})

	addErrorResponse(responses, "400", "Bad request")
	addErrorResponse(responses, "401", "Unauthorized")
	addErrorResponse(responses, "404", "Not found")
	addErrorResponse(responses, "500", "Internal server error")
	return responses
}

func addErrorResponse(responses *openapi3.Responses, code, description string) {
	desc := description
	responses.Set(code, &openapi3.ResponseRef{
		Value: &openapi3.Response{
			Description: &desc,
			Content:     openapi3.NewContentWithJSONSchemaRef(openapi3.NewSchemaRef("#/components/schemas/ErrorResponse", nil)),
		},
	})
}

// ─── Naming Helpers ─────────────────────────────────────────────────────────

// rowSchemaName creates a valid OpenAPI component schema name for a table.
func rowSchemaName(tableName string) string {
	s := "Row_" + capitalize(tableName)
	var b strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return b.String()
}

// capitalize returns a string with its first character uppercased.
func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

