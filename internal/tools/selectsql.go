// Package tools publishes the capabilities the model may call and turns each
// call into a JSON payload for the conversation.
package tools

import (
	"github.com/tabletalk/tabletalk/internal/catalog"
	"github.com/tabletalk/tabletalk/internal/llm"
	"github.com/tabletalk/tabletalk/internal/model"
)

// SelectSQL is the name of the read-only query tool.
const SelectSQL = "selectSQL"

// SelectSQLDescription is shown to the model and to MCP clients.
const SelectSQLDescription = "Execute a SELECT query on the database to retrieve data. " +
	"This tool can only read data and cannot modify the database. " +
	"Each response is limited to 5 rows of responses."

// Argument descriptions shared by every surface that exposes selectSQL.
const (
	TableNameDescription   = "Name of the table to query"
	ColumnsDescription     = "List of specific columns to retrieve (optional, defaults to all columns)"
	WhereClauseDescription = "WHERE clause conditions to filter results (optional)"
	OrderByDescription     = "ORDER BY clause to sort results (optional)"
)

// TableEnum returns the table names the model may choose from. An empty
// catalog falls back to the default import table.
func TableEnum(cat *model.Catalog) []string {
	if names := cat.TableNames(); len(names) > 0 {
		return names
	}
	return []string{catalog.DefaultTable}
}

// SelectSQLTool returns the function tool descriptor for the catalog. It is
// the only capability offered to the model.
func SelectSQLTool(cat *model.Catalog) llm.Tool {
	return llm.Tool{
		Type: llm.ToolTypeFunction,
		Function: llm.FunctionDef{
			Name:        SelectSQL,
			Description: SelectSQLDescription,
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"TableName": map[string]any{
						"type":        "string",
						"description": TableNameDescription,
						"enum":        TableEnum(cat),
					},
					"Columns": map[string]any{
						"type":        "array",
						"items":       map[string]any{"type": "string"},
						"description": ColumnsDescription,
						"default":     []string{"*"},
					},
					"WhereClause": map[string]any{
						"type":        "string",
						"description": WhereClauseDescription,
					},
					"OrderBy": map[string]any{
						"type":        "string",
						"description": OrderByDescription,
					},
				},
				"required":             []string{"TableName"},
				"additionalProperties": false,
			},
		},
	}
}
