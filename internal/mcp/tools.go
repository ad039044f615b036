package mcp

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/tabletalk/tabletalk/internal/catalog"
	"github.com/tabletalk/tabletalk/internal/llm"
	"github.com/tabletalk/tabletalk/internal/model"
	"github.com/tabletalk/tabletalk/internal/observability"
	"github.com/tabletalk/tabletalk/internal/query"
	"github.com/tabletalk/tabletalk/internal/tools"
)

// DescribeSchema is the name of the catalog description tool.
const DescribeSchema = "describe_schema"

// registerTools registers the MCP tools. Both are read-only.
func (s *MCPServer) registerTools(srv *server.MCPServer, cat *model.Catalog) {
	srv.AddTool(
		mcp.NewTool(tools.SelectSQL,
			mcp.WithDescription(tools.SelectSQLDescription),
			mcp.WithToolAnnotation(readOnlyAnnotation()),
			mcp.WithString("TableName",
				mcp.Required(),
				mcp.Description(tools.TableNameDescription),
				mcp.Enum(tools.TableEnum(cat)...),
			),
			mcp.WithArray("Columns",
				mcp.Description(tools.ColumnsDescription),
				mcp.WithStringItems(),
			),
			mcp.WithString("WhereClause",
				mcp.Description(tools.WhereClauseDescription),
			),
			mcp.WithString("OrderBy",
				mcp.Description(tools.OrderByDescription),
			),
		),
		s.handleSelectSQL,
	)

	srv.AddTool(
		mcp.NewTool(DescribeSchema,
			mcp.WithDescription(
				"Describe the tables and columns available to selectSQL. "+
					"Use this before querying to learn exact column names.",
			),
			mcp.WithToolAnnotation(readOnlyAnnotation()),
			mcp.WithString("format",
				mcp.Description("Output format: \"text\" (default) or \"json\""),
				mcp.Enum("text", "json"),
			),
		),
		s.handleDescribeSchema,
	)
}

// handleSelectSQL runs the call through the same dispatcher the chat loop
// uses, so validation, the row cap and the error payloads are identical.
func (s *MCPServer) handleSelectSQL(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	table, err := requireString(request, "TableName")
	if err != nil {
		return toolError("%s", err.Error())
	}

	args, err := json.Marshal(query.Request{
		Table:   table,
		Columns: optionalStringSlice(request, "Columns"),
		Where:   optionalString(request, "WhereClause"),
		OrderBy: optionalString(request, "OrderBy"),
	})
	if err != nil {
		return toolError("invalid arguments: %s", err.Error())
	}

	callID := uuid.Must(uuid.NewV7()).String()
	out := s.deps.Dispatcher.Dispatch(ctx, llm.ToolCall{
		ID:   callID,
		Type: llm.ToolTypeFunction,
		Function: llm.FunctionCall{
			Name:      tools.SelectSQL,
			Arguments: string(args),
		},
	})
	observability.ObserveToolCall(tools.SelectSQL, out.Status, out.Duration)

	if s.deps.Recorder != nil {
		if err := s.deps.Recorder.RecordToolCall(ctx, "mcp-"+callID, out); err != nil {
			s.logger.Warn("failed to record tool call", "call_id", callID, "error", err)
		}
	}

	if out.Status != tools.StatusOK {
		s.logger.Debug("mcp selectSQL failed", "table", table, "error", out.Err)
		return mcp.NewToolResultError(out.Payload), nil
	}
	return mcp.NewToolResultText(out.Payload), nil
}

func (s *MCPServer) handleDescribeSchema(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cat, err := s.deps.Schema.GetSchema(ctx)
	if err != nil {
		return toolError("failed to load schema: %s", err.Error())
	}

	switch format := optionalString(request, "format"); format {
	case "", "text":
		return mcp.NewToolResultText(catalog.Describe(cat)), nil
	case "json":
		return successJSON(cat)
	default:
		return toolError("unsupported format %q: use \"text\" or \"json\"", format)
	}
}
