package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/guillermoBallester/colscope/internal/core/service"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Server metadata
const serverName = "colscope"

// Tool descriptions
const (
	descAnalyzeTables = "Profile a set of tables and report duplicate columns (by name and by sampled data overlap), " +
		"columns shared across tables, the most important table-specific columns, and likely redundant columns " +
		"(metadata/identifier names and near-empty columns). Tables that cannot be described are listed as skipped. " +
		"Omit tables to analyze the configured default set."

	descTablesParam = "Comma-separated table names (optional; defaults to the configured table set)"

	descSharedColumns = "List column names (case-insensitive) that appear in at least min_occurrence of the given tables, " +
		"most widely shared first. Reads column metadata only."

	descMinOccurrence = "Minimum number of tables a column must appear in (defaults to the configured value)"

	descExploreTable = "Take a quick look at one table: row count, columns with types, a few sample rows, " +
		"and distinct sample values for columns whose names match the explore patterns (price, cost, type, ...)."

	descExploreTableParam = "Name of the table to explore"

	descCountRows = "Count the rows of each table. A table whose count fails is reported with rows = -1."

	descQuery = "Execute a read-only SQL query against the database and return results as a JSON array of objects. " +
		"Only a single SELECT or EXPLAIN statement is accepted. " +
		"A server-side row limit and query timeout are enforced."

	descQueryParam = "SQL query to execute (SELECT or EXPLAIN only)"
)

// Services bundles what the tools delegate to. DefaultTables is used when a
// call names no tables.
type Services struct {
	Analysis      *service.AnalysisService
	Explore       *service.ExploreService
	Query         *service.QueryService
	DefaultTables []string
}

func RegisterTools(s *server.MCPServer, svc Services, logger *slog.Logger) {
	s.AddTool(
		mcp.NewTool("analyze_tables",
			mcp.WithDescription(descAnalyzeTables),
			mcp.WithString("tables", mcp.Description(descTablesParam)),
		),
		analyzeTablesHandler(svc, logger),
	)

	s.AddTool(
		mcp.NewTool("shared_columns",
			mcp.WithDescription(descSharedColumns),
			mcp.WithString("tables", mcp.Description(descTablesParam)),
			mcp.WithNumber("min_occurrence", mcp.Description(descMinOccurrence)),
		),
		sharedColumnsHandler(svc, logger),
	)

	s.AddTool(
		mcp.NewTool("explore_table",
			mcp.WithDescription(descExploreTable),
			mcp.WithString("table_name",
				mcp.Required(),
				mcp.Description(descExploreTableParam),
			),
		),
		exploreTableHandler(svc.Explore, logger),
	)

	s.AddTool(
		mcp.NewTool("count_rows",
			mcp.WithDescription(descCountRows),
			mcp.WithString("tables", mcp.Description(descTablesParam)),
		),
		countRowsHandler(svc, logger),
	)

	if svc.Query != nil {
		s.AddTool(
			mcp.NewTool("query",
				mcp.WithDescription(descQuery),
				mcp.WithString("sql",
					mcp.Required(),
					mcp.Description(descQueryParam),
				),
			),
			queryHandler(svc.Query, logger),
		)
	}
}

func analyzeTablesHandler(svc Services, logger *slog.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		tables := tablesArg(request, svc.DefaultTables)

		report, err := svc.Analysis.Analyze(ctx, tables)
		if err != nil {
			return mcp.NewToolResultError(sanitizeError(logger, err, "analysis")), nil
		}
		return jsonResult(report)
	}
}

func sharedColumnsHandler(svc Services, logger *slog.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		tables := tablesArg(request, svc.DefaultTables)

		k := svc.Analysis.Settings().MinOccurrence
		if v, ok := request.GetArguments()["min_occurrence"].(float64); ok {
			k = int(v)
		}
		if k < 1 {
			return mcp.NewToolResultError("min_occurrence must be at least 1"), nil
		}

		shared, skipped, err := svc.Analysis.SharedColumns(ctx, tables, k)
		if err != nil {
			return mcp.NewToolResultError(sanitizeError(logger, err, "shared columns")), nil
		}
		return jsonResult(map[string]any{
			"min_occurrence": k,
			"shared_columns": shared,
			"skipped_tables": skipped,
		})
	}
}

func exploreTableHandler(explore *service.ExploreService, logger *slog.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		tableName, ok := request.GetArguments()["table_name"].(string)
		if !ok || tableName == "" {
			return mcp.NewToolResultError("table_name is required"), nil
		}

		exploration, err := explore.ExploreTable(ctx, tableName)
		if err != nil {
			return mcp.NewToolResultError(sanitizeError(logger, err, "explore table")), nil
		}
		return jsonResult(exploration)
	}
}

func countRowsHandler(svc Services, logger *slog.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		tables := tablesArg(request, svc.DefaultTables)
		if len(tables) == 0 {
			return mcp.NewToolResultError("tables is required"), nil
		}

		counts, err := svc.Explore.CountRows(ctx, tables)
		if err != nil {
			return mcp.NewToolResultError(sanitizeError(logger, err, "count rows")), nil
		}
		return jsonResult(counts)
	}
}

func queryHandler(query *service.QueryService, logger *slog.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sql, ok := request.GetArguments()["sql"].(string)
		if !ok || sql == "" {
			return mcp.NewToolResultError("sql is required"), nil
		}

		ctx = service.WithOperation(ctx, "query")
		results, err := query.Execute(ctx, sql)
		if err != nil {
			return mcp.NewToolResultError(sanitizeError(logger, err, "query")), nil
		}
		return jsonResult(results)
	}
}

// tablesArg reads the comma-separated "tables" argument, falling back to
// defaults when it is absent or blank.
func tablesArg(request mcp.CallToolRequest, defaults []string) []string {
	raw, _ := request.GetArguments()["tables"].(string)
	if tables := service.ParseTableList(raw); len(tables) > 0 {
		return tables
	}
	return defaults
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal results: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
