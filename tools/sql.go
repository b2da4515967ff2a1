package tools

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"

	"github.com/google/uuid"

	"github.com/martinemde/vanna/components"
	"github.com/martinemde/vanna/filesystem"
	"github.com/martinemde/vanna/sqlrunner"
	"github.com/martinemde/vanna/tool"
)

const (
	RunSQLName        = "run_sql"
	runSQLDescription = "Execute SQL queries against the configured database"

	previewChars   = 1000
	previewTrailer = "\n(Results truncated to 1000 characters. FOR LARGE RESULTS YOU DO NOT NEED TO SUMMARIZE THESE RESULTS OR PROVIDE OBSERVATIONS. THE NEXT STEP SHOULD BE A VISUALIZE_DATA CALL)"
)

// RunSQLArgs are the arguments of run_sql.
type RunSQLArgs struct {
	SQL string `json:"sql" jsonschema:"description=SQL query to execute" validate:"required"`
}

// NewRunSQL builds the run_sql tool. Query results with rows are also saved
// as CSV through fs so later tools can pick them up by filename.
func NewRunSQL(runner sqlrunner.Runner, fs filesystem.FileSystem) *tool.Typed[RunSQLArgs] {
	return tool.New(RunSQLName, runSQLDescription, func(ctx context.Context, tctx *tool.Context, args RunSQLArgs) (*tool.Result, error) {
		queryType := sqlrunner.QueryType(args.SQL)

		rs, err := runner.RunSQL(ctx, args.SQL)
		if err != nil {
			return sqlFailure(tctx, err), nil
		}

		if !rs.IsQuery {
			msg := fmt.Sprintf("Query executed successfully. %d row(s) affected.", rs.RowsAffected)
			ui := components.WithSimple(components.NewNotification(components.StatusSuccess, "", msg), components.SimpleText(msg))
			res := tool.Success(msg, &ui)
			res.Metadata["rows_affected"] = rs.RowsAffected
			res.Metadata["query_type"] = queryType
			return res, nil
		}

		if len(rs.Rows) == 0 {
			msg := "Query executed successfully. No rows returned."
			ui := components.WithSimple(components.NewDataFrame("Query Results", nil, nil), components.SimpleText(msg))
			res := tool.Success(msg, &ui)
			res.Metadata["row_count"] = 0
			res.Metadata["columns"] = []string{}
			res.Metadata["query_type"] = queryType
			return res, nil
		}

		content, err := encodeCSV(rs)
		if err != nil {
			return sqlFailure(tctx, err), nil
		}
		filename := fmt.Sprintf("query_results_%s.csv", uuid.NewString()[:8])
		if err := fs.WriteFile(ctx, filename, content, true); err != nil {
			return sqlFailure(tctx, fmt.Errorf("save results: %w", err)), nil
		}

		preview := content
		if r := []rune(preview); len(r) > previewChars {
			preview = string(r[:previewChars]) + previewTrailer
		}
		msg := fmt.Sprintf("%s\n\nResults saved to file: %s\n\n**IMPORTANT: FOR VISUALIZE_DATA USE FILENAME: %s**", preview, filename, filename)

		ui := components.WithSimple(components.NewDataFrame("Query Results", rs.Columns, rs.Rows), components.SimpleText(msg))
		res := tool.Success(msg, &ui)
		res.Metadata["row_count"] = len(rs.Rows)
		res.Metadata["columns"] = rs.Columns
		res.Metadata["query_type"] = queryType
		res.Metadata["output_file"] = filename
		return res, nil
	})
}

func sqlFailure(tctx *tool.Context, err error) *tool.Result {
	msg := "Error executing query: " + err.Error()
	tctx.Log().Warn("sql execution failed", "error", err)
	ui := components.WithSimple(components.NewNotification(components.StatusError, "", msg), components.SimpleText(msg))
	res := tool.Failure(msg)
	res.Error = err.Error()
	res.UiComponent = &ui
	res.Metadata["error_type"] = "sql_error"
	return res
}

func encodeCSV(rs *sqlrunner.ResultSet) (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(rs.Columns); err != nil {
		return "", err
	}
	record := make([]string, len(rs.Columns))
	for _, row := range rs.Rows {
		for i, col := range rs.Columns {
			if v := row[col]; v != nil {
				record[i] = fmt.Sprint(v)
			} else {
				record[i] = ""
			}
		}
		if err := w.Write(record); err != nil {
			return "", err
		}
	}
	w.Flush()
	return buf.String(), w.Error()
}
