package tools

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"strconv"
	"strings"

	"github.com/martinemde/vanna/components"
	"github.com/martinemde/vanna/filesystem"
	"github.com/martinemde/vanna/tool"
)

const (
	VisualizeDataName        = "visualize_data"
	visualizeDataDescription = "Create a visualization from a CSV file saved by run_sql. Returns the table along with a summary of each numeric column."
)

type VisualizeDataArgs struct {
	Filename string `json:"filename" jsonschema:"description=Name of the CSV file to visualize" validate:"required"`
	Title    string `json:"title,omitempty" jsonschema:"description=Optional title for the visualization"`
}

// columnStats summarizes a column whose non-empty values are all numbers.
type columnStats struct {
	Name  string
	Count int
	Min   float64
	Max   float64
	Mean  float64
}

// NewVisualizeData builds visualize_data. It reads a CSV file from fs and
// renders it as a titled table with per-column numeric statistics.
func NewVisualizeData(fsys filesystem.FileSystem) *tool.Typed[VisualizeDataArgs] {
	return tool.New(VisualizeDataName, visualizeDataDescription, func(ctx context.Context, tctx *tool.Context, args VisualizeDataArgs) (*tool.Result, error) {
		content, err := fsys.ReadFile(ctx, args.Filename)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return visualizeFailure(tctx, "file_not_found", "File not found: "+args.Filename, err), nil
			}
			return visualizeFailure(tctx, "general_error", "Error creating visualization: "+err.Error(), err), nil
		}

		columns, rows, err := parseCSV(content)
		if err != nil {
			msg := fmt.Sprintf("Failed to parse CSV file '%s': %s", args.Filename, err)
			return visualizeFailure(tctx, "csv_parse_error", msg, err), nil
		}

		title := args.Title
		if title == "" {
			title = "Visualization of " + args.Filename
		}

		stats := numericStats(columns, rows)
		var b strings.Builder
		fmt.Fprintf(&b, "Created visualization from '%s' (%d rows, %d columns).", args.Filename, len(rows), len(columns))
		for _, st := range stats {
			fmt.Fprintf(&b, "\n- %s: min=%s max=%s mean=%s (n=%d)", st.Name,
				formatNumber(st.Min), formatNumber(st.Max), formatNumber(st.Mean), st.Count)
		}
		msg := b.String()

		tableRows := make([]map[string]any, len(rows))
		for i, rec := range rows {
			row := make(map[string]any, len(columns))
			for j, col := range columns {
				row[col] = rec[j]
			}
			tableRows[i] = row
		}

		ui := components.WithSimple(components.NewDataFrame(title, columns, tableRows), components.SimpleText(msg))
		res := tool.Success(msg, &ui)
		res.Metadata["filename"] = args.Filename
		res.Metadata["rows"] = len(rows)
		res.Metadata["columns"] = len(columns)
		return res, nil
	})
}

func visualizeFailure(tctx *tool.Context, kind, msg string, err error) *tool.Result {
	tctx.Log().Warn("visualization failed", "error_type", kind, "error", err)
	res := tool.Failure(msg)
	res.Error = err.Error()
	res.UiComponent = notify(components.StatusError, msg)
	res.Metadata["error_type"] = kind
	return res
}

func parseCSV(content string) ([]string, [][]string, error) {
	records, err := csv.NewReader(strings.NewReader(content)).ReadAll()
	if err != nil {
		return nil, nil, err
	}
	if len(records) == 0 {
		return nil, nil, errors.New("no header row")
	}
	return records[0], records[1:], nil
}

func numericStats(columns []string, rows [][]string) []columnStats {
	var out []columnStats
	for j, col := range columns {
		st := columnStats{Name: col, Min: math.Inf(1), Max: math.Inf(-1)}
		var sum float64
		numeric := true
		for _, rec := range rows {
			if rec[j] == "" {
				continue
			}
			v, err := strconv.ParseFloat(rec[j], 64)
			if err != nil {
				numeric = false
				break
			}
			st.Count++
			sum += v
			st.Min = min(st.Min, v)
			st.Max = max(st.Max, v)
		}
		if !numeric || st.Count == 0 {
			continue
		}
		st.Mean = sum / float64(st.Count)
		out = append(out, st)
	}
	return out
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
