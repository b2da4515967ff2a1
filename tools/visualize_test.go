package tools

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/martinemde/vanna/components"
)

func TestVisualizeData_SummarizesSavedResults(t *testing.T) {
	fs := newFS(t)
	runSQL := NewRunSQL(newRunner(t), fs)
	invoke(t, runSQL, map[string]any{"sql": "CREATE TABLE sales (region TEXT, total REAL)"})
	invoke(t, runSQL, map[string]any{"sql": "INSERT INTO sales VALUES ('east', 10), ('west', 30), ('north', NULL)"})
	res := invoke(t, runSQL, map[string]any{"sql": "SELECT region, total FROM sales ORDER BY region"})
	filename := res.Metadata["output_file"].(string)

	res = invoke(t, NewVisualizeData(fs), map[string]any{"filename": filename})

	require.True(t, res.Success)
	assert.Equal(t,
		"Created visualization from '"+filename+"' (3 rows, 2 columns).\n- total: min=10 max=30 mean=20 (n=2)",
		res.ResultForLLM)
	assert.Equal(t, filename, res.Metadata["filename"])
	assert.Equal(t, 3, res.Metadata["rows"])
	assert.Equal(t, 2, res.Metadata["columns"])

	df, ok := res.UiComponent.Rich.(*components.DataFrame)
	require.True(t, ok)
	assert.Equal(t, "Visualization of "+filename, df.Title)
	assert.Equal(t, []string{"region", "total"}, df.Columns)
	assert.Equal(t, "east", df.Rows[0]["region"])
}

func TestVisualizeData_Title(t *testing.T) {
	fs := newFS(t)
	require.NoError(t, fs.WriteFile(userCtx(), "a.csv", "x\n1\n", false))

	res := invoke(t, NewVisualizeData(fs), map[string]any{"filename": "a.csv", "title": "Counts"})

	require.True(t, res.Success)
	df := res.UiComponent.Rich.(*components.DataFrame)
	assert.Equal(t, "Counts", df.Title)
}

func TestVisualizeData_Failures(t *testing.T) {
	fs := newFS(t)
	require.NoError(t, fs.WriteFile(userCtx(), "bad.csv", "a,b\n1,2,3\n", false))
	require.NoError(t, fs.WriteFile(userCtx(), "empty.csv", "", false))

	tests := []struct {
		filename  string
		errorType string
		prefix    string
	}{
		{"missing.csv", "file_not_found", "File not found: missing.csv"},
		{"bad.csv", "csv_parse_error", "Failed to parse CSV file 'bad.csv': "},
		{"empty.csv", "csv_parse_error", "Failed to parse CSV file 'empty.csv': no header row"},
	}
	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			res := invoke(t, NewVisualizeData(fs), map[string]any{"filename": tt.filename})

			assert.False(t, res.Success)
			assert.Equal(t, tt.errorType, res.Metadata["error_type"])
			assert.Contains(t, res.ResultForLLM, tt.prefix)
			assert.Equal(t, "notification", res.UiComponent.Type())
		})
	}
}

func TestNumericStats_SkipsTextColumns(t *testing.T) {
	stats := numericStats([]string{"name", "n"}, [][]string{{"a", "1.5"}, {"2", "2.5"}})

	require.Len(t, stats, 1)
	assert.Equal(t, columnStats{Name: "n", Count: 2, Min: 1.5, Max: 2.5, Mean: 2}, stats[0])
}
