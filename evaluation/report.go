package evaluation

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

// Report is one agent's results over a set of test cases.
type Report struct {
	AgentName  string
	Results    []TestCaseResult
	Evaluators []string
	Metadata   map[string]any
	Timestamp  time.Time
}

// PassRate is the fraction of test cases where every evaluation passed.
func (r *Report) PassRate() float64 {
	if len(r.Results) == 0 {
		return 0
	}
	passed := 0
	for _, res := range r.Results {
		if res.OverallPassed() {
			passed++
		}
	}
	return float64(passed) / float64(len(r.Results))
}

// AverageScore is the mean overall score.
func (r *Report) AverageScore() float64 {
	if len(r.Results) == 0 {
		return 0
	}
	var sum float64
	for _, res := range r.Results {
		sum += res.OverallScore()
	}
	return sum / float64(len(r.Results))
}

// AverageTime is the mean execution time in milliseconds.
func (r *Report) AverageTime() float64 {
	if len(r.Results) == 0 {
		return 0
	}
	var sum float64
	for _, res := range r.Results {
		sum += res.ExecutionTimeMs
	}
	return sum / float64(len(r.Results))
}

// TotalTokens sums token usage across test cases.
func (r *Report) TotalTokens() int {
	total := 0
	for _, res := range r.Results {
		total += res.AgentResult.TotalTokens
	}
	return total
}

// Failures returns the test cases that did not pass.
func (r *Report) Failures() []TestCaseResult {
	var out []TestCaseResult
	for _, res := range r.Results {
		if !res.OverallPassed() {
			out = append(out, res)
		}
	}
	return out
}

var rule = strings.Repeat("=", 80)

// PrintSummary writes a human-readable summary followed by failure details.
func (r *Report) PrintSummary(w io.Writer) {
	fmt.Fprintf(w, "\n%s\n", rule)
	fmt.Fprintf(w, "EVALUATION REPORT: %s\n", r.AgentName)
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "Timestamp: %s\n", r.Timestamp.Format(time.RFC3339))
	fmt.Fprintf(w, "Test Cases: %d\n", len(r.Results))
	fmt.Fprintf(w, "Pass Rate: %.1f%%\n", r.PassRate()*100)
	fmt.Fprintf(w, "Average Score: %.2f\n", r.AverageScore())
	fmt.Fprintf(w, "Average Time: %.0fms\n", r.AverageTime())
	fmt.Fprintf(w, "Total Tokens: %d\n", r.TotalTokens())
	fmt.Fprintf(w, "%s\n\n", rule)

	failures := r.Failures()
	if len(failures) == 0 {
		return
	}
	fmt.Fprintf(w, "FAILURES (%d):\n", len(failures))
	for _, res := range failures {
		fmt.Fprintf(w, "\n  Test Case: %s\n", res.TestCase.ID)
		fmt.Fprintf(w, "  Message: %s\n", res.TestCase.Message)
		fmt.Fprintf(w, "  Score: %.2f\n", res.OverallScore())
		for _, e := range res.Evaluations {
			if !e.Passed {
				fmt.Fprintf(w, "    [%s] %s\n", e.EvaluatorName, e.Reasoning)
			}
		}
	}
}

// ComparisonReport holds one Report per variant over the same test cases.
type ComparisonReport struct {
	Variants  []AgentVariant
	Reports   map[string]*Report
	TestCases []TestCase
	Timestamp time.Time
}

// reports returns the variant reports in variant order.
func (c *ComparisonReport) reports() []*Report {
	out := make([]*Report, 0, len(c.Variants))
	for _, v := range c.Variants {
		if r, ok := c.Reports[v.Name]; ok {
			out = append(out, r)
		}
	}
	return out
}

// PrintSummary writes a table comparing the variants.
func (c *ComparisonReport) PrintSummary(w io.Writer) {
	fmt.Fprintf(w, "\n%s\n", rule)
	fmt.Fprintln(w, "AGENT COMPARISON SUMMARY")
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "Timestamp: %s\n", c.Timestamp.Format(time.RFC3339))
	fmt.Fprintf(w, "Variants: %d\n", len(c.Variants))
	fmt.Fprintf(w, "Test Cases: %d\n", len(c.TestCases))

	fmt.Fprintf(w, "\n%-25s %-12s %-12s %-12s %-12s\n", "Agent", "Pass Rate", "Avg Score", "Avg Time", "Tokens")
	fmt.Fprintln(w, strings.Repeat("-", 80))
	for _, r := range c.reports() {
		fmt.Fprintf(w, "%-25s %-12s %-12.2f %-12.0f %-12s\n",
			r.AgentName,
			fmt.Sprintf("%.1f%%", r.PassRate()*100),
			r.AverageScore(),
			r.AverageTime(),
			commas(r.TotalTokens()))
	}
	fmt.Fprintf(w, "%s\n\n", rule)
}

// Metrics accepted by BestVariant.
const (
	MetricScore    = "score"
	MetricSpeed    = "speed"
	MetricPassRate = "pass_rate"
)

// BestVariant returns the variant with the highest average score, the
// lowest average time, or the highest pass rate. Ties go to the earlier
// variant.
func (c *ComparisonReport) BestVariant(metric string) (string, error) {
	var better func(a, b *Report) bool
	switch metric {
	case MetricScore:
		better = func(a, b *Report) bool { return a.AverageScore() > b.AverageScore() }
	case MetricSpeed:
		better = func(a, b *Report) bool { return a.AverageTime() < b.AverageTime() }
	case MetricPassRate:
		better = func(a, b *Report) bool { return a.PassRate() > b.PassRate() }
	default:
		return "", fmt.Errorf("unknown metric: %s", metric)
	}

	var best *Report
	for _, r := range c.reports() {
		if best == nil || better(r, best) {
			best = r
		}
	}
	if best == nil {
		return "", fmt.Errorf("no variants to compare")
	}
	return best.AgentName, nil
}

// SaveCSV writes one row per variant and test case.
func (c *ComparisonReport) SaveCSV(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv: %w", err)
	}
	defer f.Close()
	if err := c.WriteCSV(f); err != nil {
		return err
	}
	return f.Close()
}

// WriteCSV writes the rows of SaveCSV to w.
func (c *ComparisonReport) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	header := []string{"variant", "test_case_id", "test_message", "passed", "score", "execution_time_ms", "tokens", "error", "evaluator_scores"}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, r := range c.reports() {
		for _, res := range r.Results {
			scores := make(map[string]float64, len(res.Evaluations))
			for _, e := range res.Evaluations {
				scores[e.EvaluatorName] = e.Score
			}
			encoded, err := json.Marshal(scores)
			if err != nil {
				return err
			}
			row := []string{
				r.AgentName,
				res.TestCase.ID,
				truncateRunes(res.TestCase.Message, 50),
				strconv.FormatBool(res.OverallPassed()),
				strconv.FormatFloat(res.OverallScore(), 'f', -1, 64),
				strconv.FormatFloat(res.ExecutionTimeMs, 'f', -1, 64),
				strconv.Itoa(res.AgentResult.TotalTokens),
				res.AgentResult.Error,
				string(encoded),
			}
			if err := cw.Write(row); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

var htmlReport = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html>
<head>
<title>Agent Comparison Report</title>
<style>
body { font-family: Arial, sans-serif; margin: 20px; }
h1 { color: #333; }
table { border-collapse: collapse; width: 100%; margin: 20px 0; }
th, td { border: 1px solid #ddd; padding: 12px; text-align: left; }
th { background-color: #4CAF50; color: white; }
tr:nth-child(even) { background-color: #f2f2f2; }
.passed { color: green; font-weight: bold; }
.failed { color: red; font-weight: bold; }
.best { background-color: #d4edda !important; }
</style>
</head>
<body>
<h1>Agent Comparison Report</h1>
<p>Generated: {{.Generated}}</p>
<p>Variants: {{.Variants}} | Test Cases: {{len .Cases}}</p>
<h2>Summary</h2>
<table>
<tr><th>Agent</th><th>Pass Rate</th><th>Avg Score</th><th>Avg Time (ms)</th><th>Total Tokens</th></tr>
{{- range .Summary}}
<tr class='{{if .Best}}best{{end}}'><td>{{.Name}}</td><td>{{.PassRate}}</td><td>{{.Score}}</td><td>{{.Time}}</td><td>{{.Tokens}}</td></tr>
{{- end}}
</table>
<h2>Test Case Details</h2>
{{- range $i, $c := .Cases}}
<h3>Test Case {{$c.Number}}: {{$c.ID}}</h3>
<p><strong>Message:</strong> {{$c.Message}}</p>
<table>
<tr><th>Variant</th><th>Result</th><th>Score</th><th>Time (ms)</th></tr>
{{- range $c.Rows}}
<tr><td>{{.Variant}}</td><td class='{{if .Passed}}passed{{else}}failed{{end}}'>{{if .Passed}}PASS{{else}}FAIL{{end}}</td><td>{{.Score}}</td><td>{{.Time}}</td></tr>
{{- end}}
</table>
{{- end}}
</body>
</html>
`))

type htmlSummaryRow struct {
	Name, PassRate, Score, Time, Tokens string
	Best                                bool
}

type htmlCaseRow struct {
	Variant, Score, Time string
	Passed               bool
}

type htmlCase struct {
	Number      int
	ID, Message string
	Rows        []htmlCaseRow
}

// SaveHTML writes a standalone HTML comparison with the best variant by
// score highlighted.
func (c *ComparisonReport) SaveHTML(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create html: %w", err)
	}
	defer f.Close()
	if err := c.WriteHTML(f); err != nil {
		return err
	}
	return f.Close()
}

// WriteHTML renders the SaveHTML document to w.
func (c *ComparisonReport) WriteHTML(w io.Writer) error {
	best, _ := c.BestVariant(MetricScore)
	data := struct {
		Generated string
		Variants  int
		Summary   []htmlSummaryRow
		Cases     []htmlCase
	}{
		Generated: c.Timestamp.Format(time.RFC3339),
		Variants:  len(c.Variants),
	}

	reports := c.reports()
	for _, r := range reports {
		data.Summary = append(data.Summary, htmlSummaryRow{
			Name:     r.AgentName,
			PassRate: fmt.Sprintf("%.1f%%", r.PassRate()*100),
			Score:    fmt.Sprintf("%.2f", r.AverageScore()),
			Time:     fmt.Sprintf("%.0f", r.AverageTime()),
			Tokens:   commas(r.TotalTokens()),
			Best:     r.AgentName == best,
		})
	}
	for i, tc := range c.TestCases {
		hc := htmlCase{Number: i + 1, ID: tc.ID, Message: tc.Message}
		for _, r := range reports {
			for _, res := range r.Results {
				if res.TestCase.ID != tc.ID {
					continue
				}
				hc.Rows = append(hc.Rows, htmlCaseRow{
					Variant: r.AgentName,
					Score:   fmt.Sprintf("%.2f", res.OverallScore()),
					Time:    fmt.Sprintf("%.0f", res.ExecutionTimeMs),
					Passed:  res.OverallPassed(),
				})
				break
			}
		}
		data.Cases = append(data.Cases, hc)
	}
	return htmlReport.Execute(w, data)
}

func commas(n int) string {
	s := strconv.Itoa(n)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
