package main

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/martinemde/vanna/agent"
	"github.com/martinemde/vanna/evaluation"
	"github.com/martinemde/vanna/llm"
)

type evalFlags struct {
	dataset      string
	csvPath      string
	htmlPath     string
	judge        bool
	criteria     string
	temperatures []float64
	concurrency  int
	filter       []string
}

func newEvalCmd(flags *rootFlags) *cobra.Command {
	ef := &evalFlags{}
	cmd := &cobra.Command{
		Use:   "eval",
		Short: "Evaluate the agent against a dataset",
		Long: `Runs every test case in a YAML or JSON dataset through the agent and
scores the results with the trajectory, output and efficiency evaluators.

With --temperature given more than once, each temperature becomes a variant
and the variants are compared side by side.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(flags)
			if err != nil {
				return err
			}
			defer a.Close()

			ds, err := loadDataset(ef.dataset)
			if err != nil {
				return err
			}
			if len(ef.filter) > 0 {
				match, err := parseFilter(ef.filter)
				if err != nil {
					return err
				}
				ds = ds.FilterByMetadata(match)
			}

			evaluators := []evaluation.Evaluator{
				evaluation.TrajectoryEvaluator{},
				evaluation.OutputEvaluator{},
				evaluation.EfficiencyEvaluator{},
			}
			if ef.judge {
				evaluators = append(evaluators, evaluation.LLMAsJudge{
					Service:  a.client,
					Criteria: ef.criteria,
					Retry:    llm.DefaultRetryPolicy(),
				})
			}

			concurrency := a.cfg.Eval.MaxConcurrency
			if ef.concurrency > 0 {
				concurrency = ef.concurrency
			}
			runner := evaluation.NewRunner(evaluators,
				evaluation.WithMaxConcurrency(concurrency),
				evaluation.WithLogger(a.logger),
			)

			variants := buildVariants(a.agent, ef.temperatures)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Evaluating %d test cases from %s across %d variant(s)\n", ds.Len(), ds.Name, len(variants))

			comparison, err := runner.CompareAgents(cmd.Context(), variants, ds.TestCases)
			if err != nil {
				return err
			}
			if len(variants) == 1 {
				comparison.Reports[variants[0].Name].PrintSummary(out)
			} else {
				comparison.PrintSummary(out)
			}

			if ef.csvPath != "" {
				if err := comparison.SaveCSV(ef.csvPath); err != nil {
					return err
				}
				fmt.Fprintf(out, "Wrote %s\n", ef.csvPath)
			}
			if ef.htmlPath != "" {
				if err := comparison.SaveHTML(ef.htmlPath); err != nil {
					return err
				}
				fmt.Fprintf(out, "Wrote %s\n", ef.htmlPath)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&ef.dataset, "dataset", "", "Dataset file (.yaml, .yml or .json)")
	cmd.Flags().StringVar(&ef.csvPath, "csv", "", "Write per-case results as CSV")
	cmd.Flags().StringVar(&ef.htmlPath, "html", "", "Write an HTML report")
	cmd.Flags().BoolVar(&ef.judge, "judge", false, "Also score answers with the configured LLM")
	cmd.Flags().StringVar(&ef.criteria, "criteria", "", "Criteria for the LLM judge")
	cmd.Flags().Float64SliceVar(&ef.temperatures, "temperature", nil, "Compare variants at these temperatures")
	cmd.Flags().IntVar(&ef.concurrency, "concurrency", 0, "Max test cases in flight (overrides eval.max_concurrency)")
	cmd.Flags().StringSliceVar(&ef.filter, "filter", nil, "Only run cases whose metadata matches key=value")
	_ = cmd.MarkFlagRequired("dataset")
	return cmd
}

func loadDataset(path string) (*evaluation.Dataset, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return evaluation.LoadYAML(path)
	case ".json":
		return evaluation.LoadJSON(path)
	default:
		return nil, fmt.Errorf("dataset %s: unsupported extension (want .yaml, .yml or .json)", path)
	}
}

// parseFilter turns key=value pairs into a metadata match. Values that parse
// as numbers or booleans match their typed form.
func parseFilter(pairs []string) (map[string]any, error) {
	match := make(map[string]any, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("filter %q: want key=value", p)
		}
		match[k] = parseScalar(v)
	}
	return match, nil
}

func parseScalar(v string) any {
	if b, err := strconv.ParseBool(v); err == nil {
		return b
	}
	if i, err := strconv.Atoi(v); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return f
	}
	return v
}

func buildVariants(base *agent.Agent, temperatures []float64) []evaluation.AgentVariant {
	if len(temperatures) == 0 {
		return []evaluation.AgentVariant{{Name: "default", Agent: base}}
	}
	variants := make([]evaluation.AgentVariant, 0, len(temperatures))
	for _, t := range temperatures {
		cfg := base.Config()
		cfg.Temperature = t
		variants = append(variants, evaluation.AgentVariant{
			Name:     "temperature=" + strconv.FormatFloat(t, 'g', -1, 64),
			Agent:    base.Clone(agent.WithConfig(cfg)),
			Metadata: map[string]any{"temperature": t},
		})
	}
	return variants
}
