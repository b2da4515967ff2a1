package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/martinemde/vanna/components"
	"github.com/martinemde/vanna/config"
	"github.com/martinemde/vanna/llm"
	"github.com/martinemde/vanna/logging"
	"github.com/martinemde/vanna/tools"
	"github.com/martinemde/vanna/user"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Files.Root = t.TempDir()
	cfg.LLM.MockReply = "pong"
	return cfg
}

func TestNewApp_Defaults(t *testing.T) {
	a, err := newApp(testConfig(t), logging.NewNop())
	require.NoError(t, err)
	defer a.Close()

	names := a.registry.Names()
	assert.Contains(t, names, tools.ListFilesName)
	assert.Contains(t, names, tools.SaveTextMemoryName)
	assert.NotContains(t, names, tools.RunSQLName)
	assert.NotContains(t, names, tools.VisualizeDataName)
	assert.NotContains(t, names, tools.RunBashName)
	assert.Nil(t, a.metrics)
	assert.IsType(t, &llm.MockService{}, a.llm)
}

func TestNewApp_SQLBashAndMetrics(t *testing.T) {
	cfg := testConfig(t)
	cfg.SQL.DSN = filepath.Join(t.TempDir(), "data.db")
	cfg.Files.EnableBash = true
	cfg.Metrics.Enabled = true

	a, err := newApp(cfg, logging.NewNop())
	require.NoError(t, err)
	defer a.Close()

	names := a.registry.Names()
	assert.Contains(t, names, tools.RunSQLName)
	assert.Contains(t, names, tools.VisualizeDataName)
	assert.Contains(t, names, tools.RunBashName)
	require.NotNil(t, a.metrics)
}

func TestNewLLMService(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	svc, err := newLLMService(config.LLMConfig{Provider: "mock"})
	require.NoError(t, err)
	assert.IsType(t, &llm.MockService{}, svc)

	_, err = newLLMService(config.LLMConfig{Provider: "openai"})
	assert.Error(t, err)

	svc, err = newLLMService(config.LLMConfig{Provider: "OpenAI", APIKey: "sk-test"})
	require.NoError(t, err)
	assert.IsType(t, &llm.OpenAIService{}, svc)
}

func TestChatLoop(t *testing.T) {
	a, err := newApp(testConfig(t), logging.NewNop())
	require.NoError(t, err)
	defer a.Close()

	var out bytes.Buffer
	in := strings.NewReader("hello\n\nexit\nnever sent\n")
	reqCtx := &user.RequestContext{Cookies: map[string]string{}, Metadata: map[string]any{}}

	err = chatLoop(context.Background(), a.agent, reqCtx, in, newTerminalRenderer(&out, false), false)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "pong")
	assert.Equal(t, 1, a.llm.(*llm.MockService).CallCount())
}

func TestRender(t *testing.T) {
	var out bytes.Buffer
	r := newTerminalRenderer(&out, false)

	r.Render(components.New(components.NewText("**hi**", true)))
	r.Render(components.New(components.NewStatusBar(components.StatusError, "Error", "boom")))
	r.Render(components.New(components.NewStatusBar(components.StatusIdle, "Ready", "")))
	r.Render(components.New(components.NewChatInput("Ask...", false)))
	r.Render(components.New(components.NewDataFrame("Sales", []string{"region", "total"}, []map[string]any{
		{"region": "north", "total": 42},
	})))

	got := out.String()
	assert.Contains(t, got, "**hi**")
	assert.Contains(t, got, "Error: boom")
	assert.NotContains(t, got, "Ready")
	assert.NotContains(t, got, "Ask...")
	assert.Contains(t, got, "| region | total |")
	assert.Contains(t, got, "| north | 42 |")
	assert.Contains(t, got, "1 rows")
}

func TestParseFilter(t *testing.T) {
	got, err := parseFilter([]string{"category=sales", "priority=2", "smoke=true"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"category": "sales", "priority": 2, "smoke": true}, got)

	_, err = parseFilter([]string{"nope"})
	assert.Error(t, err)
}

func TestLoadDataset_Extension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cases.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: smoke\ntest_cases:\n  - id: t1\n    message: hi\n"), 0o644))

	ds, err := loadDataset(path)
	require.NoError(t, err)
	assert.Equal(t, "smoke", ds.Name)
	assert.Equal(t, 1, ds.Len())

	_, err = loadDataset("cases.txt")
	assert.ErrorContains(t, err, "unsupported extension")
}

func TestBuildVariants(t *testing.T) {
	a, err := newApp(testConfig(t), logging.NewNop())
	require.NoError(t, err)
	defer a.Close()

	single := buildVariants(a.agent, nil)
	require.Len(t, single, 1)
	assert.Same(t, a.agent, single[0].Agent)

	vs := buildVariants(a.agent, []float64{0.2, 1})
	require.Len(t, vs, 2)
	assert.Equal(t, "temperature=0.2", vs[0].Name)
	assert.Equal(t, "temperature=1", vs[1].Name)
	assert.InDelta(t, 0.2, vs[0].Agent.Config().Temperature, 1e-9)
	assert.InDelta(t, 0.7, a.agent.Config().Temperature, 1e-9)
}

func TestRootCommand_Version(t *testing.T) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})
	require.NoError(t, cmd.Execute())
	assert.Equal(t, "vanna version dev\n", out.String())
}
