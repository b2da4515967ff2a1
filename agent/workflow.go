package agent

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/martinemde/vanna/components"
	"github.com/martinemde/vanna/storage"
	"github.com/martinemde/vanna/tools"
	"github.com/martinemde/vanna/user"
)

const helpText = "## 🤖 Vanna AI Assistant\n\n" +
	"I'm your AI data analyst! Here's what I can help you with:\n\n" +
	"**💬 Natural Language Queries**\n" +
	"- \"Show me sales data for last quarter\"\n" +
	"- \"Which customers have the highest orders?\"\n" +
	"- \"Create a chart of revenue by month\"\n\n" +
	"**🔧 Commands**\n" +
	"- `/help` - Show this help message\n" +
	"- `/status` - Check setup status\n\n" +
	"Just ask me anything about your data in plain English!"

var (
	sqlToolNames  = []string{tools.RunSQLName, "sql_query", "execute_sql", "query_sql"}
	vizToolNames  = []string{"visualize_data", "create_chart", "plot_data", "generate_chart"}
	calcToolNames = []string{"calculator", "calc", "calculate"}
)

// DefaultWorkflow answers /help and /status without calling the model and
// builds a starter UI that reports which capabilities are configured.
type DefaultWorkflow struct {
	// WelcomeMessage replaces the generated welcome text.
	WelcomeMessage string
}

type setupAnalysis struct {
	hasSQL, hasMemory, hasSearch, hasSave, hasViz, hasCalculator bool
	toolNames                                                   []string
}

func (s setupAnalysis) complete() bool   { return s.hasSQL && s.hasMemory && s.hasViz }
func (s setupAnalysis) functional() bool { return s.hasSQL }

func analyzeSetup(names []string) setupAnalysis {
	anyOf := func(candidates []string) bool {
		return slices.ContainsFunc(candidates, func(c string) bool { return slices.Contains(names, c) })
	}
	s := setupAnalysis{
		hasSQL:        anyOf(sqlToolNames),
		hasSearch:     slices.Contains(names, tools.SearchToolUsesName),
		hasSave:       slices.Contains(names, tools.SaveQuestionToolArgsName),
		hasViz:        anyOf(vizToolNames),
		hasCalculator: anyOf(calcToolNames),
		toolNames:     names,
	}
	s.hasMemory = s.hasSearch && s.hasSave
	return s
}

func markdown(content string) components.UiComponent {
	return components.WithSimple(components.NewText(content, true), components.SimpleText(content))
}

func (w DefaultWorkflow) toolNames(ctx context.Context, a *Agent, u *user.User) []string {
	schemas := a.Registry().Schemas(ctx, u)
	names := make([]string, len(schemas))
	for i, s := range schemas {
		names[i] = s.Name
	}
	return names
}

func (w DefaultWorkflow) TryHandle(ctx context.Context, a *Agent, u *user.User, _ *storage.Conversation, message string) (*WorkflowResult, error) {
	switch strings.ToLower(strings.TrimSpace(message)) {
	case "/help", "help", "/h":
		return &WorkflowResult{Handled: true, Components: []components.UiComponent{markdown(helpText)}}, nil
	case "/status", "status":
		return w.statusCheck(analyzeSetup(w.toolNames(ctx, a, u))), nil
	}
	return nil, nil
}

func (w DefaultWorkflow) StarterUI(ctx context.Context, a *Agent, u *user.User, _ *storage.Conversation) ([]components.UiComponent, error) {
	s := analyzeSetup(w.toolNames(ctx, a, u))

	var out []components.UiComponent
	if w.WelcomeMessage != "" {
		out = append(out, markdown(w.WelcomeMessage))
	} else {
		out = append(out, markdown(welcomeMessage(s)))
	}
	out = append(out, setupStatusCards(s)...)
	if s.hasSQL {
		out = append(out, quickActions(s))
	}
	if !s.complete() {
		if g, ok := setupGuidance(s); ok {
			out = append(out, g)
		}
	}
	return out, nil
}

func welcomeMessage(s setupAnalysis) string {
	switch {
	case !s.hasSQL:
		return "# ⚠️ Setup Required\n\n" +
			"Welcome to **Vanna AI**! I'm your data analysis assistant, but I need a SQL connection to help you.\n\n" +
			"Please configure a SQL tool to get started."
	case s.complete():
		return "# 🎉 Welcome to Vanna AI!\n\n" +
			"I'm your AI data analyst assistant, ready to help you explore and analyze your data!\n\n" +
			"✅ **Your setup is complete** - SQL, memory, and visualization tools are all configured.\n\n" +
			"Ask me anything about your data in plain English, and I'll help you find insights!"
	default:
		content := "# 👋 Welcome to Vanna AI!\n\n" +
			"I'm your AI data analyst assistant, ready to help you explore your data!\n\n" +
			"✅ **SQL connection detected** - I can query your database.\n\n"
		if !s.hasMemory {
			content += "💡 *Consider adding memory tools to help me learn from successful queries.*\n\n"
		}
		if !s.hasViz {
			content += "📊 *Add visualization tools to create charts and graphs.*\n\n"
		}
		return content + "Go ahead and ask me anything about your data!"
	}
}

func setupStatusCards(s setupAnalysis) []components.UiComponent {
	sql := components.NewStatusCard("SQL Connection", components.StatusSuccess, "Database connection configured and ready", "✅")
	if !s.hasSQL {
		sql = components.NewStatusCard("SQL Connection", components.StatusError, "No SQL tool detected - this is required for data analysis", "❌")
	}

	var mem *components.StatusCard
	switch {
	case s.hasMemory:
		mem = components.NewStatusCard("Memory System", components.StatusSuccess, "Search and save tools configured - I can learn from successful queries", "🧠")
	case s.hasSearch || s.hasSave:
		mem = components.NewStatusCard("Memory System", components.StatusWarning, "Partial memory setup - both search and save tools recommended", "⚠️")
	default:
		mem = components.NewStatusCard("Memory System", components.StatusWarning, "Memory tools not configured - I won't remember successful patterns", "⚠️")
	}

	viz := components.NewStatusCard("Visualization", components.StatusSuccess, "Chart creation tools available", "📊")
	if !s.hasViz {
		viz = components.NewStatusCard("Visualization", components.StatusInfo, "No visualization tools - results will be text/tables only", "📋")
	}

	return []components.UiComponent{components.New(sql), components.New(mem), components.New(viz)}
}

func quickActions(s setupAnalysis) components.UiComponent {
	buttons := []components.Button{{Label: "💡 Show Help", Action: "/help", Variant: "secondary"}}
	if s.hasSQL {
		buttons = append(buttons,
			components.Button{Label: "🔍 Explore Tables", Action: "What tables are available in the database?", Variant: "secondary"},
			components.Button{Label: "📊 Sample Data", Action: "Show me a sample of data from the main tables", Variant: "secondary"},
		)
	}
	if s.hasViz {
		buttons = append(buttons, components.Button{Label: "📈 Create Chart", Action: "Create a chart showing trends in the data", Variant: "secondary"})
	}
	return components.New(components.NewButtonGroup(buttons...))
}

func setupGuidance(s setupAnalysis) (components.UiComponent, bool) {
	if !s.hasSQL {
		return markdown("## 🚨 Setup Required\n\n" +
			"To get started with Vanna AI, you need to configure a SQL connection tool:\n\n" +
			"```go\n" +
			"runner, _ := sqlrunner.OpenSQLite(\"your-database.db\")\n" +
			"registry.MustRegister(tools.NewRunSQL(runner, filesystem.NewLocal(\"workspace\")))\n" +
			"```\n\n" +
			"**Next Steps:**\n" +
			"1. Configure your database connection\n" +
			"2. Add memory tools for learning\n" +
			"3. Add visualization tools for charts"), true
	}

	var suggestions []string
	if !s.hasMemory {
		suggestions = append(suggestions, "**🧠 Add Memory Tools** - Help me learn from successful queries:\n"+
			"```go\n"+
			"registry.MustRegister(tools.NewSearchToolUses(mem))\n"+
			"registry.MustRegister(tools.NewSaveQuestionToolArgs(mem))\n"+
			"```")
	}
	if !s.hasViz {
		suggestions = append(suggestions, "**📊 Add Visualization** - Create charts and graphs:\n"+
			"```go\n"+
			"registry.MustRegister(yourChartTool)\n"+
			"```")
	}
	if len(suggestions) == 0 {
		return components.UiComponent{}, false
	}
	return markdown("## 💡 Suggested Improvements\n\n" + strings.Join(suggestions, "\n\n")), true
}

func (w DefaultWorkflow) statusCheck(s setupAnalysis) *WorkflowResult {
	var b strings.Builder
	b.WriteString("# 🔍 Setup Status Report\n\n")
	switch {
	case s.complete():
		b.WriteString("🎉 **Excellent!** Your Vanna AI setup is complete and optimized.\n\n")
	case s.functional():
		b.WriteString("✅ **Good!** Your setup is functional with room for improvement.\n\n")
	default:
		b.WriteString("⚠️ **Action Required** - Your setup needs configuration.\n\n")
	}
	fmt.Fprintf(&b, "**Tools Detected:** %d total\n\n", len(s.toolNames))

	b.WriteString("## Tool Status\n\n")
	b.WriteString("- **SQL Connection:** " + pick(s.hasSQL, "✅ Available", "❌ Missing (Required)") + "\n")
	memStatus := "❌ Missing"
	if s.hasMemory {
		memStatus = "✅ Complete"
	} else if s.hasSearch || s.hasSave {
		memStatus = "⚠️ Incomplete"
	}
	b.WriteString("- **Memory System:** " + memStatus + "\n")
	b.WriteString("- **Visualization:** " + pick(s.hasViz, "✅ Available", "📋 Text/Tables Only") + "\n")
	b.WriteString("- **Calculator:** " + pick(s.hasCalculator, "✅ Available", "➖ Not Available") + "\n\n")

	if len(s.toolNames) > 0 {
		sorted := slices.Clone(s.toolNames)
		sort.Strings(sorted)
		b.WriteString("**Available Tools:** " + strings.Join(sorted, ", "))
	}

	out := []components.UiComponent{markdown(b.String())}
	out = append(out, setupStatusCards(s)...)
	if g, ok := setupGuidance(s); ok {
		out = append(out, g)
	}
	return &WorkflowResult{Handled: true, Components: out}
}

func pick(cond bool, yes, no string) string {
	if cond {
		return yes
	}
	return no
}
