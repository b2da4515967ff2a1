package main

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/martinemde/vanna/components"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	cardStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

// terminalRenderer prints agent components to a terminal. Markdown goes
// through glamour when markdown is non-nil.
type terminalRenderer struct {
	out      io.Writer
	markdown *glamour.TermRenderer
}

func newTerminalRenderer(out io.Writer, styled bool) *terminalRenderer {
	r := &terminalRenderer{out: out}
	if styled {
		// A nil renderer falls back to plain text.
		r.markdown, _ = glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
	}
	return r
}

func (r *terminalRenderer) text(s string, markdown bool) string {
	if markdown && r.markdown != nil {
		if out, err := r.markdown.Render(s); err == nil {
			return strings.TrimRight(out, "\n")
		}
	}
	return s
}

func statusStyle(status string) lipgloss.Style {
	switch status {
	case components.StatusError:
		return errorStyle
	case components.StatusSuccess:
		return successStyle
	default:
		return mutedStyle
	}
}

// Render writes one component. Chrome updates with nothing to say, such as
// the chat input, write nothing.
func (r *terminalRenderer) Render(c components.UiComponent) {
	line := r.format(c)
	if line == "" {
		return
	}
	fmt.Fprintln(r.out, line)
}

func (r *terminalRenderer) format(c components.UiComponent) string {
	switch rich := c.Rich.(type) {
	case *components.RichText:
		return r.text(rich.Content, rich.Markdown)
	case *components.StatusBarUpdate:
		if rich.Status == components.StatusIdle {
			return ""
		}
		msg := rich.Message
		if rich.Detail != "" {
			msg += ": " + rich.Detail
		}
		return statusStyle(rich.Status).Render("• " + msg)
	case *components.StatusCard:
		msg := rich.Title + " [" + rich.Status + "]"
		if rich.Description != "" {
			msg += " " + rich.Description
		}
		return statusStyle(rich.Status).Render(msg)
	case *components.Card:
		body := titleStyle.Render(rich.Title) + "\n" + r.text(rich.Content, rich.Markdown)
		return cardStyle.Render(body)
	case *components.DataFrame:
		return formatTable(rich)
	case *components.Notification:
		msg := rich.Message
		if rich.Title != "" {
			msg = rich.Title + ": " + msg
		}
		return statusStyle(rich.Level).Render(msg)
	case *components.ChatInputUpdate, *components.TaskTrackerUpdate:
		return ""
	}
	if c.Simple != nil {
		return c.Simple.Text
	}
	return ""
}

// formatTable renders a DataFrame as a markdown-style table.
func formatTable(df *components.DataFrame) string {
	cols := df.Columns
	if len(cols) == 0 && len(df.Rows) > 0 {
		for k := range df.Rows[0] {
			cols = append(cols, k)
		}
		sort.Strings(cols)
	}

	var b strings.Builder
	if df.Title != "" {
		b.WriteString(titleStyle.Render(df.Title))
		b.WriteString("\n")
	}
	b.WriteString("| " + strings.Join(cols, " | ") + " |\n")
	b.WriteString("|" + strings.Repeat("---|", len(cols)) + "\n")
	for _, row := range df.Rows {
		cells := make([]string, len(cols))
		for i, col := range cols {
			cells[i] = fmt.Sprint(row[col])
		}
		b.WriteString("| " + strings.Join(cells, " | ") + " |\n")
	}
	b.WriteString(mutedStyle.Render(fmt.Sprintf("%d rows", len(df.Rows))))
	return b.String()
}
