// Package tools holds the built-in tools: SQL execution and visualization,
// agent memory, the per-user file area and shell commands.
package tools

import (
	"github.com/martinemde/vanna/filesystem"
	"github.com/martinemde/vanna/memory"
	"github.com/martinemde/vanna/sqlrunner"
	"github.com/martinemde/vanna/tool"
)

// Set selects which built-in tools Register adds. Nil dependencies leave
// their tools out, except Memory: the memory tools fall back to the memory
// on the tool context, so they are added when IncludeMemory is set.
type Set struct {
	SQL           sqlrunner.Runner
	FileSystem    filesystem.FileSystem
	Memory        memory.AgentMemory
	IncludeMemory bool
	// IncludeBash adds run_bash, restricted to BashGroups (admin by default).
	IncludeBash bool
	BashGroups  []string
}

// Register adds the tools selected by s to r.
func Register(r *tool.Registry, s Set) error {
	var all []tool.Tool
	if s.SQL != nil && s.FileSystem != nil {
		all = append(all, NewRunSQL(s.SQL, s.FileSystem), NewVisualizeData(s.FileSystem))
	}
	if s.Memory != nil || s.IncludeMemory {
		all = append(all,
			NewSaveQuestionToolArgs(s.Memory),
			NewSearchToolUses(s.Memory),
			NewSaveTextMemory(s.Memory),
		)
	}
	if s.FileSystem != nil {
		all = append(all,
			NewListFiles(s.FileSystem),
			NewReadFile(s.FileSystem),
			NewWriteFile(s.FileSystem),
			NewSearchFiles(s.FileSystem),
			NewEditFile(s.FileSystem),
		)
		if s.IncludeBash {
			all = append(all, NewRunBash(s.FileSystem, s.BashGroups...))
		}
	}
	for _, t := range all {
		if err := r.Register(t); err != nil {
			return err
		}
	}
	return nil
}
