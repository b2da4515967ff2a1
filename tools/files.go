package tools

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/martinemde/vanna/components"
	"github.com/martinemde/vanna/filesystem"
	"github.com/martinemde/vanna/tool"
)

const (
	ListFilesName   = "list_files"
	ReadFileName    = "read_file"
	WriteFileName   = "write_file"
	SearchFilesName = "search_files"
	EditFileName    = "edit_file"

	maxSnippetRunes = 200
)

type ListFilesArgs struct {
	Directory string `json:"directory,omitempty" jsonschema:"description=Directory to list (defaults to current),default=."`
}

type ReadFileArgs struct {
	Filename string `json:"filename" jsonschema:"description=Name of the file to read" validate:"required"`
}

type WriteFileArgs struct {
	Filename  string `json:"filename" jsonschema:"description=Name of the file to write" validate:"required"`
	Content   string `json:"content" jsonschema:"description=Content to write to the file"`
	Overwrite bool   `json:"overwrite,omitempty" jsonschema:"description=Whether to overwrite existing files"`
}

type SearchFilesArgs struct {
	Query          string `json:"query" jsonschema:"description=Text to look for in file names and contents" validate:"required"`
	IncludeContent *bool  `json:"include_content,omitempty" jsonschema:"description=Whether to search inside file contents,default=true"`
	MaxResults     int    `json:"max_results,omitempty" jsonschema:"description=Maximum number of matches to return,default=20,minimum=1,maximum=100" validate:"omitempty,min=1,max=100"`
}

// LineEdit replaces lines StartLine through EndLine (1-based, inclusive).
// EndLine defaults to StartLine. EndLine = StartLine-1 inserts before
// StartLine.
type LineEdit struct {
	StartLine  int    `json:"start_line" jsonschema:"description=First line (1-based) affected by this edit,minimum=1" validate:"min=1"`
	EndLine    *int   `json:"end_line,omitempty" jsonschema:"description=Last line (1-based and inclusive) to replace. Set to start_line - 1 to insert before start_line"`
	NewContent string `json:"new_content,omitempty" jsonschema:"description=Replacement text"`
}

type EditFileArgs struct {
	Filename string     `json:"filename" jsonschema:"description=Path to the file to edit" validate:"required"`
	Edits    []LineEdit `json:"edits" jsonschema:"description=Edits to apply. Later entries should reference higher line numbers" validate:"required,min=1,dive"`
}

func notify(level, msg string) *components.UiComponent {
	ui := components.WithSimple(components.NewNotification(level, "", msg), components.SimpleText(msg))
	return &ui
}

func fileFailure(prefix string, err error) *tool.Result {
	msg := prefix + err.Error()
	res := tool.Failure(msg)
	res.Error = err.Error()
	res.UiComponent = notify(components.StatusError, msg)
	return res
}

// NewListFiles builds list_files.
func NewListFiles(fs filesystem.FileSystem) *tool.Typed[ListFilesArgs] {
	return tool.New(ListFilesName, "List files in a directory", func(ctx context.Context, _ *tool.Context, args ListFilesArgs) (*tool.Result, error) {
		dir := args.Directory
		if dir == "" {
			dir = "."
		}
		files, err := fs.ListFiles(ctx, dir)
		if err != nil {
			return fileFailure("Error listing files: ", err), nil
		}

		var msg, listing string
		if len(files) == 0 {
			msg = fmt.Sprintf("No files found in directory '%s'", dir)
			listing = "No files found"
		} else {
			lines := make([]string, len(files))
			for i, f := range files {
				lines[i] = "- " + f
			}
			listing = strings.Join(lines, "\n")
			msg = fmt.Sprintf("Files in '%s':\n%s", dir, listing)
		}

		ui := components.WithSimple(components.NewCard("Files in "+dir, listing, "", false), components.SimpleText(msg))
		res := tool.Success(TruncateToolOutput(ListFilesName, msg), &ui)
		res.Metadata["file_count"] = len(files)
		return res, nil
	})
}

// NewReadFile builds read_file.
func NewReadFile(fs filesystem.FileSystem) *tool.Typed[ReadFileArgs] {
	return tool.New(ReadFileName, "Read the contents of a file", func(ctx context.Context, _ *tool.Context, args ReadFileArgs) (*tool.Result, error) {
		content, err := fs.ReadFile(ctx, args.Filename)
		if err != nil {
			return fileFailure("Error reading file: ", err), nil
		}
		msg := fmt.Sprintf("Content of '%s':\n\n%s", args.Filename, content)
		ui := components.WithSimple(components.NewCard("Contents of "+args.Filename, content, "", false),
			components.SimpleText("File content:\n"+content))
		return tool.Success(TruncateToolOutput(ReadFileName, msg), &ui), nil
	})
}

// NewWriteFile builds write_file.
func NewWriteFile(fs filesystem.FileSystem) *tool.Typed[WriteFileArgs] {
	return tool.New(WriteFileName, "Write content to a file", func(ctx context.Context, _ *tool.Context, args WriteFileArgs) (*tool.Result, error) {
		if err := fs.WriteFile(ctx, args.Filename, args.Content, args.Overwrite); err != nil {
			return fileFailure("Error writing file: ", err), nil
		}
		msg := fmt.Sprintf("Successfully wrote %d characters to '%s'", len([]rune(args.Content)), args.Filename)
		ui := components.WithSimple(
			components.NewNotification(components.StatusSuccess, "", fmt.Sprintf("File '%s' written successfully", args.Filename)),
			components.SimpleText("Wrote to "+args.Filename))
		return tool.Success(msg, &ui), nil
	})
}

// NewSearchFiles builds search_files.
func NewSearchFiles(fs filesystem.FileSystem) *tool.Typed[SearchFilesArgs] {
	return tool.New(SearchFilesName, "Search for files by name or content", func(ctx context.Context, _ *tool.Context, args SearchFilesArgs) (*tool.Result, error) {
		maxResults := args.MaxResults
		if maxResults == 0 {
			maxResults = 20
		}
		includeContent := args.IncludeContent == nil || *args.IncludeContent

		matches, err := fs.SearchFiles(ctx, args.Query, filesystem.SearchOptions{MaxResults: maxResults, IncludeContent: includeContent})
		if err != nil {
			return fileFailure("Error searching files: ", err), nil
		}
		if len(matches) == 0 {
			msg := fmt.Sprintf("No matches found for '%s'.", args.Query)
			return tool.Success(msg, notify(components.StatusInfo, msg)), nil
		}

		lines := make([]string, 0, len(matches))
		for _, m := range matches {
			snippet := m.Snippet
			if snippet == filesystem.FilenameMatch {
				snippet = "(matched filename)"
			}
			if r := []rune(snippet); len(r) > maxSnippetRunes {
				snippet = string(r[:maxSnippetRunes-3]) + "…"
			}
			if snippet != "" {
				lines = append(lines, fmt.Sprintf("- %s: %s", m.Path, snippet))
			} else {
				lines = append(lines, "- "+m.Path)
			}
		}
		summary := fmt.Sprintf("Found %d match(es) for '%s' (max %d).", len(matches), args.Query, maxResults)
		content := strings.Join(lines, "\n")

		ui := components.WithSimple(components.NewCard(fmt.Sprintf("Search results for '%s'", args.Query), content, "", false),
			components.SimpleText(summary))
		res := tool.Success(TruncateToolOutput(SearchFilesName, summary+"\n"+content), &ui)
		res.Metadata["match_count"] = len(matches)
		return res, nil
	})
}

// NewEditFile builds edit_file. Edits are applied from the bottom of the
// file up so that each edit's line numbers refer to the original file.
func NewEditFile(fs filesystem.FileSystem) *tool.Typed[EditFileArgs] {
	return tool.New(EditFileName, "Modify specific lines within a file", func(ctx context.Context, _ *tool.Context, args EditFileArgs) (*tool.Result, error) {
		original, err := fs.ReadFile(ctx, args.Filename)
		if err != nil {
			return fileFailure(fmt.Sprintf("Error loading file '%s': ", args.Filename), err), nil
		}

		updated, applied, rangeErr := applyEdits(original, args.Edits)
		if rangeErr != nil {
			msg := fmt.Sprintf("Invalid edit range for '%s': start_line=%d, end_line=%d. %s",
				args.Filename, rangeErr.start, rangeErr.end, rangeErr.msg)
			res := tool.Failure(msg)
			res.UiComponent = notify(components.StatusError, msg)
			return res, nil
		}

		if updated == original {
			msg := fmt.Sprintf("No changes applied to '%s' (content already up to date).", args.Filename)
			return tool.Success(msg, notify(components.StatusInfo, msg)), nil
		}

		if err := fs.WriteFile(ctx, args.Filename, updated, true); err != nil {
			return fileFailure(fmt.Sprintf("Error writing updated contents to '%s': ", args.Filename), err), nil
		}

		diff := unifiedDiff(args.Filename, original, updated)
		summary := fmt.Sprintf("Updated '%s' with %d edit(s).\n%s", args.Filename, len(args.Edits), strings.Join(applied, "\n"))

		ui := components.WithSimple(components.NewCard("Edited "+args.Filename, diff, "", false), components.SimpleText(summary))
		return tool.Success(TruncateToolOutput(EditFileName, summary+"\n\n"+diff), &ui), nil
	})
}

type editRangeError struct {
	start, end int
	msg        string
}

// applyEdits returns the edited text and a description of each edit in
// file order.
func applyEdits(content string, edits []LineEdit) (string, []string, *editRangeError) {
	lines := splitLinesKeepEnds(content)

	ordered := make([]LineEdit, len(edits))
	copy(ordered, edits)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].StartLine > ordered[j].StartLine })

	applied := make([]string, 0, len(ordered))
	for _, e := range ordered {
		start := e.StartLine
		end := start
		if e.EndLine != nil {
			end = *e.EndLine
		}
		fail := func(msg string) (string, []string, *editRangeError) {
			return "", nil, &editRangeError{start: start, end: end, msg: msg}
		}

		if start < 1 {
			return fail("start_line must be >= 1")
		}
		if end < start-1 {
			return fail("end_line must be >= start_line - 1")
		}

		insertion := end == start-1
		var from, to int
		switch {
		case insertion && start > len(lines)+1:
			return fail("Cannot insert beyond one line past the end of the file")
		case insertion:
			from, to = start-1, start-1
		case start > len(lines):
			return fail(fmt.Sprintf("start_line %d is beyond the end of the file (len=%d)", start, len(lines)))
		case end > len(lines):
			return fail(fmt.Sprintf("end_line %d is beyond the end of the file (len=%d)", end, len(lines)))
		default:
			from, to = start-1, end
		}

		replacement := splitLinesKeepEnds(e.NewContent)
		next := make([]string, 0, len(lines)-(to-from)+len(replacement))
		next = append(next, lines[:from]...)
		next = append(next, replacement...)
		next = append(next, lines[to:]...)
		lines = next

		if insertion {
			applied = append(applied, fmt.Sprintf("Inserted %d line(s) at line %d", len(replacement), start))
		} else {
			applied = append(applied, fmt.Sprintf("Replaced lines %d-%d (removed %d line(s))", start, end, end-start+1))
		}
	}

	for i, j := 0, len(applied)-1; i < j; i, j = i+1, j-1 {
		applied[i], applied[j] = applied[j], applied[i]
	}
	return strings.Join(lines, ""), applied, nil
}

func splitLinesKeepEnds(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.SplitAfter(s, "\n")
	if parts[len(parts)-1] == "" {
		parts = parts[:len(parts)-1]
	}
	return parts
}

func unifiedDiff(name, before, after string) string {
	text, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(before),
		B:        difflib.SplitLines(after),
		FromFile: "a/" + name,
		ToFile:   "b/" + name,
		Context:  3,
	})
	if err != nil || text == "" {
		return "(No textual diff available)"
	}
	return strings.TrimRight(text, "\n")
}
