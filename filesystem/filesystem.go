// Package filesystem gives tools a per-user sandboxed file area.
package filesystem

import (
	"context"
	"errors"
	"time"
)

var (
	ErrPathEscape = errors.New("path is outside the user directory")
	ErrNoUser     = errors.New("no user in context")
	ErrEmptyQuery = errors.New("search query must not be empty")
)

// FilenameMatch is the Snippet of a SearchMatch that matched on the file name
// alone.
const FilenameMatch = "[filename match]"

// SearchMatch is one hit from SearchFiles.
type SearchMatch struct {
	Path    string `json:"path"`
	Snippet string `json:"snippet,omitempty"`
}

// SearchOptions tunes SearchFiles.
type SearchOptions struct {
	MaxResults     int
	IncludeContent bool
}

// CommandResult is the outcome of RunBash.
type CommandResult struct {
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	ExitCode int    `json:"exit_code"`
	TimedOut bool   `json:"timed_out,omitempty"`
}

// Output returns stdout and stderr joined by a newline.
func (r CommandResult) Output() string {
	if r.Stderr == "" {
		return r.Stdout
	}
	if r.Stdout == "" {
		return r.Stderr
	}
	return r.Stdout + "\n" + r.Stderr
}

// FileSystem operations resolve paths inside the directory of the user
// carried by ctx (see user.NewContext).
type FileSystem interface {
	ListFiles(ctx context.Context, dir string) ([]string, error)
	ReadFile(ctx context.Context, path string) (string, error)
	WriteFile(ctx context.Context, path, content string, overwrite bool) error
	Exists(ctx context.Context, path string) (bool, error)
	IsDirectory(ctx context.Context, path string) (bool, error)
	SearchFiles(ctx context.Context, query string, opts SearchOptions) ([]SearchMatch, error)
	RunBash(ctx context.Context, command string, timeout time.Duration) (*CommandResult, error)
}
