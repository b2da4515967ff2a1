package filesystem

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/martinemde/vanna/user"
)

const (
	maxSearchFileBytes   = 1_000_000
	defaultSearchResults = 20
	snippetWindow        = 60
	bashWaitDelay        = 500 * time.Millisecond
)

// sensitiveEnvSuffixes are stripped from the environment of RunBash.
var sensitiveEnvSuffixes = []string{
	"_API_KEY",
	"_SECRET",
	"_TOKEN",
	"_PASSWORD",
	"_CREDENTIAL",
}

var safeEnvVars = map[string]bool{
	"PATH": true, "HOME": true, "USER": true, "SHELL": true,
	"LANG": true, "TERM": true, "TMPDIR": true,
}

func isSensitiveEnvVar(name string) bool {
	upper := strings.ToUpper(name)
	for _, suffix := range sensitiveEnvSuffixes {
		if strings.HasSuffix(upper, suffix) {
			return true
		}
	}
	return false
}

func filterEnvironment(environ []string) []string {
	var filtered []string
	for _, env := range environ {
		name, _, ok := strings.Cut(env, "=")
		if !ok {
			continue
		}
		if safeEnvVars[name] || !isSensitiveEnvVar(name) {
			filtered = append(filtered, env)
		}
	}
	return filtered
}

// Local stores files under root/<hash of user id>/.
type Local struct {
	root string
}

// NewLocal returns a Local rooted at root ("." when empty).
func NewLocal(root string) *Local {
	if root == "" {
		root = "."
	}
	return &Local{root: root}
}

// Root returns the base directory.
func (l *Local) Root() string {
	return l.root
}

// UserDir returns the directory name used for userID.
func UserDir(userID string) string {
	sum := sha256.Sum256([]byte(userID))
	return hex.EncodeToString(sum[:])[:16]
}

func (l *Local) userDir(ctx context.Context) (string, error) {
	u, ok := user.FromContext(ctx)
	if !ok {
		return "", ErrNoUser
	}
	dir, err := filepath.Abs(filepath.Join(l.root, UserDir(u.ID)))
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create user directory: %w", err)
	}
	return dir, nil
}

func (l *Local) resolve(ctx context.Context, path string) (string, error) {
	dir, err := l.userDir(ctx)
	if err != nil {
		return "", err
	}
	resolved := filepath.Join(dir, path)
	rel, err := filepath.Rel(dir, resolved)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%q: %w", path, ErrPathEscape)
	}
	return resolved, nil
}

// ListFiles returns the sorted names of regular files in dir.
func (l *Local) ListFiles(ctx context.Context, dir string) ([]string, error) {
	path, err := l.resolve(ctx, dir)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("list %q: %w", dir, err)
	}
	files := []string{}
	for _, e := range entries {
		if e.Type().IsRegular() {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}

func (l *Local) ReadFile(ctx context.Context, name string) (string, error) {
	path, err := l.resolve(ctx, name)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("read %q: %w", name, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("read %q: is a directory", name)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %q: %w", name, err)
	}
	return string(data), nil
}

// WriteFile creates parent directories as needed. Without overwrite an
// existing file yields an error wrapping fs.ErrExist.
func (l *Local) WriteFile(ctx context.Context, name, content string, overwrite bool) error {
	path, err := l.resolve(ctx, name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("write %q: %w", name, err)
	}
	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !overwrite {
		flags = os.O_WRONLY | os.O_CREATE | os.O_EXCL
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("file %q already exists, set overwrite to replace it: %w", name, fs.ErrExist)
		}
		return fmt.Errorf("write %q: %w", name, err)
	}
	if _, err := f.WriteString(content); err != nil {
		f.Close()
		return fmt.Errorf("write %q: %w", name, err)
	}
	return f.Close()
}

// Exists reports false for paths outside the sandbox.
func (l *Local) Exists(ctx context.Context, name string) (bool, error) {
	path, err := l.resolve(ctx, name)
	if errors.Is(err, ErrPathEscape) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	_, err = os.Stat(path)
	return err == nil, nil
}

func (l *Local) IsDirectory(ctx context.Context, name string) (bool, error) {
	path, err := l.resolve(ctx, name)
	if errors.Is(err, ErrPathEscape) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	info, err := os.Stat(path)
	return err == nil && info.IsDir(), nil
}

// SearchFiles matches query case-insensitively against file names and,
// with IncludeContent, against the text of files up to 1MB.
func (l *Local) SearchFiles(ctx context.Context, query string, opts SearchOptions) ([]SearchMatch, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if opts.MaxResults <= 0 {
		opts.MaxResults = defaultSearchResults
	}
	dir, err := l.userDir(ctx)
	if err != nil {
		return nil, err
	}

	lowerQuery := strings.ToLower(query)
	matches := []SearchMatch{}
	errDone := errors.New("done")

	walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if len(matches) >= opts.MaxResults {
			return errDone
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		rel, _ := filepath.Rel(dir, path)
		rel = filepath.ToSlash(rel)

		var match *SearchMatch
		if strings.Contains(strings.ToLower(d.Name()), lowerQuery) {
			match = &SearchMatch{Path: rel, Snippet: FilenameMatch}
		}
		if opts.IncludeContent {
			if info, err := d.Info(); err == nil && info.Size() <= maxSearchFileBytes {
				if data, err := os.ReadFile(path); err == nil {
					if snippet, ok := findSnippet(string(data), lowerQuery); ok {
						match = &SearchMatch{Path: rel, Snippet: snippet}
					}
				}
			}
		}
		if match != nil {
			matches = append(matches, *match)
		}
		return nil
	})
	if walkErr != nil && !errors.Is(walkErr, errDone) {
		return nil, walkErr
	}
	return matches, nil
}

func findSnippet(content, lowerQuery string) (string, bool) {
	idx := strings.Index(strings.ToLower(content), lowerQuery)
	if idx == -1 {
		return "", false
	}
	start := max(0, idx-snippetWindow)
	end := min(len(content), idx+len(lowerQuery)+snippetWindow)
	snippet := strings.TrimSpace(strings.ReplaceAll(content[start:end], "\n", " "))
	if start > 0 {
		snippet = "…" + snippet
	}
	if end < len(content) {
		snippet += "…"
	}
	return snippet, true
}

// RunBash runs command with bash in the user directory. Secrets are removed
// from the environment. A timeout kills the whole process group and is
// reported through TimedOut rather than as an error.
func (l *Local) RunBash(ctx context.Context, command string, timeout time.Duration) (*CommandResult, error) {
	if strings.TrimSpace(command) == "" {
		return nil, errors.New("command must not be empty")
	}
	dir, err := l.userDir(ctx)
	if err != nil {
		return nil, err
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, "/bin/bash", "-c", command)
	cmd.Dir = dir
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Env = filterEnvironment(os.Environ())
	// Children inherit the output pipes, so the whole group has to die
	// before Wait can return.
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	cmd.WaitDelay = bashWaitDelay

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err = cmd.Run()
	result := &CommandResult{Stdout: stdout.String(), Stderr: stderr.String()}
	if err != nil {
		var exitErr *exec.ExitError
		switch {
		case errors.Is(ctx.Err(), context.DeadlineExceeded):
			result.TimedOut = true
			result.ExitCode = -1
		case errors.As(err, &exitErr):
			result.ExitCode = exitErr.ExitCode()
		default:
			return nil, fmt.Errorf("run command: %w", err)
		}
	}
	return result, nil
}
