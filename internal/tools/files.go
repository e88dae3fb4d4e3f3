// ABOUTME: Builtin file tools confined to a workspace directory.
// ABOUTME: Rejects absolute paths and anything escaping the workspace root.

package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ErrPathOutsideWorkspace indicates a path that resolves outside the
// workspace root.
var ErrPathOutsideWorkspace = errors.New("path outside workspace")

// FileTools builds the write_file, read_file, and list_files tools rooted at
// workspaceDir. Paths in tool input are relative to that root; absolute paths
// and traversal out of the root are rejected.
func FileTools(workspaceDir string) []Tool {
	ft := &fileTools{root: workspaceDir}
	return []Tool{
		{
			Name:        "write_file",
			Description: "Write content to a file in the workspace",
			InputSchema: `{"type":"object","properties":{"path":{"type":"string"},"content":{"type":"string"}},"required":["path","content"]}`,
			Handler:     ft.write,
		},
		{
			Name:        "read_file",
			Description: "Read a file from the workspace",
			InputSchema: `{"type":"object","properties":{"path":{"type":"string"}},"required":["path"]}`,
			Handler:     ft.read,
		},
		{
			Name:        "list_files",
			Description: "List files in a workspace directory",
			InputSchema: `{"type":"object","properties":{"path":{"type":"string"}}}`,
			Handler:     ft.list,
		},
	}
}

type fileTools struct {
	root string
}

// resolve maps a tool-supplied relative path to an absolute path under root.
func (f *fileTools) resolve(rel string) (string, error) {
	if filepath.IsAbs(rel) {
		return "", fmt.Errorf("%w: %q is absolute", ErrPathOutsideWorkspace, rel)
	}

	abs := filepath.Join(f.root, rel)
	rootAbs, err := filepath.Abs(f.root)
	if err != nil {
		return "", err
	}
	absClean, err := filepath.Abs(abs)
	if err != nil {
		return "", err
	}
	if absClean != rootAbs && !strings.HasPrefix(absClean, rootAbs+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", ErrPathOutsideWorkspace, rel)
	}
	return absClean, nil
}

type writeInput struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

func (f *fileTools) write(ctx context.Context, input json.RawMessage) (string, error) {
	var in writeInput
	if err := json.Unmarshal(input, &in); err != nil {
		return "", fmt.Errorf("parse input: %w", err)
	}
	if in.Path == "" {
		return "", fmt.Errorf("path is required")
	}

	path, err := f.resolve(in.Path)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(in.Content), 0o644); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}
	return fmt.Sprintf("wrote %d bytes to %s", len(in.Content), in.Path), nil
}

type readInput struct {
	Path string `json:"path"`
}

func (f *fileTools) read(ctx context.Context, input json.RawMessage) (string, error) {
	var in readInput
	if err := json.Unmarshal(input, &in); err != nil {
		return "", fmt.Errorf("parse input: %w", err)
	}
	if in.Path == "" {
		return "", fmt.Errorf("path is required")
	}

	path, err := f.resolve(in.Path)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	return string(data), nil
}

type listInput struct {
	Path string `json:"path"`
}

func (f *fileTools) list(ctx context.Context, input json.RawMessage) (string, error) {
	var in listInput
	if len(input) > 0 {
		if err := json.Unmarshal(input, &in); err != nil {
			return "", fmt.Errorf("parse input: %w", err)
		}
	}
	if in.Path == "" {
		in.Path = "."
	}

	path, err := f.resolve(in.Path)
	if err != nil {
		return "", err
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return "", fmt.Errorf("list directory: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() {
			name += "/"
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, "\n"), nil
}
