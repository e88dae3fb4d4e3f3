// ABOUTME: Tests for the builtin file tools and workspace confinement.
// ABOUTME: Exercises write/read/list round-trips and traversal rejection.

package tools

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFileRegistry(t *testing.T) (*Registry, string) {
	t.Helper()

	dir := t.TempDir()
	r := newTestRegistry(t)
	for _, tool := range FileTools(dir) {
		require.NoError(t, r.Register(tool))
	}
	return r, dir
}

func TestWriteThenRead(t *testing.T) {
	r, dir := newFileRegistry(t)

	out, err := r.Dispatch(t.Context(), "write_file",
		json.RawMessage(`{"path":"notes/hello.txt","content":"hi"}`))
	require.NoError(t, err)
	assert.Contains(t, out, "2 bytes")

	data, err := os.ReadFile(filepath.Join(dir, "notes", "hello.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hi", string(data))

	got, err := r.Dispatch(t.Context(), "read_file", json.RawMessage(`{"path":"notes/hello.txt"}`))
	require.NoError(t, err)
	assert.Equal(t, "hi", got)
}

func TestReadMissingFile(t *testing.T) {
	r, _ := newFileRegistry(t)

	_, err := r.Dispatch(t.Context(), "read_file", json.RawMessage(`{"path":"nope.txt"}`))
	require.Error(t, err)
}

func TestListFiles(t *testing.T) {
	r, dir := newFileRegistry(t)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), []byte("b"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("a"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))

	out, err := r.Dispatch(t.Context(), "list_files", json.RawMessage(`{}`))
	require.NoError(t, err)
	assert.Equal(t, "a.txt\nb.txt\nsub/", out)
}

func TestTraversalRejected(t *testing.T) {
	r, _ := newFileRegistry(t)

	cases := []string{
		`{"path":"../escape.txt","content":"x"}`,
		`{"path":"a/../../escape.txt","content":"x"}`,
		`{"path":"/etc/passwd","content":"x"}`,
	}
	for _, input := range cases {
		_, err := r.Dispatch(t.Context(), "write_file", json.RawMessage(input))
		require.ErrorIs(t, err, ErrPathOutsideWorkspace, "input %s", input)
	}

	_, err := r.Dispatch(t.Context(), "read_file", json.RawMessage(`{"path":"../../etc/hosts"}`))
	require.ErrorIs(t, err, ErrPathOutsideWorkspace)
}

func TestWorkspaceRootItselfListable(t *testing.T) {
	r, _ := newFileRegistry(t)

	out, err := r.Dispatch(t.Context(), "list_files", nil)
	require.NoError(t, err)
	assert.Empty(t, out)
}
