// ABOUTME: Tests for tool registration, lookup, listing, and dispatch.
// ABOUTME: Covers duplicate rejection and handler error wrapping.

package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoTool(name string) Tool {
	return Tool{
		Name:        name,
		Description: "echoes its input",
		Handler: func(ctx context.Context, input json.RawMessage) (string, error) {
			return string(input), nil
		},
	}
}

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	return NewRegistry(slog.New(slog.DiscardHandler))
}

func TestRegisterAndGet(t *testing.T) {
	r := newTestRegistry(t)
	require.NoError(t, r.Register(echoTool("echo")))

	tool, err := r.Get("echo")
	require.NoError(t, err)
	assert.Equal(t, "echo", tool.Name)

	_, err = r.Get("missing")
	require.ErrorIs(t, err, ErrToolNotFound)
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	r := newTestRegistry(t)
	require.NoError(t, r.Register(echoTool("echo")))

	err := r.Register(echoTool("echo"))
	require.ErrorIs(t, err, ErrToolAlreadyRegistered)
}

func TestRegisterRejectsInvalidTools(t *testing.T) {
	r := newTestRegistry(t)

	require.Error(t, r.Register(Tool{Name: "", Handler: echoTool("x").Handler}))
	require.Error(t, r.Register(Tool{Name: "no-handler"}))
}

func TestListSortedByName(t *testing.T) {
	r := newTestRegistry(t)
	require.NoError(t, r.Register(echoTool("zeta")))
	require.NoError(t, r.Register(echoTool("alpha")))
	require.NoError(t, r.Register(echoTool("mid")))

	names := []string{}
	for _, tool := range r.List() {
		names = append(names, tool.Name)
	}
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, names)
}

func TestDispatch(t *testing.T) {
	r := newTestRegistry(t)
	require.NoError(t, r.Register(echoTool("echo")))

	out, err := r.Dispatch(t.Context(), "echo", json.RawMessage(`{"a":1}`))
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, out)

	_, err = r.Dispatch(t.Context(), "missing", nil)
	require.ErrorIs(t, err, ErrToolNotFound)
}

func TestDispatchWrapsHandlerErrors(t *testing.T) {
	r := newTestRegistry(t)
	require.NoError(t, r.Register(Tool{
		Name: "broken",
		Handler: func(ctx context.Context, input json.RawMessage) (string, error) {
			return "", fmt.Errorf("boom")
		},
	}))

	_, err := r.Dispatch(t.Context(), "broken", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `tool "broken"`)
	assert.Contains(t, err.Error(), "boom")
}
