// ABOUTME: Tests for the tunnel manager's lifecycle and state machine.
// ABOUTME: Uses fake client scripts so no real tunnel service is contacted.

package tunnel

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClient writes an executable shell script standing in for the tunnel
// client binary and returns its path.
func fakeClient(t *testing.T, script string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "tunnel-client")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755))
	return path
}

func wellBehavedClient(t *testing.T) string {
	t.Helper()
	return fakeClient(t, `case "$1" in
url) echo "https://abc123.tunnel.test" ;;
run) sleep 60 ;;
esac
`)
}

func newTestManager(t *testing.T, binary string) *Manager {
	t.Helper()
	return NewManager(binary, slog.New(slog.DiscardHandler))
}

func TestSetupAllocatesURL(t *testing.T) {
	m := newTestManager(t, wellBehavedClient(t))

	url, err := m.Setup(8080, "")
	require.NoError(t, err)
	assert.Equal(t, "https://abc123.tunnel.test", url)

	st := m.Status()
	assert.Equal(t, StateIdle, st.State)
	assert.Equal(t, url, st.PublicURL)
	assert.Empty(t, st.LastError)
}

func TestSetupCustomDomain(t *testing.T) {
	m := newTestManager(t, wellBehavedClient(t))

	url, err := m.Setup(8080, "chat.example.com")
	require.NoError(t, err)
	assert.Equal(t, "https://chat.example.com", url)
}

func TestSetupInvalidPort(t *testing.T) {
	m := newTestManager(t, wellBehavedClient(t))

	_, err := m.Setup(0, "")
	require.Error(t, err)
	_, err = m.Setup(70000, "")
	require.Error(t, err)
}

func TestSetupMissingBinary(t *testing.T) {
	m := newTestManager(t, filepath.Join(t.TempDir(), "does-not-exist"))

	_, err := m.Setup(8080, "")
	require.Error(t, err)
	assert.Equal(t, StateFailed, m.Status().State)
	assert.NotEmpty(t, m.Status().LastError)
}

func TestStartRequiresSetup(t *testing.T) {
	m := newTestManager(t, wellBehavedClient(t))

	_, err := m.Start(t.Context())
	require.ErrorIs(t, err, ErrNotSetup)
}

func TestStartStopLifecycle(t *testing.T) {
	m := newTestManager(t, wellBehavedClient(t))

	_, err := m.Setup(8080, "")
	require.NoError(t, err)

	pid, err := m.Start(t.Context())
	require.NoError(t, err)
	assert.Positive(t, pid)
	assert.Equal(t, StateRunning, m.Status().State)

	require.NoError(t, m.Stop())
	assert.Equal(t, StateStopped, m.Status().State)
}

func TestStopWithoutStart(t *testing.T) {
	m := newTestManager(t, wellBehavedClient(t))

	require.ErrorIs(t, m.Stop(), ErrNotRunning)
}

func TestStartIdempotentWhileRunning(t *testing.T) {
	m := newTestManager(t, wellBehavedClient(t))

	_, err := m.Setup(8080, "")
	require.NoError(t, err)

	pid1, err := m.Start(t.Context())
	require.NoError(t, err)
	pid2, err := m.Start(t.Context())
	require.NoError(t, err)
	assert.Equal(t, pid1, pid2)

	require.NoError(t, m.Stop())
}

func TestUnexpectedExitMarksFailed(t *testing.T) {
	client := fakeClient(t, `case "$1" in
url) echo "https://abc123.tunnel.test" ;;
run) exit 1 ;;
esac
`)
	m := newTestManager(t, client)

	_, err := m.Setup(8080, "")
	require.NoError(t, err)
	_, err = m.Start(t.Context())
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return m.Status().State == StateFailed
	}, 2*time.Second, 10*time.Millisecond)
	assert.NotEmpty(t, m.Status().LastError)
}
