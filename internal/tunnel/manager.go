// ABOUTME: Manager for an external tunnel client binary exposing a local port.
// ABOUTME: Tracks Idle/Starting/Running/Stopped/Failed state and the public URL.

package tunnel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"sync"
)

// ErrNotSetup is returned by Start before a successful Setup.
var ErrNotSetup = errors.New("tunnel not set up")

// ErrNotRunning is returned by Stop when no tunnel process is running.
var ErrNotRunning = errors.New("tunnel not running")

// State is the lifecycle phase of the tunnel process.
type State string

const (
	StateIdle     State = "idle"
	StateStarting State = "starting"
	StateRunning  State = "running"
	StateStopped  State = "stopped"
	StateFailed   State = "failed"
)

// Status is a snapshot of the tunnel's state.
type Status struct {
	State     State
	PublicURL string
	LastError string
}

// Manager runs an external tunnel client that exposes a local port under a
// public URL. The client binary must support two commands: "url", which
// prints the public URL for a port and exits, and "run", which holds the
// tunnel open until terminated. Everything else about the client is opaque.
type Manager struct {
	binary string
	logger *slog.Logger

	mu        sync.Mutex
	state     State
	localPort int
	domain    string
	publicURL string
	lastErr   string
	cmd       *exec.Cmd
	done      chan struct{}
	stopping  bool
}

// NewManager creates a Manager that shells out to the given client binary.
func NewManager(binary string, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		binary: binary,
		logger: logger.With("component", "tunnel"),
		state:  StateIdle,
	}
}

// Setup resolves the public URL for localPort and records the tunnel
// configuration. With a custom domain the URL is fixed; otherwise the client
// binary allocates one. Setup does not open the tunnel.
func (m *Manager) Setup(localPort int, customDomain string) (string, error) {
	if localPort < 1 || localPort > 65535 {
		return "", fmt.Errorf("invalid local port %d", localPort)
	}
	if _, err := exec.LookPath(m.binary); err != nil {
		return "", m.fail(fmt.Errorf("tunnel client %q not found: %w", m.binary, err))
	}

	var publicURL string
	if customDomain != "" {
		publicURL = "https://" + customDomain
	} else {
		out, err := exec.Command(m.binary, "url", "--port", strconv.Itoa(localPort)).Output()
		if err != nil {
			return "", m.fail(fmt.Errorf("allocate public url: %w", err))
		}
		publicURL = strings.TrimSpace(string(out))
		if publicURL == "" {
			return "", m.fail(fmt.Errorf("tunnel client returned no url"))
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.localPort = localPort
	m.domain = customDomain
	m.publicURL = publicURL
	m.lastErr = ""
	m.state = StateIdle

	m.logger.Info("tunnel configured", "public_url", publicURL, "local_port", localPort)
	return publicURL, nil
}

// Start launches the tunnel process and returns its pid. The process is
// watched in the background; an exit that was not requested via Stop marks
// the tunnel failed.
func (m *Manager) Start(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.publicURL == "" {
		return 0, ErrNotSetup
	}
	if m.state == StateRunning || m.state == StateStarting {
		return m.cmd.Process.Pid, nil
	}

	m.state = StateStarting
	args := []string{"run", "--port", strconv.Itoa(m.localPort)}
	if m.domain != "" {
		args = append(args, "--domain", m.domain)
	}

	cmd := exec.CommandContext(ctx, m.binary, args...)
	if err := cmd.Start(); err != nil {
		m.state = StateFailed
		m.lastErr = err.Error()
		return 0, fmt.Errorf("start tunnel client: %w", err)
	}

	m.cmd = cmd
	m.stopping = false
	m.state = StateRunning
	m.done = make(chan struct{})

	pid := cmd.Process.Pid
	m.logger.Info("tunnel started", "pid", pid, "public_url", m.publicURL)

	go m.watch(cmd, m.done)
	return pid, nil
}

// Stop terminates the tunnel process and waits for it to exit.
func (m *Manager) Stop() error {
	m.mu.Lock()
	if m.state != StateRunning {
		m.mu.Unlock()
		return ErrNotRunning
	}
	m.stopping = true
	cmd, done := m.cmd, m.done
	m.mu.Unlock()

	if err := cmd.Process.Kill(); err != nil {
		return fmt.Errorf("kill tunnel client: %w", err)
	}
	<-done

	m.logger.Info("tunnel stopped")
	return nil
}

// Status returns a snapshot of the tunnel's state.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Status{State: m.state, PublicURL: m.publicURL, LastError: m.lastErr}
}

// watch reaps the tunnel process and classifies its exit.
func (m *Manager) watch(cmd *exec.Cmd, done chan struct{}) {
	err := cmd.Wait()
	defer close(done)

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopping {
		m.state = StateStopped
		return
	}
	m.state = StateFailed
	if err != nil {
		m.lastErr = err.Error()
	} else {
		m.lastErr = "tunnel client exited"
	}
	m.logger.Error("tunnel exited unexpectedly", "error", m.lastErr)
}

func (m *Manager) fail(err error) error {
	m.mu.Lock()
	m.state = StateFailed
	m.lastErr = err.Error()
	m.mu.Unlock()
	return err
}
