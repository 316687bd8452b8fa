package server

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"syscall"
)

// PIDFile guards against running two daemons over the same data directory.
type PIDFile struct {
	path string
}

// NewPIDFile creates a PID file manager rooted at baseDir.
func NewPIDFile(baseDir string) (*PIDFile, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return &PIDFile{path: filepath.Join(baseDir, "clipvault.pid")}, nil
}

// Acquire claims the PID file for the current process. It fails when another
// live process holds it; a stale file from a dead process is replaced.
func (p *PIDFile) Acquire() error {
	pid, err := p.read()
	if err != nil {
		return err
	}
	if pid != 0 && pid != os.Getpid() && isRunning(pid) {
		return fmt.Errorf("another instance is already running (pid %d)", pid)
	}
	return os.WriteFile(p.path, []byte(strconv.Itoa(os.Getpid())), 0644)
}

// Release removes the PID file.
func (p *PIDFile) Release() error {
	if err := os.Remove(p.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove PID file: %w", err)
	}
	return nil
}

// RunningPID returns the PID of a live daemon, or 0 when none is running.
func (p *PIDFile) RunningPID() (int, error) {
	pid, err := p.read()
	if err != nil {
		return 0, err
	}
	if pid == 0 || !isRunning(pid) {
		return 0, nil
	}
	return pid, nil
}

func (p *PIDFile) read() (int, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}

	pid, err := strconv.Atoi(string(data))
	if err != nil {
		return 0, fmt.Errorf("invalid PID in file: %w", err)
	}
	return pid, nil
}

// isRunning checks whether a process with the given PID exists. FindProcess
// always succeeds on Unix, so probe with signal 0.
func isRunning(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}
