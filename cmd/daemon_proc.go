package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// runtimeState is written next to the pid file so `daemon status` can find
// the API address the running process actually bound.
type runtimeState struct {
	PID       int       `json:"pid"`
	Addr      string    `json:"addr"`
	StartedAt time.Time `json:"started_at"`
	DBPath    string    `json:"db_path"`
}

// pidFile owns the daemon's pid file and its companion state file.
type pidFile struct {
	path string
}

func newPIDFile(path string) pidFile { return pidFile{path: path} }

func (p pidFile) statePath() string { return p.path + ".json" }

func (p pidFile) pid() (int, error) {
	//nolint:gosec // pid path is configured by the local user
	data, err := os.ReadFile(p.path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("invalid pid in %s", p.path)
	}
	return pid, nil
}

func (p pidFile) state() (runtimeState, error) {
	var st runtimeState
	//nolint:gosec // state path is derived from the pid path
	data, err := os.ReadFile(p.statePath())
	if err != nil {
		return st, err
	}
	err = json.Unmarshal(data, &st)
	return st, err
}

// claim fails when another live daemon holds the pid file. A stale file is
// removed.
func (p pidFile) claim() error {
	pid, err := p.pid()
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return err
	case processAlive(pid):
		return fmt.Errorf("daemon already running (pid %d)", pid)
	default:
		p.clear()
	}
	if err := os.MkdirAll(filepath.Dir(p.path), 0o750); err != nil {
		return fmt.Errorf("create daemon directory: %w", err)
	}
	return nil
}

func (p pidFile) write(st runtimeState) error {
	if err := os.WriteFile(p.path, []byte(strconv.Itoa(st.PID)+"\n"), 0o600); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	// The state file is advisory; status falls back to the configured address.
	_ = os.WriteFile(p.statePath(), append(data, '\n'), 0o600)
	return nil
}

func (p pidFile) clear() {
	_ = os.Remove(p.path)
	_ = os.Remove(p.statePath())
}

func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	return err == nil || errors.Is(err, syscall.EPERM)
}

// withoutFlag drops a boolean flag (and its --flag=value form) from args.
func withoutFlag(args []string, flag string) []string {
	out := make([]string, 0, len(args))
	for _, a := range args {
		if a == flag || strings.HasPrefix(a, flag+"=") {
			continue
		}
		out = append(out, a)
	}
	return out
}
