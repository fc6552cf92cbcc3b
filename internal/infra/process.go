// Package infra implements infrastructure concerns (processes, observers, sinks, storage).
package infra

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/eliteGoblin/focusd/screen_guard/internal/domain"
)

// commLimit is the Linux task name length; longer names are truncated.
const commLimit = 15

// ProcessManagerImpl implements domain.ProcessManager using gopsutil.
type ProcessManagerImpl struct{}

// NewProcessManager creates a new process manager.
func NewProcessManager() domain.ProcessManager {
	return &ProcessManagerImpl{}
}

// FindByName returns PIDs of live processes whose name contains the pattern
// (case-insensitive). Zombies are skipped: a recorder that exited but was not
// yet reaped is not recording.
func (pm *ProcessManagerImpl) FindByName(pattern string) ([]int, error) {
	procs, err := process.Processes()
	if err != nil {
		return nil, err
	}

	var found []int
	patternLower := strings.ToLower(pattern)

	for _, p := range procs {
		name, err := processName(p)
		if err != nil {
			continue // exited during the scan
		}
		if !strings.Contains(strings.ToLower(name), patternLower) {
			continue
		}
		if isZombie(p) {
			continue
		}
		found = append(found, int(p.Pid))
	}

	return found, nil
}

// NameOf returns the process name for a PID.
func (pm *ProcessManagerImpl) NameOf(pid int) (string, error) {
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return "", err
	}
	return processName(p)
}

// IsRunning checks if a PID exists.
func (pm *ProcessManagerImpl) IsRunning(pid int) bool {
	if pid <= 0 {
		return false
	}
	exists, err := process.PidExists(int32(pid))
	return err == nil && exists
}

// GetCurrentPID returns the current process PID.
func (pm *ProcessManagerImpl) GetCurrentPID() int {
	return os.Getpid()
}

// processName returns the task name, falling back to the executable's base
// name when the task name looks truncated.
func processName(p *process.Process) (string, error) {
	name, err := p.Name()
	if err != nil {
		return "", err
	}
	if len(name) < commLimit {
		return name, nil
	}
	if exe, err := p.Exe(); err == nil && exe != "" {
		if base := filepath.Base(exe); strings.HasPrefix(base, name) {
			return base, nil
		}
	}
	return name, nil
}

func isZombie(p *process.Process) bool {
	status, err := p.Status()
	if err != nil {
		return false
	}
	for _, s := range status {
		if s == process.Zombie {
			return true
		}
	}
	return false
}

// Ensure ProcessManagerImpl implements domain.ProcessManager.
var _ domain.ProcessManager = (*ProcessManagerImpl)(nil)
