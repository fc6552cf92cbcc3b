package infra

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/eliteGoblin/focusd/screen_guard/internal/domain"
)

// CommandFocusProbe resolves the frontmost application on X11 desktops:
// xdotool returns the active window's PID, gopsutil resolves its name.
type CommandFocusProbe struct {
	cmdRunner CommandRunner
	pm        domain.ProcessManager
}

// NewCommandFocusProbe creates an xdotool-backed focus probe.
func NewCommandFocusProbe(cmdRunner CommandRunner, pm domain.ProcessManager) *CommandFocusProbe {
	return &CommandFocusProbe{cmdRunner: cmdRunner, pm: pm}
}

// FrontmostApp returns the process name owning the active window.
func (p *CommandFocusProbe) FrontmostApp() (string, error) {
	out, err := p.cmdRunner.Output("xdotool", "getactivewindow", "getwindowpid")
	if err != nil {
		return "", fmt.Errorf("xdotool: %w", err)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(out)))
	if err != nil {
		return "", fmt.Errorf("unexpected xdotool output %q: %w", strings.TrimSpace(string(out)), err)
	}

	name, err := p.pm.NameOf(pid)
	if err != nil {
		return "", fmt.Errorf("resolve pid %d: %w", pid, err)
	}
	return name, nil
}

// MatchesApp reports whether a frontmost name refers to the protected app.
// Matching is case-insensitive on substrings, like process lookups.
func MatchesApp(frontmost, app string) bool {
	if frontmost == "" || app == "" {
		return false
	}
	return strings.Contains(strings.ToLower(frontmost), strings.ToLower(app))
}

// Ensure CommandFocusProbe implements domain.FocusProbe.
var _ domain.FocusProbe = (*CommandFocusProbe)(nil)
