//go:build darwin

package infra

import (
	"github.com/progrium/darwinkit/macos/appkit"

	"github.com/eliteGoblin/focusd/screen_guard/internal/domain"
)

// WorkspaceFocusProbe reads the frontmost application from NSWorkspace.
type WorkspaceFocusProbe struct {
	workspace appkit.Workspace
}

// NewFocusProbe returns the platform focus probe.
func NewFocusProbe(_ CommandRunner, _ domain.ProcessManager) domain.FocusProbe {
	return &WorkspaceFocusProbe{workspace: appkit.Workspace_SharedWorkspace()}
}

// FrontmostApp returns the localized name of the frontmost application,
// or its bundle identifier when the name is empty.
func (p *WorkspaceFocusProbe) FrontmostApp() (string, error) {
	app := p.workspace.FrontmostApplication()
	if app.Ptr() == nil {
		return "", nil
	}
	if name := app.LocalizedName(); name != "" {
		return name, nil
	}
	return app.BundleIdentifier(), nil
}

var _ domain.FocusProbe = (*WorkspaceFocusProbe)(nil)
