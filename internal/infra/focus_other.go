//go:build !darwin

package infra

import "github.com/eliteGoblin/focusd/screen_guard/internal/domain"

// NewFocusProbe returns the platform focus probe.
func NewFocusProbe(cmdRunner CommandRunner, pm domain.ProcessManager) domain.FocusProbe {
	return NewCommandFocusProbe(cmdRunner, pm)
}
