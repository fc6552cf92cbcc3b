package daemon

import (
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/screen_guard/internal/domain"
	"github.com/eliteGoblin/focusd/screen_guard/internal/infra"
)

// FocusTracker turns frontmost-app samples into lifecycle edges.
type FocusTracker struct {
	probe  domain.FocusProbe
	app    string
	logger *zap.Logger

	known    bool
	active   bool
	probeErr bool
}

// NewFocusTracker tracks whether app is frontmost.
func NewFocusTracker(probe domain.FocusProbe, app string, logger *zap.Logger) *FocusTracker {
	return &FocusTracker{probe: probe, app: app, logger: logger}
}

// Poll samples the frontmost app. It reports an event only on the first
// sample and on edges. Probe errors keep the previous phase.
func (t *FocusTracker) Poll() (domain.EventKind, bool) {
	name, err := t.probe.FrontmostApp()
	if err != nil {
		if !t.probeErr {
			t.logger.Warn("focus probe failed", zap.Error(err))
			t.probeErr = true
		}
		return "", false
	}
	if t.probeErr {
		t.logger.Info("focus probe recovered")
		t.probeErr = false
	}

	active := infra.MatchesApp(name, t.app)
	if t.known && active == t.active {
		return "", false
	}
	t.known = true
	t.active = active

	t.logger.Debug("focus changed", zap.String("frontmost", name), zap.Bool("active", active))
	if active {
		return domain.EventActivate, true
	}
	return domain.EventResignActive, true
}

// Active reports the last observed focus state.
func (t *FocusTracker) Active() bool {
	return t.active
}
