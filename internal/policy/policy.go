// Package policy implements the Strategy pattern for capture-protection rules.
// Each policy maps (LifecyclePhase, CaptureStatus) to the protective actions
// that should be active.
package policy

import (
	"github.com/eliteGoblin/focusd/screen_guard/internal/domain"
)

// DefaultPolicyID is used when no policy is configured.
const DefaultPolicyID = "default"

// ProtectionPolicy derives the protection state for a controller input.
// Derive must be a pure function: same inputs, same output.
type ProtectionPolicy interface {
	// ID returns unique identifier (e.g., "default", "strict-resume").
	ID() string

	// Name returns human-readable name for display.
	Name() string

	// Description explains how the policy treats each phase.
	Description() string

	// Derive computes which actions should be active.
	Derive(phase domain.LifecyclePhase, capture domain.CaptureStatus) domain.ProtectionState
}

// inactiveState applies to every policy: the app-switcher snapshot is taken
// with no further hook, so blur is forced and blocking is meaningless.
var inactiveState = domain.ProtectionState{ScreenshotBlockEnabled: false, BlurEnabled: true}

// terminatedState releases both actions.
var terminatedState = domain.ProtectionState{}
