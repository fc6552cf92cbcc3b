package policy

import "github.com/eliteGoblin/focusd/screen_guard/internal/domain"

// DefaultPolicy blocks screenshots while active and blurs only when a live
// recording is reported. An unknown capture status counts as not capturing.
type DefaultPolicy struct{}

// NewDefaultPolicy creates the default protection policy.
func NewDefaultPolicy() *DefaultPolicy {
	return &DefaultPolicy{}
}

func (p *DefaultPolicy) ID() string {
	return DefaultPolicyID
}

func (p *DefaultPolicy) Name() string {
	return "Default"
}

func (p *DefaultPolicy) Description() string {
	return "active: block screenshots, blur only while recording; inactive: blur"
}

// Derive implements the protection table.
//
//	Active     + NotCapturing/Unknown -> block, no blur
//	Active     + Capturing            -> block, blur
//	Inactive   + any                  -> no block, blur
//	Terminated + any                  -> nothing
func (p *DefaultPolicy) Derive(phase domain.LifecyclePhase, capture domain.CaptureStatus) domain.ProtectionState {
	switch phase {
	case domain.PhaseActive:
		return domain.ProtectionState{
			ScreenshotBlockEnabled: true,
			BlurEnabled:            capture == domain.CaptureCapturing,
		}
	case domain.PhaseInactive:
		return inactiveState
	default:
		return terminatedState
	}
}

var _ ProtectionPolicy = (*DefaultPolicy)(nil)
