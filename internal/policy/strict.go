package policy

import "github.com/eliteGoblin/focusd/screen_guard/internal/domain"

// StrictResumePolicy keeps the blur up after activation until the capture
// observer confirms that no recording is running. Use it when the brief
// unblurred window at resume is not acceptable.
type StrictResumePolicy struct{}

// NewStrictResumePolicy creates the strict-resume policy.
func NewStrictResumePolicy() *StrictResumePolicy {
	return &StrictResumePolicy{}
}

func (p *StrictResumePolicy) ID() string {
	return "strict-resume"
}

func (p *StrictResumePolicy) Name() string {
	return "Strict resume"
}

func (p *StrictResumePolicy) Description() string {
	return "like default, but an unknown capture status while active keeps the blur"
}

func (p *StrictResumePolicy) Derive(phase domain.LifecyclePhase, capture domain.CaptureStatus) domain.ProtectionState {
	switch phase {
	case domain.PhaseActive:
		return domain.ProtectionState{
			ScreenshotBlockEnabled: true,
			BlurEnabled:            capture != domain.CaptureNotCapturing,
		}
	case domain.PhaseInactive:
		return inactiveState
	default:
		return terminatedState
	}
}

var _ ProtectionPolicy = (*StrictResumePolicy)(nil)
