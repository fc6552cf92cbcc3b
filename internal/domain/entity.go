// Package domain contains core business entities and interfaces.
// This is the innermost layer in Clean Architecture - no external dependencies.
package domain

import "time"

// LifecyclePhase is the host application's foreground status.
type LifecyclePhase string

const (
	PhaseActive     LifecyclePhase = "active"
	PhaseInactive   LifecyclePhase = "inactive"
	PhaseTerminated LifecyclePhase = "terminated"
)

// CaptureStatus is the last reading delivered by the capture observer.
type CaptureStatus string

const (
	CaptureUnknown      CaptureStatus = "unknown"
	CaptureNotCapturing CaptureStatus = "not_capturing"
	CaptureCapturing    CaptureStatus = "capturing"
)

// CaptureStatusFromBool maps an observer reading to a CaptureStatus.
func CaptureStatusFromBool(isCapturing bool) CaptureStatus {
	if isCapturing {
		return CaptureCapturing
	}
	return CaptureNotCapturing
}

// ProtectionState is derived from (LifecyclePhase, CaptureStatus) by a policy.
// It is never stored independently of the inputs that produced it.
type ProtectionState struct {
	ScreenshotBlockEnabled bool `json:"screenshot_block_enabled"`
	BlurEnabled            bool `json:"blur_enabled"`
}

// ObserverHandle is the opaque token for an active capture-status subscription.
// Zero is never a valid handle.
type ObserverHandle uint64

// Action names one of the two protective actions.
type Action string

const (
	ActionScreenshotBlock Action = "screenshot_block"
	ActionBlurOverlay     Action = "blur_overlay"
)

// ActionRequest is a single instruction sent to an ActionSink.
type ActionRequest struct {
	Action  Action `json:"action"`
	Enabled bool   `json:"enabled"`
}

// EventKind identifies a platform-to-core event.
type EventKind string

const (
	EventLaunch        EventKind = "launch"
	EventActivate      EventKind = "activate"
	EventResignActive  EventKind = "resign_active"
	EventTerminate     EventKind = "terminate"
	EventCaptureChange EventKind = "capture_changed"
)

// Event is a lifecycle or capture-status event queued for the controller.
// Capturing is only meaningful for EventCaptureChange.
type Event struct {
	Kind      EventKind
	Capturing bool
	At        time.Time
}

// Transition records what a single event did to the controller.
// Persisted to the encrypted journal for auditing.
type Transition struct {
	ID       int64           `json:"id,omitempty"`
	At       time.Time       `json:"at"`
	Event    EventKind       `json:"event"`
	Phase    LifecyclePhase  `json:"phase"`
	Capture  CaptureStatus   `json:"capture"`
	Requests []ActionRequest `json:"requests"`
	Degraded bool            `json:"degraded"`
}

// StatusSnapshot is the controller state exposed to the status command.
type StatusSnapshot struct {
	PID       int             `json:"pid"`
	Phase     LifecyclePhase  `json:"phase"`
	Capture   CaptureStatus   `json:"capture"`
	State     ProtectionState `json:"state"`
	Degraded  bool            `json:"degraded"`
	Policy    string          `json:"policy"`
	App       string          `json:"app,omitempty"`
	UpdatedAt int64           `json:"updated_at"`
}
