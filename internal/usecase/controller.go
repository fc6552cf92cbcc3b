// Package usecase contains application business logic.
package usecase

import (
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/screen_guard/internal/domain"
	"github.com/eliteGoblin/focusd/screen_guard/internal/policy"
)

// ControllerImpl implements domain.ProtectionController.
//
// Events are expected on a single execution context; mu only guarantees that
// a caller never observes a half-updated state and that the observer handle
// is released once.
type ControllerImpl struct {
	mu       sync.Mutex
	policy   policy.ProtectionPolicy
	observer domain.CaptureObserver
	sink     domain.ActionSink
	journal  domain.TransitionJournal
	logger   *zap.Logger
	route    func(isCapturing bool)

	phase    domain.LifecyclePhase
	capture  domain.CaptureStatus
	handle   domain.ObserverHandle
	held     bool
	degraded bool

	state   domain.ProtectionState // last emitted
	emitted bool                   // whether state has been sent at least once
	updated time.Time
}

// NewController creates a protection controller in its initial state
// (Inactive, Unknown, no subscription).
func NewController(
	observer domain.CaptureObserver,
	sink domain.ActionSink,
	p policy.ProtectionPolicy,
	logger *zap.Logger,
) *ControllerImpl {
	return &ControllerImpl{
		policy:   p,
		observer: observer,
		sink:     sink,
		journal:  nil, // Set via NewControllerWithJournal
		logger:   logger,
		phase:    domain.PhaseInactive,
		capture:  domain.CaptureUnknown,
		state:    p.Derive(domain.PhaseInactive, domain.CaptureUnknown),
	}
}

// NewControllerWithJournal creates a controller that records every transition.
func NewControllerWithJournal(
	observer domain.CaptureObserver,
	sink domain.ActionSink,
	p policy.ProtectionPolicy,
	journal domain.TransitionJournal,
	logger *zap.Logger,
) *ControllerImpl {
	c := NewController(observer, sink, p, logger)
	c.journal = journal
	return c
}

// RouteCaptureEvents sets where observer readings are sent. The daemon uses
// this to queue readings onto its event loop instead of calling
// OnCaptureStatusChanged from the observer's goroutine.
// Must be called before OnLaunch.
func (c *ControllerImpl) RouteCaptureEvents(route func(isCapturing bool)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.route = route
}

// OnLaunch establishes the capture subscription if not already held.
// Subscription failure is not returned: the controller enters degraded mode.
func (c *ControllerImpl) OnLaunch() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.phase == domain.PhaseTerminated {
		return domain.ErrAlreadyTerminated
	}
	if c.held {
		return nil
	}

	handle, err := c.observer.Subscribe(c.captureCallback())
	if err != nil {
		c.degraded = true
		c.capture = domain.CaptureUnknown
		c.logger.Warn("capture status unavailable, running in degraded mode",
			zap.String("policy", c.policy.ID()),
			zap.Error(err))
		c.record(domain.EventLaunch, nil)
		return nil
	}

	c.handle = handle
	c.held = true
	c.degraded = false
	c.logger.Info("capture observer subscribed", zap.Uint64("handle", uint64(handle)))
	c.record(domain.EventLaunch, nil)
	return nil
}

// OnActivate moves to Active. The capture status is treated as unknown until
// the observer delivers a fresh reading.
// The refresh is requested after mu is released so a slow observer cannot
// hold up other callers.
func (c *ControllerImpl) OnActivate() error {
	c.mu.Lock()
	if c.phase == domain.PhaseTerminated {
		c.mu.Unlock()
		return domain.ErrAlreadyTerminated
	}

	c.phase = domain.PhaseActive
	c.capture = domain.CaptureUnknown
	c.recompute(domain.EventActivate)

	held, handle := c.held, c.handle
	c.mu.Unlock()

	if held {
		if r, ok := c.observer.(domain.CaptureRefresher); ok {
			r.RequestRefresh(handle)
		}
	}
	return nil
}

// OnResignActive moves to Inactive.
func (c *ControllerImpl) OnResignActive() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.phase == domain.PhaseTerminated {
		return domain.ErrAlreadyTerminated
	}

	c.phase = domain.PhaseInactive
	c.recompute(domain.EventResignActive)
	return nil
}

// OnTerminate moves to Terminated and releases the observer handle.
// Terminated is absorbing: every later call returns ErrAlreadyTerminated.
func (c *ControllerImpl) OnTerminate() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.phase == domain.PhaseTerminated {
		return domain.ErrAlreadyTerminated
	}

	c.phase = domain.PhaseTerminated
	defer c.release()

	c.recompute(domain.EventTerminate)
	c.logger.Info("protection controller terminated")
	return nil
}

// OnCaptureStatusChanged records a reading from the capture observer.
func (c *ControllerImpl) OnCaptureStatusChanged(isCapturing bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.phase == domain.PhaseTerminated {
		return domain.ErrAlreadyTerminated
	}
	if c.degraded || !c.held {
		c.logger.Debug("capture reading ignored without subscription",
			zap.Bool("capturing", isCapturing))
		return nil
	}

	c.capture = domain.CaptureStatusFromBool(isCapturing)

	// Inactive's forced blur dominates; the reading is kept for the record.
	if c.phase == domain.PhaseInactive {
		c.record(domain.EventCaptureChange, nil)
		return nil
	}
	c.recompute(domain.EventCaptureChange)
	return nil
}

// State returns the last emitted protection state.
func (c *ControllerImpl) State() domain.ProtectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Phase returns the current lifecycle phase.
func (c *ControllerImpl) Phase() domain.LifecyclePhase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Capture returns the current capture status.
func (c *ControllerImpl) Capture() domain.CaptureStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.capture
}

// Degraded reports whether the controller runs without capture readings.
func (c *ControllerImpl) Degraded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.degraded
}

// Snapshot returns the controller state for status reporting.
func (c *ControllerImpl) Snapshot() domain.StatusSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	updated := c.updated
	if updated.IsZero() {
		updated = time.Now()
	}
	return domain.StatusSnapshot{
		PID:       os.Getpid(),
		Phase:     c.phase,
		Capture:   c.capture,
		State:     c.state,
		Degraded:  c.degraded,
		Policy:    c.policy.ID(),
		UpdatedAt: updated.Unix(),
	}
}

// captureCallback returns the function handed to the observer.
// Callers hold mu.
func (c *ControllerImpl) captureCallback() func(bool) {
	if c.route != nil {
		return c.route
	}
	return func(isCapturing bool) {
		if err := c.OnCaptureStatusChanged(isCapturing); err != nil {
			c.logger.Debug("capture reading dropped", zap.Error(err))
		}
	}
}

// recompute derives the new state and emits only the fields that changed.
// Callers hold mu.
func (c *ControllerImpl) recompute(kind domain.EventKind) {
	next := c.policy.Derive(c.phase, c.capture)

	var requests []domain.ActionRequest
	if c.emitted || c.phase != domain.PhaseTerminated {
		if !c.emitted || next.ScreenshotBlockEnabled != c.state.ScreenshotBlockEnabled {
			requests = append(requests, domain.ActionRequest{
				Action:  domain.ActionScreenshotBlock,
				Enabled: next.ScreenshotBlockEnabled,
			})
		}
		if !c.emitted || next.BlurEnabled != c.state.BlurEnabled {
			requests = append(requests, domain.ActionRequest{
				Action:  domain.ActionBlurOverlay,
				Enabled: next.BlurEnabled,
			})
		}
		c.emitted = true
	}
	c.state = next
	c.updated = time.Now()

	for _, r := range requests {
		switch r.Action {
		case domain.ActionScreenshotBlock:
			c.sink.SetScreenshotBlocking(r.Enabled)
		case domain.ActionBlurOverlay:
			c.sink.SetBlurOverlay(r.Enabled)
		}
	}

	c.record(kind, requests)
}

// record logs the transition and appends it to the journal, if any.
// Callers hold mu.
func (c *ControllerImpl) record(kind domain.EventKind, requests []domain.ActionRequest) {
	c.logger.Debug("transition",
		zap.String("event", string(kind)),
		zap.String("phase", string(c.phase)),
		zap.String("capture", string(c.capture)),
		zap.Bool("block", c.state.ScreenshotBlockEnabled),
		zap.Bool("blur", c.state.BlurEnabled),
		zap.Int("requests", len(requests)))

	if c.journal == nil {
		return
	}
	err := c.journal.Append(domain.Transition{
		At:       time.Now(),
		Event:    kind,
		Phase:    c.phase,
		Capture:  c.capture,
		Requests: requests,
		Degraded: c.degraded,
	})
	if err != nil {
		c.logger.Warn("failed to journal transition", zap.Error(err))
	}
}

// release unsubscribes the observer exactly once.
// Callers hold mu.
func (c *ControllerImpl) release() {
	if !c.held {
		return
	}
	handle := c.handle
	c.held = false
	c.handle = 0

	if err := c.observer.Unsubscribe(handle); err != nil {
		c.logger.Warn("failed to release capture observer",
			zap.Uint64("handle", uint64(handle)),
			zap.Error(err))
		return
	}
	c.logger.Info("capture observer released", zap.Uint64("handle", uint64(handle)))
}

// Ensure ControllerImpl implements domain.ProtectionController.
var _ domain.ProtectionController = (*ControllerImpl)(nil)
