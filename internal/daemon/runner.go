// Package daemon runs the protection controller as a long-lived process.
package daemon

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/screen_guard/internal/domain"
)

// Controller is the controller surface the runner drives.
type Controller interface {
	domain.ProtectionController

	// RouteCaptureEvents redirects observer readings; called before OnLaunch.
	RouteCaptureEvents(route func(isCapturing bool))
}

// PatternSetter accepts recorder patterns from a config reload.
type PatternSetter interface {
	SetPatterns(patterns []string)
}

// RunnerConfig holds runner configuration.
type RunnerConfig struct {
	App               string        // Protected app name, for status output
	FocusPollInterval time.Duration // How often the frontmost app is sampled
	EventBuffer       int           // Queued events before Deliver blocks
}

// DefaultRunnerConfig returns default runner configuration.
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		FocusPollInterval: 500 * time.Millisecond,
		EventBuffer:       64,
	}
}

// Runner is the single execution context of the controller.
// Observer callbacks, focus edges, and config reloads are all funneled
// through one goroutine, so controller handlers never run concurrently.
type Runner struct {
	config     RunnerConfig
	controller Controller
	tracker    *FocusTracker
	status     domain.StatusStore
	patterns   PatternSetter
	logger     *zap.Logger

	events   chan domain.Event
	reloads  chan []string
	stopped  chan struct{}
	stopOnce sync.Once
}

// NewRunner creates a runner. tracker, status, and patterns may be nil:
// without a tracker the app is treated as frontmost for the whole run.
func NewRunner(
	config RunnerConfig,
	controller Controller,
	tracker *FocusTracker,
	status domain.StatusStore,
	patterns PatternSetter,
	logger *zap.Logger,
) *Runner {
	if config.FocusPollInterval <= 0 {
		config.FocusPollInterval = DefaultRunnerConfig().FocusPollInterval
	}
	if config.EventBuffer <= 0 {
		config.EventBuffer = DefaultRunnerConfig().EventBuffer
	}
	return &Runner{
		config:     config,
		controller: controller,
		tracker:    tracker,
		status:     status,
		patterns:   patterns,
		logger:     logger,
		events:     make(chan domain.Event, config.EventBuffer),
		reloads:    make(chan []string, 1),
		stopped:    make(chan struct{}),
	}
}

// Deliver queues an event for the loop. It returns false once the runner
// has stopped; it never blocks after that.
func (r *Runner) Deliver(ev domain.Event) bool {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	select {
	case <-r.stopped:
		return false
	default:
	}
	select {
	case r.events <- ev:
		return true
	case <-r.stopped:
		return false
	}
}

// UpdatePatterns queues new recorder patterns. Only the latest pending
// update is kept.
func (r *Runner) UpdatePatterns(patterns []string) {
	p := append([]string(nil), patterns...)
	for {
		select {
		case r.reloads <- p:
			return
		default:
		}
		select {
		case <-r.reloads: // drop the stale update
		default:
		}
	}
}

// Done is closed when Run has returned.
func (r *Runner) Done() <-chan struct{} {
	return r.stopped
}

// Run launches the controller and processes events until the context is
// canceled or a terminate event arrives. The controller is always
// terminated before Run returns.
func (r *Runner) Run(ctx context.Context) error {
	r.controller.RouteCaptureEvents(func(isCapturing bool) {
		r.Deliver(domain.Event{Kind: domain.EventCaptureChange, Capturing: isCapturing})
	})
	defer r.stop()
	defer r.ensureTerminated()

	if err := r.dispatch(domain.Event{Kind: domain.EventLaunch, At: time.Now()}); err != nil {
		return err
	}

	r.logger.Info("screenguard runner started",
		zap.String("app", r.config.App),
		zap.Duration("focus_poll_interval", r.config.FocusPollInterval))

	var focusC <-chan time.Time
	if r.tracker != nil {
		ticker := time.NewTicker(r.config.FocusPollInterval)
		defer ticker.Stop()
		focusC = ticker.C
		r.pollFocus()
	} else {
		r.dispatch(domain.Event{Kind: domain.EventActivate, At: time.Now()})
	}

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("screenguard runner stopping")
			r.dispatch(domain.Event{Kind: domain.EventTerminate, At: time.Now()})
			return nil

		case ev := <-r.events:
			r.dispatch(ev)
			if ev.Kind == domain.EventTerminate {
				return nil
			}

		case <-focusC:
			r.pollFocus()

		case patterns := <-r.reloads:
			if r.patterns != nil {
				r.patterns.SetPatterns(patterns)
			}
		}
	}
}

func (r *Runner) pollFocus() {
	if kind, ok := r.tracker.Poll(); ok {
		r.dispatch(domain.Event{Kind: kind, At: time.Now()})
	}
}

// dispatch applies one event to the controller and publishes the result.
func (r *Runner) dispatch(ev domain.Event) error {
	var err error
	switch ev.Kind {
	case domain.EventLaunch:
		err = r.controller.OnLaunch()
	case domain.EventActivate:
		err = r.controller.OnActivate()
	case domain.EventResignActive:
		err = r.controller.OnResignActive()
	case domain.EventTerminate:
		err = r.controller.OnTerminate()
	case domain.EventCaptureChange:
		err = r.controller.OnCaptureStatusChanged(ev.Capturing)
	default:
		r.logger.Warn("unknown event", zap.String("kind", string(ev.Kind)))
		return nil
	}

	if err != nil {
		if errors.Is(err, domain.ErrAlreadyTerminated) {
			r.logger.Debug("event after terminate ignored", zap.String("kind", string(ev.Kind)))
		} else {
			r.logger.Error("event failed", zap.String("kind", string(ev.Kind)), zap.Error(err))
		}
		return err
	}

	r.publish()
	return nil
}

// publish saves the controller snapshot for the status command.
func (r *Runner) publish() {
	if r.status == nil {
		return
	}
	snapshot := r.controller.Snapshot()
	snapshot.App = r.config.App
	if err := r.status.Save(snapshot); err != nil {
		r.logger.Warn("failed to save status", zap.Error(err))
	}
}

func (r *Runner) ensureTerminated() {
	if r.controller.Snapshot().Phase == domain.PhaseTerminated {
		return
	}
	r.dispatch(domain.Event{Kind: domain.EventTerminate, At: time.Now()})
}

func (r *Runner) stop() {
	r.stopOnce.Do(func() { close(r.stopped) })
}
