package infra

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/screen_guard/internal/domain"
)

// DefaultRecorderPatterns are process names of common screen recorders.
// Matched case-insensitively as substrings by ProcessManager.FindByName.
var DefaultRecorderPatterns = []string{
	"screencapture",
	"obs",
	"QuickTime Player",
	"ffmpeg",
	"simplescreenrecorder",
	"kazam",
	"wf-recorder",
	"gpu-screen-recorder",
}

// ProcessObserverConfig holds recorder scan configuration.
type ProcessObserverConfig struct {
	Patterns     []string
	PollInterval time.Duration
}

// DefaultProcessObserverConfig returns the default scan configuration.
func DefaultProcessObserverConfig() ProcessObserverConfig {
	return ProcessObserverConfig{
		Patterns:     append([]string(nil), DefaultRecorderPatterns...),
		PollInterval: 2 * time.Second,
	}
}

// ProcessCaptureObserver implements domain.CaptureObserver by polling the
// process table for known screen recorders.
type ProcessCaptureObserver struct {
	pm       domain.ProcessManager
	interval time.Duration
	logger   *zap.Logger

	mu       sync.Mutex
	patterns []string
	subs     map[domain.ObserverHandle]*pollSubscription
	next     domain.ObserverHandle
}

type pollSubscription struct {
	callback func(bool)
	refresh  chan struct{}
	stop     chan struct{}
}

// NewProcessCaptureObserver creates a recorder-process observer.
func NewProcessCaptureObserver(pm domain.ProcessManager, cfg ProcessObserverConfig, logger *zap.Logger) *ProcessCaptureObserver {
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = DefaultProcessObserverConfig().PollInterval
	}
	return &ProcessCaptureObserver{
		pm:       pm,
		interval: interval,
		logger:   logger,
		patterns: append([]string(nil), cfg.Patterns...),
		subs:     make(map[domain.ObserverHandle]*pollSubscription),
	}
}

// Subscribe verifies the process table is readable and starts polling.
// The first reading is always delivered; later ones only on change.
func (o *ProcessCaptureObserver) Subscribe(callback func(bool)) (domain.ObserverHandle, error) {
	if _, _, err := o.scan(); err != nil {
		return 0, fmt.Errorf("%w: process table: %v", domain.ErrSubscriptionUnavailable, err)
	}

	sub := &pollSubscription{
		callback: callback,
		refresh:  make(chan struct{}, 1),
		stop:     make(chan struct{}),
	}

	o.mu.Lock()
	o.next++
	handle := o.next
	o.subs[handle] = sub
	o.mu.Unlock()

	go o.poll(sub)
	return handle, nil
}

// Unsubscribe stops polling for the handle. A reading already in flight may
// still be delivered once.
func (o *ProcessCaptureObserver) Unsubscribe(handle domain.ObserverHandle) error {
	o.mu.Lock()
	sub, ok := o.subs[handle]
	delete(o.subs, handle)
	o.mu.Unlock()

	if !ok {
		return fmt.Errorf("unknown observer handle %d", handle)
	}
	close(sub.stop)
	return nil
}

// RequestRefresh re-delivers the current reading for the handle.
func (o *ProcessCaptureObserver) RequestRefresh(handle domain.ObserverHandle) {
	o.mu.Lock()
	sub, ok := o.subs[handle]
	o.mu.Unlock()
	if !ok {
		return
	}
	select {
	case sub.refresh <- struct{}{}:
	default: // a refresh is already pending
	}
}

// SetPatterns replaces the recorder patterns (config hot reload).
func (o *ProcessCaptureObserver) SetPatterns(patterns []string) {
	o.mu.Lock()
	o.patterns = append([]string(nil), patterns...)
	o.mu.Unlock()
	o.logger.Info("recorder patterns updated", zap.Strings("patterns", patterns))
}

// Patterns returns a copy of the current recorder patterns.
func (o *ProcessCaptureObserver) Patterns() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.patterns...)
}

// poll runs until the subscription is stopped. Nothing is delivered until a
// scan succeeds: a failed scan must not read as "not capturing".
func (o *ProcessCaptureObserver) poll(sub *pollSubscription) {
	ticker := time.NewTicker(o.interval)
	defer ticker.Stop()

	last, known := false, false
	if capturing, _, err := o.scan(); err != nil {
		o.logger.Warn("initial recorder scan failed", zap.Error(err))
	} else {
		last, known = capturing, true
		if !o.deliver(sub, last) {
			return
		}
	}

	for {
		select {
		case <-sub.stop:
			return

		case <-ticker.C:
			capturing, match, err := o.scan()
			if err != nil {
				o.logger.Warn("recorder scan failed", zap.Error(err))
				continue
			}
			if known && capturing == last {
				continue
			}
			last, known = capturing, true
			o.logger.Info("capture status changed",
				zap.Bool("capturing", capturing),
				zap.String("recorder", match))
			if !o.deliver(sub, capturing) {
				return
			}

		case <-sub.refresh:
			capturing, _, err := o.scan()
			if err != nil {
				o.logger.Warn("recorder scan failed", zap.Error(err))
				if !known {
					continue
				}
				capturing = last
			}
			last, known = capturing, true
			if !o.deliver(sub, capturing) {
				return
			}
		}
	}
}

// deliver invokes the callback unless the subscription was stopped.
func (o *ProcessCaptureObserver) deliver(sub *pollSubscription, capturing bool) bool {
	select {
	case <-sub.stop:
		return false
	default:
	}
	sub.callback(capturing)
	return true
}

// scan reports whether any recorder pattern matches a running process other
// than ourselves. It returns the first matching pattern.
func (o *ProcessCaptureObserver) scan() (bool, string, error) {
	patterns := o.Patterns()
	self := o.pm.GetCurrentPID()

	for _, pattern := range patterns {
		pids, err := o.pm.FindByName(pattern)
		if err != nil {
			return false, "", err
		}
		for _, pid := range pids {
			if pid != self {
				return true, pattern, nil
			}
		}
	}
	return false, "", nil
}

// Ensure ProcessCaptureObserver implements the observer interfaces.
var _ domain.CaptureObserver = (*ProcessCaptureObserver)(nil)
var _ domain.CaptureRefresher = (*ProcessCaptureObserver)(nil)
