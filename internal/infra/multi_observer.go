package infra

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/screen_guard/internal/domain"
)

// MultiCaptureObserver combines several observers: capturing is reported
// while any source reports capturing. Sources that fail to subscribe are
// skipped; Subscribe fails only when every source fails.
type MultiCaptureObserver struct {
	sources []namedObserver
	logger  *zap.Logger

	mu   sync.Mutex
	subs map[domain.ObserverHandle]*multiSubscription
	next domain.ObserverHandle
}

type namedObserver struct {
	name     string
	observer domain.CaptureObserver
}

type multiSubscription struct {
	deliverMu sync.Mutex // orders callbacks across children
	mu        sync.Mutex
	callback  func(bool)
	children  map[int]domain.ObserverHandle
	readings  map[int]bool
	delivered bool
	last      bool
}

// NewMultiCaptureObserver creates an empty combined observer.
func NewMultiCaptureObserver(logger *zap.Logger) *MultiCaptureObserver {
	return &MultiCaptureObserver{
		logger: logger,
		subs:   make(map[domain.ObserverHandle]*multiSubscription),
	}
}

// Add registers a source. Must be called before Subscribe.
func (m *MultiCaptureObserver) Add(name string, observer domain.CaptureObserver) {
	m.sources = append(m.sources, namedObserver{name: name, observer: observer})
}

// Sources returns the registered source names.
func (m *MultiCaptureObserver) Sources() []string {
	names := make([]string, len(m.sources))
	for i, s := range m.sources {
		names[i] = s.name
	}
	return names
}

// Subscribe subscribes every source.
func (m *MultiCaptureObserver) Subscribe(callback func(bool)) (domain.ObserverHandle, error) {
	sub := &multiSubscription{
		callback: callback,
		children: make(map[int]domain.ObserverHandle),
		readings: make(map[int]bool),
	}

	var errs []error
	for i, src := range m.sources {
		idx := i
		handle, err := src.observer.Subscribe(func(capturing bool) {
			m.onReading(sub, idx, capturing)
		})
		if err != nil {
			m.logger.Warn("capture source unavailable",
				zap.String("source", src.name),
				zap.Error(err))
			errs = append(errs, err)
			continue
		}
		sub.mu.Lock()
		sub.children[idx] = handle
		sub.mu.Unlock()
	}

	sub.mu.Lock()
	active := len(sub.children)
	sub.mu.Unlock()
	if active == 0 {
		if len(errs) == 0 {
			return 0, fmt.Errorf("%w: no capture sources configured", domain.ErrSubscriptionUnavailable)
		}
		return 0, fmt.Errorf("%w: all capture sources failed: %v", domain.ErrSubscriptionUnavailable, errors.Join(errs...))
	}

	m.mu.Lock()
	m.next++
	handle := m.next
	m.subs[handle] = sub
	m.mu.Unlock()
	return handle, nil
}

// Unsubscribe releases every child subscription.
func (m *MultiCaptureObserver) Unsubscribe(handle domain.ObserverHandle) error {
	m.mu.Lock()
	sub, ok := m.subs[handle]
	delete(m.subs, handle)
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown observer handle %d", handle)
	}

	sub.mu.Lock()
	children := sub.children
	sub.children = map[int]domain.ObserverHandle{}
	sub.mu.Unlock()

	var errs []error
	for idx, h := range children {
		if err := m.sources[idx].observer.Unsubscribe(h); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", m.sources[idx].name, err))
		}
	}
	return errors.Join(errs...)
}

// RequestRefresh forwards to every source that supports it. The combined
// reading is re-delivered on the next child reading.
func (m *MultiCaptureObserver) RequestRefresh(handle domain.ObserverHandle) {
	m.mu.Lock()
	sub, ok := m.subs[handle]
	m.mu.Unlock()
	if !ok {
		return
	}

	sub.mu.Lock()
	sub.delivered = false
	children := make(map[int]domain.ObserverHandle, len(sub.children))
	for k, v := range sub.children {
		children[k] = v
	}
	sub.mu.Unlock()

	for idx, h := range children {
		if r, ok := m.sources[idx].observer.(domain.CaptureRefresher); ok {
			r.RequestRefresh(h)
		}
	}
}

func (m *MultiCaptureObserver) onReading(sub *multiSubscription, idx int, capturing bool) {
	sub.deliverMu.Lock()
	defer sub.deliverMu.Unlock()

	sub.mu.Lock()
	sub.readings[idx] = capturing
	combined := false
	for _, v := range sub.readings {
		combined = combined || v
	}
	changed := !sub.delivered || combined != sub.last
	sub.delivered = true
	sub.last = combined
	sub.mu.Unlock()

	if changed {
		sub.callback(combined)
	}
}

// Ensure MultiCaptureObserver implements the observer interfaces.
var _ domain.CaptureObserver = (*MultiCaptureObserver)(nil)
var _ domain.CaptureRefresher = (*MultiCaptureObserver)(nil)
