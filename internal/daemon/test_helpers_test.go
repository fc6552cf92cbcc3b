package daemon

import (
	"errors"
	"sync"

	"github.com/eliteGoblin/focusd/screen_guard/internal/domain"
)

// syncObserver is a goroutine-safe CaptureObserver double
type syncObserver struct {
	mu           sync.Mutex
	subscribeErr error
	callback     func(bool)
	unsubscribed int
	refreshed    int
}

func (o *syncObserver) Subscribe(cb func(bool)) (domain.ObserverHandle, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.subscribeErr != nil {
		return 0, o.subscribeErr
	}
	o.callback = cb
	return 1, nil
}

func (o *syncObserver) Unsubscribe(domain.ObserverHandle) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.unsubscribed++
	return nil
}

func (o *syncObserver) RequestRefresh(domain.ObserverHandle) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.refreshed++
}

// push delivers a reading from the test goroutine, like an OS callback would.
func (o *syncObserver) push(capturing bool) {
	o.mu.Lock()
	cb := o.callback
	o.mu.Unlock()
	if cb != nil {
		cb(capturing)
	}
}

func (o *syncObserver) Unsubscribed() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.unsubscribed
}

func (o *syncObserver) Subscribed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.callback != nil
}

// syncSink records action requests
type syncSink struct {
	mu       sync.Mutex
	requests []domain.ActionRequest
}

func (s *syncSink) SetScreenshotBlocking(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, domain.ActionRequest{Action: domain.ActionScreenshotBlock, Enabled: enabled})
}

func (s *syncSink) SetBlurOverlay(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, domain.ActionRequest{Action: domain.ActionBlurOverlay, Enabled: enabled})
}

func (s *syncSink) Requests() []domain.ActionRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.ActionRequest(nil), s.requests...)
}

// scriptedProbe returns queued frontmost names, repeating the last one
type scriptedProbe struct {
	mu    sync.Mutex
	names []string
	err   error
}

func (p *scriptedProbe) FrontmostApp() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return "", p.err
	}
	if len(p.names) == 0 {
		return "", errors.New("no frontmost app")
	}
	name := p.names[0]
	if len(p.names) > 1 {
		p.names = p.names[1:]
	}
	return name, nil
}

func (p *scriptedProbe) Set(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.names = []string{name}
	p.err = nil
}

// memoryStatus is an in-memory StatusStore
type memoryStatus struct {
	mu    sync.Mutex
	saved []domain.StatusSnapshot
}

func (m *memoryStatus) Save(s domain.StatusSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = append(m.saved, s)
	return nil
}

func (m *memoryStatus) Load() (*domain.StatusSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.saved) == 0 {
		return nil, nil
	}
	last := m.saved[len(m.saved)-1]
	return &last, nil
}

func (m *memoryStatus) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = nil
	return nil
}

func (m *memoryStatus) Path() string { return "memory" }

// patternRecorder is a PatternSetter double
type patternRecorder struct {
	mu       sync.Mutex
	patterns [][]string
}

func (p *patternRecorder) SetPatterns(patterns []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.patterns = append(p.patterns, patterns)
}

func (p *patternRecorder) Last() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.patterns) == 0 {
		return nil
	}
	return p.patterns[len(p.patterns)-1]
}

func block(on bool) domain.ActionRequest {
	return domain.ActionRequest{Action: domain.ActionScreenshotBlock, Enabled: on}
}

func blur(on bool) domain.ActionRequest {
	return domain.ActionRequest{Action: domain.ActionBlurOverlay, Enabled: on}
}
