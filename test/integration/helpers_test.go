//go:build integration

package integration

import (
	"sync"

	"github.com/eliteGoblin/focusd/screen_guard/internal/domain"
)

// recordingSink keeps every action request in arrival order.
type recordingSink struct {
	mu       sync.Mutex
	requests []domain.ActionRequest
}

func (s *recordingSink) SetScreenshotBlocking(enabled bool) {
	s.add(domain.ActionScreenshotBlock, enabled)
}

func (s *recordingSink) SetBlurOverlay(enabled bool) {
	s.add(domain.ActionBlurOverlay, enabled)
}

func (s *recordingSink) add(action domain.Action, enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, domain.ActionRequest{Action: action, Enabled: enabled})
}

func (s *recordingSink) Requests() []domain.ActionRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.ActionRequest(nil), s.requests...)
}

func (s *recordingSink) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

// Last returns the most recent request for action and whether one exists.
func (s *recordingSink) Last(action domain.Action) (bool, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.requests) - 1; i >= 0; i-- {
		if s.requests[i].Action == action {
			return s.requests[i].Enabled, true
		}
	}
	return false, false
}

func block(enabled bool) domain.ActionRequest {
	return domain.ActionRequest{Action: domain.ActionScreenshotBlock, Enabled: enabled}
}

func blur(enabled bool) domain.ActionRequest {
	return domain.ActionRequest{Action: domain.ActionBlurOverlay, Enabled: enabled}
}

func testKey() []byte {
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i + 1)
	}
	return key
}
