package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/eliteGoblin/focusd/screen_guard/internal/policy"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, 0, len(e))
	for i := range e {
		msgs = append(msgs, e[i].Error())
	}
	return strings.Join(msgs, "; ")
}

var validLogLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

// ValidateConfig checks every section and reports all problems at once.
func ValidateConfig(c *Config) error {
	var errs ValidationErrors

	if _, err := policy.NewRegistry().Resolve(c.App.Policy); err != nil {
		errs = append(errs, ValidationError{Field: "app.policy", Message: err.Error()})
	}
	if c.App.FocusPollMs < 50 || c.App.FocusPollMs > 60000 {
		errs = append(errs, ValidationError{
			Field:   "app.focus_poll_ms",
			Message: fmt.Sprintf("must be between 50 and 60000, got %d", c.App.FocusPollMs),
		})
	}

	if len(c.Observer.Patterns) == 0 && !c.Observer.OBS.Enabled {
		errs = append(errs, ValidationError{
			Field:   "observer.patterns",
			Message: "no recorder patterns and OBS disabled: capture status would never be known",
		})
	}
	for i, p := range c.Observer.Patterns {
		if strings.TrimSpace(p) == "" {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("observer.patterns[%d]", i),
				Message: "empty pattern matches every process",
			})
		}
	}
	if c.Observer.PollIntervalMs < 100 {
		errs = append(errs, ValidationError{
			Field:   "observer.poll_interval_ms",
			Message: fmt.Sprintf("must be at least 100, got %d", c.Observer.PollIntervalMs),
		})
	}
	if c.Observer.OBS.Enabled {
		u, err := url.Parse(c.Observer.OBS.URL)
		if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") || u.Host == "" {
			errs = append(errs, ValidationError{
				Field:   "observer.obs.url",
				Message: fmt.Sprintf("invalid websocket URL %q", c.Observer.OBS.URL),
			})
		}
	}

	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("unknown level %q", c.Logging.Level),
		})
	}
	if c.Logging.MaxSizeMB <= 0 {
		errs = append(errs, ValidationError{Field: "logging.max_size_mb", Message: "must be positive"})
	}

	if c.Journal.Retention < 0 {
		errs = append(errs, ValidationError{Field: "journal.retention", Message: "must not be negative"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
