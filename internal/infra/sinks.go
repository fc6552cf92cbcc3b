package infra

import (
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/screen_guard/internal/domain"
)

// LogActionSink records every action request in the log.
type LogActionSink struct {
	logger *zap.Logger
}

// NewLogActionSink creates a sink that only logs.
func NewLogActionSink(logger *zap.Logger) *LogActionSink {
	return &LogActionSink{logger: logger}
}

func (s *LogActionSink) SetScreenshotBlocking(enabled bool) {
	s.logger.Info("screenshot blocking", zap.Bool("enabled", enabled))
}

func (s *LogActionSink) SetBlurOverlay(enabled bool) {
	s.logger.Info("blur overlay", zap.Bool("enabled", enabled))
}

// HookCommands maps each action value to a shell command line.
// Empty entries are skipped.
type HookCommands struct {
	BlockOn  string `toml:"block_on"`
	BlockOff string `toml:"block_off"`
	BlurOn   string `toml:"blur_on"`
	BlurOff  string `toml:"blur_off"`
}

// IsEmpty reports whether no hook is configured.
func (h HookCommands) IsEmpty() bool {
	return h.BlockOn == "" && h.BlockOff == "" && h.BlurOn == "" && h.BlurOff == ""
}

// CommandActionSink runs a user-supplied command for each action request.
// The platform-specific blanking is delegated to those commands.
type CommandActionSink struct {
	hooks     HookCommands
	cmdRunner CommandRunner
	logger    *zap.Logger
}

// NewCommandActionSink creates a hook-command sink.
func NewCommandActionSink(hooks HookCommands, cmdRunner CommandRunner, logger *zap.Logger) *CommandActionSink {
	return &CommandActionSink{
		hooks:     hooks,
		cmdRunner: cmdRunner,
		logger:    logger,
	}
}

func (s *CommandActionSink) SetScreenshotBlocking(enabled bool) {
	cmd := s.hooks.BlockOff
	if enabled {
		cmd = s.hooks.BlockOn
	}
	s.run(domain.ActionScreenshotBlock, enabled, cmd)
}

func (s *CommandActionSink) SetBlurOverlay(enabled bool) {
	cmd := s.hooks.BlurOff
	if enabled {
		cmd = s.hooks.BlurOn
	}
	s.run(domain.ActionBlurOverlay, enabled, cmd)
}

// run executes the hook through /bin/sh. Failures are logged only.
func (s *CommandActionSink) run(action domain.Action, enabled bool, cmd string) {
	if cmd == "" {
		return
	}
	if err := s.cmdRunner.Run("/bin/sh", "-c", cmd); err != nil {
		s.logger.Warn("action hook failed",
			zap.String("action", string(action)),
			zap.Bool("enabled", enabled),
			zap.String("command", cmd),
			zap.Error(err))
		return
	}
	s.logger.Debug("action hook ran",
		zap.String("action", string(action)),
		zap.Bool("enabled", enabled))
}

// FanoutActionSink forwards every request to each child sink in order.
type FanoutActionSink struct {
	sinks []domain.ActionSink
}

// NewFanoutActionSink combines sinks.
func NewFanoutActionSink(sinks ...domain.ActionSink) *FanoutActionSink {
	return &FanoutActionSink{sinks: sinks}
}

func (f *FanoutActionSink) SetScreenshotBlocking(enabled bool) {
	for _, s := range f.sinks {
		s.SetScreenshotBlocking(enabled)
	}
}

func (f *FanoutActionSink) SetBlurOverlay(enabled bool) {
	for _, s := range f.sinks {
		s.SetBlurOverlay(enabled)
	}
}

// Ensure sinks implement domain.ActionSink.
var (
	_ domain.ActionSink = (*LogActionSink)(nil)
	_ domain.ActionSink = (*CommandActionSink)(nil)
	_ domain.ActionSink = (*FanoutActionSink)(nil)
)
