package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/screen_guard/internal/config"
	"github.com/eliteGoblin/focusd/screen_guard/internal/daemon"
	"github.com/eliteGoblin/focusd/screen_guard/internal/domain"
	"github.com/eliteGoblin/focusd/screen_guard/internal/infra"
	"github.com/eliteGoblin/focusd/screen_guard/internal/policy"
	"github.com/eliteGoblin/focusd/screen_guard/internal/usecase"
)

const hookTimeout = 5 * time.Second

func runRun(cmd *cobra.Command, args []string) error {
	paths := infra.DetectPaths()
	if configPath == "" {
		configPath = paths.ConfigPath
	}

	loader := config.NewLoader(configPath)
	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("failed to load config %s: %w", configPath, err)
	}
	defer loader.Close()

	if appName != "" {
		cfg.App.Name = appName
	}
	if policyID != "" {
		cfg.App.Policy = policyID
	}

	logger := infra.NewLogger(cfg.LoggingConfig(paths.LogPath))
	defer func() { _ = logger.Sync() }()

	p, err := policy.NewRegistry().Resolve(cfg.App.Policy)
	if err != nil {
		return err
	}

	pm := infra.NewProcessManager()
	cmdRunner := infra.NewCommandRunner(hookTimeout)

	processObserver := infra.NewProcessCaptureObserver(pm, cfg.ProcessObserverConfig(), logger.Named("process"))
	observer := infra.NewMultiCaptureObserver(logger)
	observer.Add("process", processObserver)
	if cfg.Observer.OBS.Enabled {
		observer.Add("obs", infra.NewOBSCaptureObserver(cfg.OBSObserverConfig(), logger.Named("obs")))
	}

	sinks := []domain.ActionSink{infra.NewLogActionSink(logger)}
	if !cfg.Hooks.IsEmpty() {
		sinks = append(sinks, infra.NewCommandActionSink(cfg.Hooks, cmdRunner, logger))
	} else {
		logger.Warn("no action hooks configured, actions are only logged")
	}
	sink := infra.NewFanoutActionSink(sinks...)

	var journal domain.TransitionJournal
	if cfg.Journal.Enabled {
		j, err := infra.OpenJournal(paths.DataDir)
		if err != nil {
			logger.Warn("journal unavailable, continuing without it", zap.Error(err))
		} else {
			j.SetRetention(cfg.Journal.Retention)
			defer j.Close()
			journal = j
		}
	}

	var controller *usecase.ControllerImpl
	if journal != nil {
		controller = usecase.NewControllerWithJournal(observer, sink, p, journal, logger)
	} else {
		controller = usecase.NewController(observer, sink, p, logger)
	}

	var tracker *daemon.FocusTracker
	if cfg.App.Name != "" {
		tracker = daemon.NewFocusTracker(infra.NewFocusProbe(cmdRunner, pm), cfg.App.Name, logger)
	} else {
		logger.Warn("no app configured, protection stays active until stopped")
	}

	runnerConfig := daemon.DefaultRunnerConfig()
	runnerConfig.App = cfg.App.Name
	runnerConfig.FocusPollInterval = cfg.FocusPollInterval()
	runner := daemon.NewRunner(
		runnerConfig,
		controller,
		tracker,
		infra.NewFileStatusStore(paths.StatusPath),
		processObserver,
		logger,
	)

	loader.OnChange(func(c *config.Config) {
		logger.Info("config reloaded", zap.String("path", loader.Path()))
		runner.UpdatePatterns(c.Observer.Patterns)
	})
	if err := loader.Watch(); err != nil {
		logger.Warn("config hot reload disabled", zap.Error(err))
	}
	go func() {
		for {
			select {
			case err := <-loader.Errors():
				logger.Warn("config reload failed", zap.Error(err))
			case <-runner.Done():
				return
			}
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("starting screenguard",
		zap.String("version", Version),
		zap.String("mode", string(paths.Mode)),
		zap.String("config", configPath),
		zap.String("policy", p.ID()),
		zap.Strings("sources", observer.Sources()))

	return runner.Run(ctx)
}
