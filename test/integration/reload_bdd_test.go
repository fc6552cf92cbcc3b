//go:build integration

package integration

import (
	"context"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/screen_guard/internal/config"
	"github.com/eliteGoblin/focusd/screen_guard/internal/daemon"
	"github.com/eliteGoblin/focusd/screen_guard/internal/infra"
	"github.com/eliteGoblin/focusd/screen_guard/internal/policy"
	"github.com/eliteGoblin/focusd/screen_guard/internal/usecase"
	"github.com/eliteGoblin/focusd/screen_guard/test/fixtures"
)

var _ = Describe("Config Hot Reload", func() {
	var (
		tmpDir     string
		configPath string
		recorder   *fixtures.FakeRecorder
		loader     *config.Loader
		observer   *infra.ProcessCaptureObserver
		sink       *recordingSink
		runner     *daemon.Runner
		cancel     context.CancelFunc
	)

	writeConfig := func(patterns ...string) {
		cfg := config.DefaultConfig()
		cfg.Observer.Patterns = patterns
		cfg.Observer.PollIntervalMs = 100
		cfg.Journal.Enabled = false
		Expect(config.Save(cfg, configPath)).To(Succeed())
	}

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "screenguard-reload-*")
		Expect(err).NotTo(HaveOccurred())

		configPath = filepath.Join(tmpDir, "config.toml")
		recorder = fixtures.NewFakeRecorder(tmpDir, recorderName)
		sink = &recordingSink{}

		writeConfig("no-such-recorder")
		loader = config.NewLoader(configPath)
		cfg, err := loader.Load()
		Expect(err).NotTo(HaveOccurred())

		observer = infra.NewProcessCaptureObserver(infra.NewProcessManager(), cfg.ProcessObserverConfig(), zap.NewNop())
		controller := usecase.NewController(observer, sink, policy.NewDefaultPolicy(), zap.NewNop())
		runner = daemon.NewRunner(daemon.DefaultRunnerConfig(), controller, nil, nil, observer, zap.NewNop())

		loader.OnChange(func(c *config.Config) {
			runner.UpdatePatterns(c.Observer.Patterns)
		})
		Expect(loader.Watch()).To(Succeed())

		var ctx context.Context
		ctx, cancel = context.WithCancel(context.Background())
		go runner.Run(ctx)
	})

	AfterEach(func() {
		cancel()
		<-runner.Done()
		loader.Close()
		recorder.Stop()
		os.RemoveAll(tmpDir)
	})

	It("should start detecting a recorder once its pattern is added", func() {
		Expect(recorder.Start()).To(Succeed())
		Eventually(sink.Requests, time.Second).Should(ContainElement(block(true)))
		Consistently(sink.Requests, 400*time.Millisecond).ShouldNot(ContainElement(blur(true)))

		writeConfig("no-such-recorder", recorderName)

		Eventually(observer.Patterns, 2*time.Second).Should(ContainElement(recorderName))
		Eventually(sink.Requests, 2*time.Second).Should(ContainElement(blur(true)))
	})

	It("should keep the running patterns when the new file is invalid", func() {
		Expect(os.WriteFile(configPath, []byte("[observer\npatterns = "), 0644)).To(Succeed())

		Eventually(loader.Errors(), 2*time.Second).Should(Receive())
		Consistently(observer.Patterns, 300*time.Millisecond).Should(Equal([]string{"no-such-recorder"}))
	})
})
