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

	"github.com/eliteGoblin/focusd/screen_guard/internal/daemon"
	"github.com/eliteGoblin/focusd/screen_guard/internal/domain"
	"github.com/eliteGoblin/focusd/screen_guard/internal/infra"
	"github.com/eliteGoblin/focusd/screen_guard/internal/policy"
	"github.com/eliteGoblin/focusd/screen_guard/internal/usecase"
	"github.com/eliteGoblin/focusd/screen_guard/test/fixtures"
)

const recorderName = "sgfakerec"

var _ = Describe("Protection Runner", func() {
	var (
		tmpDir   string
		recorder *fixtures.FakeRecorder
		journal  *infra.EncryptedJournal
		status   *infra.FileStatusStore
		sink     *recordingSink
		observer *infra.ProcessCaptureObserver
		runner   *daemon.Runner
		cancel   context.CancelFunc
		runErr   chan error
	)

	startRunner := func(capture domain.CaptureObserver, patterns daemon.PatternSetter) {
		controller := usecase.NewControllerWithJournal(
			capture, sink, policy.NewDefaultPolicy(), journal, zap.NewNop())

		cfg := daemon.DefaultRunnerConfig()
		cfg.App = "Banking"
		runner = daemon.NewRunner(cfg, controller, nil, status, patterns, zap.NewNop())

		var ctx context.Context
		ctx, cancel = context.WithCancel(context.Background())
		runErr = make(chan error, 1)
		go func() { runErr <- runner.Run(ctx) }()
	}

	stopRunner := func() {
		cancel()
		Eventually(runner.Done(), 2*time.Second).Should(BeClosed())
		Expect(<-runErr).NotTo(HaveOccurred())
	}

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "screenguard-integration-*")
		Expect(err).NotTo(HaveOccurred())

		recorder = fixtures.NewFakeRecorder(tmpDir, recorderName)

		journal, err = infra.NewEncryptedJournal(tmpDir, testKey())
		Expect(err).NotTo(HaveOccurred())

		status = infra.NewFileStatusStore(filepath.Join(tmpDir, "status.json"))
		sink = &recordingSink{}

		observer = infra.NewProcessCaptureObserver(infra.NewProcessManager(), infra.ProcessObserverConfig{
			Patterns:     []string{recorderName},
			PollInterval: 50 * time.Millisecond,
		}, zap.NewNop())
	})

	AfterEach(func() {
		if cancel != nil {
			cancel()
			<-runner.Done()
			cancel = nil
		}
		recorder.Stop()
		journal.Close()
		os.RemoveAll(tmpDir)
	})

	Context("when a recorder starts while the app is frontmost", func() {
		It("should blur while recording and unblur when it stops", func() {
			startRunner(observer, observer)

			By("blocking screenshots as soon as the app is active")
			Eventually(sink.Requests, time.Second).Should(ContainElement(block(true)))
			Consistently(func() bool {
				on, _ := sink.Last(domain.ActionBlurOverlay)
				return on
			}, 200*time.Millisecond).Should(BeFalse())

			By("starting a recorder")
			Expect(recorder.Start()).To(Succeed())
			Eventually(sink.Requests, 2*time.Second).Should(ContainElement(blur(true)))

			By("stopping the recorder")
			Expect(recorder.Stop()).To(Succeed())
			Eventually(func() []domain.ActionRequest {
				reqs := sink.Requests()
				if len(reqs) == 0 {
					return nil
				}
				return reqs[len(reqs)-1:]
			}, 2*time.Second).Should(Equal([]domain.ActionRequest{blur(false)}))

			By("never repeating the block request")
			blockOn := 0
			for _, r := range sink.Requests() {
				if r == block(true) {
					blockOn++
				}
			}
			Expect(blockOn).To(Equal(1))

			stopRunner()
		})
	})

	Context("when a recorder is already running at launch", func() {
		It("should blur on the first reading", func() {
			Expect(recorder.Start()).To(Succeed())
			startRunner(observer, observer)

			Eventually(sink.Requests, 2*time.Second).Should(Equal([]domain.ActionRequest{
				block(true),
				blur(false),
				blur(true),
			}))
			stopRunner()
		})
	})

	Context("when the app loses focus", func() {
		It("should drop the block and force blur", func() {
			startRunner(observer, observer)
			Eventually(sink.Requests, time.Second).Should(ContainElement(block(true)))

			Expect(runner.Deliver(domain.Event{Kind: domain.EventResignActive})).To(BeTrue())
			Eventually(sink.Requests, time.Second).Should(ContainElements(block(false), blur(true)))

			Eventually(func() domain.LifecyclePhase {
				snap, err := status.Load()
				if err != nil || snap == nil {
					return ""
				}
				return snap.Phase
			}, time.Second).Should(Equal(domain.PhaseInactive))

			stopRunner()
		})
	})

	Context("when no capture source is available", func() {
		It("should run degraded and still blur in the background", func() {
			startRunner(infra.NewMultiCaptureObserver(zap.NewNop()), nil)

			Eventually(sink.Requests, time.Second).Should(Equal([]domain.ActionRequest{block(true), blur(false)}))
			Eventually(func() bool {
				snap, _ := status.Load()
				return snap != nil && snap.Degraded
			}, time.Second).Should(BeTrue())

			Expect(runner.Deliver(domain.Event{Kind: domain.EventResignActive})).To(BeTrue())
			Eventually(sink.Requests, time.Second).Should(Equal([]domain.ActionRequest{
				block(true),
				blur(false),
				block(false),
				blur(true),
			}))

			stopRunner()
		})
	})

	Context("after terminate", func() {
		It("should stop reacting to recorders and keep the terminated record", func() {
			startRunner(observer, observer)
			Eventually(sink.Requests, time.Second).Should(ContainElement(block(true)))

			Expect(runner.Deliver(domain.Event{Kind: domain.EventTerminate})).To(BeTrue())
			Eventually(runner.Done(), time.Second).Should(BeClosed())
			Expect(<-runErr).NotTo(HaveOccurred())
			cancel = nil

			afterTerminate := sink.Count()
			Expect(sink.Requests()[afterTerminate-1]).To(Equal(block(false)))

			Expect(runner.Deliver(domain.Event{Kind: domain.EventCaptureChange, Capturing: true})).To(BeFalse())
			Expect(recorder.Start()).To(Succeed())
			Consistently(sink.Count, 300*time.Millisecond).Should(Equal(afterTerminate))

			snap, err := status.Load()
			Expect(err).NotTo(HaveOccurred())
			Expect(snap).NotTo(BeNil())
			Expect(snap.Phase).To(Equal(domain.PhaseTerminated))
			Expect(snap.App).To(Equal("Banking"))
			Expect(snap.State).To(Equal(domain.ProtectionState{}))
		})
	})

	Context("journal", func() {
		It("should record every transition in order", func() {
			Expect(recorder.Start()).To(Succeed())
			startRunner(observer, observer)
			Eventually(sink.Requests, 2*time.Second).Should(ContainElement(blur(true)))
			stopRunner()

			entries, err := journal.Recent(50)
			Expect(err).NotTo(HaveOccurred())
			Expect(entries).NotTo(BeEmpty())

			// Newest first.
			Expect(entries[0].Event).To(Equal(domain.EventTerminate))
			Expect(entries[0].Phase).To(Equal(domain.PhaseTerminated))
			Expect(entries[len(entries)-1].Event).To(Equal(domain.EventLaunch))

			var kinds []domain.EventKind
			for _, e := range entries {
				kinds = append(kinds, e.Event)
			}
			Expect(kinds).To(ContainElements(domain.EventActivate, domain.EventCaptureChange))
		})

		It("should survive reopening with the same key", func() {
			startRunner(observer, observer)
			Eventually(sink.Requests, time.Second).Should(ContainElement(block(true)))
			stopRunner()
			Expect(journal.Close()).To(Succeed())

			reopened, err := infra.NewEncryptedJournal(tmpDir, testKey())
			Expect(err).NotTo(HaveOccurred())
			journal = reopened

			entries, err := journal.Recent(10)
			Expect(err).NotTo(HaveOccurred())
			Expect(entries).NotTo(BeEmpty())
			Expect(entries[0].Event).To(Equal(domain.EventTerminate))
		})
	})
})
